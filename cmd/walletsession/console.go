package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/chains/evm"
	"github.com/sigweihq/walletsession/pkg/config"
	"github.com/sigweihq/walletsession/pkg/session"
	"github.com/sigweihq/walletsession/pkg/types"
	"github.com/sigweihq/walletsession/pkg/utils"
	"github.com/skip2/go-qrcode"
)

const helpText = `commands:
  status            show the wallet session
  connect           request account access from the wallet
  disconnect        forget the account locally
  refresh           refetch the balance
  switch <chainId>  ask the wallet to change network (hex or decimal)
  networks          list known networks
  qr                print the connected address as a QR code
  help              show this help
  quit              exit`

// dialFunc opens the wallet provider for one session
type dialFunc func(ctx context.Context) (chains.Provider, func())

// console is the line-oriented host of a wallet session
// A chain switch reported by the wallet ends the current session and starts a fresh one
type console struct {
	registry    *chains.Registry
	logger      *slog.Logger
	dial        dialFunc
	interactive bool

	input  io.Reader
	outMu  sync.Mutex
	out    io.Writer
	reload chan struct{}
}

func newConsole(cfg *config.Config, registry *chains.Registry, logger *slog.Logger, in io.Reader, out io.Writer) *console {
	return &console{
		registry: registry,
		logger:   logger,
		dial: func(ctx context.Context) (chains.Provider, func()) {
			return evm.Connect(ctx, cfg.ProviderConfig(), logger)
		},
		input:  in,
		out:    out,
		reload: make(chan struct{}, 1),
	}
}

// run serves sessions until quit, end of input or ctx cancellation
func (c *console) run(ctx context.Context) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(c.input)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		provider, release := c.dial(ctx)
		controller, err := session.NewController(ctx, &session.ControllerConfig{
			Provider: provider,
			Registry: c.registry,
			Notifier: session.NotifierFunc(c.printNotice),
			Reloader: session.ReloadFunc(c.requestReload),
			Logger:   c.logger,
		})
		if err != nil {
			release()
			return fmt.Errorf("failed to start wallet session: %w", err)
		}

		c.printStatus(controller)
		done := c.serve(ctx, controller, lines)

		controller.Close()
		release()
		if done {
			return nil
		}
		c.logger.Info("network changed, starting a fresh wallet session")
	}
}

// serve handles commands for one session, reporting whether the host should exit
func (c *console) serve(ctx context.Context, controller *session.Controller, lines <-chan string) bool {
	for {
		// A pending reload wins over queued input
		select {
		case <-c.reload:
			return false
		default:
		}

		c.prompt()
		select {
		case <-ctx.Done():
			return true
		case <-c.reload:
			return false
		case line, ok := <-lines:
			if !ok {
				return true
			}
			if c.execute(ctx, controller, line) {
				return true
			}
		}
	}
}

// execute runs one command line, reporting whether it asked to quit
func (c *console) execute(ctx context.Context, controller *session.Controller, line string) bool {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false
	}

	switch strings.ToLower(fields[0]) {
	case "status":
		c.printStatus(controller)
	case "connect":
		if err := controller.Connect(ctx); err == nil {
			c.printStatus(controller)
		}
	case "disconnect":
		controller.Disconnect()
	case "refresh":
		if err := controller.RefreshBalance(ctx); err == nil {
			c.printStatus(controller)
		}
	case "switch":
		if len(fields) != 2 {
			c.printf("usage: switch <chainId>\n")
			return false
		}
		chainID, err := utils.ParseChainID(fields[1])
		if err != nil {
			c.printf("%v\n", err)
			return false
		}
		_ = controller.SwitchChain(ctx, chainID)
	case "networks":
		c.printNetworks(controller)
	case "qr":
		c.printQR(controller)
	case "help", "?":
		c.printf("%s\n", helpText)
	case "quit", "exit":
		return true
	default:
		c.printf("unknown command %q, type help for a list\n", fields[0])
	}
	return false
}

func (c *console) requestReload() {
	select {
	case c.reload <- struct{}{}:
	default:
	}
}

func (c *console) prompt() {
	if c.interactive {
		c.printf("> ")
	}
}

func (c *console) printNotice(n types.Notice) {
	c.printf("[%s] %s\n", n.Level, n.Message)
}

func (c *console) printStatus(controller *session.Controller) {
	snapshot := controller.Snapshot()

	switch {
	case !snapshot.ProviderAvailable:
		c.printf("wallet: not detected\n")
		return
	case snapshot.Connecting:
		c.printf("wallet: connecting...\n")
		return
	case !snapshot.Connected():
		c.printf("wallet: not connected\n")
	default:
		c.printf("account: %s\n", utils.FormatAddress(*snapshot.Address))
		c.printf("balance: %s\n", utils.FormatBalance(snapshot.Balance))
	}

	if name := controller.NetworkName(); name != "" {
		c.printf("network: %s\n", name)
	}
	if snapshot.LastError != nil {
		c.printf("error:   %s\n", *snapshot.LastError)
	}
}

func (c *console) printNetworks(controller *session.Controller) {
	current := ""
	if chainID := controller.Snapshot().ChainID; chainID != nil {
		current = *chainID
	}

	for _, network := range c.registry.Networks() {
		marker := " "
		if network.ChainID == current {
			marker = "*"
		}
		suffix := ""
		if network.Testnet {
			suffix = " (testnet)"
		}
		c.printf("%s %-10s %s%s\n", marker, network.ChainID, network.Name, suffix)
	}
}

func (c *console) printQR(controller *session.Controller) {
	snapshot := controller.Snapshot()
	if snapshot.Address == nil {
		c.printf("no account connected\n")
		return
	}

	address := evm.ChecksumAddress(*snapshot.Address)
	qr, err := qrcode.New(address, qrcode.Medium)
	if err != nil {
		c.logger.Error("failed to create QR code", "error", err)
		return
	}
	c.printf("%s%s\n", qr.ToSmallString(false), address)
}

func (c *console) printf(format string, args ...any) {
	c.outMu.Lock()
	defer c.outMu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}
