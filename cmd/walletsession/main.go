package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sigweihq/walletsession/pkg/chains/evm"
	"github.com/sigweihq/walletsession/pkg/config"
	"golang.org/x/term"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger := cfg.NewLogger(os.Stderr)

	// Validate already parsed these
	networks, _ := cfg.Networks()
	registry := evm.InitNetworks(logger, networks...)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := newConsole(cfg, registry, logger, os.Stdin, os.Stdout)
	c.interactive = term.IsTerminal(int(os.Stdin.Fd()))

	if err := c.run(ctx); err != nil {
		logger.Error("wallet session failed", "error", err)
		os.Exit(1)
	}
}
