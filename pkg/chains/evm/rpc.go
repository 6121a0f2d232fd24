package evm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"slices"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/constants"
	"github.com/sigweihq/walletsession/pkg/utils"
)

const eventBufferSize = 64

// ProviderConfig describes how to reach the wallet's JSON-RPC endpoint
type ProviderConfig struct {
	URL          string        // ws://, wss://, or an IPC path; http endpoints cannot deliver events
	Origin       string        // Origin header some wallets require to authorize a dapp
	Marker       string        // substring web3_clientVersion must contain, empty accepts any wallet
	ProbeTimeout time.Duration // bound on the marker probe only
}

// RPCProvider implements chains.Provider over a go-ethereum RPC client
// Events from every wallet subscription are delivered by a single dispatch goroutine
type RPCProvider struct {
	client       *rpc.Client
	marker       string
	probeTimeout time.Duration
	logger       *slog.Logger

	mu           sync.Mutex
	nextID       uint64
	handlers     map[chains.EventName]map[uint64]chains.EventHandler
	disconnected bool

	feedMu sync.Mutex
	feeds  map[chains.EventName]*rpc.ClientSubscription

	events    chan chains.Event
	done      chan struct{}
	closeOnce sync.Once
}

var _ chains.Provider = (*RPCProvider)(nil)

// NewRPCProvider wraps an already dialled client
func NewRPCProvider(client *rpc.Client, cfg ProviderConfig, logger *slog.Logger) *RPCProvider {
	if logger == nil {
		logger = slog.Default()
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = constants.ProbeTimeout
	}

	p := &RPCProvider{
		client:       client,
		marker:       cfg.Marker,
		probeTimeout: probeTimeout,
		logger:       logger,
		handlers:     make(map[chains.EventName]map[uint64]chains.EventHandler),
		feeds:        make(map[chains.EventName]*rpc.ClientSubscription),
		events:       make(chan chains.Event, eventBufferSize),
		done:         make(chan struct{}),
	}
	go p.dispatch()
	return p
}

// RequestAccounts implements chains.Provider
func (p *RPCProvider) RequestAccounts(ctx context.Context, prompt bool) ([]string, error) {
	method := constants.MethodAccounts
	if prompt {
		method = constants.MethodRequestAccounts
	}

	var accounts []string
	if err := p.client.CallContext(ctx, &accounts, method); err != nil {
		return nil, &RPCError{Method: method, Err: err}
	}

	normalized, err := NormalizeAccounts(accounts)
	if err != nil {
		return nil, &RPCError{Method: method, Err: err}
	}
	return normalized, nil
}

// RequestChainID implements chains.Provider
func (p *RPCProvider) RequestChainID(ctx context.Context) (string, error) {
	var chainID string
	if err := p.client.CallContext(ctx, &chainID, constants.MethodChainID); err != nil {
		return "", &RPCError{Method: constants.MethodChainID, Err: err}
	}
	return utils.NormalizeChainID(chainID), nil
}

// GetBalance implements chains.Provider
func (p *RPCProvider) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	if !common.IsHexAddress(address) {
		return nil, &InvalidAddressError{Address: address}
	}

	var balance hexutil.Big
	err := p.client.CallContext(ctx, &balance, constants.MethodGetBalance, common.HexToAddress(address), constants.BlockTagLatest)
	if err != nil {
		return nil, &RPCError{Method: constants.MethodGetBalance, Err: err}
	}
	return balance.ToInt(), nil
}

// SwitchChain implements chains.Provider
func (p *RPCProvider) SwitchChain(ctx context.Context, chainID string) error {
	params := struct {
		ChainID string `json:"chainId"`
	}{ChainID: chainID}

	if err := p.client.CallContext(ctx, nil, constants.MethodSwitchChain, params); err != nil {
		return &RPCError{Method: constants.MethodSwitchChain, Err: err}
	}
	return nil
}

// Subscribe implements chains.Provider
// The wallet-side subscription for an event is opened with its first handler and closed with its last
func (p *RPCProvider) Subscribe(ctx context.Context, event chains.EventName, handler chains.EventHandler) (chains.Subscription, error) {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()

	switch event {
	case chains.EventAccountsChanged, chains.EventChainChanged:
		if err := p.ensureFeed(ctx, event); err != nil {
			return nil, err
		}
	case chains.EventDisconnect:
		// Raised locally when a wallet subscription fails
	default:
		return nil, fmt.Errorf("unsupported wallet event: %s", event)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.nextID++
	id := p.nextID
	if p.handlers[event] == nil {
		p.handlers[event] = make(map[uint64]chains.EventHandler)
	}
	p.handlers[event][id] = handler

	return &handlerSubscription{provider: p, event: event, id: id}, nil
}

// Close releases every wallet subscription and the underlying client
func (p *RPCProvider) Close() {
	p.closeOnce.Do(func() {
		close(p.done)

		p.feedMu.Lock()
		for event, feed := range p.feeds {
			feed.Unsubscribe()
			delete(p.feeds, event)
		}
		p.feedMu.Unlock()

		p.client.Close()
	})
}

// ensureFeed opens the wallet-side subscription backing event if it is not open yet
// Callers hold feedMu
func (p *RPCProvider) ensureFeed(ctx context.Context, event chains.EventName) error {
	if _, ok := p.feeds[event]; ok {
		return nil
	}

	var (
		feed *rpc.ClientSubscription
		err  error
	)
	switch event {
	case chains.EventAccountsChanged:
		feed, err = openFeed(ctx, p, constants.SubscriptionAccounts, func(accounts []string) chains.Event {
			normalized, err := NormalizeAccounts(accounts)
			if err != nil {
				p.logger.Warn("wallet reported malformed account", "error", err)
				normalized = accounts
			}
			return chains.Event{Name: chains.EventAccountsChanged, Accounts: normalized}
		})
	case chains.EventChainChanged:
		feed, err = openFeed(ctx, p, constants.SubscriptionChainID, func(chainID string) chains.Event {
			return chains.Event{Name: chains.EventChainChanged, ChainID: chainID}
		})
	}
	if err != nil {
		return &RPCError{Method: "eth_subscribe(" + string(event) + ")", Err: err}
	}

	p.feeds[event] = feed
	return nil
}

// openFeed subscribes to a wallet notification and forwards each payload to the dispatch queue
func openFeed[T any](ctx context.Context, p *RPCProvider, name string, convert func(T) chains.Event) (*rpc.ClientSubscription, error) {
	ch := make(chan T, eventBufferSize)
	feed, err := p.client.Subscribe(ctx, constants.SubscriptionNamespace, ch, name)
	if err != nil {
		return nil, err
	}

	go func() {
		for {
			select {
			case payload := <-ch:
				p.enqueue(convert(payload))
			case err, ok := <-feed.Err():
				if !ok {
					// Unsubscribed locally
					return
				}
				if err != nil && !errors.Is(err, rpc.ErrClientQuit) {
					p.lost(err)
				}
				return
			case <-p.done:
				return
			}
		}
	}()

	return feed, nil
}

// lost reports a connectivity failure as a single disconnect event
func (p *RPCProvider) lost(err error) {
	p.mu.Lock()
	if p.disconnected {
		p.mu.Unlock()
		return
	}
	p.disconnected = true
	p.mu.Unlock()

	p.logger.Warn("wallet subscription lost", "error", err)
	p.enqueue(chains.Event{Name: chains.EventDisconnect, Err: err})
}

func (p *RPCProvider) enqueue(event chains.Event) {
	select {
	case p.events <- event:
	case <-p.done:
	}
}

func (p *RPCProvider) dispatch() {
	for {
		select {
		case event := <-p.events:
			for _, handler := range p.snapshotHandlers(event.Name) {
				handler(event)
			}
		case <-p.done:
			return
		}
	}
}

func (p *RPCProvider) snapshotHandlers(event chains.EventName) []chains.EventHandler {
	p.mu.Lock()
	defer p.mu.Unlock()

	ids := make([]uint64, 0, len(p.handlers[event]))
	for id := range p.handlers[event] {
		ids = append(ids, id)
	}
	// Registration order
	slices.Sort(ids)

	handlers := make([]chains.EventHandler, 0, len(ids))
	for _, id := range ids {
		handlers = append(handlers, p.handlers[event][id])
	}
	return handlers
}

// removeHandler drops a handler and closes the wallet-side feed once nobody listens
func (p *RPCProvider) removeHandler(event chains.EventName, id uint64) {
	p.feedMu.Lock()
	defer p.feedMu.Unlock()

	p.mu.Lock()
	delete(p.handlers[event], id)
	remaining := len(p.handlers[event])
	p.mu.Unlock()

	if remaining > 0 {
		return
	}
	if feed, ok := p.feeds[event]; ok {
		feed.Unsubscribe()
		delete(p.feeds, event)
	}
}

type handlerSubscription struct {
	provider *RPCProvider
	event    chains.EventName
	id       uint64
	once     sync.Once
}

func (s *handlerSubscription) Unsubscribe() {
	s.once.Do(func() {
		s.provider.removeHandler(s.event, s.id)
	})
}
