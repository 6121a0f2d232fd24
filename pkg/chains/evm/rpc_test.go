package evm

import (
	"context"
	"errors"
	"log/slog"
	"math/big"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testAccount      = "0xabcd00000000000000000000000000000000ef12"
	// Upper-case form of testAccount as a wallet may report it
	testAccountMixed = "0xABCD00000000000000000000000000000000Ef12"
	otherAccount     = "0x1111111111111111111111111111111111112222"
)

// codedError carries a JSON-RPC error code through the in-process server
type codedError struct {
	code int
	msg  string
}

func (e *codedError) Error() string  { return e.msg }
func (e *codedError) ErrorCode() int { return e.code }

// fakeWallet serves the eth_ namespace of a wallet provider
type fakeWallet struct {
	mu         sync.Mutex
	authorized []string
	approve    []string
	requestErr error
	chainID    *big.Int
	balances   map[common.Address]*big.Int
	notifiers  map[string][]subscriptionTarget
	switchErr  error
	switchedTo string
	version    string
}

type subscriptionTarget struct {
	notifier *rpc.Notifier
	sub      *rpc.Subscription
}

func newFakeWallet() *fakeWallet {
	return &fakeWallet{
		chainID:   big.NewInt(1),
		balances:  make(map[common.Address]*big.Int),
		notifiers: make(map[string][]subscriptionTarget),
		version:   "Frame/v0.6.9",
	}
}

func (w *fakeWallet) Accounts() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.authorized
}

func (w *fakeWallet) RequestAccounts() ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.requestErr != nil {
		return nil, w.requestErr
	}
	w.authorized = w.approve
	return w.approve, nil
}

func (w *fakeWallet) ChainId() *hexutil.Big {
	w.mu.Lock()
	defer w.mu.Unlock()
	return (*hexutil.Big)(w.chainID)
}

func (w *fakeWallet) GetBalance(address common.Address, block string) (*hexutil.Big, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if block != "latest" {
		return nil, errors.New("unexpected block tag " + block)
	}
	balance, ok := w.balances[address]
	if !ok {
		balance = new(big.Int)
	}
	return (*hexutil.Big)(balance), nil
}

func (w *fakeWallet) AccountsChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, "accountsChanged")
}

func (w *fakeWallet) ChainChanged(ctx context.Context) (*rpc.Subscription, error) {
	return w.subscribe(ctx, "chainChanged")
}

func (w *fakeWallet) subscribe(ctx context.Context, name string) (*rpc.Subscription, error) {
	notifier, supported := rpc.NotifierFromContext(ctx)
	if !supported {
		return &rpc.Subscription{}, rpc.ErrNotificationsUnsupported
	}
	sub := notifier.CreateSubscription()

	w.mu.Lock()
	w.notifiers[name] = append(w.notifiers[name], subscriptionTarget{notifier: notifier, sub: sub})
	w.mu.Unlock()
	return sub, nil
}

func (w *fakeWallet) push(name string, payload any) {
	w.mu.Lock()
	targets := append([]subscriptionTarget(nil), w.notifiers[name]...)
	w.mu.Unlock()

	for _, target := range targets {
		_ = target.notifier.Notify(target.sub.ID, payload)
	}
}

// walletAPI serves the wallet_ namespace
type walletAPI struct{ w *fakeWallet }

func (a *walletAPI) SwitchEthereumChain(params struct {
	ChainID string `json:"chainId"`
}) error {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	if a.w.switchErr != nil {
		return a.w.switchErr
	}
	a.w.switchedTo = params.ChainID
	return nil
}

// web3API serves the web3_ namespace
type web3API struct{ w *fakeWallet }

func (a *web3API) ClientVersion() string {
	a.w.mu.Lock()
	defer a.w.mu.Unlock()
	return a.w.version
}

func newTestProvider(t *testing.T, wallet *fakeWallet, cfg ProviderConfig) *RPCProvider {
	t.Helper()

	server := rpc.NewServer()
	require.NoError(t, server.RegisterName("eth", wallet))
	require.NoError(t, server.RegisterName("wallet", &walletAPI{w: wallet}))
	require.NoError(t, server.RegisterName("web3", &web3API{w: wallet}))

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	provider := NewRPCProvider(rpc.DialInProc(server), cfg, logger)

	t.Cleanup(func() {
		provider.Close()
		server.Stop()
	})
	return provider
}

func TestRPCProviderRequestAccounts(t *testing.T) {
	wallet := newFakeWallet()
	wallet.approve = []string{otherAccount, testAccountMixed}
	provider := newTestProvider(t, wallet, ProviderConfig{})

	// Nothing authorized yet, no prompt
	accounts, err := provider.RequestAccounts(testContext(t), false)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	// Prompting request authorizes and lowercases
	accounts, err = provider.RequestAccounts(testContext(t), true)
	require.NoError(t, err)
	assert.Equal(t, []string{otherAccount, testAccount}, accounts)

	accounts, err = provider.RequestAccounts(testContext(t), false)
	require.NoError(t, err)
	assert.Len(t, accounts, 2)
}

func TestRPCProviderRequestAccountsCarriesErrorCode(t *testing.T) {
	wallet := newFakeWallet()
	wallet.requestErr = &codedError{code: 4001, msg: "User rejected the request."}
	provider := newTestProvider(t, wallet, ProviderConfig{})

	_, err := provider.RequestAccounts(testContext(t), true)
	require.Error(t, err)

	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, "eth_requestAccounts", rpcErr.Method)

	var coded rpc.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 4001, coded.ErrorCode())
}

func TestRPCProviderChainIDAndBalance(t *testing.T) {
	wallet := newFakeWallet()
	wallet.chainID = big.NewInt(137)
	wallet.balances[common.HexToAddress(testAccount)] = big.NewInt(1_500_000_000_000_000_000)
	provider := newTestProvider(t, wallet, ProviderConfig{})

	chainID, err := provider.RequestChainID(testContext(t))
	require.NoError(t, err)
	assert.Equal(t, "0x89", chainID)

	balance, err := provider.GetBalance(testContext(t), testAccount)
	require.NoError(t, err)
	assert.Equal(t, 0, balance.Cmp(big.NewInt(1_500_000_000_000_000_000)))

	_, err = provider.GetBalance(testContext(t), "not-an-address")
	var invalid *InvalidAddressError
	assert.ErrorAs(t, err, &invalid)
}

func TestRPCProviderSwitchChain(t *testing.T) {
	wallet := newFakeWallet()
	provider := newTestProvider(t, wallet, ProviderConfig{})

	require.NoError(t, provider.SwitchChain(testContext(t), "0x89"))
	wallet.mu.Lock()
	assert.Equal(t, "0x89", wallet.switchedTo)
	wallet.mu.Unlock()

	wallet.mu.Lock()
	wallet.switchErr = &codedError{code: 4902, msg: "Unrecognized chain ID"}
	wallet.mu.Unlock()

	err := provider.SwitchChain(testContext(t), "0x2105")
	var coded rpc.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, 4902, coded.ErrorCode())
}

func TestRPCProviderHasExtensionMarker(t *testing.T) {
	tests := []struct {
		name     string
		marker   string
		expected bool
	}{
		{name: "any wallet accepted without marker", marker: "", expected: true},
		{name: "marker matches case-insensitively", marker: "frame", expected: true},
		{name: "marker mismatch", marker: "MetaMask", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, newFakeWallet(), ProviderConfig{Marker: tt.marker, ProbeTimeout: time.Second})
			assert.Equal(t, tt.expected, provider.HasExtensionMarker(testContext(t)))
		})
	}
}

func TestRPCProviderDeliversEventsInOrder(t *testing.T) {
	wallet := newFakeWallet()
	provider := newTestProvider(t, wallet, ProviderConfig{})

	received := make(chan chains.Event, 8)
	handler := func(event chains.Event) { received <- event }

	accountsSub, err := provider.Subscribe(testContext(t), chains.EventAccountsChanged, handler)
	require.NoError(t, err)
	defer accountsSub.Unsubscribe()

	chainSub, err := provider.Subscribe(testContext(t), chains.EventChainChanged, handler)
	require.NoError(t, err)
	defer chainSub.Unsubscribe()

	wallet.push("accountsChanged", []string{otherAccount})
	event := waitEvent(t, received)
	assert.Equal(t, chains.EventAccountsChanged, event.Name)
	assert.Equal(t, []string{otherAccount}, event.Accounts)

	wallet.push("accountsChanged", []string{})
	event = waitEvent(t, received)
	assert.Equal(t, chains.EventAccountsChanged, event.Name)
	assert.Empty(t, event.Accounts)

	wallet.push("chainChanged", "0x89")
	event = waitEvent(t, received)
	assert.Equal(t, chains.EventChainChanged, event.Name)
	assert.Equal(t, "0x89", event.ChainID)
}

func TestRPCProviderUnsubscribeStopsDelivery(t *testing.T) {
	wallet := newFakeWallet()
	provider := newTestProvider(t, wallet, ProviderConfig{})

	first := make(chan chains.Event, 4)
	second := make(chan chains.Event, 4)

	sub1, err := provider.Subscribe(testContext(t), chains.EventChainChanged, func(e chains.Event) { first <- e })
	require.NoError(t, err)
	sub2, err := provider.Subscribe(testContext(t), chains.EventChainChanged, func(e chains.Event) { second <- e })
	require.NoError(t, err)

	sub1.Unsubscribe()
	sub1.Unsubscribe() // second release is a no-op

	wallet.push("chainChanged", "0xa")
	event := waitEvent(t, second)
	assert.Equal(t, "0xa", event.ChainID)

	select {
	case e := <-first:
		t.Fatalf("released handler received %v", e)
	default:
	}

	sub2.Unsubscribe()
	provider.feedMu.Lock()
	assert.Empty(t, provider.feeds, "last release closes the wallet feed")
	provider.feedMu.Unlock()
}

func TestRPCProviderLostReportsSingleDisconnect(t *testing.T) {
	provider := newTestProvider(t, newFakeWallet(), ProviderConfig{})

	received := make(chan chains.Event, 4)
	sub, err := provider.Subscribe(testContext(t), chains.EventDisconnect, func(e chains.Event) { received <- e })
	require.NoError(t, err)
	defer sub.Unsubscribe()

	provider.lost(errors.New("connection reset"))
	provider.lost(errors.New("connection reset again"))

	event := waitEvent(t, received)
	assert.Equal(t, chains.EventDisconnect, event.Name)
	assert.EqualError(t, event.Err, "connection reset")

	select {
	case e := <-received:
		t.Fatalf("unexpected second disconnect %v", e)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestRPCProviderRejectsUnknownEvent(t *testing.T) {
	provider := newTestProvider(t, newFakeWallet(), ProviderConfig{})

	_, err := provider.Subscribe(testContext(t), chains.EventName("message"), func(chains.Event) {})
	assert.Error(t, err)
}

func waitEvent(t *testing.T, ch <-chan chains.Event) chains.Event {
	t.Helper()
	select {
	case event := <-ch:
		return event
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for wallet event")
		return chains.Event{}
	}
}
