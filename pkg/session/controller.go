package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"sync"

	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/types"
	"github.com/sigweihq/walletsession/pkg/utils"
)

// Notice texts
const (
	noticeConnected            = "Wallet connected successfully"
	noticeNoAccounts           = "No accounts found. Please create an account in your wallet."
	noticeAccountChanged       = "Account changed"
	noticeWalletDisconnected   = "Wallet disconnected"
	noticeAppDisconnected      = "Wallet disconnected from app"
	noticeProviderDisconnected = "Wallet provider disconnected"
)

// ControllerConfig holds the collaborators of a Controller
type ControllerConfig struct {
	Provider chains.Provider
	Registry *chains.Registry // resolves network names, defaults to the global registry or a fresh one
	Notifier Notifier         // defaults to LogNotifier
	Reloader Reloader         // invoked after every chain switch
	Logger   *slog.Logger
}

// Controller keeps a wallet session in sync with a wallet provider.
//
// State changes come from two sources: commands issued by the caller (Connect,
// Disconnect, RefreshBalance, SwitchChain) and events pushed by the wallet
// (accounts changed, chain changed, disconnect). Provider calls never run while
// the state lock is held, and notices are emitted after it is released.
//
// No operation imposes a timeout; a prompting Connect waits for the user for as
// long as ctx allows.
type Controller struct {
	provider chains.Provider
	registry *chains.Registry
	notifier Notifier
	reloader Reloader
	logger   *slog.Logger

	mu      sync.Mutex
	session types.Session
	epoch   uint64 // bumped on every account or chain change, balances fetched under an older epoch are dropped
	subs    []chains.Subscription
	closed  bool
}

// NewController probes the provider and, when a wallet is present, subscribes to its
// events and adopts any pre-authorized account without prompting
func NewController(ctx context.Context, cfg *ControllerConfig) (*Controller, error) {
	if cfg == nil || cfg.Provider == nil {
		return nil, errors.New("wallet session requires a provider")
	}

	c := &Controller{
		provider: cfg.Provider,
		registry: cfg.Registry,
		notifier: cfg.Notifier,
		reloader: cfg.Reloader,
		logger:   cfg.Logger,
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if c.registry == nil {
		c.registry = chains.GetGlobalRegistry()
	}
	if c.registry == nil {
		c.registry = chains.NewRegistry()
	}
	if c.notifier == nil {
		c.notifier = LogNotifier{Logger: c.logger}
	}
	if c.reloader == nil {
		c.reloader = ReloadFunc(func() {
			c.logger.Warn("chain changed but no reloader is configured, session state may be stale")
		})
	}

	c.session.ProviderAvailable = c.provider.HasExtensionMarker(ctx)
	if !c.session.ProviderAvailable {
		c.logger.Info("no wallet provider detected")
		return c, nil
	}

	if err := c.subscribe(ctx); err != nil {
		return nil, err
	}
	c.restore(ctx)

	return c, nil
}

// subscribe acquires every event subscription, releasing the acquired ones if any fails
func (c *Controller) subscribe(ctx context.Context) error {
	subs := make([]chains.Subscription, 0, len(chains.Events))
	for _, event := range chains.Events {
		sub, err := c.provider.Subscribe(ctx, event, c.handleEvent)
		if err != nil {
			for _, acquired := range subs {
				acquired.Unsubscribe()
			}
			return fmt.Errorf("failed to subscribe to wallet %s events: %w", event, err)
		}
		subs = append(subs, sub)
	}

	c.mu.Lock()
	c.subs = subs
	c.mu.Unlock()
	return nil
}

// restore adopts pre-authorized accounts and the current chain without prompting
func (c *Controller) restore(ctx context.Context) {
	accounts, err := c.provider.RequestAccounts(ctx, false)
	if err != nil {
		c.logger.Warn("failed to query authorized accounts", "error", err)
	}
	chainID, chainErr := c.provider.RequestChainID(ctx)
	if chainErr != nil {
		c.logger.Warn("failed to query chain ID", "error", chainErr)
	}

	c.mu.Lock()
	if chainErr == nil {
		c.setChainLocked(chainID)
	}
	adopted := false
	if len(accounts) > 0 && c.session.Address == nil {
		c.setAddressLocked(accounts[0])
		adopted = true
	}
	c.mu.Unlock()

	if adopted {
		c.logger.Info("restored authorized account", "address", accounts[0])
		_ = c.RefreshBalance(ctx)
	}
}

// Connect asks the wallet for account access, prompting the user if needed
// A call made while another Connect is in flight fails with RequestAlreadyPending
func (c *Controller) Connect(ctx context.Context) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if !c.session.ProviderAvailable {
		c.mu.Unlock()
		c.notify(types.NoticeConnectFailed, types.LevelError, MsgProviderUnavailable)
		return ErrProviderUnavailable
	}
	if c.session.Connecting {
		werr := newWalletError(KindRequestAlreadyPending, MsgRequestPending, nil)
		c.session.LastError = stringPtr(werr.Message)
		c.mu.Unlock()
		c.notify(types.NoticeConnectFailed, types.LevelError, werr.Message)
		return werr
	}
	c.session.Connecting = true
	c.session.LastError = nil
	c.mu.Unlock()

	accounts, err := c.provider.RequestAccounts(ctx, true)
	var chainID string
	if err == nil && len(accounts) > 0 {
		chainID, err = c.provider.RequestChainID(ctx)
	}

	c.mu.Lock()
	c.session.Connecting = false
	switch {
	case err != nil:
		werr := MapProviderError(err)
		c.session.LastError = stringPtr(werr.Message)
		c.mu.Unlock()

		c.logger.Warn("wallet connect failed", "kind", werr.Kind, "error", err)
		c.notify(types.NoticeConnectFailed, types.LevelError, werr.Message)
		return werr

	case len(accounts) == 0:
		c.session.LastError = stringPtr(MsgNoAccounts)
		c.mu.Unlock()

		c.notify(types.NoticeConnectFailed, types.LevelError, noticeNoAccounts)
		return ErrNoAccounts

	default:
		c.setAddressLocked(accounts[0])
		c.setChainLocked(chainID)
		c.session.LastError = nil
		c.mu.Unlock()

		c.logger.Info("wallet connected", "address", accounts[0], "chainId", chainID)
		c.notify(types.NoticeConnected, types.LevelSuccess, noticeConnected)
		_ = c.RefreshBalance(ctx)
		return nil
	}
}

// Disconnect clears the local session only. Wallets offer no programmatic
// disconnect, so the account stays authorized in the wallet and is restored by
// the next session or Connect.
func (c *Controller) Disconnect() {
	c.mu.Lock()
	c.clearAccountLocked()
	c.session.Connecting = false
	c.session.LastError = nil
	c.mu.Unlock()

	c.notify(types.NoticeDisconnected, types.LevelInfo, noticeAppDisconnected)
}

// RefreshBalance fetches the native balance of the connected account
// It is a no-op when no account is connected
func (c *Controller) RefreshBalance(ctx context.Context) error {
	c.mu.Lock()
	if c.session.Address == nil {
		c.mu.Unlock()
		return nil
	}
	address := *c.session.Address
	epoch := c.epoch
	c.mu.Unlock()

	wei, err := c.provider.GetBalance(ctx, address)

	c.mu.Lock()
	if epoch != c.epoch {
		c.mu.Unlock()
		c.logger.Debug("discarding balance fetched for a previous account or chain", "address", address)
		return nil
	}
	if err != nil {
		werr := newWalletError(KindBalanceFetchFailed, MsgBalanceFetchFailed, err)
		c.session.LastError = stringPtr(werr.Message)
		c.mu.Unlock()

		c.logger.Warn("failed to fetch balance", "address", address, "error", err)
		c.notify(types.NoticeBalanceRefreshFailed, types.LevelError, werr.Message)
		return werr
	}
	balance := utils.WeiToEther(wei)
	c.session.Balance = &balance
	c.session.BalanceWei = new(big.Int).Set(wei)
	c.mu.Unlock()

	c.logger.Debug("balance refreshed", "address", address, "balance", balance)
	return nil
}

// SwitchChain asks the wallet to change network
// Local state changes only when the wallet reports the new chain
func (c *Controller) SwitchChain(ctx context.Context, chainID string) error {
	c.mu.Lock()
	closed, available := c.closed, c.session.ProviderAvailable
	c.mu.Unlock()

	if closed {
		return ErrClosed
	}
	if !available {
		c.notify(types.NoticeSwitchFailed, types.LevelError, MsgProviderUnavailable)
		return ErrProviderUnavailable
	}

	chainID = utils.NormalizeChainID(chainID)
	if err := c.provider.SwitchChain(ctx, chainID); err != nil {
		werr := MapProviderError(err)

		c.mu.Lock()
		c.session.LastError = stringPtr(werr.Message)
		c.mu.Unlock()

		c.logger.Warn("wallet network switch failed", "chainId", chainID, "kind", werr.Kind, "error", err)
		c.notify(types.NoticeSwitchFailed, types.LevelError, werr.Message)
		return werr
	}

	c.logger.Info("wallet network switch requested", "chainId", chainID, "network", c.registry.Name(chainID))
	return nil
}

// Snapshot returns a copy of the current session
func (c *Controller) Snapshot() types.Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.Clone()
}

// NetworkName resolves the current chain, empty when the chain is unknown
func (c *Controller) NetworkName() string {
	c.mu.Lock()
	chainID := c.session.ChainID
	c.mu.Unlock()

	if chainID == nil {
		return ""
	}
	return c.registry.Name(*chainID)
}

// Close releases every event subscription; later events are ignored
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()

	for _, sub := range subs {
		sub.Unsubscribe()
	}
}

func (c *Controller) handleEvent(event chains.Event) {
	switch event.Name {
	case chains.EventAccountsChanged:
		c.handleAccountsChanged(event.Accounts)
	case chains.EventChainChanged:
		c.handleChainChanged(event.ChainID)
	case chains.EventDisconnect:
		c.handleDisconnect(event.Err)
	default:
		c.logger.Debug("ignoring wallet event", "event", event.Name)
	}
}

func (c *Controller) handleAccountsChanged(accounts []string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}

	if len(accounts) == 0 {
		c.clearAccountLocked()
		c.session.LastError = nil
		c.mu.Unlock()

		c.logger.Info("wallet reported no accounts")
		c.notify(types.NoticeDisconnected, types.LevelInfo, noticeWalletDisconnected)
		return
	}

	if c.session.Address != nil && strings.EqualFold(*c.session.Address, accounts[0]) {
		c.mu.Unlock()
		return
	}
	c.setAddressLocked(accounts[0])
	c.mu.Unlock()

	c.logger.Info("wallet account changed", "address", accounts[0])
	c.notify(types.NoticeAccountChanged, types.LevelSuccess, noticeAccountChanged)
	_ = c.RefreshBalance(context.Background())
}

func (c *Controller) handleChainChanged(chainID string) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.setChainLocked(chainID)
	name := c.registry.Name(*c.session.ChainID)
	c.mu.Unlock()

	c.logger.Info("wallet network changed", "chainId", chainID, "network", name)
	c.notify(types.NoticeNetworkChanged, types.LevelInfo, "Network changed to "+name)

	// Session state is not carried across a chain switch
	c.reloader.Reload()
}

func (c *Controller) handleDisconnect(err error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.clearAccountLocked()
	c.mu.Unlock()

	c.logger.Warn("wallet provider disconnected", "error", err)
	c.notify(types.NoticeProviderDisconnected, types.LevelError, noticeProviderDisconnected)
}

// setAddressLocked adopts account, invalidating the balance if the account differs
func (c *Controller) setAddressLocked(account string) {
	address := strings.ToLower(strings.TrimSpace(account))
	if c.session.Address != nil && *c.session.Address == address {
		return
	}
	c.session.Address = &address
	c.invalidateBalanceLocked()
}

// setChainLocked stores chainID, invalidating the balance if the chain differs
func (c *Controller) setChainLocked(chainID string) {
	chainID = utils.NormalizeChainID(chainID)
	if c.session.ChainID != nil && *c.session.ChainID == chainID {
		return
	}
	c.session.ChainID = &chainID
	c.invalidateBalanceLocked()
}

func (c *Controller) clearAccountLocked() {
	c.session.Address = nil
	c.invalidateBalanceLocked()
}

func (c *Controller) invalidateBalanceLocked() {
	c.session.Balance = nil
	c.session.BalanceWei = nil
	c.epoch++
}

func (c *Controller) notify(kind types.NoticeKind, level types.NoticeLevel, message string) {
	c.notifier.Notify(types.Notice{Kind: kind, Level: level, Message: message})
}

func stringPtr(s string) *string {
	return &s
}
