package chains

import (
	"context"
	"errors"
	"math/big"
)

// Design follows the EIP-1193 provider API exposed by browser and desktop wallets
// https://eips.ethereum.org/EIPS/eip-1193

// Provider is the wallet capability contract a session consumes
type Provider interface {
	// HasExtensionMarker reports whether a compatible wallet answers on this provider
	HasExtensionMarker(ctx context.Context) bool

	// RequestAccounts returns authorized accounts
	// prompt=false returns only pre-authorized accounts without wallet UI,
	// prompt=true may block until the user answers the wallet's approval prompt
	RequestAccounts(ctx context.Context, prompt bool) ([]string, error)

	// RequestChainID returns the hex chain identifier the wallet is pointed at
	RequestChainID(ctx context.Context) (string, error)

	// GetBalance returns the native balance of address in the smallest unit
	GetBalance(ctx context.Context, address string) (*big.Int, error)

	// SwitchChain asks the wallet to change its active network
	SwitchChain(ctx context.Context, chainID string) error

	// Subscribe registers handler for event until the returned Subscription is released
	Subscribe(ctx context.Context, event EventName, handler EventHandler) (Subscription, error)
}

// EventName identifies a wallet push notification
type EventName string

const (
	EventAccountsChanged EventName = "accountsChanged"
	EventChainChanged    EventName = "chainChanged"
	EventDisconnect      EventName = "disconnect"
)

// Events lists every event a session subscribes to
var Events = []EventName{EventAccountsChanged, EventChainChanged, EventDisconnect}

// Event is a wallet push notification
// Only the field matching Name is populated
type Event struct {
	Name     EventName
	Accounts []string // accountsChanged
	ChainID  string   // chainChanged
	Err      error    // disconnect
}

// EventHandler receives events in delivery order
type EventHandler func(Event)

// Subscription is a registered handler; Unsubscribe is safe to call more than once
type Subscription interface {
	Unsubscribe()
}

// ErrNoProvider is returned by Unavailable for every request
var ErrNoProvider = errors.New("no wallet provider available")

// Unavailable stands in when no wallet endpoint could be reached
type Unavailable struct{}

var _ Provider = Unavailable{}

func (Unavailable) HasExtensionMarker(context.Context) bool { return false }

func (Unavailable) RequestAccounts(context.Context, bool) ([]string, error) {
	return nil, ErrNoProvider
}

func (Unavailable) RequestChainID(context.Context) (string, error) {
	return "", ErrNoProvider
}

func (Unavailable) GetBalance(context.Context, string) (*big.Int, error) {
	return nil, ErrNoProvider
}

func (Unavailable) SwitchChain(context.Context, string) error {
	return ErrNoProvider
}

func (Unavailable) Subscribe(context.Context, EventName, EventHandler) (Subscription, error) {
	return nil, ErrNoProvider
}
