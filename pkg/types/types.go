package types

import "math/big"

// Session is a point-in-time copy of the wallet session state
type Session struct {
	Address           *string  `json:"address,omitempty"`    // lowercase hex account
	ChainID           *string  `json:"chainId,omitempty"`    // hex chain identifier reported by the wallet
	Balance           *float64 `json:"balance,omitempty"`    // native units, rounded for display
	BalanceWei        *big.Int `json:"balanceWei,omitempty"` // smallest-unit amount behind Balance
	Connecting        bool     `json:"connecting"`
	LastError         *string  `json:"lastError,omitempty"`
	ProviderAvailable bool     `json:"providerAvailable"`
}

// Connected reports whether an account is currently adopted
func (s Session) Connected() bool {
	return s.Address != nil
}

// Clone returns a deep copy so callers can hold it without sharing pointers
func (s Session) Clone() Session {
	out := Session{
		Connecting:        s.Connecting,
		ProviderAvailable: s.ProviderAvailable,
	}
	if s.Address != nil {
		v := *s.Address
		out.Address = &v
	}
	if s.ChainID != nil {
		v := *s.ChainID
		out.ChainID = &v
	}
	if s.Balance != nil {
		v := *s.Balance
		out.Balance = &v
	}
	if s.BalanceWei != nil {
		out.BalanceWei = new(big.Int).Set(s.BalanceWei)
	}
	if s.LastError != nil {
		v := *s.LastError
		out.LastError = &v
	}
	return out
}

// NoticeKind names the session event a Notice reports
type NoticeKind string

const (
	NoticeConnected            NoticeKind = "connected"
	NoticeConnectFailed        NoticeKind = "connect-failed"
	NoticeAccountChanged       NoticeKind = "account-changed"
	NoticeNetworkChanged       NoticeKind = "network-changed"
	NoticeDisconnected         NoticeKind = "disconnected"
	NoticeProviderDisconnected NoticeKind = "provider-disconnected"
	NoticeBalanceRefreshFailed NoticeKind = "balance-refresh-failed"
	NoticeSwitchFailed         NoticeKind = "switch-failed"
)

// NoticeLevel is the severity a presentation layer renders a Notice with
type NoticeLevel string

const (
	LevelInfo    NoticeLevel = "info"
	LevelSuccess NoticeLevel = "success"
	LevelError   NoticeLevel = "error"
)

// Notice is a short human-readable message for a presentation layer
type Notice struct {
	Kind    NoticeKind  `json:"kind"`
	Level   NoticeLevel `json:"level"`
	Message string      `json:"message"`
}

// Network describes a chain the registry can resolve
type Network struct {
	ChainID string `json:"chainId"` // normalized hex, e.g. "0x89"
	Name    string `json:"name"`
	Testnet bool   `json:"testnet"`
}
