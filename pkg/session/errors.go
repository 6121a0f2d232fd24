package session

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/constants"
)

// ErrorKind classifies wallet failures
type ErrorKind string

const (
	KindProviderUnavailable   ErrorKind = "ProviderUnavailable"
	KindUserRejected          ErrorKind = "UserRejected"
	KindRequestAlreadyPending ErrorKind = "RequestAlreadyPending"
	KindProviderInternalError ErrorKind = "ProviderInternalError"
	KindChainNotAdded         ErrorKind = "ChainNotAdded"
	KindBalanceFetchFailed    ErrorKind = "BalanceFetchFailed"
	KindNoAccounts            ErrorKind = "NoAccounts"
)

// User-facing messages
const (
	MsgProviderUnavailable = "No compatible wallet provider detected. Please install or start a wallet to continue."
	MsgUserRejected        = "Transaction rejected by user"
	MsgUserRejectedConnect = "You rejected the connection request"
	MsgWalletBusy          = "Wallet is already processing a request. Please wait."
	MsgRequestPending      = "A connection request is already pending. Please check your wallet."
	MsgInternalError       = "Internal error. Please try again."
	MsgChainNotAdded       = "This network is not available in your wallet, please add it first"
	MsgBalanceFetchFailed  = "Failed to fetch balance"
	MsgNoAccounts          = "no accounts found"
	MsgGenericFailure      = "Something went wrong. Please try again."
)

// WalletError is a classified wallet failure carrying the message shown to users
type WalletError struct {
	Kind    ErrorKind
	Message string
	Err     error
}

func (e *WalletError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *WalletError) Unwrap() error {
	return e.Err
}

// Is matches any *WalletError of the same kind, so errors.Is(err, ErrUserRejected) works
func (e *WalletError) Is(target error) bool {
	t, ok := target.(*WalletError)
	return ok && t.Kind == e.Kind
}

// Retryable reports whether the user can simply try the operation again
func (e *WalletError) Retryable() bool {
	return e.Kind != KindProviderUnavailable && e.Kind != KindChainNotAdded
}

// Sentinels for errors.Is
var (
	ErrProviderUnavailable   = &WalletError{Kind: KindProviderUnavailable, Message: MsgProviderUnavailable}
	ErrUserRejected          = &WalletError{Kind: KindUserRejected, Message: MsgUserRejected}
	ErrRequestAlreadyPending = &WalletError{Kind: KindRequestAlreadyPending, Message: MsgRequestPending}
	ErrProviderInternal      = &WalletError{Kind: KindProviderInternalError, Message: MsgInternalError}
	ErrChainNotAdded         = &WalletError{Kind: KindChainNotAdded, Message: MsgChainNotAdded}
	ErrBalanceFetchFailed    = &WalletError{Kind: KindBalanceFetchFailed, Message: MsgBalanceFetchFailed}
	ErrNoAccounts            = &WalletError{Kind: KindNoAccounts, Message: MsgNoAccounts}
)

// ErrClosed is returned by commands issued after Close
var ErrClosed = errors.New("wallet session closed")

func newWalletError(kind ErrorKind, message string, err error) *WalletError {
	return &WalletError{Kind: kind, Message: message, Err: err}
}

// MapProviderError classifies an error returned by a chains.Provider
func MapProviderError(err error) *WalletError {
	if err == nil {
		return nil
	}

	var walletErr *WalletError
	if errors.As(err, &walletErr) {
		return walletErr
	}

	if errors.Is(err, chains.ErrNoProvider) {
		return newWalletError(KindProviderUnavailable, MsgProviderUnavailable, err)
	}

	message := err.Error()
	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		message = rpcErr.Error()
		switch rpcErr.ErrorCode() {
		case constants.CodeUserRejected:
			return newWalletError(KindUserRejected, MsgUserRejected, err)
		case constants.CodeRequestPending:
			return newWalletError(KindRequestAlreadyPending, MsgWalletBusy, err)
		case constants.CodeInternalError:
			return newWalletError(KindProviderInternalError, MsgInternalError, err)
		case constants.CodeChainNotAdded:
			return newWalletError(KindChainNotAdded, MsgChainNotAdded, err)
		}
	}

	lower := strings.ToLower(message)
	switch {
	case strings.Contains(lower, "user rejected"):
		return newWalletError(KindUserRejected, MsgUserRejectedConnect, err)
	case strings.Contains(lower, "already pending"):
		return newWalletError(KindRequestAlreadyPending, MsgRequestPending, err)
	}

	if strings.TrimSpace(message) == "" {
		message = MsgGenericFailure
	}
	return newWalletError(KindProviderInternalError, message, err)
}
