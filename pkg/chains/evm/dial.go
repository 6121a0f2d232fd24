package evm

import (
	"context"
	"log/slog"

	"github.com/ethereum/go-ethereum/rpc"
	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/constants"
)

// Dial connects to the wallet endpoint described by cfg
func Dial(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (*RPCProvider, error) {
	if cfg.URL == "" {
		cfg.URL = constants.DefaultProviderURL
	}

	var options []rpc.ClientOption
	if cfg.Origin != "" {
		options = append(options, rpc.WithHeader("Origin", cfg.Origin))
	}

	client, err := rpc.DialOptions(ctx, cfg.URL, options...)
	if err != nil {
		return nil, &RPCError{Method: "dial " + cfg.URL, Err: err}
	}

	return NewRPCProvider(client, cfg, logger), nil
}

// Connect returns a provider for cfg and a function releasing it
// When the endpoint cannot be dialled it returns chains.Unavailable, whose marker probe fails
func Connect(ctx context.Context, cfg ProviderConfig, logger *slog.Logger) (chains.Provider, func()) {
	if logger == nil {
		logger = slog.Default()
	}

	provider, err := Dial(ctx, cfg, logger)
	if err != nil {
		logger.Warn("wallet endpoint unreachable", "url", cfg.URL, "error", err)
		return chains.Unavailable{}, func() {}
	}
	return provider, provider.Close
}
