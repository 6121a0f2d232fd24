package evm

import (
	"log/slog"

	"github.com/sigweihq/walletsession/pkg/chains"
	"github.com/sigweihq/walletsession/pkg/types"
)

// InitNetworks initializes the global network registry with the known EVM networks
// plus any extra networks supplied by configuration
func InitNetworks(logger *slog.Logger, extra ...types.Network) *chains.Registry {
	if logger == nil {
		logger = slog.Default()
	}

	registry := chains.InitGlobalRegistry()

	for _, network := range extra {
		if err := registry.Register(network); err != nil {
			logger.Warn("failed to register network", "chainId", network.ChainID, "name", network.Name, "error", err)
			continue
		}
		logger.Debug("registered network", "chainId", network.ChainID, "name", network.Name)
	}

	return registry
}
