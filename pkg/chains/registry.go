package chains

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sigweihq/walletsession/pkg/constants"
	"github.com/sigweihq/walletsession/pkg/types"
	"github.com/sigweihq/walletsession/pkg/utils"
)

// Registry resolves chain identifiers to network names
type Registry struct {
	networks map[string]types.Network
	mu       sync.RWMutex
}

var (
	globalRegistry     *Registry
	globalRegistryOnce sync.Once
)

// NewRegistry creates a registry seeded with constants.KnownNetworks
func NewRegistry() *Registry {
	r := &Registry{
		networks: make(map[string]types.Network, len(constants.KnownNetworks)),
	}
	for chainID, name := range constants.KnownNetworks {
		r.networks[chainID] = types.Network{
			ChainID: chainID,
			Name:    name,
			Testnet: constants.TestNetworks[chainID],
		}
	}
	return r
}

// InitGlobalRegistry initializes the global network registry
func InitGlobalRegistry() *Registry {
	globalRegistryOnce.Do(func() {
		globalRegistry = NewRegistry()
	})
	return globalRegistry
}

// GetGlobalRegistry returns the global network registry (returns nil if not initialized)
func GetGlobalRegistry() *Registry {
	return globalRegistry
}

// Register adds a network keyed by its normalized chain ID
// If a network already exists for the chain ID, it will be replaced (idempotent)
func (r *Registry) Register(network types.Network) error {
	if network.ChainID == "" {
		return fmt.Errorf("network %q has no chain ID", network.Name)
	}
	if network.Name == "" {
		return fmt.Errorf("network %s has no name", network.ChainID)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	network.ChainID = utils.NormalizeChainID(network.ChainID)
	r.networks[network.ChainID] = network
	return nil
}

// Get retrieves a network by chain ID
func (r *Registry) Get(chainID string) (types.Network, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	network, exists := r.networks[utils.NormalizeChainID(chainID)]
	if !exists {
		return types.Network{}, fmt.Errorf("no network registered for chain ID: %s", chainID)
	}

	return network, nil
}

// Name returns the display name for chainID, "Chain ID: <raw>" when unknown
func (r *Registry) Name(chainID string) string {
	if network, err := r.Get(chainID); err == nil {
		return network.Name
	}
	return fmt.Sprintf("Chain ID: %s", chainID)
}

// Networks returns all registered networks ordered by chain ID
func (r *Registry) Networks() []types.Network {
	r.mu.RLock()
	defer r.mu.RUnlock()

	networks := make([]types.Network, 0, len(r.networks))
	for _, network := range r.networks {
		networks = append(networks, network)
	}
	sort.Slice(networks, func(i, j int) bool {
		return utils.ChainIDLess(networks[i].ChainID, networks[j].ChainID)
	})
	return networks
}

// IsSupported checks if a chain ID is registered
func (r *Registry) IsSupported(chainID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, exists := r.networks[utils.NormalizeChainID(chainID)]
	return exists
}

// Unregister removes a network (useful for testing)
func (r *Registry) Unregister(chainID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.networks, utils.NormalizeChainID(chainID))
}

// ResetGlobalRegistry resets the global registry (useful for testing)
func ResetGlobalRegistry() {
	globalRegistry = nil
	globalRegistryOnce = sync.Once{}
}
