package constants

import "time"

const (
	DefaultProviderURL  = "ws://127.0.0.1:1248" // local wallet websocket endpoint
	ProbeTimeout        = 3 * time.Second        // timeout for the provider marker probe
	BalanceDisplayScale = 4                      // decimal places kept for display balances
)

// JSON-RPC methods of the wallet provider
const (
	MethodAccounts        = "eth_accounts"
	MethodRequestAccounts = "eth_requestAccounts"
	MethodChainID         = "eth_chainId"
	MethodGetBalance      = "eth_getBalance"
	MethodSwitchChain     = "wallet_switchEthereumChain"
	MethodClientVersion   = "web3_clientVersion"
	SubscriptionNamespace = "eth"
	SubscriptionAccounts  = "accountsChanged"
	SubscriptionChainID   = "chainChanged"
	BlockTagLatest        = "latest"
)

// EIP-1193 / JSON-RPC error codes reported by wallets
const (
	CodeUserRejected   = 4001
	CodeChainNotAdded  = 4902
	CodeRequestPending = -32002
	CodeInternalError  = -32603
)

// Chain identifiers
const (
	ChainEthereum = "0x1"
	ChainGoerli   = "0x5"
	ChainSepolia  = "0xaa36a7"
	ChainPolygon  = "0x89"
	ChainMumbai   = "0x13881"
	ChainArbitrum = "0xa4b1"
	ChainOptimism = "0xa"
)

// KnownNetworks maps hex chain identifiers to display names
var KnownNetworks = map[string]string{
	ChainEthereum: "Ethereum Mainnet",
	ChainGoerli:   "Goerli Testnet",
	ChainSepolia:  "Sepolia Testnet",
	ChainPolygon:  "Polygon Mainnet",
	ChainMumbai:   "Mumbai Testnet",
	ChainArbitrum: "Arbitrum",
	ChainOptimism: "Optimism",
}

var TestNetworks = map[string]bool{
	ChainGoerli:  true,
	ChainSepolia: true,
	ChainMumbai:  true,
}
