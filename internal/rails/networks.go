package rails

import (
	"os"
)

// NetworkConfig holds configuration for a blockchain network
type NetworkConfig struct {
	ChainID        int64
	Name           string // "ethereum", "base", etc.
	DisplayName    string // "Ethereum Mainnet", "Base", etc.
	RPCEndpointEnv string // Environment variable name for RPC endpoint
	NativeDecimals int32  // Decimals of the native coin (wei-style)
	USDCContract   string // USDC contract address on this network
	USDTContract   string // USDT contract address (empty if not deployed)
	Confirmations  int    // Required confirmations for settlement
	IsTestnet      bool   // Whether this is a testnet
}

// GetRPCEndpoint returns the RPC endpoint from environment
func (n NetworkConfig) GetRPCEndpoint() string {
	return os.Getenv(n.RPCEndpointEnv)
}

// Networks is the registry of all supported networks
var Networks = map[string]NetworkConfig{
	// Mainnets
	"ethereum": {
		ChainID:        1,
		Name:           "ethereum",
		DisplayName:    "Ethereum Mainnet",
		RPCEndpointEnv: "ETH_RPC_ENDPOINT",
		NativeDecimals: 18,
		USDCContract:   "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48",
		USDTContract:   "0xdAC17F958D2ee523a2206206994597C13D831ec7",
		Confirmations:  12,
		IsTestnet:      false,
	},
	"base": {
		ChainID:        8453,
		Name:           "base",
		DisplayName:    "Base",
		RPCEndpointEnv: "BASE_RPC_ENDPOINT",
		NativeDecimals: 18,
		USDCContract:   "0x833589fCD6eDb6E08f4c7C32D4f71b54bdA02913",
		USDTContract:   "", // No canonical USDT on Base
		Confirmations:  10,
		IsTestnet:      false,
	},
	"arbitrum": {
		ChainID:        42161,
		Name:           "arbitrum",
		DisplayName:    "Arbitrum One",
		RPCEndpointEnv: "ARBITRUM_RPC_ENDPOINT",
		NativeDecimals: 18,
		USDCContract:   "0xaf88d065e77c8cC2239327C5EDb3A432268e5831",
		USDTContract:   "0xFd086bC7CD5C481DCC9C85ebE478A1C0b69FCbb9",
		Confirmations:  10,
		IsTestnet:      false,
	},

	// Testnets
	"base-sepolia": {
		ChainID:        84532,
		Name:           "base-sepolia",
		DisplayName:    "Base Sepolia",
		RPCEndpointEnv: "BASE_SEPOLIA_RPC_ENDPOINT",
		NativeDecimals: 18,
		USDCContract:   "0x036CbD53842c5426634e7929541eC2318f3dCF7e",
		USDTContract:   "",
		Confirmations:  5,
		IsTestnet:      true,
	},
}

// NetworkByChainID returns the network config for a given chain ID
func NetworkByChainID(chainID int64) (NetworkConfig, bool) {
	for _, n := range Networks {
		if n.ChainID == chainID {
			return n, true
		}
	}
	return NetworkConfig{}, false
}

// PaymentNetworks returns all networks available for checkout
func PaymentNetworks(includeTestnets bool) []NetworkConfig {
	var networks []NetworkConfig
	for _, n := range Networks {
		if includeTestnets || !n.IsTestnet {
			networks = append(networks, n)
		}
	}
	return networks
}

// DefaultRPCEndpoints returns sensible defaults for public RPC endpoints
var DefaultRPCEndpoints = map[string]string{
	"ETH_RPC_ENDPOINT":          "https://eth.publicnode.com",
	"BASE_RPC_ENDPOINT":         "https://base.publicnode.com",
	"ARBITRUM_RPC_ENDPOINT":     "https://arb1.arbitrum.io/rpc",
	"BASE_SEPOLIA_RPC_ENDPOINT": "https://base-sepolia.publicnode.com",
}

// GetRPCEndpointWithDefault returns the RPC endpoint, falling back to default
func (n NetworkConfig) GetRPCEndpointWithDefault() string {
	if endpoint := os.Getenv(n.RPCEndpointEnv); endpoint != "" {
		return endpoint
	}
	return DefaultRPCEndpoints[n.RPCEndpointEnv]
}
