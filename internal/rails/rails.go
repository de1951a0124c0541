package rails

import "strings"

// Token symbols accepted at checkout.
const (
	TokenETH  = "ETH"
	TokenUSDC = "USDC"
	TokenUSDT = "USDT"
)

// StablecoinDecimals is the on-chain precision of the stablecoins we accept.
// Both USDC and USDT use 6 decimals on every network we support.
const StablecoinDecimals = 6

// RailDescriptor describes one concrete way to pay: a token on a network.
// A descriptor with Supported=false is a valid answer, not an error; the
// checkout UI uses it to grey out combinations instead of failing.
type RailDescriptor struct {
	Network         string `json:"network"`
	ChainID         int64  `json:"chain_id"`
	Token           string `json:"token"`
	Decimals        int32  `json:"decimals"`
	ContractAddress string `json:"contract_address,omitempty"`
	Native          bool   `json:"native"`
	Supported       bool   `json:"supported"`
}

// Resolve maps a (network, token) selection to a rail descriptor. Unknown
// networks and tokens the network does not carry resolve to an unsupported
// descriptor that still echoes the selection.
func Resolve(network, token string) RailDescriptor {
	token = strings.ToUpper(strings.TrimSpace(token))
	network = strings.ToLower(strings.TrimSpace(network))

	desc := RailDescriptor{Network: network, Token: token}

	cfg, ok := Networks[network]
	if !ok {
		return desc
	}
	desc.ChainID = cfg.ChainID

	switch token {
	case TokenETH:
		desc.Decimals = cfg.NativeDecimals
		desc.Native = true
		desc.Supported = true
	case TokenUSDC:
		if cfg.USDCContract != "" {
			desc.Decimals = StablecoinDecimals
			desc.ContractAddress = cfg.USDCContract
			desc.Supported = true
		}
	case TokenUSDT:
		if cfg.USDTContract != "" {
			desc.Decimals = StablecoinDecimals
			desc.ContractAddress = cfg.USDTContract
			desc.Supported = true
		}
	}

	return desc
}

// SupportedTokens lists the descriptors available on a network, native coin
// first. An unknown network yields an empty list.
func SupportedTokens(network string) []RailDescriptor {
	var out []RailDescriptor
	for _, token := range []string{TokenETH, TokenUSDC, TokenUSDT} {
		if desc := Resolve(network, token); desc.Supported {
			out = append(out, desc)
		}
	}
	return out
}

// IsStablecoin reports whether the token is a USD-pegged stablecoin.
func IsStablecoin(token string) bool {
	switch strings.ToUpper(token) {
	case TokenUSDC, TokenUSDT:
		return true
	}
	return false
}
