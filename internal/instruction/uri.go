package instruction

import (
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// transferSelector is the 4-byte selector of ERC-20 transfer(address,uint256).
var transferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

// TransferCalldata encodes an ERC-20 transfer call as 0x-prefixed hex.
func TransferCalldata(to string, amount *big.Int) string {
	data := make([]byte, 0, 4+32+32)
	data = append(data, transferSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(to).Bytes(), 32)...)
	data = append(data, common.LeftPadBytes(amount.Bytes(), 32)...)
	return "0x" + common.Bytes2Hex(data)
}

// NativeTransferURI renders a wallet-openable payment URI for a native coin
// transfer, e.g. ethereum:0xabc...@8453?value=5000000000000000.
func NativeTransferURI(chainID int64, to string, amountWei *big.Int) string {
	return fmt.Sprintf("ethereum:%s@%d?value=%s", to, chainID, amountWei.String())
}

// TokenTransferURI renders a payment URI for an ERC-20 transfer, addressing
// the contract and carrying the recipient and amount as call parameters.
func TokenTransferURI(chainID int64, contract, to string, amount *big.Int) string {
	return fmt.Sprintf("ethereum:%s@%d/transfer?address=%s&uint256=%s",
		contract, chainID, to, amount.String())
}

// ParsedURI is the decoded form of a payment URI. For native transfers Target
// is the recipient; for token transfers Target is the contract and Recipient
// carries the destination.
type ParsedURI struct {
	Target    string
	ChainID   int64
	Function  string
	Recipient string
	Amount    *big.Int
}

// ParseURI decodes a payment URI produced by this package. It accepts both
// the native value form and the contract call form.
func ParseURI(raw string) (ParsedURI, error) {
	var p ParsedURI

	rest, ok := strings.CutPrefix(raw, "ethereum:")
	if !ok {
		return p, fmt.Errorf("not an ethereum URI: %s", raw)
	}

	head, query, _ := strings.Cut(rest, "?")
	target, fn, _ := strings.Cut(head, "/")

	addr, chain, ok := strings.Cut(target, "@")
	if !ok {
		return p, fmt.Errorf("missing chain ID: %s", raw)
	}
	if !common.IsHexAddress(addr) {
		return p, fmt.Errorf("invalid address %s", addr)
	}
	chainID, err := strconv.ParseInt(chain, 10, 64)
	if err != nil {
		return p, fmt.Errorf("invalid chain ID %s: %w", chain, err)
	}

	params, err := url.ParseQuery(query)
	if err != nil {
		return p, fmt.Errorf("invalid query: %w", err)
	}

	p.Target = common.HexToAddress(addr).Hex()
	p.ChainID = chainID
	p.Function = fn

	switch fn {
	case "":
		value := params.Get("value")
		if value == "" {
			return p, fmt.Errorf("native transfer without value: %s", raw)
		}
		amount, ok := new(big.Int).SetString(value, 10)
		if !ok {
			return p, fmt.Errorf("invalid value %s", value)
		}
		p.Recipient = p.Target
		p.Amount = amount
	case "transfer":
		recipient := params.Get("address")
		if !common.IsHexAddress(recipient) {
			return p, fmt.Errorf("invalid transfer recipient %s", recipient)
		}
		amount, ok := new(big.Int).SetString(params.Get("uint256"), 10)
		if !ok {
			return p, fmt.Errorf("invalid transfer amount %s", params.Get("uint256"))
		}
		p.Recipient = common.HexToAddress(recipient).Hex()
		p.Amount = amount
	default:
		return p, fmt.Errorf("unsupported function %s", fn)
	}

	return p, nil
}
