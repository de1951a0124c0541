package instruction

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/pricing"
	"storefront/api_payments/internal/rails"
)

// Build failure kinds. Handlers map these to distinct client errors instead
// of one opaque 500.
var (
	ErrUnsupportedRail    = errors.New("rail not supported")
	ErrMissingDestination = errors.New("destination address required")
	ErrInvalidDestination = errors.New("destination address invalid")
	ErrUnpriced           = errors.New("quote has no token amount")
	ErrNonPositiveAmount  = errors.New("amount must be positive")
)

// PaymentInstruction is what a client needs to actually pay: one of
// NativeTransfer, TokenTransfer or GatewaySession.
type PaymentInstruction interface {
	// Kind returns the instruction discriminator for wire encoding.
	Kind() string
}

// NativeTransfer instructs a plain value transfer of the chain's native coin.
type NativeTransfer struct {
	ChainID    int64           `json:"chain_id"`
	To         string          `json:"to"`
	AmountWei  *big.Int        `json:"-"`
	Amount     string          `json:"amount"`
	TokenValue decimal.Decimal `json:"token_value"`
	URI        string          `json:"uri"`
}

func (NativeTransfer) Kind() string { return "native_transfer" }

// TokenTransfer instructs an ERC-20 transfer call against the token contract.
type TokenTransfer struct {
	ChainID    int64           `json:"chain_id"`
	Contract   string          `json:"contract"`
	To         string          `json:"to"`
	AmountBase *big.Int        `json:"-"`
	Amount     string          `json:"amount"`
	TokenValue decimal.Decimal `json:"token_value"`
	Calldata   string          `json:"calldata"`
	URI        string          `json:"uri"`
}

func (TokenTransfer) Kind() string { return "token_transfer" }

// GatewaySession instructs a browser redirect to a hosted payment page.
type GatewaySession struct {
	PaymentURL string `json:"payment_url"`
	SessionID  string `json:"session_id"`
}

func (GatewaySession) Kind() string { return "gateway_session" }

// MinorUnits converts a token amount to its integer on-chain representation,
// truncating toward zero. A buyer is never asked to overpay by a fractional
// base unit; the sub-unit remainder is simply dropped.
func MinorUnits(amount decimal.Decimal, decimals int32) *big.Int {
	return amount.Shift(decimals).Truncate(0).BigInt()
}

// Build produces the on-chain payment instruction for a quoted rail. Gateway
// and card rails do not pass through here; they get sessions from their own
// clients.
func Build(desc rails.RailDescriptor, destination string, quote pricing.Quote) (PaymentInstruction, error) {
	if !desc.Supported {
		return nil, fmt.Errorf("%w: %s on %s", ErrUnsupportedRail, desc.Token, desc.Network)
	}
	if !quote.Priceable() {
		return nil, ErrUnpriced
	}
	if !quote.TokenAmount.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	destination = strings.TrimSpace(destination)
	if destination == "" {
		return nil, ErrMissingDestination
	}
	if !common.IsHexAddress(destination) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidDestination, destination)
	}
	to := common.HexToAddress(destination).Hex()

	units := MinorUnits(*quote.TokenAmount, desc.Decimals)

	if desc.Native {
		return NativeTransfer{
			ChainID:    desc.ChainID,
			To:         to,
			AmountWei:  units,
			Amount:     units.String(),
			TokenValue: *quote.TokenAmount,
			URI:        NativeTransferURI(desc.ChainID, to, units),
		}, nil
	}

	contract := common.HexToAddress(desc.ContractAddress).Hex()
	return TokenTransfer{
		ChainID:    desc.ChainID,
		Contract:   contract,
		To:         to,
		AmountBase: units,
		Amount:     units.String(),
		TokenValue: *quote.TokenAmount,
		Calldata:   TransferCalldata(to, units),
		URI:        TokenTransferURI(desc.ChainID, contract, to, units),
	}, nil
}
