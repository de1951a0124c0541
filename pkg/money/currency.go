package money

import (
	"github.com/shopspring/decimal"

	"storefront/api_payments/pkg/config"
)

const (
	defaultCurrencyEnv      = "STORE_CURRENCY"
	defaultCurrencyFallback = "USD"
)

// DefaultCurrency returns the storefront ledger currency used when no
// currency is specified.
func DefaultCurrency() string {
	return config.GetEnv(defaultCurrencyEnv, defaultCurrencyFallback)
}

// CentsToDecimal converts a minor-unit (cent) amount to a decimal major amount.
func CentsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// DecimalToCents converts a major amount to cents, truncating toward zero.
// Truncation is deliberate: a charge must never round up past what was quoted.
func DecimalToCents(amount decimal.Decimal) int64 {
	return amount.Shift(2).Truncate(0).IntPart()
}
