package pricing

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/rails"
)

// Quote is a priced amount for one rail selection. TokenAmount is nil when
// the pair cannot be priced (no feed entry yet); callers treat a nil quote
// amount as "cannot submit", never as zero.
type Quote struct {
	UsdAmount    decimal.Decimal  `json:"usd_amount"`
	Token        string           `json:"token"`
	UnitPriceUsd decimal.Decimal  `json:"unit_price_usd"`
	TokenAmount  *decimal.Decimal `json:"token_amount"`
	QuotedAt     time.Time        `json:"quoted_at"`
}

// Priceable reports whether the quote carries a usable token amount.
func (q Quote) Priceable() bool {
	return q.TokenAmount != nil
}

// UsdValue converts a token amount back to USD at the quote's unit price.
// The zero-price case returns zero rather than dividing.
func (q Quote) UsdValue(tokenAmount decimal.Decimal) decimal.Decimal {
	if q.UnitPriceUsd.IsZero() {
		return decimal.Zero
	}
	return tokenAmount.Mul(q.UnitPriceUsd)
}

// Feed caches token unit prices in USD. Prices arrive from an external
// source via Update; reads never block on the source being available.
type Feed struct {
	mu     sync.RWMutex
	prices map[string]decimal.Decimal
	asOf   map[string]time.Time
}

// NewFeed creates an empty price feed. Stablecoins are pre-seeded at 1 USD
// so checkout works before the first feed update lands.
func NewFeed() *Feed {
	f := &Feed{
		prices: make(map[string]decimal.Decimal),
		asOf:   make(map[string]time.Time),
	}
	now := time.Now()
	for _, token := range []string{rails.TokenUSDC, rails.TokenUSDT} {
		f.prices[token] = decimal.NewFromInt(1)
		f.asOf[token] = now
	}
	return f
}

// Update records a new unit price for a token. Non-positive prices are
// ignored so a broken feed cannot zero out checkout.
func (f *Feed) Update(token string, unitPriceUsd decimal.Decimal) {
	if !unitPriceUsd.IsPositive() {
		return
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prices[token] = unitPriceUsd
	f.asOf[token] = time.Now()
}

// UnitPrice returns the current unit price for a token, if known.
func (f *Feed) UnitPrice(token string) (decimal.Decimal, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	p, ok := f.prices[token]
	return p, ok
}

// QuoteUsd prices a USD order amount in the given token. When no unit price
// is known, or the amount itself is not positive, the returned quote has a
// nil TokenAmount: "cannot price" is a state, never a negative amount.
func (f *Feed) QuoteUsd(usdAmount decimal.Decimal, token string) Quote {
	q := Quote{
		UsdAmount: usdAmount,
		Token:     token,
		QuotedAt:  time.Now(),
	}

	if !usdAmount.IsPositive() {
		return q
	}

	price, ok := f.UnitPrice(token)
	if !ok || !price.IsPositive() {
		return q
	}

	amount := usdAmount.Div(price)
	q.UnitPriceUsd = price
	q.TokenAmount = &amount
	return q
}
