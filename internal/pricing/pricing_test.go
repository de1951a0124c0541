package pricing

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestQuoteUsdNative(t *testing.T) {
	feed := NewFeed()
	feed.Update("ETH", decimal.NewFromInt(2000))

	q := feed.QuoteUsd(decimal.NewFromInt(10), "ETH")
	if !q.Priceable() {
		t.Fatal("expected priceable quote")
	}
	// 10 USD at 2000 USD/ETH is 0.005 ETH.
	if !q.TokenAmount.Equal(decimal.RequireFromString("0.005")) {
		t.Errorf("expected 0.005 ETH, got %s", q.TokenAmount)
	}
	if !q.UnitPriceUsd.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected unit price 2000, got %s", q.UnitPriceUsd)
	}
}

func TestQuoteUsdStablecoinPreSeeded(t *testing.T) {
	feed := NewFeed()

	q := feed.QuoteUsd(decimal.NewFromInt(25), "USDC")
	if !q.Priceable() {
		t.Fatal("expected stablecoins priceable without a feed update")
	}
	if !q.TokenAmount.Equal(decimal.NewFromInt(25)) {
		t.Errorf("expected 25 USDC, got %s", q.TokenAmount)
	}
}

func TestQuoteUsdUnknownTokenIsNotError(t *testing.T) {
	feed := NewFeed()

	q := feed.QuoteUsd(decimal.NewFromInt(10), "ETH")
	if q.Priceable() {
		t.Fatal("expected nil token amount before a price arrives")
	}
	if !q.UsdAmount.Equal(decimal.NewFromInt(10)) {
		t.Errorf("quote should still carry the USD amount, got %s", q.UsdAmount)
	}
}

func TestQuoteUsdNonPositiveAmount(t *testing.T) {
	feed := NewFeed()
	feed.Update("ETH", decimal.NewFromInt(2000))

	for _, amount := range []decimal.Decimal{decimal.Zero, decimal.NewFromInt(-10)} {
		q := feed.QuoteUsd(amount, "ETH")
		if q.Priceable() {
			t.Errorf("amount %s must not produce a token amount, got %s", amount, q.TokenAmount)
		}
		if !q.UsdAmount.Equal(amount) {
			t.Errorf("quote should echo the USD amount, got %s", q.UsdAmount)
		}
	}
}

func TestUpdateIgnoresNonPositive(t *testing.T) {
	feed := NewFeed()
	feed.Update("ETH", decimal.NewFromInt(2000))
	feed.Update("ETH", decimal.Zero)
	feed.Update("ETH", decimal.NewFromInt(-1))

	price, ok := feed.UnitPrice("ETH")
	if !ok || !price.Equal(decimal.NewFromInt(2000)) {
		t.Errorf("expected price to survive bad updates, got %s (ok=%v)", price, ok)
	}
}

func TestUsdValueRoundTrip(t *testing.T) {
	feed := NewFeed()
	feed.Update("ETH", decimal.NewFromInt(2000))

	q := feed.QuoteUsd(decimal.NewFromInt(10), "ETH")
	back := q.UsdValue(*q.TokenAmount)
	if !back.Equal(decimal.NewFromInt(10)) {
		t.Errorf("expected round trip to 10 USD, got %s", back)
	}
}

func TestUsdValueZeroPrice(t *testing.T) {
	var q Quote
	if got := q.UsdValue(decimal.NewFromInt(5)); !got.IsZero() {
		t.Errorf("expected zero for unpriced quote, got %s", got)
	}
}
