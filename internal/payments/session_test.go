package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/gateway"
	"storefront/api_payments/internal/pricing"
)

func testManager(t *testing.T, gatewayURL string) *SessionManager {
	t.Helper()
	feed := pricing.NewFeed()
	feed.Update("ETH", decimal.NewFromInt(2000))

	var gw *gateway.Client
	if gatewayURL != "" {
		gw = gateway.NewClient(gatewayURL, "key", testLogger())
	}
	adapter := NewAdapter(nil, nil, nil, gw, nil, testLogger())
	tracker := NewTracker(TrackerConfig{
		PollInterval: time.Millisecond,
		BackoffBase:  time.Millisecond,
		BackoffCap:   4 * time.Millisecond,
		RetryBudget:  5,
		StallAfter:   time.Hour,
	}, testLogger())
	return NewSessionManager(feed, adapter, tracker, nil, testLogger())
}

func TestSessionSelectionReprices(t *testing.T) {
	m := testManager(t, "")
	s, err := m.Create("order-1", decimal.NewFromInt(10))
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	view, err := m.Select(s, RailOnchain, "base", "ETH")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !view.Selection.Supported {
		t.Fatal("expected supported selection")
	}
	if view.Quote.TokenAmount == nil || !view.Quote.TokenAmount.Equal(decimal.RequireFromString("0.005")) {
		t.Errorf("expected 0.005 ETH quote, got %v", view.Quote.TokenAmount)
	}

	// Changing the amount reprices the existing selection.
	view, err = m.SetAmount(s, decimal.NewFromInt(20))
	if err != nil {
		t.Fatalf("SetAmount failed: %v", err)
	}
	if !view.Quote.TokenAmount.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("expected 0.01 ETH after amount change, got %v", view.Quote.TokenAmount)
	}
}

func TestSessionUnsupportedSelectionSticks(t *testing.T) {
	m := testManager(t, "")
	s, _ := m.Create("order-2", decimal.NewFromInt(10))

	view, err := m.Select(s, RailOnchain, "base", "USDT")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if view.Selection.Supported {
		t.Fatal("expected unsupported selection")
	}
	if view.Quote.Priceable() {
		t.Error("unsupported selection must not carry a token amount")
	}

	// Submitting on an unpayable selection is refused.
	if _, err := m.Submit(context.Background(), s, SubmitRequest{TxHash: "0x1"}); err == nil {
		t.Error("expected submit to fail on unsupported rail")
	}

	// Switching to a valid pair recovers.
	view, err = m.Select(s, RailOnchain, "base", "USDC")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !view.Selection.Supported || !view.Quote.Priceable() {
		t.Error("expected supported, priced selection after switch")
	}
}

func TestSessionNetworkSwitchClearsIncompatibleToken(t *testing.T) {
	m := testManager(t, "")
	s, _ := m.Create("order-6", decimal.NewFromInt(10))

	// USDT exists on ethereum but not on base.
	view, err := m.Select(s, RailOnchain, "ethereum", "USDT")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if !view.Selection.Supported {
		t.Fatal("expected USDT supported on ethereum")
	}

	// Switching network without naming a token must not silently keep the
	// incompatible one selected.
	view, err = m.Select(s, RailOnchain, "base", "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if view.Selection.Token != "" {
		t.Errorf("expected token cleared on network switch, got %s", view.Selection.Token)
	}
	if view.Selection.Supported {
		t.Error("expected tokenless selection to be unpayable")
	}
	if view.Quote.Priceable() {
		t.Error("cleared selection must not carry a token amount")
	}

	// A compatible token survives the same switch.
	m.Select(s, RailOnchain, "ethereum", "USDC")
	view, err = m.Select(s, RailOnchain, "base", "")
	if err != nil {
		t.Fatalf("Select failed: %v", err)
	}
	if view.Selection.Token != "USDC" || !view.Selection.Supported {
		t.Errorf("expected USDC carried to base, got %+v", view.Selection)
	}
}

func TestSessionFindByOrderRef(t *testing.T) {
	m := testManager(t, "")
	s, _ := m.Create("order-find", decimal.RequireFromString("42.50"))

	found, ok := m.FindByOrderRef("order-find")
	if !ok || found.ID != s.ID {
		t.Fatalf("expected session found by order ref, got %v", ok)
	}
	if !found.Amount().Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("expected amount 42.50, got %s", found.Amount())
	}

	if _, ok := m.FindByOrderRef("order-unknown"); ok {
		t.Error("expected no session for unknown order ref")
	}
}

func TestSessionInstructionFollowsSelection(t *testing.T) {
	m := testManager(t, "")
	s, _ := m.Create("order-3", decimal.NewFromInt(10))
	m.Select(s, RailOnchain, "base", "ETH")

	instr, err := m.Instruction(s, "0x1111111111111111111111111111111111111111")
	if err != nil {
		t.Fatalf("Instruction failed: %v", err)
	}
	if instr.Kind() != "native_transfer" {
		t.Errorf("expected native transfer, got %s", instr.Kind())
	}

	m.Select(s, RailGateway, "", "")
	if _, err := m.Instruction(s, "0x1111111111111111111111111111111111111111"); err == nil {
		t.Error("expected no instruction for hosted rail")
	}
}

func TestSessionGatewaySubmitTracksToSettled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"payment_url":"https://pay.example/p/1","session_id":"sess_9"}`))
			return
		}
		w.Write([]byte(`{"status":"completed"}`))
	}))
	defer srv.Close()

	m := testManager(t, srv.URL)
	s, _ := m.Create("order-4", decimal.NewFromInt(25))
	m.Select(s, RailGateway, "", "")

	result, err := m.Submit(context.Background(), s, SubmitRequest{})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if result.PaymentURL != "https://pay.example/p/1" {
		t.Errorf("unexpected payment URL %s", result.PaymentURL)
	}

	deadline := time.After(2 * time.Second)
	for m.State(s).Phase != PhaseSettled {
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for settlement, phase %v", m.State(s).Phase)
		case <-time.After(5 * time.Millisecond):
		}
	}

	view := m.View(s)
	if view.Phase != "settled" {
		t.Errorf("expected settled view, got %s", view.Phase)
	}
}

func TestSessionCancelStopsTracking(t *testing.T) {
	polled := make(chan struct{}, 64)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if r.Method == http.MethodPost {
			w.Write([]byte(`{"payment_url":"https://pay.example/p/1","session_id":"sess_9"}`))
			return
		}
		select {
		case polled <- struct{}{}:
		default:
		}
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	m := testManager(t, srv.URL)
	s, _ := m.Create("order-5", decimal.NewFromInt(25))
	m.Select(s, RailGateway, "", "")

	if _, err := m.Submit(context.Background(), s, SubmitRequest{}); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	m.Cancel(s)

	view := m.View(s)
	if !view.Cancelled {
		t.Error("expected cancelled view")
	}
	if _, err := m.Submit(context.Background(), s, SubmitRequest{}); err == nil {
		t.Error("expected submit on cancelled session to fail")
	}
}
