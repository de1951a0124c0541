package handlers

import (
	"context"
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/payments"
)

type captureSink struct {
	externalRef string
	amountUsd   decimal.Decimal
	rail        string
	calls       int
}

func (c *captureSink) ReportPaymentSuccess(ctx context.Context, externalRef string, amountUsd decimal.Decimal, rail string) error {
	c.externalRef = externalRef
	c.amountUsd = amountUsd
	c.rail = rail
	c.calls++
	return nil
}

func TestGatewayWebhookSettlementUsesSessionAmount(t *testing.T) {
	router := setupTestRouter(t)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO payments.settlement_receipts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := &captureSink{}
	reporter = payments.NewReporter(db, sink, logger, nil)

	createSession(t, router, "order-wh-1", "42.50")

	// The gateway omits the amount; the session opened for the order fills
	// it in.
	w := doJSON(t, router, http.MethodPost, "/webhooks/gateway", gin.H{
		"order_ref":  "order-wh-1",
		"session_id": "sess_wh_1",
		"status":     "completed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if sink.calls != 1 {
		t.Fatalf("expected one delivery, got %d", sink.calls)
	}
	if !sink.amountUsd.Equal(decimal.RequireFromString("42.50")) {
		t.Errorf("expected session amount 42.50 reported, got %s", sink.amountUsd)
	}
	if sink.externalRef != "sess_wh_1" {
		t.Errorf("expected session id as external ref, got %s", sink.externalRef)
	}
	if sink.rail != payments.RailGateway {
		t.Errorf("expected gateway rail, got %s", sink.rail)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestGatewayWebhookExplicitAmountWins(t *testing.T) {
	router := setupTestRouter(t)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO payments.settlement_receipts").
		WillReturnResult(sqlmock.NewResult(0, 1))

	sink := &captureSink{}
	reporter = payments.NewReporter(db, sink, logger, nil)

	createSession(t, router, "order-wh-2", "42.50")

	w := doJSON(t, router, http.MethodPost, "/webhooks/gateway", gin.H{
		"order_ref":  "order-wh-2",
		"session_id": "sess_wh_2",
		"status":     "completed",
		"amount":     "40.00",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	if sink.calls != 1 {
		t.Fatalf("expected one delivery, got %d", sink.calls)
	}
	if !sink.amountUsd.Equal(decimal.RequireFromString("40.00")) {
		t.Errorf("expected gateway amount 40.00 reported, got %s", sink.amountUsd)
	}
}
