package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"storefront/api_payments/internal/payments"
	"storefront/api_payments/internal/pricing"
)

func setupTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)

	priceFeed := pricing.NewFeed()
	priceFeed.Update("ETH", decimal.NewFromInt(2000))

	adapter := payments.NewAdapter(nil, nil, nil, nil, nil, log)
	tracker := payments.NewTracker(payments.TrackerConfig{
		PollInterval: time.Millisecond,
		BackoffBase:  time.Millisecond,
		BackoffCap:   4 * time.Millisecond,
		RetryBudget:  5,
		StallAfter:   time.Hour,
	}, log)
	sessions := payments.NewSessionManager(priceFeed, adapter, tracker, nil, log)

	Init(nil, log, priceFeed, sessions, nil, nil, nil)

	router := gin.New()
	router.GET("/checkout/rails", GetRails)
	router.POST("/checkout/sessions", CreateSession)
	router.POST("/checkout/sessions/:id/select", SelectRail)
	router.POST("/checkout/sessions/:id/amount", SetAmount)
	router.GET("/checkout/sessions/:id/instruction", GetInstruction)
	router.GET("/checkout/sessions/:id", GetSessionStatus)
	router.POST("/checkout/sessions/:id/cancel", CancelSession)
	router.POST("/webhooks/gateway", HandleGatewayWebhook)
	router.POST("/internal/wallet", InitializeWallet)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func createSession(t *testing.T, router *gin.Engine, orderRef, amount string) string {
	t.Helper()
	w := doJSON(t, router, http.MethodPost, "/checkout/sessions", gin.H{
		"order_ref":  orderRef,
		"amount_usd": amount,
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", w.Code, w.Body.String())
	}
	var resp struct {
		SessionID string `json:"session_id"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.SessionID == "" {
		t.Fatal("expected session id")
	}
	return resp.SessionID
}

func TestGetRails(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodGet, "/checkout/rails", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var resp struct {
		Networks []struct {
			Network string `json:"network"`
			Testnet bool   `json:"testnet"`
		} `json:"networks"`
		HostedRails []string `json:"hosted_rails"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(resp.Networks) == 0 {
		t.Error("expected at least one network")
	}
	for _, n := range resp.Networks {
		if n.Testnet {
			t.Errorf("testnet %s listed without testnets=true", n.Network)
		}
	}
	if len(resp.HostedRails) != 2 {
		t.Errorf("expected gateway and card rails, got %v", resp.HostedRails)
	}
}

func TestCreateSessionValidation(t *testing.T) {
	router := setupTestRouter(t)

	cases := []gin.H{
		{},
		{"order_ref": "order-1"},
		{"order_ref": "order-1", "amount_usd": "not-a-number"},
		{"order_ref": "order-1", "amount_usd": "-5"},
		{"order_ref": "order-1", "amount_usd": "0"},
	}
	for _, body := range cases {
		w := doJSON(t, router, http.MethodPost, "/checkout/sessions", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", body, w.Code)
		}
	}
}

func TestSelectRailQuotes(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-1", "10")

	w := doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/select", gin.H{
		"rail": "onchain", "network": "base", "token": "ETH",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var view struct {
		Selection struct {
			Supported bool `json:"supported"`
		} `json:"selection"`
		Quote struct {
			TokenAmount *string `json:"token_amount"`
		} `json:"quote"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &view); err != nil {
		t.Fatalf("failed to decode view: %v", err)
	}
	if !view.Selection.Supported {
		t.Error("expected supported selection")
	}
	if view.Quote.TokenAmount == nil || *view.Quote.TokenAmount != "0.005" {
		t.Errorf("expected 0.005 ETH quote, got %v", view.Quote.TokenAmount)
	}
}

func TestSelectRailUnsupportedIs200(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-2", "10")

	w := doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/select", gin.H{
		"rail": "onchain", "network": "base", "token": "USDT",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200 for unsupported pair, got %d", w.Code)
	}

	var view struct {
		Selection struct {
			Supported bool `json:"supported"`
		} `json:"selection"`
	}
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Selection.Supported {
		t.Error("expected unsupported selection")
	}
}

func TestSelectRailValidation(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-3", "10")

	// onchain requires a network; token may be omitted
	w := doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/select", gin.H{
		"rail": "onchain",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for missing network, got %d", w.Code)
	}

	w = doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/select", gin.H{
		"rail": "bank_transfer",
	})
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for unknown rail, got %d", w.Code)
	}
}

func TestGetInstruction(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-4", "10")
	doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/select", gin.H{
		"rail": "onchain", "network": "base", "token": "ETH",
	})

	w := doJSON(t, router, http.MethodGet,
		"/checkout/sessions/"+id+"/instruction?destination=0x1111111111111111111111111111111111111111", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}

	var resp struct {
		Kind        string `json:"kind"`
		Instruction struct {
			Amount string `json:"amount"`
			URI    string `json:"uri"`
		} `json:"instruction"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Kind != "native_transfer" {
		t.Errorf("expected native_transfer, got %s", resp.Kind)
	}
	if resp.Instruction.Amount != "5000000000000000" {
		t.Errorf("expected 5000000000000000 wei, got %s", resp.Instruction.Amount)
	}

	// No destination and no HD wallet configured
	w = doJSON(t, router, http.MethodGet, "/checkout/sessions/"+id+"/instruction", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without destination, got %d", w.Code)
	}
}

func TestSessionStatusAndCancel(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-5", "10")

	w := doJSON(t, router, http.MethodGet, "/checkout/sessions/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view struct {
		Phase string `json:"phase"`
	}
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Phase != "idle" {
		t.Errorf("expected idle phase, got %s", view.Phase)
	}

	w = doJSON(t, router, http.MethodPost, "/checkout/sessions/"+id+"/cancel", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var cancelled struct {
		Cancelled bool `json:"cancelled"`
	}
	json.Unmarshal(w.Body.Bytes(), &cancelled)
	if !cancelled.Cancelled {
		t.Error("expected cancelled session")
	}

	w = doJSON(t, router, http.MethodGet, "/checkout/sessions/unknown", nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("expected 404 for unknown session, got %d", w.Code)
	}
}

func TestSessionStatusFallbackPhase(t *testing.T) {
	router := setupTestRouter(t)
	id := createSession(t, router, "order-7", "10")

	// A parent flow that already knows a payment is under way can pass its
	// phase; it holds until the first local attempt exists.
	w := doJSON(t, router, http.MethodGet, "/checkout/sessions/"+id+"?fallback=confirming", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	var view struct {
		Phase string `json:"phase"`
	}
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Phase != "confirming" {
		t.Errorf("expected confirming from fallback, got %s", view.Phase)
	}

	// Garbage hints read as idle.
	w = doJSON(t, router, http.MethodGet, "/checkout/sessions/"+id+"?fallback=banana", nil)
	json.Unmarshal(w.Body.Bytes(), &view)
	if view.Phase != "idle" {
		t.Errorf("expected idle for unknown fallback, got %s", view.Phase)
	}
}

func TestGatewayWebhookAlwaysAcks(t *testing.T) {
	router := setupTestRouter(t)

	// Terminal failure, non-terminal status, and garbage all get 200.
	for _, body := range []interface{}{
		gin.H{"order_ref": "order-6", "session_id": "sess_1", "status": "failed"},
		gin.H{"order_ref": "order-6", "session_id": "sess_1", "status": "pending"},
		"not json at all",
	} {
		w := doJSON(t, router, http.MethodPost, "/webhooks/gateway", body)
		if w.Code != http.StatusOK {
			t.Errorf("body %v: expected 200, got %d", body, w.Code)
		}
	}
}
