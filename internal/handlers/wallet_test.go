package handlers

import (
	"net/http"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"

	"storefront/api_payments/internal/wallet"
)

const testXpub = "xpub6DZ3xpo1ixWwwNDQ7KFTamRVM46FQtgcDxsmAyeBpTHEo79E1n1LuWiZSMSRhqMQmrHaqJpek2TbtTzbAdNWJm9AhGdv7iJUpDjA6oJD84b"

func TestInitializeWalletUnconfigured(t *testing.T) {
	router := setupTestRouter(t)

	w := doJSON(t, router, http.MethodPost, "/internal/wallet", gin.H{
		"xpub": testXpub, "network": "mainnet",
	})
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without a wallet database, got %d", w.Code)
	}
}

func TestInitializeWallet(t *testing.T) {
	router := setupTestRouter(t)

	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	mock.ExpectExec("INSERT INTO payments.hd_wallet_state").
		WillReturnResult(sqlmock.NewResult(0, 1))

	hdwallet = wallet.NewHDWallet(db, logger)
	defer func() { hdwallet = nil }()

	w := doJSON(t, router, http.MethodPost, "/internal/wallet", gin.H{
		"xpub": testXpub, "network": "mainnet",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Errorf("unmet expectations: %v", err)
	}
}

func TestInitializeWalletValidation(t *testing.T) {
	router := setupTestRouter(t)

	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}
	defer db.Close()
	hdwallet = wallet.NewHDWallet(db, logger)
	defer func() { hdwallet = nil }()

	cases := []gin.H{
		{},
		{"xpub": testXpub},
		{"xpub": testXpub, "network": "dogenet"},
		{"xpub": "not-a-key", "network": "mainnet"},
	}
	for _, body := range cases {
		w := doJSON(t, router, http.MethodPost, "/internal/wallet", body)
		if w.Code != http.StatusBadRequest {
			t.Errorf("body %v: expected 400, got %d", body, w.Code)
		}
	}
}
