package handlers

import (
	"database/sql"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"

	"storefront/api_payments/internal/payments"
	"storefront/api_payments/internal/pricing"
	"storefront/api_payments/internal/wallet"
	"storefront/api_payments/pkg/logging"
)

var (
	db       *sql.DB
	logger   logging.Logger
	feed     *pricing.Feed
	manager  *payments.SessionManager
	reporter *payments.Reporter
	hdwallet *wallet.HDWallet
	metrics  *TellerMetrics
	validate = validator.New()
)

// TellerMetrics holds the custom payment metrics
type TellerMetrics struct {
	CheckoutSessions    *prometheus.CounterVec
	PaymentSubmissions  *prometheus.CounterVec
	SettlementsReported *prometheus.CounterVec

	DBQueries     *prometheus.CounterVec
	DBDuration    *prometheus.HistogramVec
	DBConnections *prometheus.GaugeVec
}

// Init initializes the handlers with their shared dependencies
func Init(database *sql.DB, log logging.Logger, priceFeed *pricing.Feed, sessions *payments.SessionManager, rep *payments.Reporter, hw *wallet.HDWallet, m *TellerMetrics) {
	db = database
	logger = log
	feed = priceFeed
	manager = sessions
	reporter = rep
	hdwallet = hw
	metrics = m
}
