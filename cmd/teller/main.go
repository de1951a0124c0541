package main

import (
	"time"

	"storefront/api_payments/internal/cards"
	"storefront/api_payments/internal/gateway"
	"storefront/api_payments/internal/handlers"
	"storefront/api_payments/internal/orders"
	"storefront/api_payments/internal/payments"
	"storefront/api_payments/internal/pricing"
	"storefront/api_payments/internal/wallet"
	"storefront/api_payments/pkg/auth"
	"storefront/api_payments/pkg/config"
	"storefront/api_payments/pkg/database"
	"storefront/api_payments/pkg/logging"
	"storefront/api_payments/pkg/monitoring"
	"storefront/api_payments/pkg/server"
	"storefront/api_payments/pkg/version"
)

func main() {
	// Setup logger
	logger := logging.NewLoggerWithService("teller")

	// Load environment variables
	config.LoadEnv(logger)

	logger.Info("Starting Teller (Payments API)")

	dbURL := config.RequireEnv("DATABASE_URL")
	jwtSecret := config.RequireEnv("JWT_SECRET")
	serviceToken := config.RequireEnv("SERVICE_TOKEN")
	ordersURL := config.RequireEnv("ORDERS_URL")
	gatewayURL := config.GetEnv("PAYMENT_GATEWAY_URL", "")
	gatewayKey := config.GetEnv("PAYMENT_GATEWAY_API_KEY", "")

	// Connect to database
	dbConfig := database.DefaultConfig()
	dbConfig.URL = dbURL
	db := database.MustConnect(dbConfig, logger)
	defer db.Close()

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker("teller", version.Version)
	metricsCollector := monitoring.NewMetricsCollector("teller", version.Version, version.GitCommit)

	healthChecker.AddCheck("database", monitoring.DatabaseHealthCheck(db))
	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"DATABASE_URL": dbURL,
		"JWT_SECRET":   jwtSecret,
		"ORDERS_URL":   ordersURL,
	}))
	if gatewayURL != "" {
		healthChecker.AddCheck("gateway", monitoring.HTTPServiceHealthCheck("gateway", gatewayURL+"/health"))
	}

	// Custom payment metrics
	metrics := &handlers.TellerMetrics{
		CheckoutSessions:    metricsCollector.NewCounter("checkout_sessions_total", "Checkout sessions", []string{"status"}),
		PaymentSubmissions:  metricsCollector.NewCounter("payment_submissions_total", "Payment submissions", []string{"rail", "status"}),
		SettlementsReported: metricsCollector.NewCounter("settlements_reported_total", "Settlements reported to the order service", []string{"rail"}),
	}
	metrics.DBQueries, metrics.DBDuration, metrics.DBConnections = metricsCollector.CreateDatabaseMetrics()

	// Payment plumbing
	feed := pricing.NewFeed()

	rpcClient := wallet.NewRPCClient()
	var gatewayClient *gateway.Client
	if gatewayURL != "" {
		gatewayClient = gateway.NewClient(gatewayURL, gatewayKey, logger)
	}
	cardService := cards.NewService(logger)

	// No server-side signer is wired here: buyers broadcast from their own
	// wallets or hand us a pre-signed raw transaction to relay.
	var signer wallet.Signer
	adapter := payments.NewAdapter(signer, rpcClient, rpcClient, gatewayClient, cardService, logger)
	tracker := payments.NewTracker(payments.TrackerConfig{
		PollInterval: config.GetEnvDuration("TRACK_POLL_INTERVAL", 3*time.Second),
		BackoffBase:  config.GetEnvDuration("TRACK_BACKOFF_BASE", time.Second),
		BackoffCap:   config.GetEnvDuration("TRACK_BACKOFF_CAP", 5*time.Second),
		RetryBudget:  config.GetEnvInt("TRACK_RETRY_BUDGET", 5),
		StallAfter:   config.GetEnvDuration("TRACK_STALL_AFTER", 30*time.Second),
	}, logger)

	ordersClient := orders.NewClient(ordersURL, serviceToken, logger)
	reporter := payments.NewReporter(db, ordersClient, logger, metrics.SettlementsReported)

	sessions := payments.NewSessionManager(feed, adapter, tracker, reporter, logger)

	// HD wallet for per-order deposit addresses. The xpub comes from the
	// environment or, later, the internal wallet endpoint.
	hw := wallet.NewHDWallet(db, logger)
	if xpub := config.GetEnv("HD_WALLET_XPUB", ""); xpub != "" {
		if _, err := hw.EnsureState(xpub); err != nil {
			logger.WithError(err).Fatal("Failed to initialize HD wallet state")
		}
		if err := hw.ValidateXpub(); err != nil {
			logger.WithError(err).Fatal("HD wallet xpub validation failed")
		}
	}

	// Initialize handlers
	handlers.Init(db, logger, feed, sessions, reporter, hw, metrics)

	// Setup router with unified monitoring
	router := server.SetupServiceRouter(logger, "teller", healthChecker, metricsCollector)

	// API routes (root level - nginx adds /api/payments/ prefix)
	{
		router.GET("/checkout/rails", handlers.GetRails)

		// Customer session endpoints
		protected := router.Group("")
		protected.Use(auth.JWTAuthMiddleware([]byte(jwtSecret)))
		{
			protected.POST("/checkout/sessions", handlers.CreateSession)
			protected.POST("/checkout/sessions/:id/select", handlers.SelectRail)
			protected.POST("/checkout/sessions/:id/amount", handlers.SetAmount)
			protected.GET("/checkout/sessions/:id/instruction", handlers.GetInstruction)
			protected.POST("/checkout/sessions/:id/submit", handlers.SubmitPayment)
			protected.GET("/checkout/sessions/:id", handlers.GetSessionStatus)
			protected.POST("/checkout/sessions/:id/cancel", handlers.CancelSession)
		}

		// Webhook endpoints (no auth required)
		router.POST("/webhooks/gateway", handlers.HandleGatewayWebhook)

		// Service-to-service endpoints
		serviceAPI := router.Group("")
		serviceAPI.Use(auth.ServiceAuthMiddleware(serviceToken))
		{
			serviceAPI.POST("/internal/wallet", handlers.InitializeWallet)
			serviceAPI.POST("/internal/deposit-addresses", handlers.CreateDepositAddress)
			serviceAPI.POST("/internal/prices", handlers.UpdatePrice)
		}
	}

	// Start server with graceful shutdown
	serverConfig := server.DefaultConfig("teller", "18010")
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
