package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/payments"
	"storefront/api_payments/internal/rails"
)

// GetRails returns the payment rails available at checkout. On-chain rails
// are listed per network; hosted rails are flat entries.
func GetRails(c *gin.Context) {
	includeTestnets := c.Query("testnets") == "true"

	networks := make([]gin.H, 0)
	for _, n := range rails.PaymentNetworks(includeTestnets) {
		networks = append(networks, gin.H{
			"network":      n.Name,
			"display_name": n.DisplayName,
			"chain_id":     n.ChainID,
			"testnet":      n.IsTestnet,
			"tokens":       rails.SupportedTokens(n.Name),
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"networks":     networks,
		"hosted_rails": []string{payments.RailGateway, payments.RailCard},
	})
}

// CreateSession opens a checkout session for an order
func CreateSession(c *gin.Context) {
	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	amount, err := decimal.NewFromString(req.AmountUsd)
	if err != nil || !amount.IsPositive() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_usd must be a positive decimal"})
		return
	}

	session, err := manager.Create(req.OrderRef, amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if metrics != nil && metrics.CheckoutSessions != nil {
		metrics.CheckoutSessions.WithLabelValues("created").Inc()
	}

	c.JSON(http.StatusCreated, manager.View(session))
}

// SelectRail updates a session's rail selection and returns the new quote.
// Unsupported pairs come back 200 with supported=false so the storefront can
// grey the option out instead of showing an error page.
func SelectRail(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}

	var req SelectRailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}
	if err := validate.Struct(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := manager.Select(session, req.Rail, req.Network, req.Token)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// SetAmount changes the order amount and reprices the current selection
func SetAmount(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}

	var req SetAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	amount, err := decimal.NewFromString(req.AmountUsd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "amount_usd must be a decimal"})
		return
	}

	view, err := manager.SetAmount(session, amount)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetInstruction builds the on-chain payment instruction for the session's
// current selection
func GetInstruction(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}

	destination := c.Query("destination")
	if destination == "" {
		// Fall back to a per-order deposit address when configured.
		if hdwallet == nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "destination required"})
			return
		}
		view := manager.View(session)
		_, addr, err := hdwallet.GenerateDepositAddress(
			session.OrderRef, view.Selection.Network, view.Selection.Token,
			time.Now().Add(24*time.Hour))
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		destination = addr
	}

	instr, err := manager.Instruction(session, destination)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"kind":        instr.Kind(),
		"instruction": instr,
	})
}

// SubmitPayment starts a payment attempt on the session's selected rail
func SubmitPayment(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}

	var req SubmitPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	result, err := manager.Submit(c.Request.Context(), session, payments.SubmitRequest{
		Rail:        req.Rail,
		TxHash:      req.TxHash,
		RawTx:       req.RawTx,
		Destination: req.Destination,
		Currency:    req.Currency,
		Description: req.Description,
		ReturnURL:   req.ReturnURL,
		CancelURL:   req.CancelURL,
		WebhookURL:  req.WebhookURL,
		Email:       req.Email,
	})
	if err != nil {
		if metrics != nil && metrics.PaymentSubmissions != nil {
			metrics.PaymentSubmissions.WithLabelValues(req.Rail, "error").Inc()
		}
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}

	if metrics != nil && metrics.PaymentSubmissions != nil {
		metrics.PaymentSubmissions.WithLabelValues(result.Attempt.Rail, "ok").Inc()
	}

	resp := gin.H{"attempt": result.Attempt.Snapshot()}
	if result.PaymentURL != "" {
		resp["payment_url"] = result.PaymentURL
	}
	c.JSON(http.StatusAccepted, resp)
}

// GetSessionStatus returns the reconciled payment state of a session. An
// optional fallback phase from the caller holds until the first attempt
// exists; local attempt state always wins once there is any.
func GetSessionStatus(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}
	fallback := payments.PhaseFromString(c.Query("fallback"))
	c.JSON(http.StatusOK, manager.ViewWithFallback(session, fallback))
}

// CancelSession stops tracking and closes the session
func CancelSession(c *gin.Context) {
	session, ok := sessionFromPath(c)
	if !ok {
		return
	}
	manager.Cancel(session)
	c.JSON(http.StatusOK, manager.View(session))
}

func sessionFromPath(c *gin.Context) (*payments.CheckoutSession, bool) {
	session, ok := manager.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return nil, false
	}
	return session, true
}
