package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/gateway"
	"storefront/api_payments/internal/payments"
	"storefront/api_payments/pkg/logging"
)

// HandleGatewayWebhook processes status callbacks from the hosted gateway.
// Webhooks race the poll loop for the same session; the reporter's dedup
// makes the race harmless. Always answers 200 so the gateway stops retrying;
// reconciliation covers anything we drop.
func HandleGatewayWebhook(c *gin.Context) {
	var payload GatewayWebhookPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		logger.WithError(err).Warn("Unparseable gateway webhook")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	log := logger.WithFields(logging.Fields{
		"order_ref":  payload.OrderRef,
		"session_id": payload.SessionID,
		"status":     payload.Status,
	})

	outcome := gateway.NormalizeStatus(payload.Status)
	if !outcome.Terminal() {
		log.Debug("Gateway webhook for non-terminal status")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if payload.OrderRef == "" {
		log.Warn("Gateway webhook without order reference")
		c.JSON(http.StatusOK, gin.H{"received": true})
		return
	}

	if outcome == gateway.OutcomeSettled && reporter != nil {
		amount := decimal.Zero
		if payload.Amount != "" {
			if parsed, err := decimal.NewFromString(payload.Amount); err == nil {
				amount = parsed
			}
		}
		if !amount.IsPositive() && manager != nil {
			// Gateways do not all echo the amount back; the session we
			// opened for the order knows what was charged.
			if session, ok := manager.FindByOrderRef(payload.OrderRef); ok {
				amount = session.Amount()
			}
		}

		// Keyed on the session id so a webhook and the poll loop observing
		// the same settlement dedup against each other. A webhook without
		// one gets the same synthesized id the hosted-HTML flow polls with.
		externalRef := payload.SessionID
		if externalRef == "" {
			externalRef = gateway.SynthesizeSessionID(payload.OrderRef)
		}

		reportCtx, reportCancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer reportCancel()
		if err := reporter.ReportSettled(reportCtx, externalRef, payments.RailGateway, payload.OrderRef, amount); err != nil {
			log.WithError(err).Error("Failed to report webhook settlement")
		} else {
			log.Info("Gateway webhook settlement reported")
		}
	} else if outcome == gateway.OutcomeFailed {
		log.Info("Gateway webhook reported failure")
	}

	c.JSON(http.StatusOK, gin.H{"received": true})
}
