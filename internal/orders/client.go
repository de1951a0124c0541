package orders

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/api_payments/pkg/logging"
)

// Client notifies the order service that a payment settled. The order
// service owns fulfillment; this service only reports outcomes.
type Client struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
	logger       logging.Logger
}

// NewClient creates an order service client.
func NewClient(baseURL, serviceToken string, logger logging.Logger) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 10 * time.Second},
		logger:       logger,
	}
}

type paymentSuccessRequest struct {
	ExternalRef string `json:"external_ref"`
	AmountUsd   string `json:"amount_usd"`
	Rail        string `json:"rail"`
}

// ReportPaymentSuccess tells the order service a payment settled.
func (c *Client) ReportPaymentSuccess(ctx context.Context, externalRef string, amountUsd decimal.Decimal, rail string) error {
	body, err := json.Marshal(paymentSuccessRequest{
		ExternalRef: externalRef,
		AmountUsd:   amountUsd.StringFixed(2),
		Rail:        rail,
	})
	if err != nil {
		return fmt.Errorf("failed to encode payment success: %w", err)
	}

	endpoint := c.baseURL + "/internal/orders/payment-success"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build payment success request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.serviceToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to notify order service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("order service rejected payment success: status %d: %s", resp.StatusCode, string(payload))
	}

	c.logger.WithFields(logging.Fields{
		"external_ref": externalRef,
		"amount_usd":   amountUsd.StringFixed(2),
		"rail":         rail,
	}).Info("Reported payment success to order service")

	return nil
}
