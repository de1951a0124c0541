package cards

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"

	"storefront/api_payments/internal/gateway"
	"storefront/api_payments/pkg/logging"
	"storefront/api_payments/pkg/money"
)

// CheckoutRequest contains the parameters for a card checkout session
type CheckoutRequest struct {
	OrderRef    string
	Amount      decimal.Decimal
	Currency    string
	Description string
	SuccessURL  string
	CancelURL   string

	// Optional billing details
	BillingEmail string
}

// CheckoutResult contains the response from creating a card checkout session
type CheckoutResult struct {
	CheckoutURL string
	SessionID   string
	ExpiresAt   time.Time
}

// Service creates and polls hosted card checkout sessions
type Service struct {
	logger logging.Logger
}

// NewService creates a new card checkout service
func NewService(log logging.Logger) *Service {
	return &Service{logger: log}
}

// CreateCheckout creates a hosted card checkout session
func (s *Service) CreateCheckout(ctx context.Context, req CheckoutRequest) (*CheckoutResult, error) {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		return nil, fmt.Errorf("STRIPE_SECRET_KEY not configured")
	}

	// Metadata is how webhook payloads find their way back to the order
	metadata := map[string]string{
		"order_ref": req.OrderRef,
	}

	currency := req.Currency
	if currency == "" {
		currency = money.DefaultCurrency()
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency: stripe.String(currency),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name:        stripe.String(req.Description),
						Description: stripe.String(fmt.Sprintf("Order: %s", req.OrderRef)),
					},
					UnitAmount: stripe.Int64(money.DecimalToCents(req.Amount)),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: metadata,
	}

	if req.BillingEmail != "" {
		params.CustomerEmail = stripe.String(req.BillingEmail)
	}

	sess, err := session.New(params)
	if err != nil {
		return nil, fmt.Errorf("failed to create card checkout session: %w", err)
	}

	// Sessions expire after 24 hours by default
	expiresAt := time.Now().Add(24 * time.Hour)
	if sess.ExpiresAt > 0 {
		expiresAt = time.Unix(sess.ExpiresAt, 0)
	}

	s.logger.WithFields(logging.Fields{
		"order_ref":    req.OrderRef,
		"session_id":   sess.ID,
		"checkout_url": sess.URL,
	}).Info("Created card checkout session")

	return &CheckoutResult{
		CheckoutURL: sess.URL,
		SessionID:   sess.ID,
		ExpiresAt:   expiresAt,
	}, nil
}

// GetOutcome polls the provider for a session's payment outcome.
func (s *Service) GetOutcome(ctx context.Context, sessionID string) (gateway.Outcome, error) {
	stripe.Key = os.Getenv("STRIPE_SECRET_KEY")
	if stripe.Key == "" {
		return gateway.OutcomePending, fmt.Errorf("STRIPE_SECRET_KEY not configured")
	}

	sess, err := session.Get(sessionID, nil)
	if err != nil {
		return gateway.OutcomePending, fmt.Errorf("failed to fetch card checkout session: %w", err)
	}

	return NormalizeSession(sess), nil
}

// NormalizeSession maps a provider session to a payment outcome. An open
// session with an unpaid status is still in flight; expiry is terminal.
func NormalizeSession(sess *stripe.CheckoutSession) gateway.Outcome {
	if sess == nil {
		return gateway.OutcomePending
	}
	if sess.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid {
		return gateway.OutcomeSettled
	}
	if sess.Status == stripe.CheckoutSessionStatusExpired {
		return gateway.OutcomeFailed
	}
	return gateway.OutcomePending
}
