package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"storefront/api_payments/pkg/logging"
)

// ErrorKind classifies gateway failures so callers can distinguish a session
// that never existed from a request we built wrong from the gateway being down.
type ErrorKind int

const (
	KindServer ErrorKind = iota
	KindBadRequest
	KindNotFound
)

// Error is a gateway failure with its HTTP context preserved.
type Error struct {
	Kind       ErrorKind
	StatusCode int
	Message    string
}

func (e *Error) Error() string {
	return fmt.Sprintf("gateway: %s (status %d)", e.Message, e.StatusCode)
}

func classify(status int) ErrorKind {
	switch {
	case status == http.StatusNotFound:
		return KindNotFound
	case status >= 400 && status < 500:
		return KindBadRequest
	default:
		return KindServer
	}
}

// Session is a created hosted-checkout session. PaymentURL is where the
// buyer's browser goes; SessionID is what we poll status with.
type Session struct {
	SessionID     string
	TransactionID string
	PaymentURL    string
}

// Client talks to the hosted payment gateway. The gateway's create endpoint
// answers either JSON or a full HTML payment page depending on deployment,
// so the client handles both shapes.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     logging.Logger
}

// NewClient creates a gateway client.
func NewClient(baseURL, apiKey string, logger logging.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}
}

type createRequest struct {
	OrderRef    string `json:"order_ref"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
	ReturnURL   string `json:"return_url,omitempty"`
	WebhookURL  string `json:"webhook_url,omitempty"`
}

// Gateways in the wild disagree on field names for the same concepts.
type createResponse struct {
	PaymentURL    string `json:"payment_url"`
	CheckoutURL   string `json:"checkout_url"`
	URL           string `json:"url"`
	SessionID     string `json:"session_id"`
	ID            string `json:"id"`
	TransactionID string `json:"transaction_id"`
}

// CreateSession opens a hosted checkout session for an order. JSON responses
// are decoded directly; HTML responses are treated as the payment page itself
// and mined for their redirect target.
func (c *Client) CreateSession(ctx context.Context, orderRef string, amount decimal.Decimal, currency, description, returnURL, webhookURL string) (*Session, error) {
	body, err := json.Marshal(createRequest{
		OrderRef:    orderRef,
		Amount:      amount.StringFixed(2),
		Currency:    currency,
		Description: description,
		ReturnURL:   returnURL,
		WebhookURL:  webhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode session request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/payments"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/html")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &Error{Kind: KindServer, Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &Error{
			Kind:       classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(payload), 200),
		}
	}

	contentType := resp.Header.Get("Content-Type")
	if strings.Contains(contentType, "text/html") || looksLikeHTML(payload) {
		return c.sessionFromHTML(orderRef, req.URL, payload)
	}

	var cr createResponse
	if err := json.Unmarshal(payload, &cr); err != nil {
		// Some deployments send HTML without a content type.
		return c.sessionFromHTML(orderRef, req.URL, payload)
	}

	session := &Session{
		SessionID:     firstNonEmpty(cr.SessionID, cr.ID),
		TransactionID: cr.TransactionID,
		PaymentURL:    firstNonEmpty(cr.PaymentURL, cr.CheckoutURL, cr.URL),
	}
	if session.PaymentURL == "" {
		return nil, &Error{
			Kind:       KindServer,
			StatusCode: resp.StatusCode,
			Message:    "gateway response carries no payment URL",
		}
	}
	if session.SessionID == "" {
		session.SessionID = SynthesizeSessionID(orderRef)
	}
	return session, nil
}

// sessionFromHTML builds a session from an HTML payment page. The redirect
// target inside the page wins; failing that, the request URL itself is the
// page the buyer should land on.
func (c *Client) sessionFromHTML(orderRef string, reqURL *url.URL, payload []byte) (*Session, error) {
	paymentURL := ExtractRedirectURL(string(payload))
	if paymentURL == "" {
		paymentURL = reqURL.String()
	}

	c.logger.WithFields(logging.Fields{
		"order_ref":   orderRef,
		"payment_url": paymentURL,
	}).Debug("Gateway answered with HTML payment page")

	return &Session{
		SessionID:  SynthesizeSessionID(orderRef),
		PaymentURL: paymentURL,
	}, nil
}

// SynthesizeSessionID derives a stable session identifier from the order
// reference for gateways that return a page instead of an id. The same order
// always synthesizes the same id, keeping status polls consistent.
func SynthesizeSessionID(orderRef string) string {
	sum := sha256.Sum256([]byte(orderRef))
	return "sess_" + hex.EncodeToString(sum[:8])
}

func looksLikeHTML(payload []byte) bool {
	trimmed := strings.TrimSpace(string(payload))
	lower := strings.ToLower(trimmed)
	return strings.HasPrefix(lower, "<!doctype") || strings.HasPrefix(lower, "<html")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
