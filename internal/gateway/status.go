package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Outcome is the normalized view of a gateway payment status.
type Outcome int

const (
	OutcomePending Outcome = iota
	OutcomeSettled
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeSettled:
		return "settled"
	case OutcomeFailed:
		return "failed"
	default:
		return "pending"
	}
}

// Terminal reports whether the outcome ends tracking.
func (o Outcome) Terminal() bool {
	return o == OutcomeSettled || o == OutcomeFailed
}

// NormalizeStatus maps a gateway status string to an outcome. Unrecognized
// statuses stay pending; a vocabulary drift on the gateway's side must not
// fail payments that may still complete.
func NormalizeStatus(status string) Outcome {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case "completed", "complete", "approved", "paid", "settled", "success", "succeeded":
		return OutcomeSettled
	case "failed", "cancelled", "canceled", "declined", "expired", "rejected":
		return OutcomeFailed
	default:
		return OutcomePending
	}
}

type statusResponse struct {
	Status        string `json:"status"`
	State         string `json:"state"`
	TransactionID string `json:"transaction_id"`
}

// GetStatus polls the gateway for a session's payment status. The wire shape
// is the gateway's: GET status?session_id=... .
func (c *Client) GetStatus(ctx context.Context, sessionID string) (Outcome, error) {
	endpoint := fmt.Sprintf("%s/status?session_id=%s", c.baseURL, url.QueryEscape(sessionID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return OutcomePending, fmt.Errorf("failed to build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return OutcomePending, &Error{Kind: KindServer, Message: err.Error()}
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return OutcomePending, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: err.Error()}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return OutcomePending, &Error{
			Kind:       classify(resp.StatusCode),
			StatusCode: resp.StatusCode,
			Message:    truncate(string(payload), 200),
		}
	}

	var sr statusResponse
	if err := json.Unmarshal(payload, &sr); err != nil {
		return OutcomePending, &Error{Kind: KindServer, StatusCode: resp.StatusCode, Message: "unparseable status response"}
	}

	return NormalizeStatus(firstNonEmpty(sr.Status, sr.State)), nil
}
