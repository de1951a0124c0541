package payments

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"storefront/api_payments/internal/instruction"
	"storefront/api_payments/internal/pricing"
	"storefront/api_payments/internal/rails"
	"storefront/api_payments/pkg/logging"
)

// CheckoutSession holds one buyer's in-progress checkout: their current rail
// selection, the live quote for it, and every payment attempt made so far.
// Selections can change until a settlement lands; each change reprices.
type CheckoutSession struct {
	ID       string
	OrderRef string

	mu        sync.Mutex
	usdAmount decimal.Decimal
	rail      string
	network   string
	token     string
	desc      rails.RailDescriptor
	quote     pricing.Quote
	cancelled bool

	reconciler *Reconciler
	cancels    []context.CancelFunc
	createdAt  time.Time
}

// SessionManager owns checkout sessions and drives their payment attempts.
type SessionManager struct {
	feed     *pricing.Feed
	adapter  *Adapter
	tracker  *Tracker
	reporter *Reporter
	logger   logging.Logger

	mu       sync.RWMutex
	sessions map[string]*CheckoutSession
}

// NewSessionManager creates a session manager. The reporter is optional;
// without one, settlements are tracked but not delivered anywhere.
func NewSessionManager(feed *pricing.Feed, adapter *Adapter, tracker *Tracker, reporter *Reporter, logger logging.Logger) *SessionManager {
	return &SessionManager{
		feed:     feed,
		adapter:  adapter,
		tracker:  tracker,
		reporter: reporter,
		logger:   logger,
		sessions: make(map[string]*CheckoutSession),
	}
}

// Create opens a checkout session for an order.
func (m *SessionManager) Create(orderRef string, usdAmount decimal.Decimal) (*CheckoutSession, error) {
	if orderRef == "" {
		return nil, fmt.Errorf("order_ref required")
	}
	if !usdAmount.IsPositive() {
		return nil, fmt.Errorf("amount must be positive")
	}

	s := &CheckoutSession{
		ID:         uuid.New().String(),
		OrderRef:   orderRef,
		usdAmount:  usdAmount,
		reconciler: NewReconciler(),
		createdAt:  time.Now(),
	}

	m.mu.Lock()
	m.sessions[s.ID] = s
	m.mu.Unlock()

	m.logger.WithFields(logging.Fields{
		"session_id": s.ID,
		"order_ref":  orderRef,
		"amount_usd": usdAmount.StringFixed(2),
	}).Info("Checkout session created")

	return s, nil
}

// Get returns a session by id.
func (m *SessionManager) Get(id string) (*CheckoutSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// FindByOrderRef returns the session opened for an order. Webhooks identify
// payments by order reference, not session id.
func (m *SessionManager) FindByOrderRef(orderRef string) (*CheckoutSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		if s.OrderRef == orderRef {
			return s, true
		}
	}
	return nil, false
}

// Amount returns the session's current USD order amount.
func (s *CheckoutSession) Amount() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usdAmount
}

// Select updates the session's rail selection and reprices. Selecting an
// unsupported on-chain pair succeeds and records the selection; the quote
// and descriptor in the returned view say it cannot be paid. A network
// switch that names no token re-validates the current one and drops it if
// the new network does not carry it.
func (m *SessionManager) Select(s *CheckoutSession, rail, network, token string) (SessionView, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cancelled {
		return SessionView{}, fmt.Errorf("session cancelled")
	}

	s.rail = rail
	switch rail {
	case RailOnchain:
		carried := token == ""
		if carried {
			token = s.token
		}
		s.desc = rails.Resolve(network, token)
		if carried && token != "" && !s.desc.Supported {
			s.desc = rails.Resolve(network, "")
		}
		s.network = s.desc.Network
		s.token = s.desc.Token
		if s.desc.Supported {
			s.quote = m.feed.QuoteUsd(s.usdAmount, s.desc.Token)
		} else {
			s.quote = pricing.Quote{UsdAmount: s.usdAmount, Token: s.desc.Token, QuotedAt: time.Now()}
		}
	case RailGateway, RailCard:
		s.desc = rails.RailDescriptor{Supported: true}
		s.network = ""
		s.token = ""
		s.quote = pricing.Quote{UsdAmount: s.usdAmount, QuotedAt: time.Now()}
	default:
		return SessionView{}, fmt.Errorf("unsupported payment rail: %s", rail)
	}

	return s.viewLocked(PhaseIdle), nil
}

// SetAmount changes the order amount and reprices the current selection.
func (m *SessionManager) SetAmount(s *CheckoutSession, usdAmount decimal.Decimal) (SessionView, error) {
	if !usdAmount.IsPositive() {
		return SessionView{}, fmt.Errorf("amount must be positive")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancelled {
		return SessionView{}, fmt.Errorf("session cancelled")
	}

	s.usdAmount = usdAmount
	if s.rail == RailOnchain && s.desc.Supported {
		s.quote = m.feed.QuoteUsd(usdAmount, s.desc.Token)
	} else {
		s.quote.UsdAmount = usdAmount
	}
	return s.viewLocked(PhaseIdle), nil
}

// Instruction builds the on-chain payment instruction for the session's
// current selection and quote.
func (m *SessionManager) Instruction(s *CheckoutSession, destination string) (instruction.PaymentInstruction, error) {
	s.mu.Lock()
	desc, quote := s.desc, s.quote
	rail := s.rail
	s.mu.Unlock()

	if rail != RailOnchain {
		return nil, fmt.Errorf("instructions exist only for on-chain rails")
	}
	return instruction.Build(desc, destination, quote)
}

// Submit starts a payment attempt on the session's current rail. Earlier
// attempts keep tracking; the reconciler decides which one speaks.
func (m *SessionManager) Submit(ctx context.Context, s *CheckoutSession, req SubmitRequest) (*SubmitResult, error) {
	s.mu.Lock()
	if s.cancelled {
		s.mu.Unlock()
		return nil, fmt.Errorf("session cancelled")
	}
	req.OrderRef = s.OrderRef
	if req.Rail == "" {
		req.Rail = s.rail
	}
	if req.Rail == RailOnchain {
		if !s.desc.Supported {
			s.mu.Unlock()
			return nil, fmt.Errorf("selected rail is not payable: %s on %s", s.token, s.network)
		}
		req.Network = s.desc.Network
		req.Token = s.desc.Token
		// Nothing pre-broadcast or pre-signed: build the instruction here
		// and let the injected signer execute it.
		if req.TxHash == "" && req.RawTx == "" && req.Instruction == nil {
			instr, err := instruction.Build(s.desc, req.Destination, s.quote)
			if err != nil {
				s.mu.Unlock()
				return nil, err
			}
			req.Instruction = instr
		}
	}
	if req.AmountUsd.IsZero() {
		req.AmountUsd = s.usdAmount
	}
	s.mu.Unlock()

	result, poll, err := m.adapter.Submit(ctx, req)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.reconciler.Add(result.Attempt)
	trackCtx, cancel := context.WithCancel(context.Background())
	s.cancels = append(s.cancels, cancel)
	s.mu.Unlock()

	amountUsd := req.AmountUsd
	go func() {
		m.tracker.Track(trackCtx, result.Attempt, poll)
		if m.reporter != nil && result.Attempt.Status() == StatusSettled {
			reportCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer cancel()
			if err := m.reporter.ReportSettled(reportCtx, result.Attempt.Reference, result.Attempt.Rail, s.OrderRef, amountUsd); err != nil {
				m.logger.WithError(err).WithField("order_ref", s.OrderRef).
					Error("Failed to report settlement")
			}
		}
	}()

	return result, nil
}

// Cancel stops tracking every attempt and closes the session. Payments
// already in flight on-chain may still land; cancellation only stops our
// watching, it cannot recall a transaction.
func (m *SessionManager) Cancel(s *CheckoutSession) {
	s.mu.Lock()
	s.cancelled = true
	cancels := s.cancels
	s.cancels = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}

	m.logger.WithFields(logging.Fields{
		"session_id": s.ID,
		"order_ref":  s.OrderRef,
	}).Info("Checkout session cancelled")
}

// SessionView is the wire representation of a session's current state.
type SessionView struct {
	SessionID string               `json:"session_id"`
	OrderRef  string               `json:"order_ref"`
	Rail      string               `json:"rail,omitempty"`
	Selection rails.RailDescriptor `json:"selection"`
	Quote     pricing.Quote        `json:"quote"`
	Phase     string               `json:"phase"`
	Active    *Snapshot            `json:"active_attempt,omitempty"`
	Attempts  []Snapshot           `json:"superseded_attempts,omitempty"`
	Cancelled bool                 `json:"cancelled,omitempty"`
}

// View returns the session's current reconciled state.
func (m *SessionManager) View(s *CheckoutSession) SessionView {
	return m.ViewWithFallback(s, PhaseIdle)
}

// ViewWithFallback is View with a caller-supplied phase that holds until the
// session's first attempt exists.
func (m *SessionManager) ViewWithFallback(s *CheckoutSession, fallback Phase) SessionView {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked(fallback)
}

func (s *CheckoutSession) viewLocked(fallback Phase) SessionView {
	state := s.reconciler.State(fallback)
	v := SessionView{
		SessionID: s.ID,
		OrderRef:  s.OrderRef,
		Rail:      s.rail,
		Selection: s.desc,
		Quote:     s.quote,
		Phase:     state.Phase.String(),
		Active:    state.Active,
		Attempts:  state.Superseded,
		Cancelled: s.cancelled,
	}
	return v
}

// State returns the reconciled payment state across the session's attempts.
func (m *SessionManager) State(s *CheckoutSession) ActiveState {
	return s.reconciler.State(PhaseIdle)
}
