package payments

import (
	"sync"
	"sync/atomic"
	"time"
)

// Status is the lifecycle state of one payment attempt. Transitions only
// move forward; a settled or failed attempt never changes again.
type Status int

const (
	StatusIdle Status = iota
	StatusSubmitted
	StatusConfirming
	StatusSettled
	StatusFailed
)

func (s Status) String() string {
	switch s {
	case StatusSubmitted:
		return "submitted"
	case StatusConfirming:
		return "confirming"
	case StatusSettled:
		return "settled"
	case StatusFailed:
		return "failed"
	default:
		return "idle"
	}
}

// Terminal reports whether the status ends the attempt.
func (s Status) Terminal() bool {
	return s == StatusSettled || s == StatusFailed
}

var attemptSeq atomic.Uint64

// Attempt is one submission of a payment on one rail. A checkout session may
// spawn several attempts as the buyer switches rails; Seq orders them so the
// most recently submitted one is authoritative.
type Attempt struct {
	Seq       uint64
	Rail      string
	Network   string
	Token     string
	Reference string // tx hash or gateway session id

	mu          sync.Mutex
	status      Status
	stalled     bool
	failReason  string
	submittedAt time.Time
	updatedAt   time.Time
}

// NewAttempt creates an attempt in the submitted state.
func NewAttempt(rail, network, token, reference string) *Attempt {
	now := time.Now()
	return &Attempt{
		Seq:         attemptSeq.Add(1),
		Rail:        rail,
		Network:     network,
		Token:       token,
		Reference:   reference,
		status:      StatusSubmitted,
		submittedAt: now,
		updatedAt:   now,
	}
}

// Snapshot is a point-in-time copy of attempt state, safe to hand out.
type Snapshot struct {
	Seq         uint64    `json:"seq"`
	Rail        string    `json:"rail"`
	Network     string    `json:"network,omitempty"`
	Token       string    `json:"token,omitempty"`
	Reference   string    `json:"reference"`
	Status      string    `json:"status"`
	Stalled     bool      `json:"stalled,omitempty"`
	FailReason  string    `json:"fail_reason,omitempty"`
	SubmittedAt time.Time `json:"submitted_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Snapshot returns a copy of the attempt's current state.
func (a *Attempt) Snapshot() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return Snapshot{
		Seq:         a.Seq,
		Rail:        a.Rail,
		Network:     a.Network,
		Token:       a.Token,
		Reference:   a.Reference,
		Status:      a.status.String(),
		Stalled:     a.stalled,
		FailReason:  a.failReason,
		SubmittedAt: a.submittedAt,
		UpdatedAt:   a.updatedAt,
	}
}

// Status returns the attempt's current status.
func (a *Attempt) Status() Status {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// advance moves the attempt forward. Backward and post-terminal transitions
// are dropped, which keeps late poll results from resurrecting an attempt.
func (a *Attempt) advance(to Status) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() || to <= a.status {
		return false
	}
	a.status = to
	a.updatedAt = time.Now()
	if to.Terminal() {
		a.stalled = false
	}
	return true
}

// MarkConfirming records that the payment was observed in flight.
func (a *Attempt) MarkConfirming() bool {
	return a.advance(StatusConfirming)
}

// MarkSettled records terminal success.
func (a *Attempt) MarkSettled() bool {
	return a.advance(StatusSettled)
}

// MarkFailed records terminal failure with a reason.
func (a *Attempt) MarkFailed(reason string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.status.Terminal() {
		return false
	}
	a.status = StatusFailed
	a.failReason = reason
	a.stalled = false
	a.updatedAt = time.Now()
	return true
}

// MarkStalled flags the attempt as slow without changing its status. The
// flag is advisory; tracking continues and a later settle clears it.
func (a *Attempt) MarkStalled() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.status.Terminal() {
		a.stalled = true
		a.updatedAt = time.Now()
	}
}

// Stalled reports whether the attempt is flagged slow.
func (a *Attempt) Stalled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.stalled
}

// Age returns time since submission.
func (a *Attempt) Age() time.Duration {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Since(a.submittedAt)
}
