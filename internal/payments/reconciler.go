package payments

import (
	"sort"
	"strings"
	"sync"
)

// Phase is the aggregated payment state of a checkout across all attempts.
type Phase int

const (
	PhaseIdle Phase = iota
	PhasePending
	PhaseConfirming
	PhaseSettled
	PhaseFailed
)

func (p Phase) String() string {
	switch p {
	case PhasePending:
		return "pending"
	case PhaseConfirming:
		return "confirming"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// PhaseFromString parses a phase name. Unknown names read as idle, so an
// absent or garbled caller hint never injects a state.
func PhaseFromString(s string) Phase {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "pending":
		return PhasePending
	case "confirming":
		return PhaseConfirming
	case "settled":
		return PhaseSettled
	case "failed":
		return PhaseFailed
	default:
		return PhaseIdle
	}
}

// ActiveState is the reconciled view of a checkout's payment progress.
type ActiveState struct {
	Phase      Phase
	Active     *Snapshot  // most recently submitted attempt, nil when idle
	Settled    *Snapshot  // the attempt that settled, if any (bookkeeping)
	Superseded []Snapshot // earlier attempts displaced by resubmission
}

// Reconciler folds concurrent attempts into one authoritative state. The
// most recently submitted attempt speaks for the checkout; earlier attempts
// are superseded but keep polling, because a superseded attempt that lands
// on-chain still settles the order in the books.
type Reconciler struct {
	mu       sync.Mutex
	attempts []*Attempt
}

// NewReconciler creates an empty reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{}
}

// Add registers a new attempt. Any live prior attempt is now superseded.
func (r *Reconciler) Add(a *Attempt) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, a)
}

// Attempts returns all registered attempts, oldest first.
func (r *Reconciler) Attempts() []*Attempt {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Attempt, len(r.attempts))
	copy(out, r.attempts)
	return out
}

// State reconciles all attempts into the checkout's payment state.
//
// The most recently submitted attempt alone drives the visible phase. A
// superseded attempt's late terminal result never changes the phase; its
// settlement is still surfaced in Settled so the reporter path can book it.
// The caller-supplied fallback is used only while no attempt exists yet,
// for flows where a parent already knows a payment is under way; local
// attempt state always wins once there is any.
func (r *Reconciler) State(fallback Phase) ActiveState {
	r.mu.Lock()
	attempts := make([]*Attempt, len(r.attempts))
	copy(attempts, r.attempts)
	r.mu.Unlock()

	if len(attempts) == 0 {
		return ActiveState{Phase: fallback}
	}

	snaps := make([]Snapshot, len(attempts))
	for i, a := range attempts {
		snaps[i] = a.Snapshot()
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Seq < snaps[j].Seq })

	newest := snaps[len(snaps)-1]
	state := ActiveState{Active: &newest}
	if len(snaps) > 1 {
		state.Superseded = snaps[:len(snaps)-1]
	}

	// Most recent settlement wins the bookkeeping slot.
	for i := len(snaps) - 1; i >= 0; i-- {
		if snaps[i].Status == StatusSettled.String() {
			state.Settled = &snaps[i]
			break
		}
	}

	switch newest.Status {
	case StatusSettled.String():
		state.Phase = PhaseSettled
	case StatusFailed.String():
		state.Phase = PhaseFailed
	case StatusConfirming.String():
		state.Phase = PhaseConfirming
	default:
		state.Phase = PhasePending
	}
	return state
}
