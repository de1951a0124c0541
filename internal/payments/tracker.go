package payments

import (
	"context"
	"time"

	"storefront/api_payments/pkg/logging"
)

// Verdict is one poll's view of a payment's fate.
type Verdict int

const (
	// VerdictPending means not settled yet, keep polling.
	VerdictPending Verdict = iota
	// VerdictConfirming means observed in flight but not final.
	VerdictConfirming
	// VerdictSettled means terminal success.
	VerdictSettled
	// VerdictFailed means terminal failure.
	VerdictFailed
)

// PollFunc checks the current fate of an attempt. A non-nil error counts
// against the retry budget; verdicts do not.
type PollFunc func(ctx context.Context) (Verdict, error)

// TrackerConfig bounds the confirmation polling loop.
type TrackerConfig struct {
	PollInterval time.Duration // cadence between successful polls
	BackoffBase  time.Duration // first retry delay after a poll error
	BackoffCap   time.Duration // retry delay ceiling
	RetryBudget  int           // consecutive poll errors tolerated
	StallAfter   time.Duration // age at which the attempt is flagged slow
}

// DefaultTrackerConfig returns the standard polling bounds.
func DefaultTrackerConfig() TrackerConfig {
	return TrackerConfig{
		PollInterval: 3 * time.Second,
		BackoffBase:  1 * time.Second,
		BackoffCap:   5 * time.Second,
		RetryBudget:  5,
		StallAfter:   30 * time.Second,
	}
}

// Tracker drives one attempt from submitted to a terminal state by polling.
type Tracker struct {
	cfg    TrackerConfig
	logger logging.Logger
}

// NewTracker creates a tracker with the given bounds. Zero-valued fields
// fall back to defaults.
func NewTracker(cfg TrackerConfig, logger logging.Logger) *Tracker {
	def := DefaultTrackerConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.BackoffBase <= 0 {
		cfg.BackoffBase = def.BackoffBase
	}
	if cfg.BackoffCap <= 0 {
		cfg.BackoffCap = def.BackoffCap
	}
	if cfg.RetryBudget <= 0 {
		cfg.RetryBudget = def.RetryBudget
	}
	if cfg.StallAfter <= 0 {
		cfg.StallAfter = def.StallAfter
	}
	return &Tracker{cfg: cfg, logger: logger}
}

// Track polls until the attempt reaches a terminal state or the context is
// cancelled. Only an explicit verdict from the rail ends the attempt; an
// unreachable status source flags a stall and polling carries on, because
// the payment may still land out-of-band. Cancellation leaves the attempt
// as-is for a later reconcile.
func (t *Tracker) Track(ctx context.Context, attempt *Attempt, poll PollFunc) {
	consecutiveErrs := 0
	backoff := t.cfg.BackoffBase

	log := t.logger.WithFields(logging.Fields{
		"attempt_seq": attempt.Seq,
		"rail":        attempt.Rail,
		"reference":   attempt.Reference,
	})

	for {
		if attempt.Status().Terminal() {
			return
		}

		verdict, err := poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				log.Debug("Tracking stopped by cancellation")
				return
			}
			consecutiveErrs++
			log.WithError(err).WithField("consecutive_errors", consecutiveErrs).
				Warn("Payment status poll failed")

			if consecutiveErrs >= t.cfg.RetryBudget {
				// The status source is unreachable, not the payment. Flag
				// the stall and fall back to the normal poll cadence.
				attempt.MarkStalled()
				log.Warn("Retry budget exhausted, attempt flagged as stalled")
				consecutiveErrs = 0
				backoff = t.cfg.BackoffBase
				if !sleep(ctx, t.cfg.PollInterval) {
					return
				}
				continue
			}

			if !sleep(ctx, backoff) {
				return
			}
			backoff *= 2
			if backoff > t.cfg.BackoffCap {
				backoff = t.cfg.BackoffCap
			}
			continue
		}

		// Any successful poll resets the error streak and backoff.
		consecutiveErrs = 0
		backoff = t.cfg.BackoffBase

		switch verdict {
		case VerdictSettled:
			attempt.MarkConfirming()
			attempt.MarkSettled()
			log.Info("Payment settled")
			return
		case VerdictFailed:
			attempt.MarkFailed("payment failed at source")
			log.Info("Payment failed")
			return
		case VerdictConfirming:
			attempt.MarkConfirming()
		}

		if !attempt.Stalled() && attempt.Age() >= t.cfg.StallAfter {
			attempt.MarkStalled()
			log.WithField("age", attempt.Age().String()).Warn("Payment attempt is slow to settle")
		}

		if !sleep(ctx, t.cfg.PollInterval) {
			return
		}
	}
}

// sleep waits d or until cancellation, reporting whether the wait completed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
