package payments

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"storefront/api_payments/pkg/logging"
)

// SuccessSink receives exactly one settlement notification per settled
// transaction hash or gateway session.
type SuccessSink interface {
	ReportPaymentSuccess(ctx context.Context, externalRef string, amountUsd decimal.Decimal, rail string) error
}

// Reporter delivers settlement outcomes at most once per external reference,
// the settled tx hash or gateway session id. Duplicate settle signals are
// routine (a webhook racing the poll loop, consecutive polls observing the
// same settled status) and must not double-fulfill an order.
type Reporter struct {
	db          *sql.DB
	sink        SuccessSink
	logger      logging.Logger
	settlements *prometheus.CounterVec

	mu       sync.Mutex
	reported map[string]bool
}

// NewReporter creates a settlement reporter. The counter is optional and is
// labelled by rail when set.
func NewReporter(db *sql.DB, sink SuccessSink, logger logging.Logger, settlements *prometheus.CounterVec) *Reporter {
	return &Reporter{
		db:          db,
		sink:        sink,
		logger:      logger,
		settlements: settlements,
		reported:    make(map[string]bool),
	}
}

// ReportSettled records a settlement and notifies the order service once.
// externalRef is the settled tx hash or gateway session id and is the dedup
// key; the order reference rides along for bookkeeping. The database row is
// the durable dedup record; the in-memory set is a fast path that also
// covers the window before the insert commits.
func (r *Reporter) ReportSettled(ctx context.Context, externalRef, rail, orderRef string, amountUsd decimal.Decimal) error {
	r.mu.Lock()
	if r.reported[externalRef] {
		r.mu.Unlock()
		return nil
	}
	r.reported[externalRef] = true
	r.mu.Unlock()

	inserted, err := r.persistReceipt(ctx, externalRef, rail, orderRef, amountUsd)
	if err != nil {
		// Roll back the fast path so a later call can retry.
		r.mu.Lock()
		delete(r.reported, externalRef)
		r.mu.Unlock()
		return fmt.Errorf("failed to persist settlement receipt: %w", err)
	}
	if !inserted {
		// Another process already reported this settlement.
		return nil
	}

	if err := r.sink.ReportPaymentSuccess(ctx, externalRef, amountUsd, rail); err != nil {
		// The receipt row stands; delivery is retried by the caller or by
		// the reconcile job, and the row keeps it at-most-once.
		r.logger.WithError(err).WithField("external_ref", externalRef).
			Error("Failed to deliver settlement notification")
		return err
	}

	if r.settlements != nil {
		r.settlements.WithLabelValues(rail).Inc()
	}

	r.logger.WithFields(logging.Fields{
		"external_ref": externalRef,
		"rail":         rail,
		"order_ref":    orderRef,
		"amount_usd":   amountUsd.StringFixed(2),
	}).Info("Settlement reported")

	return nil
}

// persistReceipt inserts the settlement receipt, reporting whether this call
// won the insert.
func (r *Reporter) persistReceipt(ctx context.Context, externalRef, rail, orderRef string, amountUsd decimal.Decimal) (bool, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO payments.settlement_receipts (
			id, external_ref, rail, order_ref, amount_usd, settled_at
		) VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (external_ref) DO NOTHING
	`, uuid.New().String(), externalRef, rail, orderRef, amountUsd.StringFixed(2))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// AlreadyReported reports whether a settlement was already delivered for an
// external reference, consulting memory first and the database second.
func (r *Reporter) AlreadyReported(ctx context.Context, externalRef string) (bool, error) {
	r.mu.Lock()
	if r.reported[externalRef] {
		r.mu.Unlock()
		return true, nil
	}
	r.mu.Unlock()

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS(SELECT 1 FROM payments.settlement_receipts WHERE external_ref = $1)
	`, externalRef).Scan(&exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}
