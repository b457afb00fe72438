package db

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"payhook/internal/types"
)

// PaymentEventRepository provides data access for the payment_events table.
//
// Deduplication is enforced by the table's unique index on event_id, not by
// the application: InsertIfAbsent is a single INSERT ... ON CONFLICT DO
// NOTHING statement, so under concurrent identical deliveries the database
// serializes the decision and exactly one caller wins. A separate
// exists-then-insert sequence would race.
type PaymentEventRepository struct {
	db DBTX
}

// NewPaymentEventRepository creates a repository backed by the given
// database connection (pool or transaction).
func NewPaymentEventRepository(db DBTX) *PaymentEventRepository {
	return &PaymentEventRepository{db: db}
}

// InsertIfAbsent atomically inserts the event unless a record with the same
// event_id already exists. It returns created=false (and no error) when the
// event was a duplicate; exactly one record exists afterward either way. On
// creation, evt.ReceivedAt is populated with the stored timestamp.
//
// received_at is assigned by the database at commit time, so the stored
// timestamp reflects the moment of durable acceptance and is never
// recomputed. Records are immutable after creation; no update path exists.
// ON CONFLICT DO NOTHING returns no row on a duplicate, so ErrNoRows is the
// duplicate signal, not a failure.
func (r *PaymentEventRepository) InsertIfAbsent(ctx context.Context, evt *types.PaymentEvent) (bool, error) {
	var receivedAt time.Time
	err := r.db.QueryRow(ctx,
		`INSERT INTO payment_events (event_id, payment_id, event_type, raw_payload, received_at)
		 VALUES ($1, $2, $3, $4, NOW())
		 ON CONFLICT (event_id) DO NOTHING
		 RETURNING received_at`,
		evt.EventID,
		evt.PaymentID,
		evt.EventType,
		evt.RawPayload,
	).Scan(&receivedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, types.NewAppError(types.ErrCodeStorageUnavailable, "Internal server error", err)
	}
	evt.ReceivedAt = receivedAt.UTC()
	return true, nil
}

// ListByPaymentID returns the event history for a payment, ordered ascending
// by received_at (id breaks ties for events accepted in the same instant).
// An unknown payment_id yields an empty slice, not an error.
func (r *PaymentEventRepository) ListByPaymentID(ctx context.Context, paymentID string) ([]types.EventSummary, error) {
	rows, err := r.db.Query(ctx,
		`SELECT event_type, received_at
		 FROM payment_events
		 WHERE payment_id = $1
		 ORDER BY received_at ASC, id ASC`,
		paymentID,
	)
	if err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageUnavailable, "Internal server error", err)
	}
	defer rows.Close()

	summaries := make([]types.EventSummary, 0)
	for rows.Next() {
		var s types.EventSummary
		if err := rows.Scan(&s.EventType, &s.ReceivedAt); err != nil {
			return nil, types.NewAppError(types.ErrCodeStorageUnavailable, "Internal server error", err)
		}
		s.ReceivedAt = s.ReceivedAt.UTC()
		summaries = append(summaries, s)
	}
	if err := rows.Err(); err != nil {
		return nil, types.NewAppError(types.ErrCodeStorageUnavailable, "Internal server error", err)
	}
	return summaries, nil
}
