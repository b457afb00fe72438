package db

import (
	"context"

	"payhook/internal/types"
)

// schemaDDL creates the payment_events table and its indexes.
//
// The UNIQUE constraint on event_id is the correctness anchor for the whole
// service: it is what makes InsertIfAbsent atomic. The (payment_id,
// received_at) index serves the history read path.
const schemaDDL = `
CREATE TABLE IF NOT EXISTS payment_events (
	id           BIGSERIAL PRIMARY KEY,
	event_id     TEXT        NOT NULL UNIQUE,
	payment_id   TEXT        NOT NULL,
	event_type   TEXT        NOT NULL,
	raw_payload  BYTEA       NOT NULL,
	received_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_payment_events_payment_received
	ON payment_events (payment_id, received_at);
`

// EnsureSchema creates the payment_events table and indexes if they do not
// exist. It is invoked once at startup; statements are idempotent so
// repeated runs and concurrent replicas are safe.
func EnsureSchema(ctx context.Context, db DBTX) error {
	if _, err := db.Exec(ctx, schemaDDL); err != nil {
		return types.NewAppError(types.ErrCodeStorageUnavailable, "failed to ensure schema", err)
	}
	return nil
}
