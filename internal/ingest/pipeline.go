package ingest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"

	"payhook/internal/types"
)

// EventInserter is the subset of the event store the pipeline needs: the
// atomic conditional insert. Under concurrent calls with the same event ID,
// exactly one caller observes created=true; the uniqueness decision is made
// by the storage engine, never by an application-level existence check.
type EventInserter interface {
	InsertIfAbsent(ctx context.Context, evt *types.PaymentEvent) (created bool, err error)
}

// AcceptedSink receives events after they are durably accepted, including
// the storage-assigned ReceivedAt. Sink failures must not affect the
// ingestion outcome; the event is already stored.
type AcceptedSink interface {
	Publish(ctx context.Context, evt *types.PaymentEvent) error
}

// OutcomeStatus is the terminal state of one event's trip through the pipeline.
type OutcomeStatus string

const (
	StatusAccepted  OutcomeStatus = "success"
	StatusDuplicate OutcomeStatus = "duplicate"
	StatusRejected  OutcomeStatus = "rejected"
	StatusFailed    OutcomeStatus = "failed"
)

// Outcome is the classified result for a single event.
// Err is set for Rejected and Failed outcomes and carries the client-facing
// message plus the internal cause.
type Outcome struct {
	Status    OutcomeStatus
	EventID   string
	PaymentID string
	Err       *types.AppError
}

// Result is the classified result of one inbound delivery. Batch indicates
// the body was a JSON array; Outcomes then holds one entry per element.
// For non-batch deliveries Outcomes has exactly one entry.
type Result struct {
	Batch    bool
	Outcomes []Outcome
}

// Pipeline orchestrates signature verification, payload parsing, and the
// idempotent insert for each inbound notification. It holds no mutable
// state and is safe for concurrent use across requests.
type Pipeline struct {
	verifier Verifier
	parser   Parser
	store    EventInserter
	sink     AcceptedSink // optional; nil disables the relay
	logger   *slog.Logger
}

// NewPipeline creates a Pipeline. sink may be nil when no relay is configured.
func NewPipeline(verifier Verifier, parser Parser, store EventInserter, sink AcceptedSink, logger *slog.Logger) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		verifier: verifier,
		parser:   parser,
		store:    store,
		sink:     sink,
		logger:   logger,
	}
}

// Ingest runs one inbound delivery through the pipeline.
//
// Stages are strictly ordered and short-circuit on first failure:
//
//  1. Signature verification over the raw body. Ordering this before any
//     JSON work means unauthenticated garbage is rejected before parsing
//     cost is spent on it.
//  2. JSON decode + field extraction.
//  3. Atomic conditional insert with server-assigned received_at.
//
// A JSON array body is a provider batch: the signature covers the whole raw
// body, then each element runs through parse+insert individually.
func (p *Pipeline) Ingest(ctx context.Context, rawBody []byte, signature string) Result {
	if err := p.verifier.Verify(rawBody, signature); err != nil {
		p.logger.WarnContext(ctx, "webhook rejected: signature verification failed",
			"error", err,
		)
		return singleOutcome(Outcome{Status: StatusRejected, Err: asAppError(err)})
	}

	if isJSONArray(rawBody) {
		return p.ingestBatch(ctx, rawBody)
	}
	return singleOutcome(p.ingestOne(ctx, rawBody))
}

// ingestBatch splits a JSON array body into elements and processes each one.
// Per-element failures become per-item outcomes rather than failing the
// whole delivery; the provider sees which events landed and which did not.
func (p *Pipeline) ingestBatch(ctx context.Context, rawBody []byte) Result {
	var elements []json.RawMessage
	if err := json.Unmarshal(rawBody, &elements); err != nil {
		return singleOutcome(Outcome{
			Status: StatusRejected,
			Err:    types.NewAppError(types.ErrCodeValidationInvalidJSON, "Invalid JSON format", err),
		})
	}

	outcomes := make([]Outcome, 0, len(elements))
	for _, elem := range elements {
		outcomes = append(outcomes, p.ingestOne(ctx, elem))
	}
	return Result{Batch: true, Outcomes: outcomes}
}

// ingestOne runs stages 2-3 for a single event body.
func (p *Pipeline) ingestOne(ctx context.Context, rawBody []byte) Outcome {
	parsed, err := p.parser.Parse(rawBody)
	if err != nil {
		p.logger.WarnContext(ctx, "webhook rejected: payload parsing failed",
			"error", err,
		)
		// Best-effort id so batch responses can still name the rejected
		// event when the element carried one.
		return Outcome{Status: StatusRejected, EventID: extractEventID(rawBody), Err: asAppError(err)}
	}

	evt := &types.PaymentEvent{
		EventID:    parsed.EventID,
		PaymentID:  parsed.PaymentID,
		EventType:  parsed.EventType,
		RawPayload: parsed.RawPayload,
	}

	// The insert runs on a context detached from request cancellation: if
	// the transport times out the client, the write must still either fully
	// land or not happen at all. A timed-out provider retries with the same
	// event_id and gets the duplicate outcome.
	insertCtx := context.WithoutCancel(ctx)

	created, err := p.store.InsertIfAbsent(insertCtx, evt)
	if err != nil {
		p.logger.ErrorContext(ctx, "webhook event insert failed",
			"event_id", parsed.EventID,
			"payment_id", parsed.PaymentID,
			"error", err,
		)
		return Outcome{
			Status:  StatusFailed,
			EventID: parsed.EventID,
			Err:     asAppError(err),
		}
	}

	if !created {
		p.logger.InfoContext(ctx, "duplicate webhook event ignored",
			"event_id", parsed.EventID,
		)
		return Outcome{Status: StatusDuplicate, EventID: parsed.EventID}
	}

	p.logger.InfoContext(ctx, "webhook event accepted",
		"event_id", parsed.EventID,
		"payment_id", parsed.PaymentID,
		"event_type", parsed.EventType,
	)

	if p.sink != nil {
		if err := p.sink.Publish(insertCtx, evt); err != nil {
			// The event is durable; relay delivery is best-effort.
			p.logger.ErrorContext(ctx, "accepted-event relay publish failed",
				"event_id", parsed.EventID,
				"error", err,
			)
		}
	}

	return Outcome{
		Status:    StatusAccepted,
		EventID:   parsed.EventID,
		PaymentID: parsed.PaymentID,
	}
}

// extractEventID pulls the top-level id out of a body that failed full
// parsing, returning "" when even that much cannot be decoded.
func extractEventID(rawBody []byte) string {
	var partial struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(rawBody, &partial); err != nil {
		return ""
	}
	return partial.ID
}

// isJSONArray reports whether the body's first non-whitespace byte opens a
// JSON array.
func isJSONArray(body []byte) bool {
	trimmed := bytes.TrimLeft(body, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}

// singleOutcome wraps one outcome as a non-batch result.
func singleOutcome(o Outcome) Result {
	return Result{Outcomes: []Outcome{o}}
}

// asAppError normalizes any error into a *types.AppError, falling back to an
// internal error code so callers can always rely on a status mapping.
func asAppError(err error) *types.AppError {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return types.NewAppError(types.ErrCodeInternalUnexpected, "Internal server error", err)
}
