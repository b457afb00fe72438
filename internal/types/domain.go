// Package types defines the shared domain model and error taxonomy for the
// payhook service: the persisted PaymentEvent entity, the parsed form handed
// between pipeline stages, and the redacted secret and request-scoped context
// helpers used across packages.
package types

import "time"

// PaymentEvent is the sole persisted entity: one accepted webhook delivery.
//
// EventID is provider-assigned and globally unique; it is the deduplication
// key. RawPayload holds the original serialized body verbatim for audit and
// replay debugging. ReceivedAt is assigned by the storage engine at the
// moment of durable acceptance and never recomputed; records are immutable
// after creation.
type PaymentEvent struct {
	EventID    string
	PaymentID  string
	EventType  string
	RawPayload []byte
	ReceivedAt time.Time
}

// ParsedEvent is the output of payload parsing: the identifying fields
// extracted from the provider-shaped JSON plus the untouched raw body.
type ParsedEvent struct {
	EventID    string
	PaymentID  string
	EventType  string
	RawPayload []byte
}

// EventSummary is the read-model projection returned by the payment history
// endpoint: the event type and when the event was durably accepted.
type EventSummary struct {
	EventType  string    `json:"event_type"`
	ReceivedAt time.Time `json:"received_at"`
}
