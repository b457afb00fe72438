package ingest

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"payhook/internal/types"
)

// Provider payload shape:
//
//	{
//	  "id": "evt_...",
//	  "event": "payment.authorized",
//	  "created_at": 1700000000,
//	  "payload": { "payment": { "entity": { "id": "pay_...", ... } } }
//	}
//
// Only the identifying fields are extracted; amount, currency and status
// travel along inside the verbatim raw payload.
type providerEvent struct {
	ID      string `json:"id"`
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID string `json:"id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// Parser decodes a raw webhook body into a ParsedEvent.
type Parser interface {
	// Parse returns the extracted event, or a types.AppError with code
	// ErrCodeValidationInvalidJSON (syntax error) or
	// ErrCodeValidationInvalidStructure (required field absent, null, or
	// not a string).
	Parse(rawBody []byte) (*types.ParsedEvent, error)
}

// PayloadParser implements Parser for the provider's nested JSON shape.
//
// The event type is NOT validated against an allow-list: unknown or future
// event types are accepted and stored as-is, so new provider events never
// bounce off this service.
type PayloadParser struct{}

// NewPayloadParser creates a PayloadParser.
func NewPayloadParser() *PayloadParser {
	return &PayloadParser{}
}

// Parse decodes rawBody and extracts the event ID, event type, and the
// nested payment ID. The raw body is carried through untouched.
func (p *PayloadParser) Parse(rawBody []byte) (*types.ParsedEvent, error) {
	var evt providerEvent
	if err := json.Unmarshal(rawBody, &evt); err != nil {
		return nil, mapUnmarshalError(err)
	}

	// JSON null and absent fields both decode to the zero string, so a
	// single emptiness check covers "absent or null". Non-string values are
	// caught above as UnmarshalTypeError.
	var missing []string
	if evt.ID == "" {
		missing = append(missing, "id")
	}
	if evt.Event == "" {
		missing = append(missing, "event")
	}
	if evt.Payload.Payment.Entity.ID == "" {
		missing = append(missing, "payload.payment.entity.id")
	}
	if len(missing) > 0 {
		return nil, types.NewAppError(
			types.ErrCodeValidationInvalidStructure,
			fmt.Sprintf("Invalid payload structure: missing required fields: %s", strings.Join(missing, ", ")),
			nil,
		)
	}

	return &types.ParsedEvent{
		EventID:    evt.ID,
		PaymentID:  evt.Payload.Payment.Entity.ID,
		EventType:  evt.Event,
		RawPayload: rawBody,
	}, nil
}

// mapUnmarshalError translates a json.Unmarshal error into a structured
// AppError. Syntax errors (malformed or truncated input) are InvalidJSON;
// type mismatches (valid JSON of the wrong shape) are InvalidStructure.
func mapUnmarshalError(err error) *types.AppError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		field := typeErr.Field
		if field == "" {
			return types.NewAppError(
				types.ErrCodeValidationInvalidStructure,
				"Invalid payload structure: body must be a JSON object",
				err,
			)
		}
		return types.NewAppError(
			types.ErrCodeValidationInvalidStructure,
			fmt.Sprintf("Invalid payload structure: field %s has wrong type", field),
			err,
		)
	}

	return types.NewAppError(types.ErrCodeValidationInvalidJSON, "Invalid JSON format", err)
}

// Compile-time assertion that PayloadParser satisfies Parser.
var _ Parser = (*PayloadParser)(nil)
