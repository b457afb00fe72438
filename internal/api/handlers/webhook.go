package handlers

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payhook/internal/core"
	"payhook/internal/ingest"
	"payhook/internal/types"
)

// WebhookIngestor runs one inbound delivery through the ingestion pipeline.
type WebhookIngestor interface {
	Ingest(ctx context.Context, rawBody []byte, signature string) ingest.Result
}

// acceptedResponse is the body for a newly stored single event.
type acceptedResponse struct {
	Status    string `json:"status"`
	EventID   string `json:"event_id"`
	PaymentID string `json:"payment_id"`
}

// duplicateResponse is the body for a redelivered single event.
type duplicateResponse struct {
	Status  string `json:"status"`
	EventID string `json:"event_id"`
}

// batchItem is the per-element body inside a batch delivery response.
type batchItem struct {
	EventID string `json:"event_id"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// WebhookHandler terminates the provider-facing POST endpoint: it bounds and
// reads the raw body, pulls the signature header, and maps pipeline outcomes
// onto the wire contract.
type WebhookHandler struct {
	pipeline     WebhookIngestor
	sigHeader    string
	maxBodyBytes int64
	logger       *slog.Logger
}

// NewWebhookHandler creates a WebhookHandler.
func NewWebhookHandler(pipeline WebhookIngestor, sigHeader string, maxBodyBytes int64, logger *slog.Logger) *WebhookHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WebhookHandler{
		pipeline:     pipeline,
		sigHeader:    sigHeader,
		maxBodyBytes: maxBodyBytes,
		logger:       logger,
	}
}

// RegisterRoutes mounts the webhook endpoint on the router.
func (h *WebhookHandler) RegisterRoutes(r chi.Router) {
	r.Post("/webhook/payments", h.HandleWebhook)
}

// HandleWebhook receives one provider delivery. The raw body is read in full
// before any verification because the signature is computed over the exact
// bytes on the wire, not a re-serialization.
func (h *WebhookHandler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodyBytes)

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			core.JSON(w, r, http.StatusRequestEntityTooLarge, map[string]string{"error": "Request body too large"})
			return
		}
		core.Error(w, r, types.NewAppError(types.ErrCodeValidationInvalidJSON, "Invalid JSON format", err))
		return
	}

	result := h.pipeline.Ingest(r.Context(), rawBody, r.Header.Get(h.sigHeader))

	if result.Batch {
		h.respondBatch(w, r, result.Outcomes)
		return
	}
	h.respondSingle(w, r, result.Outcomes[0])
}

// respondSingle maps a non-batch outcome onto the wire contract.
func (h *WebhookHandler) respondSingle(w http.ResponseWriter, r *http.Request, o ingest.Outcome) {
	switch o.Status {
	case ingest.StatusAccepted:
		core.JSON(w, r, http.StatusOK, acceptedResponse{
			Status:    string(ingest.StatusAccepted),
			EventID:   o.EventID,
			PaymentID: o.PaymentID,
		})
	case ingest.StatusDuplicate:
		core.JSON(w, r, http.StatusOK, duplicateResponse{
			Status:  string(ingest.StatusDuplicate),
			EventID: o.EventID,
		})
	default:
		core.Error(w, r, o.Err)
	}
}

// respondBatch maps per-element outcomes onto a 200 with one entry per event.
// Parse rejections become "failed" entries so the provider can see which
// events landed; a storage failure fails the whole delivery so the provider
// retries the batch.
func (h *WebhookHandler) respondBatch(w http.ResponseWriter, r *http.Request, outcomes []ingest.Outcome) {
	items := make([]batchItem, 0, len(outcomes))
	for _, o := range outcomes {
		switch o.Status {
		case ingest.StatusAccepted, ingest.StatusDuplicate:
			items = append(items, batchItem{EventID: o.EventID, Status: string(o.Status)})
		case ingest.StatusRejected:
			items = append(items, batchItem{EventID: o.EventID, Status: string(ingest.StatusFailed), Error: o.Err.Message})
		default:
			core.Error(w, r, o.Err)
			return
		}
	}
	if len(items) == 1 {
		core.JSON(w, r, http.StatusOK, items[0])
		return
	}
	core.JSON(w, r, http.StatusOK, items)
}
