package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"payhook/internal/core"
	"payhook/internal/types"
)

// EventHistoryReader is the read-side slice of the event store the payments
// handler needs.
type EventHistoryReader interface {
	ListByPaymentID(ctx context.Context, paymentID string) ([]types.EventSummary, error)
}

// PaymentsHandler serves the per-payment event history.
type PaymentsHandler struct {
	reader EventHistoryReader
	logger *slog.Logger
}

// NewPaymentsHandler creates a PaymentsHandler.
func NewPaymentsHandler(reader EventHistoryReader, logger *slog.Logger) *PaymentsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &PaymentsHandler{reader: reader, logger: logger}
}

// RegisterRoutes mounts the payments endpoints on the router.
func (h *PaymentsHandler) RegisterRoutes(r chi.Router) {
	r.Get("/payments/{paymentID}/events", h.ListEvents)
}

// ListEvents returns every stored event for a payment, oldest first. An
// unknown payment ID is not an error; it yields an empty array.
func (h *PaymentsHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentID")

	events, err := h.reader.ListByPaymentID(r.Context(), paymentID)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "event history query failed",
			"payment_id", paymentID,
			"error", err,
		)
		core.Error(w, r, err)
		return
	}

	core.JSON(w, r, http.StatusOK, events)
}
