package core

import (
	"encoding/json"
	"errors"
	"net/http"

	"payhook/internal/types"
)

// errorBody is the wire shape for all error responses. The provider-facing
// contract is a flat {"error": "..."} object; no codes, stack traces, or
// internal identifiers are ever exposed.
type errorBody struct {
	Error string `json:"error"`
}

// JSON writes a JSON response with the given status code and data.
// If marshalling fails, it falls back to a 500 error response.
func JSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		// Best-effort write; if this also fails, there is nothing more we can do.
		_ = json.NewEncoder(w).Encode(errorBody{Error: "Internal server error"})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes an error response to the client. It inspects the error chain:
//   - If the error is (or wraps) a *types.AppError, its code determines the
//     HTTP status and its message becomes the response body. AppError
//     messages are client-facing by construction.
//   - Any other error returns a generic 500; the original message is not
//     exposed to prevent information leakage.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		msg := appErr.Message
		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			// Server-side failures carry internal detail in their message
			// chain; the client always sees the generic text.
			msg = "Internal server error"
		}
		JSON(w, r, appErr.HTTPStatus(), errorBody{Error: msg})
		return
	}

	JSON(w, r, http.StatusInternalServerError, errorBody{Error: "Internal server error"})
}
