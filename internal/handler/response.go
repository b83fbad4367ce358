// Package handler parses HTTP requests, delegates to the service layer, and
// renders JSON. No business rules live here — handlers translate between the
// wire and the domain.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/mychat/internal/apperror"
)

// FieldError points a validation message at the input field that caused it,
// so the client can render it next to the right form control.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the error shape every endpoint returns. Fields is only
// present on validation failures that carry per-field messages.
type ErrorResponse struct {
	Error   string       `json:"error"`
	Message string       `json:"message"`
	Fields  []FieldError `json:"fields,omitempty"`
}

// writeJSON sends a JSON response. Headers and status must go out before the
// body; after Encode starts writing they are fixed.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// writeError maps a domain error to HTTP. The service layer speaks apperror
// sentinels; this is the single place they become status codes.
//
// Two sign-in cases get special shapes: invalid credentials stay
// deliberately vague (401, one fixed message for unknown user and wrong
// password alike), while a locked account is reported distinctly (403,
// "account_locked") so the user knows a retry won't help.
func writeError(w http.ResponseWriter, err error) {
	// A batch of field-scoped validation failures renders every message
	// against its field in one response.
	var fields apperror.Fields
	if errors.As(err, &fields) {
		resp := ErrorResponse{
			Error:   "validation_error",
			Message: "validation failed",
			Fields:  make([]FieldError, 0, len(fields)),
		}
		for _, fe := range fields {
			resp.Fields = append(resp.Fields, FieldError{Field: fe.Field, Message: fe.Message})
		}
		writeJSON(w, http.StatusBadRequest, resp)
		return
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		status := http.StatusInternalServerError
		errorType := "internal_error"

		switch {
		case errors.Is(err, apperror.ErrValidation):
			status = http.StatusBadRequest
			errorType = "validation_error"
		case errors.Is(err, apperror.ErrNotFound):
			status = http.StatusNotFound
			errorType = "not_found"
		case errors.Is(err, apperror.ErrForbidden):
			status = http.StatusForbidden
			errorType = "forbidden"
		case errors.Is(err, apperror.ErrConflict):
			status = http.StatusConflict
			errorType = "conflict"
		case errors.Is(err, apperror.ErrUnauthorized):
			status = http.StatusUnauthorized
			errorType = "unauthorized"
		case errors.Is(err, apperror.ErrInvalidCredentials):
			status = http.StatusUnauthorized
			errorType = "invalid_credentials"
		case errors.Is(err, apperror.ErrAccountLocked):
			status = http.StatusForbidden
			errorType = "account_locked"
		}

		resp := ErrorResponse{Error: errorType, Message: appErr.Message}
		if appErr.Field != "" && errorType == "validation_error" {
			resp.Fields = []FieldError{{Field: appErr.Field, Message: appErr.Message}}
		}
		writeJSON(w, status, resp)
		return
	}

	// Unknown error: log it, hide the detail from the client.
	slog.Error("unhandled error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, ErrorResponse{
		Error:   "internal_error",
		Message: "an internal error occurred",
	})
}
