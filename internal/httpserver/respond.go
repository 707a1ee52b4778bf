package httpserver

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
)

// Respond writes a JSON response with the given status code.
func Respond(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("encoding response", "error", err)
	}
}

// FieldError describes a single field-level validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ErrorResponse is the standard JSON error envelope used across the admission API.
type ErrorResponse struct {
	Error       string       `json:"error"`
	Detail      string       `json:"detail,omitempty"`
	FieldErrors []FieldError `json:"field_errors,omitempty"`
}

// RespondError writes a JSON error response with no field-level detail.
func RespondError(w http.ResponseWriter, status int, err string, detail string) {
	Respond(w, status, ErrorResponse{
		Error:  err,
		Detail: detail,
	})
}

// RespondValidationError writes a 422 response with field-level validation errors.
func RespondValidationError(w http.ResponseWriter, errs []FieldError) {
	Respond(w, http.StatusUnprocessableEntity, ErrorResponse{
		Error:       "validation_error",
		Detail:      "one or more fields failed validation",
		FieldErrors: errs,
	})
}

// RespondRateLimited writes a 429 response with a Retry-After header.
func RespondRateLimited(w http.ResponseWriter, retryAfterSeconds int) {
	if retryAfterSeconds < 1 {
		retryAfterSeconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(retryAfterSeconds))
	RespondError(w, http.StatusTooManyRequests, "rate_limited", "too many requests, retry later")
}
