package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"smartlists/internal/definitions"
	"smartlists/internal/library"
	"smartlists/internal/logging"
	"smartlists/internal/refresh"
)

const maxBodyBytes = 1 << 20

// writeJSON encodes v as JSON and writes it to the response writer.
// Encoding or write errors are logged since the status is already sent.
func writeJSON(w http.ResponseWriter, v interface{}) {
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Error("failed to encode JSON response: %v", err)
	}
}

// writeJSONStatus writes v as JSON with the given status code.
func writeJSONStatus(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	writeJSON(w, v)
}

// writeJSONError writes an error response as JSON with the given status code.
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONStatus(w, statusCode, map[string]string{"error": message})
}

// writeError maps err onto an HTTP status and writes it.
func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logging.Error("request failed: %v", err)
	}
	writeJSONError(w, err.Error(), status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, refresh.ErrRefreshInProgress), errors.Is(err, refresh.ErrListDisabled):
		return http.StatusConflict
	case errors.Is(err, refresh.ErrListNotFound),
		errors.Is(err, definitions.ErrNotFound),
		errors.Is(err, library.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeJSON reads a size limited JSON body into v, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
