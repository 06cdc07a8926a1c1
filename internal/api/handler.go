// Package api provides HTTP handlers for the triage API.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/ameotech/triage/internal/apperr"
)

// maxRequestBodySize bounds every JSON request body.
const maxRequestBodySize = 1 << 20

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// WriteError maps err onto a status and client-safe message. Server errors
// are logged with the underlying cause.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status, message := apperr.StatusOf(err)
	if status >= http.StatusInternalServerError {
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "status", status, "error", err)
	}
	Error(w, status, message)
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return apperr.New(err, http.StatusRequestEntityTooLarge, "request body too large")
		case errors.Is(err, io.EOF):
			return apperr.BadRequest("request body is required")
		default:
			return apperr.New(err, http.StatusBadRequest, "invalid request body")
		}
	}
	return nil
}

// readBody returns a bounded raw request body.
func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	data, err := io.ReadAll(r.Body)
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, apperr.New(err, http.StatusRequestEntityTooLarge, "request body too large")
		}
		return nil, apperr.New(err, http.StatusBadRequest, "failed to read request body")
	}
	return data, nil
}
