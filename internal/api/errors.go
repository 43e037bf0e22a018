package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/seafront-labs/aquamon/internal/query"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeInternal    = "internal_error"
	ErrCodeUnavailable = "store_unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeQueryError maps query-layer sentinel errors onto HTTP responses.
// Unknown metrics are 404, malformed windows are 400, a store outage is
// 502 so clients can tell "bad request" from "try again later".
func writeQueryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, query.ErrUnknownMetric):
		writeNotFound(w, err.Error())
	case errors.Is(err, query.ErrInvalidRange), errors.Is(err, query.ErrInvalidResolution):
		writeBadRequest(w, err.Error())
	case errors.Is(err, query.ErrStoreUnavailable):
		writeError(w, http.StatusBadGateway, ErrCodeUnavailable, "time-series store unavailable")
	default:
		writeInternalError(w, "query failed")
	}
}
