package api

import (
	"encoding/json"
	"net/http"

	"github.com/trust-ledger/internal/errors"
	"github.com/trust-ledger/internal/types"
)

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
	Kind  types.ErrorKind    `json:"kind"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// respondError sends an error response with an explicit status and code
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
		Kind: types.KindValidation,
	}
	if statusCode >= 500 {
		response.Kind = types.KindSystem
	}

	json.NewEncoder(w).Encode(response)
}

// respondServiceError maps a service error to its HTTP response. The
// machine-readable code and taxonomy kind are surfaced verbatim.
func respondServiceError(w http.ResponseWriter, err error) {
	catErr := errors.Categorize(err)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(catErr.StatusCode)

	json.NewEncoder(w).Encode(ErrorResponse{
		Error: *catErr.ToServiceError(),
		Kind:  catErr.Kind,
	})
}

// parseJSONBody parses a JSON request body
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes for transport-level failures
const (
	ErrCodeInvalidInput      = "INVALID_INPUT"
	ErrCodeInternalError     = "INTERNAL_ERROR"
	ErrCodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
)
