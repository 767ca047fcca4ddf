package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/dmitrijs2005/manylla-sync/internal/common"
)

// Machine-readable error codes carried in the "code" field of error bodies.
const (
	CodeInvalidInput     = "invalid_input"
	CodeNotFound         = "not_found"
	CodeConflict         = "conflict"
	CodeShareExpired     = "share_expired"
	CodeShareExhausted   = "share_exhausted"
	CodeRateLimited      = "rate_limited"
	CodeMethodNotAllowed = "method_not_allowed"
	CodeUnauthorized     = "unauthorized"
	CodeInternal         = "internal"
)

type errorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, errorResponse{Error: message, Code: code})
}

// respondServiceError maps service errors onto statuses. Unknown and
// expired shares differ only in body text and code, never in what the
// status reveals about an id that was never issued.
func (s *Server) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *common.ValidationError
	switch {
	case errors.As(err, &verr):
		respondError(w, http.StatusBadRequest, CodeInvalidInput, verr.Error())
	case errors.Is(err, common.ErrValidation):
		respondError(w, http.StatusBadRequest, CodeInvalidInput, err.Error())
	case errors.Is(err, common.ErrShareExpired):
		respondError(w, http.StatusForbidden, CodeShareExpired, "This share has expired")
	case errors.Is(err, common.ErrShareExhausted):
		respondError(w, http.StatusForbidden, CodeShareExhausted, "This share has reached its view limit")
	case errors.Is(err, common.ErrNotFound):
		respondError(w, http.StatusNotFound, CodeNotFound, "Not found")
	case errors.Is(err, common.ErrConflict):
		respondError(w, http.StatusConflict, CodeConflict, "Sync group already exists")
	case errors.Is(err, common.ErrUnauthorized), errors.Is(err, common.ErrInvalidToken), errors.Is(err, common.ErrTokenExpired):
		respondError(w, http.StatusUnauthorized, CodeUnauthorized, "Unauthorized")
	default:
		s.logger.Error(r.Context(), "request failed", "path", r.URL.Path, "request_id", requestIDFrom(r.Context()), "error", err)
		respondError(w, http.StatusInternalServerError, CodeInternal, "Internal server error")
	}
}

// decodeJSON reads a single JSON object from the body into v.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return common.NewValidationError("body", "request body too large")
		}
		return common.NewValidationError("body", "malformed JSON")
	}
	return nil
}
