package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/rl1809/liora-bloom/internal/core/service"
	"github.com/rl1809/liora-bloom/internal/port"
)

type ErrorResponse struct {
	Error   string   `json:"error"`
	Code    string   `json:"code,omitempty"`
	Details string   `json:"details,omitempty"`
	Fields  []string `json:"fields,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func respondError(w http.ResponseWriter, status int, code, message string) {
	respondJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// respondServiceError maps a service failure to a status and error code.
// Unknown errors are logged and hidden behind a generic message.
func (h *HTTPHandler) respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *service.ValidationError
	if errors.As(err, &verr) {
		respondJSON(w, http.StatusUnprocessableEntity, ErrorResponse{
			Error:  "please complete the required fields",
			Code:   "validation_failed",
			Fields: verr.Fields,
		})
		return
	}

	var submitErr *service.SubmitError
	if errors.As(err, &submitErr) {
		respondError(w, http.StatusBadGateway, "order_failed", submitErr.Message)
		return
	}

	var backendErr *port.BackendError
	if errors.As(err, &backendErr) && backendErr.Rejected() {
		respondError(w, http.StatusBadRequest, "auth_failed", backendErr.Message)
		return
	}

	switch {
	case errors.Is(err, service.ErrProductNotFound):
		respondError(w, http.StatusNotFound, "product_not_found", err.Error())
	case errors.Is(err, service.ErrOrderNotFound):
		respondError(w, http.StatusNotFound, "order_not_found", err.Error())
	case errors.Is(err, service.ErrReviewNotFound):
		respondError(w, http.StatusNotFound, "review_not_found", err.Error())
	case errors.Is(err, service.ErrProfileNotFound):
		respondError(w, http.StatusNotFound, "profile_not_found", err.Error())
	case errors.Is(err, service.ErrUnknownAddOn):
		respondError(w, http.StatusBadRequest, "unknown_addon", err.Error())
	case errors.Is(err, service.ErrEmptyCart):
		respondError(w, http.StatusBadRequest, "empty_cart", err.Error())
	case errors.Is(err, service.ErrSubmissionInFlight):
		respondError(w, http.StatusConflict, "submission_in_flight", err.Error())
	case errors.Is(err, service.ErrIllegalTransition):
		respondError(w, http.StatusConflict, "illegal_transition", err.Error())
	case errors.Is(err, service.ErrProfileMissing):
		respondError(w, http.StatusForbidden, "profile_missing", err.Error())
	case errors.Is(err, service.ErrSignupIncomplete):
		respondError(w, http.StatusInternalServerError, "signup_incomplete", err.Error())
	case errors.Is(err, port.ErrBackendUnavailable):
		respondError(w, http.StatusServiceUnavailable, "backend_unavailable", "service temporarily unavailable")
	default:
		h.log.Error("request failed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
		respondError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

// decodeJSON reads a JSON body into dst, rejecting unknown fields.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		respondJSON(w, http.StatusBadRequest, ErrorResponse{
			Error:   "invalid request body",
			Code:    "invalid_request",
			Details: err.Error(),
		})
		return false
	}
	return true
}
