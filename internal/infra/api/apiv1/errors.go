package apiv1

import (
	"encoding/json"
	"errors"
	"net/http"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"video-monetization/internal/domain"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErrorMsg(w http.ResponseWriter, status int, code, msg string) {
	writeJSON(w, status, ErrorBody{Error: code, Message: msg})
}

// statusFor maps domain errors onto HTTP status codes and stable error codes.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidArgument):
		return http.StatusBadRequest, "validation_failed"
	case errors.Is(err, domain.ErrAccountResolutionFailed):
		return http.StatusBadRequest, "account_resolution_failed"
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, domain.ErrInsufficientBalance):
		return http.StatusConflict, "insufficient_balance"
	case errors.Is(err, domain.ErrInvalidState):
		return http.StatusConflict, "invalid_state"
	case errors.Is(err, domain.ErrLockNotAcquired):
		return http.StatusConflict, "busy"
	case errors.Is(err, domain.ErrAlreadyExists):
		return http.StatusConflict, "already_exists"
	case errors.Is(err, domain.ErrProviderUnreachable), errors.Is(err, domain.ErrProviderRejected):
		return http.StatusBadGateway, "provider_error"
	case errors.Is(err, domain.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	case errors.Is(err, domain.ErrUnconfiguredProvider):
		return http.StatusServiceUnavailable, "provider_unconfigured"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger(r).Error().Err(err).Str("path", r.URL.Path).Msg("request failed")
		if status == http.StatusInternalServerError {
			writeErrorMsg(w, status, code, "internal error")
			return
		}
	}
	writeErrorMsg(w, status, code, err.Error())
}

func writeValidation(w http.ResponseWriter, err error) {
	var verrs validation.Errors
	if errors.As(err, &verrs) {
		writeJSON(w, http.StatusBadRequest, ErrorBody{Error: "validation_failed", Fields: verrs})
		return
	}
	writeErrorMsg(w, http.StatusBadRequest, "validation_failed", err.Error())
}

type validatable interface{ Validate() error }

// decode reads a JSON body into dst and validates it. It writes the 400
// response itself and reports false on failure.
func decode(w http.ResponseWriter, r *http.Request, dst validatable) bool {
	if r.Body == nil || r.ContentLength == 0 {
		writeErrorMsg(w, http.StatusBadRequest, "bad_request", "missing body")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeErrorMsg(w, http.StatusBadRequest, "bad_request", "invalid json")
		return false
	}
	if err := dst.Validate(); err != nil {
		writeValidation(w, err)
		return false
	}
	return true
}
