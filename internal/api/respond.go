package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	apperrors "polypaper/internal/errors"
	"polypaper/internal/security"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// statusFor maps a domain error to its HTTP status and short code.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrInputValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, apperrors.ErrInsufficientBalance):
		return http.StatusPaymentRequired, "insufficient_balance"
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperrors.ErrAlreadyClosed):
		return http.StatusConflict, "already_closed"
	case errors.Is(err, apperrors.ErrProvider):
		return http.StatusBadGateway, "provider"
	case errors.Is(err, security.ErrReadOnly):
		return http.StatusForbidden, "read_only"
	}
	return http.StatusInternalServerError, "internal"
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", r.URL.Path).Msg("Request failed")
	}
	writeJSON(w, status, errorBody{
		Error:     code,
		Message:   err.Error(),
		Retryable: apperrors.IsRetryable(err),
	})
}

// decodeBody decodes a JSON request body. An empty body is accepted when optional is set.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}, optional bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if optional && errors.Is(err, io.EOF) {
			return nil
		}
		return apperrors.NewValidationError("body", "", "invalid request body: "+err.Error())
	}
	return nil
}
