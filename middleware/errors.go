package middleware

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/MrEthical07/authcore"
)

// ErrorBody is the JSON shape written by WriteError.
type ErrorBody struct {
	Error   string   `json:"error"`
	Message string   `json:"message"`
	Reasons []string `json:"reasons,omitempty"`
}

// StatusFor maps an engine error to an HTTP status code.
func StatusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, authcore.ErrWeakPassword),
		errors.Is(err, authcore.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, authcore.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, authcore.ErrLoginRateLimited),
		errors.Is(err, authcore.ErrRefreshRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, authcore.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, authcore.ErrInvalidCredentials),
		errors.Is(err, authcore.ErrMalformedToken),
		errors.Is(err, authcore.ErrInvalidSignature),
		errors.Is(err, authcore.ErrExpiredToken),
		errors.Is(err, authcore.ErrMalformedClaims),
		errors.Is(err, authcore.ErrRefreshRevoked),
		errors.Is(err, authcore.ErrRefreshReuse):
		return http.StatusUnauthorized
	default:
		return http.StatusInternalServerError
	}
}

// WriteError writes err as a JSON error body. Server-side failures are
// reported without their text.
func WriteError(w http.ResponseWriter, err error) {
	status := StatusFor(err)
	body := ErrorBody{Error: errorCode(status, err), Message: http.StatusText(status)}

	var weak *authcore.WeakPasswordError
	switch {
	case errors.As(err, &weak):
		body.Message = authcore.ErrWeakPassword.Error()
		body.Reasons = append([]string(nil), weak.Reasons...)
	case status == http.StatusBadRequest:
		body.Message = err.Error()
	case status == http.StatusUnauthorized && errors.Is(err, authcore.ErrInvalidCredentials):
		body.Message = authcore.ErrInvalidCredentials.Error()
	}

	if status == http.StatusUnauthorized {
		w.Header().Set("WWW-Authenticate", `Bearer`)
	}
	WriteJSON(w, status, body)
}

// WriteJSON writes v with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorCode(status int, err error) string {
	switch status {
	case http.StatusBadRequest:
		if errors.Is(err, authcore.ErrWeakPassword) {
			return "weak_password"
		}
		return "invalid_input"
	case http.StatusConflict:
		return "duplicate_email"
	case http.StatusTooManyRequests:
		return "rate_limited"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusUnauthorized:
		switch {
		case errors.Is(err, authcore.ErrInvalidCredentials):
			return "invalid_credentials"
		case errors.Is(err, authcore.ErrExpiredToken):
			return "token_expired"
		case errors.Is(err, authcore.ErrRefreshRevoked), errors.Is(err, authcore.ErrRefreshReuse):
			return "token_revoked"
		default:
			return "invalid_token"
		}
	default:
		return "internal_error"
	}
}
