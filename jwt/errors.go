package jwt

import (
	"errors"
	"fmt"
)

// Validation failures, in the order the validator checks for them.
var (
	ErrMalformedToken   = errors.New("malformed token")
	ErrInvalidSignature = errors.New("invalid token signature")
	ErrExpiredToken     = errors.New("token expired")
	ErrMalformedClaims  = errors.New("malformed token claims")

	// ErrTokenTypeMismatch is reported when an access token is presented where a
	// refresh token is expected, or the other way around.
	ErrTokenTypeMismatch = fmt.Errorf("%w: token type mismatch", ErrMalformedClaims)
)

var (
	// ErrSigning marks configuration or cryptographic faults on the issuing side.
	ErrSigning = errors.New("token signing failed")
	// ErrMissingSubject is returned when a token is requested for an empty user id.
	ErrMissingSubject = errors.New("token subject is required")
)
