package revocation

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrFamilyNotFound is returned when a family was revoked, expired, or never registered.
	ErrFamilyNotFound = errors.New("refresh family not found")
	// ErrReuseDetected is returned when a superseded refresh token is presented.
	// The family has already been revoked when this error is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")
	// ErrRedisUnavailable wraps Redis transport and script failures.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidArgument is returned for empty ids or non-positive TTLs.
	ErrInvalidArgument = errors.New("revocation: invalid argument")
)

// Store tracks refresh token families. A family is the chain of refresh tokens
// descending from one login; only its most recent token id is accepted.
type Store interface {
	// Register opens a family whose current token id is jti.
	Register(ctx context.Context, family, jti, userID string, ttl time.Duration) error
	// Rotate replaces the current token id of family with next when presented
	// matches it. A mismatch revokes the family and returns ErrReuseDetected.
	// Passing next == presented only confirms the token is current.
	Rotate(ctx context.Context, family, presented, next string, ttl time.Duration) error
	// Revoke removes family. Revoking an unknown family is not an error.
	Revoke(ctx context.Context, family string) error
	// RevokeAllForUser removes every family belonging to userID.
	RevokeAllForUser(ctx context.Context, userID string) error
}

func validateRegister(family, jti, userID string, ttl time.Duration) error {
	if family == "" || jti == "" || userID == "" || ttl <= 0 {
		return ErrInvalidArgument
	}
	return nil
}

func validateRotate(family, presented, next string, ttl time.Duration) error {
	if family == "" || presented == "" || next == "" || ttl <= 0 {
		return ErrInvalidArgument
	}
	return nil
}
