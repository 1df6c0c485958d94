package authcore

import (
	"errors"
	"strings"

	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/permission"
)

var (
	// ErrInvalidCredentials is returned by Login for an unknown email and for a
	// wrong password alike.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrDuplicateEmail is returned by Register and CredentialStore.Create when
	// the email is already taken.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrWeakPassword is matched by every *WeakPasswordError.
	ErrWeakPassword = errors.New("weak password")
	// ErrInvalidInput marks malformed request fields and passwords the hasher
	// refuses. Hasher refusals also match password.ErrInvalidInput.
	ErrInvalidInput = errors.New("invalid input")
	// ErrUserNotFound is returned by CredentialStore lookups for unknown users.
	ErrUserNotFound = errors.New("user not found")
	// ErrStoreUnavailable wraps CredentialStore backend failures.
	ErrStoreUnavailable = errors.New("credential store unavailable")

	ErrMalformedToken   = jwt.ErrMalformedToken
	ErrInvalidSignature = jwt.ErrInvalidSignature
	ErrExpiredToken     = jwt.ErrExpiredToken
	ErrMalformedClaims  = jwt.ErrMalformedClaims
	// ErrTokenTypeMismatch matches ErrMalformedClaims as well.
	ErrTokenTypeMismatch = jwt.ErrTokenTypeMismatch
	// ErrSigning marks key or configuration faults while issuing tokens. It is
	// logged with alert=true before being returned.
	ErrSigning = jwt.ErrSigning

	// ErrRefreshRevoked is returned when the refresh token's family was revoked
	// by logout, by reuse detection, or by expiry on the server side.
	ErrRefreshRevoked = errors.New("refresh token revoked")
	// ErrRefreshReuse is returned when an already rotated refresh token is
	// presented. The whole family is revoked as a side effect.
	ErrRefreshReuse = errors.New("refresh token reuse detected")
	// ErrRevocationUnavailable is returned by Logout when no RevocationStore is
	// configured, and wraps revocation backend failures.
	ErrRevocationUnavailable = errors.New("refresh revocation unavailable")

	ErrLoginRateLimited   = errors.New("login rate limited")
	ErrRefreshRateLimited = errors.New("refresh rate limited")

	// ErrPermissionDenied is returned by Authorize.
	ErrPermissionDenied = permission.ErrDenied

	ErrEngineNotReady = errors.New("engine not initialized")
)

// WeakPasswordError lists every password policy rule a candidate failed, in
// policy order.
type WeakPasswordError struct {
	Reasons []string
}

func (e *WeakPasswordError) Error() string {
	if len(e.Reasons) == 0 {
		return ErrWeakPassword.Error()
	}
	return ErrWeakPassword.Error() + ": " + strings.Join(e.Reasons, "; ")
}

func (e *WeakPasswordError) Is(target error) bool {
	return target == ErrWeakPassword
}
