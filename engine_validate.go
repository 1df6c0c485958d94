package authcore

import (
	"time"

	"github.com/MrEthical07/authcore/permission"
)

// ValidateToken verifies an access token and returns the identity it carries.
// No store is consulted; capabilities are resolved from the token's role id
// through the engine's frozen role manager.
//
// Failures are one of ErrMalformedToken, ErrInvalidSignature, ErrExpiredToken,
// or ErrMalformedClaims, checked in that order. A refresh token fails with
// ErrTokenTypeMismatch.
func (e *Engine) ValidateToken(token string) (Identity, error) {
	if e == nil || e.jwt == nil {
		return Identity{}, ErrEngineNotReady
	}

	var start time.Time
	if e.metrics.LatencyEnabled() {
		start = time.Now()
	}

	claims, err := e.jwt.ParseAccess(token)

	if !start.IsZero() {
		e.metrics.Observe(MetricValidateLatency, time.Since(start))
	}
	if err != nil {
		e.metricInc(MetricValidateFailure)
		return Identity{}, err
	}
	e.metricInc(MetricValidateSuccess)

	roleID := permission.RoleID(claims.RoleID)
	return Identity{
		UserID:       claims.UserID,
		Email:        claims.Email,
		RoleID:       roleID,
		IsAdmin:      claims.IsAdmin,
		Capabilities: e.roles.Capabilities(roleID),
	}, nil
}

// Authorize returns ErrPermissionDenied unless id satisfies req.
func (e *Engine) Authorize(id Identity, req permission.Requirement) error {
	return permission.Check(id.Subject(), req)
}
