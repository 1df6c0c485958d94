package authcore

import (
	"context"
	"fmt"
)

// Logout revokes the family of refreshToken. Access tokens already issued stay
// valid until they expire.
func (e *Engine) Logout(ctx context.Context, refreshToken string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.revocation == nil {
		return ErrRevocationUnavailable
	}

	claims, err := e.jwt.ParseRefresh(refreshToken)
	if err != nil {
		return err
	}

	if err := e.revocation.Revoke(ctx, claims.Family); err != nil {
		err = fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		e.emitAudit(ctx, auditEventLogout, false, claims.UserID, claims.Family, err, nil)
		return err
	}

	e.metricInc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, claims.UserID, claims.Family, nil, nil)
	return nil
}

// LogoutAll revokes every refresh family of userID.
func (e *Engine) LogoutAll(ctx context.Context, userID string) error {
	if err := e.ready(); err != nil {
		return err
	}
	if e.revocation == nil {
		return ErrRevocationUnavailable
	}
	if userID == "" {
		return fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	if err := e.revocation.RevokeAllForUser(ctx, userID); err != nil {
		err = fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
		e.emitAudit(ctx, auditEventLogoutAll, false, userID, "", err, nil)
		return err
	}

	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, auditEventLogoutAll, true, userID, "", nil, nil)
	return nil
}
