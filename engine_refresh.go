package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/revocation"
)

// Refresh exchanges a refresh token for a new access token.
//
// The subject is re-read from the CredentialStore so role changes apply on the
// next refresh. With Config.Refresh.Rotate a new refresh token in the same
// family is returned; otherwise the presented one is handed back. With a
// RevocationStore, a token that was already rotated away revokes its family
// and fails with ErrRefreshReuse.
//
// Reuse detection cannot tell a replay from a client retry: presenting the same
// token twice, even concurrently, revokes the family, and the token returned to
// the first caller then fails with ErrRefreshRevoked. Clients must not retry a
// refresh with a token they already sent.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	claims, err := e.jwt.ParseRefresh(refreshToken)
	if err != nil {
		e.refreshFailed(ctx, "", "", err)
		return nil, err
	}

	if e.throttle != nil && e.config.Security.EnableRefreshThrottle {
		if err := e.throttle.CheckRefresh(ctx, claims.Family); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricRefreshRateLimited)
				e.emitAudit(ctx, auditEventRefreshRateLimited, false, claims.UserID, claims.Family, ErrRefreshRateLimited, nil)
				return nil, ErrRefreshRateLimited
			}
			return nil, fmt.Errorf("refresh throttle: %w", err)
		}
	}

	cred, err := e.store.FindByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			if e.revocation != nil {
				if rerr := e.revocation.Revoke(ctx, claims.Family); rerr != nil {
					e.logger.Warn().Err(rerr).Msg("revoke orphaned refresh family")
				}
			}
			err = ErrRefreshRevoked
		}
		e.refreshFailed(ctx, claims.UserID, claims.Family, err)
		return nil, err
	}

	id := e.identityFor(cred.UserID, cred.Email, cred.RoleID)

	access, err := e.jwt.CreateAccess(jwt.Subject{
		UserID:  id.UserID,
		Email:   id.Email,
		RoleID:  uint32(id.RoleID),
		IsAdmin: id.IsAdmin,
	})
	if err != nil {
		err = e.signingFailure(err)
		e.refreshFailed(ctx, claims.UserID, claims.Family, err)
		return nil, err
	}

	result := &AuthResult{
		Identity:         id,
		AccessToken:      access.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: claims.ExpiresAt,
	}
	next := claims.ID

	if e.config.Refresh.Rotate {
		rotated, err := e.jwt.CreateRefresh(claims.UserID, claims.Family)
		if err != nil {
			err = e.signingFailure(err)
			e.refreshFailed(ctx, claims.UserID, claims.Family, err)
			return nil, err
		}
		result.RefreshToken = rotated.Token
		result.RefreshExpiresAt = rotated.ExpiresAt
		next = rotated.ID
	}

	if e.revocation != nil {
		err := e.revocation.Rotate(ctx, claims.Family, claims.ID, next, e.jwt.RefreshTTL())
		switch {
		case err == nil:
		case errors.Is(err, revocation.ErrReuseDetected):
			e.metricInc(MetricRefreshReuseDetected)
			e.metricInc(MetricRefreshFailure)
			e.logger.Warn().
				Str("user_id", claims.UserID).
				Str("family", claims.Family).
				Msg("refresh token reuse detected, family revoked")
			e.emitAudit(ctx, auditEventRefreshReuseDetected, false, claims.UserID, claims.Family, ErrRefreshReuse, nil)
			return nil, ErrRefreshReuse
		case errors.Is(err, revocation.ErrFamilyNotFound):
			e.refreshFailed(ctx, claims.UserID, claims.Family, ErrRefreshRevoked)
			return nil, ErrRefreshRevoked
		default:
			err = fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
			e.refreshFailed(ctx, claims.UserID, claims.Family, err)
			return nil, err
		}
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, auditEventRefreshSuccess, true, claims.UserID, claims.Family, nil, nil)

	return result, nil
}

func (e *Engine) refreshFailed(ctx context.Context, userID, family string, err error) {
	e.metricInc(MetricRefreshFailure)
	e.emitAudit(ctx, auditEventRefreshInvalid, false, userID, family, err, nil)
}
