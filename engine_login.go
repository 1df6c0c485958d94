package authcore

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authcore/internal/rate"
)

// Login verifies email and password and issues a token pair.
//
// An unknown email and a wrong password both fail with ErrInvalidCredentials
// after the same amount of hashing work.
func (e *Engine) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}

	email = normalizeEmail(email)
	ip := clientIPFromContext(ctx)

	if e.loginThrottleEnabled() {
		if err := e.throttle.CheckLogin(ctx, email, ip); err != nil {
			if errors.Is(err, rate.ErrRateLimited) {
				e.metricInc(MetricLoginRateLimited)
				e.emitAudit(ctx, auditEventLoginRateLimited, false, "", "", ErrLoginRateLimited, nil)
				return nil, ErrLoginRateLimited
			}
			return nil, fmt.Errorf("login throttle: %w", err)
		}
	}

	cred, err := e.store.FindByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			e.emitAudit(ctx, auditEventLoginFailure, false, "", "", err, nil)
			return nil, err
		}
		if _, verr := e.hasher.Verify(ctx, password, e.dummyHash); verr != nil {
			return nil, verr
		}
		return nil, e.loginFailed(ctx, email, ip, "")
	}

	ok, err := e.hasher.Verify(ctx, password, cred.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, e.loginFailed(ctx, email, ip, cred.UserID)
	}

	e.upgradeHash(ctx, cred, password)

	if e.loginThrottleEnabled() {
		if err := e.throttle.ResetLogin(ctx, email, ip); err != nil {
			e.logger.Warn().Err(err).Msg("reset login attempts")
		}
	}

	id := e.identityFor(cred.UserID, cred.Email, cred.RoleID)
	result, refresh, err := e.issuePair(id, "")
	if err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, cred.UserID, "", err, nil)
		return nil, err
	}
	if err := e.openFamily(ctx, refresh, cred.UserID); err != nil {
		e.emitAudit(ctx, auditEventLoginFailure, false, cred.UserID, refresh.Family, err, nil)
		return nil, err
	}

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, auditEventLoginSuccess, true, cred.UserID, refresh.Family, nil, nil)

	return result, nil
}

func (e *Engine) loginThrottleEnabled() bool {
	return e.throttle != nil && e.config.Security.EnableLoginThrottle
}

func (e *Engine) loginFailed(ctx context.Context, email, ip, userID string) error {
	if e.loginThrottleEnabled() {
		// Reaching the budget is reported by the next CheckLogin.
		if err := e.throttle.IncrementLogin(ctx, email, ip); err != nil && !errors.Is(err, rate.ErrRateLimited) {
			e.logger.Warn().Err(err).Msg("record failed login")
		}
	}
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, auditEventLoginFailure, false, userID, "", ErrInvalidCredentials, nil)
	return ErrInvalidCredentials
}

// upgradeHash re-hashes a verified password with the primary scheme when the
// stored encoding is legacy or under-cost. Failures are logged and ignored.
func (e *Engine) upgradeHash(ctx context.Context, cred *Credential, password string) {
	if !e.config.Password.UpgradeOnLogin || e.hashUpdater == nil {
		return
	}
	if !e.hasher.NeedsUpgrade(cred.PasswordHash) {
		return
	}

	encoded, err := e.hasher.Hash(ctx, password)
	if err != nil {
		e.logger.Warn().Err(err).Str("user_id", cred.UserID).Msg("password hash upgrade skipped")
		return
	}
	if err := e.hashUpdater.UpdatePasswordHash(ctx, cred.UserID, encoded); err != nil {
		e.logger.Warn().Err(err).Str("user_id", cred.UserID).Msg("password hash upgrade failed")
		return
	}
	e.metricInc(MetricPasswordHashUpgraded)
}
