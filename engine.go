package authcore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/MrEthical07/authcore/internal/audit"
	"github.com/MrEthical07/authcore/internal/rate"
	"github.com/MrEthical07/authcore/jwt"
	"github.com/MrEthical07/authcore/password"
	"github.com/MrEthical07/authcore/permission"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Engine runs the register, login, refresh, and validate flows.
//
// An Engine holds no per-call state; all methods are safe for concurrent use.
type Engine struct {
	config        Config
	store         CredentialStore
	hashUpdater   PasswordHashUpdater
	roles         *permission.RoleManager
	jwt           *jwt.Manager
	hasher        *password.Pool
	policy        password.Policy
	validate      *validator.Validate
	throttle      rate.Throttle
	localThrottle *rate.Local
	revocation    RevocationStore
	audit         *audit.Dispatcher
	metrics       *Metrics
	logger        zerolog.Logger
	now           func() time.Time
	dummyHash     string
}

// Close drains the audit queue and stops background throttle cleanup.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
	if e.localThrottle != nil {
		e.localThrottle.Stop()
	}
}

// AuditDropped reports events discarded because the audit buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil || e.metrics == nil {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}
	return e.metrics.Snapshot()
}

// Roles returns the frozen role manager used to resolve capabilities.
func (e *Engine) Roles() *permission.RoleManager {
	return e.roles
}

// RevocationEnabled reports whether refresh families are tracked server-side.
func (e *Engine) RevocationEnabled() bool {
	return e != nil && e.revocation != nil
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) ready() error {
	if e == nil || e.jwt == nil || e.store == nil || e.hasher == nil {
		return ErrEngineNotReady
	}
	return nil
}

func (e *Engine) identityFor(userID, email string, roleID permission.RoleID) Identity {
	caps := e.roles.Capabilities(roleID)
	return Identity{
		UserID:       userID,
		Email:        email,
		RoleID:       roleID,
		IsAdmin:      caps.IsAdmin(),
		Capabilities: caps,
	}
}

// issuePair signs an access token for id and a refresh token in family. An
// empty family starts a new one.
func (e *Engine) issuePair(id Identity, family string) (*AuthResult, jwt.Issued, error) {
	access, err := e.jwt.CreateAccess(jwt.Subject{
		UserID:  id.UserID,
		Email:   id.Email,
		RoleID:  uint32(id.RoleID),
		IsAdmin: id.IsAdmin,
	})
	if err != nil {
		return nil, jwt.Issued{}, e.signingFailure(err)
	}

	refresh, err := e.jwt.CreateRefresh(id.UserID, family)
	if err != nil {
		return nil, jwt.Issued{}, e.signingFailure(err)
	}

	return &AuthResult{
		Identity:         id,
		AccessToken:      access.Token,
		RefreshToken:     refresh.Token,
		AccessExpiresAt:  access.ExpiresAt,
		RefreshExpiresAt: refresh.ExpiresAt,
	}, refresh, nil
}

// signingFailure logs a token signing fault for operators. These are
// configuration or key problems, never caused by caller input.
func (e *Engine) signingFailure(err error) error {
	e.metricInc(MetricSigningFailure)
	e.logger.Error().
		Err(err).
		Bool("alert", true).
		Msg("token signing failed")
	if !errors.Is(err, ErrSigning) {
		err = fmt.Errorf("%w: %v", ErrSigning, err)
	}
	return err
}

// openFamily registers a freshly issued refresh token when revocation is on.
func (e *Engine) openFamily(ctx context.Context, refresh jwt.Issued, userID string) error {
	if e.revocation == nil {
		return nil
	}
	if err := e.revocation.Register(ctx, refresh.Family, refresh.ID, userID, e.jwt.RefreshTTL()); err != nil {
		return fmt.Errorf("%w: %v", ErrRevocationUnavailable, err)
	}
	return nil
}

// normalizeEmail trims and lower-cases an address. Stores only ever see
// normalized emails.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
