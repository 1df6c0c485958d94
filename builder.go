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
	"github.com/MrEthical07/authcore/revocation"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// localThrottleSweep is how often idle in-process throttle buckets are dropped.
const localThrottleSweep = 5 * time.Minute

// Builder assembles an Engine.
//
// A Builder is single-use: Build may succeed only once.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	store      CredentialStore
	revocation RevocationStore
	roles      *permission.RoleManager
	auditSink  AuditSink
	logger     zerolog.Logger
	now        func() time.Time

	built bool
}

// New returns a Builder seeded with DefaultConfig.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		logger: zerolog.Nop(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCredentialStore sets the user store. It is required.
func (b *Builder) WithCredentialStore(store CredentialStore) *Builder {
	b.store = store
	return b
}

// WithRedis enables the Redis-backed login throttle and, unless
// WithRevocationStore is also used, Redis-backed refresh revocation.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithRevocationStore enables refresh token family tracking through store.
func (b *Builder) WithRevocationStore(store RevocationStore) *Builder {
	b.revocation = store
	return b
}

// WithRoles replaces the default admin/user roles. The manager is frozen by Build.
func (b *Builder) WithRoles(roles *permission.RoleManager) *Builder {
	b.roles = roles
	return b
}

func (b *Builder) WithLogger(logger zerolog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink sets the audit destination. Events are only dispatched when
// Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// WithClock overrides time.Now for token issuance, expiry checks, and throttling.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build validates the configuration and wires every component.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.store == nil {
		return nil, errors.New("credential store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- ROLES --------
	roles := b.roles
	if roles == nil {
		roles = permission.DefaultRoleManager()
	}
	roles.Freeze()
	if _, ok := roles.Role(cfg.Roles.DefaultRoleID); !ok {
		return nil, fmt.Errorf("Roles DefaultRoleID %d does not exist in role manager", cfg.Roles.DefaultRoleID)
	}

	// -------- PASSWORDS --------
	hasher, err := newPasswordHasher(cfg.Password)
	if err != nil {
		return nil, err
	}
	pool := password.NewPool(hasher, cfg.Password.MaxConcurrentHashes)

	// -------- TOKENS --------
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		SigningMethod: jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:    cloneBytes(cfg.JWT.PrivateKey),
		PublicKey:     cloneBytes(cfg.JWT.PublicKey),
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		KeyID:         cfg.JWT.KeyID,
		VerifyKeys:    cfg.JWT.VerifyKeys,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:   cfg,
		store:    b.store,
		roles:    roles,
		jwt:      jm,
		hasher:   pool,
		policy:   password.NewPolicy(cfg.Password.MinLength),
		validate: validator.New(validator.WithRequiredStructEnabled()),
		metrics:  NewMetrics(cfg.Metrics),
		logger:   b.logger.With().Str("component", "authcore").Logger(),
		now:      now,
	}
	if updater, ok := b.store.(PasswordHashUpdater); ok {
		engine.hashUpdater = updater
	}

	// -------- THROTTLING --------
	rateCfg := rate.Config{
		EnableIPThrottle:        cfg.Security.EnableIPThrottle,
		EnableRefreshThrottle:   cfg.Security.EnableRefreshThrottle,
		MaxLoginAttempts:        cfg.Security.MaxLoginAttempts,
		LoginCooldownDuration:   cfg.Security.LoginCooldownDuration,
		MaxRefreshAttempts:      cfg.Security.MaxRefreshAttempts,
		RefreshCooldownDuration: cfg.Security.RefreshCooldownDuration,
		KeyPrefix:               cfg.Security.RateLimitPrefix,
	}
	if cfg.Security.EnableLoginThrottle || cfg.Security.EnableRefreshThrottle {
		if b.redis != nil {
			engine.throttle = rate.New(b.redis, rateCfg)
		} else {
			local := rate.NewLocal(rateCfg, localThrottleSweep, now)
			engine.throttle = local
			engine.localThrottle = local
		}
	}

	// -------- REVOCATION --------
	switch {
	case b.revocation != nil:
		engine.revocation = b.revocation
	case b.redis != nil:
		engine.revocation = revocation.NewRedisStore(b.redis, cfg.Refresh.RedisPrefix)
	}

	// -------- AUDIT --------
	engine.audit = audit.NewDispatcher(audit.Config{
		Enabled:    cfg.Audit.Enabled,
		BufferSize: cfg.Audit.BufferSize,
		DropIfFull: cfg.Audit.DropIfFull,
	}, b.auditSink)

	// Unknown-email logins verify against this hash so they cost the same as
	// a wrong password.
	dummy, err := pool.Hash(context.Background(), dummyPassword(cfg.Password.MinLength))
	if err != nil {
		engine.Close()
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	engine.dummyHash = dummy

	b.built = true

	return engine, nil
}

func newPasswordHasher(cfg PasswordConfig) (password.Hasher, error) {
	argon, err := password.NewArgon2(password.Config{
		Memory:      cfg.Memory,
		Time:        cfg.Time,
		Parallelism: cfg.Parallelism,
		SaltLength:  cfg.SaltLength,
		KeyLength:   cfg.KeyLength,
		MinLength:   cfg.MinLength,
	})
	if err != nil {
		return nil, err
	}
	bc, err := password.NewBcrypt(cfg.BcryptCost, cfg.MinLength)
	if err != nil {
		return nil, err
	}

	if cfg.Algorithm == "bcrypt" {
		return password.NewChain(bc, argon), nil
	}
	return password.NewChain(argon, bc), nil
}

func dummyPassword(minLength int) string {
	pw := uuid.NewString()
	if n := len(pw); minLength > n {
		pw = strings.Repeat(pw, minLength/n+1)
	}
	return pw
}
