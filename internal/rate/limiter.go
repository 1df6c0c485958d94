package rate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Config holds rate limiter tuning parameters.
type Config struct {
	EnableIPThrottle        bool
	EnableRefreshThrottle   bool
	MaxLoginAttempts        int
	LoginCooldownDuration   time.Duration
	MaxRefreshAttempts      int
	RefreshCooldownDuration time.Duration
	// KeyPrefix namespaces Redis keys. Empty selects "ac".
	KeyPrefix string
}

// Throttle is implemented by Limiter and Local.
type Throttle interface {
	CheckLogin(ctx context.Context, identifier, ip string) error
	IncrementLogin(ctx context.Context, identifier, ip string) error
	ResetLogin(ctx context.Context, identifier, ip string) error
	CheckRefresh(ctx context.Context, family string) error
}

// Limiter enforces login and refresh budgets with Redis fixed-window counters,
// so every instance sharing the Redis sees the same counts.
type Limiter struct {
	redis  redis.UniversalClient
	config Config
	prefix string
}

// hitScript increments a window counter and starts the window on its first hit,
// in one round trip.
var hitScript = redis.NewScript(`
local n = redis.call("INCR", KEYS[1])
if n == 1 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return n
`)

// New creates a rate [Limiter] backed by the given Redis client.
func New(redisClient redis.UniversalClient, cfg Config) *Limiter {
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ac"
	}
	return &Limiter{redis: redisClient, config: cfg, prefix: cfg.KeyPrefix}
}

// CheckLogin returns ErrRateLimited once MaxLoginAttempts failures were recorded
// for the identifier (or, with IP throttling, the client IP) in the current window.
func (l *Limiter) CheckLogin(ctx context.Context, identifier, ip string) error {
	keys := l.loginKeys(identifier, ip)
	cmds := make([]*redis.StringCmd, len(keys))
	_, err := l.redis.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, key := range keys {
			cmds[i] = p.Get(ctx, key)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return unavailable(err)
	}
	for _, cmd := range cmds {
		n, err := cmd.Int64()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return unavailable(err)
		}
		if n >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// IncrementLogin records a failed login attempt for the identifier+IP pair.
func (l *Limiter) IncrementLogin(ctx context.Context, identifier, ip string) error {
	for _, key := range l.loginKeys(identifier, ip) {
		n, err := l.hit(ctx, key, l.config.LoginCooldownDuration)
		if err != nil {
			return err
		}
		if n >= int64(l.config.MaxLoginAttempts) {
			return ErrRateLimited
		}
	}
	return nil
}

// ResetLogin clears the identifier counter after a successful login. The IP
// counter is left alone so one valid account cannot reset an IP-wide budget.
func (l *Limiter) ResetLogin(ctx context.Context, identifier, _ string) error {
	if err := l.redis.Del(ctx, l.key("al", identifier)).Err(); err != nil {
		return unavailable(err)
	}
	return nil
}

// CheckRefresh counts a refresh attempt for the family and fails once the
// window budget is exceeded.
func (l *Limiter) CheckRefresh(ctx context.Context, family string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	n, err := l.hit(ctx, l.key("ar", family), l.config.RefreshCooldownDuration)
	if err != nil {
		return err
	}
	if n > int64(l.config.MaxRefreshAttempts) {
		return ErrRateLimited
	}
	return nil
}

// GetLoginAttempts returns the current attempt counter for an identifier.
// Missing keys return zero and do not reveal account existence.
func (l *Limiter) GetLoginAttempts(ctx context.Context, identifier string) (int, error) {
	n, err := l.redis.Get(ctx, l.key("al", identifier)).Int()
	switch {
	case errors.Is(err, redis.Nil):
		return 0, nil
	case err != nil:
		return 0, unavailable(err)
	}
	return max(n, 0), nil
}

// loginKeys lists the identifier key, then the IP key when IP throttling
// applies.
func (l *Limiter) loginKeys(identifier, ip string) []string {
	keys := []string{l.key("al", identifier)}
	if l.config.EnableIPThrottle && ip != "" {
		keys = append(keys, l.key("ali", ip))
	}
	return keys
}

func (l *Limiter) key(kind, id string) string {
	return l.prefix + ":" + kind + ":" + id
}

func (l *Limiter) hit(ctx context.Context, key string, window time.Duration) (int64, error) {
	n, err := hitScript.Run(ctx, l.redis, []string{key}, window.Milliseconds()).Int64()
	if err != nil {
		return 0, unavailable(err)
	}
	return n, nil
}

func unavailable(err error) error {
	return fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
}
