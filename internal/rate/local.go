package rate

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

type bucket struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// Local is an in-process Throttle built on token buckets. A budget of N
// attempts per cooldown refills at N/cooldown tokens per second, so an
// exhausted identifier regains one attempt every cooldown/N.
type Local struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	login   map[string]*bucket
	ip      map[string]*bucket
	refresh map[string]*bucket

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewLocal returns a Local throttle. A positive cleanupInterval starts a
// background sweep of idle buckets; stop it with Stop.
func NewLocal(cfg Config, cleanupInterval time.Duration, now func() time.Time) *Local {
	if now == nil {
		now = time.Now
	}
	l := &Local{
		config:  cfg,
		now:     now,
		login:   make(map[string]*bucket),
		ip:      make(map[string]*bucket),
		refresh: make(map[string]*bucket),
		stopCh:  make(chan struct{}),
	}
	if cleanupInterval > 0 {
		go l.cleanupLoop(cleanupInterval)
	}
	return l
}

// Stop ends the background sweep. It is safe to call more than once.
func (l *Local) Stop() {
	l.stopOnce.Do(func() { close(l.stopCh) })
}

func (l *Local) CheckLogin(_ context.Context, identifier, ip string) error {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if b, ok := l.login[identifier]; ok && b.limiter.TokensAt(now) < 1 {
		return ErrRateLimited
	}
	if l.config.EnableIPThrottle && ip != "" {
		if b, ok := l.ip[ip]; ok && b.limiter.TokensAt(now) < 1 {
			return ErrRateLimited
		}
	}
	return nil
}

func (l *Local) IncrementLogin(_ context.Context, identifier, ip string) error {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	limited := false
	b := l.bucketLocked(l.login, identifier, l.config.MaxLoginAttempts, l.config.LoginCooldownDuration, now)
	if !b.limiter.AllowN(now, 1) || b.limiter.TokensAt(now) < 1 {
		limited = true
	}
	if l.config.EnableIPThrottle && ip != "" {
		b := l.bucketLocked(l.ip, ip, l.config.MaxLoginAttempts, l.config.LoginCooldownDuration, now)
		if !b.limiter.AllowN(now, 1) || b.limiter.TokensAt(now) < 1 {
			limited = true
		}
	}
	if limited {
		return ErrRateLimited
	}
	return nil
}

// ResetLogin forgets the identifier's failures. IP buckets are kept.
func (l *Local) ResetLogin(_ context.Context, identifier, _ string) error {
	l.mu.Lock()
	delete(l.login, identifier)
	l.mu.Unlock()
	return nil
}

func (l *Local) CheckRefresh(_ context.Context, family string) error {
	if !l.config.EnableRefreshThrottle {
		return nil
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	b := l.bucketLocked(l.refresh, family, l.config.MaxRefreshAttempts, l.config.RefreshCooldownDuration, now)
	if !b.limiter.AllowN(now, 1) {
		return ErrRateLimited
	}
	return nil
}

// Len reports the number of tracked buckets.
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.login) + len(l.ip) + len(l.refresh)
}

func (l *Local) bucketLocked(m map[string]*bucket, key string, budget int, window time.Duration, now time.Time) *bucket {
	if b, ok := m[key]; ok {
		b.lastAccess = now
		return b
	}
	if budget < 1 {
		budget = 1
	}
	every := rate.Inf
	if window > 0 {
		every = rate.Every(window / time.Duration(budget))
	}
	b := &bucket{limiter: rate.NewLimiter(every, budget), lastAccess: now}
	m[key] = b
	return b
}

func (l *Local) cleanupLoop(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			l.sweep(2 * interval)
		case <-l.stopCh:
			return
		}
	}
}

// sweep drops buckets idle for longer than idle.
func (l *Local) sweep(idle time.Duration) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	for _, m := range []map[string]*bucket{l.login, l.ip, l.refresh} {
		for key, b := range m {
			if now.Sub(b.lastAccess) > idle {
				delete(m, key)
			}
		}
	}
}
