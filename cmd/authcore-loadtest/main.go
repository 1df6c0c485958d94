// Command authcore-loadtest drives an in-process engine through login,
// validate and refresh phases and reports latency percentiles. It finishes
// with a refresh race that must admit exactly one winner per user.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/store/memory"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"
)

const loadtestPassword = "loadtest1"

type options struct {
	users, concurrency, ops, logins int
	redisAddr                       string
	argonMemory                     uint
}

// account is one registered user. mu serializes refreshes so each worker
// presents the latest token.
type account struct {
	mu      sync.Mutex
	email   string
	access  string
	refresh string
}

func main() {
	var o options
	flag.IntVar(&o.users, "users", 200, "number of users to register")
	flag.IntVar(&o.concurrency, "concurrency", 64, "number of concurrent workers")
	flag.IntVar(&o.ops, "ops", 20000, "operations per validate/refresh phase")
	flag.IntVar(&o.logins, "logins", 400, "operations in the login phase")
	flag.StringVar(&o.redisAddr, "redis-addr", os.Getenv("REDIS_ADDR"), "redis address; empty starts an in-process miniredis")
	flag.UintVar(&o.argonMemory, "argon-memory", 16*1024, "argon2id memory in KiB")
	flag.Parse()

	if err := run(context.Background(), o); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, o options) error {
	if o.users <= 0 || o.concurrency <= 0 || o.ops <= 0 || o.logins <= 0 {
		return errors.New("users, concurrency, ops and logins must be > 0")
	}

	client, closeRedis, err := openRedis(o.redisAddr)
	if err != nil {
		return err
	}
	defer closeRedis()

	cfg := authcore.DefaultConfig()
	cfg.JWT.PrivateKey = []byte("loadtest-secret-0123456789abcdef!")
	cfg.Password.Memory = uint32(o.argonMemory)
	cfg.Password.Time = 1
	cfg.Security.EnableLoginThrottle = false
	cfg.Security.EnableRefreshThrottle = false
	cfg.Metrics.EnableLatencyHistograms = true

	engine, err := authcore.New().
		WithConfig(cfg).
		WithCredentialStore(memory.New(nil)).
		WithRedis(client).
		Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	accounts, err := seed(ctx, engine, o.users)
	if err != nil {
		return err
	}
	pick := func(r *rand.Rand) *account { return &accounts[r.IntN(len(accounts))] }

	login := runPhase(o.logins, o.concurrency, func(r *rand.Rand, _ int) error {
		_, err := engine.Login(ctx, pick(r).email, loadtestPassword)
		return err
	})
	validate := runPhase(o.ops, o.concurrency, func(r *rand.Rand, _ int) error {
		a := pick(r)
		a.mu.Lock()
		token := a.access
		a.mu.Unlock()
		_, err := engine.ValidateToken(token)
		return err
	})
	refresh := runPhase(o.ops, o.concurrency, func(r *rand.Rand, _ int) error {
		a := pick(r)
		a.mu.Lock()
		defer a.mu.Unlock()
		res, err := engine.Refresh(ctx, a.refresh)
		if err != nil {
			return err
		}
		a.access, a.refresh = res.AccessToken, res.RefreshToken
		return nil
	})
	winners, losers := runRacePhase(ctx, engine, accounts, min(o.concurrency, 8))

	fmt.Println("---- results ----")
	printStats("login", login)
	printStats("validate", validate)
	printStats("refresh", refresh)
	fmt.Printf("refresh race: users=%d winners=%d rejected=%d\n", len(accounts), winners, losers)
	if winners != int64(len(accounts)) {
		return errors.New("refresh race: expected exactly one winner per user")
	}
	return nil
}

func openRedis(addr string) (redis.UniversalClient, func(), error) {
	if addr != "" {
		client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{addr}})
		fmt.Printf("using redis at %s\n", addr)
		return client, func() { _ = client.Close() }, nil
	}

	mr, err := miniredis.Run()
	if err != nil {
		return nil, nil, fmt.Errorf("start miniredis: %w", err)
	}
	client := redis.NewUniversalClient(&redis.UniversalOptions{Addrs: []string{mr.Addr()}})
	fmt.Printf("using miniredis at %s\n", mr.Addr())
	return client, func() {
		_ = client.Close()
		mr.Close()
	}, nil
}

func seed(ctx context.Context, engine *authcore.Engine, n int) ([]account, error) {
	fmt.Printf("registering %d users...\n", n)
	start := time.Now()
	accounts := make([]account, n)
	for i := range accounts {
		a := &accounts[i]
		a.email = fmt.Sprintf("user-%d@loadtest.local", i)
		res, err := engine.Register(ctx, authcore.RegisterRequest{Email: a.email, Name: "load", Password: loadtestPassword})
		if err != nil {
			return nil, fmt.Errorf("register %s: %w", a.email, err)
		}
		a.access, a.refresh = res.AccessToken, res.RefreshToken
	}
	fmt.Printf("registered in %s\n", time.Since(start).Round(time.Millisecond))
	return accounts, nil
}

// runPhase runs ops calls of fn across concurrency workers. Each worker keeps
// its own latency slice; failures are counted, not fatal.
func runPhase(ops, concurrency int, fn func(r *rand.Rand, i int) error) phaseStats {
	var (
		g        errgroup.Group
		next     atomic.Int64
		failures atomic.Int64
		perWork  = make([][]time.Duration, concurrency)
	)

	start := time.Now()
	for w := range concurrency {
		g.Go(func() error {
			r := rand.New(rand.NewPCG(uint64(time.Now().UnixNano()), uint64(w)))
			for {
				i := int(next.Add(1)) - 1
				if i >= ops {
					return nil
				}
				t0 := time.Now()
				if fn(r, i) != nil {
					failures.Add(1)
				}
				perWork[w] = append(perWork[w], time.Since(t0))
			}
		})
	}
	_ = g.Wait()

	return computeStats(time.Since(start), slices.Concat(perWork...), failures.Load())
}

// runRacePhase presents each user's current refresh token from fanout
// goroutines at once. Rotation must let exactly one of them through.
func runRacePhase(ctx context.Context, engine *authcore.Engine, accounts []account, fanout int) (winners, losers int64) {
	var won, lost atomic.Int64
	var g errgroup.Group
	for i := range accounts {
		token := accounts[i].refresh
		for range fanout {
			g.Go(func() error {
				if _, err := engine.Refresh(ctx, token); err != nil {
					lost.Add(1)
				} else {
					won.Add(1)
				}
				return nil
			})
		}
	}
	_ = g.Wait()
	return won.Load(), lost.Load()
}

type phaseStats struct {
	total         time.Duration
	ops           int
	failures      int64
	p50, p95, p99 time.Duration
	opsPerSec     float64
}

func computeStats(total time.Duration, samples []time.Duration, failures int64) phaseStats {
	s := phaseStats{total: total, ops: len(samples), failures: failures}
	if len(samples) == 0 {
		return s
	}
	slices.Sort(samples)
	s.p50 = percentile(samples, 50)
	s.p95 = percentile(samples, 95)
	s.p99 = percentile(samples, 99)
	s.opsPerSec = float64(len(samples)) / total.Seconds()
	return s
}

// percentile expects sorted samples.
func percentile(samples []time.Duration, p int) time.Duration {
	if len(samples) == 0 {
		return 0
	}
	idx := (len(samples) - 1) * min(max(p, 0), 100) / 100
	return samples[idx]
}

func printStats(name string, s phaseStats) {
	us := func(d time.Duration) time.Duration { return d.Round(time.Microsecond) }
	fmt.Printf("%s: ops=%d failures=%d total=%s ops/sec=%.0f p50=%s p95=%s p99=%s\n",
		name, s.ops, s.failures, s.total.Round(time.Millisecond), s.opsPerSec, us(s.p50), us(s.p95), us(s.p99))
}
