package password

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
)

// Pool runs hash and verify calls on their own goroutines, at most size at a
// time. A caller whose context ends stops waiting; the abandoned computation
// finishes in the background and its result is discarded.
type Pool struct {
	hasher Hasher
	sem    *semaphore.Weighted
}

// NewPool wraps h. A non-positive size selects GOMAXPROCS.
func NewPool(h Hasher, size int) *Pool {
	if size <= 0 {
		size = runtime.GOMAXPROCS(0)
	}
	return &Pool{hasher: h, sem: semaphore.NewWeighted(int64(size))}
}

type hashResult struct {
	encoded string
	err     error
}

// Hash hashes password on a pool slot.
func (p *Pool) Hash(ctx context.Context, password string) (string, error) {
	res, err := runBounded(ctx, p.sem, func() hashResult {
		encoded, err := p.hasher.Hash(password)
		return hashResult{encoded: encoded, err: err}
	})
	if err != nil {
		return "", err
	}
	return res.encoded, res.err
}

// Verify checks password against encodedHash on a pool slot. The error is
// non-nil only when ctx ended first.
func (p *Pool) Verify(ctx context.Context, password, encodedHash string) (bool, error) {
	return runBounded(ctx, p.sem, func() bool {
		return p.hasher.Verify(password, encodedHash)
	})
}

func (p *Pool) NeedsUpgrade(encodedHash string) bool {
	return p.hasher.NeedsUpgrade(encodedHash)
}

func runBounded[T any](ctx context.Context, sem *semaphore.Weighted, fn func() T) (T, error) {
	var zero T
	if ctx == nil {
		ctx = context.Background()
	}
	if err := sem.Acquire(ctx, 1); err != nil {
		return zero, err
	}

	done := make(chan T, 1)
	go func() {
		defer sem.Release(1)
		done <- fn()
	}()

	select {
	case v := <-done:
		return v, nil
	case <-ctx.Done():
		return zero, ctx.Err()
	}
}
