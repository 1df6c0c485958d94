package password

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type blockingHasher struct {
	release chan struct{}
}

func (h *blockingHasher) Hash(password string) (string, error) {
	<-h.release
	return "hashed:" + password, nil
}

func (h *blockingHasher) Verify(password, encoded string) bool {
	<-h.release
	return encoded == "hashed:"+password
}

func (h *blockingHasher) NeedsUpgrade(string) bool { return false }

func TestPoolHashAndVerify(t *testing.T) {
	pool := NewPool(newFastArgon2(t), 2)

	hash, err := pool.Hash(context.Background(), "secret1")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}
	ok, err := pool.Verify(context.Background(), "secret1", hash)
	if err != nil || !ok {
		t.Fatalf("expected verify success, ok=%v err=%v", ok, err)
	}
	ok, err = pool.Verify(context.Background(), "secret2", hash)
	if err != nil || ok {
		t.Fatalf("expected verify mismatch without error, ok=%v err=%v", ok, err)
	}
}

func TestPoolPropagatesHashError(t *testing.T) {
	pool := NewPool(newFastArgon2(t), 1)
	if _, err := pool.Hash(context.Background(), "abc"); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestPoolAbandonsOnContextCancel(t *testing.T) {
	h := &blockingHasher{release: make(chan struct{})}
	pool := NewPool(h, 1)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := pool.Hash(ctx, "secret1")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}

	// The slot stays held until the abandoned computation finishes.
	waitCtx, waitCancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer waitCancel()
	if _, err := pool.Verify(waitCtx, "secret1", "hashed:secret1"); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected queued call to time out, got %v", err)
	}

	close(h.release)
	ok, err := pool.Verify(context.Background(), "secret1", "hashed:secret1")
	if err != nil || !ok {
		t.Fatalf("expected verify after release, ok=%v err=%v", ok, err)
	}
}

func TestPoolRunsConcurrently(t *testing.T) {
	h := &blockingHasher{release: make(chan struct{})}
	pool := NewPool(h, 4)

	var wg sync.WaitGroup
	results := make(chan error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := pool.Hash(context.Background(), "secret1")
			results <- err
		}()
	}

	close(h.release)
	wg.Wait()
	close(results)
	for err := range results {
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
}
