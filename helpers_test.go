package authcore

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

const testSecret = "0123456789abcdef0123456789abcdef"

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Unix(1_700_000_000, 0)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fakeStore struct {
	mu      sync.Mutex
	byID    map[string]*Credential
	byEmail map[string]string
	nextID  int

	// hideFromLookup makes FindByEmail miss so Create decides duplicates.
	hideFromLookup bool

	findByEmailCalls int
	findByIDCalls    int
	createCalls      int
	updateCalls      int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byID:    make(map[string]*Credential),
		byEmail: make(map[string]string),
	}
}

func (s *fakeStore) FindByEmail(_ context.Context, email string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findByEmailCalls++
	if s.hideFromLookup {
		return nil, ErrUserNotFound
	}
	id, ok := s.byEmail[email]
	if !ok {
		return nil, ErrUserNotFound
	}
	c := *s.byID[id]
	return &c, nil
}

func (s *fakeStore) FindByID(_ context.Context, userID string) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.findByIDCalls++
	c, ok := s.byID[userID]
	if !ok {
		return nil, ErrUserNotFound
	}
	out := *c
	return &out, nil
}

func (s *fakeStore) Create(_ context.Context, in NewCredential) (*Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.createCalls++
	if _, ok := s.byEmail[in.Email]; ok {
		return nil, ErrDuplicateEmail
	}
	s.nextID++
	c := &Credential{
		UserID:       "u" + strconv.Itoa(s.nextID),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		RoleID:       in.RoleID,
	}
	s.byID[c.UserID] = c
	s.byEmail[c.Email] = c.UserID
	out := *c
	return &out, nil
}

func (s *fakeStore) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updateCalls++
	c, ok := s.byID[userID]
	if !ok {
		return ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	return nil
}

func (s *fakeStore) setRole(userID string, role permission.RoleID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.byID[userID].RoleID = role
}

func (s *fakeStore) remove(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c, ok := s.byID[userID]; ok {
		delete(s.byEmail, c.Email)
		delete(s.byID, userID)
	}
}

func (s *fakeStore) hashOf(userID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.byID[userID].PasswordHash
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.JWT.PrivateKey = []byte(testSecret)
	cfg.JWT.AccessTTL = 15 * time.Minute
	cfg.JWT.RefreshTTL = 7 * 24 * time.Hour
	cfg.Password.Memory = 8 * 1024
	cfg.Password.Time = 1
	cfg.Password.Parallelism = 1
	cfg.Password.BcryptCost = 4
	cfg.Security.MaxLoginAttempts = 3
	return cfg
}

func newTestEngine(t *testing.T, cfg Config, opts ...func(*Builder)) (*Engine, *fakeStore, *testClock) {
	t.Helper()

	store := newFakeStore()
	clock := newTestClock()

	b := New().
		WithConfig(cfg).
		WithCredentialStore(store).
		WithClock(clock.Now)
	for _, opt := range opts {
		opt(b)
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("build engine: %v", err)
	}
	t.Cleanup(engine.Close)

	return engine, store, clock
}

func withMiniredis(t *testing.T) (func(*Builder), *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	return func(b *Builder) { b.WithRedis(rdb) }, mr
}

func mustRegister(t *testing.T, e *Engine, email, pw string) *AuthResult {
	t.Helper()
	res, err := e.Register(context.Background(), RegisterRequest{Email: email, Name: "Test", Password: pw})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	return res
}

func flipSignatureByte(token string) string {
	dot := strings.LastIndex(token, ".")
	sig := []byte(token[dot+1:])
	i := len(sig) / 2
	if sig[i] == 'A' {
		sig[i] = 'B'
	} else {
		sig[i] = 'A'
	}
	return token[:dot+1] + string(sig)
}
