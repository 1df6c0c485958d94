package revocation

import (
	"context"
	"sync"
	"time"
)

type memoryFamily struct {
	jti       string
	userID    string
	expiresAt time.Time
}

// MemoryStore is an in-process Store for single-instance deployments and tests.
type MemoryStore struct {
	mu       sync.Mutex
	families map[string]memoryFamily
	users    map[string]map[string]struct{}
	now      func() time.Time
}

// NewMemoryStore returns an empty MemoryStore. A nil now selects time.Now.
func NewMemoryStore(now func() time.Time) *MemoryStore {
	if now == nil {
		now = time.Now
	}
	return &MemoryStore{
		families: make(map[string]memoryFamily),
		users:    make(map[string]map[string]struct{}),
		now:      now,
	}
}

func (s *MemoryStore) Register(_ context.Context, family, jti, userID string, ttl time.Duration) error {
	if err := validateRegister(family, jti, userID, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.families[family] = memoryFamily{jti: jti, userID: userID, expiresAt: s.now().Add(ttl)}
	set, ok := s.users[userID]
	if !ok {
		set = make(map[string]struct{})
		s.users[userID] = set
	}
	set[family] = struct{}{}
	return nil
}

func (s *MemoryStore) Rotate(_ context.Context, family, presented, next string, ttl time.Duration) error {
	if err := validateRotate(family, presented, next, ttl); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	f, ok := s.families[family]
	if !ok || !s.now().Before(f.expiresAt) {
		s.removeLocked(family)
		return ErrFamilyNotFound
	}
	if f.jti != presented {
		s.removeLocked(family)
		return ErrReuseDetected
	}
	if next != presented {
		f.jti = next
		f.expiresAt = s.now().Add(ttl)
		s.families[family] = f
	}
	return nil
}

func (s *MemoryStore) Revoke(_ context.Context, family string) error {
	if family == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	s.removeLocked(family)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) RevokeAllForUser(_ context.Context, userID string) error {
	if userID == "" {
		return ErrInvalidArgument
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for family := range s.users[userID] {
		delete(s.families, family)
	}
	delete(s.users, userID)
	return nil
}

// ActiveFamilies returns the number of unexpired families tracked for userID.
func (s *MemoryStore) ActiveFamilies(_ context.Context, userID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	count := 0
	for family := range s.users[userID] {
		if f, ok := s.families[family]; ok && now.Before(f.expiresAt) {
			count++
		}
	}
	return count, nil
}

func (s *MemoryStore) removeLocked(family string) {
	f, ok := s.families[family]
	if !ok {
		return
	}
	delete(s.families, family)
	if set, ok := s.users[f.userID]; ok {
		delete(set, family)
		if len(set) == 0 {
			delete(s.users, f.userID)
		}
	}
}
