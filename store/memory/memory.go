// Package memory is an in-process authcore.CredentialStore, suitable for tests,
// demos, and single-instance deployments that do not need persistence.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/google/uuid"
)

// Store keeps credentials in maps guarded by one mutex, so Create's
// check-and-insert is atomic.
type Store struct {
	mu      sync.RWMutex
	byID    map[string]authcore.Credential
	byEmail map[string]string
	now     func() time.Time
}

// New returns an empty Store. A nil now selects time.Now.
func New(now func() time.Time) *Store {
	if now == nil {
		now = time.Now
	}
	return &Store{
		byID:    make(map[string]authcore.Credential),
		byEmail: make(map[string]string),
		now:     now,
	}
}

func (s *Store) FindByEmail(_ context.Context, email string) (*authcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byEmail[email]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	c := s.byID[id]
	return &c, nil
}

func (s *Store) FindByID(_ context.Context, userID string) (*authcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.byID[userID]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return &c, nil
}

// Create inserts in and assigns a random UUID.
func (s *Store) Create(_ context.Context, in authcore.NewCredential) (*authcore.Credential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byEmail[in.Email]; exists {
		return nil, authcore.ErrDuplicateEmail
	}

	c := authcore.Credential{
		UserID:       uuid.NewString(),
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		RoleID:       in.RoleID,
		CreatedAt:    s.now().UTC(),
	}
	s.byID[c.UserID] = c
	s.byEmail[c.Email] = c.UserID

	return &c, nil
}

func (s *Store) UpdatePasswordHash(_ context.Context, userID, passwordHash string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	c.PasswordHash = passwordHash
	s.byID[userID] = c
	return nil
}

// SetRole changes a user's role. It takes effect on the user's next refresh.
func (s *Store) SetRole(_ context.Context, userID string, role permission.RoleID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.byID[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	c.RoleID = role
	s.byID[userID] = c
	return nil
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byID)
}
