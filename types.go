package authcore

import (
	"context"
	"time"

	"github.com/MrEthical07/authcore/permission"
	"github.com/MrEthical07/authcore/revocation"
)

// Identity is the authenticated subject. It is embedded in access tokens and
// returned by ValidateToken without any store lookup.
type Identity struct {
	UserID  string
	Email   string
	RoleID  permission.RoleID
	IsAdmin bool
	// Capabilities is resolved from RoleID through the engine's role manager.
	Capabilities permission.Set
}

// Subject converts the identity into the authorization gate's view.
func (i Identity) Subject() permission.Subject {
	return permission.Subject{UserID: i.UserID, IsAdmin: i.IsAdmin, Capabilities: i.Capabilities}
}

// AuthResult is returned by Register, Login, and Refresh.
type AuthResult struct {
	Identity         Identity
	AccessToken      string
	RefreshToken     string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// RegisterRequest carries the fields of a new account.
type RegisterRequest struct {
	Email    string `validate:"required,email,max=254"`
	Name     string `validate:"required,max=120"`
	Password string `validate:"-"`
}

// Credential is what a CredentialStore returns for a user.
type Credential struct {
	UserID       string
	Email        string
	Name         string
	PasswordHash string
	RoleID       permission.RoleID
	CreatedAt    time.Time
}

// NewCredential is the input to CredentialStore.Create. Email is already
// normalized (trimmed, lower-cased) and PasswordHash already computed.
type NewCredential struct {
	Email        string
	Name         string
	PasswordHash string
	RoleID       permission.RoleID
}

// CredentialStore is the user persistence the engine depends on.
//
// Implementations must be safe for concurrent use. Backend failures should wrap
// ErrStoreUnavailable.
type CredentialStore interface {
	// FindByEmail returns ErrUserNotFound when no user has email.
	FindByEmail(ctx context.Context, email string) (*Credential, error)
	// FindByID returns ErrUserNotFound when no user has userID.
	FindByID(ctx context.Context, userID string) (*Credential, error)
	// Create inserts a user and returns it with its assigned UserID. It must
	// return ErrDuplicateEmail when email exists, decided atomically by the store.
	Create(ctx context.Context, in NewCredential) (*Credential, error)
}

// PasswordHashUpdater is optionally implemented by a CredentialStore to
// persist re-hashed passwords after a successful login.
type PasswordHashUpdater interface {
	UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error
}

// RevocationStore tracks refresh token families. See package revocation.
type RevocationStore = revocation.Store
