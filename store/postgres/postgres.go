// Package postgres is an authcore.CredentialStore backed by PostgreSQL through
// the pgx database/sql driver. Schema migrations are embedded and applied with goose.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

const uniqueViolation = "23505"

//go:embed migrations/*.sql
var migrations embed.FS

// DBTX is the subset of database/sql used by Store.
// Both *sql.DB and *sql.Tx satisfy this interface.
type DBTX interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type Store struct {
	db DBTX
}

func New(db DBTX) *Store {
	return &Store{db: db}
}

// Open connects with the pgx driver and pings the server.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema migrations.
func Migrate(ctx context.Context, db *sql.DB) error {
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("pgx"); err != nil {
		return err
	}
	return gooseUpContext(ctx, db, "migrations")
}

const selectColumns = `SELECT id, email, name, password_hash, role_id, created_at FROM users`

func (s *Store) FindByEmail(ctx context.Context, email string) (*authcore.Credential, error) {
	query := selectColumns + `
		 WHERE email = $1
		 `
	return s.scanOne(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) FindByID(ctx context.Context, userID string) (*authcore.Credential, error) {
	if _, err := uuid.Parse(userID); err != nil {
		return nil, authcore.ErrUserNotFound
	}

	query := selectColumns + `
		 WHERE id = $1
		 `
	return s.scanOne(s.db.QueryRowContext(ctx, query, userID))
}

// Create inserts in. The unique email constraint decides duplicates in a
// single statement, so concurrent registrations cannot both succeed.
func (s *Store) Create(ctx context.Context, in authcore.NewCredential) (*authcore.Credential, error) {
	query :=
		`INSERT INTO users (email, name, password_hash, role_id)
		 VALUES ($1, $2, $3, $4)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, created_at
		 `

	c := &authcore.Credential{
		Email:        in.Email,
		Name:         in.Name,
		PasswordHash: in.PasswordHash,
		RoleID:       in.RoleID,
	}
	err := s.db.QueryRowContext(ctx, query,
		in.Email, in.Name, in.PasswordHash, int64(in.RoleID)).Scan(&c.UserID, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isUniqueViolation(err) {
			return nil, authcore.ErrDuplicateEmail
		}
		return nil, unavailable(err)
	}

	return c, nil
}

func (s *Store) UpdatePasswordHash(ctx context.Context, userID, passwordHash string) error {
	query :=
		`UPDATE users SET password_hash = $2, updated_at = now()
		 WHERE id = $1
		 `
	return s.updateOne(ctx, query, userID, passwordHash)
}

// SetRole changes a user's role. It takes effect on the user's next refresh.
func (s *Store) SetRole(ctx context.Context, userID string, role permission.RoleID) error {
	query :=
		`UPDATE users SET role_id = $2, updated_at = now()
		 WHERE id = $1
		 `
	return s.updateOne(ctx, query, userID, int64(role))
}

func (s *Store) updateOne(ctx context.Context, query, userID string, arg any) error {
	if _, err := uuid.Parse(userID); err != nil {
		return authcore.ErrUserNotFound
	}

	res, err := s.db.ExecContext(ctx, query, userID, arg)
	if err != nil {
		return unavailable(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return unavailable(err)
	}
	if n == 0 {
		return authcore.ErrUserNotFound
	}
	return nil
}

func (s *Store) scanOne(row *sql.Row) (*authcore.Credential, error) {
	var (
		c       authcore.Credential
		roleID  int64
		created time.Time
	)
	err := row.Scan(&c.UserID, &c.Email, &c.Name, &c.PasswordHash, &roleID, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, authcore.ErrUserNotFound
		}
		return nil, unavailable(err)
	}
	c.RoleID = permission.RoleID(roleID)
	c.CreatedAt = created.UTC()
	return &c, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

func unavailable(err error) error {
	return fmt.Errorf("%w: db error: %w", authcore.ErrStoreUnavailable, err)
}
