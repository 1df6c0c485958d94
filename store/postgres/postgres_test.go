package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/MrEthical07/authcore"
	"github.com/MrEthical07/authcore/permission"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testUserID = "7f9c2a64-3b1e-4c55-9a0d-2e6f1b8c4d21"

var userColumns = []string{"id", "email", "name", "password_hash", "role_id", "created_at"}

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db), mock
}

func TestFindByEmail_Found(t *testing.T) {
	s, mock := newStoreWithMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	q := `(?s)^SELECT\s+id,\s*email,\s*name,\s*password_hash,\s*role_id,\s*created_at\s+FROM\s+users\s+WHERE\s+email\s*=\s*\$1\s*$`
	mock.ExpectQuery(q).
		WithArgs("a@x.com").
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(testUserID, "a@x.com", "A", "hash", int64(2), created))

	got, err := s.FindByEmail(context.Background(), "a@x.com")
	require.NoError(t, err)
	assert.Equal(t, &authcore.Credential{
		UserID:       testUserID,
		Email:        "a@x.com",
		Name:         "A",
		PasswordHash: "hash",
		RoleID:       permission.RoleUser,
		CreatedAt:    created,
	}, got)
}

func TestFindByEmail_NotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("b@x.com").
		WillReturnError(sql.ErrNoRows)

	_, err := s.FindByEmail(context.Background(), "b@x.com")
	assert.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestFindByEmail_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+email`).
		WithArgs("a@x.com").
		WillReturnError(errors.New("db down"))

	_, err := s.FindByEmail(context.Background(), "a@x.com")
	assert.ErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestFindByID(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`FROM\s+users\s+WHERE\s+id\s*=\s*\$1`).
		WithArgs(testUserID).
		WillReturnRows(sqlmock.NewRows(userColumns).AddRow(testUserID, "a@x.com", "A", "hash", int64(1), time.Now()))

	got, err := s.FindByID(context.Background(), testUserID)
	require.NoError(t, err)
	assert.Equal(t, permission.RoleAdmin, got.RoleID)
}

func TestFindByID_MalformedIDSkipsQuery(t *testing.T) {
	s, _ := newStoreWithMock(t)

	_, err := s.FindByID(context.Background(), "not-a-uuid")
	assert.ErrorIs(t, err, authcore.ErrUserNotFound)
}

func TestCreate_Success(t *testing.T) {
	s, mock := newStoreWithMock(t)
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	q := `(?s)^INSERT\s+INTO\s+users\s*\(email,\s*name,\s*password_hash,\s*role_id\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4\)\s*ON\s+CONFLICT\s*\(email\)\s*DO\s+NOTHING\s*RETURNING\s+id,\s*created_at\s*$`
	mock.ExpectQuery(q).
		WithArgs("a@x.com", "A", "hash", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}).AddRow(testUserID, created))

	got, err := s.Create(context.Background(), authcore.NewCredential{
		Email:        "a@x.com",
		Name:         "A",
		PasswordHash: "hash",
		RoleID:       permission.RoleUser,
	})
	require.NoError(t, err)
	assert.Equal(t, testUserID, got.UserID)
	assert.Equal(t, created, got.CreatedAt)
	assert.Equal(t, permission.RoleUser, got.RoleID)
}

func TestCreate_ConflictIsDuplicate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("a@x.com", "A", "hash", int64(2)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at"}))

	_, err := s.Create(context.Background(), authcore.NewCredential{Email: "a@x.com", Name: "A", PasswordHash: "hash", RoleID: permission.RoleUser})
	assert.ErrorIs(t, err, authcore.ErrDuplicateEmail)
}

func TestCreate_UniqueViolationIsDuplicate(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("a@x.com", "A", "hash", int64(2)).
		WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "users_email_key"})

	_, err := s.Create(context.Background(), authcore.NewCredential{Email: "a@x.com", Name: "A", PasswordHash: "hash", RoleID: permission.RoleUser})
	assert.ErrorIs(t, err, authcore.ErrDuplicateEmail)
}

func TestCreate_DBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`INSERT\s+INTO\s+users`).
		WithArgs("a@x.com", "A", "hash", int64(2)).
		WillReturnError(errors.New("db down"))

	_, err := s.Create(context.Background(), authcore.NewCredential{Email: "a@x.com", Name: "A", PasswordHash: "hash", RoleID: permission.RoleUser})
	assert.ErrorIs(t, err, authcore.ErrStoreUnavailable)
	assert.NotErrorIs(t, err, authcore.ErrDuplicateEmail)
}

func TestUpdatePasswordHash(t *testing.T) {
	s, mock := newStoreWithMock(t)

	q := `(?s)^UPDATE\s+users\s+SET\s+password_hash\s*=\s*\$2,\s*updated_at\s*=\s*now\(\)\s+WHERE\s+id\s*=\s*\$1\s*$`
	mock.ExpectExec(q).
		WithArgs(testUserID, "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdatePasswordHash(context.Background(), testUserID, "new-hash"))
}

func TestUpdatePasswordHash_NoRows(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs(testUserID, "new-hash").
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, s.UpdatePasswordHash(context.Background(), testUserID, "new-hash"), authcore.ErrUserNotFound)
}

func TestSetRole(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`UPDATE\s+users\s+SET\s+role_id\s*=\s*\$2`).
		WithArgs(testUserID, int64(1)).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SetRole(context.Background(), testUserID, permission.RoleAdmin))
}

func TestMigrate(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	assert.EqualError(t, Migrate(context.Background(), db), "boom")
}

func TestEmbeddedMigrations(t *testing.T) {
	entries, err := migrations.ReadDir("migrations")
	require.NoError(t, err)
	require.NotEmpty(t, entries)
	assert.Equal(t, "00001_create_users.sql", entries[0].Name())
}

var _ authcore.CredentialStore = (*Store)(nil)
var _ authcore.PasswordHashUpdater = (*Store)(nil)
