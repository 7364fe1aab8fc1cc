package repository

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saed-edu/saed-api/internal/models"
)

func newUserRepoMock(t *testing.T) (*UserRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewUserRepository(sqlxDB)
	return repo, mock, func() { _ = sqlxDB.Close() }
}

func TestUserRepositoryFindByEmail(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "email", "password_hash", "full_name", "role", "active", "failed_login_attempts", "last_failed_login", "last_login", "last_access", "created_at", "updated_at"}).
		AddRow("user-1", "user@example.com", "hash", "User One", "STAFF", true, 2, now, nil, nil, now, now)

	mock.ExpectQuery(regexp.QuoteMeta("WHERE LOWER(email) = LOWER($1)")).
		WithArgs("User@Example.com").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "User@Example.com")
	require.NoError(t, err)
	assert.Equal(t, "user-1", user.ID)
	assert.Equal(t, 2, user.FailedLoginAttempts)
	require.NotNil(t, user.LastFailedLogin)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRecordFailedLogin(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET failed_login_attempts = $2, last_failed_login = $3, updated_at = $3 WHERE id = $1")).
		WithArgs("user-1", 3, ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordFailedLogin(context.Background(), "user-1", 3, ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryRecordSuccessfulLogin(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	ts := time.Now().UTC()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET failed_login_attempts = 0, last_failed_login = NULL, last_login = $2, last_access = $2, updated_at = $2 WHERE id = $1")).
		WithArgs("user-1", ts).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.RecordSuccessfulLogin(context.Background(), "user-1", ts))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryCreateDuplicateEmail(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	mock.ExpectExec("INSERT INTO users").
		WillReturnError(&pq.Error{Code: "23505"})

	user := &models.User{Email: "user@example.com", PasswordHash: "hash", FullName: "User One", Role: models.RoleStaff, Active: true}
	err := repo.Create(context.Background(), user)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicate))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUserRepositoryDeleteIsSoft(t *testing.T) {
	repo, mock, cleanup := newUserRepoMock(t)
	defer cleanup()

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET active = FALSE, updated_at = $2 WHERE id = $1")).
		WithArgs("user-1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Delete(context.Background(), "user-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}
