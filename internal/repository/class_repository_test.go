package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saed-edu/saed-api/internal/models"
)

func newClassRepoMock(t *testing.T) (*ClassRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewClassRepository(sqlxDB)
	return repo, mock, func() { _ = sqlxDB.Close() }
}

func TestClassRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "start_date", "end_date", "status", "primary_unit_id", "created_at", "updated_at"}).
		AddRow("class-1", "Judo Kids A", nil, nil, nil, "ACTIVE", nil, now, now)

	mock.ExpectQuery("SELECT id, name, description, start_date, end_date, status, primary_unit_id").
		WithArgs("class-1").
		WillReturnRows(rows)

	class, err := repo.FindByID(context.Background(), "class-1")
	require.NoError(t, err)
	assert.Equal(t, "Judo Kids A", class.Name)
	assert.Equal(t, models.ClassStatusActive, class.Status)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListUnassignedNewOwner(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "description", "start_date", "end_date", "status", "primary_unit_id", "created_at", "updated_at"}).
		AddRow("class-1", "Judo Kids A", nil, nil, nil, "ACTIVE", nil, now, now)

	// No owner yet: the picker query binds no owner parameter at all.
	mock.ExpectQuery(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM course_classes j WHERE j.class_id = c.id)")).
		WillReturnRows(rows)

	classes, err := repo.ListUnassigned(context.Background(), "course_classes", "course_id", "")
	require.NoError(t, err)
	require.Len(t, classes, 1)
	assert.Equal(t, "Judo Kids A", classes[0].Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryListUnassignedExistingOwner(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"id", "name", "description", "start_date", "end_date", "status", "primary_unit_id", "created_at", "updated_at"})

	mock.ExpectQuery(regexp.QuoteMeta("WHERE NOT EXISTS (SELECT 1 FROM course_classes j WHERE j.class_id = c.id AND j.course_id <> $1)")).
		WithArgs("course-1").
		WillReturnRows(rows)

	_, err := repo.ListUnassigned(context.Background(), "course_classes", "course_id", "course-1")
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDeleteBlockedWithDependents(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(3))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "class-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHasDependents))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WithArgs("class-1").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs("class-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "class-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestClassRepositoryDeleteUnknownID(t *testing.T) {
	repo, mock, cleanup := newClassRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"?column?"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM classes WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}
