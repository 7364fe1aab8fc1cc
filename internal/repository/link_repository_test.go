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
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saed-edu/saed-api/internal/models"
)

func newLinkRepoMock(t *testing.T) (*LinkRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxDB := sqlx.NewDb(db, "sqlmock")
	repo := NewLinkRepository(sqlxDB, CourseDomain)
	return repo, mock, func() { _ = sqlxDB.Close() }
}

func TestLinkRepositoryFindByID(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{"id", "name", "created_at", "updated_at"}).
		AddRow("course-1", "Robotics", now, now)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, name, created_at, updated_at FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(rows)

	owner, err := repo.FindByID(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, "Robotics", owner.Name)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryHasConflict(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	classIDs := []string{"class-1", "class-2"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE class_id = ANY($1) AND course_id <> $2")).
		WithArgs(pq.Array(classIDs), "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	conflict, err := repo.HasConflict(context.Background(), "course-1", classIDs)
	require.NoError(t, err)
	assert.True(t, conflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryHasConflictNewOwner(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	// Creating has no owner ID yet; the owner column must not be compared
	// against an empty string (not a valid uuid), so the query takes
	// exactly one argument and any existing link conflicts.
	classIDs := []string{"class-1"}
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE class_id = ANY($1)")).
		WithArgs(pq.Array(classIDs)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))

	conflict, err := repo.HasConflict(context.Background(), "", classIDs)
	require.NoError(t, err)
	assert.True(t, conflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryHasConflictEmptySet(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	conflict, err := repo.HasConflict(context.Background(), "course-1", nil)
	require.NoError(t, err)
	assert.False(t, conflict)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositorySaveCreate(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	classIDs := []string{"class-1", "class-2"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO courses (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)")).
		WithArgs(sqlmock.AnyArg(), "Robotics", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_classes WHERE course_id = $1 AND class_id <> ALL($2)")).
		WithArgs(sqlmock.AnyArg(), pq.Array(classIDs)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	for _, classID := range classIDs {
		mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE class_id = $1 AND course_id <> $2")).
			WithArgs(classID, sqlmock.AnyArg()).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
		mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_classes (course_id, class_id) VALUES ($1, $2) ON CONFLICT (course_id, class_id) DO NOTHING")).
			WithArgs(sqlmock.AnyArg(), classID).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	owner := &models.LinkOwner{Name: "Robotics"}
	require.NoError(t, repo.Save(context.Background(), owner, classIDs))
	assert.NotEmpty(t, owner.ID)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositorySaveConflictRollsBack(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	classIDs := []string{"class-1"}

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET name = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("course-1", "Robotics", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_classes WHERE course_id = $1 AND class_id <> ALL($2)")).
		WithArgs("course-1", pq.Array(classIDs)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// A concurrent writer grabbed the class between the pre-check and the save.
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE class_id = $1 AND course_id <> $2")).
		WithArgs("class-1", "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectRollback()

	owner := &models.LinkOwner{ID: "course-1", Name: "Robotics"}
	err := repo.Save(context.Background(), owner, classIDs)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrLinkConflict))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositorySaveUpdateUnknownOwner(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET name = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("missing", "Robotics", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	owner := &models.LinkOwner{ID: "missing", Name: "Robotics"}
	err := repo.Save(context.Background(), owner, nil)
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositorySaveEmptySetClearsLinks(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE courses SET name = $2, updated_at = $3 WHERE id = $1")).
		WithArgs("course-1", "Robotics", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_classes WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	owner := &models.LinkOwner{ID: "course-1", Name: "Robotics"}
	require.NoError(t, repo.Save(context.Background(), owner, nil))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryDeleteBlockedWithLinks(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "course-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrHasDependents))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryDelete(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Delete(context.Background(), "course-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryDeleteUnknownOwner(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM course_classes WHERE course_id = $1")).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM courses WHERE id = $1")).
		WithArgs("missing").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, errors.Is(err, sql.ErrNoRows))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestLinkRepositoryListLinkedClasses(t *testing.T) {
	repo, mock, cleanup := newLinkRepoMock(t)
	defer cleanup()

	rows := sqlmock.NewRows([]string{"class_id", "class_name"}).
		AddRow("class-1", "Judo Kids A").
		AddRow("class-2", "Judo Kids B")

	mock.ExpectQuery("SELECT j.class_id, c.name AS class_name").
		WithArgs("course-1").
		WillReturnRows(rows)

	classes, err := repo.ListLinkedClasses(context.Background(), "course-1")
	require.NoError(t, err)
	require.Len(t, classes, 2)
	assert.Equal(t, "Judo Kids A", classes[0].ClassName)
	require.NoError(t, mock.ExpectationsWereMet())
}
