package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type mockLinkRepo struct {
	owners        map[string]*models.LinkOwner
	links         map[string][]string
	conflict      bool
	conflictErr   error
	saveErr       error
	deleteErr     error
	savedClassIDs []string
}

func newMockLinkRepo() *mockLinkRepo {
	return &mockLinkRepo{
		owners: make(map[string]*models.LinkOwner),
		links:  make(map[string][]string),
	}
}

func (m *mockLinkRepo) List(ctx context.Context, filter models.LinkOwnerFilter) ([]models.LinkOwner, int, error) {
	out := make([]models.LinkOwner, 0, len(m.owners))
	for _, owner := range m.owners {
		out = append(out, *owner)
	}
	return out, len(out), nil
}

func (m *mockLinkRepo) FindByID(ctx context.Context, id string) (*models.LinkOwner, error) {
	owner, ok := m.owners[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *owner
	return &copied, nil
}

func (m *mockLinkRepo) ListLinkedClasses(ctx context.Context, ownerID string) ([]models.LinkedClass, error) {
	out := make([]models.LinkedClass, 0, len(m.links[ownerID]))
	for _, classID := range m.links[ownerID] {
		out = append(out, models.LinkedClass{ClassID: classID, ClassName: "Class " + classID[:8]})
	}
	return out, nil
}

func (m *mockLinkRepo) HasConflict(ctx context.Context, ownerID string, classIDs []string) (bool, error) {
	if m.conflictErr != nil {
		return false, m.conflictErr
	}
	return m.conflict, nil
}

func (m *mockLinkRepo) Save(ctx context.Context, owner *models.LinkOwner, classIDs []string) error {
	if m.saveErr != nil {
		return m.saveErr
	}
	if owner.ID == "" {
		owner.ID = uuid.NewString()
	} else if _, ok := m.owners[owner.ID]; !ok {
		return sql.ErrNoRows
	}
	m.owners[owner.ID] = owner
	m.links[owner.ID] = classIDs
	m.savedClassIDs = classIDs
	return nil
}

func (m *mockLinkRepo) Delete(ctx context.Context, ownerID string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.owners[ownerID]; !ok {
		return sql.ErrNoRows
	}
	delete(m.owners, ownerID)
	delete(m.links, ownerID)
	return nil
}

type mockClassLister struct {
	classes []models.Class
}

func (m *mockClassLister) ListUnassigned(ctx context.Context, joinTable, ownerColumn, ownerID string) ([]models.Class, error) {
	return m.classes, nil
}

func newTestLinkService(repo *mockLinkRepo) *LinkService {
	return NewLinkService(repo, &mockClassLister{}, repository.CourseDomain, "course", validator.New(), zap.NewNop(), nil)
}

func TestLinkServiceCreate(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	classA := uuid.NewString()
	classB := uuid.NewString()

	detail, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classA, classB},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, detail.ID)
	assert.Equal(t, "Robotics", detail.Name)
	assert.Len(t, detail.Classes, 2)
}

func TestLinkServiceCreateDeduplicatesClassIDs(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	classA := uuid.NewString()

	_, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classA, classA, classA},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{classA}, repo.savedClassIDs)
}

func TestLinkServiceCreateConflictRejectsWholeOperation(t *testing.T) {
	repo := newMockLinkRepo()
	repo.conflict = true
	svc := newTestLinkService(repo)

	_, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{uuid.NewString(), uuid.NewString()},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	// Nothing was persisted for the non-conflicting class either.
	assert.Empty(t, repo.owners)
	assert.Nil(t, repo.savedClassIDs)
}

func TestLinkServiceCreateRaceConflictMapsToConflict(t *testing.T) {
	repo := newMockLinkRepo()
	repo.saveErr = repository.ErrLinkConflict
	svc := newTestLinkService(repo)

	_, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{uuid.NewString()},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestLinkServiceUpdateResaveOwnClasses(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	classA := uuid.NewString()
	created, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classA},
	})
	require.NoError(t, err)

	// Re-saving the owner with its own classes is not a conflict.
	updated, err := svc.Update(context.Background(), created.ID, models.SaveLinkOwnerRequest{
		Name:     "Robotics II",
		ClassIDs: []string{classA},
	})
	require.NoError(t, err)
	assert.Equal(t, "Robotics II", updated.Name)
	assert.Len(t, updated.Classes, 1)
}

func TestLinkServiceUpdateReplacesLinkSet(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	classA := uuid.NewString()
	classB := uuid.NewString()
	created, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classA},
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classB},
	})
	require.NoError(t, err)
	require.Len(t, updated.Classes, 1)
	assert.Equal(t, classB, updated.Classes[0].ClassID)
}

func TestLinkServiceUpdateUnknownOwner(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	_, err := svc.Update(context.Background(), uuid.NewString(), models.SaveLinkOwnerRequest{Name: "Robotics"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestLinkServiceCreateInvalidPayload(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	_, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "X",
		ClassIDs: []string{"not-a-uuid"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestLinkServiceDeleteBlockedWithLinkedClasses(t *testing.T) {
	repo := newMockLinkRepo()
	repo.deleteErr = repository.ErrHasDependents
	svc := newTestLinkService(repo)

	err := svc.Delete(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeletionBlocked.Code, appErrors.FromError(err).Code)
}

func TestLinkServiceDelete(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	created, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{Name: "Robotics"})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Empty(t, repo.owners)
}

func TestLinkServiceGet(t *testing.T) {
	repo := newMockLinkRepo()
	svc := newTestLinkService(repo)

	classA := uuid.NewString()
	created, err := svc.Create(context.Background(), models.SaveLinkOwnerRequest{
		Name:     "Robotics",
		ClassIDs: []string{classA},
	})
	require.NoError(t, err)

	detail, err := svc.Get(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "Robotics", detail.Name)
	require.Len(t, detail.Classes, 1)
	assert.Equal(t, classA, detail.Classes[0].ClassID)

	_, err = svc.Get(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
