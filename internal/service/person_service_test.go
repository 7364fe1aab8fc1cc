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

type mockPersonRepo struct {
	people    map[string]*models.Person
	exists    bool
	existsErr error
	createErr error
	deleteErr error
}

func newMockPersonRepo() *mockPersonRepo {
	return &mockPersonRepo{people: make(map[string]*models.Person)}
}

func (m *mockPersonRepo) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	out := make([]models.Person, 0, len(m.people))
	for _, person := range m.people {
		out = append(out, *person)
	}
	return out, len(out), nil
}

func (m *mockPersonRepo) FindByID(ctx context.Context, id string) (*models.Person, error) {
	person, ok := m.people[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *person
	return &copied, nil
}

func (m *mockPersonRepo) ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	return m.exists, nil
}

func (m *mockPersonRepo) Create(ctx context.Context, person *models.Person) error {
	if m.createErr != nil {
		return m.createErr
	}
	person.ID = uuid.NewString()
	m.people[person.ID] = person
	return nil
}

func (m *mockPersonRepo) Update(ctx context.Context, person *models.Person) error {
	m.people[person.ID] = person
	return nil
}

func (m *mockPersonRepo) Delete(ctx context.Context, id string) error {
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.people[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.people, id)
	return nil
}

func newTestPersonService(repo *mockPersonRepo) *PersonService {
	return NewPersonService(repo, validator.New(), zap.NewNop())
}

func TestPersonServiceCreate(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newTestPersonService(repo)

	person, err := svc.Create(context.Background(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, person.ID)
	assert.Equal(t, "Maria Souza", person.FullName)
}

func TestPersonServiceCreateDuplicateNationalID(t *testing.T) {
	repo := newMockPersonRepo()
	repo.exists = true
	svc := newTestPersonService(repo)

	_, err := svc.Create(context.Background(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.people)
}

func TestPersonServiceCreateDuplicateRace(t *testing.T) {
	repo := newMockPersonRepo()
	repo.createErr = repository.ErrDuplicate
	svc := newTestPersonService(repo)

	_, err := svc.Create(context.Background(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestPersonServiceUpdate(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newTestPersonService(repo)

	created, err := svc.Create(context.Background(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.NoError(t, err)

	updated, err := svc.Update(context.Background(), created.ID, models.SavePersonRequest{
		FullName:           "Maria Souza Lima",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.NoError(t, err)
	assert.Equal(t, "Maria Souza Lima", updated.FullName)
}

func TestPersonServiceUpdateUnknownID(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newTestPersonService(repo)

	_, err := svc.Update(context.Background(), uuid.NewString(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPersonServiceDeleteBlockedWithEnrollments(t *testing.T) {
	repo := newMockPersonRepo()
	repo.deleteErr = repository.ErrHasDependents
	svc := newTestPersonService(repo)

	err := svc.Delete(context.Background(), uuid.NewString())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrDeletionBlocked.Code, appErrors.FromError(err).Code)
}

func TestPersonServiceDelete(t *testing.T) {
	repo := newMockPersonRepo()
	svc := newTestPersonService(repo)

	created, err := svc.Create(context.Background(), models.SavePersonRequest{
		FullName:           "Maria Souza",
		NationalID:         "123.456.789-00",
		RegistrationNumber: "2026-0001",
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))
	assert.Empty(t, repo.people)
}
