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
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type mockUnitRepo struct {
	units map[string]*models.Unit
}

func newMockUnitRepo() *mockUnitRepo {
	return &mockUnitRepo{units: make(map[string]*models.Unit)}
}

func (m *mockUnitRepo) List(ctx context.Context, filter models.UnitFilter) ([]models.UnitDetail, int, error) {
	out := make([]models.UnitDetail, 0, len(m.units))
	for _, unit := range m.units {
		out = append(out, models.UnitDetail{Unit: *unit})
	}
	return out, len(out), nil
}

func (m *mockUnitRepo) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	unit, ok := m.units[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *unit
	return &copied, nil
}

func (m *mockUnitRepo) FindDetailByID(ctx context.Context, id string) (*models.UnitDetail, error) {
	unit, ok := m.units[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &models.UnitDetail{Unit: *unit}, nil
}

func (m *mockUnitRepo) Create(ctx context.Context, unit *models.Unit) error {
	unit.ID = uuid.NewString()
	m.units[unit.ID] = unit
	return nil
}

func (m *mockUnitRepo) Update(ctx context.Context, unit *models.Unit) error {
	m.units[unit.ID] = unit
	return nil
}

func (m *mockUnitRepo) Delete(ctx context.Context, id string) error {
	if _, ok := m.units[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.units, id)
	return nil
}

func newTestUnitService(repo *mockUnitRepo, class *models.Class) *UnitService {
	return NewUnitService(repo, &staticClassFinder{class: class}, validator.New(), zap.NewNop())
}

func TestUnitServiceCreate(t *testing.T) {
	class := &models.Class{ID: uuid.NewString(), Name: "Judo Kids A"}
	repo := newMockUnitRepo()
	svc := newTestUnitService(repo, class)

	unit, err := svc.Create(context.Background(), models.SaveUnitRequest{
		Name:    "Downtown Gym",
		Active:  true,
		ClassID: class.ID,
	})
	require.NoError(t, err)
	assert.NotEmpty(t, unit.ID)
	assert.Equal(t, class.ID, unit.ClassID)
}

func TestUnitServiceCreateUnknownClass(t *testing.T) {
	repo := newMockUnitRepo()
	svc := newTestUnitService(repo, nil)

	_, err := svc.Create(context.Background(), models.SaveUnitRequest{
		Name:    "Downtown Gym",
		ClassID: uuid.NewString(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUnitServiceUpdateMoveToUnknownClass(t *testing.T) {
	class := &models.Class{ID: uuid.NewString(), Name: "Judo Kids A"}
	repo := newMockUnitRepo()
	svc := newTestUnitService(repo, class)

	created, err := svc.Create(context.Background(), models.SaveUnitRequest{
		Name:    "Downtown Gym",
		ClassID: class.ID,
	})
	require.NoError(t, err)

	_, err = svc.Update(context.Background(), created.ID, models.SaveUnitRequest{
		Name:    "Downtown Gym",
		ClassID: uuid.NewString(),
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUnitServiceDelete(t *testing.T) {
	class := &models.Class{ID: uuid.NewString(), Name: "Judo Kids A"}
	repo := newMockUnitRepo()
	svc := newTestUnitService(repo, class)

	created, err := svc.Create(context.Background(), models.SaveUnitRequest{
		Name:    "Downtown Gym",
		ClassID: class.ID,
	})
	require.NoError(t, err)

	require.NoError(t, svc.Delete(context.Background(), created.ID))

	err = svc.Delete(context.Background(), created.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
