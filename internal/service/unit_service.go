package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saed-edu/saed-api/internal/models"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type unitRepository interface {
	List(ctx context.Context, filter models.UnitFilter) ([]models.UnitDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Unit, error)
	FindDetailByID(ctx context.Context, id string) (*models.UnitDetail, error)
	Create(ctx context.Context, unit *models.Unit) error
	Update(ctx context.Context, unit *models.Unit) error
	Delete(ctx context.Context, id string) error
}

// UnitService implements use cases around units.
type UnitService struct {
	repo      unitRepository
	classes   classFinder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUnitService constructs a UnitService.
func NewUnitService(repo unitRepository, classes classFinder, validate *validator.Validate, logger *zap.Logger) *UnitService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UnitService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// List returns units matching the filter together with the total count.
func (s *UnitService) List(ctx context.Context, filter models.UnitFilter) ([]models.UnitDetail, int, error) {
	units, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list units")
	}
	return units, total, nil
}

// Get returns one unit with class context.
func (s *UnitService) Get(ctx context.Context, id string) (*models.UnitDetail, error) {
	unit, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}
	return unit, nil
}

// Create registers a new unit attached to an existing class.
func (s *UnitService) Create(ctx context.Context, req models.SaveUnitRequest) (*models.Unit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}

	if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	unit := &models.Unit{
		Name:        req.Name,
		Description: req.Description,
		Active:      req.Active,
		Address:     req.Address,
		ClassID:     req.ClassID,
	}

	if err := s.repo.Create(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create unit")
	}

	return unit, nil
}

// Update edits an existing unit, including moving it to another class.
func (s *UnitService) Update(ctx context.Context, id string, req models.SaveUnitRequest) (*models.Unit, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid unit payload")
	}

	unit, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load unit")
	}

	if req.ClassID != unit.ClassID {
		if _, err := s.classes.FindByID(ctx, req.ClassID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
		}
	}

	unit.Name = req.Name
	unit.Description = req.Description
	unit.Active = req.Active
	unit.Address = req.Address
	unit.ClassID = req.ClassID

	if err := s.repo.Update(ctx, unit); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update unit")
	}

	return unit, nil
}

// Delete removes a unit. Classes pointing at it as their primary unit are
// detached in the same transaction, so the delete always succeeds for an
// existing unit.
func (s *UnitService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "unit not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete unit")
	}
	return nil
}
