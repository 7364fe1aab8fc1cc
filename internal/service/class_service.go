package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
}

type unitFinder interface {
	FindByID(ctx context.Context, id string) (*models.Unit, error)
}

// ClassService implements use cases around classes.
type ClassService struct {
	repo      classRepository
	units     unitFinder
	validator *validator.Validate
	logger    *zap.Logger
	cache     *CacheService
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, units unitFinder, validate *validator.Validate, logger *zap.Logger, cache *CacheService) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ClassService{repo: repo, units: units, validator: validate, logger: logger, cache: cache}
}

// List returns classes matching the filter together with the total count.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	return classes, total, nil
}

// Get returns one class with unit and enrollment context.
func (s *ClassService) Get(ctx context.Context, id string) (*models.ClassDetail, error) {
	class, err := s.repo.FindDetailByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a new class. Status defaults to active.
func (s *ClassService) Create(ctx context.Context, req models.SaveClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := s.checkPrimaryUnit(ctx, req.PrimaryUnitID); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:          req.Name,
		Description:   req.Description,
		StartDate:     req.StartDate,
		EndDate:       req.EndDate,
		Status:        req.Status,
		PrimaryUnitID: req.PrimaryUnitID,
	}

	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}

	s.invalidateLists(ctx)
	return class, nil
}

// Update edits an existing class.
func (s *ClassService) Update(ctx context.Context, id string, req models.SaveClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if err := validateDates(req.StartDate, req.EndDate); err != nil {
		return nil, err
	}
	if err := s.checkPrimaryUnit(ctx, req.PrimaryUnitID); err != nil {
		return nil, err
	}

	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	class.Name = req.Name
	class.Description = req.Description
	class.StartDate = req.StartDate
	class.EndDate = req.EndDate
	class.PrimaryUnitID = req.PrimaryUnitID
	if req.Status != "" {
		class.Status = req.Status
	}

	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}

	s.invalidateLists(ctx)
	return class, nil
}

// Delete removes a class. A class still linked to a course or modality, or
// with enrollments, cannot be deleted.
func (s *ClassService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrHasDependents):
			return appErrors.Clone(appErrors.ErrDeletionBlocked, "class still has links or enrollments")
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "class not found")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
		}
	}

	s.invalidateLists(ctx)
	return nil
}

func (s *ClassService) invalidateLists(ctx context.Context) {
	// Class names show up in owner detail views, so both list caches go.
	for _, pattern := range []string{"course:list:*", "modality:list:*"} {
		if err := s.cache.Invalidate(ctx, pattern); err != nil {
			s.logger.Debug("cache invalidation failed", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *ClassService) checkPrimaryUnit(ctx context.Context, unitID *string) error {
	if unitID == nil || *unitID == "" {
		return nil
	}
	if _, err := s.units.FindByID(ctx, *unitID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "primary unit not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load primary unit")
	}
	return nil
}

func validateDates(start, end *time.Time) error {
	if start == nil || end == nil {
		return nil
	}
	if end.Before(*start) {
		return appErrors.Clone(appErrors.ErrValidation, "end date must not precede start date")
	}
	return nil
}
