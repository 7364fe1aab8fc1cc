package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type personRepository interface {
	List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error)
	FindByID(ctx context.Context, id string) (*models.Person, error)
	ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error)
	Create(ctx context.Context, person *models.Person) error
	Update(ctx context.Context, person *models.Person) error
	Delete(ctx context.Context, id string) error
}

// PersonService implements use cases around people.
type PersonService struct {
	repo      personRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewPersonService constructs a PersonService.
func NewPersonService(repo personRepository, validate *validator.Validate, logger *zap.Logger) *PersonService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &PersonService{repo: repo, validator: validate, logger: logger}
}

// List returns people matching the filter together with the total count.
func (s *PersonService) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	people, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list people")
	}
	return people, total, nil
}

// Get returns one person by identifier.
func (s *PersonService) Get(ctx context.Context, id string) (*models.Person, error) {
	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}
	return person, nil
}

// Create registers a new person. The national identifier must be unique.
func (s *PersonService) Create(ctx context.Context, req models.SavePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}

	taken, err := s.repo.ExistsByNationalID(ctx, req.NationalID, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id is already registered")
	}

	person := &models.Person{
		FullName:           req.FullName,
		BirthDate:          req.BirthDate,
		NationalID:         req.NationalID,
		Email:              req.Email,
		RegistrationNumber: req.RegistrationNumber,
	}

	if err := s.repo.Create(ctx, person); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "national id or registration number is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create person")
	}

	return person, nil
}

// Update edits an existing person.
func (s *PersonService) Update(ctx context.Context, id string, req models.SavePersonRequest) (*models.Person, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid person payload")
	}

	person, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "person not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load person")
	}

	taken, err := s.repo.ExistsByNationalID(ctx, req.NationalID, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check national id")
	}
	if taken {
		return nil, appErrors.Clone(appErrors.ErrConflict, "national id is already registered")
	}

	person.FullName = req.FullName
	person.BirthDate = req.BirthDate
	person.NationalID = req.NationalID
	person.Email = req.Email
	person.RegistrationNumber = req.RegistrationNumber

	if err := s.repo.Update(ctx, person); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "national id or registration number is already registered")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update person")
	}

	return person, nil
}

// Delete removes a person. People with enrollments cannot be deleted.
func (s *PersonService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrHasDependents):
			return appErrors.Clone(appErrors.ErrDeletionBlocked, "person still has enrollments")
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, "person not found")
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete person")
		}
	}
	return nil
}
