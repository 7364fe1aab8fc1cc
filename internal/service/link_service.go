package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/saed-edu/saed-api/internal/models"
	"github.com/saed-edu/saed-api/internal/repository"
	appErrors "github.com/saed-edu/saed-api/pkg/errors"
)

type linkOwnerRepository interface {
	List(ctx context.Context, filter models.LinkOwnerFilter) ([]models.LinkOwner, int, error)
	FindByID(ctx context.Context, id string) (*models.LinkOwner, error)
	ListLinkedClasses(ctx context.Context, ownerID string) ([]models.LinkedClass, error)
	HasConflict(ctx context.Context, ownerID string, classIDs []string) (bool, error)
	Save(ctx context.Context, owner *models.LinkOwner, classIDs []string) error
	Delete(ctx context.Context, ownerID string) error
}

type unassignedClassLister interface {
	ListUnassigned(ctx context.Context, joinTable, ownerColumn, ownerID string) ([]models.Class, error)
}

// LinkService implements the shared use cases for owners of exclusive class
// links. Courses and modalities each get an instance bound to their own
// repository; the behavior is identical.
type LinkService struct {
	repo      linkOwnerRepository
	classes   unassignedClassLister
	domain    repository.LinkDomain
	resource  string
	validator *validator.Validate
	logger    *zap.Logger
	cache     *CacheService
}

// NewLinkService constructs a LinkService for one association domain. The
// resource name is used in error messages and cache keys ("course" or
// "modality").
func NewLinkService(repo linkOwnerRepository, classes unassignedClassLister, domain repository.LinkDomain, resource string, validate *validator.Validate, logger *zap.Logger, cache *CacheService) *LinkService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &LinkService{repo: repo, classes: classes, domain: domain, resource: resource, validator: validate, logger: logger, cache: cache}
}

// List returns owners matching the filter together with the total count.
func (s *LinkService) List(ctx context.Context, filter models.LinkOwnerFilter) ([]models.LinkOwner, int, error) {
	type cached struct {
		Owners []models.LinkOwner `json:"owners"`
		Total  int                `json:"total"`
	}
	key := fmt.Sprintf("%s:list:%s:%d:%d:%s:%s", s.resource, filter.Search, filter.Page, filter.PageSize, filter.SortBy, filter.SortOrder)

	var entry cached
	if hit, _ := s.cache.Get(ctx, key, &entry); hit {
		return entry.Owners, entry.Total, nil
	}

	owners, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to list %ss", s.resource))
	}

	if err := s.cache.Set(ctx, key, cached{Owners: owners, Total: total}, 0); err != nil {
		s.logger.Debug("cache population failed", zap.String("key", key), zap.Error(err))
	}

	return owners, total, nil
}

// Get returns one owner with its linked classes.
func (s *LinkService) Get(ctx context.Context, id string) (*models.LinkOwnerDetail, error) {
	owner, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", s.resource))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to load %s", s.resource))
	}

	classes, err := s.repo.ListLinkedClasses(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked classes")
	}

	return &models.LinkOwnerDetail{LinkOwner: *owner, Classes: classes}, nil
}

// AvailableClasses returns the classes that can still be linked to the owner:
// classes not linked to any owner in this domain, plus the owner's own links.
// Pass an empty ownerID when creating.
func (s *LinkService) AvailableClasses(ctx context.Context, ownerID string) ([]models.Class, error) {
	classes, err := s.classes.ListUnassigned(ctx, s.domain.JoinTable, s.domain.OwnerColumn, ownerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list available classes")
	}
	return classes, nil
}

// Create stores a new owner with its class links. The whole operation is
// rejected when any requested class already belongs to another owner in this
// domain; no partial link set is ever written.
func (s *LinkService) Create(ctx context.Context, req models.SaveLinkOwnerRequest) (*models.LinkOwnerDetail, error) {
	return s.save(ctx, "", req)
}

// Update edits an owner and replaces its class links, under the same
// all-or-nothing conflict rule as Create. Dropping a class here frees it for
// other owners immediately.
func (s *LinkService) Update(ctx context.Context, id string, req models.SaveLinkOwnerRequest) (*models.LinkOwnerDetail, error) {
	if id == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "missing identifier")
	}
	return s.save(ctx, id, req)
}

func (s *LinkService) save(ctx context.Context, id string, req models.SaveLinkOwnerRequest) (*models.LinkOwnerDetail, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, fmt.Sprintf("invalid %s payload", s.resource))
	}

	classIDs := dedupe(req.ClassIDs)

	conflict, err := s.repo.HasConflict(ctx, id, classIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class availability")
	}
	if conflict {
		return nil, s.conflictError()
	}

	owner := &models.LinkOwner{ID: id, Name: req.Name}
	if err := s.repo.Save(ctx, owner, classIDs); err != nil {
		switch {
		case errors.Is(err, repository.ErrLinkConflict):
			return nil, s.conflictError()
		case errors.Is(err, sql.ErrNoRows):
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", s.resource))
		default:
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to save %s", s.resource))
		}
	}

	s.invalidate(ctx)

	classes, err := s.repo.ListLinkedClasses(ctx, owner.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load linked classes")
	}

	return &models.LinkOwnerDetail{LinkOwner: *owner, Classes: classes}, nil
}

// Delete removes an owner. Owners with linked classes cannot be deleted.
func (s *LinkService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		switch {
		case errors.Is(err, repository.ErrHasDependents):
			return appErrors.Clone(appErrors.ErrDeletionBlocked, fmt.Sprintf("%s still has linked classes", s.resource))
		case errors.Is(err, sql.ErrNoRows):
			return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s not found", s.resource))
		default:
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to delete %s", s.resource))
		}
	}

	s.invalidate(ctx)
	return nil
}

func (s *LinkService) conflictError() error {
	return appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("one or more classes already belong to another %s", s.resource))
}

func (s *LinkService) invalidate(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, s.resource+":list:*"); err != nil {
		s.logger.Debug("cache invalidation failed", zap.String("resource", s.resource), zap.Error(err))
	}
}

func dedupe(ids []string) []string {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
