package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/saed-edu/saed-api/internal/models"
)

// LinkDomain names one exclusive-association domain: the owner table and the
// join table that binds owners to classes. Course↔Class and Modality↔Class are
// the two instances; both behave identically.
type LinkDomain struct {
	// OwnerTable is the table holding the owning entity (courses, modalities).
	OwnerTable string
	// JoinTable is the join table (course_classes, modality_classes).
	JoinTable string
	// OwnerColumn is the join table column referencing the owner.
	OwnerColumn string
}

// CourseDomain binds courses to classes through course_classes.
var CourseDomain = LinkDomain{OwnerTable: "courses", JoinTable: "course_classes", OwnerColumn: "course_id"}

// ModalityDomain binds modalities to classes through modality_classes.
var ModalityDomain = LinkDomain{OwnerTable: "modalities", JoinTable: "modality_classes", OwnerColumn: "modality_id"}

// LinkRepository persists one exclusive-association domain: owner CRUD plus
// the class links that must belong to at most one owner each.
type LinkRepository struct {
	db     *sqlx.DB
	domain LinkDomain
}

// NewLinkRepository constructs a repository bound to one association domain.
func NewLinkRepository(db *sqlx.DB, domain LinkDomain) *LinkRepository {
	return &LinkRepository{db: db, domain: domain}
}

// List returns owners filtered by the provided criteria.
func (r *LinkRepository) List(ctx context.Context, filter models.LinkOwnerFilter) ([]models.LinkOwner, int, error) {
	baseQuery := fmt.Sprintf("FROM %s WHERE 1=1", r.domain.OwnerTable)
	var args []interface{}

	if filter.Search != "" {
		baseQuery += fmt.Sprintf(" AND LOWER(name) LIKE $%d", len(args)+1)
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	allowedSorts := map[string]bool{"name": true, "created_at": true}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "name"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "ASC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT id, name, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var owners []models.LinkOwner
	if err := r.db.SelectContext(ctx, &owners, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list %s: %w", r.domain.OwnerTable, err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count %s: %w", r.domain.OwnerTable, err)
	}

	return owners, total, nil
}

// FindByID returns an owner by identifier.
func (r *LinkRepository) FindByID(ctx context.Context, id string) (*models.LinkOwner, error) {
	query := fmt.Sprintf("SELECT id, name, created_at, updated_at FROM %s WHERE id = $1", r.domain.OwnerTable)
	var owner models.LinkOwner
	if err := r.db.GetContext(ctx, &owner, query, id); err != nil {
		return nil, err
	}
	return &owner, nil
}

// ListLinkedClasses returns the classes attached to an owner.
func (r *LinkRepository) ListLinkedClasses(ctx context.Context, ownerID string) ([]models.LinkedClass, error) {
	query := fmt.Sprintf(`SELECT j.class_id, c.name AS class_name
        FROM %s j JOIN classes c ON c.id = j.class_id
        WHERE j.%s = $1 ORDER BY c.name ASC`, r.domain.JoinTable, r.domain.OwnerColumn)
	var classes []models.LinkedClass
	if err := r.db.SelectContext(ctx, &classes, query, ownerID); err != nil {
		return nil, fmt.Errorf("list linked classes: %w", err)
	}
	return classes, nil
}

// HasConflict reports whether any of the candidate classes is already linked
// to a different owner. With an empty ownerID (creating) any existing link on
// a candidate conflicts. An empty candidate set never conflicts. Read-only;
// Replace re-verifies inside its transaction because this check alone is not
// atomic with the write.
func (r *LinkRepository) HasConflict(ctx context.Context, ownerID string, classIDs []string) (bool, error) {
	if len(classIDs) == 0 {
		return false, nil
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE class_id = ANY($1)", r.domain.JoinTable)
	args := []interface{}{pq.Array(classIDs)}
	if ownerID != "" {
		query += fmt.Sprintf(" AND %s <> $2", r.domain.OwnerColumn)
		args = append(args, ownerID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check link conflict: %w", err)
	}
	return count > 0, nil
}

// Save persists the owner and replaces its class links in one transaction.
// Stale links are deleted, and each candidate is re-checked for availability
// immediately before insert; the unique constraint on the join table's
// class_id column backstops the re-check against concurrent writers. On any
// conflict the whole transaction rolls back and ErrLinkConflict is returned.
func (r *LinkRepository) Save(ctx context.Context, owner *models.LinkOwner, classIDs []string) (err error) {
	now := time.Now().UTC()
	isNew := owner.ID == ""
	if isNew {
		owner.ID = uuid.NewString()
		owner.CreatedAt = now
	}
	owner.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save %s: %w", r.domain.OwnerTable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if isNew {
		insertOwner := fmt.Sprintf("INSERT INTO %s (id, name, created_at, updated_at) VALUES ($1, $2, $3, $4)", r.domain.OwnerTable)
		if _, err = tx.ExecContext(ctx, insertOwner, owner.ID, owner.Name, owner.CreatedAt, owner.UpdatedAt); err != nil {
			return fmt.Errorf("insert %s: %w", r.domain.OwnerTable, err)
		}
	} else {
		updateOwner := fmt.Sprintf("UPDATE %s SET name = $2, updated_at = $3 WHERE id = $1", r.domain.OwnerTable)
		var res sql.Result
		res, err = tx.ExecContext(ctx, updateOwner, owner.ID, owner.Name, owner.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update %s: %w", r.domain.OwnerTable, err)
		}
		if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
			err = sql.ErrNoRows
			return err
		}
	}

	deleteStale := fmt.Sprintf("DELETE FROM %s WHERE %s = $1", r.domain.JoinTable, r.domain.OwnerColumn)
	if len(classIDs) > 0 {
		deleteStale += " AND class_id <> ALL($2)"
		if _, err = tx.ExecContext(ctx, deleteStale, owner.ID, pq.Array(classIDs)); err != nil {
			return fmt.Errorf("delete stale links: %w", err)
		}
	} else {
		if _, err = tx.ExecContext(ctx, deleteStale, owner.ID); err != nil {
			return fmt.Errorf("delete stale links: %w", err)
		}
	}

	for _, classID := range classIDs {
		var taken int
		takenQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE class_id = $1 AND %s <> $2", r.domain.JoinTable, r.domain.OwnerColumn)
		if err = tx.GetContext(ctx, &taken, takenQuery, classID, owner.ID); err != nil {
			return fmt.Errorf("recheck link availability: %w", err)
		}
		if taken > 0 {
			err = ErrLinkConflict
			return err
		}

		insertLink := fmt.Sprintf("INSERT INTO %s (%s, class_id) VALUES ($1, $2) ON CONFLICT (%s, class_id) DO NOTHING", r.domain.JoinTable, r.domain.OwnerColumn, r.domain.OwnerColumn)
		if _, err = tx.ExecContext(ctx, insertLink, owner.ID, classID); err != nil {
			if isUniqueViolation(err) {
				err = ErrLinkConflict
			} else {
				err = fmt.Errorf("insert link: %w", err)
			}
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit save %s: %w", r.domain.OwnerTable, err)
	}
	return nil
}

// CountByClass returns how many owners a class is linked to in this domain.
func (r *LinkRepository) CountByClass(ctx context.Context, classID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE class_id = $1", r.domain.JoinTable)
	var count int
	if err := r.db.GetContext(ctx, &count, query, classID); err != nil {
		return 0, fmt.Errorf("count links by class: %w", err)
	}
	return count, nil
}

// CountByOwner returns how many classes are linked to an owner.
func (r *LinkRepository) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", r.domain.JoinTable, r.domain.OwnerColumn)
	var count int
	if err := r.db.GetContext(ctx, &count, query, ownerID); err != nil {
		return 0, fmt.Errorf("count links by owner: %w", err)
	}
	return count, nil
}

// Delete removes an owner. The delete is refused while any class remains
// linked; the guard and the delete share one transaction.
func (r *LinkRepository) Delete(ctx context.Context, ownerID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete %s: %w", r.domain.OwnerTable, err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var linked int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1", r.domain.JoinTable, r.domain.OwnerColumn)
	if err = tx.GetContext(ctx, &linked, countQuery, ownerID); err != nil {
		return fmt.Errorf("count owner links: %w", err)
	}
	if linked > 0 {
		err = ErrHasDependents
		return err
	}

	deleteQuery := fmt.Sprintf("DELETE FROM %s WHERE id = $1", r.domain.OwnerTable)
	var res sql.Result
	res, err = tx.ExecContext(ctx, deleteQuery, ownerID)
	if err != nil {
		return fmt.Errorf("delete %s: %w", r.domain.OwnerTable, err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete %s: %w", r.domain.OwnerTable, err)
	}
	return nil
}
