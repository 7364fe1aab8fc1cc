package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/saed-edu/saed-api/internal/models"
)

// ClassRepository handles persistence of classes.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by the provided criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.ClassDetail, int, error) {
	base := `FROM classes c LEFT JOIN units u ON u.id = c.primary_unit_id`
	var conditions []string
	var args []interface{}

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("c.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(c.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "c.name",
		"start_date": "c.start_date",
		"created_at": "c.created_at",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "c.name"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 100 {
		size = 20
	}
	offset := (page - 1) * size

	query := fmt.Sprintf(`SELECT c.id, c.name, c.description, c.start_date, c.end_date, c.status, c.primary_unit_id, c.created_at, c.updated_at,
        u.name AS primary_unit_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrollment_count
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var classes []models.ClassDetail
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by its ID.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	const query = `SELECT id, name, description, start_date, end_date, status, primary_unit_id, created_at, updated_at FROM classes WHERE id = $1`
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		return nil, err
	}
	return &class, nil
}

// FindDetailByID returns a class with unit and enrollment context.
func (r *ClassRepository) FindDetailByID(ctx context.Context, id string) (*models.ClassDetail, error) {
	const query = `SELECT c.id, c.name, c.description, c.start_date, c.end_date, c.status, c.primary_unit_id, c.created_at, c.updated_at,
        u.name AS primary_unit_name,
        (SELECT COUNT(*) FROM enrollments e WHERE e.class_id = c.id) AS enrollment_count
        FROM classes c LEFT JOIN units u ON u.id = c.primary_unit_id
        WHERE c.id = $1`
	var detail models.ClassDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListUnassigned returns classes not linked to any owner in the given join
// table, plus the given owner's own links. With an empty ownerID (a new owner)
// only fully unlinked classes qualify. Used to populate class pickers on
// course/modality forms.
func (r *ClassRepository) ListUnassigned(ctx context.Context, joinTable, ownerColumn, ownerID string) ([]models.Class, error) {
	subquery := fmt.Sprintf("SELECT 1 FROM %s j WHERE j.class_id = c.id", joinTable)
	var args []interface{}
	if ownerID != "" {
		subquery += fmt.Sprintf(" AND j.%s <> $1", ownerColumn)
		args = append(args, ownerID)
	}
	query := fmt.Sprintf(`SELECT id, name, description, start_date, end_date, status, primary_unit_id, created_at, updated_at
        FROM classes c
        WHERE NOT EXISTS (%s)
        ORDER BY c.name ASC`, subquery)
	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list unassigned classes: %w", err)
	}
	return classes, nil
}

// Create persists a new class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	if class.Status == "" {
		class.Status = models.ClassStatusActive
	}

	const query = `INSERT INTO classes (id, name, description, start_date, end_date, status, primary_unit_id, created_at, updated_at)
        VALUES (:id, :name, :description, :start_date, :end_date, :status, :primary_unit_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update updates mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, description = :description, start_date = :start_date, end_date = :end_date, status = :status, primary_unit_id = :primary_unit_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class. The delete is refused while any course link,
// modality link or enrollment references it; guards and delete share one
// transaction.
func (r *ClassRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete class: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var dependents int
	const guardQuery = `SELECT
        (SELECT COUNT(*) FROM course_classes WHERE class_id = $1) +
        (SELECT COUNT(*) FROM modality_classes WHERE class_id = $1) +
        (SELECT COUNT(*) FROM enrollments WHERE class_id = $1)`
	if err = tx.GetContext(ctx, &dependents, guardQuery, id); err != nil {
		return fmt.Errorf("count class dependents: %w", err)
	}
	if dependents > 0 {
		err = ErrHasDependents
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete class: %w", err)
	}
	return nil
}
