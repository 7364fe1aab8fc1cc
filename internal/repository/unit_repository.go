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

// UnitRepository handles persistence of units.
type UnitRepository struct {
	db *sqlx.DB
}

// NewUnitRepository constructs the repository.
func NewUnitRepository(db *sqlx.DB) *UnitRepository {
	return &UnitRepository{db: db}
}

// List returns units filtered by the provided criteria.
func (r *UnitRepository) List(ctx context.Context, filter models.UnitFilter) ([]models.UnitDetail, int, error) {
	base := `FROM units u JOIN classes c ON c.id = u.class_id`
	var conditions []string
	var args []interface{}

	if filter.ClassID != "" {
		conditions = append(conditions, fmt.Sprintf("u.class_id = $%d", len(args)+1))
		args = append(args, filter.ClassID)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("u.active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(u.name) LIKE $%d", len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	clause := ""
	if len(conditions) > 0 {
		clause = " WHERE " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]string{
		"name":       "u.name",
		"created_at": "u.created_at",
		"class_name": "c.name",
	}
	orderBy := allowedSorts[filter.SortBy]
	if orderBy == "" {
		orderBy = "u.name"
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

	query := fmt.Sprintf(`SELECT u.id, u.name, u.description, u.active, u.address, u.class_id, u.created_at, u.updated_at,
        c.name AS class_name
        %s ORDER BY %s %s LIMIT %d OFFSET %d`, base+clause, orderBy, order, size, offset)

	var units []models.UnitDetail
	if err := r.db.SelectContext(ctx, &units, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list units: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base+clause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count units: %w", err)
	}
	return units, total, nil
}

// FindByID returns a unit by its ID.
func (r *UnitRepository) FindByID(ctx context.Context, id string) (*models.Unit, error) {
	const query = `SELECT id, name, description, active, address, class_id, created_at, updated_at FROM units WHERE id = $1`
	var unit models.Unit
	if err := r.db.GetContext(ctx, &unit, query, id); err != nil {
		return nil, err
	}
	return &unit, nil
}

// FindDetailByID returns a unit with class context.
func (r *UnitRepository) FindDetailByID(ctx context.Context, id string) (*models.UnitDetail, error) {
	const query = `SELECT u.id, u.name, u.description, u.active, u.address, u.class_id, u.created_at, u.updated_at,
        c.name AS class_name
        FROM units u JOIN classes c ON c.id = u.class_id
        WHERE u.id = $1`
	var detail models.UnitDetail
	if err := r.db.GetContext(ctx, &detail, query, id); err != nil {
		return nil, err
	}
	return &detail, nil
}

// Create persists a new unit record.
func (r *UnitRepository) Create(ctx context.Context, unit *models.Unit) error {
	if unit.ID == "" {
		unit.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if unit.CreatedAt.IsZero() {
		unit.CreatedAt = now
	}
	unit.UpdatedAt = now

	const query = `INSERT INTO units (id, name, description, active, address, class_id, created_at, updated_at)
        VALUES (:id, :name, :description, :active, :address, :class_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, unit); err != nil {
		return fmt.Errorf("create unit: %w", err)
	}
	return nil
}

// Update updates mutable fields of a unit.
func (r *UnitRepository) Update(ctx context.Context, unit *models.Unit) error {
	unit.UpdatedAt = time.Now().UTC()
	const query = `UPDATE units SET name = :name, description = :description, active = :active, address = :address, class_id = :class_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, unit); err != nil {
		return fmt.Errorf("update unit: %w", err)
	}
	return nil
}

// Delete removes a unit and clears primary-unit back-references from classes
// in the same transaction.
func (r *UnitRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete unit: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `UPDATE classes SET primary_unit_id = NULL, updated_at = $2 WHERE primary_unit_id = $1`, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("clear primary unit references: %w", err)
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM units WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete unit: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete unit: %w", err)
	}
	return nil
}
