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

// PersonRepository handles persistence of people.
type PersonRepository struct {
	db *sqlx.DB
}

// NewPersonRepository constructs the repository.
func NewPersonRepository(db *sqlx.DB) *PersonRepository {
	return &PersonRepository{db: db}
}

// List returns people filtered by the provided criteria.
func (r *PersonRepository) List(ctx context.Context, filter models.PersonFilter) ([]models.Person, int, error) {
	baseQuery := `FROM people WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR LOWER(email) LIKE $%d OR registration_number LIKE $%d)", len(args)+1, len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	allowedSorts := map[string]bool{
		"full_name":           true,
		"registration_number": true,
		"created_at":          true,
	}
	sortBy := filter.SortBy
	if !allowedSorts[sortBy] {
		sortBy = "full_name"
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

	listQuery := fmt.Sprintf("SELECT id, full_name, birth_date, national_id, email, registration_number, created_at, updated_at %s ORDER BY %s %s LIMIT %d OFFSET %d", baseQuery, sortBy, sortOrder, pageSize, offset)

	var people []models.Person
	if err := r.db.SelectContext(ctx, &people, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list people: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count people: %w", err)
	}

	return people, total, nil
}

// FindByID returns a person by identifier.
func (r *PersonRepository) FindByID(ctx context.Context, id string) (*models.Person, error) {
	const query = `SELECT id, full_name, birth_date, national_id, email, registration_number, created_at, updated_at FROM people WHERE id = $1`
	var person models.Person
	if err := r.db.GetContext(ctx, &person, query, id); err != nil {
		return nil, err
	}
	return &person, nil
}

// ExistsByNationalID checks for a duplicate national ID, optionally excluding a record.
func (r *PersonRepository) ExistsByNationalID(ctx context.Context, nationalID, excludeID string) (bool, error) {
	query := `SELECT COUNT(*) FROM people WHERE national_id = $1`
	args := []interface{}{nationalID}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}
	var count int
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return false, fmt.Errorf("check national id: %w", err)
	}
	return count > 0, nil
}

// Create persists a new person record.
func (r *PersonRepository) Create(ctx context.Context, person *models.Person) error {
	if person.ID == "" {
		person.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if person.CreatedAt.IsZero() {
		person.CreatedAt = now
	}
	person.UpdatedAt = now

	const query = `INSERT INTO people (id, full_name, birth_date, national_id, email, registration_number, created_at, updated_at)
        VALUES (:id, :full_name, :birth_date, :national_id, :email, :registration_number, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("create person: %w", err)
	}
	return nil
}

// Update updates mutable fields of a person.
func (r *PersonRepository) Update(ctx context.Context, person *models.Person) error {
	person.UpdatedAt = time.Now().UTC()
	const query = `UPDATE people SET full_name = :full_name, birth_date = :birth_date, national_id = :national_id, email = :email, registration_number = :registration_number, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, person); err != nil {
		return fmt.Errorf("update person: %w", err)
	}
	return nil
}

// Delete removes a person if no enrollments reference it. The guard and the
// delete share one transaction.
func (r *PersonRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin delete person: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var enrollments int
	if err = tx.GetContext(ctx, &enrollments, `SELECT COUNT(*) FROM enrollments WHERE person_id = $1`, id); err != nil {
		return fmt.Errorf("count person enrollments: %w", err)
	}
	if enrollments > 0 {
		err = ErrHasDependents
		return err
	}

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM people WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete person: %w", err)
	}
	if n, raErr := res.RowsAffected(); raErr == nil && n == 0 {
		err = sql.ErrNoRows
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit delete person: %w", err)
	}
	return nil
}
