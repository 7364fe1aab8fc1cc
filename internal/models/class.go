package models

import "time"

// ClassStatus represents the lifecycle state of a class.
type ClassStatus string

const (
	ClassStatusActive   ClassStatus = "ACTIVE"
	ClassStatusInactive ClassStatus = "INACTIVE"
)

// Class represents a "turma", a group of people taught together.
type Class struct {
	ID            string      `db:"id" json:"id"`
	Name          string      `db:"name" json:"name"`
	Description   *string     `db:"description" json:"description,omitempty"`
	StartDate     *time.Time  `db:"start_date" json:"start_date,omitempty"`
	EndDate       *time.Time  `db:"end_date" json:"end_date,omitempty"`
	Status        ClassStatus `db:"status" json:"status"`
	PrimaryUnitID *string     `db:"primary_unit_id" json:"primary_unit_id,omitempty"`
	CreatedAt     time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time   `db:"updated_at" json:"updated_at"`
}

// ClassDetail extends Class with contextual information.
type ClassDetail struct {
	Class
	PrimaryUnitName *string `db:"primary_unit_name" json:"primary_unit_name,omitempty"`
	EnrollmentCount int     `db:"enrollment_count" json:"enrollment_count"`
}

// SaveClassRequest creates or edits a class.
type SaveClassRequest struct {
	Name          string      `json:"name" validate:"required,min=2,max=120"`
	Description   *string     `json:"description,omitempty"`
	StartDate     *time.Time  `json:"start_date,omitempty"`
	EndDate       *time.Time  `json:"end_date,omitempty"`
	Status        ClassStatus `json:"status" validate:"omitempty,oneof=ACTIVE INACTIVE"`
	PrimaryUnitID *string     `json:"primary_unit_id,omitempty" validate:"omitempty,uuid4"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	Status    ClassStatus
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
