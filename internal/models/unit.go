package models

import "time"

// Unit represents a "unidade", a physical location tied to a class.
type Unit struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	Description *string   `db:"description" json:"description,omitempty"`
	Active      bool      `db:"active" json:"active"`
	Address     *string   `db:"address" json:"address,omitempty"`
	ClassID     string    `db:"class_id" json:"class_id"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// UnitDetail extends Unit with class context.
type UnitDetail struct {
	Unit
	ClassName string `db:"class_name" json:"class_name"`
}

// SaveUnitRequest creates or edits a unit. The class is required; every unit
// belongs to exactly one class.
type SaveUnitRequest struct {
	Name        string  `json:"name" validate:"required,min=2,max=120"`
	Description *string `json:"description,omitempty"`
	Active      bool    `json:"active"`
	Address     *string `json:"address,omitempty"`
	ClassID     string  `json:"class_id" validate:"required,uuid4"`
}

// UnitFilter defines filter criteria for listing units.
type UnitFilter struct {
	ClassID   string
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
