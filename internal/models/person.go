package models

import "time"

// Person represents a student or member of the program.
type Person struct {
	ID                 string     `db:"id" json:"id"`
	FullName           string     `db:"full_name" json:"full_name"`
	BirthDate          *time.Time `db:"birth_date" json:"birth_date,omitempty"`
	NationalID         string     `db:"national_id" json:"national_id"`
	Email              string     `db:"email" json:"email"`
	RegistrationNumber string     `db:"registration_number" json:"registration_number"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// SavePersonRequest creates or edits a person.
type SavePersonRequest struct {
	FullName           string     `json:"full_name" validate:"required,min=2,max=160"`
	BirthDate          *time.Time `json:"birth_date,omitempty"`
	NationalID         string     `json:"national_id" validate:"required"`
	Email              string     `json:"email" validate:"omitempty,email"`
	RegistrationNumber string     `json:"registration_number" validate:"required"`
}

// PersonFilter defines filter criteria for listing people.
type PersonFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
