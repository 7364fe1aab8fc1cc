package models

import "time"

// Enrollment registers a person into a class. A (person, class) pair is unique.
type Enrollment struct {
	ID         string    `db:"id" json:"id"`
	PersonID   string    `db:"person_id" json:"person_id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	EnrolledAt time.Time `db:"enrolled_at" json:"enrolled_at"`
}

// EnrollmentDetail enriches Enrollment with person and class info.
type EnrollmentDetail struct {
	Enrollment
	PersonName         string `db:"person_name" json:"person_name"`
	RegistrationNumber string `db:"registration_number" json:"registration_number"`
	ClassName          string `db:"class_name" json:"class_name"`
}

// CreateEnrollmentRequest registers a person into a class.
type CreateEnrollmentRequest struct {
	PersonID string `json:"person_id" validate:"required,uuid4"`
	ClassID  string `json:"class_id" validate:"required,uuid4"`
}

// EnrollmentFilter provides filters for listing enrollments.
type EnrollmentFilter struct {
	PersonID  string
	ClassID   string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
