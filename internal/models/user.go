package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin UserRole = "ADMIN"
	RoleStaff UserRole = "STAFF"
)

// User represents an application account stored in the users table.
type User struct {
	ID                  string     `db:"id" json:"id"`
	Email               string     `db:"email" json:"email"`
	PasswordHash        string     `db:"password_hash" json:"-"`
	FullName            string     `db:"full_name" json:"full_name"`
	Role                UserRole   `db:"role" json:"role"`
	Active              bool       `db:"active" json:"active"`
	FailedLoginAttempts int        `db:"failed_login_attempts" json:"-"`
	LastFailedLogin     *time.Time `db:"last_failed_login" json:"-"`
	LastLogin           *time.Time `db:"last_login" json:"last_login,omitempty"`
	LastAccess          *time.Time `db:"last_access" json:"last_access,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// CreateUserRequest creates an account on behalf of an administrator.
type CreateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	Password string   `json:"password" validate:"required,min=6"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
	Active   bool     `json:"active"`
}

// UpdateUserRequest edits an account's profile, role and status.
type UpdateUserRequest struct {
	Email    string   `json:"email" validate:"required,email"`
	FullName string   `json:"full_name" validate:"required"`
	Role     UserRole `json:"role" validate:"required,oneof=ADMIN STAFF"`
	Active   bool     `json:"active"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}
