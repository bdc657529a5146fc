package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleStudent   UserRole = "STUDENT"
	RoleFaculty   UserRole = "FACULTY"
	RoleHOD       UserRole = "HOD"
	RoleLibrarian UserRole = "LIBRARIAN"
	RoleAdmin     UserRole = "ADMIN"
)

// Valid reports whether the role is a supported value.
func (r UserRole) Valid() bool {
	switch r {
	case RoleStudent, RoleFaculty, RoleHOD, RoleLibrarian, RoleAdmin:
		return true
	default:
		return false
	}
}

// CollegeLinkStatus tracks a user's link to their college tenant.
type CollegeLinkStatus string

const (
	CollegeLinkNotLinked CollegeLinkStatus = "NOTLINKED"
	CollegeLinkPending   CollegeLinkStatus = "PENDING"
	CollegeLinkApproved  CollegeLinkStatus = "APPROVED"
	CollegeLinkRejected  CollegeLinkStatus = "REJECTED"
)

// User represents an application user stored in the users table.
type User struct {
	ID            string            `db:"id" json:"id"`
	Email         string            `db:"email" json:"email"`
	PasswordHash  string            `db:"password_hash" json:"-"`
	FullName      string            `db:"full_name" json:"full_name"`
	Role          UserRole          `db:"role" json:"role"`
	CollegeID     *string           `db:"college_id" json:"college_id,omitempty"`
	CollegeStatus CollegeLinkStatus `db:"college_status" json:"college_status"`
	ClassID       *string           `db:"class_id" json:"class_id,omitempty"`
	Active        bool              `db:"active" json:"active"`
	LastLogin     *time.Time        `db:"last_login" json:"last_login,omitempty"`
	CreatedAt     time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time         `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role          *UserRole
	CollegeID     string
	CollegeStatus *CollegeLinkStatus
	Active        *bool
	Search        string
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}
