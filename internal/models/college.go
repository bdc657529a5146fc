package models

import "time"

// College represents a tenant institution.
type College struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	Address   string    `db:"address" json:"address"`
	Phone     string    `db:"phone" json:"phone"`
	Email     string    `db:"email" json:"email"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// CollegeFilter defines filter criteria for listing colleges.
type CollegeFilter struct {
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// CollegeLink represents a user's membership request against a college.
type CollegeLink struct {
	UserID        string            `db:"user_id" json:"user_id"`
	FullName      string            `db:"full_name" json:"full_name"`
	Email         string            `db:"email" json:"email"`
	Role          UserRole          `db:"role" json:"role"`
	CollegeStatus CollegeLinkStatus `db:"college_status" json:"college_status"`
}
