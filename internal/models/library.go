package models

import "time"

// Book represents a catalogued title with a fixed number of copies.
type Book struct {
	ID              string    `db:"id" json:"id"`
	CollegeID       string    `db:"college_id" json:"college_id"`
	Title           string    `db:"title" json:"title"`
	Author          string    `db:"author" json:"author"`
	ISBN            string    `db:"isbn" json:"isbn"`
	TotalCopies     int       `db:"total_copies" json:"total_copies"`
	AvailableCopies int       `db:"available_copies" json:"available_copies"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time `db:"updated_at" json:"updated_at"`
}

// BookFilter defines filter criteria for listing books.
type BookFilter struct {
	CollegeID     string
	Search        string
	AvailableOnly bool
	Page          int
	PageSize      int
	SortBy        string
	SortOrder     string
}

// LoanStatus represents the lifecycle of a book loan.
type LoanStatus string

const (
	LoanStatusActive   LoanStatus = "ACTIVE"
	LoanStatusReturned LoanStatus = "RETURNED"
	LoanStatusOverdue  LoanStatus = "OVERDUE"
)

// BookLoan records one copy lent to a borrower.
type BookLoan struct {
	ID         string     `db:"id" json:"id"`
	BookID     string     `db:"book_id" json:"book_id"`
	BorrowerID string     `db:"borrower_id" json:"borrower_id"`
	LoanedAt   time.Time  `db:"loaned_at" json:"loaned_at"`
	DueAt      time.Time  `db:"due_at" json:"due_at"`
	ReturnedAt *time.Time `db:"returned_at" json:"returned_at,omitempty"`
	Status     LoanStatus `db:"status" json:"status"`
}

// BookLoanDetail enriches BookLoan with book and borrower info.
type BookLoanDetail struct {
	BookLoan
	BookTitle    string `db:"book_title" json:"book_title"`
	BorrowerName string `db:"borrower_name" json:"borrower_name"`
}

// BookLoanFilter defines filter criteria for listing loans.
type BookLoanFilter struct {
	CollegeID  string
	BookID     string
	BorrowerID string
	Status     LoanStatus
	Page       int
	PageSize   int
	SortBy     string
	SortOrder  string
}
