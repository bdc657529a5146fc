package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-connect/campus-api/internal/models"
)

const bookColumns = `id, college_id, title, author, isbn, total_copies, available_copies, created_at, updated_at`

const loanColumns = `id, book_id, borrower_id, loaned_at, due_at, returned_at, status`

// ErrNoAvailableCopies is returned when a borrow races past the last copy.
var ErrNoAvailableCopies = fmt.Errorf("no available copies")

// BookRepository handles persistence of the book catalogue and loans.
type BookRepository struct {
	db *sqlx.DB
}

// NewBookRepository constructs the repository.
func NewBookRepository(db *sqlx.DB) *BookRepository {
	return &BookRepository{db: db}
}

// List returns books filtered by the provided criteria.
func (r *BookRepository) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	baseQuery := `FROM books WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CollegeID != "" {
		conditions = append(conditions, fmt.Sprintf("college_id = $%d", len(args)+1))
		args = append(args, filter.CollegeID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(author) LIKE $%d OR isbn = $%d)",
			len(args)+1, len(args)+1, len(args)+2))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", filter.Search)
	}
	if filter.AvailableOnly {
		conditions = append(conditions, "available_copies > 0")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"title": true, "author": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "title"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", bookColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var books []models.Book
	if err := r.db.SelectContext(ctx, &books, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list books: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count books: %w", err)
	}
	return books, total, nil
}

// FindByID returns a book by identifier.
func (r *BookRepository) FindByID(ctx context.Context, id string) (*models.Book, error) {
	query := fmt.Sprintf(`SELECT %s FROM books WHERE id = $1 LIMIT 1`, bookColumns)
	var book models.Book
	if err := r.db.GetContext(ctx, &book, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find book by id: %w", err)
	}
	return &book, nil
}

// Create persists a new book.
func (r *BookRepository) Create(ctx context.Context, book *models.Book) error {
	if book.ID == "" {
		book.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = now
	}
	book.UpdatedAt = now
	const query = `INSERT INTO books (id, college_id, title, author, isbn, total_copies, available_copies, created_at, updated_at)
        VALUES (:id, :college_id, :title, :author, :isbn, :total_copies, :available_copies, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("create book: %w", err)
	}
	return nil
}

// Update updates mutable fields of a book.
func (r *BookRepository) Update(ctx context.Context, book *models.Book) error {
	book.UpdatedAt = time.Now().UTC()
	const query = `UPDATE books SET title = :title, author = :author, isbn = :isbn, total_copies = :total_copies, available_copies = :available_copies, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, book); err != nil {
		return fmt.Errorf("update book: %w", err)
	}
	return nil
}

// Delete removes a book row.
func (r *BookRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM books WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete book: %w", err)
	}
	return nil
}

// Borrow creates a loan and decrements the available copy count in one
// transaction. The guarded UPDATE keeps the count from going negative under
// concurrent borrows; ErrNoAvailableCopies is returned when it does not match.
func (r *BookRepository) Borrow(ctx context.Context, loan *models.BookLoan) error {
	if loan.ID == "" {
		loan.ID = uuid.NewString()
	}
	if loan.LoanedAt.IsZero() {
		loan.LoanedAt = time.Now().UTC()
	}
	loan.Status = models.LoanStatusActive

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin borrow tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const decrementQuery = `UPDATE books SET available_copies = available_copies - 1, updated_at = $2
        WHERE id = $1 AND available_copies > 0`
	res, err := tx.ExecContext(ctx, decrementQuery, loan.BookID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("decrement available copies: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("decrement available copies: %w", err)
	}
	if affected == 0 {
		return ErrNoAvailableCopies
	}

	const insertQuery = `INSERT INTO book_loans (id, book_id, borrower_id, loaned_at, due_at, returned_at, status)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.ExecContext(ctx, insertQuery, loan.ID, loan.BookID, loan.BorrowerID, loan.LoanedAt, loan.DueAt, loan.ReturnedAt, loan.Status); err != nil {
		return fmt.Errorf("create loan: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit borrow tx: %w", err)
	}
	return nil
}

// ReturnLoan marks a loan returned and restores the copy in one transaction.
func (r *BookRepository) ReturnLoan(ctx context.Context, loan *models.BookLoan) error {
	now := time.Now().UTC()
	loan.ReturnedAt = &now
	loan.Status = models.LoanStatusReturned

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin return tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const updateQuery = `UPDATE book_loans SET returned_at = $2, status = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, updateQuery, loan.ID, loan.ReturnedAt, loan.Status); err != nil {
		return fmt.Errorf("mark loan returned: %w", err)
	}

	const incrementQuery = `UPDATE books SET available_copies = available_copies + 1, updated_at = $2 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, incrementQuery, loan.BookID, now); err != nil {
		return fmt.Errorf("restore available copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit return tx: %w", err)
	}
	return nil
}

// FindLoanByID returns a loan by identifier.
func (r *BookRepository) FindLoanByID(ctx context.Context, id string) (*models.BookLoan, error) {
	query := fmt.Sprintf(`SELECT %s FROM book_loans WHERE id = $1 LIMIT 1`, loanColumns)
	var loan models.BookLoan
	if err := r.db.GetContext(ctx, &loan, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find loan by id: %w", err)
	}
	return &loan, nil
}

// ListLoans returns loans with book and borrower info.
func (r *BookRepository) ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, int, error) {
	baseQuery := `FROM book_loans l
        JOIN books b ON b.id = l.book_id
        JOIN users u ON u.id = l.borrower_id
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CollegeID != "" {
		conditions = append(conditions, fmt.Sprintf("b.college_id = $%d", len(args)+1))
		args = append(args, filter.CollegeID)
	}
	if filter.BookID != "" {
		conditions = append(conditions, fmt.Sprintf("l.book_id = $%d", len(args)+1))
		args = append(args, filter.BookID)
	}
	if filter.BorrowerID != "" {
		conditions = append(conditions, fmt.Sprintf("l.borrower_id = $%d", len(args)+1))
		args = append(args, filter.BorrowerID)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("l.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{"loaned_at": "l.loaned_at", "due_at": "l.due_at"}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "l.loaned_at"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
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

	selectColumns := `l.id, l.book_id, l.borrower_id, l.loaned_at, l.due_at, l.returned_at, l.status,
        b.title AS book_title, u.full_name AS borrower_name`
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d",
		selectColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var loans []models.BookLoanDetail
	if err := r.db.SelectContext(ctx, &loans, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list loans: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count loans: %w", err)
	}
	return loans, total, nil
}

// FindActiveLoan returns the open loan of a borrower for a book, if any.
func (r *BookRepository) FindActiveLoan(ctx context.Context, bookID, borrowerID string) (*models.BookLoan, error) {
	query := fmt.Sprintf(`SELECT %s FROM book_loans WHERE book_id = $1 AND borrower_id = $2 AND status IN ('ACTIVE', 'OVERDUE') LIMIT 1`, loanColumns)
	var loan models.BookLoan
	if err := r.db.GetContext(ctx, &loan, query, bookID, borrowerID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active loan: %w", err)
	}
	return &loan, nil
}

// CountActiveLoansByBorrower counts a borrower's open loans.
func (r *BookRepository) CountActiveLoansByBorrower(ctx context.Context, borrowerID string) (int, error) {
	const query = `SELECT COUNT(*) FROM book_loans WHERE borrower_id = $1 AND status IN ('ACTIVE', 'OVERDUE')`
	var total int
	if err := r.db.GetContext(ctx, &total, query, borrowerID); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return total, nil
}

// CountActiveLoansByCollege counts open loans across a college's catalogue.
func (r *BookRepository) CountActiveLoansByCollege(ctx context.Context, collegeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM book_loans l
        JOIN books b ON b.id = l.book_id
        WHERE b.college_id = $1 AND l.status IN ('ACTIVE', 'OVERDUE')`
	var total int
	if err := r.db.GetContext(ctx, &total, query, collegeID); err != nil {
		return 0, fmt.Errorf("count active loans: %w", err)
	}
	return total, nil
}

// MarkOverdue flips ACTIVE loans past their due date to OVERDUE and returns
// how many rows changed.
func (r *BookRepository) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	const query = `UPDATE book_loans SET status = 'OVERDUE' WHERE status = 'ACTIVE' AND due_at < $1`
	res, err := r.db.ExecContext(ctx, query, asOf)
	if err != nil {
		return 0, fmt.Errorf("mark overdue loans: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("mark overdue loans: %w", err)
	}
	return affected, nil
}
