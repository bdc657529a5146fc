package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	"github.com/campus-connect/campus-api/internal/repository"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type mockBookRepo struct {
	books  map[string]models.Book
	loans  map[string]models.BookLoan
	nextID int
}

func (m *mockBookRepo) List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error) {
	return nil, 0, nil
}

func (m *mockBookRepo) FindByID(ctx context.Context, id string) (*models.Book, error) {
	if b, ok := m.books[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) Create(ctx context.Context, book *models.Book) error {
	if m.books == nil {
		m.books = make(map[string]models.Book)
	}
	if book.ID == "" {
		book.ID = "new-book"
	}
	m.books[book.ID] = *book
	return nil
}

func (m *mockBookRepo) Update(ctx context.Context, book *models.Book) error {
	m.books[book.ID] = *book
	return nil
}

func (m *mockBookRepo) Delete(ctx context.Context, id string) error {
	delete(m.books, id)
	return nil
}

func (m *mockBookRepo) Borrow(ctx context.Context, loan *models.BookLoan) error {
	book, ok := m.books[loan.BookID]
	if !ok || book.AvailableCopies <= 0 {
		return repository.ErrNoAvailableCopies
	}
	book.AvailableCopies--
	m.books[loan.BookID] = book

	if m.loans == nil {
		m.loans = make(map[string]models.BookLoan)
	}
	m.nextID++
	loan.ID = fmt.Sprintf("loan%d", m.nextID)
	loan.Status = models.LoanStatusActive
	m.loans[loan.ID] = *loan
	return nil
}

func (m *mockBookRepo) ReturnLoan(ctx context.Context, loan *models.BookLoan) error {
	now := time.Now().UTC()
	loan.Status = models.LoanStatusReturned
	loan.ReturnedAt = &now
	m.loans[loan.ID] = *loan

	book := m.books[loan.BookID]
	book.AvailableCopies++
	m.books[loan.BookID] = book
	return nil
}

func (m *mockBookRepo) FindLoanByID(ctx context.Context, id string) (*models.BookLoan, error) {
	if l, ok := m.loans[id]; ok {
		return &l, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, int, error) {
	return nil, 0, nil
}

func (m *mockBookRepo) FindActiveLoan(ctx context.Context, bookID, borrowerID string) (*models.BookLoan, error) {
	for _, l := range m.loans {
		if l.BookID == bookID && l.BorrowerID == borrowerID && l.Status != models.LoanStatusReturned {
			return &l, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookRepo) CountActiveLoansByBorrower(ctx context.Context, borrowerID string) (int, error) {
	count := 0
	for _, l := range m.loans {
		if l.BorrowerID == borrowerID && l.Status != models.LoanStatusReturned {
			count++
		}
	}
	return count, nil
}

func (m *mockBookRepo) MarkOverdue(ctx context.Context, asOf time.Time) (int64, error) {
	var affected int64
	for id, l := range m.loans {
		if l.Status == models.LoanStatusActive && l.DueAt.Before(asOf) {
			l.Status = models.LoanStatusOverdue
			m.loans[id] = l
			affected++
		}
	}
	return affected, nil
}

func newLibraryFixture(copies int) (*mockBookRepo, *LibraryService) {
	repo := &mockBookRepo{books: map[string]models.Book{
		"bk1": {ID: "bk1", CollegeID: "col1", Title: "SICP", Author: "Abelson", ISBN: "0262510871", TotalCopies: copies, AvailableCopies: copies},
	}}
	return repo, NewLibraryService(repo, LibraryPolicy{MaxActiveLoans: 2}, validator.New(), zap.NewNop())
}

func TestBorrowAndReturn(t *testing.T) {
	repo, svc := newLibraryFixture(2)

	loan, err := svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.Equal(t, 1, repo.books["bk1"].AvailableCopies)
	assert.True(t, loan.DueAt.After(loan.LoanedAt))

	returned, err := svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, returned.Status)
	assert.Equal(t, 2, repo.books["bk1"].AvailableCopies)

	// Returning the same loan again is rejected.
	_, err = svc.Return(context.Background(), loan.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestBorrowLastCopy(t *testing.T) {
	repo, svc := newLibraryFixture(1)

	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.NoError(t, err)
	assert.Equal(t, 0, repo.books["bk1"].AvailableCopies)

	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu2"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestBorrowDuplicateTitle(t *testing.T) {
	_, svc := newLibraryFixture(3)

	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.NoError(t, err)

	// A borrower cannot hold two copies of the same title.
	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestBorrowActiveLoanCap(t *testing.T) {
	repo, svc := newLibraryFixture(1)
	repo.books["bk2"] = models.Book{ID: "bk2", CollegeID: "col1", Title: "TAPL", TotalCopies: 1, AvailableCopies: 1}
	repo.books["bk3"] = models.Book{ID: "bk3", CollegeID: "col1", Title: "PLFA", TotalCopies: 1, AvailableCopies: 1}

	_, err := svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.NoError(t, err)
	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: "bk2", BorrowerID: "stu1"})
	require.NoError(t, err)

	// The policy caps active loans at two.
	_, err = svc.Borrow(context.Background(), BorrowRequest{BookID: "bk3", BorrowerID: "stu1"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestDeleteBookWithLoans(t *testing.T) {
	_, svc := newLibraryFixture(1)

	loan, err := svc.Borrow(context.Background(), BorrowRequest{BookID: "bk1", BorrowerID: "stu1"})
	require.NoError(t, err)

	err = svc.DeleteBook(context.Background(), "bk1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	_, err = svc.Return(context.Background(), loan.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteBook(context.Background(), "bk1"))
}

func TestFlagOverdue(t *testing.T) {
	repo, svc := newLibraryFixture(2)

	past := time.Now().UTC().Add(-48 * time.Hour)
	repo.loans = map[string]models.BookLoan{
		"loan1": {ID: "loan1", BookID: "bk1", BorrowerID: "stu1", DueAt: past, Status: models.LoanStatusActive},
	}

	affected, err := svc.FlagOverdue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)
	assert.Equal(t, models.LoanStatusOverdue, repo.loans["loan1"].Status)
}
