package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-api/internal/models"
)

func TestBorrowDecrementsAndInserts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET available_copies = available_copies - 1")).
		WithArgs("bk1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO book_loans").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	loan := &models.BookLoan{BookID: "bk1", BorrowerID: "s1", DueAt: time.Now().Add(14 * 24 * time.Hour)}
	err := repo.Borrow(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusActive, loan.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBorrowFailsWhenNoCopies(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET available_copies = available_copies - 1")).
		WithArgs("bk1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Borrow(context.Background(), &models.BookLoan{BookID: "bk1", BorrowerID: "s1"})
	require.ErrorIs(t, err, ErrNoAvailableCopies)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReturnLoanRestoresCopy(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("UPDATE book_loans SET returned_at = $2, status = $3 WHERE id = $1")).
		WithArgs("ln1", sqlmock.AnyArg(), string(models.LoanStatusReturned)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("UPDATE books SET available_copies = available_copies + 1")).
		WithArgs("bk1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	loan := &models.BookLoan{ID: "ln1", BookID: "bk1", BorrowerID: "s1", Status: models.LoanStatusActive}
	err := repo.ReturnLoan(context.Background(), loan)
	require.NoError(t, err)
	assert.Equal(t, models.LoanStatusReturned, loan.Status)
	require.NotNil(t, loan.ReturnedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkOverdue(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewBookRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE book_loans SET status = 'OVERDUE' WHERE status = 'ACTIVE' AND due_at < $1")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 3))

	affected, err := repo.MarkOverdue(context.Background(), time.Now())
	require.NoError(t, err)
	assert.Equal(t, int64(3), affected)
	assert.NoError(t, mock.ExpectationsWereMet())
}
