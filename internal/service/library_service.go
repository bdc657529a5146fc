package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	"github.com/campus-connect/campus-api/internal/repository"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type bookRepository interface {
	List(ctx context.Context, filter models.BookFilter) ([]models.Book, int, error)
	FindByID(ctx context.Context, id string) (*models.Book, error)
	Create(ctx context.Context, book *models.Book) error
	Update(ctx context.Context, book *models.Book) error
	Delete(ctx context.Context, id string) error
	Borrow(ctx context.Context, loan *models.BookLoan) error
	ReturnLoan(ctx context.Context, loan *models.BookLoan) error
	FindLoanByID(ctx context.Context, id string) (*models.BookLoan, error)
	ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, int, error)
	FindActiveLoan(ctx context.Context, bookID, borrowerID string) (*models.BookLoan, error)
	CountActiveLoansByBorrower(ctx context.Context, borrowerID string) (int, error)
	MarkOverdue(ctx context.Context, asOf time.Time) (int64, error)
}

// CreateBookRequest is the payload for cataloguing a book.
type CreateBookRequest struct {
	Title       string `json:"title" validate:"required"`
	Author      string `json:"author" validate:"required"`
	ISBN        string `json:"isbn" validate:"required"`
	TotalCopies int    `json:"total_copies" validate:"required,min=1"`
}

// UpdateBookRequest updates mutable catalogue fields.
type UpdateBookRequest struct {
	Title  string `json:"title" validate:"omitempty,min=1"`
	Author string `json:"author" validate:"omitempty,min=1"`
	ISBN   string `json:"isbn"`
}

// BorrowRequest is the payload for lending a copy.
type BorrowRequest struct {
	BookID     string `json:"book_id" validate:"required"`
	BorrowerID string `json:"borrower_id" validate:"required"`
}

// LibraryPolicy tunes lending rules.
type LibraryPolicy struct {
	LoanPeriod     time.Duration
	MaxActiveLoans int
}

// LibraryService manages the book catalogue and the lending desk.
type LibraryService struct {
	repo      bookRepository
	policy    LibraryPolicy
	validator *validator.Validate
	logger    *zap.Logger
}

// NewLibraryService constructs a LibraryService.
func NewLibraryService(repo bookRepository, policy LibraryPolicy, validate *validator.Validate, logger *zap.Logger) *LibraryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if policy.LoanPeriod <= 0 {
		policy.LoanPeriod = 14 * 24 * time.Hour
	}
	if policy.MaxActiveLoans <= 0 {
		policy.MaxActiveLoans = 5
	}
	return &LibraryService{repo: repo, policy: policy, validator: validate, logger: logger}
}

// ListBooks returns catalogue entries with pagination metadata.
func (s *LibraryService) ListBooks(ctx context.Context, filter models.BookFilter) ([]models.Book, *models.Pagination, error) {
	books, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list books")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return books, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// GetBook returns a book by ID.
func (s *LibraryService) GetBook(ctx context.Context, id string) (*models.Book, error) {
	book, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "book not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load book")
	}
	return book, nil
}

// CreateBook adds a title to the college's catalogue. All copies start
// available.
func (s *LibraryService) CreateBook(ctx context.Context, actor *models.JWTClaims, req CreateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}
	if actor.CollegeID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not linked to a college")
	}

	book := &models.Book{
		CollegeID:       *actor.CollegeID,
		Title:           req.Title,
		Author:          req.Author,
		ISBN:            req.ISBN,
		TotalCopies:     req.TotalCopies,
		AvailableCopies: req.TotalCopies,
	}
	if err := s.repo.Create(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create book")
	}
	return book, nil
}

// UpdateBook modifies catalogue fields of a book.
func (s *LibraryService) UpdateBook(ctx context.Context, id string, req UpdateBookRequest) (*models.Book, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid book payload")
	}

	book, err := s.GetBook(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Title != "" {
		book.Title = req.Title
	}
	if req.Author != "" {
		book.Author = req.Author
	}
	if req.ISBN != "" {
		book.ISBN = req.ISBN
	}
	if err := s.repo.Update(ctx, book); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update book")
	}
	return book, nil
}

// DeleteBook removes a title unless copies are currently lent out.
func (s *LibraryService) DeleteBook(ctx context.Context, id string) error {
	book, err := s.GetBook(ctx, id)
	if err != nil {
		return err
	}
	if book.AvailableCopies < book.TotalCopies {
		return appErrors.Clone(appErrors.ErrConflict, "book has copies on loan")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete book")
	}
	return nil
}

// Borrow lends a copy to a borrower. A borrower cannot hold two copies of
// the same title or exceed the active-loan cap, and the copy decrement is
// guarded so the last copy cannot be lent twice.
func (s *LibraryService) Borrow(ctx context.Context, req BorrowRequest) (*models.BookLoan, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid borrow payload")
	}

	book, err := s.GetBook(ctx, req.BookID)
	if err != nil {
		return nil, err
	}
	if book.AvailableCopies <= 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "no copies available")
	}

	if _, err := s.repo.FindActiveLoan(ctx, req.BookID, req.BorrowerID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "borrower already holds a copy of this book")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check active loan")
	}

	active, err := s.repo.CountActiveLoansByBorrower(ctx, req.BorrowerID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count active loans")
	}
	if active >= s.policy.MaxActiveLoans {
		return nil, appErrors.Clone(appErrors.ErrConflict, "borrower reached the active loan limit")
	}

	now := time.Now().UTC()
	loan := &models.BookLoan{
		BookID:     req.BookID,
		BorrowerID: req.BorrowerID,
		LoanedAt:   now,
		DueAt:      now.Add(s.policy.LoanPeriod),
	}
	if err := s.repo.Borrow(ctx, loan); err != nil {
		if errors.Is(err, repository.ErrNoAvailableCopies) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "no copies available")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create loan")
	}
	return loan, nil
}

// Return closes an open loan and restores the copy.
func (s *LibraryService) Return(ctx context.Context, loanID string) (*models.BookLoan, error) {
	loan, err := s.repo.FindLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "loan not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load loan")
	}
	if loan.Status == models.LoanStatusReturned {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "loan is already returned")
	}

	if err := s.repo.ReturnLoan(ctx, loan); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to return loan")
	}
	return loan, nil
}

// ListLoans returns loans with pagination metadata.
func (s *LibraryService) ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, *models.Pagination, error) {
	loans, total, err := s.repo.ListLoans(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list loans")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return loans, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// FlagOverdue sweeps ACTIVE loans past their due date.
func (s *LibraryService) FlagOverdue(ctx context.Context) (int64, error) {
	affected, err := s.repo.MarkOverdue(ctx, time.Now().UTC())
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag overdue loans")
	}
	if affected > 0 {
		s.logger.Info("flagged overdue loans", zap.Int64("count", affected))
	}
	return affected, nil
}
