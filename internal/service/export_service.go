package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
	"github.com/campus-connect/campus-api/pkg/export"
	"github.com/campus-connect/campus-api/pkg/jobs"
	"github.com/campus-connect/campus-api/pkg/storage"
)

type exportJobRepository interface {
	Create(ctx context.Context, job *models.ExportJob) error
	FindByID(ctx context.Context, id string) (*models.ExportJob, error)
	UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorDetail *string) error
	ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.ExportJob, error)
}

type exportLoanLister interface {
	ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, int, error)
}

type exportAttendanceLister interface {
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
}

type exportBookingLister interface {
	List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, int, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportOptions tunes export behaviour.
type ExportOptions struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportRequest asks for a dataset export.
type ExportRequest struct {
	Kind   models.ExportKind   `json:"kind" validate:"required"`
	Format models.ExportFormat `json:"format" validate:"required"`
}

// ExportDownload carries a signed download location for a completed job.
type ExportDownload struct {
	Token     string    `json:"token"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ExportService renders loan, attendance and booking datasets to CSV or PDF
// files via a background worker queue.
type ExportService struct {
	repo       exportJobRepository
	loans      exportLoanLister
	attendance exportAttendanceLister
	bookings   exportBookingLister
	storage    exportFileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	queue      *jobs.Queue
	logger     *zap.Logger
	opts       ExportOptions
}

// NewExportService constructs an ExportService. The caller wires the queue
// afterwards via Handle so the queue's handler can close over the service.
func NewExportService(repo exportJobRepository, loans exportLoanLister, attendance exportAttendanceLister, bookings exportBookingLister, store exportFileStorage, signer *storage.SignedURLSigner, opts ExportOptions, logger *zap.Logger) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.ResultTTL <= 0 {
		opts.ResultTTL = 24 * time.Hour
	}
	return &ExportService{
		repo:       repo,
		loans:      loans,
		attendance: attendance,
		bookings:   bookings,
		storage:    store,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		signer:     signer,
		logger:     logger,
		opts:       opts,
	}
}

// AttachQueue registers the worker queue used for asynchronous generation.
func (s *ExportService) AttachQueue(queue *jobs.Queue) {
	s.queue = queue
}

// Handle is the job queue handler. The job ref is the export job ID.
func (s *ExportService) Handle(ctx context.Context, job jobs.Job) error {
	if job.Ref == "" {
		return fmt.Errorf("export job %s carries no record reference", job.ID)
	}
	return s.process(ctx, job.Ref)
}

// Request queues an export job for the actor's college.
func (s *ExportService) Request(ctx context.Context, actor *models.JWTClaims, req ExportRequest) (*models.ExportJob, error) {
	if !req.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export kind")
	}
	if !req.Format.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported export format")
	}
	if actor.CollegeID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not linked to a college")
	}

	job := &models.ExportJob{
		Kind:        req.Kind,
		Format:      req.Format,
		CollegeID:   *actor.CollegeID,
		Status:      models.ExportJobQueued,
		RequestedBy: actor.UserID,
	}
	if err := s.repo.Create(ctx, job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to queue export")
	}

	if s.queue != nil {
		if err := s.queue.Enqueue(jobs.Job{ID: job.ID, Type: "export", Ref: job.ID}); err != nil {
			detail := err.Error()
			if uerr := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobFailed, nil, &detail); uerr != nil {
				s.logger.Warn("failed to mark export job failed", zap.Error(uerr))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "export queue is full")
		}
	}
	return job, nil
}

// Get returns an export job, restricted to the requester or an admin.
func (s *ExportService) Get(ctx context.Context, actor *models.JWTClaims, id string) (*models.ExportJob, error) {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "export job not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load export job")
	}
	if job.RequestedBy != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view this export")
	}
	return job, nil
}

// ListMine returns the actor's recent export jobs.
func (s *ExportService) ListMine(ctx context.Context, actor *models.JWTClaims, limit int) ([]models.ExportJob, error) {
	exportJobs, err := s.repo.ListByRequester(ctx, actor.UserID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list export jobs")
	}
	return exportJobs, nil
}

// Download issues a signed token for a completed job's file.
func (s *ExportService) Download(ctx context.Context, actor *models.JWTClaims, id string) (*ExportDownload, error) {
	job, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if job.Status != models.ExportJobCompleted || job.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "export is not ready for download")
	}

	token, expiresAt, err := s.signer.Generate(job.ID, *job.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}

	prefix := strings.TrimRight(s.opts.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	return &ExportDownload{
		Token:     token,
		URL:       fmt.Sprintf("%s/exports/download/%s", prefix, token),
		ExpiresAt: expiresAt,
	}, nil
}

// OpenByToken validates a download token and opens the file behind it.
func (s *ExportService) OpenByToken(token string) (*os.File, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	f, err := s.storage.Open(relPath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "export file not found")
	}
	return f, nil
}

func (s *ExportService) process(ctx context.Context, id string) error {
	job, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("load export job %s: %w", id, err)
	}
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobProcessing, nil, nil); err != nil {
		return fmt.Errorf("mark export processing: %w", err)
	}

	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	var payload []byte
	switch job.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Format)
	}
	if err != nil {
		return s.fail(ctx, job, err)
	}

	ext := "csv"
	if job.Format == models.ExportFormatPDF {
		ext = "pdf"
	}
	filename := fmt.Sprintf("%s-%s-%s.%s", strings.ToLower(string(job.Kind)), job.CollegeID, job.ID, ext)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return s.fail(ctx, job, err)
	}

	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobCompleted, &relPath, nil); err != nil {
		return fmt.Errorf("mark export completed: %w", err)
	}
	s.logger.Info("export completed", zap.String("job_id", job.ID), zap.String("path", relPath))
	return nil
}

func (s *ExportService) fail(ctx context.Context, job *models.ExportJob, cause error) error {
	detail := cause.Error()
	if err := s.repo.UpdateStatus(ctx, job.ID, models.ExportJobFailed, nil, &detail); err != nil {
		s.logger.Warn("failed to mark export job failed", zap.Error(err))
	}
	return cause
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Kind {
	case models.ExportKindLoans:
		loans, _, err := s.loans.ListLoans(ctx, models.BookLoanFilter{CollegeID: job.CollegeID, PageSize: 100})
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows := make([]map[string]string, 0, len(loans))
		for _, l := range loans {
			returned := ""
			if l.ReturnedAt != nil {
				returned = l.ReturnedAt.Format(time.RFC3339)
			}
			rows = append(rows, map[string]string{
				"book":     l.BookTitle,
				"borrower": l.BorrowerName,
				"loaned":   l.LoanedAt.Format(time.RFC3339),
				"due":      l.DueAt.Format(time.RFC3339),
				"returned": returned,
				"status":   string(l.Status),
			})
		}
		return export.Dataset{Headers: []string{"book", "borrower", "loaned", "due", "returned", "status"}, Rows: rows}, "Library Loans", nil

	case models.ExportKindAttendance:
		records, _, err := s.attendance.List(ctx, models.AttendanceFilter{CollegeID: job.CollegeID, PageSize: 200})
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows := make([]map[string]string, 0, len(records))
		for _, r := range records {
			rows = append(rows, map[string]string{
				"class":   r.ClassID,
				"student": r.StudentName,
				"date":    r.Date.Format("2006-01-02"),
				"status":  string(r.Status),
			})
		}
		return export.Dataset{Headers: []string{"class", "student", "date", "status"}, Rows: rows}, "Attendance", nil

	case models.ExportKindBookings:
		bookings, _, err := s.bookings.List(ctx, models.RoomBookingFilter{CollegeID: job.CollegeID, PageSize: 100})
		if err != nil {
			return export.Dataset{}, "", err
		}
		rows := make([]map[string]string, 0, len(bookings))
		for _, b := range bookings {
			rows = append(rows, map[string]string{
				"room":      b.RoomName,
				"date":      b.BookingDate.Format("2006-01-02"),
				"slot":      b.StartTime + "-" + b.EndTime,
				"purpose":   b.Purpose,
				"status":    string(b.Status),
				"requester": b.RequesterName,
			})
		}
		return export.Dataset{Headers: []string{"room", "date", "slot", "purpose", "status", "requester"}, Rows: rows}, "Room Bookings", nil
	}
	return export.Dataset{}, "", fmt.Errorf("unsupported export kind %s", job.Kind)
}
