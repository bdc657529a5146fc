package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-connect/campus-api/internal/models"
)

const exportColumns = `id, kind, format, college_id, status, file_path, error_detail, requested_by, created_at, completed_at`

// ExportRepository tracks asynchronous export jobs.
type ExportRepository struct {
	db *sqlx.DB
}

// NewExportRepository constructs the repository.
func NewExportRepository(db *sqlx.DB) *ExportRepository {
	return &ExportRepository{db: db}
}

// Create persists a new export job in the QUEUED state.
func (r *ExportRepository) Create(ctx context.Context, job *models.ExportJob) error {
	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	if job.Status == "" {
		job.Status = models.ExportJobQueued
	}
	const query = `INSERT INTO export_jobs (id, kind, format, college_id, status, file_path, error_detail, requested_by, created_at, completed_at)
        VALUES (:id, :kind, :format, :college_id, :status, :file_path, :error_detail, :requested_by, :created_at, :completed_at)`
	if _, err := r.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("create export job: %w", err)
	}
	return nil
}

// FindByID returns an export job by identifier.
func (r *ExportRepository) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE id = $1 LIMIT 1`, exportColumns)
	var job models.ExportJob
	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find export job by id: %w", err)
	}
	return &job, nil
}

// UpdateStatus records a job's progress. filePath and errorDetail may be nil
// depending on the outcome.
func (r *ExportRepository) UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorDetail *string) error {
	var completedAt *time.Time
	if status == models.ExportJobCompleted || status == models.ExportJobFailed {
		now := time.Now().UTC()
		completedAt = &now
	}
	const query = `UPDATE export_jobs SET status = $2, file_path = $3, error_detail = $4, completed_at = $5 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, status, filePath, errorDetail, completedAt); err != nil {
		return fmt.Errorf("update export job: %w", err)
	}
	return nil
}

// ListByRequester returns a requester's jobs, newest first.
func (r *ExportRepository) ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.ExportJob, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	query := fmt.Sprintf(`SELECT %s FROM export_jobs WHERE requested_by = $1 ORDER BY created_at DESC LIMIT %d`, exportColumns, limit)
	var jobs []models.ExportJob
	if err := r.db.SelectContext(ctx, &jobs, query, requestedBy); err != nil {
		return nil, fmt.Errorf("list export jobs: %w", err)
	}
	return jobs, nil
}
