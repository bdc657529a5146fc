package models

import "time"

// ExportKind identifies the dataset being exported.
type ExportKind string

const (
	ExportKindLoans      ExportKind = "LOANS"
	ExportKindAttendance ExportKind = "ATTENDANCE"
	ExportKindBookings   ExportKind = "BOOKINGS"
)

// Valid reports whether the export kind is supported.
func (k ExportKind) Valid() bool {
	switch k {
	case ExportKindLoans, ExportKindAttendance, ExportKindBookings:
		return true
	default:
		return false
	}
}

// ExportFormat identifies the output encoding.
type ExportFormat string

const (
	ExportFormatCSV ExportFormat = "CSV"
	ExportFormatPDF ExportFormat = "PDF"
)

// Valid reports whether the format is supported.
func (f ExportFormat) Valid() bool {
	return f == ExportFormatCSV || f == ExportFormatPDF
}

// ExportJobStatus tracks an async export through its lifecycle.
type ExportJobStatus string

const (
	ExportJobQueued     ExportJobStatus = "QUEUED"
	ExportJobProcessing ExportJobStatus = "PROCESSING"
	ExportJobCompleted  ExportJobStatus = "COMPLETED"
	ExportJobFailed     ExportJobStatus = "FAILED"
)

// ExportJob is a persisted asynchronous export request.
type ExportJob struct {
	ID          string          `db:"id" json:"id"`
	Kind        ExportKind      `db:"kind" json:"kind"`
	Format      ExportFormat    `db:"format" json:"format"`
	CollegeID   string          `db:"college_id" json:"college_id"`
	Status      ExportJobStatus `db:"status" json:"status"`
	FilePath    *string         `db:"file_path" json:"file_path,omitempty"`
	ErrorDetail *string         `db:"error_detail" json:"error_detail,omitempty"`
	RequestedBy string          `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	CompletedAt *time.Time      `db:"completed_at" json:"completed_at,omitempty"`
}
