package service

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type attendanceRepository interface {
	BulkUpsert(ctx context.Context, records []models.AttendanceRecord) error
	List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error)
	Summary(ctx context.Context, classID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error)
}

type attendanceClassReader interface {
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindMember(ctx context.Context, classID, studentID string) (*models.ClassMember, error)
	IsAssignedFaculty(ctx context.Context, classID, facultyID string) (bool, error)
}

// MarkAttendanceEntry is one student's status for the day.
type MarkAttendanceEntry struct {
	StudentID string                  `json:"student_id" validate:"required"`
	Status    models.AttendanceStatus `json:"status" validate:"required"`
}

// MarkAttendanceRequest records a class roster for a single date.
type MarkAttendanceRequest struct {
	Date    string                `json:"date" validate:"required"`
	Entries []MarkAttendanceEntry `json:"entries" validate:"required,min=1,dive"`
}

// AttendanceService records and reports daily attendance.
type AttendanceService struct {
	repo      attendanceRepository
	classes   attendanceClassReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAttendanceService constructs an AttendanceService.
func NewAttendanceService(repo attendanceRepository, classes attendanceClassReader, validate *validator.Validate, logger *zap.Logger) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AttendanceService{repo: repo, classes: classes, validator: validate, logger: logger}
}

// Mark upserts attendance for a class on one date. Marking the same date
// again overwrites the earlier statuses. The marker must be the class
// teacher, an assigned faculty member, a HOD or an admin.
func (s *AttendanceService) Mark(ctx context.Context, actor *models.JWTClaims, classID string, req MarkAttendanceRequest) (int, error) {
	if err := s.validator.Struct(req); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid attendance payload")
	}

	date, err := time.Parse("2006-01-02", req.Date)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrValidation, "date must be YYYY-MM-DD")
	}

	class, err := s.classes.FindByID(ctx, classID)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrNotFound, "class not found")
	}

	allowed, err := s.canMark(ctx, actor, class)
	if err != nil {
		return 0, err
	}
	if !allowed {
		return 0, appErrors.Clone(appErrors.ErrForbidden, "not allowed to mark attendance for this class")
	}

	records := make([]models.AttendanceRecord, 0, len(req.Entries))
	for _, entry := range req.Entries {
		if !entry.Status.Valid() {
			return 0, appErrors.Clone(appErrors.ErrValidation, "unsupported attendance status")
		}
		records = append(records, models.AttendanceRecord{
			ClassID:   classID,
			StudentID: entry.StudentID,
			Date:      date,
			Status:    entry.Status,
			MarkedBy:  actor.UserID,
		})
	}

	if err := s.repo.BulkUpsert(ctx, records); err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record attendance")
	}
	return len(records), nil
}

// List returns attendance records with pagination metadata. Students only see
// their own rows.
func (s *AttendanceService) List(ctx context.Context, actor *models.JWTClaims, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, *models.Pagination, error) {
	if actor.Role == models.RoleStudent {
		filter.StudentID = actor.UserID
	}

	records, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list attendance")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 50
	}
	return records, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Summary aggregates a student's attendance within a class.
func (s *AttendanceService) Summary(ctx context.Context, actor *models.JWTClaims, classID, studentID string, from, to *time.Time) (*models.AttendanceSummary, error) {
	if actor.Role == models.RoleStudent && actor.UserID != studentID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students can only view their own summary")
	}

	if _, err := s.classes.FindMember(ctx, classID, studentID); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "student is not a member of this class")
	}

	summary, err := s.repo.Summary(ctx, classID, studentID, from, to)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build attendance summary")
	}
	return summary, nil
}

func (s *AttendanceService) canMark(ctx context.Context, actor *models.JWTClaims, class *models.Class) (bool, error) {
	switch actor.Role {
	case models.RoleAdmin, models.RoleHOD:
		return actor.CollegeID != nil && *actor.CollegeID == class.CollegeID, nil
	case models.RoleFaculty:
		if class.TeacherID == actor.UserID {
			return true, nil
		}
		assigned, err := s.classes.IsAssignedFaculty(ctx, class.ID, actor.UserID)
		if err != nil {
			return false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check faculty assignment")
		}
		return assigned, nil
	default:
		return false, nil
	}
}
