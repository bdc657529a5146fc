package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type announcementRepository interface {
	List(ctx context.Context, filter models.AnnouncementFilter) ([]models.Announcement, int, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, announcement *models.Announcement) error
	Update(ctx context.Context, announcement *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// CreateAnnouncementRequest is the payload for publishing an announcement.
type CreateAnnouncementRequest struct {
	Title         string                      `json:"title" validate:"required"`
	Content       string                      `json:"content" validate:"required"`
	Audience      models.AnnouncementAudience `json:"audience" validate:"required"`
	TargetClassID *string                     `json:"target_class_id"`
	Priority      models.AnnouncementPriority `json:"priority"`
	IsPinned      bool                        `json:"is_pinned"`
	ExpiresAt     *time.Time                  `json:"expires_at"`
}

// UpdateAnnouncementRequest updates a published announcement.
type UpdateAnnouncementRequest struct {
	Title     string                      `json:"title" validate:"omitempty,min=1"`
	Content   string                      `json:"content" validate:"omitempty,min=1"`
	Priority  models.AnnouncementPriority `json:"priority"`
	IsPinned  *bool                       `json:"is_pinned"`
	ExpiresAt *time.Time                  `json:"expires_at"`
}

// AnnouncementService manages college announcements.
type AnnouncementService struct {
	repo      announcementRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs an AnnouncementService.
func NewAnnouncementService(repo announcementRepository, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, validator: validate, logger: logger}
}

// ListForReader returns announcements visible to the actor. Students see ALL,
// STUDENTS and their class's CLASS announcements; faculty see ALL and
// FACULTY; admins and HODs see everything.
func (s *AnnouncementService) ListForReader(ctx context.Context, actor *models.JWTClaims, classIDs []string, page, pageSize int) ([]models.Announcement, *models.Pagination, error) {
	if actor.CollegeID == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not linked to a college")
	}

	filter := models.AnnouncementFilter{
		CollegeID: *actor.CollegeID,
		Page:      page,
		PageSize:  pageSize,
	}
	switch actor.Role {
	case models.RoleStudent:
		filter.Audiences = []models.AnnouncementAudience{models.AnnouncementAudienceAll, models.AnnouncementAudienceStudents}
		filter.ClassIDs = classIDs
	case models.RoleFaculty, models.RoleLibrarian:
		filter.Audiences = []models.AnnouncementAudience{models.AnnouncementAudienceAll, models.AnnouncementAudienceFaculty}
	default:
		// Admins and HODs get the unfiltered list.
	}

	announcements, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	return announcements, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns an announcement by ID.
func (s *AnnouncementService) Get(ctx context.Context, id string) (*models.Announcement, error) {
	announcement, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	return announcement, nil
}

// Create publishes an announcement to the actor's college.
func (s *AnnouncementService) Create(ctx context.Context, actor *models.JWTClaims, req CreateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	if actor.CollegeID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not linked to a college")
	}
	if req.Audience == models.AnnouncementAudienceClass && req.TargetClassID == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "class announcements require a target class")
	}

	priority := req.Priority
	if priority == "" {
		priority = models.AnnouncementPriorityNormal
	}

	announcement := &models.Announcement{
		CollegeID:     *actor.CollegeID,
		Title:         req.Title,
		Content:       req.Content,
		Audience:      req.Audience,
		TargetClassID: req.TargetClassID,
		Priority:      priority,
		IsPinned:      req.IsPinned,
		ExpiresAt:     req.ExpiresAt,
		CreatedBy:     actor.UserID,
	}
	if err := s.repo.Create(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	return announcement, nil
}

// Update modifies an announcement. Only the author or an admin may edit it.
func (s *AnnouncementService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateAnnouncementRequest) (*models.Announcement, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}

	announcement, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if announcement.CreatedBy != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to edit this announcement")
	}

	if req.Title != "" {
		announcement.Title = req.Title
	}
	if req.Content != "" {
		announcement.Content = req.Content
	}
	if req.Priority != "" {
		announcement.Priority = req.Priority
	}
	if req.IsPinned != nil {
		announcement.IsPinned = *req.IsPinned
	}
	if req.ExpiresAt != nil {
		announcement.ExpiresAt = req.ExpiresAt
	}

	if err := s.repo.Update(ctx, announcement); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	return announcement, nil
}

// Delete removes an announcement. Only the author or an admin may delete it.
func (s *AnnouncementService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	announcement, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if announcement.CreatedBy != actor.UserID && actor.Role != models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to delete this announcement")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	return nil
}
