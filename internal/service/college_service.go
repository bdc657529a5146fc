package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type collegeRepository interface {
	List(ctx context.Context, filter models.CollegeFilter) ([]models.College, int, error)
	FindByID(ctx context.Context, id string) (*models.College, error)
	FindByCode(ctx context.Context, code string) (*models.College, error)
	Create(ctx context.Context, college *models.College) error
	Update(ctx context.Context, college *models.College) error
	Delete(ctx context.Context, id string) error
	ListLinks(ctx context.Context, collegeID string, status models.CollegeLinkStatus) ([]models.CollegeLink, error)
}

type collegeUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	UpdateCollegeLink(ctx context.Context, id string, collegeID *string, status models.CollegeLinkStatus) error
}

// CreateCollegeRequest is the payload for registering a college tenant.
type CreateCollegeRequest struct {
	Name    string `json:"name" validate:"required"`
	Code    string `json:"code" validate:"required,alphanum,min=3,max=12"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// UpdateCollegeRequest updates mutable college fields.
type UpdateCollegeRequest struct {
	Name    string `json:"name" validate:"omitempty,min=1"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Email   string `json:"email" validate:"omitempty,email"`
}

// CollegeService manages college tenants and membership links.
type CollegeService struct {
	repo      collegeRepository
	users     collegeUserRepository
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCollegeService constructs a CollegeService.
func NewCollegeService(repo collegeRepository, users collegeUserRepository, validate *validator.Validate, logger *zap.Logger) *CollegeService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollegeService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns colleges with pagination metadata.
func (s *CollegeService) List(ctx context.Context, filter models.CollegeFilter) ([]models.College, *models.Pagination, error) {
	colleges, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list colleges")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return colleges, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a college by ID.
func (s *CollegeService) Get(ctx context.Context, id string) (*models.College, error) {
	college, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	return college, nil
}

// Create registers a new college. The code must be unique; it doubles as the
// join code users enter when linking.
func (s *CollegeService) Create(ctx context.Context, actorID string, req CreateCollegeRequest) (*models.College, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid college payload")
	}

	code := strings.ToUpper(req.Code)
	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "college code already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check college code")
	}

	college := &models.College{
		Name:      req.Name,
		Code:      code,
		Address:   req.Address,
		Phone:     req.Phone,
		Email:     req.Email,
		CreatedBy: actorID,
	}
	if err := s.repo.Create(ctx, college); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create college")
	}

	// The creating admin is linked to their own tenant immediately.
	if err := s.users.UpdateCollegeLink(ctx, actorID, &college.ID, models.CollegeLinkApproved); err != nil {
		s.logger.Warn("failed to link creator to college", zap.Error(err))
	}
	return college, nil
}

// Update modifies college fields.
func (s *CollegeService) Update(ctx context.Context, id string, req UpdateCollegeRequest) (*models.College, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid college payload")
	}

	college, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}

	if req.Name != "" {
		college.Name = req.Name
	}
	if req.Address != "" {
		college.Address = req.Address
	}
	if req.Phone != "" {
		college.Phone = req.Phone
	}
	if req.Email != "" {
		college.Email = req.Email
	}

	if err := s.repo.Update(ctx, college); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update college")
	}
	return college, nil
}

// Delete removes a college tenant.
func (s *CollegeService) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.FindByID(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete college")
	}
	return nil
}

// RequestLink files a user's request to join a college by code. The link is
// left pending until an administrator of that college resolves it.
func (s *CollegeService) RequestLink(ctx context.Context, userID, code string) (*models.College, error) {
	college, err := s.repo.FindByCode(ctx, strings.ToUpper(code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "college not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load college")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.CollegeStatus == models.CollegeLinkApproved {
		return nil, appErrors.Clone(appErrors.ErrConflict, "user already linked to a college")
	}
	if user.CollegeStatus == models.CollegeLinkPending {
		return nil, appErrors.Clone(appErrors.ErrConflict, "link request already pending")
	}

	if err := s.users.UpdateCollegeLink(ctx, userID, &college.ID, models.CollegeLinkPending); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to request college link")
	}
	return college, nil
}

// ListLinks lists membership links for a college, optionally by status.
func (s *CollegeService) ListLinks(ctx context.Context, collegeID string, status models.CollegeLinkStatus) ([]models.CollegeLink, error) {
	links, err := s.repo.ListLinks(ctx, collegeID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list college links")
	}
	return links, nil
}

// ResolveLink approves or rejects a pending membership link. A rejection
// clears the college reference so the user can request another college.
func (s *CollegeService) ResolveLink(ctx context.Context, collegeID, userID string, approve bool) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	if user.CollegeID == nil || *user.CollegeID != collegeID {
		return appErrors.Clone(appErrors.ErrNotFound, "no link request for this college")
	}
	if user.CollegeStatus != models.CollegeLinkPending {
		return appErrors.Clone(appErrors.ErrInvalidState, "link request is not pending")
	}

	if approve {
		if err := s.users.UpdateCollegeLink(ctx, userID, &collegeID, models.CollegeLinkApproved); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to approve college link")
		}
		return nil
	}
	if err := s.users.UpdateCollegeLink(ctx, userID, nil, models.CollegeLinkRejected); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reject college link")
	}
	return nil
}
