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

type classRepository interface {
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error)
	FindByID(ctx context.Context, id string) (*models.Class, error)
	FindByCode(ctx context.Context, code string) (*models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	Delete(ctx context.Context, id string) error
	FindJoinRequest(ctx context.Context, classID, studentID string) (*models.JoinRequest, error)
	ListJoinRequests(ctx context.Context, classID string) ([]models.JoinRequest, error)
	FindMember(ctx context.Context, classID, studentID string) (*models.ClassMember, error)
	ListMembers(ctx context.Context, classID string, status models.MembershipStatus) ([]models.ClassMemberDetail, error)
	CreateJoinRequest(ctx context.Context, req *models.JoinRequest) error
	ResolveJoinRequest(ctx context.Context, classID, studentID string, status models.MembershipStatus, decidedBy string) (*models.ClassMember, error)
	ListFacultyAssignments(ctx context.Context, classID string) ([]models.FacultyAssignment, error)
	FindFacultyAssignment(ctx context.Context, id string) (*models.FacultyAssignment, error)
	ExistsFacultyAssignment(ctx context.Context, classID, facultyID, subject string) (bool, error)
	IsAssignedFaculty(ctx context.Context, classID, facultyID string) (bool, error)
	CreateFacultyAssignment(ctx context.Context, assignment *models.FacultyAssignment) error
	DeleteFacultyAssignment(ctx context.Context, id string) error
	ListClassIDsForStudent(ctx context.Context, studentID string) ([]string, error)
}

type classUserReader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// CreateClassRequest is the payload for creating a class.
type CreateClassRequest struct {
	Name string `json:"name" validate:"required"`
	Code string `json:"code" validate:"required,alphanum,min=4,max=12"`
}

// UpdateClassRequest updates mutable class fields.
type UpdateClassRequest struct {
	Name string `json:"name" validate:"omitempty,min=1"`
}

// JoinClassRequest is the payload for a student join request by class code.
type JoinClassRequest struct {
	Code string `json:"code" validate:"required"`
}

// ResolveJoinRequest is the payload for deciding a pending join request.
type ResolveJoinRequest struct {
	StudentID string                    `json:"student_id" validate:"required"`
	Decision  models.EnrollmentDecision `json:"decision" validate:"required"`
}

// AssignFacultyRequest is the payload for assigning faculty to a subject.
type AssignFacultyRequest struct {
	FacultyID string `json:"faculty_id" validate:"required"`
	Subject   string `json:"subject" validate:"required"`
}

// ClassService orchestrates classes, the join workflow and faculty
// assignments.
type ClassService struct {
	repo      classRepository
	users     classUserReader
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs a ClassService.
func NewClassService(repo classRepository, users classUserReader, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, validator: validate, logger: logger}
}

// List returns classes with pagination metadata.
func (s *ClassService) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, *models.Pagination, error) {
	classes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return classes, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a class by ID.
func (s *ClassService) Get(ctx context.Context, id string) (*models.Class, error) {
	class, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

// Create registers a class owned by the creating faculty member within their
// college.
func (s *ClassService) Create(ctx context.Context, actor *models.JWTClaims, req CreateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}
	if actor.CollegeID == nil {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "actor is not linked to a college")
	}

	code := strings.ToUpper(req.Code)
	if _, err := s.repo.FindByCode(ctx, code); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "class code already in use")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check class code")
	}

	class := &models.Class{
		CollegeID: *actor.CollegeID,
		Name:      req.Name,
		Code:      code,
		TeacherID: actor.UserID,
	}
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	return class, nil
}

// Update modifies a class. Only the owning teacher, a HOD or an admin may
// update it.
func (s *ClassService) Update(ctx context.Context, actor *models.JWTClaims, id string, req UpdateClassRequest) (*models.Class, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid class payload")
	}

	class, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.canManageClass(actor, class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this class")
	}

	if req.Name != "" {
		class.Name = req.Name
	}
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update class")
	}
	return class, nil
}

// Delete removes a class.
func (s *ClassService) Delete(ctx context.Context, actor *models.JWTClaims, id string) error {
	class, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.canManageClass(actor, class) {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to manage this class")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete class")
	}
	return nil
}

// RequestToJoin queues a student's join request against a class found by its
// code. A queued request, an approved membership and a rejected membership
// each block a new request with their own conflict.
func (s *ClassService) RequestToJoin(ctx context.Context, actor *models.JWTClaims, req JoinClassRequest) (*models.JoinRequest, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid join payload")
	}
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can request to join a class")
	}

	class, err := s.repo.FindByCode(ctx, strings.ToUpper(req.Code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}

	if _, err := s.repo.FindJoinRequest(ctx, class.ID, actor.UserID); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "join request already pending")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check join request")
	}

	if member, err := s.repo.FindMember(ctx, class.ID, actor.UserID); err == nil {
		switch member.Status {
		case models.MembershipApproved:
			return nil, appErrors.Clone(appErrors.ErrConflict, "student is already a member of this class")
		case models.MembershipRejected:
			return nil, appErrors.Clone(appErrors.ErrConflict, "a previous join request for this class was rejected")
		}
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check membership")
	}

	request := &models.JoinRequest{ClassID: class.ID, StudentID: actor.UserID}
	if err := s.repo.CreateJoinRequest(ctx, request); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create join request")
	}
	return request, nil
}

// ListJoinRequests returns pending requests for a class, restricted to those
// allowed to resolve them.
func (s *ClassService) ListJoinRequests(ctx context.Context, actor *models.JWTClaims, classID string) ([]models.JoinRequest, error) {
	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !s.canManageClass(actor, class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to view join requests")
	}
	requests, err := s.repo.ListJoinRequests(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list join requests")
	}
	return requests, nil
}

// ResolveRequest approves or rejects a queued join request. Resolving a
// request that is no longer queued yields a not-found error, so a second
// decision for the same student cannot create a duplicate membership.
func (s *ClassService) ResolveRequest(ctx context.Context, actor *models.JWTClaims, classID string, req ResolveJoinRequest) (*models.ClassMember, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resolution payload")
	}
	if !req.Decision.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "decision must be approve or reject")
	}

	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !s.canManageClass(actor, class) {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to resolve join requests")
	}

	status := models.MembershipRejected
	if req.Decision == models.DecisionApprove {
		status = models.MembershipApproved
	}

	member, err := s.repo.ResolveJoinRequest(ctx, classID, req.StudentID, status, actor.UserID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no pending join request for this student")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve join request")
	}

	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionEnrollResolve,
		Resource:   "classes",
		ResourceID: &classID,
		NewValues:  []byte(`{"student":"` + req.StudentID + `","status":"` + string(status) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record enrollment audit log", zap.Error(err))
	}
	return member, nil
}

// ListMembers returns resolved memberships for a class.
func (s *ClassService) ListMembers(ctx context.Context, classID string, status models.MembershipStatus) ([]models.ClassMemberDetail, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	members, err := s.repo.ListMembers(ctx, classID, status)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list class members")
	}
	return members, nil
}

// ListFacultyAssignments returns the subject assignments for a class.
func (s *ClassService) ListFacultyAssignments(ctx context.Context, classID string) ([]models.FacultyAssignment, error) {
	if _, err := s.Get(ctx, classID); err != nil {
		return nil, err
	}
	assignments, err := s.repo.ListFacultyAssignments(ctx, classID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list faculty assignments")
	}
	return assignments, nil
}

// AssignFaculty maps a faculty member to a subject within a class. Besides
// class managers, any faculty member already assigned to the class may assign
// others. The assignee must hold the FACULTY role and belong to the class's
// college, and the same (faculty, subject) pair cannot be assigned twice.
func (s *ClassService) AssignFaculty(ctx context.Context, actor *models.JWTClaims, classID string, req AssignFacultyRequest) (*models.FacultyAssignment, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid assignment payload")
	}

	class, err := s.Get(ctx, classID)
	if err != nil {
		return nil, err
	}
	if !s.canManageClass(actor, class) {
		assigned, err := s.repo.IsAssignedFaculty(ctx, classID, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assigner")
		}
		if !assigned {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to assign faculty")
		}
	}

	faculty, err := s.users.FindByID(ctx, req.FacultyID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "faculty member not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty member")
	}
	if faculty.Role != models.RoleFaculty && faculty.Role != models.RoleHOD {
		return nil, appErrors.Clone(appErrors.ErrValidation, "assignee is not a faculty member")
	}
	if faculty.CollegeID == nil || *faculty.CollegeID != class.CollegeID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "faculty member belongs to a different college")
	}

	exists, err := s.repo.ExistsFacultyAssignment(ctx, classID, req.FacultyID, req.Subject)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check assignment")
	}
	if exists {
		return nil, appErrors.Clone(appErrors.ErrConflict, "faculty member already assigned to this subject")
	}

	assignment := &models.FacultyAssignment{
		ClassID:    classID,
		FacultyID:  req.FacultyID,
		Subject:    req.Subject,
		AssignedBy: actor.UserID,
	}
	if err := s.repo.CreateFacultyAssignment(ctx, assignment); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	return assignment, nil
}

// RemoveFacultyAssignment deletes an assignment. Permitted for admins, HODs,
// the owning class teacher and for the original assigner. An assignment held
// by the class owner is pinned and cannot be removed at all.
func (s *ClassService) RemoveFacultyAssignment(ctx context.Context, actor *models.JWTClaims, classID, assignmentID string) error {
	class, err := s.Get(ctx, classID)
	if err != nil {
		return err
	}

	assignment, err := s.repo.FindFacultyAssignment(ctx, assignmentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
	}
	if assignment.ClassID != classID {
		return appErrors.Clone(appErrors.ErrNotFound, "assignment does not belong to this class")
	}
	if assignment.FacultyID == class.TeacherID {
		return appErrors.Clone(appErrors.ErrInvalidState, "the class owner's own assignment cannot be removed")
	}

	if !s.canManageClass(actor, class) && assignment.AssignedBy != actor.UserID {
		return appErrors.Clone(appErrors.ErrForbidden, "not allowed to remove this assignment")
	}

	if err := s.repo.DeleteFacultyAssignment(ctx, assignmentID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to remove assignment")
	}
	return nil
}

// ClassIDsForStudent returns the classes a student is an approved member of.
func (s *ClassService) ClassIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	ids, err := s.repo.ListClassIDsForStudent(ctx, studentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list student classes")
	}
	return ids, nil
}

// canManageClass reports whether the actor may administer the class. Admins
// and HODs are scoped to the class's college; the owning teacher always may.
func (s *ClassService) canManageClass(actor *models.JWTClaims, class *models.Class) bool {
	if actor == nil {
		return false
	}
	if class.TeacherID == actor.UserID {
		return true
	}
	if actor.Role != models.RoleAdmin && actor.Role != models.RoleHOD {
		return false
	}
	return actor.CollegeID != nil && *actor.CollegeID == class.CollegeID
}
