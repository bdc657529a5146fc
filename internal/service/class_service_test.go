package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type mockClassRepo struct {
	classes     map[string]models.Class
	requests    map[string]models.JoinRequest
	members     map[string]models.ClassMember
	assignments map[string]models.FacultyAssignment
	removed     []string
}

func joinKey(classID, studentID string) string { return classID + "/" + studentID }

func (m *mockClassRepo) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	return nil, 0, nil
}

func (m *mockClassRepo) FindByID(ctx context.Context, id string) (*models.Class, error) {
	if c, ok := m.classes[id]; ok {
		return &c, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	for _, c := range m.classes {
		if c.Code == code {
			return &c, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) Create(ctx context.Context, class *models.Class) error {
	if m.classes == nil {
		m.classes = make(map[string]models.Class)
	}
	if class.ID == "" {
		class.ID = "new-class"
	}
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Update(ctx context.Context, class *models.Class) error {
	m.classes[class.ID] = *class
	return nil
}

func (m *mockClassRepo) Delete(ctx context.Context, id string) error {
	delete(m.classes, id)
	return nil
}

func (m *mockClassRepo) FindJoinRequest(ctx context.Context, classID, studentID string) (*models.JoinRequest, error) {
	if r, ok := m.requests[joinKey(classID, studentID)]; ok {
		return &r, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListJoinRequests(ctx context.Context, classID string) ([]models.JoinRequest, error) {
	var out []models.JoinRequest
	for _, r := range m.requests {
		if r.ClassID == classID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockClassRepo) FindMember(ctx context.Context, classID, studentID string) (*models.ClassMember, error) {
	if mem, ok := m.members[joinKey(classID, studentID)]; ok {
		return &mem, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ListMembers(ctx context.Context, classID string, status models.MembershipStatus) ([]models.ClassMemberDetail, error) {
	var out []models.ClassMemberDetail
	for _, mem := range m.members {
		if mem.ClassID == classID && (status == "" || mem.Status == status) {
			out = append(out, models.ClassMemberDetail{ClassMember: mem})
		}
	}
	return out, nil
}

func (m *mockClassRepo) CreateJoinRequest(ctx context.Context, req *models.JoinRequest) error {
	if m.requests == nil {
		m.requests = make(map[string]models.JoinRequest)
	}
	if req.ID == "" {
		req.ID = "new-request"
	}
	m.requests[joinKey(req.ClassID, req.StudentID)] = *req
	return nil
}

func (m *mockClassRepo) ResolveJoinRequest(ctx context.Context, classID, studentID string, status models.MembershipStatus, decidedBy string) (*models.ClassMember, error) {
	key := joinKey(classID, studentID)
	if _, ok := m.requests[key]; !ok {
		return nil, sql.ErrNoRows
	}
	delete(m.requests, key)
	if m.members == nil {
		m.members = make(map[string]models.ClassMember)
	}
	member := models.ClassMember{ClassID: classID, StudentID: studentID, Status: status, DecidedBy: decidedBy}
	m.members[key] = member
	return &member, nil
}

func (m *mockClassRepo) ListFacultyAssignments(ctx context.Context, classID string) ([]models.FacultyAssignment, error) {
	var out []models.FacultyAssignment
	for _, a := range m.assignments {
		if a.ClassID == classID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockClassRepo) FindFacultyAssignment(ctx context.Context, id string) (*models.FacultyAssignment, error) {
	if a, ok := m.assignments[id]; ok {
		return &a, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassRepo) ExistsFacultyAssignment(ctx context.Context, classID, facultyID, subject string) (bool, error) {
	for _, a := range m.assignments {
		if a.ClassID == classID && a.FacultyID == facultyID && a.Subject == subject {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClassRepo) IsAssignedFaculty(ctx context.Context, classID, facultyID string) (bool, error) {
	for _, a := range m.assignments {
		if a.ClassID == classID && a.FacultyID == facultyID {
			return true, nil
		}
	}
	return false, nil
}

func (m *mockClassRepo) CreateFacultyAssignment(ctx context.Context, assignment *models.FacultyAssignment) error {
	if m.assignments == nil {
		m.assignments = make(map[string]models.FacultyAssignment)
	}
	if assignment.ID == "" {
		assignment.ID = "new-assignment"
	}
	m.assignments[assignment.ID] = *assignment
	return nil
}

func (m *mockClassRepo) DeleteFacultyAssignment(ctx context.Context, id string) error {
	delete(m.assignments, id)
	m.removed = append(m.removed, id)
	return nil
}

func (m *mockClassRepo) ListClassIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	var ids []string
	for _, mem := range m.members {
		if mem.StudentID == studentID && mem.Status == models.MembershipApproved {
			ids = append(ids, mem.ClassID)
		}
	}
	return ids, nil
}

type mockClassUsers struct {
	users map[string]models.User
}

func (m *mockClassUsers) FindByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := m.users[id]; ok {
		return &u, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockClassUsers) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	return nil
}

func strPtr(s string) *string { return &s }

func newClassFixture() (*mockClassRepo, *ClassService) {
	repo := &mockClassRepo{classes: map[string]models.Class{
		"cl1": {ID: "cl1", CollegeID: "col1", Name: "Physics 101", Code: "PHY101", TeacherID: "fac1"},
	}}
	users := &mockClassUsers{users: map[string]models.User{
		"fac1": {ID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")},
		"fac2": {ID: "fac2", Role: models.RoleFaculty, CollegeID: strPtr("col1")},
		"fac3": {ID: "fac3", Role: models.RoleFaculty, CollegeID: strPtr("col2")},
		"fac4": {ID: "fac4", Role: models.RoleFaculty, CollegeID: strPtr("col1")},
		"stu1": {ID: "stu1", Role: models.RoleStudent, CollegeID: strPtr("col1")},
	}}
	return repo, NewClassService(repo, users, validator.New(), zap.NewNop())
}

func TestRequestToJoin(t *testing.T) {
	repo, svc := newClassFixture()
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	req, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "phy101"})
	require.NoError(t, err)
	assert.Equal(t, "cl1", req.ClassID)
	assert.Equal(t, "stu1", req.StudentID)

	// A second request while one is queued conflicts.
	_, err = svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	// Only students may request.
	_, err = svc.RequestToJoin(context.Background(), &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty}, JoinClassRequest{Code: "PHY101"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	_ = repo
}

func TestResolveRequestApprove(t *testing.T) {
	repo, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	_, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.NoError(t, err)

	member, err := svc.ResolveRequest(context.Background(), teacher, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.NoError(t, err)
	assert.Equal(t, models.MembershipApproved, member.Status)
	assert.Equal(t, "fac1", member.DecidedBy)
	assert.Empty(t, repo.requests)
}

func TestResolveRequestTwiceIsNotFound(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	_, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.NoError(t, err)
	_, err = svc.ResolveRequest(context.Background(), teacher, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.NoError(t, err)

	// The request was consumed; deciding again cannot duplicate the membership.
	_, err = svc.ResolveRequest(context.Background(), teacher, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionReject})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}

func TestApprovedMemberCannotRequestAgain(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	_, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.NoError(t, err)
	_, err = svc.ResolveRequest(context.Background(), teacher, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.NoError(t, err)

	_, err = svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRejectedStudentCannotRequestAgain(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}

	_, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.NoError(t, err)
	_, err = svc.ResolveRequest(context.Background(), teacher, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionReject})
	require.NoError(t, err)

	// The rejection blocks a new request with its own conflict, distinct
	// from the already-a-member one.
	_, err = svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
	assert.Contains(t, appErr.Message, "rejected")
}

func TestResolveRequestAuthorization(t *testing.T) {
	_, svc := newClassFixture()
	student := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent}
	_, err := svc.RequestToJoin(context.Background(), student, JoinClassRequest{Code: "PHY101"})
	require.NoError(t, err)

	// Another faculty member without ownership cannot resolve.
	other := &models.JWTClaims{UserID: "fac2", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	_, err = svc.ResolveRequest(context.Background(), other, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.Error(t, err)

	// A HOD from another college cannot either.
	hod := &models.JWTClaims{UserID: "hod2", Role: models.RoleHOD, CollegeID: strPtr("col2")}
	_, err = svc.ResolveRequest(context.Background(), hod, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.Error(t, err)

	// A HOD of the class's college can.
	hod1 := &models.JWTClaims{UserID: "hod1", Role: models.RoleHOD, CollegeID: strPtr("col1")}
	_, err = svc.ResolveRequest(context.Background(), hod1, "cl1", ResolveJoinRequest{StudentID: "stu1", Decision: models.DecisionApprove})
	require.NoError(t, err)
}

func TestAssignFaculty(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}

	assignment, err := svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "fac2", Subject: "Mechanics"})
	require.NoError(t, err)
	assert.Equal(t, "fac2", assignment.FacultyID)
	assert.Equal(t, "fac1", assignment.AssignedBy)

	// Same (faculty, subject) pair cannot be assigned twice.
	_, err = svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "fac2", Subject: "Mechanics"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	// A faculty member from a different college cannot be assigned.
	_, err = svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "fac3", Subject: "Optics"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Students cannot be assigned as faculty.
	_, err = svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "stu1", Subject: "Optics"})
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
}

func TestAssignedFacultyMayAssignOthers(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}

	_, err := svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "fac2", Subject: "Mechanics"})
	require.NoError(t, err)

	// A faculty member with no assignment in the class cannot assign.
	outsider := &models.JWTClaims{UserID: "fac4", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	_, err = svc.AssignFaculty(context.Background(), outsider, "cl1", AssignFacultyRequest{FacultyID: "fac4", Subject: "Waves"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// An already-assigned one can, even without owning the class.
	assigner := &models.JWTClaims{UserID: "fac2", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	assignment, err := svc.AssignFaculty(context.Background(), assigner, "cl1", AssignFacultyRequest{FacultyID: "fac4", Subject: "Waves"})
	require.NoError(t, err)
	assert.Equal(t, "fac2", assignment.AssignedBy)
	assert.Equal(t, "fac4", assignment.FacultyID)
}

func TestOwnerAssignmentCannotBeRemoved(t *testing.T) {
	_, svc := newClassFixture()
	admin := &models.JWTClaims{UserID: "adm1", Role: models.RoleAdmin, CollegeID: strPtr("col1")}

	assignment, err := svc.AssignFaculty(context.Background(), admin, "cl1", AssignFacultyRequest{FacultyID: "fac1", Subject: "Mechanics"})
	require.NoError(t, err)

	// The owner cannot delete their own assignment, and neither can anyone
	// else while they own the class.
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	err = svc.RemoveFacultyAssignment(context.Background(), teacher, "cl1", assignment.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)

	err = svc.RemoveFacultyAssignment(context.Background(), admin, "cl1", assignment.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestRemoveFacultyAssignment(t *testing.T) {
	repo, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac1", Role: models.RoleFaculty, CollegeID: strPtr("col1")}

	assignment, err := svc.AssignFaculty(context.Background(), teacher, "cl1", AssignFacultyRequest{FacultyID: "fac2", Subject: "Mechanics"})
	require.NoError(t, err)

	// The assigned faculty member cannot remove their own assignment.
	assignee := &models.JWTClaims{UserID: "fac2", Role: models.RoleFaculty, CollegeID: strPtr("col1")}
	err = svc.RemoveFacultyAssignment(context.Background(), assignee, "cl1", assignment.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// The class teacher can.
	err = svc.RemoveFacultyAssignment(context.Background(), teacher, "cl1", assignment.ID)
	require.NoError(t, err)
	assert.Contains(t, repo.removed, assignment.ID)
}

func TestCreateClassCodeConflict(t *testing.T) {
	_, svc := newClassFixture()
	teacher := &models.JWTClaims{UserID: "fac2", Role: models.RoleFaculty, CollegeID: strPtr("col1")}

	_, err := svc.Create(context.Background(), teacher, CreateClassRequest{Name: "Duplicate", Code: "phy101"})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	class, err := svc.Create(context.Background(), teacher, CreateClassRequest{Name: "Chemistry", Code: "chem201"})
	require.NoError(t, err)
	assert.Equal(t, "CHEM201", class.Code)
	assert.Equal(t, "col1", class.CollegeID)
	assert.Equal(t, "fac2", class.TeacherID)
}
