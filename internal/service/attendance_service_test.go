package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type mockAttendanceRepo struct {
	records map[string]models.AttendanceRecord
}

func newMockAttendanceRepo() *mockAttendanceRepo {
	return &mockAttendanceRepo{records: map[string]models.AttendanceRecord{}}
}

func attendanceKey(classID, studentID string, date time.Time) string {
	return fmt.Sprintf("%s|%s|%s", classID, studentID, date.Format("2006-01-02"))
}

func (m *mockAttendanceRepo) BulkUpsert(_ context.Context, records []models.AttendanceRecord) error {
	for _, rec := range records {
		m.records[attendanceKey(rec.ClassID, rec.StudentID, rec.Date)] = rec
	}
	return nil
}

func (m *mockAttendanceRepo) List(_ context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	var out []models.AttendanceRecordDetail
	for _, rec := range m.records {
		if filter.ClassID != "" && rec.ClassID != filter.ClassID {
			continue
		}
		if filter.StudentID != "" && rec.StudentID != filter.StudentID {
			continue
		}
		out = append(out, models.AttendanceRecordDetail{AttendanceRecord: rec})
	}
	return out, len(out), nil
}

func (m *mockAttendanceRepo) Summary(_ context.Context, classID, studentID string, _, _ *time.Time) (*models.AttendanceSummary, error) {
	summary := &models.AttendanceSummary{}
	for _, rec := range m.records {
		if rec.ClassID != classID || rec.StudentID != studentID {
			continue
		}
		summary.Total++
		switch rec.Status {
		case models.AttendancePresent:
			summary.Present++
		case models.AttendanceAbsent:
			summary.Absent++
		case models.AttendanceLate:
			summary.Late++
		case models.AttendanceExcused:
			summary.Excused++
		}
	}
	if summary.Total > 0 {
		summary.Percent = float64(summary.Present+summary.Late) / float64(summary.Total) * 100
	}
	return summary, nil
}

type mockAttendanceClasses struct {
	classes  map[string]*models.Class
	members  map[string]*models.ClassMember
	assigned map[string]bool
}

func (m *mockAttendanceClasses) FindByID(_ context.Context, id string) (*models.Class, error) {
	class, ok := m.classes[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return class, nil
}

func (m *mockAttendanceClasses) FindMember(_ context.Context, classID, studentID string) (*models.ClassMember, error) {
	member, ok := m.members[classID+"|"+studentID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return member, nil
}

func (m *mockAttendanceClasses) IsAssignedFaculty(_ context.Context, classID, facultyID string) (bool, error) {
	return m.assigned[classID+"|"+facultyID], nil
}

func newAttendanceFixture() (*AttendanceService, *mockAttendanceRepo, *mockAttendanceClasses) {
	repo := newMockAttendanceRepo()
	classes := &mockAttendanceClasses{
		classes: map[string]*models.Class{
			"cl1": {ID: "cl1", CollegeID: "col1", Name: "Physics", Code: "PHY101", TeacherID: "fac1"},
		},
		members: map[string]*models.ClassMember{
			"cl1|stu1": {ClassID: "cl1", StudentID: "stu1", Status: models.MembershipApproved},
		},
		assigned: map[string]bool{"cl1|fac2": true},
	}
	svc := NewAttendanceService(repo, classes, nil, zap.NewNop())
	return svc, repo, classes
}

func facultyClaims(id string) *models.JWTClaims {
	college := "col1"
	return &models.JWTClaims{UserID: id, Role: models.RoleFaculty, CollegeID: &college}
}

func TestMarkAttendanceOverwritesSameDay(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	ctx := context.Background()

	count, err := svc.Mark(ctx, facultyClaims("fac1"), "cl1", MarkAttendanceRequest{
		Date: "2026-09-01",
		Entries: []MarkAttendanceEntry{
			{StudentID: "stu1", Status: models.AttendanceAbsent},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	// Re-marking the same date replaces the status instead of duplicating.
	_, err = svc.Mark(ctx, facultyClaims("fac1"), "cl1", MarkAttendanceRequest{
		Date: "2026-09-01",
		Entries: []MarkAttendanceEntry{
			{StudentID: "stu1", Status: models.AttendancePresent},
		},
	})
	require.NoError(t, err)

	require.Len(t, repo.records, 1)
	date, _ := time.Parse("2006-01-02", "2026-09-01")
	assert.Equal(t, models.AttendancePresent, repo.records[attendanceKey("cl1", "stu1", date)].Status)
}

func TestMarkAttendanceAuthorization(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()
	req := MarkAttendanceRequest{
		Date:    "2026-09-01",
		Entries: []MarkAttendanceEntry{{StudentID: "stu1", Status: models.AttendancePresent}},
	}

	// Assigned faculty may mark.
	_, err := svc.Mark(ctx, facultyClaims("fac2"), "cl1", req)
	require.NoError(t, err)

	// Unassigned faculty may not.
	_, err = svc.Mark(ctx, facultyClaims("fac9"), "cl1", req)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Students never mark.
	student := facultyClaims("stu1")
	student.Role = models.RoleStudent
	_, err = svc.Mark(ctx, student, "cl1", req)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// HOD from another college may not.
	otherCollege := "col2"
	hod := &models.JWTClaims{UserID: "hod1", Role: models.RoleHOD, CollegeID: &otherCollege}
	_, err = svc.Mark(ctx, hod, "cl1", req)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}

func TestMarkAttendanceValidation(t *testing.T) {
	svc, _, _ := newAttendanceFixture()
	ctx := context.Background()

	cases := []MarkAttendanceRequest{
		{Date: "01-09-2026", Entries: []MarkAttendanceEntry{{StudentID: "stu1", Status: models.AttendancePresent}}},
		{Date: "2026-09-01", Entries: []MarkAttendanceEntry{{StudentID: "stu1", Status: "SLEEPING"}}},
		{Date: "2026-09-01"},
	}
	for _, req := range cases {
		_, err := svc.Mark(ctx, facultyClaims("fac1"), "cl1", req)
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestAttendanceListScopesStudents(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	ctx := context.Background()
	date, _ := time.Parse("2006-01-02", "2026-09-01")
	repo.records[attendanceKey("cl1", "stu1", date)] = models.AttendanceRecord{ClassID: "cl1", StudentID: "stu1", Date: date, Status: models.AttendancePresent}
	repo.records[attendanceKey("cl1", "stu2", date)] = models.AttendanceRecord{ClassID: "cl1", StudentID: "stu2", Date: date, Status: models.AttendanceAbsent}

	student := facultyClaims("stu1")
	student.Role = models.RoleStudent
	records, pagination, err := svc.List(ctx, student, models.AttendanceFilter{ClassID: "cl1"})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "stu1", records[0].StudentID)
	assert.Equal(t, 1, pagination.TotalCount)
}

func TestAttendanceSummary(t *testing.T) {
	svc, repo, _ := newAttendanceFixture()
	ctx := context.Background()
	for i, status := range []models.AttendanceStatus{models.AttendancePresent, models.AttendancePresent, models.AttendanceLate, models.AttendanceAbsent} {
		date := time.Date(2026, 9, 1+i, 0, 0, 0, 0, time.UTC)
		repo.records[attendanceKey("cl1", "stu1", date)] = models.AttendanceRecord{ClassID: "cl1", StudentID: "stu1", Date: date, Status: status}
	}

	summary, err := svc.Summary(ctx, facultyClaims("fac1"), "cl1", "stu1", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 2, summary.Present)
	assert.Equal(t, 1, summary.Late)
	assert.Equal(t, 1, summary.Absent)
	assert.InDelta(t, 75.0, summary.Percent, 0.01)

	// Students cannot read another student's summary.
	student := facultyClaims("stu2")
	student.Role = models.RoleStudent
	_, err = svc.Summary(ctx, student, "cl1", "stu1", nil, nil)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Unknown member is a not-found.
	_, err = svc.Summary(ctx, facultyClaims("fac1"), "cl1", "stu9", nil, nil)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErr.Code)
}
