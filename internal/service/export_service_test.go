package service

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
	"github.com/campus-connect/campus-api/pkg/jobs"
	"github.com/campus-connect/campus-api/pkg/storage"
)

type mockExportRepo struct {
	exports map[string]models.ExportJob
	nextID  int
}

func (m *mockExportRepo) Create(ctx context.Context, job *models.ExportJob) error {
	if m.exports == nil {
		m.exports = make(map[string]models.ExportJob)
	}
	m.nextID++
	job.ID = "exp1"
	job.Status = models.ExportJobQueued
	m.exports[job.ID] = *job
	return nil
}

func (m *mockExportRepo) FindByID(ctx context.Context, id string) (*models.ExportJob, error) {
	if j, ok := m.exports[id]; ok {
		return &j, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockExportRepo) UpdateStatus(ctx context.Context, id string, status models.ExportJobStatus, filePath, errorDetail *string) error {
	j := m.exports[id]
	j.Status = status
	j.FilePath = filePath
	j.ErrorDetail = errorDetail
	m.exports[id] = j
	return nil
}

func (m *mockExportRepo) ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.ExportJob, error) {
	var out []models.ExportJob
	for _, j := range m.exports {
		if j.RequestedBy == requestedBy {
			out = append(out, j)
		}
	}
	return out, nil
}

type mockLoanLister struct{}

func (m *mockLoanLister) ListLoans(ctx context.Context, filter models.BookLoanFilter) ([]models.BookLoanDetail, int, error) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	return []models.BookLoanDetail{{
		BookLoan:     models.BookLoan{ID: "loan1", LoanedAt: now, DueAt: now.Add(14 * 24 * time.Hour), Status: models.LoanStatusActive},
		BookTitle:    "SICP",
		BorrowerName: "Student One",
	}}, 1, nil
}

type mockAttendanceLister struct{}

func (m *mockAttendanceLister) List(ctx context.Context, filter models.AttendanceFilter) ([]models.AttendanceRecordDetail, int, error) {
	return nil, 0, nil
}

type mockBookingLister struct{}

func (m *mockBookingLister) List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, int, error) {
	return nil, 0, nil
}

type mockFileStorage struct {
	saved map[string][]byte
}

func (m *mockFileStorage) Save(filename string, data []byte) (string, error) {
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStorage) Open(filename string) (*os.File, error) {
	return nil, os.ErrNotExist
}

func collegePtr() *string {
	c := "col1"
	return &c
}

func newExportFixture() (*mockExportRepo, *mockFileStorage, *ExportService) {
	repo := &mockExportRepo{}
	store := &mockFileStorage{}
	signer := storage.NewSignedURLSigner("export-secret", time.Hour)
	svc := NewExportService(repo, &mockLoanLister{}, &mockAttendanceLister{}, &mockBookingLister{}, store, signer, ExportOptions{APIPrefix: "/api/v1"}, zap.NewNop())
	return repo, store, svc
}

func TestExportRequestAndProcess(t *testing.T) {
	repo, store, svc := newExportFixture()
	actor := &models.JWTClaims{UserID: "lib1", Role: models.RoleLibrarian, CollegeID: collegePtr()}

	job, err := svc.Request(context.Background(), actor, ExportRequest{Kind: models.ExportKindLoans, Format: models.ExportFormatCSV})
	require.NoError(t, err)
	assert.Equal(t, models.ExportJobQueued, job.Status)
	assert.Equal(t, "col1", job.CollegeID)

	err = svc.Handle(context.Background(), jobs.Job{ID: job.ID, Type: "export", Ref: job.ID})
	require.NoError(t, err)

	done := repo.exports[job.ID]
	assert.Equal(t, models.ExportJobCompleted, done.Status)
	require.NotNil(t, done.FilePath)

	rendered := string(store.saved[*done.FilePath])
	assert.True(t, strings.Contains(rendered, "SICP"))
	assert.True(t, strings.Contains(rendered, "Student One"))
}

func TestExportDownloadToken(t *testing.T) {
	repo, _, svc := newExportFixture()
	actor := &models.JWTClaims{UserID: "lib1", Role: models.RoleLibrarian, CollegeID: collegePtr()}

	job, err := svc.Request(context.Background(), actor, ExportRequest{Kind: models.ExportKindLoans, Format: models.ExportFormatCSV})
	require.NoError(t, err)

	// Download before completion is rejected.
	_, err = svc.Download(context.Background(), actor, job.ID)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)

	require.NoError(t, svc.Handle(context.Background(), jobs.Job{ID: job.ID, Ref: job.ID}))

	dl, err := svc.Download(context.Background(), actor, job.ID)
	require.NoError(t, err)
	assert.NotEmpty(t, dl.Token)
	assert.True(t, strings.HasPrefix(dl.URL, "/api/v1/exports/download/"))
	assert.True(t, dl.ExpiresAt.After(time.Now()))

	// Another user cannot inspect the job.
	other := &models.JWTClaims{UserID: "stu1", Role: models.RoleStudent, CollegeID: collegePtr()}
	_, err = svc.Get(context.Background(), other, job.ID)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	_ = repo
}

func TestExportRequestValidation(t *testing.T) {
	_, _, svc := newExportFixture()
	actor := &models.JWTClaims{UserID: "lib1", Role: models.RoleLibrarian, CollegeID: collegePtr()}

	_, err := svc.Request(context.Background(), actor, ExportRequest{Kind: "GRADES", Format: models.ExportFormatCSV})
	require.Error(t, err)

	_, err = svc.Request(context.Background(), actor, ExportRequest{Kind: models.ExportKindLoans, Format: "XLSX"})
	require.Error(t, err)

	unlinked := &models.JWTClaims{UserID: "u2", Role: models.RoleLibrarian}
	_, err = svc.Request(context.Background(), unlinked, ExportRequest{Kind: models.ExportKindLoans, Format: models.ExportFormatCSV})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)
}
