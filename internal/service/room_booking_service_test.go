package service

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type mockBookingRepo struct {
	bookings map[string]models.RoomBooking
	nextID   int
	updated  []string
}

func (m *mockBookingRepo) FindByID(ctx context.Context, id string) (*models.RoomBooking, error) {
	if b, ok := m.bookings[id]; ok {
		return &b, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockBookingRepo) List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, int, error) {
	return nil, 0, nil
}

func (m *mockBookingRepo) FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime, excludeID string) ([]models.RoomBooking, error) {
	var conflicts []models.RoomBooking
	for _, b := range m.bookings {
		if b.RoomID != roomID || !b.BookingDate.Equal(date) || b.ID == excludeID {
			continue
		}
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusApproved {
			continue
		}
		if b.StartTime < endTime && b.EndTime > startTime {
			conflicts = append(conflicts, b)
		}
	}
	return conflicts, nil
}

func (m *mockBookingRepo) CreateChecked(ctx context.Context, booking *models.RoomBooking) ([]models.RoomBooking, error) {
	conflicts, _ := m.FindOverlapping(ctx, booking.RoomID, booking.BookingDate, booking.StartTime, booking.EndTime, "")
	if len(conflicts) > 0 {
		return conflicts, nil
	}
	if m.bookings == nil {
		m.bookings = make(map[string]models.RoomBooking)
	}
	m.nextID++
	booking.ID = fmt.Sprintf("b%d", m.nextID)
	m.bookings[booking.ID] = *booking
	return nil, nil
}

func (m *mockBookingRepo) UpdateStatus(ctx context.Context, booking *models.RoomBooking) error {
	m.bookings[booking.ID] = *booking
	m.updated = append(m.updated, booking.ID)
	return nil
}

type mockRoomReader struct{}

func (m *mockRoomReader) FindByID(ctx context.Context, id string) (*models.Room, error) {
	if id == "missing" {
		return nil, sql.ErrNoRows
	}
	return &models.Room{ID: id, CollegeID: "col1", Name: "Lab A"}, nil
}

type mockAuditWriter struct {
	logs []models.AuditLog
}

func (m *mockAuditWriter) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func newBookingService(repo *mockBookingRepo) *RoomBookingService {
	return NewRoomBookingService(repo, &mockRoomReader{}, &mockAuditWriter{}, BookingLimits{}, validator.New(), zap.NewNop())
}

func seedBooking(repo *mockBookingRepo, id, roomID, start, end string, status models.BookingStatus) {
	if repo.bookings == nil {
		repo.bookings = make(map[string]models.RoomBooking)
	}
	repo.bookings[id] = models.RoomBooking{
		ID:          id,
		RoomID:      roomID,
		BookingDate: time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC),
		StartTime:   start,
		EndTime:     end,
		Status:      status,
		RequestedBy: "u1",
	}
}

func TestCheckAvailabilityOverlapWindow(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusApproved)
	svc := newBookingService(repo)

	// Overlapping slot conflicts.
	avail, err := svc.CheckAvailability(context.Background(), "r1", "2026-09-01", "09:30", "10:30")
	require.NoError(t, err)
	assert.False(t, avail.IsAvailable)
	require.Len(t, avail.Conflicts, 1)
	assert.Equal(t, "b1", avail.Conflicts[0].ID)

	// Back-to-back slot sharing the boundary is free.
	avail, err = svc.CheckAvailability(context.Background(), "r1", "2026-09-01", "10:00", "11:00")
	require.NoError(t, err)
	assert.True(t, avail.IsAvailable)

	// A different room is unaffected.
	avail, err = svc.CheckAvailability(context.Background(), "r2", "2026-09-01", "09:00", "10:00")
	require.NoError(t, err)
	assert.True(t, avail.IsAvailable)
}

func TestCheckAvailabilityIgnoresClosedBookings(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusCanceled)
	seedBooking(repo, "b2", "r1", "09:00", "10:00", models.BookingStatusRejected)
	seedBooking(repo, "b3", "r1", "13:00", "14:00", models.BookingStatusPending)
	svc := newBookingService(repo)

	avail, err := svc.CheckAvailability(context.Background(), "r1", "2026-09-01", "09:00", "10:00")
	require.NoError(t, err)
	assert.True(t, avail.IsAvailable)

	// A pending booking still blocks its slot.
	avail, err = svc.CheckAvailability(context.Background(), "r1", "2026-09-01", "13:30", "14:30")
	require.NoError(t, err)
	assert.False(t, avail.IsAvailable)
}

func TestCheckAvailabilityValidation(t *testing.T) {
	svc := newBookingService(&mockBookingRepo{})

	cases := []struct{ date, start, end string }{
		{"01-09-2026", "09:00", "10:00"},
		{"2026-09-01", "9:00", "10:00"},
		{"2026-09-01", "10:00", "10:00"},
		{"2026-09-01", "11:00", "10:00"},
		{"2026-09-01", "06:00", "08:00"},
		{"2026-09-01", "21:00", "23:00"},
	}
	for _, tc := range cases {
		_, err := svc.CheckAvailability(context.Background(), "r1", tc.date, tc.start, tc.end)
		require.Error(t, err)
		var appErr *appErrors.Error
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, appErrors.ErrValidation.Code, appErr.Code)
	}
}

func TestCreateBookingStartsPending(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newBookingService(repo)
	actor := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	booking, err := svc.Create(context.Background(), actor, CreateBookingRequest{
		RoomID: "r1", BookingDate: "2026-09-01", StartTime: "09:00", EndTime: "10:00", Purpose: "study group",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, booking.Status)
	assert.Equal(t, "u1", booking.RequestedBy)
	assert.NotEmpty(t, booking.ID)
}

func TestCreateBookingConflicts(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusPending)
	svc := newBookingService(repo)
	actor := &models.JWTClaims{UserID: "u2", Role: models.RoleStudent}

	_, err := svc.Create(context.Background(), actor, CreateBookingRequest{
		RoomID: "r1", BookingDate: "2026-09-01", StartTime: "09:30", EndTime: "10:30", Purpose: "meeting",
	})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestCancelFreesSlot(t *testing.T) {
	repo := &mockBookingRepo{}
	svc := newBookingService(repo)
	requester := &models.JWTClaims{UserID: "u1", Role: models.RoleStudent}

	booking, err := svc.Create(context.Background(), requester, CreateBookingRequest{
		RoomID: "r1", BookingDate: "2026-09-01", StartTime: "09:00", EndTime: "10:00", Purpose: "study",
	})
	require.NoError(t, err)

	_, err = svc.Cancel(context.Background(), requester, booking.ID)
	require.NoError(t, err)

	other := &models.JWTClaims{UserID: "u2", Role: models.RoleStudent}
	again, err := svc.Create(context.Background(), other, CreateBookingRequest{
		RoomID: "r1", BookingDate: "2026-09-01", StartTime: "09:00", EndTime: "10:00", Purpose: "club",
	})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusPending, again.Status)
}

func TestCancelAuthorization(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusPending)
	svc := newBookingService(repo)

	_, err := svc.Cancel(context.Background(), &models.JWTClaims{UserID: "u2", Role: models.RoleStudent}, "b1")
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErr.Code)

	// Admins may cancel any booking.
	_, err = svc.Cancel(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "b1")
	require.NoError(t, err)

	// A closed booking cannot be canceled again.
	_, err = svc.Cancel(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "b1")
	require.Error(t, err)
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}

func TestDecideApproveAndReject(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusPending)
	seedBooking(repo, "b2", "r1", "11:00", "12:00", models.BookingStatusPending)
	svc := newBookingService(repo)
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	approved, err := svc.Decide(context.Background(), admin, "b1", DecideBookingRequest{Approve: true})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusApproved, approved.Status)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, "admin", *approved.ApprovedBy)

	rejected, err := svc.Decide(context.Background(), admin, "b2", DecideBookingRequest{Approve: false, Reason: "maintenance"})
	require.NoError(t, err)
	assert.Equal(t, models.BookingStatusRejected, rejected.Status)
	require.NotNil(t, rejected.RejectionReason)
	assert.Equal(t, "maintenance", *rejected.RejectionReason)
}

func TestDecideRevalidatesSlot(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusPending)
	seedBooking(repo, "b2", "r1", "09:30", "10:30", models.BookingStatusPending)
	svc := newBookingService(repo)
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	// First approval wins.
	_, err := svc.Decide(context.Background(), admin, "b1", DecideBookingRequest{Approve: true})
	require.NoError(t, err)

	// The second pending booking for the same window can no longer be approved.
	_, err = svc.Decide(context.Background(), admin, "b2", DecideBookingRequest{Approve: true})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)

	// Rejecting it is still allowed.
	_, err = svc.Decide(context.Background(), admin, "b2", DecideBookingRequest{Approve: false})
	require.NoError(t, err)
}

func TestDecideRequiresPending(t *testing.T) {
	repo := &mockBookingRepo{}
	seedBooking(repo, "b1", "r1", "09:00", "10:00", models.BookingStatusCanceled)
	svc := newBookingService(repo)

	_, err := svc.Decide(context.Background(), &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}, "b1", DecideBookingRequest{Approve: true})
	require.Error(t, err)
	var appErr *appErrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, appErrors.ErrInvalidState.Code, appErr.Code)
}
