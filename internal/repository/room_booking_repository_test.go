package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campus-connect/campus-api/internal/models"
)

func bookingRowColumns() []string {
	return []string{"id", "room_id", "booking_date", "start_time", "end_time", "purpose", "status", "requested_by", "approved_by", "approved_at", "rejection_reason", "created_at", "updated_at"}
}

func TestFindOverlapping(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomBookingRepository(db)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()
	rows := sqlmock.NewRows(bookingRowColumns()).
		AddRow("b1", "r1", date, "09:00", "10:00", "Lecture", string(models.BookingStatusApproved), "u1", nil, nil, nil, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("AND start_time < $3 AND end_time > $4")).
		WithArgs("r1", date, "10:30", "09:30").
		WillReturnRows(rows)

	conflicts, err := repo.FindOverlapping(context.Background(), "r1", date, "09:30", "10:30", "")
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b1", conflicts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindOverlappingExcludesBooking(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomBookingRepository(db)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("AND id != $5")).
		WithArgs("r1", date, "10:00", "09:00", "b1").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns()))

	conflicts, err := repo.FindOverlapping(context.Background(), "r1", date, "09:00", "10:00", "b1")
	require.NoError(t, err)
	assert.Empty(t, conflicts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckedInsertsWhenFree(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomBookingRepository(db)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM rooms WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectQuery(regexp.QuoteMeta("AND start_time < $3 AND end_time > $4")).
		WithArgs("r1", date, "11:00", "10:00").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns()))
	mock.ExpectExec("INSERT INTO room_bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	booking := &models.RoomBooking{
		RoomID:      "r1",
		BookingDate: date,
		StartTime:   "10:00",
		EndTime:     "11:00",
		Purpose:     "Seminar",
		Status:      models.BookingStatusPending,
		RequestedBy: "u1",
	}
	conflicts, err := repo.CreateChecked(context.Background(), booking)
	require.NoError(t, err)
	assert.Nil(t, conflicts)
	assert.NotEmpty(t, booking.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateCheckedReturnsConflicts(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomBookingRepository(db)

	date := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM rooms WHERE id = $1 FOR UPDATE")).
		WithArgs("r1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("r1"))
	mock.ExpectQuery(regexp.QuoteMeta("AND start_time < $3 AND end_time > $4")).
		WithArgs("r1", date, "10:30", "09:30").
		WillReturnRows(sqlmock.NewRows(bookingRowColumns()).
			AddRow("b1", "r1", date, "09:00", "10:00", "Lecture", string(models.BookingStatusPending), "u2", nil, nil, nil, now, now))
	mock.ExpectRollback()

	booking := &models.RoomBooking{
		RoomID:      "r1",
		BookingDate: date,
		StartTime:   "09:30",
		EndTime:     "10:30",
		Status:      models.BookingStatusPending,
		RequestedBy: "u1",
	}
	conflicts, err := repo.CreateChecked(context.Background(), booking)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, "b1", conflicts[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateBookingStatus(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewRoomBookingRepository(db)

	mock.ExpectExec("UPDATE room_bookings").WillReturnResult(sqlmock.NewResult(0, 1))

	approver := "hod1"
	now := time.Now()
	err := repo.UpdateStatus(context.Background(), &models.RoomBooking{
		ID:         "b1",
		Status:     models.BookingStatusApproved,
		ApprovedBy: &approver,
		ApprovedAt: &now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
