package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campus-connect/campus-api/internal/models"
)

const bookingColumns = `id, room_id, booking_date, start_time, end_time, purpose, status, requested_by, approved_by, approved_at, rejection_reason, created_at, updated_at`

// RoomBookingRepository handles persistence of room bookings. Slots are
// half-open intervals, so two bookings conflict when one starts before the
// other ends on both sides.
type RoomBookingRepository struct {
	db *sqlx.DB
}

// NewRoomBookingRepository constructs the repository.
func NewRoomBookingRepository(db *sqlx.DB) *RoomBookingRepository {
	return &RoomBookingRepository{db: db}
}

// FindByID returns a booking by identifier.
func (r *RoomBookingRepository) FindByID(ctx context.Context, id string) (*models.RoomBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM room_bookings WHERE id = $1 LIMIT 1`, bookingColumns)
	var booking models.RoomBooking
	if err := r.db.GetContext(ctx, &booking, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find booking by id: %w", err)
	}
	return &booking, nil
}

// List returns bookings with room and requester info, filtered by the
// provided criteria.
func (r *RoomBookingRepository) List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, int, error) {
	baseQuery := `FROM room_bookings b
        JOIN rooms r ON r.id = b.room_id
        JOIN users u ON u.id = b.requested_by
        WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.RoomID != "" {
		conditions = append(conditions, fmt.Sprintf("b.room_id = $%d", len(args)+1))
		args = append(args, filter.RoomID)
	}
	if filter.CollegeID != "" {
		conditions = append(conditions, fmt.Sprintf("r.college_id = $%d", len(args)+1))
		args = append(args, filter.CollegeID)
	}
	if filter.RequestedBy != "" {
		conditions = append(conditions, fmt.Sprintf("b.requested_by = $%d", len(args)+1))
		args = append(args, filter.RequestedBy)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("b.status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("b.booking_date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("b.booking_date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"booking_date": "b.booking_date",
		"created_at":   "b.created_at",
		"status":       "b.status",
	}
	sortColumn, ok := allowedSorts[sortBy]
	if !ok {
		sortColumn = "b.booking_date"
	}
	sortOrder := strings.ToUpper(filter.SortOrder)
	if sortOrder != "ASC" && sortOrder != "DESC" {
		sortOrder = "DESC"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	selectColumns := `b.id, b.room_id, b.booking_date, b.start_time, b.end_time, b.purpose, b.status,
        b.requested_by, b.approved_by, b.approved_at, b.rejection_reason, b.created_at, b.updated_at,
        r.name AS room_name, u.full_name AS requester_name`
	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s, b.start_time ASC LIMIT %d OFFSET %d",
		selectColumns, baseQuery, sortColumn, sortOrder, pageSize, offset)

	var bookings []models.RoomBookingDetail
	if err := r.db.SelectContext(ctx, &bookings, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list bookings: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count bookings: %w", err)
	}
	return bookings, total, nil
}

// FindOverlapping returns PENDING and APPROVED bookings on the same room and
// date whose slot overlaps [startTime, endTime). excludeID skips one booking,
// used when re-checking availability for an approval.
func (r *RoomBookingRepository) FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime, excludeID string) ([]models.RoomBooking, error) {
	query := fmt.Sprintf(`SELECT %s FROM room_bookings
        WHERE room_id = $1 AND booking_date = $2
        AND status IN ('PENDING', 'APPROVED')
        AND start_time < $3 AND end_time > $4`, bookingColumns)
	args := []interface{}{roomID, date, endTime, startTime}
	if excludeID != "" {
		query += fmt.Sprintf(" AND id != $%d", len(args)+1)
		args = append(args, excludeID)
	}
	query += " ORDER BY start_time ASC"

	var conflicts []models.RoomBooking
	if err := r.db.SelectContext(ctx, &conflicts, query, args...); err != nil {
		return nil, fmt.Errorf("find overlapping bookings: %w", err)
	}
	return conflicts, nil
}

// CreateChecked inserts a booking after re-checking overlaps under a row lock
// on the room, closing the race between check and insert. When the slot is
// taken it returns the conflicting bookings and no error.
func (r *RoomBookingRepository) CreateChecked(ctx context.Context, booking *models.RoomBooking) ([]models.RoomBooking, error) {
	if booking.ID == "" {
		booking.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if booking.CreatedAt.IsZero() {
		booking.CreatedAt = now
	}
	booking.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin booking tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	// Serialize concurrent bookings for the same room on the room row.
	const lockQuery = `SELECT id FROM rooms WHERE id = $1 FOR UPDATE`
	var lockedID string
	if err := tx.GetContext(ctx, &lockedID, lockQuery, booking.RoomID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock room: %w", err)
	}

	overlapQuery := fmt.Sprintf(`SELECT %s FROM room_bookings
        WHERE room_id = $1 AND booking_date = $2
        AND status IN ('PENDING', 'APPROVED')
        AND start_time < $3 AND end_time > $4
        ORDER BY start_time ASC`, bookingColumns)
	var conflicts []models.RoomBooking
	if err := tx.SelectContext(ctx, &conflicts, overlapQuery, booking.RoomID, booking.BookingDate, booking.EndTime, booking.StartTime); err != nil {
		return nil, fmt.Errorf("check booking overlap: %w", err)
	}
	if len(conflicts) > 0 {
		return conflicts, nil
	}

	const insertQuery = `INSERT INTO room_bookings (id, room_id, booking_date, start_time, end_time, purpose, status, requested_by, approved_by, approved_at, rejection_reason, created_at, updated_at)
        VALUES (:id, :room_id, :booking_date, :start_time, :end_time, :purpose, :status, :requested_by, :approved_by, :approved_at, :rejection_reason, :created_at, :updated_at)`
	if _, err := tx.NamedExecContext(ctx, insertQuery, booking); err != nil {
		return nil, fmt.Errorf("create booking: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit booking tx: %w", err)
	}
	return nil, nil
}

// UpdateStatus transitions a booking and records the decision metadata.
func (r *RoomBookingRepository) UpdateStatus(ctx context.Context, booking *models.RoomBooking) error {
	booking.UpdatedAt = time.Now().UTC()
	const query = `UPDATE room_bookings
        SET status = :status, approved_by = :approved_by, approved_at = :approved_at, rejection_reason = :rejection_reason, updated_at = :updated_at
        WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, booking); err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	return nil
}

// CountPendingByCollege counts pending bookings across a college's rooms.
func (r *RoomBookingRepository) CountPendingByCollege(ctx context.Context, collegeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM room_bookings b
        JOIN rooms r ON r.id = b.room_id
        WHERE r.college_id = $1 AND b.status = 'PENDING'`
	var total int
	if err := r.db.GetContext(ctx, &total, query, collegeID); err != nil {
		return 0, fmt.Errorf("count pending bookings: %w", err)
	}
	return total, nil
}
