package service

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campus-connect/campus-api/internal/models"
	appErrors "github.com/campus-connect/campus-api/pkg/errors"
)

type bookingRepository interface {
	FindByID(ctx context.Context, id string) (*models.RoomBooking, error)
	List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, int, error)
	FindOverlapping(ctx context.Context, roomID string, date time.Time, startTime, endTime, excludeID string) ([]models.RoomBooking, error)
	CreateChecked(ctx context.Context, booking *models.RoomBooking) ([]models.RoomBooking, error)
	UpdateStatus(ctx context.Context, booking *models.RoomBooking) error
}

type bookingRoomReader interface {
	FindByID(ctx context.Context, id string) (*models.Room, error)
}

type bookingAuditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Zero-padded 24-hour wall clock. Lexical comparison of two valid values
// matches chronological order.
var slotTimePattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// CreateBookingRequest is the payload for requesting a room slot.
type CreateBookingRequest struct {
	RoomID      string `json:"room_id" validate:"required"`
	BookingDate string `json:"booking_date" validate:"required"`
	StartTime   string `json:"start_time" validate:"required"`
	EndTime     string `json:"end_time" validate:"required"`
	Purpose     string `json:"purpose" validate:"required"`
}

// DecideBookingRequest approves or rejects a pending booking.
type DecideBookingRequest struct {
	Approve bool   `json:"approve"`
	Reason  string `json:"reason"`
}

// BookingLimits bounds the bookable day.
type BookingLimits struct {
	DayStart string
	DayEnd   string
}

// RoomBookingService orchestrates the booking workflow: availability checks,
// slot requests and the pending/approved/rejected/canceled lifecycle.
type RoomBookingService struct {
	repo      bookingRepository
	rooms     bookingRoomReader
	audits    bookingAuditWriter
	limits    BookingLimits
	validator *validator.Validate
	logger    *zap.Logger
}

// NewRoomBookingService constructs a RoomBookingService.
func NewRoomBookingService(repo bookingRepository, rooms bookingRoomReader, audits bookingAuditWriter, limits BookingLimits, validate *validator.Validate, logger *zap.Logger) *RoomBookingService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if limits.DayStart == "" {
		limits.DayStart = "07:00"
	}
	if limits.DayEnd == "" {
		limits.DayEnd = "22:00"
	}
	return &RoomBookingService{repo: repo, rooms: rooms, audits: audits, limits: limits, validator: validate, logger: logger}
}

// CheckAvailability reports whether [startTime, endTime) on the given date is
// free for a room. Two slots conflict when each starts before the other ends,
// so back-to-back slots sharing a boundary do not. Only PENDING and APPROVED
// bookings block a slot.
func (s *RoomBookingService) CheckAvailability(ctx context.Context, roomID, date, startTime, endTime string) (*models.Availability, error) {
	bookingDate, err := s.validateSlot(date, startTime, endTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.rooms.FindByID(ctx, roomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	conflicts, err := s.repo.FindOverlapping(ctx, roomID, bookingDate, startTime, endTime, "")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check availability")
	}
	return &models.Availability{IsAvailable: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// List returns bookings with pagination metadata.
func (s *RoomBookingService) List(ctx context.Context, filter models.RoomBookingFilter) ([]models.RoomBookingDetail, *models.Pagination, error) {
	bookings, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bookings")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 {
		size = 20
	}
	return bookings, &models.Pagination{Page: page, PageSize: size, TotalCount: total}, nil
}

// Get returns a booking by ID.
func (s *RoomBookingService) Get(ctx context.Context, id string) (*models.RoomBooking, error) {
	booking, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "booking not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load booking")
	}
	return booking, nil
}

// Create requests a slot. The booking starts PENDING; the insert re-checks
// availability under a room lock, so a slot taken between check and insert
// comes back as a conflict rather than a double booking.
func (s *RoomBookingService) Create(ctx context.Context, actor *models.JWTClaims, req CreateBookingRequest) (*models.RoomBooking, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid booking payload")
	}
	bookingDate, err := s.validateSlot(req.BookingDate, req.StartTime, req.EndTime)
	if err != nil {
		return nil, err
	}

	if _, err := s.rooms.FindByID(ctx, req.RoomID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load room")
	}

	booking := &models.RoomBooking{
		RoomID:      req.RoomID,
		BookingDate: bookingDate,
		StartTime:   req.StartTime,
		EndTime:     req.EndTime,
		Purpose:     req.Purpose,
		Status:      models.BookingStatusPending,
		RequestedBy: actor.UserID,
	}

	conflicts, err := s.repo.CreateChecked(ctx, booking)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "room not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create booking")
	}
	if len(conflicts) > 0 {
		return nil, appErrors.Clone(appErrors.ErrConflict, "requested slot overlaps an existing booking")
	}
	return booking, nil
}

// Decide approves or rejects a pending booking. Approval re-validates
// availability excluding the booking itself, so two pending requests for the
// same slot cannot both be approved.
func (s *RoomBookingService) Decide(ctx context.Context, actor *models.JWTClaims, id string, req DecideBookingRequest) (*models.RoomBooking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.Status != models.BookingStatusPending {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "only pending bookings can be decided")
	}

	now := time.Now().UTC()
	if req.Approve {
		conflicts, err := s.repo.FindOverlapping(ctx, booking.RoomID, booking.BookingDate, booking.StartTime, booking.EndTime, booking.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to re-check availability")
		}
		approvedConflict := false
		for _, c := range conflicts {
			if c.Status == models.BookingStatusApproved {
				approvedConflict = true
				break
			}
		}
		if approvedConflict {
			return nil, appErrors.Clone(appErrors.ErrConflict, "slot was approved for another booking")
		}
		booking.Status = models.BookingStatusApproved
		booking.ApprovedBy = &actor.UserID
		booking.ApprovedAt = &now
		booking.RejectionReason = nil
	} else {
		booking.Status = models.BookingStatusRejected
		booking.ApprovedBy = &actor.UserID
		booking.ApprovedAt = &now
		if req.Reason != "" {
			reason := req.Reason
			booking.RejectionReason = &reason
		}
	}

	if err := s.repo.UpdateStatus(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update booking")
	}

	if err := s.audits.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionBookingDecide,
		Resource:   "room_bookings",
		ResourceID: &booking.ID,
		NewValues:  []byte(`{"status":"` + string(booking.Status) + `"}`),
	}); err != nil {
		s.logger.Warn("failed to record booking audit log", zap.Error(err))
	}
	return booking, nil
}

// Cancel releases a booking's slot. Only the requester or an admin may
// cancel, and only while the booking is PENDING or APPROVED.
func (s *RoomBookingService) Cancel(ctx context.Context, actor *models.JWTClaims, id string) (*models.RoomBooking, error) {
	booking, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if booking.RequestedBy != actor.UserID && actor.Role != models.RoleAdmin {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "not allowed to cancel this booking")
	}
	if booking.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrInvalidState, "booking is already closed")
	}

	booking.Status = models.BookingStatusCanceled
	if err := s.repo.UpdateStatus(ctx, booking); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to cancel booking")
	}
	return booking, nil
}

// validateSlot checks the date and slot formats, the slot ordering and the
// bookable day bounds, returning the parsed date.
func (s *RoomBookingService) validateSlot(date, startTime, endTime string) (time.Time, error) {
	bookingDate, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "booking date must be YYYY-MM-DD")
	}
	if !slotTimePattern.MatchString(startTime) || !slotTimePattern.MatchString(endTime) {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "times must be zero-padded HH:MM")
	}
	if startTime >= endTime {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "start time must be before end time")
	}
	if startTime < s.limits.DayStart || endTime > s.limits.DayEnd {
		return time.Time{}, appErrors.Clone(appErrors.ErrValidation, "slot is outside bookable hours")
	}
	return bookingDate, nil
}
