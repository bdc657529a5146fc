package models

import "time"

// RoomType categorises bookable rooms.
type RoomType string

const (
	RoomTypeClassroom  RoomType = "CLASSROOM"
	RoomTypeLab        RoomType = "LAB"
	RoomTypeAuditorium RoomType = "AUDITORIUM"
	RoomTypeSeminar    RoomType = "SEMINAR"
)

// Valid reports whether the room type is a supported value.
func (t RoomType) Valid() bool {
	switch t {
	case RoomTypeClassroom, RoomTypeLab, RoomTypeAuditorium, RoomTypeSeminar:
		return true
	default:
		return false
	}
}

// Room represents a bookable room owned by a college.
type Room struct {
	ID         string    `db:"id" json:"id"`
	CollegeID  string    `db:"college_id" json:"college_id"`
	Name       string    `db:"name" json:"name"`
	Type       RoomType  `db:"type" json:"type"`
	Capacity   int       `db:"capacity" json:"capacity"`
	Facilities string    `db:"facilities" json:"facilities"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time `db:"updated_at" json:"updated_at"`
}

// RoomFilter defines filter criteria for listing rooms.
type RoomFilter struct {
	CollegeID   string
	Type        RoomType
	MinCapacity int
	Search      string
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// BookingStatus represents the lifecycle of a room booking.
type BookingStatus string

const (
	BookingStatusPending  BookingStatus = "PENDING"
	BookingStatusApproved BookingStatus = "APPROVED"
	BookingStatusRejected BookingStatus = "REJECTED"
	BookingStatusCanceled BookingStatus = "CANCELED"
)

// Terminal reports whether no further transition is allowed from the status.
func (s BookingStatus) Terminal() bool {
	return s == BookingStatusRejected || s == BookingStatusCanceled
}

// RoomBooking reserves a half-open [StartTime, EndTime) slot on a single day.
// Times are zero-padded 24-hour HH:MM strings, so lexical order matches
// chronological order.
type RoomBooking struct {
	ID              string        `db:"id" json:"id"`
	RoomID          string        `db:"room_id" json:"room_id"`
	BookingDate     time.Time     `db:"booking_date" json:"booking_date"`
	StartTime       string        `db:"start_time" json:"start_time"`
	EndTime         string        `db:"end_time" json:"end_time"`
	Purpose         string        `db:"purpose" json:"purpose"`
	Status          BookingStatus `db:"status" json:"status"`
	RequestedBy     string        `db:"requested_by" json:"requested_by"`
	ApprovedBy      *string       `db:"approved_by" json:"approved_by,omitempty"`
	ApprovedAt      *time.Time    `db:"approved_at" json:"approved_at,omitempty"`
	RejectionReason *string       `db:"rejection_reason" json:"rejection_reason,omitempty"`
	CreatedAt       time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time     `db:"updated_at" json:"updated_at"`
}

// RoomBookingDetail enriches RoomBooking with room and requester info.
type RoomBookingDetail struct {
	RoomBooking
	RoomName      string `db:"room_name" json:"room_name"`
	RequesterName string `db:"requester_name" json:"requester_name"`
}

// RoomBookingFilter defines filter criteria for listing bookings.
type RoomBookingFilter struct {
	CollegeID   string
	RoomID      string
	RequestedBy string
	Status      BookingStatus
	DateFrom    *time.Time
	DateTo      *time.Time
	Page        int
	PageSize    int
	SortBy      string
	SortOrder   string
}

// Availability is the result of a room availability check.
type Availability struct {
	IsAvailable bool          `json:"is_available"`
	Conflicts   []RoomBooking `json:"conflicting_bookings,omitempty"`
}
