package models

import "time"

// Class represents an academic class owned by a teaching faculty member.
type Class struct {
	ID        string    `db:"id" json:"id"`
	CollegeID string    `db:"college_id" json:"college_id"`
	Name      string    `db:"name" json:"name"`
	Code      string    `db:"code" json:"code"`
	TeacherID string    `db:"teacher_id" json:"teacher_id"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// ClassFilter defines filter criteria for listing classes.
type ClassFilter struct {
	CollegeID string
	TeacherID string
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// JoinRequest is a student's pending request to join a class.
type JoinRequest struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	StudentID   string    `db:"student_id" json:"student_id"`
	RequestedAt time.Time `db:"requested_at" json:"requested_at"`
}

// MembershipStatus is the resolved state of a student's class membership.
type MembershipStatus string

const (
	MembershipApproved MembershipStatus = "APPROVED"
	MembershipRejected MembershipStatus = "REJECTED"
)

// ClassMember is the resolved membership row for a student, at most one per
// (class, student) pair.
type ClassMember struct {
	ClassID   string           `db:"class_id" json:"class_id"`
	StudentID string           `db:"student_id" json:"student_id"`
	Status    MembershipStatus `db:"status" json:"status"`
	DecidedBy string           `db:"decided_by" json:"decided_by"`
	JoinedAt  time.Time        `db:"joined_at" json:"joined_at"`
}

// ClassMemberDetail enriches ClassMember with student info.
type ClassMemberDetail struct {
	ClassMember
	StudentName  string `db:"student_name" json:"student_name"`
	StudentEmail string `db:"student_email" json:"student_email"`
}

// FacultyAssignment maps a faculty member to a subject within a class.
type FacultyAssignment struct {
	ID         string    `db:"id" json:"id"`
	ClassID    string    `db:"class_id" json:"class_id"`
	FacultyID  string    `db:"faculty_id" json:"faculty_id"`
	Subject    string    `db:"subject" json:"subject"`
	AssignedBy string    `db:"assigned_by" json:"assigned_by"`
	AssignedAt time.Time `db:"assigned_at" json:"assigned_at"`
}

// EnrollmentDecision expresses the approver's verdict on a join request.
type EnrollmentDecision string

const (
	DecisionApprove EnrollmentDecision = "approve"
	DecisionReject  EnrollmentDecision = "reject"
)

// Valid reports whether the decision is a supported value.
func (d EnrollmentDecision) Valid() bool {
	return d == DecisionApprove || d == DecisionReject
}
