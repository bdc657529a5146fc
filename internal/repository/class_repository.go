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

const classColumns = `id, college_id, name, code, teacher_id, created_at, updated_at`

// ClassRepository handles persistence of classes, join requests, memberships
// and faculty assignments.
type ClassRepository struct {
	db *sqlx.DB
}

// NewClassRepository constructs the repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db}
}

// List returns classes filtered by the provided criteria.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, int, error) {
	baseQuery := `FROM classes WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.CollegeID != "" {
		conditions = append(conditions, fmt.Sprintf("college_id = $%d", len(args)+1))
		args = append(args, filter.CollegeID)
	}
	if filter.TeacherID != "" {
		conditions = append(conditions, fmt.Sprintf("teacher_id = $%d", len(args)+1))
		args = append(args, filter.TeacherID)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(name) LIKE $%d OR LOWER(code) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	sortBy := filter.SortBy
	allowedSorts := map[string]bool{"name": true, "code": true, "created_at": true}
	if !allowedSorts[sortBy] {
		sortBy = "created_at"
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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", classColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var classes []models.Class
	if err := r.db.SelectContext(ctx, &classes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list classes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count classes: %w", err)
	}
	return classes, total, nil
}

// FindByID returns a class by identifier.
func (r *ClassRepository) FindByID(ctx context.Context, id string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE id = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by id: %w", err)
	}
	return &class, nil
}

// FindByCode returns a class by its shareable join code.
func (r *ClassRepository) FindByCode(ctx context.Context, code string) (*models.Class, error) {
	query := fmt.Sprintf(`SELECT %s FROM classes WHERE code = $1 LIMIT 1`, classColumns)
	var class models.Class
	if err := r.db.GetContext(ctx, &class, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class by code: %w", err)
	}
	return &class, nil
}

// Create persists a new class.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now
	const query = `INSERT INTO classes (id, college_id, name, code, teacher_id, created_at, updated_at)
        VALUES (:id, :college_id, :name, :code, :teacher_id, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update updates mutable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = time.Now().UTC()
	const query = `UPDATE classes SET name = :name, teacher_id = :teacher_id, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	return nil
}

// Delete removes a class row.
func (r *ClassRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM classes WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete class: %w", err)
	}
	return nil
}

// CountByCollege counts classes within a college.
func (r *ClassRepository) CountByCollege(ctx context.Context, collegeID string) (int, error) {
	const query = `SELECT COUNT(*) FROM classes WHERE college_id = $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, collegeID); err != nil {
		return 0, fmt.Errorf("count classes: %w", err)
	}
	return total, nil
}

// FindJoinRequest returns the pending join request for a student, if any.
func (r *ClassRepository) FindJoinRequest(ctx context.Context, classID, studentID string) (*models.JoinRequest, error) {
	const query = `SELECT id, class_id, student_id, requested_at FROM class_join_requests WHERE class_id = $1 AND student_id = $2 LIMIT 1`
	var req models.JoinRequest
	if err := r.db.GetContext(ctx, &req, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find join request: %w", err)
	}
	return &req, nil
}

// ListJoinRequests returns pending join requests for a class.
func (r *ClassRepository) ListJoinRequests(ctx context.Context, classID string) ([]models.JoinRequest, error) {
	const query = `SELECT id, class_id, student_id, requested_at FROM class_join_requests WHERE class_id = $1 ORDER BY requested_at ASC`
	var requests []models.JoinRequest
	if err := r.db.SelectContext(ctx, &requests, query, classID); err != nil {
		return nil, fmt.Errorf("list join requests: %w", err)
	}
	return requests, nil
}

// FindMember returns the resolved membership row for a student, if any.
func (r *ClassRepository) FindMember(ctx context.Context, classID, studentID string) (*models.ClassMember, error) {
	const query = `SELECT class_id, student_id, status, decided_by, joined_at FROM class_members WHERE class_id = $1 AND student_id = $2 LIMIT 1`
	var member models.ClassMember
	if err := r.db.GetContext(ctx, &member, query, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find class member: %w", err)
	}
	return &member, nil
}

// ListMembers returns resolved memberships for a class with student info.
func (r *ClassRepository) ListMembers(ctx context.Context, classID string, status models.MembershipStatus) ([]models.ClassMemberDetail, error) {
	query := `SELECT m.class_id, m.student_id, m.status, m.decided_by, m.joined_at,
        u.full_name AS student_name, u.email AS student_email
        FROM class_members m
        JOIN users u ON u.id = m.student_id
        WHERE m.class_id = $1`
	args := []interface{}{classID}
	if status != "" {
		query += fmt.Sprintf(" AND m.status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += " ORDER BY u.full_name ASC"

	var members []models.ClassMemberDetail
	if err := r.db.SelectContext(ctx, &members, query, args...); err != nil {
		return nil, fmt.Errorf("list class members: %w", err)
	}
	return members, nil
}

// CreateJoinRequest queues a student's join request and flags the student
// record pending, both within one transaction.
func (r *ClassRepository) CreateJoinRequest(ctx context.Context, req *models.JoinRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.RequestedAt.IsZero() {
		req.RequestedAt = time.Now().UTC()
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin join request tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const insertQuery = `INSERT INTO class_join_requests (id, class_id, student_id, requested_at) VALUES ($1, $2, $3, $4)`
	if _, err := tx.ExecContext(ctx, insertQuery, req.ID, req.ClassID, req.StudentID, req.RequestedAt); err != nil {
		return fmt.Errorf("create join request: %w", err)
	}

	const userQuery = `UPDATE users SET college_status = $2, updated_at = $3 WHERE id = $1`
	if _, err := tx.ExecContext(ctx, userQuery, req.StudentID, models.CollegeLinkPending, time.Now().UTC()); err != nil {
		return fmt.Errorf("flag student pending: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit join request tx: %w", err)
	}
	return nil
}

// ResolveJoinRequest removes the queued request, upserts the membership and,
// on approval, links the student to the class. Everything runs in one
// transaction; sql.ErrNoRows is returned when the request is not queued.
func (r *ClassRepository) ResolveJoinRequest(ctx context.Context, classID, studentID string, status models.MembershipStatus, decidedBy string) (*models.ClassMember, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin resolve tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	const deleteQuery = `DELETE FROM class_join_requests WHERE class_id = $1 AND student_id = $2 RETURNING id`
	var requestID string
	if err := tx.GetContext(ctx, &requestID, deleteQuery, classID, studentID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("dequeue join request: %w", err)
	}

	member := &models.ClassMember{
		ClassID:   classID,
		StudentID: studentID,
		Status:    status,
		DecidedBy: decidedBy,
		JoinedAt:  time.Now().UTC(),
	}
	const upsertQuery = `INSERT INTO class_members (class_id, student_id, status, decided_by, joined_at)
        VALUES ($1, $2, $3, $4, $5)
        ON CONFLICT (class_id, student_id)
        DO UPDATE SET status = EXCLUDED.status, decided_by = EXCLUDED.decided_by, joined_at = EXCLUDED.joined_at`
	if _, err := tx.ExecContext(ctx, upsertQuery, member.ClassID, member.StudentID, member.Status, member.DecidedBy, member.JoinedAt); err != nil {
		return nil, fmt.Errorf("upsert class member: %w", err)
	}

	now := time.Now().UTC()
	if status == models.MembershipApproved {
		const userQuery = `UPDATE users SET class_id = $2, college_status = $3, updated_at = $4 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, userQuery, studentID, classID, models.CollegeLinkApproved, now); err != nil {
			return nil, fmt.Errorf("link student to class: %w", err)
		}
	} else {
		const userQuery = `UPDATE users SET college_status = $2, updated_at = $3 WHERE id = $1`
		if _, err := tx.ExecContext(ctx, userQuery, studentID, models.CollegeLinkRejected, now); err != nil {
			return nil, fmt.Errorf("flag student rejected: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit resolve tx: %w", err)
	}
	return member, nil
}

// ListFacultyAssignments returns the subject assignments for a class.
func (r *ClassRepository) ListFacultyAssignments(ctx context.Context, classID string) ([]models.FacultyAssignment, error) {
	const query = `SELECT id, class_id, faculty_id, subject, assigned_by, assigned_at FROM faculty_assignments WHERE class_id = $1 ORDER BY assigned_at ASC`
	var assignments []models.FacultyAssignment
	if err := r.db.SelectContext(ctx, &assignments, query, classID); err != nil {
		return nil, fmt.Errorf("list faculty assignments: %w", err)
	}
	return assignments, nil
}

// FindFacultyAssignment returns an assignment by identifier.
func (r *ClassRepository) FindFacultyAssignment(ctx context.Context, id string) (*models.FacultyAssignment, error) {
	const query = `SELECT id, class_id, faculty_id, subject, assigned_by, assigned_at FROM faculty_assignments WHERE id = $1 LIMIT 1`
	var assignment models.FacultyAssignment
	if err := r.db.GetContext(ctx, &assignment, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find faculty assignment: %w", err)
	}
	return &assignment, nil
}

// ExistsFacultyAssignment checks for a duplicate (faculty, subject) pair.
func (r *ClassRepository) ExistsFacultyAssignment(ctx context.Context, classID, facultyID, subject string) (bool, error) {
	const query = `SELECT 1 FROM faculty_assignments WHERE class_id = $1 AND faculty_id = $2 AND LOWER(subject) = LOWER($3) LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, facultyID, subject); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check faculty assignment: %w", err)
	}
	return true, nil
}

// IsAssignedFaculty reports whether a faculty member holds any assignment in a class.
func (r *ClassRepository) IsAssignedFaculty(ctx context.Context, classID, facultyID string) (bool, error) {
	const query = `SELECT 1 FROM faculty_assignments WHERE class_id = $1 AND faculty_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, classID, facultyID); err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("check assigned faculty: %w", err)
	}
	return true, nil
}

// CreateFacultyAssignment persists a new assignment.
func (r *ClassRepository) CreateFacultyAssignment(ctx context.Context, assignment *models.FacultyAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now().UTC()
	}
	const query = `INSERT INTO faculty_assignments (id, class_id, faculty_id, subject, assigned_by, assigned_at)
        VALUES (:id, :class_id, :faculty_id, :subject, :assigned_by, :assigned_at)`
	if _, err := r.db.NamedExecContext(ctx, query, assignment); err != nil {
		return fmt.Errorf("create faculty assignment: %w", err)
	}
	return nil
}

// DeleteFacultyAssignment removes an assignment row.
func (r *ClassRepository) DeleteFacultyAssignment(ctx context.Context, id string) error {
	const query = `DELETE FROM faculty_assignments WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete faculty assignment: %w", err)
	}
	return nil
}

// ListClassIDsForStudent returns the classes a student is an approved member of.
func (r *ClassRepository) ListClassIDsForStudent(ctx context.Context, studentID string) ([]string, error) {
	const query = `SELECT class_id FROM class_members WHERE student_id = $1 AND status = 'APPROVED'`
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, query, studentID); err != nil {
		return nil, fmt.Errorf("list classes for student: %w", err)
	}
	return ids, nil
}
