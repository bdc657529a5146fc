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

const collegeColumns = `id, name, code, address, phone, email, created_by, created_at, updated_at`

// CollegeRepository handles persistence of college tenants.
type CollegeRepository struct {
	db *sqlx.DB
}

// NewCollegeRepository constructs the repository.
func NewCollegeRepository(db *sqlx.DB) *CollegeRepository {
	return &CollegeRepository{db: db}
}

// List returns colleges filtered by the provided criteria.
func (r *CollegeRepository) List(ctx context.Context, filter models.CollegeFilter) ([]models.College, int, error) {
	baseQuery := `FROM colleges WHERE 1=1`
	var conditions []string
	var args []interface{}

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

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY %s %s LIMIT %d OFFSET %d", collegeColumns, baseQuery, sortBy, sortOrder, pageSize, offset)

	var colleges []models.College
	if err := r.db.SelectContext(ctx, &colleges, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list colleges: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count colleges: %w", err)
	}
	return colleges, total, nil
}

// FindByID returns a college by identifier.
func (r *CollegeRepository) FindByID(ctx context.Context, id string) (*models.College, error) {
	query := fmt.Sprintf(`SELECT %s FROM colleges WHERE id = $1 LIMIT 1`, collegeColumns)
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find college by id: %w", err)
	}
	return &college, nil
}

// FindByCode returns a college by its shareable join code.
func (r *CollegeRepository) FindByCode(ctx context.Context, code string) (*models.College, error) {
	query := fmt.Sprintf(`SELECT %s FROM colleges WHERE code = $1 LIMIT 1`, collegeColumns)
	var college models.College
	if err := r.db.GetContext(ctx, &college, query, code); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find college by code: %w", err)
	}
	return &college, nil
}

// Create persists a new college.
func (r *CollegeRepository) Create(ctx context.Context, college *models.College) error {
	if college.ID == "" {
		college.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if college.CreatedAt.IsZero() {
		college.CreatedAt = now
	}
	college.UpdatedAt = now
	const query = `INSERT INTO colleges (id, name, code, address, phone, email, created_by, created_at, updated_at)
        VALUES (:id, :name, :code, :address, :phone, :email, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, college); err != nil {
		return fmt.Errorf("create college: %w", err)
	}
	return nil
}

// Update updates mutable fields of a college.
func (r *CollegeRepository) Update(ctx context.Context, college *models.College) error {
	college.UpdatedAt = time.Now().UTC()
	const query = `UPDATE colleges SET name = :name, address = :address, phone = :phone, email = :email, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, college); err != nil {
		return fmt.Errorf("update college: %w", err)
	}
	return nil
}

// Delete removes a college row.
func (r *CollegeRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM colleges WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete college: %w", err)
	}
	return nil
}

// ListLinks returns user membership rows for a college, optionally narrowed by status.
func (r *CollegeRepository) ListLinks(ctx context.Context, collegeID string, status models.CollegeLinkStatus) ([]models.CollegeLink, error) {
	query := `SELECT id AS user_id, full_name, email, role, college_status FROM users WHERE college_id = $1`
	args := []interface{}{collegeID}
	if status != "" {
		query += fmt.Sprintf(" AND college_status = $%d", len(args)+1)
		args = append(args, status)
	}
	query += " ORDER BY full_name ASC"

	var links []models.CollegeLink
	if err := r.db.SelectContext(ctx, &links, query, args...); err != nil {
		return nil, fmt.Errorf("list college links: %w", err)
	}
	return links, nil
}
