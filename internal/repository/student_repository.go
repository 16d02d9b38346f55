package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/mess-attendance-api/internal/models"
)

// StudentRepository manages persistence for registered students.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

const studentColumns = "id, unique_id, full_name, roll_no, branch, semester, phone, fee_paid, created_at, updated_at"

// List returns students matching the provided filters.
func (r *StudentRepository) List(ctx context.Context, filter models.StudentFilter) ([]models.Student, int, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(full_name) LIKE $%d OR unique_id LIKE $%d OR roll_no LIKE $%d)", len(args)+1, len(args)+2, len(args)+3))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	whereClause := strings.Join(conditions, " AND ")

	sortBy := filter.SortBy
	allowedSorts := map[string]string{
		"full_name":  "full_name",
		"roll_no":    "roll_no",
		"created_at": "created_at",
	}
	if sortBy == "" {
		sortBy = "roll_no"
	}
	column, ok := allowedSorts[sortBy]
	if !ok {
		column = "roll_no"
	}
	order := strings.ToUpper(filter.SortOrder)
	if order != "ASC" && order != "DESC" {
		order = "ASC"
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s FROM students WHERE %s ORDER BY %s %s LIMIT %d OFFSET %d",
		studentColumns, whereClause, column, order, size, offset)

	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list students: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM students WHERE %s", whereClause)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count students: %w", err)
	}
	return students, total, nil
}

// ListAll returns the full registry snapshot used for aggregation lookups.
func (r *StudentRepository) ListAll(ctx context.Context) ([]models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students ORDER BY roll_no ASC", studentColumns)
	var students []models.Student
	if err := r.db.SelectContext(ctx, &students, query); err != nil {
		return nil, fmt.Errorf("list all students: %w", err)
	}
	return students, nil
}

// FindByUniqueID returns the student registered with the given badge code.
func (r *StudentRepository) FindByUniqueID(ctx context.Context, uniqueID string) (*models.Student, error) {
	query := fmt.Sprintf("SELECT %s FROM students WHERE unique_id = $1", studentColumns)
	var student models.Student
	if err := r.db.GetContext(ctx, &student, query, uniqueID); err != nil {
		return nil, err
	}
	return &student, nil
}

// ExistsByUniqueID reports whether a badge code is already registered.
func (r *StudentRepository) ExistsByUniqueID(ctx context.Context, uniqueID string) (bool, error) {
	const query = "SELECT EXISTS (SELECT 1 FROM students WHERE unique_id = $1)"
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, uniqueID); err != nil {
		return false, fmt.Errorf("check unique id: %w", err)
	}
	return exists, nil
}

// Create inserts a new student row.
func (r *StudentRepository) Create(ctx context.Context, student *models.Student) error {
	now := time.Now().UTC()
	if student.ID == "" {
		student.ID = uuid.NewString()
	}
	student.CreatedAt = now
	student.UpdatedAt = now
	const query = `INSERT INTO students (id, unique_id, full_name, roll_no, branch, semester, phone, fee_paid, created_at, updated_at)
VALUES (:id, :unique_id, :full_name, :roll_no, :branch, :semester, :phone, :fee_paid, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, student); err != nil {
		return fmt.Errorf("create student: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of a registered student.
func (r *StudentRepository) Update(ctx context.Context, student *models.Student) error {
	student.UpdatedAt = time.Now().UTC()
	const query = `UPDATE students SET full_name = :full_name, roll_no = :roll_no, branch = :branch,
semester = :semester, phone = :phone, fee_paid = :fee_paid, updated_at = :updated_at
WHERE unique_id = :unique_id`
	result, err := r.db.NamedExecContext(ctx, query, student)
	if err != nil {
		return fmt.Errorf("update student: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("update student: no row for %s", student.UniqueID)
	}
	return nil
}

// Delete unregisters a student by badge code.
func (r *StudentRepository) Delete(ctx context.Context, uniqueID string) error {
	const query = "DELETE FROM students WHERE unique_id = $1"
	if _, err := r.db.ExecContext(ctx, query, uniqueID); err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	return nil
}
