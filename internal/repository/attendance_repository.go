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

// AttendanceRepository persists badge scans. The table is append-only: rows
// are inserted once and never mutated.
type AttendanceRepository struct {
	db *sqlx.DB
}

// NewAttendanceRepository constructs the repository.
func NewAttendanceRepository(db *sqlx.DB) *AttendanceRepository {
	return &AttendanceRepository{db: db}
}

const scanColumns = "id, unique_id, roll_no, status, scan_date, scan_clock, scanned_at, created_at"

// Insert appends a scan event.
func (r *AttendanceRepository) Insert(ctx context.Context, event *models.ScanEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO attendance_scans (id, unique_id, roll_no, status, scan_date, scan_clock, scanned_at, created_at)
VALUES (:id, :unique_id, :roll_no, :status, :scan_date, :scan_clock, :scanned_at, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, event); err != nil {
		return fmt.Errorf("insert scan: %w", err)
	}
	return nil
}

// List returns scans matching the filter, oldest first so downstream
// grouping sees events in wall-clock order.
func (r *AttendanceRepository) List(ctx context.Context, filter models.ScanFilter) ([]models.ScanEvent, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if filter.UniqueID != "" {
		conditions = append(conditions, fmt.Sprintf("unique_id = $%d", len(args)+1))
		args = append(args, filter.UniqueID)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("scanned_at >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("scanned_at <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 5000
	}
	if limit > 10000 {
		limit = 10000
	}

	query := fmt.Sprintf("SELECT %s FROM attendance_scans WHERE %s ORDER BY scanned_at ASC LIMIT %d",
		scanColumns, strings.Join(conditions, " AND "), limit)

	var events []models.ScanEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	return events, nil
}

// ListRange returns every scan inside the optional inclusive window, oldest
// first, with no row cap. Grid and export aggregation must see the complete
// event set; a capped read would render dropped scans as absences.
func (r *AttendanceRepository) ListRange(ctx context.Context, from, to *time.Time) ([]models.ScanEvent, error) {
	conditions := []string{"1=1"}
	args := []interface{}{}

	if from != nil {
		conditions = append(conditions, fmt.Sprintf("scanned_at >= $%d", len(args)+1))
		args = append(args, *from)
	}
	if to != nil {
		conditions = append(conditions, fmt.Sprintf("scanned_at <= $%d", len(args)+1))
		args = append(args, *to)
	}

	query := fmt.Sprintf("SELECT %s FROM attendance_scans WHERE %s ORDER BY scanned_at ASC",
		scanColumns, strings.Join(conditions, " AND "))

	var events []models.ScanEvent
	if err := r.db.SelectContext(ctx, &events, query, args...); err != nil {
		return nil, fmt.Errorf("list scans in range: %w", err)
	}
	return events, nil
}
