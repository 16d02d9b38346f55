package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mess-attendance-api/internal/models"
)

func scanRows() *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "unique_id", "roll_no", "status", "scan_date", "scan_clock", "scanned_at", "created_at"}).
		AddRow("scan-1", "badge-1", "21CS001", "Present", "2024-05-01", "08:00:00 AM", time.Now(), time.Now())
}

func TestAttendanceRepositoryInsert(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectExec("INSERT INTO attendance_scans").
		WithArgs(sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	event := &models.ScanEvent{
		UniqueID:  "badge-1",
		RollNo:    "21CS001",
		Status:    "Present",
		ScanDate:  "2024-05-01",
		ScanClock: "08:00:00 AM",
		ScannedAt: time.Now().UTC(),
	}
	err := repo.Insert(context.Background(), event)
	require.NoError(t, err)
	assert.NotEmpty(t, event.ID)
	assert.False(t, event.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryList(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_scans WHERE 1=1 ORDER BY scanned_at ASC LIMIT 5000")).
		WillReturnRows(scanRows())

	events, err := repo.List(context.Background(), models.ScanFilter{})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListWithRange(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("unique_id = $1 AND scanned_at >= $2 AND scanned_at <= $3 ORDER BY scanned_at ASC LIMIT 100")).
		WithArgs("badge-1", from, to).
		WillReturnRows(scanRows())

	events, err := repo.List(context.Background(), models.ScanFilter{
		UniqueID: "badge-1",
		DateFrom: &from,
		DateTo:   &to,
		Limit:    100,
	})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListClampsOversizedLimit(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("ORDER BY scanned_at ASC LIMIT 10000") + "$").
		WillReturnRows(scanRows())

	events, err := repo.List(context.Background(), models.ScanFilter{Limit: 50000})
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListRangeHasNoRowCap(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	from := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 5, 31, 23, 59, 59, 0, time.UTC)
	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_scans WHERE 1=1 AND scanned_at >= $1 AND scanned_at <= $2 ORDER BY scanned_at ASC") + "$").
		WithArgs(from, to).
		WillReturnRows(scanRows())

	events, err := repo.ListRange(context.Background(), &from, &to)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAttendanceRepositoryListRangeUnbounded(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewAttendanceRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM attendance_scans WHERE 1=1 ORDER BY scanned_at ASC") + "$").
		WillReturnRows(scanRows())

	events, err := repo.ListRange(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Len(t, events, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}
