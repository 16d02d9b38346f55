package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/mess-attendance-api/internal/mealtime"
	"github.com/noah-isme/mess-attendance-api/internal/models"
	"github.com/noah-isme/mess-attendance-api/internal/service"
	appErrors "github.com/noah-isme/mess-attendance-api/pkg/errors"
)

type attendanceServiceMock struct {
	markResp *models.ScanEvent
	markErr  error
	feed     []models.TrackedScan
	feedHit  bool
	feedErr  error
	grid     *models.AttendanceGrid
	gridErr  error

	gotField string
	gotQuery string
	gotFrom  string
	gotTo    string
}

func (m *attendanceServiceMock) Mark(ctx context.Context, req service.MarkRequest) (*models.ScanEvent, error) {
	return m.markResp, m.markErr
}

func (m *attendanceServiceMock) Track(ctx context.Context, field, query string) ([]models.TrackedScan, bool, error) {
	m.gotField = field
	m.gotQuery = query
	return m.feed, m.feedHit, m.feedErr
}

func (m *attendanceServiceMock) Grid(ctx context.Context, from, to string) (*models.AttendanceGrid, error) {
	m.gotFrom = from
	m.gotTo = to
	return m.grid, m.gridErr
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func TestAttendanceHandlerMark(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{
		markResp: &models.ScanEvent{ID: "scan-1", UniqueID: "badge-1", ScanDate: "2024-05-01", ScanClock: "08:00:00 AM"},
	}
	handler := NewAttendanceHandler(mockSvc)

	payload, _ := json.Marshal(service.MarkRequest{UniqueID: "badge-1"})
	c, w := newGinContext(http.MethodPost, "/attendance", payload)

	handler.Mark(c)
	require.Equal(t, http.StatusCreated, w.Code)
}

func TestAttendanceHandlerMarkUnknownBadge(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{markErr: appErrors.ErrNotFound}
	handler := NewAttendanceHandler(mockSvc)

	payload, _ := json.Marshal(service.MarkRequest{UniqueID: "badge-missing"})
	c, w := newGinContext(http.MethodPost, "/attendance", payload)

	handler.Mark(c)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestAttendanceHandlerTrackPassesFieldAndQuery(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{
		feed: []models.TrackedScan{
			{ScanEvent: models.ScanEvent{UniqueID: "badge-1", ScanClock: "01:00:00 PM"}, Meal: mealtime.MealLunch},
		},
		feedHit: true,
	}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/attendance?field=meal&q=lunch", nil)

	handler.Track(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "meal", mockSvc.gotField)
	assert.Equal(t, "lunch", mockSvc.gotQuery)

	var envelope struct {
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	assert.Equal(t, true, envelope.Meta["cache"])
}

func TestAttendanceHandlerGrid(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{
		grid: &models.AttendanceGrid{Dates: []string{"2024-05-01"}},
	}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/attendance/grid?from=2024-05-01&to=2024-05-02", nil)

	handler.Grid(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-05-01", mockSvc.gotFrom)
	assert.Equal(t, "2024-05-02", mockSvc.gotTo)
}

func TestAttendanceHandlerGridMissingRange(t *testing.T) {
	gin.SetMode(gin.TestMode)
	mockSvc := &attendanceServiceMock{gridErr: appErrors.ErrMissingDateRange}
	handler := NewAttendanceHandler(mockSvc)

	c, w := newGinContext(http.MethodGet, "/attendance/grid", nil)

	handler.Grid(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}
