package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/mess-attendance-api/internal/models"
	"github.com/noah-isme/mess-attendance-api/internal/service"
	appErrors "github.com/noah-isme/mess-attendance-api/pkg/errors"
	"github.com/noah-isme/mess-attendance-api/pkg/response"
)

type attendanceService interface {
	Mark(ctx context.Context, req service.MarkRequest) (*models.ScanEvent, error)
	Track(ctx context.Context, field, query string) ([]models.TrackedScan, bool, error)
	Grid(ctx context.Context, from, to string) (*models.AttendanceGrid, error)
}

// AttendanceHandler exposes scan and tracking endpoints.
type AttendanceHandler struct {
	attendance attendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance attendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// Mark godoc
// @Summary Record a badge scan
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body service.MarkRequest true "Scan payload"
// @Success 201 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req service.MarkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	event, err := h.attendance.Mark(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, event)
}

// Track godoc
// @Summary Tracking feed with field-scoped search
// @Tags Attendance
// @Produce json
// @Param field query string false "Search field (uniqueId, rollNo, name, semester, feePaid, meal, date)"
// @Param q query string false "Search query"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) Track(c *gin.Context) {
	feed, cacheHit, err := h.attendance.Track(c.Request.Context(), c.Query("field"), c.Query("q"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, feed, nil, map[string]interface{}{"cache": cacheHit})
}

// Grid godoc
// @Summary Per-student per-date meal grid
// @Tags Attendance
// @Produce json
// @Param from query string true "Range start (YYYY-MM-DD)"
// @Param to query string true "Range end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /attendance/grid [get]
func (h *AttendanceHandler) Grid(c *gin.Context) {
	grid, err := h.attendance.Grid(c.Request.Context(), c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grid, nil)
}
