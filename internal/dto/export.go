package dto

import (
	"time"

	"github.com/noah-isme/mess-attendance-api/internal/models"
)

// ExportRequest is the payload to queue a spreadsheet export.
type ExportRequest struct {
	Type     models.ExportType   `json:"type" validate:"required"`
	Format   models.ExportFormat `json:"format" validate:"required"`
	DateFrom string              `json:"dateFrom"`
	DateTo   string              `json:"dateTo"`
}

// ExportJobResponse acknowledges a queued job.
type ExportJobResponse struct {
	ID     string              `json:"id"`
	Status models.ExportStatus `json:"status"`
}

// ExportStatusResponse exposes job progress to clients.
type ExportStatusResponse struct {
	ID           string              `json:"id"`
	Type         models.ExportType   `json:"type"`
	Format       models.ExportFormat `json:"format"`
	Status       models.ExportStatus `json:"status"`
	ResultURL    *string             `json:"result_url,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
}
