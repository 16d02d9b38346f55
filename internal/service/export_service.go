package service

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/mess-attendance-api/internal/mealtime"
	"github.com/noah-isme/mess-attendance-api/internal/models"
	"github.com/noah-isme/mess-attendance-api/pkg/export"
	"github.com/noah-isme/mess-attendance-api/pkg/storage"
)

var identityHeaders = []string{"Roll No", "Name", "Semester", "Fee Paid"}

type attendanceProvider interface {
	Grid(ctx context.Context, from, to string) (*models.AttendanceGrid, error)
	History(ctx context.Context) ([]models.TrackedScan, error)
}

type exportFileStorage interface {
	Save(filename string, data []byte) (string, error)
	Open(filename string) (*os.File, error)
	Delete(filename string) error
	CleanupOlderThan(ttl time.Duration) ([]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// ExportConfig tunes export behaviour.
type ExportConfig struct {
	APIPrefix string
	ResultTTL time.Duration
}

// ExportResult captures successful generation metadata.
type ExportResult struct {
	RelativePath string
	Token        string
	URL          string
	Format       models.ExportFormat
	ExpiresAt    time.Time
}

// ExportService builds spreadsheet datasets and persists rendered files.
type ExportService struct {
	attendance attendanceProvider
	storage    exportFileStorage
	csv        csvRenderer
	pdf        pdfRenderer
	signer     *storage.SignedURLSigner
	logger     *zap.Logger
	cfg        ExportConfig
}

// NewExportService constructs an ExportService.
func NewExportService(attendance attendanceProvider, store exportFileStorage, signer *storage.SignedURLSigner, cfg ExportConfig, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.ResultTTL <= 0 {
		cfg.ResultTTL = 24 * time.Hour
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{
		attendance: attendance,
		storage:    store,
		csv:        csv,
		pdf:        pdf,
		signer:     signer,
		logger:     logger,
		cfg:        cfg,
	}
}

// Generate builds the dataset according to the job definition and stores the
// rendered export.
func (s *ExportService) Generate(ctx context.Context, job *models.ExportJob) (*ExportResult, error) {
	if job == nil {
		return nil, fmt.Errorf("job nil")
	}
	dataset, title, err := s.buildDataset(ctx, job)
	if err != nil {
		return nil, err
	}

	var payload []byte
	switch job.Params.Format {
	case models.ExportFormatCSV:
		payload, err = s.csv.Render(dataset)
	case models.ExportFormatPDF:
		payload, err = s.pdf.Render(dataset, title)
	default:
		err = fmt.Errorf("unsupported format %s", job.Params.Format)
	}
	if err != nil {
		return nil, err
	}

	filename := buildFilename(job)
	relPath, err := s.storage.Save(filename, payload)
	if err != nil {
		return nil, err
	}

	token, expiresAt, err := s.signer.Generate(job.ID, relPath)
	if err != nil {
		return nil, err
	}
	prefix := strings.TrimRight(s.cfg.APIPrefix, "/")
	if prefix == "" {
		prefix = "/api/v1"
	}
	signedURL := fmt.Sprintf("%s/export/%s", prefix, token)

	return &ExportResult{
		RelativePath: relPath,
		Token:        token,
		URL:          signedURL,
		Format:       job.Params.Format,
		ExpiresAt:    expiresAt,
	}, nil
}

// ParseToken validates download token metadata.
func (s *ExportService) ParseToken(token string, allowExpired bool) (jobID, relPath string, expiresAt time.Time, err error) {
	return s.signer.Parse(token, allowExpired)
}

// Open returns a handle to the stored file.
func (s *ExportService) Open(relPath string) (*os.File, error) {
	return s.storage.Open(relPath)
}

// Delete removes a stored export file.
func (s *ExportService) Delete(relPath string) error {
	return s.storage.Delete(relPath)
}

// Cleanup removes files older than ttl (defaults to configured ResultTTL when ttl <= 0).
func (s *ExportService) Cleanup(ttl time.Duration) ([]string, error) {
	if ttl <= 0 {
		ttl = s.cfg.ResultTTL
	}
	return s.storage.CleanupOlderThan(ttl)
}

func (s *ExportService) buildDataset(ctx context.Context, job *models.ExportJob) (export.Dataset, string, error) {
	switch job.Type {
	case models.ExportTypeGrid:
		return s.buildGridDataset(ctx, job.Params)
	case models.ExportTypeRaw:
		return s.buildRawDataset(ctx, job.Params)
	default:
		return export.Dataset{}, "", fmt.Errorf("unsupported export type %s", job.Type)
	}
}

// buildGridDataset lays out one row per scanned student with four status
// columns per date, dates in chronological order. Cells without a scan
// render as absent.
func (s *ExportService) buildGridDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	grid, err := s.attendance.Grid(ctx, params.DateFrom, params.DateTo)
	if err != nil {
		return export.Dataset{}, "", err
	}

	headers := make([]string, 0, len(identityHeaders)+4*len(grid.Dates))
	headers = append(headers, identityHeaders...)
	for _, date := range grid.Dates {
		for _, meal := range mealtime.Meals() {
			headers = append(headers, fmt.Sprintf("%s %s", date, meal))
		}
	}

	rows := make([]map[string]string, 0, len(grid.Rows))
	for _, gridRow := range grid.Rows {
		row := map[string]string{
			"Roll No":  gridRow.RollNo,
			"Name":     gridRow.Name,
			"Semester": gridRow.Semester,
			"Fee Paid": gridRow.FeePaid,
		}
		for _, date := range grid.Dates {
			slots, ok := gridRow.Cells[date]
			if !ok {
				slots = models.EmptySlots()
			}
			for _, meal := range mealtime.Meals() {
				row[fmt.Sprintf("%s %s", date, meal)] = string(slots.Status(meal))
			}
		}
		rows = append(rows, row)
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	title := fmt.Sprintf("Mess Attendance %s to %s", params.DateFrom, params.DateTo)
	return dataset, title, nil
}

// buildRawDataset lists every scan with its derived serving window; the four
// status columns reflect that single scan.
func (s *ExportService) buildRawDataset(ctx context.Context, params models.ExportJobParams) (export.Dataset, string, error) {
	feed, err := s.attendance.History(ctx)
	if err != nil {
		return export.Dataset{}, "", err
	}
	if params.DateFrom != "" && params.DateTo != "" {
		feed = filterFeedByDate(feed, params.DateFrom, params.DateTo)
	}

	headers := []string{"Unique ID", "Roll No", "Date", "Time", "Meal Type", "Breakfast Status", "Lunch Status", "Snacks Status", "Dinner Status"}
	rows := make([]map[string]string, 0, len(feed))
	for _, rec := range feed {
		slots := models.EmptySlots()
		slots.Mark(rec.Meal)
		rows = append(rows, map[string]string{
			"Unique ID":        rec.UniqueID,
			"Roll No":          displayValue(rec.RollNo),
			"Date":             rec.ScanDate,
			"Time":             rec.ScanClock,
			"Meal Type":        string(rec.Meal),
			"Breakfast Status": string(slots.Breakfast),
			"Lunch Status":     string(slots.Lunch),
			"Snacks Status":    string(slots.Snacks),
			"Dinner Status":    string(slots.Dinner),
		})
	}

	dataset := export.Dataset{Headers: headers, Rows: rows}
	return dataset, "Mess Attendance Scans", nil
}

func filterFeedByDate(feed []models.TrackedScan, from, to string) []models.TrackedScan {
	fromDay, errFrom := mealtime.ParseDateKey(from)
	toDay, errTo := mealtime.ParseDateKey(to)
	if errFrom != nil || errTo != nil {
		return feed
	}
	filtered := make([]models.TrackedScan, 0, len(feed))
	for _, rec := range feed {
		day, err := mealtime.ParseDateKey(rec.ScanDate)
		if err != nil {
			continue
		}
		if day.Before(fromDay) || day.After(toDay) {
			continue
		}
		filtered = append(filtered, rec)
	}
	return filtered
}

func buildFilename(job *models.ExportJob) string {
	timestamp := time.Now().UTC().Format("20060102_150405")
	rangePart := "all"
	if job.Params.DateFrom != "" && job.Params.DateTo != "" {
		rangePart = fmt.Sprintf("%s_%s", strings.ReplaceAll(job.Params.DateFrom, "-", ""), strings.ReplaceAll(job.Params.DateTo, "-", ""))
	}
	return fmt.Sprintf("%s_%s_%s.%s", job.Type, rangePart, timestamp, job.Params.Format)
}
