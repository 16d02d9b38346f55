package service

import (
	"context"
	"database/sql"
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/mess-attendance-api/internal/mealtime"
	"github.com/noah-isme/mess-attendance-api/internal/models"
	appErrors "github.com/noah-isme/mess-attendance-api/pkg/errors"
)

const feedCacheKey = "attendance:feed"

type scanStore interface {
	Insert(ctx context.Context, event *models.ScanEvent) error
	List(ctx context.Context, filter models.ScanFilter) ([]models.ScanEvent, error)
	ListRange(ctx context.Context, from, to *time.Time) ([]models.ScanEvent, error)
}

type registrySnapshot interface {
	FindByUniqueID(ctx context.Context, uniqueID string) (*models.Student, error)
	ListAll(ctx context.Context) ([]models.Student, error)
}

type feedCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// MarkRequest holds payload for recording a badge scan. Date and Time are
// optional overrides for scanner clients that report their own clock; when
// blank the server stamp is used.
type MarkRequest struct {
	UniqueID string `json:"uniqueId" validate:"required"`
	Status   string `json:"status"`
	Date     string `json:"date"`
	Time     string `json:"time"`
}

// AttendanceServiceConfig tunes feed behaviour. FeedMaxRows caps only the
// display feed; grid and export aggregation always read the full event set.
type AttendanceServiceConfig struct {
	CacheTTL     time.Duration
	FeedMaxRows  int
	DefaultLabel string
}

// AttendanceService records scans and derives the tracking feed and the
// per-student per-date meal grid.
type AttendanceService struct {
	scans     scanStore
	registry  registrySnapshot
	cache     feedCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       AttendanceServiceConfig
}

// NewAttendanceService constructs the attendance service.
func NewAttendanceService(scans scanStore, registry registrySnapshot, cache feedCache, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg AttendanceServiceConfig) *AttendanceService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 2 * time.Minute
	}
	if cfg.FeedMaxRows <= 0 {
		cfg.FeedMaxRows = 5000
	}
	if cfg.DefaultLabel == "" {
		cfg.DefaultLabel = "Present"
	}
	return &AttendanceService{
		scans:     scans,
		registry:  registry,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
	}
}

// Mark records a scan for the given badge. The badge must be registered; the
// scan is stamped with the current date and clock in the mess timezone.
func (s *AttendanceService) Mark(ctx context.Context, req MarkRequest) (*models.ScanEvent, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid scan payload")
	}
	student, err := s.registry.FindByUniqueID(ctx, req.UniqueID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}

	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = s.cfg.DefaultLabel
	}

	now := time.Now().UTC()
	scanDate := mealtime.DateKey(now)
	scanClock := mealtime.ClockString(now)
	scannedAt := now

	clock := strings.TrimSpace(req.Time)
	if clock != "" {
		if _, err := mealtime.ParseClock(clock); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidTimeFormat.Code, appErrors.ErrInvalidTimeFormat.Status, appErrors.ErrInvalidTimeFormat.Message)
		}
		scanClock = clock
	}
	if req.Date != "" {
		day, err := mealtime.ParseDateKey(req.Date)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date must be a YYYY-MM-DD date")
		}
		scanDate = mealtime.DateKey(day)
	}
	if req.Date != "" || clock != "" {
		day, _ := mealtime.ParseDateKey(scanDate)
		minute, _ := mealtime.ParseClock(scanClock)
		scannedAt = day.Add(time.Duration(minute) * time.Minute).UTC()
	}

	event := &models.ScanEvent{
		UniqueID:  student.UniqueID,
		RollNo:    student.RollNo,
		Status:    status,
		ScanDate:  scanDate,
		ScanClock: scanClock,
		ScannedAt: scannedAt,
	}
	if err := s.scans.Insert(ctx, event); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to record scan")
	}
	s.metrics.CountScan(string(mealtime.ClassifyClock(event.ScanClock)))

	if s.cache != nil {
		if err := s.cache.Delete(ctx, feedCacheKey); err != nil {
			s.logger.Sugar().Warnw("feed cache invalidation failed", "error", err)
		}
	}
	return event, nil
}

// Feed returns every scan with its derived serving window, oldest first.
// The decorated feed is cached; a scan invalidates it.
func (s *AttendanceService) Feed(ctx context.Context) ([]models.TrackedScan, bool, error) {
	if s.cache != nil {
		start := time.Now()
		var cached []models.TrackedScan
		err := s.cache.Get(ctx, feedCacheKey, &cached)
		s.metrics.RecordCacheOperation(err == nil, time.Since(start))
		if err == nil {
			return cached, true, nil
		}
		if !errors.Is(err, appErrors.ErrCacheMiss) {
			s.logger.Sugar().Warnw("feed cache read failed", "error", err)
		}
	}

	events, err := s.scans.List(ctx, models.ScanFilter{Limit: s.cfg.FeedMaxRows})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scans")
	}
	feed := decorateScans(events)

	if s.cache != nil {
		start := time.Now()
		if err := s.cache.Set(ctx, feedCacheKey, feed, s.cfg.CacheTTL); err != nil {
			s.logger.Sugar().Warnw("feed cache write failed", "error", err)
		}
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
	return feed, false, nil
}

// Track returns the feed filtered by a field-scoped search. A blank query
// returns the full feed.
func (s *AttendanceService) Track(ctx context.Context, rawField, query string) ([]models.TrackedScan, bool, error) {
	feed, cacheHit, err := s.Feed(ctx)
	if err != nil {
		return nil, false, err
	}

	query = strings.TrimSpace(query)
	if rawField == "" || query == "" {
		return feed, cacheHit, nil
	}

	field, ok := models.ParseSearchField(rawField)
	if !ok {
		return nil, false, appErrors.Clone(appErrors.ErrValidation, "unsupported search field "+rawField)
	}

	var lookup map[string]models.Student
	switch field {
	case models.SearchFieldName, models.SearchFieldSemester, models.SearchFieldFeePaid:
		lookup, err = s.registryLookup(ctx)
		if err != nil {
			return nil, false, err
		}
	}

	filtered, err := filterScans(feed, field, query, lookup)
	if err != nil {
		return nil, false, err
	}
	return filtered, cacheHit, nil
}

// History returns every recorded scan decorated with its serving window,
// bypassing the feed cache and the feed row cap. Exports aggregate over the
// complete event set.
func (s *AttendanceService) History(ctx context.Context) ([]models.TrackedScan, error) {
	events, err := s.scans.ListRange(ctx, nil, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scans")
	}
	return decorateScans(events), nil
}

// Grid aggregates scans between two calendar dates (inclusive) into the
// display matrix. Both bounds are required.
func (s *AttendanceService) Grid(ctx context.Context, from, to string) (*models.AttendanceGrid, error) {
	if from == "" || to == "" {
		return nil, appErrors.ErrMissingDateRange
	}
	fromDay, err := mealtime.ParseDateKey(from)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "from must be a YYYY-MM-DD date")
	}
	toDay, err := mealtime.ParseDateKey(to)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must be a YYYY-MM-DD date")
	}
	if toDay.Before(fromDay) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}

	lower := fromDay.UTC()
	upper := toDay.AddDate(0, 0, 1).Add(-time.Nanosecond).UTC()
	events, err := s.scans.ListRange(ctx, &lower, &upper)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list scans")
	}

	lookup, err := s.registryLookup(ctx)
	if err != nil {
		return nil, err
	}

	matrix := buildMatrix(events)
	grid := &models.AttendanceGrid{
		Dates: distinctDates(events),
		Rows:  buildGridRows(matrix, lookup),
	}
	return grid, nil
}

func (s *AttendanceService) registryLookup(ctx context.Context) (map[string]models.Student, error) {
	students, err := s.registry.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load registry snapshot")
	}
	lookup := make(map[string]models.Student, len(students))
	for _, student := range students {
		lookup[student.UniqueID] = student
	}
	return lookup, nil
}

// decorateScans attaches the derived serving window to each event. Malformed
// clocks decorate as MealNone rather than failing the feed.
func decorateScans(events []models.ScanEvent) []models.TrackedScan {
	feed := make([]models.TrackedScan, 0, len(events))
	for _, event := range events {
		feed = append(feed, models.TrackedScan{
			ScanEvent: event,
			Meal:      mealtime.ClassifyClock(event.ScanClock),
		})
	}
	return feed
}

// buildMatrix groups events by (badge, date) and unions each event's serving
// window into the group's slot tuple. An event whose clock classifies to no
// window still creates its group, leaving every slot absent.
func buildMatrix(events []models.ScanEvent) models.AttendanceMatrix {
	matrix := make(models.AttendanceMatrix)
	for _, event := range events {
		byDate, ok := matrix[event.UniqueID]
		if !ok {
			byDate = make(map[string]models.MealSlots)
			matrix[event.UniqueID] = byDate
		}
		slots, ok := byDate[event.ScanDate]
		if !ok {
			slots = models.EmptySlots()
		}
		slots.Mark(mealtime.ClassifyClock(event.ScanClock))
		byDate[event.ScanDate] = slots
	}
	return matrix
}

// distinctDates returns the unique date keys covered by the events, sorted
// chronologically so multi-month exports stay in order.
func distinctDates(events []models.ScanEvent) []string {
	seen := make(map[string]struct{}, len(events))
	dates := make([]string, 0, len(events))
	for _, event := range events {
		if _, ok := seen[event.ScanDate]; ok {
			continue
		}
		seen[event.ScanDate] = struct{}{}
		dates = append(dates, event.ScanDate)
	}
	sort.Slice(dates, func(i, j int) bool {
		a, errA := mealtime.ParseDateKey(dates[i])
		b, errB := mealtime.ParseDateKey(dates[j])
		if errA != nil || errB != nil {
			return dates[i] < dates[j]
		}
		return a.Before(b)
	})
	return dates
}

func buildGridRows(matrix models.AttendanceMatrix, lookup map[string]models.Student) []models.GridRow {
	ids := make([]string, 0, len(matrix))
	for uniqueID := range matrix {
		ids = append(ids, uniqueID)
	}
	sort.Strings(ids)

	rows := make([]models.GridRow, 0, len(ids))
	for _, uniqueID := range ids {
		row := models.GridRow{
			UniqueID: uniqueID,
			RollNo:   models.UnknownValue,
			Name:     models.UnknownValue,
			Semester: models.UnknownValue,
			FeePaid:  models.UnknownValue,
			Cells:    matrix[uniqueID],
		}
		if student, ok := lookup[uniqueID]; ok {
			row.RollNo = displayValue(student.RollNo)
			row.Name = displayValue(student.FullName)
			row.Semester = displayValue(student.Semester)
			row.FeePaid = displayValue(student.FeePaid)
		}
		rows = append(rows, row)
	}
	return rows
}

func displayValue(raw string) string {
	if raw == "" {
		return models.UnknownValue
	}
	return raw
}

// filterScans applies one field-scoped predicate over the decorated feed.
func filterScans(feed []models.TrackedScan, field models.SearchField, query string, lookup map[string]models.Student) ([]models.TrackedScan, error) {
	var match func(models.TrackedScan) bool

	switch field {
	case models.SearchFieldUniqueID:
		match = func(rec models.TrackedScan) bool {
			return strings.Contains(rec.UniqueID, query)
		}
	case models.SearchFieldRollNo:
		match = func(rec models.TrackedScan) bool {
			return strings.Contains(rec.RollNo, query)
		}
	case models.SearchFieldName:
		needle := strings.ToLower(query)
		match = func(rec models.TrackedScan) bool {
			return strings.Contains(strings.ToLower(resolveField(rec, lookup, models.SearchFieldName)), needle)
		}
	case models.SearchFieldSemester:
		match = func(rec models.TrackedScan) bool {
			return resolveField(rec, lookup, models.SearchFieldSemester) == query
		}
	case models.SearchFieldFeePaid:
		match = func(rec models.TrackedScan) bool {
			return resolveField(rec, lookup, models.SearchFieldFeePaid) == query
		}
	case models.SearchFieldMeal:
		needle := strings.ToLower(query)
		match = func(rec models.TrackedScan) bool {
			return strings.Contains(strings.ToLower(string(rec.Meal)), needle)
		}
	case models.SearchFieldDate:
		day, err := mealtime.ParseDateKey(normalizeDateQuery(query))
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "date query must be a YYYY-MM-DD date")
		}
		key := mealtime.DateKey(day)
		match = func(rec models.TrackedScan) bool {
			return rec.ScanDate == key
		}
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unsupported search field "+string(field))
	}

	filtered := make([]models.TrackedScan, 0, len(feed))
	for _, rec := range feed {
		if match(rec) {
			filtered = append(filtered, rec)
		}
	}
	return filtered, nil
}

func resolveField(rec models.TrackedScan, lookup map[string]models.Student, field models.SearchField) string {
	student, ok := lookup[rec.UniqueID]
	if !ok {
		return models.UnknownValue
	}
	switch field {
	case models.SearchFieldName:
		return displayValue(student.FullName)
	case models.SearchFieldSemester:
		return displayValue(student.Semester)
	case models.SearchFieldFeePaid:
		return displayValue(student.FeePaid)
	default:
		return models.UnknownValue
	}
}

// normalizeDateQuery trims a full timestamp down to its date part so both
// sides of the comparison share the canonical representation.
func normalizeDateQuery(query string) string {
	if len(query) > len(mealtime.DateLayout) {
		return query[:len(mealtime.DateLayout)]
	}
	return query
}
