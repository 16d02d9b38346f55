package models

import (
	"time"

	"github.com/noah-isme/mess-attendance-api/internal/mealtime"
)

// MealStatus is the derived Present/Absent value for one attendance cell.
type MealStatus string

const (
	MealPresent MealStatus = "P"
	MealAbsent  MealStatus = "A"
)

// ScanEvent is one badge scan. Rows are append-only: scans are never updated
// or deleted, duplicates included. ScanDate and ScanClock are rendered in the
// mess's reference timezone at mark time; ScannedAt keeps the UTC instant.
type ScanEvent struct {
	ID        string    `db:"id" json:"id"`
	UniqueID  string    `db:"unique_id" json:"unique_id"`
	RollNo    string    `db:"roll_no" json:"roll_no"`
	Status    string    `db:"status" json:"status"`
	ScanDate  string    `db:"scan_date" json:"date"`
	ScanClock string    `db:"scan_clock" json:"time"`
	ScannedAt time.Time `db:"scanned_at" json:"scanned_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TrackedScan decorates a scan with its derived serving window for feed
// display and meal search.
type TrackedScan struct {
	ScanEvent
	Meal mealtime.Meal `json:"meal"`
}

// ScanFilter scopes event feed queries.
type ScanFilter struct {
	UniqueID string
	DateFrom *time.Time
	DateTo   *time.Time
	Limit    int
}

// MealSlots is the 4-valued status tuple for one (student, date) pair.
type MealSlots struct {
	Breakfast MealStatus `json:"breakfast"`
	Lunch     MealStatus `json:"lunch"`
	Snacks    MealStatus `json:"snacks"`
	Dinner    MealStatus `json:"dinner"`
}

// EmptySlots returns a tuple with every meal absent.
func EmptySlots() MealSlots {
	return MealSlots{Breakfast: MealAbsent, Lunch: MealAbsent, Snacks: MealAbsent, Dinner: MealAbsent}
}

// Mark sets the slot for the given meal to present. Marking the same slot
// twice is a no-op, which is what makes duplicate scans idempotent.
func (s *MealSlots) Mark(meal mealtime.Meal) {
	switch meal {
	case mealtime.MealBreakfast:
		s.Breakfast = MealPresent
	case mealtime.MealLunch:
		s.Lunch = MealPresent
	case mealtime.MealSnacks:
		s.Snacks = MealPresent
	case mealtime.MealDinner:
		s.Dinner = MealPresent
	}
}

// Status reads the slot for the given meal.
func (s MealSlots) Status(meal mealtime.Meal) MealStatus {
	switch meal {
	case mealtime.MealBreakfast:
		return s.Breakfast
	case mealtime.MealLunch:
		return s.Lunch
	case mealtime.MealSnacks:
		return s.Snacks
	case mealtime.MealDinner:
		return s.Dinner
	default:
		return MealAbsent
	}
}

// AttendanceMatrix maps badge code, then date key, to the meal slot tuple.
// Cells are recomputed per request and never persisted.
type AttendanceMatrix map[string]map[string]MealSlots

// Slots returns the tuple for a (student, date) pair, defaulting every meal
// to absent when the pair has no scans.
func (m AttendanceMatrix) Slots(uniqueID, dateKey string) MealSlots {
	if byDate, ok := m[uniqueID]; ok {
		if slots, ok := byDate[dateKey]; ok {
			return slots
		}
	}
	return EmptySlots()
}

// GridRow is one student's row in the on-screen grid, with registry metadata
// resolved (or "N/A" when the badge is unknown).
type GridRow struct {
	UniqueID string               `json:"unique_id"`
	RollNo   string               `json:"roll_no"`
	Name     string               `json:"name"`
	Semester string               `json:"semester"`
	FeePaid  string               `json:"fee_paid"`
	Cells    map[string]MealSlots `json:"cells"`
}

// AttendanceGrid is the display matrix handed to the rendering layer. Dates
// are sorted chronologically.
type AttendanceGrid struct {
	Dates []string  `json:"dates"`
	Rows  []GridRow `json:"rows"`
}

// SearchField enumerates the columns the tracking feed can be filtered on.
type SearchField string

const (
	SearchFieldUniqueID SearchField = "uniqueId"
	SearchFieldRollNo   SearchField = "rollNo"
	SearchFieldName     SearchField = "name"
	SearchFieldSemester SearchField = "semester"
	SearchFieldFeePaid  SearchField = "feePaid"
	SearchFieldMeal     SearchField = "meal"
	SearchFieldDate     SearchField = "date"
)

// ParseSearchField validates a raw field name against the closed set.
func ParseSearchField(raw string) (SearchField, bool) {
	switch SearchField(raw) {
	case SearchFieldUniqueID, SearchFieldRollNo, SearchFieldName,
		SearchFieldSemester, SearchFieldFeePaid, SearchFieldMeal, SearchFieldDate:
		return SearchField(raw), true
	default:
		return "", false
	}
}
