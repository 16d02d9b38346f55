package mealtime

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Meal identifies one of the fixed mess serving windows.
type Meal string

const (
	MealBreakfast Meal = "Breakfast"
	MealLunch     Meal = "Lunch"
	MealSnacks    Meal = "Snacks"
	MealDinner    Meal = "Dinner"
	MealNone      Meal = "No Meal"
)

// Meals lists the serving windows in chronological order. The order drives
// export column layout.
func Meals() [4]Meal {
	return [4]Meal{MealBreakfast, MealLunch, MealSnacks, MealDinner}
}

// ErrInvalidClock signals that a time-of-day string does not match any
// recognised 12-hour clock format.
var ErrInvalidClock = errors.New("invalid clock format")

// DateLayout is the canonical, locale-independent grouping key for calendar
// dates.
const DateLayout = "2006-01-02"

// ClockLayout renders instants the way scan devices report them.
const ClockLayout = "03:04:05 PM"

// Serving windows as half-open minute-of-day intervals, inclusive start and
// exclusive end.
type window struct {
	start int
	end   int
	meal  Meal
}

var windows = [4]window{
	{450, 570, MealBreakfast},  // 07:30-09:30
	{720, 840, MealLunch},      // 12:00-14:00
	{1020, 1080, MealSnacks},   // 17:00-18:00
	{1170, 1260, MealDinner},   // 19:30-21:00
}

// Scan clocks arrive as "h:mm AM", "hh:mm:ss pm" and everything in between.
var clockPattern = regexp.MustCompile(`^\s*(\d{1,2}):(\d{2})(?::(\d{2}))?\s*([AaPp][Mm])\s*$`)

var location = loadLocation()

func loadLocation() *time.Location {
	loc, err := time.LoadLocation("Asia/Kolkata")
	if err != nil {
		return time.FixedZone("IST", 5*3600+1800)
	}
	return loc
}

// Location returns the reference timezone all classification happens in.
func Location() *time.Location {
	return location
}

// ParseClock converts a 12-hour time-of-day string into a minute-of-day value
// in [0, 1440).
func ParseClock(raw string) (int, error) {
	parts := clockPattern.FindStringSubmatch(raw)
	if parts == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}

	hours, _ := strconv.Atoi(parts[1])
	minutes, _ := strconv.Atoi(parts[2])
	if hours < 1 || hours > 12 || minutes > 59 {
		return 0, fmt.Errorf("%w: %q", ErrInvalidClock, raw)
	}

	period := parts[4]
	pm := period[0] == 'P' || period[0] == 'p'
	if pm && hours < 12 {
		hours += 12
	}
	if !pm && hours == 12 {
		hours = 0
	}

	return hours*60 + minutes, nil
}

// Classify maps a minute-of-day value onto a serving window. Total over all
// integers; anything outside the four windows is MealNone.
func Classify(minute int) Meal {
	for _, w := range windows {
		if minute >= w.start && minute < w.end {
			return w.meal
		}
	}
	return MealNone
}

// ClassifyClock parses and classifies in one step. Malformed clocks come back
// as MealNone so a single bad record never aborts a batch.
func ClassifyClock(raw string) Meal {
	minute, err := ParseClock(raw)
	if err != nil {
		return MealNone
	}
	return Classify(minute)
}

// DateKey normalises an instant to its calendar date in the reference
// timezone.
func DateKey(t time.Time) string {
	return t.In(location).Format(DateLayout)
}

// ClockString renders an instant as the 12-hour clock string scans are stored
// with.
func ClockString(t time.Time) string {
	return t.In(location).Format(ClockLayout)
}

// ParseDateKey parses a canonical date key back into an instant at midnight
// in the reference timezone.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, key, location)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date key %q: %w", key, err)
	}
	return t, nil
}
