// Package export renders a subject's attendance over a calendar window as CSV
// and runs shareable exports in the background.
package export

import (
	"fmt"
	"strings"
	"time"

	"rollcall/internal/common"
)

// Window selects the calendar period an export covers.
type Window string

const (
	WindowLecture Window = "lecture"
	WindowMonth   Window = "month"
	WindowYear    Window = "year"
)

// ParseWindow accepts the window names case-insensitively; "monthly" and "yearly" are aliases.
func ParseWindow(s string) (Window, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "lecture", "day":
		return WindowLecture, nil
	case "month", "monthly":
		return WindowMonth, nil
	case "year", "yearly":
		return WindowYear, nil
	}
	return "", fmt.Errorf("%q: %w", s, common.ErrUnsupportedWindow)
}

// Bounds returns the half-open [start, end) period containing at, with both
// ends at midnight in loc.
func (w Window) Bounds(at time.Time, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	at = at.In(loc)
	y, m, d := at.Date()
	switch w {
	case WindowLecture:
		start := time.Date(y, m, d, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 0, 1), nil
	case WindowMonth:
		start := time.Date(y, m, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(0, 1, 0), nil
	case WindowYear:
		start := time.Date(y, time.January, 1, 0, 0, 0, 0, loc)
		return start, start.AddDate(1, 0, 0), nil
	}
	return time.Time{}, time.Time{}, fmt.Errorf("%q: %w", string(w), common.ErrUnsupportedWindow)
}

// Contains reports whether t falls in the window that contains at.
func (w Window) Contains(at, t time.Time, loc *time.Location) bool {
	start, end, err := w.Bounds(at, loc)
	if err != nil {
		return false
	}
	return !t.Before(start) && t.Before(end)
}

// FileName names the export file for a window starting at start.
func (w Window) FileName(start time.Time) string {
	var prefix string
	switch w {
	case WindowLecture:
		prefix = "Lecture_" + start.Format("2006-01-02")
	case WindowMonth:
		prefix = "Monthly_" + start.Format("2006_01")
	default:
		prefix = "Yearly_" + start.Format("2006")
	}
	return prefix + "_attendance.csv"
}

// ParseAt reads the point an export window is anchored to: RFC 3339, or a
// bare yyyy-mm-dd date taken as midnight in loc. Empty means now.
func ParseAt(s string, loc *time.Location) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	t, err := time.ParseInLocation("2006-01-02", s, loc)
	if err != nil {
		return time.Time{}, common.NewValidationError(common.FieldError{Field: "at", Error: "must be RFC 3339 or yyyy-mm-dd"})
	}
	return t, nil
}
