package analytics

import (
	"fmt"
	"strings"
	"time"

	"AgriDataHub/internal/store"
)

// WindowDateLayout is the format of the start and end query parameters.
const WindowDateLayout = "2006/01/02"

// MonthLabelLayout renders month buckets, e.g. "January2024".
const MonthLabelLayout = "January2006"

// DateParseError is returned for a start or end value that is not YYYY/MM/DD.
type DateParseError struct {
	Field string
	Value string
	Err   error
}

func (e *DateParseError) Error() string {
	return fmt.Sprintf("invalid %s date %q: expected YYYY/MM/DD", e.Field, e.Value)
}

func (e *DateParseError) Unwrap() error { return e.Err }
func (e *DateParseError) Kind() string  { return "DateParseError" }

// ParseWindowDate parses a YYYY/MM/DD query value.
func ParseWindowDate(field, value string) (time.Time, error) {
	t, err := time.Parse(WindowDateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, &DateParseError{Field: field, Value: value, Err: err}
	}
	return t, nil
}

// Window is an inclusive date range.
type Window struct {
	Start time.Time
	End   time.Time
}

// MonthWindow spans the calendar month containing t.
func MonthWindow(t time.Time) Window {
	first := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return Window{Start: first, End: first.AddDate(0, 1, -1)}
}

// TrailingWindow spans the given number of calendar months ending with the
// month containing t.
func TrailingWindow(t time.Time, months int) Window {
	if months < 1 {
		months = 1
	}
	w := MonthWindow(t)
	w.Start = w.Start.AddDate(0, -(months - 1), 0)
	return w
}

// Conds restricts column to the window.
func (w Window) Conds(column string) []store.Cond {
	return []store.Cond{
		{Column: column, Op: store.OpGte, Value: w.Start.Format(store.DateLayout)},
		{Column: column, Op: store.OpLte, Value: w.End.Format(store.DateLayout)},
	}
}

func (w Window) Equal(o Window) bool {
	return w.Start.Equal(o.Start) && w.End.Equal(o.End)
}

func (w Window) String() string {
	return w.Start.Format(store.DateLayout) + ".." + w.End.Format(store.DateLayout)
}

// storedDate reads a stored report date.
func storedDate(v any) (time.Time, bool) {
	s := store.Text(v)
	if len(s) < len(store.DateLayout) {
		return time.Time{}, false
	}
	t, err := time.Parse(store.DateLayout, s[:len(store.DateLayout)])
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
