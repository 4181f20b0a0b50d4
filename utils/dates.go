// backend/utils/dates.go
package utils

import (
	"fmt"
	"strings"
	"time"
)

// DateLayout is the YYYY-MM-DD form used for record dates in SQL, URLs and CSV.
const DateLayout = "2006-01-02"

// DateOf converts t to UTC and drops the time of day.
func DateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

// TodayUTC returns the current UTC calendar date according to now.
func TodayUTC(now func() time.Time) time.Time {
	if now == nil {
		now = time.Now
	}
	return DateOf(now())
}

// DateFromMillis interprets ms as milliseconds since the epoch and floors it to the UTC date.
func DateFromMillis(ms int64) time.Time {
	return DateOf(time.UnixMilli(ms))
}

// FormatDate renders a record date as YYYY-MM-DD.
func FormatDate(d time.Time) string {
	return d.UTC().Format(DateLayout)
}

// ParseDate parses a YYYY-MM-DD string into a UTC midnight time.
func ParseDate(s string) (time.Time, error) {
	d, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD: %w", s, err)
	}
	return d, nil
}

// MonthRange returns the first day of the month and the first day of the following month.
func MonthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}
