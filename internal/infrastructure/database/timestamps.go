package database

import "time"

// TimeLayout is the fixed-width UTC layout used for every TEXT timestamp
// column. Fixed width keeps lexical and chronological order identical, so
// ORDER BY and range predicates work the same on SQLite and Postgres.
const TimeLayout = "2006-01-02T15:04:05.000000Z07:00"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// ParseTime parses a stored timestamp. RFC3339 values written by older rows
// or by hand are accepted too.
func ParseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}
