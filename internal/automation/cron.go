package automation

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// cronField bounds, in expression order: minute, hour, day-of-month, month, day-of-week.
var cronFields = [5]struct {
	name     string
	min, max int
}{
	{"minute", 0, 59},
	{"hour", 0, 23},
	{"day-of-month", 1, 31},
	{"month", 1, 12},
	{"day-of-week", 0, 6},
}

// wildcard marks a "*" field in a parsed schedule.
const wildcard = -1

// Schedule is a parsed five-field cron expression. Each field is either a
// wildcard or one exact value; ranges, lists and steps are not supported.
type Schedule [5]int

// ParseCron parses a five-field cron expression.
func ParseCron(expr string) (Schedule, error) {
	var s Schedule
	parts := strings.Fields(expr)
	if len(parts) != len(cronFields) {
		return s, fmt.Errorf("cron %q: want 5 fields, got %d", expr, len(parts))
	}
	for i, p := range parts {
		if p == "*" {
			s[i] = wildcard
			continue
		}
		v, err := strconv.Atoi(p)
		if err != nil {
			return s, fmt.Errorf("cron %q: %s field %q is not * or an integer", expr, cronFields[i].name, p)
		}
		if v < cronFields[i].min || v > cronFields[i].max {
			return s, fmt.Errorf("cron %q: %s %d out of range %d-%d",
				expr, cronFields[i].name, v, cronFields[i].min, cronFields[i].max)
		}
		s[i] = v
	}
	return s, nil
}

// Matches reports whether t falls in the schedule's minute. Day-of-week 0 is Sunday.
func (s Schedule) Matches(t time.Time) bool {
	actual := [5]int{t.Minute(), t.Hour(), t.Day(), int(t.Month()), int(t.Weekday())}
	for i, want := range s {
		if want != wildcard && want != actual[i] {
			return false
		}
	}
	return true
}

// MatchCron reports whether t matches expr. Malformed expressions never match.
func MatchCron(expr string, t time.Time) bool {
	s, err := ParseCron(expr)
	if err != nil {
		return false
	}
	return s.Matches(t)
}
