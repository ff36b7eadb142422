package events

import (
	"encoding/json"
	"strconv"
	"time"
)

// Kind names a category of behavioural event.
type Kind string

// Event kinds produced by the product.
const (
	KindMoodLogged          Kind = "mood_logged"
	KindTransactionCreated  Kind = "transaction_created"
	KindHabitCompleted      Kind = "habit_completed"
	KindHabitMissed         Kind = "habit_missed"
	KindBudgetExceeded      Kind = "budget_exceeded"
	KindGoalCompleted       Kind = "goal_completed"
	KindJournalCreated      Kind = "journal_created"
	KindAssessmentCompleted Kind = "assessment_completed"
	KindScheduledTime       Kind = "scheduled_time"

	// AnyKind is the generic channel. Listeners subscribed here receive every
	// published event regardless of its Kind.
	AnyKind Kind = "automation_event"
)

var knownKinds = map[Kind]struct{}{
	KindMoodLogged:          {},
	KindTransactionCreated:  {},
	KindHabitCompleted:      {},
	KindHabitMissed:         {},
	KindBudgetExceeded:      {},
	KindGoalCompleted:       {},
	KindJournalCreated:      {},
	KindAssessmentCompleted: {},
	KindScheduledTime:       {},
}

// Valid reports whether k is one of the product's event kinds.
// AnyKind is a channel, not an event kind, and is not valid here.
func (k Kind) Valid() bool {
	_, ok := knownKinds[k]
	return ok
}

// Inbound reports whether k may be published by an external producer.
// scheduled_time is synthesized by the scheduler only: accepting it from
// outside would run scheduled routines without a cron check.
func (k Kind) Inbound() bool {
	return k.Valid() && k != KindScheduledTime
}

// Kinds returns every valid event kind.
func Kinds() []Kind {
	return []Kind{
		KindMoodLogged, KindTransactionCreated, KindHabitCompleted, KindHabitMissed,
		KindBudgetExceeded, KindGoalCompleted, KindJournalCreated, KindAssessmentCompleted,
		KindScheduledTime,
	}
}

// Event is one behavioural occurrence for one user. Events are ephemeral and
// never persisted.
type Event struct {
	Kind      Kind           `json:"kind"`
	UserID    string         `json:"userId"`
	Data      map[string]any `json:"data,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Text returns data[key] when it is a non-empty string.
func (e Event) Text(key string) (string, bool) {
	s, ok := e.Data[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

// Number returns data[key] as a float64.
//
// JSON-decoded payloads carry float64; in-process publishers may use any Go
// numeric type or a numeric string. Anything else reports false.
func (e Event) Number(key string) (float64, bool) {
	return AsNumber(e.Data[key])
}

// AsNumber converts a loosely-typed value into a float64.
func AsNumber(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	default:
		return 0, false
	}
}
