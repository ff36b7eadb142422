package automation

import (
	"encoding/json"
	"fmt"

	"github.com/nerrad567/lifelog-core/internal/events"
)

// TriggerKind identifies a trigger variant.
type TriggerKind string

// Trigger kinds.
const (
	TriggerMoodBelowThreshold  TriggerKind = "MOOD_BELOW_THRESHOLD"
	TriggerHabitCompleted      TriggerKind = "HABIT_COMPLETED"
	TriggerHabitMissed         TriggerKind = "HABIT_MISSED"
	TriggerTransactionCreated  TriggerKind = "TRANSACTION_CREATED"
	TriggerBudgetExceeded      TriggerKind = "BUDGET_EXCEEDED"
	TriggerGoalCompleted       TriggerKind = "GOAL_COMPLETED"
	TriggerJournalCreated      TriggerKind = "JOURNAL_CREATED"
	TriggerAssessmentCompleted TriggerKind = "ASSESSMENT_COMPLETED"
	TriggerScheduledTime       TriggerKind = "SCHEDULED_TIME"
)

// DefaultMoodThreshold applies when a MOOD_BELOW_THRESHOLD trigger omits threshold.
const DefaultMoodThreshold = 5.0

// Trigger is a predicate over events. The set of variants is closed: only the
// types in this file implement it.
type Trigger interface {
	Kind() TriggerKind
	// Matches is pure: it reads only the trigger and the event.
	Matches(ev events.Event) bool
	params() any
}

// RawTrigger is the storage and wire form of a trigger.
type RawTrigger struct {
	Kind   TriggerKind     `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// MoodBelowThreshold matches mood_logged events whose moodScore is at or below Threshold.
type MoodBelowThreshold struct {
	Threshold float64 `json:"threshold"`
}

// HabitCompleted matches habit_completed events, optionally for one habit.
type HabitCompleted struct {
	HabitName string `json:"habitName,omitempty"`
}

// HabitMissed matches habit_missed events, optionally for one habit.
type HabitMissed struct {
	HabitName string `json:"habitName,omitempty"`
}

// TransactionCreated matches transaction_created events. Every filter that is
// set must pass; amount bounds are inclusive.
type TransactionCreated struct {
	Category  string   `json:"category,omitempty"`
	MinAmount *float64 `json:"minAmount,omitempty"`
	MaxAmount *float64 `json:"maxAmount,omitempty"`
}

// BudgetExceeded matches budget_exceeded events, optionally for one budget.
type BudgetExceeded struct {
	BudgetName string `json:"budgetName,omitempty"`
}

// GoalCompleted matches goal_completed events, optionally for one category.
type GoalCompleted struct {
	Category string `json:"category,omitempty"`
}

// JournalCreated matches every journal_created event.
type JournalCreated struct{}

// AssessmentCompleted matches assessment_completed events, optionally for one assessment type.
type AssessmentCompleted struct {
	AssessmentType string `json:"assessmentType,omitempty"`
}

// ScheduledTime matches scheduled_time events. The cron expression is
// evaluated by the scheduler, not by Matches.
type ScheduledTime struct {
	Cron string `json:"cron"`
}

// rejectedTrigger stands in for a stored trigger that could not be decoded.
// It never matches.
type rejectedTrigger struct {
	raw RawTrigger
	err error
}

func (MoodBelowThreshold) Kind() TriggerKind  { return TriggerMoodBelowThreshold }
func (HabitCompleted) Kind() TriggerKind      { return TriggerHabitCompleted }
func (HabitMissed) Kind() TriggerKind         { return TriggerHabitMissed }
func (TransactionCreated) Kind() TriggerKind  { return TriggerTransactionCreated }
func (BudgetExceeded) Kind() TriggerKind      { return TriggerBudgetExceeded }
func (GoalCompleted) Kind() TriggerKind       { return TriggerGoalCompleted }
func (JournalCreated) Kind() TriggerKind      { return TriggerJournalCreated }
func (AssessmentCompleted) Kind() TriggerKind { return TriggerAssessmentCompleted }
func (ScheduledTime) Kind() TriggerKind       { return TriggerScheduledTime }
func (t rejectedTrigger) Kind() TriggerKind   { return t.raw.Kind }

func (t MoodBelowThreshold) params() any  { return t }
func (t HabitCompleted) params() any      { return t }
func (t HabitMissed) params() any         { return t }
func (t TransactionCreated) params() any  { return t }
func (t BudgetExceeded) params() any      { return t }
func (t GoalCompleted) params() any       { return t }
func (t JournalCreated) params() any      { return t }
func (t AssessmentCompleted) params() any { return t }
func (t ScheduledTime) params() any       { return t }
func (t rejectedTrigger) params() any     { return t.raw.Params }

// Matches implements Trigger.
func (t MoodBelowThreshold) Matches(ev events.Event) bool {
	if ev.Kind != events.KindMoodLogged {
		return false
	}
	score, ok := ev.Number("moodScore")
	return ok && score <= t.Threshold
}

// Matches implements Trigger.
func (t HabitCompleted) Matches(ev events.Event) bool {
	return ev.Kind == events.KindHabitCompleted && optionalEquals(t.HabitName, ev, "habitName")
}

// Matches implements Trigger.
func (t HabitMissed) Matches(ev events.Event) bool {
	return ev.Kind == events.KindHabitMissed && optionalEquals(t.HabitName, ev, "habitName")
}

// Matches implements Trigger.
func (t TransactionCreated) Matches(ev events.Event) bool {
	if ev.Kind != events.KindTransactionCreated {
		return false
	}
	if !optionalEquals(t.Category, ev, "category") {
		return false
	}
	if t.MinAmount == nil && t.MaxAmount == nil {
		return true
	}
	amount, ok := ev.Number("amount")
	if !ok {
		return false
	}
	if t.MinAmount != nil && amount < *t.MinAmount {
		return false
	}
	if t.MaxAmount != nil && amount > *t.MaxAmount {
		return false
	}
	return true
}

// Matches implements Trigger.
func (t BudgetExceeded) Matches(ev events.Event) bool {
	return ev.Kind == events.KindBudgetExceeded && optionalEquals(t.BudgetName, ev, "budgetName")
}

// Matches implements Trigger.
func (t GoalCompleted) Matches(ev events.Event) bool {
	return ev.Kind == events.KindGoalCompleted && optionalEquals(t.Category, ev, "category")
}

// Matches implements Trigger.
func (JournalCreated) Matches(ev events.Event) bool {
	return ev.Kind == events.KindJournalCreated
}

// Matches implements Trigger.
func (t AssessmentCompleted) Matches(ev events.Event) bool {
	return ev.Kind == events.KindAssessmentCompleted && optionalEquals(t.AssessmentType, ev, "assessmentType")
}

// Matches implements Trigger.
func (ScheduledTime) Matches(ev events.Event) bool {
	return ev.Kind == events.KindScheduledTime
}

// Matches implements Trigger.
func (rejectedTrigger) Matches(events.Event) bool { return false }

// optionalEquals treats an empty filter as a wildcard.
func optionalEquals(filter string, ev events.Event, key string) bool {
	if filter == "" {
		return true
	}
	got, ok := ev.Text(key)
	return ok && got == filter
}

// ─── Decoding ───────────────────────────────────────────────────────────────

// DecodeTrigger turns the wire form into a typed trigger.
//
// Unknown kinds return ErrUnknownTriggerKind; malformed params for a known
// kind return ErrInvalidTrigger.
func DecodeTrigger(raw RawTrigger) (Trigger, error) {
	switch raw.Kind {
	case TriggerMoodBelowThreshold:
		var p struct {
			Threshold *float64 `json:"threshold"`
		}
		if err := decodeParams(raw.Params, &p); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTrigger, raw.Kind, err)
		}
		t := MoodBelowThreshold{Threshold: DefaultMoodThreshold}
		if p.Threshold != nil {
			t.Threshold = *p.Threshold
		}
		return t, nil
	case TriggerHabitCompleted:
		return decodeTriggerInto[HabitCompleted](raw)
	case TriggerHabitMissed:
		return decodeTriggerInto[HabitMissed](raw)
	case TriggerTransactionCreated:
		t, err := decodeTriggerInto[TransactionCreated](raw)
		if err != nil {
			return nil, err
		}
		tc := t.(TransactionCreated)
		if tc.MinAmount != nil && tc.MaxAmount != nil && *tc.MinAmount > *tc.MaxAmount {
			return nil, fmt.Errorf("%w: %s: minAmount exceeds maxAmount", ErrInvalidTrigger, raw.Kind)
		}
		return tc, nil
	case TriggerBudgetExceeded:
		return decodeTriggerInto[BudgetExceeded](raw)
	case TriggerGoalCompleted:
		return decodeTriggerInto[GoalCompleted](raw)
	case TriggerJournalCreated:
		return JournalCreated{}, nil
	case TriggerAssessmentCompleted:
		return decodeTriggerInto[AssessmentCompleted](raw)
	case TriggerScheduledTime:
		return decodeTriggerInto[ScheduledTime](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTriggerKind, raw.Kind)
	}
}

// DecodeTriggers decodes every trigger, failing on the first error.
func DecodeTriggers(raws []RawTrigger) ([]Trigger, error) {
	out := make([]Trigger, 0, len(raws))
	for i, raw := range raws {
		t, err := DecodeTrigger(raw)
		if err != nil {
			return nil, fmt.Errorf("trigger[%d]: %w", i, err)
		}
		out = append(out, t)
	}
	return out, nil
}

// decodeTriggersLenient keeps undecodable triggers as rejected placeholders.
// Used when loading stored routines so one bad trigger cannot hide the rest.
func decodeTriggersLenient(raws []RawTrigger) []Trigger {
	out := make([]Trigger, 0, len(raws))
	for _, raw := range raws {
		t, err := DecodeTrigger(raw)
		if err != nil {
			t = rejectedTrigger{raw: raw, err: err}
		}
		out = append(out, t)
	}
	return out
}

// EncodeTrigger returns the wire form of t.
func EncodeTrigger(t Trigger) RawTrigger {
	if rt, ok := t.(rejectedTrigger); ok {
		return rt.raw
	}
	raw := RawTrigger{Kind: t.Kind()}
	if data, err := json.Marshal(t.params()); err == nil && string(data) != "{}" {
		raw.Params = data
	}
	return raw
}

// EncodeTriggers returns the wire form of every trigger.
func EncodeTriggers(ts []Trigger) []RawTrigger {
	out := make([]RawTrigger, 0, len(ts))
	for _, t := range ts {
		out = append(out, EncodeTrigger(t))
	}
	return out
}

func decodeTriggerInto[T Trigger](raw RawTrigger) (Trigger, error) {
	var t T
	if err := decodeParams(raw.Params, &t); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidTrigger, raw.Kind, err)
	}
	return t, nil
}

// decodeParams unmarshals params into dst. Absent or null params leave dst zero.
func decodeParams(params json.RawMessage, dst any) error {
	if len(params) == 0 || string(params) == "null" {
		return nil
	}
	return json.Unmarshal(params, dst)
}
