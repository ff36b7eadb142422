package automation

import (
	"encoding/json"
	"time"

	"github.com/nerrad567/lifelog-core/internal/events"
)

// Routine is a user-authored rule: when every trigger matches an event, run
// the actions in order.
//
// The engine treats routines as read-only. A routine with no triggers matches
// every event for its owner.
type Routine struct {
	ID          string
	UserID      string
	Name        string
	Description string
	Enabled     bool
	Triggers    []Trigger
	Actions     []Action
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// routineJSON is the wire form of a Routine.
type routineJSON struct {
	ID          string       `json:"id"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name"`
	Description string       `json:"description,omitempty"`
	Enabled     bool         `json:"enabled"`
	Triggers    []RawTrigger `json:"triggers"`
	Actions     []RawAction  `json:"actions"`
	CreatedAt   time.Time    `json:"createdAt"`
	UpdatedAt   time.Time    `json:"updatedAt"`
}

// MarshalJSON encodes triggers and actions in their {kind, params} form.
func (r Routine) MarshalJSON() ([]byte, error) {
	return json.Marshal(routineJSON{
		ID:          r.ID,
		UserID:      r.UserID,
		Name:        r.Name,
		Description: r.Description,
		Enabled:     r.Enabled,
		Triggers:    EncodeTriggers(r.Triggers),
		Actions:     EncodeActions(r.Actions),
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	})
}

// ShouldExecute reports whether every trigger matches ev (logical AND).
// An empty trigger list matches.
func (r *Routine) ShouldExecute(ev events.Event) bool {
	for _, t := range r.Triggers {
		if !t.Matches(ev) {
			return false
		}
	}
	return true
}

// RejectedTriggers returns the decode errors of triggers that could not be
// understood when the routine was loaded. Such triggers never match.
func (r *Routine) RejectedTriggers() []error {
	var errs []error
	for _, t := range r.Triggers {
		if rt, ok := t.(rejectedTrigger); ok {
			errs = append(errs, rt.err)
		}
	}
	return errs
}

// Status is the outcome of one executed action.
type Status string

// Action outcomes.
const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
)

// LogEntry records the outcome of one action execution. Entries are
// append-only: never updated or deleted.
type LogEntry struct {
	ID         string     `json:"id"`
	RoutineID  string     `json:"routineId"`
	UserID     string     `json:"userId"`
	ActionKind ActionKind `json:"actionKind"`
	Status     Status     `json:"status"`
	Message    string     `json:"message"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// Result summarises one pipeline pass (one event or one scheduler tick).
type Result struct {
	RoutinesMatched  int `json:"routinesMatched"`
	ActionsSucceeded int `json:"actionsSucceeded"`
	ActionsFailed    int `json:"actionsFailed"`
}

// Add accumulates another pass into r.
func (r *Result) Add(other Result) {
	r.RoutinesMatched += other.RoutinesMatched
	r.ActionsSucceeded += other.ActionsSucceeded
	r.ActionsFailed += other.ActionsFailed
}
