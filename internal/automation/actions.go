package automation

import (
	"encoding/json"
	"fmt"
)

// ActionKind identifies an action variant.
type ActionKind string

// Action kinds.
const (
	ActionCreateJournalPrompt    ActionKind = "CREATE_JOURNAL_PROMPT"
	ActionSuggestCopingStrategy  ActionKind = "SUGGEST_COPING_STRATEGY"
	ActionCreateTransaction      ActionKind = "CREATE_TRANSACTION"
	ActionCreateGoal             ActionKind = "CREATE_GOAL"
	ActionSendNotification       ActionKind = "SEND_NOTIFICATION"
	ActionGenerateAIInsight      ActionKind = "GENERATE_AI_INSIGHT"
	ActionCreateHabitReminder    ActionKind = "CREATE_HABIT_REMINDER"
	ActionAnalyzeSpendingPattern ActionKind = "ANALYZE_SPENDING_PATTERN"
	ActionSuggestActivity        ActionKind = "SUGGEST_ACTIVITY"
	ActionCreateMoodCheckIn      ActionKind = "CREATE_MOOD_CHECK_IN"
)

// Action is one step of a routine. The set of variants is closed: only the
// types in this file implement it.
type Action interface {
	Kind() ActionKind
	// Validate checks the parameters that are required regardless of the event.
	Validate() error
	params() any
}

// RawAction is the storage and wire form of an action.
type RawAction struct {
	Kind   ActionKind      `json:"kind"`
	Params json.RawMessage `json:"params,omitempty"`
}

// CreateJournalPrompt writes a journal entry seeded with a prompt.
type CreateJournalPrompt struct {
	Prompt string `json:"prompt"`
	Title  string `json:"title,omitempty"`
}

// SuggestCopingStrategy stores a coping-strategy insight.
type SuggestCopingStrategy struct {
	Strategy string `json:"strategy"`
	Title    string `json:"title,omitempty"`
}

// CreateTransaction records a transaction.
type CreateTransaction struct {
	Amount      *float64 `json:"amount"`
	Description string   `json:"description"`
	Category    string   `json:"category,omitempty"`
	Type        string   `json:"type,omitempty"`
}

// CreateGoal creates an active goal. A positive TargetDays sets the target date.
type CreateGoal struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Category    string `json:"category,omitempty"`
	TargetDays  int    `json:"targetDays,omitempty"`
}

// SendNotification stores an in-app notification.
type SendNotification struct {
	Message  string `json:"message"`
	Title    string `json:"title,omitempty"`
	Priority string `json:"priority,omitempty"`
}

// GenerateAIInsight asks the generative-text service for an insight and stores it.
// An empty Context sends the triggering event as JSON.
type GenerateAIInsight struct {
	Prompt  string `json:"prompt"`
	Context string `json:"context,omitempty"`
}

// CreateHabitReminder stores a habit reminder. An empty HabitName falls back
// to the event's habitName.
type CreateHabitReminder struct {
	HabitName string `json:"habitName,omitempty"`
	Message   string `json:"message,omitempty"`
}

// AnalyzeSpendingPattern summarises recent expenses into an insight.
type AnalyzeSpendingPattern struct {
	Days int `json:"days,omitempty"`
}

// SuggestActivity stores an activity suggestion.
type SuggestActivity struct {
	Activity string `json:"activity"`
	Reason   string `json:"reason,omitempty"`
}

// CreateMoodCheckIn stores a mood check-in notification.
type CreateMoodCheckIn struct {
	Message string `json:"message,omitempty"`
}

// rejectedAction stands in for a stored action that could not be decoded.
// Executing it fails with the decode error.
type rejectedAction struct {
	raw RawAction
	err error
}

func (CreateJournalPrompt) Kind() ActionKind    { return ActionCreateJournalPrompt }
func (SuggestCopingStrategy) Kind() ActionKind  { return ActionSuggestCopingStrategy }
func (CreateTransaction) Kind() ActionKind      { return ActionCreateTransaction }
func (CreateGoal) Kind() ActionKind             { return ActionCreateGoal }
func (SendNotification) Kind() ActionKind       { return ActionSendNotification }
func (GenerateAIInsight) Kind() ActionKind      { return ActionGenerateAIInsight }
func (CreateHabitReminder) Kind() ActionKind    { return ActionCreateHabitReminder }
func (AnalyzeSpendingPattern) Kind() ActionKind { return ActionAnalyzeSpendingPattern }
func (SuggestActivity) Kind() ActionKind        { return ActionSuggestActivity }
func (CreateMoodCheckIn) Kind() ActionKind      { return ActionCreateMoodCheckIn }
func (a rejectedAction) Kind() ActionKind       { return a.raw.Kind }

func (a CreateJournalPrompt) params() any    { return a }
func (a SuggestCopingStrategy) params() any  { return a }
func (a CreateTransaction) params() any      { return a }
func (a CreateGoal) params() any             { return a }
func (a SendNotification) params() any       { return a }
func (a GenerateAIInsight) params() any      { return a }
func (a CreateHabitReminder) params() any    { return a }
func (a AnalyzeSpendingPattern) params() any { return a }
func (a SuggestActivity) params() any        { return a }
func (a CreateMoodCheckIn) params() any      { return a }
func (a rejectedAction) params() any         { return a.raw.Params }

// Validate implements Action.
func (a CreateJournalPrompt) Validate() error { return requireParam("prompt", a.Prompt) }

// Validate implements Action.
func (a SuggestCopingStrategy) Validate() error { return requireParam("strategy", a.Strategy) }

// Validate implements Action.
func (a CreateTransaction) Validate() error {
	if a.Amount == nil {
		return missing("amount")
	}
	return requireParam("description", a.Description)
}

// Validate implements Action.
func (a CreateGoal) Validate() error {
	if a.TargetDays < 0 {
		return fmt.Errorf("%w: targetDays must not be negative", ErrInvalidAction)
	}
	return requireParam("title", a.Title)
}

// Validate implements Action.
func (a SendNotification) Validate() error { return requireParam("message", a.Message) }

// Validate implements Action.
func (a GenerateAIInsight) Validate() error { return requireParam("prompt", a.Prompt) }

// Validate implements Action. habitName may come from the event, so it is
// checked at execution time.
func (CreateHabitReminder) Validate() error { return nil }

// Validate implements Action.
func (a AnalyzeSpendingPattern) Validate() error {
	if a.Days < 0 {
		return fmt.Errorf("%w: days must not be negative", ErrInvalidAction)
	}
	return nil
}

// Validate implements Action.
func (a SuggestActivity) Validate() error { return requireParam("activity", a.Activity) }

// Validate implements Action.
func (CreateMoodCheckIn) Validate() error { return nil }

// Validate implements Action.
func (a rejectedAction) Validate() error { return a.err }

func requireParam(name, value string) error {
	if value == "" {
		return missing(name)
	}
	return nil
}

func missing(name string) error {
	return fmt.Errorf("%w: %s", ErrMissingParameter, name)
}

// ─── Decoding ───────────────────────────────────────────────────────────────

// DecodeAction turns the wire form into a typed action. Required parameters
// are not checked here; see Action.Validate.
func DecodeAction(raw RawAction) (Action, error) {
	switch raw.Kind {
	case ActionCreateJournalPrompt:
		return decodeActionInto[CreateJournalPrompt](raw)
	case ActionSuggestCopingStrategy:
		return decodeActionInto[SuggestCopingStrategy](raw)
	case ActionCreateTransaction:
		return decodeActionInto[CreateTransaction](raw)
	case ActionCreateGoal:
		return decodeActionInto[CreateGoal](raw)
	case ActionSendNotification:
		return decodeActionInto[SendNotification](raw)
	case ActionGenerateAIInsight:
		return decodeActionInto[GenerateAIInsight](raw)
	case ActionCreateHabitReminder:
		return decodeActionInto[CreateHabitReminder](raw)
	case ActionAnalyzeSpendingPattern:
		return decodeActionInto[AnalyzeSpendingPattern](raw)
	case ActionSuggestActivity:
		return decodeActionInto[SuggestActivity](raw)
	case ActionCreateMoodCheckIn:
		return decodeActionInto[CreateMoodCheckIn](raw)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownActionKind, raw.Kind)
	}
}

// DecodeActions decodes every action, failing on the first error.
func DecodeActions(raws []RawAction) ([]Action, error) {
	out := make([]Action, 0, len(raws))
	for i, raw := range raws {
		a, err := DecodeAction(raw)
		if err != nil {
			return nil, fmt.Errorf("action[%d]: %w", i, err)
		}
		out = append(out, a)
	}
	return out, nil
}

// decodeActionsLenient keeps undecodable actions in place as rejected
// placeholders so the routine's action order and log count are preserved.
func decodeActionsLenient(raws []RawAction) []Action {
	out := make([]Action, 0, len(raws))
	for _, raw := range raws {
		a, err := DecodeAction(raw)
		if err != nil {
			a = rejectedAction{raw: raw, err: err}
		}
		out = append(out, a)
	}
	return out
}

// EncodeAction returns the wire form of a.
func EncodeAction(a Action) RawAction {
	if ra, ok := a.(rejectedAction); ok {
		return ra.raw
	}
	raw := RawAction{Kind: a.Kind()}
	if data, err := json.Marshal(a.params()); err == nil && string(data) != "{}" {
		raw.Params = data
	}
	return raw
}

// EncodeActions returns the wire form of every action.
func EncodeActions(as []Action) []RawAction {
	out := make([]RawAction, 0, len(as))
	for _, a := range as {
		out = append(out, EncodeAction(a))
	}
	return out
}

func decodeActionInto[T Action](raw RawAction) (Action, error) {
	var a T
	if err := decodeParams(raw.Params, &a); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidAction, raw.Kind, err)
	}
	return a, nil
}
