package automation

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Validation limits.
const (
	maxNameLength     = 100
	maxDescriptionLen = 500
	maxTriggers       = 20
	maxActions        = 50
)

// ValidateRoutine checks a routine before it is stored. An empty trigger
// list is accepted: such a routine runs for every event of its owner.
func ValidateRoutine(r *Routine) error {
	if r == nil {
		return ErrInvalidRoutine
	}
	if r.UserID == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidRoutine)
	}
	if err := ValidateName(r.Name); err != nil {
		return err
	}
	if utf8.RuneCountInString(r.Description) > maxDescriptionLen {
		return fmt.Errorf("%w: description exceeds %d characters", ErrInvalidRoutine, maxDescriptionLen)
	}

	if len(r.Triggers) > maxTriggers {
		return fmt.Errorf("%w: too many triggers (max %d)", ErrInvalidRoutine, maxTriggers)
	}
	for i, t := range r.Triggers {
		if err := validateTrigger(t); err != nil {
			return fmt.Errorf("trigger[%d]: %w", i, err)
		}
	}

	if len(r.Actions) == 0 {
		return fmt.Errorf("%w: at least one action is required", ErrInvalidRoutine)
	}
	if len(r.Actions) > maxActions {
		return fmt.Errorf("%w: too many actions (max %d)", ErrInvalidRoutine, maxActions)
	}
	for i, a := range r.Actions {
		if a == nil {
			return fmt.Errorf("action[%d]: %w: missing", i, ErrInvalidAction)
		}
		if err := a.Validate(); err != nil {
			return fmt.Errorf("action[%d]: %w", i, err)
		}
	}
	return nil
}

// ValidateName checks a routine name.
func ValidateName(name string) error {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidRoutine)
	}
	if utf8.RuneCountInString(trimmed) > maxNameLength {
		return fmt.Errorf("%w: name exceeds %d characters", ErrInvalidRoutine, maxNameLength)
	}
	return nil
}

func validateTrigger(t Trigger) error {
	switch tt := t.(type) {
	case nil:
		return fmt.Errorf("%w: missing", ErrInvalidTrigger)
	case rejectedTrigger:
		return tt.err
	case ScheduledTime:
		if _, err := ParseCron(tt.Cron); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidTrigger, err)
		}
	}
	return nil
}

// GenerateID creates a new unique ID for a routine or log entry.
func GenerateID() string {
	return uuid.NewString()
}
