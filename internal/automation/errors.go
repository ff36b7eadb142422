package automation

import "errors"

// Domain errors for the automation package.
//
// These errors can be checked using errors.Is() for error handling:
//
//	if errors.Is(err, automation.ErrMissingParameter) {
//	    // the routine author left out a required action parameter
//	}
var (
	// ErrUnknownTriggerKind is returned when decoding a trigger whose kind is not recognised.
	ErrUnknownTriggerKind = errors.New("routine: unknown trigger kind")

	// ErrUnknownActionKind is returned when decoding or executing an action whose kind is not recognised.
	ErrUnknownActionKind = errors.New("routine: unknown action kind")

	// ErrMissingParameter is returned by an action handler when a required parameter is absent.
	ErrMissingParameter = errors.New("routine: missing required parameter")

	// ErrCollaboratorFailure wraps failures of the record store or generative-text service.
	ErrCollaboratorFailure = errors.New("routine: collaborator failure")

	// ErrRoutineNotFound is returned when a routine ID does not exist for the user.
	ErrRoutineNotFound = errors.New("routine: not found")

	// ErrRoutineExists is returned when creating a routine whose ID or name is already taken.
	ErrRoutineExists = errors.New("routine: already exists")

	// ErrInvalidRoutine is returned when routine validation fails.
	ErrInvalidRoutine = errors.New("routine: invalid")

	// ErrInvalidTrigger is returned when a trigger of a known kind has malformed parameters.
	ErrInvalidTrigger = errors.New("routine: invalid trigger")

	// ErrInvalidAction is returned when an action of a known kind has malformed parameters.
	ErrInvalidAction = errors.New("routine: invalid action")
)
