package records

import "errors"

var (
	// ErrMissingUser is returned when a record has no owning user.
	ErrMissingUser = errors.New("records: user id is required")

	// ErrExists is returned when a record ID is already taken.
	ErrExists = errors.New("records: already exists")
)
