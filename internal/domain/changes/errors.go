package changes

import "errors"

var (
	// ErrValidation marks a request that is missing or has malformed fields.
	ErrValidation = errors.New("validation failed")
	// ErrNotFound is returned when a change or user does not exist.
	ErrNotFound = errors.New("not found")
)
