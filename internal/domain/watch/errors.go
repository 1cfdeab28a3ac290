package watch

import "errors"

var (
	ErrInvalidInput      = errors.New("invalid input")
	ErrNotFound          = errors.New("repository not found")
	ErrRepositoryLimit   = errors.New("maximum number of repositories reached")
	ErrDuplicatePath     = errors.New("repository path already registered")
	ErrInvalidRepository = errors.New("not a git repository")
	// ErrRejected means the aggregator answered 400; the change is never retried.
	ErrRejected = errors.New("aggregator rejected change")
)
