package watch

import (
	"context"
	"time"
)

type RepositoryStore interface {
	Create(ctx context.Context, r *Repository) error
	Get(ctx context.Context, id string) (*Repository, error)
	GetByPath(ctx context.Context, path string) (*Repository, error)
	List(ctx context.Context) ([]*Repository, error)
	Count(ctx context.Context) (int, error)
	Delete(ctx context.Context, id string) error
	SetWatching(ctx context.Context, id string, watching bool) error
}

type ChangeStore interface {
	// Create inserts the change and bumps the owning repository's counters.
	Create(ctx context.Context, c *FileChange) error
	Get(ctx context.Context, id string) (*FileChange, error)
	List(ctx context.Context, f ChangeFilter) ([]*FileChange, error)
	ListPending(ctx context.Context, limit int) ([]*FileChange, error)
	MarkSent(ctx context.Context, id string) error
	Stats(ctx context.Context, repositoryID string, since time.Time) (*Stats, error)
}

// Forwarder posts a change to the aggregator.
type Forwarder interface {
	Forward(ctx context.Context, p ForwardPayload) error
}

// Broadcaster pushes events to live-feed subscribers.
type Broadcaster interface {
	Broadcast(e Event)
}

// Watcher observes one repository until stopped.
type Watcher interface {
	Start(ctx context.Context) error
	Stop() error
	Running() bool
}

// Handler receives every relevant change a Watcher observes.
type Handler func(ctx context.Context, c *FileChange)

// WatcherFactory builds a Watcher for repo that reports to h.
type WatcherFactory func(repo *Repository, h Handler) (Watcher, error)
