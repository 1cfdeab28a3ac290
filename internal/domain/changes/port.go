package changes

import "context"

type Repository interface {
	// Create inserts the row and sets r.ID.
	Create(ctx context.Context, r *Record) error
	Get(ctx context.Context, id int64) (*Record, error)
	// List returns records joined with the user name, newest first.
	// pageSize <= 0 returns every row.
	List(ctx context.Context, page, pageSize int) ([]*Record, error)
}

type UserRepository interface {
	Get(ctx context.Context, id int64) (*User, error)
	// GetOrCreateByEmail returns the id of the user with email, creating a developer if absent.
	GetOrCreateByEmail(ctx context.Context, email, name string) (int64, error)
}
