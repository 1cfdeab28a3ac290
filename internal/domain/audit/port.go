package audit

import "context"

type Repository interface {
	Save(ctx context.Context, e *Entry) error
	ListByChange(ctx context.Context, changeID int64, limit int) ([]*Entry, error)
}
