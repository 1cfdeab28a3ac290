package sqlstore

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/testcompanion/internal/domain/audit"
)

type AuditRepository struct {
	db *sqlx.DB
}

func NewAuditRepository(db *sqlx.DB) *AuditRepository { return &AuditRepository{db: db} }

func (r *AuditRepository) Save(ctx context.Context, e *domain.Entry) error {
	const q = `
INSERT INTO audit_logs (user_id, change_id, action, message, details_json, created_at)
VALUES (?,?,?,?,?,?)`
	msg := e.Message
	if strings.TrimSpace(msg) == "" {
		msg = "-"
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	id, err := insertID(ctx, r.db, q, e.UserID, e.ChangeID, stringOrDash(e.Action), msg, jsonOrObject(e.DetailsJSON), created)
	if err != nil {
		return err
	}
	e.ID = id
	e.CreatedAt = created
	return nil
}

func (r *AuditRepository) ListByChange(ctx context.Context, changeID int64, limit int) ([]*domain.Entry, error) {
	if limit <= 0 {
		limit = 20
	}
	const q = `
SELECT id, user_id, change_id, action, message, details_json, created_at
FROM audit_logs
WHERE change_id = ?
ORDER BY created_at DESC, id DESC
LIMIT ?`
	out := []*domain.Entry{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), changeID, limit); err != nil {
		return nil, err
	}
	return out, nil
}
