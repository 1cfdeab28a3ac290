package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

type ChangeRepository struct {
	db *sqlx.DB
}

func NewChangeRepository(db *sqlx.DB) *ChangeRepository {
	return &ChangeRepository{db: db}
}

const changeColumns = `
SELECT c.id, c.user_id, u.name AS user_name, c.file_path, c.change_type,
       c.previous_v, c.current_v, c.created_at
FROM code_changes c
JOIN users u ON u.id = c.user_id`

func (r *ChangeRepository) Create(ctx context.Context, rec *domain.Record) error {
	const q = `
INSERT INTO code_changes (user_id, file_path, change_type, previous_v, current_v, created_at)
VALUES (?,?,?,?,?,?)`
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	id, err := insertID(ctx, r.db, q, rec.UserID, rec.FilePath, string(rec.ChangeType), rec.PreviousV, rec.CurrentV, rec.CreatedAt)
	if err != nil {
		return err
	}
	rec.ID = id
	return nil
}

func (r *ChangeRepository) Get(ctx context.Context, id int64) (*domain.Record, error) {
	var rec domain.Record
	err := r.db.GetContext(ctx, &rec, r.db.Rebind(changeColumns+` WHERE c.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// List returns changes newest first. pageSize <= 0 returns every row.
func (r *ChangeRepository) List(ctx context.Context, page, pageSize int) ([]*domain.Record, error) {
	q := changeColumns + ` ORDER BY c.created_at DESC, c.id DESC`
	var args []any
	if pageSize > 0 {
		if page <= 0 {
			page = 1
		}
		q += ` LIMIT ? OFFSET ?`
		args = append(args, pageSize, (page-1)*pageSize)
	}

	out := []*domain.Record{}
	if err := r.db.SelectContext(ctx, &out, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

type UserRepository struct {
	db *sqlx.DB
}

func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) Get(ctx context.Context, id int64) (*domain.User, error) {
	const q = `SELECT id, name, COALESCE(email, '') AS email, role, created_at FROM users WHERE id = ?`
	var u domain.User
	err := r.db.GetContext(ctx, &u, r.db.Rebind(q), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) GetOrCreateByEmail(ctx context.Context, email, name string) (int64, error) {
	const sel = `SELECT id FROM users WHERE email = ?`
	var id int64
	err := r.db.GetContext(ctx, &id, r.db.Rebind(sel), email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	const ins = `INSERT INTO users (name, email, role, created_at) VALUES (?,?,?,?)`
	id, err = insertID(ctx, r.db, ins, stringOrDash(name), email, string(domain.RoleDeveloper), time.Now().UTC())
	if err != nil {
		// lost a race on the unique email, read the winner
		if gerr := r.db.GetContext(ctx, &id, r.db.Rebind(sel), email); gerr == nil {
			return id, nil
		}
		return 0, err
	}
	return id, nil
}
