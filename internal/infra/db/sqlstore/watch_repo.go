package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

type RepositoryStore struct {
	db *sqlx.DB
}

func NewRepositoryStore(db *sqlx.DB) *RepositoryStore { return &RepositoryStore{db: db} }

const repositoryColumns = `
SELECT id, name, path, is_watching, total_changes, last_change, created_at
FROM repositories`

func (s *RepositoryStore) Create(ctx context.Context, r *domain.Repository) error {
	const q = `
INSERT INTO repositories (id, name, path, is_watching, total_changes, last_change, created_at)
VALUES (?,?,?,?,?,?,?)`
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q), r.ID, r.Name, r.Path, r.IsWatching, r.TotalChanges, r.LastChange, r.CreatedAt)
	return err
}

func (s *RepositoryStore) Get(ctx context.Context, id string) (*domain.Repository, error) {
	return s.getOne(ctx, repositoryColumns+` WHERE id = ?`, id)
}

func (s *RepositoryStore) GetByPath(ctx context.Context, path string) (*domain.Repository, error) {
	return s.getOne(ctx, repositoryColumns+` WHERE path = ?`, path)
}

func (s *RepositoryStore) getOne(ctx context.Context, q string, arg any) (*domain.Repository, error) {
	var r domain.Repository
	err := s.db.GetContext(ctx, &r, s.db.Rebind(q), arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RepositoryStore) List(ctx context.Context) ([]*domain.Repository, error) {
	out := []*domain.Repository{}
	if err := s.db.SelectContext(ctx, &out, repositoryColumns+` ORDER BY created_at ASC, id ASC`); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *RepositoryStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM repositories`)
	return n, err
}

func (s *RepositoryStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`DELETE FROM repositories WHERE id = ?`), id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func (s *RepositoryStore) SetWatching(ctx context.Context, id string, watching bool) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE repositories SET is_watching = ? WHERE id = ?`), watching, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

func affectedOrNotFound(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type FileChangeStore struct {
	db *sqlx.DB
}

func NewFileChangeStore(db *sqlx.DB) *FileChangeStore { return &FileChangeStore{db: db} }

const fileChangeColumns = `
SELECT id, repository_id, user_id, file_path, relative_path, change_type, git_diff, author,
       author_email, commit_hash, file_extension, lines_added, lines_removed, previous_content,
       current_content, is_processed, sent_to_ai, created_at
FROM file_changes`

func (s *FileChangeStore) Create(ctx context.Context, c *domain.FileChange) error {
	const ins = `
INSERT INTO file_changes
  (id, repository_id, user_id, file_path, relative_path, change_type, git_diff, author, author_email,
   commit_hash, file_extension, lines_added, lines_removed, previous_content, current_content,
   is_processed, sent_to_ai, created_at)
VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`
	const bump = `UPDATE repositories SET total_changes = total_changes + 1, last_change = ? WHERE id = ?`

	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(ins),
		c.ID, c.RepositoryID, c.UserID, c.FilePath, c.RelativePath, string(c.ChangeType), c.GitDiff,
		stringOrDash(c.Author), stringOrDash(c.AuthorEmail), c.CommitHash, c.FileExtension,
		c.LinesAdded, c.LinesRemoved, c.PreviousContent, c.CurrentContent,
		c.IsProcessed, c.SentToAI, c.CreatedAt,
	); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(bump), c.CreatedAt, c.RepositoryID); err != nil {
		return err
	}
	return tx.Commit()
}

func (s *FileChangeStore) Get(ctx context.Context, id string) (*domain.FileChange, error) {
	var c domain.FileChange
	err := s.db.GetContext(ctx, &c, s.db.Rebind(fileChangeColumns+` WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *FileChangeStore) List(ctx context.Context, f domain.ChangeFilter) ([]*domain.FileChange, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = 50
	}
	q := fileChangeColumns
	var args []any
	if f.RepositoryID != "" {
		q += ` WHERE repository_id = ?`
		args = append(args, f.RepositoryID)
	}
	q += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	out := []*domain.FileChange{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	return out, nil
}

// ListPending returns changes not yet accepted by the aggregator, oldest first.
func (s *FileChangeStore) ListPending(ctx context.Context, limit int) ([]*domain.FileChange, error) {
	if limit <= 0 {
		limit = 10
	}
	q := fileChangeColumns + ` WHERE sent_to_ai = ? ORDER BY created_at ASC, id ASC LIMIT ?`
	out := []*domain.FileChange{}
	if err := s.db.SelectContext(ctx, &out, s.db.Rebind(q), false, limit); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *FileChangeStore) MarkSent(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.db.Rebind(`UPDATE file_changes SET sent_to_ai = ?, is_processed = ? WHERE id = ?`), true, true, id)
	if err != nil {
		return err
	}
	return affectedOrNotFound(res)
}

type statsRow struct {
	Total    int64 `db:"total"`
	Sent     int64 `db:"sent"`
	Created  int64 `db:"created"`
	Modified int64 `db:"modified"`
	Deleted  int64 `db:"deleted"`
	Recent   int64 `db:"recent"`
}

func (s *FileChangeStore) Stats(ctx context.Context, repositoryID string, since time.Time) (*domain.Stats, error) {
	q := `
SELECT COUNT(*) AS total,
       COALESCE(SUM(CASE WHEN sent_to_ai THEN 1 ELSE 0 END), 0) AS sent,
       COALESCE(SUM(CASE WHEN change_type = 'created' THEN 1 ELSE 0 END), 0) AS created,
       COALESCE(SUM(CASE WHEN change_type = 'modified' THEN 1 ELSE 0 END), 0) AS modified,
       COALESCE(SUM(CASE WHEN change_type = 'deleted' THEN 1 ELSE 0 END), 0) AS deleted,
       COALESCE(SUM(CASE WHEN created_at >= ? THEN 1 ELSE 0 END), 0) AS recent
FROM file_changes`
	args := []any{since}
	if repositoryID != "" {
		q += ` WHERE repository_id = ?`
		args = append(args, repositoryID)
	}

	var row statsRow
	if err := s.db.GetContext(ctx, &row, s.db.Rebind(q), args...); err != nil {
		return nil, err
	}

	st := &domain.Stats{
		TotalChanges: row.Total,
		SentToAI:     row.Sent,
		PendingAI:    row.Total - row.Sent,
		ByType: map[string]int64{
			string(domain.Created):  row.Created,
			string(domain.Modified): row.Modified,
			string(domain.Deleted):  row.Deleted,
		},
		Last24h:      row.Recent,
		RepositoryID: repositoryID,
	}
	if row.Total > 0 {
		st.SuccessRate = float64(row.Sent) / float64(row.Total) * 100
	}
	return st, nil
}
