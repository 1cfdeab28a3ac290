package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	domain "github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

type AnalysisRepository struct {
	db *sqlx.DB
}

func NewAnalysisRepository(db *sqlx.DB) *AnalysisRepository {
	return &AnalysisRepository{db: db}
}

type aiResultRow struct {
	ID              int64           `db:"id"`
	ChangeID        int64           `db:"change_id"`
	CompletionJSON  string          `db:"completion_json"`
	ChatJSON        string          `db:"chat_json"`
	RiskScore       sql.NullFloat64 `db:"risk_score"`
	ConfidenceScore float64         `db:"confidence_score"`
	ArtifactURL     string          `db:"artifact_url"`
	CreatedAt       time.Time       `db:"created_at"`
}

const aiResultColumns = `
SELECT id, change_id, completion_json, chat_json, risk_score, confidence_score, artifact_url, created_at
FROM ai_results`

// Save replaces the analysis of s.ChangeID together with its test_cases rows.
func (r *AnalysisRepository) Save(ctx context.Context, s *domain.Stored) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	var risk sql.NullFloat64
	if s.RiskScore != nil {
		risk = sql.NullFloat64{Float64: *s.RiskScore, Valid: true}
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck

	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM test_cases WHERE change_id = ?`), s.ChangeID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, tx.Rebind(`DELETE FROM ai_results WHERE change_id = ?`), s.ChangeID); err != nil {
		return err
	}

	const ins = `
INSERT INTO ai_results (change_id, completion_json, chat_json, risk_score, confidence_score, artifact_url, created_at)
VALUES (?,?,?,?,?,?,?)`
	id, err := insertID(ctx, tx, ins,
		s.ChangeID,
		jsonOrObject(mustJSON(s.Completion)),
		jsonOrObject(mustJSON(s.Chat)),
		risk,
		s.ConfidenceScore,
		s.ArtifactURL,
		s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert ai_results: %w", err)
	}

	const insCase = `
INSERT INTO test_cases (change_id, description, test_code, test_type, priority, created_at)
VALUES (?,?,?,?,?,?)`
	for _, rec := range s.Recommendations() {
		if _, err := tx.ExecContext(ctx, tx.Rebind(insCase),
			s.ChangeID,
			stringOrDash(rec.Description),
			rec.TestCode,
			clip(stringOrDash(rec.TestType), testTypeWidth),
			clip(stringOrDash(rec.Priority), priorityWidth),
			s.CreatedAt,
		); err != nil {
			return fmt.Errorf("insert test_cases: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	s.ID = id
	return nil
}

func (r *AnalysisRepository) GetByChange(ctx context.Context, changeID int64) (*domain.Stored, error) {
	var row aiResultRow
	err := r.db.GetContext(ctx, &row, r.db.Rebind(aiResultColumns+` WHERE change_id = ?`), changeID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, changes.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return row.toDomain()
}

func (r *AnalysisRepository) ListByChanges(ctx context.Context, changeIDs []int64) (map[int64]*domain.Stored, error) {
	out := make(map[int64]*domain.Stored, len(changeIDs))
	if len(changeIDs) == 0 {
		return out, nil
	}
	q, args, err := sqlx.In(aiResultColumns+` WHERE change_id IN (?)`, changeIDs)
	if err != nil {
		return nil, err
	}
	var rows []aiResultRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(q), args...); err != nil {
		return nil, err
	}
	for i := range rows {
		s, err := rows[i].toDomain()
		if err != nil {
			return nil, err
		}
		out[s.ChangeID] = s
	}
	return out, nil
}

func (row aiResultRow) toDomain() (*domain.Stored, error) {
	s := &domain.Stored{
		ID:              row.ID,
		ChangeID:        row.ChangeID,
		ConfidenceScore: row.ConfidenceScore,
		ArtifactURL:     row.ArtifactURL,
		CreatedAt:       row.CreatedAt,
	}
	if row.RiskScore.Valid {
		v := row.RiskScore.Float64
		s.RiskScore = &v
	}
	if err := json.Unmarshal([]byte(row.CompletionJSON), &s.Completion); err != nil {
		return nil, fmt.Errorf("decode completion_json for change %d: %w", row.ChangeID, err)
	}
	if err := json.Unmarshal([]byte(row.ChatJSON), &s.Chat); err != nil {
		return nil, fmt.Errorf("decode chat_json for change %d: %w", row.ChangeID, err)
	}
	return s, nil
}
