package analysis

import (
	"context"

	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

// Repository persists analyses keyed by change id.
type Repository interface {
	Save(ctx context.Context, s *Stored) error
	GetByChange(ctx context.Context, changeID int64) (*Stored, error)
	ListByChanges(ctx context.Context, changeIDs []int64) (map[int64]*Stored, error)
}

// TestCaseGenerator is the completion-analysis service as seen by the aggregator.
type TestCaseGenerator interface {
	GenerateTestCases(ctx context.Context, rec changes.Record) (*TestCaseResponse, error)
}

// ChangeAnalyzer is the chat-analysis service as seen by the aggregator.
type ChangeAnalyzer interface {
	AnalyzeChange(ctx context.Context, rec changes.Record, ai *TestCaseResponse) (*Response, error)
}

type Cache interface {
	Get(ctx context.Context, changeID int64) (*ChangeAnalysis, bool, error)
	Set(ctx context.Context, a *ChangeAnalysis) error
}

type ArtifactStore interface {
	PutJSON(ctx context.Context, key string, v any) (string, error)
}
