package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

func sample(id int64) *analysis.ChangeAnalysis {
	return &analysis.ChangeAnalysis{
		Record:     &changes.Record{ID: id, UserID: 1, FilePath: "a.py", ChangeType: changes.ChangeModified, PreviousV: "v1", CurrentV: "v2"},
		AIResponse: &analysis.TestCaseResponse{Message: "Test cases generated", TestCases: []analysis.TestCase{{ID: 1.0, Description: "d"}}},
		MistralResponse: &analysis.Response{
			Message:        "Analysis completed",
			AnalysisResult: &analysis.Result{RiskScore: 3, SecurityIssues: []string{}, TestRecommendations: []analysis.Recommendation{}, EdgeCases: []string{}, Framework: "pytest"},
		},
	}
}

func TestRedisCache(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), time.Minute)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	_, ok, err := c.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Set(ctx, sample(7)))
	assert.True(t, s.Exists("analysis:7"))

	got, ok, err := c.Get(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a.py", got.Record.FilePath)
	assert.Equal(t, 3.0, got.MistralResponse.AnalysisResult.RiskScore)
	assert.Equal(t, "d", got.AIResponse.TestCases[0].Description)

	s.FastForward(2 * time.Minute)
	_, ok, err = c.Get(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok, "entry expires with the ttl")
}

func TestRedisCache_BadURL(t *testing.T) {
	_, err := NewRedisCache("not-a-url", time.Minute)
	assert.Error(t, err)
}

func TestRedisCache_CorruptEntry(t *testing.T) {
	s := miniredis.RunT(t)
	c, err := NewRedisCache("redis://"+s.Addr(), 0)
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, s.Set("analysis:1", "{not json"))
	_, ok, err := c.Get(context.Background(), 1)
	assert.Error(t, err)
	assert.False(t, ok)
}

func TestMemoryCache(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	require.NoError(t, c.Set(ctx, sample(1)))
	got, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	require.True(t, ok)
	assert.EqualValues(t, 1, got.Record.ID)

	now = now.Add(2 * time.Minute)
	_, ok, err = c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Error(t, c.Set(ctx, &analysis.ChangeAnalysis{}))
}

func TestMemoryCache_SetSweepsExpired(t *testing.T) {
	c := NewMemoryCache(time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 10000; i++ {
		require.NoError(t, c.Set(ctx, sample(i)))
	}
	assert.Equal(t, 10000, c.Len())

	now = now.Add(time.Hour)
	require.NoError(t, c.Set(ctx, sample(10001)))
	assert.Equal(t, 1, c.Len())
}

func TestMemoryCache_Bounded(t *testing.T) {
	c := NewMemoryCache(time.Hour)
	c.maxItems = 3
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		now = now.Add(time.Second)
		require.NoError(t, c.Set(ctx, sample(i)))
	}
	assert.Equal(t, 3, c.Len())

	_, ok, err := c.Get(ctx, 1)
	require.NoError(t, err)
	assert.False(t, ok, "earliest expiry is evicted first")
	_, ok, err = c.Get(ctx, 5)
	require.NoError(t, err)
	assert.True(t, ok)
}
