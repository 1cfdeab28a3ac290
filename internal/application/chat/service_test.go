package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

type fakeChat struct {
	out    string
	err    error
	system string
	user   string
	calls  int
}

func (f *fakeChat) Chat(_ context.Context, system, user string) (string, error) {
	f.calls++
	f.system, f.user = system, user
	return f.out, f.err
}

type stepClock struct {
	t    time.Time
	step time.Duration
}

func (c *stepClock) Now() time.Time {
	now := c.t
	c.t = c.t.Add(c.step)
	return now
}

var pyChange = changes.Record{ID: 9, FilePath: "app/calc.py", ChangeType: changes.ChangeModified, PreviousV: "v1", CurrentV: "v2"}

func TestAnalyzeChange_MergesTestCases(t *testing.T) {
	fc := &fakeChat{out: validAnalysis}
	svc := &Service{AI: fc, Clock: &stepClock{t: time.Unix(0, 0), step: 250 * time.Millisecond}}

	prior := &analysis.TestCaseResponse{TestCases: []analysis.TestCase{
		{ID: 1.0, Description: "adds", Input: "assert add(1, 2) == 3"},
		{ID: 2.0, Description: "structured", Input: map[string]any{"a": 1.0}},
		{ID: 3.0, Description: "no input"},
	}}

	resp, err := svc.AnalyzeChange(context.Background(), pyChange, prior)
	require.NoError(t, err)

	assert.Equal(t, MessageCompleted, resp.Message)
	assert.EqualValues(t, 250, resp.ProcessingTimeMs)
	_, err = uuid.Parse(resp.RequestID)
	assert.NoError(t, err)

	recs := resp.AnalysisResult.TestRecommendations
	require.Len(t, recs, 4)
	assert.Equal(t, analysis.Recommendation{Description: "adds", TestCode: "assert add(1, 2) == 3", TestType: "unit", Priority: "medium"}, recs[1])
	assert.Equal(t, `{"a":1}`, recs[2].TestCode)
	assert.Equal(t, "// no test code provided", recs[3].TestCode)

	assert.Contains(t, fc.user, "Python")
	assert.Contains(t, fc.user, "pytest")
	assert.Contains(t, fc.user, "- adds")
	assert.Contains(t, fc.system, "risk_score")
}

func TestAnalyzeChange_FailedCompletionIsNotMerged(t *testing.T) {
	svc := &Service{AI: &fakeChat{out: validAnalysis}}

	resp, err := svc.AnalyzeChange(context.Background(), pyChange, &analysis.TestCaseResponse{Error: "completion service unavailable"})
	require.NoError(t, err)
	assert.Len(t, resp.AnalysisResult.TestRecommendations, 1)
}

func TestAnalyzeChange_UnusableOutputStillSucceeds(t *testing.T) {
	svc := &Service{
		AI:      &fakeChat{out: "no json here"},
		Secrets: func(string, string) []string { return []string{"should not be added"} },
	}

	resp, err := svc.AnalyzeChange(context.Background(), pyChange, &analysis.TestCaseResponse{TestCases: []analysis.TestCase{{Description: "x"}}})
	require.NoError(t, err)
	require.NotNil(t, resp.AnalysisResult)
	assert.Equal(t, MsgNoJSON, resp.AnalysisResult.Error)
	assert.Equal(t, "no json here", resp.AnalysisResult.Raw)
	assert.Empty(t, resp.AnalysisResult.TestRecommendations)
	assert.Empty(t, resp.AnalysisResult.SecurityIssues)
}

func TestAnalyzeChange_AppendsLocalFindingsOnce(t *testing.T) {
	var scanned string
	svc := &Service{
		AI: &fakeChat{out: validAnalysis},
		Secrets: func(path, content string) []string {
			scanned = path + ":" + content
			return []string{"sql injection", "AWS access key exposed"}
		},
	}

	resp, err := svc.AnalyzeChange(context.Background(), pyChange, nil)
	require.NoError(t, err)
	assert.Equal(t, "app/calc.py:v2", scanned)
	assert.Equal(t, []string{"sql injection", "AWS access key exposed"}, resp.AnalysisResult.SecurityIssues)
}

func TestAnalyzeChange_ProviderError(t *testing.T) {
	svc := &Service{AI: &fakeChat{err: errors.New("dial tcp: refused")}}

	_, err := svc.AnalyzeChange(context.Background(), pyChange, nil)
	assert.Error(t, err)
}
