package chat

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/application"
	"github.com/bryanwahyu/testcompanion/internal/domain/ai"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	"github.com/bryanwahyu/testcompanion/internal/infra/ai/prompt"
)

const (
	MessageCompleted = "Analysis completed"
	noTestCode       = "// no test code provided"
)

// Service asks the chat model for a structured risk analysis of a change.
type Service struct {
	AI ai.ChatCompleter
	// Secrets, when set, scans the current version locally and its findings are
	// appended to security_issues.
	Secrets func(path, content string) []string
	Clock   application.Clock
	Log     *zap.Logger
}

var _ analysis.ChangeAnalyzer = (*Service)(nil)

// AnalyzeChange returns an error only when the model could not be reached.
// Output that does not fit the schema is reported inside the result.
func (s *Service) AnalyzeChange(ctx context.Context, rec changes.Record, prior *analysis.TestCaseResponse) (*analysis.Response, error) {
	clock := application.OrSystem(s.Clock)
	started := clock.Now()

	language := LanguageFor(rec.Extension())
	framework := FrameworkFor(language)

	raw, err := s.AI.Chat(ctx, prompt.AnalysisSystem(), prompt.AnalysisUser(rec, language, framework, prior))
	if err != nil {
		return nil, err
	}

	result := ExtractAnalysis(raw)
	if result.Failed() {
		if s.Log != nil {
			s.Log.Warn("unusable analysis from model",
				zap.String("file_path", rec.FilePath),
				zap.String("reason", result.Error),
			)
		}
	} else {
		result.TestRecommendations = append(result.TestRecommendations, fromTestCases(prior)...)
		if s.Secrets != nil {
			result.SecurityIssues = appendUnique(result.SecurityIssues, s.Secrets(rec.FilePath, rec.CurrentV)...)
		}
	}

	return &analysis.Response{
		Message:          MessageCompleted,
		AnalysisResult:   &result,
		RequestID:        uuid.NewString(),
		ProcessingTimeMs: clock.Now().Sub(started).Milliseconds(),
	}, nil
}

// fromTestCases turns completion test cases into unit recommendations.
func fromTestCases(prior *analysis.TestCaseResponse) []analysis.Recommendation {
	if prior.Failed() {
		return nil
	}
	out := make([]analysis.Recommendation, 0, len(prior.TestCases))
	for _, tc := range prior.TestCases {
		code := inputText(tc.Input)
		if code == "" {
			code = noTestCode
		}
		out = append(out, analysis.Recommendation{
			Description: tc.Description,
			TestCode:    code,
			TestType:    "unit",
			Priority:    "medium",
		})
	}
	return out
}

func inputText(v any) string {
	switch in := v.(type) {
	case nil:
		return ""
	case string:
		return in
	default:
		b, err := json.Marshal(in)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

func appendUnique(dst []string, items ...string) []string {
	seen := make(map[string]struct{}, len(dst))
	for _, s := range dst {
		seen[s] = struct{}{}
	}
	for _, s := range items {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		dst = append(dst, s)
	}
	return dst
}
