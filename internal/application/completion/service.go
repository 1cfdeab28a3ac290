package completion

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/domain/ai"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	"github.com/bryanwahyu/testcompanion/internal/infra/ai/prompt"
)

const MessageGenerated = "Test cases generated"

var codeExtensions = map[string]bool{
	"js": true, "ts": true, "py": true, "java": true, "cpp": true, "c": true, "cs": true,
}

// IsCodeFile reports whether ext (without the dot) is treated as source code.
func IsCodeFile(ext string) bool {
	return codeExtensions[strings.ToLower(ext)]
}

// Service generates test cases for code changes and review checklists for documents.
type Service struct {
	AI  ai.Completer
	Log *zap.Logger
}

var _ analysis.TestCaseGenerator = (*Service)(nil)

// GenerateTestCases prompts the completion model for rec and parses its answer.
// Only provider failures are returned as errors; unusable text is wrapped as a
// single test case.
func (s *Service) GenerateTestCases(ctx context.Context, rec changes.Record) (*analysis.TestCaseResponse, error) {
	var p string
	if IsCodeFile(rec.Extension()) {
		p = prompt.CodeTestCases(rec)
	} else {
		p = prompt.DocumentChecklist(rec)
	}

	raw, err := s.AI.Complete(ctx, p)
	if err != nil {
		return nil, err
	}

	cases := ParseTestCases(raw)
	if s.Log != nil {
		s.Log.Debug("test cases generated",
			zap.String("file_path", rec.FilePath),
			zap.Int("count", len(cases)),
		)
	}
	return &analysis.TestCaseResponse{Message: MessageGenerated, TestCases: cases}, nil
}

// ParseTestCases decodes raw as a JSON array of test cases or an object holding
// testCases. Anything else becomes one test case whose description is the text.
func ParseTestCases(raw string) []analysis.TestCase {
	text := strings.TrimSpace(raw)

	var list []analysis.TestCase
	if err := json.Unmarshal([]byte(text), &list); err == nil && list != nil {
		return list
	}

	var wrapped struct {
		TestCases []analysis.TestCase `json:"testCases"`
	}
	if err := json.Unmarshal([]byte(text), &wrapped); err == nil && wrapped.TestCases != nil {
		return wrapped.TestCases
	}

	return []analysis.TestCase{{ID: 1, Description: text}}
}
