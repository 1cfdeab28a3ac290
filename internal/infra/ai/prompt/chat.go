package prompt

import (
	"fmt"
	"strings"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

// AnalysisSystem fixes the output contract for the chat model.
func AnalysisSystem() string {
	return `You are a senior application security and QA engineer. You must produce one valid JSON object only (no markdown, no commentary, no code fences) with exactly these keys:

{
  "risk_score": <number from 1 (safe) to 10 (critical)>,
  "security_issues": ["<string>"],
  "test_recommendations": [
    {"description": "<string>", "test_code": "<string>", "test_type": "<unit|integration|e2e|security>", "priority": "<high|medium|low>"}
  ],
  "edge_cases": ["<string>"],
  "framework": "<test framework name>"
}

Use empty arrays when there is nothing to report. Keep test_code runnable and short.`
}

// AnalysisUser describes the change, the detected language and framework, and the
// test cases the completion model already proposed.
func AnalysisUser(rec changes.Record, language, framework string, prior *analysis.TestCaseResponse) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Analyze this %s code change and write tests using %s.\n\n", language, framework)
	fmt.Fprintf(&b, "File: %s\nChange type: %s\n\n", rec.FilePath, rec.ChangeType)
	fmt.Fprintf(&b, "Previous version:\n%s\n\nCurrent version:\n%s\n", rec.PreviousV, rec.CurrentV)

	if prior != nil && len(prior.TestCases) > 0 {
		b.WriteString("\nAlready proposed test cases (do not repeat them):\n")
		for _, tc := range prior.TestCases {
			fmt.Fprintf(&b, "- %s\n", tc.Description)
		}
	}
	return b.String()
}
