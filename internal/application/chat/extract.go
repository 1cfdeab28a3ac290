package chat

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
)

const (
	MsgNoJSON       = "no JSON object found in model response"
	MsgParse        = "failed to parse model response"
	schemaErrPrefix = "analysis does not match schema: "
)

// ExtractAnalysis pulls the first-brace-to-last-brace span out of raw and checks it
// against the analysis schema. It never fails; problems are reported on the
// returned Result together with the raw text.
func ExtractAnalysis(raw string) analysis.Result {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end < start {
		return analysis.Result{Error: MsgNoJSON, Raw: raw}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(raw[start:end+1]), &fields); err != nil {
		return analysis.Result{Error: MsgParse, Raw: raw}
	}

	var (
		res      analysis.Result
		problems []string
	)
	decode := func(key string, dst any, want string) {
		v, ok := fields[key]
		if !ok {
			problems = append(problems, "missing "+key)
			return
		}
		if bytes.Equal(bytes.TrimSpace(v), []byte("null")) || json.Unmarshal(v, dst) != nil {
			problems = append(problems, fmt.Sprintf("%s must be %s", key, want))
		}
	}
	decode("risk_score", &res.RiskScore, "a number")
	decode("security_issues", &res.SecurityIssues, "an array of strings")
	decode("test_recommendations", &res.TestRecommendations, "an array of recommendation objects")
	decode("edge_cases", &res.EdgeCases, "an array of strings")
	decode("framework", &res.Framework, "a string")

	if len(problems) > 0 {
		return analysis.Result{Error: schemaErrPrefix + strings.Join(problems, "; "), Raw: raw}
	}

	res.RiskScore = clamp(res.RiskScore, 1, 10)
	if res.SecurityIssues == nil {
		res.SecurityIssues = []string{}
	}
	if res.TestRecommendations == nil {
		res.TestRecommendations = []analysis.Recommendation{}
	}
	for i := range res.TestRecommendations {
		r := &res.TestRecommendations[i]
		r.TestType = normalizeTestType(r.TestType)
		r.Priority = normalizePriority(r.Priority)
	}
	if res.EdgeCases == nil {
		res.EdgeCases = []string{}
	}
	return res
}

func clamp(v, lo, hi float64) float64 {
	switch {
	case v < lo:
		return lo
	case v > hi:
		return hi
	}
	return v
}

// normalizeTestType maps free-form model output onto unit|integration|e2e|security.
func normalizeTestType(v string) string {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "integration"):
		return "integration"
	case strings.Contains(v, "e2e"), strings.Contains(v, "end-to-end"), strings.Contains(v, "end to end"):
		return "e2e"
	case strings.Contains(v, "security"):
		return "security"
	}
	return "unit"
}

// normalizePriority maps free-form model output onto high|medium|low.
// "medium-high" counts as medium; anything unrecognised is medium.
func normalizePriority(v string) string {
	v = strings.ToLower(v)
	switch {
	case strings.Contains(v, "medium"):
		return "medium"
	case strings.Contains(v, "high"), strings.Contains(v, "critical"):
		return "high"
	case strings.Contains(v, "low"):
		return "low"
	}
	return "medium"
}
