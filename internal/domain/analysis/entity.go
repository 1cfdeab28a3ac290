package analysis

import (
	"encoding/json"
	"time"

	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

// TestCase is one generated test or checklist item. Input and ExpectedOutput keep
// whatever JSON the model produced.
type TestCase struct {
	ID             any    `json:"id,omitempty"`
	Description    string `json:"description"`
	Input          any    `json:"input,omitempty"`
	ExpectedOutput any    `json:"expected_output,omitempty"`
}

// TestCaseResponse is the completion service reply. Error is set instead of the
// other fields when the service could not be reached.
type TestCaseResponse struct {
	Message   string     `json:"message,omitempty"`
	TestCases []TestCase `json:"testCases,omitempty"`
	Error     string     `json:"error,omitempty"`
}

func (r *TestCaseResponse) Failed() bool { return r == nil || r.Error != "" }

// MarshalJSON emits {error} for the unavailable shape and otherwise always
// carries testCases, as [] when the model produced none.
func (r TestCaseResponse) MarshalJSON() ([]byte, error) {
	if r.Error != "" {
		return json.Marshal(struct {
			Error string `json:"error"`
		}{r.Error})
	}
	cases := r.TestCases
	if cases == nil {
		cases = []TestCase{}
	}
	return json.Marshal(struct {
		Message   string     `json:"message,omitempty"`
		TestCases []TestCase `json:"testCases"`
	}{r.Message, cases})
}

type Recommendation struct {
	Description string `json:"description"`
	TestCode    string `json:"test_code"`
	TestType    string `json:"test_type"`
	Priority    string `json:"priority"`
}

// Result is the structured chat analysis. When Error is set the model output
// could not be used and Raw holds it verbatim.
type Result struct {
	RiskScore           float64          `json:"risk_score"`
	SecurityIssues      []string         `json:"security_issues"`
	TestRecommendations []Recommendation `json:"test_recommendations"`
	EdgeCases           []string         `json:"edge_cases"`
	Framework           string           `json:"framework"`

	Error string `json:"error,omitempty"`
	Raw   string `json:"raw,omitempty"`
}

func (r Result) Failed() bool { return r.Error != "" }

// MarshalJSON emits {error, raw} for failed results and the plain schema otherwise.
func (r Result) MarshalJSON() ([]byte, error) {
	if r.Failed() {
		return json.Marshal(struct {
			Error string `json:"error"`
			Raw   string `json:"raw,omitempty"`
		}{r.Error, r.Raw})
	}
	type plain Result
	return json.Marshal(plain(r))
}

// Response is the chat service reply.
type Response struct {
	Message          string  `json:"message,omitempty"`
	AnalysisResult   *Result `json:"analysisResult,omitempty"`
	RequestID        string  `json:"requestId,omitempty"`
	ProcessingTimeMs int64   `json:"processingTimeMs,omitempty"`
	Error            string  `json:"error,omitempty"`
}

func (r *Response) Failed() bool { return r == nil || r.Error != "" }

// ChangeAnalysis is the merged triple addressed by the change id.
type ChangeAnalysis struct {
	Record          *changes.Record   `json:"record"`
	AIResponse      *TestCaseResponse `json:"aiResponse"`
	MistralResponse *Response         `json:"mistralResponse"`
}

// Stored is the ai_results row for one change.
type Stored struct {
	ID              int64
	ChangeID        int64
	Completion      *TestCaseResponse
	Chat            *Response
	RiskScore       *float64
	ConfidenceScore float64
	ArtifactURL     string
	CreatedAt       time.Time
}

// Recommendations returns the merged recommendations of a successful chat analysis.
func (s *Stored) Recommendations() []Recommendation {
	if s == nil || s.Chat.Failed() || s.Chat.AnalysisResult == nil || s.Chat.AnalysisResult.Failed() {
		return nil
	}
	return s.Chat.AnalysisResult.TestRecommendations
}
