package httpserver

import (
	"net/http"

	appchat "github.com/bryanwahyu/testcompanion/internal/application/chat"
	appcompletion "github.com/bryanwahyu/testcompanion/internal/application/completion"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
)

type analysisRequest struct {
	Record     *changes.Record            `json:"record"`
	AIResponse *analysis.TestCaseResponse `json:"aiResponse"`
}

func (b *analysisRequest) decode(req *http.Request) error {
	if err := decodeJSON(req, b); err != nil {
		return err
	}
	if b.Record == nil {
		return badRequest("record is required")
	}
	return nil
}

// NewCompletionRouter serves POST /generate-testcases.
func NewCompletionRouter(svc *appcompletion.Service, opts Options) http.Handler {
	log := opts.log()
	mux := newMux("completion", opts)

	mux.With(opts.timeout()).Post("/generate-testcases", wrap(log, func(w http.ResponseWriter, req *http.Request) error {
		var body analysisRequest
		if err := body.decode(req); err != nil {
			return err
		}

		resp, err := svc.GenerateTestCases(req.Context(), *body.Record)
		if err != nil {
			return &upstreamError{msg: "failed to generate test cases", err: err}
		}
		writeJSON(w, http.StatusOK, resp)
		return nil
	}))

	return mux
}

// NewChatRouter serves POST /analyze.
func NewChatRouter(svc *appchat.Service, opts Options) http.Handler {
	log := opts.log()
	mux := newMux("chat", opts)

	mux.With(opts.timeout()).Post("/analyze", wrap(log, func(w http.ResponseWriter, req *http.Request) error {
		var body analysisRequest
		if err := body.decode(req); err != nil {
			return err
		}

		resp, err := svc.AnalyzeChange(req.Context(), *body.Record, body.AIResponse)
		if err != nil {
			return &upstreamError{msg: "failed to analyze change", err: err}
		}
		writeJSON(w, http.StatusOK, resp)
		return nil
	}))

	return mux
}
