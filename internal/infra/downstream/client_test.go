package downstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

func fastOpts(retries int) Options {
	return Options{Timeout: time.Second, MaxRetries: retries, InitialInterval: time.Millisecond}
}

func TestPostJSON_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	var out struct{ OK bool }
	err := NewClient(srv.URL, fastOpts(2)).PostJSON(context.Background(), "/x", map[string]int{"a": 1}, &out)
	require.NoError(t, err)
	assert.True(t, out.OK)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPostJSON_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, fastOpts(2)).PostJSON(context.Background(), "/x", nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.Code)
	assert.EqualValues(t, 3, calls.Load())
}

func TestPostJSON_NoRetryOnClientError(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad"}`, http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, fastOpts(5)).PostJSON(context.Background(), "/x", nil, nil)
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnprocessableEntity, se.Code)
	assert.EqualValues(t, 1, calls.Load())
}

func TestPostJSON_TimeoutCountsAsFailure(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	opts := Options{Timeout: 20 * time.Millisecond, MaxRetries: 1, InitialInterval: time.Millisecond}
	start := time.Now()
	err := NewClient(srv.URL, opts).PostJSON(context.Background(), "/slow", nil, nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCompletionAndChatClients(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Contains(t, body, "record")
		w.Header().Set("Content-Type", "application/json")

		switch r.URL.Path {
		case "/generate-testcases":
			_, _ = w.Write([]byte(`{"message":"Test cases generated","testCases":[{"id":1,"description":"d"}]}`))
		case "/analyze":
			assert.Contains(t, body, "aiResponse")
			_, _ = w.Write([]byte(`{"message":"Analysis completed","analysisResult":{"risk_score":3,"security_issues":[],"test_recommendations":[],"edge_cases":[],"framework":"Jest"},"requestId":"r1","processingTimeMs":12}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	rec := changes.Record{ID: 1, FilePath: "a.js", ChangeType: changes.ChangeModified, PreviousV: "a", CurrentV: "b"}
	ctx := context.Background()

	tc, err := NewCompletionClient(srv.URL, fastOpts(0)).GenerateTestCases(ctx, rec)
	require.NoError(t, err)
	require.Len(t, tc.TestCases, 1)

	resp, err := NewChatClient(srv.URL, fastOpts(0)).AnalyzeChange(ctx, rec, tc)
	require.NoError(t, err)
	require.NotNil(t, resp.AnalysisResult)
	assert.Equal(t, 3.0, resp.AnalysisResult.RiskScore)
	assert.Equal(t, "r1", resp.RequestID)
}

func TestChatClient_FailureShapeDecodes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"Analysis completed","analysisResult":{"error":"failed to parse model response","raw":"{oops"}}`))
	}))
	defer srv.Close()

	resp, err := NewChatClient(srv.URL, fastOpts(0)).AnalyzeChange(context.Background(), changes.Record{}, nil)
	require.NoError(t, err)
	assert.Equal(t, analysis.Result{Error: "failed to parse model response", Raw: "{oops"}, *resp.AnalysisResult)
}

func TestForwarder(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/api/changes", r.URL.Path)
		assert.Equal(t, "Bearer watcher-key", r.Header.Get("Authorization"))

		var p watch.ForwardPayload
		require.NoError(t, json.NewDecoder(r.Body).Decode(&p))
		if p.FilePath == "reject.py" {
			http.Error(w, `{"error":"missing required fields"}`, http.StatusBadRequest)
			return
		}
		_, _ = w.Write([]byte(`{"message":"Change recorded successfully"}`))
	}))
	defer srv.Close()

	opts := fastOpts(2)
	opts.APIKey = "watcher-key"
	fw := NewForwarder(srv.URL, opts)
	ctx := context.Background()

	require.NoError(t, fw.Forward(ctx, watch.ForwardPayload{UserID: 1, FilePath: "ok.py", ChangeType: "added", PreviousV: "empty", CurrentV: "x"}))

	err := fw.Forward(ctx, watch.ForwardPayload{UserID: 1, FilePath: "reject.py"})
	assert.ErrorIs(t, err, watch.ErrRejected)
	assert.EqualValues(t, 2, calls.Load(), "a 400 is not retried")
}

func TestPing(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			_, _ = w.Write([]byte(`{"status":"healthy"}`))
			return
		}
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, fastOpts(0))
	assert.NoError(t, c.Ping(context.Background(), "/health"))
	assert.Error(t, c.Ping(context.Background(), "/other"))
}
