package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	appchanges "github.com/bryanwahyu/testcompanion/internal/application/changes"
	appchat "github.com/bryanwahyu/testcompanion/internal/application/chat"
	appcompletion "github.com/bryanwahyu/testcompanion/internal/application/completion"
	"github.com/bryanwahyu/testcompanion/internal/infra/cache"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/sqlite"
	"github.com/bryanwahyu/testcompanion/internal/infra/db/sqlstore"
	"github.com/bryanwahyu/testcompanion/internal/infra/downstream"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

const modelTestCases = `[{"id": 1, "description": "returns v2 for valid input", "input": "v1", "expected_output": "v2"}]`

const modelAnalysis = `Here is the analysis:
{"risk_score": 4, "security_issues": [], "test_recommendations": [{"description": "covers the happy path", "test_code": "def test_ok(): pass", "test_type": "unit", "priority": "high"}], "edge_cases": ["empty file"], "framework": "pytest"}
Let me know if you need more.`

type fakeCompleter struct {
	out string
	err error
}

func (f fakeCompleter) Complete(context.Context, string) (string, error) { return f.out, f.err }

type fakeChat struct {
	out string
	err error
}

func (f fakeChat) Chat(context.Context, string, string) (string, error) { return f.out, f.err }

func newDB(t *testing.T) *sqlx.DB {
	t.Helper()
	db, err := sqlite.Open(context.Background(), filepath.Join(t.TempDir(), "http.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// startAnalysisServices runs the completion and chat routers on test servers
// backed by canned model output.
func startAnalysisServices(t *testing.T) (completionURL, chatURL string) {
	t.Helper()
	comp := httptest.NewServer(NewCompletionRouter(&appcompletion.Service{AI: fakeCompleter{out: modelTestCases}}, Options{}))
	t.Cleanup(comp.Close)
	chat := httptest.NewServer(NewChatRouter(&appchat.Service{AI: fakeChat{out: modelAnalysis}}, Options{}))
	t.Cleanup(chat.Close)
	return comp.URL, chat.URL
}

func unreachableURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()
	return srv.URL
}

func newChangesService(db *sqlx.DB, completionURL, chatURL string, m *middleware.Metrics) *appchanges.Service {
	opts := downstream.Options{Timeout: 2 * time.Second, InitialInterval: 10 * time.Millisecond}
	return &appchanges.Service{
		Changes:    sqlstore.NewChangeRepository(db),
		Users:      sqlstore.NewUserRepository(db),
		Analyses:   sqlstore.NewAnalysisRepository(db),
		Audit:      sqlstore.NewAuditRepository(db),
		Completion: downstream.NewCompletionClient(completionURL, opts),
		Chat:       downstream.NewChatClient(chatURL, opts),
		Cache:      cache.NewMemoryCache(time.Minute),
		Metrics:    m,
	}
}

func do(t *testing.T, h http.Handler, method, path string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var r io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		r = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		r = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func countRows(t *testing.T, db *sqlx.DB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT COUNT(*) FROM "+table))
	return n
}
