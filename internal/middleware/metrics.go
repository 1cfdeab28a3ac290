package middleware

import (
	"encoding/json"
	"net/http"
	"runtime"
	"sync/atomic"
	"time"
)

// Metrics stores process counters. One instance is shared by the router and
// the application services.
type Metrics struct {
	RequestsTotal      atomic.Uint64
	RequestsInProgress atomic.Int64
	RequestsSuccess    atomic.Uint64
	RequestsFailed     atomic.Uint64

	ChangesRecorded    atomic.Uint64
	CompletionFailures atomic.Uint64
	ChatFailures       atomic.Uint64
	PersistFailures    atomic.Uint64
	FileChanges        atomic.Uint64
	ForwardFailures    atomic.Uint64

	StartTime time.Time
}

func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// Counter methods are no-ops on a nil *Metrics.

func (m *Metrics) ChangeRecorded() {
	if m != nil {
		m.ChangesRecorded.Add(1)
	}
}

func (m *Metrics) AnalysisPersistFailed() {
	if m != nil {
		m.PersistFailures.Add(1)
	}
}

func (m *Metrics) FileChangeObserved() {
	if m != nil {
		m.FileChanges.Add(1)
	}
}

func (m *Metrics) ForwardFailed() {
	if m != nil {
		m.ForwardFailures.Add(1)
	}
}

// DownstreamFailed counts a failed call to the completion or chat service.
func (m *Metrics) DownstreamFailed(service string) {
	if m == nil {
		return
	}
	switch service {
	case "completion":
		m.CompletionFailures.Add(1)
	case "chat":
		m.ChatFailures.Add(1)
	}
}

// Snapshot returns current metrics
func (m *Metrics) Snapshot() map[string]any {
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	return map[string]any{
		"requests_total":       m.RequestsTotal.Load(),
		"requests_in_progress": m.RequestsInProgress.Load(),
		"requests_success":     m.RequestsSuccess.Load(),
		"requests_failed":      m.RequestsFailed.Load(),
		"changes_recorded":     m.ChangesRecorded.Load(),
		"completion_failures":  m.CompletionFailures.Load(),
		"chat_failures":        m.ChatFailures.Load(),
		"persist_failures":     m.PersistFailures.Load(),
		"file_changes":         m.FileChanges.Load(),
		"forward_failures":     m.ForwardFailures.Load(),
		"uptime_seconds":       time.Since(m.StartTime).Seconds(),
		"memory": map[string]any{
			"alloc_bytes":       mem.Alloc,
			"total_alloc_bytes": mem.TotalAlloc,
			"sys_bytes":         mem.Sys,
			"num_gc":            mem.NumGC,
		},
		"goroutines": runtime.NumGoroutine(),
	}
}

// Middleware tracks request metrics
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m.RequestsTotal.Add(1)
		m.RequestsInProgress.Add(1)
		defer m.RequestsInProgress.Add(-1)

		wrapped := wrapWriter(w)
		next.ServeHTTP(wrapped, r)

		if wrapped.statusCode >= 200 && wrapped.statusCode < 400 {
			m.RequestsSuccess.Add(1)
		} else {
			m.RequestsFailed.Add(1)
		}
	})
}

// Handler returns metrics as JSON
func (m *Metrics) Handler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m.Snapshot())
}
