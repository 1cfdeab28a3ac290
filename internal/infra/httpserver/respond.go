package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

const maxBodyBytes = 10 << 20

// Options carries what every router shares.
type Options struct {
	Log            *zap.Logger
	Metrics        *middleware.Metrics
	AllowedOrigins []string
	// RequestTimeout bounds each request except the live feed. Zero means 60s.
	RequestTimeout time.Duration
	// Checkers feed /health. Ready feeds /readyz; nil reuses Checkers.
	Checkers map[string]middleware.HealthChecker
	Ready    map[string]middleware.HealthChecker
}

func (o Options) log() *zap.Logger {
	if o.Log == nil {
		return zap.NewNop()
	}
	return o.Log
}

func (o Options) metrics() *middleware.Metrics {
	if o.Metrics == nil {
		return middleware.NewMetrics()
	}
	return o.Metrics
}

// newMux applies the middleware stack shared by all processes and mounts the
// health, liveness, readiness and metrics routes.
func newMux(service string, o Options) *chi.Mux {
	m := o.metrics()
	mux := chi.NewRouter()
	mux.Use(chimw.RequestID)
	mux.Use(chimw.RealIP)
	mux.Use(middleware.Logging(o.log()))
	mux.Use(chimw.Recoverer)
	mux.Use(m.Middleware)
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   o.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-API-Key", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	mux.Get("/health", middleware.HealthHandler(service, o.Checkers))
	ready := o.Ready
	if ready == nil {
		ready = o.Checkers
	}
	mux.Get("/readyz", middleware.ReadinessHandler(ready))
	mux.Get("/livez", middleware.LivenessHandler)
	mux.Get("/metrics", m.Handler)
	return mux
}

func (o Options) timeout() func(http.Handler) http.Handler {
	d := o.RequestTimeout
	if d <= 0 {
		d = 60 * time.Second
	}
	return chimw.Timeout(d)
}

type handlerFunc func(http.ResponseWriter, *http.Request) error

// requestError carries an explicit status and message to wrap.
type requestError struct {
	code int
	msg  string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error { return &requestError{code: http.StatusBadRequest, msg: msg} }

// upstreamError marks a failed model call; details carry the cause.
type upstreamError struct {
	msg string
	err error
}

func (e *upstreamError) Error() string { return e.msg + ": " + e.err.Error() }
func (e *upstreamError) Unwrap() error  { return e.err }

type errorBody struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func wrap(log *zap.Logger, h handlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		err := h(w, req)
		if err == nil {
			return
		}

		var re *requestError
		var ue *upstreamError
		switch {
		case errors.As(err, &re):
			writeJSON(w, re.code, errorBody{Error: re.msg})
		case errors.As(err, &ue):
			log.Error("upstream call failed", zap.String("path", req.URL.Path), zap.Error(ue.err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: ue.msg, Details: ue.err.Error()})
		case errors.Is(err, changes.ErrValidation),
			errors.Is(err, watch.ErrInvalidInput),
			errors.Is(err, watch.ErrRepositoryLimit),
			errors.Is(err, watch.ErrInvalidRepository):
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		case errors.Is(err, changes.ErrNotFound), errors.Is(err, watch.ErrNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: err.Error()})
		case errors.Is(err, watch.ErrDuplicatePath):
			writeJSON(w, http.StatusConflict, errorBody{Error: err.Error()})
		default:
			log.Error("request failed", zap.String("path", req.URL.Path), zap.Error(err))
			writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal server error"})
		}
	}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// decodeJSON reads a JSON body. An empty or malformed body is a 400.
func decodeJSON(req *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(req.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return badRequest("request body is required")
		}
		return badRequest("invalid JSON body: " + err.Error())
	}
	return nil
}
