package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	appchanges "github.com/bryanwahyu/testcompanion/internal/application/changes"
	"github.com/bryanwahyu/testcompanion/internal/domain/analysis"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

// IngestOptions guards POST /api/changes. Both fields are optional.
type IngestOptions struct {
	APIKeys map[string]string
	Limiter *middleware.RateLimiter
}

type aggregatorRouter struct {
	svc  *appchanges.Service
	opts Options
}

// NewAggregatorRouter serves the change ingest and query API.
func NewAggregatorRouter(svc *appchanges.Service, opts Options, ingest IngestOptions) http.Handler {
	r := &aggregatorRouter{svc: svc, opts: opts}
	log := opts.log()
	mux := newMux("aggregator", opts)

	mux.Route("/api/changes", func(rt chi.Router) {
		rt.Use(opts.timeout())
		rt.Get("/", wrap(log, r.handleList))
		rt.Get("/{id}", wrap(log, r.handleGet))
		rt.Get("/{id}/audit", wrap(log, r.handleAudit))

		rt.Group(func(g chi.Router) {
			g.Use(middleware.APIKeyAuth(ingest.APIKeys))
			if ingest.Limiter != nil {
				g.Use(ingest.Limiter.Middleware)
			}
			g.Post("/", wrap(log, r.handleSubmit))
		})
	})

	return mux
}

type changeResponse struct {
	Message string `json:"message"`
	*analysis.ChangeAnalysis
}

// POST /api/changes
// Body: {"user_id", "file_path", "change_type", "previousV", "currentV"}
func (r *aggregatorRouter) handleSubmit(w http.ResponseWriter, req *http.Request) error {
	var sub changes.Submission
	if err := decodeJSON(req, &sub); err != nil {
		return err
	}
	sub.FilePath = middleware.SanitizeString(sub.FilePath)

	ca, err := r.svc.Submit(req.Context(), sub)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, changeResponse{Message: appchanges.MessageRecorded, ChangeAnalysis: ca})
	return nil
}

// GET /api/changes?page=&page_size=
func (r *aggregatorRouter) handleList(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	page, size, err := middleware.ValidatePage(q.Get("page"), q.Get("page_size"))
	if err != nil {
		return badRequest(err.Error())
	}

	list, err := r.svc.List(req.Context(), page, size)
	if err != nil {
		return err
	}
	if list == nil {
		list = []*analysis.ChangeAnalysis{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": appchanges.MessageFetched,
		"changes": list,
	})
	return nil
}

// GET /api/changes/{id}
func (r *aggregatorRouter) handleGet(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest(err.Error())
	}

	ca, err := r.svc.Get(req.Context(), id)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, changeResponse{Message: appchanges.MessageFetched, ChangeAnalysis: ca})
	return nil
}

// GET /api/changes/{id}/audit?limit=50
func (r *aggregatorRouter) handleAudit(w http.ResponseWriter, req *http.Request) error {
	id, err := middleware.ParseID(chi.URLParam(req, "id"))
	if err != nil {
		return badRequest(err.Error())
	}
	limit, err := middleware.ParseLimit(req.URL.Query().Get("limit"), 50, 500)
	if err != nil {
		return badRequest(err.Error())
	}

	entries, err := r.svc.AuditTrail(req.Context(), id, limit)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"change_id": id,
		"entries":   entries,
	})
	return nil
}
