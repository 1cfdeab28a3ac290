package httpserver

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	appwatcher "github.com/bryanwahyu/testcompanion/internal/application/watcher"
	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
	"github.com/bryanwahyu/testcompanion/internal/middleware"
)

type watcherRouter struct {
	svc *appwatcher.Service
}

// NewWatcherRouter serves repository management, change listings and the
// live feed. feed is mounted at /ws/live-feed outside the request timeout.
func NewWatcherRouter(svc *appwatcher.Service, feed http.Handler, opts Options) http.Handler {
	r := &watcherRouter{svc: svc}
	log := opts.log()
	mux := newMux("watcher", opts)

	if feed != nil {
		mux.Handle("/ws/live-feed", feed)
	}

	mux.Group(func(rt chi.Router) {
		rt.Use(opts.timeout())

		rt.Route("/repos", func(repos chi.Router) {
			repos.Get("/", wrap(log, r.handleListRepos))
			repos.Post("/", wrap(log, r.handleAddRepo))
			repos.Post("/start-all", wrap(log, r.handleStartAll))
			repos.Post("/stop-all", wrap(log, r.handleStopAll))

			repos.Route("/{id}", func(one chi.Router) {
				one.Use(validRepoID)
				one.Get("/", wrap(log, r.handleGetRepo))
				one.Delete("/", wrap(log, r.handleDeleteRepo))
				one.Post("/start", wrap(log, r.handleStart))
				one.Post("/stop", wrap(log, r.handleStop))
				one.Get("/status", wrap(log, r.handleGetRepo))
			})
		})

		rt.Get("/changes", wrap(log, r.handleListChanges))
		rt.Post("/changes/process-pending", wrap(log, r.handleProcessPending))
		rt.Get("/stats", wrap(log, r.handleStats))
	})

	return mux
}

func validRepoID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if err := middleware.ValidateUUID(chi.URLParam(req, "id")); err != nil {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
			return
		}
		next.ServeHTTP(w, req)
	})
}

// POST /repos
// Body: {"name": "...", "path": "/abs/path"}
func (r *watcherRouter) handleAddRepo(w http.ResponseWriter, req *http.Request) error {
	var body struct {
		Name string `json:"name"`
		Path string `json:"path"`
	}
	if err := decodeJSON(req, &body); err != nil {
		return err
	}
	body.Name = middleware.SanitizeString(body.Name)
	body.Path = strings.TrimSpace(body.Path)
	if err := middleware.ValidateRepositoryName(body.Name); err != nil {
		return badRequest(err.Error())
	}
	if err := middleware.ValidatePath(body.Path); err != nil {
		return badRequest(err.Error())
	}

	repo, err := r.svc.AddRepository(req.Context(), body.Name, body.Path)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusCreated, repo)
	return nil
}

// GET /repos
func (r *watcherRouter) handleListRepos(w http.ResponseWriter, req *http.Request) error {
	list, err := r.svc.ListRepositories(req.Context())
	if err != nil {
		return err
	}
	if list == nil {
		list = []*appwatcher.RepositoryStatus{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"repositories": list, "total": len(list)})
	return nil
}

// GET /repos/{id} and /repos/{id}/status
func (r *watcherRouter) handleGetRepo(w http.ResponseWriter, req *http.Request) error {
	st, err := r.svc.Status(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

// DELETE /repos/{id}
func (r *watcherRouter) handleDeleteRepo(w http.ResponseWriter, req *http.Request) error {
	id := chi.URLParam(req, "id")
	if err := r.svc.RemoveRepository(req.Context(), id); err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Repository removed", "id": id})
	return nil
}

// POST /repos/{id}/start
func (r *watcherRouter) handleStart(w http.ResponseWriter, req *http.Request) error {
	st, err := r.svc.StartWatching(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

// POST /repos/{id}/stop
func (r *watcherRouter) handleStop(w http.ResponseWriter, req *http.Request) error {
	st, err := r.svc.StopWatching(req.Context(), chi.URLParam(req, "id"))
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, st)
	return nil
}

// POST /repos/start-all
func (r *watcherRouter) handleStartAll(w http.ResponseWriter, req *http.Request) error {
	results, err := r.svc.StartAll(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": bulkOrEmpty(results)})
	return nil
}

// POST /repos/stop-all
func (r *watcherRouter) handleStopAll(w http.ResponseWriter, req *http.Request) error {
	results, err := r.svc.StopAll(req.Context())
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": bulkOrEmpty(results)})
	return nil
}

func bulkOrEmpty(in []appwatcher.BulkResult) []appwatcher.BulkResult {
	if in == nil {
		return []appwatcher.BulkResult{}
	}
	return in
}

// GET /changes?limit=50&repository_id=
func (r *watcherRouter) handleListChanges(w http.ResponseWriter, req *http.Request) error {
	q := req.URL.Query()
	limit, err := middleware.ParseLimit(q.Get("limit"), 50, 500)
	if err != nil {
		return badRequest(err.Error())
	}
	repoID := q.Get("repository_id")
	if repoID != "" {
		if err := middleware.ValidateUUID(repoID); err != nil {
			return badRequest(err.Error())
		}
	}

	list, err := r.svc.ListChanges(req.Context(), watch.ChangeFilter{RepositoryID: repoID, Limit: limit})
	if err != nil {
		return err
	}
	if list == nil {
		list = []*watch.FileChange{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": list, "total": len(list)})
	return nil
}

// POST /changes/process-pending?limit=10
func (r *watcherRouter) handleProcessPending(w http.ResponseWriter, req *http.Request) error {
	limit, err := middleware.ParseLimit(req.URL.Query().Get("limit"), 10, 100)
	if err != nil {
		return badRequest(err.Error())
	}

	results, err := r.svc.ProcessPending(req.Context(), limit)
	if err != nil {
		return err
	}
	sent := 0
	for _, res := range results {
		if res.Sent {
			sent++
		}
	}
	if results == nil {
		results = []watch.PendingResult{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"processed": len(results),
		"sent":      sent,
		"failed":    len(results) - sent,
		"results":   results,
	})
	return nil
}

// GET /stats?repository_id=
func (r *watcherRouter) handleStats(w http.ResponseWriter, req *http.Request) error {
	repoID := req.URL.Query().Get("repository_id")
	if repoID != "" {
		if err := middleware.ValidateUUID(repoID); err != nil {
			return badRequest(err.Error())
		}
	}

	stats, err := r.svc.Stats(req.Context(), repoID)
	if err != nil {
		return err
	}
	writeJSON(w, http.StatusOK, stats)
	return nil
}
