package watcher

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/testcompanion/internal/application"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	domain "github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

const (
	defaultMaxRepositories = 10
	defaultPendingWorkers  = 4
	unknownAuthorEmail     = "unknown@localhost"

	EventFileChange = "file_change"
)

// Metrics receives watcher counters. Nil disables them.
type Metrics interface {
	FileChangeObserved()
	ForwardFailed()
}

// Service registers repositories, runs one Watcher per watched repository and
// relays observed changes to storage, the live feed and the aggregator.
type Service struct {
	Repos      domain.RepositoryStore
	Changes    domain.ChangeStore
	Users      changes.UserRepository
	Forwarder  domain.Forwarder
	Feed       domain.Broadcaster
	NewWatcher domain.WatcherFactory
	// Validate checks that a path is a usable git working tree.
	Validate func(path string) error

	MaxRepositories int
	PendingWorkers  int
	Metrics         Metrics
	Clock           application.Clock
	Log             *zap.Logger

	mu       sync.Mutex
	watchers map[string]domain.Watcher
}

// RepositoryStatus is a repository plus whether its watcher is live in this process.
type RepositoryStatus struct {
	*domain.Repository
	Running bool `json:"running"`
}

// BulkResult reports the outcome of start-all / stop-all per repository.
type BulkResult struct {
	RepositoryID string `json:"repository_id"`
	Name         string `json:"name"`
	OK           bool   `json:"ok"`
	Error        string `json:"error,omitempty"`
}

func (s *Service) log() *zap.Logger {
	if s.Log == nil {
		return zap.NewNop()
	}
	return s.Log
}

func (s *Service) now() time.Time { return application.OrSystem(s.Clock).Now() }

//
// ==== repositories ====
//

// AddRepository registers path under name after checking the repository limit,
// duplicates and that the path is a git working tree.
func (s *Service) AddRepository(ctx context.Context, name, path string) (*domain.Repository, error) {
	name, path = strings.TrimSpace(name), strings.TrimSpace(path)
	if name == "" || path == "" {
		return nil, fmt.Errorf("%w: name and path are required", domain.ErrInvalidInput)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidInput, err)
	}

	limit := s.MaxRepositories
	if limit <= 0 {
		limit = defaultMaxRepositories
	}
	n, err := s.Repos.Count(ctx)
	if err != nil {
		return nil, err
	}
	if n >= limit {
		return nil, fmt.Errorf("%w (%d)", domain.ErrRepositoryLimit, limit)
	}

	if _, err := s.Repos.GetByPath(ctx, abs); err == nil {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicatePath, abs)
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}

	if s.Validate != nil {
		if err := s.Validate(abs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrInvalidRepository, err)
		}
	}

	repo := &domain.Repository{
		ID:        uuid.NewString(),
		Name:      name,
		Path:      abs,
		CreatedAt: s.now(),
	}
	if err := s.Repos.Create(ctx, repo); err != nil {
		return nil, err
	}
	s.log().Info("repository registered", zap.String("repository_id", repo.ID), zap.String("path", abs))
	return repo, nil
}

func (s *Service) ListRepositories(ctx context.Context) ([]*RepositoryStatus, error) {
	repos, err := s.Repos.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]*RepositoryStatus, 0, len(repos))
	for _, r := range repos {
		out = append(out, &RepositoryStatus{Repository: r, Running: s.running(r.ID)})
	}
	return out, nil
}

func (s *Service) Status(ctx context.Context, id string) (*RepositoryStatus, error) {
	r, err := s.Repos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &RepositoryStatus{Repository: r, Running: s.running(id)}, nil
}

// RemoveRepository stops the watcher first, then deletes the repository and its changes.
func (s *Service) RemoveRepository(ctx context.Context, id string) error {
	if _, err := s.Repos.Get(ctx, id); err != nil {
		return err
	}
	s.stop(id)
	return s.Repos.Delete(ctx, id)
}

//
// ==== watching ====
//

// StartWatching starts the repository's watcher. Starting a running watcher is a no-op.
func (s *Service) StartWatching(ctx context.Context, id string) (*RepositoryStatus, error) {
	repo, err := s.Repos.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	if s.watchers == nil {
		s.watchers = map[string]domain.Watcher{}
	}
	if w, ok := s.watchers[id]; ok && w.Running() {
		s.mu.Unlock()
		return &RepositoryStatus{Repository: repo, Running: true}, nil
	}
	w, err := s.NewWatcher(repo, s.HandleChange)
	if err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	// watchers outlive the request that started them
	if err := w.Start(context.WithoutCancel(ctx)); err != nil {
		s.mu.Unlock()
		return nil, fmt.Errorf("start watcher: %w", err)
	}
	s.watchers[id] = w
	s.mu.Unlock()

	if err := s.Repos.SetWatching(ctx, id, true); err != nil {
		return nil, err
	}
	repo.IsWatching = true
	s.log().Info("watching started", zap.String("repository_id", id), zap.String("path", repo.Path))
	return &RepositoryStatus{Repository: repo, Running: true}, nil
}

func (s *Service) StopWatching(ctx context.Context, id string) (*RepositoryStatus, error) {
	repo, err := s.Repos.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.stop(id)
	if err := s.Repos.SetWatching(ctx, id, false); err != nil {
		return nil, err
	}
	repo.IsWatching = false
	s.log().Info("watching stopped", zap.String("repository_id", id))
	return &RepositoryStatus{Repository: repo, Running: false}, nil
}

func (s *Service) StartAll(ctx context.Context) ([]BulkResult, error) {
	return s.bulk(ctx, s.StartWatching)
}

func (s *Service) StopAll(ctx context.Context) ([]BulkResult, error) {
	return s.bulk(ctx, s.StopWatching)
}

func (s *Service) bulk(ctx context.Context, op func(context.Context, string) (*RepositoryStatus, error)) ([]BulkResult, error) {
	repos, err := s.Repos.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]BulkResult, 0, len(repos))
	for _, r := range repos {
		res := BulkResult{RepositoryID: r.ID, Name: r.Name, OK: true}
		if _, err := op(ctx, r.ID); err != nil {
			res.OK = false
			res.Error = err.Error()
		}
		out = append(out, res)
	}
	return out, nil
}

// Resume restarts watchers for repositories flagged as watching, typically at boot.
func (s *Service) Resume(ctx context.Context) error {
	repos, err := s.Repos.List(ctx)
	if err != nil {
		return err
	}
	for _, r := range repos {
		if !r.IsWatching {
			continue
		}
		if _, err := s.StartWatching(ctx, r.ID); err != nil {
			s.log().Warn("resume watcher failed", zap.String("repository_id", r.ID), zap.Error(err))
		}
	}
	return nil
}

// Shutdown stops every watcher without touching the stored watching flag, so
// Resume picks them up again on the next start.
func (s *Service) Shutdown() {
	s.mu.Lock()
	ws := s.watchers
	s.watchers = nil
	s.mu.Unlock()
	for id, w := range ws {
		if err := w.Stop(); err != nil {
			s.log().Warn("stop watcher failed", zap.String("repository_id", id), zap.Error(err))
		}
	}
}

func (s *Service) stop(id string) {
	s.mu.Lock()
	w, ok := s.watchers[id]
	delete(s.watchers, id)
	s.mu.Unlock()
	if !ok {
		return
	}
	if err := w.Stop(); err != nil {
		s.log().Warn("stop watcher failed", zap.String("repository_id", id), zap.Error(err))
	}
}

func (s *Service) running(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	w, ok := s.watchers[id]
	return ok && w.Running()
}

//
// ==== changes ====
//

// HandleChange stores one observed change, announces it on the live feed and
// forwards it to the aggregator. It is the domain.Handler given to watchers.
func (s *Service) HandleChange(ctx context.Context, c *domain.FileChange) {
	log := s.log().With(zap.String("repository_id", c.RepositoryID), zap.String("file", c.RelativePath))

	email := strings.TrimSpace(c.AuthorEmail)
	if email == "" {
		email = unknownAuthorEmail
	}
	uid, err := s.Users.GetOrCreateByEmail(ctx, email, c.Author)
	if err != nil {
		log.Error("resolve author failed", zap.Error(err))
		return
	}
	c.UserID = uid
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = s.now()
	}

	if err := s.Changes.Create(ctx, c); err != nil {
		log.Error("store change failed", zap.Error(err))
		return
	}
	if s.Metrics != nil {
		s.Metrics.FileChangeObserved()
	}
	if s.Feed != nil {
		s.Feed.Broadcast(domain.Event{Type: EventFileChange, Data: c, Timestamp: c.CreatedAt})
	}

	if err := s.forward(ctx, c); err != nil {
		log.Warn("forward to aggregator failed", zap.Error(err))
	}
}

func (s *Service) forward(ctx context.Context, c *domain.FileChange) error {
	if err := s.Forwarder.Forward(ctx, c.Payload()); err != nil {
		if s.Metrics != nil {
			s.Metrics.ForwardFailed()
		}
		return err
	}
	c.SentToAI, c.IsProcessed = true, true
	return s.Changes.MarkSent(ctx, c.ID)
}

func (s *Service) ListChanges(ctx context.Context, f domain.ChangeFilter) ([]*domain.FileChange, error) {
	return s.Changes.List(ctx, f)
}

// ProcessPending retries forwarding for up to limit unsent changes, a bounded
// number at a time. Per-change failures are reported, not returned.
func (s *Service) ProcessPending(ctx context.Context, limit int) ([]domain.PendingResult, error) {
	pending, err := s.Changes.ListPending(ctx, limit)
	if err != nil {
		return nil, err
	}

	workers := s.PendingWorkers
	if workers <= 0 {
		workers = defaultPendingWorkers
	}
	results := make([]domain.PendingResult, len(pending))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, c := range pending {
		g.Go(func() error {
			res := domain.PendingResult{ChangeID: c.ID, UserID: c.UserID, RelativePath: c.RelativePath, Sent: true}
			if err := s.forward(gctx, c); err != nil {
				res.Sent = false
				res.Error = err.Error()
			}
			results[i] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, nil
}

// Stats summarises stored changes, optionally for one repository.
func (s *Service) Stats(ctx context.Context, repositoryID string) (*domain.Stats, error) {
	now := s.now()
	st, err := s.Changes.Stats(ctx, repositoryID, now.Add(-24*time.Hour))
	if err != nil {
		return nil, err
	}
	st.GeneratedAt = now
	return st, nil
}
