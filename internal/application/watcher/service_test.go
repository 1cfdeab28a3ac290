package watcher

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bryanwahyu/testcompanion/internal/application"
	"github.com/bryanwahyu/testcompanion/internal/domain/changes"
	domain "github.com/bryanwahyu/testcompanion/internal/domain/watch"
)

type memRepos struct {
	mu   sync.Mutex
	rows map[string]*domain.Repository
}

func newMemRepos() *memRepos { return &memRepos{rows: map[string]*domain.Repository{}} }

func (m *memRepos) Create(_ context.Context, r *domain.Repository) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *r
	m.rows[r.ID] = &cp
	return nil
}

func (m *memRepos) Get(_ context.Context, id string) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if r, ok := m.rows[id]; ok {
		cp := *r
		return &cp, nil
	}
	return nil, domain.ErrNotFound
}

func (m *memRepos) GetByPath(_ context.Context, path string) (*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.rows {
		if r.Path == path {
			cp := *r
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memRepos) List(_ context.Context) ([]*domain.Repository, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*domain.Repository, 0, len(m.rows))
	for _, r := range m.rows {
		cp := *r
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m *memRepos) Count(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows), nil
}

func (m *memRepos) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, id)
	return nil
}

func (m *memRepos) SetWatching(_ context.Context, id string, watching bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.IsWatching = watching
	return nil
}

type memChanges struct {
	mu   sync.Mutex
	rows []*domain.FileChange
	sent map[string]bool
}

func (m *memChanges) Create(_ context.Context, c *domain.FileChange) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, c)
	return nil
}

func (m *memChanges) Get(_ context.Context, id string) (*domain.FileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.ID == id {
			return c, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (m *memChanges) List(_ context.Context, _ domain.ChangeFilter) ([]*domain.FileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*domain.FileChange(nil), m.rows...), nil
}

func (m *memChanges) ListPending(_ context.Context, limit int) ([]*domain.FileChange, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*domain.FileChange
	for _, c := range m.rows {
		if !m.sent[c.ID] && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *memChanges) MarkSent(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sent == nil {
		m.sent = map[string]bool{}
	}
	m.sent[id] = true
	return nil
}

func (m *memChanges) Stats(_ context.Context, repoID string, since time.Time) (*domain.Stats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	st := &domain.Stats{RepositoryID: repoID, ByType: map[string]int64{}}
	for _, c := range m.rows {
		st.TotalChanges++
		st.ByType[string(c.ChangeType)]++
		if !c.CreatedAt.Before(since) {
			st.Last24h++
		}
	}
	return st, nil
}

type memUsers struct {
	mu     sync.Mutex
	emails []string
}

func (m *memUsers) Get(context.Context, int64) (*changes.User, error) { return nil, changes.ErrNotFound }

func (m *memUsers) GetOrCreateByEmail(_ context.Context, email, _ string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.emails {
		if e == email {
			return int64(i + 1), nil
		}
	}
	m.emails = append(m.emails, email)
	return int64(len(m.emails)), nil
}

type fakeForwarder struct {
	mu    sync.Mutex
	sent  []domain.ForwardPayload
	fail  map[string]error
	calls int
}

func (f *fakeForwarder) Forward(_ context.Context, p domain.ForwardPayload) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if err := f.fail[p.FilePath]; err != nil {
		return err
	}
	f.sent = append(f.sent, p)
	return nil
}

type fakeFeed struct {
	mu     sync.Mutex
	events []domain.Event
}

func (f *fakeFeed) Broadcast(e domain.Event) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
}

type fakeWatcher struct {
	mu      sync.Mutex
	running bool
	starts  int
	handler domain.Handler
}

func (w *fakeWatcher) Start(context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = true
	w.starts++
	return nil
}

func (w *fakeWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.running = false
	return nil
}

func (w *fakeWatcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

var fixedNow = time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC)

type fixture struct {
	svc      *Service
	repos    *memRepos
	changes  *memChanges
	users    *memUsers
	fwd      *fakeForwarder
	feed     *fakeFeed
	watchers map[string]*fakeWatcher
}

func newFixture() *fixture {
	f := &fixture{
		repos:    newMemRepos(),
		changes:  &memChanges{},
		users:    &memUsers{},
		fwd:      &fakeForwarder{},
		feed:     &fakeFeed{},
		watchers: map[string]*fakeWatcher{},
	}
	f.svc = &Service{
		Repos:     f.repos,
		Changes:   f.changes,
		Users:     f.users,
		Forwarder: f.fwd,
		Feed:      f.feed,
		NewWatcher: func(repo *domain.Repository, h domain.Handler) (domain.Watcher, error) {
			w := &fakeWatcher{handler: h}
			f.watchers[repo.ID] = w
			return w, nil
		},
		Validate:        func(string) error { return nil },
		MaxRepositories: 2,
		PendingWorkers:  2,
		Clock:           application.FixedClock{T: fixedNow},
	}
	return f
}

func TestAddRepository(t *testing.T) {
	ctx := context.Background()

	t.Run("registers absolute path", func(t *testing.T) {
		f := newFixture()
		repo, err := f.svc.AddRepository(ctx, " api ", "/srv/api")
		require.NoError(t, err)
		assert.NotEmpty(t, repo.ID)
		assert.Equal(t, "api", repo.Name)
		assert.Equal(t, "/srv/api", repo.Path)
		assert.Equal(t, fixedNow, repo.CreatedAt)
	})

	t.Run("missing fields", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.AddRepository(ctx, "", "/srv/api")
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("duplicate path", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.AddRepository(ctx, "a", "/srv/api")
		require.NoError(t, err)
		_, err = f.svc.AddRepository(ctx, "b", "/srv/api")
		assert.ErrorIs(t, err, domain.ErrDuplicatePath)
	})

	t.Run("limit", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.AddRepository(ctx, "a", "/srv/a")
		require.NoError(t, err)
		_, err = f.svc.AddRepository(ctx, "b", "/srv/b")
		require.NoError(t, err)
		_, err = f.svc.AddRepository(ctx, "c", "/srv/c")
		assert.ErrorIs(t, err, domain.ErrRepositoryLimit)
	})

	t.Run("not a git repository", func(t *testing.T) {
		f := newFixture()
		f.svc.Validate = func(string) error { return errors.New("repository does not exist") }
		_, err := f.svc.AddRepository(ctx, "a", "/tmp/plain")
		assert.ErrorIs(t, err, domain.ErrInvalidRepository)
	})
}

func TestStartStopWatching(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	repo, err := f.svc.AddRepository(ctx, "api", "/srv/api")
	require.NoError(t, err)

	st, err := f.svc.StartWatching(ctx, repo.ID)
	require.NoError(t, err)
	assert.True(t, st.Running)
	assert.True(t, st.IsWatching)

	// second start is a no-op
	_, err = f.svc.StartWatching(ctx, repo.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, f.watchers[repo.ID].starts)

	st, err = f.svc.Status(ctx, repo.ID)
	require.NoError(t, err)
	assert.True(t, st.Running)

	st, err = f.svc.StopWatching(ctx, repo.ID)
	require.NoError(t, err)
	assert.False(t, st.Running)
	assert.False(t, f.watchers[repo.ID].Running())

	stored, err := f.repos.Get(ctx, repo.ID)
	require.NoError(t, err)
	assert.False(t, stored.IsWatching)

	_, err = f.svc.StartWatching(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestStartAllStopAllAndResume(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	_, err := f.svc.AddRepository(ctx, "a", "/srv/a")
	require.NoError(t, err)
	_, err = f.svc.AddRepository(ctx, "b", "/srv/b")
	require.NoError(t, err)

	res, err := f.svc.StartAll(ctx)
	require.NoError(t, err)
	require.Len(t, res, 2)
	for _, r := range res {
		assert.True(t, r.OK)
	}

	f.svc.Shutdown()
	list, err := f.svc.ListRepositories(ctx)
	require.NoError(t, err)
	for _, r := range list {
		assert.False(t, r.Running)
		assert.True(t, r.IsWatching, "shutdown keeps the stored flag")
	}

	require.NoError(t, f.svc.Resume(ctx))
	list, err = f.svc.ListRepositories(ctx)
	require.NoError(t, err)
	for _, r := range list {
		assert.True(t, r.Running)
	}

	res, err = f.svc.StopAll(ctx)
	require.NoError(t, err)
	assert.Len(t, res, 2)
}

func TestRemoveRepositoryStopsWatcher(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	repo, err := f.svc.AddRepository(ctx, "api", "/srv/api")
	require.NoError(t, err)
	_, err = f.svc.StartWatching(ctx, repo.ID)
	require.NoError(t, err)

	require.NoError(t, f.svc.RemoveRepository(ctx, repo.ID))
	assert.False(t, f.watchers[repo.ID].Running())
	_, err = f.repos.Get(ctx, repo.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleChange(t *testing.T) {
	ctx := context.Background()
	f := newFixture()

	c := &domain.FileChange{
		RepositoryID:   "r1",
		RelativePath:   "src/app.py",
		ChangeType:     domain.Created,
		Author:         "Ana",
		AuthorEmail:    "ana@example.com",
		CurrentContent: "print(1)",
	}
	f.svc.HandleChange(ctx, c)

	require.Len(t, f.changes.rows, 1)
	assert.NotEmpty(t, c.ID)
	assert.EqualValues(t, 1, c.UserID)
	assert.Equal(t, fixedNow, c.CreatedAt)
	assert.True(t, c.SentToAI)
	assert.True(t, f.changes.sent[c.ID])

	require.Len(t, f.feed.events, 1)
	assert.Equal(t, EventFileChange, f.feed.events[0].Type)

	require.Len(t, f.fwd.sent, 1)
	assert.Equal(t, domain.ForwardPayload{
		UserID:     1,
		FilePath:   "src/app.py",
		ChangeType: "added",
		PreviousV:  "empty",
		CurrentV:   "print(1)",
	}, f.fwd.sent[0])
}

func TestHandleChange_UnknownAuthorAndForwardFailure(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.fwd.fail = map[string]error{"a.js": domain.ErrRejected}

	c := &domain.FileChange{RepositoryID: "r1", RelativePath: "a.js", ChangeType: domain.Modified}
	f.svc.HandleChange(ctx, c)

	assert.Equal(t, []string{unknownAuthorEmail}, f.users.emails)
	require.Len(t, f.changes.rows, 1, "the change is stored even when forwarding fails")
	assert.False(t, c.SentToAI)
	assert.Empty(t, f.changes.sent)
}

func TestProcessPending(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	f.fwd.fail = map[string]error{"bad.py": errors.New("aggregator down")}

	for _, p := range []string{"a.py", "bad.py", "c.py"} {
		require.NoError(t, f.changes.Create(ctx, &domain.FileChange{ID: p, RelativePath: p, ChangeType: domain.Modified, CurrentContent: "x"}))
	}

	res, err := f.svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)

	assert.True(t, res[0].Sent)
	assert.False(t, res[1].Sent)
	assert.Equal(t, "aggregator down", res[1].Error)
	assert.True(t, res[2].Sent)
	assert.Equal(t, map[string]bool{"a.py": true, "c.py": true}, f.changes.sent)

	res, err = f.svc.ProcessPending(ctx, 10)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "bad.py", res[0].ChangeID)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	require.NoError(t, f.changes.Create(ctx, &domain.FileChange{ID: "old", ChangeType: domain.Modified, CreatedAt: fixedNow.Add(-48 * time.Hour)}))
	require.NoError(t, f.changes.Create(ctx, &domain.FileChange{ID: "new", ChangeType: domain.Created, CreatedAt: fixedNow.Add(-time.Hour)}))

	st, err := f.svc.Stats(ctx, "")
	require.NoError(t, err)
	assert.EqualValues(t, 2, st.TotalChanges)
	assert.EqualValues(t, 1, st.Last24h)
	assert.Equal(t, fixedNow, st.GeneratedAt)
}
