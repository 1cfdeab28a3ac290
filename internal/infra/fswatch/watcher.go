package fswatch

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/bryanwahyu/testcompanion/internal/domain/watch"
	"github.com/bryanwahyu/testcompanion/internal/infra/diff"
)

const (
	defaultDebounce = 300 * time.Millisecond
	maxFileBytes    = 1 << 20
)

type Options struct {
	Debounce time.Duration
	Log      *zap.Logger
}

// Factory adapts New to the watch.WatcherFactory signature.
func Factory(opts Options) watch.WatcherFactory {
	return func(repo *watch.Repository, h watch.Handler) (watch.Watcher, error) {
		return New(repo, h, opts)
	}
}

// Watcher follows one repository recursively and reports debounced, diffed
// changes to its handler.
type Watcher struct {
	repo    *watch.Repository
	handler watch.Handler
	opts    Options
	log     *zap.Logger

	gitMu sync.Mutex
	git   *gitInfo

	mu        sync.Mutex
	running   bool
	fsw       *fsnotify.Watcher
	cancel    context.CancelFunc
	done      chan struct{}
	inflight  sync.WaitGroup
	snapshots map[string]string
	pending   map[string]*time.Timer
}

var _ watch.Watcher = (*Watcher)(nil)

func New(repo *watch.Repository, h watch.Handler, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = defaultDebounce
	}
	log := opts.Log
	if log == nil {
		log = zap.NewNop()
	}
	g, err := openGit(repo.Path)
	if err != nil {
		return nil, err
	}
	return &Watcher{
		repo:    repo,
		handler: h,
		opts:    opts,
		log:     log.With(zap.String("repository_id", repo.ID)),
		git:     g,
	}, nil
}

func (w *Watcher) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Start snapshots the tree, registers every directory and returns; events are
// processed in the background until Stop or ctx is done.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsw = fsw
	w.snapshots = map[string]string{}
	w.pending = map[string]*time.Timer{}
	if err := w.addTree(w.repo.Path, true); err != nil {
		_ = fsw.Close()
		return err
	}

	ctx, w.cancel = context.WithCancel(ctx)
	w.done = make(chan struct{})
	w.running = true
	go w.loop(ctx, fsw, w.done)

	w.log.Info("watcher started", zap.String("path", w.repo.Path), zap.Int("files", len(w.snapshots)))
	return nil
}

// Stop cancels pending debounces, waits for in-flight handlers and closes the
// fsnotify watcher.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	for rel, t := range w.pending {
		t.Stop()
		delete(w.pending, rel)
	}
	cancel, done, fsw := w.cancel, w.done, w.fsw
	w.mu.Unlock()

	cancel()
	err := fsw.Close()
	<-done
	w.inflight.Wait()
	w.log.Info("watcher stopped")
	return err
}

// addTree registers dir and its subdirectories. seed records file contents so
// the first change of each file can be diffed.
func (w *Watcher) addTree(root string, seed bool) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// unreadable entries are skipped, not fatal
			return nil
		}
		rel, rerr := filepath.Rel(w.repo.Path, path)
		if rerr != nil {
			return nil
		}
		if d.IsDir() {
			if rel != "." && ShouldIgnore(rel) {
				return filepath.SkipDir
			}
			return w.fsw.Add(path)
		}
		if seed && !ShouldIgnore(rel) {
			if content, ok := readText(path); ok {
				w.snapshots[rel] = content
			}
		}
		return nil
	})
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ctx, ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.log.Warn("fsnotify error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	rel, err := filepath.Rel(w.repo.Path, ev.Name)
	if err != nil || ShouldIgnore(rel) {
		return
	}

	if ev.Has(fsnotify.Create) {
		if st, err := os.Stat(ev.Name); err == nil && st.IsDir() {
			w.mu.Lock()
			if w.running {
				if err := w.addTree(ev.Name, false); err != nil {
					w.log.Warn("watch new directory failed", zap.String("dir", rel), zap.Error(err))
				}
			}
			w.mu.Unlock()
			return
		}
	}
	w.schedule(ctx, rel)
}

// schedule (re)arms the debounce timer for rel.
func (w *Watcher) schedule(ctx context.Context, rel string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	if t, ok := w.pending[rel]; ok && t.Stop() {
		t.Reset(w.opts.Debounce)
		return
	}
	w.pending[rel] = time.AfterFunc(w.opts.Debounce, func() { w.flush(ctx, rel) })
}

func (w *Watcher) flush(ctx context.Context, rel string) {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	delete(w.pending, rel)
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	c := w.buildChange(rel)
	if c == nil {
		return
	}
	w.log.Debug("file change",
		zap.String("file", c.RelativePath),
		zap.String("change_type", string(c.ChangeType)),
		zap.Int("lines_added", c.LinesAdded),
		zap.Int("lines_removed", c.LinesRemoved),
	)
	w.handler(ctx, c)
}

// buildChange compares the file on disk with its last known content. It returns
// nil when nothing relevant changed.
func (w *Watcher) buildChange(rel string) *watch.FileChange {
	abs := filepath.Join(w.repo.Path, rel)
	current, exists := readText(abs)
	if !exists {
		if _, err := os.Stat(abs); err == nil {
			// binary or oversized file
			return nil
		}
	}

	w.mu.Lock()
	previous, known := w.snapshots[rel]
	w.mu.Unlock()

	w.gitMu.Lock()
	defer w.gitMu.Unlock()
	if !known {
		previous, known = w.git.headContent(rel)
	}

	var ct watch.ChangeType
	switch {
	case !exists && !known:
		return nil
	case !exists:
		ct = watch.Deleted
		current = ""
	case !known:
		ct = watch.Created
		previous = ""
	case current == previous:
		return nil
	default:
		ct = watch.Modified
	}

	w.mu.Lock()
	if exists {
		w.snapshots[rel] = current
	} else {
		delete(w.snapshots, rel)
	}
	w.mu.Unlock()

	d := diff.Unified(rel, previous, current)
	author := w.git.author(rel)
	return &watch.FileChange{
		RepositoryID:    w.repo.ID,
		FilePath:        abs,
		RelativePath:    filepath.ToSlash(rel),
		ChangeType:      ct,
		GitDiff:         d.Text,
		Author:          author.Name,
		AuthorEmail:     author.Email,
		CommitHash:      author.Commit,
		FileExtension:   strings.ToLower(filepath.Ext(rel)),
		LinesAdded:      d.Added,
		LinesRemoved:    d.Removed,
		PreviousContent: previous,
		CurrentContent:  current,
	}
}

// readText loads path when it is a regular text file under the size cap.
func readText(path string) (string, bool) {
	st, err := os.Stat(path)
	if err != nil || !st.Mode().IsRegular() || st.Size() > maxFileBytes {
		return "", false
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	if bytes.IndexByte(data, 0) >= 0 {
		return "", false
	}
	return string(data), true
}
