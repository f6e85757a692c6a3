// Package watcher re-indexes files under a directory as they change.
//
// Writes and creates re-index the file with its path as source, so the
// previous chunks for that file are replaced. Removes and renames delete
// the file's chunks. Events are debounced per path because editors often
// emit several writes for one save.
package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/domain"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/core/ports/driving"
	"github.com/lafintiger/SanctumWriterPro-sub000/internal/logger"
)

// DefaultDebounce is how long a path must be quiet before it is processed.
const DefaultDebounce = 500 * time.Millisecond

// DefaultExtensions are the file types watched when none are configured.
func DefaultExtensions() []string {
	return []string{".md", ".markdown", ".txt"}
}

type changeKind int

const (
	changeIndex changeKind = iota + 1
	changeRemove
)

type change struct {
	kind changeKind
	path string
}

// Watcher keeps a collection in sync with a directory tree.
type Watcher struct {
	indexer    driving.IndexerService
	store      driving.VectorStore
	root       string
	collection domain.Collection
	model      string
	exts       map[string]bool
	debounce   time.Duration
	initial    bool
	onResult   func(domain.IndexingResult)

	mu      sync.Mutex
	pending map[string]pendingChange
}

type pendingChange struct {
	kind changeKind
	seen time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithCollection sets the target collection (default references).
func WithCollection(c domain.Collection) Option {
	return func(w *Watcher) {
		w.collection = c
	}
}

// WithModel sets the embedding model used for indexing.
func WithModel(model string) Option {
	return func(w *Watcher) {
		w.model = model
	}
}

// WithExtensions replaces the watched file extensions.
func WithExtensions(exts ...string) Option {
	return func(w *Watcher) {
		w.exts = make(map[string]bool, len(exts))
		for _, ext := range exts {
			w.exts[strings.ToLower(ext)] = true
		}
	}
}

// WithDebounce sets the quiet period before a changed path is processed.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.debounce = d
		}
	}
}

// WithInitialScan indexes every matching file before watching.
func WithInitialScan(enabled bool) Option {
	return func(w *Watcher) {
		w.initial = enabled
	}
}

// WithResultHook is called after every index attempt.
func WithResultHook(fn func(domain.IndexingResult)) Option {
	return func(w *Watcher) {
		w.onResult = fn
	}
}

// New creates a watcher for root.
func New(indexer driving.IndexerService, store driving.VectorStore, root string, opts ...Option) *Watcher {
	w := &Watcher{
		indexer:    indexer,
		store:      store,
		root:       root,
		collection: domain.CollectionReferences,
		debounce:   DefaultDebounce,
		pending:    make(map[string]pendingChange),
	}
	WithExtensions(DefaultExtensions()...)(w)
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run watches until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	info, err := os.Stat(w.root)
	if err != nil {
		return fmt.Errorf("watch %s: %w", w.root, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, w.root)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	files, err := w.addTree(fw, w.root)
	if err != nil {
		return err
	}
	logger.Info("Watching %s (%d files)", w.root, len(files))

	if w.initial {
		for _, path := range files {
			if ctx.Err() != nil {
				return nil
			}
			w.apply(ctx, change{kind: changeIndex, path: path})
		}
	}

	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.observe(fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watcher error: %v", err)
		case now := <-ticker.C:
			for _, c := range w.due(now) {
				w.apply(ctx, c)
			}
		}
	}
}

// observe records an event, adding newly created directories to the watch.
func (w *Watcher) observe(fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Has(fsnotify.Create) && !isHidden(w.root, event.Name) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			files, err := w.addTree(fw, event.Name)
			if err != nil {
				logger.Warn("watch %s: %v", event.Name, err)
			}
			for _, path := range files {
				w.enqueue(change{kind: changeIndex, path: path}, time.Now())
			}
			return
		}
	}
	if c := w.handleFsEvent(event); c != nil {
		w.enqueue(*c, time.Now())
	}
}

// handleFsEvent maps an event to a change, or nil when it is ignored.
func (w *Watcher) handleFsEvent(event fsnotify.Event) *change {
	if isHidden(w.root, event.Name) || !w.exts[strings.ToLower(filepath.Ext(event.Name))] {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return &change{kind: changeRemove, path: event.Name}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() {
			return nil
		}
		return &change{kind: changeIndex, path: event.Name}
	default:
		return nil
	}
}

func (w *Watcher) enqueue(c change, now time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending[c.path] = pendingChange{kind: c.kind, seen: now}
}

// due removes and returns the changes that have been quiet for the debounce period.
func (w *Watcher) due(now time.Time) []change {
	w.mu.Lock()
	defer w.mu.Unlock()

	var out []change
	for path, p := range w.pending {
		if now.Sub(p.seen) >= w.debounce {
			out = append(out, change{kind: p.kind, path: path})
			delete(w.pending, path)
		}
	}
	return out
}

func (w *Watcher) apply(ctx context.Context, c change) {
	switch c.kind {
	case changeIndex:
		result := w.indexer.IndexFile(ctx, c.path, w.collection, w.model, nil)
		if result.Success {
			logger.Info("Indexed %s (%d chunks)", c.path, result.ChunksCreated)
		} else {
			logger.Warn("Index %s failed at %s: %s", c.path, result.FailedStage, result.Error)
		}
		if w.onResult != nil {
			w.onResult(result)
		}
	case changeRemove:
		n, err := w.store.DeleteBySource(ctx, w.collection, c.path)
		if err != nil {
			logger.Warn("Remove %s: %v", c.path, err)
			return
		}
		logger.Info("Removed %s (%d chunks)", c.path, n)
	}
}

// addTree watches dir and its non-hidden subdirectories and returns the
// matching files found under them.
func (w *Watcher) addTree(fw *fsnotify.Watcher, dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrPermission) {
				return nil
			}
			return err
		}
		if path != dir && isHidden(w.root, path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if err := fw.Add(path); err != nil {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			return nil
		}
		if w.exts[strings.ToLower(filepath.Ext(path))] {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", dir, err)
	}
	return files, nil
}

// isHidden reports whether any element of path below root starts with a dot.
func isHidden(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		rel = path
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(part, ".") && part != "." && part != ".." {
			return true
		}
	}
	return false
}
