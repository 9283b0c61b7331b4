// Package watcher implements debounced filesystem watching for the
// watch command, which rebuilds and restarts a service when its project
// sources change.
//
// Changes are collected into a batch; when the debounce window expires
// without new events, the whole batch is handed to the callback at
// once. This prevents a rebuild per keystroke while a file is being
// edited, and collapses the event storms editors produce on save
// (write + chmod + rename).
package watcher

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long to wait for further changes before
// triggering the handler.
const DefaultDebounce = 500 * time.Millisecond

// defaultIgnores are path base names that never trigger a rebuild:
// VCS metadata, Python bytecode, and virtualenvs. They mirror the
// default .dockerignore, since a path the image never contains cannot
// affect the image.
var defaultIgnores = []string{
	".git",
	"__pycache__",
	"*.pyc",
	".venv",
	"venv",
	".pytest_cache",
	".mypy_cache",
}

// Handler is called with the batch of changed paths after each
// debounce window. It runs on the watcher's goroutine; a slow handler
// delays the next batch but never drops events.
type Handler func(paths []string)

// Watcher watches a project directory tree for source changes.
//
// Safe for concurrent use. The handler is called from a single
// goroutine.
type Watcher struct {
	root     string
	inner    *fsnotify.Watcher
	handler  Handler
	debounce time.Duration
	ignores  []string

	changes  chan string
	done     chan struct{}
	stopOnce sync.Once

	mu       sync.Mutex
	watching bool
}

// Options configures a Watcher. The zero value uses DefaultDebounce
// and the default ignore set.
type Options struct {
	// Debounce overrides the debounce window when positive.
	Debounce time.Duration

	// ExtraIgnores are additional base-name patterns to ignore, on top
	// of the defaults (typically the project's .dockerignore entries).
	ExtraIgnores []string
}

// New creates a watcher for the given project root. Call Start to
// begin watching and Stop to release the underlying OS watches.
func New(root string, handler Handler, opts Options) (*Watcher, error) {
	inner, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	debounce := opts.Debounce
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(opts.ExtraIgnores))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, opts.ExtraIgnores...)

	return &Watcher{
		root:     root,
		inner:    inner,
		handler:  handler,
		debounce: debounce,
		ignores:  ignores,
		changes:  make(chan string, 256),
		done:     make(chan struct{}),
	}, nil
}

// Start begins watching the root directory and all non-ignored
// subdirectories. It spawns two goroutines — the event processor and
// the debouncer — which both exit when Stop is called or the context
// is canceled.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.watching {
		w.mu.Unlock()
		return nil
	}
	w.watching = true
	w.mu.Unlock()

	// fsnotify watches are not recursive; every subdirectory needs its
	// own watch.
	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.processEvents(ctx)
	go w.debounceLoop(ctx)

	return nil
}

// Stop stops the watcher and releases its OS resources. Safe to call
// multiple times.
func (w *Watcher) Stop() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.inner.Close()

		w.mu.Lock()
		w.watching = false
		w.mu.Unlock()
	})
}

// addRecursive adds a directory and all non-ignored subdirectories to
// the watch list.
func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees are skipped, not fatal.
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && w.shouldIgnore(path) {
			return filepath.SkipDir
		}
		return w.inner.Add(path)
	})
}

// shouldIgnore reports whether a path matches any ignore pattern.
// Patterns match against the path's base name, as either a literal or
// a glob.
func (w *Watcher) shouldIgnore(path string) bool {
	base := filepath.Base(path)
	for _, pattern := range w.ignores {
		if base == pattern {
			return true
		}
		if matched, _ := filepath.Match(pattern, base); matched {
			return true
		}
	}
	return false
}

// processEvents filters raw fsnotify events and feeds changed paths to
// the debouncer. Newly created directories are added to the watch list
// so the recursive watch stays complete.
func (w *Watcher) processEvents(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.inner.Events:
			if !ok {
				return
			}
			if w.shouldIgnore(event.Name) {
				continue
			}

			// Chmod-only events carry no content change.
			if event.Op == fsnotify.Chmod {
				continue
			}

			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					_ = w.addRecursive(event.Name)
				}
			}

			select {
			case w.changes <- event.Name:
			default:
				// Buffer full; the debouncer will fire soon anyway and
				// the rebuild covers the whole project.
			}

		case _, ok := <-w.inner.Errors:
			if !ok {
				return
			}
		}
	}
}

// debounceLoop batches changed paths and calls the handler once the
// debounce window passes without a new change.
func (w *Watcher) debounceLoop(ctx context.Context) {
	var batch []string
	var timer *time.Timer
	var timerC <-chan time.Time

	flush := func() {
		if len(batch) > 0 && w.handler != nil {
			w.handler(dedupe(batch))
			batch = batch[:0]
		}
		if timer != nil {
			timer.Stop()
			timer = nil
			timerC = nil
		}
	}

	for {
		select {
		case <-ctx.Done():
			flush()
			return
		case <-w.done:
			flush()
			return
		case path := <-w.changes:
			batch = append(batch, path)
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				// An already-fired timer leaves a stale tick in its
				// channel; drain it so Reset starts a clean window.
				if !timer.Stop() {
					select {
					case <-timerC:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
		case <-timerC:
			flush()
		}
	}
}

// dedupe removes duplicate paths, preserving first-seen order.
func dedupe(paths []string) []string {
	seen := make(map[string]struct{}, len(paths))
	result := make([]string, 0, len(paths))
	for _, p := range paths {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		result = append(result, p)
	}
	return result
}
