// Package watcher re-translates Cypher query files when they change.
package watcher

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce coalesces bursts of writes from editors.
const DefaultDebounce = 500 * time.Millisecond

// Ext is the query file extension the watcher reacts to.
const Ext = ".cypher"

// HandleFunc is called with a query file's path and contents.
type HandleFunc func(ctx context.Context, path, query string) error

// Watcher watches one directory for *.cypher files.
type Watcher struct {
	dir      string
	handle   HandleFunc
	fsw      *fsnotify.Watcher
	Debounce time.Duration
}

// New watches dir. handle is called for every existing query file when Run
// starts and again whenever one is written.
func New(dir string, handle HandleFunc) (*Watcher, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("abs %s: %w", dir, err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(abs); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", abs, err)
	}
	return &Watcher{dir: abs, handle: handle, fsw: fsw, Debounce: DefaultDebounce}, nil
}

// Run blocks until ctx is cancelled, then closes the underlying watcher.
// Handler errors are logged; the file is retried on its next change.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	initial, err := filepath.Glob(filepath.Join(w.dir, "*"+Ext))
	if err != nil {
		return err
	}
	sort.Strings(initial)
	slog.Debug("watcher.baseline", "dir", w.dir, "files", len(initial))
	for _, path := range initial {
		w.process(ctx, path)
	}

	timer := time.NewTimer(w.Debounce)
	timer.Stop()
	var debounce <-chan time.Time
	pending := make(map[string]struct{})

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !strings.HasSuffix(ev.Name, Ext) {
				continue
			}
			switch {
			case ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create):
				pending[ev.Name] = struct{}{}
				timer.Reset(w.Debounce)
				debounce = timer.C
			case ev.Has(fsnotify.Remove) || ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
				slog.Info("watcher.removed", "path", ev.Name)
			}
		case <-debounce:
			debounce = nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)
			sort.Strings(paths)
			for _, p := range paths {
				w.process(ctx, p)
			}
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watcher.err", "err", err)
		}
	}
}

func (w *Watcher) process(ctx context.Context, path string) {
	b, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("watcher.read", "path", path, "err", err)
		return
	}
	slog.Info("watcher.changed", "path", path)
	if err := w.handle(ctx, path, string(b)); err != nil {
		slog.Warn("watcher.handle", "path", path, "err", err)
	}
}
