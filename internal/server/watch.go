package server

import (
	"context"
	"fmt"
	"hash/fnv"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/sitesmith/internal/foundation/errors"
	"git.home.luguber.info/inful/sitesmith/internal/logfields"
)

// debouncer coalesces bursts of change events into one rebuild request.
type debouncer struct {
	mu    sync.Mutex
	timer *time.Timer
	delay time.Duration
	fire  func()
}

func newDebouncer(delay time.Duration, fire func()) *debouncer {
	return &debouncer{delay: delay, fire: fire}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.delay, d.fire)
}

func (d *debouncer) stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
}

// watcher reports source changes under root. Paths under skip (the output
// directory) never trigger a rebuild.
type watcher struct {
	root   string
	skip   []string
	fs     *fsnotify.Watcher
	logger *slog.Logger
}

func newWatcher(root string, skip []string, logger *slog.Logger) (*watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryRuntime, "failed to create file watcher").Build()
	}
	if logger == nil {
		logger = slog.Default()
	}
	w := &watcher{root: root, skip: skip, fs: fw, logger: logger}
	if err := w.addTree(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

func (w *watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && w.ignoredDir(p) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			return errors.WrapError(err, errors.CategoryRuntime, "failed to watch directory").
				WithContext("path", p).Build()
		}
		return nil
	})
}

func (w *watcher) ignoredDir(p string) bool {
	base := filepath.Base(p)
	if strings.HasPrefix(base, ".") || base == "node_modules" {
		return true
	}
	return w.skipped(p)
}

func (w *watcher) skipped(p string) bool {
	for _, s := range w.skip {
		if p == s || strings.HasPrefix(p, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

// run forwards relevant events to onChange until ctx is done.
func (w *watcher) run(ctx context.Context, onChange func()) {
	defer func() { _ = w.fs.Close() }()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(ev, onChange)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("file watcher error", logfields.Error(err))
		}
	}
}

func (w *watcher) handle(ev fsnotify.Event, onChange func()) {
	if w.skipped(ev.Name) || ignoreEvent(ev.Name) {
		return
	}
	if ev.Has(fsnotify.Create) {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() && !w.ignoredDir(ev.Name) {
			if err := w.addTree(ev.Name); err != nil {
				w.logger.Warn("failed to watch new directory", logfields.Path(ev.Name), logfields.Error(err))
			}
		}
	}
	if ev.Op == fsnotify.Chmod {
		return
	}
	w.logger.Debug("source changed", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))
	onChange()
}

// ignoreEvent reports editor temp files and OS metadata that should not
// cause a rebuild.
func ignoreEvent(path string) bool {
	base := filepath.Base(path)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"),
		strings.HasSuffix(base, ".swp"),
		strings.HasSuffix(base, ".swx"),
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db":
		return true
	}
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "node_modules" {
			return true
		}
	}
	return false
}

// fingerprint hashes path, size and mtime of every watched file. The poll
// job compares successive values to detect changes that fsnotify misses,
// such as on network mounts.
func (w *watcher) fingerprint() uint64 {
	h := fnv.New64a()
	_ = filepath.WalkDir(w.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if p != w.root && w.ignoredDir(p) {
				return filepath.SkipDir
			}
			return nil
		}
		if ignoreEvent(p) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		_, _ = fmt.Fprintf(h, "%s|%d|%d\n", p, fi.Size(), fi.ModTime().UnixNano())
		return nil
	})
	return h.Sum64()
}
