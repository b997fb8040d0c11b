// Package watch reloads the configuration when plus files change.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"

	"github.com/plusconf/plusconf/pkg/discovery"
	"github.com/plusconf/plusconf/pkg/engine"
	"github.com/plusconf/plusconf/pkg/loader"
	"github.com/plusconf/plusconf/pkg/telemetry"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 100 * time.Millisecond

// Reloader starts a new resolution pass. *resolver.Reloader implements it.
type Reloader interface {
	Reload(ctx context.Context) (*engine.Result, error)
}

// Options configures a Watcher.
type Options struct {
	// Root is the absolute project root. Every directory below it is watched.
	Root string

	// Ignore are extra glob patterns, relative to Root, that are not watched.
	Ignore []string

	// Files are extra files whose changes trigger a reload, such as the
	// settings file.
	Files []string

	Debounce time.Duration

	// OnReload, if set, receives the outcome of every reload.
	OnReload func(result *engine.Result, err error)

	Logger *telemetry.Logger
}

// Watcher triggers a reload when a plus file, a loaded dependency or one of
// the extra files changes. Changes within the debounce window are coalesced.
type Watcher struct {
	reloader Reloader
	opts     Options
	logger   *telemetry.Logger
	ignore   []string

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	deps    map[string]bool
	timer   *time.Timer

	// ready is closed once the initial watches are in place.
	ready chan struct{}
}

// New creates a watcher.
func New(r Reloader, opts Options) *Watcher {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = telemetry.Nop()
	}
	w := &Watcher{
		reloader: r,
		opts:     opts,
		logger:   opts.Logger.NewComponentLogger("watch"),
		ignore:   append(append([]string{}, discovery.DefaultIgnore...), opts.Ignore...),
		deps:     make(map[string]bool),
		ready:    make(chan struct{}),
	}
	for _, f := range opts.Files {
		w.deps[filepath.Clean(f)] = true
	}
	return w
}

// Run watches until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	w.mu.Lock()
	w.watcher = watcher
	w.mu.Unlock()

	if err := w.watchTree(w.opts.Root); err != nil {
		return fmt.Errorf("failed to watch %s: %w", w.opts.Root, err)
	}
	for _, f := range w.opts.Files {
		w.watchDir(filepath.Dir(f))
	}
	close(w.ready)
	w.logger.Infof("watching %s", w.opts.Root)

	for {
		select {
		case <-ctx.Done():
			w.mu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.mu.Unlock()
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, event)

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.WithError(err).Error("watcher error")
		}
	}
}

// Track replaces the set of loaded dependencies. Files outside the root get
// their directory watched.
func (w *Watcher) Track(deps []string) {
	w.mu.Lock()
	next := make(map[string]bool, len(deps)+len(w.opts.Files))
	for _, f := range w.opts.Files {
		next[filepath.Clean(f)] = true
	}
	var outside []string
	for _, dep := range deps {
		dep = filepath.Clean(dep)
		next[dep] = true
		if !w.inRoot(dep) {
			outside = append(outside, filepath.Dir(dep))
		}
	}
	w.deps = next
	w.mu.Unlock()

	for _, dir := range outside {
		w.watchDir(dir)
	}
}

func (w *Watcher) handle(ctx context.Context, event fsnotify.Event) {
	name := filepath.Clean(event.Name)

	if event.Op&fsnotify.Create != 0 {
		if info, err := os.Stat(name); err == nil && info.IsDir() {
			if w.ignored(name, true) {
				return
			}
			if err := w.watchTree(name); err != nil {
				w.logger.WithError(err).WithFile(name).Warn("failed to watch directory")
			}
			w.schedule(ctx, name, event.Op)
			return
		}
	}

	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	if w.relevant(name) {
		w.schedule(ctx, name, event.Op)
	}
}

// relevant reports whether a change to name can affect the configuration.
func (w *Watcher) relevant(name string) bool {
	w.mu.Lock()
	dep := w.deps[name]
	w.mu.Unlock()
	if dep {
		return true
	}
	if !w.inRoot(name) || w.ignored(name, false) {
		return false
	}
	base := filepath.Base(name)
	if !strings.HasPrefix(base, "+") {
		return false
	}
	ext := strings.TrimPrefix(filepath.Ext(base), ".")
	for _, e := range loader.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

func (w *Watcher) schedule(ctx context.Context, name string, op fsnotify.Op) {
	w.logger.WithFile(name).Debugf("file changed (%s)", op)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.opts.Debounce, func() { w.reload(ctx) })
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	w.logger.Info("reloading configuration")
	result, err := w.reloader.Reload(ctx)
	if err == nil && result != nil {
		w.Track(result.Dependencies)
	}
	if w.opts.OnReload != nil {
		w.opts.OnReload(result, err)
	}
}

func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.ignored(path, true) {
			return filepath.SkipDir
		}
		return w.addWatch(path)
	})
}

func (w *Watcher) watchDir(dir string) {
	if err := w.addWatch(dir); err != nil {
		w.logger.WithError(err).WithFile(dir).Debug("failed to watch directory")
	}
}

func (w *Watcher) addWatch(dir string) error {
	w.mu.Lock()
	watcher := w.watcher
	w.mu.Unlock()
	if watcher == nil {
		return nil
	}
	return watcher.Add(dir)
}

func (w *Watcher) inRoot(name string) bool {
	rel, err := filepath.Rel(w.opts.Root, name)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// ignored matches name against the ignore patterns. Directories also match
// "dir/**" patterns.
func (w *Watcher) ignored(name string, isDir bool) bool {
	rel, err := filepath.Rel(w.opts.Root, name)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, p := range w.ignore {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
		if isDir {
			if ok, _ := doublestar.Match(p, rel+"/"); ok {
				return true
			}
		}
	}
	return false
}
