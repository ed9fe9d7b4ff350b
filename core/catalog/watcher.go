package catalog

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"

	"github.com/adalundhe/meshsim/core/logging"
)

var (
	// ErrWatchRootNotExist indicates the asset root does not exist.
	ErrWatchRootNotExist = errors.New("watch root does not exist")

	// ErrWatchRootNotDir indicates the asset root is not a directory.
	ErrWatchRootNotDir = errors.New("watch root is not a directory")
)

// Invalidator is notified when the asset tree changes.
type Invalidator interface {
	Invalidate()
}

// Watcher marks a listing stale when mesh files or directories under the
// asset root are created, removed or renamed. It never scans on its own; the
// next listing access does.
type Watcher struct {
	root    string
	target  Invalidator
	matcher glob.Glob
	watcher *fsnotify.Watcher
	logger  *slog.Logger

	stopOnce sync.Once
	done     chan struct{}
}

// NewWatcher creates a Watcher over root that invalidates target. pattern is
// the mesh file glob; empty means DefaultPattern.
func NewWatcher(root, pattern string, target Invalidator, logger *slog.Logger) (*Watcher, error) {
	info, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, ErrWatchRootNotExist
	}
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, ErrWatchRootNotDir
	}

	if pattern == "" {
		pattern = DefaultPattern
	}
	matcher, err := glob.Compile(pattern)
	if err != nil {
		return nil, errors.Join(ErrInvalidPattern, err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:    root,
		target:  target,
		matcher: matcher,
		watcher: fw,
		logger:  logging.OrDefault(logger),
		done:    make(chan struct{}),
	}
	if err := w.addRecursive(root); err != nil {
		_ = fw.Close()
		return nil, err
	}
	return w, nil
}

// addRecursive watches dir and every directory beneath it.
func (w *Watcher) addRecursive(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		return w.watcher.Add(path)
	})
}

// Run processes events until ctx is cancelled or Close is called.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("asset watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Write) {
		return
	}

	isDir := false
	if event.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			isDir = true
			_ = w.addRecursive(event.Name)
		}
	}

	if !isDir && !w.relevant(event) {
		return
	}

	w.logger.Debug("asset tree changed", "path", event.Name, "op", event.Op.String())
	w.target.Invalidate()
}

// relevant reports whether a non-directory event can change the listing.
// Removed paths cannot be stat'ed, so removals and renames always count.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename) {
		return true
	}
	return w.matcher.Match(filepath.Base(event.Name))
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	var err error
	w.stopOnce.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err
}
