// Package watch notifies callers of filesystem activity under a vault root,
// ignoring the .kcube control directory, and can be suspended around
// operations (restore, checkout) that would otherwise generate a storm of
// self-inflicted events.
package watch

import (
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"

	"github.com/kcube/kcube/internal/kcube"
)

// Watcher watches one vault root recursively and reports changes on
// Changes(). Events under .kcube are dropped before ever reaching the
// channel.
type Watcher struct {
	root      string
	fsWatcher *fsnotify.Watcher
	changes   chan struct{}
	errors    chan error
	suspended atomic.Bool
	done      chan struct{}
}

// New creates a Watcher over root. The caller must call Run in a goroutine
// and Close when finished.
func New(root string) (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	w := &Watcher{
		root:      root,
		fsWatcher: fsWatcher,
		changes:   make(chan struct{}, 1),
		errors:    make(chan error, 1),
		done:      make(chan struct{}),
	}

	if err := w.addTree(root); err != nil {
		fsWatcher.Close()
		return nil, err
	}

	return w, nil
}

// addTree registers every directory under root, excluding .kcube, since
// fsnotify does not watch recursively on its own.
func (w *Watcher) addTree(root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			return nil
		}
		if path != root && filepath.Base(path) == kcube.KcubeDir {
			return filepath.SkipDir
		}
		return w.fsWatcher.Add(path)
	})
}

func statIsDir(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return false, err
	}
	return info.IsDir(), nil
}

// Changes delivers a signal (coalesced, not one-per-event) whenever a file
// under the watched root is created, written, renamed, or removed, except
// under .kcube.
func (w *Watcher) Changes() <-chan struct{} {
	return w.changes
}

// Errors delivers fsnotify's own internal errors.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Suspend stops Changes from firing, used while the worker performs a
// checkout that would otherwise generate a burst of self-inflicted events.
func (w *Watcher) Suspend() {
	w.suspended.Store(true)
}

// Resume re-enables Changes delivery.
func (w *Watcher) Resume() {
	w.suspended.Store(false)
}

// Run processes fsnotify events until Close is called. Intended to be
// launched in its own goroutine.
func (w *Watcher) Run() {
	for {
		select {
		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		case <-w.done:
			return
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if w.isUnderKcube(event.Name) {
		return
	}

	// A newly created directory needs its own watch registered so files
	// added inside it are seen too.
	if event.Op&fsnotify.Create == fsnotify.Create {
		if info, err := statIsDir(event.Name); err == nil && info {
			w.fsWatcher.Add(event.Name)
		}
	}

	if w.suspended.Load() {
		return
	}

	select {
	case w.changes <- struct{}{}:
	default:
	}
}

func (w *Watcher) isUnderKcube(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	parts := strings.Split(rel, string(filepath.Separator))
	return len(parts) > 0 && parts[0] == kcube.KcubeDir
}

// Close stops the watcher and releases its OS resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}
