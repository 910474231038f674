package storage

import (
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Change reports that the value of Key was written or removed by someone,
// possibly another process.
type Change struct {
	Key     string
	Deleted bool
}

// Watcher reports changes to the values of a File backend. The directory
// is watched rather than the files so that atomic renames are seen.
type Watcher struct {
	watcher *fsnotify.Watcher
	changes chan Change
	errors  chan error
	done    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
}

// NewWatcher creates a watcher over the directory of f and starts it.
func NewWatcher(f *File) (*Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	if err := watcher.Add(f.Dir()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("failed to watch storage directory %s: %w", f.Dir(), err)
	}

	w := &Watcher{
		watcher: watcher,
		changes: make(chan Change, 16),
		errors:  make(chan error, 4),
		done:    make(chan struct{}),
		running: true,
	}
	w.wg.Add(1)
	go w.processEvents()
	return w, nil
}

// Changes is closed when the watcher stops.
func (w *Watcher) Changes() <-chan Change {
	return w.changes
}

// Errors is closed when the watcher stops.
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Stop ends the watch and waits for the event loop to exit.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	w.mu.Unlock()

	close(w.done)
	err := w.watcher.Close()
	w.wg.Wait()
	close(w.changes)
	close(w.errors)
	if err != nil {
		return fmt.Errorf("failed to close watcher: %w", err)
	}
	return nil
}

func (w *Watcher) processEvents() {
	defer w.wg.Done()

	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			change, ok := convertEvent(event)
			if !ok {
				continue
			}
			select {
			case w.changes <- change:
			case <-w.done:
				return
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
			}
		}
	}
}

func convertEvent(event fsnotify.Event) (Change, bool) {
	key, ok := keyOf(filepath.Base(event.Name))
	if !ok {
		return Change{}, false
	}
	switch {
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		return Change{Key: key}, true
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		return Change{Key: key, Deleted: true}, true
	default:
		return Change{}, false
	}
}
