package fragment

import (
	"context"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/ricesearch/rice-facets/internal/pkg/logger"
)

// FileNavigator keeps navigation history in a JSON state file so that a
// CLI session can be resumed, and so another process can navigate it.
// Every call re-reads the file; nothing is cached.
type FileNavigator struct {
	path string
	log  *logger.Logger

	mu      sync.Mutex
	changes chan struct{}
}

// NewFileNavigator creates a navigator backed by path.
func NewFileNavigator(path string, log *logger.Logger) *FileNavigator {
	if path == "" {
		path = DefaultStatePath()
	}
	if log == nil {
		log = logger.Default()
	}
	return &FileNavigator{
		path:    path,
		log:     log.WithComponent("navigator"),
		changes: make(chan struct{}, 1),
	}
}

// Path returns the state file path.
func (n *FileNavigator) Path() string { return n.path }

// ReadFragment returns the live fragment, or "" if the file is unreadable.
func (n *FileNavigator) ReadFragment() string {
	n.mu.Lock()
	defer n.mu.Unlock()

	state, err := LoadState(n.path)
	if err != nil {
		n.log.Warn("Failed to read navigation state", "path", n.path, "error", err)
		return ""
	}
	return state.Live()
}

// WriteFragment pushes f unless it is already live.
func (n *FileNavigator) WriteFragment(f string) {
	f = normalize(f)
	n.update(func(s *State) bool {
		if s.Live() == f {
			return false
		}
		s.History = append(s.History[:s.Position+1], f)
		s.Position++
		return true
	})
}

// GoBack moves one entry back.
func (n *FileNavigator) GoBack() {
	n.update(func(s *State) bool {
		if s.Position == 0 {
			return false
		}
		s.Position--
		return true
	})
}

// GoForward moves one entry forward.
func (n *FileNavigator) GoForward() {
	n.update(func(s *State) bool {
		if s.Position >= len(s.History)-1 {
			return false
		}
		s.Position++
		return true
	})
}

// State returns the persisted history.
func (n *FileNavigator) State() (*State, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return LoadState(n.path)
}

// Changes implements Notifier. Notifications only flow while Watch runs.
func (n *FileNavigator) Changes() <-chan struct{} {
	return n.changes
}

// Watch forwards writes to the state file, from any process, to Changes
// until ctx is done. The directory is watched because atomic saves replace
// the file.
func (n *FileNavigator) Watch(ctx context.Context) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	dir := filepath.Dir(n.path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	if err := w.Add(dir); err != nil {
		return err
	}

	name := filepath.Clean(n.path)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != name {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				n.notify()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			n.log.Error("Navigation watch error", "error", err)
		}
	}
}

func (n *FileNavigator) notify() {
	select {
	case n.changes <- struct{}{}:
	default:
	}
}

func (n *FileNavigator) update(fn func(s *State) bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	state, err := LoadState(n.path)
	if err != nil {
		n.log.Warn("Failed to read navigation state", "path", n.path, "error", err)
		return
	}
	if !fn(state) {
		return
	}
	if err := SaveState(n.path, state); err != nil {
		n.log.Error("Failed to save navigation state", "path", n.path, "error", err)
	}
}
