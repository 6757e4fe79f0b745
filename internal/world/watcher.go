package world

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"tinker/internal/logging"
)

const (
	recentChangeCap = 50
	debounceWindow  = 500 * time.Millisecond
)

// Change is one observed filesystem event.
type Change struct {
	Path string
	Op   string
	At   time.Time
}

// Watcher tracks recent file changes under a workspace root. New
// subdirectories are added to the watch as they appear.
type Watcher struct {
	root    string
	watcher *fsnotify.Watcher

	mu       sync.RWMutex
	recent   []Change
	debounce map[string]time.Time
	running  bool

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewWatcher creates a watcher for the workspace root.
func NewWatcher(root string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}

	return &Watcher{
		root:     root,
		watcher:  fsw,
		debounce: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking; events are consumed in a goroutine.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	if err := w.addRecursive(w.root); err != nil {
		return err
	}

	go w.run(ctx)
	logging.World("Watching workspace: %s", w.root)
	return nil
}

// Stop stops the watcher and waits for the event loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) addRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != root) {
			return filepath.SkipDir
		}
		if err := w.watcher.Add(path); err != nil {
			logging.WorldDebug("Failed to watch %s: %v", path, err)
		}
		return nil
	})
}

func (w *Watcher) run(ctx context.Context) {
	defer close(w.doneCh)

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.stopCh:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.WorldDebug("Watcher error: %v", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	base := filepath.Base(event.Name)
	if skipDirs[base] || strings.HasPrefix(base, ".") {
		return
	}

	// New directories join the watch.
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := w.watcher.Add(event.Name); err != nil {
				logging.WorldDebug("Failed to watch new dir %s: %v", event.Name, err)
			}
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	// Editors fire bursts of writes per save; collapse them. Entries
	// past the window are dead weight, drop them while we hold the lock.
	now := time.Now()
	for path, last := range w.debounce {
		if now.Sub(last) >= debounceWindow {
			delete(w.debounce, path)
		}
	}
	if _, ok := w.debounce[event.Name]; ok {
		return
	}
	w.debounce[event.Name] = now

	change := Change{Path: event.Name, Op: event.Op.String(), At: now}
	w.recent = append(w.recent, change)
	if len(w.recent) > recentChangeCap {
		w.recent = w.recent[len(w.recent)-recentChangeCap:]
	}
	logging.WorldDebug("Change: %s %s", change.Op, change.Path)
}

// RecentChanges returns up to limit most recent changes, newest first.
func (w *Watcher) RecentChanges(limit int) []Change {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if limit <= 0 || limit > len(w.recent) {
		limit = len(w.recent)
	}

	out := make([]Change, limit)
	for i := 0; i < limit; i++ {
		out[i] = w.recent[len(w.recent)-1-i]
	}
	return out
}

// ContextBlock renders recent changes for the prompt, oldest first.
// Returns "" when nothing changed.
func (w *Watcher) ContextBlock() string {
	changes := w.RecentChanges(10)
	if len(changes) == 0 {
		return ""
	}

	sort.Slice(changes, func(i, j int) bool {
		return changes[i].At.Before(changes[j].At)
	})

	var sb strings.Builder
	sb.WriteString("Recently changed files:\n")
	for _, c := range changes {
		rel, err := filepath.Rel(w.root, c.Path)
		if err != nil {
			rel = c.Path
		}
		fmt.Fprintf(&sb, "- %s (%s)\n", rel, strings.ToLower(c.Op))
	}
	return sb.String()
}
