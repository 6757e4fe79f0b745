package world

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestScan(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "main.go"), "package main")
	writeFile(t, filepath.Join(dir, "internal", "a.go"), "package a")
	writeFile(t, filepath.Join(dir, "internal", "b.go"), "package a")
	writeFile(t, filepath.Join(dir, "docs", "readme.md"), "# hi")
	writeFile(t, filepath.Join(dir, ".git", "HEAD"), "ref")
	writeFile(t, filepath.Join(dir, "node_modules", "x", "index.js"), "x")

	census, err := NewScanner(dir).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}

	if census.Files != 4 {
		t.Errorf("files = %d, want 4 (skip dirs leaked?)", census.Files)
	}
	if census.Languages["Go"] != 3 {
		t.Errorf("Go count = %d, want 3", census.Languages["Go"])
	}
	if census.Languages["Markdown"] != 1 {
		t.Errorf("Markdown count = %d, want 1", census.Languages["Markdown"])
	}
	if census.Languages["JavaScript"] != 0 {
		t.Error("node_modules was scanned")
	}
}

func TestScanEmptyDir(t *testing.T) {
	census, err := NewScanner(t.TempDir()).Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if census.Files != 0 {
		t.Errorf("files = %d", census.Files)
	}
	if census.Summary() != "" {
		t.Errorf("summary = %q, want empty", census.Summary())
	}
}

func TestScanFileCap(t *testing.T) {
	dir := t.TempDir()
	sub := filepath.Join(dir, "src")
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(sub, "f"+string(rune('a'+i))+".go"), "x")
	}

	s := NewScanner(dir)
	s.maxFiles = 3
	census, err := s.Scan(context.Background())
	if err != nil {
		t.Fatalf("Scan failed: %v", err)
	}
	if !census.Truncated {
		t.Error("Truncated = false")
	}
	if census.Files > 4 {
		t.Errorf("files = %d, cap not applied", census.Files)
	}
}

func TestCensusSummary(t *testing.T) {
	c := &Census{
		Files: 12,
		Dirs:  3,
		Languages: map[string]int{
			"Go":       8,
			"Markdown": 2,
		},
	}
	got := c.Summary()
	if !strings.Contains(got, "12 files in 3 directories") {
		t.Errorf("summary = %q", got)
	}
	if !strings.Contains(got, "Go (8)") {
		t.Errorf("summary = %q", got)
	}
	// Most common language listed first.
	if strings.Index(got, "Go (8)") > strings.Index(got, "Markdown (2)") {
		t.Errorf("language order wrong: %q", got)
	}
}

func waitForChange(t *testing.T, w *Watcher, path string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		for _, c := range w.RecentChanges(0) {
			if c.Path == path {
				return
			}
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("change for %s not observed; recent=%v", path, w.RecentChanges(0))
}

func TestWatcherObservesWrites(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatalf("NewWatcher failed: %v", err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer w.Stop()

	path := filepath.Join(dir, "changed.go")
	writeFile(t, path, "package main")
	waitForChange(t, w, path)

	block := w.ContextBlock()
	if !strings.Contains(block, "Recently changed files:") || !strings.Contains(block, "changed.go") {
		t.Errorf("context block = %q", block)
	}
}

func TestWatcherIgnoresHiddenFiles(t *testing.T) {
	dir := t.TempDir()
	w, err := NewWatcher(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	hidden := filepath.Join(dir, ".swapfile")
	visible := filepath.Join(dir, "real.go")
	writeFile(t, hidden, "x")
	writeFile(t, visible, "package main")
	waitForChange(t, w, visible)

	for _, c := range w.RecentChanges(0) {
		if c.Path == hidden {
			t.Errorf("hidden file recorded: %+v", c)
		}
	}
}

func TestWatcherStopIsIdempotent(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := w.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	w.Stop()
	w.Stop()
}

func TestDebounceEntriesExpire(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	stale := time.Now().Add(-2 * debounceWindow)
	w.debounce["/stale/a.go"] = stale
	w.debounce["/stale/b.go"] = stale

	w.handleEvent(fsnotify.Event{Name: filepath.Join(t.TempDir(), "fresh.go"), Op: fsnotify.Write})

	w.mu.RLock()
	defer w.mu.RUnlock()
	if len(w.debounce) != 1 {
		t.Errorf("debounce entries = %d, want 1 (stale paths evicted)", len(w.debounce))
	}
}

func TestDebounceCollapsesBursts(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer w.watcher.Close()

	path := filepath.Join(t.TempDir(), "burst.go")
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})
	w.handleEvent(fsnotify.Event{Name: path, Op: fsnotify.Write})

	if got := len(w.RecentChanges(0)); got != 1 {
		t.Errorf("recorded changes = %d, want 1", got)
	}
}

func TestContextBlockEmptyWithoutChanges(t *testing.T) {
	w, err := NewWatcher(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if block := w.ContextBlock(); block != "" {
		t.Errorf("block = %q", block)
	}
}
