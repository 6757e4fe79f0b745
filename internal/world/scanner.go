// Package world observes the workspace: a scanner builds a census of the
// file tree for prompt context, and a watcher tracks recent changes.
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

	"golang.org/x/sync/errgroup"

	"tinker/internal/logging"
)

// Directories that never contribute useful context.
var skipDirs = map[string]bool{
	".git":         true,
	".tinker":      true,
	"node_modules": true,
	"vendor":       true,
	"dist":         true,
	"target":       true,
	"__pycache__":  true,
	".venv":        true,
	".idea":        true,
	".vscode":      true,
}

var languageByExt = map[string]string{
	".go":   "Go",
	".py":   "Python",
	".js":   "JavaScript",
	".ts":   "TypeScript",
	".rs":   "Rust",
	".java": "Java",
	".c":    "C",
	".h":    "C",
	".cpp":  "C++",
	".rb":   "Ruby",
	".sh":   "Shell",
	".md":   "Markdown",
	".yaml": "YAML",
	".yml":  "YAML",
	".json": "JSON",
	".sql":  "SQL",
	".html": "HTML",
	".css":  "CSS",
}

const defaultMaxFiles = 5000

// Census summarizes a workspace scan.
type Census struct {
	Files      int
	Dirs       int
	TotalBytes int64
	Languages  map[string]int

	// Truncated is set when the file cap stopped the walk early.
	Truncated bool
}

// Scanner walks a workspace tree.
type Scanner struct {
	root     string
	maxFiles int
}

// NewScanner creates a scanner for the given root.
func NewScanner(root string) *Scanner {
	return &Scanner{root: root, maxFiles: defaultMaxFiles}
}

// Scan walks the tree and builds a census. Top-level directories are
// walked in parallel.
func (s *Scanner) Scan(ctx context.Context) (*Census, error) {
	timer := logging.StartTimer(logging.CategoryWorld, "Scan")
	defer timer.Stop()

	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read workspace root: %w", err)
	}

	census := &Census{Languages: make(map[string]int)}
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(8)

	for _, entry := range entries {
		if entry.IsDir() {
			if skipDirs[entry.Name()] || strings.HasPrefix(entry.Name(), ".") {
				continue
			}
			dir := filepath.Join(s.root, entry.Name())
			g.Go(func() error {
				return s.walkSubtree(ctx, dir, census, &mu)
			})
			continue
		}
		mu.Lock()
		s.countFile(census, entry)
		mu.Unlock()
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	logging.World("Scanned workspace: %d files, %d dirs, %d bytes", census.Files, census.Dirs, census.TotalBytes)
	return census, nil
}

func (s *Scanner) walkSubtree(ctx context.Context, dir string, census *Census, mu *sync.Mutex) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable entries are skipped, not fatal.
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() {
			if skipDirs[d.Name()] || (strings.HasPrefix(d.Name(), ".") && path != dir) {
				return filepath.SkipDir
			}
			mu.Lock()
			census.Dirs++
			mu.Unlock()
			return nil
		}

		mu.Lock()
		defer mu.Unlock()
		if census.Files >= s.maxFiles {
			census.Truncated = true
			return filepath.SkipAll
		}
		s.countFile(census, d)
		return nil
	})
}

func (s *Scanner) countFile(census *Census, d fs.DirEntry) {
	census.Files++
	if lang, ok := languageByExt[strings.ToLower(filepath.Ext(d.Name()))]; ok {
		census.Languages[lang]++
	}
	if info, err := d.Info(); err == nil {
		census.TotalBytes += info.Size()
	}
}

// Summary renders the census as a prompt context block.
func (c *Census) Summary() string {
	if c.Files == 0 {
		return ""
	}

	type langCount struct {
		name  string
		count int
	}
	langs := make([]langCount, 0, len(c.Languages))
	for name, count := range c.Languages {
		langs = append(langs, langCount{name, count})
	}
	sort.Slice(langs, func(i, j int) bool {
		if langs[i].count != langs[j].count {
			return langs[i].count > langs[j].count
		}
		return langs[i].name < langs[j].name
	})
	if len(langs) > 5 {
		langs = langs[:5]
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Workspace: %d files in %d directories", c.Files, c.Dirs)
	if c.Truncated {
		sb.WriteString(" (partial scan)")
	}
	if len(langs) > 0 {
		sb.WriteString(". Languages: ")
		parts := make([]string, len(langs))
		for i, lc := range langs {
			parts[i] = fmt.Sprintf("%s (%d)", lc.name, lc.count)
		}
		sb.WriteString(strings.Join(parts, ", "))
	}
	sb.WriteString(".")
	return sb.String()
}
