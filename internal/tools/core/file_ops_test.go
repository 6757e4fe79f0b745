package core

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tinker/internal/tools"
)

func newTestRegistry(t *testing.T) *tools.Registry {
	t.Helper()
	r := tools.NewRegistry()
	if err := RegisterAll(r); err != nil {
		t.Fatalf("RegisterAll failed: %v", err)
	}
	return r
}

func TestRegisterAll(t *testing.T) {
	r := newTestRegistry(t)
	for _, name := range []string{"read_file", "write_file", "edit_file", "list_dir"} {
		if !r.Has(name) {
			t.Errorf("tool %s not registered", name)
		}
	}
}

func TestWriteThenReadFile(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "out.txt")

	result, err := r.Execute(context.Background(), "write_file", map[string]any{
		"path":    path,
		"content": "hello world",
	})
	if err != nil {
		t.Fatalf("write_file failed: %v", err)
	}
	if !strings.Contains(result.Result, path) {
		t.Errorf("write result = %q", result.Result)
	}

	result, err = r.Execute(context.Background(), "read_file", map[string]any{"path": path})
	if err != nil {
		t.Fatalf("read_file failed: %v", err)
	}
	if result.Result != "hello world" {
		t.Errorf("read content = %q", result.Result)
	}
}

func TestWriteFileCreatesParentDirs(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "a", "b", "c.txt")

	if _, err := r.Execute(context.Background(), "write_file", map[string]any{
		"path":    path,
		"content": "nested",
	}); err != nil {
		t.Fatalf("write_file failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("file not created: %v", err)
	}
	if string(data) != "nested" {
		t.Errorf("content = %q", data)
	}
}

func TestReadFileMissing(t *testing.T) {
	r := newTestRegistry(t)
	_, err := r.Execute(context.Background(), "read_file", map[string]any{
		"path": filepath.Join(t.TempDir(), "nope.txt"),
	})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestEditFile(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "main.go")
	if err := os.WriteFile(path, []byte("package main\n\nfunc main() {}\n"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := r.Execute(context.Background(), "edit_file", map[string]any{
		"path":     path,
		"old_text": "func main() {}",
		"new_text": "func main() { println(1) }",
	})
	if err != nil {
		t.Fatalf("edit_file failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "println(1)") {
		t.Errorf("edit not applied: %q", data)
	}
}

func TestEditFileReplacesFirstOccurrenceOnly(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("aaa bbb aaa"), 0644); err != nil {
		t.Fatal(err)
	}

	if _, err := r.Execute(context.Background(), "edit_file", map[string]any{
		"path":     path,
		"old_text": "aaa",
		"new_text": "zzz",
	}); err != nil {
		t.Fatalf("edit_file failed: %v", err)
	}

	data, _ := os.ReadFile(path)
	if string(data) != "zzz bbb aaa" {
		t.Errorf("content = %q", data)
	}
}

func TestEditFileTextNotFound(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("content"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := r.Execute(context.Background(), "edit_file", map[string]any{
		"path":     path,
		"old_text": "absent",
		"new_text": "x",
	})
	if err == nil || !strings.Contains(err.Error(), "not found") {
		t.Errorf("expected not-found error, got %v", err)
	}
}

func TestEditFileViaPackedInput(t *testing.T) {
	r := newTestRegistry(t)
	path := filepath.Join(t.TempDir(), "f.txt")
	if err := os.WriteFile(path, []byte("old value"), 0644); err != nil {
		t.Fatal(err)
	}

	_, err := r.ExecuteWithInput(context.Background(), "edit_file", path+"||old||new")
	if err != nil {
		t.Fatalf("ExecuteWithInput failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new value" {
		t.Errorf("content = %q", data)
	}
}

func TestListDir(t *testing.T) {
	r := newTestRegistry(t)
	dir := t.TempDir()
	os.WriteFile(filepath.Join(dir, "b.txt"), []byte("x"), 0644)
	os.WriteFile(filepath.Join(dir, "a.txt"), []byte("x"), 0644)
	os.Mkdir(filepath.Join(dir, "sub"), 0755)

	result, err := r.Execute(context.Background(), "list_dir", map[string]any{"path": dir})
	if err != nil {
		t.Fatalf("list_dir failed: %v", err)
	}
	want := "a.txt\nb.txt\nsub/"
	if result.Result != want {
		t.Errorf("list_dir = %q, want %q", result.Result, want)
	}
}

func TestListDirEmpty(t *testing.T) {
	r := newTestRegistry(t)
	result, err := r.Execute(context.Background(), "list_dir", map[string]any{"path": t.TempDir()})
	if err != nil {
		t.Fatalf("list_dir failed: %v", err)
	}
	if result.Result != "(empty directory)" {
		t.Errorf("result = %q", result.Result)
	}
}
