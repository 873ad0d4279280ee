package discover

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

var allExts = []string{".py", ".go", ".js", ".ts", ".java", ".rb"}

func relPaths(entries []FileEntry) []string {
	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.RelPath
	}
	return paths
}

func TestDiscoverFiles(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "print('hello')")
	writeFile(t, dir, "lib/util.py", "def helper(): pass")
	writeFile(t, dir, "src/Calc.js", "class Calc {}")
	// Unlisted extension should be ignored
	writeFile(t, dir, "readme.txt", "hello")
	// Hidden file should be ignored
	writeFile(t, dir, ".hidden.py", "secret")

	entries, err := Files(context.Background(), dir, Options{Extensions: allExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []string{"lib/util.py", "main.py", "src/Calc.js"}
	if got := relPaths(entries); !slices.Equal(got, want) {
		t.Fatalf("paths = %v, want %v", got, want)
	}
	if entries[0].Language != "python" || entries[2].Language != "javascript" {
		t.Errorf("languages = %q, %q", entries[0].Language, entries[2].Language)
	}
	if entries[0].Path != filepath.Join(dir, "lib", "util.py") {
		t.Errorf("abs path = %q", entries[0].Path)
	}
	if entries[1].Size != int64(len("print('hello')")) {
		t.Errorf("size = %d", entries[1].Size)
	}
}

func TestDiscoverSkipDirs(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "node_modules/pkg.py", "pass")
	writeFile(t, dir, "__pycache__/cached.py", "pass")
	writeFile(t, dir, ".hidden/secret.py", "pass")
	writeFile(t, dir, "vendor/dep.go", "package dep")
	writeFile(t, dir, "target/Gen.java", "class Gen {}")
	writeFile(t, dir, "generated/x.py", "pass")
	writeFile(t, dir, "src/legacy/old/x.py", "pass")
	writeFile(t, dir, "src/legacy/keep.py", "pass")

	entries, err := Files(context.Background(), dir, Options{
		Extensions: allExts,
		SkipDirs:   []string{"generated", "src/legacy/old"},
	})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	want := []string{"main.py", "src/legacy/keep.py"}
	if got := relPaths(entries); !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestDiscoverExtensionFilter(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	writeFile(t, dir, "main.py", "pass")
	writeFile(t, dir, "lib.py", "pass")
	writeFile(t, dir, "app.js", "x")

	entries, err := Files(context.Background(), dir, Options{Extensions: []string{".py"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries for .py filter, got %d", len(entries))
	}

	entries, err = Files(context.Background(), dir, Options{Extensions: []string{".rb"}})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected 0 entries for .rb filter, got %d", len(entries))
	}
}

func TestDiscoverMaxDepth(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "pass")
	writeFile(t, dir, "one/b.py", "pass")
	writeFile(t, dir, "one/two/c.py", "pass")

	entries, err := Files(context.Background(), dir, Options{Extensions: allExts, MaxDepth: 1})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{"a.py", "one/b.py"}
	if got := relPaths(entries); !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestDiscoverSkipFilesAndIgnore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "calc.go", "package calc")
	writeFile(t, dir, "calc_test.go", "package calc")
	writeFile(t, dir, "src/Calculator.js", "x")
	writeFile(t, dir, "src/Calculator copy.js", "x")
	writeFile(t, dir, "src/Calculator 2.js", "x")
	writeFile(t, dir, "src/Calculator.test.js", "x")
	writeFile(t, dir, "gen/api/client.ts", "x")
	writeFile(t, dir, "docs/example.py", "pass")

	entries, err := Files(context.Background(), dir, Options{
		Extensions: allExts,
		SkipFiles:  []string{"*_test.go", "*.test.js", "* copy.*", "* [0-9].*"},
		Ignore:     []string{"gen", "docs/*.py"},
	})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	want := []string{"calc.go", "src/Calculator.js"}
	if got := relPaths(entries); !slices.Equal(got, want) {
		t.Errorf("paths = %v, want %v", got, want)
	}
}

func TestDiscoverGitignore(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, ".gitignore", "build_out/\n*.gen.py\n")
	writeFile(t, dir, "keep.py", "pass")
	writeFile(t, dir, "skip.gen.py", "pass")
	writeFile(t, dir, "build_out/x.py", "pass")

	entries, err := Files(context.Background(), dir, Options{Extensions: allExts, RespectGitignore: true})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(entries); !slices.Equal(got, []string{"keep.py"}) {
		t.Errorf("paths = %v", got)
	}

	entries, err = Files(context.Background(), dir, Options{Extensions: allExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("without gitignore got %v", relPaths(entries))
	}
}

func TestDiscoverExclude(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.js", "x")
	writeFile(t, dir, "cache.js", "x")

	entries, err := Files(context.Background(), dir, Options{
		Extensions: allExts,
		Exclude:    []string{filepath.Join(dir, "cache.js")},
	})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}
	if got := relPaths(entries); !slices.Equal(got, []string{"a.js"}) {
		t.Errorf("paths = %v", got)
	}
}

func TestDiscoverSymlinksSkipped(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "real.py", "pass")

	// Create symlink
	err := os.Symlink(filepath.Join(dir, "real.py"), filepath.Join(dir, "link.py"))
	if err != nil {
		t.Skip("symlinks not supported")
	}

	entries, err := Files(context.Background(), dir, Options{Extensions: allExts})
	if err != nil {
		t.Fatalf("Files: %v", err)
	}

	if len(entries) != 1 {
		t.Fatalf("expected 1 entry (no symlink), got %d", len(entries))
	}
	if entries[0].RelPath != "real.py" {
		t.Errorf("expected real.py, got %q", entries[0].RelPath)
	}
}

func TestDiscoverCancelled(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	writeFile(t, dir, "a.py", "pass")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Files(ctx, dir, Options{Extensions: allExts})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
}

func TestDiscoverBadGlob(t *testing.T) {
	t.Parallel()

	_, err := Files(context.Background(), t.TempDir(), Options{Ignore: []string{"[oops"}})
	if err == nil {
		t.Error("expected glob compile error")
	}
}

func writeFile(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, rel)
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}
