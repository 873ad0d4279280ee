package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/phobologic/adaptive/internal/config"
)

// TestApplySectionCreate verifies that applySection on empty content wraps the
// section in sentinels with a trailing newline.
func TestApplySectionCreate(t *testing.T) {
	t.Parallel()
	section := sentinelStart + "\nbody\n" + sentinelEnd
	got := applySection("", section)
	if !strings.Contains(got, sentinelStart) {
		t.Error("missing sentinel start")
	}
	if !strings.Contains(got, sentinelEnd) {
		t.Error("missing sentinel end")
	}
	if !strings.HasSuffix(got, sentinelEnd+"\n") {
		t.Errorf("section should end with a newline:\n%q", got)
	}
}

// TestApplySectionAppend verifies that existing content without a sentinel block
// is preserved and the section is appended.
func TestApplySectionAppend(t *testing.T) {
	t.Parallel()
	existing := "# My Project\n\nSome existing content."
	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(existing, section)

	if !strings.HasPrefix(got, existing+"\n\n") {
		t.Errorf("existing content should be preserved and separated:\n%s", got)
	}
	if !strings.Contains(got, "new content") {
		t.Error("new content missing")
	}
}

// TestApplySectionUpdate verifies that an existing sentinel block is replaced
// precisely, leaving surrounding content intact.
func TestApplySectionUpdate(t *testing.T) {
	t.Parallel()
	before := "# Project\n\n"
	after := "\n\n## Other Section\n"
	old := before + sentinelStart + "\nold content\n" + sentinelEnd + after

	section := sentinelStart + "\nnew content\n" + sentinelEnd
	got := applySection(old, section)

	if got != before+section+after {
		t.Errorf("unexpected result:\n%s", got)
	}
}

func TestInitWritesStarterConfig(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	path := filepath.Join(dir, starterFile)
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("config not created: %v", err)
	}
	if !strings.Contains(stderr.String(), "wrote "+path) {
		t.Errorf("missing confirmation on stderr: %q", stderr.String())
	}

	// The written file must load back to the defaults.
	got, err := config.LoadFromDir(dir)
	if err != nil {
		t.Fatalf("loading starter config: %v", err)
	}
	want := config.Default()
	if got.MinCandidateScore != want.MinCandidateScore {
		t.Errorf("min_candidate_score = %v, want %v", got.MinCandidateScore, want.MinCandidateScore)
	}
	if got.Scoring.NameExact != want.Scoring.NameExact {
		t.Errorf("scoring.name_exact = %v, want %v", got.Scoring.NameExact, want.Scoring.NameExact)
	}
	if len(got.Extensions) != len(want.Extensions) {
		t.Errorf("extensions = %v, want %v", got.Extensions, want.Extensions)
	}
	if got.Concurrency < 1 {
		t.Errorf("concurrency should resolve to GOMAXPROCS, got %d", got.Concurrency)
	}
}

func TestInitRefusesToOverwrite(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	path := filepath.Join(dir, starterFile)
	if err := os.WriteFile(path, []byte("min_candidate_score: 3\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"init", dir}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "--force") {
		t.Fatalf("expected overwrite refusal, got %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "min_candidate_score: 3\n" {
		t.Error("existing config must not change without --force")
	}

	if err := run([]string{"init", dir, "--force"}, &stdout, &stderr); err != nil {
		t.Fatalf("init --force: %v", err)
	}
	data, _ = os.ReadFile(path)
	if !strings.Contains(string(data), "scoring:") {
		t.Errorf("--force should rewrite the config:\n%s", data)
	}
}

func TestInitRefusesOtherConfigFormats(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, config.FileBase+".json"), []byte(`{"min_candidate_score": 3}`), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir}, &stdout, &stderr); err == nil {
		t.Fatal("a json config should also block init")
	}
	if _, err := os.Stat(filepath.Join(dir, starterFile)); err == nil {
		t.Error("yaml config should not be written next to an existing json one")
	}
}

// TestInitDryRun verifies that --dry-run prints the config and does not
// create any file.
func TestInitDryRun(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir, "--dry-run"}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	if _, err := os.Stat(filepath.Join(dir, starterFile)); err == nil {
		t.Error("--dry-run should not create the config")
	}
	out := stdout.String()
	for _, want := range []string{"min_candidate_score: 10", "concurrency: 0", "timeout: 0s", "scoring:"} {
		if !strings.Contains(out, want) {
			t.Errorf("dry-run output missing %q:\n%s", want, out)
		}
	}
}

func TestInitDocsCreatesFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	docs := filepath.Join(dir, "CLAUDE.md")

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir, "--docs", docs}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	data, err := os.ReadFile(docs)
	if err != nil {
		t.Fatalf("docs not created: %v", err)
	}
	content := string(data)
	if !strings.Contains(content, sentinelStart) || !strings.Contains(content, sentinelEnd) {
		t.Errorf("sentinels missing from docs:\n%s", content)
	}
}

// TestInitDocsDryRunShowsFullFile verifies that --dry-run shows the complete
// would-be docs content, including surrounding text, without writing it.
func TestInitDocsDryRunShowsFullFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	docs := filepath.Join(dir, "README.md")

	existing := "# My Project\n\nSome existing content.\n"
	if err := os.WriteFile(docs, []byte(existing), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	if err := run([]string{"init", dir, "--dry-run", "--docs", docs}, &stdout, &stderr); err != nil {
		t.Fatalf("init: %v", err)
	}

	out := stdout.String()
	if !strings.Contains(out, "# My Project") {
		t.Error("dry-run output missing existing file content")
	}
	if !strings.Contains(out, sentinelStart) {
		t.Error("dry-run output missing sentinel start")
	}
	data, _ := os.ReadFile(docs)
	if string(data) != existing {
		t.Error("--dry-run must not modify the docs file")
	}
}

// TestInitDocsIdempotent verifies that updating the docs twice produces
// identical output.
func TestInitDocsIdempotent(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	docs := filepath.Join(dir, "CLAUDE.md")

	var buf bytes.Buffer
	if err := run([]string{"init", dir, "--docs", docs}, &buf, &buf); err != nil {
		t.Fatalf("first run: %v", err)
	}
	first, _ := os.ReadFile(docs)

	if err := run([]string{"init", dir, "--force", "--docs", docs}, &buf, &buf); err != nil {
		t.Fatalf("second run: %v", err)
	}
	second, _ := os.ReadFile(docs)

	if string(first) != string(second) {
		t.Errorf("init is not idempotent:\nfirst:\n%s\nsecond:\n%s", first, second)
	}
}

func TestInitNotADirectory(t *testing.T) {
	t.Parallel()
	file := filepath.Join(t.TempDir(), "file.txt")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	var stdout, stderr bytes.Buffer
	err := run([]string{"init", file}, &stdout, &stderr)
	if err == nil || !strings.Contains(err.Error(), "not a directory") {
		t.Fatalf("expected not a directory error, got %v", err)
	}
}

// TestInitSectionContainsExamples verifies the generated section includes
// example invocations for each subcommand.
func TestInitSectionContainsExamples(t *testing.T) {
	t.Parallel()
	section := generateSection()

	examples := []string{
		"adaptive discover --name Calculator",
		"adaptive explain",
		"adaptive clear-cache",
		config.DefaultCacheFile,
		starterFile,
	}
	for _, ex := range examples {
		if !strings.Contains(section, ex) {
			t.Errorf("generated section missing %q", ex)
		}
	}
}
