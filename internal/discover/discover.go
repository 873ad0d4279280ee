// Package discover finds candidate source files under a project root.
package discover

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gobwas/glob"
	ignore "github.com/sabhiram/go-gitignore"

	"github.com/phobologic/adaptive/internal/lang"
)

// FileEntry represents a discovered source file.
type FileEntry struct {
	Path     string // Absolute
	RelPath  string // Slash-separated, relative to root
	Language string
	Size     int64
	ModTime  time.Time
}

// Options controls which files are returned.
type Options struct {
	// Extensions is the allow-list, with leading dots.
	Extensions []string
	// MaxDepth limits directory levels below root; 0 means unlimited.
	MaxDepth int
	// SkipDirs are extra directory names or root-relative prefixes.
	SkipDirs []string
	// SkipFiles are globs matched against base names.
	SkipFiles []string
	// Ignore are globs matched against root-relative paths.
	Ignore []string
	// RespectGitignore honors .gitignore (git ls-files when inside a repo).
	RespectGitignore bool
	// Exclude lists absolute paths never returned, such as the cache file.
	Exclude []string
}

var skipDirs = map[string]struct{}{
	"__pycache__":   {},
	"node_modules":  {},
	".git":          {},
	".hg":           {},
	".svn":          {},
	"vendor":        {},
	"venv":          {},
	".venv":         {},
	"build":         {},
	"dist":          {},
	"out":           {},
	"target":        {},
	"coverage":      {},
	".tox":          {},
	".idea":         {},
	".gradle":       {},
	".mypy_cache":   {},
	".pytest_cache": {},
}

// Files discovers source files under root, sorted by RelPath so scan order
// is identical on every platform.
func Files(ctx context.Context, root string, opts Options) ([]FileEntry, error) {
	m, err := newMatcher(opts)
	if err != nil {
		return nil, err
	}

	var gitFiles map[string]struct{}
	var gi *ignore.GitIgnore
	if opts.RespectGitignore {
		gitFiles = gitLsFiles(ctx, root)
		if gitFiles == nil {
			gi = loadGitignore(root)
		}
	}

	exclude := make(map[string]struct{}, len(opts.Exclude))
	for _, p := range opts.Exclude {
		exclude[filepath.Clean(p)] = struct{}{}
	}

	var results []FileEntry

	err = filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			return nil // skip unreadable entries
		}

		name := d.Name()
		if path == root {
			return nil
		}

		rel, err := filepath.Rel(root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if _, skip := skipDirs[name]; skip || strings.HasPrefix(name, ".") {
				return filepath.SkipDir
			}
			if opts.MaxDepth > 0 && strings.Count(rel, "/")+1 > opts.MaxDepth {
				return filepath.SkipDir
			}
			if m.skipDir(name, rel) || (gi != nil && gi.MatchesPath(rel+"/")) {
				return filepath.SkipDir
			}
			return nil
		}

		if strings.HasPrefix(name, ".") {
			return nil
		}

		// Skip symlinks
		if d.Type()&os.ModeSymlink != 0 {
			return nil
		}

		if _, ok := exclude[filepath.Clean(path)]; ok {
			return nil
		}

		ext := strings.ToLower(filepath.Ext(name))
		if !m.extension(ext) {
			return nil
		}

		if gitFiles != nil {
			if _, ok := gitFiles[rel]; !ok {
				return nil
			}
		} else if gi != nil && gi.MatchesPath(rel) {
			return nil
		}

		if m.skipFile(name, rel) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		langName := lang.ForExtension(ext)
		if langName == "" {
			langName = strings.TrimPrefix(ext, ".")
		}

		results = append(results, FileEntry{
			Path:     path,
			RelPath:  rel,
			Language: langName,
			Size:     info.Size(),
			ModTime:  info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].RelPath < results[j].RelPath
	})

	return results, nil
}

type matcher struct {
	exts      map[string]struct{}
	skipNames map[string]struct{}
	skipPaths []string
	skipFiles []glob.Glob
	ignore    []glob.Glob
}

func newMatcher(opts Options) (*matcher, error) {
	m := &matcher{
		exts:      map[string]struct{}{},
		skipNames: map[string]struct{}{},
	}
	for _, ext := range opts.Extensions {
		m.exts[strings.ToLower(ext)] = struct{}{}
	}
	for _, d := range opts.SkipDirs {
		d = strings.Trim(filepath.ToSlash(d), "/")
		if d == "" {
			continue
		}
		if strings.Contains(d, "/") {
			m.skipPaths = append(m.skipPaths, d)
		} else {
			m.skipNames[d] = struct{}{}
		}
	}
	for _, p := range opts.SkipFiles {
		g, err := glob.Compile(p)
		if err != nil {
			return nil, err
		}
		m.skipFiles = append(m.skipFiles, g)
	}
	for _, p := range opts.Ignore {
		p = strings.TrimPrefix(filepath.ToSlash(p), "./")
		for _, pat := range []string{p, strings.TrimSuffix(p, "/") + "/**"} {
			g, err := glob.Compile(pat, '/')
			if err != nil {
				return nil, err
			}
			m.ignore = append(m.ignore, g)
		}
	}
	return m, nil
}

func (m *matcher) extension(ext string) bool {
	_, ok := m.exts[ext]
	return ok
}

func (m *matcher) skipDir(name, rel string) bool {
	if _, ok := m.skipNames[name]; ok {
		return true
	}
	for _, p := range m.skipPaths {
		if rel == p || strings.HasPrefix(rel, p+"/") {
			return true
		}
	}
	return m.ignored(rel)
}

func (m *matcher) skipFile(name, rel string) bool {
	for _, g := range m.skipFiles {
		if g.Match(name) {
			return true
		}
	}
	return m.ignored(rel)
}

func (m *matcher) ignored(rel string) bool {
	for _, g := range m.ignore {
		if g.Match(rel) {
			return true
		}
	}
	return false
}

func gitLsFiles(ctx context.Context, root string) map[string]struct{} {
	gitDir := filepath.Join(root, ".git")
	info, err := os.Stat(gitDir)
	if err != nil || !info.IsDir() {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", "ls-files", "--cached", "--others", "--exclude-standard")
	cmd.Dir = root
	out, err := cmd.Output()
	if err != nil {
		return nil
	}

	files := make(map[string]struct{})
	for _, line := range strings.Split(strings.TrimRight(string(out), "\n"), "\n") {
		if line != "" {
			files[line] = struct{}{}
		}
	}
	return files
}

func loadGitignore(root string) *ignore.GitIgnore {
	path := filepath.Join(root, ".gitignore")
	gi, err := ignore.CompileIgnoreFile(path)
	if err != nil {
		return nil
	}
	return gi
}
