package resolve

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/phobologic/adaptive/internal/collect"
	"github.com/phobologic/adaptive/internal/model"
	"github.com/phobologic/adaptive/internal/parse"
)

// SourceLoader re-extracts the owning file, bypassing the cache, and
// returns the freshly parsed symbol. For Go the whole directory is parsed so
// receiver methods in sibling files are attached.
type SourceLoader struct {
	Parser *parse.Dispatcher
}

// Load implements Loader.
func (s *SourceLoader) Load(ctx context.Context, c model.Candidate) (*Loaded, error) {
	if _, ok := s.Parser.For(c.Path); !ok {
		return nil, ErrNotLoadable
	}

	files := []string{c.Path}
	if c.Language == "go" {
		siblings, err := goSiblings(c.Path)
		if err != nil {
			return nil, err
		}
		files = siblings
	}

	var fresh []model.Candidate
	for _, f := range files {
		content, err := os.ReadFile(f)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", f, err)
		}
		cands, err := s.Parser.File(ctx, f, content)
		if err != nil {
			return nil, err
		}
		for i := range cands {
			cands[i].Path = f
		}
		fresh = append(fresh, cands...)
	}
	fresh = collect.MergeDirectoryScoped(fresh)

	for _, f := range fresh {
		if f.Name != c.Name || f.Kind == model.Method {
			continue
		}
		if c.Language != "go" && f.Path != c.Path {
			continue
		}
		return &Loaded{
			Kind:    f.Kind,
			Name:    f.Name,
			Methods: f.Methods,
			Access:  access(f),
			Value:   f,
			Source:  "source",
		}, nil
	}
	return nil, fmt.Errorf("%s no longer declared in %s", c.Name, c.RelPath)
}

func goSiblings(path string) ([]string, error) {
	dir := filepath.Dir(path)
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}
	var out []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".go" || strings.HasSuffix(name, "_test.go") {
			continue
		}
		out = append(out, filepath.Join(dir, name))
	}
	return out, nil
}
