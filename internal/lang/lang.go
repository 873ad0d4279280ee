// Package lang provides the language registry mapping file extensions to
// tree-sitter grammars and the structural extractors that turn a syntax tree
// into candidates.
package lang

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"

	"github.com/phobologic/adaptive/internal/model"
)

// Adapter extracts candidates from one file. Implementations must not
// execute the file.
type Adapter interface {
	Lang() string
	Parse(ctx context.Context, content []byte, path string) ([]model.Candidate, error)
}

// ErrSyntax is returned when a file yields only syntax errors.
var ErrSyntax = errors.New("syntax error")

// extractFunc walks a parsed tree. path is absolute.
type extractFunc func(root *sitter.Node, source []byte, path string) []model.Candidate

// Language holds tree-sitter configuration for a supported language.
type Language struct {
	Name       string
	Extensions []string
	lang       *sitter.Language
	extract    extractFunc
}

// GetLanguage returns the tree-sitter Language pointer.
func (l *Language) GetLanguage() *sitter.Language {
	return l.lang
}

// NewParser creates a fresh tree-sitter parser for this language.
// Each goroutine must use its own parser (not thread-safe).
func (l *Language) NewParser() *sitter.Parser {
	p := sitter.NewParser()
	p.SetLanguage(l.lang)
	return p
}

// Lang implements Adapter.
func (l *Language) Lang() string { return l.Name }

// Parse implements Adapter.
func (l *Language) Parse(ctx context.Context, content []byte, path string) ([]model.Candidate, error) {
	if len(content) == 0 {
		return nil, nil
	}
	p := l.NewParser()
	defer p.Close()

	tree, err := p.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	cands := l.extract(root, content, path)
	if len(cands) == 0 && root.HasError() {
		return nil, ErrSyntax
	}
	for i := range cands {
		cands[i].Language = l.Name
	}
	return cands, nil
}

// Languages maps language names to their configuration.
// Populated by init() functions in per-language files.
var Languages = map[string]*Language{}

// extensionMap is built lazily after all init() functions have run.
var extensionMap map[string]string
var extensionOnce sync.Once

func getExtensionMap() map[string]string {
	extensionOnce.Do(func() {
		extensionMap = make(map[string]string)
		for _, l := range Languages {
			for _, ext := range l.Extensions {
				extensionMap[ext] = l.Name
			}
		}
	})
	return extensionMap
}

// ForExtension returns the language name for a file extension, or "" if unsupported.
func ForExtension(ext string) string {
	return getExtensionMap()[strings.ToLower(ext)]
}

// NodeText returns the source text of a tree-sitter node.
func NodeText(node *sitter.Node, source []byte) string {
	if node == nil {
		return ""
	}
	return string(source[node.StartByte():node.EndByte()])
}

func fieldText(node *sitter.Node, field string, source []byte) string {
	return NodeText(node.ChildByFieldName(field), source)
}

func line(node *sitter.Node) int {
	return int(node.StartPoint().Row) + 1
}

func firstChildOfType(node *sitter.Node, types ...string) *sitter.Node {
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		for _, t := range types {
			if child.Type() == t {
				return child
			}
		}
	}
	return nil
}

// namedChildren yields the named children of node, skipping nil.
func namedChildren(node *sitter.Node) []*sitter.Node {
	if node == nil {
		return nil
	}
	out := make([]*sitter.Node, 0, node.NamedChildCount())
	for i := 0; i < int(node.NamedChildCount()); i++ {
		if c := node.NamedChild(i); c != nil {
			out = append(out, c)
		}
	}
	return out
}

func appendUnique(list []string, v string) []string {
	if v == "" {
		return list
	}
	for _, x := range list {
		if x == v {
			return list
		}
	}
	return append(list, v)
}

func exportFor(exported bool, name string) model.Export {
	if exported {
		return model.Export{Kind: model.ExportNamed, Name: name}
	}
	return model.Export{Kind: model.ExportNone}
}
