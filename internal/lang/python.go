package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/phobologic/adaptive/internal/model"
)

func init() {
	Languages["python"] = &Language{
		Name:       "python",
		Extensions: []string{".py"},
		lang:       python.GetLanguage(),
		extract:    pythonExtract,
	}
}

// pythonExtract emits the file module (its top-level functions as methods),
// each top-level class and each top-level function.
func pythonExtract(root *sitter.Node, source []byte, file string) []model.Candidate {
	stem := strings.TrimSuffix(filepath.Base(file), filepath.Ext(file))
	mod := model.Candidate{
		Name:   stem,
		Kind:   model.Module,
		Export: model.Export{Kind: model.ExportModule},
		Line:   1,
	}
	var cands []model.Candidate

	for _, child := range namedChildren(root) {
		def, decorators := pythonUnwrapDecorated(child, source)
		switch def.Type() {
		case "class_definition":
			if c, ok := pythonClass(def, decorators, source); ok {
				cands = append(cands, c)
			}
		case "function_definition":
			name := fieldText(def, "name", source)
			if name == "" {
				continue
			}
			public := !strings.HasPrefix(name, "_")
			if public {
				mod.Methods = appendUnique(mod.Methods, name)
			}
			cands = append(cands, model.Candidate{
				Name:        name,
				Kind:        model.Function,
				Annotations: decorators,
				Export:      exportFor(public, name),
				Line:        line(def),
			})
		}
	}

	return append([]model.Candidate{mod}, cands...)
}

// pythonUnwrapDecorated returns the definition under a decorated_definition
// together with its decorator names.
func pythonUnwrapDecorated(node *sitter.Node, source []byte) (*sitter.Node, []string) {
	if node.Type() != "decorated_definition" {
		return node, nil
	}
	var decorators []string
	for _, child := range namedChildren(node) {
		if child.Type() == "decorator" {
			decorators = appendUnique(decorators, pythonDecoratorName(child, source))
		}
	}
	if def := node.ChildByFieldName("definition"); def != nil {
		return def, decorators
	}
	return node, decorators
}

func pythonDecoratorName(dec *sitter.Node, source []byte) string {
	text := strings.TrimSpace(strings.TrimPrefix(NodeText(dec, source), "@"))
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return text
}

func pythonClass(def *sitter.Node, decorators []string, source []byte) (model.Candidate, bool) {
	name := fieldText(def, "name", source)
	if name == "" {
		return model.Candidate{}, false
	}
	c := model.Candidate{
		Name:        name,
		Kind:        model.Class,
		Annotations: decorators,
		Export:      exportFor(!strings.HasPrefix(name, "_"), name),
		Line:        line(def),
	}

	for _, base := range namedChildren(def.ChildByFieldName("superclasses")) {
		if base.Type() == "keyword_argument" {
			continue
		}
		c.Extends = appendUnique(c.Extends, NodeText(base, source))
	}

	for _, stmt := range namedChildren(def.ChildByFieldName("body")) {
		fn, _ := pythonUnwrapDecorated(stmt, source)
		if fn.Type() == "function_definition" {
			c.Methods = appendUnique(c.Methods, fieldText(fn, "name", source))
		}
	}

	c.Kind = pythonClassKind(c.Extends, decorators)
	return c, true
}

// pythonClassKind refines class into enum, interface or record from its
// bases and decorators.
func pythonClassKind(bases, decorators []string) model.Kind {
	for _, b := range bases {
		switch lastDotted(b) {
		case "Enum", "IntEnum", "StrEnum", "Flag", "IntFlag":
			return model.Enum
		case "Protocol":
			return model.Interface
		case "NamedTuple", "TypedDict":
			return model.Record
		}
	}
	for _, d := range decorators {
		if lastDotted(d) == "dataclass" {
			return model.Record
		}
	}
	return model.Class
}

func lastDotted(s string) string {
	if i := strings.IndexByte(s, '['); i >= 0 {
		s = s[:i]
	}
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		return s[i+1:]
	}
	return s
}
