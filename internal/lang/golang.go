package lang

import (
	"go/token"
	"os"
	"path"
	"path/filepath"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"golang.org/x/mod/modfile"

	"github.com/phobologic/adaptive/internal/model"
)

func init() {
	Languages["go"] = &Language{
		Name:       "go",
		Extensions: []string{".go"},
		lang:       golang.GetLanguage(),
		extract:    goExtract,
	}
}

// goExtract emits the package, its types, functions and receiver methods.
// Receiver methods are emitted as Kind=method and attached to their type by
// the collector, since Go spreads a type's methods across files.
func goExtract(root *sitter.Node, source []byte, file string) []model.Candidate {
	var pkg string
	var pkgLine int
	var cands []model.Candidate
	var funcs []string

	for _, child := range namedChildren(root) {
		switch child.Type() {
		case "package_clause":
			if id := firstChildOfType(child, "package_identifier"); id != nil {
				pkg = NodeText(id, source)
				pkgLine = line(child)
			}
		case "type_declaration":
			for _, spec := range namedChildren(child) {
				if spec.Type() != "type_spec" && spec.Type() != "type_alias" {
					continue
				}
				if c, ok := goTypeSpec(spec, source); ok {
					cands = append(cands, c)
				}
			}
		case "function_declaration":
			name := fieldText(child, "name", source)
			if name == "" {
				continue
			}
			funcs = append(funcs, name)
			cands = append(cands, model.Candidate{
				Name:   name,
				Kind:   model.Function,
				Export: exportFor(token.IsExported(name), name),
				Line:   line(child),
			})
		case "method_declaration":
			name := fieldText(child, "name", source)
			recv := goFindReceiverType(child, source)
			if name == "" || recv == "" {
				continue
			}
			cands = append(cands, model.Candidate{
				Name:     name,
				Kind:     model.Method,
				Receiver: recv,
				Export:   exportFor(token.IsExported(name), name),
				Line:     line(child),
			})
		}
	}

	if pkg == "" {
		return cands
	}

	module := goImportPath(filepath.Dir(file), pkg)
	for i := range cands {
		cands[i].Module = module
	}
	pkgCand := model.Candidate{
		Name:    pkg,
		Kind:    model.Module,
		Methods: funcs,
		Module:  module,
		Export:  model.Export{Kind: model.ExportModule},
		Line:    pkgLine,
	}
	return append([]model.Candidate{pkgCand}, cands...)
}

func goTypeSpec(spec *sitter.Node, source []byte) (model.Candidate, bool) {
	name := fieldText(spec, "name", source)
	if name == "" {
		return model.Candidate{}, false
	}
	c := model.Candidate{
		Name:   name,
		Kind:   model.Record,
		Export: exportFor(token.IsExported(name), name),
		Line:   line(spec),
	}
	typ := spec.ChildByFieldName("type")
	if typ == nil {
		return c, true
	}
	switch typ.Type() {
	case "struct_type":
		c.Kind = model.Class
		c.Extends = goEmbedded(typ, source)
	case "interface_type":
		c.Kind = model.Interface
		c.Methods, c.Extends = goInterfaceMembers(typ, source)
	}
	return c, true
}

// goEmbedded returns the embedded field types of a struct.
func goEmbedded(structType *sitter.Node, source []byte) []string {
	list := firstChildOfType(structType, "field_declaration_list")
	if list == nil {
		return nil
	}
	var out []string
	for _, field := range namedChildren(list) {
		if field.Type() != "field_declaration" || field.ChildByFieldName("name") != nil {
			continue
		}
		t := field.ChildByFieldName("type")
		if t == nil {
			continue
		}
		if t.Type() == "pointer_type" {
			if inner := namedChildren(t); len(inner) > 0 {
				t = inner[0]
			}
		}
		out = appendUnique(out, NodeText(t, source))
	}
	return out
}

// goInterfaceMembers handles both the method_spec and the newer method_elem
// grammar shapes.
func goInterfaceMembers(iface *sitter.Node, source []byte) (methods, embeds []string) {
	for _, child := range namedChildren(iface) {
		switch child.Type() {
		case "method_spec", "method_elem":
			name := fieldText(child, "name", source)
			if name == "" {
				name = NodeText(firstChildOfType(child, "field_identifier"), source)
			}
			methods = appendUnique(methods, name)
		case "type_elem", "constraint_elem":
			for _, t := range namedChildren(child) {
				if t.Type() == "type_identifier" || t.Type() == "qualified_type" || t.Type() == "generic_type" {
					embeds = appendUnique(embeds, NodeText(t, source))
				}
			}
		case "type_identifier", "qualified_type":
			embeds = appendUnique(embeds, NodeText(child, source))
		}
	}
	return methods, embeds
}

// goFindReceiverType extracts the receiver type name from a method_declaration node.
// Navigates: method_declaration → receiver parameter_list → parameter_declaration → type.
func goFindReceiverType(node *sitter.Node, source []byte) string {
	recv := node.ChildByFieldName("receiver")
	if recv == nil {
		return ""
	}
	for _, param := range namedChildren(recv) {
		if param.Type() == "parameter_declaration" {
			return goTypeName(param.ChildByFieldName("type"), source)
		}
	}
	return ""
}

// goTypeName unwraps pointer and generic receivers (*T, T[K]) to T.
func goTypeName(t *sitter.Node, source []byte) string {
	for t != nil {
		switch t.Type() {
		case "type_identifier":
			return NodeText(t, source)
		case "pointer_type":
			children := namedChildren(t)
			if len(children) == 0 {
				return ""
			}
			t = children[0]
		case "generic_type":
			t = t.ChildByFieldName("type")
		default:
			return ""
		}
	}
	return ""
}

var goModCache sync.Map // dir → module root and path

type goModule struct {
	root string
	path string
}

// goImportPath returns the import path of dir from the nearest go.mod, or
// the bare package name when dir is outside any module.
func goImportPath(dir, pkg string) string {
	mod, ok := findGoModule(dir)
	if !ok {
		return pkg
	}
	rel, err := filepath.Rel(mod.root, dir)
	if err != nil || rel == "." {
		return mod.path
	}
	return path.Join(mod.path, filepath.ToSlash(rel))
}

func findGoModule(dir string) (goModule, bool) {
	if v, ok := goModCache.Load(dir); ok {
		m := v.(goModule)
		return m, m.path != ""
	}
	var m goModule
	data, err := os.ReadFile(filepath.Join(dir, "go.mod"))
	if err == nil {
		if mp := modfile.ModulePath(data); mp != "" {
			m = goModule{root: dir, path: mp}
		}
	} else if parent := filepath.Dir(dir); parent != dir {
		m, _ = findGoModule(parent)
	}
	goModCache.Store(dir, m)
	return m, m.path != ""
}
