package lang

import (
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/java"

	"github.com/phobologic/adaptive/internal/model"
)

func init() {
	Languages["java"] = &Language{
		Name:       "java",
		Extensions: []string{".java"},
		lang:       java.GetLanguage(),
		extract:    javaExtract,
	}
}

var javaKinds = map[string]model.Kind{
	"class_declaration":     model.Class,
	"interface_declaration": model.Interface,
	"enum_declaration":      model.Enum,
	"record_declaration":    model.Record,
}

func javaExtract(root *sitter.Node, source []byte, _ string) []model.Candidate {
	var pkg string
	var cands []model.Candidate
	for _, child := range namedChildren(root) {
		if child.Type() == "package_declaration" {
			if id := firstChildOfType(child, "scoped_identifier", "identifier"); id != nil {
				pkg = NodeText(id, source)
			}
			continue
		}
		javaType(child, source, pkg, &cands)
	}
	return cands
}

// javaType emits node and any nested member types.
func javaType(node *sitter.Node, source []byte, pkg string, out *[]model.Candidate) {
	kind, ok := javaKinds[node.Type()]
	if !ok {
		return
	}
	name := fieldText(node, "name", source)
	if name == "" {
		return
	}
	c := model.Candidate{
		Name:   name,
		Kind:   kind,
		Module: pkg,
		Line:   line(node),
	}

	public := false
	if mods := firstChildOfType(node, "modifiers"); mods != nil {
		for i := 0; i < int(mods.ChildCount()); i++ {
			m := mods.Child(i)
			switch m.Type() {
			case "public":
				public = true
			case "marker_annotation", "annotation":
				c.Annotations = appendUnique(c.Annotations, fieldText(m, "name", source))
			}
		}
	}
	c.Export = exportFor(public, name)

	if sc := node.ChildByFieldName("superclass"); sc != nil {
		c.Extends = append(c.Extends, javaTypeList(sc, source)...)
	}
	if ifaces := node.ChildByFieldName("interfaces"); ifaces != nil {
		c.Implements = append(c.Implements, javaTypeList(ifaces, source)...)
	}
	if ext := firstChildOfType(node, "extends_interfaces"); ext != nil {
		c.Extends = append(c.Extends, javaTypeList(ext, source)...)
	}

	body := node.ChildByFieldName("body")
	var nested []*sitter.Node
	for _, member := range javaMembers(body) {
		switch member.Type() {
		case "method_declaration":
			c.Methods = appendUnique(c.Methods, fieldText(member, "name", source))
		default:
			if _, isType := javaKinds[member.Type()]; isType {
				nested = append(nested, member)
			}
		}
	}
	if kind == model.Record {
		for _, p := range namedChildren(node.ChildByFieldName("parameters")) {
			c.Methods = appendUnique(c.Methods, fieldText(p, "name", source))
		}
	}

	*out = append(*out, c)
	for _, n := range nested {
		javaType(n, source, pkg, out)
	}
}

// javaMembers flattens enum bodies, whose methods sit one level deeper.
func javaMembers(body *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for _, member := range namedChildren(body) {
		if member.Type() == "enum_body_declarations" {
			out = append(out, namedChildren(member)...)
			continue
		}
		out = append(out, member)
	}
	return out
}

// javaTypeList collects type names under superclass, super_interfaces and
// extends_interfaces, descending through type_list.
func javaTypeList(node *sitter.Node, source []byte) []string {
	var out []string
	for _, child := range namedChildren(node) {
		switch child.Type() {
		case "type_list":
			out = append(out, javaTypeList(child, source)...)
		case "type_identifier", "generic_type", "scoped_type_identifier":
			out = appendUnique(out, NodeText(child, source))
		}
	}
	return out
}
