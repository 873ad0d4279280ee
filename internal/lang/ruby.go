package lang

import (
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/ruby"

	"github.com/phobologic/adaptive/internal/model"
)

func init() {
	Languages["ruby"] = &Language{
		Name:       "ruby",
		Extensions: []string{".rb"},
		lang:       ruby.GetLanguage(),
		extract:    rubyExtract,
	}
}

func rubyExtract(root *sitter.Node, source []byte, _ string) []model.Candidate {
	var cands []model.Candidate
	rubyWalk(root, source, nil, &cands)
	return cands
}

// rubyWalk emits classes and modules at any nesting depth, qualifying them
// with their enclosing namespace, plus top-level methods as functions.
func rubyWalk(node *sitter.Node, source []byte, scope []string, out *[]model.Candidate) {
	for _, child := range namedChildren(node) {
		switch child.Type() {
		case "class", "module":
			name := rubyClassName(child, source)
			if name == "" {
				continue
			}
			full := strings.Join(append(append([]string(nil), scope...), name), "::")
			c := model.Candidate{
				Name:   lastScoped(name),
				Kind:   model.Class,
				Module: strings.TrimSuffix(strings.TrimSuffix(full, lastScoped(name)), "::"),
				Export: model.Export{Kind: model.ExportNamed, Name: lastScoped(name)},
				Line:   line(child),
			}
			if child.Type() == "module" {
				c.Kind = model.Module
			}
			if sc := child.ChildByFieldName("superclass"); sc != nil {
				for _, t := range namedChildren(sc) {
					c.Extends = appendUnique(c.Extends, NodeText(t, source))
				}
			}
			rubyMembers(child, source, &c)
			*out = append(*out, c)
			rubyWalk(rubyBody(child), source, append(append([]string(nil), scope...), name), out)
		case "method":
			if len(scope) > 0 {
				continue
			}
			if name := fieldText(child, "name", source); name != "" {
				*out = append(*out, model.Candidate{
					Name:   name,
					Kind:   model.Function,
					Export: model.Export{Kind: model.ExportNamed, Name: name},
					Line:   line(child),
				})
			}
		case "body_statement", "begin":
			rubyWalk(child, source, scope, out)
		}
	}
}

// rubyBody returns the node holding a class or module's statements. Older
// grammars inline them into the class node itself.
func rubyBody(node *sitter.Node) *sitter.Node {
	if b := node.ChildByFieldName("body"); b != nil {
		return b
	}
	return node
}

// rubyMembers collects methods and mixins declared directly in a class body.
func rubyMembers(node *sitter.Node, source []byte, c *model.Candidate) {
	for _, stmt := range namedChildren(rubyBody(node)) {
		switch stmt.Type() {
		case "method", "singleton_method":
			c.Methods = appendUnique(c.Methods, fieldText(stmt, "name", source))
		case "call", "method_call":
			method := fieldText(stmt, "method", source)
			if method == "" {
				method = NodeText(firstChildOfType(stmt, "identifier"), source)
			}
			switch method {
			case "include", "prepend", "extend":
				args := stmt.ChildByFieldName("arguments")
				if args == nil {
					args = firstChildOfType(stmt, "argument_list")
				}
				for _, a := range namedChildren(args) {
					if a.Type() == "constant" || a.Type() == "scope_resolution" {
						c.Implements = appendUnique(c.Implements, NodeText(a, source))
					}
				}
			case "attr_accessor", "attr_reader":
				args := stmt.ChildByFieldName("arguments")
				if args == nil {
					args = firstChildOfType(stmt, "argument_list")
				}
				for _, a := range namedChildren(args) {
					if a.Type() == "simple_symbol" {
						c.Methods = appendUnique(c.Methods, strings.TrimPrefix(NodeText(a, source), ":"))
					}
				}
			}
		}
	}
}

// rubyClassName extracts the name from a class or module node.
func rubyClassName(node *sitter.Node, source []byte) string {
	if n := node.ChildByFieldName("name"); n != nil {
		return NodeText(n, source)
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.Type() == "constant" || child.Type() == "scope_resolution" {
			return NodeText(child, source)
		}
	}
	return ""
}

func lastScoped(name string) string {
	if i := strings.LastIndex(name, "::"); i >= 0 {
		return name[i+2:]
	}
	return name
}
