package lang

import (
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/phobologic/adaptive/internal/model"
)

func init() {
	Languages["javascript"] = &Language{
		Name:       "javascript",
		Extensions: []string{".js", ".mjs", ".cjs", ".jsx"},
		lang:       javascript.GetLanguage(),
		extract:    jsExtract,
	}
	Languages["typescript"] = &Language{
		Name:       "typescript",
		Extensions: []string{".ts", ".mts", ".cts"},
		lang:       typescript.GetLanguage(),
		extract:    jsExtract,
	}
	Languages["tsx"] = &Language{
		Name:       "tsx",
		Extensions: []string{".tsx"},
		lang:       tsx.GetLanguage(),
		extract:    jsExtract,
	}
}

// jsFile accumulates candidates for one JavaScript or TypeScript file.
// Exports declared apart from their symbol (export { A }, export default A,
// module.exports = A) are resolved once the whole file has been walked.
type jsFile struct {
	source  []byte
	stem    string
	cands   []model.Candidate
	byName  map[string]int
	exports []jsPendingExport
	mod     model.Candidate
	hasMod  bool
}

type jsPendingExport struct {
	local  string
	export model.Export
}

var jsFunctionValues = map[string]bool{
	"arrow_function":               true,
	"function":                     true,
	"function_expression":          true,
	"generator_function":           true,
	"generator_function_declaration": true,
}

func jsExtract(root *sitter.Node, source []byte, file string) []model.Candidate {
	f := &jsFile{
		source: source,
		stem:   strings.TrimSuffix(filepath.Base(file), filepath.Ext(file)),
		byName: map[string]int{},
	}
	f.mod = model.Candidate{
		Name:   f.stem,
		Kind:   model.Module,
		Export: model.Export{Kind: model.ExportModule},
		Line:   1,
	}

	for _, child := range namedChildren(root) {
		switch child.Type() {
		case "export_statement":
			f.exportStatement(child)
		case "expression_statement":
			f.commonJS(child)
		default:
			f.declaration(child, nil, model.Export{Kind: model.ExportNone})
		}
	}

	for _, p := range f.exports {
		i, ok := f.byName[p.local]
		if !ok {
			continue
		}
		f.cands[i].Export = p.export
		if f.cands[i].Kind == model.Function && p.export.Kind == model.ExportNamed {
			f.mod.Methods = appendUnique(f.mod.Methods, p.export.Name)
			f.hasMod = true
		}
	}

	if f.hasMod {
		return append([]model.Candidate{f.mod}, f.cands...)
	}
	return f.cands
}

func (f *jsFile) add(c model.Candidate) {
	if c.Name == "" {
		return
	}
	if _, dup := f.byName[c.Name]; !dup {
		f.byName[c.Name] = len(f.cands)
	}
	if c.Kind == model.Function && c.Export.Kind == model.ExportNamed {
		f.mod.Methods = appendUnique(f.mod.Methods, c.Name)
		f.hasMod = true
	}
	f.cands = append(f.cands, c)
}

func (f *jsFile) exportStatement(node *sitter.Node) {
	isDefault := false
	var decorators []string
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "default":
			isDefault = true
		case "decorator":
			decorators = appendUnique(decorators, jsDecoratorName(child, f.source))
		}
	}

	if decl := node.ChildByFieldName("declaration"); decl != nil {
		exp := model.Export{Kind: model.ExportNamed}
		if isDefault {
			exp.Kind = model.ExportDefault
		}
		f.declaration(decl, decorators, exp)
		return
	}

	if value := node.ChildByFieldName("value"); value != nil && isDefault {
		switch {
		case value.Type() == "identifier":
			f.exports = append(f.exports, jsPendingExport{
				local:  NodeText(value, f.source),
				export: model.Export{Kind: model.ExportDefault},
			})
		default:
			f.anonymous(value, decorators, model.Export{Kind: model.ExportDefault})
		}
		return
	}

	if clause := firstChildOfType(node, "export_clause"); clause != nil {
		for _, spec := range namedChildren(clause) {
			if spec.Type() != "export_specifier" {
				continue
			}
			local := fieldText(spec, "name", f.source)
			alias := fieldText(spec, "alias", f.source)
			exp := model.Export{Kind: model.ExportNamed, Name: local}
			switch alias {
			case "":
			case "default":
				exp = model.Export{Kind: model.ExportDefault}
			default:
				exp.Name = alias
			}
			f.exports = append(f.exports, jsPendingExport{local: local, export: exp})
		}
	}
}

// anonymous handles `export default class {}` and friends, naming the
// symbol after its own name or else the file stem.
func (f *jsFile) anonymous(value *sitter.Node, decorators []string, exp model.Export) {
	switch {
	case value.Type() == "class":
		c := f.class(value, decorators, exp)
		if c.Name == "" {
			c.Name = f.stem
		}
		f.add(c)
	case jsFunctionValues[value.Type()]:
		name := fieldText(value, "name", f.source)
		if name == "" {
			name = f.stem
		}
		f.add(model.Candidate{Name: name, Kind: model.Function, Export: exp, Line: line(value)})
	case value.Type() == "object":
		f.objectModule(value)
	}
}

func (f *jsFile) declaration(node *sitter.Node, decorators []string, exp model.Export) {
	switch node.Type() {
	case "class_declaration", "abstract_class_declaration", "class":
		f.add(f.class(node, decorators, exp))
	case "function_declaration", "generator_function_declaration", "function_signature":
		name := fieldText(node, "name", f.source)
		f.add(model.Candidate{Name: name, Kind: model.Function, Export: withName(exp, name), Line: line(node)})
	case "lexical_declaration", "variable_declaration":
		for _, decl := range namedChildren(node) {
			if decl.Type() != "variable_declarator" {
				continue
			}
			name := fieldText(decl, "name", f.source)
			value := decl.ChildByFieldName("value")
			if value == nil || name == "" {
				continue
			}
			switch {
			case jsFunctionValues[value.Type()]:
				f.add(model.Candidate{Name: name, Kind: model.Function, Export: withName(exp, name), Line: line(decl)})
			case value.Type() == "class":
				c := f.class(value, decorators, exp)
				c.Name = name
				c.Export = withName(exp, name)
				f.add(c)
			}
		}
	case "interface_declaration":
		name := fieldText(node, "name", f.source)
		c := model.Candidate{Name: name, Kind: model.Interface, Export: withName(exp, name), Line: line(node)}
		for _, member := range namedChildren(node.ChildByFieldName("body")) {
			if member.Type() == "method_signature" {
				c.Methods = appendUnique(c.Methods, fieldText(member, "name", f.source))
			}
		}
		if ext := firstChildOfType(node, "extends_type_clause"); ext != nil {
			for _, t := range namedChildren(ext) {
				c.Extends = appendUnique(c.Extends, NodeText(t, f.source))
			}
		}
		f.add(c)
	case "enum_declaration":
		name := fieldText(node, "name", f.source)
		f.add(model.Candidate{Name: name, Kind: model.Enum, Export: withName(exp, name), Line: line(node)})
	}
}

func (f *jsFile) class(node *sitter.Node, decorators []string, exp model.Export) model.Candidate {
	name := fieldText(node, "name", f.source)
	c := model.Candidate{
		Name:        name,
		Kind:        model.Class,
		Annotations: decorators,
		Export:      withName(exp, name),
		Line:        line(node),
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		switch child.Type() {
		case "decorator":
			c.Annotations = appendUnique(c.Annotations, jsDecoratorName(child, f.source))
		case "class_heritage":
			f.heritage(child, &c)
		}
	}
	for _, member := range namedChildren(node.ChildByFieldName("body")) {
		var mname string
		switch member.Type() {
		case "method_definition", "method_signature", "abstract_method_signature":
			mname = fieldText(member, "name", f.source)
		case "public_field_definition", "field_definition":
			value := member.ChildByFieldName("value")
			if value == nil || !jsFunctionValues[value.Type()] {
				continue
			}
			mname = fieldText(member, "name", f.source)
			if mname == "" {
				mname = fieldText(member, "property", f.source)
			}
		}
		if mname != "" && mname != "constructor" {
			c.Methods = appendUnique(c.Methods, strings.TrimPrefix(mname, "#"))
		}
	}
	return c
}

// heritage reads `extends X implements Y, Z`. JavaScript puts the extends
// expression directly under class_heritage; TypeScript wraps it in clauses.
func (f *jsFile) heritage(node *sitter.Node, c *model.Candidate) {
	for _, child := range namedChildren(node) {
		switch child.Type() {
		case "extends_clause":
			if v := child.ChildByFieldName("value"); v != nil {
				c.Extends = appendUnique(c.Extends, NodeText(v, f.source))
				continue
			}
			for _, t := range namedChildren(child) {
				if t.Type() != "type_arguments" {
					c.Extends = appendUnique(c.Extends, NodeText(t, f.source))
				}
			}
		case "implements_clause":
			for _, t := range namedChildren(child) {
				c.Implements = appendUnique(c.Implements, NodeText(t, f.source))
			}
		default:
			c.Extends = appendUnique(c.Extends, NodeText(child, f.source))
		}
	}
}

// commonJS recognizes module.exports = X and exports.name = X.
func (f *jsFile) commonJS(stmt *sitter.Node) {
	assign := firstChildOfType(stmt, "assignment_expression")
	if assign == nil {
		return
	}
	left := NodeText(assign.ChildByFieldName("left"), f.source)
	right := assign.ChildByFieldName("right")
	if right == nil {
		return
	}
	switch {
	case left == "module.exports":
		if right.Type() == "identifier" {
			f.exports = append(f.exports, jsPendingExport{
				local:  NodeText(right, f.source),
				export: model.Export{Kind: model.ExportModule},
			})
			return
		}
		f.anonymous(right, nil, model.Export{Kind: model.ExportModule})
	case strings.HasPrefix(left, "exports.") || strings.HasPrefix(left, "module.exports."):
		name := left[strings.LastIndexByte(left, '.')+1:]
		exp := model.Export{Kind: model.ExportNamed, Name: name}
		if right.Type() == "identifier" {
			f.exports = append(f.exports, jsPendingExport{local: NodeText(right, f.source), export: exp})
			return
		}
		if jsFunctionValues[right.Type()] {
			f.add(model.Candidate{Name: name, Kind: model.Function, Export: exp, Line: line(stmt)})
		} else if right.Type() == "class" {
			c := f.class(right, nil, exp)
			c.Name = name
			f.add(c)
		}
	}
}

// objectModule treats `module.exports = { a, b() {} }` as the file module.
func (f *jsFile) objectModule(obj *sitter.Node) {
	for _, prop := range namedChildren(obj) {
		switch prop.Type() {
		case "pair":
			f.mod.Methods = appendUnique(f.mod.Methods, strings.Trim(fieldText(prop, "key", f.source), `"'`))
		case "method_definition":
			f.mod.Methods = appendUnique(f.mod.Methods, fieldText(prop, "name", f.source))
		case "shorthand_property_identifier":
			f.mod.Methods = appendUnique(f.mod.Methods, NodeText(prop, f.source))
		}
	}
	f.hasMod = true
}

func jsDecoratorName(dec *sitter.Node, source []byte) string {
	text := strings.TrimSpace(strings.TrimPrefix(NodeText(dec, source), "@"))
	if i := strings.IndexByte(text, '('); i >= 0 {
		text = text[:i]
	}
	return text
}

func withName(exp model.Export, name string) model.Export {
	if exp.Kind == model.ExportNamed && exp.Name == "" {
		exp.Name = name
	}
	return exp
}
