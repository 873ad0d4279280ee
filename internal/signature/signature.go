// Package signature turns loosely-typed queries into validated signatures.
package signature

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/phobologic/adaptive/internal/errs"
	"github.com/phobologic/adaptive/internal/model"
)

var typeAliases = map[string]model.Kind{
	"":          model.Any,
	"any":       model.Any,
	"*":         model.Any,
	"class":     model.Class,
	"struct":    model.Class,
	"object":    model.Class,
	"interface": model.Interface,
	"trait":     model.Interface,
	"protocol":  model.Interface,
	"record":    model.Record,
	"enum":      model.Enum,
	"function":  model.Function,
	"func":      model.Function,
	"module":    model.Module,
	"package":   model.Module,
	"namespace": model.Module,
}

// slashPattern matches "/body/flags" literals such as "/^Calc/i".
var slashPattern = regexp.MustCompile(`^/(.+)/([a-z]*)$`)

// Normalize validates raw and returns a canonical Signature.
// It performs no I/O.
func Normalize(raw model.RawSignature) (*model.Signature, error) {
	kind, ok := typeAliases[strings.ToLower(strings.TrimSpace(raw.Type))]
	if !ok {
		return nil, &errs.InvalidSignatureError{Reason: fmt.Sprintf("unknown type %q", raw.Type)}
	}

	matcher, err := nameMatcher(raw)
	if err != nil {
		return nil, err
	}

	methods := dedupe(raw.Methods, false)
	if matcher.IsZero() && kind == model.Any && len(methods) == 0 {
		return nil, &errs.InvalidSignatureError{Reason: "at least one of name, type or methods is required"}
	}

	name := strings.TrimSpace(raw.Name)
	if matcher.IsPattern() && raw.NamePattern != nil && name == "" {
		name = raw.NamePattern.String()
	}

	return &model.Signature{
		Name:        name,
		NameMatcher: matcher,
		Type:        kind,
		Methods:     methods,
		Exports:     strings.TrimSpace(raw.Exports),
		Module:      strings.TrimSpace(raw.Module),
		Annotations: dedupe(raw.Annotations, true),
		Extends:     strings.TrimSpace(raw.Extends),
		Implements:  dedupe(raw.Implements, false),
	}, nil
}

func nameMatcher(raw model.RawSignature) (model.NameMatcher, error) {
	if raw.NamePattern != nil {
		return model.NameMatcher{Pattern: raw.NamePattern}, nil
	}

	name := strings.TrimSpace(raw.Name)
	if name == "" {
		return model.NameMatcher{}, nil
	}

	if m := slashPattern.FindStringSubmatch(name); m != nil {
		expr := m[1]
		for _, flag := range m[2] {
			switch flag {
			case 'i':
				expr = "(?i)" + expr
			case 's':
				expr = "(?s)" + expr
			case 'm':
				expr = "(?m)" + expr
			case 'g', 'u', 'y':
				// JavaScript-only flags with no effect on a single match.
			default:
				return model.NameMatcher{}, &errs.InvalidSignatureError{Reason: fmt.Sprintf("unsupported pattern flag %q", flag)}
			}
		}
		return compile(expr)
	}

	if raw.Regex {
		expr := name
		if !raw.CaseSensitive {
			expr = "(?i)" + expr
		}
		return compile(expr)
	}

	return model.NameMatcher{Literal: name}, nil
}

func compile(expr string) (model.NameMatcher, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return model.NameMatcher{}, &errs.InvalidSignatureError{Reason: fmt.Sprintf("name pattern: %v", err)}
	}
	return model.NameMatcher{Pattern: re}, nil
}

// dedupe drops blanks and case-insensitive duplicates, keeping first casing.
func dedupe(values []string, stripAt bool) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if stripAt {
			v = strings.TrimPrefix(v, "@")
		}
		if v == "" {
			continue
		}
		key := strings.ToLower(v)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, v)
	}
	return out
}
