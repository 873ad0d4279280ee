// Package model defines core data structures for adaptive discovery.
package model

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"
)

// Kind is the tagged variant assigned to a symbol at extraction time.
type Kind string

const (
	Class     Kind = "class"
	Interface Kind = "interface"
	Record    Kind = "record"
	Enum      Kind = "enum"
	Function  Kind = "function"
	Module    Kind = "module"
	Any       Kind = "any"

	// Method marks a receiver method declared apart from its type (Go).
	// Method candidates are folded into their owner and never scored.
	Method Kind = "method"
)

// ExportKind describes how a symbol is reachable from outside its file.
type ExportKind string

const (
	ExportNone    ExportKind = "none"
	ExportNamed   ExportKind = "named"
	ExportDefault ExportKind = "default"
	ExportModule  ExportKind = "module"
)

// Export is the access path used to pull a value out of a loaded module.
type Export struct {
	Kind ExportKind `json:"kind"`
	Name string     `json:"name,omitempty"`
}

// Candidate is one structurally-extracted symbol.
type Candidate struct {
	Path        string    `json:"path"`
	RelPath     string    `json:"rel_path"`
	Language    string    `json:"language"`
	Name        string    `json:"name"`
	Kind        Kind      `json:"kind"`
	Receiver    string    `json:"receiver,omitempty"`
	Methods     []string  `json:"methods,omitempty"`
	Annotations []string  `json:"annotations,omitempty"`
	Extends     []string  `json:"extends,omitempty"`
	Implements  []string  `json:"implements,omitempty"`
	Module      string    `json:"module,omitempty"`
	Export      Export    `json:"export"`
	Line        int       `json:"line"`
	Fingerprint string    `json:"fingerprint"`
	ModTime     time.Time `json:"mod_time"`

	// Order is the position in scan order; it breaks score ties.
	Order int `json:"-"`
}

// ID returns the candidate identity: file path plus symbol name.
func (c *Candidate) ID() string {
	return c.Path + "#" + c.Name
}

// HasMethod reports whether the candidate declares name, ignoring case.
func (c *Candidate) HasMethod(name string) bool {
	for _, m := range c.Methods {
		if strings.EqualFold(m, name) {
			return true
		}
	}
	return false
}

// Breakdown maps each heuristic name to its score contribution.
type Breakdown map[string]float64

// Total sums the components in sorted key order so repeated sums are identical.
func (b Breakdown) Total() float64 {
	keys := make([]string, 0, len(b))
	for k := range b {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var total float64
	for _, k := range keys {
		total += b[k]
	}
	return total
}

// ScoredCandidate is a Candidate plus its score and per-heuristic breakdown.
type ScoredCandidate struct {
	Candidate
	Score     float64   `json:"score"`
	Breakdown Breakdown `json:"breakdown"`
	Eligible  bool      `json:"eligible"`
}

// RawSignature is the loosely-typed query as supplied by callers.
type RawSignature struct {
	Name          string         `json:"name,omitempty" yaml:"name,omitempty"`
	NamePattern   *regexp.Regexp `json:"-" yaml:"-"`
	Regex         bool           `json:"regex,omitempty" yaml:"regex,omitempty"`
	CaseSensitive bool           `json:"case_sensitive,omitempty" yaml:"case_sensitive,omitempty"`
	Type          string         `json:"type,omitempty" yaml:"type,omitempty"`
	Methods       []string       `json:"methods,omitempty" yaml:"methods,omitempty"`
	Exports       string         `json:"exports,omitempty" yaml:"exports,omitempty"`
	Module        string         `json:"module,omitempty" yaml:"module,omitempty"`
	Annotations   []string       `json:"annotations,omitempty" yaml:"annotations,omitempty"`
	Extends       string         `json:"extends,omitempty" yaml:"extends,omitempty"`
	Implements    []string       `json:"implements,omitempty" yaml:"implements,omitempty"`
}

// NameMatcher matches candidate names either literally or by pattern.
type NameMatcher struct {
	Literal string
	Pattern *regexp.Regexp
}

// IsPattern reports whether the matcher uses a compiled pattern.
func (m NameMatcher) IsPattern() bool {
	return m.Pattern != nil
}

// IsZero reports whether no name constraint is present.
func (m NameMatcher) IsZero() bool {
	return m.Literal == "" && m.Pattern == nil
}

// Signature is a normalized, validated query. Treat it as immutable.
type Signature struct {
	Name        string
	NameMatcher NameMatcher
	Type        Kind
	Methods     []string
	Exports     string
	Module      string
	Annotations []string
	Extends     string
	Implements  []string
}

// String renders the signature for diagnostics.
func (s *Signature) String() string {
	var parts []string
	if s.NameMatcher.IsPattern() {
		parts = append(parts, fmt.Sprintf("name=/%s/", s.NameMatcher.Pattern.String()))
	} else if s.Name != "" {
		parts = append(parts, "name="+s.Name)
	}
	parts = append(parts, "type="+string(s.Type))
	if len(s.Methods) > 0 {
		parts = append(parts, "methods=["+strings.Join(s.Methods, ",")+"]")
	}
	if s.Exports != "" {
		parts = append(parts, "exports="+s.Exports)
	}
	if s.Module != "" {
		parts = append(parts, "module="+s.Module)
	}
	if len(s.Annotations) > 0 {
		parts = append(parts, "annotations=["+strings.Join(s.Annotations, ",")+"]")
	}
	if s.Extends != "" {
		parts = append(parts, "extends="+s.Extends)
	}
	if len(s.Implements) > 0 {
		parts = append(parts, "implements=["+strings.Join(s.Implements, ",")+"]")
	}
	return "{" + strings.Join(parts, " ") + "}"
}
