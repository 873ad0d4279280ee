// Package toon implements TOON (Token-Oriented Object Notation) encoding
// for discovery diagnostics.
package toon

import (
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/phobologic/adaptive/internal/model"
)

var (
	needsQuoting = regexp.MustCompile(`[,:"\\{}\[\]]`)
	looksNumeric = regexp.MustCompile(`^-?(?:0|[1-9]\d*)(?:\.\d+)?$`)
	keywords     = map[string]struct{}{
		"true":  {},
		"false": {},
		"null":  {},
	}
)

// Explain describes one diagnostic listing.
type Explain struct {
	Root       string
	Signature  string
	MinScore   float64
	Candidates []model.ScoredCandidate
}

// EncodeExplain renders ranked candidates and their per-heuristic breakdown.
func EncodeExplain(e Explain) string {
	var parts []string

	parts = append(parts, fmt.Sprintf("root: %s", encodeValue(e.Root)))
	parts = append(parts, fmt.Sprintf("signature: %s", encodeValue(e.Signature)))
	parts = append(parts, fmt.Sprintf("min_score: %s", formatScore(e.MinScore)))

	var rows [][]string
	for i := range e.Candidates {
		c := &e.Candidates[i]
		rows = append(rows, []string{
			strconv.Itoa(i + 1),
			c.RelPath,
			c.Name,
			string(c.Kind),
			strconv.Itoa(c.Line),
			formatScore(c.Score),
			strconv.FormatBool(c.Eligible && c.Score >= e.MinScore),
		})
	}
	parts = append(parts, formatTabular("candidates",
		[]string{"rank", "path", "name", "kind", "line", "score", "accepted"}, rows))

	var breakdown [][]string
	for i := range e.Candidates {
		c := &e.Candidates[i]
		keys := make([]string, 0, len(c.Breakdown))
		for k := range c.Breakdown {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			breakdown = append(breakdown, []string{strconv.Itoa(i + 1), k, formatScore(c.Breakdown[k])})
		}
	}
	parts = append(parts, formatTabular("breakdown", []string{"rank", "heuristic", "points"}, breakdown))

	return strings.Join(parts, "\n")
}

// EncodeTarget renders a resolved winner.
func EncodeTarget(c model.ScoredCandidate, access string, methods []string) string {
	parts := []string{
		fmt.Sprintf("name: %s", encodeValue(c.Name)),
		fmt.Sprintf("kind: %s", encodeValue(string(c.Kind))),
		fmt.Sprintf("path: %s", encodeValue(c.RelPath)),
		fmt.Sprintf("line: %d", c.Line),
		fmt.Sprintf("language: %s", encodeValue(c.Language)),
		fmt.Sprintf("module: %s", encodeValue(c.Module)),
		fmt.Sprintf("access: %s", encodeValue(access)),
		fmt.Sprintf("score: %s", formatScore(c.Score)),
	}
	rows := make([][]string, len(methods))
	for i, m := range methods {
		rows[i] = []string{m}
	}
	parts = append(parts, formatTabular("methods", []string{"name"}, rows))
	return strings.Join(parts, "\n")
}

func formatScore(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatTabular(name string, columns []string, rows [][]string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%d]{%s}:", name, len(rows), strings.Join(columns, ","))
	for _, row := range rows {
		encoded := make([]string, len(row))
		for i, cell := range row {
			encoded[i] = encodeValue(cell)
		}
		fmt.Fprintf(&b, "\n  %s", strings.Join(encoded, ","))
	}
	return b.String()
}

func encodeValue(value string) string {
	if value == "" {
		return `""`
	}

	if value != strings.TrimSpace(value) {
		return quote(value)
	}

	if strings.ContainsAny(value, "\n\r\t") {
		return quote(value)
	}

	if _, ok := keywords[strings.ToLower(value)]; ok {
		return quote(value)
	}

	if looksNumeric.MatchString(value) {
		return value
	}

	if needsQuoting.MatchString(value) {
		return quote(value)
	}

	if strings.HasPrefix(value, "-") {
		return quote(value)
	}

	return value
}

func quote(value string) string {
	escaped := strings.ReplaceAll(value, `\`, `\\`)
	escaped = strings.ReplaceAll(escaped, `"`, `\"`)
	escaped = strings.ReplaceAll(escaped, "\n", `\n`)
	escaped = strings.ReplaceAll(escaped, "\r", `\r`)
	escaped = strings.ReplaceAll(escaped, "\t", `\t`)
	return `"` + escaped + `"`
}
