// Package score computes the additive, explainable relevance score of a
// candidate against a signature.
package score

import (
	"math"
	"path"
	"strings"
	"time"

	"github.com/phobologic/adaptive/internal/model"
)

// Breakdown keys, one per heuristic.
const (
	KeyName        = "name"
	KeyType        = "type"
	KeyPath        = "path"
	KeyMethods     = "methods"
	KeyExports     = "exports"
	KeyModule      = "module"
	KeyAnnotations = "annotations"
	KeyExtends     = "extends"
	KeyImplements  = "implements"
	KeyFileName    = "file_name"
	KeyRecency     = "recency"
)

// Score rates c against sig. It is pure: the same inputs always produce the
// same breakdown. A candidate whose name does not match is returned with
// Eligible=false and is never a winner regardless of its other components.
func Score(c model.Candidate, sig *model.Signature, w Weights, now time.Time) model.ScoredCandidate {
	b := model.Breakdown{}

	nameScore := scoreName(c.Name, sig.NameMatcher, w)
	b[KeyName] = nameScore

	if v, ok := scoreType(c.Kind, sig.Type, w); ok {
		b[KeyType] = v
	}
	if v := scorePath(c.RelPath, w); v != 0 {
		b[KeyPath] = v
	}
	if len(sig.Methods) > 0 {
		b[KeyMethods] = scoreMethods(&c, sig.Methods, w)
	}
	if sig.Exports != "" {
		b[KeyExports] = scoreExports(c, sig.Exports, w)
	}
	if sig.Module != "" {
		b[KeyModule] = scoreModule(c.Module, sig.Module, w)
	}
	if len(sig.Annotations) > 0 {
		b[KeyAnnotations] = scoreAnnotations(c.Annotations, sig.Annotations, w)
	}
	if sig.Extends != "" {
		b[KeyExtends] = scoreExtends(c.Extends, sig.Extends, w)
	}
	if len(sig.Implements) > 0 {
		b[KeyImplements] = scoreImplements(c, sig.Implements, w)
	}
	if stem := fileStem(c.RelPath); stem != "" && strings.EqualFold(stem, c.Name) && w.FileName != 0 {
		b[KeyFileName] = w.FileName
	}
	if v := recency(c.ModTime, now, recencyLimit(sig, w), w.RecencyHalfLifeDays); v > 0 {
		b[KeyRecency] = v
	}

	return model.ScoredCandidate{
		Candidate: c,
		Score:     b.Total(),
		Breakdown: b,
		Eligible:  nameScore > 0 && c.Kind != model.Method,
	}
}

// All scores every candidate, preserving input order.
func All(cands []model.Candidate, sig *model.Signature, w Weights, now time.Time) []model.ScoredCandidate {
	out := make([]model.ScoredCandidate, len(cands))
	for i := range cands {
		out[i] = Score(cands[i], sig, w, now)
	}
	return out
}

func scoreName(name string, m model.NameMatcher, w Weights) float64 {
	switch {
	case m.IsZero():
		return w.NameUnnamed
	case m.IsPattern():
		if m.Pattern.MatchString(name) {
			return w.NamePattern
		}
		return 0
	case strings.EqualFold(name, m.Literal):
		return w.NameExact
	case strings.Contains(strings.ToLower(name), strings.ToLower(m.Literal)):
		return w.NameSubstring
	default:
		return 0
	}
}

func scoreType(kind, want model.Kind, w Weights) (float64, bool) {
	if want == model.Any || want == "" {
		return 0, false
	}
	switch {
	case kind == want:
		return w.TypeExact, true
	case want == model.Class && (kind == model.Record || kind == model.Enum):
		return w.TypeSubtype, true
	default:
		return w.TypeMismatch, true
	}
}

// scorePath applies bonuses and penalties for directory segments. Each
// distinct segment counts once; bonuses are capped.
func scorePath(rel string, w Weights) float64 {
	dir := path.Dir(strings.ReplaceAll(rel, "\\", "/"))
	if dir == "." || dir == "/" {
		return 0
	}
	seen := map[string]bool{}
	var bonus, penalty float64
	for _, seg := range strings.Split(dir, "/") {
		seg = strings.ToLower(seg)
		if seg == "" || seen[seg] {
			continue
		}
		seen[seg] = true
		bonus += w.PathBonuses[seg]
		penalty += w.PathPenalties[seg]
	}
	if bonus > w.PathBonusCap {
		bonus = w.PathBonusCap
	}
	return bonus + penalty
}

func scoreMethods(c *model.Candidate, want []string, w Weights) float64 {
	hits := 0
	for _, m := range want {
		if c.HasMethod(m) {
			hits++
		}
	}
	switch {
	case hits == len(want):
		return w.MethodsFull
	case hits == 0:
		return w.MethodsNone
	default:
		return w.MethodsPartial * float64(hits) / float64(len(want))
	}
}

func scoreExports(c model.Candidate, want string, w Weights) float64 {
	var ok bool
	switch strings.ToLower(want) {
	case "default":
		ok = c.Export.Kind == model.ExportDefault
	case "module", "*":
		ok = c.Export.Kind == model.ExportModule
	default:
		ok = c.Export.Kind != model.ExportNone &&
			(strings.EqualFold(c.Export.Name, want) || (c.Export.Name == "" && strings.EqualFold(c.Name, want)))
	}
	if ok {
		return w.ExportsMatch
	}
	return w.ExportsMismatch
}

var moduleSeparators = strings.NewReplacer("/", ".", "::", ".", "\\", ".")

func scoreModule(have, want string, w Weights) float64 {
	h := strings.ToLower(moduleSeparators.Replace(have))
	q := strings.ToLower(moduleSeparators.Replace(want))
	switch {
	case h == "":
		return w.ModuleMismatch
	case h == q:
		return w.ModuleExact
	case strings.HasSuffix(h, "."+q):
		return w.ModuleSuffix
	default:
		return w.ModuleMismatch
	}
}

func scoreAnnotations(have, want []string, w Weights) float64 {
	set := make(map[string]bool, len(have))
	for _, a := range have {
		set[NormalizeAnnotation(a)] = true
	}
	hits := 0
	for _, a := range want {
		if set[NormalizeAnnotation(a)] {
			hits++
		}
	}
	if hits == 0 {
		return w.AnnotationNone
	}
	return w.AnnotationHit * float64(hits)
}

func scoreExtends(have []string, want string, w Weights) float64 {
	target := NormalizeTypeName(want)
	for _, h := range have {
		if NormalizeTypeName(h) == target {
			return w.ExtendsHit
		}
	}
	return w.ExtendsMiss
}

// scoreImplements checks Implements and Extends together; Python and Ruby
// express interfaces as ordinary bases.
func scoreImplements(c model.Candidate, want []string, w Weights) float64 {
	set := map[string]bool{}
	for _, s := range c.Implements {
		set[NormalizeTypeName(s)] = true
	}
	for _, s := range c.Extends {
		set[NormalizeTypeName(s)] = true
	}
	hits := 0
	for _, s := range want {
		if set[NormalizeTypeName(s)] {
			hits++
		}
	}
	if hits == 0 {
		return w.ImplementsNone
	}
	return w.ImplementsHit * float64(hits)
}

// recencyLimit caps the recency bonus below half of the smallest structural
// step sig can produce: one method of a partial match, or the file-name
// bonus. Freshness then only orders candidates that tie on structure.
func recencyLimit(sig *model.Signature, w Weights) float64 {
	limit := w.RecencyMax
	if n := len(sig.Methods); n > 0 && w.MethodsPartial > 0 {
		limit = min(limit, w.MethodsPartial/float64(n)/2)
	}
	if w.FileName > 0 {
		limit = min(limit, w.FileName/2)
	}
	return limit
}

// recency decays by whole days so files touched on the same day tie.
func recency(mod, now time.Time, limit, halfLife float64) float64 {
	if mod.IsZero() || limit <= 0 || halfLife <= 0 {
		return 0
	}
	days := math.Floor(now.Sub(mod).Hours() / 24)
	if days < 0 {
		days = 0
	}
	return limit * math.Pow(0.5, days/halfLife)
}

// NormalizeAnnotation reduces "@org.x.Service(value)" to "service".
func NormalizeAnnotation(a string) string {
	a = strings.TrimPrefix(strings.TrimSpace(a), "@")
	if i := strings.IndexByte(a, '('); i >= 0 {
		a = a[:i]
	}
	if i := strings.LastIndexByte(a, '.'); i >= 0 {
		a = a[i+1:]
	}
	return strings.ToLower(a)
}

// NormalizeTypeName reduces "pkg.Base<T>" or "Mod::Base" to "base".
func NormalizeTypeName(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexAny(s, "<[("); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimLeft(s, "*&")
	s = moduleSeparators.Replace(s)
	if i := strings.LastIndexByte(s, '.'); i >= 0 {
		s = s[i+1:]
	}
	return strings.ToLower(s)
}

func fileStem(rel string) string {
	base := path.Base(strings.ReplaceAll(rel, "\\", "/"))
	if i := strings.IndexByte(base, '.'); i > 0 {
		return base[:i]
	}
	return base
}
