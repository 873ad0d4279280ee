// Package ranking orders scored candidates and picks the winner.
package ranking

import (
	"cmp"
	"slices"

	"github.com/phobologic/adaptive/internal/model"
)

// byScore sorts by score descending, then scan order ascending.
func byScore(a, b model.ScoredCandidate) int {
	if c := cmp.Compare(b.Score, a.Score); c != 0 {
		return c
	}
	return cmp.Compare(a.Order, b.Order)
}

// Rank returns the eligible candidates scoring at least min, best first.
// Ties keep the first candidate in scan order. The input is not modified.
func Rank(scored []model.ScoredCandidate, min float64) []model.ScoredCandidate {
	var out []model.ScoredCandidate
	for i := range scored {
		if scored[i].Eligible && scored[i].Score >= min {
			out = append(out, scored[i])
		}
	}
	slices.SortStableFunc(out, byScore)
	return out
}

// Rejected returns up to n of the best candidates that Rank(scored, min)
// would drop. Candidates failing the name filter are left out, since they
// say nothing useful about a near miss.
func Rejected(scored []model.ScoredCandidate, min float64, n int) []model.ScoredCandidate {
	if n <= 0 {
		return nil
	}
	var out []model.ScoredCandidate
	for i := range scored {
		s := &scored[i]
		if s.Score >= min && s.Eligible {
			continue
		}
		if s.Breakdown["name"] <= 0 {
			continue
		}
		out = append(out, *s)
	}
	slices.SortStableFunc(out, byScore)
	return Top(out, n)
}

// Top returns the first n entries of ranked, or all of them when n <= 0 or
// n >= len(ranked).
func Top(ranked []model.ScoredCandidate, n int) []model.ScoredCandidate {
	if n <= 0 || n >= len(ranked) {
		return ranked
	}
	return ranked[:n]
}

// All returns every scored candidate, best first, regardless of eligibility.
// Used for diagnostic listings.
func All(scored []model.ScoredCandidate) []model.ScoredCandidate {
	out := slices.Clone(scored)
	slices.SortStableFunc(out, byScore)
	return out
}
