package resolve

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/phobologic/adaptive/internal/errs"
	"github.com/phobologic/adaptive/internal/model"
)

// Target is a resolved, validated discovery result.
type Target struct {
	Candidate model.ScoredCandidate
	Loaded    *Loaded
}

// Resolver loads and validates the winning candidate.
type Resolver struct {
	loader Loader
	log    *slog.Logger
}

// New returns a resolver using loader.
func New(loader Loader, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	return &Resolver{loader: loader, log: log}
}

// Resolve loads ranked[0] and checks it against sig. A failed load or a
// structural mismatch is a *errs.ValidationError, unless ctx expired during
// the load, which is a *errs.TimeoutError. The resolver never falls back to
// the next candidate.
func (r *Resolver) Resolve(ctx context.Context, ranked []model.ScoredCandidate, sig *model.Signature) (*Target, error) {
	if len(ranked) == 0 {
		return nil, &errs.NotFoundError{Signature: sig.String()}
	}
	winner := ranked[0]

	start := time.Now()
	loaded, err := r.loader.Load(ctx, winner.Candidate)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, &errs.TimeoutError{Elapsed: time.Since(start), Err: ctxErr}
		}
		return nil, &errs.ValidationError{
			Candidate: winner,
			Problems:  []string{"load failed"},
			Err:       err,
		}
	}

	if problems := Validate(loaded, sig); len(problems) > 0 {
		r.log.Debug("winner failed validation",
			"name", winner.Name, "path", winner.RelPath, "problems", problems)
		return nil, &errs.ValidationError{Candidate: winner, Problems: problems}
	}

	r.log.Debug("resolved", "name", winner.Name, "path", winner.RelPath,
		"score", winner.Score, "loader", loaded.Source)
	return &Target{Candidate: winner, Loaded: loaded}, nil
}

// Validate returns the structural problems of loaded against sig.
func Validate(loaded *Loaded, sig *model.Signature) []string {
	var problems []string
	if !kindSatisfies(loaded.Kind, sig.Type) {
		problems = append(problems, fmt.Sprintf("kind %s does not satisfy %s", loaded.Kind, sig.Type))
	}
	for _, m := range sig.Methods {
		if !loaded.HasMethod(m) {
			problems = append(problems, fmt.Sprintf("missing method %q", m))
		}
	}
	return problems
}

func kindSatisfies(got, want model.Kind) bool {
	switch {
	case want == model.Any || want == "" || got == want:
		return true
	case want == model.Class:
		return got == model.Record || got == model.Enum
	}
	return false
}
