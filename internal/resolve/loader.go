// Package resolve turns the top-ranked candidate into a loaded, validated
// target.
package resolve

import (
	"context"
	"errors"
	"fmt"

	"github.com/phobologic/adaptive/internal/model"
)

// ErrNotLoadable is returned by a Loader that does not handle a candidate.
// ChainLoader moves on to the next loader when it sees it.
var ErrNotLoadable = errors.New("candidate not loadable")

// Loaded is a candidate materialized by a Loader.
type Loaded struct {
	Kind    model.Kind
	Name    string
	Methods []string
	// Access is the path used to reach the value from its module, such as
	// "default", "module.exports" or the symbol name.
	Access string
	// Value is loader specific: a reflect.Type or func value for the
	// registry, a types.Object for go/types, a model.Candidate for source.
	Value any
	// Source names the loader that produced the value.
	Source string
}

// HasMethod reports whether name is a callable member, ignoring case.
func (l *Loaded) HasMethod(name string) bool {
	c := model.Candidate{Methods: l.Methods}
	return c.HasMethod(name)
}

// Loader materializes a candidate without executing the file it came from.
type Loader interface {
	Load(ctx context.Context, c model.Candidate) (*Loaded, error)
}

// LoaderFunc adapts a function to Loader.
type LoaderFunc func(ctx context.Context, c model.Candidate) (*Loaded, error)

// Load implements Loader.
func (f LoaderFunc) Load(ctx context.Context, c model.Candidate) (*Loaded, error) {
	return f(ctx, c)
}

// ChainLoader tries each loader in order. The first loader that does not
// return ErrNotLoadable decides the outcome.
type ChainLoader []Loader

// Load implements Loader.
func (ch ChainLoader) Load(ctx context.Context, c model.Candidate) (*Loaded, error) {
	for _, l := range ch {
		loaded, err := l.Load(ctx, c)
		if errors.Is(err, ErrNotLoadable) {
			continue
		}
		return loaded, err
	}
	return nil, fmt.Errorf("%w: no loader for %s %s", ErrNotLoadable, c.Language, c.Name)
}

// access derives the access path from the candidate's export.
func access(c model.Candidate) string {
	switch c.Export.Kind {
	case model.ExportDefault:
		return "default"
	case model.ExportModule:
		if c.Language == "javascript" || c.Language == "typescript" || c.Language == "tsx" {
			return "module.exports"
		}
		return c.Name
	case model.ExportNamed:
		if c.Export.Name != "" {
			return c.Export.Name
		}
	}
	return c.Name
}
