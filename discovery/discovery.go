package discovery

import (
	"context"
	"sync"

	"github.com/phobologic/adaptive/internal/resolve"
)

var (
	enginesMu sync.Mutex
	engines   = map[string]*Engine{}

	defaultRegistry = resolve.NewRegistry()
)

// ForRoot returns the process-wide engine for root, creating it on first
// use. opts only apply when the engine is created.
func ForRoot(root string, opts ...Option) (*Engine, error) {
	key, err := normalizeRoot(root)
	if err != nil {
		return nil, err
	}

	enginesMu.Lock()
	defer enginesMu.Unlock()
	if e, ok := engines[key]; ok {
		return e, nil
	}
	e, err := New(key, opts...)
	if err != nil {
		return nil, err
	}
	engines[key] = e
	return e, nil
}

// Register makes live Go values loadable by the default engines. Register
// types as zero values or typed nil pointers and functions by value:
//
//	discovery.Register(calc.Calculator{}, (*calc.Store)(nil), calc.New)
func Register(values ...any) error {
	return defaultRegistry.Register(values...)
}

// Discover resolves raw against the engine for root.
func Discover(ctx context.Context, raw Signature, root string) (*Target, error) {
	e, err := ForRoot(root)
	if err != nil {
		return nil, err
	}
	return e.Discover(ctx, raw)
}

// Find returns the winning candidate for raw under root without loading it.
func Find(ctx context.Context, raw Signature, root string) (*ScoredCandidate, error) {
	e, err := ForRoot(root)
	if err != nil {
		return nil, err
	}
	return e.Find(ctx, raw)
}

// Explain lists up to limit candidates for raw under root with their score
// breakdowns.
func Explain(ctx context.Context, raw Signature, root string, limit int) ([]ScoredCandidate, error) {
	e, err := ForRoot(root)
	if err != nil {
		return nil, err
	}
	return e.Explain(ctx, raw, limit)
}

// ClearCache empties the cache of the engine for root, in memory and on disk.
func ClearCache(root string) error {
	e, err := ForRoot(root)
	if err != nil {
		return err
	}
	return e.ClearCache()
}
