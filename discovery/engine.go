// Package discovery locates production code by structural description.
//
// A test asks for "a class named Calculator with add and subtract" instead
// of importing a path. The engine scans the project without executing it,
// scores every candidate, and loads and validates the winner:
//
//	target, err := discovery.Discover(ctx, discovery.Signature{
//		Name:    "Calculator",
//		Type:    "class",
//		Methods: []string{"add", "subtract"},
//	}, ".")
//
// One Engine exists per project root for the lifetime of the process; its
// extraction cache survives between calls and is persisted next to the
// project when enabled.
package discovery

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/phobologic/adaptive/internal/cache"
	"github.com/phobologic/adaptive/internal/collect"
	"github.com/phobologic/adaptive/internal/config"
	"github.com/phobologic/adaptive/internal/errs"
	"github.com/phobologic/adaptive/internal/metrics"
	"github.com/phobologic/adaptive/internal/model"
	"github.com/phobologic/adaptive/internal/ranking"
	"github.com/phobologic/adaptive/internal/resolve"
	"github.com/phobologic/adaptive/internal/score"
	"github.com/phobologic/adaptive/internal/signature"
)

const tracerName = "adaptive.discovery"

const defaultRejected = 3

// Public aliases for the data model.
type (
	Signature       = model.RawSignature
	Candidate       = model.Candidate
	ScoredCandidate = model.ScoredCandidate
	Breakdown       = model.Breakdown
	Target          = resolve.Target
	Loaded          = resolve.Loaded
	CacheStats      = cache.Stats
)

// Engine runs discovery for one project root.
type Engine struct {
	root      string
	cfg       *config.Config
	store     cache.Store
	log       *slog.Logger
	tracer    trace.Tracer
	metrics   *metrics.Metrics
	collector *collect.Collector
	resolver  *resolve.Resolver
	now       func() time.Time
	rejected  int
}

// New builds an engine that is not shared through ForRoot. Use it to inject
// stores, loaders or config in tests.
func New(root string, opts ...Option) (*Engine, error) {
	root, err := normalizeRoot(root)
	if err != nil {
		return nil, err
	}

	o := options{rejected: defaultRejected}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	if o.now == nil {
		o.now = time.Now
	}
	if o.tracerProvider == nil {
		o.tracerProvider = otel.GetTracerProvider()
	}

	cfg := o.config
	if cfg == nil {
		cfg, err = config.NewLoader(root, o.overrides).Load()
		if err != nil {
			return nil, err
		}
	}

	store := o.store
	if store == nil {
		if cfg.CacheEnabled {
			store = cache.NewFileStore(cfg.CachePath(root), o.logger)
		} else {
			store = &cache.Nop{}
		}
	}

	e := &Engine{
		root:     root,
		cfg:      cfg,
		store:    store,
		log:      o.logger.With("root", root),
		tracer:   o.tracerProvider.Tracer(tracerName),
		now:      o.now,
		rejected: o.rejected,
	}
	e.metrics = metrics.New(func() float64 { return float64(e.store.Stats().Entries) })
	e.collector = collect.New(root, cfg, store, e.log,
		collect.WithTracer(o.tracerProvider.Tracer(tracerName)))

	loader := o.loader
	if loader == nil {
		reg := o.registry
		if reg == nil {
			reg = defaultRegistry
		}
		loader = resolve.ChainLoader{
			reg,
			resolve.NewGoTypesLoader(),
			&resolve.SourceLoader{Parser: e.collector.Dispatcher()},
		}
	}
	e.resolver = resolve.New(loader, e.log)

	e.log.Debug("engine created",
		"config_file", config.ConfigFileUsed(root),
		"cache", cfg.CacheEnabled,
		"extensions", e.collector.Dispatcher().Extensions())
	return e, nil
}

// Root returns the normalized project root.
func (e *Engine) Root() string { return e.root }

// Config returns the resolved configuration. Treat it as read-only.
func (e *Engine) Config() *config.Config { return e.cfg }

// Discover finds, loads and validates the best match for raw.
func (e *Engine) Discover(ctx context.Context, raw Signature) (target *Target, err error) {
	ctx, done := e.begin(ctx, "discover")
	defer func() { done(err) }()

	sig, err := e.normalize(ctx, raw)
	if err != nil {
		return nil, err
	}
	ranked, scored, err := e.rank(ctx, sig)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, e.notFound(sig, scored)
	}
	return e.resolver.Resolve(ctx, ranked, sig)
}

// Find returns the winning candidate without loading it.
func (e *Engine) Find(ctx context.Context, raw Signature) (winner *ScoredCandidate, err error) {
	ctx, done := e.begin(ctx, "find")
	defer func() { done(err) }()

	sig, err := e.normalize(ctx, raw)
	if err != nil {
		return nil, err
	}
	ranked, scored, err := e.rank(ctx, sig)
	if err != nil {
		return nil, err
	}
	if len(ranked) == 0 {
		return nil, e.notFound(sig, scored)
	}
	w := ranked[0]
	return &w, nil
}

// Explain returns up to limit name-matching candidates, best first, each
// with its full score breakdown. limit <= 0 returns all of them.
func (e *Engine) Explain(ctx context.Context, raw Signature, limit int) (list []ScoredCandidate, err error) {
	ctx, done := e.begin(ctx, "explain")
	defer func() { done(err) }()

	sig, err := e.normalize(ctx, raw)
	if err != nil {
		return nil, err
	}
	scored, err := e.score(ctx, sig)
	if err != nil {
		return nil, err
	}
	var matching []ScoredCandidate
	for _, s := range ranking.All(scored) {
		if s.Breakdown[score.KeyName] > 0 {
			matching = append(matching, s)
		}
	}
	return ranking.Top(matching, limit), nil
}

// ClearCache empties the in-memory cache and deletes the snapshot.
func (e *Engine) ClearCache() error {
	e.log.Debug("clearing cache")
	return e.store.Clear()
}

// Stats returns cache counters.
func (e *Engine) Stats() CacheStats { return e.store.Stats() }

// Gatherer exposes the engine's Prometheus metrics.
func (e *Engine) Gatherer() prometheus.Gatherer { return e.metrics.Registry() }

// WriteMetrics dumps current metrics to path in the text format.
func (e *Engine) WriteMetrics(path string) error { return e.metrics.WriteFile(path) }

// begin opens the span for op and applies the configured timeout to the
// whole call, scan and load alike. The returned func records the outcome,
// ends the span and releases the deadline.
func (e *Engine) begin(ctx context.Context, op string) (context.Context, func(error)) {
	start := time.Now()
	cancel := context.CancelFunc(func() {})
	if e.cfg.Timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, e.cfg.Timeout)
	}
	id := uuid.NewString()
	ctx, span := e.tracer.Start(ctx, "discovery."+op, trace.WithAttributes(
		attribute.String("call_id", id),
		attribute.String("root", e.root),
	))
	log := e.log.With("call_id", id, "op", op)

	return ctx, func(err error) {
		elapsed := time.Since(start)
		e.metrics.ObserveCall(op, elapsed, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			log.Debug("discovery failed", "error", err, "code", errs.CodeOf(err), "elapsed", elapsed)
		} else {
			log.Debug("discovery done", "elapsed", elapsed)
		}
		span.End()
		cancel()
	}
}

func (e *Engine) normalize(ctx context.Context, raw Signature) (*model.Signature, error) {
	sig, err := signature.Normalize(raw)
	if err != nil {
		return nil, err
	}
	trace.SpanFromContext(ctx).SetAttributes(attribute.String("signature", sig.String()))
	return sig, nil
}

func (e *Engine) score(ctx context.Context, sig *model.Signature) ([]ScoredCandidate, error) {
	res, err := e.collector.Collect(ctx, sig)
	if err != nil {
		return nil, err
	}
	e.metrics.ObserveScan(res.Filtered, res.CacheHits, res.Parsed, res.ParseErrors, len(res.Candidates))
	return score.All(res.Candidates, sig, e.cfg.Scoring, e.now()), nil
}

func (e *Engine) rank(ctx context.Context, sig *model.Signature) (ranked, scored []ScoredCandidate, err error) {
	scored, err = e.score(ctx, sig)
	if err != nil {
		return nil, nil, err
	}
	return ranking.Rank(scored, e.cfg.MinCandidateScore), scored, nil
}

func (e *Engine) notFound(sig *model.Signature, scored []ScoredCandidate) error {
	return &errs.NotFoundError{
		Signature: sig.String(),
		MinScore:  e.cfg.MinCandidateScore,
		Rejected:  ranking.Rejected(scored, e.cfg.MinCandidateScore, e.rejected),
	}
}

// normalizeRoot makes root absolute, clean and symlink-free so every
// spelling of the same directory maps to one engine.
func normalizeRoot(root string) (string, error) {
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return "", fmt.Errorf("resolving root: %w", err)
	}
	abs = filepath.Clean(abs)
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s: not a directory", abs)
	}
	return abs, nil
}
