package discovery

import (
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/phobologic/adaptive/internal/cache"
	"github.com/phobologic/adaptive/internal/config"
	"github.com/phobologic/adaptive/internal/resolve"
)

type options struct {
	logger         *slog.Logger
	store          cache.Store
	loader         resolve.Loader
	registry       *resolve.Registry
	overrides      map[string]any
	config         *config.Config
	tracerProvider trace.TracerProvider
	now            func() time.Time
	rejected       int
}

// Option configures an Engine at construction.
type Option func(*options)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// WithStore injects a cache store, replacing the one chosen from config.
func WithStore(s cache.Store) Option {
	return func(o *options) { o.store = s }
}

// WithLoader replaces the default loader chain.
func WithLoader(l resolve.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithRegistry uses r instead of the process-wide registry fed by Register.
func WithRegistry(r *resolve.Registry) Option {
	return func(o *options) { o.registry = r }
}

// WithConfig applies overrides keyed by dotted config names
// ("min_candidate_score", "scoring.name_exact"). They win over the config
// file and environment.
func WithConfig(overrides map[string]any) Option {
	return func(o *options) {
		if o.overrides == nil {
			o.overrides = map[string]any{}
		}
		for k, v := range overrides {
			o.overrides[k] = v
		}
	}
}

// WithResolvedConfig bypasses file and environment loading entirely.
func WithResolvedConfig(cfg *config.Config) Option {
	return func(o *options) { o.config = cfg }
}

// WithTracerProvider sets the OpenTelemetry provider. The default is the
// global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.tracerProvider = tp }
}

// WithClock overrides time.Now for recency scoring.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithRejectedLimit sets how many near misses a NotFoundError carries.
func WithRejectedLimit(n int) Option {
	return func(o *options) { o.rejected = n }
}
