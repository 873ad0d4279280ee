// Package metrics exposes per-engine Prometheus instruments.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/phobologic/adaptive/internal/errs"
)

const namespace = "adaptive"

// Metrics owns a private registry so several engines in one process do not
// collide on registration.
type Metrics struct {
	reg *prometheus.Registry

	// calls counts discovery operations.
	//
	// Labels:
	//   - op: "discover", "explain", "find"
	//   - outcome: "ok" or a lowercased error code such as "not_found"
	calls *prometheus.CounterVec

	// duration measures whole-operation latency.
	duration *prometheus.HistogramVec

	// files counts files by scan status.
	//
	// Labels:
	//   - status: "filtered", "cache_hit", "parsed", "parse_error"
	files *prometheus.CounterVec

	candidates prometheus.Histogram
}

// New creates the instruments. cacheEntries, when non-nil, backs a gauge
// read at scrape time.
func New(cacheEntries func() float64) *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	m := &Metrics{
		reg: reg,
		calls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "calls_total",
			Help:      "Total discovery operations by outcome.",
		}, []string{"op", "outcome"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "call_duration_seconds",
			Help:      "Duration of discovery operations in seconds.",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"op"}),
		files: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "files_total",
			Help:      "Files visited during scans by status.",
		}, []string{"status"}),
		candidates: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "scan",
			Name:      "candidates",
			Help:      "Candidates produced per scan.",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}),
	}
	if cacheEntries != nil {
		f.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "cache",
			Name:      "entries",
			Help:      "Files currently held in the extraction cache.",
		}, cacheEntries)
	}
	return m
}

// Registry returns the registry backing these metrics.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// ObserveCall records one finished operation.
func (m *Metrics) ObserveCall(op string, d time.Duration, err error) {
	m.calls.WithLabelValues(op, Outcome(err)).Inc()
	m.duration.WithLabelValues(op).Observe(d.Seconds())
}

// ObserveScan records per-file scan counts.
func (m *Metrics) ObserveScan(filtered, hits, parsed, parseErrors, candidates int) {
	m.files.WithLabelValues("filtered").Add(float64(filtered))
	m.files.WithLabelValues("cache_hit").Add(float64(hits))
	m.files.WithLabelValues("parsed").Add(float64(parsed))
	m.files.WithLabelValues("parse_error").Add(float64(parseErrors))
	m.candidates.Observe(float64(candidates))
}

// WriteFile dumps the current values in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	return prometheus.WriteToTextfile(path, m.reg)
}

// Outcome maps err to a low-cardinality label value.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if code := errs.CodeOf(err); code != "" {
		return strings.ToLower(string(code))
	}
	return "error"
}
