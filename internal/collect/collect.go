// Package collect turns a project tree into the candidate list for one
// signature: enumerate, pre-filter, consult the cache, parse misses, and
// fold directory-scoped declarations together.
package collect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/phobologic/adaptive/internal/cache"
	"github.com/phobologic/adaptive/internal/config"
	"github.com/phobologic/adaptive/internal/discover"
	"github.com/phobologic/adaptive/internal/errs"
	"github.com/phobologic/adaptive/internal/model"
	"github.com/phobologic/adaptive/internal/parse"
)

const tracerName = "adaptive.collect"

// Result is the outcome of one scan.
type Result struct {
	Candidates []model.Candidate
	// Files is the number of files enumerated.
	Files int
	// Filtered counts files dropped by the name pre-filter, blocked tokens, or size.
	Filtered int
	// CacheHits and Parsed partition the files that produced candidates.
	CacheHits   int
	Parsed      int
	ParseErrors int
	Duration    time.Duration
}

// Collector scans one root.
type Collector struct {
	root   string
	cfg    *config.Config
	parser *parse.Dispatcher
	store  cache.Store
	log    *slog.Logger
	tracer trace.Tracer
}

// Option customizes a Collector.
type Option func(*Collector)

// WithTracer overrides the tracer obtained from the global provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Collector) { c.tracer = t }
}

// WithDispatcher replaces the parser dispatcher built from cfg.
func WithDispatcher(d *parse.Dispatcher) Option {
	return func(c *Collector) { c.parser = d }
}

// New returns a collector for root. store must not be nil.
func New(root string, cfg *config.Config, store cache.Store, log *slog.Logger, opts ...Option) *Collector {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	c := &Collector{
		root:  root,
		cfg:   cfg,
		store: store,
		log:   log,
	}
	for _, o := range opts {
		o(c)
	}
	if c.parser == nil {
		c.parser = parse.New(cfg)
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// Dispatcher returns the parser dispatcher in use.
func (c *Collector) Dispatcher() *parse.Dispatcher { return c.parser }

type fileResult struct {
	cands  []model.Candidate
	status int
}

const (
	statusFiltered = iota + 1
	statusHit
	statusParsed
	statusParseError
)

// Collect returns every candidate extracted under the root, in scan order.
// sig drives the literal-name pre-filter and may be nil.
func (c *Collector) Collect(ctx context.Context, sig *model.Signature) (*Result, error) {
	start := time.Now()
	ctx, span := c.tracer.Start(ctx, "collect.Collect",
		trace.WithAttributes(attribute.String("root", c.root)))
	defer span.End()

	files, err := discover.Files(ctx, c.root, discover.Options{
		Extensions:       c.parser.Extensions(),
		MaxDepth:         c.cfg.MaxDepth,
		SkipDirs:         c.cfg.SkipDirectories,
		SkipFiles:        c.cfg.SkipFiles,
		Ignore:           c.cfg.Ignore,
		RespectGitignore: c.cfg.RespectGitignore,
		Exclude:          []string{c.cfg.CachePath(c.root)},
	})
	if err != nil {
		return nil, c.fail(span, start, fmt.Errorf("enumerating %s: %w", c.root, err))
	}
	span.SetAttributes(attribute.Int("files", len(files)))

	needle := ""
	if sig != nil && !sig.NameMatcher.IsPattern() && sig.NameMatcher.Literal != "" {
		needle = strings.ToLower(sig.NameMatcher.Literal)
	}

	results := make([]fileResult, len(files))
	var parseErrors atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(c.cfg.Concurrency, 1))
	for i := range files {
		g.Go(func() error {
			r, err := c.file(gctx, files[i], needle)
			if err != nil {
				return err
			}
			if r.status == statusParseError {
				parseErrors.Add(1)
			}
			results[i] = r
			return nil
		})
	}
	waitErr := g.Wait()

	if err := c.store.Flush(); err != nil {
		c.log.Warn("cache flush failed", "error", err)
	}

	if waitErr != nil {
		return nil, c.fail(span, start, waitErr)
	}

	res := &Result{Files: len(files), ParseErrors: int(parseErrors.Load())}
	var all []model.Candidate
	for _, r := range results {
		switch r.status {
		case statusFiltered:
			res.Filtered++
		case statusHit:
			res.CacheHits++
		case statusParsed:
			res.Parsed++
		}
		all = append(all, r.cands...)
	}

	all = MergeDirectoryScoped(all)
	for i := range all {
		all[i].Order = i
	}
	res.Candidates = all
	res.Duration = time.Since(start)

	span.SetAttributes(
		attribute.Int("candidates", len(all)),
		attribute.Int("cache_hits", res.CacheHits),
		attribute.Int("parsed", res.Parsed),
		attribute.Int("parse_errors", res.ParseErrors),
	)
	c.log.Debug("scan complete",
		"root", c.root,
		"files", res.Files,
		"filtered", res.Filtered,
		"cache_hits", res.CacheHits,
		"parsed", res.Parsed,
		"parse_errors", res.ParseErrors,
		"candidates", len(all),
		"elapsed", res.Duration,
	)
	return res, nil
}

func (c *Collector) fail(span trace.Span, start time.Time, err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		err = &errs.TimeoutError{Elapsed: time.Since(start), Err: err}
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

// file handles one entry. Only context errors are returned; everything else
// is logged and reflected in the status.
func (c *Collector) file(ctx context.Context, f discover.FileEntry, needle string) (fileResult, error) {
	if err := ctx.Err(); err != nil {
		return fileResult{}, err
	}

	if c.cfg.MaxFileSize > 0 && f.Size > c.cfg.MaxFileSize {
		c.log.Warn("skipping large file", "path", f.RelPath, "size", f.Size, "max", c.cfg.MaxFileSize)
		return fileResult{status: statusFiltered}, nil
	}

	content, err := os.ReadFile(f.Path)
	if err != nil {
		c.log.Warn("unreadable file", "path", f.RelPath, "error", err)
		return fileResult{status: statusFiltered}, nil
	}

	for _, tok := range c.cfg.Security.BlockedTokens {
		if tok != "" && bytes.Contains(content, []byte(tok)) {
			c.log.Debug("blocked token, excluding file", "path", f.RelPath, "token", tok)
			return fileResult{status: statusFiltered}, nil
		}
	}

	if needle != "" && !bytes.Contains(bytes.ToLower(content), []byte(needle)) {
		return fileResult{status: statusFiltered}, nil
	}

	fp := cache.Fingerprint(content)
	unlock := c.store.Lock(f.Path)
	defer unlock()

	if cands, ok := c.store.Get(f.Path, fp); ok {
		for i := range cands {
			cands[i].ModTime = f.ModTime
		}
		return fileResult{cands: cands, status: statusHit}, nil
	}

	cands, err := c.parser.File(ctx, f.Path, content)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fileResult{}, ctxErr
		}
		c.log.Warn("parse failed, skipping file", "path", f.RelPath, "error", err)
		return fileResult{status: statusParseError}, nil
	}

	defaultModule := dottedModule(f.RelPath)
	for i := range cands {
		cands[i].Path = f.Path
		cands[i].RelPath = f.RelPath
		cands[i].Fingerprint = fp
		cands[i].ModTime = f.ModTime
		if cands[i].Language == "" {
			cands[i].Language = f.Language
		}
		if cands[i].Module == "" && cands[i].Language != "go" {
			cands[i].Module = defaultModule
		}
	}
	c.store.Put(f.Path, fp, cands)
	return fileResult{cands: cands, status: statusParsed}, nil
}

// dottedModule derives a module path from a relative file path:
// "src/utils/math.py" becomes "src.utils.math".
func dottedModule(rel string) string {
	rel = strings.TrimSuffix(rel, path.Ext(rel))
	return strings.ReplaceAll(rel, "/", ".")
}

// MergeDirectoryScoped folds Go receiver methods into the type of the same
// name in the same directory and merges per-file package modules into one
// candidate per directory. Other languages pass through untouched.
func MergeDirectoryScoped(in []model.Candidate) []model.Candidate {
	type key struct{ dir, name string }
	types := map[key]int{}
	modules := map[string]int{}
	out := make([]model.Candidate, 0, len(in))
	var methods []model.Candidate

	for _, c := range in {
		if c.Language != "go" {
			out = append(out, c)
			continue
		}
		dir := filepath.Dir(c.Path)
		switch c.Kind {
		case model.Method:
			methods = append(methods, c)
			continue
		case model.Module:
			if idx, ok := modules[dir]; ok {
				out[idx].Methods = mergeNames(out[idx].Methods, c.Methods)
				continue
			}
			modules[dir] = len(out)
		case model.Class, model.Interface, model.Record, model.Enum:
			types[key{dir, c.Name}] = len(out)
		}
		out = append(out, c)
	}

	for _, m := range methods {
		idx, ok := types[key{filepath.Dir(m.Path), m.Receiver}]
		if !ok {
			continue
		}
		out[idx].Methods = mergeNames(out[idx].Methods, []string{m.Name})
	}
	return out
}

func mergeNames(dst, src []string) []string {
	dst = slices.Clip(dst)
	for _, s := range src {
		if !slices.Contains(dst, s) {
			dst = append(dst, s)
		}
	}
	return dst
}
