// Package parse routes source files to language adapters and turns every
// adapter failure, including panics, into an errs.ParseError.
package parse

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/phobologic/adaptive/internal/config"
	"github.com/phobologic/adaptive/internal/errs"
	"github.com/phobologic/adaptive/internal/lang"
	"github.com/phobologic/adaptive/internal/model"
)

// Dispatcher maps file extensions to adapters.
type Dispatcher struct {
	adapters map[string]lang.Adapter
}

// New builds a dispatcher for the configured extensions. A configured bridge
// replaces the built-in adapter for its extension.
func New(cfg *config.Config) *Dispatcher {
	d := &Dispatcher{adapters: map[string]lang.Adapter{}}
	for _, ext := range cfg.Extensions {
		if name := lang.ForExtension(ext); name != "" {
			d.adapters[ext] = lang.Languages[name]
		}
	}
	for key := range cfg.Bridges {
		ext := "." + strings.ToLower(strings.TrimPrefix(key, "."))
		b, _ := cfg.BridgeFor(ext)
		d.adapters[ext] = lang.NewBridge(strings.TrimPrefix(ext, "."), b.Command, b.Timeout, b.MaxOutputBytes)
	}
	return d
}

// Register installs adapter for ext, replacing any existing one.
func (d *Dispatcher) Register(ext string, adapter lang.Adapter) {
	d.adapters[strings.ToLower(ext)] = adapter
}

// For returns the adapter for path's extension.
func (d *Dispatcher) For(path string) (lang.Adapter, bool) {
	a, ok := d.adapters[strings.ToLower(filepath.Ext(path))]
	return a, ok
}

// Extensions returns the handled extensions, sorted.
func (d *Dispatcher) Extensions() []string {
	out := make([]string, 0, len(d.adapters))
	for ext := range d.adapters {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// File extracts candidates from content. Any failure, including an adapter
// panic, is returned as *errs.ParseError so callers can skip the file.
func (d *Dispatcher) File(ctx context.Context, path string, content []byte) (cands []model.Candidate, err error) {
	adapter, ok := d.For(path)
	if !ok {
		return nil, &errs.ParseError{Path: path, Err: fmt.Errorf("no adapter for %q", filepath.Ext(path))}
	}

	defer func() {
		if r := recover(); r != nil {
			cands = nil
			err = &errs.ParseError{Path: path, Language: adapter.Lang(), Err: fmt.Errorf("adapter panic: %v", r)}
		}
	}()

	cands, err = adapter.Parse(ctx, content, path)
	if err != nil {
		return nil, &errs.ParseError{Path: path, Language: adapter.Lang(), Err: err}
	}
	return cands, nil
}
