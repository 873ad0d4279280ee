// adaptive locates production code by structural signature instead of by path.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/adaptive/discovery"
	"github.com/phobologic/adaptive/internal/logging"
	"github.com/phobologic/adaptive/internal/model"
	"github.com/phobologic/adaptive/internal/toon"
)

var version = "dev"

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// cli carries the persistent flags shared by every subcommand.
type cli struct {
	stdout, stderr io.Writer

	verbose     int
	quiet       bool
	sets        []string
	metricsFile string
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd(&cli{stdout: stdout, stderr: stderr})
	root.SetArgs(args)
	return root.Execute()
}

func newRootCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adaptive",
		Short: "Find production code by structure, not by path",
		Long: `adaptive scans a project without executing it, scores every class,
function and module against a structural signature, and reports the best match.

Tests that locate their targets this way survive file moves and renames.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.SetOut(c.stdout)
	cmd.SetErr(c.stderr)
	cmd.SetVersionTemplate("adaptive {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.CountVarP(&c.verbose, "verbose", "v", "increase log verbosity (repeatable)")
	pf.BoolVarP(&c.quiet, "quiet", "q", false, "suppress all logging")
	pf.StringArrayVar(&c.sets, "set", nil, "override a config key (key=value, repeatable)")
	pf.StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")

	cmd.AddCommand(
		newDiscoverCmd(c),
		newExplainCmd(c),
		newClearCacheCmd(c),
		newInitCmd(c),
		newVersionCmd(c),
	)
	return cmd
}

// engine opens a fresh engine for the root named in args.
func (c *cli) engine(args []string) (*discovery.Engine, error) {
	overrides, err := parseSets(c.sets)
	if err != nil {
		return nil, err
	}
	log := logging.New(c.stderr, logging.LevelFromVerbosity(c.verbose, c.quiet))
	return discovery.New(rootArg(args),
		discovery.WithLogger(log),
		discovery.WithConfig(overrides))
}

// finish writes the metrics file when one was requested.
func (c *cli) finish(e *discovery.Engine, err error) error {
	if c.metricsFile == "" {
		return err
	}
	if werr := e.WriteMetrics(c.metricsFile); werr != nil && err == nil {
		return fmt.Errorf("writing metrics: %w", werr)
	}
	return err
}

func rootArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return "."
}

// parseSets turns key=value pairs into loader overrides. Values stay
// strings; the config decoder converts them to the field types.
func parseSets(sets []string) (map[string]any, error) {
	out := make(map[string]any, len(sets))
	for _, s := range sets {
		key, val, ok := strings.Cut(s, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q: want key=value", s)
		}
		out[strings.ToLower(key)] = val
	}
	return out, nil
}

// sigFlags holds the signature as given on the command line.
type sigFlags struct {
	file          string
	name          string
	typ           string
	methods       []string
	exports       string
	module        string
	annotations   []string
	extends       string
	implements    []string
	regex         bool
	caseSensitive bool
}

func (s *sigFlags) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVarP(&s.file, "signature-file", "f", "", "read the signature from a YAML or JSON file")
	f.StringVarP(&s.name, "name", "n", "", "symbol name, or /pattern/flags")
	f.StringVarP(&s.typ, "type", "t", "", "kind: class, interface, function, record, enum, module")
	f.StringSliceVarP(&s.methods, "methods", "m", nil, "required method names")
	f.StringVar(&s.exports, "exports", "", "export name: default, or a named export")
	f.StringVar(&s.module, "module", "", "module or package constraint")
	f.StringSliceVar(&s.annotations, "annotations", nil, "required annotations or decorators")
	f.StringVar(&s.extends, "extends", "", "required base class")
	f.StringSliceVar(&s.implements, "implements", nil, "required interfaces")
	f.BoolVar(&s.regex, "regex", false, "treat --name as a regular expression")
	f.BoolVar(&s.caseSensitive, "case-sensitive", false, "match names case-sensitively")
}

// signature merges the signature file with explicitly set flags; flags win.
func (s *sigFlags) signature(cmd *cobra.Command) (discovery.Signature, error) {
	var raw discovery.Signature
	if s.file != "" {
		data, err := os.ReadFile(s.file)
		if err != nil {
			return raw, fmt.Errorf("reading signature file: %w", err)
		}
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return raw, fmt.Errorf("decoding signature file %s: %w", s.file, err)
		}
	}

	f := cmd.Flags()
	if f.Changed("name") {
		raw.Name = s.name
	}
	if f.Changed("type") {
		raw.Type = s.typ
	}
	if f.Changed("methods") {
		raw.Methods = s.methods
	}
	if f.Changed("exports") {
		raw.Exports = s.exports
	}
	if f.Changed("module") {
		raw.Module = s.module
	}
	if f.Changed("annotations") {
		raw.Annotations = s.annotations
	}
	if f.Changed("extends") {
		raw.Extends = s.extends
	}
	if f.Changed("implements") {
		raw.Implements = s.implements
	}
	if f.Changed("regex") {
		raw.Regex = s.regex
	}
	if f.Changed("case-sensitive") {
		raw.CaseSensitive = s.caseSensitive
	}
	return raw, nil
}

func newDiscoverCmd(c *cli) *cobra.Command {
	var (
		sig    sigFlags
		format string
		load   bool
	)
	cmd := &cobra.Command{
		Use:   "discover [root]",
		Short: "Find, load and validate the best match for a signature",
		Example: `  adaptive discover --name Calculator --type class --methods add,subtract
  adaptive discover -f signature.yaml ./service
  adaptive discover --name '/^Order.*Service$/' --load=false`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			raw, err := sig.signature(cmd)
			if err != nil {
				return err
			}
			e, err := c.engine(args)
			if err != nil {
				return err
			}

			var rep targetReport
			if load {
				t, derr := e.Discover(cmd.Context(), raw)
				if derr != nil {
					return c.finish(e, derr)
				}
				rep = newTargetReport(t.Candidate, t.Loaded)
			} else {
				w, ferr := e.Find(cmd.Context(), raw)
				if ferr != nil {
					return c.finish(e, ferr)
				}
				rep = newTargetReport(*w, nil)
			}
			return c.finish(e, writeReport(c.stdout, format, rep, func() string {
				return toon.EncodeTarget(rep.candidate, rep.Access, rep.Methods)
			}))
		},
	}
	sig.register(cmd)
	cmd.Flags().StringVar(&format, "format", "toon", "output format: toon, json or yaml")
	cmd.Flags().BoolVar(&load, "load", true, "load and validate the winner; false only ranks")
	return cmd
}

func newExplainCmd(c *cli) *cobra.Command {
	var (
		sig    sigFlags
		format string
		limit  int
	)
	cmd := &cobra.Command{
		Use:   "explain [root]",
		Short: "List scored candidates with their per-heuristic breakdown",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkFormat(format); err != nil {
				return err
			}
			raw, err := sig.signature(cmd)
			if err != nil {
				return err
			}
			e, err := c.engine(args)
			if err != nil {
				return err
			}
			list, err := e.Explain(cmd.Context(), raw, limit)
			if err != nil {
				return c.finish(e, err)
			}

			minScore := e.Config().MinCandidateScore
			rows := make([]candidateReport, len(list))
			for i := range list {
				rows[i] = newCandidateReport(i+1, list[i], minScore)
			}
			return c.finish(e, writeReport(c.stdout, format, rows, func() string {
				return toon.EncodeExplain(toon.Explain{
					Root:       e.Root(),
					Signature:  describe(raw),
					MinScore:   minScore,
					Candidates: list,
				})
			}))
		},
	}
	sig.register(cmd)
	cmd.Flags().StringVar(&format, "format", "toon", "output format: toon, json or yaml")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum candidates to list (0 for all)")
	return cmd
}

func newClearCacheCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "clear-cache [root]",
		Short: "Drop the extraction cache and delete its snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := c.engine(args)
			if err != nil {
				return err
			}
			if err := e.ClearCache(); err != nil {
				return c.finish(e, fmt.Errorf("clearing cache: %w", err))
			}
			_, _ = fmt.Fprintf(c.stderr, "cleared cache for %s\n", e.Root())
			return c.finish(e, nil)
		},
	}
}

func newVersionCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			_, _ = fmt.Fprintf(c.stdout, "adaptive %s\n", version)
		},
	}
}

func checkFormat(format string) error {
	switch format {
	case "toon", "json", "yaml":
		return nil
	}
	return fmt.Errorf("unsupported format %q (want toon, json or yaml)", format)
}

// writeReport prints v as JSON or YAML, or the TOON text from encodeTOON.
func writeReport(w io.Writer, format string, v any, encodeTOON func() string) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	default:
		_, err := fmt.Fprintln(w, encodeTOON())
		return err
	}
}

// describe renders the signature for the explain header before
// normalization, so invalid signatures still print something useful.
func describe(raw discovery.Signature) string {
	var parts []string
	add := func(k, v string) {
		if v != "" {
			parts = append(parts, k+"="+v)
		}
	}
	add("name", raw.Name)
	add("type", raw.Type)
	add("methods", strings.Join(raw.Methods, "|"))
	add("exports", raw.Exports)
	add("module", raw.Module)
	add("annotations", strings.Join(raw.Annotations, "|"))
	add("extends", raw.Extends)
	add("implements", strings.Join(raw.Implements, "|"))
	return strings.Join(parts, " ")
}

type targetReport struct {
	Name      string          `json:"name" yaml:"name"`
	Kind      string          `json:"kind" yaml:"kind"`
	Path      string          `json:"path" yaml:"path"`
	Line      int             `json:"line" yaml:"line"`
	Language  string          `json:"language" yaml:"language"`
	Module    string          `json:"module,omitempty" yaml:"module,omitempty"`
	Access    string          `json:"access,omitempty" yaml:"access,omitempty"`
	Source    string          `json:"source,omitempty" yaml:"source,omitempty"`
	Methods   []string        `json:"methods" yaml:"methods"`
	Score     float64         `json:"score" yaml:"score"`
	Breakdown model.Breakdown `json:"breakdown" yaml:"breakdown"`

	candidate model.ScoredCandidate
}

func newTargetReport(c model.ScoredCandidate, l *discovery.Loaded) targetReport {
	r := targetReport{
		Name:      c.Name,
		Kind:      string(c.Kind),
		Path:      c.RelPath,
		Line:      c.Line,
		Language:  c.Language,
		Module:    c.Module,
		Methods:   c.Methods,
		Score:     c.Score,
		Breakdown: c.Breakdown,
		candidate: c,
	}
	if l != nil {
		r.Access = l.Access
		r.Source = l.Source
		r.Methods = l.Methods
	}
	if r.Methods == nil {
		r.Methods = []string{}
	} else {
		r.Methods = append([]string(nil), r.Methods...)
		sort.Strings(r.Methods)
	}
	return r
}

type candidateReport struct {
	Rank      int             `json:"rank" yaml:"rank"`
	Name      string          `json:"name" yaml:"name"`
	Kind      string          `json:"kind" yaml:"kind"`
	Path      string          `json:"path" yaml:"path"`
	Line      int             `json:"line" yaml:"line"`
	Score     float64         `json:"score" yaml:"score"`
	Accepted  bool            `json:"accepted" yaml:"accepted"`
	Breakdown model.Breakdown `json:"breakdown" yaml:"breakdown"`
}

func newCandidateReport(rank int, c model.ScoredCandidate, minScore float64) candidateReport {
	return candidateReport{
		Rank:      rank,
		Name:      c.Name,
		Kind:      string(c.Kind),
		Path:      c.RelPath,
		Line:      c.Line,
		Score:     c.Score,
		Accepted:  c.Eligible && c.Score >= minScore,
		Breakdown: c.Breakdown,
	}
}
