package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/phobologic/adaptive/internal/config"
)

const (
	sentinelStart = "<!-- adaptive:start -->"
	sentinelEnd   = "<!-- adaptive:end -->"
)

// starterFile is the config file name init writes under the root.
const starterFile = config.FileBase + ".yaml"

func newInitCmd(c *cli) *cobra.Command {
	var (
		dryRun bool
		force  bool
		docs   string
	)
	cmd := &cobra.Command{
		Use:   "init [root]",
		Short: "Write a starter config and an optional usage section",
		Long: `Write ` + starterFile + ` with every default spelled out, ready to edit.

With --docs, also write an adaptive usage section to a markdown file. The
section is wrapped in sentinel comments so it can be updated in place on
subsequent runs without touching surrounding content.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runInit(rootArg(args), docs, dryRun, force)
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "print what would be written without modifying files")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().StringVar(&docs, "docs", "", "markdown file to add the usage section to")
	return cmd
}

func (c *cli) runInit(root, docs string, dryRun, force bool) error {
	info, err := os.Stat(root)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: not a directory", root)
	}

	body, err := starterConfig()
	if err != nil {
		return err
	}

	path := filepath.Join(root, starterFile)
	if dryRun {
		_, _ = fmt.Fprint(c.stdout, body)
	} else {
		if existing := config.ConfigFileUsed(root); existing != "" && !force {
			return fmt.Errorf("%s already exists (use --force to overwrite)", existing)
		}
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", path, err)
		}
		_, _ = fmt.Fprintf(c.stderr, "wrote %s\n", path)
	}

	if docs == "" {
		return nil
	}
	existing, err := os.ReadFile(docs)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("reading %s: %w", docs, err)
	}
	updated := applySection(string(existing), generateSection())
	if dryRun {
		_, _ = fmt.Fprint(c.stdout, updated)
		return nil
	}
	if err := os.WriteFile(docs, []byte(updated), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", docs, err)
	}
	_, _ = fmt.Fprintf(c.stderr, "wrote adaptive section to %s\n", docs)
	return nil
}

// starterConfig renders the defaults as YAML. Concurrency is written as 0,
// which the loader resolves to GOMAXPROCS on the machine that reads it.
func starterConfig() (string, error) {
	cfg := config.Default()
	cfg.Concurrency = 0

	data, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("encoding defaults: %w", err)
	}
	// Numbers stay json.Number so yaml renders 1048576, not 1.048576e+06.
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var tree map[string]any
	if err := dec.Decode(&tree); err != nil {
		return "", fmt.Errorf("decoding defaults: %w", err)
	}
	// Durations marshal as nanoseconds; spell them the way users write them.
	tree["timeout"] = cfg.Timeout.String()

	var b bytes.Buffer
	b.WriteString("# adaptive discovery configuration. Remove keys to fall back to defaults.\n")
	enc := yaml.NewEncoder(&b)
	enc.SetIndent(2)
	if err := enc.Encode(tree); err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("rendering config: %w", err)
	}
	return b.String(), nil
}

// generateSection returns the full sentinel-wrapped usage block.
func generateSection() string {
	body := `## adaptive: structural test discovery

Tests locate production code by what it looks like, not where it lives. Ask for
a signature and let the engine find the file:

` + "```" + `bash
adaptive discover --name Calculator --type class --methods add,subtract
adaptive discover -f signature.yaml ./service    # signature from YAML or JSON
adaptive discover --name '/^Order.*Service$/' --load=false
adaptive explain --name Calculator --limit 5     # why did this candidate win?
adaptive clear-cache                             # force a full re-scan
` + "```" + `

**Cache:** extraction results persist in ` + "`" + config.DefaultCacheFile + "`" + `. Add it
to ` + "`.gitignore`" + `; it is rebuilt per file whenever content changes.

**Config:** ` + "`" + starterFile + "`" + ` at the project root, overridden by
` + "`ADAPTIVE_*`" + ` environment variables and ` + "`--set key=value`" + `.

**When a lookup fails,** run ` + "`adaptive explain`" + ` with the same flags. It lists
every candidate whose name matched and the points each heuristic awarded.`

	return sentinelStart + "\n" + body + "\n" + sentinelEnd
}

// applySection inserts section into content, replacing an existing sentinel
// block if present or appending if not. It is a pure function for easy testing.
func applySection(content, section string) string {
	start := strings.Index(content, sentinelStart)
	end := strings.Index(content, sentinelEnd)

	if start >= 0 && end > start {
		return content[:start] + section + content[end+len(sentinelEnd):]
	}

	// Append, ensuring a blank line separator.
	if len(content) > 0 && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}
	return content + "\n" + section + "\n"
}
