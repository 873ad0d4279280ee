// Package config resolves engine configuration from defaults, the project
// config file, ADAPTIVE_* environment variables and programmatic overrides.
package config

import (
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/phobologic/adaptive/internal/score"
)

// FileBase is the config file name without extension. The loader accepts
// json, yaml, yml and toml.
const FileBase = "adaptive-tests.config"

// DefaultCacheFile is the snapshot name written under the project root.
const DefaultCacheFile = ".adaptive-tests-cache.json"

// Config is the fully resolved configuration for one engine.
type Config struct {
	Extensions      []string `mapstructure:"extensions" json:"extensions" validate:"min=1,dive,startswith=."`
	MaxDepth        int      `mapstructure:"max_depth" json:"max_depth" validate:"gte=0"`
	SkipDirectories []string `mapstructure:"skip_directories" json:"skip_directories"`
	SkipFiles       []string `mapstructure:"skip_files" json:"skip_files"`
	Ignore          []string `mapstructure:"ignore" json:"ignore"`

	RespectGitignore bool  `mapstructure:"respect_gitignore" json:"respect_gitignore"`
	MaxFileSize      int64 `mapstructure:"max_file_size" json:"max_file_size" validate:"gte=0"`

	CacheEnabled bool   `mapstructure:"cache_enabled" json:"cache_enabled"`
	CacheFile    string `mapstructure:"cache_file" json:"cache_file"`

	MinCandidateScore float64       `mapstructure:"min_candidate_score" json:"min_candidate_score"`
	Concurrency       int           `mapstructure:"concurrency" json:"concurrency" validate:"gte=0"`
	Timeout           time.Duration `mapstructure:"timeout" json:"timeout" validate:"gte=0"`

	Scoring  score.Weights     `mapstructure:"scoring" json:"scoring"`
	Security Security          `mapstructure:"security" json:"security"`
	Bridges  map[string]Bridge `mapstructure:"bridges" json:"bridges" validate:"dive"`
}

// Security lists content that disqualifies a file from ever being loaded.
type Security struct {
	BlockedTokens []string `mapstructure:"blocked_tokens" json:"blocked_tokens"`
}

// Bridge runs an external extractor for one file extension, keyed without
// the leading dot (bridges.php). The command receives the file path as its
// final argument and prints the JSON {classes, functions, modules} document
// on stdout.
type Bridge struct {
	Command        []string      `mapstructure:"command" json:"command" validate:"min=1"`
	Timeout        time.Duration `mapstructure:"timeout" json:"timeout" validate:"gte=0"`
	MaxOutputBytes int64         `mapstructure:"max_output_bytes" json:"max_output_bytes" validate:"gte=0"`
}

// Bridge defaults applied to zero-valued fields.
const (
	DefaultBridgeTimeout   = 10 * time.Second
	DefaultBridgeMaxOutput = 4 << 20
)

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Extensions: []string{
			".go",
			".py",
			".rb",
			".js", ".mjs", ".cjs", ".jsx",
			".ts", ".tsx",
			".java",
		},
		MaxDepth:        0,
		SkipDirectories: []string{},
		SkipFiles: []string{
			"*_test.go",
			"test_*.py",
			"*_test.py",
			"*_spec.rb",
			"*Test.java",
			"*Tests.java",
			"*IT.java",
			"*.test.js", "*.test.ts", "*.test.jsx", "*.test.tsx",
			"*.spec.js", "*.spec.ts", "*.spec.jsx", "*.spec.tsx",
			"*.d.ts",
			"* copy.*",
			"* [0-9].*",
		},
		Ignore:            []string{},
		RespectGitignore:  true,
		MaxFileSize:       1 << 20,
		CacheEnabled:      true,
		CacheFile:         DefaultCacheFile,
		MinCandidateScore: 10,
		Concurrency:       runtime.GOMAXPROCS(0),
		Timeout:           0,
		Scoring:           score.DefaultWeights(),
		Security: Security{
			BlockedTokens: []string{"process.exit(", "child_process"},
		},
		Bridges: map[string]Bridge{},
	}
}

// CachePath returns the absolute snapshot path for root.
func (c *Config) CachePath(root string) string {
	if c.CacheFile == "" {
		return filepath.Join(root, DefaultCacheFile)
	}
	if filepath.IsAbs(c.CacheFile) {
		return c.CacheFile
	}
	return filepath.Join(root, c.CacheFile)
}

// BridgeFor returns the bridge for ext (".php" or "php") with defaults filled in.
func (c *Config) BridgeFor(ext string) (Bridge, bool) {
	b, ok := c.Bridges[strings.ToLower(strings.TrimPrefix(ext, "."))]
	if !ok {
		return Bridge{}, false
	}
	if b.Timeout == 0 {
		b.Timeout = DefaultBridgeTimeout
	}
	if b.MaxOutputBytes == 0 {
		b.MaxOutputBytes = DefaultBridgeMaxOutput
	}
	return b, true
}
