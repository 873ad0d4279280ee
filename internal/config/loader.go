package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"runtime"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides (ADAPTIVE_MIN_CANDIDATE_SCORE).
const EnvPrefix = "ADAPTIVE"

// Loader provides configuration loading capabilities.
type Loader interface {
	// Load resolves configuration.
	// Priority: defaults → config file → environment → overrides (overrides win)
	Load() (*Config, error)
}

type loader struct {
	rootDir   string
	overrides map[string]any
}

// NewLoader creates a loader for rootDir. Overrides use dotted viper keys
// ("scoring.name_exact") and take precedence over every other source.
func NewLoader(rootDir string, overrides map[string]any) Loader {
	return &loader{rootDir: rootDir, overrides: overrides}
}

func (l *loader) Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName(FileBase)
	v.AddConfigPath(l.rootDir)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for _, key := range []string{
		"extensions",
		"max_depth",
		"skip_directories",
		"skip_files",
		"ignore",
		"respect_gitignore",
		"max_file_size",
		"cache_enabled",
		"cache_file",
		"min_candidate_score",
		"concurrency",
		"timeout",
		"security.blocked_tokens",
	} {
		_ = v.BindEnv(key)
	}

	if err := setDefaults(v); err != nil {
		return nil, err
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	for key, val := range l.overrides {
		v.Set(key, val)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	normalize(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// ConfigFileUsed reports which file Load would read under rootDir, or "".
func ConfigFileUsed(rootDir string) string {
	v := viper.New()
	v.SetConfigName(FileBase)
	v.AddConfigPath(rootDir)
	if err := v.ReadInConfig(); err != nil {
		return ""
	}
	return v.ConfigFileUsed()
}

// setDefaults registers every key of Default() so env and file layers merge
// per key instead of replacing whole sections.
func setDefaults(v *viper.Viper) error {
	data, err := json.Marshal(Default())
	if err != nil {
		return fmt.Errorf("encoding defaults: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("decoding defaults: %w", err)
	}
	setDefaultTree(v, "", tree)
	return nil
}

func setDefaultTree(v *viper.Viper, prefix string, tree map[string]any) {
	for k, val := range tree {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok && len(sub) > 0 && !isWeightMap(key) {
			setDefaultTree(v, key, sub)
			continue
		}
		v.SetDefault(key, val)
	}
}

// isWeightMap reports keys whose value is a user-extensible map; those are
// registered whole so new segment names can be added from the file.
func isWeightMap(key string) bool {
	return key == "scoring.path_bonuses" || key == "scoring.path_penalties"
}

func normalize(cfg *Config) {
	if cfg.Concurrency == 0 {
		cfg.Concurrency = runtime.GOMAXPROCS(0)
	}
	for i, ext := range cfg.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext != "" && !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cfg.Extensions[i] = ext
	}
	if cfg.Bridges == nil {
		cfg.Bridges = map[string]Bridge{}
	}
}

// LoadFromDir is a convenience wrapper without overrides.
func LoadFromDir(rootDir string) (*Config, error) {
	return NewLoader(rootDir, nil).Load()
}
