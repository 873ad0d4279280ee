package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gobwas/glob"
)

var (
	// ErrInvalidField indicates a struct-tag constraint failed.
	ErrInvalidField = errors.New("invalid field")

	// ErrInvalidGlob indicates an ignore or skip_files pattern that does not compile.
	ErrInvalidGlob = errors.New("invalid glob pattern")

	// ErrInvalidWeights indicates scoring weights that break ranking rules.
	ErrInvalidWeights = errors.New("invalid scoring weights")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that the configuration is valid and complete.
func Validate(cfg *Config) error {
	var errs []error

	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				errs = append(errs, fmt.Errorf("%w: %s failed %q (value %v)", ErrInvalidField, fe.Namespace(), fe.Tag(), fe.Value()))
			}
		} else {
			errs = append(errs, err)
		}
	}

	errs = append(errs, validateGlobs("ignore", cfg.Ignore)...)
	errs = append(errs, validateGlobs("skip_files", cfg.SkipFiles)...)

	if err := validateScoring(cfg); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateGlobs(field string, patterns []string) []error {
	var errs []error
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, fmt.Errorf("%w: %s contains an empty pattern", ErrInvalidGlob, field))
			continue
		}
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%w: %s %q: %v", ErrInvalidGlob, field, p, err))
		}
	}
	return errs
}

func validateScoring(cfg *Config) error {
	w := cfg.Scoring
	var problems []string
	if w.NameExact <= 0 || w.NameSubstring <= 0 || w.NamePattern <= 0 || w.NameUnnamed <= 0 {
		problems = append(problems, "name weights must be positive")
	}
	if w.NameExact < w.NameSubstring {
		problems = append(problems, "name_exact must not be lower than name_substring")
	}
	if w.NameSubstring <= w.NamePattern {
		problems = append(problems, "name_substring must be higher than name_pattern")
	}
	if w.MethodsFull < w.MethodsPartial {
		problems = append(problems, "methods_full must not be lower than methods_partial")
	}
	if w.RecencyMax >= w.MethodsPartial && w.MethodsPartial > 0 {
		problems = append(problems, "recency_max must stay below methods_partial")
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalidWeights, strings.Join(problems, "; "))
}
