// Package errs defines the discovery error taxonomy.
//
// Every error type carries a stable Code and matches its sentinel through
// errors.Is, so callers can branch on either the concrete type (errors.As)
// or the category (errors.Is).
package errs

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/phobologic/adaptive/internal/model"
)

// Code is a stable identifier for a failure mode.
type Code string

const (
	// InvalidSignature indicates a malformed query; raised before any I/O.
	InvalidSignature Code = "INVALID_SIGNATURE"
	// Parse indicates a single file could not be extracted.
	Parse Code = "PARSE_ERROR"
	// NotFound indicates no candidate cleared the minimum score.
	NotFound Code = "NOT_FOUND"
	// Validation indicates a winner failed post-load structural checks.
	Validation Code = "VALIDATION_FAILED"
	// Timeout indicates the scan exceeded the caller budget.
	Timeout Code = "TIMEOUT"
)

var (
	ErrInvalidSignature = errors.New("invalid signature")
	ErrParse            = errors.New("parse error")
	ErrNotFound         = errors.New("no matching candidate")
	ErrValidation       = errors.New("validation failed")
	ErrTimeout          = errors.New("discovery timed out")
)

// InvalidSignatureError reports a query with no discriminating field or a
// field that cannot be interpreted.
type InvalidSignatureError struct {
	Reason string
}

func (e *InvalidSignatureError) Error() string {
	return fmt.Sprintf("[%s] invalid signature: %s", InvalidSignature, e.Reason)
}

func (e *InvalidSignatureError) Is(target error) bool { return target == ErrInvalidSignature }

// Code returns the stable error code.
func (e *InvalidSignatureError) Code() Code { return InvalidSignature }

// ParseError reports a per-file extraction failure. The collector recovers
// from it by excluding the file.
type ParseError struct {
	Path     string
	Language string
	Err      error
}

func (e *ParseError) Error() string {
	if e.Language == "" {
		return fmt.Sprintf("[%s] %s: %v", Parse, e.Path, e.Err)
	}
	return fmt.Sprintf("[%s] %s (%s): %v", Parse, e.Path, e.Language, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

func (e *ParseError) Is(target error) bool { return target == ErrParse }

// Code returns the stable error code.
func (e *ParseError) Code() Code { return Parse }

// NotFoundError reports that nothing cleared the minimum score. Rejected
// holds the best few candidates that did not, for debugging.
type NotFoundError struct {
	Signature string
	MinScore  float64
	Rejected  []model.ScoredCandidate
}

func (e *NotFoundError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] no candidate matched %s (min score %.2f)", NotFound, e.Signature, e.MinScore)
	if len(e.Rejected) > 0 {
		b.WriteString("; best rejected:")
		for i := range e.Rejected {
			r := &e.Rejected[i]
			fmt.Fprintf(&b, " %s@%s=%.2f", r.Name, r.RelPath, r.Score)
		}
	}
	return b.String()
}

func (e *NotFoundError) Is(target error) bool { return target == ErrNotFound }

// Code returns the stable error code.
func (e *NotFoundError) Code() Code { return NotFound }

// ValidationError reports that the winning candidate did not survive the
// post-load structural check.
type ValidationError struct {
	Candidate model.ScoredCandidate
	Problems  []string
	Err       error
}

func (e *ValidationError) Error() string {
	msg := fmt.Sprintf("[%s] %s in %s: %s", Validation, e.Candidate.Name, e.Candidate.RelPath, strings.Join(e.Problems, "; "))
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ValidationError) Unwrap() error { return e.Err }

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

// Code returns the stable error code.
func (e *ValidationError) Code() Code { return Validation }

// TimeoutError reports an aborted scan. Err is the context error.
type TimeoutError struct {
	Elapsed time.Duration
	Err     error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("[%s] discovery aborted after %s: %v", Timeout, e.Elapsed.Round(time.Millisecond), e.Err)
}

func (e *TimeoutError) Unwrap() error { return e.Err }

func (e *TimeoutError) Is(target error) bool { return target == ErrTimeout }

// Code returns the stable error code.
func (e *TimeoutError) Code() Code { return Timeout }

// CodeOf returns the code carried by err, or "" when err is not a discovery error.
func CodeOf(err error) Code {
	var coded interface{ Code() Code }
	if errors.As(err, &coded) {
		return coded.Code()
	}
	return ""
}
