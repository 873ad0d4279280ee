package lang

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/phobologic/adaptive/internal/model"
)

// ErrOutputTooLarge is returned when a bridge prints more than its cap.
var ErrOutputTooLarge = errors.New("bridge output exceeds limit")

const bridgeWaitDelay = 500 * time.Millisecond

// Bridge delegates extraction to an external command. The command gets the
// file path as its last argument and must print a BridgeOutput document.
// The file content itself is not piped to the command.
type Bridge struct {
	name      string
	command   []string
	timeout   time.Duration
	maxOutput int64
}

// NewBridge returns a bridge adapter for language name.
func NewBridge(name string, command []string, timeout time.Duration, maxOutput int64) *Bridge {
	return &Bridge{name: name, command: command, timeout: timeout, maxOutput: maxOutput}
}

// BridgeOutput is the wire format bridge commands emit.
type BridgeOutput struct {
	Classes []struct {
		Name        string   `json:"name"`
		Kind        string   `json:"kind,omitempty"`
		Methods     []string `json:"methods,omitempty"`
		Extends     string   `json:"extends,omitempty"`
		Implements  []string `json:"implements,omitempty"`
		Annotations []string `json:"annotations,omitempty"`
		Line        int      `json:"line,omitempty"`
	} `json:"classes"`
	Functions []struct {
		Name string `json:"name"`
		Line int    `json:"line,omitempty"`
	} `json:"functions"`
	Modules []struct {
		Name    string   `json:"name"`
		Methods []string `json:"methods,omitempty"`
	} `json:"modules"`
}

// Lang implements Adapter.
func (b *Bridge) Lang() string { return b.name }

// Parse implements Adapter.
func (b *Bridge) Parse(ctx context.Context, _ []byte, path string) ([]model.Candidate, error) {
	if len(b.command) == 0 {
		return nil, errors.New("bridge has no command")
	}
	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}

	args := append(append([]string(nil), b.command[1:]...), path)
	cmd := exec.CommandContext(ctx, b.command[0], args...)
	stdout := &cappedBuffer{max: b.maxOutput}
	stderr := &cappedBuffer{max: 4096, truncate: true}
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	// Grandchildren can hold the pipes open after the bridge is killed.
	cmd.WaitDelay = bridgeWaitDelay

	if err := cmd.Run(); err != nil {
		if stdout.overflow {
			return nil, ErrOutputTooLarge
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("bridge %s: %w", b.name, ctx.Err())
		}
		msg := strings.TrimSpace(stderr.buf.String())
		if msg != "" {
			return nil, fmt.Errorf("bridge %s: %w: %s", b.name, err, msg)
		}
		return nil, fmt.Errorf("bridge %s: %w", b.name, err)
	}

	var out BridgeOutput
	if err := json.Unmarshal(stdout.buf.Bytes(), &out); err != nil {
		return nil, fmt.Errorf("bridge %s: decoding output: %w", b.name, err)
	}
	return out.candidates(b.name), nil
}

func (o *BridgeOutput) candidates(language string) []model.Candidate {
	var cands []model.Candidate
	for _, m := range o.Modules {
		cands = append(cands, model.Candidate{
			Name:    m.Name,
			Kind:    model.Module,
			Methods: m.Methods,
			Export:  model.Export{Kind: model.ExportModule},
		})
	}
	for _, c := range o.Classes {
		kind := model.Class
		switch model.Kind(strings.ToLower(c.Kind)) {
		case model.Interface:
			kind = model.Interface
		case model.Record:
			kind = model.Record
		case model.Enum:
			kind = model.Enum
		}
		cand := model.Candidate{
			Name:        c.Name,
			Kind:        kind,
			Methods:     c.Methods,
			Implements:  c.Implements,
			Annotations: c.Annotations,
			Export:      model.Export{Kind: model.ExportNamed, Name: c.Name},
			Line:        c.Line,
		}
		if c.Extends != "" {
			cand.Extends = []string{c.Extends}
		}
		cands = append(cands, cand)
	}
	for _, fn := range o.Functions {
		cands = append(cands, model.Candidate{
			Name:   fn.Name,
			Kind:   model.Function,
			Export: model.Export{Kind: model.ExportNamed, Name: fn.Name},
			Line:   fn.Line,
		})
	}
	for i := range cands {
		cands[i].Language = language
	}
	return cands
}

// cappedBuffer fails writes once max bytes have been buffered so a runaway
// bridge is killed instead of exhausting memory. With truncate set it drops
// the excess silently instead.
type cappedBuffer struct {
	buf      bytes.Buffer
	max      int64
	truncate bool
	overflow bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	if c.max > 0 && int64(c.buf.Len()+len(p)) > c.max {
		c.overflow = true
		if c.truncate {
			room := int(c.max) - c.buf.Len()
			if room > 0 {
				c.buf.Write(p[:room])
			}
			return len(p), nil
		}
		return 0, ErrOutputTooLarge
	}
	return c.buf.Write(p)
}
