// Package plan turns raw oracle responses into structured, executable plans.
package plan

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// StepKind identifies the variant of a Step.
type StepKind string

const (
	RunCommand StepKind = "run_command"
	WriteFile  StepKind = "write_file"
)

// Step is one atomic local action. Command is set for RunCommand steps,
// Path and Content for WriteFile steps. Steps carry no identity beyond
// their position in a Plan.
type Step struct {
	Kind    StepKind
	Command string
	Path    string
	Content string
}

// Describe returns a short human-readable form of the step for logs and
// correction prompts.
func (s Step) Describe() string {
	switch s.Kind {
	case RunCommand:
		return fmt.Sprintf("run command %q", s.Command)
	case WriteFile:
		return fmt.Sprintf("write file %q (%d bytes)", s.Path, len(s.Content))
	default:
		return "unknown step"
	}
}

// Plan is an ordered sequence of steps. Order is significant and preserved
// exactly as produced by the parser. A Plan is never patched: a correction
// turn produces a whole new Plan.
type Plan struct {
	Steps []Step
}

// Fingerprint returns a stable hash of the plan's steps. Two corrections
// that propose the identical plan hash the same, which lets the driver
// detect an oracle repeating itself.
func (p *Plan) Fingerprint() string {
	h := sha256.New()
	for _, s := range p.Steps {
		fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x1e", s.Kind, s.Command, s.Path, s.Content)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizeTools lower-cases, trims and deduplicates a parsed tool list,
// preserving first-seen order.
func NormalizeTools(names []string) []string {
	seen := make(map[string]bool, len(names))
	var out []string
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
