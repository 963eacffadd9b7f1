// Package toolcheck probes the local system for required tools and their
// versions. Results are informational only; they feed the plan prompt and
// never gate execution.
package toolcheck

import (
	"context"
	"fmt"
	"os/exec"
	"regexp"
	"strings"
	"time"

	"github.com/sonnylabs/sonny/internal/logging"
)

// Status is the probe result for one tool.
type Status struct {
	Name      string
	Installed bool
	Version   string
}

var (
	ansiRe    = regexp.MustCompile(`\x1b\[[0-9;]*m`)
	versionRe = regexp.MustCompile(`v?(\d+\.\d+(?:\.\d+)?)`)
)

// Verifier runs version probes against the local system.
type Verifier struct {
	catalog Catalog
	timeout time.Duration
	logger  *logging.Logger
}

// NewVerifier creates a verifier. A nil catalog uses the defaults.
func NewVerifier(catalog Catalog, timeout time.Duration, logger *logging.Logger) *Verifier {
	if catalog == nil {
		catalog = DefaultCatalog()
	}
	if logger == nil {
		logger = logging.New()
	}
	return &Verifier{
		catalog: catalog,
		timeout: timeout,
		logger:  logger.WithComponent("toolcheck"),
	}
}

// CheckVersion probes a single requirement. Unknown tools get a generic
// "<name> --version" attempt rather than being reported absent untried.
func (v *Verifier) CheckVersion(ctx context.Context, requirement string) Status {
	fields := strings.Fields(requirement)
	if len(fields) == 0 {
		return Status{}
	}

	name := v.catalog.resolve(requirement)
	var command string
	if name == "" {
		name = strings.ToLower(fields[0])
		command = name + " --version"
	} else {
		command = v.catalog[name].Command
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", command)
	out, err := cmd.CombinedOutput()
	status := Status{Name: name}
	if err == nil {
		status.Installed = true
		status.Version = extractVersion(string(out))
	}
	v.logger.ToolCheck(status.Name, status.Installed, status.Version)
	return status
}

// VerifyAll probes every requirement in order. An empty list falls back to
// the default tool set so the plan prompt still carries environment info.
func (v *Verifier) VerifyAll(ctx context.Context, requirements []string) []Status {
	if len(requirements) == 0 {
		requirements = DefaultTools
	}
	seen := make(map[string]bool, len(requirements))
	var out []Status
	for _, r := range requirements {
		s := v.CheckVersion(ctx, r)
		if seen[s.Name] {
			continue
		}
		seen[s.Name] = true
		out = append(out, s)
	}
	return out
}

// extractVersion pulls the first version-looking token out of probe output,
// stripping ANSI color first ("ng version" paints its banner).
func extractVersion(out string) string {
	clean := ansiRe.ReplaceAllString(out, "")
	if m := versionRe.FindStringSubmatch(clean); m != nil {
		return m[1]
	}
	return strings.TrimSpace(strings.SplitN(clean, "\n", 2)[0])
}

// FormatStatuses renders probe results as prompt-ready lines.
func FormatStatuses(statuses []Status) string {
	var sb strings.Builder
	for _, s := range statuses {
		if s.Installed {
			fmt.Fprintf(&sb, "- %s: %s\n", s.Name, s.Version)
		} else {
			fmt.Fprintf(&sb, "- %s: not installed\n", s.Name)
		}
	}
	return sb.String()
}
