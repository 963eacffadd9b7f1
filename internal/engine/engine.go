// Package engine applies a parsed plan to the local system.
package engine

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sonnylabs/sonny/internal/logging"
	"github.com/sonnylabs/sonny/internal/plan"
	"github.com/sonnylabs/sonny/internal/telemetry"
)

// Outcome classifies a step result.
type Outcome string

const (
	Succeeded Outcome = "succeeded"
	Failed    Outcome = "failed"
	Skipped   Outcome = "skipped"
)

// StepResult records one executed step.
type StepResult struct {
	Step     plan.Step
	Outcome  Outcome
	Stdout   string
	Stderr   string
	ExitCode int
	Duration time.Duration
}

// Record is the append-only account of a plan execution.
type Record struct {
	Results []StepResult
}

// FailureContext is the projection of a failed step used to build a
// correction prompt. The driver adds goal and tool context on top.
type FailureContext struct {
	StepIndex     int
	FailedStep    string
	FailedCommand string
	Stderr        string
	ExitCode      int
}

const npmInstallTimeout = 10 * time.Minute

// Engine executes plans inside a working directory. It holds no state
// across Execute calls; side effects on the filesystem and spawned
// processes are its only observable effects.
type Engine struct {
	workdir    string
	cmdTimeout time.Duration
	logger     *logging.Logger

	// OnStepStart, if set, is called before each step executes.
	OnStepStart func(index int, step plan.Step)
}

// New creates an engine rooted at workdir with a per-command timeout.
func New(workdir string, cmdTimeout time.Duration, logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.New()
	}
	return &Engine{
		workdir:    workdir,
		cmdTimeout: cmdTimeout,
		logger:     logger.WithComponent("engine"),
	}
}

// Execute runs the plan's steps strictly in order and stops at the first
// failure. It returns the record of everything attempted and, when a step
// failed, the failure context for that step.
func (e *Engine) Execute(ctx context.Context, p *plan.Plan) (*Record, *FailureContext) {
	record := &Record{}
	for i, step := range p.Steps {
		e.logger.StepStart(i+1, string(step.Kind), step.Describe())
		if e.OnStepStart != nil {
			e.OnStepStart(i, step)
		}

		result := e.runStep(ctx, step)
		record.Results = append(record.Results, result)

		var stepErr error
		if result.Outcome == Failed {
			stepErr = fmt.Errorf("%s", firstLine(result.Stderr))
		}
		e.logger.StepResult(i+1, result.Duration, stepErr)

		if result.Outcome == Failed {
			return record, &FailureContext{
				StepIndex:     i,
				FailedStep:    step.Describe(),
				FailedCommand: step.Command,
				Stderr:        result.Stderr,
				ExitCode:      result.ExitCode,
			}
		}
	}
	return record, nil
}

func (e *Engine) runStep(ctx context.Context, step plan.Step) StepResult {
	ctx, span := telemetry.Tracer().Start(ctx, "step."+string(step.Kind))
	defer span.End()

	start := time.Now()
	var result StepResult
	switch step.Kind {
	case plan.RunCommand:
		span.SetAttributes(attribute.String("step.command", step.Command))
		result = e.runCommand(ctx, step)
	case plan.WriteFile:
		span.SetAttributes(attribute.String("step.path", step.Path))
		result = e.writeFile(step)
	default:
		result = StepResult{Step: step, Outcome: Failed, Stderr: fmt.Sprintf("unknown step kind %q", step.Kind)}
	}
	result.Duration = time.Since(start)
	span.SetAttributes(attribute.String("step.outcome", string(result.Outcome)))
	return result
}

func (e *Engine) runCommand(ctx context.Context, step plan.Step) StepResult {
	// Dev servers never exit; record them instead of waiting out the timeout.
	if plan.IsServeCommand(step.Command) {
		e.logger.Debug("serve command skipped", map[string]interface{}{"command": step.Command})
		return StepResult{Step: step, Outcome: Skipped}
	}

	ctx, cancel := context.WithTimeout(ctx, e.timeoutFor(step.Command))
	defer cancel()

	cmd := exec.CommandContext(ctx, "bash", "-c", step.Command)
	cmd.Dir = e.workdir

	var stdout, stderr strings.Builder
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := StepResult{
		Step:   step,
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err == nil {
		result.Outcome = Succeeded
		return result
	}

	result.Outcome = Failed
	if ctx.Err() == context.DeadlineExceeded {
		result.ExitCode = -1
		result.Stderr = appendLine(result.Stderr, fmt.Sprintf("command timed out after %s", e.timeoutFor(step.Command)))
		return result
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		result.ExitCode = exitErr.ExitCode()
	} else {
		result.ExitCode = -1
		result.Stderr = appendLine(result.Stderr, err.Error())
	}
	return result
}

func (e *Engine) writeFile(step plan.Step) StepResult {
	path := step.Path
	if !filepath.IsAbs(path) {
		path = filepath.Join(e.workdir, path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return StepResult{Step: step, Outcome: Failed, ExitCode: -1, Stderr: err.Error()}
	}
	if err := os.WriteFile(path, []byte(step.Content), 0644); err != nil {
		return StepResult{Step: step, Outcome: Failed, ExitCode: -1, Stderr: err.Error()}
	}
	return StepResult{Step: step, Outcome: Succeeded}
}

// timeoutFor picks the per-command timeout. Dependency installs routinely
// exceed the general budget, so they get a longer one.
func (e *Engine) timeoutFor(command string) time.Duration {
	trimmed := strings.TrimSpace(command)
	if strings.HasPrefix(trimmed, "npm install") || strings.HasPrefix(trimmed, "npm i ") ||
		strings.HasPrefix(trimmed, "yarn install") || strings.HasPrefix(trimmed, "pnpm install") {
		if npmInstallTimeout > e.cmdTimeout {
			return npmInstallTimeout
		}
	}
	return e.cmdTimeout
}

func appendLine(s, line string) string {
	if s == "" {
		return line
	}
	return strings.TrimRight(s, "\n") + "\n" + line
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	if s == "" {
		return "step failed"
	}
	return s
}
