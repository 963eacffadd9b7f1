// Package driver sequences the multi-turn protocol: requirements turn,
// tool verification, plan turn, execution, and the bounded correction loop.
package driver

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/sonnylabs/sonny/internal/engine"
	"github.com/sonnylabs/sonny/internal/eventing"
	"github.com/sonnylabs/sonny/internal/logging"
	"github.com/sonnylabs/sonny/internal/oracle"
	"github.com/sonnylabs/sonny/internal/plan"
	"github.com/sonnylabs/sonny/internal/session"
	"github.com/sonnylabs/sonny/internal/telemetry"
	"github.com/sonnylabs/sonny/internal/toolcheck"
)

// Verifier probes the local system for required tools.
type Verifier interface {
	VerifyAll(ctx context.Context, requirements []string) []toolcheck.Status
}

// Executor applies a plan to the local system.
type Executor interface {
	Execute(ctx context.Context, p *plan.Plan) (*engine.Record, *engine.FailureContext)
}

// Options configures a Driver. Zero values get sane defaults; Run, Store
// and Events are optional observability sinks.
type Options struct {
	MaxRetries int
	Logger     *logging.Logger
	Run        *session.Run
	Store      session.Store
	Events     eventing.Publisher
}

// Driver owns the conversation state for one run. It is not reusable:
// create a new Driver per goal.
type Driver struct {
	oracle   oracle.Channel
	verifier Verifier
	executor Executor
	logger   *logging.Logger
	run      *session.Run
	store    session.Store
	events   eventing.Publisher

	maxRetries int
	state      State
	turn       int
	retryCount int
}

// New creates a driver for one run.
func New(ch oracle.Channel, verifier Verifier, executor Executor, opts Options) *Driver {
	logger := opts.Logger
	if logger == nil {
		logger = logging.New()
	}
	events := opts.Events
	if events == nil {
		events = eventing.Noop{}
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	d := &Driver{
		oracle:     ch,
		verifier:   verifier,
		executor:   executor,
		logger:     logger.WithComponent("driver"),
		run:        opts.Run,
		store:      opts.Store,
		events:     events,
		maxRetries: maxRetries,
		state:      StateInit,
	}
	if eng, ok := executor.(*engine.Engine); ok {
		eng.OnStepStart = func(i int, step plan.Step) {
			d.record(session.Event{
				Type:     session.EventStepStart,
				Step:     i + 1,
				StepKind: string(step.Kind),
				Command:  step.Command,
				Path:     step.Path,
			})
		}
	}
	return d
}

// State returns the driver's current protocol state.
func (d *Driver) State() State {
	return d.state
}

// Run drives the protocol for a goal until SUCCESS or ABORTED. Cancellation
// is honored between states only; an in-flight command or oracle call
// finishes before the check.
func (d *Driver) Run(ctx context.Context, goal string) Outcome {
	start := time.Now()
	d.logger.RunStart(goal)
	record := &engine.Record{}

	outcome := d.drive(ctx, goal, record)
	outcome.Record = record

	d.finish(outcome)
	d.logger.RunComplete(string(outcome.State), time.Since(start))
	return outcome
}

func (d *Driver) drive(ctx context.Context, goal string, record *engine.Record) Outcome {
	if d.cancelled(ctx) {
		return d.abort(ReasonCancelled, nil)
	}

	// Turn 1: requirements.
	d.transition(StateAskingRequirements)
	resp, err := d.ask(ctx, "requirements", requirementsPrompt(goal))
	if err != nil {
		return d.abort(ReasonOracleFailure, nil)
	}
	tools, err := plan.ParseRequirements(resp)
	if err != nil {
		d.noteParseError(err)
		return d.abort(ReasonParseFailure, nil)
	}
	d.transition(StateRequirementsReady)

	if d.cancelled(ctx) {
		return d.abort(ReasonCancelled, nil)
	}

	// Tool verification is informational; absent tools go into the plan
	// prompt rather than blocking the run.
	statuses := d.verifier.VerifyAll(ctx, tools)
	toolStatus := toolcheck.FormatStatuses(statuses)
	d.record(session.Event{Type: session.EventToolsVerified, Content: toolStatus})
	d.transition(StateVersionsReady)

	if d.cancelled(ctx) {
		return d.abort(ReasonCancelled, nil)
	}

	// Turn 2: the plan.
	d.transition(StateAskingPlan)
	resp, err = d.ask(ctx, "plan", planPrompt(goal, toolStatus))
	if err != nil {
		return d.abort(ReasonOracleFailure, nil)
	}
	current, err := plan.ParsePlan(resp)
	if err != nil {
		d.noteParseError(err)
		return d.abort(ReasonParseFailure, nil)
	}
	d.planAccepted(current)

	// Execute, correcting on failure until the budget runs out.
	for {
		if d.cancelled(ctx) {
			return d.abort(ReasonCancelled, nil)
		}

		d.transition(StateExecuting)
		attempt, failure := d.executor.Execute(ctx, current)
		record.Results = append(record.Results, attempt.Results...)
		d.recordSteps(attempt)

		if failure == nil {
			d.transition(StateSuccess)
			return Outcome{State: StateSuccess}
		}
		d.transition(StateFailedOnce)

		next, out := d.correct(ctx, goal, toolStatus, current, failure)
		if next == nil {
			return out
		}
		current = next
	}
}

// correct runs correction turns until a usable new plan arrives or the
// budget or run dies. A nil plan return means the outcome is terminal.
func (d *Driver) correct(ctx context.Context, goal, toolStatus string, failed *plan.Plan, failure *engine.FailureContext) (*plan.Plan, Outcome) {
	prompt := correctionPrompt(goal, toolStatus, failure)
	for {
		// Cancellation is unconditionally fatal, so it wins over the
		// budget check when both hold.
		if d.cancelled(ctx) {
			return nil, d.abort(ReasonCancelled, failure)
		}
		if d.retryCount >= d.maxRetries {
			return nil, d.abort(ReasonRetryBudgetExhausted, failure)
		}

		d.transition(StateAskingCorrection)
		d.retryCount++
		d.logger.Correction(d.retryCount, d.maxRetries-d.retryCount, firstStderrLine(failure))
		d.record(session.Event{Type: session.EventCorrection, Attempt: d.retryCount, Error: failure.Stderr})

		resp, err := d.ask(ctx, "correction", prompt)
		if err != nil {
			return nil, d.abort(ReasonOracleFailure, failure)
		}

		next, perr := plan.ParsePlan(resp)
		if perr != nil {
			// A malformed correction consumes budget; ask again while
			// budget remains.
			d.noteParseError(perr)
			prompt = unparseableNote(correctionPrompt(goal, toolStatus, failure))
			continue
		}
		if next.Fingerprint() == failed.Fingerprint() {
			// The oracle repeated the plan that just failed. Re-running it
			// would burn the workspace for nothing, so this consumes budget
			// without execution.
			d.logger.Warn("correction identical to failed plan", map[string]interface{}{
				"attempt": d.retryCount,
			})
			prompt = correctionPrompt(goal, toolStatus, failure) + "\n\nThat is the same plan that already failed. Change the failing step."
			continue
		}

		d.planAccepted(next)
		return next, Outcome{}
	}
}

// ask performs one oracle turn and records both sides of the exchange.
func (d *Driver) ask(ctx context.Context, kind, prompt string) (string, error) {
	d.turn++
	turn := d.turn
	d.logger.TurnStart(turn, kind)
	d.record(session.Event{Type: session.EventTurnPrompt, Turn: turn, Kind: kind, Content: prompt})

	ctx, span := telemetry.Tracer().Start(ctx, "turn."+kind)
	span.SetAttributes(attribute.Int("turn.number", turn))
	defer span.End()

	start := time.Now()
	resp, err := d.oracle.Send(ctx, prompt)
	if err != nil {
		span.RecordError(err)
		d.logger.Error("oracle turn failed", map[string]interface{}{
			"turn":  turn,
			"kind":  kind,
			"error": err.Error(),
		})
		d.record(session.Event{Type: session.EventTurnResponse, Turn: turn, Kind: kind, Error: err.Error()})
		return "", err
	}

	d.logger.TurnComplete(turn, time.Since(start), len(resp))
	d.record(session.Event{Type: session.EventTurnResponse, Turn: turn, Kind: kind, Content: resp})
	return resp, nil
}

func (d *Driver) planAccepted(p *plan.Plan) {
	d.transition(StatePlanReady)
	d.logger.Info("plan accepted", map[string]interface{}{
		"steps":       len(p.Steps),
		"fingerprint": p.Fingerprint()[:12],
	})
	d.record(session.Event{Type: session.EventPlanParsed, Content: p.Fingerprint(), Step: len(p.Steps)})
}

func (d *Driver) recordSteps(attempt *engine.Record) {
	for i, r := range attempt.Results {
		ok := r.Outcome == engine.Succeeded || r.Outcome == engine.Skipped
		d.record(session.Event{
			Type:       session.EventStepResult,
			Step:       i + 1,
			StepKind:   string(r.Step.Kind),
			Command:    r.Step.Command,
			Path:       r.Step.Path,
			Outcome:    string(r.Outcome),
			ExitCode:   r.ExitCode,
			Success:    &ok,
			Error:      r.Stderr,
			DurationMs: r.Duration.Milliseconds(),
		})
	}
}

func (d *Driver) noteParseError(err error) {
	var perr *plan.ParseError
	if errors.As(err, &perr) {
		d.record(session.Event{Type: session.EventParseError, Kind: string(perr.Mode), Error: perr.Error()})
	}
	d.logger.Error("parse failed", map[string]interface{}{"error": err.Error()})
}

func (d *Driver) transition(next State) {
	d.logger.Debug("state", map[string]interface{}{"from": string(d.state), "to": string(next)})
	d.state = next
	if d.run != nil {
		d.events.Publish(d.run.ID, "state", map[string]string{"state": string(next)})
	}
}

func (d *Driver) abort(reason AbortReason, failure *engine.FailureContext) Outcome {
	d.transition(StateAborted)
	return Outcome{State: StateAborted, Reason: reason, LastFailure: failure}
}

func (d *Driver) cancelled(ctx context.Context) bool {
	return ctx.Err() != nil
}

// record appends an event to the run log and mirrors it to the publisher.
func (d *Driver) record(event session.Event) {
	if d.run == nil {
		return
	}
	d.run.AddEvent(event)
	if d.store != nil {
		if err := d.store.Save(d.run); err != nil {
			d.logger.Warn("run log save failed", map[string]interface{}{"error": err.Error()})
		}
	}
	d.events.Publish(d.run.ID, event.Type, event)
}

// finish stamps the terminal status onto the run log.
func (d *Driver) finish(outcome Outcome) {
	if d.run == nil {
		return
	}
	if outcome.Succeeded() {
		d.run.Status = session.StatusSuccess
	} else {
		d.run.Status = session.StatusAborted
		d.run.Reason = string(outcome.Reason)
	}
	if d.store != nil {
		if err := d.store.Save(d.run); err != nil {
			d.logger.Warn("run log save failed", map[string]interface{}{"error": err.Error()})
		}
	}
	d.events.Publish(d.run.ID, "run_end", map[string]string{
		"state":  string(outcome.State),
		"reason": string(outcome.Reason),
	})
}

func firstStderrLine(f *engine.FailureContext) string {
	for _, line := range strings.Split(f.Stderr, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return "step failed"
}
