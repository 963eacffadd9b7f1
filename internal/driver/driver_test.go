package driver

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sonnylabs/sonny/internal/engine"
	"github.com/sonnylabs/sonny/internal/oracle"
	"github.com/sonnylabs/sonny/internal/plan"
	"github.com/sonnylabs/sonny/internal/session"
	"github.com/sonnylabs/sonny/internal/toolcheck"
)

type fakeVerifier struct {
	statuses []toolcheck.Status
}

func (f fakeVerifier) VerifyAll(_ context.Context, _ []string) []toolcheck.Status {
	return f.statuses
}

// fakeExecutor plays back a fixed sequence of execution outcomes without
// touching the filesystem.
type fakeExecutor struct {
	failures []*engine.FailureContext // one entry per expected Execute call
	calls    int
}

func (f *fakeExecutor) Execute(_ context.Context, p *plan.Plan) (*engine.Record, *engine.FailureContext) {
	if f.calls >= len(f.failures) {
		panic("unexpected Execute call")
	}
	failure := f.failures[f.calls]
	f.calls++

	record := &engine.Record{}
	for i, s := range p.Steps {
		outcome := engine.Succeeded
		stderr := ""
		if failure != nil && i == failure.StepIndex {
			outcome = engine.Failed
			stderr = failure.Stderr
		}
		record.Results = append(record.Results, engine.StepResult{Step: s, Outcome: outcome, Stderr: stderr})
		if outcome == engine.Failed {
			break
		}
	}
	return record, failure
}

func defaultVerifier() fakeVerifier {
	return fakeVerifier{statuses: []toolcheck.Status{
		{Name: "node", Installed: true, Version: "20.11.0"},
	}}
}

func TestRun_HelloEndToEnd(t *testing.T) {
	workdir := t.TempDir()
	store, err := session.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	run, err := store.NewRun("create a file hello.txt containing hi", workdir)
	if err != nil {
		t.Fatal(err)
	}

	ch := oracle.NewScripted(
		"- node\n",
		"STEP 1: Create the file\nFILE: hello.txt\n```\nhi\n```\n",
	)
	eng := engine.New(workdir, 10*time.Second, nil)
	d := New(ch, defaultVerifier(), eng, Options{MaxRetries: 3, Run: run, Store: store})

	outcome := d.Run(context.Background(), run.Goal)

	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(outcome.Record.Results) != 1 {
		t.Fatalf("record = %+v, want one step", outcome.Record.Results)
	}
	if outcome.Record.Results[0].Outcome != engine.Succeeded {
		t.Errorf("step outcome = %s", outcome.Record.Results[0].Outcome)
	}

	data, err := os.ReadFile(filepath.Join(workdir, "hello.txt"))
	if err != nil {
		t.Fatalf("hello.txt not written: %v", err)
	}
	if string(data) != "hi" {
		t.Errorf("content = %q, want %q", data, "hi")
	}

	loaded, err := store.Load(run.ID)
	if err != nil {
		t.Fatalf("load run log: %v", err)
	}
	if loaded.Status != session.StatusSuccess {
		t.Errorf("run status = %s, want %s", loaded.Status, session.StatusSuccess)
	}
	if len(loaded.Events) == 0 {
		t.Error("run log has no events")
	}
}

func TestRun_CorrectionEmbedsFailure(t *testing.T) {
	ch := oracle.NewScripted(
		"- node\n- angular cli\n",
		"STEP 1: scaffold\nCMD: ng new demo --defaults\n",
		"STEP 1: install the cli locally\nCMD: npx --yes @angular/cli new demo --defaults\n",
	)
	exec := &fakeExecutor{failures: []*engine.FailureContext{
		{
			StepIndex:     0,
			FailedStep:    `run command "ng new demo --defaults"`,
			FailedCommand: "ng new demo --defaults",
			Stderr:        "command not found: ng",
			ExitCode:      127,
		},
		nil,
	}}

	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: 3})
	outcome := d.Run(context.Background(), "build an angular app")

	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v, want success after one correction", outcome)
	}
	if exec.calls != 2 {
		t.Errorf("execute calls = %d, want 2", exec.calls)
	}
	if len(ch.Prompts) != 3 {
		t.Fatalf("prompts = %d, want 3", len(ch.Prompts))
	}

	correction := ch.Prompts[2]
	if !strings.Contains(correction, "command not found: ng") {
		t.Error("correction prompt missing literal stderr text")
	}
	if !strings.Contains(correction, "ng new demo --defaults") {
		t.Error("correction prompt missing failing command")
	}
}

func TestRun_RetryBudgetExhausted(t *testing.T) {
	const maxRetries = 2
	ch := oracle.NewScripted(
		"- node\n",
		"CMD: attempt zero\n",
		"CMD: attempt one\n",
		"CMD: attempt two\n",
	)
	failure := func(cmd string) *engine.FailureContext {
		return &engine.FailureContext{FailedStep: "run command", FailedCommand: cmd, Stderr: "boom", ExitCode: 1}
	}
	exec := &fakeExecutor{failures: []*engine.FailureContext{
		failure("attempt zero"),
		failure("attempt one"),
		failure("attempt two"),
	}}

	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: maxRetries})
	outcome := d.Run(context.Background(), "doomed goal")

	if outcome.Succeeded() {
		t.Fatal("run should not succeed")
	}
	if outcome.Reason != ReasonRetryBudgetExhausted {
		t.Errorf("reason = %s, want %s", outcome.Reason, ReasonRetryBudgetExhausted)
	}
	if outcome.LastFailure == nil || outcome.LastFailure.Stderr != "boom" {
		t.Errorf("last failure = %+v", outcome.LastFailure)
	}
	// requirements + plan + exactly maxRetries correction turns
	if len(ch.Prompts) != 2+maxRetries {
		t.Errorf("prompts = %d, want %d", len(ch.Prompts), 2+maxRetries)
	}
	if exec.calls != 1+maxRetries {
		t.Errorf("execute calls = %d, want %d", exec.calls, 1+maxRetries)
	}
}

func TestRun_IdenticalCorrectionNotReExecuted(t *testing.T) {
	ch := oracle.NewScripted(
		"- node\n",
		"CMD: ng build\n",
		"CMD: ng build\n", // oracle repeats itself
	)
	exec := &fakeExecutor{failures: []*engine.FailureContext{
		{FailedStep: "run command", FailedCommand: "ng build", Stderr: "broken", ExitCode: 1},
	}}

	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: 1})
	outcome := d.Run(context.Background(), "goal")

	if outcome.Reason != ReasonRetryBudgetExhausted {
		t.Errorf("reason = %s, want %s", outcome.Reason, ReasonRetryBudgetExhausted)
	}
	if exec.calls != 1 {
		t.Errorf("execute calls = %d, want 1 (identical plan must not re-run)", exec.calls)
	}
}

func TestRun_UnparseableCorrectionConsumesBudget(t *testing.T) {
	ch := oracle.NewScripted(
		"- node\n",
		"CMD: ng build\n",
		"Sorry, let me think about that differently.", // no steps
		"CMD: npx ng build\n",
	)
	exec := &fakeExecutor{failures: []*engine.FailureContext{
		{FailedStep: "run command", FailedCommand: "ng build", Stderr: "broken", ExitCode: 1},
		nil,
	}}

	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: 2})
	outcome := d.Run(context.Background(), "goal")

	if !outcome.Succeeded() {
		t.Fatalf("outcome = %+v, want success", outcome)
	}
	if len(ch.Prompts) != 4 {
		t.Errorf("prompts = %d, want 4", len(ch.Prompts))
	}
	// The re-ask tells the oracle its previous answer was unusable.
	if !strings.Contains(ch.Prompts[3], "no usable steps") {
		t.Error("re-ask prompt missing unparseable note")
	}
}

func TestRun_OracleFailureAborts(t *testing.T) {
	ch := &oracle.Scripted{Replies: []oracle.Reply{
		{Err: oracle.ErrTimeout},
	}}
	d := New(ch, defaultVerifier(), &fakeExecutor{}, Options{MaxRetries: 3})

	outcome := d.Run(context.Background(), "goal")
	if outcome.Succeeded() || outcome.Reason != ReasonOracleFailure {
		t.Errorf("outcome = %+v, want oracle failure abort", outcome)
	}
}

func TestRun_RequirementsParseFailureAborts(t *testing.T) {
	ch := oracle.NewScripted("I can't help with that.")
	d := New(ch, defaultVerifier(), &fakeExecutor{}, Options{MaxRetries: 3})

	outcome := d.Run(context.Background(), "goal")
	if outcome.Reason != ReasonParseFailure {
		t.Errorf("reason = %s, want %s", outcome.Reason, ReasonParseFailure)
	}
}

// cancellingExecutor cancels the run's context during a chosen Execute call,
// as an interrupt arriving mid-step would.
type cancellingExecutor struct {
	inner      *fakeExecutor
	cancel     context.CancelFunc
	cancelCall int // 1-based Execute call to cancel during
}

func (c *cancellingExecutor) Execute(ctx context.Context, p *plan.Plan) (*engine.Record, *engine.FailureContext) {
	if c.inner.calls+1 == c.cancelCall {
		c.cancel()
	}
	return c.inner.Execute(ctx, p)
}

func TestRun_CancelledOnLastAttemptReportsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch := oracle.NewScripted(
		"- node\n",
		"CMD: ng build\n",
		"CMD: npx ng build\n",
	)
	inner := &fakeExecutor{failures: []*engine.FailureContext{
		{FailedStep: "run command", FailedCommand: "ng build", Stderr: "broken", ExitCode: 1},
		{FailedStep: "run command", FailedCommand: "npx ng build", Stderr: "still broken", ExitCode: 1},
	}}
	exec := &cancellingExecutor{inner: inner, cancel: cancel, cancelCall: 2}

	// Budget and cancellation run out together; cancellation wins.
	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: 1})
	outcome := d.Run(ctx, "goal")

	if outcome.Reason != ReasonCancelled {
		t.Errorf("reason = %s, want %s", outcome.Reason, ReasonCancelled)
	}
	if inner.calls != 2 {
		t.Errorf("execute calls = %d, want 2", inner.calls)
	}
}

func TestRun_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ch := oracle.NewScripted("- node\n")
	d := New(ch, defaultVerifier(), &fakeExecutor{}, Options{MaxRetries: 3})

	outcome := d.Run(ctx, "goal")
	if outcome.Reason != ReasonCancelled {
		t.Errorf("reason = %s, want %s", outcome.Reason, ReasonCancelled)
	}
	if len(ch.Prompts) != 0 {
		t.Errorf("no oracle calls expected after cancellation, got %d", len(ch.Prompts))
	}
}

func TestRun_TerminalStateIsFinal(t *testing.T) {
	ch := oracle.NewScripted(
		"- node\n",
		"FILE: out.txt\n```\nok\n```\n",
	)
	exec := &fakeExecutor{failures: []*engine.FailureContext{nil}}
	d := New(ch, defaultVerifier(), exec, Options{MaxRetries: 3})

	d.Run(context.Background(), "goal")
	if d.State() != StateSuccess {
		t.Errorf("state = %s, want %s", d.State(), StateSuccess)
	}
	if len(ch.Prompts) != 2 {
		t.Errorf("prompts = %d, want 2 (no calls after terminal state)", len(ch.Prompts))
	}
}
