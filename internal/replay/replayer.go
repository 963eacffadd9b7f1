package replay

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/sonnylabs/sonny/internal/session"
)

// Replayer reads and formats run logs.
type Replayer struct {
	output    io.Writer
	verbosity int // 0=normal, 1=verbose (-v), 2=very verbose (-vv)
}

// New creates a new Replayer.
func New(output io.Writer, verbosity int) *Replayer {
	return &Replayer{output: output, verbosity: verbosity}
}

// ReplayFile loads and renders a run log from a file.
func (r *Replayer) ReplayFile(path string) error {
	run, err := session.LoadFile(path)
	if err != nil {
		return err
	}
	return r.Replay(run)
}

// ReplayFileInteractive loads and renders with an interactive pager.
func (r *Replayer) ReplayFileInteractive(path string) error {
	run, err := session.LoadFile(path)
	if err != nil {
		return err
	}

	var buf strings.Builder
	oldOutput := r.output
	r.output = &buf
	err = r.Replay(run)
	r.output = oldOutput
	if err != nil {
		return err
	}

	p := NewPager(fmt.Sprintf("Run: %s", run.ID))
	return p.Run(buf.String())
}

// ReplayFileLive renders with live file watching: the timeline re-renders
// whenever the run log grows.
func (r *Replayer) ReplayFileLive(path string) error {
	renderFunc := func() (string, error) {
		run, err := session.LoadFile(path)
		if err != nil {
			return "", err
		}

		var buf strings.Builder
		oldOutput := r.output
		r.output = &buf
		err = r.Replay(run)
		r.output = oldOutput
		if err != nil {
			return "", err
		}
		return buf.String(), nil
	}

	run, err := session.LoadFile(path)
	if err != nil {
		return err
	}

	p := NewPager(fmt.Sprintf("Run: %s (LIVE)", run.ID))
	return p.RunLive(path, renderFunc)
}

// Replay outputs a formatted timeline of run events.
func (r *Replayer) Replay(run *session.Run) error {
	r.printHeader(run)
	r.printTimeline(run)
	r.printSummary(run)
	return nil
}

func (r *Replayer) printHeader(run *session.Run) {
	fmt.Fprintln(r.output)
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("RUN"), valueStyle.Render(run.ID))
	fmt.Fprintln(r.output, divider)
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Goal:     "), valueStyle.Render(run.Goal))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Workspace:"), valueStyle.Render(run.Workspace))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Status:   "), statusStyle(run.Status).Render(run.Status))
	fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Created:  "), valueStyle.Render(run.CreatedAt.Format(time.RFC3339)))
	fmt.Fprintln(r.output)
}

func (r *Replayer) printTimeline(run *session.Run) {
	fmt.Fprintf(r.output, "%s %s\n", titleStyle.Render("TIMELINE"), dimStyle.Render(fmt.Sprintf("(%d events)", len(run.Events))))
	fmt.Fprintln(r.output, divider)

	for i := range run.Events {
		r.formatEvent(&run.Events[i])
	}
}

func (r *Replayer) printSummary(run *session.Run) {
	fmt.Fprintln(r.output)
	fmt.Fprintln(r.output, divider)

	switch run.Status {
	case session.StatusSuccess:
		fmt.Fprintln(r.output, successStyle.Render("SUCCESS"))
	case session.StatusAborted:
		fmt.Fprintf(r.output, "%s %s\n", errorStyle.Render("ABORTED:"), valueStyle.Render(run.Reason))
	default:
		fmt.Fprintln(r.output, warnStyle.Render("RUNNING"))
	}

	stats := computeStats(run)
	fmt.Fprintf(r.output, "%s %d turns, %d steps (%d failed), %d corrections\n",
		labelStyle.Render("Totals:"), stats.turns, stats.steps, stats.failedSteps, stats.corrections)
	if stats.duration > 0 {
		fmt.Fprintf(r.output, "%s %s\n", labelStyle.Render("Elapsed:"), stats.duration.Round(time.Second))
	}
}

type runStats struct {
	turns       int
	steps       int
	failedSteps int
	corrections int
	duration    time.Duration
}

func computeStats(run *session.Run) runStats {
	var s runStats
	for _, e := range run.Events {
		switch e.Type {
		case session.EventTurnPrompt:
			s.turns++
		case session.EventStepResult:
			s.steps++
			if e.Success != nil && !*e.Success {
				s.failedSteps++
			}
		case session.EventCorrection:
			s.corrections++
		}
	}
	if !run.UpdatedAt.IsZero() && run.UpdatedAt.After(run.CreatedAt) {
		s.duration = run.UpdatedAt.Sub(run.CreatedAt)
	}
	return s
}
