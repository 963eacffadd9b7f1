package replay

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/sonnylabs/sonny/internal/session"
)

// formatEvent prints one timeline row: "  seq │ hh:mm:ss │ description".
func (r *Replayer) formatEvent(event *session.Event) {
	prefix := fmt.Sprintf("%s │ %s │",
		seqStyle.Render(fmt.Sprintf("%d", event.SeqID)),
		dimStyle.Render(event.Timestamp.Format("15:04:05")))

	switch event.Type {
	case session.EventTurnPrompt:
		fmt.Fprintf(r.output, "%s %s %s %s\n", prefix,
			turnStyle.Render("→ ASK"),
			valueStyle.Render(event.Kind),
			dimStyle.Render(fmt.Sprintf("(turn %d)", event.Turn)))
		if r.verbosity >= 1 {
			r.printContent(event.Content)
		}

	case session.EventTurnResponse:
		if event.Error != "" {
			fmt.Fprintf(r.output, "%s %s %s\n", prefix,
				errorStyle.Render("✗ ORACLE"),
				valueStyle.Render(event.Error))
			return
		}
		fmt.Fprintf(r.output, "%s %s %s %s\n", prefix,
			turnStyle.Render("← REPLY"),
			valueStyle.Render(event.Kind),
			dimStyle.Render(fmt.Sprintf("(%d chars)", len(event.Content))))
		if r.verbosity >= 1 {
			r.printContent(event.Content)
		}

	case session.EventToolsVerified:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			toolStyle.Render("TOOLS"),
			valueStyle.Render(condense(event.Content, 80)))

	case session.EventPlanParsed:
		fp := event.Content
		if len(fp) > 12 {
			fp = fp[:12]
		}
		fmt.Fprintf(r.output, "%s %s %s %s\n", prefix,
			planStyle.Render("PLAN"),
			valueStyle.Render(fmt.Sprintf("%d steps", event.Step)),
			dimStyle.Render(fp))

	case session.EventParseError:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			errorStyle.Render("✗ PARSE"),
			valueStyle.Render(event.Error))

	case session.EventStepStart:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			dimStyle.Render(fmt.Sprintf("step %d", event.Step)),
			valueStyle.Render(stepDetail(event)))

	case session.EventStepResult:
		r.formatStepResult(prefix, event)

	case session.EventCorrection:
		fmt.Fprintf(r.output, "%s %s %s\n", prefix,
			warnStyle.Render(fmt.Sprintf("CORRECTION %d", event.Attempt)),
			dimStyle.Render(condense(event.Error, 60)))

	default:
		fmt.Fprintf(r.output, "%s %s\n", prefix, dimStyle.Render(event.Type))
	}
}

func (r *Replayer) formatStepResult(prefix string, event *session.Event) {
	var mark string
	switch event.Outcome {
	case "succeeded":
		mark = successStyle.Render("✓")
	case "skipped":
		mark = warnStyle.Render("↷")
	default:
		mark = errorStyle.Render("✗")
	}

	detail := stepDetail(event)
	timing := ""
	if event.DurationMs > 0 {
		timing = dimStyle.Render(fmt.Sprintf(" %dms", event.DurationMs))
	}
	fmt.Fprintf(r.output, "%s %s %s %s%s\n", prefix, mark,
		dimStyle.Render(fmt.Sprintf("step %d", event.Step)),
		valueStyle.Render(detail), timing)

	if event.Outcome == "failed" {
		if event.ExitCode != 0 {
			fmt.Fprintf(r.output, "      │          │   %s\n",
				errorStyle.Render(fmt.Sprintf("exit code %d", event.ExitCode)))
		}
		if event.Error != "" {
			limit := 5
			if r.verbosity >= 1 {
				limit = 0
			}
			r.printBlock("── STDERR ──", event.Error, limit)
		}
	}
}

// stepDetail describes the step by what it did.
func stepDetail(event *session.Event) string {
	switch event.StepKind {
	case "write_file":
		return "write " + event.Path
	default:
		return condense(event.Command, 70)
	}
}

// printContent prints verbose content with timeline indentation.
func (r *Replayer) printContent(content string) {
	for _, line := range strings.Split(strings.TrimRight(content, "\n"), "\n") {
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

// printBlock prints a labelled content block, truncated to maxLines when
// maxLines is positive.
func (r *Replayer) printBlock(label, content string, maxLines int) {
	fmt.Fprintf(r.output, "      │          │   %s\n", blockHeaderStyle.Render(label))
	lines := strings.Split(strings.TrimRight(content, "\n"), "\n")
	for i, line := range lines {
		if maxLines > 0 && i >= maxLines {
			fmt.Fprintf(r.output, "      │          │   %s\n",
				dimStyle.Render(fmt.Sprintf("... (%d more lines)", len(lines)-maxLines)))
			break
		}
		fmt.Fprintf(r.output, "      │          │   %s\n", line)
	}
}

// condense flattens a string to one line and truncates it for display.
func condense(s string, maxLen int) string {
	s = strings.TrimSpace(strings.ReplaceAll(s, "\n", " "))
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}

// statusStyle returns the style for a run status.
func statusStyle(status string) lipgloss.Style {
	switch status {
	case session.StatusSuccess:
		return successStyle
	case session.StatusAborted:
		return errorStyle
	default:
		return warnStyle
	}
}
