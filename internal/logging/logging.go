// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// ParseLevel maps a config string to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger provides structured logging to stdout.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRunID returns a new logger tagged with the given run ID.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		if l.runID != "" {
			fields[0]["run_id"] = l.runID
		}
		fieldStr = formatFields(fields[0])
	} else if l.runID != "" {
		fieldStr = formatFields(map[string]interface{}{"run_id": l.runID})
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// RunStart logs the start of a goal run.
func (l *Logger) RunStart(goal string) {
	l.Info("run_start", map[string]interface{}{
		"goal": goal,
	})
}

// RunComplete logs the terminal outcome of a run.
func (l *Logger) RunComplete(status string, duration time.Duration) {
	l.Info("run_complete", map[string]interface{}{
		"status":   status,
		"duration": duration.String(),
	})
}

// TurnStart logs a conversational turn being sent to the oracle.
func (l *Logger) TurnStart(turn int, kind string) {
	l.Info("turn_start", map[string]interface{}{
		"turn": turn,
		"kind": kind,
	})
}

// TurnComplete logs a received oracle response.
func (l *Logger) TurnComplete(turn int, duration time.Duration, chars int) {
	l.Debug("turn_complete", map[string]interface{}{
		"turn":     turn,
		"duration": duration.String(),
		"chars":    chars,
	})
}

// StepStart logs the start of a plan step.
func (l *Logger) StepStart(index int, kind, detail string) {
	l.Info("step_start", map[string]interface{}{
		"step":   index,
		"kind":   kind,
		"detail": detail,
	})
}

// StepResult logs the outcome of a plan step.
func (l *Logger) StepResult(index int, duration time.Duration, err error) {
	fields := map[string]interface{}{
		"step":     index,
		"duration": duration.String(),
	}
	if err != nil {
		fields["error"] = err.Error()
		l.Error("step_failed", fields)
	} else {
		l.Debug("step_ok", fields)
	}
}

// ToolCheck logs a tool verification result.
func (l *Logger) ToolCheck(tool string, installed bool, version string) {
	l.Info("tool_check", map[string]interface{}{
		"tool":      tool,
		"installed": installed,
		"version":   version,
	})
}

// Correction logs a correction turn and the remaining retry budget.
func (l *Logger) Correction(attempt, remaining int, reason string) {
	l.Warn("correction", map[string]interface{}{
		"attempt":   attempt,
		"remaining": remaining,
		"reason":    reason,
	})
}
