// Package session persists the event log of a run: every prompt, response,
// tool probe, step result and the terminal outcome, in JSONL form.
package session

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status constants for runs.
const (
	StatusRunning = "running"
	StatusSuccess = "success"
	StatusAborted = "aborted"
)

// Event types for the run log.
const (
	EventTurnPrompt    = "turn_prompt"    // Prompt sent to the oracle
	EventTurnResponse  = "turn_response"  // Oracle reply received
	EventToolsVerified = "tools_verified" // Local tool probe results
	EventPlanParsed    = "plan_parsed"    // A plan was accepted for execution
	EventParseError    = "parse_error"    // A response failed to parse
	EventStepStart     = "step_start"     // Plan step started
	EventStepResult    = "step_result"    // Plan step finished
	EventCorrection    = "correction"     // Correction turn issued
)

// Run is one goal's execution session.
type Run struct {
	ID        string    `json:"id"`
	Goal      string    `json:"goal"`
	Workspace string    `json:"workspace"`
	Status    string    `json:"status"`
	Reason    string    `json:"reason,omitempty"`
	Events    []Event   `json:"events"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// Internal state (not persisted)
	seqCounter uint64
	mu         sync.Mutex
}

// Event is a single entry in the run log. All replay tooling reads these.
type Event struct {
	SeqID     uint64    `json:"seq"`
	Type      string    `json:"type"`
	Timestamp time.Time `json:"timestamp"`

	// Turn context
	Turn int    `json:"turn,omitempty"` // Turn number within the run
	Kind string `json:"kind,omitempty"` // requirements, plan, correction

	// Step context
	Step     int    `json:"step,omitempty"` // 1-based step index
	StepKind string `json:"step_kind,omitempty"`
	Command  string `json:"command,omitempty"`
	Path     string `json:"path,omitempty"`
	Outcome  string `json:"outcome,omitempty"`
	ExitCode int    `json:"exit_code,omitempty"`
	Attempt  int    `json:"attempt,omitempty"` // Correction attempt number

	// Content and outcome
	Content    string `json:"content,omitempty"`
	Success    *bool  `json:"success,omitempty"`
	Error      string `json:"error,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
}

func (r *Run) nextSeqID() uint64 {
	return atomic.AddUint64(&r.seqCounter, 1)
}

// AddEvent appends an event with automatic sequencing and timestamping.
func (r *Run) AddEvent(event Event) uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()

	event.SeqID = r.nextSeqID()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	r.Events = append(r.Events, event)
	r.UpdatedAt = time.Now()
	return event.SeqID
}

// Store is the interface for run persistence.
type Store interface {
	Save(run *Run) error
	Load(id string) (*Run, error)
}

// JSONL record types for the streaming format.
const (
	RecordTypeHeader = "header"
	RecordTypeEvent  = "event"
	RecordTypeFooter = "footer"
)

// JSONLRecord is a wrapper for JSONL lines with type discrimination.
type JSONLRecord struct {
	RecordType string `json:"_type"`

	// Header fields (when _type == "header")
	ID        string    `json:"id,omitempty"`
	Goal      string    `json:"goal,omitempty"`
	Workspace string    `json:"workspace,omitempty"`
	CreatedAt time.Time `json:"created_at,omitempty"`

	// Event fields (when _type == "event")
	*Event `json:",omitempty"`

	// Footer fields (when _type == "footer")
	Status    string    `json:"status,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
}

// FileStore persists runs as one JSONL file per run.
type FileStore struct {
	dir string
}

// NewFileStore creates a file-based store rooted at dir.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &FileStore{dir: dir}, nil
}

// NewRun creates and persists a fresh run for a goal.
func (s *FileStore) NewRun(goal, workspace string) (*Run, error) {
	now := time.Now()
	run := &Run{
		ID:        uuid.NewString(),
		Goal:      goal,
		Workspace: workspace,
		Status:    StatusRunning,
		Events:    []Event{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.Save(run); err != nil {
		return nil, err
	}
	return run, nil
}

// Path returns the log file path for a run ID.
func (s *FileStore) Path(id string) string {
	return filepath.Join(s.dir, id+".jsonl")
}

// Save persists a run to disk in JSONL format: header, events, footer.
func (s *FileStore) Save(run *Run) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("create run directory: %w", err)
	}

	f, err := os.Create(s.Path(run.ID))
	if err != nil {
		return fmt.Errorf("create run file: %w", err)
	}
	defer f.Close()

	header := JSONLRecord{
		RecordType: RecordTypeHeader,
		ID:         run.ID,
		Goal:       run.Goal,
		Workspace:  run.Workspace,
		CreatedAt:  run.CreatedAt,
	}
	if err := writeLine(f, header); err != nil {
		return err
	}

	for _, evt := range run.Events {
		evtCopy := evt
		if err := writeLine(f, JSONLRecord{RecordType: RecordTypeEvent, Event: &evtCopy}); err != nil {
			return err
		}
	}

	footer := JSONLRecord{
		RecordType: RecordTypeFooter,
		Status:     run.Status,
		Reason:     run.Reason,
		UpdatedAt:  run.UpdatedAt,
	}
	return writeLine(f, footer)
}

func writeLine(f *os.File, record JSONLRecord) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		return err
	}
	_, err = f.WriteString("\n")
	return err
}

// Load reads a run back from disk.
func (s *FileStore) Load(id string) (*Run, error) {
	return LoadFile(s.Path(id))
}

// LoadFile reads a run log from an arbitrary path.
func LoadFile(path string) (*Run, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	run := &Run{Events: []Event{}}

	// bufio.Reader instead of Scanner: step output lines can be huge.
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil {
			if err == io.EOF {
				if len(bytes.TrimSpace(line)) > 0 {
					if parseErr := parseLine(line, run); parseErr != nil {
						return nil, parseErr
					}
				}
				break
			}
			return nil, fmt.Errorf("read run log: %w", err)
		}
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		if err := parseLine(line, run); err != nil {
			return nil, err
		}
	}

	if len(run.Events) > 0 {
		run.seqCounter = run.Events[len(run.Events)-1].SeqID
	}
	return run, nil
}

func parseLine(line []byte, run *Run) error {
	var record JSONLRecord
	if err := json.Unmarshal(line, &record); err != nil {
		return fmt.Errorf("parse run log line: %w", err)
	}

	switch record.RecordType {
	case RecordTypeHeader:
		run.ID = record.ID
		run.Goal = record.Goal
		run.Workspace = record.Workspace
		run.CreatedAt = record.CreatedAt
	case RecordTypeEvent:
		if record.Event != nil {
			run.Events = append(run.Events, *record.Event)
		}
	case RecordTypeFooter:
		run.Status = record.Status
		run.Reason = record.Reason
		run.UpdatedAt = record.UpdatedAt
	}
	return nil
}
