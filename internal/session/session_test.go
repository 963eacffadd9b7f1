package session

import (
	"os"
	"strings"
	"testing"
)

func TestRun_Create(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store error: %v", err)
	}

	run, err := store.NewRun("build a hello app", "/tmp/ws/hello_120000")
	if err != nil {
		t.Fatalf("create error: %v", err)
	}

	if run.ID == "" {
		t.Error("run ID should not be empty")
	}
	if run.Goal != "build a hello app" {
		t.Errorf("goal = %q", run.Goal)
	}
	if run.Status != StatusRunning {
		t.Errorf("status = %s, want %s", run.Status, StatusRunning)
	}
	if _, err := os.Stat(store.Path(run.ID)); err != nil {
		t.Errorf("run file not created: %v", err)
	}
}

func TestRun_UniqueIDs(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store error: %v", err)
	}

	ids := make(map[string]bool)
	for i := 0; i < 100; i++ {
		run, _ := store.NewRun("goal", "ws")
		if ids[run.ID] {
			t.Errorf("duplicate run ID: %s", run.ID)
		}
		ids[run.ID] = true
	}
}

func TestRun_EventSequencing(t *testing.T) {
	run := &Run{}
	first := run.AddEvent(Event{Type: EventTurnPrompt, Turn: 1, Content: "list tools"})
	second := run.AddEvent(Event{Type: EventTurnResponse, Turn: 1, Content: "- node"})

	if first != 1 || second != 2 {
		t.Errorf("seq ids = %d, %d; want 1, 2", first, second)
	}
	if run.Events[0].Timestamp.IsZero() {
		t.Error("timestamp should be set automatically")
	}
}

func TestRun_SaveLoadRoundTrip(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store error: %v", err)
	}

	run, _ := store.NewRun("make hello.txt", "ws")
	run.AddEvent(Event{Type: EventTurnPrompt, Turn: 1, Kind: "requirements", Content: "what do I need?"})
	run.AddEvent(Event{Type: EventStepResult, Step: 1, StepKind: "write_file", Path: "hello.txt", Outcome: "succeeded"})
	run.Status = StatusSuccess
	if err := store.Save(run); err != nil {
		t.Fatalf("save error: %v", err)
	}

	loaded, err := store.Load(run.ID)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if loaded.Goal != "make hello.txt" {
		t.Errorf("goal = %q", loaded.Goal)
	}
	if loaded.Status != StatusSuccess {
		t.Errorf("status = %s", loaded.Status)
	}
	if len(loaded.Events) != 2 {
		t.Fatalf("events = %d, want 2", len(loaded.Events))
	}
	if loaded.Events[1].Path != "hello.txt" || loaded.Events[1].Outcome != "succeeded" {
		t.Errorf("step event not restored: %+v", loaded.Events[1])
	}

	// Sequence counter continues after load.
	if seq := loaded.AddEvent(Event{Type: EventCorrection}); seq != 3 {
		t.Errorf("next seq = %d, want 3", seq)
	}
}

func TestRun_JSONLFormat(t *testing.T) {
	store, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatalf("create store error: %v", err)
	}

	run, _ := store.NewRun("goal", "ws")
	run.AddEvent(Event{Type: EventTurnPrompt, Turn: 1})
	run.Status = StatusAborted
	run.Reason = "retry_budget_exhausted"
	store.Save(run)

	data, err := os.ReadFile(store.Path(run.ID))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected header+event+footer, got %d lines", len(lines))
	}
	if !strings.Contains(lines[0], `"_type":"header"`) {
		t.Errorf("first line is not a header: %s", lines[0])
	}
	if !strings.Contains(lines[2], `"retry_budget_exhausted"`) {
		t.Errorf("footer missing abort reason: %s", lines[2])
	}
}
