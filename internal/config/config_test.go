package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestNew_Defaults(t *testing.T) {
	cfg := New()
	if cfg.Limits.MaxRetries != 3 {
		t.Errorf("max retries = %d, want 3", cfg.Limits.MaxRetries)
	}
	if cfg.CommandTimeout() != 120*time.Second {
		t.Errorf("command timeout = %s", cfg.CommandTimeout())
	}
	if cfg.Oracle.BridgeURL == "" || cfg.Oracle.Site == "" {
		t.Error("oracle defaults missing")
	}
}

func TestLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sonny.toml")
	content := `
[workspace]
root = "/srv/builds"

[oracle]
bridge_url = "http://localhost:9000"
timeout_seconds = 60

[limits]
max_retries = 5

[events]
url = "nats://localhost:4222"
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("load error: %v", err)
	}
	if cfg.Workspace.Root != "/srv/builds" {
		t.Errorf("workspace root = %q", cfg.Workspace.Root)
	}
	if cfg.Oracle.BridgeURL != "http://localhost:9000" {
		t.Errorf("bridge url = %q", cfg.Oracle.BridgeURL)
	}
	if cfg.OracleTimeout() != 60*time.Second {
		t.Errorf("oracle timeout = %s", cfg.OracleTimeout())
	}
	if cfg.Limits.MaxRetries != 5 {
		t.Errorf("max retries = %d", cfg.Limits.MaxRetries)
	}
	// Unset sections keep their defaults.
	if cfg.Limits.CommandTimeoutSeconds != 120 {
		t.Errorf("command timeout = %d, want default 120", cfg.Limits.CommandTimeoutSeconds)
	}
	if cfg.Events.URL != "nats://localhost:4222" {
		t.Errorf("events url = %q", cfg.Events.URL)
	}
	if cfg.Events.Subject != "sonny.runs" {
		t.Errorf("events subject = %q, want default", cfg.Events.Subject)
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.toml")
	os.WriteFile(path, []byte("workspace = [broken"), 0644)

	if _, err := LoadFile(path); err == nil {
		t.Error("expected parse error")
	}
}

func TestWorkspaceRoot_ExpandsHome(t *testing.T) {
	cfg := New()
	cfg.Workspace.Root = "~/projects"
	root := cfg.WorkspaceRoot()
	if root == "~/projects" {
		t.Error("home directory not expanded")
	}
	if filepath.Base(root) != "projects" {
		t.Errorf("root = %q", root)
	}
}
