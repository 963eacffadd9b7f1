// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
)

// Config represents the orchestrator configuration.
type Config struct {
	Workspace WorkspaceConfig `toml:"workspace"`
	Oracle    OracleConfig    `toml:"oracle"`
	Limits    LimitsConfig    `toml:"limits"`
	Tools     ToolsConfig     `toml:"tools"`
	Events    EventsConfig    `toml:"events"`
	Telemetry TelemetryConfig `toml:"telemetry"`
	Logging   LoggingConfig   `toml:"logging"`
}

// WorkspaceConfig controls where runs build their projects and keep logs.
type WorkspaceConfig struct {
	Root    string `toml:"root"`     // Base directory; each run gets a subdirectory
	RunLogs string `toml:"run_logs"` // Directory for JSONL run logs
}

// OracleConfig points at the local browser bridge.
type OracleConfig struct {
	BridgeURL      string `toml:"bridge_url"`      // e.g. http://127.0.0.1:8377
	Site           string `toml:"site"`            // Conversational AI site the bridge drives
	TimeoutSeconds int    `toml:"timeout_seconds"` // Per-ask round-trip budget
}

// LimitsConfig bounds the correction loop and step execution.
type LimitsConfig struct {
	MaxRetries            int `toml:"max_retries"`             // Correction turns before aborting
	CommandTimeoutSeconds int `toml:"command_timeout_seconds"` // Per-command budget
	ToolCheckSeconds      int `toml:"tool_check_seconds"`      // Per version probe
}

// ToolsConfig points at an optional tool catalog override file.
type ToolsConfig struct {
	Catalog string `toml:"catalog"` // YAML file merged over the built-in catalog
}

// EventsConfig enables publishing run events to NATS.
type EventsConfig struct {
	URL     string `toml:"url"`     // NATS server URL; empty disables publishing
	Subject string `toml:"subject"` // Subject prefix for run events
}

// TelemetryConfig contains OTLP tracing settings.
type TelemetryConfig struct {
	Enabled  bool   `toml:"enabled"`
	Endpoint string `toml:"endpoint"` // OTLP endpoint (e.g., localhost:4317)
	Protocol string `toml:"protocol"` // grpc (default) or http
	Insecure bool   `toml:"insecure"` // Disable TLS (default false)
}

// LoggingConfig controls console log output.
type LoggingConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// New creates a new config with defaults.
func New() *Config {
	return &Config{
		Workspace: WorkspaceConfig{
			Root:    "~/sonny",
			RunLogs: "~/sonny/runs",
		},
		Oracle: OracleConfig{
			BridgeURL:      "http://127.0.0.1:8377",
			Site:           "chatgpt",
			TimeoutSeconds: 180,
		},
		Limits: LimitsConfig{
			MaxRetries:            3,
			CommandTimeoutSeconds: 120,
			ToolCheckSeconds:      15,
		},
		Events: EventsConfig{
			Subject: "sonny.runs",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// LoadFile loads configuration from a TOML file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := New()
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

// LoadDefault loads sonny.toml from the current directory, falling back to
// pure defaults when the file does not exist.
func LoadDefault() (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get current directory: %w", err)
	}
	path := filepath.Join(cwd, "sonny.toml")
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return New(), nil
	}
	return LoadFile(path)
}

// OracleTimeout returns the per-ask timeout as a duration.
func (c *Config) OracleTimeout() time.Duration {
	return time.Duration(c.Oracle.TimeoutSeconds) * time.Second
}

// CommandTimeout returns the per-command timeout as a duration.
func (c *Config) CommandTimeout() time.Duration {
	return time.Duration(c.Limits.CommandTimeoutSeconds) * time.Second
}

// ToolCheckTimeout returns the per-probe timeout as a duration.
func (c *Config) ToolCheckTimeout() time.Duration {
	return time.Duration(c.Limits.ToolCheckSeconds) * time.Second
}

// WorkspaceRoot expands a leading ~ in the workspace root.
func (c *Config) WorkspaceRoot() string {
	return expandHome(c.Workspace.Root)
}

// RunLogDir expands a leading ~ in the run log directory.
func (c *Config) RunLogDir() string {
	return expandHome(c.Workspace.RunLogs)
}

func expandHome(path string) string {
	if len(path) >= 2 && path[:2] == "~/" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
