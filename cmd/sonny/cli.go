// Package main defines the CLI structure using kong.
package main

import (
	"fmt"

	"github.com/alecthomas/kong"
)

// CLI defines the command-line interface.
type CLI struct {
	Config string `help:"Config file path (default: ./sonny.toml)" type:"path"`

	Run     RunCmd     `cmd:"" help:"Drive a goal from requirements to a running result"`
	Tools   ToolsCmd   `cmd:"" help:"Check which required tools are installed"`
	Replay  ReplayCmd  `cmd:"" help:"Render or follow a run log"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd drives one goal end to end.
type RunCmd struct {
	Goal       []string `arg:"" help:"The goal, in plain language"`
	Workspace  string   `help:"Workspace root (overrides config)"`
	Bridge     string   `help:"Browser bridge URL (overrides config)"`
	Site       string   `help:"Conversational AI site the bridge drives"`
	MaxRetries int      `help:"Correction turns before aborting (overrides config)"`
	Verbose    bool     `short:"v" help:"Debug logging"`
}

// ToolsCmd verifies a tool list against the local system.
type ToolsCmd struct {
	Tools   []string `arg:"" optional:"" help:"Tool names to check (default: node, npm, git)"`
	Catalog string   `help:"YAML tool catalog merged over the built-in one"`
}

// ReplayCmd renders a run log.
type ReplayCmd struct {
	RunRef  string `arg:"" name:"run" help:"Run log path or run ID"`
	Follow  bool   `short:"f" help:"Watch the log and update as the run progresses"`
	NoPager bool   `help:"Print to stdout instead of the interactive pager"`
	Verbose int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
}

// VersionCmd shows version information.
type VersionCmd struct{}

func (VersionCmd) Run(*CLI) error {
	fmt.Printf("sonny version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	return nil
}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
