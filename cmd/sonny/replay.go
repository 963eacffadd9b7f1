package main

import (
	"fmt"
	"os"

	"github.com/sonnylabs/sonny/internal/replay"
	"github.com/sonnylabs/sonny/internal/session"
)

func (r *ReplayCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	// Accept either a path to a .jsonl file or a bare run ID.
	path := r.RunRef
	if _, err := os.Stat(path); err != nil {
		store, serr := session.NewFileStore(cfg.RunLogDir())
		if serr != nil {
			return serr
		}
		path = store.Path(r.RunRef)
		if _, err := os.Stat(path); err != nil {
			return fmt.Errorf("no run log at %q or run ID %q", r.RunRef, r.RunRef)
		}
	}

	rep := replay.New(os.Stdout, r.Verbose)
	switch {
	case r.Follow:
		return rep.ReplayFileLive(path)
	case r.NoPager:
		return rep.ReplayFile(path)
	default:
		return rep.ReplayFileInteractive(path)
	}
}
