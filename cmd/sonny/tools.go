package main

import (
	"context"
	"fmt"

	"github.com/sonnylabs/sonny/internal/logging"
	"github.com/sonnylabs/sonny/internal/toolcheck"
)

func (t *ToolsCmd) Run(cli *CLI) error {
	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}

	catalogPath := t.Catalog
	if catalogPath == "" {
		catalogPath = cfg.Tools.Catalog
	}
	catalog := toolcheck.DefaultCatalog()
	if catalogPath != "" {
		catalog, err = toolcheck.LoadCatalog(catalogPath)
		if err != nil {
			return fmt.Errorf("tool catalog: %w", err)
		}
	}

	logger := logging.New()
	logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	verifier := toolcheck.NewVerifier(catalog, cfg.ToolCheckTimeout(), logger)

	statuses := verifier.VerifyAll(context.Background(), t.Tools)
	fmt.Print(toolcheck.FormatStatuses(statuses))
	return nil
}
