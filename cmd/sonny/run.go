package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/sonnylabs/sonny/internal/config"
	"github.com/sonnylabs/sonny/internal/driver"
	"github.com/sonnylabs/sonny/internal/engine"
	"github.com/sonnylabs/sonny/internal/eventing"
	"github.com/sonnylabs/sonny/internal/logging"
	"github.com/sonnylabs/sonny/internal/oracle"
	"github.com/sonnylabs/sonny/internal/session"
	"github.com/sonnylabs/sonny/internal/telemetry"
	"github.com/sonnylabs/sonny/internal/toolcheck"
)

// loadConfig loads the config file named on the command line, or sonny.toml
// from the current directory, or pure defaults.
func loadConfig(cli *CLI) (*config.Config, error) {
	if cli.Config != "" {
		return config.LoadFile(cli.Config)
	}
	return config.LoadDefault()
}

func (r *RunCmd) Run(cli *CLI) error {
	goal := strings.TrimSpace(strings.Join(r.Goal, " "))
	if goal == "" {
		return fmt.Errorf("goal must not be empty")
	}

	cfg, err := loadConfig(cli)
	if err != nil {
		return err
	}
	if r.Workspace != "" {
		cfg.Workspace.Root = r.Workspace
	}
	if r.Bridge != "" {
		cfg.Oracle.BridgeURL = r.Bridge
	}
	if r.Site != "" {
		cfg.Oracle.Site = r.Site
	}
	if r.MaxRetries > 0 {
		cfg.Limits.MaxRetries = r.MaxRetries
	}

	logger := logging.New()
	if r.Verbose {
		logger.SetLevel(logging.LevelDebug)
	} else {
		logger.SetLevel(logging.ParseLevel(cfg.Logging.Level))
	}

	// Interrupts cancel between protocol states; an in-flight step finishes.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown, err := telemetry.Init(ctx, telemetry.Config{
		Enabled:  cfg.Telemetry.Enabled,
		Endpoint: cfg.Telemetry.Endpoint,
		Protocol: cfg.Telemetry.Protocol,
		Insecure: cfg.Telemetry.Insecure,
	})
	if err != nil {
		return fmt.Errorf("telemetry init: %w", err)
	}
	defer shutdown(context.Background())

	store, err := session.NewFileStore(cfg.RunLogDir())
	if err != nil {
		return fmt.Errorf("run log store: %w", err)
	}

	workdir := filepath.Join(cfg.WorkspaceRoot(), workspaceName(goal))
	if err := os.MkdirAll(workdir, 0755); err != nil {
		return fmt.Errorf("create workspace: %w", err)
	}

	run, err := store.NewRun(goal, workdir)
	if err != nil {
		return err
	}
	logger = logger.WithRunID(run.ID)

	bridge := oracle.NewBridge(cfg.Oracle.BridgeURL, cfg.Oracle.Site, cfg.OracleTimeout(), logger)
	if err := bridge.Open(ctx); err != nil {
		return fmt.Errorf("browser bridge at %s: %w", cfg.Oracle.BridgeURL, err)
	}

	catalog := toolcheck.DefaultCatalog()
	if cfg.Tools.Catalog != "" {
		catalog, err = toolcheck.LoadCatalog(cfg.Tools.Catalog)
		if err != nil {
			return fmt.Errorf("tool catalog: %w", err)
		}
	}
	verifier := toolcheck.NewVerifier(catalog, cfg.ToolCheckTimeout(), logger)

	var events eventing.Publisher = eventing.Noop{}
	if cfg.Events.URL != "" {
		nc, err := eventing.NewNATS(cfg.Events.URL, cfg.Events.Subject, logger)
		if err != nil {
			logger.Warn("event publishing disabled", map[string]interface{}{"error": err.Error()})
		} else {
			events = nc
		}
	}
	defer events.Close()

	d := driver.New(bridge, verifier, engine.New(workdir, cfg.CommandTimeout(), logger), driver.Options{
		MaxRetries: cfg.Limits.MaxRetries,
		Logger:     logger,
		Run:        run,
		Store:      store,
		Events:     events,
	})

	fmt.Fprintf(os.Stderr, "Run %s\nWorkspace: %s\nLog: %s\n\n", run.ID, workdir, store.Path(run.ID))

	outcome := d.Run(ctx, goal)
	if outcome.Succeeded() {
		fmt.Printf("\n✓ Done. Project is in %s\n", workdir)
		return nil
	}

	if outcome.LastFailure != nil && outcome.LastFailure.Stderr != "" {
		fmt.Fprintf(os.Stderr, "\nLast failure:\n%s\n", strings.TrimSpace(outcome.LastFailure.Stderr))
	}
	return fmt.Errorf("run aborted: %s", outcome.Reason)
}

// workspaceName builds a per-run directory name from the goal, like
// "angular-todo-app_153012".
func workspaceName(goal string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(goal) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}
	slug := strings.Trim(b.String(), "-")
	for strings.Contains(slug, "--") {
		slug = strings.ReplaceAll(slug, "--", "-")
	}
	if len(slug) > 24 {
		slug = strings.Trim(slug[:24], "-")
	}
	if slug == "" {
		slug = "run"
	}
	return slug + "_" + time.Now().Format("150405")
}
