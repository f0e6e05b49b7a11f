// Package main provides the caseflow binary entry point.
// Caseflow derives workflow state for personal injury cases from their
// raw records and keeps the persisted state records in sync.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/meridianlegal/caseflow/config"
	"github.com/meridianlegal/caseflow/engine"
	"github.com/meridianlegal/caseflow/migrate"
)

const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "caseflow"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

type rootFlags struct {
	configPath string
	workspace  string
	natsURL    string
	logLevel   string
}

func rootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:   appName,
		Short: "Case workflow state derivation engine",
		Long: `Caseflow derives the workflow position of personal injury cases
from their raw records: which phase a case is in, which landmarks are
blocking it, which workflows still need to run, and how close the
statute of limitations is.

The derived state is recomputed from the records on every run; the
persisted record only accumulates forward progress and manual
overrides.`,
		SilenceUsage: true,
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&flags.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&flags.workspace, "workspace", "", "Workspace directory containing cases/")
	pf.StringVar(&flags.natsURL, "nats-url", "", "NATS server URL (default: embedded server)")
	pf.StringVar(&flags.logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(
		statusCmd(flags),
		syncCmd(flags),
		initCmd(flags),
		migrateCmd(flags),
		watchCmd(flags),
		configCmd(flags),
		versionCmd(),
	)
	return cmd
}

func configCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage caseflow configuration",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: "Write a default user config file if none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger(flags.logLevel)
			if err := config.NewLoader(logger).EnsureUserConfig(); err != nil {
				return fmt.Errorf("write user config: %w", err)
			}
			return nil
		},
	})
	return cmd
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s (build: %s)\n", appName, Version, BuildTime)
		},
	}
}

func statusCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status <case-id>",
		Short: "Derive and display a case's workflow position",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				res, err := app.Engine.Derive(ctx, args[0])
				if err != nil {
					return err
				}
				persisted, err := app.Engine.GetState(ctx, args[0])
				if err != nil {
					return err
				}
				renderState(cmd.OutOrStdout(), res.State, persisted)
				return nil
			})
		},
	}
}

func syncCmd(flags *rootFlags) *cobra.Command {
	var opts engine.SyncOptions

	cmd := &cobra.Command{
		Use:   "sync <case-id>",
		Short: "Derive a case and write the corrections to its state record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				outcome, err := app.Engine.SyncCase(ctx, args[0], opts)
				if err != nil {
					return err
				}
				renderSyncOutcome(cmd.OutOrStdout(), outcome, opts.DryRun)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report corrections without writing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Write the record even with no corrections")
	return cmd
}

func initCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "init <case-id>",
		Short: "Create the state record for a case that has none",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				state, err := app.Engine.InitCase(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Created state record for %s in %s\n",
					state.CaseID, state.CurrentPhase)
				return nil
			})
		},
	}
}

func migrateCmd(flags *rootFlags) *cobra.Command {
	var opts migrate.Options

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Backfill state records for every case in the workspace",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				if opts.Concurrency == 0 {
					opts.Concurrency = app.Config.Migration.Concurrency
				}
				runner := migrate.NewRunner(app.Engine, app.Logger)
				summary, err := runner.Run(ctx, opts)
				if summary != nil {
					renderMigrationSummary(cmd.OutOrStdout(), summary, opts.DryRun)
				}
				if err != nil {
					return err
				}
				if summary.HasFailures() {
					return fmt.Errorf("%d of %d cases failed", summary.Errored, len(summary.Results))
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&opts.DryRun, "dry-run", false, "Report changes without writing")
	cmd.Flags().BoolVar(&opts.Force, "force", false, "Rewrite records even with no corrections")
	cmd.Flags().StringSliceVar(&opts.Cases, "case", nil, "Restrict to the given case ids (repeatable)")
	cmd.Flags().IntVar(&opts.Concurrency, "concurrency", 0, "Parallel case limit (default from config)")
	return cmd
}

func watchCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Watch the workspace and re-sync cases as records change",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), flags, func(ctx context.Context, app *App) error {
				return app.Watch(ctx, cmd.OutOrStdout())
			})
		},
	}
}

// withApp loads config, starts the app, runs fn, and shuts down.
func withApp(parent context.Context, flags *rootFlags, fn func(context.Context, *App) error) error {
	logger := newLogger(flags.logLevel)
	slog.SetDefault(logger)

	cfg, err := loadConfig(flags, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	app, err := NewApp(cfg, logger)
	if err != nil {
		return err
	}
	if err := app.Start(ctx); err != nil {
		return err
	}
	defer app.Shutdown(10 * time.Second)

	return fn(ctx, app)
}

func newLogger(logLevel string) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func loadConfig(flags *rootFlags, logger *slog.Logger) (*config.Config, error) {
	var cfg *config.Config
	var err error

	if flags.configPath != "" {
		cfg, err = config.LoadFromFile(flags.configPath)
		if err != nil {
			return nil, err
		}
		if verr := cfg.Validate(); verr != nil {
			return nil, verr
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
		if err != nil {
			return nil, err
		}
	}

	// Flags override file config.
	if flags.workspace != "" {
		cfg.Workspace.Path = flags.workspace
	}
	if flags.natsURL != "" {
		cfg.NATS.URL = flags.natsURL
		cfg.NATS.Embedded = false
	}
	return cfg, nil
}
