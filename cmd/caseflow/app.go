package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/nats-io/nats-server/v2/server"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/meridianlegal/caseflow/casedata"
	"github.com/meridianlegal/caseflow/config"
	"github.com/meridianlegal/caseflow/engine"
	"github.com/meridianlegal/caseflow/registry"
	"github.com/meridianlegal/caseflow/sol"
	"github.com/meridianlegal/caseflow/statestore"
	"github.com/meridianlegal/caseflow/watch"
)

// App wires the engine and its dependencies together for the CLI.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Engine   *engine.Engine
	Registry *registry.Registry

	embeddedServer *server.Server
	natsConn       *nats.Conn
	js             jetstream.JetStream
	store          *statestore.Store
}

// NewApp creates an application instance.
func NewApp(cfg *config.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	return &App{Config: cfg, Logger: logger}, nil
}

// Start connects NATS, opens the state store, and builds the engine.
func (a *App) Start(ctx context.Context) error {
	reg, err := a.loadRegistry()
	if err != nil {
		return fmt.Errorf("load phase catalog: %w", err)
	}
	a.Registry = reg

	if err := a.startNATS(); err != nil {
		return fmt.Errorf("start NATS: %w", err)
	}

	store, err := statestore.NewStore(ctx, a.js)
	if err != nil {
		return fmt.Errorf("initialize state store: %w", err)
	}
	a.store = store

	tracker, err := sol.NewTracker(a.Config.SOL)
	if err != nil {
		return fmt.Errorf("build SOL tracker: %w", err)
	}

	adapter := casedata.NewAdapter(a.Config.Workspace.Path, a.Config.Adapter.Retry, a.Logger)
	eng, err := engine.New(reg, adapter, store, tracker, a.Logger)
	if err != nil {
		return err
	}
	a.Engine = eng

	a.Logger.Debug("app started",
		"workspace", a.Config.Workspace.Path,
		"phases", reg.Len())
	return nil
}

func (a *App) loadRegistry() (*registry.Registry, error) {
	if a.Config.Registry.Path == "" {
		return registry.Default(), nil
	}
	return registry.Load(a.Config.Registry.Path)
}

func (a *App) startNATS() error {
	if a.Config.NATS.URL != "" && !a.Config.NATS.Embedded {
		// Connect to external NATS
		a.Logger.Info("connecting to NATS", "url", a.Config.NATS.URL)
		conn, err := nats.Connect(a.Config.NATS.URL)
		if err != nil {
			return fmt.Errorf("connect to NATS: %w", err)
		}
		a.natsConn = conn
	} else {
		// Start embedded NATS server
		a.Logger.Info("starting embedded NATS server")
		opts := &server.Options{
			Port:      -1, // Random available port
			JetStream: true,
			StoreDir:  filepath.Join(a.Config.Workspace.Path, ".caseflow"),
			NoLog:     true,
			NoSigs:    true,
		}

		ns, err := server.NewServer(opts)
		if err != nil {
			return fmt.Errorf("create embedded NATS server: %w", err)
		}

		go ns.Start()

		// Wait for server to be ready
		if !ns.ReadyForConnections(5 * time.Second) {
			ns.Shutdown()
			return fmt.Errorf("embedded NATS server failed to start")
		}

		a.embeddedServer = ns

		conn, err := nats.Connect(ns.ClientURL())
		if err != nil {
			ns.Shutdown()
			return fmt.Errorf("connect to embedded NATS: %w", err)
		}
		a.natsConn = conn
	}

	js, err := jetstream.New(a.natsConn)
	if err != nil {
		return fmt.Errorf("create JetStream context: %w", err)
	}
	a.js = js
	return nil
}

// Shutdown gracefully stops all components.
func (a *App) Shutdown(timeout time.Duration) {
	if a.natsConn != nil {
		_ = a.natsConn.Drain()
		a.natsConn.Close()
	}
	if a.embeddedServer != nil {
		a.embeddedServer.Shutdown()
		a.embeddedServer.WaitForShutdown()
	}
	a.Logger.Debug("app stopped")
}

// Watch re-syncs cases as their records change, until ctx is cancelled.
func (a *App) Watch(ctx context.Context, out io.Writer) error {
	w, err := watch.New(watch.Config{
		Workspace:     a.Config.Workspace.Path,
		DebounceDelay: a.Config.Watch.DebounceDelay,
		Logger:        a.Logger,
	})
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer func() { _ = w.Stop() }()

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", a.Config.Workspace.Path)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events():
			if !ok {
				return nil
			}
			outcome, err := a.Engine.SyncCase(ctx, ev.CaseID, engine.SyncOptions{})
			if err != nil {
				a.Logger.Warn("re-sync failed", "case_id", ev.CaseID, "error", err)
				fmt.Fprintf(out, "%s: sync failed: %v\n", ev.CaseID, err)
				continue
			}
			renderSyncOutcome(out, outcome, false)
		}
	}
}
