package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/helmsman-ai/helmsman/internal/browser"
	"github.com/helmsman-ai/helmsman/internal/config"
	"github.com/helmsman-ai/helmsman/internal/events"
	"github.com/helmsman-ai/helmsman/internal/executor"
	"github.com/helmsman-ai/helmsman/internal/gateway"
	"github.com/helmsman-ai/helmsman/internal/heartbeat"
	"github.com/helmsman-ai/helmsman/internal/models"
	"github.com/helmsman-ai/helmsman/internal/orchestrator"
	"github.com/helmsman-ai/helmsman/internal/planner"
	"github.com/helmsman-ai/helmsman/internal/repo"
	"github.com/helmsman-ai/helmsman/internal/sandbox"
	"github.com/helmsman-ai/helmsman/internal/scheduler"
	"github.com/helmsman-ai/helmsman/internal/secrets"
	"github.com/helmsman-ai/helmsman/internal/tools"
	"github.com/helmsman-ai/helmsman/internal/types"
)

// NewServeCommand returns the serve subcommand.
func NewServeCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the Helmsman server (gateway + orchestrator)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "host",
				Usage: "Host to listen on",
			},
			&cli.IntFlag{
				Name:  "port",
				Usage: "Port to listen on",
			},
		},
		Action: runServe,
	}
}

func runServe(_ context.Context, cmd *cli.Command) error {
	if cmd.Bool("debug") {
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug})))
	}

	configPath := cmd.String("config")
	cfg, err := config.Load(configPath)
	if err != nil {
		slog.Warn("config not found, using defaults", "path", configPath, "error", err)
		cfg = config.Default()
	}

	// CLI flags override config
	if cmd.IsSet("host") {
		cfg.Gateway.Host = cmd.String("host")
	}
	if cmd.IsSet("port") {
		cfg.Gateway.Port = cmd.Int("port")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// Event bus
	bus := events.NewBus(cfg.Events.BufferSize)
	defer bus.Close()

	// Persistence
	db, err := repo.Open(cfg.Data.Dir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	taskRepo := repo.TaskRepo{DB: db}
	chatRepo := repo.ChatRepo{DB: db}
	messageRepo := repo.MessageRepo{DB: db}
	resultRepo := repo.ResultRepo{DB: db}
	agentRepo := repo.AgentRepo{DB: db}

	// Seed agent definitions before anything can reference them.
	if err := seedAgents(ctx, cfg, agentRepo); err != nil {
		return err
	}

	// Reveal sealed provider keys before the registry snapshots them.
	if err := secrets.RevealProviderKeys(cfg.Models.Providers, secrets.KeyPath()); err != nil {
		return fmt.Errorf("reveal provider keys: %w", err)
	}

	// Model registry
	registry := models.NewRegistry(cfg.Models)

	// SIGHUP re-reads .env and the config and swaps the provider set.
	reloader := config.NewReloader(configPath, config.DotenvPath(), cfg)
	reloader.OnReload(func(next *config.Config) {
		if err := secrets.RevealProviderKeys(next.Models.Providers, secrets.KeyPath()); err != nil {
			slog.Error("reveal provider keys on reload", "error", err)
			return
		}
		registry.Replace(next.Models)
	})
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			if err := reloader.Reload(); err != nil {
				slog.Error("config reload", "error", err)
			}
		}
	}()

	// Tool backends
	sb, err := sandbox.New(cfg.Sandbox.WorkdirRoot, cfg.Sandbox.Timeout.Duration())
	if err != nil {
		return fmt.Errorf("init sandbox: %w", err)
	}
	searchTool, err := tools.NewSearchTool(ctx, cfg.WebSearch)
	if err != nil {
		slog.Warn("web_search unavailable", "error", err)
	}
	deps := &tools.Deps{Sandbox: sb, Search: searchTool, Bus: bus}
	if cfg.Browser.DriverURL != "" {
		driverURL, driverTimeout := cfg.Browser.DriverURL, cfg.Browser.Timeout.Duration()
		deps.Browser = browser.NewManager(func(context.Context) (browser.Driver, error) {
			return browser.NewRemoteDriver(driverURL, driverTimeout), nil
		})
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			deps.Browser.CloseAll(closeCtx)
		}()
	}

	// Execution pipeline
	exec := &executor.Executor{
		Tasks:    taskRepo,
		Chats:    chatRepo,
		Messages: messageRepo,
		Results:  resultRepo,
		Models:   registry,
		Tools:    deps,
		Dispatch: &tools.Dispatcher{Bus: bus},
		Bus:      bus,
		Cfg:      cfg.Executor,
	}
	plnr := &planner.Planner{
		Tasks:      taskRepo,
		Agents:     agentRepo,
		Models:     registry,
		Bus:        bus,
		DepthLimit: cfg.Orchestrator.PlanningDepthLimit,
	}
	orch := orchestrator.New(orchestrator.Orchestrator{
		Tasks:    taskRepo,
		Chats:    chatRepo,
		Messages: messageRepo,
		Agents:   agentRepo,
		Exec:     exec,
		Planner:  plnr,
		Bus:      bus,
		Cfg:      cfg.Orchestrator,
	})
	orch.Start()
	defer orch.Stop()

	// Recurring submissions
	sched, err := scheduler.New(cfg.Schedules, orch, agentRepo, slog.Default())
	if err != nil {
		return err
	}
	sched.Start()
	defer sched.Stop()

	// Heartbeat for `helmsman status`
	hb := heartbeat.NewWriter(filepath.Join(config.HelmsmanPath(), "heartbeat.json"))
	hb.ActiveTasks = orch.ActiveTasks
	hb.Start()
	defer hb.Stop()

	// Gateway server
	server := gateway.NewServer(cfg.Gateway, orch, resultRepo, bus)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case <-ctx.Done():
		slog.Info("shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// seedAgents upserts the YAML agent definitions into the store.
func seedAgents(ctx context.Context, cfg *config.Config, agents repo.AgentRepo) error {
	seeds, err := config.LoadAgentSeeds(cfg.Agents.File)
	if err != nil {
		return fmt.Errorf("load agent seeds: %w", err)
	}
	for _, seed := range seeds {
		agent := &types.Agent{
			CompanyID:              seed.CompanyID,
			Name:                   seed.Name,
			Description:            seed.Description,
			SystemPrompt:           seed.SystemPrompt,
			ModelID:                seed.Model,
			CodeInterpreterEnabled: seed.CodeInterpreter,
			WebBrowsingEnabled:     seed.WebBrowsing,
			ExecutionStepsLimit:    seed.ExecutionStepsLimit,
		}
		if err := agents.UpsertByName(ctx, agent); err != nil {
			return fmt.Errorf("seed agent %q: %w", seed.Name, err)
		}
		slog.Debug("agent seeded", "company_id", seed.CompanyID, "name", seed.Name, "agent_id", agent.ID)
	}
	if len(seeds) > 0 {
		slog.Info("agents seeded", "count", len(seeds))
	}
	return nil
}
