// Package app wires the store, completion client, memory archivist,
// conversation engine and HTTP API into a running aether instance.
package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdobrica/aether/common/version"
	"github.com/bdobrica/aether/internal/aether/api"
	"github.com/bdobrica/aether/internal/aether/chat"
	"github.com/bdobrica/aether/internal/aether/config"
	"github.com/bdobrica/aether/internal/aether/llm"
	"github.com/bdobrica/aether/internal/aether/memory"
	"github.com/bdobrica/aether/internal/aether/metrics"
	"github.com/bdobrica/aether/internal/aether/store"
)

// App holds the wired components. CLI commands use them directly; Run
// additionally serves the HTTP API.
type App struct {
	config *Config
	logger *slog.Logger

	store     *store.Store
	settings  config.Store
	llm       *llm.Client
	archivist *memory.Archivist
	engine    *chat.Engine
	hub       *api.Hub
	metrics   *metrics.Manager
	server    *api.Server
}

// New opens the database, applies runtime settings over the boot endpoint
// configuration and builds every component. Nothing is started.
func New(ctx context.Context, cfg *Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	st, err := store.New(cfg.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("app: open store: %w", err)
	}

	settings := config.New(st)
	endpoint, err := config.ResolveAPI(ctx, settings, cfg.LLM.Client())
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("app: resolve endpoint settings: %w", err)
	}

	mcfg := metrics.DefaultConfig()
	mcfg.Enabled = cfg.Metrics.Enabled
	mm := metrics.NewManager(mcfg)

	client := llm.New(endpoint, logger)
	client.SetRecorder(mm)

	archivist := memory.NewArchivist(st, client, logger)
	archivist.SetRecorder(mm)

	hub := api.NewHub(logger)
	engine := chat.NewEngine(cfg.Chat.Engine(), st, st, client, logger)
	engine.SetObserver(hub)
	engine.SetRecorder(mm)

	a := &App{
		config:    cfg,
		logger:    logger,
		store:     st,
		settings:  settings,
		llm:       client,
		archivist: archivist,
		engine:    engine,
		hub:       hub,
		metrics:   mm,
	}

	deps := api.Deps{
		Store:     st,
		Archivist: archivist,
		Engine:    engine,
		Hub:       hub,
		Settings:  settings,
		Endpoint:  client,
		BootLLM:   cfg.LLM.Client(),
		Version:   version.Version,
		Logger:    logger,
	}
	if mm.Enabled() {
		deps.Metrics = mm
	}
	a.server = api.NewServer(deps)
	return a, nil
}

// Store returns the application database.
func (a *App) Store() *store.Store { return a.store }

// Settings returns the runtime settings store.
func (a *App) Settings() config.Store { return a.settings }

// Archivist returns the memory archivist.
func (a *App) Archivist() *memory.Archivist { return a.archivist }

// Engine returns the conversation engine.
func (a *App) Engine() *chat.Engine { return a.engine }

// Server returns the HTTP API handler.
func (a *App) Server() *api.Server { return a.server }

// Run serves the HTTP API until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	addr, err := a.server.Start(ctx, a.config.HTTPAddr)
	if err != nil {
		return err
	}
	cfg := a.llm.Config()
	a.logger.Info("aether is running",
		"addr", addr.String(),
		"version", version.Version,
		"model", cfg.Model,
		"api_configured", cfg.BaseURL != "" && cfg.APIKey != "",
	)

	<-ctx.Done()
	a.logger.Info("shutting down")
	return nil
}

// Stop stops the HTTP server (if running) and closes the database.
func (a *App) Stop() {
	a.server.Stop()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("closing database", "err", err)
	}
}
