// Package internal provides the App struct that wires the agentherd
// components together: configuration, stores, executors, the lifecycle
// engine, and observability.
package internal

import (
	"fmt"
	"os"
	"path/filepath"

	"agentherd/internal/core"
	"agentherd/internal/executor"
	"agentherd/internal/observability"
	"agentherd/internal/storage"
	"agentherd/pkg/models"
)

// App holds all service dependencies for one agentherd invocation.
type App struct {
	DataDir string
	Config  *models.Config

	Store       storage.MetadataStore
	Heartbeats  storage.HeartbeatChannel
	Completions storage.CompletionStore
	Events      observability.EventLog
	Notifier    observability.Notifier
	Engine      core.LifecycleEngine
}

// NewApp loads configuration, initializes the data directory, builds one
// executor per configured backend, and wires the lifecycle engine.
func NewApp(configPath string) (*App, error) {
	cfg, err := core.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	dataDir := core.DataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory %s: %w", dataDir, err)
	}

	store := storage.NewMetadataStore(dataDir)
	heartbeats := storage.NewHeartbeatChannel(dataDir)
	completions := storage.NewCompletionStore(dataDir)

	events, err := observability.NewJSONLEventLog(filepath.Join(dataDir, "events.jsonl"))
	if err != nil {
		return nil, err
	}

	notifier := observability.NopNotifier()
	if cfg.Defaults.WebhookURL != "" {
		notifier = observability.NewWebhookNotifier(cfg.Defaults.WebhookURL)
	}

	executors := make(map[string]executor.Executor, len(cfg.Executors))
	for _, ec := range cfg.Executors {
		ex, err := executor.New(ec, cfg.Defaults)
		if err != nil {
			return nil, fmt.Errorf("building executor %s: %w", ec.Name, err)
		}
		executors[ec.Name] = ex
	}

	engine := core.NewEngine(core.EngineParams{
		Config:      cfg,
		Store:       store,
		Heartbeats:  heartbeats,
		Completions: completions,
		Executors:   executors,
		Events:      events,
		Notifier:    notifier,
	})

	return &App{
		DataDir:     dataDir,
		Config:      cfg,
		Store:       store,
		Heartbeats:  heartbeats,
		Completions: completions,
		Events:      events,
		Notifier:    notifier,
		Engine:      engine,
	}, nil
}

// Close releases resources held by the app.
func (a *App) Close() error {
	return a.Events.Close()
}
