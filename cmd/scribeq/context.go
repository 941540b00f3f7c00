package main

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"scribeq/internal/api"
	"scribeq/internal/config"
	"scribeq/internal/persistence"
	"scribeq/internal/queue"
	"scribeq/internal/reconcile"
	"scribeq/internal/services/notes"
	"scribeq/internal/services/transcription"
	"scribeq/internal/workflow"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds a daemon API client from the configured bind address.
func (c *commandContext) client() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(cfg.Paths.APIBind, cfg.Paths.APIToken)
}

// buildOrchestrator wires the full processing stack from configuration.
// Used by the run command; every other command talks to the daemon API.
func buildOrchestrator(cfg *config.Config, svc *queue.Service, logger *slog.Logger) (*workflow.Orchestrator, error) {
	engine, err := transcription.New(cfg.Transcription.APIKey, cfg.Transcription.BaseURL)
	if err != nil {
		return nil, err
	}
	noteSvc, err := notes.New(cfg.Notes.APIKey, cfg.Notes.BaseURL)
	if err != nil {
		return nil, err
	}
	bridge, err := persistence.NewFSBridge(cfg.BlobDir(), cfg.SnapshotPath())
	if err != nil {
		return nil, err
	}
	window := time.Duration(cfg.Notes.ReconcileWindowSeconds) * time.Second
	guard := reconcile.NewGuard(noteSvc, cfg.Notes.RecentPageSize, window, logger)
	return workflow.NewOrchestrator(svc, engine, noteSvc, guard, bridge, cfg, logger), nil
}
