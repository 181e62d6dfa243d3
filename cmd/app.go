package cmd

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/BetselotB/idea-plate/internal/collab"
	"github.com/BetselotB/idea-plate/internal/config"
	"github.com/BetselotB/idea-plate/internal/engagement"
	"github.com/BetselotB/idea-plate/internal/events"
	"github.com/BetselotB/idea-plate/internal/httpapi"
	"github.com/BetselotB/idea-plate/internal/ideas"
	"github.com/BetselotB/idea-plate/internal/identity"
	"github.com/BetselotB/idea-plate/internal/logging"
	"github.com/BetselotB/idea-plate/internal/profiles"
	"github.com/BetselotB/idea-plate/internal/server"
	"github.com/BetselotB/idea-plate/internal/storage"
)

// app is the wired service graph shared by the serve and mcp commands.
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *storage.Store
	bus    *events.Bus

	auth       *identity.TokenTable
	ideas      *ideas.Service
	engagement *engagement.Service
	collab     *collab.Service
	profiles   *profiles.Service
	github     *profiles.GitHubLinker
}

// newApp loads configuration and opens every dependency. The caller must
// call close.
func newApp(path string) (*app, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	logCfg := logging.NewDefaultConfig()
	logCfg.Level = cfg.Logging.Level
	logCfg.Format = cfg.Logging.Format
	logCfg.Fields["version"] = version
	logger, err := logging.NewLogger(logCfg)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}

	store, err := storage.Open(cfg.Storage.DataDir)
	if err != nil {
		return nil, err
	}
	logger.Info("storage opened", zap.String("data_dir", store.DataDir()))

	bus, err := events.Open(cfg.Events.NATSURL, logger.Named("events"))
	if err != nil {
		store.Close()
		return nil, err
	}

	a := &app{
		cfg:        cfg,
		logger:     logger,
		store:      store,
		bus:        bus,
		auth:       identity.NewTokenTable(cfg.Auth.Tokens),
		ideas:      ideas.NewService(store, ideas.WithLogger(logger.Named("ideas")), ideas.WithPageSize(cfg.Feed.PageSize)),
		engagement: engagement.NewService(store, bus, logger.Named("engagement")),
		collab:     collab.NewService(store, logger.Named("collab")),
		profiles:   profiles.NewService(store, logger.Named("profiles"), cfg.Profiles.RenamePasses),
	}
	if cfg.GitHub.Enabled() {
		a.github = profiles.NewGitHubLinker(cfg.GitHub, store, logger.Named("github"))
	}
	if a.auth.Len() == 0 {
		logger.Warn("no auth tokens configured; every request is anonymous")
	}
	return a, nil
}

// run starts background work owned by the app until ctx is done.
func (a *app) run(ctx context.Context) {
	if a.github != nil {
		go a.github.Run(ctx)
	}
}

func (a *app) mcpDeps() server.Deps {
	return server.Deps{
		Ideas:      a.ideas,
		Engagement: a.engagement,
		Collab:     a.collab,
		Profiles:   a.profiles,
		Auth:       a.auth,
		Version:    version,
	}
}

func (a *app) httpServices() httpapi.Services {
	return httpapi.Services{
		Ideas:      a.ideas,
		Engagement: a.engagement,
		Collab:     a.collab,
		Profiles:   a.profiles,
		GitHub:     a.github,
		Auth:       a.auth,
		Checks: map[string]func(context.Context) error{
			"storage": a.store.Ping,
			"events": func(context.Context) error {
				if !a.bus.Connected() {
					return errors.New("not connected")
				}
				return nil
			},
		},
	}
}

func (a *app) close() {
	a.bus.Close()
	if err := a.store.Close(); err != nil {
		a.logger.Warn("close storage", zap.Error(err))
	}
	_ = a.logger.Sync()
}
