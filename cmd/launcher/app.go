package main

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/remakesof/launcher/internal/adapter/filesystem"
	"github.com/remakesof/launcher/internal/adapter/gameapi"
	"github.com/remakesof/launcher/internal/adapter/sqlite"
	"github.com/remakesof/launcher/internal/config"
	"github.com/remakesof/launcher/internal/domain/event"
	"github.com/remakesof/launcher/internal/logger"
	"github.com/remakesof/launcher/internal/service/auth"
	"github.com/remakesof/launcher/internal/service/installer"
	"github.com/remakesof/launcher/internal/service/maintenance"
	"github.com/remakesof/launcher/internal/transfer"
)

// app holds the services shared by the commands
type app struct {
	cfg    *config.Config
	logger *zap.Logger
	api    *gameapi.Client
	tokens *filesystem.TokenFile
	auth   *auth.Service

	fs    *filesystem.Manager
	store *sqlite.Store
}

func newApp(configPath string) (*app, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	zapLogger := logger.GetZapLogger()

	api, err := gameapi.NewClient(gameapi.ClientConfig{
		BaseURL:           cfg.Server.URL,
		Timeout:           cfg.Server.GetTimeout(),
		RequestsPerSecond: cfg.Server.RequestsPerSecond,
		UserAgent:         userAgent(cfg),
	}, zapLogger)
	if err != nil {
		return nil, err
	}

	tokens := filesystem.NewTokenFile(cfg.Launcher.GetDataDir())

	return &app{
		cfg:    cfg,
		logger: zapLogger,
		api:    api,
		tokens: tokens,
		auth:   auth.NewService(api, tokens, auth.DefaultRefreshSkew, zapLogger),
	}, nil
}

func userAgent(cfg *config.Config) string {
	return fmt.Sprintf("%s/%s", cfg.Server.UserAgent, version)
}

// openInstallDir opens the install directory and the journal database
func (a *app) openInstallDir() error {
	if a.store != nil {
		return nil
	}

	fsManager, err := filesystem.NewManager(a.cfg.Launcher.GetInstallPath())
	if err != nil {
		return fmt.Errorf("failed to open install directory: %w", err)
	}

	dbPath := a.cfg.GetDatabasePath()
	store, err := sqlite.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database %s: %w", dbPath, err)
	}

	a.fs = fsManager
	a.store = store
	return nil
}

func (a *app) newInstaller(events event.EventDispatcher, log *zap.Logger) (*installer.Installer, error) {
	if err := a.openInstallDir(); err != nil {
		return nil, err
	}

	dl := a.cfg.Download
	engine, err := transfer.New(
		transfer.WithLogger(log),
		transfer.WithChunkSize(dl.GetChunkSize()),
		transfer.WithRateLimit(int(dl.GetRateLimit())),
		transfer.WithRateWindow(dl.GetRateWindow()),
		transfer.WithUserAgent(userAgent(a.cfg)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create transfer engine: %w", err)
	}

	space := installer.NewSpaceManager(a.fs, dl.GetReserveBytes(), float64(dl.MaxDiskUsagePercent))
	cfg := &installer.Config{
		MaxAttempts:       dl.MaxAttempts,
		ProgressInterval:  dl.GetProgressInterval(),
		StaleClaimTimeout: dl.GetClaimTimeout(),
	}
	return installer.New(cfg, a.api, engine, a.store, a.fs, space, events, log), nil
}

func (a *app) newMaintenance() (*maintenance.Service, error) {
	if err := a.openInstallDir(); err != nil {
		return nil, err
	}

	m := a.cfg.Maintenance
	cfg := &maintenance.Config{
		Interval:        m.GetInterval(),
		StaleJobTimeout: m.GetStaleJobTimeout(),
		FailedJobMaxAge: m.GetFailedJobMaxAge(),
		PartFileMaxAge:  m.GetPartFileMaxAge(),
	}
	return maintenance.New(cfg, a.store, a.fs, a.logger), nil
}

func (a *app) close() {
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			a.logger.Warn("failed to close database", zap.Error(err))
		}
	}
	_ = logger.Sync()
}
