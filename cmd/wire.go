package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	tomlrepo "github.com/bnema/account-broker/internal/adapters/repo/toml"
	filestore "github.com/bnema/account-broker/internal/adapters/secrets/file"
	"github.com/bnema/account-broker/internal/application"
	"github.com/bnema/account-broker/internal/ports"
	"github.com/spf13/viper"
)

type app struct {
	repo    *tomlrepo.Repository
	service *application.Service
	broker  *application.Broker
	logger  *slog.Logger
	cfg     application.Config
	now     func() time.Time

	loadOnce sync.Once
	loadErr  error
}

func wireApp() (*app, error) {
	cfg := viper.New()

	repo, err := tomlrepo.NewRepository(cfg)
	if err != nil {
		return nil, fmt.Errorf("wire account repository: %w", err)
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("resolve home directory: %w", err)
	}

	secretStore := filestore.NewStore(filepath.Join(homeDir, ".account-broker", "secrets"))

	// Zero values fall back to the broker defaults.
	brokerCfg := application.Config{
		FailureThreshold:    cfg.GetInt("broker.failure_threshold"),
		CooldownDuration:    cfg.GetDuration("broker.cooldown"),
		AffinityTTL:         cfg.GetDuration("broker.session_ttl"),
		AffinityMaxSize:     cfg.GetInt("broker.session_cache_max"),
		LockRegistryMaxSize: cfg.GetInt("broker.session_locks_max"),
		SweepInterval:       cfg.GetDuration("broker.sweep_interval"),
	}

	logger := newLogger()
	clock := ports.SystemClock{}

	return &app{
		repo:    repo,
		service: application.NewService(repo, secretStore, clock),
		broker:  application.NewBroker(repo, clock, logger, brokerCfg),
		logger:  logger,
		cfg:     brokerCfg,
		now:     time.Now,
	}, nil
}

// load populates the broker from the repository once per process.
func (a *app) load(ctx context.Context) error {
	a.loadOnce.Do(func() {
		a.loadErr = a.broker.Reload(ctx)
	})

	return a.loadErr
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(envOrDefault("AB_LOG_LEVEL", "info")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func envOrDefault(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}
