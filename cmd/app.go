package cmd

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	cfgpkg "github.com/KaramelBytes/dataglimpse/internal/config"
	"github.com/KaramelBytes/dataglimpse/internal/dataset"
	"github.com/KaramelBytes/dataglimpse/internal/ingest"
	"github.com/KaramelBytes/dataglimpse/internal/insight"
	"github.com/KaramelBytes/dataglimpse/internal/migration"
	"github.com/KaramelBytes/dataglimpse/internal/model"
	"github.com/KaramelBytes/dataglimpse/internal/store"
	_ "github.com/KaramelBytes/dataglimpse/internal/store/all"
	"github.com/KaramelBytes/dataglimpse/internal/utils"
	"github.com/KaramelBytes/dataglimpse/internal/visualization"
	"go.uber.org/zap"
)

// app bundles the services a command works with.
type app struct {
	store    store.Store
	limits   model.Limits
	datasets *dataset.Manager
	vizs     *visualization.Manager
	ingestor *ingest.Ingestor
	migrator *migration.Migrator
	sweeper  *migration.Sweeper
}

// openApp validates the loaded config, opens the store and builds the services.
// Callers must Close the result.
func openApp(ctx context.Context) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := cfg.StoreDSN()
	if cfg.StoreDriver == cfgpkg.DriverSQLite && !strings.HasPrefix(dsn, "file:") {
		if err := utils.EnsurePrivateDir(filepath.Dir(dsn)); err != nil {
			return nil, fmt.Errorf("prepare sqlite dir: %w", err)
		}
	}
	s, err := store.Open(ctx, store.Config{Driver: cfg.StoreDriver, DSN: dsn})
	if err != nil {
		return nil, err
	}
	limits := cfg.Limits()
	datasets := dataset.NewManager(s, limits, log)
	log.Debug("store opened", zap.String("driver", cfg.StoreDriver))
	return &app{
		store:    s,
		limits:   limits,
		datasets: datasets,
		vizs:     visualization.NewManager(s, limits, log),
		ingestor: ingest.New(datasets, s, cfg.UploadDir, limits.MaxUploadBytes, log),
		migrator: migration.NewMigrator(s, log),
		sweeper:  migration.NewSweeper(s, limits.GuestSessionTTL, log),
	}, nil
}

// insights builds the narrative service; provider and model flags win over config.
func (a *app) insights(provider, modelName string) (*insight.Service, error) {
	rt, _, err := buildRuntime(cfg, runtimeOptions{ProviderFlag: provider, Logger: log})
	if err != nil {
		return nil, err
	}
	return insight.NewService(a.store, rt, insight.Options{
		Model:       selectModel(cfg, modelName),
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
	}, log), nil
}

func (a *app) Close() error { return a.store.Close() }
