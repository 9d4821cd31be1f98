package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/Energy-Exe/energyexe-core-backend/common/database"
	logpkg "github.com/Energy-Exe/energyexe-core-backend/common/logger"
	"github.com/Energy-Exe/energyexe-core-backend/common/mqtt"
	rediscommon "github.com/Energy-Exe/energyexe-core-backend/common/redis"
	"github.com/Energy-Exe/energyexe-core-backend/internal/config"
	"github.com/Energy-Exe/energyexe-core-backend/internal/models"
	"github.com/Energy-Exe/energyexe-core-backend/internal/normalizer"
	"github.com/Energy-Exe/energyexe-core-backend/internal/phase"
	"github.com/Energy-Exe/energyexe-core-backend/internal/pipeline"
	"github.com/Energy-Exe/energyexe-core-backend/internal/registry"
	"github.com/Energy-Exe/energyexe-core-backend/internal/repository"
	"github.com/Energy-Exe/energyexe-core-backend/internal/service"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
)

// app holds the long-lived dependencies of one command invocation.
type app struct {
	cfg         *config.Config
	logger      *zap.Logger
	db          *sql.DB
	redisClient *redis.Client
	mqttClient  *mqtt.Client
	normalizers *normalizer.Registry
	rawRepo     *repository.RawRepository
	closers     []func()
}

func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	a := &app{cfg: cfg}
	if cfg.Log.File != "" {
		log, closeLog, err := logpkg.NewFileLogger(cfg.Log.Level, cfg.Log.Format, "harmonizer", cfg.Log.File)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = log
		a.closers = append(a.closers, closeLog)
	} else {
		log, err := logpkg.NewLogger(cfg.Log.Level, cfg.Log.Format, "harmonizer")
		if err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = log
	}

	db, err := database.NewPostgresDB(&cfg.Database)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	a.db = db

	if cfg.Redis.Enabled() {
		client, err := rediscommon.Connect(context.Background(), &cfg.Redis)
		if err != nil {
			a.logger.Warn("Redis unavailable, continuing without cache and stream", zap.Error(err))
		} else {
			a.redisClient = client
		}
	}
	if cfg.MQTT.Enabled() {
		client, err := mqtt.NewClient(&cfg.MQTT, a.logger)
		if err != nil {
			a.logger.Warn("MQTT unavailable, continuing without notifications", zap.Error(err))
		} else {
			a.mqttClient = client
		}
	}

	normalizers, err := normalizer.NewRegistry(cfg.NormalizerOptions(), a.logger)
	if err != nil {
		a.close()
		return nil, err
	}
	a.normalizers = normalizers
	a.rawRepo = repository.NewRawRepository(db, a.logger)
	return a, nil
}

func (a *app) close() {
	if a.mqttClient != nil {
		a.mqttClient.Disconnect()
	}
	rediscommon.Close(a.redisClient)
	if a.db != nil {
		database.Close(a.db)
	}
	if a.logger != nil {
		a.logger.Sync()
	}
	for _, c := range a.closers {
		c()
	}
}

// phaseLoader picks the registry backend, with the Redis cache in front when
// available.
func (a *app) phaseLoader() registry.Loader {
	var loader registry.Loader
	if a.cfg.Registry.Mode == config.RegistryHTTP {
		loader = registry.NewHTTPLoader(a.cfg.Registry.URL, a.cfg.Registry.Token, a.cfg.Registry.Timeout, a.logger)
	} else {
		loader = repository.NewPhaseRepository(a.db, a.logger)
	}
	if a.redisClient != nil && a.cfg.Registry.CacheTTL > 0 {
		loader = registry.NewCachedLoader(loader, registry.NewRedisKVStore(a.redisClient), a.cfg.Registry.CacheTTL, a.logger)
	}
	return loader
}

// driver loads the phase snapshot for source once and builds the batch driver.
func (a *app) driver(ctx context.Context, source models.Source) (*service.Driver, error) {
	snap, err := registry.LoadSnapshot(ctx, a.phaseLoader(), []models.Source{source}, a.logger)
	if err != nil {
		return nil, err
	}
	processor := pipeline.NewProcessor(
		a.rawRepo,
		repository.NewHarmonizedRepository(a.db, a.logger),
		a.normalizers,
		phase.NewResolver(snap, a.logger),
		pipeline.Options{Unmatched: a.cfg.Harmonizer.Unmatched},
		a.logger,
	)

	publishers := []service.Publisher{service.NewReportFileWriter(a.cfg.Harmonizer.ReportDir, a.logger)}
	if a.redisClient != nil {
		publishers = append(publishers, service.NewStreamPublisher(a.redisClient))
	}
	if a.mqttClient != nil {
		publishers = append(publishers, service.NewMQTTPublisher(a.mqttClient))
	}
	return service.NewDriver(processor, publishers, a.logger), nil
}
