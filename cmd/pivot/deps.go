package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/ersonp/pivot/internal/application/handlers"
	"github.com/ersonp/pivot/internal/domain/ports"
	"github.com/ersonp/pivot/internal/domain/services"
	"github.com/ersonp/pivot/internal/infrastructure/cache"
	"github.com/ersonp/pivot/internal/infrastructure/config"
	"github.com/ersonp/pivot/internal/infrastructure/events"
	"github.com/ersonp/pivot/internal/infrastructure/relationaldb/postgres"
	"github.com/ersonp/pivot/internal/infrastructure/relationaldb/sqlite"
	"github.com/ersonp/pivot/internal/infrastructure/tracing"
)

// Deps holds high-level dependencies for commands.
// Only handlers are exposed - services and repositories are internal.
type Deps struct {
	BaseDir string
	Config  *config.Config
	Pivots  *config.PivotsConfig
	Logger  *slog.Logger

	PivotHandler       *handlers.PivotHandler
	EntityHandler      *handlers.EntityHandler
	AssociationHandler *handlers.AssociationHandler
	ImportHandler      *handlers.ImportHandler
	ExportHandler      *handlers.ExportHandler

	// Hub fans change events out to websocket listeners.
	Hub *events.Hub
	// Relay, when set, forwards events from the Redis channel into RelaySink.
	Relay *events.RedisPublisher
	// RelaySink receives relayed events: the hub, plus the cache
	// invalidator when a cache is configured.
	RelaySink ports.EventPublisher
}

// withDeps loads config, opens the store, seeds declared pivots and builds
// the handlers, then calls fn. It handles cleanup automatically.
func withDeps(ctx context.Context, fn func(*Deps) error) error {
	dir, err := baseDir()
	if err != nil {
		return err
	}

	cfg, err := config.Load(dir)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	declared, err := config.LoadPivots(dir)
	if err != nil {
		return fmt.Errorf("loading pivots: %w", err)
	}

	logger := newLogger(cfg.Log)

	shutdown, err := tracing.Setup(ctx, cfg.Tracing)
	if err != nil {
		return fmt.Errorf("setting up tracing: %w", err)
	}
	defer func() {
		if err := shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("flushing traces", "error", err)
		}
	}()

	db, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := db.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensuring %s schema: %w", cfg.Storage.Driver, err)
	}

	var rdb *redis.Client
	if cfg.Cache.Driver == config.CacheRedis || cfg.Events.RedisChannel != "" {
		rdb = cache.NewRedisClient(cfg.Redis)
		defer rdb.Close()
	}

	assocCache, err := newCache(cfg, rdb, logger)
	if err != nil {
		return err
	}

	hub := events.NewHub(logger)
	var publisher ports.EventPublisher = hub
	var relay *events.RedisPublisher
	if cfg.Events.RedisChannel != "" {
		// Local listeners receive events through the relay so every
		// process sees the same stream.
		relay = events.NewRedisPublisher(rdb, cfg.Events.RedisChannel)
		publisher = relay
	}
	if cfg.Events.Log {
		publisher = events.Multi{publisher, events.NewLogPublisher(logger)}
	}

	opts := []services.Option{
		services.WithLogger(logger),
		services.WithPublisher(publisher),
	}
	var relaySink ports.EventPublisher = hub
	if assocCache != nil {
		opts = append(opts, services.WithCache(assocCache))
		relaySink = events.Multi{services.NewCacheInvalidator(opts...), hub}
	}

	pivotHandler := handlers.NewPivotHandler(services.NewPivotService(db, opts...))
	if err := pivotHandler.HandleSeed(ctx, declared); err != nil {
		return fmt.Errorf("seeding pivots from %s: %w", config.PivotsFilePath(dir), err)
	}

	assocService := services.NewAssociationService(db, opts...)
	deps := &Deps{
		BaseDir:            dir,
		Config:             cfg,
		Pivots:             declared,
		Logger:             logger,
		PivotHandler:       pivotHandler,
		EntityHandler:      handlers.NewEntityHandler(services.NewEntityService(db, opts...)),
		AssociationHandler: handlers.NewAssociationHandler(assocService),
		ImportHandler:      handlers.NewImportHandler(services.NewImportService(db, opts...)),
		ExportHandler:      handlers.NewExportHandler(assocService),
		Hub:                hub,
		Relay:              relay,
		RelaySink:          relaySink,
	}

	return fn(deps)
}

// newCache builds the configured cache. A memory cache that other
// processes could leave stale is disabled with a warning.
func newCache(cfg *config.Config, rdb *redis.Client, logger *slog.Logger) (ports.AssociationCache, error) {
	if cfg.Cache.Driver == config.CacheMemory && !cfg.MemoryCacheCoherent() {
		logger.Warn("memory cache disabled: other processes may write the store; set events.redis_channel to enable it",
			"storage", cfg.Storage.Driver)
		return nil, nil
	}
	c, err := cache.New(cfg, rdb)
	if err != nil {
		return nil, fmt.Errorf("creating cache: %w", err)
	}
	return c, nil
}

// openStore opens the relational store selected by cfg.Storage.Driver.
func openStore(_ context.Context, cfg *config.Config) (ports.RelationalDB, error) {
	switch cfg.Storage.Driver {
	case config.DriverPostgres:
		db, err := postgres.NewRepository(cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("creating postgres repository: %w", err)
		}
		return db, nil
	default:
		db, err := sqlite.NewRepository(cfg.SQLite)
		if err != nil {
			return nil, fmt.Errorf("creating sqlite repository: %w", err)
		}
		return db, nil
	}
}

// newLogger builds the process logger from config. Logs go to stderr so
// command output stays clean.
func newLogger(cfg config.LogConfig) *slog.Logger {
	level := slog.LevelWarn
	switch strings.ToLower(cfg.Level) {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "error":
		level = slog.LevelError
	}

	handlerOpts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if strings.ToLower(cfg.Format) == "json" {
		handler = slog.NewJSONHandler(os.Stderr, handlerOpts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, handlerOpts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
