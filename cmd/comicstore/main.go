package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rl1809/comic-store/internal/adapter/handler"
	"github.com/rl1809/comic-store/internal/adapter/storage"
	"github.com/rl1809/comic-store/internal/config"
	"github.com/rl1809/comic-store/internal/core/service"
	"github.com/rl1809/comic-store/internal/core/validation"
	"github.com/rl1809/comic-store/internal/logger"
	"github.com/rl1809/comic-store/internal/metrics"
)

const (
	serviceName    = "comicstore"
	connectTimeout = 5 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceName, Format: logger.FormatConsole})

	if err := godotenv.Load(); err != nil {
		logg.Debug(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: serviceName,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
	})

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "comicstore stopped", err)
		os.Exit(1)
	}
}

// run wires the store and serves commands until quit, end of input or a signal.
func run(cfg *config.Config, logg *logger.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := service.Options{
		Validator: validation.New(),
		Store: storage.NewFileStore(storage.FilePaths{
			Catalog:        cfg.Storage.CatalogPath(),
			Users:          cfg.Storage.UsersPath(),
			Reservations:   cfg.Storage.ReservationsPath(),
			SnapshotDir:    cfg.Storage.DataDir,
			SnapshotPrefix: cfg.Storage.SnapshotPrefix,
		}, logg),
		Logger:                logg,
		ExclusiveReservations: cfg.App.ExclusiveReservations,
	}

	registry := prometheus.NewRegistry()
	opts.Metrics = metrics.NewStoreMetrics(registry)

	if cfg.Redis.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		rdb, err := storage.NewRedisClient(connectCtx, cfg.Redis)
		cancel()
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer func() {
			if err := rdb.Close(); err != nil {
				logg.Error(context.Background(), "error closing redis", err)
			}
		}()
		opts.Cache = storage.NewRedisAdapter(rdb)
		logg.Info(ctx, "redis mirror enabled")
	}

	if cfg.MySQL.Enabled() {
		connectCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		defer cancel()
		db, err := storage.OpenMySQL(connectCtx, cfg.MySQL)
		if err != nil {
			return fmt.Errorf("connect mysql: %w", err)
		}
		defer func() {
			if err := db.Close(); err != nil {
				logg.Error(context.Background(), "error closing mysql", err)
			}
		}()
		mysqlAdapter := storage.NewMySQLAdapter(db)
		if err := mysqlAdapter.EnsureSchema(connectCtx); err != nil {
			return fmt.Errorf("prepare mysql schema: %w", err)
		}
		opts.Database = mysqlAdapter
		logg.Info(ctx, "mysql audit mirror enabled")
	}

	engine := service.NewEngine(opts)
	engine.Load(ctx)

	shell := handler.NewCommandHandler(engine, os.Stdout).WithPrompt("> ")
	done := make(chan error, 1)
	go func() {
		done <- shell.Serve(ctx, os.Stdin)
	}()

	select {
	case err := <-done:
		if err != nil {
			logg.Error(ctx, "command loop stopped", err)
		}
	case <-ctx.Done():
		logg.Info(context.Background(), "signal received, shutting down")
	}

	// The signal context may already be canceled; finalizing must still run.
	finalCtx := context.WithoutCancel(ctx)
	path, err := engine.Finalize(finalCtx)
	if err != nil {
		logg.Error(finalCtx, "failed to write catalog snapshot", err)
	} else if path != "" {
		logg.Info(logg.WithField(finalCtx, "path", path), "catalog snapshot written")
	}

	if err := metrics.WriteTextfile(cfg.Metrics.TextfilePath, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
