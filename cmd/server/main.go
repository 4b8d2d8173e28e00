// Package main is the entry point for the Nexus server. It loads
// configuration, opens the key-value backend and the media bucket, wires
// together all plugins, and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/keyxmakerx/nexus/internal/app"
	"github.com/keyxmakerx/nexus/internal/config"
	"github.com/keyxmakerx/nexus/internal/database"
	"github.com/keyxmakerx/nexus/internal/kvstore"
	"github.com/keyxmakerx/nexus/internal/plugins/ai"
	"github.com/keyxmakerx/nexus/internal/plugins/media"
)

// janitorInterval is how often expired MariaDB entries are purged.
const janitorInterval = 10 * time.Minute

func main() {
	// A missing .env is normal outside local development.
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to read .env", slog.Any("error", err))
	}

	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Nexus",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("kv_backend", cfg.KVBackend),
		slog.String("storage_backend", cfg.Storage.Backend),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Key-value backend ---
	store, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to open key-value store", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeStore()

	// --- Media bucket ---
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		slog.Error("failed to open object storage", slog.Any("error", err))
		os.Exit(1)
	}
	if c, ok := storage.(io.Closer); ok {
		defer c.Close()
	}

	provider := ai.NewGeminiProvider(cfg.AI.Model, cfg.AI.Temperature)

	// --- Create Application ---
	application := app.New(cfg, store, storage, provider)
	if err := application.RegisterRoutes(); err != nil {
		slog.Error("failed to register routes", slog.Any("error", err))
		os.Exit(1)
	}

	// --- Graceful Shutdown ---
	// Drain in-flight requests when the process is asked to stop.
	go func() {
		<-ctx.Done()
		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(shutdownCtx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// openStore connects the configured KV backend. The returned func releases
// the connection.
func openStore(ctx context.Context, cfg *config.Config) (kvstore.Store, func(), error) {
	if cfg.KVBackend == "mariadb" {
		db, err := database.NewMariaDB(ctx, cfg.Database)
		if err != nil {
			return nil, nil, err
		}
		if err := database.RunMigrations(db, cfg.Database.MigrationsPath); err != nil {
			db.Close()
			return nil, nil, err
		}
		slog.Info("connected to MariaDB")

		store := kvstore.NewMariaDBStore(db)
		go store.RunJanitor(ctx, janitorInterval)
		return store, func() { db.Close() }, nil
	}

	rdb, err := database.NewRedis(ctx, cfg.Redis)
	if err != nil {
		return nil, nil, err
	}
	slog.Info("connected to Redis")
	return kvstore.NewRedisStore(rdb), func() { rdb.Close() }, nil
}

// openStorage builds the bucket client for STORAGE_BACKEND. "none" leaves
// the media routes unbound.
func openStorage(ctx context.Context, cfg *config.Config) (media.Storage, error) {
	switch cfg.Storage.Backend {
	case "s3":
		return media.NewS3Storage(ctx, media.S3Options{
			Bucket:          cfg.Storage.S3Bucket,
			Region:          cfg.Storage.S3Region,
			Endpoint:        cfg.Storage.S3Endpoint,
			AccessKeyID:     cfg.Storage.S3AccessKeyID,
			SecretAccessKey: cfg.Storage.S3SecretAccessKey,
		})
	case "gcs":
		return media.NewGCSStorage(ctx, cfg.Storage.GCSBucket)
	default:
		slog.Warn("no object storage configured; uploads are disabled")
		return nil, nil
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	level := parseLevel(cfg.LogLevel)

	var handler slog.Handler
	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
