// Package main is the entry point for the Gildora auth backend. It loads
// configuration, selects and connects the account store, wires the auth
// service and routes, and starts the HTTP server.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gildora/gildora/internal/app"
	"github.com/gildora/gildora/internal/auth"
	"github.com/gildora/gildora/internal/config"
	"github.com/gildora/gildora/internal/database"
)

func main() {
	// --- Load Configuration ---
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	// Configure structured logging based on environment.
	setupLogging(cfg)

	slog.Info("starting Gildora",
		slog.String("env", cfg.Env),
		slog.Int("port", cfg.Port),
		slog.String("store", cfg.StoreBackend),
	)

	// --- Account Store ---
	// Selected once at startup; everything downstream sees the interface.
	store, cleanup, err := newStore(cfg)
	if err != nil {
		slog.Error("failed to set up account store", slog.Any("error", err))
		os.Exit(1)
	}
	defer cleanup()

	// --- Redis (optional, backs the shared rate limiter) ---
	var rdb *redis.Client
	if cfg.Redis.Enabled() {
		rdb, err = database.NewRedis(cfg.Redis)
		if err != nil {
			slog.Error("failed to connect to Redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		slog.Info("connected to Redis")
	} else {
		slog.Info("Redis not configured, using in-memory rate limiting")
	}

	// --- Create Application ---
	application := app.New(cfg, store, rdb)
	application.RegisterRoutes()

	// --- Graceful Shutdown ---
	// Listen for interrupt/term signals to drain connections cleanly.
	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		<-quit

		slog.Info("shutting down server...")

		// Give in-flight requests 10 seconds to complete.
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := application.Echo.Shutdown(ctx); err != nil {
			slog.Error("server forced shutdown", slog.Any("error", err))
		}
	}()

	// --- Start Server ---
	if err := application.Start(); err != nil {
		// Echo returns http.ErrServerClosed on graceful shutdown, which is expected.
		slog.Info("server stopped", slog.Any("reason", err))
	}
}

// newStore builds the account store named by config. The returned cleanup
// closes the underlying connection (a no-op for the in-memory store).
func newStore(cfg *config.Config) (auth.AccountStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreMemory:
		slog.Info("using in-memory account store")
		return auth.NewMemoryStore(), func() {}, nil

	default: // config.StoreMongo, validated in config.Load
		client, err := database.NewMongo(cfg.Mongo)
		if err != nil {
			return nil, nil, err
		}
		cleanup := func() {
			if err := client.Disconnect(context.Background()); err != nil {
				slog.Warn("mongo disconnect failed", slog.Any("error", err))
			}
		}

		db := client.Database(cfg.Mongo.Database)

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := database.EnsureAccountIndexes(ctx, db); err != nil {
			cleanup()
			return nil, nil, err
		}

		slog.Info("connected to MongoDB", slog.String("database", cfg.Mongo.Database))
		return auth.NewMongoStore(db), cleanup, nil
	}
}

// setupLogging configures the global slog logger based on the environment.
// Development uses text format for readability. Production uses JSON for
// structured log aggregation.
func setupLogging(cfg *config.Config) {
	var handler slog.Handler

	if cfg.IsDevelopment() {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelDebug,
		})
	} else {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}

	slog.SetDefault(slog.New(handler))
}
