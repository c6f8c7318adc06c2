package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/JonMunkholm/addrclean/internal/config"
	"github.com/JonMunkholm/addrclean/internal/core"
	"github.com/JonMunkholm/addrclean/internal/llm"
	"github.com/JonMunkholm/addrclean/internal/logging"
	"github.com/JonMunkholm/addrclean/internal/storage"
	"github.com/JonMunkholm/addrclean/internal/store"
	"github.com/JonMunkholm/addrclean/internal/web"
)

func main() {
	// Load .env file if it exists (Overload overwrites existing env vars)
	if err := godotenv.Overload(); err != nil {
		slog.Info("no .env file found, using environment variables")
	} else {
		slog.Info("loaded .env file (overwriting existing env vars)")
	}

	// Load and validate configuration
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Setup structured logging based on config
	logger := logging.Setup(cfg.Logging.Level, cfg.Logging.Format)

	slog.Info("configuration loaded",
		"port", cfg.Server.Port,
		"db_max_conns", cfg.Database.MaxConns,
		"process_max_concurrent", cfg.Processing.MaxConcurrent,
		"storage_backend", cfg.Storage.Backend,
		"rate_limit_enabled", cfg.Rate.Enabled,
		"llm_enabled", cfg.Enhance.Enabled,
	)
	slog.Debug("effective configuration", "config", cfg.String())

	ctx := context.Background()
	pool, err := store.Connect(ctx, &cfg.Database)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()

	// Log which database we connected to
	if u, err := url.Parse(cfg.Database.URL); err == nil {
		dbName := strings.TrimPrefix(u.Path, "/")
		slog.Info("connected to database", "name", dbName)
	} else {
		slog.Info("connected to database")
	}

	files, err := storage.New(ctx, &cfg.Storage, logger)
	if err != nil {
		slog.Error("failed to open file storage", "error", err)
		os.Exit(1)
	}

	enhancer, err := llm.NewEnhancer(&cfg.Enhance, logger)
	if err != nil {
		slog.Error("failed to configure language model", "error", err)
		os.Exit(1)
	}

	service := core.NewService(core.NewRepository(store.New(pool)), files, core.Options{
		Upload:     cfg.Upload,
		Processing: cfg.Processing,
		Enhancer:   enhancer,
		Logger:     logger,
	})

	// Jobs left running by a previous process can never finish.
	if err := service.RecoverInterrupted(ctx); err != nil {
		slog.Warn("failed to recover interrupted jobs", "error", err)
	}

	server := web.NewServer(service, cfg)

	// Create cancellable context for background jobs
	jobCtx, cancelJobs := context.WithCancel(context.Background())

	go service.StartAuditPurgeScheduler(jobCtx, cfg.Archive)

	// Graceful shutdown
	done := make(chan struct{})
	go func() {
		defer close(done)
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh

		slog.Info("shutting down...")

		// Stop background jobs
		cancelJobs()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("shutdown error", "error", err)
		}

		// Wait for running batches to complete (with timeout)
		status := service.Limiter().Status()
		if status.Active > 0 {
			slog.Info("waiting for processing jobs to complete", "active", status.Active)
			if err := service.Limiter().WaitForDrain(shutdownCtx); err != nil {
				slog.Warn("processing jobs did not complete in time", "error", err)
			} else {
				slog.Info("all processing jobs completed")
			}
		}
	}()

	if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		slog.Error("server error", "error", err)
		cancelJobs()
		os.Exit(1)
	}
	<-done
	slog.Info("server stopped")
}
