// Observix indexer — stateless normalization of raw log lines into
// structured documents under named profiles.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/indexer"
	"github.com/observix/observix/pkg/version"
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configPath := flag.String("config",
		getEnv("OBSERVIX_INDEXER_CONFIG", ""),
		"Path to indexer configuration file (empty runs on defaults)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting Observix indexer",
		"version", version.Full(), "config", *configPath)

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.LoadIndexer(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Load profiles and start the hot-reload watcher
	registry := indexer.NewRegistry(cfg.ProfilesDir)
	if err := registry.Start(ctx); err != nil {
		slog.Error("Failed to load profiles", "profiles_dir", cfg.ProfilesDir, "error", err)
		os.Exit(2)
	}

	// 3. Start the HTTP server (non-blocking)
	server := indexer.NewServer(cfg, registry)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr())
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Indexer started", "addr", server.Addr(), "profiles", registry.Names())

	// 4. Wait for shutdown signal or server error
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	exitCode := 0
	select {
	case sig := <-sigCh:
		slog.Info("Shutdown signal received", "signal", sig)
	case err := <-errCh:
		slog.Error("Server error triggered shutdown", "error", err)
		exitCode = 2
	}

	// 5. Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}
	registry.Stop()

	slog.Info("Shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
