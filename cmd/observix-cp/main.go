// Observix control plane — authoritative catalog for pipelines, assignments,
// and agent liveness, served over HTTP with an embedded SQLite store.
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

	"github.com/observix/observix/pkg/api"
	"github.com/observix/observix/pkg/config"
	"github.com/observix/observix/pkg/database"
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
		getEnv("OBSERVIX_CP_CONFIG", ""),
		"Path to control plane configuration file (empty runs on defaults)")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting Observix control plane",
		"version", version.Full(), "config", *configPath)

	ctx := context.Background()

	// 1. Load configuration
	cfg, err := config.LoadControlPlane(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Open the store and run migrations
	dbClient, err := database.NewClient(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("Failed to open database", "database_url", cfg.DatabaseURL, "error", err)
		os.Exit(2)
	}
	// 3. Start the HTTP server (non-blocking)
	server := api.NewServer(cfg, dbClient)
	errCh := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", server.Addr())
		if err := server.Start(); err != nil {
			errCh <- err
		}
	}()

	slog.Info("Control plane started", "addr", server.Addr())

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
	if err := dbClient.Close(); err != nil {
		slog.Error("Error closing database", "error", err)
	}

	slog.Info("Shutdown complete")
	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
