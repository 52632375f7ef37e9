// Observix agent — runs the pipelines assigned to this agent, reconciling
// against the control plane's assignment view.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/observix/observix/pkg/agent"
	"github.com/observix/observix/pkg/config"
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
		getEnv("OBSERVIX_AGENT_CONFIG", "agent.yaml"),
		"Path to agent configuration file")
	flag.Parse()

	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file, continuing with existing environment", "error", err)
	}

	slog.Info("Starting Observix agent",
		"version", version.Full(), "config", *configPath)

	// 1. Load configuration
	cfg, err := config.LoadAgent(*configPath)
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// 2. Run the reconciliation loop until a shutdown signal arrives
	manager := agent.NewManager(cfg)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	done := make(chan struct{})
	go func() {
		manager.Run(ctx)
		close(done)
	}()

	<-ctx.Done()
	slog.Info("Shutdown signal received")
	<-done

	// 3. Stop every pipeline, each honoring the shutdown deadline
	manager.Stop()

	slog.Info("Shutdown complete")
}
