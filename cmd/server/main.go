// Package main runs the cumo backend: the HTTP API and the task consumer
// that pushes scheduled events to the calendar service.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/platform/logger"
)

func main() {
	configPath := flag.String("config", "", "path to a config file (default ./config.yaml if present)")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath); err != nil {
		log.Printf("cumo: %v", err)
		os.Exit(1)
	}
}

// run loads configuration, wires the application and serves until ctx is
// cancelled. The consumer is always stopped before run returns.
func run(ctx context.Context, configPath string) error {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("configuration loaded",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"queue_driver", cfg.Queue.Driver,
		"nlp_configured", cfg.LLM.GeminiAPIKey != "",
		"auth_enabled", cfg.Auth.JWTSecret != "")

	app, err := newApplication(ctx, cfg, l)
	if err != nil {
		return err
	}
	defer app.shutdown()

	if err := app.start(ctx); err != nil {
		return err
	}

	return app.serve(ctx, app.setupRouter())
}
