// Command authorize runs the OAuth consent flow for the calendar service
// and saves the resulting token where the server expects it.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/platform/gcal"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	timeout := flag.Duration("timeout", 5*time.Minute, "how long to wait for consent")
	flag.Parse()

	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Fatalf("authorize: failed to load configuration: %v", err)
	}

	oauthCfg, err := gcal.OAuthConfig(cfg.Calendar.CredentialsPath)
	if err != nil {
		log.Fatalf("authorize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	if err := gcal.Authorize(ctx, oauthCfg, cfg.Calendar.TokenPath, os.Stdout); err != nil {
		log.Fatalf("authorize: %v", err)
	}
	log.Printf("token saved to %s", cfg.Calendar.TokenPath)
}
