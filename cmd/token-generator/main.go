// Command token-generator prints an API token signed with the configured
// JWT secret, for clients of a server running with auth enabled.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"

	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/service/auth"
)

func main() {
	configPath := flag.String("config", "", "path to a config file")
	subject := flag.String("subject", "desktop", "token subject")
	flag.Parse()

	token, err := generate(*configPath, *subject)
	if err != nil {
		log.Fatalf("token-generator: %v", err)
	}
	fmt.Println(token)
}

func generate(configPath, subject string) (string, error) {
	cfg, err := config.LoadFrom(configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Auth.JWTSecret == "" {
		return "", fmt.Errorf("auth.jwt_secret is not configured")
	}

	svc, err := auth.NewJWTService(cfg.Auth)
	if err != nil {
		return "", err
	}
	return svc.GenerateToken(context.Background(), subject)
}
