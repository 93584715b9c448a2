// Package auth issues and validates the bearer tokens that guard the HTTP
// API when a signing secret is configured.
package auth

import (
	"context"
	"time"
)

// JWTService defines operations for managing API access tokens.
type JWTService interface {
	// GenerateToken creates a signed access token for the named client.
	GenerateToken(ctx context.Context, subject string) (string, error)

	// ValidateToken validates the token string and extracts its claims.
	// It returns ErrExpiredToken, ErrTokenNotYetValid or ErrInvalidToken
	// when validation fails.
	ValidateToken(ctx context.Context, tokenString string) (*Claims, error)
}

// Claims identifies the client a token was issued to.
type Claims struct {
	Subject   string    `json:"sub"`
	IssuedAt  time.Time `json:"iat"`
	ExpiresAt time.Time `json:"exp"`
	ID        string    `json:"jti"`
}
