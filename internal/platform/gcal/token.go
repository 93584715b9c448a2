package gcal

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/phrazzld/cumo/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarv3 "google.golang.org/api/calendar/v3"
)

// ErrNotAuthorized is returned when no token file exists yet.
var ErrNotAuthorized = fmt.Errorf("%w: no OAuth token, run the authorize command", domain.ErrAuth)

// OAuthConfig reads the client credentials file downloaded from the Google
// Cloud console.
func OAuthConfig(credentialsPath string) (*oauth2.Config, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: OAuth credentials not found at %s", domain.ErrConfig, credentialsPath)
		}
		return nil, fmt.Errorf("failed to read OAuth credentials: %w", err)
	}

	cfg, err := google.ConfigFromJSON(b, calendarv3.CalendarScope)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid OAuth credentials file: %v", domain.ErrConfig, err)
	}
	return cfg, nil
}

// LoadToken reads a token saved by SaveToken.
func LoadToken(path string) (*oauth2.Token, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrNotAuthorized
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(b, &tok); err != nil {
		return nil, fmt.Errorf("%w: malformed token file: %v", domain.ErrAuth, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: token file holds no credentials", domain.ErrAuth)
	}
	return &tok, nil
}

// SaveToken writes tok to path with owner-only permissions.
func SaveToken(path string, tok *oauth2.Token) error {
	b, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode token: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create token directory: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}

// persistingSource saves every newly minted token back to the token file.
type persistingSource struct {
	base   oauth2.TokenSource
	path   string
	logger *slog.Logger

	mu   sync.Mutex
	last string
}

func newPersistingSource(base oauth2.TokenSource, path string, initial *oauth2.Token,
	logger *slog.Logger,
) *persistingSource {
	return &persistingSource{base: base, path: path, logger: logger, last: initial.AccessToken}
}

func (s *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if tok.AccessToken != s.last {
		if err := SaveToken(s.path, tok); err != nil {
			// The refreshed token is still usable for this process.
			s.logger.Warn("failed to persist refreshed token", "error", err)
		} else {
			s.logger.Info("persisted refreshed OAuth token")
		}
		s.last = tok.AccessToken
	}
	return tok, nil
}
