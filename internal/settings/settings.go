// Package settings persists user preferences, such as the selected
// calendar, in a small TOML file.
package settings

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// SelectedCalendarKey is the setting holding the id of the calendar new
// events are pushed to.
const SelectedCalendarKey = "selectedCalendarId"

// FileStore keeps settings in a TOML file. Every read reloads the file, so
// edits made while the process runs are picked up.
type FileStore struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
}

// NewFileStore creates a store backed by the file at path. The file need
// not exist yet.
func NewFileStore(path string, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		logger: logger.With("component", "settings"),
	}
}

// Path returns the settings file location.
func (s *FileStore) Path() string {
	return s.path
}

// All returns every stored setting. A missing or unreadable file yields an
// empty set.
func (s *FileStore) All(ctx context.Context) (map[string]any, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load(), nil
}

// Set stores value under key and returns the resulting settings. A nil
// value removes the key.
func (s *FileStore) Set(ctx context.Context, key string, value any) (map[string]any, error) {
	if key == "" {
		return nil, fmt.Errorf("setting key cannot be empty")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data := s.load()
	if value == nil {
		delete(data, key)
	} else {
		data[key] = value
	}

	if err := s.save(data); err != nil {
		return nil, err
	}
	return data, nil
}

// SelectedCalendarID returns the selected calendar id, or "" when none is
// set.
func (s *FileStore) SelectedCalendarID(ctx context.Context) (string, error) {
	all, err := s.All(ctx)
	if err != nil {
		return "", err
	}
	id, _ := all[SelectedCalendarKey].(string)
	return id, nil
}

// SetSelectedCalendarID stores the selected calendar id.
func (s *FileStore) SetSelectedCalendarID(ctx context.Context, id string) error {
	_, err := s.Set(ctx, SelectedCalendarKey, id)
	return err
}

func (s *FileStore) load() map[string]any {
	data := map[string]any{}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			s.logger.Warn("failed to read settings file", "path", s.path, "error", err)
		}
		return data
	}

	if _, err := toml.Decode(string(raw), &data); err != nil {
		s.logger.Warn("ignoring malformed settings file", "path", s.path, "error", err)
		return map[string]any{}
	}
	return data
}

// save writes data to a temporary file and renames it over the settings
// file so readers never see a partial write.
func (s *FileStore) save(data map[string]any) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating settings directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".settings-*.toml")
	if err != nil {
		return fmt.Errorf("creating settings file: %w", err)
	}
	tmp := f.Name()
	defer os.Remove(tmp)

	if err := toml.NewEncoder(f).Encode(data); err != nil {
		_ = f.Close()
		return fmt.Errorf("encoding settings: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("writing settings file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replacing settings file: %w", err)
	}
	return nil
}
