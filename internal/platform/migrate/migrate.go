// Package migrate applies the embedded SQL migrations of a task store
// using goose.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
)

// Up applies every pending migration found in fsys to db and reports the
// resulting schema version.
func Up(ctx context.Context, db *sql.DB, dialect goose.Dialect, fsys fs.FS, logger *slog.Logger) (int64, error) {
	log := logger.With("component", "migrations", "dialect", string(dialect))
	start := time.Now()

	provider, err := goose.NewProvider(dialect, db, fsys)
	if err != nil {
		return 0, fmt.Errorf("failed to create migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	for _, r := range results {
		if r == nil || r.Source == nil {
			continue
		}
		if r.Error != nil {
			log.Error("migration failed",
				"version", r.Source.Version,
				"path", r.Source.Path,
				"error", r.Error)
			continue
		}
		log.Info("applied migration",
			"version", r.Source.Version,
			"path", r.Source.Path,
			"duration_ms", r.Duration.Milliseconds())
	}
	if err != nil {
		return 0, fmt.Errorf("failed to apply migrations: %w", err)
	}

	version, err := provider.GetDBVersion(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}

	log.Debug("migrations complete",
		"applied", len(results),
		"version", version,
		"duration_ms", time.Since(start).Milliseconds())
	return version, nil
}

// SubFS returns the directory dir of fsys, panicking when it is invalid.
// It is meant for package-level embedded filesystems.
func SubFS(fsys fs.FS, dir string) fs.FS {
	sub, err := fs.Sub(fsys, dir)
	if err != nil {
		panic(err)
	}
	return sub
}
