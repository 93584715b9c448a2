package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/phrazzld/cumo/internal/platform/migrate"
	"github.com/phrazzld/cumo/internal/store"
	"github.com/phrazzld/cumo/internal/task"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Migrations holds the embedded schema migrations.
var Migrations = migrate.SubFS(migrationsFS, "migrations")

const taskColumns = `id, name, args, status, result, error_kind, error_message, enqueued_at, updated_at`

// TaskStore implements task.Store on a SQLite database.
type TaskStore struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

var _ task.Store = (*TaskStore)(nil)

// DSN builds the connection string used for the database at path.
func DSN(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_txlock", "immediate")
	params.Set("_synchronous", "FULL")
	return "file:" + path + "?" + params.Encode()
}

// Open opens (creating if needed) the database at path and applies
// pending migrations.
func Open(ctx context.Context, path string, logger *slog.Logger) (*TaskStore, error) {
	db, err := sql.Open("sqlite3", DSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open task database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to task database %s: %w", path, err)
	}

	if _, err := migrate.Up(ctx, db, goose.DialectSQLite3, Migrations, logger); err != nil {
		_ = db.Close()
		return nil, err
	}

	// A single connection serializes writers inside this process
	db.SetMaxOpenConns(1)

	logger.Info("task database ready", "driver", "sqlite", "path", path)
	return New(db, logger), nil
}

// New wraps an already migrated database.
func New(db *sql.DB, logger *slog.Logger) *TaskStore {
	return &TaskStore{
		db:     db,
		logger: logger.With("component", "sqlite_task_store"),
		now:    time.Now,
	}
}

// Close closes the underlying database.
func (s *TaskStore) Close() error {
	return s.db.Close()
}

// Insert implements task.Store.
func (s *TaskStore) Insert(ctx context.Context, t *task.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, args, status, enqueued_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		t.ID, t.Name, string(t.Args), t.Status, t.EnqueuedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		s.logger.Error("failed to insert task", "task_id", t.ID, "task_name", t.Name, "error", err)
		return store.NewStoreError("task", "insert", mapError(err))
	}
	return nil
}

// ClaimNext implements task.Store.
func (s *TaskStore) ClaimNext(ctx context.Context) (*task.Task, error) {
	var claimed *task.Task

	err := store.RunInTransaction(ctx, s.db, func(ctx context.Context, tx *sql.Tx) error {
		var seq int64
		err := tx.QueryRowContext(ctx,
			`SELECT seq FROM tasks WHERE status = ? ORDER BY seq LIMIT 1`,
			task.StatusPending,
		).Scan(&seq)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE tasks SET status = ?, updated_at = ? WHERE seq = ?`,
			task.StatusRunning, s.now().UTC(), seq,
		); err != nil {
			return err
		}

		claimed, err = scanTask(tx.QueryRowContext(ctx,
			`SELECT `+taskColumns+` FROM tasks WHERE seq = ?`, seq))
		return err
	})
	if err != nil {
		return nil, store.NewStoreError("task", "claim", mapError(err))
	}
	return claimed, nil
}

// Complete implements task.Store.
func (s *TaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	return s.finish(ctx, "complete", id, `
		UPDATE tasks SET status = ?, result = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		task.StatusSucceeded, string(result), s.now().UTC(), id, task.StatusRunning,
	)
}

// Fail implements task.Store.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, taskErr *task.Error) error {
	return s.finish(ctx, "fail", id, `
		UPDATE tasks SET status = ?, error_kind = ?, error_message = ?, updated_at = ?
		WHERE id = ? AND status = ?`,
		task.StatusFailed, taskErr.Kind, taskErr.Message, s.now().UTC(), id, task.StatusRunning,
	)
}

func (s *TaskStore) finish(ctx context.Context, op string, id uuid.UUID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		s.logger.Error("failed to record task outcome", "task_id", id, "operation", op, "error", err)
		return store.NewStoreError("task", op, mapError(err))
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		s.logger.Warn("ignored transition of task that is not running", "task_id", id, "operation", op)
	}
	return nil
}

// Get implements task.Store.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "get", mapError(err))
	}
	return t, nil
}

// ResetRunning implements task.Store.
func (s *TaskStore) ResetRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = ?, updated_at = ? WHERE status = ?`,
		task.StatusPending, s.now().UTC(), task.StatusRunning,
	)
	if err != nil {
		return 0, store.NewStoreError("task", "reset", mapError(err))
	}
	return res.RowsAffected()
}

func scanTask(row *sql.Row) (*task.Task, error) {
	var (
		t            task.Task
		args         string
		result       sql.NullString
		errorKind    sql.NullString
		errorMessage sql.NullString
	)

	err := row.Scan(&t.ID, &t.Name, &args, &t.Status, &result, &errorKind, &errorMessage,
		&t.EnqueuedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Args = json.RawMessage(args)
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	if errorKind.Valid {
		t.Error = &task.Error{Kind: errorKind.String, Message: errorMessage.String}
	}
	return &t, nil
}

// mapError translates SQLite constraint errors into store errors.
func mapError(err error) error {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.Code == sqlite3.ErrConstraint {
		switch sqliteErr.ExtendedCode {
		case sqlite3.ErrConstraintUnique, sqlite3.ErrConstraintPrimaryKey:
			return fmt.Errorf("%w: %w", store.ErrDuplicate, err)
		default:
			return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
	}
	return err
}
