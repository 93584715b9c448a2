package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" database/sql driver
	"github.com/phrazzld/cumo/internal/platform/logger"
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

// TaskStore implements task.Store using PostgreSQL.
type TaskStore struct {
	db  store.DBTX
	now func() time.Time
}

var _ task.Store = (*TaskStore)(nil)

// Open connects to databaseURL, applies pending migrations and returns
// the store together with the connection pool, which the caller closes.
func Open(ctx context.Context, databaseURL string, logger *slog.Logger) (*TaskStore, *sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open task database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("failed to connect to task database: %w", err)
	}

	if _, err := migrate.Up(ctx, db, goose.DialectPostgres, Migrations, logger); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	logger.Info("task database ready", "driver", "postgres")
	return NewTaskStore(db), db, nil
}

// NewTaskStore creates a TaskStore on db.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{db: db, now: time.Now}
}

// Insert implements task.Store.
func (s *TaskStore) Insert(ctx context.Context, t *task.Task) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (id, name, args, status, enqueued_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		t.ID, t.Name, string(t.Args), string(t.Status), t.EnqueuedAt.UTC(), t.UpdatedAt.UTC(),
	)
	if err != nil {
		logger.FromContext(ctx).Error("failed to insert task",
			"task_id", t.ID, "task_name", t.Name, "error", err)
		return store.NewStoreError("task", "insert", MapError(err))
	}
	return nil
}

// ClaimNext implements task.Store.
func (s *TaskStore) ClaimNext(ctx context.Context) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `
		UPDATE tasks SET status = $1, updated_at = $2
		WHERE seq = (
			SELECT seq FROM tasks
			WHERE status = $3
			ORDER BY seq
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING `+taskColumns,
		string(task.StatusRunning), s.now().UTC(), string(task.StatusPending),
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, store.NewStoreError("task", "claim", MapError(err))
	}
	return t, nil
}

// Complete implements task.Store.
func (s *TaskStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, result = $2, updated_at = $3
		WHERE id = $4 AND status = $5`,
		string(task.StatusSucceeded), string(result), s.now().UTC(), id, string(task.StatusRunning),
	)
	if err != nil {
		return store.NewStoreError("task", "complete", MapError(err))
	}
	return nil
}

// Fail implements task.Store.
func (s *TaskStore) Fail(ctx context.Context, id uuid.UUID, taskErr *task.Error) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE tasks SET status = $1, error_kind = $2, error_message = $3, updated_at = $4
		WHERE id = $5 AND status = $6`,
		string(task.StatusFailed), taskErr.Kind, taskErr.Message, s.now().UTC(), id, string(task.StatusRunning),
	)
	if err != nil {
		return store.NewStoreError("task", "fail", MapError(err))
	}
	return nil
}

// Get implements task.Store.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, task.ErrTaskNotFound
	}
	if err != nil {
		return nil, store.NewStoreError("task", "get", MapError(err))
	}
	return t, nil
}

// ResetRunning implements task.Store.
func (s *TaskStore) ResetRunning(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET status = $1, updated_at = $2 WHERE status = $3`,
		string(task.StatusPending), s.now().UTC(), string(task.StatusRunning),
	)
	if err != nil {
		return 0, store.NewStoreError("task", "reset", MapError(err))
	}
	return res.RowsAffected()
}

func scanTask(row *sql.Row) (*task.Task, error) {
	var (
		t            task.Task
		status       string
		args         []byte
		result       []byte
		errorKind    sql.NullString
		errorMessage sql.NullString
	)

	err := row.Scan(&t.ID, &t.Name, &args, &status, &result, &errorKind, &errorMessage,
		&t.EnqueuedAt, &t.UpdatedAt)
	if err != nil {
		return nil, err
	}

	t.Status = task.Status(status)
	t.Args = json.RawMessage(args)
	if result != nil {
		t.Result = json.RawMessage(result)
	}
	if errorKind.Valid {
		t.Error = &task.Error{Kind: errorKind.String, Message: errorMessage.String}
	}
	return &t, nil
}
