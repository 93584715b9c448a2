package task

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/store"
)

// Status represents the current state of a task
type Status string

// Possible task status values
const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

// Terminal reports whether no further transition can leave s.
func (s Status) Terminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// ErrTaskNotFound is returned by Store.Get for an unknown id.
var ErrTaskNotFound = fmt.Errorf("%w: task", store.ErrNotFound)

// Task is a named, durable unit of deferred work.
// ID, Name, Args and EnqueuedAt never change after enqueue.
type Task struct {
	ID         uuid.UUID       `json:"id"`
	Name       string          `json:"name"`
	Args       json.RawMessage `json:"args"`
	Status     Status          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      *Error          `json:"error,omitempty"`
	EnqueuedAt time.Time       `json:"enqueued_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Error is the structured description recorded on a failed task.
type Error struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Handle identifies an enqueued task.
type Handle struct {
	ID uuid.UUID `json:"task_id"`
}

// Store defines the interface for persisting tasks.
// Implementations must make every method atomic with respect to the others.
type Store interface {
	// Insert durably persists a new pending task. It must not return
	// before the task would survive a crash.
	Insert(ctx context.Context, task *Task) error

	// ClaimNext atomically moves the oldest pending task to running and
	// returns it. It returns nil, nil when no task is pending.
	ClaimNext(ctx context.Context) (*Task, error)

	// Complete moves a running task to succeeded with the given result.
	// It is a no-op for a task that is not running.
	Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error

	// Fail moves a running task to failed with the given error.
	// It is a no-op for a task that is not running.
	Fail(ctx context.Context, id uuid.UUID, taskErr *Error) error

	// Get returns a snapshot of the task, or ErrTaskNotFound.
	Get(ctx context.Context, id uuid.UUID) (*Task, error)

	// ResetRunning moves every running task back to pending and reports
	// how many were reset.
	ResetRunning(ctx context.Context) (int64, error)
}
