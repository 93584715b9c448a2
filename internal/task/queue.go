package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/domain"
)

// QueueConfig holds configuration options for the task queue
type QueueConfig struct {
	// PollInterval bounds how long Next waits before re-checking the store
	// when no local enqueue woke it. Tasks inserted by other processes are
	// picked up within this interval.
	PollInterval time.Duration
}

// DefaultQueueConfig returns a QueueConfig with reasonable defaults
func DefaultQueueConfig() QueueConfig {
	return QueueConfig{
		PollInterval: 500 * time.Millisecond,
	}
}

// Queue is the durable, FIFO task queue. Enqueue may be called from any
// number of goroutines; Next is meant for the single consumer.
type Queue struct {
	store  Store
	config QueueConfig
	logger *slog.Logger
	wake   chan struct{}
	now    func() time.Time
}

// NewQueue creates a queue persisting tasks in store.
func NewQueue(store Store, config QueueConfig, logger *slog.Logger) *Queue {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultQueueConfig().PollInterval
	}

	return &Queue{
		store:  store,
		config: config,
		logger: logger.With("component", "task_queue"),
		wake:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// Enqueue durably appends a pending task and returns its handle. It never
// waits for the task to run. args must encode to a JSON object; nil is
// stored as an empty object.
func (q *Queue) Enqueue(ctx context.Context, name string, args any) (Handle, error) {
	if name == "" {
		return Handle{}, fmt.Errorf("%w: task name cannot be empty", domain.ErrValidation)
	}

	raw, err := encodeArgs(args)
	if err != nil {
		return Handle{}, fmt.Errorf("%w: failed to encode arguments for %s: %v", domain.ErrValidation, name, err)
	}

	now := q.now().UTC()
	t := &Task{
		ID:         uuid.New(),
		Name:       name,
		Args:       raw,
		Status:     StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}

	if err := q.store.Insert(ctx, t); err != nil {
		return Handle{}, fmt.Errorf("failed to save task: %w", err)
	}

	// Wake an idle consumer without blocking the caller
	select {
	case q.wake <- struct{}{}:
	default:
	}

	q.logger.Debug("task enqueued", "task_id", t.ID, "task_name", name)
	return Handle{ID: t.ID}, nil
}

// Next claims the oldest pending task, waiting until one exists or ctx is
// done. A cancelled wait returns ctx.Err(). A claim that has reached the
// store is never abandoned because of ctx.
func (q *Queue) Next(ctx context.Context) (*Task, error) {
	ticker := time.NewTicker(q.config.PollInterval)
	defer ticker.Stop()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		t, err := q.TryNext(context.WithoutCancel(ctx))
		if err != nil {
			return nil, err
		}
		if t != nil {
			return t, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-q.wake:
		case <-ticker.C:
		}
	}
}

// TryNext claims the oldest pending task without waiting. It returns
// nil, nil when the queue is empty.
func (q *Queue) TryNext(ctx context.Context) (*Task, error) {
	t, err := q.store.ClaimNext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to claim next task: %w", err)
	}
	return t, nil
}

// Complete records a successful result for a running task.
func (q *Queue) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if len(result) == 0 {
		result = json.RawMessage("null")
	}
	if err := q.store.Complete(ctx, id, result); err != nil {
		return fmt.Errorf("failed to complete task %s: %w", id, err)
	}
	return nil
}

// Fail records a failure for a running task.
func (q *Queue) Fail(ctx context.Context, id uuid.UUID, taskErr *Error) error {
	if taskErr == nil {
		taskErr = &Error{Kind: domain.KindInternal, Message: "unknown failure"}
	}
	if err := q.store.Fail(ctx, id, taskErr); err != nil {
		return fmt.Errorf("failed to fail task %s: %w", id, err)
	}
	return nil
}

// Get returns a snapshot of the task with the given id.
func (q *Queue) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	return q.store.Get(ctx, id)
}

// Recover resets tasks left running by a previous process back to pending.
func (q *Queue) Recover(ctx context.Context) (int64, error) {
	n, err := q.store.ResetRunning(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to reset running tasks: %w", err)
	}
	if n > 0 {
		q.logger.Info("requeued interrupted tasks", "count", n)
	}
	return n, nil
}

func encodeArgs(args any) (json.RawMessage, error) {
	var raw json.RawMessage
	switch v := args.(type) {
	case nil:
		return json.RawMessage("{}"), nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		raw = b
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, fmt.Errorf("arguments must be a JSON object: %w", err)
	}
	if obj == nil {
		return json.RawMessage("{}"), nil
	}
	return raw, nil
}
