package task

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func setupTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestQueue(store Store) *Queue {
	return NewQueue(store, QueueConfig{PollInterval: 10 * time.Millisecond}, setupTestLogger())
}

// waitForStatus polls the store until the task reaches want.
func waitForStatus(t *testing.T, q *Queue, id uuid.UUID, want Status) *Task {
	t.Helper()

	var got *Task
	require.Eventually(t, func() bool {
		task, err := q.Get(context.Background(), id)
		if err != nil {
			return false
		}
		got = task
		return task.Status == want
	}, 2*time.Second, 5*time.Millisecond, "task %s never reached %s", id, want)
	return got
}
