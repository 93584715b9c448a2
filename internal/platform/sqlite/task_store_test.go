package sqlite

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/mattn/go-sqlite3"
	"github.com/phrazzld/cumo/internal/store"
	"github.com/phrazzld/cumo/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestStore(t *testing.T) (*TaskStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cumo.db")
	s, err := Open(context.Background(), path, testLogger())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, path
}

func newPendingTask(name string) *task.Task {
	now := time.Now().UTC()
	return &task.Task{
		ID:         uuid.New(),
		Name:       name,
		Args:       json.RawMessage(`{"n":1}`),
		Status:     task.StatusPending,
		EnqueuedAt: now,
		UpdatedAt:  now,
	}
}

func TestTaskStore_InsertAndGet(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	in := newPendingTask("debug_task")
	require.NoError(t, s.Insert(ctx, in))

	got, err := s.Get(ctx, in.ID)
	require.NoError(t, err)
	assert.Equal(t, in.ID, got.ID)
	assert.Equal(t, "debug_task", got.Name)
	assert.JSONEq(t, `{"n":1}`, string(got.Args))
	assert.Equal(t, task.StatusPending, got.Status)
	assert.WithinDuration(t, in.EnqueuedAt, got.EnqueuedAt, time.Millisecond)
	assert.Nil(t, got.Result)
	assert.Nil(t, got.Error)
}

func TestTaskStore_GetNotFound(t *testing.T) {
	s, _ := openTestStore(t)

	_, err := s.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, task.ErrTaskNotFound)
	assert.True(t, store.IsNotFoundError(err))
}

func TestTaskStore_InsertDuplicate(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	in := newPendingTask("debug_task")
	require.NoError(t, s.Insert(ctx, in))

	err := s.Insert(ctx, in)
	assert.ErrorIs(t, err, store.ErrDuplicate)

	var sqliteErr sqlite3.Error
	require.ErrorAs(t, err, &sqliteErr)
	assert.Equal(t, sqlite3.ErrConstraint, sqliteErr.Code)
}

func TestTaskStore_ClaimNextFIFO(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		in := newPendingTask("debug_task")
		require.NoError(t, s.Insert(ctx, in))
		ids = append(ids, in.ID)
	}

	for _, want := range ids {
		got, err := s.ClaimNext(ctx)
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, want, got.ID)
		assert.Equal(t, task.StatusRunning, got.Status)
	}

	got, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestTaskStore_TerminalTransitions(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	ok := newPendingTask("debug_task")
	bad := newPendingTask("push_to_calendar")
	require.NoError(t, s.Insert(ctx, ok))
	require.NoError(t, s.Insert(ctx, bad))

	// Pending tasks cannot be completed
	require.NoError(t, s.Complete(ctx, ok.ID, json.RawMessage(`{"ok":true}`)))
	got, err := s.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusPending, got.Status)

	_, err = s.ClaimNext(ctx)
	require.NoError(t, err)
	_, err = s.ClaimNext(ctx)
	require.NoError(t, err)

	require.NoError(t, s.Complete(ctx, ok.ID, json.RawMessage(`{"ok":true}`)))
	require.NoError(t, s.Fail(ctx, bad.ID, &task.Error{Kind: "config", Message: "no calendar selected"}))

	// Terminal states are final
	require.NoError(t, s.Fail(ctx, ok.ID, &task.Error{Kind: "remote", Message: "late"}))
	require.NoError(t, s.Complete(ctx, bad.ID, json.RawMessage(`{}`)))

	got, err = s.Get(ctx, ok.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusSucceeded, got.Status)
	assert.JSONEq(t, `{"ok":true}`, string(got.Result))
	assert.Nil(t, got.Error)

	got, err = s.Get(ctx, bad.ID)
	require.NoError(t, err)
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Nil(t, got.Result)
	require.NotNil(t, got.Error)
	assert.Equal(t, "config", got.Error.Kind)
	assert.Equal(t, "no calendar selected", got.Error.Message)
}

func TestTaskStore_ResetRunning(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)

	first := newPendingTask("debug_task")
	second := newPendingTask("debug_task")
	require.NoError(t, s.Insert(ctx, first))
	require.NoError(t, s.Insert(ctx, second))

	_, err := s.ClaimNext(ctx)
	require.NoError(t, err)

	n, err := s.ResetRunning(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	// The reset task keeps its place at the head of the queue
	got, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
}

func TestTaskStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cumo.db")

	s, err := Open(ctx, path, testLogger())
	require.NoError(t, err)
	in := newPendingTask("debug_task")
	require.NoError(t, s.Insert(ctx, in))
	require.NoError(t, s.Close())

	// Reopening applies no new migrations and keeps the pending task
	s, err = Open(ctx, path, testLogger())
	require.NoError(t, err)
	defer s.Close()

	got, err := s.ClaimNext(ctx)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, in.ID, got.ID)
}

func TestTaskStore_QueueWithConcurrentEnqueuers(t *testing.T) {
	ctx := context.Background()
	s, _ := openTestStore(t)
	q := task.NewQueue(s, task.QueueConfig{PollInterval: 10 * time.Millisecond}, testLogger())

	const producers, perProducer = 4, 10

	var mu sync.Mutex
	var order []uuid.UUID
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				// Holding the lock across Enqueue records the durable order
				mu.Lock()
				h, err := q.Enqueue(ctx, "debug_task", nil)
				if assert.NoError(t, err) {
					order = append(order, h.ID)
				}
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	require.Len(t, order, producers*perProducer)
	for _, want := range order {
		got, err := q.Next(ctx)
		require.NoError(t, err)
		assert.Equal(t, want, got.ID)
	}
}
