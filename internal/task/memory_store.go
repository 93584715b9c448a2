package task

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is a non-durable Store used in tests and for dry runs.
// The Fn fields, when set, replace the corresponding method so tests can
// inject failures.
type MemoryStore struct {
	mu    sync.Mutex
	order []uuid.UUID
	tasks map[uuid.UUID]*Task

	InsertFn    func(ctx context.Context, task *Task) error
	ClaimNextFn func(ctx context.Context) (*Task, error)
	CompleteFn  func(ctx context.Context, id uuid.UUID, result json.RawMessage) error
	FailFn      func(ctx context.Context, id uuid.UUID, taskErr *Error) error
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tasks: make(map[uuid.UUID]*Task)}
}

// Insert implements Store.
func (s *MemoryStore) Insert(ctx context.Context, task *Task) error {
	if s.InsertFn != nil {
		return s.InsertFn(ctx, task)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.tasks[task.ID] = cloneTask(task)
	s.order = append(s.order, task.ID)
	return nil
}

// ClaimNext implements Store.
func (s *MemoryStore) ClaimNext(ctx context.Context) (*Task, error) {
	if s.ClaimNextFn != nil {
		return s.ClaimNextFn(ctx)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, id := range s.order {
		t := s.tasks[id]
		if t.Status == StatusPending {
			t.Status = StatusRunning
			t.UpdatedAt = time.Now().UTC()
			return cloneTask(t), nil
		}
	}
	return nil, nil
}

// Complete implements Store.
func (s *MemoryStore) Complete(ctx context.Context, id uuid.UUID, result json.RawMessage) error {
	if s.CompleteFn != nil {
		return s.CompleteFn(ctx, id, result)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != StatusRunning {
		return nil
	}
	t.Status = StatusSucceeded
	t.Result = append(json.RawMessage(nil), result...)
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Fail implements Store.
func (s *MemoryStore) Fail(ctx context.Context, id uuid.UUID, taskErr *Error) error {
	if s.FailFn != nil {
		return s.FailFn(ctx, id, taskErr)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok || t.Status != StatusRunning {
		return nil
	}
	e := *taskErr
	t.Status = StatusFailed
	t.Error = &e
	t.UpdatedAt = time.Now().UTC()
	return nil
}

// Get implements Store.
func (s *MemoryStore) Get(ctx context.Context, id uuid.UUID) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, ErrTaskNotFound
	}
	return cloneTask(t), nil
}

// ResetRunning implements Store.
func (s *MemoryStore) ResetRunning(ctx context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for _, t := range s.tasks {
		if t.Status == StatusRunning {
			t.Status = StatusPending
			t.UpdatedAt = time.Now().UTC()
			n++
		}
	}
	return n, nil
}

// All returns snapshots of every task in insertion order.
func (s *MemoryStore) All() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]*Task, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, cloneTask(s.tasks[id]))
	}
	return out
}

func cloneTask(t *Task) *Task {
	c := *t
	c.Args = append(json.RawMessage(nil), t.Args...)
	if t.Result != nil {
		c.Result = append(json.RawMessage(nil), t.Result...)
	}
	if t.Error != nil {
		e := *t.Error
		c.Error = &e
	}
	return &c
}
