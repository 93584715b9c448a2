package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Manager errors
var (
	ErrStopTimeout    = errors.New("timed out waiting for consumer to stop")
	ErrWorkerStopping = errors.New("consumer is still stopping")
)

// WorkerState describes the consumer lifecycle as reported by Status.
type WorkerState string

// Possible consumer states
const (
	StateRunning  WorkerState = "running"
	StateStopping WorkerState = "stopping"
	StateStopped  WorkerState = "stopped"
	StateCrashed  WorkerState = "crashed"
)

// ManagerConfig holds configuration for the consumer manager
type ManagerConfig struct {
	// RecoverRunning resets tasks left running by a previous process back
	// to pending on the first Start.
	RecoverRunning bool
}

// Worker is a handle to one consumer goroutine.
type Worker struct {
	id       int
	stop     context.CancelFunc
	abort    context.CancelFunc
	done     chan struct{}
	err      error
	stopping atomic.Bool
}

// ID returns the sequence number of the worker within its manager.
func (w *Worker) ID() int {
	return w.id
}

// Done is closed when the worker goroutine has exited.
func (w *Worker) Done() <-chan struct{} {
	return w.done
}

// Err returns the error that ended the worker, or nil after a clean stop.
// It must only be called after Done is closed.
func (w *Worker) Err() error {
	return w.err
}

func (w *Worker) exited() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

// Manager owns the lifecycle of the single consumer. One Manager is
// created at process start and shared by everything that needs to start,
// stop or inspect the consumer.
type Manager struct {
	mu         sync.Mutex
	queue      *Queue
	registry   *Registry
	logger     *slog.Logger
	config     ManagerConfig
	worker     *Worker
	recovered  bool
	seq        int
	errHandler func(task *Task, taskErr *Error)
}

// NewManager creates a manager for a consumer of queue dispatching through
// registry.
func NewManager(queue *Queue, registry *Registry, config ManagerConfig, logger *slog.Logger) *Manager {
	return &Manager{
		queue:    queue,
		registry: registry,
		config:   config,
		logger:   logger.With("component", "consumer_manager"),
	}
}

// SetErrorHandler sets the failure callback passed to every consumer the
// manager starts.
func (m *Manager) SetErrorHandler(handler func(task *Task, taskErr *Error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errHandler = handler
}

// Start launches the consumer if it is not already running and returns its
// handle. Calling Start while a consumer is live returns the same handle.
// The registry is sealed on the first call.
func (m *Manager) Start(ctx context.Context) (*Worker, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if w := m.worker; w != nil && !w.exited() {
		if w.stopping.Load() {
			return nil, ErrWorkerStopping
		}
		return w, nil
	}

	m.registry.Seal()

	if m.config.RecoverRunning && !m.recovered {
		if _, err := m.queue.Recover(ctx); err != nil {
			return nil, fmt.Errorf("failed to recover tasks: %w", err)
		}
	}
	m.recovered = true

	stopCtx, stop := context.WithCancel(context.Background())
	taskCtx, abort := context.WithCancel(context.Background())

	m.seq++
	w := &Worker{
		id:    m.seq,
		stop:  stop,
		abort: abort,
		done:  make(chan struct{}),
	}

	consumer := NewConsumer(m.queue, m.registry, m.logger.With("worker_id", w.id))
	consumer.SetErrorHandler(m.errHandler)

	go func() {
		defer close(w.done)
		defer abort()
		defer stop()

		w.err = consumer.Run(stopCtx, taskCtx)
		if w.err != nil {
			m.logger.Error("consumer exited with error", "worker_id", w.id, "error", w.err)
		}
	}()

	m.worker = w
	m.logger.Info("consumer started", "worker_id", w.id, "tasks", m.registry.Names())
	return w, nil
}

// Stop signals the consumer to stop and waits up to timeout for it to
// exit. A graceful stop lets the task in flight finish; otherwise the
// task's context is cancelled as well. ErrStopTimeout is returned when the
// wait elapses; the consumer still exits on its own afterwards.
// Stop on a manager without a live consumer is a no-op.
func (m *Manager) Stop(graceful bool, timeout time.Duration) error {
	m.mu.Lock()
	w := m.worker
	if w == nil || w.exited() {
		m.mu.Unlock()
		return nil
	}
	w.stopping.Store(true)
	w.stop()
	if !graceful {
		w.abort()
	}
	m.mu.Unlock()

	m.logger.Info("stopping consumer", "worker_id", w.id, "graceful", graceful, "timeout", timeout)

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-w.done:
		m.logger.Info("consumer stopped", "worker_id", w.id)
		return nil
	case <-timer.C:
		m.logger.Warn("consumer did not stop in time", "worker_id", w.id, "timeout", timeout)
		return ErrStopTimeout
	}
}

// Status reports the consumer lifecycle state.
func (m *Manager) Status() WorkerState {
	m.mu.Lock()
	defer m.mu.Unlock()

	w := m.worker
	switch {
	case w == nil:
		return StateStopped
	case !w.exited():
		if w.stopping.Load() {
			return StateStopping
		}
		return StateRunning
	case w.err != nil && !w.stopping.Load():
		return StateCrashed
	default:
		return StateStopped
	}
}
