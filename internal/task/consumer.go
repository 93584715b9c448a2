package task

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/phrazzld/cumo/internal/platform/logger"
)

// recordTimeout bounds how long the consumer waits for the store when
// recording a terminal state.
const recordTimeout = 10 * time.Second

// Consumer executes tasks one at a time: claim, dispatch, record, repeat.
type Consumer struct {
	queue    *Queue
	registry *Registry
	logger   *slog.Logger

	// errHandler is called after a failed task has been recorded.
	// If nil, failures are only logged.
	errHandler func(task *Task, taskErr *Error)
}

// NewConsumer creates a consumer reading from queue and dispatching through
// registry.
func NewConsumer(queue *Queue, registry *Registry, logger *slog.Logger) *Consumer {
	return &Consumer{
		queue:    queue,
		registry: registry,
		logger:   logger.With("component", "task_consumer"),
	}
}

// SetErrorHandler allows setting a custom handler for task failures
func (c *Consumer) SetErrorHandler(handler func(task *Task, taskErr *Error)) {
	c.errHandler = handler
}

// Run processes tasks until stopCtx is done or the store fails.
//
// stopCtx only interrupts the wait for the next task; a claimed task always
// reaches a terminal state before Run returns. taskCtx is passed to
// handlers, so cancelling it aborts the task in flight.
//
// Run returns nil after a stop and a non-nil error when the loop ended
// because of an infrastructure failure.
func (c *Consumer) Run(stopCtx, taskCtx context.Context) error {
	c.logger.Info("consumer started")
	defer c.logger.Info("consumer stopped")

	for {
		if stopCtx.Err() != nil {
			return nil
		}

		t, err := c.queue.Next(stopCtx)
		if err != nil {
			if stopCtx.Err() != nil && errors.Is(err, stopCtx.Err()) {
				return nil
			}
			c.logger.Error("failed to claim task", "error", err)
			return err
		}

		if err := c.process(taskCtx, t); err != nil {
			c.logger.Error("failed to record task outcome",
				"task_id", t.ID,
				"task_name", t.Name,
				"error", err)
			return err
		}
	}
}

// process dispatches a claimed task and records its terminal state.
func (c *Consumer) process(ctx context.Context, t *Task) error {
	log := c.logger.With("task_id", t.ID, "task_name", t.Name)
	log.Info("processing task")

	start := time.Now()
	outcome := c.registry.Dispatch(logger.WithLogger(ctx, log), t.Name, t.Args)
	duration := time.Since(start)

	recordCtx, cancel := context.WithTimeout(context.Background(), recordTimeout)
	defer cancel()

	if outcome.Succeeded() {
		if err := c.queue.Complete(recordCtx, t.ID, outcome.Result); err != nil {
			return err
		}
		log.Info("task completed successfully", "duration_ms", duration.Milliseconds())
		return nil
	}

	if err := c.queue.Fail(recordCtx, t.ID, outcome.Err); err != nil {
		return err
	}
	log.Warn("task execution failed",
		"error_kind", outcome.Err.Kind,
		"error", outcome.Err.Message,
		"duration_ms", duration.Milliseconds())

	if c.errHandler != nil {
		c.errHandler(t, outcome.Err)
	}
	return nil
}

