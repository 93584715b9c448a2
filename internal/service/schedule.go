package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/jobs"
	"github.com/phrazzld/cumo/internal/store"
	"github.com/phrazzld/cumo/internal/task"
)

// EventParser converts free text into an event payload.
type EventParser interface {
	Parse(ctx context.Context, text string) (calendar.EventPayload, error)
}

// CalendarSelection reads the calendar chosen by the user.
type CalendarSelection interface {
	// SelectedCalendarID returns "" when no calendar is selected.
	SelectedCalendarID(ctx context.Context) (string, error)
}

// TaskQueue is the part of the task queue the service uses.
type TaskQueue interface {
	Enqueue(ctx context.Context, name string, args any) (task.Handle, error)
	Get(ctx context.Context, id uuid.UUID) (*task.Task, error)
}

// ScheduleService enqueues calendar pushes and debug tasks.
type ScheduleService struct {
	queue    TaskQueue
	settings CalendarSelection
	parser   EventParser
	logger   *slog.Logger
}

// NewScheduleService creates a ScheduleService. parser may be nil, in which
// case requests carrying free text fail with ErrParserUnavailable.
func NewScheduleService(
	queue TaskQueue,
	settings CalendarSelection,
	parser EventParser,
	logger *slog.Logger,
) (*ScheduleService, error) {
	if queue == nil {
		return nil, errors.New("queue cannot be nil")
	}
	if settings == nil {
		return nil, errors.New("settings cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &ScheduleService{
		queue:    queue,
		settings: settings,
		parser:   parser,
		logger:   logger.With("component", "schedule_service"),
	}, nil
}

// ParseText runs the natural language parser on text.
func (s *ScheduleService) ParseText(ctx context.Context, text string) (calendar.EventPayload, error) {
	if s.parser == nil {
		return calendar.EventPayload{}, ErrParserUnavailable
	}

	payload, err := s.parser.Parse(ctx, text)
	if err != nil {
		return calendar.EventPayload{}, fmt.Errorf("%w: %w", ErrParseFailed, err)
	}
	return payload, nil
}

// Schedule enqueues a push of the event described by body to the selected
// calendar. The payload is body["event"] when that is an object, the parsed
// body["text"] when present, and otherwise body itself. A nil body means
// the request was not a JSON object.
//
// The calendar selection is checked before the payload so a missing
// calendar is reported regardless of what was submitted.
func (s *ScheduleService) Schedule(ctx context.Context, body map[string]any) (task.Handle, error) {
	calendarID, err := s.settings.SelectedCalendarID(ctx)
	if err != nil {
		return task.Handle{}, fmt.Errorf("failed to read calendar selection: %w", err)
	}
	if calendarID == "" {
		return task.Handle{}, ErrNoCalendarSelected
	}

	payload, err := s.resolvePayload(ctx, body)
	if err != nil {
		return task.Handle{}, err
	}

	handle, err := s.queue.Enqueue(ctx, jobs.PushToCalendarName, jobs.PushArgs{
		Event:      payload,
		CalendarID: calendarID,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue calendar push",
			"error", err,
			"calendar_id", calendarID)
		return task.Handle{}, err
	}

	s.logger.InfoContext(ctx, "calendar push enqueued",
		"task_id", handle.ID,
		"calendar_id", calendarID)
	return handle, nil
}

func (s *ScheduleService) resolvePayload(ctx context.Context, body map[string]any) (calendar.EventPayload, error) {
	if body == nil {
		return calendar.EventPayload{}, ErrInvalidEventPayload
	}

	if event, ok := body["event"].(map[string]any); ok {
		return calendar.PayloadFromMap(event), nil
	}

	if raw, ok := body["text"]; ok {
		text, isString := raw.(string)
		if !isString {
			return calendar.EventPayload{}, ErrTextNotString
		}
		return s.ParseText(ctx, text)
	}

	return calendar.PayloadFromMap(body), nil
}

// EnqueueDebug enqueues the debug task with payload.
func (s *ScheduleService) EnqueueDebug(ctx context.Context, payload json.RawMessage) (task.Handle, error) {
	handle, err := s.queue.Enqueue(ctx, jobs.DebugTaskName, jobs.DebugArgs{Payload: payload})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue debug task", "error", err)
		return task.Handle{}, err
	}
	return handle, nil
}

// GetTask returns a snapshot of the task with the given id.
func (s *ScheduleService) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	t, err := s.queue.Get(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to load task %s: %w", id, err)
	}
	return t, nil
}
