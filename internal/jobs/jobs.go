// Package jobs defines the tasks the service knows how to run and
// registers their handlers.
package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/phrazzld/cumo/internal/platform/logger"
	"github.com/phrazzld/cumo/internal/task"
)

// Task names
const (
	DebugTaskName      = "debug_task"
	PushToCalendarName = "push_to_calendar"
)

// DebugArgs are the arguments of the debug task.
type DebugArgs struct {
	Payload json.RawMessage `json:"payload,omitempty"`
}

// PushArgs are the arguments of the calendar push task.
type PushArgs struct {
	Event      calendar.EventPayload `json:"event"`
	CalendarID string                `json:"calendar_id"`
}

// DebugResult echoes the debug task payload.
type DebugResult struct {
	OK      bool            `json:"ok"`
	Payload json.RawMessage `json:"payload"`
}

// Handlers holds the dependencies of the task handlers.
type Handlers struct {
	calendar    calendar.Client
	synthesizer calendar.Synthesizer
}

// NewHandlers creates handlers submitting events through client.
// synthesizer interprets naive timestamps.
func NewHandlers(client calendar.Client, synthesizer calendar.Synthesizer) *Handlers {
	return &Handlers{calendar: client, synthesizer: synthesizer}
}

// Register binds every task handler in r.
func (h *Handlers) Register(r *task.Registry) error {
	if err := task.RegisterFunc(r, DebugTaskName, h.Debug); err != nil {
		return err
	}
	if err := task.RegisterFunc(r, PushToCalendarName, h.PushToCalendar); err != nil {
		return err
	}
	return nil
}

// Debug logs and echoes its payload.
func (h *Handlers) Debug(ctx context.Context, args DebugArgs) (any, error) {
	payload := args.Payload
	if len(payload) == 0 {
		payload = json.RawMessage("null")
	}
	logger.FromContext(ctx).Info("debug task executed", slog.String("payload", string(payload)))
	return DebugResult{OK: true, Payload: payload}, nil
}

// PushToCalendar builds the event body and inserts it into the selected
// calendar.
func (h *Handlers) PushToCalendar(ctx context.Context, args PushArgs) (any, error) {
	if strings.TrimSpace(args.CalendarID) == "" {
		return nil, fmt.Errorf("%w: no calendar selected", domain.ErrConfig)
	}

	body, err := h.synthesizer.BuildEvent(args.Event)
	if err != nil {
		return nil, err
	}

	if h.calendar == nil {
		return nil, fmt.Errorf("%w: calendar client is not configured", domain.ErrConfig)
	}

	created, err := h.calendar.InsertEvent(ctx, args.CalendarID, body)
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx).Info("event created",
		slog.String("calendar_id", args.CalendarID),
		slog.String("event_id", created.ID),
		slog.Bool("all_day", body.AllDay()))
	return created, nil
}
