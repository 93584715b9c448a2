package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/api/shared"
	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/task"
)

// Scheduler is the service behind the scheduling endpoints.
type Scheduler interface {
	ParseText(ctx context.Context, text string) (calendar.EventPayload, error)
	Schedule(ctx context.Context, body map[string]any) (task.Handle, error)
	EnqueueDebug(ctx context.Context, payload json.RawMessage) (task.Handle, error)
	GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error)
}

// ScheduleHandler handles parsing, scheduling and task status requests.
type ScheduleHandler struct {
	scheduler Scheduler
	logger    *slog.Logger
}

// NewScheduleHandler creates a new ScheduleHandler.
func NewScheduleHandler(scheduler Scheduler, logger *slog.Logger) *ScheduleHandler {
	return &ScheduleHandler{
		scheduler: scheduler,
		logger:    logger.With("component", "schedule_handler"),
	}
}

// Parse handles POST /parse. It returns the event payload parsed from
// body["text"] without enqueuing anything.
func (h *ScheduleHandler) Parse(w http.ResponseWriter, r *http.Request) {
	if !shared.IsJSON(r) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var body map[string]any
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}

	raw, ok := body["text"]
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing 'text' field in request body")
		return
	}
	text, ok := raw.(string)
	if !ok {
		shared.RespondWithError(w, r, http.StatusBadRequest, "'text' must be a string")
		return
	}

	payload, err := h.scheduler.ParseText(r.Context(), text)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, payload)
}

// Schedule handles POST /schedule. The event comes from body["event"], from
// parsing body["text"], or from the body itself.
func (h *ScheduleHandler) Schedule(w http.ResponseWriter, r *http.Request) {
	if !shared.IsJSON(r) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Content-Type must be application/json")
		return
	}

	var body any
	if err := shared.DecodeJSON(w, r, &body); err != nil {
		if errors.Is(err, shared.ErrEmptyBody) {
			shared.RespondWithError(w, r, http.StatusBadRequest, "Missing request body")
			return
		}
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid JSON body", err)
		return
	}
	if isBlank(body) {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing request body")
		return
	}

	// Non-object bodies reach the service as nil and are rejected there,
	// after the calendar check.
	obj, _ := body.(map[string]any)

	handle, err := h.scheduler.Schedule(r.Context(), obj)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, EnqueuedResponse{Enqueued: true, TaskID: handle.ID})
}

// DebugEnqueue handles POST /debug/enqueue. A JSON body becomes the debug
// task's payload; anything else enqueues an empty object.
func (h *ScheduleHandler) DebugEnqueue(w http.ResponseWriter, r *http.Request) {
	payload := json.RawMessage(`{}`)

	if shared.IsJSON(r) {
		raw, err := shared.ReadBody(w, r)
		if err != nil {
			shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		raw = bytes.TrimSpace(raw)

		var decoded any
		if json.Unmarshal(raw, &decoded) == nil && !isBlank(decoded) {
			payload = raw
		}
	}

	handle, err := h.scheduler.EnqueueDebug(r.Context(), payload)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, EnqueuedResponse{Enqueued: true, TaskID: handle.ID})
}

// GetTask handles GET /tasks/{id}.
func (h *ScheduleHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusBadRequest, "Invalid task id", err)
		return
	}

	t, err := h.scheduler.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, t)
}
