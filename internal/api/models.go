package api

import (
	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/calendar"
)

// EnqueuedResponse is returned by every endpoint that enqueues a task.
type EnqueuedResponse struct {
	Enqueued bool      `json:"enqueued"`
	TaskID   uuid.UUID `json:"task_id"`
}

// SelectCalendarRequest defines the payload for POST /settings/calendar.
type SelectCalendarRequest struct {
	CalendarID string `json:"calendarId" validate:"required"`
}

// CalendarsResponse lists the calendars available to the user.
type CalendarsResponse struct {
	Calendars []calendar.Info `json:"calendars"`
}

// HealthResponse reports the state of the backend's components.
type HealthResponse struct {
	Status   string `json:"status"`
	NLP      string `json:"nlp"`
	Consumer string `json:"consumer"`
}
