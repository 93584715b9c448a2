package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/phrazzld/cumo/internal/api/shared"
	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/phrazzld/cumo/internal/settings"
)

// SettingsStore reads and writes user settings.
type SettingsStore interface {
	All(ctx context.Context) (map[string]any, error)
	Set(ctx context.Context, key string, value any) (map[string]any, error)
}

// CalendarLister lists the calendars the user can write to.
type CalendarLister interface {
	ListCalendars(ctx context.Context) ([]calendar.Info, error)
}

// SettingsHandler handles settings and calendar selection requests.
type SettingsHandler struct {
	settings  SettingsStore
	calendars CalendarLister
	logger    *slog.Logger
}

// NewSettingsHandler creates a SettingsHandler. calendars may be nil when no
// calendar client is configured.
func NewSettingsHandler(store SettingsStore, calendars CalendarLister, logger *slog.Logger) *SettingsHandler {
	return &SettingsHandler{
		settings:  store,
		calendars: calendars,
		logger:    logger.With("component", "settings_handler"),
	}
}

// GetSettings handles GET /settings.
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	all, err := h.settings.All(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to load settings", err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, all)
}

// SelectCalendar handles POST /settings/calendar and returns the updated
// settings.
func (h *SettingsHandler) SelectCalendar(w http.ResponseWriter, r *http.Request) {
	var req SelectCalendarRequest
	if shared.IsJSON(r) {
		// Malformed bodies are reported as a missing calendarId.
		_ = shared.DecodeJSON(w, r, &req)
	}
	req.CalendarID = strings.TrimSpace(req.CalendarID)

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Missing calendarId")
		return
	}

	updated, err := h.settings.Set(r.Context(), settings.SelectedCalendarKey, req.CalendarID)
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError, "Failed to save settings", err)
		return
	}

	h.logger.InfoContext(r.Context(), "calendar selected")
	shared.RespondWithJSON(w, r, http.StatusOK, updated)
}

// ListCalendars handles GET /calendars.
func (h *SettingsHandler) ListCalendars(w http.ResponseWriter, r *http.Request) {
	if h.calendars == nil {
		shared.RespondWithError(w, r, http.StatusServiceUnavailable, "Calendar client unavailable")
		return
	}

	calendars, err := h.calendars.ListCalendars(r.Context())
	if err != nil {
		shared.RespondWithErrorAndLog(w, r, http.StatusInternalServerError,
			"Failed to load calendars: "+calendarFailureReason(err), err)
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, CalendarsResponse{Calendars: calendars})
}

func calendarFailureReason(err error) string {
	switch {
	case errors.Is(err, domain.ErrAuth):
		return domain.ErrAuth.Error()
	case errors.Is(err, domain.ErrConfig):
		return "calendar credentials are not configured"
	default:
		return domain.ErrRemote.Error()
	}
}
