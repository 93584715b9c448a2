package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/cumo/internal/api/shared"
	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/phrazzld/cumo/internal/platform/gemini"
	"github.com/phrazzld/cumo/internal/service"
	"github.com/phrazzld/cumo/internal/settings"
	"github.com/phrazzld/cumo/internal/task"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeScheduler struct {
	parsed    calendar.EventPayload
	parseErr  error
	handle    task.Handle
	err       error
	scheduled []map[string]any
	debug     []json.RawMessage
	tasks     map[uuid.UUID]*task.Task
}

func (f *fakeScheduler) ParseText(ctx context.Context, text string) (calendar.EventPayload, error) {
	return f.parsed, f.parseErr
}

func (f *fakeScheduler) Schedule(ctx context.Context, body map[string]any) (task.Handle, error) {
	f.scheduled = append(f.scheduled, body)
	return f.handle, f.err
}

func (f *fakeScheduler) EnqueueDebug(ctx context.Context, payload json.RawMessage) (task.Handle, error) {
	f.debug = append(f.debug, payload)
	return f.handle, f.err
}

func (f *fakeScheduler) GetTask(ctx context.Context, id uuid.UUID) (*task.Task, error) {
	if t, ok := f.tasks[id]; ok {
		return t, nil
	}
	return nil, service.ErrTaskNotFound
}

func newRouter(sched Scheduler, store SettingsStore, calendars CalendarLister) http.Handler {
	r := chi.NewRouter()
	sh := NewScheduleHandler(sched, testLogger())
	st := NewSettingsHandler(store, calendars, testLogger())

	r.Post("/parse", sh.Parse)
	r.Post("/schedule", sh.Schedule)
	r.Post("/debug/enqueue", sh.DebugEnqueue)
	r.Get("/tasks/{id}", sh.GetTask)
	r.Get("/settings", st.GetSettings)
	r.Post("/settings/calendar", st.SelectCalendar)
	r.Get("/calendars", st.ListCalendars)
	return r
}

func do(t *testing.T, h http.Handler, method, path, contentType, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp.Error
}

func TestParse(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		parseErr    error
		wantStatus  int
		wantError   string
	}{
		{name: "ok", contentType: "application/json", body: `{"text":"lunch at noon"}`, wantStatus: http.StatusOK},
		{
			name: "wrong content type", contentType: "text/plain", body: `{"text":"x"}`,
			wantStatus: http.StatusBadRequest, wantError: "Content-Type must be application/json",
		},
		{
			name: "malformed json", contentType: "application/json", body: `{"text":`,
			wantStatus: http.StatusBadRequest, wantError: "Invalid JSON body",
		},
		{
			name: "missing text", contentType: "application/json", body: `{"words":"x"}`,
			wantStatus: http.StatusBadRequest, wantError: "Missing 'text' field in request body",
		},
		{
			name: "text not a string", contentType: "application/json", body: `{"text":12}`,
			wantStatus: http.StatusBadRequest, wantError: "'text' must be a string",
		},
		{
			name: "no parser", contentType: "application/json", body: `{"text":"x"}`,
			parseErr:   service.ErrParserUnavailable,
			wantStatus: http.StatusServiceUnavailable, wantError: "Natural language parser unavailable",
		},
		{
			name: "parser failure", contentType: "application/json", body: `{"text":"x"}`,
			parseErr:   errors.Join(service.ErrParseFailed, gemini.ErrInvalidResponse),
			wantStatus: http.StatusInternalServerError, wantError: "Parsing failed: invalid response from Gemini",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeScheduler{
				parsed:   calendar.EventPayload{Title: "Lunch", Start: "2024-03-01T12:00:00"},
				parseErr: tc.parseErr,
			}
			rec := do(t, newRouter(sched, nil, nil), http.MethodPost, "/parse", tc.contentType, tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, errorMessage(t, rec))
				return
			}
			assert.JSONEq(t, `{"title":"Lunch","start":"2024-03-01T12:00:00"}`, rec.Body.String())
		})
	}
}

func TestSchedule(t *testing.T) {
	id := uuid.New()

	tests := []struct {
		name       string
		body       string
		err        error
		wantStatus int
		wantError  string
		wantBody   map[string]any
	}{
		{
			name: "event", body: `{"event":{"title":"x","start":"2024-03-01"}}`,
			wantStatus: http.StatusOK,
			wantBody:   map[string]any{"event": map[string]any{"title": "x", "start": "2024-03-01"}},
		},
		{name: "empty body", body: ``, wantStatus: http.StatusBadRequest, wantError: "Missing request body"},
		{name: "empty object", body: `{}`, wantStatus: http.StatusBadRequest, wantError: "Missing request body"},
		{name: "null", body: `null`, wantStatus: http.StatusBadRequest, wantError: "Missing request body"},
		{
			name: "no calendar", body: `{"start":"2024-03-01"}`, err: service.ErrNoCalendarSelected,
			wantStatus: http.StatusBadRequest, wantError: "No calendar selected",
			wantBody: map[string]any{"start": "2024-03-01"},
		},
		{
			name: "array body", body: `[1,2]`, err: service.ErrInvalidEventPayload,
			wantStatus: http.StatusBadRequest, wantError: "Invalid event payload",
		},
		{
			name: "text not string", body: `{"text":true}`, err: service.ErrTextNotString,
			wantStatus: http.StatusBadRequest, wantError: "'text' must be a string",
			wantBody: map[string]any{"text": true},
		},
		{
			name: "store failure", body: `{"start":"2024-03-01"}`, err: errors.New("database is locked"),
			wantStatus: http.StatusInternalServerError, wantError: "An unexpected error occurred",
			wantBody: map[string]any{"start": "2024-03-01"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeScheduler{handle: task.Handle{ID: id}, err: tc.err}
			rec := do(t, newRouter(sched, nil, nil), http.MethodPost, "/schedule", "application/json", tc.body)

			assert.Equal(t, tc.wantStatus, rec.Code)
			if tc.wantError != "" {
				assert.Equal(t, tc.wantError, errorMessage(t, rec))
			} else {
				var resp EnqueuedResponse
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
				assert.True(t, resp.Enqueued)
				assert.Equal(t, id, resp.TaskID)
			}

			if tc.wantBody != nil {
				require.Len(t, sched.scheduled, 1)
				assert.Equal(t, tc.wantBody, sched.scheduled[0])
			}
		})
	}
}

func TestSchedule_RequiresJSON(t *testing.T) {
	sched := &fakeScheduler{}
	rec := do(t, newRouter(sched, nil, nil), http.MethodPost, "/schedule", "", `{"start":"2024-03-01"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, sched.scheduled)
}

func TestDebugEnqueue(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		want        string
	}{
		{name: "json payload", contentType: "application/json", body: `{"ping":1}`, want: `{"ping":1}`},
		{name: "no content type", contentType: "", body: `{"ping":1}`, want: `{}`},
		{name: "malformed", contentType: "application/json", body: `{"ping"`, want: `{}`},
		{name: "empty", contentType: "application/json", body: ``, want: `{}`},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sched := &fakeScheduler{handle: task.Handle{ID: uuid.New()}}
			rec := do(t, newRouter(sched, nil, nil), http.MethodPost, "/debug/enqueue", tc.contentType, tc.body)

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, `{"enqueued":true,"task_id":"`+sched.handle.ID.String()+`"}`, rec.Body.String())
			require.Len(t, sched.debug, 1)
			assert.JSONEq(t, tc.want, string(sched.debug[0]))
		})
	}
}

func TestGetTask(t *testing.T) {
	id := uuid.New()
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	sched := &fakeScheduler{tasks: map[uuid.UUID]*task.Task{
		id: {
			ID:         id,
			Name:       "push_to_calendar",
			Args:       json.RawMessage(`{}`),
			Status:     task.StatusFailed,
			Error:      &task.Error{Kind: domain.KindConfig, Message: "no calendar selected"},
			EnqueuedAt: now,
			UpdatedAt:  now,
		},
	}}
	router := newRouter(sched, nil, nil)

	rec := do(t, router, http.MethodGet, "/tasks/"+id.String(), "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var got task.Task
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, task.StatusFailed, got.Status)
	assert.Equal(t, domain.KindConfig, got.Error.Kind)

	rec = do(t, router, http.MethodGet, "/tasks/"+uuid.NewString(), "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "Task not found", errorMessage(t, rec))

	rec = do(t, router, http.MethodGet, "/tasks/not-a-uuid", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

type fakeCalendars struct {
	calendars []calendar.Info
	err       error
}

func (f fakeCalendars) ListCalendars(ctx context.Context) ([]calendar.Info, error) {
	return f.calendars, f.err
}

func TestSettingsEndpoints(t *testing.T) {
	store := settings.NewFileStore(filepath.Join(t.TempDir(), "settings.toml"), testLogger())
	router := newRouter(&fakeScheduler{}, store, nil)

	rec := do(t, router, http.MethodGet, "/settings", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = do(t, router, http.MethodPost, "/settings/calendar", "application/json", `{"calendarId":"team@example.com"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"selectedCalendarId":"team@example.com"}`, rec.Body.String())

	id, err := store.SelectedCalendarID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "team@example.com", id)

	for _, body := range []string{`{}`, `{"calendarId":""}`, `{"calendarId":42}`, `not json`} {
		rec = do(t, router, http.MethodPost, "/settings/calendar", "application/json", body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
		assert.Equal(t, "Missing calendarId", errorMessage(t, rec))
	}
}

func TestListCalendars(t *testing.T) {
	calendars := []calendar.Info{{ID: "me@example.com", Summary: "Me", Primary: true, AccessRole: "owner"}}

	rec := do(t, newRouter(&fakeScheduler{}, nil, fakeCalendars{calendars: calendars}), http.MethodGet, "/calendars", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t,
		`{"calendars":[{"id":"me@example.com","summary":"Me","primary":true,"accessRole":"owner"}]}`,
		rec.Body.String())

	rec = do(t, newRouter(&fakeScheduler{}, nil, fakeCalendars{err: domain.ErrAuth}), http.MethodGet, "/calendars", "", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to load calendars: calendar authorization failed", errorMessage(t, rec))

	rec = do(t, newRouter(&fakeScheduler{}, nil, nil), http.MethodGet, "/calendars", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type fixedStatus string

func (s fixedStatus) Status() string { return string(s) }

type fixedConsumer task.WorkerState

func (s fixedConsumer) Status() task.WorkerState { return task.WorkerState(s) }

func TestHealth(t *testing.T) {
	tests := []struct {
		name     string
		handler  *HealthHandler
		expected string
	}{
		{
			name:     "ready",
			handler:  NewHealthHandler(fixedStatus(gemini.StatusReady), fixedConsumer(task.StateRunning)),
			expected: `{"status":"ok","nlp":"ready","consumer":"running"}`,
		},
		{
			name:     "no parser configured",
			handler:  NewHealthHandler(nil, fixedConsumer(task.StateCrashed)),
			expected: `{"status":"ok","nlp":"missing_model","consumer":"crashed"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			tc.handler.Health(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, http.StatusOK, rec.Code)
			assert.JSONEq(t, tc.expected, rec.Body.String())
		})
	}
}
