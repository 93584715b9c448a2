package gcal

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFakeCalendar(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	svc, err := calendarv3.NewService(context.Background(),
		option.WithEndpoint(srv.URL+"/"),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)

	return NewWithService(svc, discardLogger())
}

func writeAPIError(w http.ResponseWriter, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{"code": code, "message": http.StatusText(code)},
	})
}

func TestClient_InsertEvent(t *testing.T) {
	var got calendarv3.Event
	client := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/calendars/work@example.com/events", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"id":       "evt-1",
			"htmlLink": "https://calendar.example.com/evt-1",
		})
	})

	body := calendar.EventBody{
		Summary: "Dentist",
		Start:   calendar.EventTime{DateTime: "2024-03-02T09:00:00-05:00"},
		End:     calendar.EventTime{DateTime: "2024-03-02T10:00:00-05:00"},
	}

	created, err := client.InsertEvent(context.Background(), "work@example.com", body)
	require.NoError(t, err)
	assert.Equal(t, calendar.CreatedEvent{ID: "evt-1", HTMLLink: "https://calendar.example.com/evt-1"}, created)

	assert.Equal(t, "Dentist", got.Summary)
	assert.Equal(t, "2024-03-02T09:00:00-05:00", got.Start.DateTime)
	assert.Empty(t, got.Start.Date)
	assert.Equal(t, "2024-03-02T10:00:00-05:00", got.End.DateTime)
}

func TestClient_InsertEvent_AllDay(t *testing.T) {
	var got calendarv3.Event
	client := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"evt-2"}`))
	})

	body := calendar.EventBody{
		Summary: "Holiday",
		Start:   calendar.EventTime{Date: "2024-07-04"},
		End:     calendar.EventTime{Date: "2024-07-05"},
	}

	_, err := client.InsertEvent(context.Background(), "primary", body)
	require.NoError(t, err)
	assert.Equal(t, "2024-07-04", got.Start.Date)
	assert.Equal(t, "2024-07-05", got.End.Date)
	assert.Empty(t, got.Start.DateTime)
}

func TestClient_ErrorMapping(t *testing.T) {
	tests := []struct {
		code int
		want error
	}{
		{code: http.StatusUnauthorized, want: domain.ErrAuth},
		{code: http.StatusForbidden, want: domain.ErrAuth},
		{code: http.StatusNotFound, want: domain.ErrRemote},
		{code: http.StatusBadRequest, want: domain.ErrRemote},
	}

	for _, tc := range tests {
		t.Run(http.StatusText(tc.code), func(t *testing.T) {
			client := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
				writeAPIError(w, tc.code)
			})

			_, err := client.InsertEvent(context.Background(), "primary", calendar.EventBody{Summary: "x"})
			assert.ErrorIs(t, err, tc.want)

			_, err = client.ListCalendars(context.Background())
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestMapError_RetrieveError(t *testing.T) {
	err := mapError(&oauth2.RetrieveError{ErrorCode: "invalid_grant"})
	assert.ErrorIs(t, err, domain.ErrAuth)
}

func TestClient_ListCalendars_Pages(t *testing.T) {
	client := newFakeCalendar(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/users/me/calendarList", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")

		if r.URL.Query().Get("pageToken") == "" {
			_, _ = w.Write([]byte(`{"items":[{"id":"me@example.com","summary":"Me","primary":true,"accessRole":"owner"}],"nextPageToken":"p2"}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[{"id":"team@example.com","summary":"Team","accessRole":"reader"}]}`))
	})

	got, err := client.ListCalendars(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []calendar.Info{
		{ID: "me@example.com", Summary: "Me", Primary: true, AccessRole: "owner"},
		{ID: "team@example.com", Summary: "Team", AccessRole: "reader"},
	}, got)
}

const credentialsJSON = `{"installed":{"client_id":"cid","client_secret":"secret",` +
	`"auth_uri":"https://accounts.example.com/auth","token_uri":"https://accounts.example.com/token",` +
	`"redirect_uris":["http://localhost"]}}`

func TestNew_NotAuthorized(t *testing.T) {
	dir := t.TempDir()
	credentials := filepath.Join(dir, "credentials.json")
	require.NoError(t, os.WriteFile(credentials, []byte(credentialsJSON), 0o600))

	client := New(config.CalendarConfig{
		CredentialsPath: credentials,
		TokenPath:       filepath.Join(dir, "token.json"),
	}, discardLogger())

	_, err := client.ListCalendars(context.Background())
	assert.ErrorIs(t, err, domain.ErrAuth)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestNew_MissingCredentials(t *testing.T) {
	dir := t.TempDir()
	client := New(config.CalendarConfig{
		CredentialsPath: filepath.Join(dir, "credentials.json"),
		TokenPath:       filepath.Join(dir, "token.json"),
	}, discardLogger())

	_, err := client.InsertEvent(context.Background(), "primary", calendar.EventBody{})
	assert.ErrorIs(t, err, domain.ErrConfig)
}

func TestTokenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "token.json")
	expiry := time.Date(2030, 1, 2, 3, 4, 5, 0, time.UTC)

	require.NoError(t, SaveToken(path, &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       expiry,
	}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())

	tok, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "access", tok.AccessToken)
	assert.Equal(t, "refresh", tok.RefreshToken)
	assert.True(t, expiry.Equal(tok.Expiry))
}

func TestLoadToken_Malformed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := LoadToken(path)
	assert.ErrorIs(t, err, domain.ErrAuth)

	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o600))
	_, err = LoadToken(path)
	assert.ErrorIs(t, err, domain.ErrAuth)
}

type staticSource struct{ tok *oauth2.Token }

func (s staticSource) Token() (*oauth2.Token, error) { return s.tok, nil }

func TestPersistingSource_SavesOnlyNewTokens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "token.json")
	initial := &oauth2.Token{AccessToken: "old", RefreshToken: "r"}

	src := newPersistingSource(staticSource{tok: initial}, path, initial, discardLogger())
	_, err := src.Token()
	require.NoError(t, err)
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "unchanged token is not rewritten")

	src.base = staticSource{tok: &oauth2.Token{AccessToken: "new", RefreshToken: "r"}}
	_, err = src.Token()
	require.NoError(t, err)

	saved, err := LoadToken(path)
	require.NoError(t, err)
	assert.Equal(t, "new", saved.AccessToken)
}
