package gcal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"

	"github.com/phrazzld/cumo/internal/calendar"
	"github.com/phrazzld/cumo/internal/config"
	"github.com/phrazzld/cumo/internal/domain"
	"golang.org/x/oauth2"
	calendarv3 "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// Client talks to Google Calendar. The underlying service is built on first
// use, so a server can start before the user has authorized it.
type Client struct {
	logger     *slog.Logger
	newService func(ctx context.Context) (*calendarv3.Service, error)

	mu      sync.Mutex
	service *calendarv3.Service
}

var _ calendar.Client = (*Client)(nil)

// New returns a client that authenticates with the credentials and token
// files named in cfg.
func New(cfg config.CalendarConfig, logger *slog.Logger) *Client {
	c := &Client{logger: logger.With("component", "gcal")}
	c.newService = func(ctx context.Context) (*calendarv3.Service, error) {
		return newOAuthService(ctx, cfg, c.logger)
	}
	return c
}

// NewWithService wraps an already configured service.
func NewWithService(svc *calendarv3.Service, logger *slog.Logger) *Client {
	return &Client{
		logger:  logger.With("component", "gcal"),
		service: svc,
	}
}

func newOAuthService(ctx context.Context, cfg config.CalendarConfig, logger *slog.Logger) (*calendarv3.Service, error) {
	oauthCfg, err := OAuthConfig(cfg.CredentialsPath)
	if err != nil {
		return nil, err
	}
	tok, err := LoadToken(cfg.TokenPath)
	if err != nil {
		return nil, err
	}

	// Refreshes outlive the request that triggered the first call.
	base := oauthCfg.TokenSource(context.Background(), tok)
	ts := oauth2.ReuseTokenSource(tok, newPersistingSource(base, cfg.TokenPath, tok, logger))

	svc, err := calendarv3.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create calendar service: %v", domain.ErrRemote, err)
	}
	return svc, nil
}

// calendarService returns the cached service, building it if needed. Build
// failures are not cached so a later authorization takes effect without a
// restart.
func (c *Client) calendarService(ctx context.Context) (*calendarv3.Service, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.service != nil {
		return c.service, nil
	}
	svc, err := c.newService(ctx)
	if err != nil {
		return nil, err
	}
	c.service = svc
	return svc, nil
}

// InsertEvent creates an event in calendarID.
func (c *Client) InsertEvent(ctx context.Context, calendarID string, body calendar.EventBody) (calendar.CreatedEvent, error) {
	svc, err := c.calendarService(ctx)
	if err != nil {
		return calendar.CreatedEvent{}, err
	}

	event := &calendarv3.Event{
		Summary: body.Summary,
		Start:   &calendarv3.EventDateTime{Date: body.Start.Date, DateTime: body.Start.DateTime},
		End:     &calendarv3.EventDateTime{Date: body.End.Date, DateTime: body.End.DateTime},
	}

	created, err := svc.Events.Insert(calendarID, event).Context(ctx).Do()
	if err != nil {
		return calendar.CreatedEvent{}, mapError(err)
	}

	c.logger.InfoContext(ctx, "created calendar event",
		"calendar_id", calendarID,
		"event_id", created.Id,
		"all_day", body.AllDay())
	return calendar.CreatedEvent{ID: created.Id, HTMLLink: created.HtmlLink}, nil
}

// ListCalendars returns every calendar on the user's calendar list.
func (c *Client) ListCalendars(ctx context.Context) ([]calendar.Info, error) {
	svc, err := c.calendarService(ctx)
	if err != nil {
		return nil, err
	}

	calendars := []calendar.Info{}
	err = svc.CalendarList.List().Pages(ctx, func(page *calendarv3.CalendarList) error {
		for _, item := range page.Items {
			calendars = append(calendars, calendar.Info{
				ID:         item.Id,
				Summary:    item.Summary,
				Primary:    item.Primary,
				AccessRole: item.AccessRole,
			})
		}
		return nil
	})
	if err != nil {
		return nil, mapError(err)
	}
	return calendars, nil
}

// mapError classifies API failures into domain.ErrAuth and domain.ErrRemote.
func mapError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusUnauthorized || apiErr.Code == http.StatusForbidden {
			return fmt.Errorf("%w: %w", domain.ErrAuth, err)
		}
		return fmt.Errorf("%w: %w", domain.ErrRemote, err)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		return fmt.Errorf("%w: %w", domain.ErrAuth, err)
	}

	return fmt.Errorf("%w: %w", domain.ErrRemote, err)
}
