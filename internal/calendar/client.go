package calendar

import "context"

// CreatedEvent identifies an event accepted by the calendar service.
type CreatedEvent struct {
	ID       string `json:"id"`
	HTMLLink string `json:"htmlLink"`
}

// Info describes a calendar the authorized user can see.
type Info struct {
	ID         string `json:"id"`
	Summary    string `json:"summary"`
	Primary    bool   `json:"primary"`
	AccessRole string `json:"accessRole"`
}

// Client is the calendar service capability. Implementations report
// credential problems as domain.ErrAuth and all other service failures as
// domain.ErrRemote.
type Client interface {
	InsertEvent(ctx context.Context, calendarID string, body EventBody) (CreatedEvent, error)
	ListCalendars(ctx context.Context) ([]Info, error)
}
