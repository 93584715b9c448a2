package calendar

import (
	"fmt"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/phrazzld/cumo/internal/domain"
)

const (
	// DefaultTitle is used when a payload carries no title.
	DefaultTitle = "Untitled event"

	// DefaultDuration is the length of a timed event without an explicit end.
	DefaultDuration = time.Hour

	dateLayout = "2006-01-02"
)

// EventTime is one end of an event: Date for all-day events, DateTime
// (RFC 3339 with offset) for timed events.
type EventTime struct {
	Date     string `json:"date,omitempty"`
	DateTime string `json:"dateTime,omitempty"`
}

// EventBody is the event resource submitted to the calendar service.
type EventBody struct {
	Summary string    `json:"summary"`
	Start   EventTime `json:"start"`
	End     EventTime `json:"end"`
}

// AllDay reports whether the body describes an all-day event.
func (b EventBody) AllDay() bool {
	return b.Start.Date != ""
}

// Synthesizer builds event bodies. Timestamps without an offset are
// interpreted in Location.
type Synthesizer struct {
	Location *time.Location
}

// NewSynthesizer returns a Synthesizer for loc, or for the host's local
// zone when loc is nil.
func NewSynthesizer(loc *time.Location) Synthesizer {
	if loc == nil {
		loc = time.Local
	}
	return Synthesizer{Location: loc}
}

// BuildEvent builds an event body using the host's local zone.
func BuildEvent(p EventPayload) (EventBody, error) {
	return NewSynthesizer(nil).BuildEvent(p)
}

// BuildEvent converts a payload into an event body.
//
// The event is all-day when the start falls exactly on midnight and no end
// was given; it then spans the start date only. Otherwise it is timed and
// ends at the explicit end, or one hour after the start. An explicit end
// that is not after the start is rejected.
func (s Synthesizer) BuildEvent(p EventPayload) (EventBody, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		title = DefaultTitle
	}

	if strings.TrimSpace(p.Start) == "" {
		return EventBody{}, fmt.Errorf("%w: missing start datetime in payload", domain.ErrValidation)
	}

	start, err := s.ParseDateTime(p.Start)
	if err != nil {
		return EventBody{}, err
	}

	hasEnd := strings.TrimSpace(p.End) != ""

	if !hasEnd && isMidnight(start) {
		next := start.AddDate(0, 0, 1)
		return EventBody{
			Summary: title,
			Start:   EventTime{Date: start.Format(dateLayout)},
			End:     EventTime{Date: next.Format(dateLayout)},
		}, nil
	}

	end := start.Add(DefaultDuration)
	if hasEnd {
		end, err = s.ParseDateTime(p.End)
		if err != nil {
			return EventBody{}, err
		}
		if !end.After(start) {
			return EventBody{}, fmt.Errorf("%w: end %s is not after start %s",
				domain.ErrValidation, end.Format(time.RFC3339), start.Format(time.RFC3339))
		}
	}

	return EventBody{
		Summary: title,
		Start:   EventTime{DateTime: start.Format(time.RFC3339Nano)},
		End:     EventTime{DateTime: end.Format(time.RFC3339Nano)},
	}, nil
}

// ParseDateTime parses a free-form datetime. A value without a zone or
// offset is interpreted in the Synthesizer's location.
func (s Synthesizer) ParseDateTime(value string) (time.Time, error) {
	loc := s.Location
	if loc == nil {
		loc = time.Local
	}

	t, err := dateparse.ParseIn(strings.TrimSpace(value), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: cannot parse datetime %q: %v", domain.ErrValidation, value, err)
	}
	return t, nil
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}
