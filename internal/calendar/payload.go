package calendar

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// EventPayload is the loose event description produced by the HTTP layer
// or the natural language parser.
type EventPayload struct {
	Title string `json:"title,omitempty"`
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Accepted payload keys, in order of precedence.
var (
	titleKeys = []string{"title", "summary"}
	startKeys = []string{"datetime", "start"}
	endKeys   = []string{"end_time", "end"}
)

// PayloadFromMap builds an EventPayload from a decoded JSON object,
// resolving key aliases. The first non-empty value wins: title over
// summary, datetime over start and end_time over end. Non-string values
// are converted to their textual form.
func PayloadFromMap(m map[string]any) EventPayload {
	return EventPayload{
		Title: firstString(m, titleKeys),
		Start: firstString(m, startKeys),
		End:   firstString(m, endKeys),
	}
}

// UnmarshalJSON implements json.Unmarshaler with alias resolution.
func (p *EventPayload) UnmarshalJSON(data []byte) error {
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("event payload must be a JSON object: %w", err)
	}
	*p = PayloadFromMap(m)
	return nil
}

func firstString(m map[string]any, keys []string) string {
	for _, k := range keys {
		if s := stringify(m[k]); s != "" {
			return s
		}
	}
	return ""
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		if !val {
			return ""
		}
		return "true"
	case float64:
		if val == 0 {
			return ""
		}
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}
