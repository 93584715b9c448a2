package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/cumo/internal/domain"
)

// Common service errors - sentinel errors used across service implementations.
// The API layer maps them to HTTP status codes with errors.Is.
var (
	// ErrNoCalendarSelected indicates the user has not picked a calendar yet.
	ErrNoCalendarSelected = fmt.Errorf("%w: no calendar selected", domain.ErrConfig)

	// ErrInvalidEventPayload indicates the request carried nothing usable
	// as an event payload.
	ErrInvalidEventPayload = fmt.Errorf("%w: invalid event payload", domain.ErrValidation)

	// ErrTextNotString indicates the "text" field is present but not a string.
	ErrTextNotString = fmt.Errorf("%w: text must be a string", domain.ErrValidation)

	// ErrParserUnavailable indicates free text was submitted but no parser
	// is configured.
	ErrParserUnavailable = errors.New("natural language parser is not configured")

	// ErrParseFailed wraps failures of the natural language parser.
	ErrParseFailed = errors.New("parsing failed")

	// ErrTaskNotFound indicates no task exists with the requested id.
	ErrTaskNotFound = errors.New("task not found")
)
