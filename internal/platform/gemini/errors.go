package gemini

import "errors"

// Error definitions for the gemini package.
var (
	// ErrEmptyText is returned when the text to parse is blank.
	ErrEmptyText = errors.New("text cannot be empty")

	// ErrUnavailable is returned when the Gemini client cannot be built,
	// for example because no API key is configured.
	ErrUnavailable = errors.New("natural language parser unavailable")

	// ErrInvalidResponse is returned when the API answers with something
	// that is not an event description.
	ErrInvalidResponse = errors.New("invalid response from Gemini")

	// ErrContentBlocked is returned when the API refuses the prompt on
	// safety grounds.
	ErrContentBlocked = errors.New("content blocked by safety filters")

	// ErrTransientFailure is returned when retries are exhausted.
	ErrTransientFailure = errors.New("transient Gemini failure")
)
