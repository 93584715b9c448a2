package domain

import "errors"

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a required field is missing or malformed.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrConfig is returned when the application is not configured to
	// perform an operation, e.g. no calendar has been selected.
	ErrConfig = errors.New("configuration error")

	// ErrUnknownTask is returned when dispatching a task name that was never registered.
	ErrUnknownTask = errors.New("unknown task")

	// ErrAuth is returned when the external calendar service rejects or
	// cannot obtain credentials.
	ErrAuth = errors.New("calendar authorization failed")

	// ErrRemote is returned for any other failure of the external calendar service.
	ErrRemote = errors.New("calendar service error")
)

// Error kinds recorded on failed tasks.
const (
	KindValidation  = "validation"
	KindConfig      = "config"
	KindUnknownTask = "unknown_task"
	KindAuth        = "auth"
	KindRemote      = "remote"
	KindCanceled    = "canceled"
	KindPanic       = "panic"
	KindInternal    = "internal"
)

// Kind classifies err into one of the stable error kinds.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConfig):
		return KindConfig
	case errors.Is(err, ErrUnknownTask):
		return KindUnknownTask
	case errors.Is(err, ErrAuth):
		return KindAuth
	case errors.Is(err, ErrRemote):
		return KindRemote
	default:
		return KindInternal
	}
}
