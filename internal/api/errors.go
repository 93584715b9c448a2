package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/cumo/internal/api/shared"
	"github.com/phrazzld/cumo/internal/domain"
	"github.com/phrazzld/cumo/internal/platform/gemini"
	"github.com/phrazzld/cumo/internal/service"
)

// MapErrorToStatusCode maps internal errors to HTTP status codes.
func MapErrorToStatusCode(err error) int {
	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return http.StatusNotFound

	case errors.Is(err, service.ErrParserUnavailable),
		errors.Is(err, gemini.ErrUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, gemini.ErrEmptyText),
		errors.Is(err, service.ErrNoCalendarSelected),
		errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest

	default:
		return http.StatusInternalServerError
	}
}

// GetSafeErrorMessage returns the message shown to clients for err. Raw
// error strings never reach the response; they are logged in redacted form.
func GetSafeErrorMessage(err error) string {
	if err == nil {
		return "An unexpected error occurred"
	}

	switch {
	case errors.Is(err, service.ErrTaskNotFound):
		return "Task not found"
	case errors.Is(err, service.ErrNoCalendarSelected):
		return "No calendar selected"
	case errors.Is(err, service.ErrInvalidEventPayload):
		return "Invalid event payload"
	case errors.Is(err, service.ErrTextNotString):
		return "'text' must be a string"
	case errors.Is(err, gemini.ErrEmptyText):
		return "'text' must not be empty"
	case errors.Is(err, service.ErrParserUnavailable),
		errors.Is(err, gemini.ErrUnavailable):
		return "Natural language parser unavailable"
	case errors.Is(err, gemini.ErrContentBlocked):
		return "Parsing failed: " + gemini.ErrContentBlocked.Error()
	case errors.Is(err, gemini.ErrInvalidResponse):
		return "Parsing failed: " + gemini.ErrInvalidResponse.Error()
	case errors.Is(err, gemini.ErrTransientFailure):
		return "Parsing failed: " + gemini.ErrTransientFailure.Error()
	case errors.Is(err, service.ErrParseFailed):
		return "Parsing failed"
	case errors.Is(err, domain.ErrValidation):
		return "Validation error"
	default:
		return "An unexpected error occurred"
	}
}

// HandleAPIError writes the response for err, logging the details.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err), err)
}
