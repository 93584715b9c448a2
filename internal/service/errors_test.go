package service

import (
	"errors"
	"testing"

	"github.com/phrazzld/cumo/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestSentinelErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
		kind string
	}{
		{"no calendar selected", ErrNoCalendarSelected, domain.KindConfig},
		{"invalid event payload", ErrInvalidEventPayload, domain.KindValidation},
		{"text not string", ErrTextNotString, domain.KindValidation},
		{"parser unavailable", ErrParserUnavailable, domain.KindInternal},
		{"task not found", ErrTaskNotFound, domain.KindInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.kind, domain.Kind(tt.err))
		})
	}

	assert.False(t, errors.Is(ErrParseFailed, ErrParserUnavailable))
	assert.False(t, errors.Is(ErrInvalidEventPayload, ErrTextNotString))
}
