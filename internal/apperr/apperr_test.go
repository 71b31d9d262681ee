package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garnizeh/devcompanion/internal/apperr"
)

func TestStatusMapping(t *testing.T) {
	cases := map[*apperr.Error]int{
		apperr.InvalidInput("x"):                        http.StatusUnprocessableEntity,
		apperr.RateLimitExceeded(3):                     http.StatusTooManyRequests,
		apperr.ServerBusy(1, 1):                         http.StatusServiceUnavailable,
		apperr.JobNotFound("j"):                         http.StatusNotFound,
		apperr.ConversationNotFound("c"):                http.StatusNotFound,
		apperr.JobFailed("j", "boom"):                   http.StatusInternalServerError,
		apperr.CodeAnalysis(errors.New("x")):            http.StatusBadGateway,
		apperr.AnalysisTimeout(errors.New("deadline")): http.StatusGatewayTimeout,
		apperr.Unauthorized("no"):                       http.StatusUnauthorized,
		apperr.Internal(errors.New("x")):                http.StatusInternalServerError,
	}
	for e, want := range cases {
		assert.Equal(t, want, e.Status(), string(e.Kind))
	}
}

func TestMessages(t *testing.T) {
	assert.Equal(t, "Too many requests. Try again in 7 seconds.", apperr.RateLimitExceeded(7).Message)
	assert.Equal(t, "Job 'abc' not found.", apperr.JobNotFound("abc").Message)

	busy := apperr.ServerBusy(4, 5)
	assert.Equal(t, 4, busy.Details["active_jobs"])
	assert.Equal(t, 5, busy.Details["max_concurrent"])
}

func TestAsAndIs(t *testing.T) {
	wrapped := fmt.Errorf("handler: %w", apperr.JobNotFound("x"))
	require.True(t, apperr.Is(wrapped, apperr.KindJobNotFound))
	assert.Equal(t, apperr.KindJobNotFound, apperr.As(wrapped).Kind)

	plain := errors.New("disk on fire")
	got := apperr.As(plain)
	assert.Equal(t, apperr.KindInternal, got.Kind)
	assert.ErrorIs(t, got, plain)
	assert.False(t, apperr.Is(plain, apperr.KindInternal))
}
