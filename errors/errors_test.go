package errors

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRateLimitErrorUnwrapsToSentinel(t *testing.T) {
	err := NewRateLimitError("gemini-2.0-flash", 2*time.Minute, false, nil)
	assert.True(t, Is(err, ErrRateLimited))
	assert.True(t, IsRateLimit(err))
}

func TestDailyRateLimitUnwrapsToQuotaExhausted(t *testing.T) {
	err := NewRateLimitError("gemini-2.0-flash", 3*time.Hour, true, nil)
	assert.True(t, Is(err, ErrQuotaExhausted))
	assert.False(t, Is(err, ErrRateLimited))
	assert.True(t, IsRateLimit(err))
}

func TestRateLimitErrorCarriesRetryAfter(t *testing.T) {
	inner := NewRateLimitError("gpt-4o-mini", 90*time.Second, true, New("429 too many requests"))
	wrapped := Wrap(inner, "arbiter call failed")

	var rle *RateLimitError
	require.True(t, As(wrapped, &rle))
	assert.Equal(t, 90*time.Second, rle.RetryAfter)
	assert.True(t, rle.Daily)
	assert.Equal(t, "gpt-4o-mini", rle.Model)
}

func TestIsRateLimitOnPlainError(t *testing.T) {
	assert.False(t, IsRateLimit(New("connection refused")))
	assert.False(t, IsRateLimit(nil))
	assert.True(t, IsRateLimit(Wrap(ErrRateLimited, "upstream")))
}

func TestIsNotFoundError(t *testing.T) {
	assert.True(t, IsNotFoundError(Wrap(ErrNotFound, "comment t1_abc")))
	assert.False(t, IsNotFoundError(New("something else")))
}
