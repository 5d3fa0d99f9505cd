package integration

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
	"pgregory.net/rapid"
)

func TestRetryPolicyDefaults(t *testing.T) {
	p := DefaultRetryPolicy()
	assert.Equal(t, uint32(3), p.MaxRetries)
	assert.True(t, p.ShouldRetry(429))
	assert.True(t, p.ShouldRetry(503))
	assert.False(t, p.ShouldRetry(404))
}

func TestBackoffWithoutJitter(t *testing.T) {
	p := DefaultRetryPolicy()
	p.Jitter = false

	assert.Equal(t, 100*time.Millisecond, p.BackoffForAttempt(1))
	assert.Equal(t, 200*time.Millisecond, p.BackoffForAttempt(2))
	assert.Equal(t, 400*time.Millisecond, p.BackoffForAttempt(3))
	assert.Equal(t, 30*time.Second, p.BackoffForAttempt(20))
	assert.Equal(t, 100*time.Millisecond, p.BackoffForAttempt(0))
}

func TestBackoffJitterIsBoundedProperty(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		p := DefaultRetryPolicy()
		attempt := rapid.Uint32Range(1, 40).Draw(t, "attempt")

		p.Jitter = false
		base := p.BackoffForAttempt(attempt)
		p.Jitter = true
		got := p.BackoffForAttempt(attempt)

		limit := base + time.Duration(float64(base)*0.3) + time.Millisecond
		if got < base || got > limit {
			t.Fatalf("attempt %d: backoff %v outside [%v, %v]", attempt, got, base, limit)
		}
	})
}

func TestRateLimitLimiter(t *testing.T) {
	l := DefaultRateLimitPolicy().Limiter()
	assert.Equal(t, rate.Limit(100), l.Limit())
	assert.Equal(t, 200, l.Burst())
}

func TestLoggingConfigLevel(t *testing.T) {
	c := DefaultLoggingConfig()
	assert.Equal(t, zerolog.InfoLevel, c.ZerologLevel())
	c.Level = "DEBUG"
	assert.Equal(t, zerolog.DebugLevel, c.ZerologLevel())
	c.Level = "shouting"
	assert.Equal(t, zerolog.InfoLevel, c.ZerologLevel())

	c.Format = "pretty"
	assert.Equal(t, "console", c.LogFormat())
}

func TestValidatePolicies(t *testing.T) {
	require.NoError(t, ValidatePolicies(DefaultPolicySet()))

	bad := DefaultPolicySet()
	bad.Tracing.SampleRate = 1.5
	assert.Error(t, ValidatePolicies(bad))

	bad = DefaultPolicySet()
	bad.Retry.MaxBackoffMs = 10
	assert.Error(t, ValidatePolicies(bad))

	bad = DefaultPolicySet()
	bad.Cache.Backend = "disk"
	assert.Error(t, ValidatePolicies(bad))

	bad = DefaultPolicySet()
	bad.Retry.RetryableStatusCodes = []uint16{42}
	assert.Error(t, ValidatePolicies(bad))
}
