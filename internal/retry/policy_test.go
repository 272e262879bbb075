package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/notesync/internal/config"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()
	require.Equal(t, config.RetryBackoffExponential, p.Mode)
	require.Equal(t, 500*time.Millisecond, p.Initial)
	require.Equal(t, 30*time.Second, p.Max)
	require.Equal(t, 5, p.MaxAttempts)
	require.NoError(t, p.Validate())
}

// Initial greater than max is clamped.
func TestNewPolicyOverrides(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 5*time.Second, 2*time.Second, 3)
	require.Equal(t, 2*time.Second, p.Initial)
	require.Equal(t, 2*time.Second, p.Max)
	require.Equal(t, config.RetryBackoffFixed, p.Mode)
	require.Equal(t, 3, p.MaxAttempts)

	p = NewPolicy("bogus", 0, 0, 0)
	require.Equal(t, DefaultPolicy(), p)
}

func TestFromConfig(t *testing.T) {
	p := FromConfig(config.SyncConfig{
		MaxAttempts:       7,
		RetryBackoff:      config.RetryBackoffLinear,
		RetryInitialDelay: "100ms",
		RetryMaxDelay:     "1s",
		RateLimitMaxWait:  "15m",
	})
	require.Equal(t, Policy{Mode: config.RetryBackoffLinear, Initial: 100 * time.Millisecond, Max: time.Second, MaxWait: 15 * time.Minute, MaxAttempts: 7}, p)

	p = FromConfig(config.SyncConfig{RetryMaxDelay: "1s"})
	require.Equal(t, DefaultMaxWait, p.MaxWait)
}

func TestDelayModes(t *testing.T) {
	ms := time.Millisecond

	fixed := NewPolicy(config.RetryBackoffFixed, 100*ms, 500*ms, 3)
	for i := 1; i <= 3; i++ {
		require.Equal(t, 100*ms, fixed.Delay(i))
	}

	linear := NewPolicy(config.RetryBackoffLinear, 100*ms, 250*ms, 5)
	require.Equal(t, []time.Duration{100 * ms, 200 * ms, 250 * ms, 250 * ms},
		[]time.Duration{linear.Delay(1), linear.Delay(2), linear.Delay(3), linear.Delay(4)})

	exp := NewPolicy(config.RetryBackoffExponential, 50*ms, 300*ms, 5)
	require.Equal(t, []time.Duration{50 * ms, 100 * ms, 200 * ms, 300 * ms},
		[]time.Duration{exp.Delay(1), exp.Delay(2), exp.Delay(3), exp.Delay(4)})

	require.Zero(t, exp.Delay(0))
	require.Equal(t, 300*ms, exp.Delay(200))
}

func TestDelayForHonoursRetryAfter(t *testing.T) {
	p := NewPolicy(config.RetryBackoffFixed, 100*time.Millisecond, 10*time.Second, 5)

	limited := ferrors.RateLimitedError("rate limited").WithRetryAfter(3 * time.Second).Build()
	require.Equal(t, 3*time.Second, p.DelayFor(1, limited))

	window := ferrors.RateLimitedError("rate limited").WithRetryAfter(20 * time.Minute).Build()
	require.Equal(t, 20*time.Minute, p.DelayFor(1, window), "hint must not be cut to the backoff cap")

	tooLong := ferrors.RateLimitedError("rate limited").WithRetryAfter(3 * time.Hour).Build()
	require.Equal(t, DefaultMaxWait, p.DelayFor(1, tooLong))

	p.MaxWait = 0
	require.Equal(t, 3*time.Hour, p.DelayFor(1, tooLong))

	require.Equal(t, 100*time.Millisecond, p.DelayFor(1, errors.New("plain")))
}

func TestSleepRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, Sleep(ctx, time.Hour), context.Canceled)
	require.NoError(t, Sleep(t.Context(), time.Millisecond))
}
