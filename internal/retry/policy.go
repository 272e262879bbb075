package retry

import (
	"context"
	"errors"
	"time"

	"git.home.luguber.info/inful/notesync/internal/config"
	ferrors "git.home.luguber.info/inful/notesync/internal/foundation/errors"
)

// Policy describes how many publish attempts are allowed and how long to wait
// between them. It is immutable after construction.
type Policy struct {
	Mode        config.RetryBackoffMode // fixed|linear|exponential
	Initial     time.Duration           // base delay
	Max         time.Duration           // cap for computed backoff
	MaxWait     time.Duration           // ceiling for server-requested waits; 0 means unbounded
	MaxAttempts int                     // total attempts, counting the first
}

// DefaultMaxWait bounds retry-after hints; GitHub rate limit windows reset hourly.
const DefaultMaxWait = time.Hour

// DefaultPolicy returns exponential backoff from 500ms capped at 30s with 5 attempts.
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffExponential, Initial: 500 * time.Millisecond, Max: 30 * time.Second, MaxWait: DefaultMaxWait, MaxAttempts: 5}
}

// NewPolicy builds a policy from raw fields; zero or invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, maxAttempts int) Policy {
	p := DefaultPolicy()
	if maxAttempts > 0 {
		p.MaxAttempts = maxAttempts
	}
	if initial > 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig builds the publish retry policy from the sync section.
func FromConfig(s config.SyncConfig) Policy {
	initial, _ := time.ParseDuration(s.RetryInitialDelay)
	maxDelay, _ := time.ParseDuration(s.RetryMaxDelay)
	p := NewPolicy(s.RetryBackoff, initial, maxDelay, s.MaxAttempts)
	if maxWait, err := time.ParseDuration(s.RateLimitMaxWait); err == nil && maxWait > 0 {
		p.MaxWait = maxWait
	}
	return p
}

// Delay returns the backoff before the given retry (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	var d time.Duration
	switch p.Mode {
	case config.RetryBackoffFixed:
		d = p.Initial
	case config.RetryBackoffExponential:
		shift := retryCount - 1
		if shift > 30 {
			shift = 30
		}
		d = p.Initial * (1 << shift)
	default: // linear
		d = time.Duration(retryCount) * p.Initial
	}
	if d > p.Max || d <= 0 {
		return p.Max
	}
	return d
}

// DelayFor returns the wait before retrying after err. A server-provided
// retry-after hint replaces the computed backoff and is only bounded by MaxWait,
// never by Max.
func (p Policy) DelayFor(retryCount int, err error) time.Duration {
	if hint := ferrors.GetRetryAfter(err); hint > 0 {
		if p.MaxWait > 0 && hint > p.MaxWait {
			return p.MaxWait
		}
		return hint
	}
	return p.Delay(retryCount)
}

// Validate ensures invariants; returns error if the policy is impossible to apply.
func (p Policy) Validate() error {
	if p.Initial <= 0 {
		return errors.New("initial must be >0")
	}
	if p.Max <= 0 {
		return errors.New("max must be >0")
	}
	if p.MaxAttempts < 1 {
		return errors.New("max attempts must be >= 1")
	}
	return nil
}

// Sleep waits for d or until ctx is done, returning ctx.Err() in the latter case.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
