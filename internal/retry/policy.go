package retry

import (
	"context"
	"time"

	"git.home.luguber.info/inful/cadence/internal/config"
)

// Policy encapsulates retry/backoff settings for transient failures.
// It is immutable after construction.
type Policy struct {
	Mode     config.RetryBackoffMode // fixed|linear|exponential
	Initial  time.Duration           // base delay, zero means retry immediately
	Max      time.Duration           // cap for growth
	Attempts int                     // total attempts including the first
}

// DefaultPolicy returns the default policy (fixed, 5s, 3 attempts).
func DefaultPolicy() Policy {
	return Policy{Mode: config.RetryBackoffFixed, Initial: 5 * time.Second, Max: 5 * time.Minute, Attempts: 3}
}

// NewPolicy builds a policy from raw config fields; invalid values fall back to defaults.
func NewPolicy(mode config.RetryBackoffMode, initial, maxDuration time.Duration, attempts int) Policy {
	p := DefaultPolicy()
	if attempts >= 1 {
		p.Attempts = attempts
	}
	if initial >= 0 {
		p.Initial = initial
	}
	if maxDuration > 0 {
		p.Max = maxDuration
	}
	switch mode {
	case config.RetryBackoffFixed, config.RetryBackoffLinear, config.RetryBackoffExponential:
		p.Mode = mode
	default:
		// unknown -> keep default
	}
	if p.Initial > p.Max {
		p.Initial = p.Max
	}
	return p
}

// FromConfig derives the commit retry policy from cfg.
func FromConfig(cfg *config.Config) Policy {
	d := cfg.RetryDelay.Std()
	return NewPolicy(cfg.RetryBackoff, d, max(10*d, time.Minute), cfg.RetryAttempts)
}

// Delay returns the backoff delay for the given retry number (1-based: first retry => 1).
func (p Policy) Delay(retryCount int) time.Duration {
	if retryCount <= 0 {
		return 0
	}
	switch p.Mode {
	case config.RetryBackoffFixed:
		return p.Initial
	case config.RetryBackoffExponential:
		if retryCount > 30 {
			return p.Max
		}
		d := p.Initial * (1 << (retryCount - 1))
		if d > p.Max {
			return p.Max
		}
		return d
	default: // linear
		d := time.Duration(retryCount) * p.Initial
		if d > p.Max {
			return p.Max
		}
		return d
	}
}

// Sleeper blocks for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Sleep is the default Sleeper backed by a timer.
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
