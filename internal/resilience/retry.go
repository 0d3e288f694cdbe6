// Package resilience retries store reads that fail for transient reasons.
package resilience

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"
)

// RetryConfig controls retry behavior with exponential backoff and jitter.
type RetryConfig struct {
	// MaxAttempts is the total number of attempts including the first.
	MaxAttempts int

	InitialBackoff time.Duration
	MaxBackoff     time.Duration
	Multiplier     float64

	// JitterFraction randomizes each delay by up to ±fraction of itself.
	JitterFraction float64

	// ShouldRetry overrides IsTransient when set.
	ShouldRetry func(err error) bool

	// OnRetry is called before each retry sleep.
	OnRetry func(attempt int, err error)
}

// DefaultRetryConfig suits reads against a local database: a few quick
// attempts rather than a long backoff.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:    3,
		InitialBackoff: 200 * time.Millisecond,
		MaxBackoff:     2 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.25,
	}
}

// Do runs fn until it succeeds, fails with a non-transient error, the
// attempts run out, or ctx is done.
func Do(ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) error) error {
	_, err := DoVal(ctx, cfg, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, fn(ctx)
	})
	return err
}

// DoVal is Do for functions that return a value. The zero value is
// returned with the last error.
func DoVal[T any](ctx context.Context, cfg RetryConfig, fn func(ctx context.Context) (T, error)) (T, error) {
	cfg = cfg.normalized()
	delays := cfg.schedule()

	var zero T
	for attempt := 1; ; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, nil
		}
		if attempt >= cfg.MaxAttempts || !cfg.retryable(ctx, err) {
			return zero, err
		}
		if cfg.OnRetry != nil {
			cfg.OnRetry(attempt, err)
		}
		if !sleep(ctx, delays.next()) {
			return zero, err
		}
	}
}

// normalized fills unset fields from DefaultRetryConfig.
func (c RetryConfig) normalized() RetryConfig {
	def := DefaultRetryConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.InitialBackoff <= 0 {
		c.InitialBackoff = def.InitialBackoff
	}
	if c.MaxBackoff <= 0 {
		c.MaxBackoff = def.MaxBackoff
	}
	if c.MaxBackoff < c.InitialBackoff {
		c.MaxBackoff = c.InitialBackoff
	}
	if c.Multiplier < 1 {
		c.Multiplier = def.Multiplier
	}
	c.JitterFraction = math.Max(0, math.Min(c.JitterFraction, 1))
	return c
}

// retryable is false once ctx is done, whatever the error.
func (c RetryConfig) retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	if c.ShouldRetry != nil {
		return c.ShouldRetry(err)
	}
	return IsTransient(err)
}

// backoff yields the delays between attempts: InitialBackoff, then
// growing by Multiplier up to MaxBackoff, each spread by the jitter.
type backoff struct {
	current time.Duration
	max     time.Duration
	factor  float64
	jitter  float64
}

func (c RetryConfig) schedule() *backoff {
	return &backoff{current: c.InitialBackoff, max: c.MaxBackoff, factor: c.Multiplier, jitter: c.JitterFraction}
}

func (b *backoff) next() time.Duration {
	d := b.current
	grown := time.Duration(float64(b.current) * b.factor)
	if grown > b.max || grown < b.current {
		grown = b.max
	}
	b.current = grown

	if b.jitter > 0 {
		spread := float64(d) * b.jitter
		d = time.Duration(float64(d) + (rand.Float64()*2-1)*spread)
	}
	return max(d, 0)
}

// sleep waits for d and reports false if ctx ended first.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// RetryLogger returns an OnRetry callback that logs each retry of a store
// operation.
func RetryLogger(operation string) func(int, error) {
	return func(attempt int, err error) {
		zap.L().Warn("resilience: retrying store read",
			zap.String("operation", operation),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
}
