package httpclient

import (
	"context"
	"math"
	"math/rand/v2"
	"time"

	"github.com/cenkalti/backoff/v5"
)

// Ensure our backoff strategies implement the backoff.BackOff interface.
var (
	_ backoff.BackOff = (*DecorrelatedJitterBackOff)(nil)
	_ backoff.BackOff = (*JitteredBackOff)(nil)
)

// Defaults for the opt-in jitter strategies.
const (
	DefaultJitterFactor = 0.5
	DefaultJitterLimit  = 30 * time.Second
)

// maxBackOffInterval leaves the doubling schedule uncapped. Setting
// MaxInterval to zero would cap every interval at zero instead.
const maxBackOffInterval = time.Duration(math.MaxInt64)

// NewExponentialBackOff returns the default retry schedule: base, 2×base,
// 4×base, ... with no randomization, so that the wait before retry i is
// exactly base * 2^i.
func NewExponentialBackOff(base time.Duration) *backoff.ExponentialBackOff {
	b := &backoff.ExponentialBackOff{
		InitialInterval:     base,
		RandomizationFactor: 0,
		Multiplier:          2,
		MaxInterval:         maxBackOffInterval,
	}
	b.Reset()
	return b
}

// Sleeper waits for d or until ctx is done, whichever comes first. It
// returns nil when the full duration elapsed and a non-nil error otherwise.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
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

// DecorrelatedJitterBackOff draws each wait from [Base, min(Limit, 3×previous)]
// so that many clients retrying against one upstream drift apart. See
// https://aws.amazon.com/blogs/architecture/exponential-backoff-and-jitter/
type DecorrelatedJitterBackOff struct {
	Base  time.Duration
	Limit time.Duration

	prev time.Duration
}

// NewDecorrelatedJitterBackOff returns a decorrelated jitter schedule. A
// non-positive base selects DefaultRetryDelay and a non-positive limit
// selects DefaultJitterLimit.
func NewDecorrelatedJitterBackOff(base, limit time.Duration) *DecorrelatedJitterBackOff {
	if base <= 0 {
		base = DefaultRetryDelay
	}
	if limit <= 0 {
		limit = DefaultJitterLimit
	}
	return &DecorrelatedJitterBackOff{Base: base, Limit: max(limit, base)}
}

// Reset starts the schedule over from Base.
func (b *DecorrelatedJitterBackOff) Reset() {
	b.prev = b.Base
}

// NextBackOff returns the next randomised wait.
func (b *DecorrelatedJitterBackOff) NextBackOff() time.Duration {
	prev := b.prev
	if prev < b.Base {
		prev = b.Base
	}
	b.prev = randomDuration(b.Base, min(prev*3, b.Limit))
	return b.prev
}

// JitteredBackOff spreads the intervals of another schedule by up to
// ±Spread of each interval. backoff.Stop from the wrapped schedule is
// passed through untouched.
//
// Example, keeping the doubling schedule but spreading it by 20%:
//
//	httpclient.NewJitteredBackOff(httpclient.NewExponentialBackOff(200*time.Millisecond), 0.2)
type JitteredBackOff struct {
	Next   backoff.BackOff
	Spread float64
}

// NewJitteredBackOff wraps next. A non-positive spread selects
// DefaultJitterFactor; spreads above 1 are clamped to 1.
func NewJitteredBackOff(next backoff.BackOff, spread float64) *JitteredBackOff {
	if spread <= 0 {
		spread = DefaultJitterFactor
	}
	return &JitteredBackOff{Next: next, Spread: min(spread, 1)}
}

// Reset resets the wrapped schedule.
func (b *JitteredBackOff) Reset() {
	b.Next.Reset()
}

// NextBackOff returns the wrapped interval moved by a random amount.
func (b *JitteredBackOff) NextBackOff() time.Duration {
	d := b.Next.NextBackOff()
	if d == backoff.Stop || d <= 0 || b.Spread <= 0 {
		return d
	}
	spread := time.Duration(float64(d) * min(b.Spread, 1))
	return randomDuration(d-spread, d+spread)
}

// randomDuration returns a duration in [lo, hi], or lo for an empty range.
func randomDuration(lo, hi time.Duration) time.Duration {
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int64N(int64(hi-lo)+1)) //nolint:gosec // jitter only
}
