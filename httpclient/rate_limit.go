package httpclient

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/time/rate"
)

// RateLimitConfig configures client-level rate limiting. The limiter is
// shared by all calls of a Client and consulted once per attempt, so
// retries consume tokens too.
type RateLimitConfig struct {
	// RequestsPerSecond is the maximum sustained request rate.
	RequestsPerSecond float64

	// Burst is the maximum number of requests allowed in a burst.
	// Values below 1 are raised to 1.
	Burst int

	// WaitOnLimit makes attempts wait for a token, bounded by the attempt
	// timeout and the caller's context. When false an attempt without a
	// token fails immediately with ErrRateLimited.
	WaitOnLimit bool
}

// DefaultRateLimitConfig returns 100 requests per second with a burst of
// 10, waiting for tokens.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             10,
		WaitOnLimit:       true,
	}
}

// ErrRateLimited is the cause of an attempt rejected by the rate limiter.
var ErrRateLimited = errors.New("rate limit exceeded")

// rateLimitTransport implements http.RoundTripper with rate limiting.
type rateLimitTransport struct {
	next    http.RoundTripper
	limiter *rate.Limiter
	wait    bool
}

func newRateLimitTransport(next http.RoundTripper, cfg RateLimitConfig) http.RoundTripper {
	if cfg.RequestsPerSecond <= 0 {
		return next
	}

	return &rateLimitTransport{
		next:    next,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), max(cfg.Burst, 1)),
		wait:    cfg.WaitOnLimit,
	}
}

// RoundTrip implements http.RoundTripper.
func (t *rateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if t.wait {
		if err := t.limiter.Wait(ctx); err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, err
			}
			// The token would arrive after the attempt deadline.
			return nil, ErrRateLimited
		}
	} else if !t.limiter.Allow() {
		return nil, ErrRateLimited
	}

	return t.next.RoundTrip(req)
}

// WithRateLimit limits the rate of attempts sent by the client.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithRateLimit(httpclient.RateLimitConfig{
//	        RequestsPerSecond: 20,
//	        Burst:             5,
//	        WaitOnLimit:       true,
//	    }),
//	)
func WithRateLimit(cfg RateLimitConfig) Option {
	return func(c *internalConfig) {
		c.RateLimit = &cfg
	}
}
