package httpclient

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"net"
	"net/http"
	"strings"
	"time"
)

// ErrChaosInjected is the cause of network failures injected by WithChaos.
var ErrChaosInjected = errors.New("chaos: simulated network error")

// ChaosConfig configures fault injection at the transport, so that retry
// and timeout handling can be exercised against a healthy upstream.
//
// Each attempt rolls the rates independently, in this order: timeout,
// network error, status error. Latency is added to attempts that reach the
// upstream.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithChaos(httpclient.ChaosConfig{
//	        Latency:    200 * time.Millisecond,
//	        ErrorRate:  0.1,
//	        StatusRate: 0.05,
//	    }),
//	)
type ChaosConfig struct {
	// Latency is added to every attempt that is not otherwise faulted.
	Latency time.Duration

	// LatencyJitter adds a random extra delay in [0, LatencyJitter).
	LatencyJitter time.Duration

	// ErrorRate is the probability (0.0-1.0) of failing the attempt with a
	// simulated dial error.
	ErrorRate float64

	// TimeoutRate is the probability (0.0-1.0) of blocking the attempt until
	// its context is done.
	TimeoutRate float64

	// StatusRate is the probability (0.0-1.0) of answering with Status
	// instead of calling the upstream.
	StatusRate float64

	// Status is the injected status code. Default: 503.
	Status int
}

// Delay returns the latency to apply to one attempt, including jitter.
func (c ChaosConfig) Delay() time.Duration {
	delay := c.Latency
	if c.LatencyJitter > 0 {
		delay += time.Duration(rand.Int64N(int64(c.LatencyJitter))) //nolint:gosec
	}
	return delay
}

func roll(rate float64) bool {
	if rate <= 0 {
		return false
	}
	return rand.Float64() < rate //nolint:gosec
}

// chaosTransport wraps an http.RoundTripper to inject faults.
type chaosTransport struct {
	next   http.RoundTripper
	config ChaosConfig
}

func newChaosTransport(next http.RoundTripper, cfg ChaosConfig) http.RoundTripper {
	if cfg.Status == 0 {
		cfg.Status = http.StatusServiceUnavailable
	}
	return &chaosTransport{
		next:   next,
		config: cfg,
	}
}

// RoundTrip implements http.RoundTripper with fault injection.
func (t *chaosTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	if roll(t.config.TimeoutRate) {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if roll(t.config.ErrorRate) {
		return nil, &net.OpError{
			Op:  "dial",
			Net: "tcp",
			Err: ErrChaosInjected,
		}
	}

	if roll(t.config.StatusRate) {
		body := "chaos: injected status"
		return &http.Response{
			Status:        fmt.Sprintf("%d %s", t.config.Status, http.StatusText(t.config.Status)),
			StatusCode:    t.config.Status,
			Header:        http.Header{"Content-Type": []string{"text/plain"}},
			Body:          io.NopCloser(strings.NewReader(body)),
			ContentLength: int64(len(body)),
			Request:       req,
		}, nil
	}

	if delay := t.config.Delay(); delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	return t.next.RoundTrip(req)
}

// WithChaos injects faults into every attempt. Intended for development and
// resilience testing only.
func WithChaos(cfg ChaosConfig) Option {
	return func(c *internalConfig) {
		c.Chaos = &cfg
	}
}
