package httpclient

import "time"

// Values used by DefaultClientConfig. Only DefaultTimeout also replaces a
// zero or negative timeout in a ClientConfig; zero retries and a zero
// retry delay are valid settings and are kept.
const (
	DefaultTimeout    = 30 * time.Second
	DefaultRetries    = 3
	DefaultRetryDelay = 1 * time.Second
)

// ClientConfig holds the retry and timeout policy of a Client.
//
// The zero value is not usable directly; start from DefaultClientConfig():
//
//	cfg := httpclient.DefaultClientConfig()
//	cfg.DefaultRetries = 5
//	cfg.RetryDelay = 200 * time.Millisecond
//
//	client := httpclient.New(httpclient.WithClientConfig(cfg))
type ClientConfig struct {
	// DefaultTimeout bounds every attempt unless a call overrides it.
	// Default: 30s
	DefaultTimeout time.Duration

	// DefaultRetries is the number of extra attempts after the first one
	// for retryable failures. Zero disables retrying.
	// Default: 3
	DefaultRetries int

	// RetryDelay is the base of the exponential backoff: the wait before
	// retry i (0-based) is RetryDelay * 2^i.
	// Default: 1s
	RetryDelay time.Duration

	// EnableLogging turns on per-attempt and terminal-outcome logging to the
	// configured logger or sink.
	// Default: false
	EnableLogging bool
}

// DefaultClientConfig returns the default policy: 30s timeout, 3 retries,
// 1s base delay, logging off.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		DefaultTimeout: DefaultTimeout,
		DefaultRetries: DefaultRetries,
		RetryDelay:     DefaultRetryDelay,
	}
}

// normalize replaces a non-positive timeout with DefaultTimeout and clamps
// negative retries and delays to zero.
func (c ClientConfig) normalize() ClientConfig {
	if c.DefaultTimeout <= 0 {
		c.DefaultTimeout = DefaultTimeout
	}
	if c.DefaultRetries < 0 {
		c.DefaultRetries = 0
	}
	if c.RetryDelay < 0 {
		c.RetryDelay = 0
	}
	return c
}
