package httpclient

import (
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const (
	// scope is the instrumentation scope name for OpenTelemetry.
	scope = "github.com/kroma-labs/outbound/httpclient"
)

// internalConfig holds everything New needs to assemble a Client.
// It is built once and never mutated afterwards.
type internalConfig struct {
	client ClientConfig

	// === Transport ===

	// Transport is the innermost round tripper. Default: http.DefaultTransport.
	Transport http.RoundTripper

	// BaseURL is joined to relative request URLs.
	BaseURL string

	// DefaultHeaders are applied to every request, under per-call headers.
	DefaultHeaders map[string]string

	Interceptors []RequestInterceptor
	RateLimit    *RateLimitConfig
	Chaos        *ChaosConfig

	// === Retry policy ===

	Classifier Classifier
	NewBackOff func() backoff.BackOff
	Sleep      Sleeper

	// === Logging ===

	Logger  zerolog.Logger
	LogSink LogSink

	// === OpenTelemetry ===

	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
	Tracer         trace.Tracer
	Meter          metric.Meter
	Metrics        *metrics
	Propagators    propagation.TextMapPropagator

	// ServiceName is added as "http.client.name" on spans and metrics.
	ServiceName string
}

func newConfig(opts ...Option) *internalConfig {
	cfg := &internalConfig{
		client:         DefaultClientConfig(),
		Logger:         zerolog.Nop(),
		Classifier:     DefaultClassifier,
		Sleep:          sleepContext,
		TracerProvider: otel.GetTracerProvider(),
		MeterProvider:  otel.GetMeterProvider(),
		Propagators: propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	cfg.client = cfg.client.normalize()
	if cfg.NewBackOff == nil {
		delay := cfg.client.RetryDelay
		cfg.NewBackOff = func() backoff.BackOff {
			return NewExponentialBackOff(delay)
		}
	}

	cfg.Tracer = cfg.TracerProvider.Tracer(scope)
	cfg.Meter = cfg.MeterProvider.Meter(scope)

	// Instruments that fail to register are left nil and become no-ops.
	cfg.Metrics, _ = newMetrics(cfg.Meter)

	return cfg
}

// baseAttributes returns common attributes for all spans and metrics.
func (cfg *internalConfig) baseAttributes() []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 1)
	if cfg.ServiceName != "" {
		attrs = append(attrs, attribute.String("http.client.name", cfg.ServiceName))
	}
	return attrs
}

// Option configures the HTTP client.
type Option func(*internalConfig)

// WithClientConfig replaces the timeout, retry and logging policy.
//
// Example:
//
//	cfg := httpclient.DefaultClientConfig()
//	cfg.DefaultTimeout = 5 * time.Second
//	cfg.EnableLogging = true
//
//	client := httpclient.New(httpclient.WithClientConfig(cfg))
func WithClientConfig(c ClientConfig) Option {
	return func(cfg *internalConfig) {
		cfg.client = c
	}
}

// WithDefaultTimeout sets the per-attempt timeout used when a call does
// not set its own.
func WithDefaultTimeout(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.client.DefaultTimeout = d
	}
}

// WithDefaultRetries sets the retry budget used when a call does not set
// its own.
func WithDefaultRetries(n int) Option {
	return func(cfg *internalConfig) {
		cfg.client.DefaultRetries = n
	}
}

// WithRetryDelay sets the base of the exponential backoff.
func WithRetryDelay(d time.Duration) Option {
	return func(cfg *internalConfig) {
		cfg.client.RetryDelay = d
	}
}

// WithLogging enables or disables request logging.
func WithLogging(enabled bool) Option {
	return func(cfg *internalConfig) {
		cfg.client.EnableLogging = enabled
	}
}

// WithLogger sets the zerolog logger used when logging is enabled.
// Events are written at debug level for attempts and successes, and at
// warn level for failures.
func WithLogger(l zerolog.Logger) Option {
	return func(cfg *internalConfig) {
		cfg.Logger = l
	}
}

// WithLogSink routes log events to a plain callback instead of a zerolog
// logger. The sink receives the message and a fresh map of structured
// fields. A panicking sink never affects the request outcome.
//
// Example:
//
//	client := httpclient.New(
//	    httpclient.WithLogging(true),
//	    httpclient.WithLogSink(func(msg string, fields map[string]any) {
//	        slog.Info(msg, "fields", fields)
//	    }),
//	)
func WithLogSink(sink LogSink) Option {
	return func(cfg *internalConfig) {
		cfg.LogSink = sink
	}
}

// WithTransport sets the innermost round tripper. Use it to plug in a
// tuned *http.Transport or a test double.
func WithTransport(rt http.RoundTripper) Option {
	return func(cfg *internalConfig) {
		cfg.Transport = rt
	}
}

// WithBaseURL sets a base URL that relative request URLs are joined to.
// Absolute request URLs are used as-is.
//
// Example:
//
//	client := httpclient.New(httpclient.WithBaseURL("https://api.example.com/v1"))
//	// GET https://api.example.com/v1/users
//	payload, err := client.Get(ctx, "/users")
func WithBaseURL(baseURL string) Option {
	return func(cfg *internalConfig) {
		cfg.BaseURL = baseURL
	}
}

// WithDefaultHeaders sets headers applied to every request. They override
// the default JSON Content-Type and are overridden by per-call headers.
func WithDefaultHeaders(headers map[string]string) Option {
	return func(cfg *internalConfig) {
		if cfg.DefaultHeaders == nil {
			cfg.DefaultHeaders = make(map[string]string, len(headers))
		}
		for k, v := range headers {
			cfg.DefaultHeaders[http.CanonicalHeaderKey(k)] = v
		}
	}
}

// WithClassifier replaces the retry classification policy.
//
// Example - also retry 409 Conflict:
//
//	client := httpclient.New(
//	    httpclient.WithClassifier(func(err *httpclient.Error) bool {
//	        if err.Kind == httpclient.KindStatus && err.StatusCode == http.StatusConflict {
//	            return true
//	        }
//	        return httpclient.DefaultClassifier(err)
//	    }),
//	)
func WithClassifier(c Classifier) Option {
	return func(cfg *internalConfig) {
		if c != nil {
			cfg.Classifier = c
		}
	}
}

// WithBackOff replaces the backoff schedule. The factory is invoked once
// per call so stateful strategies are never shared between calls.
//
// Example - decorrelated jitter instead of the deterministic schedule:
//
//	client := httpclient.New(
//	    httpclient.WithBackOff(func() backoff.BackOff {
//	        return httpclient.NewDecorrelatedJitterBackOff(200*time.Millisecond, 10*time.Second)
//	    }),
//	)
func WithBackOff(factory func() backoff.BackOff) Option {
	return func(cfg *internalConfig) {
		cfg.NewBackOff = factory
	}
}

// WithSleeper replaces the function used to wait between attempts.
// It must return a non-nil error when ctx is done before d elapses.
// Tests use it to observe the backoff schedule without waiting.
func WithSleeper(s Sleeper) Option {
	return func(cfg *internalConfig) {
		if s != nil {
			cfg.Sleep = s
		}
	}
}

// WithRequestInterceptor adds interceptors run on every attempt's request
// just before it is sent.
func WithRequestInterceptor(interceptors ...RequestInterceptor) Option {
	return func(cfg *internalConfig) {
		cfg.Interceptors = append(cfg.Interceptors, interceptors...)
	}
}

// WithServiceName sets an identifier for this HTTP client in traces and
// metrics, recorded as the "http.client.name" attribute.
func WithServiceName(name string) Option {
	return func(cfg *internalConfig) {
		cfg.ServiceName = name
	}
}

// WithTracerProvider sets a custom OpenTelemetry TracerProvider.
// If not called, the global provider from otel.GetTracerProvider() is used.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(cfg *internalConfig) {
		if tp != nil {
			cfg.TracerProvider = tp
		}
	}
}

// WithMeterProvider sets a custom OpenTelemetry MeterProvider.
// If not called, the global provider from otel.GetMeterProvider() is used.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(cfg *internalConfig) {
		if mp != nil {
			cfg.MeterProvider = mp
		}
	}
}

// WithPropagators sets the propagators used to inject trace context into
// outgoing headers. Default: W3C TraceContext and Baggage.
func WithPropagators(p propagation.TextMapPropagator) Option {
	return func(cfg *internalConfig) {
		if p != nil {
			cfg.Propagators = p
		}
	}
}
