package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// metrics holds the metric instruments for HTTP client operations.
//
// Attempt-level instruments are recorded by the otel transport around each
// round trip. Call-level instruments are recorded once per logical call by
// the retry loop.
type metrics struct {
	// === Attempt metrics ===

	// requestDuration measures each attempt's round trip in seconds.
	requestDuration metric.Float64Histogram

	requestBodySize  metric.Int64Histogram
	responseBodySize metric.Int64Histogram

	// activeRequests tracks the number of in-flight attempts.
	activeRequests metric.Int64UpDownCounter

	// requestErrors counts transport-level attempt failures by error.type.
	requestErrors metric.Int64Counter

	// === Call metrics ===

	// callDuration measures a logical call including every attempt and
	// backoff wait, labelled with its outcome.
	callDuration metric.Float64Histogram

	// callErrors counts failed logical calls by error code.
	callErrors metric.Int64Counter

	// retryAttempts counts retries (attempts after the first).
	retryAttempts metric.Int64Counter

	// retryExhausted counts calls that spent their whole retry budget.
	// A high value indicates downstream service issues.
	retryExhausted metric.Int64Counter
}

// newMetrics creates and registers metric instruments.
func newMetrics(meter metric.Meter) (*metrics, error) {
	m := &metrics{}
	var err error

	// Request duration histogram with OTel semconv recommended buckets
	m.requestDuration, err = meter.Float64Histogram(
		"http.client.request.duration",
		metric.WithDescription("Duration of HTTP client request attempts in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.005, 0.01, 0.025, 0.05, 0.075, 0.1, 0.25, 0.5, 0.75, 1, 2.5, 5, 7.5, 10,
		),
	)
	if err != nil {
		return nil, err
	}

	m.requestBodySize, err = meter.Int64Histogram(
		"http.client.request.body.size",
		metric.WithDescription("Size of HTTP client request bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(
			0, 100, 1024, 10*1024, 100*1024, 1024*1024, 10*1024*1024,
		),
	)
	if err != nil {
		return nil, err
	}

	m.responseBodySize, err = meter.Int64Histogram(
		"http.client.response.body.size",
		metric.WithDescription("Size of HTTP client response bodies in bytes"),
		metric.WithUnit("By"),
		metric.WithExplicitBucketBoundaries(
			0, 100, 1024, 10*1024, 100*1024, 1024*1024, 10*1024*1024,
		),
	)
	if err != nil {
		return nil, err
	}

	m.activeRequests, err = meter.Int64UpDownCounter(
		"http.client.active_requests",
		metric.WithDescription("Number of active HTTP client request attempts"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	m.requestErrors, err = meter.Int64Counter(
		"http.client.request.error",
		metric.WithDescription("Number of HTTP client request attempts failed by the transport"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	m.callDuration, err = meter.Float64Histogram(
		"http.client.call.duration",
		metric.WithDescription("Duration of logical HTTP client calls including retries in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(
			0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120,
		),
	)
	if err != nil {
		return nil, err
	}

	m.callErrors, err = meter.Int64Counter(
		"http.client.call.errors",
		metric.WithDescription("Number of failed logical HTTP client calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	m.retryAttempts, err = meter.Int64Counter(
		"http.client.retry.attempts",
		metric.WithDescription("Number of HTTP client retry attempts"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	m.retryExhausted, err = meter.Int64Counter(
		"http.client.retry.exhausted",
		metric.WithDescription("Number of calls that exhausted all retries"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

func (m *metrics) recordRequestDuration(
	ctx context.Context,
	duration time.Duration,
	attrs []attribute.KeyValue,
) {
	if m == nil || m.requestDuration == nil {
		return
	}
	m.requestDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attrs...))
}

func (m *metrics) recordRequestBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m == nil || m.requestBodySize == nil {
		return
	}
	m.requestBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

func (m *metrics) recordResponseBodySize(ctx context.Context, size int64, attrs []attribute.KeyValue) {
	if m == nil || m.responseBodySize == nil {
		return
	}
	m.responseBodySize.Record(ctx, size, metric.WithAttributes(attrs...))
}

func (m *metrics) recordActiveRequestStart(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordActiveRequestEnd(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.activeRequests == nil {
		return
	}
	m.activeRequests.Add(ctx, -1, metric.WithAttributes(attrs...))
}

func (m *metrics) recordError(ctx context.Context, errorType string, attrs []attribute.KeyValue) {
	if m == nil || m.requestErrors == nil {
		return
	}
	m.requestErrors.Add(ctx, 1, metric.WithAttributes(withAttr(attrs, attribute.String("error.type", errorType))...))
}

// recordCall records the outcome of a logical call. herr is nil on success.
func (m *metrics) recordCall(
	ctx context.Context,
	attrs []attribute.KeyValue,
	duration time.Duration,
	herr *Error,
) {
	if m == nil {
		return
	}
	outcome := "success"
	if herr != nil {
		outcome = herr.Kind.String()
	}
	if m.callDuration != nil {
		m.callDuration.Record(ctx, duration.Seconds(),
			metric.WithAttributes(withAttr(attrs, attribute.String("outcome", outcome))...))
	}
	if herr != nil && m.callErrors != nil {
		m.callErrors.Add(ctx, 1, metric.WithAttributes(withAttr(attrs, attribute.String("error.code", herr.Code()))...))
	}
}

func (m *metrics) recordRetryAttempt(ctx context.Context, attrs []attribute.KeyValue, attempt int) {
	if m == nil || m.retryAttempts == nil {
		return
	}
	m.retryAttempts.Add(ctx, 1, metric.WithAttributes(withAttr(attrs, attribute.Int("retry.attempt", attempt))...))
}

func (m *metrics) recordRetryExhausted(ctx context.Context, attrs []attribute.KeyValue) {
	if m == nil || m.retryExhausted == nil {
		return
	}
	m.retryExhausted.Add(ctx, 1, metric.WithAttributes(attrs...))
}

// withAttr returns a copy of attrs with extra appended, leaving attrs
// untouched for the caller.
func withAttr(attrs []attribute.KeyValue, extra ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs)+len(extra))
	out = append(out, attrs...)
	return append(out, extra...)
}
