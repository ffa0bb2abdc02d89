package httpclient

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Compile-time interface check.
var _ http.RoundTripper = (*otelTransport)(nil)

// otelTransport wraps an http.RoundTripper with OpenTelemetry
// instrumentation. Every attempt gets its own client span, a child of
// whatever span the caller's context carries.
type otelTransport struct {
	base http.RoundTripper
	cfg  *internalConfig
}

func newOtelTransport(base http.RoundTripper, cfg *internalConfig) *otelTransport {
	return &otelTransport{
		base: base,
		cfg:  cfg,
	}
}

// RoundTrip implements http.RoundTripper with tracing and metrics.
func (t *otelTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	attemptCtx := req.Context()

	ctx, span := t.cfg.Tracer.Start(req.Context(), "HTTP "+req.Method,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(t.requestAttributes(req)...),
	)
	defer span.End()

	t.cfg.Propagators.Inject(ctx, propagation.HeaderCarrier(req.Header))

	baseAttrs := t.cfg.baseAttributes()
	t.cfg.Metrics.recordActiveRequestStart(ctx, baseAttrs)
	defer t.cfg.Metrics.recordActiveRequestEnd(ctx, baseAttrs)

	if req.ContentLength > 0 {
		t.cfg.Metrics.recordRequestBodySize(ctx, req.ContentLength, baseAttrs)
	}

	req = req.WithContext(ctx)
	resp, err := t.base.RoundTrip(req)
	duration := time.Since(start)

	if err != nil {
		errorType := attemptErrorType(attemptCtx, err)
		setSpanError(span, err, errorType)
		t.cfg.Metrics.recordError(ctx, errorType, baseAttrs)
		t.cfg.Metrics.recordRequestDuration(ctx, duration,
			withAttr(t.serverAttributes(req), attribute.String("error.type", errorType)))
		return nil, err
	}

	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		span.SetStatus(codes.Error, fmt.Sprintf("HTTP %d", resp.StatusCode))
		span.SetAttributes(attribute.String("error.type", errorTypeFromStatusCode(resp.StatusCode)))
	}

	if resp.ContentLength > 0 {
		t.cfg.Metrics.recordResponseBodySize(ctx, resp.ContentLength, baseAttrs)
	}

	t.cfg.Metrics.recordRequestDuration(ctx, duration, t.metricsAttributes(req, resp))

	return resp, nil
}

// requestAttributes returns span attributes for the request.
func (t *otelTransport) requestAttributes(req *http.Request) []attribute.KeyValue {
	attrs := t.serverAttributes(req)
	if req.URL != nil {
		attrs = append(attrs,
			attribute.String("url.full", req.URL.String()),
			attribute.String("url.scheme", req.URL.Scheme),
		)
	}
	if req.ContentLength > 0 {
		attrs = append(attrs, attribute.Int64("http.request.body.size", req.ContentLength))
	}
	if ua := req.UserAgent(); ua != "" {
		attrs = append(attrs, attribute.String("user_agent.original", ua))
	}
	return attrs
}

// serverAttributes returns the base, method and server attributes shared by
// spans and metrics.
func (t *otelTransport) serverAttributes(req *http.Request) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 8)
	attrs = append(attrs, t.cfg.baseAttributes()...)
	attrs = append(attrs, attribute.String("http.request.method", req.Method))

	if req.URL == nil {
		return attrs
	}
	if host := req.URL.Hostname(); host != "" {
		attrs = append(attrs, attribute.String("server.address", host))
	}
	if port := req.URL.Port(); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			attrs = append(attrs, attribute.Int("server.port", p))
		}
	} else {
		switch req.URL.Scheme {
		case "http":
			attrs = append(attrs, attribute.Int("server.port", 80))
		case "https":
			attrs = append(attrs, attribute.Int("server.port", 443))
		}
	}
	return attrs
}

// metricsAttributes returns attributes for the request duration metric.
func (t *otelTransport) metricsAttributes(req *http.Request, resp *http.Response) []attribute.KeyValue {
	attrs := t.serverAttributes(req)
	attrs = append(attrs, attribute.Int("http.response.status_code", resp.StatusCode))
	if resp.StatusCode >= 400 {
		attrs = append(attrs, attribute.String("error.type", errorTypeFromStatusCode(resp.StatusCode)))
	}
	return attrs
}
