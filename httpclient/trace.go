package httpclient

import (
	"strconv"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// errorTypeFromStatusCode returns error.type for HTTP status codes.
// Per OTel semconv, the status code itself is used as the error type for 4xx/5xx.
func errorTypeFromStatusCode(statusCode int) string {
	if statusCode >= 400 {
		return strconv.Itoa(statusCode)
	}
	return ""
}

// setSpanError records an error on the span with proper status and attributes.
func setSpanError(span trace.Span, err error, errorType string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	if errorType != "" {
		span.SetAttributes(attribute.String("error.type", errorType))
	}
}

// recordRetryEvent adds an "http.retry" event to the caller's span before
// waiting for retry number attempt.
func recordRetryEvent(span trace.Span, attempt int, herr *Error, delay time.Duration) {
	if !span.IsRecording() {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.Int("retry.attempt", attempt),
		attribute.Int64("retry.delay_ms", delay.Milliseconds()),
	}
	if herr != nil {
		attrs = append(attrs,
			attribute.String("retry.reason", herr.Kind.String()),
			attribute.String("error.code", herr.Code()),
		)
		if herr.StatusCode != 0 {
			attrs = append(attrs, attribute.Int("http.response.status_code", herr.StatusCode))
		}
	}

	span.AddEvent("http.retry", trace.WithAttributes(attrs...))
}

// recordCallOutcome annotates the caller's span once the call is over.
func recordCallOutcome(span trace.Span, attempts int, herr *Error) {
	if !span.IsRecording() {
		return
	}
	span.SetAttributes(
		attribute.Int("http.attempt_count", attempts),
		attribute.Bool("http.call_success", herr == nil),
	)
	if herr != nil {
		span.SetAttributes(attribute.String("error.code", herr.Code()))
	}
}
