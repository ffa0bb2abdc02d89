// Package httpclient provides a resilient outbound HTTP client: bounded
// per-attempt timeouts, classified automatic retries with exponential
// backoff, cancellation through context.Context, and OpenTelemetry
// instrumentation.
//
// # Features
//
//   - One error type (*Error) with a closed set of kinds: timeout, network,
//     status, aborted, retries exhausted
//   - Semantic retry classification (429, 5xx, timeouts, network → retry;
//     other 4xx, cancellation → stop)
//   - Deterministic backoff: RetryDelay × 2^i before retry i
//   - Responses decoded by content type into a structured or text Payload
//   - Tracing spans per attempt, retry events, call and attempt metrics
//
// # Quick Start
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("my-service"),
//	)
//
//	// Untyped: inspect the payload yourself
//	payload, err := client.Get(ctx, "/users",
//	    httpclient.WithQuery("page", 1),
//	    httpclient.WithQuery("limit", 10),
//	)
//
//	// Typed: decode a JSON body into T
//	user, err := httpclient.Post[User](ctx, client, "/users", newUser)
//
// # Timeouts and Cancellation
//
// Every attempt is bounded by its own timer (30s by default, overridable
// per call with WithTimeout). The caller's context bounds the whole call,
// backoff waits included. When both could end an attempt the first one
// wins: the timer reports KindTimeout and is retried, the caller's context
// reports KindAborted and is not.
//
// # Retries
//
// A call makes at most retries+1 attempts. Failures the classifier rejects
// are returned as they are; retryable failures that outlive the budget are
// wrapped in a KindRetriesExhausted error whose Unwrap is the last failure:
//
//	_, err := client.Get(ctx, "/flaky", httpclient.WithRetries(2))
//	if httpclient.IsRetriesExhausted(err) && httpclient.IsTimeout(err) {
//	    // three attempts, all timed out
//	}
//
// Retrying is not idempotency-aware: POST and PUT are retried like GET.
//
// # Observability
//
// Metrics:
//   - http.client.request.duration (histogram, per attempt)
//   - http.client.active_requests (up/down counter)
//   - http.client.request.error (counter, transport failures)
//   - http.client.call.duration (histogram, per call, by outcome)
//   - http.client.call.errors (counter, by error code)
//   - http.client.retry.attempts / http.client.retry.exhausted (counters)
//
// Traces:
//   - A client span per attempt with method, URL and status code
//   - "http.retry" events on the caller's span with attempt and delay
//
// Logging is off by default. Enable it with WithLogging and route it to a
// zerolog logger (WithLogger) or a plain callback (WithLogSink).
//
// # Testing
//
// MockTransport answers requests from stubs without a network:
//
//	mock := httpclient.NewMockTransport().StubSequence(
//	    httpclient.TextResponse(500, "boom"),
//	    httpclient.JSONResponse(200, `{"id":1}`),
//	)
//	client := httpclient.New(
//	    httpclient.WithMockTransport(mock),
//	    httpclient.WithRetryDelay(0),
//	)
package httpclient
