package httpclient

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// errAttemptTimeout is the cancellation cause set by the per-attempt timer.
// It lets the executor tell its own timer apart from the caller's context
// when both are done.
var errAttemptTimeout = errors.New("httpclient: attempt timed out")

// attempt describes one logical call. It is immutable and shared by every
// attempt of that call.
type attempt struct {
	method  string
	url     string
	body    []byte
	header  http.Header
	timeout time.Duration
}

// executor performs exactly one HTTP exchange per call. It never retries.
type executor struct {
	httpClient   *http.Client
	interceptors []RequestInterceptor
}

// execute runs a single attempt and translates its outcome into the error
// taxonomy.
//
// The attempt is bounded by a timer derived from ctx. Whichever of the two
// fires first decides the failure: the timer yields KindTimeout, the
// caller's context yields KindAborted. A context that is already done
// yields KindAborted without touching the transport.
func (e *executor) execute(ctx context.Context, a attempt) (*Payload, *Error) {
	if ctx.Err() != nil {
		return nil, NewAbortedError(a.url)
	}

	attemptCtx, cancel := context.WithTimeoutCause(ctx, a.timeout, errAttemptTimeout)
	defer cancel()

	var body io.Reader
	if a.body != nil {
		body = bytes.NewReader(a.body)
	}
	req, err := http.NewRequestWithContext(attemptCtx, a.method, a.url, body)
	if err != nil {
		return nil, NewNetworkError(a.url, err)
	}
	req.Header = a.header.Clone()

	for _, intercept := range e.interceptors {
		if err := intercept(req); err != nil {
			return nil, NewNetworkError(a.url, err)
		}
	}

	resp, err := e.httpClient.Do(req)
	if err != nil {
		return nil, e.transportError(attemptCtx, a, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, e.transportError(attemptCtx, a, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, NewStatusError(a.url, a.method, resp.StatusCode, statusText(resp), parseErrorBody(data))
	}

	return newPayload(resp.StatusCode, resp.Header, data), nil
}

// transportError maps a failure to send the request or read the response.
// Once the attempt context is done the failure is attributed to whichever
// cancellation source fired, never to the network.
func (e *executor) transportError(attemptCtx context.Context, a attempt, err error) *Error {
	if attemptCtx.Err() == nil {
		return NewNetworkError(a.url, err)
	}
	if errors.Is(context.Cause(attemptCtx), errAttemptTimeout) {
		return NewTimeoutError(a.url, a.timeout)
	}
	return NewAbortedError(a.url)
}

// statusText extracts the reason phrase from resp.Status ("404 Not Found"),
// falling back to the standard text for the code.
func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}
