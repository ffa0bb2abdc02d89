package httpclient

import (
	"context"
	"net/http"

	json "github.com/goccy/go-json"
)

// Client executes HTTP calls against external services with a bounded
// per-attempt timeout, classified retries with exponential backoff, and
// cancellation through the caller's context.
//
// A Client holds only immutable configuration and is safe for concurrent
// use. Every call owns its own attempt state.
//
// Create a Client using New():
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("https://api.example.com"),
//	    httpclient.WithServiceName("payment-service"),
//	)
//
//	payload, err := client.Get(ctx, "/payments",
//	    httpclient.WithQuery("status", "pending"),
//	)
type Client struct {
	// httpClient is the underlying HTTP client with transport chain.
	httpClient *http.Client

	// config holds all client configuration.
	config *internalConfig

	retrier *retrier
}

// New creates a Client. Without options it uses a 30s attempt timeout,
// 3 retries, a 1s base backoff, logging off, http.DefaultTransport and the
// global OpenTelemetry providers.
//
// Example - Fast-failing client for an internal service:
//
//	client := httpclient.New(
//	    httpclient.WithBaseURL("http://inventory.internal"),
//	    httpclient.WithDefaultTimeout(2*time.Second),
//	    httpclient.WithDefaultRetries(1),
//	    httpclient.WithRetryDelay(100*time.Millisecond),
//	)
func New(opts ...Option) *Client {
	cfg := newConfig(opts...)

	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	if cfg.Chaos != nil {
		base = newChaosTransport(base, *cfg.Chaos)
	}
	if cfg.RateLimit != nil {
		base = newRateLimitTransport(base, *cfg.RateLimit)
	}

	// Attempts are bounded by their own context, so the http.Client
	// carries no timeout of its own.
	httpClient := &http.Client{
		Transport: newOtelTransport(base, cfg),
	}

	exec := &executor{
		httpClient:   httpClient,
		interceptors: cfg.Interceptors,
	}

	return &Client{
		httpClient: httpClient,
		config:     cfg,
		retrier: &retrier{
			exec:       exec,
			classifier: cfg.Classifier,
			newBackOff: cfg.NewBackOff,
			sleep:      cfg.Sleep,
			log:        newCallLogger(cfg),
			cfg:        cfg,
		},
	}
}

// Config returns the client's effective timeout, retry and logging policy.
func (c *Client) Config() ClientConfig {
	return c.config.client
}

// HTTP returns the underlying *http.Client, instrumented but without the
// retry and timeout policy. Use it to hand the transport chain to
// libraries that expect a plain *http.Client.
func (c *Client) HTTP() *http.Client {
	return c.httpClient
}

// Get performs a GET request.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*Payload, error) {
	return c.Do(ctx, http.MethodGet, url, nil, opts...)
}

// Post performs a POST request with body encoded as JSON. A nil body sends
// no content.
func (c *Client) Post(ctx context.Context, url string, body any, opts ...RequestOption) (*Payload, error) {
	return c.Do(ctx, http.MethodPost, url, body, opts...)
}

// Put performs a PUT request with body encoded as JSON. A nil body sends
// no content.
func (c *Client) Put(ctx context.Context, url string, body any, opts ...RequestOption) (*Payload, error) {
	return c.Do(ctx, http.MethodPut, url, body, opts...)
}

// Delete performs a DELETE request.
func (c *Client) Delete(ctx context.Context, url string, opts ...RequestOption) (*Payload, error) {
	return c.Do(ctx, http.MethodDelete, url, nil, opts...)
}

// Do performs a request with the retry, timeout and cancellation policy.
//
// body is JSON-encoded for POST and PUT when non-nil, and ignored for
// every other method. url may be relative when the client has a base URL.
//
// On failure the returned error is always an *Error. Only the typed
// helpers (Get[T] and friends) can add a *DecodeError, when a successful
// response does not fit T:
//
//	payload, err := client.Do(ctx, http.MethodGet, "/users/42", nil)
//	switch {
//	case httpclient.IsStatus(err) && httpclient.StatusCodeOf(err) == 404:
//	    // not found
//	case httpclient.IsAborted(err):
//	    // ctx was cancelled
//	case err != nil:
//	    // timeouts, network failures, exhausted retries
//	}
func (c *Client) Do(ctx context.Context, method, url string, body any, opts ...RequestOption) (*Payload, error) {
	rc := newRequestConfig(opts...)

	fullURL, err := buildURL(c.config.BaseURL, url, rc.Params)
	if err != nil {
		return nil, NewNetworkError(url, err)
	}

	data, err := encodeBody(method, body)
	if err != nil {
		return nil, NewNetworkError(fullURL, err)
	}

	timeout := rc.Timeout
	if timeout <= 0 {
		timeout = c.config.client.DefaultTimeout
	}
	retries := c.config.client.DefaultRetries
	if rc.Retries != nil {
		retries = *rc.Retries
	}

	a := attempt{
		method:  method,
		url:     fullURL,
		body:    data,
		header:  c.buildHeader(rc),
		timeout: timeout,
	}

	payload, herr := c.retrier.run(ctx, a, retries)
	if herr != nil {
		return nil, herr
	}
	return payload, nil
}

// buildHeader layers the JSON content type, the client's default headers
// and the call's headers, later layers winning.
func (c *Client) buildHeader(rc RequestConfig) http.Header {
	h := make(http.Header, 1+len(c.config.DefaultHeaders)+len(rc.Headers))
	h.Set("Content-Type", "application/json")
	for k, v := range c.config.DefaultHeaders {
		h.Set(k, v)
	}
	for k, v := range rc.Headers {
		h.Set(k, v)
	}
	return h
}

// encodeBody returns the JSON encoding of body for methods that carry one.
func encodeBody(method string, body any) ([]byte, error) {
	if body == nil || (method != http.MethodPost && method != http.MethodPut) {
		return nil, nil
	}
	return json.Marshal(body)
}

// Get performs a GET request and decodes the response into T.
//
// string, []byte and any accept every body; other types require a JSON
// body. A body that cannot be decoded yields a *DecodeError, which still
// carries the response Payload.
//
// Example:
//
//	type User struct {
//	    ID   int    `json:"id"`
//	    Name string `json:"name"`
//	}
//
//	user, err := httpclient.Get[User](ctx, client, "/users/42")
func Get[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Get(ctx, url, opts...))
}

// Post performs a POST request and decodes the response into T.
func Post[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Post(ctx, url, body, opts...))
}

// Put performs a PUT request and decodes the response into T.
func Put[T any](ctx context.Context, c *Client, url string, body any, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Put(ctx, url, body, opts...))
}

// Delete performs a DELETE request and decodes the response into T.
// Use struct{} for endpoints that answer with an empty body.
func Delete[T any](ctx context.Context, c *Client, url string, opts ...RequestOption) (T, error) {
	return decodeResult[T](c.Delete(ctx, url, opts...))
}

func decodeResult[T any](p *Payload, err error) (T, error) {
	if err != nil {
		var zero T
		return zero, err
	}
	return decodePayload[T](p)
}
