package httpclient

import (
	"net/http"
	"time"
)

// QueryParam is a single query parameter. Value is formatted with
// strconv for strings, bools, integers and floats, and with fmt otherwise.
type QueryParam struct {
	Key   string
	Value any
}

// RequestConfig holds the per-call settings built from RequestOptions.
type RequestConfig struct {
	// Headers override the client's default headers by canonical name.
	Headers map[string]string
	// Timeout bounds each attempt. Zero means the client default.
	Timeout time.Duration
	// Retries overrides the client's retry budget when non-nil.
	Retries *int
	// Params are appended to the URL in order. Keys may repeat.
	Params []QueryParam
}

// RequestOption configures a single call.
type RequestOption func(*RequestConfig)

func newRequestConfig(opts ...RequestOption) RequestConfig {
	var rc RequestConfig
	for _, opt := range opts {
		if opt != nil {
			opt(&rc)
		}
	}
	return rc
}

// WithHeader sets one request header, overriding any default of the same name.
func WithHeader(key, value string) RequestOption {
	return func(rc *RequestConfig) {
		if rc.Headers == nil {
			rc.Headers = make(map[string]string)
		}
		rc.Headers[http.CanonicalHeaderKey(key)] = value
	}
}

// WithHeaders sets several request headers.
func WithHeaders(headers map[string]string) RequestOption {
	return func(rc *RequestConfig) {
		for k, v := range headers {
			WithHeader(k, v)(rc)
		}
	}
}

// WithTimeout sets the per-attempt timeout for this call. Non-positive
// values fall back to the client default.
func WithTimeout(d time.Duration) RequestOption {
	return func(rc *RequestConfig) {
		rc.Timeout = d
	}
}

// WithRetries sets the retry budget for this call: the number of extra
// attempts after the first. Zero disables retrying; negative values are
// treated as zero.
func WithRetries(n int) RequestOption {
	return func(rc *RequestConfig) {
		retries := max(n, 0)
		rc.Retries = &retries
	}
}

// WithQuery appends one query parameter.
//
//	client.Get(ctx, "/users",
//	    httpclient.WithQuery("page", 1),
//	    httpclient.WithQuery("active", true),
//	)
func WithQuery(key string, value any) RequestOption {
	return func(rc *RequestConfig) {
		rc.Params = append(rc.Params, QueryParam{Key: key, Value: value})
	}
}

// WithParams appends query parameters in the given order.
func WithParams(params ...QueryParam) RequestOption {
	return func(rc *RequestConfig) {
		rc.Params = append(rc.Params, params...)
	}
}
