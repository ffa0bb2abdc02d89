package httpclient

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind identifies which failure condition produced an *Error.
// The set is closed: every failed call reports exactly one of these.
type Kind int

const (
	// KindNetwork is a transport-level failure (DNS, connect, reset, TLS).
	KindNetwork Kind = iota + 1
	// KindTimeout means the per-attempt timer fired before the call completed.
	KindTimeout
	// KindAborted means the caller's context was cancelled.
	KindAborted
	// KindStatus means the server answered with a non-2xx status.
	KindStatus
	// KindRetriesExhausted wraps the last retryable failure once the
	// retry budget is spent.
	KindRetriesExhausted
)

// Kind sentinels for use with errors.Is.
var (
	ErrNetwork          = errors.New("httpclient: network error")
	ErrTimeout          = errors.New("httpclient: timeout")
	ErrAborted          = errors.New("httpclient: aborted")
	ErrStatus           = errors.New("httpclient: status error")
	ErrRetriesExhausted = errors.New("httpclient: retries exhausted")
)

// String returns a lowercase label suitable for log fields and metric attributes.
func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindAborted:
		return "aborted"
	case KindStatus:
		return "status"
	case KindRetriesExhausted:
		return "retries_exhausted"
	default:
		return "unknown"
	}
}

// Code returns the stable machine-readable code for the kind.
func (k Kind) Code() string {
	switch k {
	case KindNetwork:
		return "HTTP_NETWORK_ERROR"
	case KindTimeout:
		return "HTTP_TIMEOUT"
	case KindAborted:
		return "HTTP_ABORTED"
	case KindStatus:
		return "HTTP_STATUS_ERROR"
	case KindRetriesExhausted:
		return "HTTP_RETRIES_FAILED"
	default:
		return "HTTP_UNKNOWN_ERROR"
	}
}

func (k Kind) sentinel() error {
	switch k {
	case KindNetwork:
		return ErrNetwork
	case KindTimeout:
		return ErrTimeout
	case KindAborted:
		return ErrAborted
	case KindStatus:
		return ErrStatus
	case KindRetriesExhausted:
		return ErrRetriesExhausted
	default:
		return nil
	}
}

// Error is the single error type returned by every Client operation.
//
// Only the fields relevant to Kind are populated:
//
//	KindTimeout           URL, Timeout
//	KindNetwork           URL, Cause
//	KindStatus            URL, Method, StatusCode, StatusText, Body
//	KindAborted           URL
//	KindRetriesExhausted  URL, Attempts, Cause (the last *Error)
//
// Use errors.Is with the Err* sentinels to branch on the kind, or
// errors.As to get at the context fields:
//
//	var herr *httpclient.Error
//	if errors.As(err, &herr) && herr.Kind == httpclient.KindStatus {
//	    log.Printf("upstream said %d: %v", herr.StatusCode, herr.Body)
//	}
type Error struct {
	Kind    Kind
	Message string

	URL        string
	Method     string
	StatusCode int
	StatusText string
	// Body is the decoded error body: a JSON value when the body parsed as
	// JSON, the raw text otherwise.
	Body     any
	Timeout  time.Duration
	Attempts int

	Cause error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Unwrap returns the underlying cause. For KindRetriesExhausted this is the
// last attempt's *Error, so errors.Is(err, ErrTimeout) reports true for a
// call that ran out of retries on timeouts.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// Is matches the kind sentinel of this error.
func (e *Error) Is(target error) bool {
	if e == nil {
		return false
	}
	s := e.Kind.sentinel()
	return s != nil && target == s
}

// Code returns the stable machine-readable code of the error's kind.
func (e *Error) Code() string {
	if e == nil {
		return ""
	}
	return e.Kind.Code()
}

// NewTimeoutError reports that a single attempt exceeded its timeout.
func NewTimeoutError(url string, timeout time.Duration) *Error {
	return &Error{
		Kind:    KindTimeout,
		Message: fmt.Sprintf("request timed out after %dms", timeout.Milliseconds()),
		URL:     url,
		Timeout: timeout,
		Cause:   context.DeadlineExceeded,
	}
}

// NewNetworkError reports a transport failure.
func NewNetworkError(url string, cause error) *Error {
	msg := "network error"
	if cause != nil {
		msg = "network error: " + cause.Error()
	}
	return &Error{
		Kind:    KindNetwork,
		Message: msg,
		URL:     url,
		Cause:   cause,
	}
}

// NewStatusError reports a non-2xx response.
func NewStatusError(url, method string, status int, statusText string, body any) *Error {
	msg := fmt.Sprintf("HTTP %d", status)
	if statusText != "" {
		msg += " " + statusText
	}
	return &Error{
		Kind:       KindStatus,
		Message:    msg,
		URL:        url,
		Method:     method,
		StatusCode: status,
		StatusText: statusText,
		Body:       body,
	}
}

// NewAbortedError reports that the caller cancelled the call.
func NewAbortedError(url string) *Error {
	return &Error{
		Kind:    KindAborted,
		Message: "request was aborted",
		URL:     url,
		Cause:   context.Canceled,
	}
}

// NewRetriesExhaustedError wraps the last retryable failure once the
// retry budget is spent. attempts counts every attempt made, including the
// first.
func NewRetriesExhaustedError(url string, attempts int, last *Error) *Error {
	e := &Error{
		Kind:     KindRetriesExhausted,
		URL:      url,
		Attempts: attempts,
	}
	if last != nil {
		e.Message = fmt.Sprintf("request failed after %d attempts: %s", attempts, last.Message)
		e.Cause = last
	} else {
		e.Message = fmt.Sprintf("request failed after %d attempts", attempts)
	}
	return e
}

// AsError extracts the *Error from err's chain.
func AsError(err error) (*Error, bool) {
	var herr *Error
	if errors.As(err, &herr) {
		return herr, true
	}
	return nil, false
}

// IsTimeout reports whether err is, or was exhausted by, a timeout.
func IsTimeout(err error) bool { return errors.Is(err, ErrTimeout) }

// IsNetwork reports whether err is, or was exhausted by, a network failure.
func IsNetwork(err error) bool { return errors.Is(err, ErrNetwork) }

// IsAborted reports whether err came from caller cancellation.
func IsAborted(err error) bool { return errors.Is(err, ErrAborted) }

// IsStatus reports whether err is, or was exhausted by, a non-2xx response.
func IsStatus(err error) bool { return errors.Is(err, ErrStatus) }

// IsRetriesExhausted reports whether err is a spent retry budget.
func IsRetriesExhausted(err error) bool { return errors.Is(err, ErrRetriesExhausted) }

// StatusCodeOf returns the HTTP status carried by err, looking through a
// retries-exhausted wrapper. It returns 0 when no status is available.
func StatusCodeOf(err error) int {
	for herr, ok := AsError(err); ok; herr, ok = AsError(herr.Cause) {
		if herr.Kind == KindStatus {
			return herr.StatusCode
		}
	}
	return 0
}

// DecodeError is returned by the typed helpers (Get[T] and friends) when a
// successful response cannot be represented as the requested type. The
// request itself succeeded; Payload holds what the server sent.
//
// It is the one error those helpers return that is not an *Error: AsError
// reports false for it and IsStatus, IsTimeout and the other kind helpers
// do not match it. Use errors.As with a *DecodeError to detect it. Client.Do
// and the untyped methods never return it.
type DecodeError struct {
	Payload *Payload
	Target  string
	Err     error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("httpclient: decode response into %s: %v", e.Target, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }
