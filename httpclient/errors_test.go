package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorConstructors(t *testing.T) {
	cause := io.ErrUnexpectedEOF

	tests := []struct {
		name        string
		err         *Error
		wantKind    Kind
		wantCode    string
		wantMessage string
		wantIs      error
	}{
		{
			name:        "given timeout, then message carries milliseconds",
			err:         NewTimeoutError("http://svc/a", 1500*time.Millisecond),
			wantKind:    KindTimeout,
			wantCode:    "HTTP_TIMEOUT",
			wantMessage: "request timed out after 1500ms",
			wantIs:      ErrTimeout,
		},
		{
			name:        "given network failure, then message carries cause",
			err:         NewNetworkError("http://svc/a", cause),
			wantKind:    KindNetwork,
			wantCode:    "HTTP_NETWORK_ERROR",
			wantMessage: "network error: unexpected EOF",
			wantIs:      ErrNetwork,
		},
		{
			name:        "given status, then message carries code and text",
			err:         NewStatusError("http://svc/a", "GET", 404, "Not Found", "missing"),
			wantKind:    KindStatus,
			wantCode:    "HTTP_STATUS_ERROR",
			wantMessage: "HTTP 404 Not Found",
			wantIs:      ErrStatus,
		},
		{
			name:        "given status without text, then message carries code only",
			err:         NewStatusError("http://svc/a", "GET", 599, "", nil),
			wantKind:    KindStatus,
			wantCode:    "HTTP_STATUS_ERROR",
			wantMessage: "HTTP 599",
			wantIs:      ErrStatus,
		},
		{
			name:        "given abort, then fixed message",
			err:         NewAbortedError("http://svc/a"),
			wantKind:    KindAborted,
			wantCode:    "HTTP_ABORTED",
			wantMessage: "request was aborted",
			wantIs:      ErrAborted,
		},
		{
			name:        "given exhausted retries, then message carries attempts and last failure",
			err:         NewRetriesExhaustedError("http://svc/a", 4, NewTimeoutError("http://svc/a", time.Second)),
			wantKind:    KindRetriesExhausted,
			wantCode:    "HTTP_RETRIES_FAILED",
			wantMessage: "request failed after 4 attempts: request timed out after 1000ms",
			wantIs:      ErrRetriesExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantKind, tt.err.Kind)
			assert.Equal(t, tt.wantCode, tt.err.Code())
			assert.Equal(t, tt.wantMessage, tt.err.Error())
			assert.Equal(t, "http://svc/a", tt.err.URL)
			assert.ErrorIs(t, tt.err, tt.wantIs)
		})
	}
}

func TestError_ContextFields(t *testing.T) {
	t.Run("given status error, then keeps method, status and body", func(t *testing.T) {
		body := map[string]any{"error": "bad"}
		err := NewStatusError("http://svc/a", "POST", 422, "Unprocessable Entity", body)

		assert.Equal(t, "POST", err.Method)
		assert.Equal(t, 422, err.StatusCode)
		assert.Equal(t, "Unprocessable Entity", err.StatusText)
		assert.Equal(t, body, err.Body)
	})

	t.Run("given timeout error, then keeps timeout and matches deadline exceeded", func(t *testing.T) {
		err := NewTimeoutError("http://svc/a", 100*time.Millisecond)

		assert.Equal(t, 100*time.Millisecond, err.Timeout)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("given aborted error, then matches context canceled", func(t *testing.T) {
		assert.ErrorIs(t, NewAbortedError("u"), context.Canceled)
	})

	t.Run("given network error, then unwraps to cause", func(t *testing.T) {
		assert.ErrorIs(t, NewNetworkError("u", io.EOF), io.EOF)
	})

	t.Run("given exhausted retries without last error, then message has no suffix", func(t *testing.T) {
		err := NewRetriesExhaustedError("u", 1, nil)
		assert.Equal(t, "request failed after 1 attempts", err.Error())
		assert.NoError(t, err.Unwrap())
	})
}

func TestError_KindsDoNotCrossMatch(t *testing.T) {
	err := NewStatusError("u", "GET", 500, "Internal Server Error", "")

	assert.ErrorIs(t, err, ErrStatus)
	assert.NotErrorIs(t, err, ErrTimeout)
	assert.NotErrorIs(t, err, ErrNetwork)
	assert.NotErrorIs(t, err, ErrAborted)
	assert.NotErrorIs(t, err, ErrRetriesExhausted)
}

func TestError_HelpersLookThroughWrapping(t *testing.T) {
	last := NewStatusError("u", "GET", 503, "Service Unavailable", "busy")
	exhausted := NewRetriesExhaustedError("u", 3, last)
	wrapped := fmt.Errorf("load profile: %w", exhausted)

	assert.True(t, IsRetriesExhausted(wrapped))
	assert.True(t, IsStatus(wrapped))
	assert.False(t, IsTimeout(wrapped))
	assert.False(t, IsNetwork(wrapped))
	assert.False(t, IsAborted(wrapped))
	assert.Equal(t, 503, StatusCodeOf(wrapped))

	herr, ok := AsError(wrapped)
	require.True(t, ok)
	assert.Equal(t, KindRetriesExhausted, herr.Kind)
	assert.Equal(t, 3, herr.Attempts)

	var inner *Error
	require.True(t, errors.As(herr.Unwrap(), &inner))
	assert.Same(t, last, inner)
}

func TestStatusCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{name: "given nil, then 0", err: nil, want: 0},
		{name: "given plain error, then 0", err: errors.New("x"), want: 0},
		{name: "given timeout, then 0", err: NewTimeoutError("u", time.Second), want: 0},
		{name: "given status, then its code", err: NewStatusError("u", "GET", 404, "", nil), want: 404},
		{
			name: "given exhausted retries over network error, then 0",
			err:  NewRetriesExhaustedError("u", 2, NewNetworkError("u", io.EOF)),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, StatusCodeOf(tt.err))
		})
	}
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "network", KindNetwork.String())
	assert.Equal(t, "timeout", KindTimeout.String())
	assert.Equal(t, "aborted", KindAborted.String())
	assert.Equal(t, "status", KindStatus.String())
	assert.Equal(t, "retries_exhausted", KindRetriesExhausted.String())
	assert.Equal(t, "unknown", Kind(0).String())
	assert.Equal(t, "HTTP_UNKNOWN_ERROR", Kind(0).Code())
}

func TestError_NilReceiver(t *testing.T) {
	var err *Error
	assert.Equal(t, "<nil>", err.Error())
	assert.Equal(t, "", err.Code())
	assert.NoError(t, err.Unwrap())
	assert.False(t, err.Is(ErrStatus))
}

func TestDecodeError(t *testing.T) {
	p := newPayload(200, nil, []byte("plain"))
	err := &DecodeError{Payload: p, Target: "main.User", Err: io.ErrUnexpectedEOF}

	assert.Equal(t, "httpclient: decode response into main.User: unexpected EOF", err.Error())
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
