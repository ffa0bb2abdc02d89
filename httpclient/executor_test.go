package httpclient

import (
	"context"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(rt http.RoundTripper, interceptors ...RequestInterceptor) *executor {
	return &executor{
		httpClient:   &http.Client{Transport: rt},
		interceptors: interceptors,
	}
}

func testAttempt(method, url string) attempt {
	return attempt{
		method:  method,
		url:     url,
		header:  http.Header{"Content-Type": []string{"application/json"}},
		timeout: 5 * time.Second,
	}
}

func TestExecutor_Execute(t *testing.T) {
	tests := []struct {
		name       string
		resp       MockResponse
		wantErr    bool
		wantKind   Kind
		wantStatus int
		wantBody   any
		wantText   string
	}{
		{
			name:       "given 200 json, then returns structured payload",
			resp:       JSONResponse(200, `{"id":1}`),
			wantStatus: 200,
			wantText:   `{"id":1}`,
		},
		{
			name:       "given 204 without body, then returns empty payload",
			resp:       MockResponse{StatusCode: 204},
			wantStatus: 204,
			wantText:   "",
		},
		{
			name:       "given 404 json body, then status error carries parsed body",
			resp:       JSONResponse(404, `{"error":"missing"}`),
			wantErr:    true,
			wantKind:   KindStatus,
			wantStatus: 404,
			wantBody:   map[string]any{"error": "missing"},
		},
		{
			name:       "given 500 text body, then status error carries text",
			resp:       TextResponse(500, "boom"),
			wantErr:    true,
			wantKind:   KindStatus,
			wantStatus: 500,
			wantBody:   "boom",
		},
		{
			name:       "given json body declared as text on error, then still parsed",
			resp:       TextResponse(422, `{"field":"name"}`),
			wantErr:    true,
			wantKind:   KindStatus,
			wantStatus: 422,
			wantBody:   map[string]any{"field": "name"},
		},
		{
			name:       "given 302 without redirect target, then status error",
			resp:       MockResponse{StatusCode: 302},
			wantErr:    true,
			wantKind:   KindStatus,
			wantStatus: 302,
			wantBody:   "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockTransport().StubResponse(tt.resp)
			exec := newTestExecutor(mock)

			payload, herr := exec.execute(context.Background(), testAttempt(http.MethodGet, "http://svc.test/a"))

			assert.Equal(t, 1, mock.RequestCount())
			if tt.wantErr {
				require.NotNil(t, herr)
				assert.Nil(t, payload)
				assert.Equal(t, tt.wantKind, herr.Kind)
				assert.Equal(t, tt.wantStatus, herr.StatusCode)
				assert.Equal(t, tt.wantBody, herr.Body)
				assert.Equal(t, http.MethodGet, herr.Method)
				return
			}
			require.Nil(t, herr)
			assert.Equal(t, tt.wantStatus, payload.StatusCode)
			assert.Equal(t, tt.wantText, payload.Text())
		})
	}
}

func TestExecutor_Execute_StatusText(t *testing.T) {
	mock := NewMockTransport().StubResponse(TextResponse(http.StatusNotFound, ""))
	exec := newTestExecutor(mock)

	_, herr := exec.execute(context.Background(), testAttempt(http.MethodGet, "http://svc.test/a"))

	require.NotNil(t, herr)
	assert.Equal(t, "Not Found", herr.StatusText)
	assert.Equal(t, "HTTP 404 Not Found", herr.Message)
}

func TestExecutor_Execute_PreAborted(t *testing.T) {
	mock := NewMockTransport().StubResponse(JSONResponse(200, `{}`))
	exec := newTestExecutor(mock)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	payload, herr := exec.execute(ctx, testAttempt(http.MethodGet, "http://svc.test/a"))

	assert.Nil(t, payload)
	require.NotNil(t, herr)
	assert.Equal(t, KindAborted, herr.Kind)
	assert.Equal(t, 0, mock.RequestCount())
}

func TestExecutor_Execute_Cancellation(t *testing.T) {
	t.Run("given attempt timer fires first, then returns timeout", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(MockResponse{Hang: true})
		exec := newTestExecutor(mock)
		a := testAttempt(http.MethodGet, "http://svc.test/slow")
		a.timeout = 20 * time.Millisecond

		start := time.Now()
		_, herr := exec.execute(context.Background(), a)

		require.NotNil(t, herr)
		assert.Equal(t, KindTimeout, herr.Kind)
		assert.Equal(t, 20*time.Millisecond, herr.Timeout)
		assert.Equal(t, "request timed out after 20ms", herr.Message)
		assert.Less(t, time.Since(start), 2*time.Second)
	})

	t.Run("given caller cancels first, then returns aborted", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(MockResponse{Hang: true})
		exec := newTestExecutor(mock)

		ctx, cancel := context.WithCancel(context.Background())
		time.AfterFunc(20*time.Millisecond, cancel)

		_, herr := exec.execute(ctx, testAttempt(http.MethodGet, "http://svc.test/slow"))

		require.NotNil(t, herr)
		assert.Equal(t, KindAborted, herr.Kind)
		assert.ErrorIs(t, herr, context.Canceled)
	})

	t.Run("given caller deadline fires first, then returns aborted", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(MockResponse{Hang: true})
		exec := newTestExecutor(mock)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		_, herr := exec.execute(ctx, testAttempt(http.MethodGet, "http://svc.test/slow"))

		require.NotNil(t, herr)
		assert.Equal(t, KindAborted, herr.Kind)
	})

	t.Run("given slow answer within timeout, then succeeds", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(MockResponse{StatusCode: 200, Body: "ok", Delay: 10 * time.Millisecond})
		exec := newTestExecutor(mock)

		payload, herr := exec.execute(context.Background(), testAttempt(http.MethodGet, "http://svc.test/a"))

		require.Nil(t, herr)
		assert.Equal(t, "ok", payload.Text())
	})
}

func TestExecutor_Execute_NetworkError(t *testing.T) {
	mock := NewMockTransport().StubError(io.ErrUnexpectedEOF)
	exec := newTestExecutor(mock)

	_, herr := exec.execute(context.Background(), testAttempt(http.MethodGet, "http://svc.test/a"))

	require.NotNil(t, herr)
	assert.Equal(t, KindNetwork, herr.Kind)
	assert.ErrorIs(t, herr.Cause, io.ErrUnexpectedEOF)
	assert.Equal(t, "http://svc.test/a", herr.URL)
}

func TestExecutor_Execute_Interceptors(t *testing.T) {
	t.Run("given interceptors, then applied in order on a copy of the header", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(JSONResponse(200, `{}`))
		exec := newTestExecutor(mock,
			func(req *http.Request) error {
				req.Header.Set("X-Order", "first")
				return nil
			},
			func(req *http.Request) error {
				req.Header.Set("X-Order", req.Header.Get("X-Order")+",second")
				return nil
			},
		)
		a := testAttempt(http.MethodGet, "http://svc.test/a")

		_, herr := exec.execute(context.Background(), a)

		require.Nil(t, herr)
		assert.Equal(t, "first,second", mock.LastRequest().Header.Get("X-Order"))
		assert.Empty(t, a.header.Get("X-Order"))
	})

	t.Run("given failing interceptor, then network error without sending", func(t *testing.T) {
		mock := NewMockTransport().StubResponse(JSONResponse(200, `{}`))
		errToken := errors.New("token unavailable")
		exec := newTestExecutor(mock, func(*http.Request) error { return errToken })

		_, herr := exec.execute(context.Background(), testAttempt(http.MethodGet, "http://svc.test/a"))

		require.NotNil(t, herr)
		assert.Equal(t, KindNetwork, herr.Kind)
		assert.ErrorIs(t, herr, errToken)
		assert.Equal(t, 0, mock.RequestCount())
	})
}

func TestExecutor_Execute_Body(t *testing.T) {
	mock := NewMockTransport().StubResponse(JSONResponse(201, `{"id":7}`))
	exec := newTestExecutor(mock)
	a := testAttempt(http.MethodPost, "http://svc.test/items")
	a.body = []byte(`{"name":"x"}`)

	payload, herr := exec.execute(context.Background(), a)

	require.Nil(t, herr)
	assert.Equal(t, 201, payload.StatusCode)
	assert.JSONEq(t, `{"name":"x"}`, string(mock.LastBody()))
	assert.Equal(t, "application/json", mock.LastRequest().Header.Get("Content-Type"))
}

func TestExecutor_Execute_InvalidMethod(t *testing.T) {
	exec := newTestExecutor(NewMockTransport())

	_, herr := exec.execute(context.Background(), testAttempt("BAD METHOD", "http://svc.test/a"))

	require.NotNil(t, herr)
	assert.Equal(t, KindNetwork, herr.Kind)
}

func TestExecutor_AttemptContextReleased(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name       string
		resp       MockResponse
		timeout    time.Duration
		cancelCall bool
		wantKind   Kind
		wantOK     bool
		wantCtxErr error
	}{
		{
			name:       "given 200, then attempt context cancelled after return",
			resp:       JSONResponse(200, `{"ok":true}`),
			wantOK:     true,
			wantCtxErr: context.Canceled,
		},
		{
			name:       "given 404, then attempt context cancelled after return",
			resp:       TextResponse(404, "missing"),
			wantKind:   KindStatus,
			wantCtxErr: context.Canceled,
		},
		{
			name:       "given transport error, then attempt context cancelled after return",
			resp:       ErrorResponse(errBoom),
			wantKind:   KindRetriesExhausted,
			wantCtxErr: context.Canceled,
		},
		{
			name:       "given caller cancels mid attempt, then attempt context cancelled",
			resp:       MockResponse{Hang: true},
			cancelCall: true,
			wantKind:   KindAborted,
			wantCtxErr: context.Canceled,
		},
		{
			name:       "given attempt timer fires, then attempt context ended by the timer",
			resp:       MockResponse{Hang: true},
			timeout:    20 * time.Millisecond,
			wantKind:   KindRetriesExhausted,
			wantCtxErr: context.DeadlineExceeded,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			var attemptCtx context.Context
			mock := NewMockTransport().StubResponse(tt.resp).OnRequest(func(req *http.Request) {
				attemptCtx = req.Context()
				if tt.cancelCall {
					cancel()
				}
			})
			client := New(WithMockTransport(mock))

			opts := []RequestOption{WithRetries(0)}
			if tt.timeout > 0 {
				opts = append(opts, WithTimeout(tt.timeout))
			}
			payload, err := client.Get(ctx, "http://svc.test/x", opts...)

			if tt.wantOK {
				require.NoError(t, err)
				assert.Equal(t, 200, payload.StatusCode)
			} else {
				herr, ok := AsError(err)
				require.True(t, ok)
				assert.Equal(t, tt.wantKind, herr.Kind)
			}

			require.NotNil(t, attemptCtx)
			assert.ErrorIs(t, attemptCtx.Err(), tt.wantCtxErr)
			if tt.timeout > 0 {
				assert.ErrorIs(t, context.Cause(attemptCtx), errAttemptTimeout)
			}
		})
	}
}
