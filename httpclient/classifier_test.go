package httpclient

import (
	"crypto/tls"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultClassifier(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantRetry bool
	}{
		{name: "given nil, then returns false", err: nil, wantRetry: false},
		{name: "given 400, then returns false", err: NewStatusError("u", "GET", 400, "", nil), wantRetry: false},
		{name: "given 401, then returns false", err: NewStatusError("u", "GET", 401, "", nil), wantRetry: false},
		{name: "given 404, then returns false", err: NewStatusError("u", "GET", 404, "", nil), wantRetry: false},
		{name: "given 409, then returns false", err: NewStatusError("u", "GET", 409, "", nil), wantRetry: false},
		{name: "given 499, then returns false", err: NewStatusError("u", "GET", 499, "", nil), wantRetry: false},
		{name: "given 429, then returns true", err: NewStatusError("u", "GET", 429, "", nil), wantRetry: true},
		{name: "given 500, then returns true", err: NewStatusError("u", "GET", 500, "", nil), wantRetry: true},
		{name: "given 502, then returns true", err: NewStatusError("u", "GET", 502, "", nil), wantRetry: true},
		{name: "given 503, then returns true", err: NewStatusError("u", "GET", 503, "", nil), wantRetry: true},
		{name: "given 599, then returns true", err: NewStatusError("u", "GET", 599, "", nil), wantRetry: true},
		{name: "given timeout, then returns true", err: NewTimeoutError("u", time.Second), wantRetry: true},
		{name: "given network error, then returns true", err: NewNetworkError("u", io.EOF), wantRetry: true},
		{name: "given aborted, then returns false", err: NewAbortedError("u"), wantRetry: false},
		{
			name:      "given exhausted retries, then returns false",
			err:       NewRetriesExhaustedError("u", 2, NewTimeoutError("u", time.Second)),
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRetry, DefaultClassifier(tt.err))
		})
	}
}

func TestStrictClassifier(t *testing.T) {
	tests := []struct {
		name      string
		err       *Error
		wantRetry bool
	}{
		{
			name:      "given connection refused, then returns true",
			err:       NewNetworkError("u", &net.OpError{Op: "dial", Err: fmt.Errorf("connection refused")}),
			wantRetry: true,
		},
		{
			name:      "given certificate verification failure, then returns false",
			err:       NewNetworkError("u", &tls.CertificateVerificationError{Err: fmt.Errorf("x509: expired")}),
			wantRetry: false,
		},
		{
			name:      "given NXDOMAIN, then returns false",
			err:       NewNetworkError("u", &net.DNSError{Err: "no such host", Name: "nope.invalid", IsNotFound: true}),
			wantRetry: false,
		},
		{
			name:      "given temporary DNS failure, then returns true",
			err:       NewNetworkError("u", &net.DNSError{Err: "server misbehaving", Name: "svc", IsTemporary: true}),
			wantRetry: true,
		},
		{
			name:      "given wrapped tls message, then returns false",
			err:       NewNetworkError("u", fmt.Errorf("remote error: tls: handshake failure")),
			wantRetry: false,
		},
		{
			name:      "given 503, then defers to default",
			err:       NewStatusError("u", "GET", 503, "", nil),
			wantRetry: true,
		},
		{
			name:      "given 404, then defers to default",
			err:       NewStatusError("u", "GET", 404, "", nil),
			wantRetry: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRetry, StrictClassifier(tt.err))
		})
	}
}

func TestNeverRetryClassifier(t *testing.T) {
	c := NeverRetryClassifier()

	assert.False(t, c(NewTimeoutError("u", time.Second)))
	assert.False(t, c(NewNetworkError("u", io.EOF)))
	assert.False(t, c(NewStatusError("u", "GET", 503, "", nil)))
}

func TestStatusCodeClassifier(t *testing.T) {
	c := StatusCodeClassifier(http.StatusBadGateway, http.StatusConflict)

	tests := []struct {
		name      string
		err       *Error
		wantRetry bool
	}{
		{name: "given listed 502, then returns true", err: NewStatusError("u", "GET", 502, "", nil), wantRetry: true},
		{name: "given listed 409, then returns true", err: NewStatusError("u", "GET", 409, "", nil), wantRetry: true},
		{name: "given unlisted 500, then returns false", err: NewStatusError("u", "GET", 500, "", nil), wantRetry: false},
		{name: "given unlisted 429, then returns false", err: NewStatusError("u", "GET", 429, "", nil), wantRetry: false},
		{name: "given timeout, then returns true", err: NewTimeoutError("u", time.Second), wantRetry: true},
		{name: "given aborted, then returns false", err: NewAbortedError("u"), wantRetry: false},
		{name: "given nil, then returns false", err: nil, wantRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantRetry, c(tt.err))
		})
	}
}
