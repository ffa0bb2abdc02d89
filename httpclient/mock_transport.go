package httpclient

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"
)

// MockResponse describes what a MockTransport answers to one request.
type MockResponse struct {
	// StatusCode is the HTTP status. Ignored when Err is set.
	StatusCode int
	// Body is the response body.
	Body string
	// Header holds response headers.
	Header http.Header
	// Err fails the round trip instead of answering.
	Err error
	// Delay holds the answer back. The wait ends early when the request
	// context is done.
	Delay time.Duration
	// Hang blocks until the request context is done, simulating an
	// upstream that never answers.
	Hang bool
}

// JSONResponse answers with status and body declared as application/json.
func JSONResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Header:     http.Header{"Content-Type": []string{"application/json"}},
	}
}

// TextResponse answers with status and body declared as text/plain.
func TextResponse(status int, body string) MockResponse {
	return MockResponse{
		StatusCode: status,
		Body:       body,
		Header:     http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
	}
}

// ErrorResponse fails the round trip with err.
func ErrorResponse(err error) MockResponse {
	return MockResponse{Err: err}
}

// MockTransport provides a configurable http.RoundTripper for testing.
// It allows stubbing responses and verifying request expectations.
//
// Matching order: path and predicate stubs (first match wins), then the
// sequence, then the default response.
//
// Example - fail twice, then succeed:
//
//	mock := httpclient.NewMockTransport().StubSequence(
//	    httpclient.TextResponse(503, "busy"),
//	    httpclient.ErrorResponse(io.ErrUnexpectedEOF),
//	    httpclient.JSONResponse(200, `{"ok":true}`),
//	)
//	client := httpclient.New(httpclient.WithMockTransport(mock))
type MockTransport struct {
	mu          sync.Mutex
	stubs       []stub
	sequence    []MockResponse
	seqIndex    int
	defaultResp *MockResponse
	requests    []*http.Request
	bodies      [][]byte
	requestHook func(*http.Request)
}

type stub struct {
	matcher  func(*http.Request) bool
	response MockResponse
}

// NewMockTransport creates a new MockTransport for testing.
func NewMockTransport() *MockTransport {
	return &MockTransport{}
}

// StubResponse answers every otherwise unmatched request with resp.
func (m *MockTransport) StubResponse(resp MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.defaultResp = &resp
	return m
}

// StubError fails every otherwise unmatched request with err.
func (m *MockTransport) StubError(err error) *MockTransport {
	return m.StubResponse(ErrorResponse(err))
}

// StubSequence answers successive unmatched requests with resps in order.
// The last response repeats once the sequence is used up.
func (m *MockTransport) StubSequence(resps ...MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sequence = append(m.sequence, resps...)
	return m
}

// StubPath answers requests for path with resp.
func (m *MockTransport) StubPath(path string, resp MockResponse) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.URL.Path == path
	}, resp)
}

// StubMethod answers requests with the given method with resp.
func (m *MockTransport) StubMethod(method string, resp MockResponse) *MockTransport {
	return m.StubFunc(func(req *http.Request) bool {
		return req.Method == method
	}, resp)
}

// StubFunc answers requests matching the predicate with resp.
func (m *MockTransport) StubFunc(matcher func(*http.Request) bool, resp MockResponse) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stubs = append(m.stubs, stub{matcher: matcher, response: resp})
	return m
}

// OnRequest sets a hook that is called for each request.
// Useful for assertions or capturing request details.
func (m *MockTransport) OnRequest(fn func(*http.Request)) *MockTransport {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requestHook = fn
	return m
}

// RoundTrip implements http.RoundTripper.
func (m *MockTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
		_ = req.Body.Close()
	}

	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.bodies = append(m.bodies, body)
	hook := m.requestHook
	resp, ok := m.match(req)
	m.mu.Unlock()

	if hook != nil {
		hook(req)
	}
	if !ok {
		return nil, errors.New("no stub found for request: " + req.Method + " " + req.URL.String())
	}

	ctx := req.Context()
	if resp.Hang {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if resp.Delay > 0 {
		timer := time.NewTimer(resp.Delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if resp.Err != nil {
		return nil, resp.Err
	}
	return resp.toHTTP(req), nil
}

// match picks the response for req. Callers hold m.mu.
func (m *MockTransport) match(req *http.Request) (MockResponse, bool) {
	for _, s := range m.stubs {
		if s.matcher(req) {
			return s.response, true
		}
	}
	if len(m.sequence) > 0 {
		resp := m.sequence[min(m.seqIndex, len(m.sequence)-1)]
		m.seqIndex++
		return resp, true
	}
	if m.defaultResp != nil {
		return *m.defaultResp, true
	}
	return MockResponse{}, false
}

func (r MockResponse) toHTTP(req *http.Request) *http.Response {
	header := r.Header.Clone()
	if header == nil {
		header = make(http.Header)
	}
	return &http.Response{
		Status:        fmt.Sprintf("%d %s", r.StatusCode, http.StatusText(r.StatusCode)),
		StatusCode:    r.StatusCode,
		Proto:         "HTTP/1.1",
		ProtoMajor:    1,
		ProtoMinor:    1,
		Header:        header,
		Body:          io.NopCloser(bytes.NewBufferString(r.Body)),
		ContentLength: int64(len(r.Body)),
		Request:       req,
	}
}

// Requests returns all requests made through this transport.
func (m *MockTransport) Requests() []*http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*http.Request{}, m.requests...)
}

// RequestCount returns the number of requests made.
func (m *MockTransport) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// LastRequest returns the most recent request, or nil if none.
func (m *MockTransport) LastRequest() *http.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.requests) == 0 {
		return nil
	}
	return m.requests[len(m.requests)-1]
}

// Bodies returns the request bodies in the order they were received. A
// request without a body is recorded as nil.
func (m *MockTransport) Bodies() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte{}, m.bodies...)
}

// LastBody returns the most recent request body, or nil if none.
func (m *MockTransport) LastBody() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.bodies) == 0 {
		return nil
	}
	return m.bodies[len(m.bodies)-1]
}

// Reset clears all recorded requests and stubs.
func (m *MockTransport) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = nil
	m.bodies = nil
	m.stubs = nil
	m.sequence = nil
	m.seqIndex = 0
	m.defaultResp = nil
	m.requestHook = nil
}

// WithMockTransport is a convenience function to create a client with a mock transport.
func WithMockTransport(mock *MockTransport) Option {
	return WithTransport(mock)
}
