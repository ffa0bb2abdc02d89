package httpclient

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type logEvent struct {
	msg    string
	fields map[string]any
}

type sinkRecorder struct {
	mu     sync.Mutex
	events []logEvent
}

func (s *sinkRecorder) sink(msg string, fields map[string]any) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, logEvent{msg: msg, fields: fields})
}

func (s *sinkRecorder) recorded() []logEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]logEvent{}, s.events...)
}

func TestCallLogger_RetriedCall(t *testing.T) {
	mock := NewMockTransport().StubSequence(
		TextResponse(500, "down"),
		JSONResponse(200, `{"ok":true}`),
	)
	rec := &sinkRecorder{}
	client := New(
		WithMockTransport(mock),
		WithSleeper((&sleepRecorder{}).sleep),
		WithDefaultRetries(2),
		WithLogging(true),
		WithLogSink(rec.sink),
	)

	_, err := client.Get(context.Background(), "http://svc.test/users")
	require.NoError(t, err)

	events := rec.recorded()
	require.Len(t, events, 3)

	assert.Equal(t, "GET http://svc.test/users", events[0].msg)
	assert.Equal(t, map[string]any{
		"method":       "GET",
		"url":          "http://svc.test/users",
		"attempt":      1,
		"max_attempts": 3,
	}, events[0].fields)

	assert.Equal(t, "retry attempt 1/2 for GET http://svc.test/users", events[1].msg)
	assert.Equal(t, 2, events[1].fields["attempt"])

	assert.Equal(t, "GET http://svc.test/users succeeded", events[2].msg)
	assert.Equal(t, 200, events[2].fields["status"])
	assert.Equal(t, 2, events[2].fields["attempt"])
	assert.Equal(t, "structured", events[2].fields["body_kind"])
}

func TestCallLogger_FailedCall(t *testing.T) {
	mock := NewMockTransport().StubResponse(TextResponse(404, "missing"))
	rec := &sinkRecorder{}
	client := New(
		WithMockTransport(mock),
		WithLogging(true),
		WithLogSink(rec.sink),
	)

	_, err := client.Delete(context.Background(), "http://svc.test/users/9")
	require.Error(t, err)

	events := rec.recorded()
	require.Len(t, events, 2)

	last := events[1]
	assert.Equal(t, "DELETE http://svc.test/users/9 failed", last.msg)
	assert.Equal(t, "status", last.fields["kind"])
	assert.Equal(t, "HTTP_STATUS_ERROR", last.fields["code"])
	assert.Equal(t, 404, last.fields["status"])
	assert.Equal(t, 1, last.fields["attempts"])
}

func TestCallLogger_Disabled(t *testing.T) {
	mock := NewMockTransport().StubResponse(JSONResponse(200, `{}`))
	rec := &sinkRecorder{}
	client := New(
		WithMockTransport(mock),
		WithLogSink(rec.sink),
	)

	_, err := client.Get(context.Background(), "http://svc.test/users")

	require.NoError(t, err)
	assert.Empty(t, rec.recorded())
}

func TestCallLogger_PanickingSink(t *testing.T) {
	mock := NewMockTransport().StubResponse(JSONResponse(200, `{"ok":true}`))
	client := New(
		WithMockTransport(mock),
		WithLogging(true),
		WithLogSink(func(string, map[string]any) {
			panic("sink exploded")
		}),
	)

	var (
		payload *Payload
		err     error
	)
	require.NotPanics(t, func() {
		payload, err = client.Get(context.Background(), "http://svc.test/users")
	})
	require.NoError(t, err)
	assert.True(t, payload.IsStructured())
}

func TestCallLogger_Zerolog(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.DebugLevel)

	mock := NewMockTransport().StubResponse(TextResponse(400, "bad"))
	client := New(
		WithMockTransport(mock),
		WithLogging(true),
		WithLogger(logger),
	)

	_, err := client.Get(context.Background(), "http://svc.test/users")
	require.Error(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"level":"debug"`)
	assert.Contains(t, lines[0], `"message":"GET http://svc.test/users"`)
	assert.Contains(t, lines[1], `"level":"warn"`)
	assert.Contains(t, lines[1], `"code":"HTTP_STATUS_ERROR"`)
}

func TestCallLogger_ZerologLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf).Level(zerolog.WarnLevel)

	mock := NewMockTransport().StubResponse(JSONResponse(200, `{}`))
	client := New(
		WithMockTransport(mock),
		WithLogging(true),
		WithLogger(logger),
	)

	_, err := client.Get(context.Background(), "http://svc.test/users")

	require.NoError(t, err)
	assert.Empty(t, buf.String())
}
