package httpclient

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LogSink receives log events as a message plus structured fields. The
// fields map is freshly allocated per event and owned by the sink.
type LogSink func(msg string, fields map[string]any)

// callLogger emits the per-call log events. It is a no-op unless logging
// is enabled, and a panicking sink is contained so it never changes the
// outcome of the call.
type callLogger struct {
	enabled bool
	logger  zerolog.Logger
	sink    LogSink
}

func newCallLogger(cfg *internalConfig) callLogger {
	return callLogger{
		enabled: cfg.client.EnableLogging,
		logger:  cfg.Logger,
		sink:    cfg.LogSink,
	}
}

func (l callLogger) debug(msg string, fields map[string]any) {
	l.emit(zerolog.DebugLevel, msg, fields)
}

func (l callLogger) warn(msg string, fields map[string]any) {
	l.emit(zerolog.WarnLevel, msg, fields)
}

func (l callLogger) emit(level zerolog.Level, msg string, fields map[string]any) {
	if !l.enabled {
		return
	}
	defer func() {
		_ = recover()
	}()

	if l.sink != nil {
		l.sink(msg, fields)
		return
	}
	l.logger.WithLevel(level).Fields(fields).Msg(msg)
}

// attemptStarted logs just before an attempt is executed.
func (l callLogger) attemptStarted(method, url string, attempt, maxAttempts int) {
	if !l.enabled {
		return
	}
	if attempt > 0 {
		l.debug(fmt.Sprintf("retry attempt %d/%d for %s %s", attempt, maxAttempts-1, method, url), map[string]any{
			"method":  method,
			"url":     url,
			"attempt": attempt + 1,
		})
		return
	}
	l.debug(method+" "+url, map[string]any{
		"method":       method,
		"url":          url,
		"attempt":      attempt + 1,
		"max_attempts": maxAttempts,
	})
}

// succeeded logs the terminal success of a call.
func (l callLogger) succeeded(method, url string, attempts int, p *Payload) {
	if !l.enabled {
		return
	}
	l.debug(method+" "+url+" succeeded", map[string]any{
		"method":    method,
		"url":       url,
		"attempt":   attempts,
		"status":    p.StatusCode,
		"body_kind": p.Kind().String(),
	})
}

// failed logs the terminal failure of a call.
func (l callLogger) failed(method, url string, attempts int, herr *Error) {
	if !l.enabled {
		return
	}
	fields := map[string]any{
		"method":   method,
		"url":      url,
		"attempts": attempts,
		"kind":     herr.Kind.String(),
		"code":     herr.Code(),
		"error":    herr.Message,
	}
	if status := StatusCodeOf(herr); status != 0 {
		fields["status"] = status
	}
	l.warn(method+" "+url+" failed", fields)
}
