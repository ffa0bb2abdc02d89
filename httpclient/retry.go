package httpclient

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.opentelemetry.io/otel/trace"
)

// retrier runs the attempts of one logical call strictly one after the
// other, deciding after each failure whether another attempt is worth it.
type retrier struct {
	exec       *executor
	classifier Classifier
	newBackOff func() backoff.BackOff
	sleep      Sleeper
	log        callLogger
	cfg        *internalConfig
}

// run executes a with up to retries extra attempts.
//
// A failure the classifier rejects is returned unchanged. A failure it
// accepts is retried after the next backoff interval, and once the budget
// is spent it is returned wrapped in a KindRetriesExhausted error. With
// retries == 0 a retryable failure is still wrapped.
//
// Cancelling ctx during the backoff wait ends the call with KindAborted.
func (r *retrier) run(ctx context.Context, a attempt, retries int) (*Payload, *Error) {
	start := time.Now()
	span := trace.SpanFromContext(ctx)
	attrs := r.cfg.baseAttributes()

	maxAttempts := retries + 1
	b := r.newBackOff()
	b.Reset()

	var (
		attempts int
		last     *Error
	)
	finish := func(p *Payload, herr *Error) (*Payload, *Error) {
		recordCallOutcome(span, attempts, herr)
		r.cfg.Metrics.recordCall(ctx, attrs, time.Since(start), herr)
		if herr != nil {
			r.log.failed(a.method, a.url, attempts, herr)
		} else {
			r.log.succeeded(a.method, a.url, attempts, p)
		}
		return p, herr
	}

	for i := 0; i < maxAttempts; i++ {
		r.log.attemptStarted(a.method, a.url, i, maxAttempts)

		attempts++
		payload, herr := r.exec.execute(ctx, a)
		if herr == nil {
			return finish(payload, nil)
		}
		last = herr

		if !r.classifier(herr) {
			return finish(nil, herr)
		}
		if i == maxAttempts-1 {
			break
		}

		delay := b.NextBackOff()
		if delay == backoff.Stop {
			break
		}

		recordRetryEvent(span, i+1, herr, delay)
		r.cfg.Metrics.recordRetryAttempt(ctx, attrs, i+1)

		if err := r.sleep(ctx, delay); err != nil {
			return finish(nil, NewAbortedError(a.url))
		}
	}

	r.cfg.Metrics.recordRetryExhausted(ctx, attrs)
	return finish(nil, NewRetriesExhaustedError(a.url, attempts, last))
}
