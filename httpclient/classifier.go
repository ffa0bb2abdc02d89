package httpclient

import "net/http"

// Classifier decides whether a failed attempt should be retried.
// It is consulted only for failures; a nil *Error never reaches it.
type Classifier func(err *Error) bool

// DefaultClassifier retries transient failures and gives up on everything
// the caller must fix.
//
// Retries on:
//   - KindTimeout
//   - KindNetwork
//   - KindStatus with 429 Too Many Requests or any 5xx
//
// Does NOT retry on:
//   - KindAborted (the caller cancelled)
//   - KindStatus with any other status (the request is wrong)
func DefaultClassifier(err *Error) bool {
	if err == nil {
		return false
	}
	switch err.Kind {
	case KindTimeout, KindNetwork:
		return true
	case KindStatus:
		return isRetryableStatusCode(err.StatusCode)
	default:
		return false
	}
}

func isRetryableStatusCode(statusCode int) bool {
	return statusCode == http.StatusTooManyRequests || statusCode >= http.StatusInternalServerError
}

// StrictClassifier behaves like DefaultClassifier but gives up on network
// failures that cannot heal between attempts of one call, such as TLS
// failures, unknown hosts or unreachable hosts.
func StrictClassifier(err *Error) bool {
	if err != nil && err.Kind == KindNetwork && networkFailureOf(err.Cause).permanent {
		return false
	}
	return DefaultClassifier(err)
}

// NeverRetryClassifier returns a classifier that never retries.
// Use when you want to handle retries at a higher level.
func NeverRetryClassifier() Classifier {
	return func(*Error) bool { return false }
}

// StatusCodeClassifier returns a classifier that retries the given status
// codes only. Timeouts and network failures are still retried.
//
// Example:
//
//	// Retry on 502, 503, 504 but not 500 or 429
//	classifier := httpclient.StatusCodeClassifier(502, 503, 504)
func StatusCodeClassifier(codes ...int) Classifier {
	codeSet := make(map[int]bool, len(codes))
	for _, code := range codes {
		codeSet[code] = true
	}

	return func(err *Error) bool {
		if err == nil {
			return false
		}
		if err.Kind == KindStatus {
			return codeSet[err.StatusCode]
		}
		return DefaultClassifier(err)
	}
}
