package httpclient

import (
	"net/http"

	"github.com/google/uuid"
)

// RequestInterceptor modifies a request before it is sent. Interceptors
// run in the order they were added, on every attempt, after default and
// per-call headers are applied. An error fails the attempt as a network
// failure, which the classifier may retry.
type RequestInterceptor func(req *http.Request) error

// headerInterceptor sets name to the value produced for each attempt.
// A value the request already carries, from default or per-call headers,
// is left alone, so a single call can always override an interceptor.
func headerInterceptor(name string, value func() (string, error)) RequestInterceptor {
	return func(req *http.Request) error {
		if req.Header.Get(name) != "" {
			return nil
		}
		v, err := value()
		if err != nil {
			return err
		}
		req.Header.Set(name, v)
		return nil
	}
}

func fixed(v string) func() (string, error) {
	return func() (string, error) { return v, nil }
}

// AuthBearerInterceptor sends token as a Bearer credential.
func AuthBearerInterceptor(token string) RequestInterceptor {
	return headerInterceptor("Authorization", fixed("Bearer "+token))
}

// AuthBearerFuncInterceptor asks tokenFunc for a token on every attempt, so
// retries pick up refreshed tokens. A tokenFunc error fails the attempt.
func AuthBearerFuncInterceptor(tokenFunc func() (string, error)) RequestInterceptor {
	return headerInterceptor("Authorization", func() (string, error) {
		token, err := tokenFunc()
		if err != nil {
			return "", err
		}
		return "Bearer " + token, nil
	})
}

// APIKeyInterceptor sends apiKey in headerName.
func APIKeyInterceptor(headerName, apiKey string) RequestInterceptor {
	return headerInterceptor(headerName, fixed(apiKey))
}

// CorrelationIDInterceptor sets headerName to a fresh ID on every attempt.
// A nil idFunc generates random UUIDs.
func CorrelationIDInterceptor(headerName string, idFunc func() string) RequestInterceptor {
	if idFunc == nil {
		idFunc = uuid.NewString
	}
	return headerInterceptor(headerName, func() (string, error) { return idFunc(), nil })
}

// UserAgentInterceptor identifies the client as userAgent.
func UserAgentInterceptor(userAgent string) RequestInterceptor {
	return headerInterceptor("User-Agent", fixed(userAgent))
}
