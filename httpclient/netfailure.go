package httpclient

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Values of the error.type attribute recorded for failed attempts. An
// attempt whose context ended is labelled like the Kind it becomes; any
// other failure is a KindNetwork failure, labelled by its cause when the
// cause is recognised.
const (
	ErrorTypeTimeout           = "timeout"
	ErrorTypeAborted           = "aborted"
	ErrorTypeNetwork           = "network"
	ErrorTypeRateLimited       = "rate_limited"
	ErrorTypeConnectionRefused = "connection_refused"
	ErrorTypeConnectionReset   = "connection_reset"
	ErrorTypeHostUnreachable   = "host_unreachable"
	ErrorTypePermissionDenied  = "permission_denied"
	ErrorTypeDNSError          = "dns_error"
	ErrorTypeTLSError          = "tls_error"
	ErrorTypeEOF               = "eof"
)

// netFailure describes the cause of a KindNetwork failure.
type netFailure struct {
	errorType string

	// permanent failures cannot heal between attempts of one call.
	permanent bool
}

var (
	failTimeout     = netFailure{errorType: ErrorTypeTimeout}
	failAborted     = netFailure{errorType: ErrorTypeAborted}
	failRateLimited = netFailure{errorType: ErrorTypeRateLimited}
	failRefused     = netFailure{errorType: ErrorTypeConnectionRefused}
	failReset       = netFailure{errorType: ErrorTypeConnectionReset}
	failDNS         = netFailure{errorType: ErrorTypeDNSError}
	failNoSuchHost  = netFailure{errorType: ErrorTypeDNSError, permanent: true}
	failTLS         = netFailure{errorType: ErrorTypeTLSError, permanent: true}
	failUnreachable = netFailure{errorType: ErrorTypeHostUnreachable, permanent: true}
	failDenied      = netFailure{errorType: ErrorTypePermissionDenied, permanent: true}
	failEOF         = netFailure{errorType: ErrorTypeEOF}
	failOther       = netFailure{errorType: ErrorTypeNetwork}
)

// failureRules are tried in order and the first match wins. Timeouts come
// before DNS so a lookup that timed out is reported as a timeout.
var failureRules = []struct {
	match   func(error) bool
	failure netFailure
}{
	{func(err error) bool { return errors.Is(err, ErrRateLimited) }, failRateLimited},
	{func(err error) bool { return errors.Is(err, context.Canceled) }, failAborted},
	{isTimeout, failTimeout},
	{func(err error) bool {
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr) && dnsErr.IsNotFound
	}, failNoSuchHost},
	{func(err error) bool {
		var dnsErr *net.DNSError
		return errors.As(err, &dnsErr)
	}, failDNS},
	{isTLSFailure, failTLS},
	{func(err error) bool { return errors.Is(err, syscall.ECONNREFUSED) }, failRefused},
	{func(err error) bool { return errors.Is(err, syscall.ECONNRESET) }, failReset},
	{func(err error) bool {
		return errors.Is(err, syscall.EHOSTDOWN) || errors.Is(err, syscall.EHOSTUNREACH)
	}, failUnreachable},
	{func(err error) bool { return errors.Is(err, syscall.EACCES) }, failDenied},
	{func(err error) bool { return errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) }, failEOF},
}

// failureMessages is the fallback for causes wrapped with %v, which keep
// only their text.
var failureMessages = []struct {
	substr  string
	failure netFailure
}{
	{"x509:", failTLS},
	{"certificate", failTLS},
	{"tls:", failTLS},
	{"no such host", failNoSuchHost},
	{"no route to host", failUnreachable},
	{"permission denied", failDenied},
	{"connection refused", failRefused},
	{"connection reset", failReset},
	{"timeout", failTimeout},
}

// networkFailureOf categorises the cause of a network failure.
func networkFailureOf(err error) netFailure {
	if err == nil {
		return failOther
	}
	for _, rule := range failureRules {
		if rule.match(err) {
			return rule.failure
		}
	}
	msg := strings.ToLower(err.Error())
	for _, m := range failureMessages {
		if strings.Contains(msg, m.substr) {
			return m.failure
		}
	}
	return failOther
}

// attemptErrorType labels a failed round trip. Once the attempt context is
// done the label follows the source that ended it, the same way the
// executor decides between KindTimeout and KindAborted.
func attemptErrorType(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		if errors.Is(context.Cause(ctx), errAttemptTimeout) {
			return KindTimeout.String()
		}
		return KindAborted.String()
	}
	return networkFailureOf(err).errorType
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSFailure(err error) bool {
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return true
	}
	var recordErr tls.RecordHeaderError
	return errors.As(err, &recordErr)
}
