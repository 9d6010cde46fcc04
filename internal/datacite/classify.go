package datacite

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"
)

// Decision is the outcome of classifying a failed request attempt
type Decision int

const (
	// DecisionRetry means the failure looks transient and the attempt may
	// be repeated
	DecisionRetry Decision = iota

	// DecisionFailPermanent means the registry rejected the request;
	// retrying wastes quota and cannot succeed
	DecisionFailPermanent

	// DecisionFailUnknown means the failure is unrecognized; unknown
	// failures are never retried blindly
	DecisionFailUnknown
)

// String returns a human-readable decision name
func (d Decision) String() string {
	switch d {
	case DecisionRetry:
		return "retry"
	case DecisionFailPermanent:
		return "fail-permanent"
	case DecisionFailUnknown:
		return "fail-unknown"
	default:
		return "unknown"
	}
}

// Retryable reports whether the decision allows another attempt
func (d Decision) Retryable() bool {
	return d == DecisionRetry
}

// connectionFailureVocabulary is the set of message fragments that identify
// a connection-level fault when the error type itself carries no signal.
var connectionFailureVocabulary = []string{
	"connection",
	"timeout",
	"timed out",
	"reset by peer",
}

// Classify decides whether a failed attempt is worth retrying. It is pure
// and independent of any HTTP library: callers hand it the observed status
// code (0 if no response was obtained) and the transport error (nil if a
// response was obtained).
//
// Rules, in order:
//  1. A raw transport/connection fault (net timeout, connection reset or
//     refused, deadline exceeded, truncated body, or a message matching the
//     connection-failure vocabulary) is retryable.
//  2. A 5xx status is retryable (server-side, likely transient).
//  3. A 4xx status is permanent (client error).
//  4. Anything else is unknown and is not retried.
func Classify(statusCode int, err error) Decision {
	if err != nil {
		return classifyError(err)
	}

	switch {
	case statusCode >= 500 && statusCode <= 599:
		return DecisionRetry
	case statusCode >= 400 && statusCode <= 499:
		return DecisionFailPermanent
	default:
		return DecisionFailUnknown
	}
}

// classifyError classifies a failure for which no HTTP response was obtained
func classifyError(err error) Decision {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return DecisionRetry
	}

	if errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return DecisionRetry
	}

	msg := strings.ToLower(err.Error())
	for _, fragment := range connectionFailureVocabulary {
		if strings.Contains(msg, fragment) {
			return DecisionRetry
		}
	}

	return DecisionFailUnknown
}
