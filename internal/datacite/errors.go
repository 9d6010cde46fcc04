package datacite

import (
	"errors"
	"fmt"
)

// FailureKind classifies a transport-level failure
type FailureKind string

const (
	// FailureTransient means retries were exhausted on a failure that was
	// classified as retryable (network fault or 5xx)
	FailureTransient FailureKind = "transient"

	// FailurePermanent means the registry rejected the request (4xx) and
	// retrying cannot succeed
	FailurePermanent FailureKind = "permanent"

	// FailureMalformed means the registry answered with a body that could
	// not be decoded into the expected document shape
	FailureMalformed FailureKind = "malformed_response"

	// FailureUnknown means the failure could not be classified; unknown
	// failures are terminal, never retried
	FailureUnknown FailureKind = "unknown"
)

// Sentinel errors for local precondition failures. These are raised before
// any network call is made.
var (
	// ErrInvalidPrefix means the prefix is not in the environment's allow-list
	ErrInvalidPrefix = errors.New("prefix not allowed in this environment")

	// ErrMissingLandingPage means the resource has no resolvable landing URL
	ErrMissingLandingPage = errors.New("resource has no landing page URL")

	// ErrMissingIdentifier means a metadata update was requested for a
	// resource that has never been registered
	ErrMissingIdentifier = errors.New("resource has no registered identifier")

	// ErrNotFound means a single-record lookup returned 404; absence is a
	// normal outcome, not a transport failure
	ErrNotFound = errors.New("identifier record not found")
)

// RequestError carries the diagnostics of a failed registry request: the
// observed status, a body excerpt and the request URL, enough for an
// operator to act without reproducing the call.
type RequestError struct {
	Kind       FailureKind
	StatusCode int
	URL        string
	Body       string
	Err        error
}

// Error implements the error interface
func (e *RequestError) Error() string {
	msg := fmt.Sprintf("registry request failed (%s)", e.Kind)
	if e.StatusCode != 0 {
		msg = fmt.Sprintf("%s: HTTP %d", msg, e.StatusCode)
	}
	if e.URL != "" {
		msg = fmt.Sprintf("%s for %s", msg, e.URL)
	}
	if e.Body != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Body)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap supports error unwrapping
func (e *RequestError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether err is a transport failure that exhausted its
// retries on a transient condition
func IsTransient(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == FailureTransient
}

// IsPermanent reports whether err is a transport failure the registry
// rejected outright
func IsPermanent(err error) bool {
	var reqErr *RequestError
	return errors.As(err, &reqErr) && reqErr.Kind == FailurePermanent
}
