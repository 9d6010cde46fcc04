package datacite_test

import (
	"context"
	"errors"
	"io"
	"net"
	"syscall"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/openscholar/doisync/internal/datacite"
)

type timeoutError struct{}

func (timeoutError) Error() string { return "i/o timeout" }
func (timeoutError) Timeout() bool { return true }

// net.Error also requires Temporary, deprecated but still in the interface
func (timeoutError) Temporary() bool { return false }

func TestClassify(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		statusCode int
		err        error
		want       datacite.Decision
	}{
		{
			name: "connection reset is retried",
			err:  &net.OpError{Op: "read", Err: syscall.ECONNRESET},
			want: datacite.DecisionRetry,
		},
		{
			name: "connection refused is retried",
			err:  &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED},
			want: datacite.DecisionRetry,
		},
		{
			name: "net timeout is retried",
			err:  timeoutError{},
			want: datacite.DecisionRetry,
		},
		{
			name: "deadline exceeded is retried",
			err:  context.DeadlineExceeded,
			want: datacite.DecisionRetry,
		},
		{
			name: "truncated body is retried",
			err:  io.ErrUnexpectedEOF,
			want: datacite.DecisionRetry,
		},
		{
			name: "connection vocabulary in message is retried",
			err:  errors.New("proxy: connection closed unexpectedly"),
			want: datacite.DecisionRetry,
		},
		{
			name: "unrecognized error is not retried",
			err:  errors.New("json: cannot unmarshal string"),
			want: datacite.DecisionFailUnknown,
		},
		{
			name:       "503 is retried",
			statusCode: 503,
			want:       datacite.DecisionRetry,
		},
		{
			name:       "500 is retried",
			statusCode: 500,
			want:       datacite.DecisionRetry,
		},
		{
			name:       "404 fails permanently",
			statusCode: 404,
			want:       datacite.DecisionFailPermanent,
		},
		{
			name:       "422 fails permanently",
			statusCode: 422,
			want:       datacite.DecisionFailPermanent,
		},
		{
			name:       "redirect status is unknown",
			statusCode: 301,
			want:       datacite.DecisionFailUnknown,
		},
		{
			name: "no status and no error is unknown",
			want: datacite.DecisionFailUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := datacite.Classify(tt.statusCode, tt.err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestDecisionRetryable(t *testing.T) {
	t.Parallel()

	assert.True(t, datacite.DecisionRetry.Retryable())
	assert.False(t, datacite.DecisionFailPermanent.Retryable())

	// Unknown failures are terminal: retrying blindly on an unrecognized
	// condition risks duplicate registrations.
	assert.False(t, datacite.DecisionFailUnknown.Retryable())
}

func TestDecisionString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "retry", datacite.DecisionRetry.String())
	assert.Equal(t, "fail-permanent", datacite.DecisionFailPermanent.String())
	assert.Equal(t, "fail-unknown", datacite.DecisionFailUnknown.String())
}
