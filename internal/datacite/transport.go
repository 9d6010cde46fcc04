package datacite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/go-logr/logr"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/openscholar/doisync/internal/environment"
)

const (
	// mutationTimeout bounds registration and update requests
	mutationTimeout = 30 * time.Second

	// lookupTimeout bounds read-only requests
	lookupTimeout = 10 * time.Second

	// mutationRetryDelay is the fixed wait between mutation and single-record
	// lookup attempts
	mutationRetryDelay = 100 * time.Millisecond

	// listRetryDelay is the fixed wait between bulk list attempts
	listRetryDelay = 500 * time.Millisecond

	// maxAttempts bounds every request, retries included
	maxAttempts = 3

	// pageInterval is the pause inserted between consecutive page fetches
	pageInterval = 200 * time.Millisecond

	// contentType is the JSON:API media type the registry speaks
	contentType = "application/vnd.api+json"

	// bodyExcerptLimit caps how much of an error response body is kept for
	// diagnostics
	bodyExcerptLimit = 512
)

// Transport issues authenticated requests against one registry environment
// and owns the retry and pacing policy. All methods honor context
// cancellation.
type Transport struct {
	endpoint    string
	clientID    string
	credentials environment.Credentials
	client      *http.Client
	tracer      trace.Tracer
}

// TransportOption configures a Transport
type TransportOption func(*Transport)

// WithHTTPClient overrides the underlying HTTP client. Timeouts are applied
// per request via context, so the client itself should not set one.
func WithHTTPClient(client *http.Client) TransportOption {
	return func(t *Transport) {
		t.client = client
	}
}

// WithTracer enables span emission for registry requests
func WithTracer(tracer trace.Tracer) TransportOption {
	return func(t *Transport) {
		t.tracer = tracer
	}
}

// NewTransport creates a transport bound to the endpoint and credentials of
// the resolved environment.
func NewTransport(env environment.Context, opts ...TransportOption) *Transport {
	t := &Transport{
		endpoint:    strings.TrimSuffix(env.Endpoint, "/"),
		clientID:    env.ClientID,
		credentials: env.Credentials,
		client:      &http.Client{},
		tracer:      noop.NewTracerProvider().Tracer("doisync"),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// GetList fetches one page of records scoped to the environment's client
// account. List requests use the longer retry delay to stay polite during
// bulk operations.
func (t *Transport) GetList(ctx context.Context, path string, query url.Values) (*listDocument, error) {
	if query == nil {
		query = url.Values{}
	}
	if t.clientID != "" {
		query.Set("client-id", t.clientID)
	}

	body, err := t.do(ctx, http.MethodGet, path, query, nil, lookupTimeout, listRetryDelay)
	if err != nil {
		return nil, err
	}

	var doc listDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &RequestError{
			Kind: FailureMalformed,
			URL:  t.requestURL(path, query),
			Err:  err,
		}
	}
	return &doc, nil
}

// Get fetches a single record document
func (t *Transport) Get(ctx context.Context, path string) (*recordDocument, error) {
	body, err := t.do(ctx, http.MethodGet, path, nil, nil, lookupTimeout, mutationRetryDelay)
	if err != nil {
		return nil, err
	}
	return t.decodeRecord(body, path)
}

// Post creates a record
func (t *Transport) Post(ctx context.Context, path string, doc *recordDocument) (*recordDocument, error) {
	return t.mutate(ctx, http.MethodPost, path, doc)
}

// Put updates a record
func (t *Transport) Put(ctx context.Context, path string, doc *recordDocument) (*recordDocument, error) {
	return t.mutate(ctx, http.MethodPut, path, doc)
}

func (t *Transport) mutate(ctx context.Context, method, path string, doc *recordDocument) (*recordDocument, error) {
	payload, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request payload: %w", err)
	}

	body, err := t.do(ctx, method, path, nil, payload, mutationTimeout, mutationRetryDelay)
	if err != nil {
		return nil, err
	}
	return t.decodeRecord(body, path)
}

// Pace blocks for the inter-page interval or until the context is done,
// whichever comes first.
func (t *Transport) Pace(ctx context.Context) error {
	timer := time.NewTimer(pageInterval)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// do runs one request under the retry policy: up to maxAttempts tries with a
// fixed delay between them, retrying only failures the classifier marks
// retryable. It returns the response body of the first successful attempt.
func (t *Transport) do(ctx context.Context, method, path string, query url.Values, payload []byte, timeout, retryDelay time.Duration) ([]byte, error) {
	logger := logr.FromContextOrDiscard(ctx)
	requestURL := t.requestURL(path, query)

	ctx, span := t.tracer.Start(ctx, "registry.request", trace.WithAttributes(
		attribute.String("http.method", method),
		attribute.String("url.path", path),
	))
	defer span.End()

	attempt := 0
	operation := func() ([]byte, error) {
		attempt++

		body, statusCode, err := t.attempt(ctx, method, requestURL, payload, timeout)
		if err == nil && statusCode >= 200 && statusCode <= 299 {
			return body, nil
		}

		decision := Classify(statusCode, err)
		reqErr := &RequestError{
			Kind:       failureKind(decision),
			StatusCode: statusCode,
			URL:        requestURL,
			Body:       excerpt(body),
			Err:        err,
		}

		if !decision.Retryable() {
			return nil, backoff.Permanent(reqErr)
		}
		logger.V(1).Info("retrying registry request",
			"method", method,
			"url", requestURL,
			"status", statusCode,
			"attempt", attempt,
			"decision", decision.String())
		return nil, reqErr
	}

	body, err := backoff.Retry(ctx, operation,
		backoff.WithBackOff(backoff.NewConstantBackOff(retryDelay)),
		backoff.WithMaxTries(maxAttempts),
	)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	return body, nil
}

// attempt issues a single HTTP request with the per-request timeout applied
func (t *Transport) attempt(ctx context.Context, method, requestURL string, payload []byte, timeout time.Duration) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var reqBody io.Reader
	if payload != nil {
		reqBody = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, requestURL, reqBody)
	if err != nil {
		return nil, 0, err
	}

	req.SetBasicAuth(t.credentials.Username, t.credentials.Password)
	req.Header.Set("Accept", contentType)
	if payload != nil {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	return body, resp.StatusCode, nil
}

func (t *Transport) decodeRecord(body []byte, path string) (*recordDocument, error) {
	var doc recordDocument
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &RequestError{
			Kind: FailureMalformed,
			URL:  t.requestURL(path, nil),
			Err:  err,
		}
	}
	return &doc, nil
}

func (t *Transport) requestURL(path string, query url.Values) string {
	requestURL := t.endpoint + path
	if len(query) > 0 {
		requestURL += "?" + query.Encode()
	}
	return requestURL
}

func failureKind(d Decision) FailureKind {
	switch d {
	case DecisionRetry:
		return FailureTransient
	case DecisionFailPermanent:
		return FailurePermanent
	default:
		return FailureUnknown
	}
}

func excerpt(body []byte) string {
	if len(body) > bodyExcerptLimit {
		body = body[:bodyExcerptLimit]
	}
	return string(body)
}
