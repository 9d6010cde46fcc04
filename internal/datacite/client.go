package datacite

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/go-logr/logr"

	"github.com/openscholar/doisync/internal/environment"
	"github.com/openscholar/doisync/internal/export"
)

// Client performs identifier registration and metadata updates against one
// registry environment. All preconditions are checked locally before any
// request is issued.
type Client struct {
	transport       *Transport
	resources       export.ResourceProvider
	exporter        export.Exporter
	testMode        bool
	allowedPrefixes []string
}

// NewClient creates a client bound to the resolved environment. The resource
// provider and exporter supply the repository side of each operation.
func NewClient(env environment.Context, resources export.ResourceProvider, exporter export.Exporter, opts ...TransportOption) *Client {
	prefixes := make([]string, len(env.AllowedPrefixes))
	copy(prefixes, env.AllowedPrefixes)

	return &Client{
		transport:       NewTransport(env, opts...),
		resources:       resources,
		exporter:        exporter,
		testMode:        env.TestMode,
		allowedPrefixes: prefixes,
	}
}

// IsTestMode reports whether the client targets the test environment
func (c *Client) IsTestMode() bool {
	return c.testMode
}

// AllowedPrefixes returns a copy of the environment's prefix allow-list
func (c *Client) AllowedPrefixes() []string {
	prefixes := make([]string, len(c.allowedPrefixes))
	copy(prefixes, c.allowedPrefixes)
	return prefixes
}

// Register mints an identifier under prefix for the given resource and
// publishes it. The prefix must be in the environment allow-list and the
// resource must expose a landing page; both are verified before the request
// is built.
func (c *Client) Register(ctx context.Context, resourceID, prefix string) (*Record, error) {
	logger := logr.FromContextOrDiscard(ctx)

	if !c.allowsPrefix(prefix) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidPrefix, prefix)
	}

	resource, err := c.resources.Resource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up resource %s: %w", resourceID, err)
	}
	if resource.LandingPageURL == "" {
		return nil, fmt.Errorf("%w: resource %s", ErrMissingLandingPage, resourceID)
	}

	attrs, err := c.exportAttributes(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	attrs[attrPrefix] = prefix
	attrs[attrURL] = resource.LandingPageURL
	attrs[attrEvent] = eventPublish

	doc, err := c.transport.Post(ctx, recordsPath, &recordDocument{
		Data: recordData{Type: payloadType, Attributes: attrs},
	})
	if err != nil {
		return nil, err
	}

	record := toRecord(doc)
	logger.Info("registered identifier", "resource", resourceID, "identifier", record.ID, "testMode", c.testMode)
	return record, nil
}

// UpdateMetadata pushes the resource's current attributes to its existing
// identifier record and re-asserts published state. The resource must
// already carry a registered identifier.
func (c *Client) UpdateMetadata(ctx context.Context, resourceID string) (*Record, error) {
	logger := logr.FromContextOrDiscard(ctx)

	resource, err := c.resources.Resource(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to look up resource %s: %w", resourceID, err)
	}
	if resource.Identifier == "" {
		return nil, fmt.Errorf("%w: resource %s", ErrMissingIdentifier, resourceID)
	}
	if resource.LandingPageURL == "" {
		return nil, fmt.Errorf("%w: resource %s", ErrMissingLandingPage, resourceID)
	}

	attrs, err := c.exportAttributes(ctx, resourceID)
	if err != nil {
		return nil, err
	}
	attrs[attrURL] = resource.LandingPageURL
	attrs[attrEvent] = eventPublish

	doc, err := c.transport.Put(ctx, recordPath(resource.Identifier), &recordDocument{
		Data: recordData{Type: payloadType, Attributes: attrs},
	})
	if err != nil {
		return nil, err
	}

	record := toRecord(doc)
	logger.Info("updated identifier metadata", "resource", resourceID, "identifier", record.ID, "testMode", c.testMode)
	return record, nil
}

// GetRecord fetches a single identifier record. A 404 is a normal outcome
// and maps to ErrNotFound.
func (c *Client) GetRecord(ctx context.Context, identifier string) (*Record, error) {
	doc, err := c.transport.Get(ctx, recordPath(identifier))
	if err != nil {
		var reqErr *RequestError
		if errors.As(err, &reqErr) && reqErr.StatusCode == 404 {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, identifier)
		}
		return nil, err
	}
	return toRecord(doc), nil
}

// exportAttributes fetches the registry-ready attribute mapping and strips
// the identifier key: the registry assigns identifiers on create and keys
// updates by path, never by payload.
func (c *Client) exportAttributes(ctx context.Context, resourceID string) (map[string]any, error) {
	attrs, err := c.exporter.ExportAttributes(ctx, resourceID)
	if err != nil {
		return nil, fmt.Errorf("failed to export attributes for resource %s: %w", resourceID, err)
	}
	if attrs == nil {
		attrs = map[string]any{}
	}
	delete(attrs, attrIdentifier)
	return attrs, nil
}

func (c *Client) allowsPrefix(prefix string) bool {
	for _, allowed := range c.allowedPrefixes {
		if allowed == prefix {
			return true
		}
	}
	return false
}

// recordPath builds the escaped single-record path. Identifiers contain a
// slash, so the whole identifier is path-escaped as one segment.
func recordPath(identifier string) string {
	return recordsPath + "/" + url.PathEscape(identifier)
}

func toRecord(doc *recordDocument) *Record {
	return &Record{
		ID:         doc.Data.ID,
		Type:       doc.Data.Type,
		Attributes: doc.Data.Attributes,
	}
}
