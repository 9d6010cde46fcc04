package datacite

import (
	"fmt"
	"net/url"
	"strings"
)

// Record is one identifier record as returned by the registry. The attribute
// mapping is opaque to the engine: it is forwarded as received and never
// mutated. Identity is the identifier string.
type Record struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// attribute keys the engine reads or sets on payloads
const (
	attrIdentifier = "doi"
	attrPrefix     = "prefix"
	attrURL        = "url"
	attrState      = "state"
	attrEvent      = "event"

	// eventPublish asserts published state; re-asserting it on update is
	// idempotent and intentional
	eventPublish = "publish"
)

// URL returns the record's landing URL attribute, if present
func (r *Record) URL() string {
	return r.stringAttribute(attrURL)
}

// State returns the record's lifecycle state attribute, if present
func (r *Record) State() string {
	return r.stringAttribute(attrState)
}

// Prefix returns the namespace prefix portion of the record identifier
func (r *Record) Prefix() string {
	prefix, _, _ := strings.Cut(r.ID, "/")
	return prefix
}

func (r *Record) stringAttribute(key string) string {
	if v, ok := r.Attributes[key].(string); ok {
		return v
	}
	return ""
}

// listDocument is the JSON:API envelope of a list response
type listDocument struct {
	Data  []Record  `json:"data"`
	Links pageLinks `json:"links"`
	Meta  pageMeta  `json:"meta"`
}

// pageLinks carries the server-issued next-page link; absent means no
// further pages
type pageLinks struct {
	Next string `json:"next,omitempty"`
}

// pageMeta carries list metadata
type pageMeta struct {
	Total int `json:"total"`
}

// recordDocument is the JSON:API envelope of a single-record response or
// mutation request
type recordDocument struct {
	Data recordData `json:"data"`
}

type recordData struct {
	ID         string         `json:"id,omitempty"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

// payloadType is the JSON:API resource type used on mutation payloads
const payloadType = "records"

// nextCursor extracts the cursor query parameter from a server-provided
// next-page link. Both the nested bracket form (page[cursor]) and the flat
// form (cursor) are accepted; the bracket form wins when both are present.
// An absent link or a link without a cursor parameter means no further
// pages. The engine never fabricates cursor values.
func nextCursor(nextLink string) (string, error) {
	if nextLink == "" {
		return "", nil
	}

	parsed, err := url.Parse(nextLink)
	if err != nil {
		return "", fmt.Errorf("failed to parse next-page link %q: %w", nextLink, err)
	}

	query := parsed.Query()
	if cursor := query.Get("page[cursor]"); cursor != "" {
		return cursor, nil
	}
	return query.Get("cursor"), nil
}
