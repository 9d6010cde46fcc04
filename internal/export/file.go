package export

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
)

// catalogEntry is one resource in a catalog file
type catalogEntry struct {
	ID         string         `json:"id"`
	Identifier string         `json:"identifier,omitempty"`
	URL        string         `json:"url,omitempty"`
	Attributes map[string]any `json:"attributes"`
}

// catalogDocument is the on-disk shape of a resource catalog
type catalogDocument struct {
	Resources []catalogEntry `json:"resources"`
}

// FileCatalog serves resources and their attribute mappings from a JSON
// catalog file. It backs the command-line registration and update flows,
// where the repository side is a prepared file rather than a live system.
type FileCatalog struct {
	entries map[string]catalogEntry
}

var (
	_ ResourceProvider = (*FileCatalog)(nil)
	_ Exporter         = (*FileCatalog)(nil)
)

// NewFileCatalog loads a catalog file. Duplicate resource IDs are rejected.
func NewFileCatalog(path string) (*FileCatalog, error) {
	// #nosec G304 -- path comes from an operator-supplied flag
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var doc catalogDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file %s: %w", path, err)
	}

	entries := make(map[string]catalogEntry, len(doc.Resources))
	for _, entry := range doc.Resources {
		if entry.ID == "" {
			return nil, fmt.Errorf("catalog file %s contains a resource without an id", path)
		}
		if _, exists := entries[entry.ID]; exists {
			return nil, fmt.Errorf("catalog file %s contains duplicate resource id %s", path, entry.ID)
		}
		entries[entry.ID] = entry
	}

	return &FileCatalog{entries: entries}, nil
}

// Resource implements ResourceProvider
func (c *FileCatalog) Resource(_ context.Context, id string) (*Resource, error) {
	entry, ok := c.entries[id]
	if !ok {
		return nil, fmt.Errorf("resource %s not found in catalog", id)
	}
	return &Resource{
		ID:             entry.ID,
		Identifier:     entry.Identifier,
		LandingPageURL: entry.URL,
	}, nil
}

// ExportAttributes implements Exporter. The returned mapping is a copy;
// callers may mutate it freely.
func (c *FileCatalog) ExportAttributes(_ context.Context, resourceID string) (map[string]any, error) {
	entry, ok := c.entries[resourceID]
	if !ok {
		return nil, fmt.Errorf("resource %s not found in catalog", resourceID)
	}

	attrs := make(map[string]any, len(entry.Attributes))
	for k, v := range entry.Attributes {
		attrs[k] = v
	}
	return attrs, nil
}
