// Package export defines the collaborator interfaces through which the
// engine obtains repository resources and their registry-ready attribute
// mappings. The attribute payload is produced elsewhere and treated as
// opaque here; the engine only forwards it.
package export

import "context"

// Resource is the minimal view of a repository resource the engine needs for
// registry operations.
type Resource struct {
	// ID is the repository-internal resource identifier
	ID string

	// Identifier is the already-minted registry identifier, empty if the
	// resource has never been registered
	Identifier string

	// LandingPageURL is the public, resolvable landing page for the
	// resource. Registration is refused locally when this is absent.
	LandingPageURL string
}

// ResourceProvider looks up repository resources by ID
type ResourceProvider interface {
	Resource(ctx context.Context, id string) (*Resource, error)
}

// Exporter turns a repository resource into the flat attribute mapping the
// registry payload carries
type Exporter interface {
	ExportAttributes(ctx context.Context, resourceID string) (map[string]any, error)
}
