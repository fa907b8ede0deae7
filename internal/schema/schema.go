// Package schema defines the pluggable field-schema providers that turn
// component coordinates into index documents and back. The index core
// consumes providers through this narrow contract and never inspects
// their internals.
package schema

import (
	"strings"

	"repoindex/internal/store"
)

// Coordinate identifies one component: group, artifact, version, and
// optional classifier/extension.
type Coordinate struct {
	GroupID    string
	ArtifactID string
	Version    string
	Classifier string
	Extension  string
}

// RootGroup returns the top-level namespace segment of the group id.
func (c *Coordinate) RootGroup() string {
	if i := strings.Index(c.GroupID, "."); i >= 0 {
		return c.GroupID[:i]
	}
	return c.GroupID
}

// UInfo returns the unique coordinate key.
func (c *Coordinate) UInfo() string {
	parts := []string{c.GroupID, c.ArtifactID, c.Version}
	if c.Classifier != "" {
		parts = append(parts, c.Classifier)
		if c.Extension != "" {
			parts = append(parts, c.Extension)
		}
	}
	return strings.Join(parts, ":")
}

// Provider contributes fields for one aspect of a component and decodes
// them back into coordinate info.
type Provider interface {
	// Name identifies the provider.
	Name() string

	// Decode extracts coordinate info from a document, reporting whether
	// the document carries this provider's fields.
	Decode(doc *store.Document) (*Coordinate, bool)

	// Encode writes this provider's fields into a document.
	Encode(c *Coordinate, doc *store.Document)
}

// Registry is a fixed, ordered set of providers. The order is stable and
// never mutated after construction.
type Registry struct {
	providers []Provider
}

// NewRegistry builds a registry over the given providers, in order.
func NewRegistry(providers ...Provider) *Registry {
	ps := make([]Provider, len(providers))
	copy(ps, providers)
	return &Registry{providers: ps}
}

// DefaultRegistry returns a registry with the minimal provider.
func DefaultRegistry() *Registry {
	return NewRegistry(NewMinimalProvider())
}

// Providers returns the ordered provider list.
func (r *Registry) Providers() []Provider {
	ps := make([]Provider, len(r.providers))
	copy(ps, r.providers)
	return ps
}

// Decode returns the first provider's successful decode of the document.
func (r *Registry) Decode(doc *store.Document) (*Coordinate, bool) {
	for _, p := range r.providers {
		if c, ok := p.Decode(doc); ok {
			return c, true
		}
	}
	return nil, false
}

// Encode runs every provider's encode over the document, in order.
func (r *Registry) Encode(c *Coordinate, doc *store.Document) {
	for _, p := range r.providers {
		p.Encode(c, doc)
	}
}
