package schema

import (
	"strings"

	"repoindex/internal/store"
)

// Field names contributed by the minimal provider.
const (
	FieldGroup    = "group"
	FieldArtifact = "artifact"
	FieldVersion  = "version"
)

// MinimalProvider encodes the core coordinate fields and decodes them
// from the uinfo key: group:artifact:version[:classifier[:extension]].
type MinimalProvider struct{}

// NewMinimalProvider returns the minimal coordinate provider.
func NewMinimalProvider() *MinimalProvider {
	return &MinimalProvider{}
}

// Name implements Provider.
func (p *MinimalProvider) Name() string {
	return "minimal"
}

// Decode implements Provider.
func (p *MinimalProvider) Decode(doc *store.Document) (*Coordinate, bool) {
	uinfo := doc.UInfo()
	if uinfo == "" {
		return nil, false
	}

	parts := strings.Split(uinfo, ":")
	if len(parts) < 3 {
		return nil, false
	}

	c := &Coordinate{
		GroupID:    parts[0],
		ArtifactID: parts[1],
		Version:    parts[2],
	}
	if len(parts) > 3 {
		c.Classifier = parts[3]
	}
	if len(parts) > 4 {
		c.Extension = parts[4]
	}
	return c, true
}

// Encode implements Provider.
func (p *MinimalProvider) Encode(c *Coordinate, doc *store.Document) {
	if doc.Fields == nil {
		doc.Fields = make(map[string]string)
	}
	doc.Fields[store.FieldUInfo] = c.UInfo()
	doc.Fields[FieldGroup] = c.GroupID
	doc.Fields[FieldArtifact] = c.ArtifactID
	doc.Fields[FieldVersion] = c.Version
	if doc.ID == "" {
		doc.ID = c.UInfo()
	}
}
