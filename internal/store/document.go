// Package store adapts the underlying search engine (bleve) and the
// index root directory for the index context: documents, the write path,
// refreshable searcher snapshots, cross-process locking, and the
// persisted timestamp marker.
package store

import (
	"strings"
)

// Well-known document fields.
const (
	// FieldUInfo holds the unique coordinate key of a live artifact document.
	FieldUInfo = "uinfo"

	// FieldDeleted holds the coordinate key recorded by a tombstone.
	// Tombstones carry no uinfo field themselves.
	FieldDeleted = "deleted"

	// FieldDescriptor marks the descriptor sentinel document.
	FieldDescriptor = "descriptor"

	// FieldInfo holds the descriptor payload: formatVersion|repositoryId.
	FieldInfo = "info"
)

const (
	// DescriptorID is the document id of the descriptor sentinel.
	DescriptorID = "@descriptor"

	// DescriptorContents is the marker value stored in FieldDescriptor.
	DescriptorContents = "RepoIndex"

	// FormatVersion is the index format version written into descriptors.
	FormatVersion = "1.0"

	// TombstonePrefix prefixes tombstone document ids so a later re-add of
	// the same coordinate does not overwrite the deletion record.
	TombstonePrefix = "deleted:"

	// infoSeparator separates descriptor payload parts.
	infoSeparator = "|"
)

// Document is one engine document: a live artifact, a tombstone, or the
// descriptor. All field values are exact-match keyword terms.
type Document struct {
	ID     string
	Fields map[string]string
}

// Filter decides whether a source document takes part in a merge.
type Filter func(*Document) bool

// NewArtifactDocument builds a live artifact document keyed by uinfo.
// Extra fields (schema provider output) may be nil.
func NewArtifactDocument(uinfo string, fields map[string]string) *Document {
	f := make(map[string]string, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f[FieldUInfo] = uinfo
	return &Document{ID: uinfo, Fields: f}
}

// NewTombstone builds a deletion record for the given coordinate key.
func NewTombstone(uinfo string) *Document {
	return &Document{
		ID:     TombstonePrefix + uinfo,
		Fields: map[string]string{FieldDeleted: uinfo},
	}
}

// NewDescriptor builds the descriptor sentinel for the given repository id.
func NewDescriptor(repositoryID string) *Document {
	return &Document{
		ID: DescriptorID,
		Fields: map[string]string{
			FieldDescriptor: DescriptorContents,
			FieldInfo:       FormatVersion + infoSeparator + repositoryID,
		},
	}
}

// UInfo returns the coordinate key of a live artifact document, or "".
func (d *Document) UInfo() string {
	return d.Fields[FieldUInfo]
}

// DeletedKey returns the coordinate key recorded by a tombstone, or "".
func (d *Document) DeletedKey() string {
	return d.Fields[FieldDeleted]
}

// IsTombstone reports whether this document records a deletion.
func (d *Document) IsTombstone() bool {
	return d.UInfo() == "" && d.DeletedKey() != ""
}

// IsDescriptor reports whether this is the descriptor sentinel.
func (d *Document) IsDescriptor() bool {
	return d.Fields[FieldDescriptor] == DescriptorContents
}

// DescriptorRepositoryID parses the owning repository id out of a
// descriptor document.
func (d *Document) DescriptorRepositoryID() (string, bool) {
	info := d.Fields[FieldInfo]
	if info == "" {
		return "", false
	}
	parts := strings.SplitN(info, infoSeparator, 2)
	if len(parts) != 2 {
		return "", false
	}
	return parts[1], true
}

// Get returns a stored field value, or "".
func (d *Document) Get(field string) string {
	return d.Fields[field]
}

// indexFields returns the data handed to the engine for indexing.
func (d *Document) indexFields() map[string]string {
	return d.Fields
}
