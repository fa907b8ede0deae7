package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"repoindex/internal/store"
)

func TestCoordinate_RootGroup(t *testing.T) {
	cases := map[string]string{
		"org.apache.maven": "org",
		"g":                "g",
		"a.b":              "a",
	}
	for groupID, want := range cases {
		c := &Coordinate{GroupID: groupID}
		assert.Equal(t, want, c.RootGroup(), "group %q", groupID)
	}
}

func TestCoordinate_UInfo(t *testing.T) {
	c := &Coordinate{GroupID: "g", ArtifactID: "a", Version: "1"}
	assert.Equal(t, "g:a:1", c.UInfo())

	c.Classifier = "sources"
	assert.Equal(t, "g:a:1:sources", c.UInfo())

	c.Extension = "jar"
	assert.Equal(t, "g:a:1:sources:jar", c.UInfo())
}

func TestMinimalProvider_DecodeRoundTrip(t *testing.T) {
	p := NewMinimalProvider()

	doc := store.NewArtifactDocument("org.example:lib:2.0", nil)
	c, ok := p.Decode(doc)
	require.True(t, ok)
	assert.Equal(t, "org.example", c.GroupID)
	assert.Equal(t, "lib", c.ArtifactID)
	assert.Equal(t, "2.0", c.Version)
	assert.Equal(t, "org", c.RootGroup())
}

func TestMinimalProvider_DecodeRejectsTombstonesAndDescriptor(t *testing.T) {
	p := NewMinimalProvider()

	_, ok := p.Decode(store.NewTombstone("g:a:1"))
	assert.False(t, ok)

	_, ok = p.Decode(store.NewDescriptor("central"))
	assert.False(t, ok)

	_, ok = p.Decode(store.NewArtifactDocument("malformed", nil))
	assert.False(t, ok)
}

func TestMinimalProvider_EncodePopulatesFieldsAndID(t *testing.T) {
	p := NewMinimalProvider()
	c := &Coordinate{GroupID: "g", ArtifactID: "a", Version: "1"}

	doc := &store.Document{}
	p.Encode(c, doc)

	assert.Equal(t, "g:a:1", doc.ID)
	assert.Equal(t, "g:a:1", doc.UInfo())
	assert.Equal(t, "g", doc.Get(FieldGroup))
	assert.Equal(t, "a", doc.Get(FieldArtifact))
	assert.Equal(t, "1", doc.Get(FieldVersion))
}

func TestRegistry_DecodeUsesFirstMatchingProvider(t *testing.T) {
	r := DefaultRegistry()

	c, ok := r.Decode(store.NewArtifactDocument("g:a:1", nil))
	require.True(t, ok)
	assert.Equal(t, "g", c.GroupID)

	_, ok = r.Decode(store.NewTombstone("g:a:1"))
	assert.False(t, ok)
}

func TestRegistry_ProvidersReturnsStableOrder(t *testing.T) {
	a := NewMinimalProvider()
	r := NewRegistry(a)

	ps := r.Providers()
	require.Len(t, ps, 1)
	assert.Equal(t, "minimal", ps[0].Name())

	// Mutating the returned slice does not affect the registry.
	ps[0] = nil
	assert.NotNil(t, r.Providers()[0])
}
