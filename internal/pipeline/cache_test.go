package pipeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stella-ai/tracegraph/pkg/schema"
)

func sampleGraph() *schema.GraphData {
	return &schema.GraphData{
		Nodes: []schema.Node{{ID: "start", Kind: schema.NodeKindStart}},
		Edges: []schema.Edge{{From: "start", To: "end", OriginalCount: 1}},
		Metadata: schema.GraphMetadata{
			GraphID:  "g1",
			Warnings: []string{"w"},
		},
	}
}

func TestCacheRoundTrip(t *testing.T) {
	c := NewCache(4, time.Minute)

	_, ok := c.Get("missing")
	assert.False(t, ok)

	c.Add("k", sampleGraph())
	got, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "g1", got.Metadata.GraphID)
	assert.Equal(t, 1, c.Len())
}

func TestCacheDeepCopiesBothWays(t *testing.T) {
	c := NewCache(4, time.Minute)

	original := sampleGraph()
	c.Add("k", original)
	// Mutating the stored value after Add must not affect the cache.
	original.Nodes[0].Label = "tampered"

	first, ok := c.Get("k")
	require.True(t, ok)
	assert.Empty(t, first.Nodes[0].Label)

	// Mutating a returned value must not affect later reads.
	first.Nodes[0].Label = "tampered"
	first.Metadata.Warnings[0] = "tampered"

	second, ok := c.Get("k")
	require.True(t, ok)
	assert.Empty(t, second.Nodes[0].Label)
	assert.Equal(t, []string{"w"}, second.Metadata.Warnings)
}

func TestCacheExpiry(t *testing.T) {
	c := NewCache(4, 30*time.Millisecond)

	c.Add("k", sampleGraph())
	_, ok := c.Get("k")
	require.True(t, ok)

	time.Sleep(60 * time.Millisecond)
	_, ok = c.Get("k")
	assert.False(t, ok)
}

func TestCacheEvictsAtCapacity(t *testing.T) {
	c := NewCache(2, time.Minute)

	c.Add("a", sampleGraph())
	c.Add("b", sampleGraph())
	c.Add("c", sampleGraph())

	assert.Equal(t, 2, c.Len())
	_, ok := c.Get("a")
	assert.False(t, ok, "oldest entry should have been evicted")
}

func TestCachePurge(t *testing.T) {
	c := NewCache(4, time.Minute)
	c.Add("a", sampleGraph())
	c.Add("b", sampleGraph())

	c.Purge()
	assert.Equal(t, 0, c.Len())
}

func TestCacheDefaultsOnBadArguments(t *testing.T) {
	c := NewCache(0, 0)
	c.Add("k", sampleGraph())
	_, ok := c.Get("k")
	assert.True(t, ok)
}
