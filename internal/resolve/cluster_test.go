package resolve

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph_ComponentsAreTransitive(t *testing.T) {
	g := NewGraph()
	g.AddMention("m-a")
	g.AddMention("m-b")
	g.AddMention("m-c")
	g.AddEdge("m-a", "m-b", 0.95)
	g.AddEdge("m-b", "m-c", 0.93)

	comps := g.Components()
	require.Len(t, comps, 1)
	assert.Equal(t, []string{"m-a", "m-b", "m-c"}, comps[0].MentionIDs)
	assert.Empty(t, comps[0].EntityIDs)
}

func TestGraph_SeparateComponents(t *testing.T) {
	g := NewGraph()
	g.AddMention("m-a")
	g.AddMention("m-b")
	g.AddMention("m-z")
	g.AddEntity("e-1")
	g.AddEdge("m-a", "e-1", 0.91)
	g.AddEdge("m-b", "e-1", 0.88)

	comps := g.Components()
	require.Len(t, comps, 2)
	assert.Equal(t, []string{"m-a", "m-b"}, comps[0].MentionIDs)
	assert.Equal(t, []string{"e-1"}, comps[0].EntityIDs)
	assert.Equal(t, []string{"m-z"}, comps[1].MentionIDs)
}

func TestComponent_Ambiguous(t *testing.T) {
	g := NewGraph()
	g.AddMention("m-a")
	g.AddEntity("e-1")
	g.AddEntity("e-2")
	g.AddEdge("m-a", "e-1", 0.94)
	g.AddEdge("m-a", "e-2", 0.92)

	comps := g.Components()
	require.Len(t, comps, 1)
	assert.True(t, comps[0].Ambiguous())
}

func TestComponent_BestScore(t *testing.T) {
	g := NewGraph()
	g.AddMention("m-a")
	g.AddEntity("e-1")
	g.AddEdge("m-a", "e-1", 0.72)
	g.AddEdge("m-a", "e-1", 0.84)

	comps := g.Components()
	require.Len(t, comps, 1)
	assert.Equal(t, 0.84, comps[0].BestScore("m-a"))
	assert.Equal(t, 0.0, comps[0].BestScore("absent"))
}

func TestComponent_MatchClosure(t *testing.T) {
	g := NewGraph()
	g.AddMention("m-a")
	g.AddMention("m-b")
	g.AddMention("m-c")
	g.AddEntity("e-1")
	g.AddEdge("m-a", "e-1", 0.95)
	g.AddEdge("m-a", "m-b", 0.92)
	// m-c is connected, but only through a review-band edge.
	g.AddEdge("m-b", "m-c", 0.78)

	comps := g.Components()
	require.Len(t, comps, 1)

	in := comps[0].MatchClosure([]string{"e-1"}, 0.90)
	assert.True(t, in["m-a"])
	assert.True(t, in["m-b"])
	assert.False(t, in["m-c"])
}

func TestGraph_DeterministicOrder(t *testing.T) {
	build := func() []Component {
		g := NewGraph()
		g.AddMention("m-z")
		g.AddMention("m-a")
		g.AddEntity("e-9")
		g.AddEdge("m-z", "e-9", 0.91)
		return g.Components()
	}
	first := build()
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, build())
	}
}
