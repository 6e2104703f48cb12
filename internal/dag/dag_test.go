package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGraph(t *testing.T) {
	t.Run("add node is idempotent", func(t *testing.T) {
		g := New()
		g.AddNode("weight_type")
		g.AddNode("weight_type")
		deps, err := g.Dependencies("weight_type")
		require.NoError(t, err)
		assert.Empty(t, deps)
	})

	t.Run("edges record dependencies in sorted order", func(t *testing.T) {
		g := New()
		g.AddNode("quant_mode")
		g.AddNode("weight_type")
		g.AddNode("activation_type")
		require.NoError(t, g.AddEdge("weight_type", "activation_type"))
		require.NoError(t, g.AddEdge("quant_mode", "activation_type"))

		deps, err := g.Dependencies("activation_type")
		require.NoError(t, err)
		assert.Equal(t, []string{"quant_mode", "weight_type"}, deps)
	})

	t.Run("self-edge is rejected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		err := g.AddEdge("a", "a")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "conditional on itself")
	})

	t.Run("edge to missing node is an error", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		assert.Error(t, g.AddEdge("a", "missing"))
		assert.Error(t, g.AddEdge("missing", "a"))
	})

	t.Run("dependencies of missing node is an error", func(t *testing.T) {
		g := New()
		_, err := g.Dependencies("missing")
		assert.Error(t, err)
	})
}

func TestDetectCycles(t *testing.T) {
	t.Run("acyclic graph passes", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		g.AddNode("c")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "c"))
		require.NoError(t, g.AddEdge("a", "c"))

		assert.NoError(t, g.DetectCycles())
	})

	t.Run("two-node cycle is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("b")
		require.NoError(t, g.AddEdge("a", "b"))
		require.NoError(t, g.AddEdge("b", "a"))

		err := g.DetectCycles()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cycle detected")
	})

	t.Run("cycle in a disconnected component is detected", func(t *testing.T) {
		g := New()
		g.AddNode("a")
		g.AddNode("x")
		g.AddNode("y")
		g.AddNode("z")
		require.NoError(t, g.AddEdge("x", "y"))
		require.NoError(t, g.AddEdge("y", "z"))
		require.NoError(t, g.AddEdge("z", "x"))

		assert.Error(t, g.DetectCycles())
	})
}
