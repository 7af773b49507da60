package router

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReverseDijkstraDistances(t *testing.T) {
	// A -> W -> U chain plus a direct A -> U pool.
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 25e9, 3000),
		mockPool(11, mintA, mintW, 5e9, 5e9, 3000),
		mockPool(12, mintW, mintU, 5e9, 25e9, 3000),
	)
	view := g.View()
	idA, _ := g.Registry().GetID(mintA)
	idU, _ := g.Registry().GetID(mintU)
	idW, _ := g.Registry().GetID(mintW)

	dist := reverseDijkstra(view, idU, 0)

	assert.Equal(t, 0.0, dist[idU])
	assert.False(t, math.IsInf(dist[idA], 1), "A reaches U")
	assert.False(t, math.IsInf(dist[idW], 1), "W reaches U")

	// Edge A->U has spot ~4.985, so -log is negative and clamps to 0.
	assert.Equal(t, 0.0, dist[idA])
	assert.Equal(t, 0.0, dist[idW])
}

func TestReverseDijkstraClampKeepsWeightsNonNegative(t *testing.T) {
	// A losing edge (spot < 1) yields a positive clamped weight.
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 25e9, 5e9, 3000), // spot 0.1994
	)
	view := g.View()
	idA, _ := g.Registry().GetID(mintA)
	idU, _ := g.Registry().GetID(mintU)

	dist := reverseDijkstra(view, idU, 0)
	expected := -math.Log(0.2*0.997 + 1e-9)
	assert.InEpsilon(t, expected, dist[idA], 1e-9)
	assert.GreaterOrEqual(t, dist[idA], 0.0)
}

func TestReverseDijkstraUnreachable(t *testing.T) {
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 25e9, 3000),
		mockPool(11, mintW, mintX, 5e9, 5e9, 3000), // disjoint component
	)
	view := g.View()
	idU, _ := g.Registry().GetID(mintU)
	idW, _ := g.Registry().GetID(mintW)

	dist := reverseDijkstra(view, idU, 0)
	assert.True(t, math.IsInf(dist[idW], 1), "disjoint token has no entry")
}

func TestHeuristicCacheHitAndShapeKey(t *testing.T) {
	g := newTestGraph(t, mockPool(10, mintA, mintU, 5e9, 25e9, 3000))
	idU, _ := g.Registry().GetID(mintU)

	_, hit := g.Heuristic().Get(g.View(), mintU, idU, 0.01)
	require.False(t, hit, "first query computes")

	_, hit = g.Heuristic().Get(g.View(), mintU, idU, 0.01)
	assert.True(t, hit, "second query hits the cache")

	_, hit = g.Heuristic().Get(g.View(), mintU, idU, 0.02)
	assert.False(t, hit, "penalty participates in the key")

	// Weight-only updates keep the shape, so the stale entry still hits.
	p := g.GetPool(pk(10))
	p.UpdateReserves(bigFromFloat(6e9), bigFromFloat(25e9))
	g.UpdatePoolWeights(pk(10))
	_, hit = g.Heuristic().Get(g.View(), mintU, idU, 0.01)
	assert.True(t, hit)
}

func TestHeuristicPurgeDropsDeadShapes(t *testing.T) {
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 25e9, 3000),
		mockPool(11, mintU, mintW, 5e9, 5e9, 3000),
	)
	idU, _ := g.Registry().GetID(mintU)
	g.Heuristic().Get(g.View(), mintU, idU, 0)
	require.Equal(t, 1, g.Heuristic().Size())

	g.RemovePool(pk(11))
	g.Heuristic().Purge(g.View())
	assert.Equal(t, 0, g.Heuristic().Size())
}
