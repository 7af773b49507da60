package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func searchParams(maxHops, topK, beam int) SearchParams {
	return SearchParams{
		Source:     mintA,
		Target:     mintU,
		MaxHops:    maxHops,
		TopK:       topK,
		BeamWidth:  beam,
		GasPenalty: 0.001,
	}
}

// twoRouteGraph has a direct A->U pool and a better two-hop A->W->U route.
func twoRouteGraph(t testing.TB) *Graph {
	return newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 5e9, 3000),   // direct, rate ~1.0
		mockPool(11, mintA, mintW, 50e9, 55e9, 3000), // rate ~1.1
		mockPool(12, mintW, mintU, 50e9, 50e9, 3000), // rate ~1.0
	)
}

func TestFindTopKRoutesPathValidity(t *testing.T) {
	g := twoRouteGraph(t)
	res := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
	require.NotEmpty(t, res.Paths)

	idA, _ := g.Registry().GetID(mintA)
	idU, _ := g.Registry().GetID(mintU)

	for _, p := range res.Paths {
		require.NotEmpty(t, p.Edges)
		assert.Equal(t, idA, p.Edges[0].From)
		assert.Equal(t, idU, p.Edges[len(p.Edges)-1].To)
		assert.LessOrEqual(t, len(p.Edges), 3)

		seen := map[TokenID]bool{p.Edges[0].From: true}
		for i, e := range p.Edges {
			if i > 0 {
				assert.Equal(t, p.Edges[i-1].To, e.From, "edges must chain")
			}
			assert.False(t, seen[e.To], "no token repeats on a path")
			seen[e.To] = true
		}
	}
}

func TestFindTopKRoutesUniquePoolSequences(t *testing.T) {
	g := twoRouteGraph(t)
	res := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))

	keys := make(map[string]bool)
	for _, p := range res.Paths {
		key := routeKey(p.Edges)
		assert.False(t, keys[key], "duplicate pool sequence returned")
		keys[key] = true
	}
}

func TestTwoHopBeatsDirect(t *testing.T) {
	g := twoRouteGraph(t)
	res := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
	require.GreaterOrEqual(t, len(res.Paths), 2)

	// Paths are ranked by terminal score; the two-hop composed rate beats
	// the direct pool here.
	assert.Equal(t, 2, res.Paths[0].Hops())
	assert.Equal(t, 1, res.Paths[1].Hops())
	assert.Greater(t, res.Paths[0].Score, res.Paths[1].Score)
}

func TestDirectEdgeIsAlwaysSeeded(t *testing.T) {
	g := newTestGraph(t, mockPool(10, mintA, mintU, 5e9, 25e9, 3000))
	res := g.FindTopKRoutes(context.Background(), searchParams(1, 1, 1))
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 1, res.Paths[0].Hops())
	assert.Equal(t, pk(10), res.Paths[0].Edges[0].Pool.Address)
}

func TestMaxHopsBound(t *testing.T) {
	// Only route is A->W->X->U; maxHops 2 must not find it.
	g := newTestGraph(t,
		mockPool(11, mintA, mintW, 5e9, 5e9, 3000),
		mockPool(12, mintW, mintX, 5e9, 5e9, 3000),
		mockPool(13, mintX, mintU, 5e9, 5e9, 3000),
	)
	res := g.FindTopKRoutes(context.Background(), searchParams(2, 10, 32))
	assert.Empty(t, res.Paths)

	res = g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
	require.Len(t, res.Paths, 1)
	assert.Equal(t, 3, res.Paths[0].Hops())
}

func TestNoImmediateReversal(t *testing.T) {
	// Two pools on A<->W would allow A->W->A->... without the prev check.
	g := newTestGraph(t,
		mockPool(10, mintA, mintW, 5e9, 5e9, 3000),
		mockPool(11, mintA, mintW, 5e9, 5.001e9, 3000),
		mockPool(12, mintW, mintU, 5e9, 5e9, 3000),
	)
	res := g.FindTopKRoutes(context.Background(), searchParams(4, 20, 32))
	for _, p := range res.Paths {
		for i := 1; i < len(p.Edges); i++ {
			assert.NotEqual(t, p.Edges[i].To, p.Edges[i-1].From,
				"A->B->A reversal must be rejected even across different pools")
		}
	}
}

func TestSourceEqualsTargetReturnsEmpty(t *testing.T) {
	g := twoRouteGraph(t)
	params := searchParams(3, 10, 32)
	params.Target = mintA
	res := g.FindTopKRoutes(context.Background(), params)
	assert.Empty(t, res.Paths)
}

func TestUnknownEndpointReturnsEmpty(t *testing.T) {
	g := twoRouteGraph(t)
	params := searchParams(3, 10, 32)
	params.Target = pk(99)
	res := g.FindTopKRoutes(context.Background(), params)
	assert.Empty(t, res.Paths)
}

func TestSearchDeterminism(t *testing.T) {
	g := newTestGraph(t,
		mockPool(10, mintA, mintU, 5e9, 5e9, 3000),
		mockPool(11, mintA, mintW, 5e9, 5e9, 3000),
		mockPool(12, mintW, mintU, 5e9, 5e9, 3000),
		mockPool(13, mintA, mintX, 5e9, 5e9, 3000),
		mockPool(14, mintX, mintU, 5e9, 5e9, 3000),
	)

	first := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
	require.NotEmpty(t, first.Paths)

	for i := 0; i < 5; i++ {
		again := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
		require.Equal(t, len(first.Paths), len(again.Paths))
		for j := range first.Paths {
			assert.Equal(t, routeKey(first.Paths[j].Edges), routeKey(again.Paths[j].Edges))
			assert.Equal(t, first.Paths[j].Score, again.Paths[j].Score)
		}
	}
}

func TestPathCapIsMinOverHops(t *testing.T) {
	g := newTestGraph(t,
		mockPool(11, mintA, mintW, 1e6, 1e6, 3000), // thin first hop
		mockPool(12, mintW, mintU, 50e9, 50e9, 3000),
	)
	res := g.FindTopKRoutes(context.Background(), searchParams(3, 10, 32))
	require.Len(t, res.Paths, 1)

	p := res.Paths[0]
	minCap := UncappedSentinel
	for _, e := range p.Edges {
		if e.DxCap < minCap {
			minCap = e.DxCap
		}
	}
	assert.Equal(t, minCap, p.Cap)
	assert.Less(t, p.Cap, 1e9)
}

func TestHeuristicAdmissibilityWitness(t *testing.T) {
	// For every intermediate token on a returned path, h must not exceed the
	// true remaining clamped cost along that path (it is a shortest-path
	// lower bound, so any concrete suffix is a witness).
	g := twoRouteGraph(t)
	params := searchParams(3, 10, 32)
	res := g.FindTopKRoutes(context.Background(), params)
	require.NotEmpty(t, res.Paths)

	view := g.View()
	idU, _ := g.Registry().GetID(mintU)
	dist, _ := g.Heuristic().Get(view, mintU, idU, params.GasPenalty)

	for _, p := range res.Paths {
		for i := 0; i+1 < len(p.Edges); i++ {
			node := p.Edges[i].To
			suffixCost := 0.0
			for j := i + 1; j < len(p.Edges); j++ {
				w := -p.Edges[j].LogSpotPrice + params.GasPenalty
				if w < 0 {
					w = 0
				}
				suffixCost += w
			}
			assert.LessOrEqual(t, dist[node], suffixCost+1e-9,
				"heuristic must stay admissible along returned paths")
		}
	}
}

func BenchmarkFindTopKRoutes(b *testing.B) {
	g := newTestGraph(b,
		mockPool(10, mintA, mintU, 5e9, 5e9, 3000),
		mockPool(11, mintA, mintW, 5e9, 5e9, 3000),
		mockPool(12, mintW, mintU, 5e9, 5e9, 3000),
		mockPool(13, mintA, mintX, 5e9, 5e9, 3000),
		mockPool(14, mintX, mintU, 5e9, 5e9, 3000),
		mockPool(15, mintW, mintX, 5e9, 5e9, 3000),
	)
	params := searchParams(4, 10, 32)
	ctx := context.Background()

	b.ResetTimer()
	b.ReportAllocs()

	for i := 0; i < b.N; i++ {
		_ = g.FindTopKRoutes(ctx, params)
	}
}
