package router

import (
	"math"
	"sort"

	"github.com/gagliardetto/solana-go"

	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/services/pool"
)

const (
	// logEpsilon guards ln() against zero arguments.
	logEpsilon = 1e-9

	// probeImpactLimit drops edges whose probe-sized swap already moves the
	// price by more than 5% (shallow pools).
	probeImpactLimit = 0.05

	// dxCapOutFraction sizes the per-edge individual-swap cap: the largest
	// input that still leaves 5% of the output reserve in the pool.
	dxCapOutFraction = 0.95

	// parallelEdgeBps keeps a second parallel edge only when its spot price
	// is within 50 basis points of the best one.
	parallelEdgeBps = 0.005

	// UncappedSentinel marks an edge (or path) with no individual-swap cap.
	UncappedSentinel = math.MaxFloat64 / 4
)

// GraphEdge is one directional pool traversal. All fields are computed once
// at build/update time; published edges are immutable.
type GraphEdge struct {
	From TokenID
	To   TokenID
	Pool *domain.Pool
	ID   PoolID
	AToB bool // true when From is the pool's token A

	SpotPrice      float64
	LogSpotPrice   float64
	LiquidityScore float64
	Score          float64 // ranks parallel edges only
	DxCap          float64 // smallest units of From
}

// refreshWeights recomputes the derived fields of an edge from the pool's
// current reserves. Returns false when the edge no longer passes the
// build-time filters (shallow or drained pool).
func (e *GraphEdge) refreshWeights() bool {
	p := e.Pool
	fromMint, toMint := p.TokenMintA, p.TokenMintB
	reserveIn, reserveOut := p.ReserveAF, p.ReserveBF
	if !e.AToB {
		fromMint, toMint = toMint, fromMint
		reserveIn, reserveOut = reserveOut, reserveIn
	}

	if reserveIn < 1 || reserveOut < 1 {
		return false
	}

	spot := pool.SpotPrice(p, fromMint, toMint)
	if spot <= 0 {
		return false
	}

	probe := math.Min(0.001*reserveIn, 1e9)
	if probe/(reserveIn+probe) > probeImpactLimit {
		return false
	}

	e.SpotPrice = spot
	e.LogSpotPrice = math.Log(spot + logEpsilon)
	e.LiquidityScore = math.Sqrt(reserveIn * reserveOut)
	e.Score = e.LogSpotPrice + math.Log(e.LiquidityScore+logEpsilon)
	e.DxCap = pool.CpmmMaxInput(reserveIn, p.Fee(), dxCapOutFraction)
	if math.IsInf(e.DxCap, 1) || e.DxCap > UncappedSentinel {
		e.DxCap = UncappedSentinel
	}
	return true
}

// FromMint returns the input mint of the edge.
func (e *GraphEdge) FromMint() solana.PublicKey {
	if e.AToB {
		return e.Pool.TokenMintA
	}
	return e.Pool.TokenMintB
}

// ToMint returns the output mint of the edge.
func (e *GraphEdge) ToMint() solana.PublicKey {
	if e.AToB {
		return e.Pool.TokenMintB
	}
	return e.Pool.TokenMintA
}

// sortEdges orders an edge list by score descending with a deterministic
// secondary key (pool address) so tie-breaks are stable across runs.
func sortEdges(edges []GraphEdge) {
	sort.SliceStable(edges, func(i, j int) bool {
		if edges[i].Score != edges[j].Score {
			return edges[i].Score > edges[j].Score
		}
		return edges[i].Pool.Address.String() < edges[j].Pool.Address.String()
	})
}

// compressParallelEdges keeps, per destination token, the best-scoring edge
// plus the runner-up iff its spot price is within 50 bps of the best.
// Input must already be sorted by score descending.
func compressParallelEdges(edges []GraphEdge) []GraphEdge {
	if len(edges) <= 1 {
		return edges
	}

	type slot struct {
		bestSpot float64
		count    int
	}
	byTo := make(map[TokenID]*slot, len(edges))
	out := edges[:0]

	for i := range edges {
		e := edges[i]
		s, ok := byTo[e.To]
		if !ok {
			byTo[e.To] = &slot{bestSpot: e.SpotPrice, count: 1}
			out = append(out, e)
			continue
		}
		if s.count >= 2 {
			continue
		}
		s.count = 2
		if s.bestSpot > 0 && math.Abs(e.SpotPrice-s.bestSpot)/s.bestSpot <= parallelEdgeBps {
			out = append(out, e)
		}
	}

	sortEdges(out)
	return out
}
