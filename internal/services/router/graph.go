package router

import (
	"sync"
	"sync/atomic"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/metrics"
)

const ROUTER_SERVICE = "router.Graph"

// revEdge is a reversed adjacency entry used by the heuristic's Dijkstra.
type revEdge struct {
	From         TokenID
	LogSpotPrice float64
}

// graphView is an immutable snapshot of the routing graph. Edge rows are
// never mutated after publication; writers replace whole rows and publish a
// new view. Readers pin one view per request.
type graphView struct {
	adj        [][]GraphEdge // by from-token ID, sorted by score desc, compressed
	radj       [][]revEdge   // reversed adjacency for the heuristic
	tokenCount int
	edgeCount  int
	version    uint64
}

func (v *graphView) edges(id TokenID) []GraphEdge {
	if int(id) >= len(v.adj) {
		return nil
	}
	return v.adj[id]
}

// Graph is the token routing graph: single writer, lock-free readers via
// atomic view snapshots.
type Graph struct {
	mu sync.Mutex // writes only

	snapshot atomic.Value // *graphView

	// Mutable state (protected by mu)
	pools     map[solana.PublicKey]*domain.Pool
	poolIDs   map[solana.PublicKey]PoolID
	poolAddrs []solana.PublicKey
	adj       [][]GraphEdge

	registry  *TokenRegistry
	heuristic *HeuristicCache
	version   atomic.Uint64
}

func (g *Graph) ID() string {
	return ROUTER_SERVICE
}

func (g *Graph) Configure(c container.IContainer) error {
	g.pools = make(map[solana.PublicKey]*domain.Pool)
	g.poolIDs = make(map[solana.PublicKey]PoolID)
	g.registry = NewTokenRegistry()
	g.heuristic = NewHeuristicCache()
	g.publishLocked()
	return nil
}

func (g *Graph) Start() error { return nil }
func (g *Graph) Stop() error  { return nil }

// Registry exposes the token bijection.
func (g *Graph) Registry() *TokenRegistry { return g.registry }

// Heuristic exposes the reverse-Dijkstra cache.
func (g *Graph) Heuristic() *HeuristicCache { return g.heuristic }

// View returns the current immutable snapshot.
func (g *Graph) View() *graphView {
	return g.snapshot.Load().(*graphView)
}

// Version returns the monotonic write counter.
func (g *Graph) Version() uint64 {
	return g.version.Load()
}

// EdgesFrom returns the published adjacency row for a token.
func (g *Graph) EdgesFrom(id TokenID) []GraphEdge {
	return g.View().edges(id)
}

// BuildFromPools replaces the graph content with edges derived from the given
// pool set and token dictionary. Pools failing the edge filters contribute no
// edges; the builder never fails as a whole.
func (g *Graph) BuildFromPools(pools []*domain.Pool, dict domain.TokenDictionary) {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.pools = make(map[solana.PublicKey]*domain.Pool, len(pools))
	g.poolIDs = make(map[solana.PublicKey]PoolID, len(pools))
	g.poolAddrs = g.poolAddrs[:0]
	g.adj = nil

	for _, p := range pools {
		g.addPoolLocked(p, dict)
	}
	g.compressAllLocked()
	g.publishLocked()
	metrics.GraphRebuilds.Inc()
	log.Info().
		Int("pools", len(g.pools)).
		Int("tokens", g.registry.Size()).
		Msg("[router.Graph] graph built")
}

// AddPool inserts (or replaces) one pool and its directional edges.
func (g *Graph) AddPool(p *domain.Pool, dict domain.TokenDictionary) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, exists := g.pools[p.Address]; exists {
		g.removePoolLocked(p.Address)
	}
	g.addPoolLocked(p, dict)
	g.recompressLocked(p)
	g.publishLocked()
}

// RemovePool drops a pool and its edges.
func (g *Graph) RemovePool(addr solana.PublicKey) {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pools[addr]
	if !ok {
		return
	}
	g.removePoolLocked(addr)
	g.recompressLocked(p)
	g.publishLocked()
}

// UpdatePoolWeights recomputes both directional edges of a pool after a
// reserve or fee change. The pool record itself must already be updated.
func (g *Graph) UpdatePoolWeights(addr solana.PublicKey) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	p, ok := g.pools[addr]
	if !ok {
		return false
	}
	// Rebuild the two affected rows from scratch: compression may now pick a
	// different parallel edge for either direction.
	g.recompressLocked(p)
	g.publishLocked()
	return true
}

// GetPool returns a pool by address.
func (g *Graph) GetPool(addr solana.PublicKey) *domain.Pool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.pools[addr]
}

// GetAllPools returns all pools.
func (g *Graph) GetAllPools() []*domain.Pool {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*domain.Pool, 0, len(g.pools))
	for _, p := range g.pools {
		out = append(out, p)
	}
	return out
}

// PoolCount returns the number of registered pools.
func (g *Graph) PoolCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.pools)
}

// --- internals (mu held) ---

func (g *Graph) addPoolLocked(p *domain.Pool, dict domain.TokenDictionary) {
	id, ok := g.poolIDs[p.Address]
	if !ok {
		id = PoolID(len(g.poolAddrs))
		g.poolIDs[p.Address] = id
		g.poolAddrs = append(g.poolAddrs, p.Address)
	}
	g.pools[p.Address] = p

	decA, decB := p.DecimalsA, p.DecimalsB
	if t, ok := dict[p.TokenMintA]; ok {
		decA = t.Decimals
	}
	if t, ok := dict[p.TokenMintB]; ok {
		decB = t.Decimals
	}
	p.DecimalsA, p.DecimalsB = decA, decB

	g.registry.GetOrCreate(p.TokenMintA, decA)
	g.registry.GetOrCreate(p.TokenMintB, decB)
	g.ensureAdjLocked()
	g.appendEdgesLocked(p, id)
}

func (g *Graph) ensureAdjLocked() {
	for len(g.adj) < g.registry.Size() {
		g.adj = append(g.adj, nil)
	}
}

// appendEdgesLocked emits the two directional edges of a pool, applying the
// build-time filters. Rows are copied before modification so a published view
// never observes a partially written slice.
func (g *Graph) appendEdgesLocked(p *domain.Pool, id PoolID) {
	if !p.Active {
		return
	}
	idA, _ := g.registry.GetID(p.TokenMintA)
	idB, _ := g.registry.GetID(p.TokenMintB)
	g.ensureAdjLocked()

	for _, dir := range [2]struct {
		from, to TokenID
		aToB     bool
	}{{idA, idB, true}, {idB, idA, false}} {
		e := GraphEdge{From: dir.from, To: dir.to, Pool: p, ID: id, AToB: dir.aToB}
		if !e.refreshWeights() {
			metrics.EdgesDropped.WithLabelValues("filter").Inc()
			continue
		}
		row := make([]GraphEdge, len(g.adj[dir.from]), len(g.adj[dir.from])+1)
		copy(row, g.adj[dir.from])
		g.adj[dir.from] = append(row, e)
	}
}

func (g *Graph) removePoolLocked(addr solana.PublicKey) {
	delete(g.pools, addr)
	g.removeEdgesForPoolLocked(addr)
}

func (g *Graph) removeEdgesForPoolLocked(addr solana.PublicKey) {
	for i := range g.adj {
		row := g.adj[i]
		keep := make([]GraphEdge, 0, len(row))
		for _, e := range row {
			if e.Pool.Address != addr {
				keep = append(keep, e)
			}
		}
		g.adj[i] = keep
	}
}

// recompressLocked re-runs sort + parallel-edge compression for the two rows
// a pool touches. Rows are rebuilt from the full per-pool edge set, so a
// previously compressed-away edge can resurface when the winner degrades.
func (g *Graph) recompressLocked(p *domain.Pool) {
	idA, okA := g.registry.GetID(p.TokenMintA)
	idB, okB := g.registry.GetID(p.TokenMintB)
	if okA {
		g.rebuildRowLocked(idA)
	}
	if okB {
		g.rebuildRowLocked(idB)
	}
}

// rebuildRowLocked regenerates one adjacency row from every pool touching the
// token, then compresses it.
func (g *Graph) rebuildRowLocked(from TokenID) {
	mint := g.registry.GetMint(from)
	row := make([]GraphEdge, 0, 8)
	for addr, p := range g.pools {
		if !p.Active {
			continue
		}
		if p.TokenMintA != mint && p.TokenMintB != mint {
			continue
		}
		aToB := p.TokenMintA == mint
		var to TokenID
		if aToB {
			to, _ = g.registry.GetID(p.TokenMintB)
		} else {
			to, _ = g.registry.GetID(p.TokenMintA)
		}
		e := GraphEdge{From: from, To: to, Pool: p, ID: g.poolIDs[addr], AToB: aToB}
		if e.refreshWeights() {
			row = append(row, e)
		}
	}
	sortEdges(row)
	g.adj[from] = compressParallelEdges(row)
}

func (g *Graph) compressAllLocked() {
	for i := range g.adj {
		sortEdges(g.adj[i])
		g.adj[i] = compressParallelEdges(g.adj[i])
	}
}

// publishLocked builds and stores a fresh immutable view.
func (g *Graph) publishLocked() {
	tokenCount := g.registry.Size()
	adj := make([][]GraphEdge, tokenCount)
	radj := make([][]revEdge, tokenCount)
	edgeCount := 0
	for i := 0; i < tokenCount && i < len(g.adj); i++ {
		adj[i] = g.adj[i]
		edgeCount += len(g.adj[i])
	}
	for from := range adj {
		for _, e := range adj[from] {
			radj[e.To] = append(radj[e.To], revEdge{From: TokenID(from), LogSpotPrice: e.LogSpotPrice})
		}
	}

	v := g.version.Add(1)
	g.snapshot.Store(&graphView{
		adj:        adj,
		radj:       radj,
		tokenCount: tokenCount,
		edgeCount:  edgeCount,
		version:    v,
	})

	metrics.TokenCount.Set(float64(tokenCount))
	metrics.EdgeCount.Set(float64(edgeCount))
	metrics.PoolCount.Set(float64(len(g.pools)))
}
