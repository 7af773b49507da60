package router

import (
	"container/heap"
	"context"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"

	"github.com/solarisfi/sor-engine/internal/metrics"
)

const (
	searchMaxIterations = 50000
	searchWallClock     = 5 * time.Second
	cancelCheckEvery    = 100

	// arenaRecycleCap bounds how many search-state slots an arena keeps
	// between requests.
	arenaRecycleCap = 1000
)

// SearchParams configures one top-K path search.
type SearchParams struct {
	Source     solana.PublicKey
	Target     solana.PublicKey
	MaxHops    int
	TopK       int
	BeamWidth  int
	GasPenalty float64
}

// Path is one candidate route. Edges chain source to target; Score is the
// terminal realized score g; Cap is the per-path individual-swap ceiling in
// source smallest units.
type Path struct {
	Edges []GraphEdge
	Score float64
	Cap   float64

	seq int // discovery order, breaks score ties deterministically
}

// Hops returns the hop count.
func (p *Path) Hops() int { return len(p.Edges) }

// SearchResult carries the ranked paths plus search effort counters.
type SearchResult struct {
	Paths             []*Path
	Iterations        int
	NodesExplored     int
	StatesGenerated   int
	StatesPruned      int
	BudgetExceeded    bool
	HeuristicCacheHit bool
}

// searchState is one frontier entry. States live in an arena and refer to
// their parent by index, so path reconstruction is a pointer walk and the
// heaps hold small handles.
type searchState struct {
	node    TokenID
	prev    TokenID
	parent  int32
	edge    GraphEdge // edge taken from parent; zero-valued for the root
	g       float64
	hops    int32
	visited []uint64
}

type searchArena struct {
	states []searchState
}

var searchArenaPool = sync.Pool{
	New: func() interface{} {
		return &searchArena{states: make([]searchState, 0, arenaRecycleCap)}
	},
}

func (a *searchArena) alloc() int32 {
	a.states = append(a.states, searchState{})
	return int32(len(a.states) - 1)
}

func (a *searchArena) reset() {
	for i := range a.states {
		a.states[i].visited = nil
	}
	if cap(a.states) > arenaRecycleCap {
		a.states = make([]searchState, 0, arenaRecycleCap)
	} else {
		a.states = a.states[:0]
	}
}

// visitedHas reports whether the token is already on the state's path.
func visitedHas(words []uint64, id TokenID) bool {
	w := int(id) >> 6
	if w >= len(words) {
		return false
	}
	return words[w]&(1<<(uint(id)&63)) != 0
}

func visitedClone(words []uint64, id TokenID, wordCount int) []uint64 {
	out := make([]uint64, wordCount)
	copy(out, words)
	out[int(id)>>6] |= 1 << (uint(id) & 63)
	return out
}

// frontierItem keys the max-heap on prio, the admissible upper bound on the
// terminal score reachable from the state.
type frontierItem struct {
	idx  int32
	prio float64
	seq  int
}

type frontierHeap []frontierItem

func (h frontierHeap) Len() int { return len(h) }
func (h frontierHeap) Less(i, j int) bool {
	if h[i].prio != h[j].prio {
		return h[i].prio > h[j].prio
	}
	return h[i].seq < h[j].seq
}
func (h frontierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *frontierHeap) Push(x interface{}) { *h = append(*h, x.(frontierItem)) }
func (h *frontierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// candidateHeap is a min-heap on terminal score, maintaining the K best
// completed paths.
type candidateHeap []*Path

func (h candidateHeap) Len() int { return len(h) }
func (h candidateHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].seq > h[j].seq
}
func (h candidateHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *candidateHeap) Push(x interface{}) { *h = append(*h, x.(*Path)) }
func (h *candidateHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// FindTopKRoutes runs a beam-bounded best-first search for up to K distinct
// paths from source to target within the hop bound. Paths are returned best
// first; an empty slice means source==target, unknown endpoints, or nothing
// reachable within the budget.
func (g *Graph) FindTopKRoutes(ctx context.Context, params SearchParams) *SearchResult {
	start := time.Now()
	res := &SearchResult{}

	view := g.View()
	sourceID, okS := g.registry.GetID(params.Source)
	targetID, okT := g.registry.GetID(params.Target)
	if !okS || !okT || sourceID == targetID {
		return res
	}

	maxHops := params.MaxHops
	topK := params.TopK
	beam := params.BeamWidth
	if maxHops < 1 || topK < 1 || beam < 1 {
		return res
	}

	hDist, hit := g.heuristic.Get(view, params.Target, targetID, params.GasPenalty)
	res.HeuristicCacheHit = hit

	h := func(id TokenID) float64 {
		if int(id) >= len(hDist) {
			return 0
		}
		d := hDist[id]
		if math.IsInf(d, 1) {
			// Unreached: 0 is an optimistic but admissible substitute.
			return 0
		}
		return d
	}

	arena := searchArenaPool.Get().(*searchArena)
	defer func() {
		arena.reset()
		searchArenaPool.Put(arena)
	}()

	wordCount := (view.tokenCount + 63) / 64
	penalty := params.GasPenalty

	// bestAtDepth[node][hops]: dominance table over realized score.
	bestAtDepth := make([][]float64, view.tokenCount)
	for i := range bestAtDepth {
		row := make([]float64, maxHops+1)
		for j := range row {
			row[j] = math.Inf(-1)
		}
		bestAtDepth[i] = row
	}

	frontier := make(frontierHeap, 0, beam*4)
	candidates := make(candidateHeap, 0, topK)
	seenRoutes := make(map[string]struct{}, topK*2)
	kthScore := math.Inf(-1)
	seq := 0

	rootIdx := arena.alloc()
	arena.states[rootIdx] = searchState{
		node:    sourceID,
		prev:    InvalidTokenID,
		parent:  -1,
		g:       0,
		hops:    0,
		visited: visitedClone(nil, sourceID, wordCount),
	}
	heap.Push(&frontier, frontierItem{idx: rootIdx, prio: 0 - h(sourceID) - penalty*float64(maxHops), seq: seq})
	seq++

	insertCandidate := func(p *Path) {
		key := routeKey(p.Edges)
		if _, dup := seenRoutes[key]; dup {
			return
		}
		if len(candidates) >= topK && p.Score <= kthScore {
			return
		}
		seenRoutes[key] = struct{}{}
		heap.Push(&candidates, p)
		if len(candidates) > topK {
			heap.Pop(&candidates)
		}
		if len(candidates) >= topK {
			kthScore = candidates[0].Score
		}
	}

	// Seed: a direct source->target edge is trivially reachable and must
	// never be missed, whatever the frontier does.
	for _, e := range view.edges(sourceID) {
		if e.To == targetID {
			insertCandidate(&Path{
				Edges: []GraphEdge{e},
				Score: e.LogSpotPrice - penalty,
				seq:   seq,
			})
			seq++
			break // adjacency is score-sorted; the first hit is the best
		}
	}

	frontierCap := beam * 32
	if k := topK * 128; k > frontierCap {
		frontierCap = k
	}
	edgeCap := beam / 2
	if edgeCap < 8 {
		edgeCap = 8
	}

	deadline := start.Add(searchWallClock)

	for frontier.Len() > 0 {
		if len(candidates) >= topK && frontier[0].prio <= kthScore {
			// No future expansion can improve the K-th best: prio is an
			// upper bound on any terminal score below this state.
			break
		}

		popCount := beam
		if popCount > frontier.Len() {
			popCount = frontier.Len()
		}

		for n := 0; n < popCount; n++ {
			item := heap.Pop(&frontier).(frontierItem)
			res.Iterations++
			res.NodesExplored++

			if res.Iterations >= searchMaxIterations {
				res.BudgetExceeded = true
				break
			}
			if res.Iterations%cancelCheckEvery == 0 {
				if time.Now().After(deadline) {
					res.BudgetExceeded = true
					break
				}
				select {
				case <-ctx.Done():
					res.BudgetExceeded = true
				default:
				}
				if res.BudgetExceeded {
					break
				}
			}

			st := &arena.states[item.idx]
			if int(st.hops) >= maxHops {
				continue
			}

			edges := view.edges(st.node)
			limit := len(edges)
			if limit > edgeCap {
				limit = edgeCap
			}

			for i := 0; i < limit; i++ {
				e := edges[i]
				if visitedHas(st.visited, e.To) || e.To == st.prev {
					continue
				}

				g2 := st.g + e.LogSpotPrice - penalty
				hops2 := st.hops + 1
				res.StatesGenerated++

				if e.To == targetID {
					path := reconstructPath(arena, item.idx, e, g2, seq)
					seq++
					insertCandidate(path)
					continue
				}

				if g2 <= bestAtDepth[e.To][hops2] {
					res.StatesPruned++
					continue
				}
				bestAtDepth[e.To][hops2] = g2

				childIdx := arena.alloc()
				st = &arena.states[item.idx] // alloc may have moved the backing array
				arena.states[childIdx] = searchState{
					node:    e.To,
					prev:    st.node,
					parent:  item.idx,
					edge:    e,
					g:       g2,
					hops:    hops2,
					visited: visitedClone(st.visited, e.To, wordCount),
				}
				prio := g2 - h(e.To) - penalty*float64(maxHops-int(hops2))
				heap.Push(&frontier, frontierItem{idx: childIdx, prio: prio, seq: seq})
				seq++
			}
		}

		if res.BudgetExceeded {
			break
		}

		// Cap the frontier by dropping its worst-prio tail.
		if frontier.Len() > frontierCap {
			sort.Sort(frontier) // heap interface sorts ascending by Less: best prio first
			frontier = frontier[:frontierCap]
			heap.Init(&frontier)
		}
	}

	// Drain candidates, best first, ties by discovery order.
	paths := make([]*Path, len(candidates))
	copy(paths, candidates)
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Score != paths[j].Score {
			return paths[i].Score > paths[j].Score
		}
		return paths[i].seq < paths[j].seq
	})

	for _, p := range paths {
		p.Cap = UncappedSentinel
		for _, e := range p.Edges {
			if e.DxCap < p.Cap {
				p.Cap = e.DxCap
			}
		}
	}
	res.Paths = paths

	metrics.SearchDuration.Observe(time.Since(start).Seconds())
	metrics.SearchIterations.Observe(float64(res.Iterations))
	metrics.PathsFound.Observe(float64(len(paths)))
	if res.StatesGenerated > 0 {
		metrics.SearchPruningRatio.Observe(float64(res.StatesPruned) / float64(res.StatesGenerated))
	}
	if res.BudgetExceeded {
		metrics.SearchBudgetExceeded.Inc()
	}
	return res
}

// reconstructPath materializes a completed path by walking parent handles,
// then appending the terminal edge.
func reconstructPath(arena *searchArena, tail int32, last GraphEdge, score float64, seq int) *Path {
	hops := 1
	for idx := tail; idx >= 0 && arena.states[idx].parent >= 0; idx = arena.states[idx].parent {
		hops++
	}

	edges := make([]GraphEdge, hops)
	edges[hops-1] = last
	i := hops - 2
	for idx := tail; idx >= 0 && arena.states[idx].parent >= 0; idx = arena.states[idx].parent {
		edges[i] = arena.states[idx].edge
		i--
	}

	return &Path{Edges: edges, Score: score, seq: seq}
}

// routeKey builds the dedup key: the ordered (fromId:poolId:toId) triples.
func routeKey(edges []GraphEdge) string {
	var b strings.Builder
	b.Grow(len(edges) * 12)
	for _, e := range edges {
		b.WriteString(strconv.FormatUint(uint64(e.From), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.ID), 10))
		b.WriteByte(':')
		b.WriteString(strconv.FormatUint(uint64(e.To), 10))
		b.WriteByte('|')
	}
	return b.String()
}
