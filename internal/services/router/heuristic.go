package router

import (
	"container/heap"
	"math"
	"sync"

	"github.com/gagliardetto/solana-go"

	"github.com/solarisfi/sor-engine/internal/metrics"
)

const (
	// Caps on the reverse Dijkstra to bound worst-case cost on pathological
	// graphs.
	heuristicMaxIterations = 50000
	heuristicMaxNodes      = 50000
)

// heuristicKey is deliberately shape-based: (tokenCount, edgeCount, target,
// penalty). Weight-only changes inside existing edges do not alter the key —
// the cached estimate goes stale but stays admissible, trading precision for
// reuse.
type heuristicKey struct {
	tokenCount int
	edgeCount  int
	target     solana.PublicKey
	penalty    float64
}

// HeuristicCache memoizes reverse-Dijkstra distance vectors. Concurrent
// producers race benignly: last writer wins, every stored vector is valid.
type HeuristicCache struct {
	entries sync.Map // heuristicKey -> []float64
}

func NewHeuristicCache() *HeuristicCache {
	return &HeuristicCache{}
}

// Get returns the distance vector from every token to target under edge cost
// max(0, -logSpotPrice + gasPenalty), computing and caching it on miss.
// Unreached tokens hold +Inf; callers substitute 0 (admissible lower bound).
// hit reports whether the vector came from cache.
func (c *HeuristicCache) Get(view *graphView, target solana.PublicKey, targetID TokenID, penalty float64) (dist []float64, hit bool) {
	key := heuristicKey{
		tokenCount: view.tokenCount,
		edgeCount:  view.edgeCount,
		target:     target,
		penalty:    penalty,
	}
	if v, ok := c.entries.Load(key); ok {
		metrics.HeuristicCacheHits.Inc()
		return v.([]float64), true
	}

	metrics.HeuristicCacheMisses.Inc()
	dist = reverseDijkstra(view, targetID, penalty)
	c.entries.Store(key, dist)
	return dist, false
}

// Purge drops every cached vector whose graph shape no longer matches the
// current view. Called by the dispatcher on topology changes so dead shapes
// do not accumulate.
func (c *HeuristicCache) Purge(view *graphView) {
	c.entries.Range(func(k, _ interface{}) bool {
		key := k.(heuristicKey)
		if key.tokenCount != view.tokenCount || key.edgeCount != view.edgeCount {
			c.entries.Delete(k)
		}
		return true
	})
}

// Size returns the number of cached vectors.
func (c *HeuristicCache) Size() int {
	n := 0
	c.entries.Range(func(_, _ interface{}) bool {
		n++
		return true
	})
	return n
}

type dijkstraItem struct {
	node TokenID
	dist float64
}

type dijkstraHeap []dijkstraItem

func (h dijkstraHeap) Len() int            { return len(h) }
func (h dijkstraHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h dijkstraHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *dijkstraHeap) Push(x interface{}) { *h = append(*h, x.(dijkstraItem)) }
func (h *dijkstraHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// reverseDijkstra computes shortest-path cost from every token to target over
// the reversed graph. The max(0, .) clamp keeps all weights non-negative, so
// plain Dijkstra applies.
func reverseDijkstra(view *graphView, target TokenID, penalty float64) []float64 {
	dist := make([]float64, view.tokenCount)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	if int(target) >= view.tokenCount {
		return dist
	}
	dist[target] = 0

	done := make([]bool, view.tokenCount)
	pq := make(dijkstraHeap, 0, 64)
	heap.Push(&pq, dijkstraItem{node: target, dist: 0})

	iterations := 0
	settled := 0
	for pq.Len() > 0 {
		iterations++
		if iterations > heuristicMaxIterations || settled > heuristicMaxNodes {
			break
		}

		cur := heap.Pop(&pq).(dijkstraItem)
		if done[cur.node] {
			continue
		}
		done[cur.node] = true
		settled++

		for _, re := range view.radj[cur.node] {
			if done[re.From] {
				continue
			}
			w := -re.LogSpotPrice + penalty
			if w < 0 {
				w = 0
			}
			nd := cur.dist + w
			if nd < dist[re.From] {
				dist[re.From] = nd
				heap.Push(&pq, dijkstraItem{node: re.From, dist: nd})
			}
		}
	}

	return dist
}
