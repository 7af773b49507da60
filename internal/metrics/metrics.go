package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Graph metrics
	PoolCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sor_pool_count",
		Help: "Total number of pools in the routing graph",
	})

	TokenCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sor_token_count",
		Help: "Total number of tokens in the routing graph",
	})

	EdgeCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "sor_edge_count",
		Help: "Total number of directional edges after compression",
	})

	EdgesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_edges_dropped_total",
			Help: "Edges dropped at build time",
		},
		[]string{"reason"},
	)

	GraphRebuilds = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_graph_rebuilds_total",
		Help: "Total number of full graph rebuilds",
	})

	// Quote metrics
	QuoteRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_quote_requests_total",
			Help: "Total number of quote requests",
		},
		[]string{"status"},
	)

	QuoteDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_quote_duration_seconds",
		Help:    "Quote request duration in seconds",
		Buckets: prometheus.DefBuckets,
	})

	// Search metrics
	SearchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_search_duration_seconds",
		Help:    "Top-K path search duration in seconds",
		Buckets: []float64{0.0005, 0.001, 0.002, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	})

	SearchIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_search_iterations",
		Help:    "Search main-loop iterations per quote",
		Buckets: []float64{10, 50, 100, 500, 1000, 5000, 10000, 50000},
	})

	SearchPruningRatio = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_search_pruning_ratio",
		Help:    "Fraction of generated states discarded by dominance pruning",
		Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 0.99, 1},
	})

	PathsFound = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_paths_found",
		Help:    "Number of candidate paths returned per search",
		Buckets: []float64{0, 1, 2, 3, 5, 10, 20, 40},
	})

	SearchBudgetExceeded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_search_budget_exceeded_total",
		Help: "Searches terminated by iteration or wall-clock budget",
	})

	// Heuristic cache metrics
	HeuristicCacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_heuristic_cache_hits_total",
		Help: "Reverse-Dijkstra heuristic cache hits",
	})

	HeuristicCacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_heuristic_cache_misses_total",
		Help: "Reverse-Dijkstra heuristic cache misses",
	})

	// Splitter metrics
	SplitDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_split_duration_seconds",
		Help:    "Route splitting duration in seconds",
		Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	})

	SplitIterations = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_split_iterations",
		Help:    "Iterations of the presented split allocator (water-fill or hill-climb) per quote",
		Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 500, 1000, 5000},
	})

	SplitImprovementBps = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "sor_split_improvement_bps",
		Help:    "Split output improvement over best single path in basis points",
		Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 500, 1000},
	})

	// Dispatcher metrics
	DispatcherEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_dispatcher_events_total",
			Help: "Pool mutation events by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	DispatcherInconsistencies = promauto.NewCounter(prometheus.CounterOpts{
		Name: "sor_dispatcher_inconsistencies_total",
		Help: "Events skipped because they would produce invalid reserves or weights",
	})

	// HTTP metrics
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sor_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sor_http_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
