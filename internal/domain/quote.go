package domain

import (
	"time"

	"github.com/gagliardetto/solana-go"
)

// QuoteRequest is the full smart-order-router request. Amount is in
// human-readable units of the source token; everything downstream runs in
// smallest units.
type QuoteRequest struct {
	SourceMint solana.PublicKey
	TargetMint solana.PublicKey
	Amount     float64

	// Search configuration. Zero values take the service defaults.
	MaxHops   int
	TopK      int
	BeamWidth int

	// Gas accounting. GasPerHopUSD is converted to target smallest units via
	// TargetUsdPrice. TargetUsdPrice <= 0 means "not provided": it defaults
	// to 1.0 only for recognized stablecoin targets and is rejected otherwise.
	GasPerHopUSD   float64
	TargetUsdPrice float64

	EnableSplitting    bool
	MinInitialEffRatio float64

	// StepCount bounds how many of the canonical curve fractions are
	// sampled. Zero means all of them.
	StepCount int
}

// HopRecord describes one pool traversal inside a returned path.
type HopRecord struct {
	PoolAddress solana.PublicKey `json:"poolAddress"`
	FromMint    solana.PublicKey `json:"fromMint"`
	ToMint      solana.PublicKey `json:"toMint"`
}

// PathRecord is one candidate path with its terminal search score and the
// per-path individual-swap cap (smallest units of the source token).
type PathRecord struct {
	Hops   []HopRecord `json:"hops"`
	Score  float64     `json:"score"`
	CapRaw float64     `json:"capRaw"`
}

// BestSingle is the best unsplit execution across the candidate paths.
type BestSingle struct {
	PathIndex      int     `json:"pathIndex"`
	OutputRaw      float64 `json:"outputRaw"`
	OutputHuman    float64 `json:"outputHuman"`
	GasCostRaw     float64 `json:"gasCostRaw"`
	NetOutputRaw   float64 `json:"netOutputRaw"`
	NetOutputHuman float64 `json:"netOutputHuman"`
}

// SplitAllocation is one path's share of a split execution.
type SplitAllocation struct {
	PathIndex       int     `json:"pathIndex"`
	InputRaw        float64 `json:"inputRaw"`
	InputHuman      float64 `json:"inputHuman"`
	OutputRaw       float64 `json:"outputRaw"`
	OutputHuman     float64 `json:"outputHuman"`
	InitialMarginal float64 `json:"initialMarginal"`
	FinalMarginal   float64 `json:"finalMarginal"`
}

// SplitResult is the outcome of route splitting.
type SplitResult struct {
	TotalInputHuman  float64           `json:"totalInputHuman"`
	TotalOutputRaw   float64           `json:"totalOutputRaw"`
	TotalOutputHuman float64           `json:"totalOutputHuman"`
	Allocations      []SplitAllocation `json:"allocations"`
	Iterations       int               `json:"iterations"`
	Algorithm        string            `json:"algorithm"` // "waterfill" or "hillclimb"
}

// Diagnostics reports per-phase timing and search effort for one quote.
type Diagnostics struct {
	SearchTime        time.Duration `json:"searchTimeNs"`
	CurveTime         time.Duration `json:"curveTimeNs"`
	SplitTime         time.Duration `json:"splitTimeNs"`
	NodesExplored     int           `json:"nodesExplored"`
	StatesPruned      int           `json:"statesPruned"`
	PruningRatio      float64       `json:"pruningRatio"`
	SearchBudgetHit   bool          `json:"searchBudgetExceeded"`
	SplitBudgetHit    bool          `json:"splitBudgetExceeded"`
	NoRouteReason     string        `json:"noRouteReason,omitempty"`
	HeuristicCacheHit bool          `json:"heuristicCacheHit"`
}

// QuoteResponse is the quote surface of the router core.
type QuoteResponse struct {
	Paths       []PathRecord `json:"paths"`
	BestSingle  *BestSingle  `json:"bestSingle,omitempty"`
	Split       *SplitResult `json:"split,omitempty"`
	Diagnostics Diagnostics  `json:"diagnostics"`
}
