// Package dispatcher applies the external pool mutation stream to the
// routing graph, deciding per event whether a weight recomputation is
// actually needed.
package dispatcher

import (
	"math/big"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog/log"
	container "github.com/thehyperflames/dicontainer-go"

	"github.com/solarisfi/sor-engine/internal/config"
	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/metrics"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

const DISPATCHER_SERVICE = "dispatcher.Service"

// reserveRatioEpsilon: liquidity events that move the reserve ratio by no
// more than this leave the spot price unchanged and are skipped.
const reserveRatioEpsilon = 1e-6

type Service struct {
	container.BaseDIInstance

	graph  *router.Graph
	config *config.RouterConfig

	mu sync.Mutex
	// pendingSwaps coalesces Swapped events per pool inside the batching
	// window; only the newest reserves matter.
	pendingSwaps map[solana.PublicKey]*domain.PoolEvent

	flushTicker *time.Ticker
	stopCh      chan struct{}
}

func (s *Service) ID() string {
	return DISPATCHER_SERVICE
}

func (s *Service) Configure(c container.IContainer) error {
	s.graph = c.Instance(router.ROUTER_SERVICE).(*router.Graph)
	s.config = c.GetConfig(config.ROUTER_CONFIG_KEY).(*config.RouterConfig)
	s.pendingSwaps = make(map[solana.PublicKey]*domain.PoolEvent)
	s.stopCh = make(chan struct{})
	return nil
}

func (s *Service) Start() error {
	window := time.Duration(s.config.SwapBatchWindowMS) * time.Millisecond
	if window <= 0 {
		window = 2 * time.Second
	}
	s.flushTicker = time.NewTicker(window)
	go s.flushLoop()
	return nil
}

func (s *Service) Stop() error {
	close(s.stopCh)
	if s.flushTicker != nil {
		s.flushTicker.Stop()
	}
	s.FlushSwaps()
	return nil
}

func (s *Service) flushLoop() {
	for {
		select {
		case <-s.stopCh:
			return
		case <-s.flushTicker.C:
			s.FlushSwaps()
		}
	}
}

// ApplyBatch consumes one ordered batch of pool mutation events. Each event
// is applied atomically with respect to concurrent quote requests: readers
// observe either the full effect of an event or none of it.
func (s *Service) ApplyBatch(events []domain.PoolEvent) {
	for i := range events {
		s.apply(&events[i])
	}
}

func (s *Service) apply(ev *domain.PoolEvent) {
	switch ev.Kind {
	case domain.EventPoolCreated:
		s.applyPoolCreated(ev)
	case domain.EventPoolDisabled:
		s.applyPoolDisabled(ev)
	case domain.EventLiquidityAdded, domain.EventLiquidityRemoved:
		s.applyLiquidity(ev)
	case domain.EventSwapped:
		s.enqueueSwap(ev)
	case domain.EventFeeUpdated:
		s.applyFeeUpdate(ev)
	default:
		metrics.DispatcherEvents.WithLabelValues("unknown", "skipped").Inc()
	}
}

func (s *Service) applyPoolCreated(ev *domain.PoolEvent) {
	if ev.Pool == nil {
		metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "invalid").Inc()
		return
	}
	ev.Pool.SyncShadowReserves()
	ev.Pool.UpdateFlags()
	ev.Pool.LastSeq = ev.Seq
	s.graph.AddPool(ev.Pool, nil)
	s.graph.Heuristic().Purge(s.graph.View())
	metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "applied").Inc()
}

func (s *Service) applyPoolDisabled(ev *domain.PoolEvent) {
	s.graph.RemovePool(ev.PoolAddress)
	s.graph.Heuristic().Purge(s.graph.View())
	metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "applied").Inc()
}

// applyLiquidity skips balanced liquidity operations: when the reserve ratio
// is unchanged (within epsilon), the spot price did not move and no weight
// recomputation is warranted.
func (s *Service) applyLiquidity(ev *domain.PoolEvent) {
	kind := ev.Kind.String()
	p := s.graph.GetPool(ev.PoolAddress)
	if p == nil {
		metrics.DispatcherEvents.WithLabelValues(kind, "unknown_pool").Inc()
		return
	}
	if !validReserves(ev.NewReserveA, ev.NewReserveB) {
		metrics.DispatcherInconsistencies.Inc()
		log.Warn().
			Str("pool", ev.PoolAddress.String()).
			Str("kind", kind).
			Msg("[dispatcher] event would produce non-positive reserves, skipping")
		return
	}

	if ratioUnchanged(ev.OldReserveA, ev.OldReserveB, ev.NewReserveA, ev.NewReserveB) {
		// Balanced add/remove: update reserves (depth changed) but keep the
		// weights; liquidityScore drift is absorbed at the next real update.
		p.UpdateReserves(ev.NewReserveA, ev.NewReserveB)
		p.LastSeq = ev.Seq
		metrics.DispatcherEvents.WithLabelValues(kind, "skipped").Inc()
		return
	}

	p.UpdateReserves(ev.NewReserveA, ev.NewReserveB)
	p.LastSeq = ev.Seq
	s.graph.UpdatePoolWeights(ev.PoolAddress)
	metrics.DispatcherEvents.WithLabelValues(kind, "applied").Inc()
}

// enqueueSwap coalesces swap events per pool: one weight recomputation per
// pool per window bounds dispatcher work under bursty traffic.
func (s *Service) enqueueSwap(ev *domain.PoolEvent) {
	if !validReserves(ev.NewReserveA, ev.NewReserveB) {
		metrics.DispatcherInconsistencies.Inc()
		log.Warn().
			Str("pool", ev.PoolAddress.String()).
			Msg("[dispatcher] swap event with invalid reserves, skipping")
		return
	}
	s.mu.Lock()
	s.pendingSwaps[ev.PoolAddress] = ev
	s.mu.Unlock()
	metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "batched").Inc()
}

// FlushSwaps applies the newest coalesced swap event per pool.
func (s *Service) FlushSwaps() {
	s.mu.Lock()
	pending := s.pendingSwaps
	s.pendingSwaps = make(map[solana.PublicKey]*domain.PoolEvent)
	s.mu.Unlock()

	for addr, ev := range pending {
		p := s.graph.GetPool(addr)
		if p == nil {
			continue
		}
		p.UpdateReserves(ev.NewReserveA, ev.NewReserveB)
		p.LastSeq = ev.Seq
		s.graph.UpdatePoolWeights(addr)
		metrics.DispatcherEvents.WithLabelValues(domain.EventSwapped.String(), "applied").Inc()
	}
}

func (s *Service) applyFeeUpdate(ev *domain.PoolEvent) {
	p := s.graph.GetPool(ev.PoolAddress)
	if p == nil {
		metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "unknown_pool").Inc()
		return
	}
	// Fee participates in the spot price, so the weights must follow.
	p.FeeRate = ev.FeeRate
	p.LastSeq = ev.Seq
	s.graph.UpdatePoolWeights(ev.PoolAddress)
	metrics.DispatcherEvents.WithLabelValues(ev.Kind.String(), "applied").Inc()
}

func validReserves(a, b *big.Int) bool {
	return a != nil && b != nil && a.Sign() > 0 && b.Sign() > 0
}

// ratioUnchanged reports whether old and new reserve ratios agree within
// epsilon. Computed in float64: the epsilon is far above float rounding for
// realistic reserve magnitudes.
func ratioUnchanged(oldA, oldB, newA, newB *big.Int) bool {
	if oldA == nil || oldB == nil || newA == nil || newB == nil {
		return false
	}
	fOldA, _ := new(big.Float).SetInt(oldA).Float64()
	fOldB, _ := new(big.Float).SetInt(oldB).Float64()
	fNewA, _ := new(big.Float).SetInt(newA).Float64()
	fNewB, _ := new(big.Float).SetInt(newB).Float64()
	if fOldB <= 0 || fNewB <= 0 {
		return false
	}
	oldRatio := fOldA / fOldB
	newRatio := fNewA / fNewB
	if oldRatio <= 0 {
		return false
	}
	diff := newRatio/oldRatio - 1
	if diff < 0 {
		diff = -diff
	}
	return diff <= reserveRatioEpsilon
}
