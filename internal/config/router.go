package config

import (
	"errors"

	"github.com/solarisfi/sor-engine/internal/common"
)

type RouterConfig struct {
	// MaxHops is the default hop bound for path search. Capped at 8 to bound
	// search cost; the searcher's visited set is a bitset sized to the token
	// count, so it does not limit the hop count itself.
	MaxHops int

	// TopK is the default number of candidate paths returned by the search.
	TopK int

	// BeamWidth bounds how many frontier states are expanded per round.
	BeamWidth int

	// GasPerHopUSD is the per-hop gas charge in USD.
	GasPerHopUSD float64

	// SwapBatchWindowMS is the window over which Swapped events for the same
	// pool are coalesced into one weight recomputation.
	SwapBatchWindowMS int

	// MinInitialEffRatio drops candidate paths whose first-sample effective
	// rate falls below this fraction of the best path's. 0 disables.
	MinInitialEffRatio float64
}

func (c *RouterConfig) Key() string {
	return ROUTER_CONFIG_KEY
}

func (c *RouterConfig) Load() error {
	c.MaxHops = common.GetEnvOrDefaultInt("ROUTER_MAX_HOPS", 3)
	c.TopK = common.GetEnvOrDefaultInt("ROUTER_TOP_K", 40)
	c.BeamWidth = common.GetEnvOrDefaultInt("ROUTER_BEAM_WIDTH", 32)
	c.GasPerHopUSD = common.GetEnvOrDefaultFloat("ROUTER_GAS_PER_HOP_USD", 0.01)
	c.SwapBatchWindowMS = common.GetEnvOrDefaultInt("ROUTER_SWAP_BATCH_WINDOW_MS", 2000)
	c.MinInitialEffRatio = common.GetEnvOrDefaultFloat("ROUTER_MIN_INITIAL_EFF_RATIO", 0)
	return c.Validate()
}

func (c *RouterConfig) Validate() error {
	if c.MaxHops < 1 || c.MaxHops > 8 {
		return errors.New("ROUTER_MAX_HOPS must be in [1,8]")
	}
	if c.TopK < 1 || c.BeamWidth < 1 {
		return errors.New("ROUTER_TOP_K and ROUTER_BEAM_WIDTH must be positive")
	}
	if c.GasPerHopUSD < 0 {
		return errors.New("ROUTER_GAS_PER_HOP_USD must be non-negative")
	}
	if c.MinInitialEffRatio < 0 || c.MinInitialEffRatio > 1 {
		return errors.New("ROUTER_MIN_INITIAL_EFF_RATIO must be in [0,1]")
	}
	return nil
}
