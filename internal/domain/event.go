package domain

import (
	"math/big"

	"github.com/gagliardetto/solana-go"
)

type EventKind uint8

const (
	EventPoolCreated EventKind = iota
	EventPoolDisabled
	EventLiquidityAdded
	EventLiquidityRemoved
	EventSwapped
	EventFeeUpdated
)

func (k EventKind) String() string {
	switch k {
	case EventPoolCreated:
		return "PoolCreated"
	case EventPoolDisabled:
		return "PoolDisabled"
	case EventLiquidityAdded:
		return "LiquidityAdded"
	case EventLiquidityRemoved:
		return "LiquidityRemoved"
	case EventSwapped:
		return "Swapped"
	case EventFeeUpdated:
		return "FeeUpdated"
	default:
		return "UNKNOWN"
	}
}

// PoolEvent is one pool mutation delivered by the ingestion collaborator.
// Ordering within a batch is meaningful; batches arrive in commit order.
type PoolEvent struct {
	Kind        EventKind        `json:"kind"`
	PoolAddress solana.PublicKey `json:"poolAddress"`
	Seq         uint64           `json:"seq"`

	OldReserveA *big.Int `json:"oldReserveA,omitempty"`
	OldReserveB *big.Int `json:"oldReserveB,omitempty"`
	NewReserveA *big.Int `json:"newReserveA,omitempty"`
	NewReserveB *big.Int `json:"newReserveB,omitempty"`

	// FeeRate applies to FeeUpdated only, parts per FeeBase.
	FeeRate uint32 `json:"feeRate,omitempty"`

	// Pool carries the full record for PoolCreated.
	Pool *Pool `json:"pool,omitempty"`
}
