package domain

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"
)

type PoolRegistry map[solana.PublicKey]*Pool

type PoolVariant uint8

const (
	VariantConstantProduct PoolVariant = iota
	VariantConcentrated
	VariantStable
)

func (v PoolVariant) String() string {
	switch v {
	case VariantConstantProduct:
		return "ConstantProduct"
	case VariantConcentrated:
		return "Concentrated"
	case VariantStable:
		return "Stable"
	default:
		return "UNKNOWN"
	}
}

type PoolFlags uint64

const (
	FlagActive PoolFlags = 1 << 0
	FlagReady  PoolFlags = 1 << 1
	FlagLowFee PoolFlags = 1 << 2
)

const FlagReadyMask = FlagActive | FlagReady

// FeeBase is the denominator of Pool.FeeRate: a fee of 3000 is 0.3%.
const FeeBase = 1_000_000

type Pool struct {
	Address    solana.PublicKey `json:"address"`
	Variant    PoolVariant      `json:"variant"`
	TokenMintA solana.PublicKey `json:"tokenMintA"`
	TokenMintB solana.PublicKey `json:"tokenMintB"`
	DecimalsA  uint8            `json:"decimalsA"`
	DecimalsB  uint8            `json:"decimalsB"`
	ReserveA   *big.Int         `json:"reserveA"`
	ReserveB   *big.Int         `json:"reserveB"`
	FeeRate    uint32           `json:"feeRate"` // parts per FeeBase
	Active     bool             `json:"active"`
	LastSeq    uint64           `json:"lastSeq"` // commit sequence of the last applied event
	Flags      PoolFlags        `json:"-"`

	// float64 shadow fields for the weight/score hot path. Kept in sync with
	// ReserveA/ReserveB by UpdateReserves, UpdateReserveA/UpdateReserveB and
	// SyncShadowReserves.
	ReserveAF float64 `json:"-"`
	ReserveBF float64 `json:"-"`

	// Variant-specific state (concentrated: ConcentratedData, stable: StableData)
	TypeSpecific interface{} `json:"-"`
}

// ConcentratedData carries the state a concentrated-liquidity pool exposes to
// the quoting oracle. The oracle approximates the active range with virtual
// constant-product reserves derived from sqrtPrice and liquidity.
type ConcentratedData struct {
	SqrtPriceX64 *big.Int `json:"sqrtPriceX64"`
	Liquidity    *big.Int `json:"liquidity"`
}

// StableData carries the amplification coefficient of a stable-curve pool.
type StableData struct {
	Amplification uint64 `json:"amplification"`
}

func (p *Pool) IsReady() bool {
	return p.Flags&FlagReadyMask == FlagReadyMask
}

func (p *Pool) Fee() float64 {
	return float64(p.FeeRate) / FeeBase
}

func (p *Pool) UpdateFlags() {
	p.Flags = 0
	if p.Active {
		p.Flags |= FlagActive
	}
	// A pool is ready once both reserves hold at least one smallest unit.
	if p.ReserveAF >= 1 && p.ReserveBF >= 1 {
		p.Flags |= FlagReady
	}
	if p.FeeRate < 3000 {
		p.Flags |= FlagLowFee
	}
}

func (p *Pool) SetActive(active bool) {
	p.Active = active
	if active {
		p.Flags |= FlagActive
	} else {
		p.Flags &^= FlagActive
	}
}

func (p *Pool) UpdateReserveA(reserve *big.Int) {
	p.ReserveA = reserve
	p.ReserveAF = bigToFloat(reserve)
}

func (p *Pool) UpdateReserveB(reserve *big.Int) {
	p.ReserveB = reserve
	p.ReserveBF = bigToFloat(reserve)
}

func (p *Pool) UpdateReserves(reserveA, reserveB *big.Int) {
	p.UpdateReserveA(reserveA)
	p.UpdateReserveB(reserveB)
	p.UpdateFlags()
}

// SyncShadowReserves syncs the float64 shadow fields from existing big.Int
// reserves. Call after loading a pool from persistence or when reserves were
// set directly.
func (p *Pool) SyncShadowReserves() {
	p.ReserveAF = bigToFloat(p.ReserveA)
	p.ReserveBF = bigToFloat(p.ReserveB)
}

// ReservesFor returns (reserveIn, reserveOut, decimalsIn, decimalsOut) for a
// swap from -> to through this pool. ok is false when the pair does not match.
func (p *Pool) ReservesFor(from, to solana.PublicKey) (float64, float64, uint8, uint8, bool) {
	switch {
	case p.TokenMintA == from && p.TokenMintB == to:
		return p.ReserveAF, p.ReserveBF, p.DecimalsA, p.DecimalsB, true
	case p.TokenMintB == from && p.TokenMintA == to:
		return p.ReserveBF, p.ReserveAF, p.DecimalsB, p.DecimalsA, true
	default:
		return 0, 0, 0, 0, false
	}
}

func bigToFloat(v *big.Int) float64 {
	if v == nil {
		return 0
	}
	f, _ := new(big.Float).SetInt(v).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return math.MaxFloat64
	}
	return f
}
