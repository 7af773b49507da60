// Package pool implements the swap oracle over the supported pool variants.
// Every function is pure with respect to the pool's current reserve snapshot.
package pool

import (
	"math"

	"github.com/gagliardetto/solana-go"

	"github.com/solarisfi/sor-engine/internal/domain"
)

// QuoterFunc quotes a discrete swap through a pool. Injected into the route
// evaluator so tests can stub pool math.
type QuoterFunc func(p *domain.Pool, amountIn float64, from, to solana.PublicKey) float64

// SpotPrice returns the instantaneous marginal rate of `to` per unit `from`
// after fee. Returns 0 when either reserve is empty (edge absent).
func SpotPrice(p *domain.Pool, from, to solana.PublicKey) float64 {
	reserveIn, reserveOut, _, _, ok := p.ReservesFor(from, to)
	if !ok || reserveIn <= 0 || reserveOut <= 0 {
		return 0
	}

	var price float64
	switch p.Variant {
	case domain.VariantConstantProduct:
		price = reserveOut / reserveIn
	case domain.VariantConcentrated:
		vin, vout, ok := virtualReserves(p, from)
		if !ok {
			price = reserveOut / reserveIn
		} else {
			price = vout / vin
		}
	case domain.VariantStable:
		price = stableSpot(p, reserveIn, reserveOut)
	default:
		return 0
	}

	price *= 1 - p.Fee()
	if !isFinitePositive(price) {
		return 0
	}
	return price
}

// Swap returns the output for a discrete input in smallest units. Monotone
// non-decreasing and concave in amountIn. Returns 0 when the pool cannot
// serve the pair or either reserve is empty (path broken). Oversized inputs
// saturate; the result stays non-negative and finite.
func Swap(p *domain.Pool, amountIn float64, from, to solana.PublicKey) float64 {
	reserveIn, reserveOut, _, _, ok := p.ReservesFor(from, to)
	if !ok || reserveIn <= 0 || reserveOut <= 0 || amountIn <= 0 {
		return 0
	}

	var out float64
	switch p.Variant {
	case domain.VariantConstantProduct:
		out = cpmmSwap(amountIn, reserveIn, reserveOut, p.Fee())
	case domain.VariantConcentrated:
		vin, vout, ok := virtualReserves(p, from)
		if !ok {
			out = cpmmSwap(amountIn, reserveIn, reserveOut, p.Fee())
		} else {
			// Output is still bounded by the real reserve, not the virtual one.
			out = math.Min(cpmmSwap(amountIn, vin, vout, p.Fee()), reserveOut)
		}
	case domain.VariantStable:
		out = stableSwap(p, amountIn, reserveIn, reserveOut)
	default:
		return 0
	}

	if !isFinite(out) || out < 0 {
		return 0
	}
	return out
}

func isFinite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

func isFinitePositive(f float64) bool {
	return isFinite(f) && f > 0
}
