package pool

import (
	"math"
)

// cpmmSwap is the constant-product closed form in float64:
// out = in' * Rout / (Rin + in') with in' = in * (1 - fee).
func cpmmSwap(amountIn, reserveIn, reserveOut, fee float64) float64 {
	inAfterFee := amountIn * (1 - fee)
	if inAfterFee <= 0 {
		return 0
	}
	out := inAfterFee * reserveOut / (reserveIn + inAfterFee)
	// The exact form never drains the reserve; float rounding can reach it.
	if out >= reserveOut {
		return math.Nextafter(reserveOut, 0)
	}
	return out
}

// CpmmMaxInput solves the constant-product formula for the largest input that
// removes at most outFraction of reserveOut:
//
//	dx' = f/(1-f) * Rin, dx = dx' / (1-fee)
//
// Used as the coarse per-edge individual-swap cap irrespective of variant.
func CpmmMaxInput(reserveIn, fee, outFraction float64) float64 {
	if reserveIn <= 0 || outFraction <= 0 || outFraction >= 1 {
		return math.Inf(1)
	}
	dxAfterFee := outFraction / (1 - outFraction) * reserveIn
	denom := 1 - fee
	if denom <= 0 {
		return math.Inf(1)
	}
	return dxAfterFee / denom
}

// CpmmSwapU256 is the exact integer constant-product quote, used where the
// caller has uint64-representable raw amounts and wants rounding identical to
// on-chain execution: out = floor(in*(base-fee)*Rout / (Rin*base + in*(base-fee))).
func CpmmSwapU256(amountIn, reserveIn, reserveOut uint64, feeRate uint32, feeBase uint64) uint64 {
	if amountIn == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}

	inEff := GetU256()
	num := GetU256()
	den := GetU256()
	tmp := GetU256()
	defer func() {
		PutU256(inEff)
		PutU256(num)
		PutU256(den)
		PutU256(tmp)
	}()

	// inEff = amountIn * (feeBase - feeRate)
	inEff.SetUint64(amountIn)
	tmp.SetUint64(feeBase - uint64(feeRate))
	inEff.Mul(inEff, tmp)

	// num = inEff * reserveOut
	num.SetUint64(reserveOut)
	num.Mul(num, inEff)

	// den = reserveIn * feeBase + inEff
	den.SetUint64(reserveIn)
	tmp.SetUint64(feeBase)
	den.Mul(den, tmp)
	den.Add(den, inEff)

	if den.IsZero() {
		return 0
	}
	num.Div(num, den)
	if !num.IsUint64() {
		return reserveOut
	}
	out := num.Uint64()
	if out > reserveOut {
		return reserveOut
	}
	return out
}
