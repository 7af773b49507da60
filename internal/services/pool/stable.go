package pool

import (
	"math"

	"github.com/solarisfi/sor-engine/internal/domain"
)

const stableIterations = 64

// stableAmp returns the amplification coefficient, defaulting to a mild curve
// when the pool record carries none.
func stableAmp(p *domain.Pool) float64 {
	if data, ok := p.TypeSpecific.(*domain.StableData); ok && data != nil && data.Amplification > 0 {
		return float64(data.Amplification)
	}
	return 100
}

// stableInvariantD solves A·n^n·Σx + D = A·n^n·D + D^(n+1)/(n^n·Πx) for the
// two-asset case by fixed-point iteration.
func stableInvariantD(amp, x, y float64) float64 {
	s := x + y
	if s <= 0 {
		return 0
	}
	ann := amp * 4 // A * n^n, n = 2
	d := s
	for i := 0; i < stableIterations; i++ {
		dp := d * d * d / (4 * x * y)
		prev := d
		d = (ann*s + 2*dp) * d / ((ann-1)*d + 3*dp)
		if math.Abs(d-prev) <= 1e-9 {
			break
		}
	}
	return d
}

// stableY solves the invariant for the output-side balance given the new
// input-side balance, then returns it.
func stableY(amp, xNew, d float64) float64 {
	if xNew <= 0 || d <= 0 {
		return 0
	}
	ann := amp * 4
	c := d * d * d / (4 * xNew * ann)
	b := xNew + d/ann - d
	y := d
	for i := 0; i < stableIterations; i++ {
		prev := y
		y = (y*y + c) / (2*y + b)
		if math.Abs(y-prev) <= 1e-9 {
			break
		}
	}
	return y
}

func stableSwap(p *domain.Pool, amountIn, reserveIn, reserveOut float64) float64 {
	amp := stableAmp(p)
	d := stableInvariantD(amp, reserveIn, reserveOut)
	if d <= 0 {
		return 0
	}
	inAfterFee := amountIn * (1 - p.Fee())
	yNew := stableY(amp, reserveIn+inAfterFee, d)
	out := reserveOut - yNew
	if out < 0 {
		return 0
	}
	if out > reserveOut {
		return reserveOut
	}
	return out
}

// stableSpot approximates the marginal rate by a small probe against the
// invariant; fee is applied by the caller.
func stableSpot(p *domain.Pool, reserveIn, reserveOut float64) float64 {
	probe := reserveIn * 1e-6
	if probe <= 0 {
		return 0
	}
	amp := stableAmp(p)
	d := stableInvariantD(amp, reserveIn, reserveOut)
	if d <= 0 {
		return 0
	}
	out := reserveOut - stableY(amp, reserveIn+probe, d)
	if out <= 0 {
		return 0
	}
	return out / probe
}
