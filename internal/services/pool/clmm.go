package pool

import (
	"math"
	"math/big"

	"github.com/gagliardetto/solana-go"

	"github.com/solarisfi/sor-engine/internal/domain"
)

// virtualReserves maps the active range of a concentrated-liquidity pool to
// constant-product-equivalent reserves: x = L / sqrtP, y = L * sqrtP, where
// sqrtP is the Q64.64 sqrt price. The closed-form swap on these virtual
// reserves matches the in-range CLMM curve; crossing a range boundary is the
// per-variant collaborator's concern.
func virtualReserves(p *domain.Pool, from solana.PublicKey) (float64, float64, bool) {
	data, ok := p.TypeSpecific.(*domain.ConcentratedData)
	if !ok || data == nil || data.SqrtPriceX64 == nil || data.Liquidity == nil {
		return 0, 0, false
	}

	sqrtP := q64ToFloat(data.SqrtPriceX64)
	liq, _ := new(big.Float).SetInt(data.Liquidity).Float64()
	if sqrtP <= 0 || liq <= 0 || math.IsInf(liq, 0) {
		return 0, 0, false
	}

	x := liq / sqrtP // token A units
	y := liq * sqrtP // token B units

	if from == p.TokenMintA {
		return x, y, true
	}
	return y, x, true
}

func q64ToFloat(v *big.Int) float64 {
	f, _ := new(big.Float).Quo(
		new(big.Float).SetInt(v),
		new(big.Float).SetInt(new(big.Int).Lsh(big.NewInt(1), 64)),
	).Float64()
	return f
}
