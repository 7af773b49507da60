package engine

import (
	"context"
	"math/big"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/solarisfi/sor-engine/internal/config"
	"github.com/solarisfi/sor-engine/internal/domain"
	"github.com/solarisfi/sor-engine/internal/services/router"
)

func pk(n byte) solana.PublicKey {
	var k solana.PublicKey
	k[0] = n
	return k
}

var (
	mintA = pk(1)
	mintU = pk(2)
	mintW = pk(3)
)

func testConfig() *config.RouterConfig {
	return &config.RouterConfig{
		MaxHops:           3,
		TopK:              40,
		BeamWidth:         32,
		GasPerHopUSD:      0.01,
		SwapBatchWindowMS: 2000,
	}
}

func mockPool(addr byte, a, b solana.PublicKey, decA, decB uint8, reserveA, reserveB int64, feeRate uint32) *domain.Pool {
	p := &domain.Pool{
		Address:    pk(addr),
		Variant:    domain.VariantConstantProduct,
		TokenMintA: a,
		TokenMintB: b,
		DecimalsA:  decA,
		DecimalsB:  decB,
		FeeRate:    feeRate,
		Active:     true,
	}
	p.UpdateReserves(big.NewInt(reserveA), big.NewInt(reserveB))
	return p
}

func newTestService(t *testing.T, pools ...*domain.Pool) *Service {
	t.Helper()
	g := &router.Graph{}
	require.NoError(t, g.Configure(nil))
	dict := domain.TokenDictionary{
		mintA: {Mint: mintA, Symbol: "AAA", Decimals: 8},
		mintU: {Mint: mintU, Symbol: "USDx", Decimals: 6},
		mintW: {Mint: mintW, Symbol: "WWW", Decimals: 6},
	}
	g.BuildFromPools(pools, dict)

	return &Service{
		graph:     g,
		config:    testConfig(),
		evaluator: router.NewEvaluator(),
	}
}

// Single-hop quote at full capacity, checked against the closed form.
func TestQuoteSingleHop(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 25_000_000_000, 3000),
	)

	resp, err := svc.Quote(context.Background(), domain.QuoteRequest{
		SourceMint:     mintA,
		TargetMint:     mintU,
		Amount:         10, // human units, 8 decimals
		MaxHops:        1,
		TopK:           1,
		TargetUsdPrice: 1.0,
	})
	require.NoError(t, err)
	require.Len(t, resp.Paths, 1)
	require.Len(t, resp.Paths[0].Hops, 1)
	assert.Equal(t, pk(10), resp.Paths[0].Hops[0].PoolAddress)
	assert.Equal(t, mintA, resp.Paths[0].Hops[0].FromMint)
	assert.Equal(t, mintU, resp.Paths[0].Hops[0].ToMint)

	require.NotNil(t, resp.BestSingle)

	inRaw := 1e9 // 10 * 10^8
	inAfterFee := inRaw * 0.997
	grossRaw := inAfterFee * 25e9 / (5e9 + inAfterFee)
	gasRaw := 0.01 * 1e6 // $0.01 in 6-decimal output units

	assert.InEpsilon(t, grossRaw, resp.BestSingle.OutputRaw, 1e-9)
	assert.InEpsilon(t, gasRaw, resp.BestSingle.GasCostRaw, 1e-9)
	assert.InEpsilon(t, grossRaw-gasRaw, resp.BestSingle.NetOutputRaw, 1e-9)
	assert.InDelta(t, (grossRaw-gasRaw)/1e6, resp.BestSingle.NetOutputHuman, 1e-4)
}

// Two-hop composed rate beats the direct pool; bestSingle picks the two-hop.
func TestQuoteTwoHopBeatsDirect(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 50_000_000, 3000),  // direct, raw rate ~1%
		mockPool(11, mintA, mintW, 8, 6, 50_000_000_000, 550_000_000, 3000), // composes ~1.09% raw after fees
		mockPool(12, mintW, mintU, 6, 6, 5_000_000_000, 5_000_000_000, 3000),
	)

	resp, err := svc.Quote(context.Background(), domain.QuoteRequest{
		SourceMint:     mintA,
		TargetMint:     mintU,
		Amount:         1,
		TargetUsdPrice: 1.0,
	})
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(resp.Paths), 2)
	require.NotNil(t, resp.BestSingle)

	best := resp.Paths[resp.BestSingle.PathIndex]
	assert.Len(t, best.Hops, 2, "two-hop route must win")
}

func TestQuoteSplittingImproves(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 5_000_000_000, 3000),
		mockPool(11, mintA, mintU, 8, 6, 3_000_000_000, 3_000_000_000, 3000),
	)

	resp, err := svc.Quote(context.Background(), domain.QuoteRequest{
		SourceMint:      mintA,
		TargetMint:      mintU,
		Amount:          6, // 6e8 raw: 20% of the smallest pool
		TargetUsdPrice:  1.0,
		GasPerHopUSD:    0.0001,
		EnableSplitting: true,
	})
	require.NoError(t, err)
	require.NotNil(t, resp.BestSingle)
	require.NotNil(t, resp.Split)

	assert.Greater(t, resp.Split.TotalOutputRaw, resp.BestSingle.NetOutputRaw,
		"split must not lose to the best single execution")
	assert.NotEmpty(t, resp.Split.Allocations)

	totalIn := 0.0
	for _, a := range resp.Split.Allocations {
		assert.GreaterOrEqual(t, a.InputRaw, 0.0)
		totalIn += a.InputRaw
	}
	assert.InDelta(t, 6e8, totalIn, 1)
}

func TestQuoteDeterminism(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 5_000_000_000, 3000),
		mockPool(11, mintA, mintW, 8, 6, 5_000_000_000, 5_000_000_000, 3000),
		mockPool(12, mintW, mintU, 6, 6, 5_000_000_000, 5_000_000_000, 3000),
	)
	req := domain.QuoteRequest{
		SourceMint:      mintA,
		TargetMint:      mintU,
		Amount:          2,
		TargetUsdPrice:  1.0,
		EnableSplitting: true,
	}

	first, err := svc.Quote(context.Background(), req)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := svc.Quote(context.Background(), req)
		require.NoError(t, err)
		require.Equal(t, len(first.Paths), len(again.Paths))
		for j := range first.Paths {
			assert.Equal(t, first.Paths[j].Hops, again.Paths[j].Hops)
			assert.Equal(t, first.Paths[j].Score, again.Paths[j].Score)
		}
		assert.Equal(t, first.BestSingle.NetOutputRaw, again.BestSingle.NetOutputRaw)
	}
}

func TestQuoteInvalidInput(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 25_000_000_000, 3000),
	)

	cases := []struct {
		name string
		req  domain.QuoteRequest
	}{
		{"zero amount", domain.QuoteRequest{SourceMint: mintA, TargetMint: mintU, TargetUsdPrice: 1}},
		{"negative amount", domain.QuoteRequest{SourceMint: mintA, TargetMint: mintU, Amount: -1, TargetUsdPrice: 1}},
		{"same token", domain.QuoteRequest{SourceMint: mintA, TargetMint: mintA, Amount: 1, TargetUsdPrice: 1}},
		{"unknown source", domain.QuoteRequest{SourceMint: pk(99), TargetMint: mintU, Amount: 1, TargetUsdPrice: 1}},
		{"unknown target", domain.QuoteRequest{SourceMint: mintA, TargetMint: pk(99), Amount: 1, TargetUsdPrice: 1}},
		{"maxHops too large", domain.QuoteRequest{SourceMint: mintA, TargetMint: mintU, Amount: 1, MaxHops: 9, TargetUsdPrice: 1}},
		{"missing usd price for non-stable target", domain.QuoteRequest{SourceMint: mintA, TargetMint: mintU, Amount: 1}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Quote(context.Background(), tc.req)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
}

func TestQuoteNoRouteIsSoft(t *testing.T) {
	svc := newTestService(t,
		mockPool(10, mintA, mintU, 8, 6, 5_000_000_000, 25_000_000_000, 3000),
		mockPool(11, mintW, mintU, 6, 6, 5_000_000_000, 5_000_000_000, 3000),
	)

	// W reaches A only through U (W->U->A, two hops); with MaxHops 1 there
	// is no route from W to A.
	resp, err := svc.Quote(context.Background(), domain.QuoteRequest{
		SourceMint:     mintW,
		TargetMint:     mintA,
		Amount:         1,
		MaxHops:        1, // direct only; no W<->A pool exists
		TargetUsdPrice: 1.0,
	})
	require.NoError(t, err, "no route is not a hard failure")
	assert.Empty(t, resp.Paths)
	assert.NotEmpty(t, resp.Diagnostics.NoRouteReason)
}
