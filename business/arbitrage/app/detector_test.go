package app

import (
	"context"
	"io"
	"math/big"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	chain "github.com/dexarb/solarb/business/blockchain/domain"
	pricing "github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/logger"
	"github.com/dexarb/solarb/internal/token"
)

var calcRAY = token.New("4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R", "RAY", 6)

type fakePrices struct {
	table *pricing.PriceTable
}

func (f *fakePrices) Snapshot() *pricing.PriceTable { return f.table }

type fakeFeeOracle struct {
	fees *chain.NetworkFees
}

func (f *fakeFeeOracle) Current(ctx context.Context) (*chain.NetworkFees, error) {
	return f.fees, nil
}

func detectorQuote(dex, pool string, base, quote *token.Token, price string, depth int64, now time.Time) pricing.Quote {
	return pricing.Quote{
		Venue:         pricing.NewVenueID(dex, pool),
		Pair:          pricing.NewPair(base, quote),
		Price:         decimal.RequireFromString(price),
		AvailableBase: big.NewInt(depth),
		FeeBps:        10,
		ObservedAt:    now,
		ObservedSlot:  100,
	}
}

func newTestDetector(t *testing.T, quotes []pricing.Quote, flashLoans bool) *Detector {
	t.Helper()
	now := time.Now()
	cfg := DetectorConfig{
		BaseToken:               calcUSDC,
		SolToken:                calcSOL,
		MaxHops:                 3,
		MaxVenuesExplored:       256,
		MaxLiquidityFractionBps: 100,
		MinNetProfit:            big.NewInt(1),
		MaxTradeSize:            big.NewInt(1_000_000_000),
		OpportunityTTL:          2 * time.Second,
		FlashLoanEnabled:        flashLoans,
		FlashLoanFeeBps:         9,
	}
	log := logger.New(io.Discard, logger.LevelError, "test", nil)
	det, err := NewDetector(cfg,
		&fakePrices{table: pricing.NewPriceTable(quotes, now)},
		&fakeFeeOracle{fees: quietFees()},
		NewCalculator(),
		NewShield(DefaultShieldConfig()),
		log)
	require.NoError(t, err)
	return det
}

func TestDiscoverDirectSpread(t *testing.T) {
	now := time.Now()
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "poolB", calcSOL, calcUSDC, "100.60", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opps, "a 60 bps spread against 20 bps of fees must surface")

	opp := opps[0]
	assert.Equal(t, domain.KindDirect, opp.Kind)
	require.Len(t, opp.Path, 2)
	assert.NotEqual(t, opp.Path[0].Venue, opp.Path[1].Venue)
	assert.Equal(t, "USDC", opp.BaseToken().Symbol())
	assert.True(t, opp.Path[0].In.Equals(opp.Path[1].Out), "cycle must close")
	assert.Positive(t, opp.InputAmount.Sign())
	assert.Positive(t, opp.ExpectedNetProfit.Sign())
	// Every fee component is accounted.
	assert.Positive(t, opp.Fees.VenueFees.Sign())
	assert.Positive(t, opp.Fees.NetworkFee.Sign())
}

func TestDiscoverDirectSpreadAcrossOrientations(t *testing.T) {
	now := time.Now()
	// The same market listed in opposite orientations: raydium prices
	// SOL at 100.00 USDC, whirlpool prices USDC at 0.0099403 SOL, which
	// is SOL at ~100.60 USDC. The spread only exists across the two
	// listings.
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "poolB", calcUSDC, calcSOL, "0.0099403", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opps, "a spread split across pair orientations must surface")

	opp := opps[0]
	assert.Equal(t, domain.KindDirect, opp.Kind)
	require.Len(t, opp.Path, 2)
	assert.NotEqual(t, opp.Path[0].Venue, opp.Path[1].Venue)
	assert.True(t, opp.Path[0].In.Equals(opp.Path[1].Out), "cycle must close")
	assert.Positive(t, opp.ExpectedNetProfit.Sign())
}

func TestOptimalInputConvergesOnDeepPools(t *testing.T) {
	// Flash-loan sizing is bounded by liquidity alone, and synthetic
	// concentrated-liquidity reserves can put that bound at u128 scale.
	// The search must still converge promptly.
	det := newTestDetector(t, nil, false)
	now := time.Now()
	depth := new(big.Int).Lsh(big.NewInt(1), 150)
	path := []domain.Hop{
		{
			Venue:      pricing.NewVenueID("raydium", "poolA"),
			In:         calcUSDC,
			Out:        calcSOL,
			Rate:       decimal.RequireFromString("0.01"),
			FeeBps:     10,
			DepthIn:    new(big.Int).Set(depth),
			ObservedAt: now,
		},
		{
			Venue:      pricing.NewVenueID("whirlpool", "poolB"),
			In:         calcSOL,
			Out:        calcUSDC,
			Rate:       decimal.RequireFromString("100.60"),
			FeeBps:     10,
			DepthIn:    new(big.Int).Set(depth),
			ObservedAt: now,
		},
	}
	hi := new(big.Int).Lsh(big.NewInt(1), 145)

	done := make(chan *big.Int, 1)
	go func() {
		done <- det.optimalInput(context.Background(), path, hi, 5_000, decimal.NewFromInt(1), 0)
	}()
	select {
	case got := <-done:
		require.NotNil(t, got)
		assert.Positive(t, got.Sign())
		assert.True(t, got.Cmp(hi) <= 0, "sized input exceeds the liquidity bound")
	case <-time.After(10 * time.Second):
		t.Fatal("input sizing did not converge on u128-scale liquidity")
	}

	// A cancelled context stops the search immediately.
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	got := det.optimalInput(ctx, path, hi, 5_000, decimal.NewFromInt(1), 0)
	assert.Zero(t, got.Sign())
}

func TestDiscoverRejectsSingleVenue(t *testing.T) {
	now := time.Now()
	// Same venue twice is not a spread, whatever the prices say.
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}

func TestDiscoverNoSpreadNoOpportunity(t *testing.T) {
	now := time.Now()
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "poolB", calcSOL, calcUSDC, "100.01", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	// A 1 bp spread cannot clear 20 bps of venue fees.
	assert.Empty(t, opps)
}

func triangularQuotes(now time.Time) []pricing.Quote {
	return []pricing.Quote{
		detectorQuote("raydium", "sol-usdc", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "ray-sol", calcRAY, calcSOL, "0.0202", 1_000_000_000_000, now),
		detectorQuote("openbook", "ray-usdc", calcRAY, calcUSDC, "2.05", 1_000_000_000_000, now),
	}
}

func TestDiscoverTriangularCycle(t *testing.T) {
	det := newTestDetector(t, triangularQuotes(time.Now()), false)

	opps, err := det.Discover(context.Background())
	require.NoError(t, err)

	var tri *domain.Opportunity
	for _, o := range opps {
		if o.Kind == domain.KindTriangular {
			tri = o
			break
		}
	}
	require.NotNil(t, tri, "profitable three-hop cycle must surface")

	assert.Len(t, tri.Path, 3)
	assert.True(t, tri.Path[0].In.Equals(tri.Path[len(tri.Path)-1].Out), "cycle must close")
	seen := map[pricing.VenueID]bool{}
	for _, hop := range tri.Path {
		assert.False(t, seen[hop.Venue], "venue reused in path")
		seen[hop.Venue] = true
	}
	assert.Positive(t, tri.ExpectedNetProfit.Sign())
}

func TestDiscoverFlashLoanVariant(t *testing.T) {
	det := newTestDetector(t, triangularQuotes(time.Now()), true)

	opps, err := det.Discover(context.Background())
	require.NoError(t, err)

	var flash *domain.Opportunity
	for _, o := range opps {
		if o.Kind == domain.KindFlashLoan {
			flash = o
			break
		}
	}
	require.NotNil(t, flash, "flash-loan variant must surface when enabled")
	assert.Positive(t, flash.Fees.BorrowFee.Sign(), "flash loans pay a borrow fee")
	assert.Positive(t, flash.ExpectedNetProfit.Sign(), "profit must clear the borrow fee too")
}

func TestDiscoverRankingIsDeterministic(t *testing.T) {
	now := time.Now()
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "poolB", calcSOL, calcUSDC, "100.60", 1_000_000_000_000, now),
		detectorQuote("openbook", "poolC", calcSOL, calcUSDC, "100.30", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)

	first, err := det.Discover(context.Background())
	require.NoError(t, err)
	second, err := det.Discover(context.Background())
	require.NoError(t, err)

	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].PathString(), second[i].PathString())
	}
	// Best candidate first.
	for i := 1; i < len(first); i++ {
		assert.GreaterOrEqual(t, riskAdjusted(first[i-1]), riskAdjusted(first[i]))
	}
}

func TestDiscoverSlippageCap(t *testing.T) {
	now := time.Now()
	quotes := []pricing.Quote{
		detectorQuote("raydium", "poolA", calcSOL, calcUSDC, "100.00", 1_000_000_000_000, now),
		detectorQuote("whirlpool", "poolB", calcSOL, calcUSDC, "100.60", 1_000_000_000_000, now),
	}

	det := newTestDetector(t, quotes, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, opps)

	// The same spread under an effectively zero slippage tolerance
	// must be discarded: profit-optimal sizing always moves the pools.
	det.config.MaxSlippageBps = 1
	capped, err := det.Discover(context.Background())
	require.NoError(t, err)
	for _, o := range capped {
		allowed := new(big.Int).Div(o.InputAmount, big.NewInt(10_000))
		assert.True(t, o.Fees.Slippage.Cmp(allowed) <= 0,
			"surviving candidate exceeds the slippage cap")
	}
}

func TestDiscoverEmptyTable(t *testing.T) {
	det := newTestDetector(t, nil, false)
	opps, err := det.Discover(context.Background())
	require.NoError(t, err)
	assert.Empty(t, opps)
}
