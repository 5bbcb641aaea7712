package app

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/dexarb/solarb/business/arbitrage/domain"
	pricing "github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/token"
)

var (
	calcSOL  = token.New("So11111111111111111111111111111111111111112", "SOL", 9)
	calcUSDC = token.New("EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "USDC", 6)
)

const deepPool = 1_000_000_000_000_000

func calcHop(venue string, in, out *token.Token, rate string, feeBps uint16, depth int64) domain.Hop {
	return domain.Hop{
		Venue:   pricing.NewVenueID("raydium", venue),
		In:      in,
		Out:     out,
		Rate:    decimal.RequireFromString(rate),
		FeeBps:  feeBps,
		DepthIn: big.NewInt(depth),
	}
}

// Buy SOL at 100 on one venue, sell at 100.60 on another.
func spreadPath(feeBps uint16, depth int64) []domain.Hop {
	return []domain.Hop{
		calcHop("cheap", calcUSDC, calcSOL, "0.01", feeBps, depth),
		calcHop("rich", calcSOL, calcUSDC, "100.60", feeBps, depth),
	}
}

func TestEvaluateFeeFreeSpread(t *testing.T) {
	calc := NewCalculator()

	// 100 USDC through a fee-free deep pool pair nets the raw spread.
	eval, err := calc.Evaluate(EvalInput{
		Path:        spreadPath(0, deepPool),
		InputAmount: big.NewInt(100_000_000),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	if eval.GrossOutput.Cmp(big.NewInt(100_600_000)) != 0 {
		t.Errorf("gross output = %s, want 100600000", eval.GrossOutput)
	}
	if eval.GrossProfit.Cmp(big.NewInt(600_000)) != 0 {
		t.Errorf("gross profit = %s, want 600000", eval.GrossProfit)
	}
	if eval.Fees.VenueFees.Sign() != 0 {
		t.Errorf("venue fees = %s, want 0", eval.Fees.VenueFees)
	}
	// Depth is effectively infinite so slippage is negligible.
	if eval.Fees.Slippage.Cmp(big.NewInt(1_000)) > 0 {
		t.Errorf("slippage = %s, want near zero", eval.Fees.Slippage)
	}
}

func TestEvaluateVenueFees(t *testing.T) {
	calc := NewCalculator()

	withFees, err := calc.Evaluate(EvalInput{
		Path:        spreadPath(25, deepPool),
		InputAmount: big.NewInt(100_000_000),
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// Two hops at 25 bps each cost about 50 bps of notional.
	lo, hi := big.NewInt(490_000), big.NewInt(510_000)
	if withFees.Fees.VenueFees.Cmp(lo) < 0 || withFees.Fees.VenueFees.Cmp(hi) > 0 {
		t.Errorf("venue fees = %s, want within [%s, %s]", withFees.Fees.VenueFees, lo, hi)
	}
	if withFees.NetProfit.Cmp(withFees.GrossProfit) >= 0 {
		t.Error("net profit must be below gross profit once fees apply")
	}
}

func TestEvaluateSlippageGrowsWithSize(t *testing.T) {
	calc := NewCalculator()
	depth := int64(10_000_000_000)

	small, err := calc.Evaluate(EvalInput{
		Path:        spreadPath(0, depth),
		InputAmount: big.NewInt(10_000_000),
	})
	if err != nil {
		t.Fatalf("small: %v", err)
	}
	large, err := calc.Evaluate(EvalInput{
		Path:        spreadPath(0, depth),
		InputAmount: big.NewInt(1_000_000_000),
	})
	if err != nil {
		t.Fatalf("large: %v", err)
	}

	// 100x the size must cost far more than 100x the slippage:
	// impact is quadratic in trade size.
	scaledSmall := new(big.Int).Mul(small.Fees.Slippage, big.NewInt(100))
	if large.Fees.Slippage.Cmp(scaledSmall) <= 0 {
		t.Errorf("slippage %s at 100x size is not superlinear vs %s", large.Fees.Slippage, small.Fees.Slippage)
	}
}

func TestEvaluateProfitMonotonicity(t *testing.T) {
	calc := NewCalculator()
	input := big.NewInt(100_000_000)
	lamportPrice := decimal.RequireFromString("0.00015")

	baseline, err := calc.Evaluate(EvalInput{
		Path:               spreadPath(10, deepPool),
		InputAmount:        input,
		NetworkFeeLamports: 5_000,
		TipLamports:        10_000,
		LamportPrice:       lamportPrice,
	})
	if err != nil {
		t.Fatalf("baseline: %v", err)
	}

	worse := []EvalInput{
		{Path: spreadPath(50, deepPool), InputAmount: input, NetworkFeeLamports: 5_000, TipLamports: 10_000, LamportPrice: lamportPrice},
		{Path: spreadPath(10, deepPool), InputAmount: input, NetworkFeeLamports: 50_000, TipLamports: 10_000, LamportPrice: lamportPrice},
		{Path: spreadPath(10, deepPool), InputAmount: input, NetworkFeeLamports: 5_000, TipLamports: 100_000, LamportPrice: lamportPrice},
		{Path: spreadPath(10, deepPool), InputAmount: input, NetworkFeeLamports: 5_000, TipLamports: 10_000, LamportPrice: lamportPrice, BorrowFeeBps: 9},
		{Path: spreadPath(10, 10_000_000_000), InputAmount: input, NetworkFeeLamports: 5_000, TipLamports: 10_000, LamportPrice: lamportPrice},
	}

	for i, in := range worse {
		eval, err := calc.Evaluate(in)
		if err != nil {
			t.Fatalf("case %d: %v", i, err)
		}
		if eval.NetProfit.Cmp(baseline.NetProfit) > 0 {
			t.Errorf("case %d: raising a fee component increased net profit (%s > %s)",
				i, eval.NetProfit, baseline.NetProfit)
		}
	}
}

func TestEvaluateFlashLoanBorrowFee(t *testing.T) {
	calc := NewCalculator()
	input := big.NewInt(100_000_000)

	eval, err := calc.Evaluate(EvalInput{
		Path:         spreadPath(0, deepPool),
		InputAmount:  input,
		BorrowFeeBps: 9,
	})
	if err != nil {
		t.Fatalf("Evaluate: %v", err)
	}

	// 9 bps on 100 USDC principal.
	if eval.Fees.BorrowFee.Cmp(big.NewInt(90_000)) != 0 {
		t.Errorf("borrow fee = %s, want 90000", eval.Fees.BorrowFee)
	}
}

func TestEvaluateNoDepth(t *testing.T) {
	calc := NewCalculator()
	path := spreadPath(0, deepPool)
	path[1].DepthIn = big.NewInt(0)

	_, err := calc.Evaluate(EvalInput{Path: path, InputAmount: big.NewInt(1_000)})
	if err != ErrNoDepth {
		t.Errorf("err = %v, want ErrNoDepth", err)
	}
}

func TestLamportConversionRoundsUp(t *testing.T) {
	// 3 lamports at 0.0004 base units each is 0.0012; the fee must
	// round to 1, never 0.
	got := lamportsToBase(3, decimal.RequireFromString("0.0004"))
	if got.Cmp(big.NewInt(1)) != 0 {
		t.Errorf("lamportsToBase = %s, want 1", got)
	}
	if lamportsToBase(0, decimal.NewFromInt(1)).Sign() != 0 {
		t.Error("zero lamports must cost zero")
	}
}
