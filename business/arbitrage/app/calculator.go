// Package app contains the arbitrage context's services: the fee and
// profit model, the opportunity detector, the risk gate and the MEV
// shield.
package app

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/dexarb/solarb/business/arbitrage/domain"
)

var ErrNoDepth = errors.New("calculator: hop has no liquidity depth")

// EvalInput is everything the fee model needs for one candidate.
// LamportPrice converts native lamports into the path's input token
// base units; the caller derives it from the current price table.
type EvalInput struct {
	Path               []domain.Hop
	InputAmount        *big.Int
	NetworkFeeLamports uint64
	TipLamports        uint64
	LamportPrice       decimal.Decimal
	BorrowFeeBps       uint32
}

// Evaluation is the fee model's answer. All amounts are input-token
// base units.
type Evaluation struct {
	GrossOutput *big.Int
	NetOutput   *big.Int
	GrossProfit *big.Int
	NetProfit   *big.Int
	Fees        domain.FeeBreakdown
}

// Calculator is the pure fee and profit model. Same inputs always
// produce the same evaluation; nothing here touches the network.
type Calculator struct{}

func NewCalculator() *Calculator { return &Calculator{} }

// Evaluate walks the path three times in parallel: fee-free, with
// venue fees, and with venue fees plus size-derived slippage. The
// differences between the walks itemize the cost components exactly.
func (c *Calculator) Evaluate(in EvalInput) (Evaluation, error) {
	if len(in.Path) == 0 {
		return Evaluation{}, domain.ErrEmptyPath
	}
	if in.InputAmount == nil || in.InputAmount.Sign() <= 0 {
		return Evaluation{}, fmt.Errorf("calculator: non-positive input amount")
	}

	gross := new(big.Int).Set(in.InputAmount)
	afterVenue := new(big.Int).Set(in.InputAmount)
	afterAll := new(big.Int).Set(in.InputAmount)

	for _, hop := range in.Path {
		if hop.DepthIn == nil || hop.DepthIn.Sign() <= 0 {
			return Evaluation{}, ErrNoDepth
		}

		gross = hop.Convert(gross)

		vOut := hop.Convert(afterVenue)
		afterVenue = new(big.Int).Sub(vOut, scaleBps(vOut, uint32(hop.FeeBps)))

		// Slippage scales with the hop's share of pool depth: a trade
		// consuming 1% of the input side loses about 1% of its output
		// to price impact.
		aOut := hop.Convert(afterAll)
		fee := scaleBps(aOut, uint32(hop.FeeBps))
		slip := new(big.Int).Mul(aOut, afterAll)
		slip.Quo(slip, hop.DepthIn)
		afterAll = new(big.Int).Sub(aOut, fee)
		afterAll.Sub(afterAll, slip)
		if afterAll.Sign() < 0 {
			afterAll.SetInt64(0)
		}
	}

	fees := domain.ZeroFeeBreakdown()
	fees.VenueFees.Sub(gross, afterVenue)
	fees.Slippage.Sub(afterVenue, afterAll)
	fees.NetworkFee = lamportsToBase(in.NetworkFeeLamports, in.LamportPrice)
	fees.MEVTip = lamportsToBase(in.TipLamports, in.LamportPrice)
	fees.BorrowFee = scaleBps(in.InputAmount, in.BorrowFeeBps)
	fees.TipLamports = in.TipLamports

	grossProfit := new(big.Int).Sub(gross, in.InputAmount)
	netProfit := new(big.Int).Sub(afterAll, in.InputAmount)
	netProfit.Sub(netProfit, fees.NetworkFee)
	netProfit.Sub(netProfit, fees.MEVTip)
	netProfit.Sub(netProfit, fees.BorrowFee)

	return Evaluation{
		GrossOutput: gross,
		NetOutput:   afterAll,
		GrossProfit: grossProfit,
		NetProfit:   netProfit,
		Fees:        fees,
	}, nil
}

func scaleBps(amount *big.Int, bps uint32) *big.Int {
	if amount == nil || amount.Sign() <= 0 || bps == 0 {
		return new(big.Int)
	}
	scaled := new(big.Int).Mul(amount, big.NewInt(int64(bps)))
	return scaled.Quo(scaled, big.NewInt(10_000))
}

// lamportsToBase converts a lamport cost into input-token base units,
// rounding up so fees are never understated.
func lamportsToBase(lamports uint64, lamportPrice decimal.Decimal) *big.Int {
	if lamports == 0 || lamportPrice.Sign() <= 0 {
		return new(big.Int)
	}
	cost := decimal.NewFromUint64(lamports).Mul(lamportPrice)
	return cost.Ceil().BigInt()
}
