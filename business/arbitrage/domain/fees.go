package domain

import "math/big"

// FeeBreakdown itemizes every cost of a candidate path. All amounts
// are base units of the path's input token; TipLamports additionally
// carries the tip in native lamports for bundle construction.
type FeeBreakdown struct {
	VenueFees   *big.Int
	Slippage    *big.Int
	NetworkFee  *big.Int
	MEVTip      *big.Int
	BorrowFee   *big.Int
	TipLamports uint64
}

// ZeroFeeBreakdown allocates an all-zero breakdown.
func ZeroFeeBreakdown() FeeBreakdown {
	return FeeBreakdown{
		VenueFees:  new(big.Int),
		Slippage:   new(big.Int),
		NetworkFee: new(big.Int),
		MEVTip:     new(big.Int),
		BorrowFee:  new(big.Int),
	}
}

// Total sums every fee component.
func (f FeeBreakdown) Total() *big.Int {
	total := new(big.Int)
	for _, part := range []*big.Int{f.VenueFees, f.Slippage, f.NetworkFee, f.MEVTip, f.BorrowFee} {
		if part != nil {
			total.Add(total, part)
		}
	}
	return total
}

// NetProfit is gross profit minus every fee component.
func (f FeeBreakdown) NetProfit(gross *big.Int) *big.Int {
	return new(big.Int).Sub(gross, f.Total())
}
