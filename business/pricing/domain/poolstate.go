package domain

import (
	"math/big"
	"time"

	"github.com/shopspring/decimal"
)

// PoolState is a decoded snapshot of one on-chain pool account. Base
// and quote reserves are raw token base units. Concentrated pools also
// carry their curve parameters; for quoting purposes the decoder
// synthesizes virtual reserves so every format exposes the same shape.
type PoolState struct {
	Venue  VenueID
	Format VenueFormat
	Pair   Pair

	BaseReserve  *big.Int
	QuoteReserve *big.Int
	FeeBps       uint16

	// Concentrated-liquidity parameters, zero for other formats.
	SqrtPrice   *big.Int
	Liquidity   *big.Int
	ActiveTick  int32
	TickSpacing uint16

	ObservedAt   time.Time
	ObservedSlot uint64
}

// HasLiquidity reports whether both sides hold a nonzero balance.
func (s *PoolState) HasLiquidity() bool {
	return s.BaseReserve != nil && s.QuoteReserve != nil &&
		s.BaseReserve.Sign() > 0 && s.QuoteReserve.Sign() > 0
}

// Price returns the spot price in quote units per base unit, adjusted
// for the decimal difference between the two tokens. Zero when the
// pool has no liquidity.
func (s *PoolState) Price() decimal.Decimal {
	if !s.HasLiquidity() {
		return decimal.Zero
	}
	base := decimal.NewFromBigInt(s.BaseReserve, -int32(s.Pair.Base.Decimals()))
	quote := decimal.NewFromBigInt(s.QuoteReserve, -int32(s.Pair.Quote.Decimals()))
	return quote.Div(base)
}

// ToQuote converts the snapshot into a quote attributable to its
// source.
func (s *PoolState) ToQuote(source string) Quote {
	var available *big.Int
	if s.BaseReserve != nil {
		available = new(big.Int).Set(s.BaseReserve)
	} else {
		available = new(big.Int)
	}
	return Quote{
		Venue:         s.Venue,
		Pair:          s.Pair,
		Price:         s.Price(),
		AvailableBase: available,
		FeeBps:        s.FeeBps,
		ObservedAt:    s.ObservedAt,
		ObservedSlot:  s.ObservedSlot,
		Source:        source,
	}
}

// SyntheticReserves derives virtual constant-product reserves from
// concentrated-curve parameters so downstream sizing math treats all
// formats alike. sqrtPrice is a Q64.64 fixed-point square root of the
// quote/base price.
func SyntheticReserves(sqrtPrice, liquidity *big.Int) (base, quote *big.Int) {
	base = new(big.Int)
	quote = new(big.Int)
	if sqrtPrice == nil || liquidity == nil || sqrtPrice.Sign() <= 0 || liquidity.Sign() <= 0 {
		return base, quote
	}
	// base = L << 64 / sqrtP, quote = L * sqrtP >> 64
	base.Lsh(liquidity, 64)
	base.Quo(base, sqrtPrice)
	quote.Mul(liquidity, sqrtPrice)
	quote.Rsh(quote, 64)
	return base, quote
}
