package domain

import (
	"fmt"

	"github.com/dexarb/solarb/internal/token"
)

// Pair is an ordered trading pair: prices read as quote units per one
// base unit.
type Pair struct {
	Base  *token.Token
	Quote *token.Token
}

func NewPair(base, quote *token.Token) Pair {
	if base == nil || quote == nil {
		panic("pair: nil token")
	}
	if base.Mint() == quote.Mint() {
		panic("pair: base and quote are the same token")
	}
	return Pair{Base: base, Quote: quote}
}

// Invert swaps base and quote.
func (p Pair) Invert() Pair {
	return Pair{Base: p.Quote, Quote: p.Base}
}

// Key is a stable map key for the ordered pair.
func (p Pair) Key() string {
	return string(p.Base.Mint()) + "/" + string(p.Quote.Mint())
}

func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.Base.Symbol(), p.Quote.Symbol())
}

// Equals compares ordered pairs by mint.
func (p Pair) Equals(other Pair) bool {
	return p.Base.Equals(other.Base) && p.Quote.Equals(other.Quote)
}

// SamePool reports whether both pairs trade the same two tokens in
// either order.
func (p Pair) SamePool(other Pair) bool {
	return p.Equals(other) || p.Equals(other.Invert())
}
