// Package domain holds the arbitrage context's value types: trade
// paths, opportunities, fee breakdowns and risk verdicts.
package domain

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	pricing "github.com/dexarb/solarb/business/pricing/domain"
	"github.com/dexarb/solarb/internal/token"
)

// Kind classifies how an opportunity is funded and shaped.
type Kind string

const (
	KindDirect     Kind = "direct"
	KindTriangular Kind = "triangular"
	KindFlashLoan  Kind = "flash_loan"
)

var (
	ErrEmptyPath      = errors.New("opportunity: empty path")
	ErrOpenCycle      = errors.New("opportunity: path does not return to its input token")
	ErrVenueReuse     = errors.New("opportunity: venue appears twice in path")
	ErrBrokenPath     = errors.New("opportunity: hop output does not feed next hop input")
	ErrDirectHopCount = errors.New("opportunity: direct path needs exactly two hops")
)

// Hop is one swap leg: trade In for Out at a venue. Rate is the
// venue's exchange rate in human units (Out per one In); DepthIn is
// the pool's input-side liquidity in base units.
type Hop struct {
	Venue      pricing.VenueID
	In         *token.Token
	Out        *token.Token
	Rate       decimal.Decimal
	FeeBps     uint16
	DepthIn    *big.Int
	ObservedAt time.Time
}

// HopFromQuote builds the hop a quote offers. invert trades quote
// token for base token instead of base for quote.
func HopFromQuote(q pricing.Quote, invert bool) (Hop, error) {
	if q.Price.Sign() <= 0 {
		return Hop{}, fmt.Errorf("hop: non-positive price %s at %s", q.Price, q.Venue)
	}
	if !invert {
		return Hop{
			Venue:      q.Venue,
			In:         q.Pair.Base,
			Out:        q.Pair.Quote,
			Rate:       q.Price,
			FeeBps:     q.FeeBps,
			DepthIn:    new(big.Int).Set(q.AvailableBase),
			ObservedAt: q.ObservedAt,
		}, nil
	}

	// Depth on the quote side is the base depth valued at the quoted
	// price.
	depth := decimal.NewFromBigInt(q.AvailableBase, -int32(q.Pair.Base.Decimals())).
		Mul(q.Price).
		Shift(int32(q.Pair.Quote.Decimals()))
	return Hop{
		Venue:      q.Venue,
		In:         q.Pair.Quote,
		Out:        q.Pair.Base,
		Rate:       decimal.NewFromInt(1).Div(q.Price),
		FeeBps:     q.FeeBps,
		DepthIn:    depth.BigInt(),
		ObservedAt: q.ObservedAt,
	}, nil
}

// Convert translates an input amount in base units to the hop's
// output base units at the quoted rate, before fees.
func (h Hop) Convert(amount *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return new(big.Int)
	}
	out := decimal.NewFromBigInt(amount, -int32(h.In.Decimals())).
		Mul(h.Rate).
		Shift(int32(h.Out.Decimals()))
	return out.BigInt()
}

func (h Hop) String() string {
	return fmt.Sprintf("%s->%s@%s", h.In.Symbol(), h.Out.Symbol(), h.Venue)
}

// Opportunity is an executable arbitrage candidate. Immutable once
// created; expiry discards it, nothing refreshes it.
type Opportunity struct {
	ID                  uuid.UUID
	Kind                Kind
	Path                []Hop
	InputAmount         *big.Int
	ExpectedGrossProfit *big.Int
	ExpectedNetProfit   *big.Int
	Fees                FeeBreakdown
	RiskScore           float64
	DiscoveredAt        time.Time
	Expiry              time.Time
}

// NewOpportunity validates the path shape for its kind and stamps an
// id.
func NewOpportunity(kind Kind, path []Hop, input *big.Int, gross, net *big.Int, fees FeeBreakdown, risk float64, discoveredAt time.Time, ttl time.Duration) (*Opportunity, error) {
	if err := ValidatePath(kind, path); err != nil {
		return nil, err
	}
	return &Opportunity{
		ID:                  uuid.New(),
		Kind:                kind,
		Path:                path,
		InputAmount:         new(big.Int).Set(input),
		ExpectedGrossProfit: new(big.Int).Set(gross),
		ExpectedNetProfit:   new(big.Int).Set(net),
		Fees:                fees,
		RiskScore:           risk,
		DiscoveredAt:        discoveredAt,
		Expiry:              discoveredAt.Add(ttl),
	}, nil
}

// ValidatePath enforces the structural rules: hops chain, the cycle
// closes, no venue repeats, and direct paths have exactly two hops on
// distinct venues.
func ValidatePath(kind Kind, path []Hop) error {
	if len(path) == 0 {
		return ErrEmptyPath
	}
	if kind == KindDirect && len(path) != 2 {
		return ErrDirectHopCount
	}

	seen := make(map[pricing.VenueID]struct{}, len(path))
	for i, hop := range path {
		if _, dup := seen[hop.Venue]; dup {
			return ErrVenueReuse
		}
		seen[hop.Venue] = struct{}{}

		if i > 0 && !path[i-1].Out.Equals(hop.In) {
			return ErrBrokenPath
		}
	}

	if !path[0].In.Equals(path[len(path)-1].Out) {
		return ErrOpenCycle
	}
	return nil
}

// BaseToken is the token the cycle starts and ends in.
func (o *Opportunity) BaseToken() *token.Token {
	return o.Path[0].In
}

// ExpiredAt reports whether the opportunity is past its expiry.
func (o *Opportunity) ExpiredAt(now time.Time) bool {
	return now.After(o.Expiry)
}

// MinDepth is the shallowest input-side liquidity along the path,
// expressed in that hop's input token units.
func (o *Opportunity) MinDepth() *big.Int {
	var min *big.Int
	for _, hop := range o.Path {
		if hop.DepthIn == nil {
			continue
		}
		if min == nil || hop.DepthIn.Cmp(min) < 0 {
			min = hop.DepthIn
		}
	}
	if min == nil {
		return new(big.Int)
	}
	return new(big.Int).Set(min)
}

// PathString renders the route for logs.
func (o *Opportunity) PathString() string {
	parts := make([]string, len(o.Path))
	for i, hop := range o.Path {
		parts[i] = hop.String()
	}
	return strings.Join(parts, " ")
}
