package domain

import (
	"fmt"
	"math"
	"math/big"
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is one venue's view of a pair at a moment in time.
type Quote struct {
	Venue VenueID
	Pair  Pair

	// Price is quote units per base unit.
	Price decimal.Decimal

	// AvailableBase is the venue's base-side depth in raw base units.
	AvailableBase *big.Int

	FeeBps       uint16
	ObservedAt   time.Time
	ObservedSlot uint64
	Source       string
}

// Invert re-expresses the quote in the opposite orientation: the price
// becomes base units per quote unit and the depth is revalued into the
// new base token at the quoted price. Venues list the same market in
// either order; inverting makes them comparable.
func (q Quote) Invert() (Quote, error) {
	if q.Price.Sign() <= 0 {
		return Quote{}, fmt.Errorf("quote: non-positive price %s at %s", q.Price, q.Venue)
	}

	inv := q
	inv.Pair = q.Pair.Invert()
	inv.Price = decimal.NewFromInt(1).Div(q.Price)
	inv.AvailableBase = new(big.Int)
	if q.AvailableBase != nil {
		inv.AvailableBase = decimal.NewFromBigInt(q.AvailableBase, -int32(q.Pair.Base.Decimals())).
			Mul(q.Price).
			Shift(int32(q.Pair.Quote.Decimals())).
			BigInt()
	}
	return inv, nil
}

// confidenceHalfLife is the quote age at which confidence decays to 0.5.
const confidenceHalfLife = 2 * time.Second

// FreshAt reports whether the quote is younger than maxAge at the
// given instant.
func (q *Quote) FreshAt(now time.Time, maxAge time.Duration) bool {
	if q.ObservedAt.IsZero() {
		return false
	}
	return now.Sub(q.ObservedAt) <= maxAge
}

// ConfidenceAt scores the quote in (0, 1] by exponential decay over
// its age. A quote observed right now scores 1.
func (q *Quote) ConfidenceAt(now time.Time) float64 {
	if q.ObservedAt.IsZero() {
		return 0
	}
	age := now.Sub(q.ObservedAt)
	if age <= 0 {
		return 1
	}
	return math.Exp2(-float64(age) / float64(confidenceHalfLife))
}

// PriceTable is an immutable snapshot of quotes grouped by pair. Build
// one with NewPriceTable; readers share it without locking.
type PriceTable struct {
	byPair  map[string][]Quote
	takenAt time.Time
}

// NewPriceTable groups the quotes by pair key. Within a pair, quotes
// sort by price descending so index zero is the best sell side.
func NewPriceTable(quotes []Quote, takenAt time.Time) *PriceTable {
	byPair := make(map[string][]Quote)
	for _, q := range quotes {
		key := q.Pair.Key()
		byPair[key] = append(byPair[key], q)
	}
	for _, qs := range byPair {
		sort.SliceStable(qs, func(i, j int) bool {
			return qs[i].Price.GreaterThan(qs[j].Price)
		})
	}
	return &PriceTable{byPair: byPair, takenAt: takenAt}
}

// TakenAt is the snapshot instant.
func (t *PriceTable) TakenAt() time.Time { return t.takenAt }

// Quotes returns every quote for the pair, best price first. The
// returned slice must not be mutated.
func (t *PriceTable) Quotes(p Pair) []Quote {
	return t.byPair[p.Key()]
}

// QuotesByKey returns the quotes stored under a key from Pairs, best
// price first.
func (t *PriceTable) QuotesByKey(key string) []Quote {
	return t.byPair[key]
}

// Best returns the highest-priced quote for the pair.
func (t *PriceTable) Best(p Pair) (Quote, bool) {
	qs := t.byPair[p.Key()]
	if len(qs) == 0 {
		return Quote{}, false
	}
	return qs[0], true
}

// Worst returns the lowest-priced quote for the pair. The spread
// between Best and Worst is the raw two-venue opportunity.
func (t *PriceTable) Worst(p Pair) (Quote, bool) {
	qs := t.byPair[p.Key()]
	if len(qs) == 0 {
		return Quote{}, false
	}
	return qs[len(qs)-1], true
}

// Pairs lists every pair key present in the table, sorted for
// deterministic iteration.
func (t *PriceTable) Pairs() []string {
	keys := make([]string, 0, len(t.byPair))
	for k := range t.byPair {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len is the total quote count across all pairs.
func (t *PriceTable) Len() int {
	n := 0
	for _, qs := range t.byPair {
		n += len(qs)
	}
	return n
}
