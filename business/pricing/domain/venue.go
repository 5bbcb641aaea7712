// Package domain holds the pricing context's value types: venues,
// pairs, pool snapshots and quotes.
package domain

import "fmt"

// VenueFormat names the market structure behind a venue.
type VenueFormat uint8

const (
	FormatUnknown VenueFormat = iota
	FormatConstantProduct
	FormatConcentrated
	FormatOrderBook
)

func (f VenueFormat) String() string {
	switch f {
	case FormatConstantProduct:
		return "constant_product"
	case FormatConcentrated:
		return "concentrated"
	case FormatOrderBook:
		return "order_book"
	default:
		return "unknown"
	}
}

// VenueID identifies one tradable market: a DEX name plus the pool
// account address on chain. Comparable, usable as a map key.
type VenueID struct {
	DEX  string
	Pool string
}

func NewVenueID(dex, pool string) VenueID {
	return VenueID{DEX: dex, Pool: pool}
}

func (v VenueID) String() string {
	return fmt.Sprintf("%s:%s", v.DEX, v.Pool)
}

// IsZero reports whether the id is unset.
func (v VenueID) IsZero() bool {
	return v.DEX == "" && v.Pool == ""
}
