// Package token models SPL-style tokens and integer amounts in base
// units. All on-chain math stays on big.Int; decimal conversion is a
// boundary concern (display, config parsing).
package token

import "github.com/mr-tron/base58"

// Mint is the base58-encoded mint address that identifies a token.
// The symbol is NOT identity - just metadata for display.
type Mint string

// MintFromBytes encodes a raw 32-byte public key as a Mint.
func MintFromBytes(b []byte) Mint {
	return Mint(base58.Encode(b))
}

// Bytes decodes the mint back to its raw public key.
func (m Mint) Bytes() ([]byte, error) {
	return base58.Decode(string(m))
}

func (m Mint) String() string {
	return string(m)
}

// Token represents the metadata of a tradable token. It is a
// reference entity with stable identity (the mint address).
type Token struct {
	mint     Mint
	symbol   string
	name     string
	decimals uint8
}

// New creates a Token with the given mint, symbol and decimals.
func New(mint Mint, symbol string, decimals uint8) *Token {
	if mint == "" {
		panic("token: empty mint")
	}
	if symbol == "" {
		panic("token: empty symbol")
	}
	if decimals > 30 {
		panic("token: suspicious decimals (>30)")
	}

	return &Token{
		mint:     mint,
		symbol:   symbol,
		decimals: decimals,
	}
}

// NewWithName creates a Token with a human-readable name.
func NewWithName(mint Mint, symbol, name string, decimals uint8) *Token {
	t := New(mint, symbol, decimals)
	t.name = name
	return t
}

// Mint returns the unique mint address for this token.
func (t *Token) Mint() Mint {
	return t.mint
}

// Symbol returns the ticker symbol (e.g., "SOL", "USDC").
func (t *Token) Symbol() string {
	return t.symbol
}

// Name returns the human-readable name, falling back to the symbol.
func (t *Token) Name() string {
	if t.name == "" {
		return t.symbol
	}
	return t.name
}

// Decimals returns the number of decimal places.
func (t *Token) Decimals() uint8 {
	return t.decimals
}

// String returns a human-readable representation.
func (t *Token) String() string {
	return t.symbol
}

// Equals compares two Tokens by their mint address.
func (t *Token) Equals(other *Token) bool {
	if t == nil || other == nil {
		return t == other
	}
	return t.mint == other.mint
}
