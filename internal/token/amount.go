package token

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/shopspring/decimal"
)

// Common errors
var (
	ErrNilToken        = errors.New("token: nil token")
	ErrNilRaw          = errors.New("token: nil raw value")
	ErrNegativeAmount  = errors.New("token: negative amount")
	ErrTooManyDecimals = errors.New("token: too many decimal places for token")
)

// Amount pairs a raw base-unit quantity with its token so it can be
// parsed from and rendered in human units. It is a boundary value:
// config parsing and display only, never arithmetic. Calculations stay
// on raw big.Int base units.
type Amount struct {
	raw   *big.Int
	token *Token
}

// NewAmount creates an Amount from a raw big.Int in base units.
func NewAmount(t *Token, raw *big.Int) Amount {
	if t == nil {
		panic(ErrNilToken)
	}
	if raw == nil {
		panic(ErrNilRaw)
	}
	if raw.Sign() < 0 {
		panic(ErrNegativeAmount)
	}

	return Amount{
		raw:   new(big.Int).Set(raw), // defensive copy
		token: t,
	}
}

// Raw returns a copy of the raw big.Int value.
func (a Amount) Raw() *big.Int {
	if a.raw == nil {
		return big.NewInt(0)
	}
	return new(big.Int).Set(a.raw)
}

// ToDecimal converts the amount to human units for display.
func (a Amount) ToDecimal() decimal.Decimal {
	if a.raw == nil || a.token == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(a.raw, -int32(a.token.Decimals()))
}

// ParseDecimal creates an Amount from a human-units decimal value.
func ParseDecimal(t *Token, d decimal.Decimal) (Amount, error) {
	if t == nil {
		return Amount{}, ErrNilToken
	}
	if d.IsNegative() {
		return Amount{}, ErrNegativeAmount
	}

	scaled := d.Shift(int32(t.Decimals()))

	if !scaled.Equal(scaled.Truncate(0)) {
		return Amount{}, ErrTooManyDecimals
	}

	return NewAmount(t, scaled.BigInt()), nil
}

// ParseString creates an Amount from a string decimal value.
func ParseString(t *Token, s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("token: invalid decimal string: %w", err)
	}
	return ParseDecimal(t, d)
}

// String returns a human-readable representation (e.g., "1.5 SOL").
func (a Amount) String() string {
	if a.token == nil {
		return "0 ???"
	}
	return fmt.Sprintf("%s %s", a.ToDecimal().String(), a.token.Symbol())
}
