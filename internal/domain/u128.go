package domain

import (
	"fmt"
	"math"

	"github.com/holiman/uint256"
)

// U128 is an unsigned 128-bit balance. It is encoded as a decimal string in
// JSON so amounts survive transports with limited numeric precision.
type U128 struct {
	v uint256.Int
}

// ZeroU128 returns a zero-value balance.
func ZeroU128() U128 {
	return U128{}
}

// OneYocto is the smallest currency unit, attached to state-changing calls
// as replay-attack resistance.
func OneYocto() U128 {
	return NewU128(1)
}

// NewU128 creates a U128 from a uint64.
func NewU128(v uint64) U128 {
	var u U128
	u.v.SetUint64(v)
	return u
}

// ParseU128 parses a decimal string into a U128.
func ParseU128(s string) (U128, error) {
	if s == "" {
		return U128{}, fmt.Errorf("empty amount")
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return U128{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	if !fitsU128(v) {
		return U128{}, fmt.Errorf("amount %q overflows 128 bits", s)
	}
	return U128{v: *v}, nil
}

// MustParseU128 parses a decimal string and panics on failure. For constants.
func MustParseU128(s string) U128 {
	u, err := ParseU128(s)
	if err != nil {
		panic(err)
	}
	return u
}

func fitsU128(v *uint256.Int) bool {
	return v[2] == 0 && v[3] == 0
}

// String returns the decimal representation.
func (u U128) String() string {
	return u.v.Dec()
}

// IsZero reports whether the amount is zero.
func (u U128) IsZero() bool {
	return u.v.IsZero()
}

// Uint64 returns the amount as a uint64, saturating at the maximum. Used for
// pagination offsets, which never approach the boundary in practice.
func (u U128) Uint64() uint64 {
	if !u.v.IsUint64() {
		return math.MaxUint64
	}
	return u.v.Uint64()
}

// Cmp compares u and o, returning -1, 0 or 1.
func (u U128) Cmp(o U128) int {
	return u.v.Cmp(&o.v)
}

// Add returns u + o. Panics on 128-bit overflow: balances never reach 2^128
// in practice, so an overflow indicates corrupted state.
func (u U128) Add(o U128) U128 {
	var r U128
	if _, overflow := r.v.AddOverflow(&u.v, &o.v); overflow || !fitsU128(&r.v) {
		panic("u128 overflow in addition")
	}
	return r
}

// Sub returns u - o. Panics on underflow.
func (u U128) Sub(o U128) U128 {
	var r U128
	if _, underflow := r.v.SubOverflow(&u.v, &o.v); underflow {
		panic("u128 underflow in subtraction")
	}
	return r
}

// MulUint64 returns u * n.
func (u U128) MulUint64(n uint64) U128 {
	var r U128
	var m uint256.Int
	m.SetUint64(n)
	if _, overflow := r.v.MulOverflow(&u.v, &m); overflow || !fitsU128(&r.v) {
		panic("u128 overflow in multiplication")
	}
	return r
}

// MulDivUint64 returns u * num / den, used for basis-point shares.
func (u U128) MulDivUint64(num, den uint64) U128 {
	if den == 0 {
		panic("division by zero")
	}
	var n, d, r uint256.Int
	n.SetUint64(num)
	d.SetUint64(den)
	r.Mul(&u.v, &n)
	r.Div(&r, &d)
	return U128{v: r}
}

// MarshalJSON encodes the amount as a decimal string.
func (u U128) MarshalJSON() ([]byte, error) {
	return []byte(`"` + u.v.Dec() + `"`), nil
}

// UnmarshalJSON decodes a decimal string amount.
func (u *U128) UnmarshalJSON(data []byte) error {
	if len(data) < 2 || data[0] != '"' || data[len(data)-1] != '"' {
		return fmt.Errorf("amount must be a decimal string")
	}
	parsed, err := ParseU128(string(data[1 : len(data)-1]))
	if err != nil {
		return err
	}
	*u = parsed
	return nil
}
