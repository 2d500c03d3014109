// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bn

import (
	"io"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

var (
	ErrOverflow     = errors.New("overflow")
	ErrUnderflow    = errors.New("underflow")
	ErrDivideByZero = errors.New("divide by zero")
	ErrRatioRange   = errors.New("ratio out of range")
)

// max128 is 2^128 - 1.
var max128 = new(uint256.Int).Sub(new(uint256.Int).Lsh(uint256.NewInt(1), 128), uint256.NewInt(1))

// Uint128 is an unsigned 128-bit amount.
// Arithmetic is carried out on 256-bit intermediates and results that do not
// fit 128 bits are rejected with ErrOverflow.
// It can be used as a value without state sharing.
type Uint128 struct {
	v uint256.Int
}

// NewUint128 creates a Uint128 from an uint64.
func NewUint128(x uint64) Uint128 {
	var u Uint128
	u.v.SetUint64(x)
	return u
}

// ZeroUint128 returns the zero amount.
func ZeroUint128() Uint128 {
	return Uint128{}
}

// MaxUint128 returns 2^128 - 1.
func MaxUint128() Uint128 {
	return Uint128{v: *max128}
}

func fromUint256(x *uint256.Int) (Uint128, error) {
	if x.Gt(max128) {
		return Uint128{}, ErrOverflow
	}
	return Uint128{v: *x}, nil
}

// ParseUint128 parses a base 10 string.
func ParseUint128(s string) (Uint128, error) {
	x, err := uint256.FromDecimal(s)
	if err != nil {
		return Uint128{}, errors.Wrapf(err, "parse uint128 %q", s)
	}
	return fromUint256(x)
}

// MustParseUint128 is like ParseUint128 but panics on error.
func MustParseUint128(s string) Uint128 {
	u, err := ParseUint128(s)
	if err != nil {
		panic(err)
	}
	return u
}

// IsZero returns true if u is 0.
func (u Uint128) IsZero() bool {
	return u.v.IsZero()
}

// Cmp compares u and o and returns -1, 0 or +1.
func (u Uint128) Cmp(o Uint128) int {
	return u.v.Cmp(&o.v)
}

func (u Uint128) Lt(o Uint128) bool { return u.v.Lt(&o.v) }
func (u Uint128) Gt(o Uint128) bool { return u.v.Gt(&o.v) }

// Add returns u + o.
func (u Uint128) Add(o Uint128) (Uint128, error) {
	var z uint256.Int
	z.Add(&u.v, &o.v)
	return fromUint256(&z)
}

// Sub returns u - o, or ErrUnderflow if o > u.
func (u Uint128) Sub(o Uint128) (Uint128, error) {
	if u.v.Lt(&o.v) {
		return Uint128{}, ErrUnderflow
	}
	var z uint256.Int
	z.Sub(&u.v, &o.v)
	return Uint128{v: z}, nil
}

// SaturatingSub returns u - o, or 0 if o > u.
func (u Uint128) SaturatingSub(o Uint128) Uint128 {
	if u.v.Lt(&o.v) {
		return Uint128{}
	}
	var z uint256.Int
	z.Sub(&u.v, &o.v)
	return Uint128{v: z}
}

// Mul returns u * o.
func (u Uint128) Mul(o Uint128) (Uint128, error) {
	var z uint256.Int
	z.Mul(&u.v, &o.v)
	return fromUint256(&z)
}

// Div returns floor(u / o).
func (u Uint128) Div(o Uint128) (Uint128, error) {
	if o.v.IsZero() {
		return Uint128{}, ErrDivideByZero
	}
	var z uint256.Int
	z.Div(&u.v, &o.v)
	return Uint128{v: z}, nil
}

// MulDiv returns floor(u * num / den) with a single rounding step.
func (u Uint128) MulDiv(num, den Uint128) (Uint128, error) {
	if den.v.IsZero() {
		return Uint128{}, ErrDivideByZero
	}
	var z uint256.Int
	z.Mul(&u.v, &num.v)
	z.Div(&z, &den.v)
	return fromUint256(&z)
}

// Min returns the smaller of a and b.
func Min(a, b Uint128) Uint128 {
	if a.Lt(b) {
		return a
	}
	return b
}

// Max returns the larger of a and b.
func Max(a, b Uint128) Uint128 {
	if a.Gt(b) {
		return a
	}
	return b
}

// Uint64 returns the value as uint64 and whether it fits.
func (u Uint128) Uint64() (uint64, bool) {
	return u.v.Uint64(), u.v.IsUint64()
}

func (u Uint128) String() string {
	return u.v.Dec()
}

// MarshalText encodes the amount as a base 10 string, which is also its JSON form.
func (u Uint128) MarshalText() ([]byte, error) {
	return []byte(u.v.Dec()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (u *Uint128) UnmarshalText(b []byte) error {
	v, err := ParseUint128(string(b))
	if err != nil {
		return err
	}
	*u = v
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (u Uint128) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &u.v)
}

// DecodeRLP implements rlp.Decoder.
func (u *Uint128) DecodeRLP(s *rlp.Stream) error {
	var x uint256.Int
	if err := s.ReadUint256(&x); err != nil {
		return err
	}
	v, err := fromUint256(&x)
	if err != nil {
		return err
	}
	*u = v
	return nil
}
