// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bn

import (
	"io"
	"strings"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/holiman/uint256"
	"github.com/pkg/errors"
)

// DecimalPlaces is the fixed number of fractional digits of a Decimal.
const DecimalPlaces = 18

var decimalFractional = uint256.NewInt(1_000_000_000_000_000_000)

// Decimal is an unsigned fixed-point number with 18 fractional digits.
// The raw value (atomics) is bounded to 128 bits. Every operation rounds
// toward zero and reports ErrOverflow instead of wrapping.
type Decimal struct {
	atomics uint256.Int
}

// DecimalZero returns 0.
func DecimalZero() Decimal {
	return Decimal{}
}

// DecimalOne returns 1.
func DecimalOne() Decimal {
	return Decimal{atomics: *decimalFractional}
}

// NewDecimal returns the whole number x as a Decimal.
func NewDecimal(x uint64) Decimal {
	var d Decimal
	d.atomics.SetUint64(x)
	d.atomics.Mul(&d.atomics, decimalFractional)
	return d
}

// Percent returns p / 100.
func Percent(p uint64) Decimal {
	var d Decimal
	d.atomics.SetUint64(p)
	d.atomics.Mul(&d.atomics, uint256.NewInt(10_000_000_000_000_000))
	return d
}

// DecimalFromAtomics builds a Decimal from its raw representation.
func DecimalFromAtomics(atomics Uint128) Decimal {
	return Decimal{atomics: atomics.v}
}

// DecimalFromRatio returns floor(num / den) at 18 digits of precision.
func DecimalFromRatio(num, den Uint128) (Decimal, error) {
	if den.IsZero() {
		return Decimal{}, ErrDivideByZero
	}
	var z uint256.Int
	z.Mul(&num.v, decimalFractional)
	z.Div(&z, &den.v)
	return decimalFrom(&z)
}

func decimalFrom(x *uint256.Int) (Decimal, error) {
	if x.Gt(max128) {
		return Decimal{}, ErrOverflow
	}
	return Decimal{atomics: *x}, nil
}

// ParseDecimal parses strings like "1", "0.8" or "12.000000000000000001".
func ParseDecimal(s string) (Decimal, error) {
	whole, frac, hasFrac := strings.Cut(s, ".")
	if whole == "" || (hasFrac && frac == "") {
		return Decimal{}, errors.Errorf("parse decimal %q: malformed", s)
	}
	if len(frac) > DecimalPlaces {
		return Decimal{}, errors.Errorf("parse decimal %q: more than %d fractional digits", s, DecimalPlaces)
	}
	w, err := uint256.FromDecimal(whole)
	if err != nil {
		return Decimal{}, errors.Wrapf(err, "parse decimal %q", s)
	}
	if w.Gt(max128) {
		return Decimal{}, ErrOverflow
	}
	var z uint256.Int
	z.Mul(w, decimalFractional)
	if hasFrac {
		f, err := uint256.FromDecimal(frac + strings.Repeat("0", DecimalPlaces-len(frac)))
		if err != nil {
			return Decimal{}, errors.Wrapf(err, "parse decimal %q", s)
		}
		z.Add(&z, f)
	}
	return decimalFrom(&z)
}

// MustParseDecimal is like ParseDecimal but panics on error.
func MustParseDecimal(s string) Decimal {
	d, err := ParseDecimal(s)
	if err != nil {
		panic(err)
	}
	return d
}

func (d Decimal) IsZero() bool {
	return d.atomics.IsZero()
}

// Cmp compares d and o and returns -1, 0 or +1.
func (d Decimal) Cmp(o Decimal) int {
	return d.atomics.Cmp(&o.atomics)
}

func (d Decimal) Add(o Decimal) (Decimal, error) {
	var z uint256.Int
	z.Add(&d.atomics, &o.atomics)
	return decimalFrom(&z)
}

// Sub returns d - o, or ErrUnderflow if o > d.
func (d Decimal) Sub(o Decimal) (Decimal, error) {
	if d.atomics.Lt(&o.atomics) {
		return Decimal{}, ErrUnderflow
	}
	var z uint256.Int
	z.Sub(&d.atomics, &o.atomics)
	return Decimal{atomics: z}, nil
}

// Mul returns d * o rounded down.
func (d Decimal) Mul(o Decimal) (Decimal, error) {
	var z uint256.Int
	z.Mul(&d.atomics, &o.atomics)
	z.Div(&z, decimalFractional)
	return decimalFrom(&z)
}

// Div returns d / o rounded down.
func (d Decimal) Div(o Decimal) (Decimal, error) {
	if o.atomics.IsZero() {
		return Decimal{}, ErrDivideByZero
	}
	var z uint256.Int
	z.Mul(&d.atomics, decimalFractional)
	z.Div(&z, &o.atomics)
	return decimalFrom(&z)
}

// MulUint returns d * u as a Decimal, keeping the fraction.
func (d Decimal) MulUint(u Uint128) (Decimal, error) {
	var z uint256.Int
	z.Mul(&d.atomics, &u.v)
	return decimalFrom(&z)
}

// MulFloor returns floor(u * d) as an integer amount.
func (d Decimal) MulFloor(u Uint128) (Uint128, error) {
	var z uint256.Int
	z.Mul(&u.v, &d.atomics)
	z.Div(&z, decimalFractional)
	return fromUint256(&z)
}

// DivFloor returns floor(u / d) using the numerator and denominator of d,
// multiplying before dividing.
func (d Decimal) DivFloor(u Uint128) (Uint128, error) {
	if d.atomics.IsZero() {
		return Uint128{}, ErrDivideByZero
	}
	var z uint256.Int
	z.Mul(&u.v, decimalFractional)
	z.Div(&z, &d.atomics)
	return fromUint256(&z)
}

// Floor drops the fractional part.
func (d Decimal) Floor() Decimal {
	var rem, z uint256.Int
	rem.Mod(&d.atomics, decimalFractional)
	z.Sub(&d.atomics, &rem)
	return Decimal{atomics: z}
}

// ToUint128Floor returns the integer part.
func (d Decimal) ToUint128Floor() Uint128 {
	var z uint256.Int
	z.Div(&d.atomics, decimalFractional)
	return Uint128{v: z}
}

func (d Decimal) String() string {
	var whole, frac uint256.Int
	whole.Div(&d.atomics, decimalFractional)
	frac.Mod(&d.atomics, decimalFractional)
	if frac.IsZero() {
		return whole.Dec()
	}
	fs := frac.Dec()
	fs = strings.Repeat("0", DecimalPlaces-len(fs)) + fs
	return whole.Dec() + "." + strings.TrimRight(fs, "0")
}

// MarshalText encodes the decimal in its string form, which is also its JSON form.
func (d Decimal) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Decimal) UnmarshalText(b []byte) error {
	v, err := ParseDecimal(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// EncodeRLP implements rlp.Encoder.
func (d Decimal) EncodeRLP(w io.Writer) error {
	return rlp.Encode(w, &d.atomics)
}

// DecodeRLP implements rlp.Decoder.
func (d *Decimal) DecodeRLP(s *rlp.Stream) error {
	var x uint256.Int
	if err := s.ReadUint256(&x); err != nil {
		return err
	}
	v, err := decimalFrom(&x)
	if err != nil {
		return err
	}
	*d = v
	return nil
}
