// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package bn

import (
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/rlp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{"1", "1", false},
		{"0.8", "0.8", false},
		{"0.10", "0.1", false},
		{"12.000000000000000001", "12.000000000000000001", false},
		{"0.0000000000000000001", "", true},
		{".5", "", true},
		{"1.", "", true},
		{"abc", "", true},
	}
	for _, tt := range tests {
		d, err := ParseDecimal(tt.in)
		if tt.err {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, d.String(), tt.in)
	}
}

func TestDecimalArithmetic(t *testing.T) {
	one := DecimalOne()
	assert.Equal(t, NewDecimal(1), one)
	assert.Equal(t, "0.2", Percent(20).String())

	m, err := one.Sub(Percent(20))
	require.NoError(t, err)
	assert.Equal(t, "0.8", m.String())

	m, err = m.Mul(MustParseDecimal("0.5"))
	require.NoError(t, err)
	assert.Equal(t, "0.4", m.String())

	_, err = Percent(20).Sub(one)
	assert.ErrorIs(t, err, ErrUnderflow)

	third, err := DecimalFromRatio(NewUint128(1), NewUint128(3))
	require.NoError(t, err)
	assert.Equal(t, "0.333333333333333333", third.String())

	_, err = DecimalFromRatio(NewUint128(1), ZeroUint128())
	assert.ErrorIs(t, err, ErrDivideByZero)

	q, err := one.Div(MustParseDecimal("0.8"))
	require.NoError(t, err)
	assert.Equal(t, "1.25", q.String())
}

func TestDecimalFloorRounding(t *testing.T) {
	m := MustParseDecimal("0.8")

	tokens, err := m.MulFloor(NewUint128(3))
	require.NoError(t, err)
	assert.Equal(t, NewUint128(2), tokens)

	shares, err := m.DivFloor(NewUint128(200))
	require.NoError(t, err)
	assert.Equal(t, NewUint128(250), shares)

	_, err = DecimalZero().DivFloor(NewUint128(1))
	assert.ErrorIs(t, err, ErrDivideByZero)

	d := MustParseDecimal("7.75")
	assert.Equal(t, "7", d.Floor().String())
	assert.Equal(t, NewUint128(7), d.ToUint128Floor())

	rem, err := d.Sub(d.Floor())
	require.NoError(t, err)
	assert.Equal(t, "0.75", rem.String())
}

func TestDecimalOverflow(t *testing.T) {
	big := DecimalFromAtomics(MaxUint128())
	_, err := big.Add(DecimalOne())
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = big.Mul(NewDecimal(2))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = NewDecimal(2).MulUint(MaxUint128())
	assert.ErrorIs(t, err, ErrOverflow)
}

func TestDecimalEncoding(t *testing.T) {
	d := MustParseDecimal("0.1")

	data, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"0.1"`, string(data))

	var decoded Decimal
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, d, decoded)

	enc, err := rlp.EncodeToBytes(d)
	require.NoError(t, err)
	var fromRLP Decimal
	require.NoError(t, rlp.DecodeBytes(enc, &fromRLP))
	assert.Equal(t, d, fromRLP)
}
