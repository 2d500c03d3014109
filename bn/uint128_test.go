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

func TestUint128Arithmetic(t *testing.T) {
	a := NewUint128(500)
	b := NewUint128(200)

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, "700", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	assert.Equal(t, NewUint128(300), diff)

	_, err = b.Sub(a)
	assert.ErrorIs(t, err, ErrUnderflow)
	assert.True(t, b.SaturatingSub(a).IsZero())

	q, err := NewUint128(7).Div(NewUint128(2))
	require.NoError(t, err)
	assert.Equal(t, NewUint128(3), q)

	_, err = a.Div(ZeroUint128())
	assert.ErrorIs(t, err, ErrDivideByZero)

	assert.Equal(t, b, Min(a, b))
	assert.Equal(t, a, Max(a, b))
}

func TestUint128Overflow(t *testing.T) {
	limit := MaxUint128()
	assert.Equal(t, "340282366920938463463374607431768211455", limit.String())

	_, err := limit.Add(NewUint128(1))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = limit.Mul(NewUint128(2))
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ParseUint128("340282366920938463463374607431768211456")
	assert.ErrorIs(t, err, ErrOverflow)

	// intermediate product exceeds 128 bits but the result does not
	v, err := limit.MulDiv(NewUint128(3), NewUint128(4))
	require.NoError(t, err)
	assert.Equal(t, "255211775190703847597530955573826158591", v.String())
}

func TestUint128Encoding(t *testing.T) {
	v := MustParseUint128("123456789012345678901234567890")

	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.Equal(t, `"123456789012345678901234567890"`, string(data))

	var decoded Uint128
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, v, decoded)

	enc, err := rlp.EncodeToBytes(v)
	require.NoError(t, err)
	var fromRLP Uint128
	require.NoError(t, rlp.DecodeBytes(enc, &fromRLP))
	assert.Equal(t, v, fromRLP)

	assert.Error(t, json.Unmarshal([]byte(`"-1"`), &decoded))
}
