// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/bn"
)

func u(x uint64) bn.Uint128 { return bn.NewUint128(x) }

func value(t *testing.T, v *Validator) bn.Uint128 {
	val, err := v.StakeValue()
	require.NoError(t, err)
	return val
}

func TestValidatorLifecycle(t *testing.T) {
	v := NewValidator()
	assert.True(t, v.IsActive())
	assert.Equal(t, "0", value(t, v).String())

	minted, err := v.TokensToShares(u(500))
	require.NoError(t, err)
	v.Stake, err = v.Stake.Add(minted)
	require.NoError(t, err)
	assert.Equal(t, "500", value(t, v).String())

	require.NoError(t, v.Slash(bn.Percent(20)))
	assert.Equal(t, "0.8", v.Multiplier.String())
	assert.Equal(t, "400", value(t, v).String())

	burned, err := v.TokensToShares(u(200))
	require.NoError(t, err)
	assert.Equal(t, "250", burned.String())
	v.Stake, err = v.Stake.Sub(burned)
	require.NoError(t, err)
	assert.Equal(t, "200", value(t, v).String())

	require.NoError(t, v.Slash(bn.Percent(50)))
	assert.Equal(t, "100", value(t, v).String())
}

func TestSlashMonotonic(t *testing.T) {
	v := NewValidator()
	v.Stake = u(1_000_003)

	prev := value(t, v)
	for _, p := range []uint64{10, 0, 33, 5, 99} {
		require.NoError(t, v.Slash(bn.Percent(p)))
		cur := value(t, v)
		assert.False(t, cur.Gt(prev), "value grew after slashing %d%%", p)
		prev = cur
	}

	w := NewValidator()
	require.NoError(t, w.Slash(bn.Percent(10)))
	require.NoError(t, w.Slash(bn.Percent(20)))
	assert.Equal(t, "0.72", w.Multiplier.String())
}

func TestSlashRange(t *testing.T) {
	v := NewValidator()
	err := v.Slash(bn.MustParseDecimal("1.01"))
	assert.True(t, errors.Is(err, bn.ErrRatioRange))
	assert.Equal(t, "1", v.Multiplier.String())

	require.NoError(t, v.Slash(bn.DecimalOne()))
	assert.True(t, v.Multiplier.IsZero())
	_, err = v.TokensToShares(u(1))
	assert.True(t, errors.Is(err, bn.ErrDivideByZero))
}

func TestTakeSlashOnce(t *testing.T) {
	v := NewValidator()
	s := &Stake{Locked: u(1000), Shares: u(1000)}

	_, ok, err := s.TakeSlash(v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.Slash(bn.Percent(10)))
	delta, ok, err := s.TakeSlash(v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "100", delta.String())
	assert.Equal(t, "900", s.Locked.String())

	_, ok, err = s.TakeSlash(v)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, v.Slash(bn.Percent(50)))
	delta, ok, err = s.TakeSlash(v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "450", delta.String())
}

func TestRoundTripRounding(t *testing.T) {
	v := NewValidator()
	require.NoError(t, v.Slash(bn.Percent(33)))

	for _, tokens := range []uint64{1, 7, 100, 12345, 999_999_999} {
		shares, err := v.TokensToShares(u(tokens))
		require.NoError(t, err)
		back, err := v.SharesToTokens(shares)
		require.NoError(t, err)
		assert.False(t, back.Gt(u(tokens)))
		assert.False(t, u(tokens).SaturatingSub(back).Gt(u(1)), "tokens %d back %s", tokens, back)
	}
}
