// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lockup

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/bn"
)

func u(x uint64) bn.Uint128 { return bn.NewUint128(x) }

func TestBalanceClaims(t *testing.T) {
	b := &Balance{Bonded: u(1000)}
	assert.Equal(t, "1000", b.Free().String())

	require.NoError(t, b.AddClaim("provider1", u(600)))
	require.NoError(t, b.AddClaim("provider2", u(300)))
	// claims overlap, the largest one locks
	assert.Equal(t, "400", b.Free().String())

	err := b.AddClaim("provider2", u(701))
	assert.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, "300", b.Claims[1].Amount.String())

	require.NoError(t, b.ReleaseClaim("provider1", u(600)))
	assert.Len(t, b.Claims, 1)
	assert.Equal(t, "700", b.Free().String())

	assert.True(t, errors.Is(b.ReleaseClaim("provider1", u(1)), ErrUnknownLeinholder))
	assert.True(t, errors.Is(b.ReleaseClaim("provider2", u(301)), ErrInsufficientLein))
}

func TestBalanceSlashClaim(t *testing.T) {
	b := &Balance{Bonded: u(1000)}
	require.NoError(t, b.AddClaim("provider1", u(1000)))
	require.NoError(t, b.AddClaim("provider2", u(950)))

	require.NoError(t, b.SlashClaim("provider1", u(100)))
	assert.Equal(t, "900", b.Bonded.String())
	assert.Equal(t, "900", b.Claims[0].Amount.String())
	// capped by what is left bonded
	assert.Equal(t, "900", b.Claims[1].Amount.String())
	assert.Equal(t, "0", b.Free().String())

	require.NoError(t, b.SlashClaim("provider2", u(900)))
	assert.Equal(t, "0", b.Bonded.String())
	assert.Empty(t, b.Claims)
}
