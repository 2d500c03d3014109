// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package fpath

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHomeDir(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOME", dir)

	home, err := HomeDir()
	require.NoError(t, err)
	assert.Equal(t, dir, home)
}

func TestPathExists(t *testing.T) {
	dir := t.TempDir()
	genesis := filepath.Join(dir, "genesis.json")

	ok, err := PathExists(genesis)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, os.WriteFile(genesis, []byte("{}"), 0o600))
	ok, err = PathExists(genesis)
	require.NoError(t, err)
	assert.True(t, ok)
}
