// Copyright (c) 2024 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package health

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealth_NoTick(t *testing.T) {
	h := New(time.Second)

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Nil(t, status.Relaying.Timestamp)
}

func TestHealth_Tick(t *testing.T) {
	h := New(time.Second)

	h.Tick(2, 1, 0)
	h.Tick(3, 0, 1)

	status, err := h.Status()
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Equal(t, 5, status.Relaying.Delivered)
	assert.Equal(t, 1, status.Relaying.TimedOut)
	assert.Equal(t, 1, status.Relaying.Failed)
	require.NotNil(t, status.Relaying.Timestamp)
	assert.WithinDuration(t, time.Now(), *status.Relaying.Timestamp, time.Second)
}

func TestHealth_Stale(t *testing.T) {
	h := New(10 * time.Millisecond)

	h.Tick(0, 0, 0)
	time.Sleep(30 * time.Millisecond)

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
}

func TestHealth_Fail(t *testing.T) {
	h := New(time.Second)

	h.Tick(0, 0, 0)
	h.Fail(errors.New("relay stuck"))

	status, err := h.Status()
	require.NoError(t, err)
	assert.False(t, status.Healthy)
	assert.Equal(t, "relay stuck", status.LastErr)

	h.Tick(0, 0, 0)
	status, err = h.Status()
	require.NoError(t, err)
	assert.True(t, status.Healthy)
}
