// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package log

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWithContextFollowsRoot(t *testing.T) {
	logger := WithContext("pkg", "test")

	var buf bytes.Buffer
	SetJSON(&buf, slog.LevelDebug)

	logger.With("validator", "val1").Debug("staked", "amount", 500)
	out := buf.String()
	assert.Contains(t, out, `"pkg":"test"`)
	assert.Contains(t, out, `"validator":"val1"`)
	assert.Contains(t, out, `"msg":"staked"`)

	buf.Reset()
	logger.Trace("hidden")
	assert.Empty(t, buf.String())
}

func TestLevelVarChangesAtRuntime(t *testing.T) {
	level := new(slog.LevelVar)
	level.Set(LevelInfo)

	var buf bytes.Buffer
	SetJSON(&buf, level)
	logger := WithContext("pkg", "test").With("validator", "val1")

	logger.Debug("hidden")
	assert.Empty(t, buf.String())

	level.Set(LevelDebug)
	logger.Debug("shown")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	buf.Reset()
	level.Set(LevelWarn)
	logger.Info("hidden again")
	assert.Empty(t, buf.String())
}
