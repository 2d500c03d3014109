// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const configYAML = `
provider:
  chain_id: osmosis-1
  address_prefix: osmo
  bonded_denom: uosmo
  genesis_time: 1700000000
  connection_id: connection-0
  accounts:
    - address: alice
      balance: 1000uosmo
consumer:
  chain_id: juno-1
  address_prefix: juno
  bonded_denom: ujuno
  genesis_time: 1700000000
  connection_id: connection-3
  validators: [val1, val2]
params:
  admin: gov
  slasher_owner: judge
  unbonding_period: 1814400
  packet_lifetime: 600
  exchange_rate: "0.25"
  meta_staking_funds: "1000"
  consumer_budget: "400"
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(configYAML))
	require.NoError(t, err)

	assert.Equal(t, "juno-1", cfg.Consumer.ChainID)
	assert.Equal(t, []string{"val1", "val2"}, cfg.Consumer.Validators)
	assert.Equal(t, []Account{{Address: "alice", Balance: "1000uosmo"}}, cfg.Provider.Accounts)
	assert.Equal(t, uint64(1814400), cfg.Params.UnbondingPeriod)
	assert.Equal(t, "uosmo", cfg.Provider.Options().BondedDenom)
}

func TestParseConfigRejects(t *testing.T) {
	_, err := ParseConfig([]byte("provider:\n  chain_idd: x\n"))
	assert.Error(t, err, "unknown field")

	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"same chain id", func(c *Config) { c.Consumer.ChainID = c.Provider.ChainID }},
		{"zero rate", func(c *Config) { c.Params.ExchangeRate = "0" }},
		{"bad rate", func(c *Config) { c.Params.ExchangeRate = "half" }},
		{"budget over funds", func(c *Config) { c.Params.ConsumerBudget = "1001" }},
		{"bad balance", func(c *Config) { c.Provider.Accounts[0].Balance = "uosmo" }},
		{"no admin", func(c *Config) { c.Params.Admin = "" }},
		{"no denom", func(c *Config) { c.Consumer.BondedDenom = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := ParseConfig([]byte(configYAML))
			require.NoError(t, err)
			tt.modify(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestDevConfigValid(t *testing.T) {
	assert.NoError(t, DevConfig(1).Validate())
}
