// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import "github.com/vechain/mesh-security/mesh"

// DevAccounts are funded on both chains of the dev network.
var DevAccounts = []mesh.Address{"alice", "bob", "carol"}

// DevConfig returns the genesis of a local dev network, launched at
// launchTime.
func DevConfig(launchTime uint64) *Config {
	chain := func(id, prefix, denom string) Chain {
		c := Chain{
			ChainID:       id,
			AddressPrefix: prefix,
			BondedDenom:   denom,
			GenesisTime:   launchTime,
			ConnectionID:  "connection-0",
			Validators:    []string{"val1", "val2"},
		}
		for _, acc := range DevAccounts {
			c.Accounts = append(c.Accounts, Account{Address: acc, Balance: "1000000" + denom})
		}
		return c
	}
	return &Config{
		Provider: chain("provider-dev", "prov", "ustake"),
		Consumer: chain("consumer-dev", "cons", "ucons"),
		Params: Params{
			Admin:            "admin",
			SlasherOwner:     "admin",
			UnbondingPeriod:  21 * 24 * 3600,
			PacketLifetime:   600,
			ExchangeRate:     "0.5",
			MetaStakingFunds: "10000000",
			ConsumerBudget:   "5000000",
		},
	}
}
