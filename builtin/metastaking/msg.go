// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metastaking

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/mesh"
)

type InstantiateMsg struct {
	Admin mesh.Address `json:"admin"`
}

type Config struct {
	Admin mesh.Address `json:"admin"`
	Denom string       `json:"denom"`
}

type ConfigQuery struct{}

type ConsumerQuery struct {
	Address mesh.Address `json:"address"`
}

type DelegationQuery struct {
	Consumer  mesh.Address `json:"consumer"`
	Validator string       `json:"validator"`
}

type AllDelegationsQuery struct {
	Consumer mesh.Address `json:"consumer"`
}

func (*ConfigQuery) Tag() string         { return "config" }
func (*ConsumerQuery) Tag() string       { return "consumer" }
func (*DelegationQuery) Tag() string     { return "delegation" }
func (*AllDelegationsQuery) Tag() string { return "all_delegations" }

type ConsumerResponse struct {
	AvailableFunds bn.Uint128 `json:"available_funds"`
	TotalStaked    bn.Uint128 `json:"total_staked"`
	Rewards        bn.Uint128 `json:"rewards"`
}

type DelegationResponse struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
	Rewards   bn.Uint128 `json:"rewards"`
}

type AllDelegationsResponse struct {
	Delegations []DelegationResponse `json:"delegations"`
}
