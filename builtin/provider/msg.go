// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package provider

import (
	"encoding/json"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/mesh"
)

// ConsumerInfo names the counterparty the provider accepts a channel from.
type ConsumerInfo struct {
	ConnectionID string `json:"connection_id"`
	PortID       string `json:"port_id"`
}

// SlasherInfo is the code and instantiate msg of the slasher child contract.
type SlasherInfo struct {
	CodeID uint64          `json:"code_id"`
	Msg    json.RawMessage `json:"msg"`
}

type InstantiateMsg struct {
	Consumer ConsumerInfo `json:"consumer"`
	Slasher  *SlasherInfo `json:"slasher,omitempty"`
	Lockup   mesh.Address `json:"lockup"`
	// UnbondingPeriod of the consumer chain, in seconds.
	UnbondingPeriod uint64 `json:"unbonding_period"`
	// RewardsIBCDenom is the denom trace, "port/channel/denom", of the rewards
	// arriving from the consumer.
	RewardsIBCDenom string `json:"rewards_ibc_denom"`
	// PacketLifetime in seconds, zero for the host default.
	PacketLifetime uint64 `json:"packet_lifetime,omitempty"`
}

type Config struct {
	Consumer        ConsumerInfo `json:"consumer"`
	Slasher         mesh.Address `json:"slasher"`
	Lockup          mesh.Address `json:"lockup"`
	UnbondingPeriod uint64       `json:"unbonding_period"`
	RewardsIBCDenom string       `json:"rewards_ibc_denom"`
	PacketLifetime  uint64       `json:"packet_lifetime"`
}

// Unstake starts unbonding tokens staked at Validator.
type Unstake struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
}

// WithdrawUnbonded releases every mature unbonding claim of the sender.
type WithdrawUnbonded struct{}

// ClaimRewards pays the sender's rewards at Validator.
type ClaimRewards struct {
	Validator string `json:"validator"`
}

func (*Unstake) Tag() string          { return "unstake" }
func (*WithdrawUnbonded) Tag() string { return "withdraw_unbonded" }
func (*ClaimRewards) Tag() string     { return "claim_rewards" }

type ConfigQuery struct{}

type ValidatorQuery struct {
	Address string `json:"address"`
}

type ListValidatorsQuery struct {
	StartAfter string `json:"start_after,omitempty"`
	Limit      int    `json:"limit,omitempty"`
}

type AccountQuery struct {
	Address mesh.Address `json:"address"`
}

type ClaimsQuery struct {
	Address mesh.Address `json:"address"`
}

type ChannelQuery struct{}

func (*ConfigQuery) Tag() string         { return "config" }
func (*ValidatorQuery) Tag() string      { return "validator" }
func (*ListValidatorsQuery) Tag() string { return "list_validators" }
func (*AccountQuery) Tag() string        { return "account" }
func (*ClaimsQuery) Tag() string         { return "claims" }
func (*ChannelQuery) Tag() string        { return "channel" }

type ValidatorResponse struct {
	Address         string     `json:"address"`
	Status          string     `json:"status"`
	Shares          bn.Uint128 `json:"shares"`
	StakeValue      bn.Uint128 `json:"stake_value"`
	Multiplier      bn.Decimal `json:"multiplier"`
	RewardsPerToken bn.Decimal `json:"rewards_per_token"`
}

type ListValidatorsResponse struct {
	Validators []ValidatorResponse `json:"validators"`
}

type StakeInfo struct {
	Validator string     `json:"validator"`
	Locked    bn.Uint128 `json:"locked"`
	Shares    bn.Uint128 `json:"shares"`
	Value     bn.Uint128 `json:"value"`
	Rewards   bn.Uint128 `json:"rewards"`
}

type AccountResponse struct {
	Stakes []StakeInfo `json:"stakes"`
}

type ClaimsResponse struct {
	Claims []Claim `json:"claims"`
}

type ChannelResponse struct {
	ChannelID string `json:"channel_id"`
	State     string `json:"state"`
}
