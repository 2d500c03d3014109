// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ibc

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/mesh"
)

// ProviderMsg is a packet sent from the provider to the consumer.
type ProviderMsg interface {
	mesh.Tagged
	providerMsg()
}

// ListValidators asks for the current validator set. The first request also
// starts the stream of UpdateValidators packets.
type ListValidators struct{}

// Stake delegates amount to validator on behalf of delegator. Key identifies
// the request when its ack or timeout comes back.
type Stake struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
	Delegator string     `json:"delegator_addr"`
	Key       uint64     `json:"key"`
}

type Unstake struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
	Delegator string     `json:"delegator_addr"`
	Key       uint64     `json:"key"`
}

type WithdrawRewards struct {
	Validator string `json:"validator"`
	Delegator string `json:"delegator_addr"`
}

func (*ListValidators) Tag() string  { return "list_validators" }
func (*Stake) Tag() string           { return "stake" }
func (*Unstake) Tag() string         { return "unstake" }
func (*WithdrawRewards) Tag() string { return "withdraw_rewards" }

func (*ListValidators) providerMsg()  {}
func (*Stake) providerMsg()           {}
func (*Unstake) providerMsg()         {}
func (*WithdrawRewards) providerMsg() {}

func ParseProviderMsg(data []byte) (ProviderMsg, error) {
	return mesh.UnmarshalTagged[ProviderMsg](data,
		(*ListValidators)(nil),
		(*Stake)(nil),
		(*Unstake)(nil),
		(*WithdrawRewards)(nil),
	)
}

// ConsumerMsg is a packet sent from the consumer to the provider.
type ConsumerMsg interface {
	mesh.Tagged
	consumerMsg()
}

// UpdateValidators is a diff of the consumer's active validator set.
type UpdateValidators struct {
	Added   []string `json:"added"`
	Removed []string `json:"removed"`
}

// Rewards announces rewards, in the consumer's local denom, ready to be
// transferred to the provider for distribution. Total is the amount of the
// transfer that follows the ack.
type Rewards struct {
	RewardsByValidator []ValidatorAmount `json:"rewards_by_validator"`
	Denom              string            `json:"denom"`
	Total              bn.Uint128        `json:"total"`
}

type ValidatorAmount struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
}

func (*UpdateValidators) Tag() string { return "update_validators" }
func (*Rewards) Tag() string          { return "rewards" }

func (*UpdateValidators) consumerMsg() {}
func (*Rewards) consumerMsg()          {}

func ParseConsumerMsg(data []byte) (ConsumerMsg, error) {
	return mesh.UnmarshalTagged[ConsumerMsg](data,
		(*UpdateValidators)(nil),
		(*Rewards)(nil),
	)
}

type ListValidatorsResponse struct {
	Validators []string `json:"validators"`
}

type StakeResponse struct{}

type UnstakeResponse struct{}

type WithdrawRewardsResponse struct {
	Amount bn.Uint128 `json:"amount"`
}

type UpdateValidatorsResponse struct{}

type RewardsResponse struct{}
