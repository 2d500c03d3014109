// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package meshapi holds the messages the mesh contracts execute on each
// other. Each contract decodes the variants it accepts with
// mesh.UnmarshalTagged.
package meshapi

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/mesh"
)

// ReceiveClaim is sent by the lockup to the leinholder of a new claim.
// Validator is where the owner directs the claim.
type ReceiveClaim struct {
	Owner     mesh.Address `json:"owner"`
	Amount    bn.Uint128   `json:"amount"`
	Validator string       `json:"validator"`
}

// ReleaseClaim gives back a claim to its owner without slashing it.
type ReleaseClaim struct {
	Owner  mesh.Address `json:"owner"`
	Amount bn.Uint128   `json:"amount"`
}

// SlashClaim burns part of a claim and of the bonded balance behind it.
type SlashClaim struct {
	Owner  mesh.Address `json:"owner"`
	Amount bn.Uint128   `json:"amount"`
}

// Slash is sent by the slasher to the provider. ForceUnbond tombstones the
// validator on the provider side.
type Slash struct {
	Validator   string     `json:"validator"`
	Percentage  bn.Decimal `json:"percentage"`
	ForceUnbond bool       `json:"force_unbond"`
}

// MeshConsumerReceiveRewards carries, as funds, rewards earned at Validator
// by the consumer's delegations.
type MeshConsumerReceiveRewards struct {
	Validator string `json:"validator"`
}

// Delegate asks the meta staking contract to delegate on behalf of the
// sending consumer.
type Delegate struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
}

type Undelegate struct {
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
}

type WithdrawDelegatorReward struct {
	Validator string `json:"validator"`
}

// WithdrawToConsumer pays the rewards accrued by Consumer at Validator.
type WithdrawToConsumer struct {
	Consumer  mesh.Address `json:"consumer"`
	Validator string       `json:"validator"`
}

// AddConsumer grants a consumer a budget of meta staking funds.
type AddConsumer struct {
	ConsumerAddress          mesh.Address `json:"consumer_address"`
	FundsAvailableForStaking mesh.Coin    `json:"funds_available_for_staking"`
}

type RemoveConsumer struct {
	ConsumerAddress mesh.Address `json:"consumer_address"`
}

func (*ReceiveClaim) Tag() string               { return "receive_claim" }
func (*ReleaseClaim) Tag() string               { return "release_claim" }
func (*SlashClaim) Tag() string                 { return "slash_claim" }
func (*Slash) Tag() string                      { return "slash" }
func (*MeshConsumerReceiveRewards) Tag() string { return "mesh_consumer_receive_rewards" }
func (*Delegate) Tag() string                   { return "delegate" }
func (*Undelegate) Tag() string                 { return "undelegate" }
func (*WithdrawDelegatorReward) Tag() string    { return "withdraw_delegator_reward" }
func (*WithdrawToConsumer) Tag() string         { return "withdraw_to_consumer" }
func (*AddConsumer) Tag() string                { return "add_consumer" }
func (*RemoveConsumer) Tag() string             { return "remove_consumer" }
