// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consumer

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/mesh"
)

// ProviderInfo names the provider end the consumer accepts a channel from.
type ProviderInfo struct {
	PortID       string `json:"port_id"`
	ConnectionID string `json:"connection_id"`
}

type InstantiateMsg struct {
	Provider    ProviderInfo `json:"provider"`
	MetaStaking mesh.Address `json:"meta_staking_contract_address"`
	// RemoteToLocalExchangeRate converts provider tokens to local staking tokens.
	RemoteToLocalExchangeRate bn.Decimal `json:"remote_to_local_exchange_rate"`
	// ICS20Channel is the transfer channel rewards are sent over.
	ICS20Channel   string `json:"ics20_channel"`
	PacketLifetime uint64 `json:"packet_lifetime,omitempty"`
}

type Config struct {
	Provider                  ProviderInfo `json:"provider"`
	MetaStaking               mesh.Address `json:"meta_staking_contract_address"`
	RemoteToLocalExchangeRate bn.Decimal   `json:"remote_to_local_exchange_rate"`
	ICS20Channel              string       `json:"ics20_channel"`
	PacketLifetime            uint64       `json:"packet_lifetime"`
}

// SyncValidators announces the changes of the local validator set to the
// provider.
type SyncValidators struct{}

func (*SyncValidators) Tag() string { return "sync_validators" }

type ConfigQuery struct{}

type ChannelQuery struct{}

type ValidatorsQuery struct{}

type RewardsQuery struct {
	Validator string `json:"validator"`
}

type DelegatorQuery struct {
	Delegator string `json:"delegator"`
	Validator string `json:"validator"`
}

func (*ConfigQuery) Tag() string     { return "config" }
func (*ChannelQuery) Tag() string    { return "channel" }
func (*ValidatorsQuery) Tag() string { return "validators" }
func (*RewardsQuery) Tag() string    { return "rewards" }
func (*DelegatorQuery) Tag() string  { return "delegator" }

type ChannelResponse struct {
	ChannelID string       `json:"channel_id"`
	State     string       `json:"state"`
	Provider  mesh.Address `json:"provider,omitempty"`
}

type ValidatorsResponse struct {
	Validators []string `json:"validators"`
}

// RewardsResponse shows the forwarding window of a validator.
type RewardsResponse struct {
	Validator string     `json:"validator"`
	Pending   bn.Uint128 `json:"pending"`
	InFlight  bn.Uint128 `json:"in_flight"`
}

// DelegatorResponse is the mirror of a provider position.
type DelegatorResponse struct {
	Shares  bn.Uint128 `json:"shares"`
	Rewards bn.Uint128 `json:"rewards"`
}
