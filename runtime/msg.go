// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"encoding/json"

	"github.com/vechain/mesh-security/mesh"
)

// Msg is a host message a contract can dispatch.
type Msg interface {
	mesh.Tagged
	hostMsg()
}

type BankSend struct {
	ToAddress mesh.Address `json:"to_address"`
	Amount    mesh.Coins   `json:"amount"`
}

type StakingDelegate struct {
	Validator string    `json:"validator"`
	Amount    mesh.Coin `json:"amount"`
}

type StakingUndelegate struct {
	Validator string    `json:"validator"`
	Amount    mesh.Coin `json:"amount"`
}

// DistributionWithdraw pays the sender's delegation rewards at Validator.
type DistributionWithdraw struct {
	Validator string `json:"validator"`
}

type WasmExecute struct {
	Contract mesh.Address    `json:"contract_addr"`
	Msg      json.RawMessage `json:"msg"`
	Funds    mesh.Coins      `json:"funds"`
}

// WasmInstantiate creates a contract. On success the data is an InstantiateResult.
type WasmInstantiate struct {
	CodeID uint64          `json:"code_id"`
	Msg    json.RawMessage `json:"msg"`
	Funds  mesh.Coins      `json:"funds"`
	Label  string          `json:"label"`
}

// IBCSendPacket sends Data over a channel bound to the sender's port.
// Timeout is an absolute block time in seconds.
type IBCSendPacket struct {
	ChannelID string `json:"channel_id"`
	Data      []byte `json:"data"`
	Timeout   uint64 `json:"timeout"`
}

// IBCTransfer moves tokens to ToAddress over a transfer channel.
type IBCTransfer struct {
	ChannelID string    `json:"channel_id"`
	ToAddress string    `json:"to_address"`
	Amount    mesh.Coin `json:"amount"`
	Timeout   uint64    `json:"timeout"`
}

func (*BankSend) Tag() string             { return "bank_send" }
func (*StakingDelegate) Tag() string      { return "staking_delegate" }
func (*StakingUndelegate) Tag() string    { return "staking_undelegate" }
func (*DistributionWithdraw) Tag() string { return "distribution_withdraw" }
func (*WasmExecute) Tag() string          { return "wasm_execute" }
func (*WasmInstantiate) Tag() string      { return "wasm_instantiate" }
func (*IBCSendPacket) Tag() string        { return "ibc_send_packet" }
func (*IBCTransfer) Tag() string          { return "ibc_transfer" }

func (*BankSend) hostMsg()             {}
func (*StakingDelegate) hostMsg()      {}
func (*StakingUndelegate) hostMsg()    {}
func (*DistributionWithdraw) hostMsg() {}
func (*WasmExecute) hostMsg()          {}
func (*WasmInstantiate) hostMsg()      {}
func (*IBCSendPacket) hostMsg()        {}
func (*IBCTransfer) hostMsg()          {}

// ExecuteMsg builds a WasmExecute carrying the tagged encoding of msg.
func ExecuteMsg(contract mesh.Address, msg mesh.Tagged, funds ...mesh.Coin) (*WasmExecute, error) {
	data, err := mesh.MarshalTagged(msg)
	if err != nil {
		return nil, err
	}
	return &WasmExecute{Contract: contract, Msg: data, Funds: funds}, nil
}
