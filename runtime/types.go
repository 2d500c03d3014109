// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/mesh"
)

var ErrInvalidReplyID = reverts.New("invalid reply id")

type BlockInfo struct {
	Height  uint64 `json:"height"`
	Time    uint64 `json:"time"`
	ChainID string `json:"chain_id"`
}

// Env is the environment of a contract call.
type Env struct {
	Block    BlockInfo    `json:"block"`
	Contract mesh.Address `json:"contract"`
}

type MessageInfo struct {
	Sender mesh.Address `json:"sender"`
	Funds  mesh.Coins   `json:"funds"`
}

// ReplyID correlates a sub message with the callback that handles its result.
type ReplyID uint64

const (
	ReplySlasherInit ReplyID = iota + 1
	ReplyStake
	ReplyUnstake
	ReplyWithdrawRewards
)

func (id ReplyID) String() string {
	switch id {
	case ReplySlasherInit:
		return "slasher_init"
	case ReplyStake:
		return "stake"
	case ReplyUnstake:
		return "unstake"
	case ReplyWithdrawRewards:
		return "withdraw_rewards"
	default:
		return "reply(" + strconv.FormatUint(uint64(id), 10) + ")"
	}
}

// InvalidReply returns the error for a reply id the contract does not expect.
func InvalidReply(id ReplyID) error {
	return errors.Wrapf(ErrInvalidReplyID, "%s", id)
}

// ReplyOn tells when the sender of a sub message wants to be called back.
type ReplyOn uint8

const (
	ReplyNever ReplyOn = iota
	ReplySuccess
	ReplyError
	ReplyAlways
)

func (r ReplyOn) onSuccess() bool { return r == ReplySuccess || r == ReplyAlways }
func (r ReplyOn) onError() bool   { return r == ReplyError || r == ReplyAlways }

// SubMsg is a message dispatched by a contract after its call returns.
// Each one runs in its own checkpoint. Without a reply on error, a failure
// reverts the whole transaction.
type SubMsg struct {
	ID      ReplyID
	Msg     Msg
	ReplyOn ReplyOn
}

type SubMsgResult struct {
	Data []byte
	Err  string
}

func (r SubMsgResult) IsOk() bool { return r.Err == "" }

type Reply struct {
	ID     ReplyID
	Result SubMsgResult
}

type Attribute struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// Event groups the attributes emitted by one contract call.
type Event struct {
	Contract   mesh.Address `json:"contract"`
	Attributes []Attribute  `json:"attributes"`
}

// Response is the outcome of a contract call.
type Response struct {
	Messages   []SubMsg
	Attributes []Attribute
	// Data is returned to the caller. For a packet receive it is the ack.
	Data []byte
}

func NewResponse() *Response {
	return &Response{}
}

// AddMessage adds a message whose result is not reported back.
func (r *Response) AddMessage(msg Msg) *Response {
	r.Messages = append(r.Messages, SubMsg{Msg: msg, ReplyOn: ReplyNever})
	return r
}

func (r *Response) AddSubMessage(id ReplyID, msg Msg, on ReplyOn) *Response {
	r.Messages = append(r.Messages, SubMsg{ID: id, Msg: msg, ReplyOn: on})
	return r
}

func (r *Response) AddAttribute(key, value string) *Response {
	r.Attributes = append(r.Attributes, Attribute{Key: key, Value: value})
	return r
}

func (r *Response) SetData(data []byte) *Response {
	r.Data = data
	return r
}

// InstantiateResult is the data of a successful WasmInstantiate.
type InstantiateResult struct {
	Address mesh.Address `json:"contract_address"`
}

func ParseInstantiateResult(data []byte) (InstantiateResult, error) {
	var res InstantiateResult
	if err := json.Unmarshal(data, &res); err != nil {
		return res, errors.Wrap(err, "decode instantiate result")
	}
	if res.Address.IsEmpty() {
		return res, errors.New("instantiate result without address")
	}
	return res, nil
}
