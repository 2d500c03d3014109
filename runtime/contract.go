// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/state"
)

var (
	ErrPaymentMissing   = reverts.New("no funds sent")
	ErrPaymentDenom     = reverts.New("must send exactly one coin of the expected denom")
	ErrNonPayable       = reverts.New("this message does not accept funds")
	ErrNotIBCContract   = reverts.New("contract does not support ibc")
	ErrNoSudo           = reverts.New("contract does not support sudo")
	ErrNoReply          = reverts.New("contract does not handle replies")
	ErrUnknownContract  = reverts.New("unknown contract")
	ErrUnknownCode      = reverts.New("unknown code id")
	ErrUnknownValidator = reverts.New("unknown validator")
)

// Querier is the read-only view of the chain given to contracts.
type Querier interface {
	Balance(addr mesh.Address, denom string) (bn.Uint128, error)
	BondedDenom() string
	AllValidators() ([]string, error)
	Delegation(delegator mesh.Address, validator string) (bn.Uint128, error)
	QueryContract(addr mesh.Address, msg []byte) ([]byte, error)
}

// Context is what a contract call gets from the host: its environment, its
// own storage and a querier.
type Context struct {
	Env     Env
	Store   state.Storage
	Querier Querier
}

// Contract is the code of a contract. Instances are distinguished by the
// Context they are called with.
type Contract interface {
	Instantiate(ctx *Context, info MessageInfo, msg []byte) (*Response, error)
	Execute(ctx *Context, info MessageInfo, msg []byte) (*Response, error)
	Query(ctx *Context, msg []byte) ([]byte, error)
}

type Replier interface {
	Reply(ctx *Context, reply Reply) (*Response, error)
}

type Sudoer interface {
	Sudo(ctx *Context, msg []byte) (*Response, error)
}

// IBCContract is a contract bound to an ibc port.
// PacketReceive returns the ack bytes as the response data; an error aborts
// the receive without acknowledging the packet.
type IBCContract interface {
	ChannelOpen(ctx *Context, msg ibc.ChannelOpenMsg) error
	ChannelConnect(ctx *Context, msg ibc.ChannelConnectMsg) (*Response, error)
	ChannelClose(ctx *Context, msg ibc.ChannelCloseMsg) (*Response, error)
	PacketReceive(ctx *Context, msg ibc.PacketReceiveMsg) (*Response, error)
	PacketAck(ctx *Context, msg ibc.PacketAckMsg) (*Response, error)
	PacketTimeout(ctx *Context, msg ibc.PacketTimeoutMsg) (*Response, error)
}

// MustPay returns the amount paid, requiring exactly one coin of denom.
func MustPay(info MessageInfo, denom string) (bn.Uint128, error) {
	switch {
	case len(info.Funds) == 0:
		return bn.Uint128{}, ErrPaymentMissing
	case len(info.Funds) > 1 || info.Funds[0].Denom != denom:
		return bn.Uint128{}, errors.Wrapf(ErrPaymentDenom, "expected %s, got %s", denom, info.Funds)
	case info.Funds[0].Amount.IsZero():
		return bn.Uint128{}, ErrPaymentMissing
	}
	return info.Funds[0].Amount, nil
}

// NonPayable rejects calls that carry funds.
func NonPayable(info MessageInfo) error {
	if len(info.Funds) != 0 {
		return ErrNonPayable
	}
	return nil
}

// PortID is the ibc port bound to a contract.
func PortID(contract mesh.Address) string {
	return "wasm." + contract.String()
}

// ContractFromPort reverses PortID.
func ContractFromPort(port string) (mesh.Address, bool) {
	const prefix = "wasm."
	if len(port) <= len(prefix) || port[:len(prefix)] != prefix {
		return "", false
	}
	return mesh.Address(port[len(prefix):]), true
}
