// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
)

// TransferVersion is the version of fungible token transfer channels.
const TransferVersion = "ics20-1"

var ErrInvalidTransfer = errors.New("invalid transfer")

func checkTransferChannel(msg ibc.ChannelOpenMsg) error {
	if err := ibc.CheckOrder(msg.Channel.Order); err != nil {
		return err
	}
	if msg.Channel.Version != TransferVersion {
		return errors.Wrapf(ErrInvalidTransfer, "channel version %q", msg.Channel.Version)
	}
	if msg.CounterpartyVersion != "" && msg.CounterpartyVersion != TransferVersion {
		return errors.Wrapf(ErrInvalidTransfer, "counterparty version %q", msg.CounterpartyVersion)
	}
	return nil
}

// DenomTrace returns the path of a voucher denom, or the denom itself when it
// is native to this chain.
func (a *App) DenomTrace(denom string) (string, error) {
	path, ok, err := a.ibc.traces.Load(store.StringKey(denom))
	if err != nil || !ok {
		return denom, err
	}
	return path, nil
}

// Transfer sends coin from sender to receiver on the other end of a transfer
// channel. A zero timeout uses DefaultPacketLifetime.
func (a *App) Transfer(sender mesh.Address, channelID, receiver string, coin mesh.Coin, timeout uint64) error {
	_, err := a.transact("ibc_transfer", func() ([]byte, error) {
		return nil, a.sendTransfer(sender, &IBCTransfer{ChannelID: channelID, ToAddress: receiver, Amount: coin, Timeout: timeout})
	})
	return err
}

// sendTransfer moves tokens out over a transfer channel. Tokens going back
// where they came from are burnt, anything else is escrowed.
func (a *App) sendTransfer(sender mesh.Address, m *IBCTransfer) error {
	ch, err := a.ibc.channel(m.ChannelID)
	if err != nil {
		return err
	}
	if ch.PortID != ibc.TransferPort {
		return errors.Wrapf(ErrPortMismatch, "%s is not a transfer channel", m.ChannelID)
	}
	path, err := a.DenomTrace(m.Amount.Denom)
	if err != nil {
		return err
	}
	if strings.HasPrefix(path, ibc.TransferPort+"/"+ch.ChannelID+"/") {
		err = a.bank.Burn(sender, m.Amount)
	} else {
		err = a.bank.Send(sender, escrowAddress(ch.ChannelID), m.Amount)
	}
	if err != nil {
		return err
	}
	data, err := json.Marshal(ibc.FungibleTokenPacketData{
		Denom:    path,
		Amount:   m.Amount.Amount.String(),
		Sender:   sender.String(),
		Receiver: m.ToAddress,
	})
	if err != nil {
		return err
	}
	_, err = a.sendPacket(ibc.TransferPort, ch.ChannelID, data, m.Timeout)
	return err
}

// receiveTransfer credits an incoming transfer. A failure is reported in the
// ack and leaves no other trace.
func (a *App) receiveTransfer(ch *channelEnd, p ibc.Packet) []byte {
	checkpoint := a.state.NewCheckpoint()
	if err := a.creditTransfer(ch, p); err != nil {
		a.state.RevertTo(checkpoint)
		logger.Debug("transfer rejected", "chain", a.opts.ChainID, "channel", ch.ChannelID, "seq", p.Sequence, "err", err)
		return ibc.AckFail(err.Error()).Bytes()
	}
	return ibc.AckSuccess([]byte{1}).Bytes()
}

func (a *App) creditTransfer(ch *channelEnd, p ibc.Packet) error {
	data, amount, err := decodeTransfer(p.Data)
	if err != nil {
		return err
	}
	receiver, err := mesh.ParseAddress(data.Receiver)
	if err != nil {
		return err
	}
	// tokens coming home carry the sender's port and channel as prefix
	if prefix := p.Src.PortID + "/" + p.Src.ChannelID + "/"; strings.HasPrefix(data.Denom, prefix) {
		base := strings.TrimPrefix(data.Denom, prefix)
		return a.bank.Send(escrowAddress(ch.ChannelID), receiver, mesh.Coin{Denom: ibc.DenomFromPath(base), Amount: amount})
	}
	path := ch.PortID + "/" + ch.ChannelID + "/" + data.Denom
	voucher := ibc.DenomFromPath(path)
	if err := a.ibc.traces.Set(store.StringKey(voucher), path); err != nil {
		return err
	}
	return a.bank.Mint(receiver, mesh.Coin{Denom: voucher, Amount: amount})
}

// ackTransfer refunds the sender when the receiving chain rejected the transfer.
func (a *App) ackTransfer(p ibc.Packet, raw []byte) error {
	ack, err := ibc.ParseAck(raw)
	if err != nil {
		return err
	}
	if ack.IsSuccess() {
		return nil
	}
	return a.refundTransfer(p)
}

func (a *App) refundTransfer(p ibc.Packet) error {
	data, amount, err := decodeTransfer(p.Data)
	if err != nil {
		return err
	}
	sender, err := mesh.ParseAddress(data.Sender)
	if err != nil {
		return err
	}
	coin := mesh.Coin{Denom: ibc.DenomFromPath(data.Denom), Amount: amount}
	if strings.HasPrefix(data.Denom, ibc.TransferPort+"/"+p.Src.ChannelID+"/") {
		return a.bank.Mint(sender, coin)
	}
	return a.bank.Send(escrowAddress(p.Src.ChannelID), sender, coin)
}

func decodeTransfer(raw []byte) (ibc.FungibleTokenPacketData, bn.Uint128, error) {
	var data ibc.FungibleTokenPacketData
	if err := json.Unmarshal(raw, &data); err != nil {
		return data, bn.Uint128{}, errors.Wrap(ErrInvalidTransfer, err.Error())
	}
	amount, err := bn.ParseUint128(data.Amount)
	if err != nil {
		return data, bn.Uint128{}, errors.Wrap(ErrInvalidTransfer, err.Error())
	}
	if amount.IsZero() {
		return data, bn.Uint128{}, errors.Wrap(ErrInvalidTransfer, "zero amount")
	}
	return data, amount, nil
}
