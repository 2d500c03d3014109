// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"strconv"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/state"
)

// DefaultPacketLifetime applies to packets sent without a timeout.
const DefaultPacketLifetime = 60 * 60

var (
	ErrUnknownChannel        = reverts.New("unknown channel")
	ErrChannelNotOpen        = reverts.New("channel is not open")
	ErrPortMismatch          = reverts.New("channel is not bound to the sender's port")
	ErrPacketTimedOut        = reverts.New("packet timed out")
	ErrPacketAlreadyReceived = reverts.New("packet already received")
	ErrPacketNotPending      = reverts.New("packet is not pending")
	ErrPacketSourceMismatch  = reverts.New("packet does not match the channel counterparty")
)

// channelEnd is the local end of a channel.
type channelEnd struct {
	PortID              string
	ChannelID           string
	CounterpartyPort    string
	CounterpartyChannel string
	ConnectionID        string
	Version             string
	Open                bool
}

func (c *channelEnd) channel() ibc.Channel {
	return ibc.Channel{
		Endpoint:             ibc.Endpoint{PortID: c.PortID, ChannelID: c.ChannelID},
		CounterpartyEndpoint: ibc.Endpoint{PortID: c.CounterpartyPort, ChannelID: c.CounterpartyChannel},
		Order:                ibc.Unordered,
		Version:              c.Version,
		ConnectionID:         c.ConnectionID,
	}
}

type ibcModule struct {
	channels   *store.Mapping[store.StringKey, *channelEnd]
	channelSeq *store.Sequence
	packetSeqs *store.Mapping[store.StringKey, uint64]
	outbox     *store.Mapping[store.PairKey, *ibc.Packet]
	receipts   *store.Mapping[store.PairKey, bool]
	traces     *store.Mapping[store.StringKey, string]
}

func newIBCModule(storage state.Storage) *ibcModule {
	return &ibcModule{
		channels:   store.NewMapping[store.StringKey, *channelEnd](storage, "channels"),
		channelSeq: store.NewSequence(storage, "channel_seq"),
		packetSeqs: store.NewMapping[store.StringKey, uint64](storage, "packet_seqs"),
		outbox:     store.NewMapping[store.PairKey, *ibc.Packet](storage, "outbox"),
		receipts:   store.NewMapping[store.PairKey, bool](storage, "receipts"),
		traces:     store.NewMapping[store.StringKey, string](storage, "traces"),
	}
}

func packetKey(channel string, seq uint64) store.PairKey {
	return store.Pair(store.StringKey(channel), store.Uint64Key(seq))
}

func (m *ibcModule) nextChannelID() (string, error) {
	n, err := m.channelSeq.Next()
	if err != nil {
		return "", err
	}
	return "channel-" + strconv.FormatUint(n-1, 10), nil
}

func (m *ibcModule) channel(id string) (*channelEnd, error) {
	ch, ok, err := m.channels.Load(store.StringKey(id))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrUnknownChannel, "%s", id)
	}
	return ch, nil
}

func (m *ibcModule) saveChannel(ch *channelEnd) error {
	return m.channels.Set(store.StringKey(ch.ChannelID), ch)
}

// Channels returns every channel end of the chain.
func (a *App) Channels() ([]ibc.Channel, error) {
	var list []ibc.Channel
	err := a.ibc.channels.Range(nil, func(_ []byte, ch *channelEnd) bool {
		list = append(list, ch.channel())
		return true
	})
	return list, err
}

func (a *App) sendPacket(port, channelID string, data []byte, timeout uint64) (*ibc.Packet, error) {
	ch, err := a.ibc.channel(channelID)
	if err != nil {
		return nil, err
	}
	if ch.PortID != port {
		return nil, errors.Wrapf(ErrPortMismatch, "%s is bound to %s, not %s", channelID, ch.PortID, port)
	}
	if !ch.Open {
		return nil, errors.Wrapf(ErrChannelNotOpen, "%s", channelID)
	}
	if timeout == 0 {
		block, err := a.Block()
		if err != nil {
			return nil, err
		}
		timeout = block.Time + DefaultPacketLifetime
	}
	seq, err := a.ibc.packetSeqs.Get(store.StringKey(channelID))
	if err != nil {
		return nil, err
	}
	seq++
	if err := a.ibc.packetSeqs.Set(store.StringKey(channelID), seq); err != nil {
		return nil, err
	}
	p := &ibc.Packet{
		Sequence: seq,
		Src:      ibc.Endpoint{PortID: ch.PortID, ChannelID: ch.ChannelID},
		Dst:      ibc.Endpoint{PortID: ch.CounterpartyPort, ChannelID: ch.CounterpartyChannel},
		Data:     data,
		Timeout:  timeout,
	}
	if err := a.ibc.outbox.Set(packetKey(channelID, seq), p); err != nil {
		return nil, err
	}
	logger.Debug("packet sent", "chain", a.opts.ChainID, "channel", channelID, "seq", seq)
	return p, nil
}

// PendingPackets returns the sent packets not yet acknowledged or timed out.
func (a *App) PendingPackets() ([]ibc.Packet, error) {
	var list []ibc.Packet
	err := a.ibc.outbox.Range(nil, func(_ []byte, p *ibc.Packet) bool {
		list = append(list, *p)
		return true
	})
	return list, err
}

func (a *App) ibcContract(port string) (IBCContract, *Context, error) {
	addr, ok := ContractFromPort(port)
	if !ok {
		return nil, nil, errors.Wrapf(ErrNotIBCContract, "port %s", port)
	}
	c, ctx, err := a.code(addr)
	if err != nil {
		return nil, nil, err
	}
	ic, ok := c.(IBCContract)
	if !ok {
		return nil, nil, errors.Wrapf(ErrNotIBCContract, "%s", addr)
	}
	return ic, ctx, nil
}

func (a *App) portOpen(msg ibc.ChannelOpenMsg) error {
	if msg.Channel.Endpoint.PortID == ibc.TransferPort {
		return checkTransferChannel(msg)
	}
	c, ctx, err := a.ibcContract(msg.Channel.Endpoint.PortID)
	if err != nil {
		return err
	}
	return c.ChannelOpen(ctx, msg)
}

func (a *App) portConnect(msg ibc.ChannelConnectMsg) error {
	port := msg.Channel.Endpoint.PortID
	if port == ibc.TransferPort {
		return nil
	}
	c, ctx, err := a.ibcContract(port)
	if err != nil {
		return err
	}
	resp, err := c.ChannelConnect(ctx, msg)
	if err != nil {
		return err
	}
	_, err = a.handleResponse(ctx.Env.Contract, resp)
	return err
}

// openInit starts a handshake from this chain.
func (a *App) openInit(port, counterpartyPort, connection, version string) (*channelEnd, error) {
	var ch *channelEnd
	_, err := a.transact("ibc_channel_open_init", func() ([]byte, error) {
		id, err := a.ibc.nextChannelID()
		if err != nil {
			return nil, err
		}
		ch = &channelEnd{PortID: port, ChannelID: id, CounterpartyPort: counterpartyPort, ConnectionID: connection, Version: version}
		if err := a.portOpen(ibc.ChannelOpenMsg{Channel: ch.channel()}); err != nil {
			return nil, err
		}
		return nil, a.ibc.saveChannel(ch)
	})
	return ch, err
}

// openTry answers a handshake started by the counterparty.
func (a *App) openTry(port string, counterparty *channelEnd, connection string) (*channelEnd, error) {
	var ch *channelEnd
	_, err := a.transact("ibc_channel_open_try", func() ([]byte, error) {
		id, err := a.ibc.nextChannelID()
		if err != nil {
			return nil, err
		}
		ch = &channelEnd{
			PortID:              port,
			ChannelID:           id,
			CounterpartyPort:    counterparty.PortID,
			CounterpartyChannel: counterparty.ChannelID,
			ConnectionID:        connection,
			Version:             counterparty.Version,
		}
		msg := ibc.ChannelOpenMsg{Channel: ch.channel(), CounterpartyVersion: counterparty.Version}
		if err := a.portOpen(msg); err != nil {
			return nil, err
		}
		return nil, a.ibc.saveChannel(ch)
	})
	return ch, err
}

// openConfirm completes the handshake on this end.
func (a *App) openConfirm(channelID, counterpartyChannel, counterpartyVersion string) error {
	_, err := a.transact("ibc_channel_connect", func() ([]byte, error) {
		ch, err := a.ibc.channel(channelID)
		if err != nil {
			return nil, err
		}
		ch.CounterpartyChannel = counterpartyChannel
		ch.Open = true
		if err := a.ibc.saveChannel(ch); err != nil {
			return nil, err
		}
		return nil, a.portConnect(ibc.ChannelConnectMsg{Channel: ch.channel(), CounterpartyVersion: counterpartyVersion})
	})
	return err
}

// CloseChannel closes the local end of a channel.
func (a *App) CloseChannel(channelID string) error {
	_, err := a.transact("ibc_channel_close", func() ([]byte, error) {
		ch, err := a.ibc.channel(channelID)
		if err != nil {
			return nil, err
		}
		if !ch.Open {
			return nil, errors.Wrapf(ErrChannelNotOpen, "%s", channelID)
		}
		ch.Open = false
		if err := a.ibc.saveChannel(ch); err != nil {
			return nil, err
		}
		if ch.PortID == ibc.TransferPort {
			return nil, nil
		}
		c, ctx, err := a.ibcContract(ch.PortID)
		if err != nil {
			return nil, err
		}
		resp, err := c.ChannelClose(ctx, ibc.ChannelCloseMsg{Channel: ch.channel()})
		if err != nil {
			return nil, err
		}
		return a.handleResponse(ctx.Env.Contract, resp)
	})
	return err
}

// ReceivePacket delivers a packet sent by the counterparty and returns the ack.
// An error means the packet was not received and stays pending on the sender.
func (a *App) ReceivePacket(p ibc.Packet, relayer string) ([]byte, error) {
	res, err := a.transact("ibc_packet_receive", func() ([]byte, error) {
		ch, err := a.ibc.channel(p.Dst.ChannelID)
		if err != nil {
			return nil, err
		}
		if !ch.Open {
			return nil, errors.Wrapf(ErrChannelNotOpen, "%s", ch.ChannelID)
		}
		if ch.PortID != p.Dst.PortID || ch.CounterpartyChannel != p.Src.ChannelID || ch.CounterpartyPort != p.Src.PortID {
			return nil, errors.Wrapf(ErrPacketSourceMismatch, "%s/%s", p.Src.PortID, p.Src.ChannelID)
		}
		block, err := a.Block()
		if err != nil {
			return nil, err
		}
		if p.TimedOut(block.Time) {
			return nil, errors.Wrapf(ErrPacketTimedOut, "seq %d", p.Sequence)
		}
		key := packetKey(ch.ChannelID, p.Sequence)
		if seen, err := a.ibc.receipts.Has(key); err != nil || seen {
			if err == nil {
				err = errors.Wrapf(ErrPacketAlreadyReceived, "seq %d", p.Sequence)
			}
			return nil, err
		}
		if err := a.ibc.receipts.Set(key, true); err != nil {
			return nil, err
		}

		var ack []byte
		if ch.PortID == ibc.TransferPort {
			ack = a.receiveTransfer(ch, p)
		} else {
			c, ctx, err := a.ibcContract(ch.PortID)
			if err != nil {
				return nil, err
			}
			resp, err := c.PacketReceive(ctx, ibc.PacketReceiveMsg{Packet: p, Relayer: relayer})
			if err != nil {
				return nil, err
			}
			if ack, err = a.handleResponse(ctx.Env.Contract, resp); err != nil {
				return nil, err
			}
		}
		if len(ack) == 0 {
			ack = ibc.AckSuccess(nil).Bytes()
		}
		return ack, nil
	})
	if err != nil {
		return nil, err
	}
	return res.Data, nil
}

func (a *App) pendingPacket(p ibc.Packet) (*channelEnd, error) {
	ok, err := a.ibc.outbox.Has(packetKey(p.Src.ChannelID, p.Sequence))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrPacketNotPending, "%s seq %d", p.Src.ChannelID, p.Sequence)
	}
	return a.ibc.channel(p.Src.ChannelID)
}

// AcknowledgePacket delivers the ack of a packet sent from this chain.
func (a *App) AcknowledgePacket(p ibc.Packet, ack []byte, relayer string) error {
	_, err := a.transact("ibc_packet_ack", func() ([]byte, error) {
		ch, err := a.pendingPacket(p)
		if err != nil {
			return nil, err
		}
		a.ibc.outbox.Remove(packetKey(p.Src.ChannelID, p.Sequence))

		if ch.PortID == ibc.TransferPort {
			return nil, a.ackTransfer(p, ack)
		}
		c, ctx, err := a.ibcContract(ch.PortID)
		if err != nil {
			return nil, err
		}
		resp, err := c.PacketAck(ctx, ibc.PacketAckMsg{Ack: ack, OriginalPacket: p, Relayer: relayer})
		if err != nil {
			return nil, err
		}
		return a.handleResponse(ctx.Env.Contract, resp)
	})
	return err
}

// TimeoutPacket tells the sender a packet will never be received.
func (a *App) TimeoutPacket(p ibc.Packet, relayer string) error {
	_, err := a.transact("ibc_packet_timeout", func() ([]byte, error) {
		ch, err := a.pendingPacket(p)
		if err != nil {
			return nil, err
		}
		a.ibc.outbox.Remove(packetKey(p.Src.ChannelID, p.Sequence))

		if ch.PortID == ibc.TransferPort {
			return nil, a.refundTransfer(p)
		}
		c, ctx, err := a.ibcContract(ch.PortID)
		if err != nil {
			return nil, err
		}
		resp, err := c.PacketTimeout(ctx, ibc.PacketTimeoutMsg{Packet: p, Relayer: relayer})
		if err != nil {
			return nil, err
		}
		return a.handleResponse(ctx.Env.Contract, resp)
	})
	return err
}

// escrowAddress holds the tokens sent out over a transfer channel.
func escrowAddress(channel string) mesh.Address {
	return mesh.Address("module/escrow/" + channel)
}
