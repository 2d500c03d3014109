// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
)

// pinger sends its execute msg as a packet and records what happens to it.
type pinger struct{}

func (pinger) Instantiate(*Context, MessageInfo, []byte) (*Response, error) { return NewResponse(), nil }

func (pinger) Execute(ctx *Context, _ MessageInfo, msg []byte) (*Response, error) {
	ch, err := ctx.Store.Get([]byte("channel"))
	if err != nil {
		return nil, err
	}
	var timeout uint64
	if string(msg) == "late" {
		timeout = ctx.Env.Block.Time + 10
	}
	return NewResponse().AddMessage(&IBCSendPacket{ChannelID: string(ch), Data: msg, Timeout: timeout}), nil
}

func (pinger) Query(ctx *Context, msg []byte) ([]byte, error) { return ctx.Store.Get(msg) }

func (pinger) ChannelOpen(_ *Context, msg ibc.ChannelOpenMsg) error {
	return ibc.CheckVersion(msg.Channel.Version)
}

func (pinger) ChannelConnect(ctx *Context, msg ibc.ChannelConnectMsg) (*Response, error) {
	ctx.Store.Set([]byte("channel"), []byte(msg.Channel.Endpoint.ChannelID))
	return NewResponse(), nil
}

func (pinger) ChannelClose(ctx *Context, _ ibc.ChannelCloseMsg) (*Response, error) {
	ctx.Store.Set([]byte("closed"), []byte{1})
	return NewResponse(), nil
}

func (pinger) PacketReceive(ctx *Context, msg ibc.PacketReceiveMsg) (*Response, error) {
	switch string(msg.Packet.Data) {
	case "abort":
		return nil, errBoom
	case "reject":
		return NewResponse().SetData(ibc.AckFail("rejected").Bytes()), nil
	}
	ctx.Store.Set([]byte("received"), msg.Packet.Data)
	return NewResponse().SetData(ibc.AckSuccess(msg.Packet.Data).Bytes()), nil
}

func (pinger) PacketAck(ctx *Context, msg ibc.PacketAckMsg) (*Response, error) {
	ctx.Store.Set([]byte("ack"), msg.Ack)
	return NewResponse(), nil
}

func (pinger) PacketTimeout(ctx *Context, msg ibc.PacketTimeoutMsg) (*Response, error) {
	ctx.Store.Set([]byte("timeout"), msg.Packet.Data)
	return NewResponse(), nil
}

func newPingers(t *testing.T) (a, b *App, pa, pb mesh.Address, pair ChannelPair) {
	a = newApp(t, "provider")
	b = newApp(t, "consumer")
	pa, err := a.Instantiate("admin", a.StoreCode(pinger{}), nil, nil, "ping")
	require.NoError(t, err)
	pb, err = b.Instantiate("admin", b.StoreCode(pinger{}), nil, nil, "ping")
	require.NoError(t, err)
	pair, err = Connect(a, b, PortID(pa), PortID(pb), "connection-0", "connection-0", ibc.AppVersion)
	require.NoError(t, err)
	return
}

func TestConnect(t *testing.T) {
	a, b, pa, pb, pair := newPingers(t)
	assert.Equal(t, ChannelPair{A: "channel-0", B: "channel-0"}, pair)
	assert.Equal(t, "channel-0", stored(t, a, pa, "channel"))
	assert.Equal(t, "channel-0", stored(t, b, pb, "channel"))

	chans, err := a.Channels()
	require.NoError(t, err)
	require.Len(t, chans, 1)
	assert.Equal(t, ibc.Endpoint{PortID: PortID(pb), ChannelID: "channel-0"}, chans[0].CounterpartyEndpoint)

	_, err = Connect(a, b, PortID(pa), PortID(pb), "connection-0", "connection-0", "v2")
	assert.True(t, errors.Is(err, ibc.ErrInvalidChannelVersion))
	_, err = Connect(a, b, "wasm.nobody", PortID(pb), "connection-0", "connection-0", ibc.AppVersion)
	assert.True(t, errors.Is(err, ErrUnknownContract))

	// the failed handshakes consumed no channel id
	chans, err = a.Channels()
	require.NoError(t, err)
	assert.Len(t, chans, 1)
}

func TestRelay(t *testing.T) {
	a, b, pa, pb, pair := newPingers(t)

	_, err := a.Execute("alice", pa, []byte("hello"), nil)
	require.NoError(t, err)
	pending, err := a.PendingPackets()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, uint64(1), pending[0].Sequence)
	assert.Equal(t, uint64(genesisTime+DefaultPacketLifetime), pending[0].Timeout)

	res, err := RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Delivered: 1}, res)
	assert.Equal(t, "hello", stored(t, b, pb, "received"))
	assert.Equal(t, string(ibc.AckSuccess([]byte("hello")).Bytes()), stored(t, a, pa, "ack"))

	pending, err = a.PendingPackets()
	require.NoError(t, err)
	assert.Empty(t, pending)

	// a packet is received once
	_, err = b.ReceivePacket(ibc.Packet{
		Sequence: 1,
		Src:      ibc.Endpoint{PortID: PortID(pa), ChannelID: pair.A},
		Dst:      ibc.Endpoint{PortID: PortID(pb), ChannelID: pair.B},
		Data:     []byte("hello"),
	}, "relayer")
	assert.True(t, errors.Is(err, ErrPacketAlreadyReceived))

	// error acks are delivered like any other
	_, err = b.Execute("bob", pb, []byte("reject"), nil)
	require.NoError(t, err)
	res, err = RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	ack, err := ibc.ParseAck([]byte(stored(t, b, pb, "ack")))
	require.NoError(t, err)
	assert.Equal(t, "rejected", ack.Error())
}

func TestRelayAbortedReceive(t *testing.T) {
	a, b, pa, _, _ := newPingers(t)

	_, err := a.Execute("alice", pa, []byte("abort"), nil)
	require.NoError(t, err)
	res, err := RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, RelayResult{Failed: 1}, res)

	pending, err := a.PendingPackets()
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestRelayTimeout(t *testing.T) {
	a, b, pa, pb, _ := newPingers(t)

	_, err := a.Execute("alice", pa, []byte("late"), nil)
	require.NoError(t, err)
	require.NoError(t, b.AdvanceBlock(10))

	res, err := RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, RelayResult{TimedOut: 1}, res)
	assert.Equal(t, "late", stored(t, a, pa, "timeout"))
	assert.Equal(t, "", stored(t, b, pb, "received"))

	err = a.TimeoutPacket(ibc.Packet{Sequence: 1, Src: ibc.Endpoint{ChannelID: "channel-0"}}, "relayer")
	assert.True(t, errors.Is(err, ErrPacketNotPending))
}

func TestCloseChannel(t *testing.T) {
	a, b, pa, _, pair := newPingers(t)

	require.NoError(t, a.CloseChannel(pair.A))
	assert.Equal(t, "\x01", stored(t, a, pa, "closed"))
	assert.True(t, errors.Is(a.CloseChannel(pair.A), ErrChannelNotOpen))

	_, err := a.Execute("alice", pa, []byte("hello"), nil)
	assert.True(t, errors.Is(err, ErrChannelNotOpen))
	assert.True(t, errors.Is(b.CloseChannel("channel-9"), ErrUnknownChannel))
}

func TestSendPacketPort(t *testing.T) {
	a, _, _, _, pair := newPingers(t)
	_, err := a.sendPacket("wasm.other", pair.A, []byte("x"), 0)
	assert.True(t, errors.Is(err, ErrPortMismatch))
}

func newTransferChains(t *testing.T) (a, b *App, pair ChannelPair) {
	a = newApp(t, "provider")
	b = newApp(t, "consumer")
	pair, err := Connect(a, b, ibc.TransferPort, ibc.TransferPort, "connection-0", "connection-0", TransferVersion)
	require.NoError(t, err)
	require.NoError(t, a.Mint("alice", mesh.NewCoin(1000, "ustake")))
	return
}

func TestTransferRoundTrip(t *testing.T) {
	a, b, pair := newTransferChains(t)
	voucher := ibc.VoucherDenom(ibc.TransferPort, pair.B, "ustake")

	require.NoError(t, a.Transfer("alice", pair.A, "bob", mesh.NewCoin(100, "ustake"), 0))
	assert.Equal(t, uint64(900), balance(t, a, "alice", "ustake"))
	assert.Equal(t, uint64(100), balance(t, a, escrowAddress(pair.A), "ustake"))

	res, err := RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, 1, res.Delivered)
	assert.Equal(t, uint64(100), balance(t, b, "bob", voucher))
	path, err := b.DenomTrace(voucher)
	require.NoError(t, err)
	assert.Equal(t, "transfer/"+pair.B+"/ustake", path)

	// vouchers going home are burnt and the escrow released
	require.NoError(t, b.Transfer("bob", pair.B, "carol", mesh.NewCoin(40, voucher), 0))
	assert.Equal(t, uint64(60), balance(t, b, "bob", voucher))
	_, err = RelayAll(a, b, "relayer")
	require.NoError(t, err)
	assert.Equal(t, uint64(40), balance(t, a, "carol", "ustake"))
	assert.Equal(t, uint64(60), balance(t, a, escrowAddress(pair.A), "ustake"))
}

func TestTransferRefund(t *testing.T) {
	a, b, pair := newTransferChains(t)

	t.Run("timeout", func(t *testing.T) {
		require.NoError(t, a.Transfer("alice", pair.A, "bob", mesh.NewCoin(100, "ustake"), genesisTime+5))
		require.NoError(t, b.AdvanceBlock(5))
		res, err := RelayAll(a, b, "relayer")
		require.NoError(t, err)
		assert.Equal(t, 1, res.TimedOut)
		assert.Equal(t, uint64(1000), balance(t, a, "alice", "ustake"))
		assert.Equal(t, uint64(0), balance(t, a, escrowAddress(pair.A), "ustake"))
	})

	t.Run("error ack", func(t *testing.T) {
		// an empty receiver is rejected by the receiving chain
		require.NoError(t, a.Transfer("alice", pair.A, "", mesh.NewCoin(100, "ustake"), 0))
		assert.Equal(t, uint64(900), balance(t, a, "alice", "ustake"))
		res, err := RelayAll(a, b, "relayer")
		require.NoError(t, err)
		assert.Equal(t, 1, res.Delivered)
		assert.Equal(t, uint64(1000), balance(t, a, "alice", "ustake"))
	})

	err := a.Transfer("alice", pair.A, "bob", mesh.NewCoin(2000, "ustake"), 0)
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
}
