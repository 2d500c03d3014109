// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
)

const maxRelayRounds = 16

// ChannelPair names the two ends of a channel.
type ChannelPair struct {
	A string
	B string
}

// Connect runs the channel handshake between portA on a and portB on b.
func Connect(a, b *App, portA, portB, connA, connB, version string) (ChannelPair, error) {
	endA, err := a.openInit(portA, portB, connA, version)
	if err != nil {
		return ChannelPair{}, errors.Wrap(err, "open init")
	}
	endB, err := b.openTry(portB, endA, connB)
	if err != nil {
		return ChannelPair{}, errors.Wrap(err, "open try")
	}
	if err := a.openConfirm(endA.ChannelID, endB.ChannelID, endB.Version); err != nil {
		return ChannelPair{}, errors.Wrap(err, "open ack")
	}
	if err := b.openConfirm(endB.ChannelID, endA.ChannelID, endA.Version); err != nil {
		return ChannelPair{}, errors.Wrap(err, "open confirm")
	}
	logger.Info("channel opened",
		"chainA", a.ChainID(), "portA", portA, "channelA", endA.ChannelID,
		"chainB", b.ChainID(), "portB", portB, "channelB", endB.ChannelID)
	return ChannelPair{A: endA.ChannelID, B: endB.ChannelID}, nil
}

// RelayResult counts what one relay pass did.
type RelayResult struct {
	Delivered int
	TimedOut  int
	Failed    int
}

func (r RelayResult) Total() int { return r.Delivered + r.TimedOut }

// Relay moves the pending packets of src to dst, then brings the acks or
// timeouts back to src. A packet dst refuses to receive stays pending.
func Relay(src, dst *App, relayer string) (RelayResult, error) {
	var res RelayResult
	packets, err := src.PendingPackets()
	if err != nil {
		return res, err
	}
	block, err := dst.Block()
	if err != nil {
		return res, err
	}
	for _, p := range packets {
		if ok, err := dst.counterpartyOf(p); err != nil {
			return res, err
		} else if !ok {
			continue
		}
		if p.TimedOut(block.Time) {
			if err := src.TimeoutPacket(p, relayer); err != nil {
				return res, errors.Wrapf(err, "timeout %s seq %d", p.Src.ChannelID, p.Sequence)
			}
			res.TimedOut++
			continue
		}
		ack, err := dst.ReceivePacket(p, relayer)
		if err != nil {
			logger.Warn("packet not received", "from", src.ChainID(), "to", dst.ChainID(),
				"channel", p.Dst.ChannelID, "seq", p.Sequence, "err", err)
			res.Failed++
			continue
		}
		if err := src.AcknowledgePacket(p, ack, relayer); err != nil {
			return res, errors.Wrapf(err, "ack %s seq %d", p.Src.ChannelID, p.Sequence)
		}
		res.Delivered++
	}
	return res, nil
}

// RelayAll relays both ways until no packet moves.
func RelayAll(a, b *App, relayer string) (RelayResult, error) {
	var total RelayResult
	for round := 0; round < maxRelayRounds; round++ {
		ab, err := Relay(a, b, relayer)
		if err != nil {
			return total, err
		}
		ba, err := Relay(b, a, relayer)
		if err != nil {
			return total, err
		}
		total.Delivered += ab.Delivered + ba.Delivered
		total.TimedOut += ab.TimedOut + ba.TimedOut
		total.Failed = ab.Failed + ba.Failed
		if ab.Total()+ba.Total() == 0 {
			return total, nil
		}
	}
	return total, errors.Errorf("packets still moving after %d rounds", maxRelayRounds)
}

// counterpartyOf tells whether p was sent to a channel end of a.
func (a *App) counterpartyOf(p ibc.Packet) (bool, error) {
	ch, ok, err := a.ibc.channels.Load(store.StringKey(p.Dst.ChannelID))
	if err != nil || !ok {
		return false, err
	}
	return ch.PortID == p.Dst.PortID && ch.CounterpartyChannel == p.Src.ChannelID && ch.CounterpartyPort == p.Src.PortID, nil
}
