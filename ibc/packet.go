// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ibc

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Packet is a datagram travelling on a channel. Timeout is a block time in
// seconds after which it can no longer be received.
type Packet struct {
	Sequence uint64   `json:"sequence"`
	Src      Endpoint `json:"src"`
	Dst      Endpoint `json:"dest"`
	Data     []byte   `json:"data"`
	Timeout  uint64   `json:"timeout"`
}

// TimedOut tells whether the packet can no longer be received at blockTime.
func (p *Packet) TimedOut(blockTime uint64) bool {
	return p.Timeout != 0 && blockTime >= p.Timeout
}

type PacketReceiveMsg struct {
	Packet  Packet `json:"packet"`
	Relayer string `json:"relayer"`
}

type PacketAckMsg struct {
	Ack            []byte `json:"acknowledgement"`
	OriginalPacket Packet `json:"original_packet"`
	Relayer        string `json:"relayer"`
}

type PacketTimeoutMsg struct {
	Packet  Packet `json:"packet"`
	Relayer string `json:"relayer"`
}

// TransferPort is the port bound by the fungible token transfer module.
const TransferPort = "transfer"

// FungibleTokenPacketData is the payload of a token transfer packet.
type FungibleTokenPacketData struct {
	Denom    string `json:"denom"`
	Amount   string `json:"amount"`
	Sender   string `json:"sender"`
	Receiver string `json:"receiver"`
}

// VoucherDenom is the denom minted on the receiving chain for tokens of denom
// arriving over port/channel.
func VoucherDenom(port, channel, denom string) string {
	return DenomFromPath(port + "/" + channel + "/" + denom)
}

// DenomFromPath returns the local denom of a denom trace. A base denom is its
// own trace, anything else is hashed into an ibc/ voucher.
func DenomFromPath(path string) string {
	if !strings.Contains(path, "/") {
		return path
	}
	h := sha256.Sum256([]byte(path))
	return "ibc/" + strings.ToUpper(hex.EncodeToString(h[:]))
}
