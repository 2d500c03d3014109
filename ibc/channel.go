// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package ibc holds the inter-chain channel, packet and acknowledgement types
// shared by the mesh contracts and the host runtime.
package ibc

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/reverts"
)

// AppVersion is the only accepted channel version.
const AppVersion = "mesh-security-v0.1"

var (
	ErrChannelExists         = reverts.New("channel already exists")
	ErrInvalidChannelOrder   = reverts.New("only supports unordered channels")
	ErrInvalidChannelVersion = reverts.New("counterparty version must be '" + AppVersion + "'")
	ErrWrongConnection       = reverts.New("wrong connection id")
	ErrWrongPort             = reverts.New("wrong counterparty port id")
	ErrUnknownChannel        = reverts.New("unknown channel")
	ErrNoChannel             = reverts.New("no channel connected")
)

type Order uint8

const (
	Unordered Order = iota
	Ordered
)

func (o Order) String() string {
	if o == Ordered {
		return "ORDER_ORDERED"
	}
	return "ORDER_UNORDERED"
}

func (o Order) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o *Order) UnmarshalText(b []byte) error {
	switch string(b) {
	case "ORDER_UNORDERED":
		*o = Unordered
	case "ORDER_ORDERED":
		*o = Ordered
	default:
		return errors.Errorf("unknown channel order %q", b)
	}
	return nil
}

type Endpoint struct {
	PortID    string `json:"port_id"`
	ChannelID string `json:"channel_id"`
}

// Channel describes one side of a channel, as seen by the local end.
type Channel struct {
	Endpoint             Endpoint `json:"endpoint"`
	CounterpartyEndpoint Endpoint `json:"counterparty_endpoint"`
	Order                Order    `json:"order"`
	Version              string   `json:"version"`
	ConnectionID         string   `json:"connection_id"`
}

// ChannelOpenMsg is delivered on open init and open try. CounterpartyVersion
// is empty on init.
type ChannelOpenMsg struct {
	Channel             Channel `json:"channel"`
	CounterpartyVersion string  `json:"counterparty_version,omitempty"`
}

type ChannelConnectMsg struct {
	Channel             Channel `json:"channel"`
	CounterpartyVersion string  `json:"counterparty_version,omitempty"`
}

type ChannelCloseMsg struct {
	Channel Channel `json:"channel"`
}

func CheckOrder(o Order) error {
	if o != Unordered {
		return ErrInvalidChannelOrder
	}
	return nil
}

func CheckVersion(version string) error {
	if version != AppVersion {
		return errors.Wrapf(ErrInvalidChannelVersion, "got %q", version)
	}
	return nil
}
