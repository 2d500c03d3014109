// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package ibc

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/state"
)

// ChannelState is the handshake state of a contract's single channel.
// OpenPending is never stored: open only validates. A close clears the
// channel, so the contract is back to NoChannel and may connect again.
type ChannelState uint8

const (
	NoChannel ChannelState = iota
	OpenPending
	Connected
)

func (s ChannelState) String() string {
	switch s {
	case NoChannel:
		return "no_channel"
	case OpenPending:
		return "open_pending"
	case Connected:
		return "connected"
	default:
		return "unknown"
	}
}

// Expectations are the configured connection and counterparty port a
// handshake must match. Empty fields are not checked.
type Expectations struct {
	ConnectionID     string
	CounterpartyPort string
}

type channelRecord struct {
	ID    string
	State ChannelState
}

// ChannelStore tracks the one channel a contract talks over.
type ChannelStore struct {
	item *store.Item[channelRecord]
}

func NewChannelStore(storage state.Storage) *ChannelStore {
	return &ChannelStore{item: store.NewItem[channelRecord](storage, "channel")}
}

// State returns the stored channel id and state.
func (c *ChannelStore) State() (string, ChannelState, error) {
	rec, ok, err := c.item.MayLoad()
	if err != nil {
		return "", NoChannel, errors.Wrap(err, "load channel")
	}
	if !ok {
		return "", NoChannel, nil
	}
	return rec.ID, rec.State, nil
}

// Open validates a handshake attempt.
func (c *ChannelStore) Open(msg ChannelOpenMsg, exp Expectations) (ChannelState, error) {
	id, st, err := c.State()
	if err != nil {
		return NoChannel, err
	}
	if st != NoChannel {
		return st, errors.Wrapf(ErrChannelExists, "%s", id)
	}
	ch := msg.Channel
	if err := CheckOrder(ch.Order); err != nil {
		return NoChannel, err
	}
	if err := CheckVersion(ch.Version); err != nil {
		return NoChannel, err
	}
	if msg.CounterpartyVersion != "" {
		if err := CheckVersion(msg.CounterpartyVersion); err != nil {
			return NoChannel, err
		}
	}
	if exp.ConnectionID != "" && ch.ConnectionID != exp.ConnectionID {
		return NoChannel, errors.Wrapf(ErrWrongConnection, "got %s, expected %s", ch.ConnectionID, exp.ConnectionID)
	}
	if exp.CounterpartyPort != "" && ch.CounterpartyEndpoint.PortID != exp.CounterpartyPort {
		return NoChannel, errors.Wrapf(ErrWrongPort, "got %s, expected %s", ch.CounterpartyEndpoint.PortID, exp.CounterpartyPort)
	}
	return OpenPending, nil
}

// Connect stores the channel id.
func (c *ChannelStore) Connect(msg ChannelConnectMsg) error {
	id, st, err := c.State()
	if err != nil {
		return err
	}
	if st != NoChannel {
		return errors.Wrapf(ErrChannelExists, "%s", id)
	}
	return c.item.Save(channelRecord{ID: msg.Channel.Endpoint.ChannelID, State: Connected})
}

// Close forgets the stored channel. The id must match.
func (c *ChannelStore) Close(msg ChannelCloseMsg) error {
	id, st, err := c.State()
	if err != nil {
		return err
	}
	if st != Connected || msg.Channel.Endpoint.ChannelID != id {
		return errors.Wrapf(ErrUnknownChannel, "%s", msg.Channel.Endpoint.ChannelID)
	}
	c.item.Remove()
	return nil
}

// CheckReceive rejects packets that did not arrive on the connected channel.
func (c *ChannelStore) CheckReceive(p Packet) error {
	id, st, err := c.State()
	if err != nil {
		return err
	}
	if st != Connected || p.Dst.ChannelID != id {
		return errors.Wrapf(ErrUnknownChannel, "%s", p.Dst.ChannelID)
	}
	return nil
}

// Connected returns the id of the connected channel, ErrNoChannel otherwise.
func (c *ChannelStore) Connected() (string, error) {
	id, st, err := c.State()
	if err != nil {
		return "", err
	}
	if st != Connected {
		return "", ErrNoChannel
	}
	return id, nil
}
