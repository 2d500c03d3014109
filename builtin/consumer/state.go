// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consumer

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/shares"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
	"github.com/vechain/mesh-security/state"
)

// window holds the rewards of a validator not yet forwarded. InFlight is
// announced to the provider and waits for the ack.
type window struct {
	Pending  bn.Uint128
	InFlight bn.Uint128
}

// request is a stake or unstake waiting for the meta-staking reply.
type request struct {
	Unstake   bool
	Delegator string
	Validator string
	Amount    bn.Uint128
}

type consumerState struct {
	config     *store.Item[Config]
	channel    *ibc.ChannelStore
	provider   *store.Item[mesh.Address]
	validators *store.Item[[]string]

	// mirror of the provider positions, in provider tokens
	mirror  *shares.Ledger
	windows *store.Mapping[store.StringKey, *window]
	request *store.Item[request]
}

func stateOf(ctx *runtime.Context) *consumerState {
	return &consumerState{
		config:     store.NewItem[Config](ctx.Store, "config"),
		channel:    ibc.NewChannelStore(ctx.Store),
		provider:   store.NewItem[mesh.Address](ctx.Store, "provider"),
		validators: store.NewItem[[]string](ctx.Store, "validators"),
		mirror:     shares.NewLedger(state.NewPrefixStorage(ctx.Store, []byte("mirror/"))),
		windows:    store.NewMapping[store.StringKey, *window](ctx.Store, "rewards"),
		request:    store.NewItem[request](ctx.Store, "request"),
	}
}

func (s *consumerState) window(validator string) (*window, error) {
	w, ok, err := s.windows.Load(store.StringKey(validator))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &window{}, nil
	}
	return w, nil
}

func (s *consumerState) knownValidators() ([]string, error) {
	list, _, err := s.validators.MayLoad()
	return list, err
}
