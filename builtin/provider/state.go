// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package provider

import (
	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/shares"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
	"github.com/vechain/mesh-security/state"
)

// Claim is an unbonding request. ID is also the key of the Unstake packet
// that created it.
type Claim struct {
	ID        uint64     `json:"id"`
	Validator string     `json:"validator"`
	Amount    bn.Uint128 `json:"amount"`
	ReleaseAt uint64     `json:"release_at"`
}

func (c *Claim) Mature(blockTime uint64) bool {
	return blockTime >= c.ReleaseAt
}

// pendingStake is a Stake packet the consumer has not acknowledged yet.
type pendingStake struct {
	Shares bn.Uint128
	Amount bn.Uint128
}

type providerState struct {
	config   *store.Item[Config]
	channel  *ibc.ChannelStore
	ledger   *shares.Ledger
	claims   *store.Mapping[store.PairKey, *Claim]
	inflight *store.Mapping[store.Uint64Key, *pendingStake]
	requests *store.Sequence
}

func stateOf(ctx *runtime.Context) *providerState {
	return &providerState{
		config:   store.NewItem[Config](ctx.Store, "config"),
		channel:  ibc.NewChannelStore(ctx.Store),
		ledger:   shares.NewLedger(state.NewPrefixStorage(ctx.Store, []byte("ledger/"))),
		claims:   store.NewMapping[store.PairKey, *Claim](ctx.Store, "claims"),
		inflight: store.NewMapping[store.Uint64Key, *pendingStake](ctx.Store, "inflight"),
		requests: store.NewSequence(ctx.Store, "request_seq"),
	}
}

func claimKey(owner mesh.Address, id uint64) store.PairKey {
	return store.Pair(store.StringKey(owner), store.Uint64Key(id))
}

// ownerClaims returns the claims of owner in creation order.
func (s *providerState) ownerClaims(owner mesh.Address) ([]Claim, error) {
	var list []Claim
	err := s.claims.Range(store.PairPrefix(store.StringKey(owner)), func(_ []byte, c *Claim) bool {
		list = append(list, *c)
		return true
	})
	return list, err
}
