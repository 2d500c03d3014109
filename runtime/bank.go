// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/state"
)

var ErrInsufficientFunds = reverts.New("insufficient funds")

// Bank keeps account balances per denom.
type Bank struct {
	balances *store.Mapping[store.PairKey, bn.Uint128]
}

func NewBank(storage state.Storage) *Bank {
	return &Bank{balances: store.NewMapping[store.PairKey, bn.Uint128](storage, "balances")}
}

func balanceKey(addr mesh.Address, denom string) store.PairKey {
	return store.Pair(store.StringKey(addr), store.StringKey(denom))
}

func (b *Bank) Balance(addr mesh.Address, denom string) (bn.Uint128, error) {
	return b.balances.Get(balanceKey(addr, denom))
}

// AllBalances returns every non zero balance of addr in denom order.
func (b *Bank) AllBalances(addr mesh.Address) (mesh.Coins, error) {
	var coins mesh.Coins
	err := b.balances.Range(store.PairPrefix(store.StringKey(addr)), func(key []byte, amount bn.Uint128) bool {
		pair, err := store.SplitPair(key)
		if err == nil && !amount.IsZero() {
			coins = append(coins, mesh.Coin{Denom: string(pair.Second), Amount: amount})
		}
		return true
	})
	return coins, err
}

func (b *Bank) setBalance(addr mesh.Address, denom string, amount bn.Uint128) error {
	if amount.IsZero() {
		b.balances.Remove(balanceKey(addr, denom))
		return nil
	}
	return b.balances.Set(balanceKey(addr, denom), amount)
}

func (b *Bank) Mint(to mesh.Address, coins ...mesh.Coin) error {
	for _, c := range coins {
		bal, err := b.Balance(to, c.Denom)
		if err != nil {
			return err
		}
		if bal, err = bal.Add(c.Amount); err != nil {
			return errors.Wrapf(err, "mint %s", c)
		}
		if err := b.setBalance(to, c.Denom, bal); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bank) Burn(from mesh.Address, coins ...mesh.Coin) error {
	for _, c := range coins {
		bal, err := b.Balance(from, c.Denom)
		if err != nil {
			return err
		}
		if bal.Lt(c.Amount) {
			return errors.Wrapf(ErrInsufficientFunds, "%s has %s%s, needs %s", from, bal, c.Denom, c)
		}
		if err := b.setBalance(from, c.Denom, bal.SaturatingSub(c.Amount)); err != nil {
			return err
		}
	}
	return nil
}

// Send moves coins from one account to another.
func (b *Bank) Send(from, to mesh.Address, coins ...mesh.Coin) error {
	if err := b.Burn(from, coins...); err != nil {
		return err
	}
	return b.Mint(to, coins...)
}
