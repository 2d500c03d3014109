// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lockup

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/mesh"
)

var (
	ErrClaimsLocked        = reverts.New("claims are locked")
	ErrInsufficientBalance = reverts.New("insufficient bonded balance")
	ErrUnknownLeinholder   = reverts.New("leinholder has no claim")
	ErrInsufficientLein    = reverts.New("leinholder claim is too small")
)

// Lein is a claim held by a leinholder over an account's bonded tokens.
type Lein struct {
	Leinholder mesh.Address `json:"leinholder"`
	Amount     bn.Uint128   `json:"amount"`
}

// Balance is an account of the lockup. Claims of different leinholders
// overlap: the same bonded tokens back all of them.
type Balance struct {
	Bonded bn.Uint128 `json:"bonded"`
	Claims []Lein     `json:"claims"`
}

// Free is the part of the bonded tokens no claim covers.
func (b *Balance) Free() bn.Uint128 {
	locked := bn.ZeroUint128()
	for _, c := range b.Claims {
		locked = bn.Max(locked, c.Amount)
	}
	return b.Bonded.SaturatingSub(locked)
}

func (b *Balance) find(leinholder mesh.Address) int {
	for i, c := range b.Claims {
		if c.Leinholder == leinholder {
			return i
		}
	}
	return -1
}

// AddClaim grows the claim of leinholder by amount.
func (b *Balance) AddClaim(leinholder mesh.Address, amount bn.Uint128) error {
	i := b.find(leinholder)
	if i < 0 {
		b.Claims = append(b.Claims, Lein{Leinholder: leinholder, Amount: bn.ZeroUint128()})
		i = len(b.Claims) - 1
	}
	total, err := b.Claims[i].Amount.Add(amount)
	if err != nil {
		return err
	}
	if total.Gt(b.Bonded) {
		return errors.Wrapf(ErrInsufficientBalance, "claim of %s would be %s over %s bonded", leinholder, total, b.Bonded)
	}
	b.Claims[i].Amount = total
	return nil
}

// ReleaseClaim shrinks the claim of leinholder, dropping it at zero.
func (b *Balance) ReleaseClaim(leinholder mesh.Address, amount bn.Uint128) error {
	i, err := b.reduce(leinholder, amount)
	if err != nil {
		return err
	}
	if b.Claims[i].Amount.IsZero() {
		b.Claims = append(b.Claims[:i], b.Claims[i+1:]...)
	}
	return nil
}

// SlashClaim burns amount from both the claim and the bonded tokens.
func (b *Balance) SlashClaim(leinholder mesh.Address, amount bn.Uint128) error {
	if _, err := b.reduce(leinholder, amount); err != nil {
		return err
	}
	b.Bonded = b.Bonded.SaturatingSub(amount)
	// other claims cannot exceed what is left
	for i := range b.Claims {
		b.Claims[i].Amount = bn.Min(b.Claims[i].Amount, b.Bonded)
	}
	b.compact()
	return nil
}

func (b *Balance) reduce(leinholder mesh.Address, amount bn.Uint128) (int, error) {
	i := b.find(leinholder)
	if i < 0 {
		return 0, errors.Wrapf(ErrUnknownLeinholder, "%s", leinholder)
	}
	if b.Claims[i].Amount.Lt(amount) {
		return 0, errors.Wrapf(ErrInsufficientLein, "%s holds %s, needs %s", leinholder, b.Claims[i].Amount, amount)
	}
	b.Claims[i].Amount = b.Claims[i].Amount.SaturatingSub(amount)
	return i, nil
}

func (b *Balance) compact() {
	kept := b.Claims[:0]
	for _, c := range b.Claims {
		if !c.Amount.IsZero() {
			kept = append(kept, c)
		}
	}
	b.Claims = kept
}
