// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/shares"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/state"
)

var (
	ErrInvalidDenom           = reverts.New("invalid coin denom")
	ErrInsufficientDelegation = reverts.New("insufficient delegation")
)

const (
	bondedPool       mesh.Address = "module/bonded_pool"
	distributionPool mesh.Address = "module/distribution"
)

type hostValidator struct {
	Tokens          bn.Uint128
	RewardsPerToken bn.Decimal
}

type delegation struct {
	Amount  bn.Uint128
	Rewards shares.Rewards
}

// Staking is the host staking and distribution module. Undelegated tokens
// are returned at once.
type Staking struct {
	bank        *Bank
	denom       *store.Item[string]
	validators  *store.Mapping[store.StringKey, *hostValidator]
	delegations *store.Mapping[store.PairKey, *delegation]
}

func NewStaking(storage state.Storage, bank *Bank) *Staking {
	return &Staking{
		bank:        bank,
		denom:       store.NewItem[string](storage, "bonded_denom"),
		validators:  store.NewMapping[store.StringKey, *hostValidator](storage, "validators"),
		delegations: store.NewMapping[store.PairKey, *delegation](storage, "delegations"),
	}
}

func (s *Staking) BondedDenom() (string, error) {
	d, _, err := s.denom.MayLoad()
	return d, err
}

func (s *Staking) SetBondedDenom(denom string) error {
	return s.denom.Save(denom)
}

// AddValidator registers a validator, doing nothing if it exists.
func (s *Staking) AddValidator(validator string) error {
	ok, err := s.validators.Has(store.StringKey(validator))
	if err != nil || ok {
		return err
	}
	return s.validators.Set(store.StringKey(validator), &hostValidator{})
}

func (s *Staking) RemoveValidator(validator string) {
	s.validators.Remove(store.StringKey(validator))
}

func (s *Staking) Validators() ([]string, error) {
	var list []string
	err := s.validators.Range(nil, func(key []byte, _ *hostValidator) bool {
		list = append(list, string(key))
		return true
	})
	return list, err
}

func (s *Staking) validator(validator string) (*hostValidator, error) {
	v, ok, err := s.validators.Load(store.StringKey(validator))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrUnknownValidator, "%s", validator)
	}
	return v, nil
}

func delegationKey(delegator mesh.Address, validator string) store.PairKey {
	return store.Pair(store.StringKey(delegator), store.StringKey(validator))
}

func (s *Staking) Delegation(delegator mesh.Address, validator string) (bn.Uint128, error) {
	d, _, err := s.delegations.Load(delegationKey(delegator, validator))
	if err != nil || d == nil {
		return bn.Uint128{}, err
	}
	return d.Amount, nil
}

func (s *Staking) load(delegator mesh.Address, validator string) (*hostValidator, *delegation, error) {
	v, err := s.validator(validator)
	if err != nil {
		return nil, nil, err
	}
	d, ok, err := s.delegations.Load(delegationKey(delegator, validator))
	if err != nil {
		return nil, nil, err
	}
	if !ok {
		d = &delegation{}
	}
	if err := d.Rewards.CalcPendingRewards(v.RewardsPerToken, d.Amount); err != nil {
		return nil, nil, err
	}
	return v, d, nil
}

func (s *Staking) save(delegator mesh.Address, validator string, v *hostValidator, d *delegation) error {
	if err := s.validators.Set(store.StringKey(validator), v); err != nil {
		return err
	}
	return s.delegations.Set(delegationKey(delegator, validator), d)
}

func (s *Staking) checkDenom(coin mesh.Coin) error {
	denom, err := s.BondedDenom()
	if err != nil {
		return err
	}
	if coin.Denom != denom {
		return errors.Wrapf(ErrInvalidDenom, "expected %s, got %s", denom, coin.Denom)
	}
	return nil
}

func (s *Staking) Delegate(delegator mesh.Address, validator string, coin mesh.Coin) error {
	if err := s.checkDenom(coin); err != nil {
		return err
	}
	v, d, err := s.load(delegator, validator)
	if err != nil {
		return err
	}
	if err := s.bank.Send(delegator, bondedPool, coin); err != nil {
		return err
	}
	if d.Amount, err = d.Amount.Add(coin.Amount); err != nil {
		return err
	}
	if v.Tokens, err = v.Tokens.Add(coin.Amount); err != nil {
		return err
	}
	return s.save(delegator, validator, v, d)
}

func (s *Staking) Undelegate(delegator mesh.Address, validator string, coin mesh.Coin) error {
	if err := s.checkDenom(coin); err != nil {
		return err
	}
	v, d, err := s.load(delegator, validator)
	if err != nil {
		return err
	}
	if d.Amount.Lt(coin.Amount) {
		return errors.Wrapf(ErrInsufficientDelegation, "%s has %s at %s", delegator, d.Amount, validator)
	}
	d.Amount = d.Amount.SaturatingSub(coin.Amount)
	v.Tokens = v.Tokens.SaturatingSub(coin.Amount)
	if err := s.bank.Send(bondedPool, delegator, coin); err != nil {
		return err
	}
	return s.save(delegator, validator, v, d)
}

// AllocateRewards mints amount of the bonded denom as rewards for the
// delegators of validator.
func (s *Staking) AllocateRewards(validator string, amount bn.Uint128) error {
	v, err := s.validator(validator)
	if err != nil {
		return err
	}
	if v.Tokens.IsZero() {
		return nil
	}
	denom, err := s.BondedDenom()
	if err != nil {
		return err
	}
	if err := shares.CalcRewards(&v.RewardsPerToken, amount, v.Tokens); err != nil {
		return err
	}
	if err := s.bank.Mint(distributionPool, mesh.Coin{Denom: denom, Amount: amount}); err != nil {
		return err
	}
	return s.validators.Set(store.StringKey(validator), v)
}

// WithdrawRewards pays the accrued rewards of a delegation to the delegator.
func (s *Staking) WithdrawRewards(delegator mesh.Address, validator string) (bn.Uint128, error) {
	v, d, err := s.load(delegator, validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	amount := d.Rewards.PendingToUint128()
	d.Rewards.ResetPending()
	if !amount.IsZero() {
		denom, err := s.BondedDenom()
		if err != nil {
			return bn.Uint128{}, err
		}
		if err := s.bank.Send(distributionPool, delegator, mesh.Coin{Denom: denom, Amount: amount}); err != nil {
			return bn.Uint128{}, err
		}
	}
	return amount, s.save(delegator, validator, v, d)
}
