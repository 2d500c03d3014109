// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/state"
)

var (
	ErrInsufficientStake = reverts.New("insufficient stake")
	ErrUnknownValidator  = reverts.New("unknown validator")
	ErrValidatorInactive = reverts.New("validator is not active")
)

// Ledger keeps validator share pools and the holder positions in them.
type Ledger struct {
	validators *store.Mapping[store.StringKey, *Validator]
	stakes     *store.Mapping[store.PairKey, *Stake]
}

func NewLedger(storage state.Storage) *Ledger {
	return &Ledger{
		validators: store.NewMapping[store.StringKey, *Validator](storage, "validators"),
		stakes:     store.NewMapping[store.PairKey, *Stake](storage, "stakes"),
	}
}

// Validator returns the validator, or nil if it is unknown.
func (l *Ledger) Validator(validator string) (*Validator, error) {
	v, ok, err := l.validators.Load(store.StringKey(validator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get validator")
	}
	if !ok {
		return nil, nil
	}
	return v, nil
}

func (l *Ledger) mustValidator(validator string) (*Validator, error) {
	v, err := l.Validator(validator)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, errors.Wrapf(ErrUnknownValidator, "validator %s", validator)
	}
	return v, nil
}

func (l *Ledger) SetValidator(validator string, v *Validator) error {
	return l.validators.Set(store.StringKey(validator), v)
}

// ActivateValidator registers a new validator or reactivates a removed one.
// Tombstoned validators stay tombstoned.
func (l *Ledger) ActivateValidator(validator string) error {
	v, err := l.Validator(validator)
	if err != nil {
		return err
	}
	if v == nil {
		v = NewValidator()
	} else if v.Status == StatusRemoved {
		v.Status = StatusActive
	}
	return l.SetValidator(validator, v)
}

// RemoveValidator marks a known active validator as removed. Unknown ones are ignored.
func (l *Ledger) RemoveValidator(validator string) error {
	v, err := l.Validator(validator)
	if err != nil || v == nil {
		return err
	}
	if v.Status == StatusActive {
		v.Status = StatusRemoved
	}
	return l.SetValidator(validator, v)
}

// ValidatorEntry is a validator with its address, used for listings.
type ValidatorEntry struct {
	Address   string
	Validator *Validator
}

// ListValidators returns up to limit validators in address order, starting
// after startAfter when it is not empty.
func (l *Ledger) ListValidators(startAfter string, limit int) ([]ValidatorEntry, error) {
	var list []ValidatorEntry
	err := l.validators.Range(nil, func(key []byte, v *Validator) bool {
		if startAfter != "" && string(key) <= startAfter {
			return true
		}
		list = append(list, ValidatorEntry{Address: string(key), Validator: v})
		return limit <= 0 || len(list) < limit
	})
	return list, err
}

// Stake returns the position of holder at validator, an empty one if it
// does not exist yet.
func (l *Ledger) Stake(holder, validator string) (*Stake, error) {
	s, ok, err := l.stakes.Load(stakeKey(holder, validator))
	if err != nil {
		return nil, errors.Wrap(err, "failed to get stake")
	}
	if !ok {
		return &Stake{}, nil
	}
	return s, nil
}

func (l *Ledger) setStake(holder, validator string, s *Stake) error {
	return l.stakes.Set(stakeKey(holder, validator), s)
}

// Holdings calls fn for every position of holder in validator order.
func (l *Ledger) Holdings(holder string, fn func(validator string, s *Stake) bool) error {
	return l.stakes.Range(store.PairPrefix(store.StringKey(holder)), func(key []byte, s *Stake) bool {
		pair, err := store.SplitPair(key)
		if err != nil {
			return true
		}
		return fn(string(pair.Second), s)
	})
}

// StakeTokens adds tokens to the holder's position at an active validator and
// returns the shares minted.
func (l *Ledger) StakeTokens(holder, validator string, tokens bn.Uint128) (bn.Uint128, error) {
	return l.addTokens(holder, validator, tokens, true)
}

// RestoreStake gives back tokens taken by UnstakeTokens, whatever the
// validator status is now.
func (l *Ledger) RestoreStake(holder, validator string, tokens bn.Uint128) (bn.Uint128, error) {
	return l.addTokens(holder, validator, tokens, false)
}

func (l *Ledger) addTokens(holder, validator string, tokens bn.Uint128, active bool) (bn.Uint128, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	if active && !v.IsActive() {
		return bn.Uint128{}, errors.Wrapf(ErrValidatorInactive, "validator %s", validator)
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	if err := l.settle(v, s); err != nil {
		return bn.Uint128{}, err
	}

	minted, err := v.TokensToShares(tokens)
	if err != nil {
		return bn.Uint128{}, err
	}
	if v.Stake, err = v.Stake.Add(minted); err != nil {
		return bn.Uint128{}, err
	}
	if s.Shares, err = s.Shares.Add(minted); err != nil {
		return bn.Uint128{}, err
	}
	if s.Locked, err = s.Locked.Add(tokens); err != nil {
		return bn.Uint128{}, err
	}
	if err := l.save(holder, validator, v, s); err != nil {
		return bn.Uint128{}, err
	}
	return minted, nil
}

// UnstakeTokens removes tokens from the holder's position and returns the
// shares burned. Nothing changes if the shares exceed either balance.
func (l *Ledger) UnstakeTokens(holder, validator string, tokens bn.Uint128) (bn.Uint128, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	burned, err := v.TokensToShares(tokens)
	if err != nil {
		return bn.Uint128{}, err
	}
	if burned.Gt(v.Stake) || burned.Gt(s.Shares) {
		return bn.Uint128{}, errors.Wrapf(ErrInsufficientStake, "unstake %s from %s", tokens, validator)
	}
	if err := l.settle(v, s); err != nil {
		return bn.Uint128{}, err
	}

	v.Stake = v.Stake.SaturatingSub(burned)
	s.Shares = s.Shares.SaturatingSub(burned)
	s.Locked = s.Locked.SaturatingSub(tokens)
	if err := l.save(holder, validator, v, s); err != nil {
		return bn.Uint128{}, err
	}
	return burned, nil
}

// RevokeStake takes back up to shares minted for tokens, at whatever the
// share value is now, so a slash in between does not reach the holder's
// other shares. It returns the shares burned and the locked tokens released.
func (l *Ledger) RevokeStake(holder, validator string, shares, tokens bn.Uint128) (bn.Uint128, bn.Uint128, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, bn.Uint128{}, err
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, bn.Uint128{}, err
	}
	burned := bn.Min(bn.Min(shares, s.Shares), v.Stake)
	if burned.IsZero() {
		return bn.ZeroUint128(), bn.ZeroUint128(), nil
	}
	released := tokens
	if burned.Lt(shares) {
		if released, err = tokens.MulDiv(burned, shares); err != nil {
			return bn.Uint128{}, bn.Uint128{}, err
		}
	}
	released = bn.Min(released, s.Locked)
	if err := l.settle(v, s); err != nil {
		return bn.Uint128{}, bn.Uint128{}, err
	}

	v.Stake = v.Stake.SaturatingSub(burned)
	s.Shares = s.Shares.SaturatingSub(burned)
	s.Locked = s.Locked.SaturatingSub(released)
	if err := l.save(holder, validator, v, s); err != nil {
		return bn.Uint128{}, bn.Uint128{}, err
	}
	return burned, released, nil
}

// Slash applies percent to every share of the validator.
func (l *Ledger) Slash(validator string, percent bn.Decimal) error {
	v, err := l.mustValidator(validator)
	if err != nil {
		return err
	}
	if err := v.Slash(percent); err != nil {
		return err
	}
	return l.SetValidator(validator, v)
}

// Tombstone forbids any further staking to the validator.
func (l *Ledger) Tombstone(validator string) error {
	v, err := l.mustValidator(validator)
	if err != nil {
		return err
	}
	v.Status = StatusTombstoned
	return l.SetValidator(validator, v)
}

// TakeSlash returns, once, the tokens the holder lost to slashing at validator.
func (l *Ledger) TakeSlash(holder, validator string) (bn.Uint128, bool, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, false, err
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, false, err
	}
	delta, ok, err := s.TakeSlash(v)
	if err != nil || !ok {
		return bn.Uint128{}, false, err
	}
	if err := l.setStake(holder, validator, s); err != nil {
		return bn.Uint128{}, false, err
	}
	return delta, true, nil
}

// DistributeRewards credits amount to all holders of validator pro rata.
func (l *Ledger) DistributeRewards(validator string, amount bn.Uint128) error {
	v, err := l.mustValidator(validator)
	if err != nil {
		return err
	}
	if err := v.CalcRewards(amount); err != nil {
		return err
	}
	return l.SetValidator(validator, v)
}

// PendingRewards returns the whole tokens the holder can withdraw from validator.
func (l *Ledger) PendingRewards(holder, validator string) (bn.Uint128, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	if err := l.settle(v, s); err != nil {
		return bn.Uint128{}, err
	}
	return s.Rewards.PendingToUint128(), nil
}

// WithdrawRewards settles and pays out the holder's whole token rewards.
func (l *Ledger) WithdrawRewards(holder, validator string) (bn.Uint128, error) {
	v, err := l.mustValidator(validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	s, err := l.Stake(holder, validator)
	if err != nil {
		return bn.Uint128{}, err
	}
	if err := l.settle(v, s); err != nil {
		return bn.Uint128{}, err
	}
	amount := s.Rewards.PendingToUint128()
	s.Rewards.ResetPending()
	if err := l.setStake(holder, validator, s); err != nil {
		return bn.Uint128{}, err
	}
	return amount, nil
}

// settle accrues rewards on the holder's current token value.
func (l *Ledger) settle(v *Validator, s *Stake) error {
	staked, err := s.CurrentValue(v)
	if err != nil {
		return err
	}
	return s.Rewards.CalcPendingRewards(v.RewardsPerToken, staked)
}

func (l *Ledger) save(holder, validator string, v *Validator, s *Stake) error {
	if err := l.SetValidator(validator, v); err != nil {
		return err
	}
	return l.setStake(holder, validator, s)
}

func stakeKey(holder, validator string) store.PairKey {
	return store.Pair(store.StringKey(holder), store.StringKey(validator))
}
