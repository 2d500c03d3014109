// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
)

type Status uint8

const (
	StatusActive Status = iota
	StatusRemoved
	StatusTombstoned
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusRemoved:
		return "removed"
	case StatusTombstoned:
		return "tombstoned"
	default:
		return "unknown"
	}
}

// Validator is the share pool of one remote validator.
// Stake is counted in shares. The token value of a share is Multiplier, which
// only ever decreases when the validator is slashed.
type Validator struct {
	Stake           bn.Uint128
	Multiplier      bn.Decimal
	Status          Status
	RewardsPerToken bn.Decimal
}

func NewValidator() *Validator {
	return &Validator{
		Multiplier: bn.DecimalOne(),
		Status:     StatusActive,
	}
}

func (v *Validator) IsActive() bool {
	return v.Status == StatusActive
}

// TokensToShares converts tokens to shares at the current multiplier, rounding down.
func (v *Validator) TokensToShares(tokens bn.Uint128) (bn.Uint128, error) {
	shares, err := v.Multiplier.DivFloor(tokens)
	if err != nil {
		return bn.Uint128{}, errors.Wrap(err, "tokens to shares")
	}
	return shares, nil
}

// SharesToTokens converts shares to tokens at the current multiplier, rounding down.
func (v *Validator) SharesToTokens(shares bn.Uint128) (bn.Uint128, error) {
	tokens, err := v.Multiplier.MulFloor(shares)
	if err != nil {
		return bn.Uint128{}, errors.Wrap(err, "shares to tokens")
	}
	return tokens, nil
}

// StakeValue returns the token value of all shares of the validator.
func (v *Validator) StakeValue() (bn.Uint128, error) {
	return v.SharesToTokens(v.Stake)
}

// Slash reduces the token value of every share by percent.
func (v *Validator) Slash(percent bn.Decimal) error {
	remaining, err := bn.DecimalOne().Sub(percent)
	if err != nil {
		return errors.Wrapf(bn.ErrRatioRange, "slash %s", percent)
	}
	multiplier, err := v.Multiplier.Mul(remaining)
	if err != nil {
		return err
	}
	v.Multiplier = multiplier
	return nil
}

// CalcRewards distributes amount over the current stake value.
func (v *Validator) CalcRewards(amount bn.Uint128) error {
	total, err := v.StakeValue()
	if err != nil {
		return err
	}
	return CalcRewards(&v.RewardsPerToken, amount, total)
}

// Stake is the position of one holder at one validator.
type Stake struct {
	// Locked is the token value last acknowledged to the holder.
	Locked  bn.Uint128
	Shares  bn.Uint128
	Rewards Rewards
}

// CurrentValue returns the token value of the holder's shares.
func (s *Stake) CurrentValue(v *Validator) (bn.Uint128, error) {
	return v.SharesToTokens(s.Shares)
}

// TakeSlash reports how much the position lost to slashing since the last call,
// and brings Locked down to the current value. ok is false when nothing was lost.
func (s *Stake) TakeSlash(v *Validator) (delta bn.Uint128, ok bool, err error) {
	current, err := s.CurrentValue(v)
	if err != nil {
		return bn.Uint128{}, false, err
	}
	if !current.Lt(s.Locked) {
		return bn.Uint128{}, false, nil
	}
	delta = s.Locked.SaturatingSub(current)
	s.Locked = current
	return delta, true, nil
}
