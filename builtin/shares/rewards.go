// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package shares

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
)

// CalcRewards adds amount / totalStaked to the running rewards per token.
// Nothing is distributed when there is no stake.
func CalcRewards(rewardsPerToken *bn.Decimal, amount, totalStaked bn.Uint128) error {
	if totalStaked.IsZero() {
		return nil
	}
	delta, err := bn.DecimalFromRatio(amount, totalStaked)
	if err != nil {
		return errors.Wrap(err, "rewards per token")
	}
	sum, err := rewardsPerToken.Add(delta)
	if err != nil {
		return errors.Wrap(err, "rewards per token")
	}
	*rewardsPerToken = sum
	return nil
}

// Rewards tracks what a holder earned against a rewards per token index.
type Rewards struct {
	Pending             bn.Decimal
	PaidRewardsPerToken bn.Decimal
}

// CalcPendingRewards accrues the rewards earned by staked tokens since the
// last call and fast-forwards the paid index to current.
func (r *Rewards) CalcPendingRewards(current bn.Decimal, staked bn.Uint128) error {
	if staked.IsZero() {
		r.PaidRewardsPerToken = current
		return nil
	}
	delta, err := current.Sub(r.PaidRewardsPerToken)
	if err != nil {
		return errors.Wrap(err, "rewards index went backwards")
	}
	earned, err := delta.MulUint(staked)
	if err != nil {
		return errors.Wrap(err, "pending rewards")
	}
	pending, err := r.Pending.Add(earned)
	if err != nil {
		return errors.Wrap(err, "pending rewards")
	}
	r.Pending = pending
	r.PaidRewardsPerToken = current
	return nil
}

// PendingToUint128 returns the whole token part of the pending rewards.
func (r *Rewards) PendingToUint128() bn.Uint128 {
	return r.Pending.ToUint128Floor()
}

// ResetPending removes the paid out whole tokens, the fraction stays pending.
func (r *Rewards) ResetPending() {
	frac, _ := r.Pending.Sub(r.Pending.Floor())
	r.Pending = frac
}
