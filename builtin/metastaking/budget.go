// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package metastaking

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/shares"
)

// ConsumerInfo is the staking budget of a consumer. Rewards counts what was
// already sent to it.
type ConsumerInfo struct {
	AvailableFunds bn.Uint128
	TotalStaked    bn.Uint128
	Rewards        bn.Uint128
}

// IncreaseStake books amount against the budget.
func (c *ConsumerInfo) IncreaseStake(amount bn.Uint128) error {
	total, err := c.TotalStaked.Add(amount)
	if err != nil {
		return err
	}
	if total.Gt(c.AvailableFunds) {
		return errors.Wrapf(ErrNoFundsToDelegate, "staked %s, available %s", total, c.AvailableFunds)
	}
	c.TotalStaked = total
	return nil
}

func (c *ConsumerInfo) DecreaseStake(amount bn.Uint128) error {
	total, err := c.TotalStaked.Sub(amount)
	if err != nil {
		return errors.Wrapf(ErrInsufficientDelegation, "staked %s, undelegate %s", c.TotalStaked, amount)
	}
	c.TotalStaked = total
	return nil
}

// Delegation is what one consumer delegated to one validator.
type Delegation struct {
	Amount  bn.Uint128
	Rewards shares.Rewards
}

// ValidatorInfo sums the delegations of all consumers to a validator.
type ValidatorInfo struct {
	TotalDelegated  bn.Uint128
	RewardsPerToken bn.Decimal
}

// settle accrues the rewards earned by d since its last change.
func (d *Delegation) settle(v *ValidatorInfo) error {
	return d.Rewards.CalcPendingRewards(v.RewardsPerToken, d.Amount)
}

// distribute spreads amount over the tokens delegated to the validator.
func (v *ValidatorInfo) distribute(amount bn.Uint128) error {
	return shares.CalcRewards(&v.RewardsPerToken, amount, v.TotalDelegated)
}
