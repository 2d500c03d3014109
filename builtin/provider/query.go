// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package provider

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/builtin/shares"
	"github.com/vechain/mesh-security/mesh"
)

func validatorResponse(addr string, v *shares.Validator) (ValidatorResponse, error) {
	value, err := v.StakeValue()
	if err != nil {
		return ValidatorResponse{}, err
	}
	return ValidatorResponse{
		Address:         addr,
		Status:          v.Status.String(),
		Shares:          v.Stake,
		StakeValue:      value,
		Multiplier:      v.Multiplier,
		RewardsPerToken: v.RewardsPerToken,
	}, nil
}

func (s *providerState) queryValidator(addr string) (ValidatorResponse, error) {
	v, err := s.ledger.Validator(addr)
	if err != nil {
		return ValidatorResponse{}, err
	}
	if v == nil {
		return ValidatorResponse{}, errors.Wrapf(shares.ErrUnknownValidator, "%s", addr)
	}
	return validatorResponse(addr, v)
}

func (s *providerState) queryValidators(startAfter string, limit int) (ListValidatorsResponse, error) {
	entries, err := s.ledger.ListValidators(startAfter, limit)
	if err != nil {
		return ListValidatorsResponse{}, err
	}
	res := ListValidatorsResponse{Validators: make([]ValidatorResponse, 0, len(entries))}
	for _, e := range entries {
		v, err := validatorResponse(e.Address, e.Validator)
		if err != nil {
			return ListValidatorsResponse{}, err
		}
		res.Validators = append(res.Validators, v)
	}
	return res, nil
}

func (s *providerState) queryAccount(addr mesh.Address) (AccountResponse, error) {
	var (
		res  AccountResponse
		list []StakeInfo
	)
	err := s.ledger.Holdings(addr.String(), func(validator string, st *shares.Stake) bool {
		list = append(list, StakeInfo{Validator: validator, Locked: st.Locked, Shares: st.Shares})
		return true
	})
	if err != nil {
		return res, err
	}
	for i := range list {
		v, err := s.ledger.Validator(list[i].Validator)
		if err != nil {
			return res, err
		}
		st, err := s.ledger.Stake(addr.String(), list[i].Validator)
		if err != nil {
			return res, err
		}
		if list[i].Value, err = st.CurrentValue(v); err != nil {
			return res, err
		}
		if list[i].Rewards, err = s.ledger.PendingRewards(addr.String(), list[i].Validator); err != nil {
			return res, err
		}
	}
	res.Stakes = list
	return res, nil
}
