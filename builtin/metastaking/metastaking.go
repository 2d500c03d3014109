// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package metastaking delegates on behalf of consumer contracts, within the
// budget governance grants each of them, and splits the staking rewards
// between them.
package metastaking

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

var logger = log.WithContext("pkg", "metastaking")

var (
	ErrUnauthorized              = reverts.New("unauthorized")
	ErrIncorrectDenom            = reverts.New("incorrect denom")
	ErrInsufficientDelegation    = reverts.New("insufficient delegation")
	ErrNoFundsToDelegate         = reverts.New("no funds to delegate")
	ErrNoDelegationsForValidator = reverts.New("no delegations for validator")
	ErrNotEnoughFunds            = reverts.New("contract has not enough funds")
	ErrConsumerAlreadyExists     = reverts.New("consumer already exists")
	ErrNoConsumer                = reverts.New("no consumer")
)

// withdrawal is the balance before a reward withdrawal, kept for its reply.
type withdrawal struct {
	Validator string
	Before    bn.Uint128
}

type metaState struct {
	config      *store.Item[Config]
	consumers   *store.Mapping[store.StringKey, *ConsumerInfo]
	delegations *store.Mapping[store.PairKey, *Delegation]
	validators  *store.Mapping[store.StringKey, *ValidatorInfo]
	withdrawal  *store.Item[withdrawal]
}

func stateOf(ctx *runtime.Context) *metaState {
	return &metaState{
		config:      store.NewItem[Config](ctx.Store, "config"),
		consumers:   store.NewMapping[store.StringKey, *ConsumerInfo](ctx.Store, "consumers"),
		delegations: store.NewMapping[store.PairKey, *Delegation](ctx.Store, "delegations"),
		validators:  store.NewMapping[store.StringKey, *ValidatorInfo](ctx.Store, "validators"),
		withdrawal:  store.NewItem[withdrawal](ctx.Store, "withdrawal"),
	}
}

func delegationKey(consumer mesh.Address, validator string) store.PairKey {
	return store.Pair(store.StringKey(consumer), store.StringKey(validator))
}

func (s *metaState) consumer(addr mesh.Address) (*ConsumerInfo, error) {
	c, ok, err := s.consumers.Load(store.StringKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoConsumer, "%s", addr)
	}
	return c, nil
}

func (s *metaState) validator(validator string) (*ValidatorInfo, error) {
	v, ok, err := s.validators.Load(store.StringKey(validator))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &ValidatorInfo{}, nil
	}
	return v, nil
}

func (s *metaState) delegation(consumer mesh.Address, validator string) (*Delegation, error) {
	d, ok, err := s.delegations.Load(delegationKey(consumer, validator))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Delegation{}, nil
	}
	return d, nil
}

func (s *metaState) save(consumer mesh.Address, c *ConsumerInfo, validator string, v *ValidatorInfo, d *Delegation) error {
	if err := s.consumers.Set(store.StringKey(consumer), c); err != nil {
		return err
	}
	if err := s.validators.Set(store.StringKey(validator), v); err != nil {
		return err
	}
	return s.delegations.Set(delegationKey(consumer, validator), d)
}

type Contract struct{}

func New() *Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
	}
	admin := msg.Admin
	if admin.IsEmpty() {
		admin = info.Sender
	}
	cfg := Config{Admin: admin, Denom: ctx.Querier.BondedDenom()}
	if err := stateOf(ctx).config.Save(cfg); err != nil {
		return nil, err
	}
	return runtime.NewResponse().AddAttribute("method", "instantiate").AddAttribute("admin", admin.String()), nil
}

func (c *Contract) Execute(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*meshapi.Delegate)(nil),
		(*meshapi.Undelegate)(nil),
		(*meshapi.WithdrawDelegatorReward)(nil),
		(*meshapi.WithdrawToConsumer)(nil),
	)
	if err != nil {
		return nil, err
	}
	if err := runtime.NonPayable(info); err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case *meshapi.Delegate:
		return s.delegate(&cfg, info.Sender, m.Validator, m.Amount)
	case *meshapi.Undelegate:
		return s.undelegate(&cfg, info.Sender, m.Validator, m.Amount)
	case *meshapi.WithdrawDelegatorReward:
		if info.Sender != cfg.Admin {
			return nil, errors.Wrapf(ErrUnauthorized, "%s is not the admin", info.Sender)
		}
		return s.withdrawDelegatorReward(ctx, &cfg, m.Validator)
	case *meshapi.WithdrawToConsumer:
		if info.Sender != cfg.Admin {
			return nil, errors.Wrapf(ErrUnauthorized, "%s is not the admin", info.Sender)
		}
		return s.withdrawToConsumer(&cfg, m.Consumer, m.Validator)
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}

func (s *metaState) delegate(cfg *Config, consumer mesh.Address, validator string, amount bn.Uint128) (*runtime.Response, error) {
	c, err := s.consumer(consumer)
	if err != nil {
		return nil, err
	}
	if err := c.IncreaseStake(amount); err != nil {
		return nil, err
	}
	v, err := s.validator(validator)
	if err != nil {
		return nil, err
	}
	d, err := s.delegation(consumer, validator)
	if err != nil {
		return nil, err
	}
	if err := d.settle(v); err != nil {
		return nil, err
	}
	if d.Amount, err = d.Amount.Add(amount); err != nil {
		return nil, err
	}
	if v.TotalDelegated, err = v.TotalDelegated.Add(amount); err != nil {
		return nil, err
	}
	if err := s.save(consumer, c, validator, v, d); err != nil {
		return nil, err
	}
	logger.Debug("delegate", "consumer", consumer, "validator", validator, "amount", amount)
	return runtime.NewResponse().
		AddMessage(&runtime.StakingDelegate{Validator: validator, Amount: mesh.Coin{Denom: cfg.Denom, Amount: amount}}).
		AddAttribute("action", "delegate").
		AddAttribute("validator", validator).
		AddAttribute("amount", amount.String()), nil
}

func (s *metaState) undelegate(cfg *Config, consumer mesh.Address, validator string, amount bn.Uint128) (*runtime.Response, error) {
	c, err := s.consumer(consumer)
	if err != nil {
		return nil, err
	}
	ok, err := s.delegations.Has(delegationKey(consumer, validator))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrNoDelegationsForValidator, "%s", validator)
	}
	if err := c.DecreaseStake(amount); err != nil {
		return nil, err
	}
	v, err := s.validator(validator)
	if err != nil {
		return nil, err
	}
	d, err := s.delegation(consumer, validator)
	if err != nil {
		return nil, err
	}
	if err := d.settle(v); err != nil {
		return nil, err
	}
	if d.Amount, err = d.Amount.Sub(amount); err != nil {
		return nil, errors.Wrapf(ErrInsufficientDelegation, "delegated %s to %s", d.Amount, validator)
	}
	v.TotalDelegated = v.TotalDelegated.SaturatingSub(amount)
	if err := s.save(consumer, c, validator, v, d); err != nil {
		return nil, err
	}
	logger.Debug("undelegate", "consumer", consumer, "validator", validator, "amount", amount)
	return runtime.NewResponse().
		AddMessage(&runtime.StakingUndelegate{Validator: validator, Amount: mesh.Coin{Denom: cfg.Denom, Amount: amount}}).
		AddAttribute("action", "undelegate").
		AddAttribute("validator", validator).
		AddAttribute("amount", amount.String()), nil
}

// withdrawDelegatorReward collects the staking rewards at validator. The
// reply splits what arrived between the consumers delegating there.
func (s *metaState) withdrawDelegatorReward(ctx *runtime.Context, cfg *Config, validator string) (*runtime.Response, error) {
	v, err := s.validator(validator)
	if err != nil {
		return nil, err
	}
	if v.TotalDelegated.IsZero() {
		return nil, errors.Wrapf(ErrNoDelegationsForValidator, "%s", validator)
	}
	before, err := ctx.Querier.Balance(ctx.Env.Contract, cfg.Denom)
	if err != nil {
		return nil, err
	}
	if err := s.withdrawal.Save(withdrawal{Validator: validator, Before: before}); err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddSubMessage(runtime.ReplyWithdrawRewards, &runtime.DistributionWithdraw{Validator: validator}, runtime.ReplySuccess).
		AddAttribute("action", "withdraw_delegator_reward").
		AddAttribute("validator", validator), nil
}

func (c *Contract) Reply(ctx *runtime.Context, reply runtime.Reply) (*runtime.Response, error) {
	if reply.ID != runtime.ReplyWithdrawRewards {
		return nil, runtime.InvalidReply(reply.ID)
	}
	s := stateOf(ctx)
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	w, err := s.withdrawal.Load()
	if err != nil {
		return nil, err
	}
	s.withdrawal.Remove()

	after, err := ctx.Querier.Balance(ctx.Env.Contract, cfg.Denom)
	if err != nil {
		return nil, err
	}
	amount := after.SaturatingSub(w.Before)
	v, err := s.validator(w.Validator)
	if err != nil {
		return nil, err
	}
	if err := v.distribute(amount); err != nil {
		return nil, err
	}
	if err := s.validators.Set(store.StringKey(w.Validator), v); err != nil {
		return nil, err
	}
	logger.Debug("rewards withdrawn", "validator", w.Validator, "amount", amount)
	return runtime.NewResponse().AddAttribute("rewards", amount.String()), nil
}

// withdrawToConsumer pays the settled rewards of consumer at validator to
// the consumer contract.
func (s *metaState) withdrawToConsumer(cfg *Config, consumer mesh.Address, validator string) (*runtime.Response, error) {
	c, err := s.consumer(consumer)
	if err != nil {
		return nil, err
	}
	v, err := s.validator(validator)
	if err != nil {
		return nil, err
	}
	d, err := s.delegation(consumer, validator)
	if err != nil {
		return nil, err
	}
	if err := d.settle(v); err != nil {
		return nil, err
	}
	amount := d.Rewards.PendingToUint128()
	d.Rewards.ResetPending()
	if c.Rewards, err = c.Rewards.Add(amount); err != nil {
		return nil, err
	}
	if err := s.save(consumer, c, validator, v, d); err != nil {
		return nil, err
	}
	resp := runtime.NewResponse().
		AddAttribute("action", "withdraw_to_consumer").
		AddAttribute("amount", amount.String())
	if amount.IsZero() {
		return resp, nil
	}
	exec, err := runtime.ExecuteMsg(consumer, &meshapi.MeshConsumerReceiveRewards{Validator: validator}, mesh.Coin{Denom: cfg.Denom, Amount: amount})
	if err != nil {
		return nil, err
	}
	return resp.AddMessage(exec), nil
}

// Sudo takes governance decisions on the consumer budgets.
func (c *Contract) Sudo(ctx *runtime.Context, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*meshapi.AddConsumer)(nil),
		(*meshapi.RemoveConsumer)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	switch m := msg.(type) {
	case *meshapi.AddConsumer:
		return s.addConsumer(ctx, m)
	case *meshapi.RemoveConsumer:
		if ok, err := s.consumers.Has(store.StringKey(m.ConsumerAddress)); err != nil {
			return nil, err
		} else if !ok {
			return nil, errors.Wrapf(ErrNoConsumer, "%s", m.ConsumerAddress)
		}
		s.consumers.Remove(store.StringKey(m.ConsumerAddress))
		logger.Info("consumer removed", "consumer", m.ConsumerAddress)
		return runtime.NewResponse().AddAttribute("action", "remove_consumer"), nil
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}

func (s *metaState) addConsumer(ctx *runtime.Context, m *meshapi.AddConsumer) (*runtime.Response, error) {
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	if m.FundsAvailableForStaking.Denom != cfg.Denom {
		return nil, errors.Wrapf(ErrIncorrectDenom, "expected %s, got %s", cfg.Denom, m.FundsAvailableForStaking.Denom)
	}
	if ok, err := s.consumers.Has(store.StringKey(m.ConsumerAddress)); err != nil {
		return nil, err
	} else if ok {
		return nil, errors.Wrapf(ErrConsumerAlreadyExists, "%s", m.ConsumerAddress)
	}
	balance, err := ctx.Querier.Balance(ctx.Env.Contract, cfg.Denom)
	if err != nil {
		return nil, err
	}
	if balance.Lt(m.FundsAvailableForStaking.Amount) {
		return nil, errors.Wrapf(ErrNotEnoughFunds, "balance %s", balance)
	}
	info := &ConsumerInfo{AvailableFunds: m.FundsAvailableForStaking.Amount}
	if err := s.consumers.Set(store.StringKey(m.ConsumerAddress), info); err != nil {
		return nil, err
	}
	logger.Info("consumer added", "consumer", m.ConsumerAddress, "funds", m.FundsAvailableForStaking)
	return runtime.NewResponse().AddAttribute("action", "add_consumer"), nil
}

func (c *Contract) Query(ctx *runtime.Context, raw []byte) ([]byte, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*ConfigQuery)(nil),
		(*ConsumerQuery)(nil),
		(*DelegationQuery)(nil),
		(*AllDelegationsQuery)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	var res any
	switch m := msg.(type) {
	case *ConfigQuery:
		res, err = s.config.Load()
	case *ConsumerQuery:
		var info *ConsumerInfo
		if info, err = s.consumer(m.Address); err == nil {
			res = ConsumerResponse{AvailableFunds: info.AvailableFunds, TotalStaked: info.TotalStaked, Rewards: info.Rewards}
		}
	case *DelegationQuery:
		res, err = s.queryDelegation(m.Consumer, m.Validator)
	case *AllDelegationsQuery:
		res, err = s.queryAllDelegations(m.Consumer)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (s *metaState) queryDelegation(consumer mesh.Address, validator string) (DelegationResponse, error) {
	v, err := s.validator(validator)
	if err != nil {
		return DelegationResponse{}, err
	}
	d, err := s.delegation(consumer, validator)
	if err != nil {
		return DelegationResponse{}, err
	}
	if err := d.settle(v); err != nil {
		return DelegationResponse{}, err
	}
	return DelegationResponse{Validator: validator, Amount: d.Amount, Rewards: d.Rewards.PendingToUint128()}, nil
}

func (s *metaState) queryAllDelegations(consumer mesh.Address) (AllDelegationsResponse, error) {
	var validators []string
	err := s.delegations.Range(store.PairPrefix(store.StringKey(consumer)), func(key []byte, _ *Delegation) bool {
		pair, err := store.SplitPair(key)
		if err != nil {
			return false
		}
		validators = append(validators, string(pair.Second))
		return true
	})
	if err != nil {
		return AllDelegationsResponse{}, err
	}
	res := AllDelegationsResponse{Delegations: make([]DelegationResponse, 0, len(validators))}
	for _, v := range validators {
		d, err := s.queryDelegation(consumer, v)
		if err != nil {
			return AllDelegationsResponse{}, err
		}
		res.Delegations = append(res.Delegations, d)
	}
	return res, nil
}
