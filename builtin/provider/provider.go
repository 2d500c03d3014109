// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package provider is the provider side of mesh security. It receives claims
// over lockup balances, tracks them as shares of remote validators and asks
// the consumer to stake and unstake over its ibc channel.
package provider

import (
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/metrics"
	"github.com/vechain/mesh-security/runtime"
)

var (
	logger = log.WithContext("pkg", "provider")

	metricSlashes = metrics.LazyLoadCounter("slashes_count")
)

var (
	ErrUnauthorized = reverts.New("unauthorized")
	ErrNoClaims     = reverts.New("no mature claims")
	ErrRewardsTotal = reverts.New("rewards do not add up to the total")
)

// Contract is the provider code.
type Contract struct{}

func New() *Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
	}
	lockup, err := mesh.ParseAddress(msg.Lockup.String())
	if err != nil {
		return nil, errors.Wrap(err, "lockup")
	}
	if msg.Consumer.ConnectionID == "" {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, "empty consumer connection")
	}
	if msg.Consumer.PortID == "" {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, "empty consumer port")
	}
	cfg := Config{
		Consumer:        msg.Consumer,
		Lockup:          lockup,
		UnbondingPeriod: msg.UnbondingPeriod,
		RewardsIBCDenom: msg.RewardsIBCDenom,
		PacketLifetime:  msg.PacketLifetime,
	}
	if err := stateOf(ctx).config.Save(cfg); err != nil {
		return nil, err
	}
	resp := runtime.NewResponse().
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender.String())
	if msg.Slasher != nil {
		resp.AddSubMessage(runtime.ReplySlasherInit, &runtime.WasmInstantiate{
			CodeID: msg.Slasher.CodeID,
			Msg:    msg.Slasher.Msg,
			Label:  "Slasher for " + ctx.Env.Contract.String(),
		}, runtime.ReplySuccess)
	}
	return resp, nil
}

func (c *Contract) Reply(ctx *runtime.Context, reply runtime.Reply) (*runtime.Response, error) {
	switch reply.ID {
	case runtime.ReplySlasherInit:
		res, err := runtime.ParseInstantiateResult(reply.Result.Data)
		if err != nil {
			return nil, err
		}
		s := stateOf(ctx)
		cfg, err := s.config.Load()
		if err != nil {
			return nil, err
		}
		cfg.Slasher = res.Address
		if err := s.config.Save(cfg); err != nil {
			return nil, err
		}
		return runtime.NewResponse().AddAttribute("slasher", res.Address.String()), nil
	}
	return nil, runtime.InvalidReply(reply.ID)
}

func (c *Contract) Execute(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*meshapi.ReceiveClaim)(nil),
		(*meshapi.Slash)(nil),
		(*Unstake)(nil),
		(*WithdrawUnbonded)(nil),
		(*ClaimRewards)(nil),
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
	case *meshapi.ReceiveClaim:
		if info.Sender != cfg.Lockup {
			return nil, errors.Wrapf(ErrUnauthorized, "%s is not the lockup", info.Sender)
		}
		return s.receiveClaim(ctx, &cfg, m)
	case *meshapi.Slash:
		if cfg.Slasher.IsEmpty() || info.Sender != cfg.Slasher {
			return nil, errors.Wrapf(ErrUnauthorized, "%s is not the slasher", info.Sender)
		}
		return s.slash(m)
	case *Unstake:
		return s.unstake(ctx, &cfg, info.Sender, m)
	case *WithdrawUnbonded:
		return s.withdrawUnbonded(ctx, &cfg, info.Sender)
	case *ClaimRewards:
		return s.claimRewards(ctx, &cfg, info.Sender, m.Validator)
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}

// packet builds the send of msg over the consumer channel.
func (s *providerState) packet(ctx *runtime.Context, cfg *Config, msg ibc.ProviderMsg) (*runtime.IBCSendPacket, error) {
	channel, err := s.channel.Connected()
	if err != nil {
		return nil, err
	}
	data, err := mesh.MarshalTagged(msg)
	if err != nil {
		return nil, err
	}
	var timeout uint64
	if cfg.PacketLifetime != 0 {
		timeout = ctx.Env.Block.Time + cfg.PacketLifetime
	}
	return &runtime.IBCSendPacket{ChannelID: channel, Data: data, Timeout: timeout}, nil
}

// realizeSlash turns the slashing the owner suffered at validator into a
// claim slash on the lockup.
func (s *providerState) realizeSlash(cfg *Config, owner mesh.Address, validator string, resp *runtime.Response) error {
	v, err := s.ledger.Validator(validator)
	if err != nil || v == nil {
		return err
	}
	delta, ok, err := s.ledger.TakeSlash(owner.String(), validator)
	if err != nil || !ok {
		return err
	}
	exec, err := runtime.ExecuteMsg(cfg.Lockup, &meshapi.SlashClaim{Owner: owner, Amount: delta})
	if err != nil {
		return err
	}
	logger.Debug("slash realized", "owner", owner, "validator", validator, "amount", delta)
	resp.AddMessage(exec).AddAttribute("slashed", delta.String())
	return nil
}

func (s *providerState) receiveClaim(ctx *runtime.Context, cfg *Config, m *meshapi.ReceiveClaim) (*runtime.Response, error) {
	resp := runtime.NewResponse()
	if err := s.realizeSlash(cfg, m.Owner, m.Validator, resp); err != nil {
		return nil, err
	}
	minted, err := s.ledger.StakeTokens(m.Owner.String(), m.Validator, m.Amount)
	if err != nil {
		return nil, err
	}
	key, err := s.requests.Next()
	if err != nil {
		return nil, err
	}
	if err := s.inflight.Set(store.Uint64Key(key), &pendingStake{Shares: minted, Amount: m.Amount}); err != nil {
		return nil, err
	}
	p, err := s.packet(ctx, cfg, &ibc.Stake{Validator: m.Validator, Amount: m.Amount, Delegator: m.Owner.String(), Key: key})
	if err != nil {
		return nil, err
	}
	logger.Debug("stake", "owner", m.Owner, "validator", m.Validator, "amount", m.Amount, "key", key)
	return resp.AddMessage(p).
		AddAttribute("action", "stake").
		AddAttribute("validator", m.Validator).
		AddAttribute("amount", m.Amount.String()), nil
}

func (s *providerState) unstake(ctx *runtime.Context, cfg *Config, owner mesh.Address, m *Unstake) (*runtime.Response, error) {
	resp := runtime.NewResponse()
	if err := s.realizeSlash(cfg, owner, m.Validator, resp); err != nil {
		return nil, err
	}
	if _, err := s.ledger.UnstakeTokens(owner.String(), m.Validator, m.Amount); err != nil {
		return nil, err
	}
	id, err := s.requests.Next()
	if err != nil {
		return nil, err
	}
	claim := &Claim{ID: id, Validator: m.Validator, Amount: m.Amount, ReleaseAt: ctx.Env.Block.Time + cfg.UnbondingPeriod}
	if err := s.claims.Set(claimKey(owner, id), claim); err != nil {
		return nil, err
	}
	p, err := s.packet(ctx, cfg, &ibc.Unstake{Validator: m.Validator, Amount: m.Amount, Delegator: owner.String(), Key: id})
	if err != nil {
		return nil, err
	}
	logger.Debug("unstake", "owner", owner, "validator", m.Validator, "amount", m.Amount, "release_at", claim.ReleaseAt)
	return resp.AddMessage(p).
		AddAttribute("action", "unstake").
		AddAttribute("validator", m.Validator).
		AddAttribute("amount", m.Amount.String()).
		AddAttribute("release_at", strconv.FormatUint(claim.ReleaseAt, 10)), nil
}

func (s *providerState) withdrawUnbonded(ctx *runtime.Context, cfg *Config, owner mesh.Address) (*runtime.Response, error) {
	claims, err := s.ownerClaims(owner)
	if err != nil {
		return nil, err
	}
	total := bn.ZeroUint128()
	for _, c := range claims {
		if !c.Mature(ctx.Env.Block.Time) {
			continue
		}
		if total, err = total.Add(c.Amount); err != nil {
			return nil, err
		}
		s.claims.Remove(claimKey(owner, c.ID))
	}
	if total.IsZero() {
		return nil, ErrNoClaims
	}
	exec, err := runtime.ExecuteMsg(cfg.Lockup, &meshapi.ReleaseClaim{Owner: owner, Amount: total})
	if err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddMessage(exec).
		AddAttribute("action", "withdraw_unbonded").
		AddAttribute("amount", total.String()), nil
}

func (s *providerState) claimRewards(ctx *runtime.Context, cfg *Config, owner mesh.Address, validator string) (*runtime.Response, error) {
	amount, err := s.ledger.WithdrawRewards(owner.String(), validator)
	if err != nil {
		return nil, err
	}
	p, err := s.packet(ctx, cfg, &ibc.WithdrawRewards{Validator: validator, Delegator: owner.String()})
	if err != nil {
		return nil, err
	}
	resp := runtime.NewResponse().
		AddMessage(p).
		AddAttribute("action", "claim_rewards").
		AddAttribute("amount", amount.String())
	if !amount.IsZero() {
		resp.AddMessage(&runtime.BankSend{
			ToAddress: owner,
			Amount:    mesh.Coins{{Denom: ibc.DenomFromPath(cfg.RewardsIBCDenom), Amount: amount}},
		})
	}
	return resp, nil
}

func (s *providerState) slash(m *meshapi.Slash) (*runtime.Response, error) {
	if err := s.ledger.Slash(m.Validator, m.Percentage); err != nil {
		return nil, err
	}
	if m.ForceUnbond {
		if err := s.ledger.Tombstone(m.Validator); err != nil {
			return nil, err
		}
	}
	metricSlashes().Add(1)
	logger.Info("validator slashed", "validator", m.Validator, "percentage", m.Percentage, "force_unbond", m.ForceUnbond)
	return runtime.NewResponse().
		AddAttribute("action", "slash").
		AddAttribute("validator", m.Validator).
		AddAttribute("percentage", m.Percentage.String()), nil
}

func (c *Contract) Query(ctx *runtime.Context, raw []byte) ([]byte, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*ConfigQuery)(nil),
		(*ValidatorQuery)(nil),
		(*ListValidatorsQuery)(nil),
		(*AccountQuery)(nil),
		(*ClaimsQuery)(nil),
		(*ChannelQuery)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	var res any
	switch m := msg.(type) {
	case *ConfigQuery:
		res, err = s.config.Load()
	case *ValidatorQuery:
		res, err = s.queryValidator(m.Address)
	case *ListValidatorsQuery:
		res, err = s.queryValidators(m.StartAfter, m.Limit)
	case *AccountQuery:
		res, err = s.queryAccount(m.Address)
	case *ClaimsQuery:
		var claims []Claim
		claims, err = s.ownerClaims(m.Address)
		res = ClaimsResponse{Claims: claims}
	case *ChannelQuery:
		var (
			id string
			st ibc.ChannelState
		)
		id, st, err = s.channel.State()
		res = ChannelResponse{ChannelID: id, State: st.String()}
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}
