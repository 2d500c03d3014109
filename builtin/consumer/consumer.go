// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package consumer is the consumer side of mesh security. It turns the
// provider's stake requests into meta-staking delegations and forwards the
// rewards they earn back to the provider.
package consumer

import (
	"encoding/json"
	"sort"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/reverts"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

var logger = log.WithContext("pkg", "consumer")

var (
	ErrUnauthorized = reverts.New("unauthorized")
	ErrNoChanges    = reverts.New("validator set unchanged")
	ErrInvalidRate  = reverts.New("exchange rate must be positive")
)

type Contract struct{}

func New() *Contract { return &Contract{} }

func (c *Contract) Instantiate(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
	}
	if msg.RemoteToLocalExchangeRate.IsZero() {
		return nil, ErrInvalidRate
	}
	if msg.Provider.ConnectionID == "" || msg.ICS20Channel == "" {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, "empty provider connection or transfer channel")
	}
	metaStaking, err := mesh.ParseAddress(msg.MetaStaking.String())
	if err != nil {
		return nil, errors.Wrap(err, "meta staking")
	}
	cfg := Config{
		Provider:                  msg.Provider,
		MetaStaking:               metaStaking,
		RemoteToLocalExchangeRate: msg.RemoteToLocalExchangeRate,
		ICS20Channel:              msg.ICS20Channel,
		PacketLifetime:            msg.PacketLifetime,
	}
	if err := stateOf(ctx).config.Save(cfg); err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender.String()), nil
}

func (c *Contract) Execute(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*meshapi.MeshConsumerReceiveRewards)(nil),
		(*SyncValidators)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	switch m := msg.(type) {
	case *meshapi.MeshConsumerReceiveRewards:
		if info.Sender != cfg.MetaStaking {
			return nil, errors.Wrapf(ErrUnauthorized, "%s is not the meta-staking contract", info.Sender)
		}
		amount, err := runtime.MustPay(info, ctx.Querier.BondedDenom())
		if err != nil {
			return nil, err
		}
		return s.receiveRewards(ctx, &cfg, m.Validator, amount)
	case *SyncValidators:
		if err := runtime.NonPayable(info); err != nil {
			return nil, err
		}
		return s.syncValidators(ctx, &cfg)
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}

// packet builds the send of msg over the provider channel.
func (s *consumerState) packet(ctx *runtime.Context, cfg *Config, msg ibc.ConsumerMsg) (*runtime.IBCSendPacket, error) {
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

// receiveRewards accrues rewards paid by meta-staking and opens a forwarding
// window unless one is already waiting for its ack.
func (s *consumerState) receiveRewards(ctx *runtime.Context, cfg *Config, validator string, amount bn.Uint128) (*runtime.Response, error) {
	v, err := s.mirror.Validator(validator)
	if err != nil {
		return nil, err
	}
	if v != nil {
		if err := s.mirror.DistributeRewards(validator, amount); err != nil {
			return nil, err
		}
	}
	w, err := s.window(validator)
	if err != nil {
		return nil, err
	}
	if w.Pending, err = w.Pending.Add(amount); err != nil {
		return nil, err
	}
	resp := runtime.NewResponse().
		AddAttribute("action", "receive_rewards").
		AddAttribute("validator", validator).
		AddAttribute("amount", amount.String())
	if w.InFlight.IsZero() {
		p, err := s.openWindow(ctx, cfg, validator, w)
		if err != nil {
			return nil, err
		}
		resp.AddMessage(p)
	}
	if err := s.windows.Set(store.StringKey(validator), w); err != nil {
		return nil, err
	}
	return resp, nil
}

// openWindow moves the pending rewards in flight and announces them.
func (s *consumerState) openWindow(ctx *runtime.Context, cfg *Config, validator string, w *window) (*runtime.IBCSendPacket, error) {
	p, err := s.packet(ctx, cfg, &ibc.Rewards{
		RewardsByValidator: []ibc.ValidatorAmount{{Validator: validator, Amount: w.Pending}},
		Denom:              ctx.Querier.BondedDenom(),
		Total:              w.Pending,
	})
	if err != nil {
		return nil, err
	}
	w.InFlight, w.Pending = w.Pending, bn.ZeroUint128()
	logger.Debug("rewards announced", "validator", validator, "amount", w.InFlight)
	return p, nil
}

// syncValidators sends the difference between the host validator set and
// the one last announced.
func (s *consumerState) syncValidators(ctx *runtime.Context, cfg *Config) (*runtime.Response, error) {
	known, err := s.knownValidators()
	if err != nil {
		return nil, err
	}
	current, err := ctx.Querier.AllValidators()
	if err != nil {
		return nil, err
	}
	added, removed := diff(known, current)
	if len(added) == 0 && len(removed) == 0 {
		return nil, ErrNoChanges
	}
	p, err := s.packet(ctx, cfg, &ibc.UpdateValidators{Added: added, Removed: removed})
	if err != nil {
		return nil, err
	}
	if err := s.validators.Save(current); err != nil {
		return nil, err
	}
	logger.Debug("validators synced", "added", len(added), "removed", len(removed))
	return runtime.NewResponse().AddMessage(p).AddAttribute("action", "sync_validators"), nil
}

// diff returns what next adds to and removes from prev, both sorted.
func diff(prev, next []string) (added, removed []string) {
	in := make(map[string]bool, len(prev))
	for _, v := range prev {
		in[v] = true
	}
	for _, v := range next {
		if !in[v] {
			added = append(added, v)
		}
		delete(in, v)
	}
	for v := range in {
		removed = append(removed, v)
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}

// Reply turns the meta-staking result of a stake or unstake into the ack of
// the packet that asked for it.
func (c *Contract) Reply(ctx *runtime.Context, reply runtime.Reply) (*runtime.Response, error) {
	if reply.ID != runtime.ReplyStake && reply.ID != runtime.ReplyUnstake {
		return nil, runtime.InvalidReply(reply.ID)
	}
	s := stateOf(ctx)
	req, err := s.request.Load()
	if err != nil {
		return nil, err
	}
	s.request.Remove()

	if !reply.Result.IsOk() {
		logger.Warn("meta-staking refused", "reply", reply.ID, "validator", req.Validator, "err", reply.Result.Err)
		return runtime.NewResponse().SetData(ibc.AckFail(reply.Result.Err).Bytes()), nil
	}
	var (
		ack ibc.StdAck
		res any = ibc.StakeResponse{}
	)
	if req.Unstake {
		res = ibc.UnstakeResponse{}
		_, err = s.mirror.UnstakeTokens(req.Delegator, req.Validator, req.Amount)
	} else {
		if err = s.mirror.ActivateValidator(req.Validator); err == nil {
			_, err = s.mirror.StakeTokens(req.Delegator, req.Validator, req.Amount)
		}
	}
	if err != nil {
		return nil, err
	}
	if ack, err = ibc.AckResponse(res); err != nil {
		return nil, err
	}
	return runtime.NewResponse().SetData(ack.Bytes()), nil
}

func (c *Contract) Query(ctx *runtime.Context, raw []byte) ([]byte, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*ConfigQuery)(nil),
		(*ChannelQuery)(nil),
		(*ValidatorsQuery)(nil),
		(*RewardsQuery)(nil),
		(*DelegatorQuery)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	var res any
	switch m := msg.(type) {
	case *ConfigQuery:
		res, err = s.config.Load()
	case *ChannelQuery:
		res, err = s.queryChannel()
	case *ValidatorsQuery:
		var list []string
		list, err = s.knownValidators()
		res = ValidatorsResponse{Validators: list}
	case *RewardsQuery:
		var w *window
		w, err = s.window(m.Validator)
		if err == nil {
			res = RewardsResponse{Validator: m.Validator, Pending: w.Pending, InFlight: w.InFlight}
		}
	case *DelegatorQuery:
		res, err = s.queryDelegator(m.Delegator, m.Validator)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(res)
}

func (s *consumerState) queryChannel() (ChannelResponse, error) {
	id, st, err := s.channel.State()
	if err != nil {
		return ChannelResponse{}, err
	}
	provider, _, err := s.provider.MayLoad()
	if err != nil {
		return ChannelResponse{}, err
	}
	return ChannelResponse{ChannelID: id, State: st.String(), Provider: provider}, nil
}

func (s *consumerState) queryDelegator(delegator, validator string) (DelegatorResponse, error) {
	v, err := s.mirror.Validator(validator)
	if err != nil || v == nil {
		return DelegatorResponse{}, err
	}
	st, err := s.mirror.Stake(delegator, validator)
	if err != nil {
		return DelegatorResponse{}, err
	}
	rewards, err := s.mirror.PendingRewards(delegator, validator)
	if err != nil {
		return DelegatorResponse{}, err
	}
	return DelegatorResponse{Shares: st.Shares, Rewards: rewards}, nil
}
