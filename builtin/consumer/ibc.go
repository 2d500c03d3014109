// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consumer

import (
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/metrics"
	"github.com/vechain/mesh-security/runtime"
)

var (
	metricPacketsReceived = metrics.LazyLoadCounterVec("ibc_packets_received_count", []string{"contract", "kind"})
	metricAcks            = metrics.LazyLoadCounterVec("ibc_acks_count", []string{"contract", "kind", "result"})
)

func (c *Contract) ChannelOpen(ctx *runtime.Context, msg ibc.ChannelOpenMsg) error {
	s := stateOf(ctx)
	cfg, err := s.config.Load()
	if err != nil {
		return err
	}
	if _, err := s.channel.Open(msg, ibc.Expectations{
		ConnectionID:     cfg.Provider.ConnectionID,
		CounterpartyPort: cfg.Provider.PortID,
	}); err != nil {
		logger.Warn("channel rejected", "channel", msg.Channel.Endpoint.ChannelID, "err", err)
		return err
	}
	return nil
}

// ChannelConnect binds the channel and remembers the provider contract
// behind the counterparty port.
func (c *Contract) ChannelConnect(ctx *runtime.Context, msg ibc.ChannelConnectMsg) (*runtime.Response, error) {
	provider, ok := runtime.ContractFromPort(msg.Channel.CounterpartyEndpoint.PortID)
	if !ok {
		return nil, errors.Wrapf(ibc.ErrWrongPort, "%s is not a contract port", msg.Channel.CounterpartyEndpoint.PortID)
	}
	s := stateOf(ctx)
	if err := s.channel.Connect(msg); err != nil {
		return nil, err
	}
	if err := s.provider.Save(provider); err != nil {
		return nil, err
	}
	logger.Debug("channel connected", "channel", msg.Channel.Endpoint.ChannelID, "provider", provider)
	return runtime.NewResponse().
		AddAttribute("action", "ibc_connect").
		AddAttribute("channel_id", msg.Channel.Endpoint.ChannelID), nil
}

func (c *Contract) ChannelClose(ctx *runtime.Context, msg ibc.ChannelCloseMsg) (*runtime.Response, error) {
	if err := stateOf(ctx).channel.Close(msg); err != nil {
		return nil, err
	}
	logger.Warn("channel closed", "channel", msg.Channel.Endpoint.ChannelID)
	return runtime.NewResponse().AddAttribute("action", "ibc_close"), nil
}

// PacketReceive handles the provider's requests. Stake and unstake are acked
// by the reply of the meta-staking call they start.
func (c *Contract) PacketReceive(ctx *runtime.Context, msg ibc.PacketReceiveMsg) (*runtime.Response, error) {
	s := stateOf(ctx)
	if err := s.channel.CheckReceive(msg.Packet); err != nil {
		return nil, err
	}
	m, err := ibc.ParseProviderMsg(msg.Packet.Data)
	if err != nil {
		return nil, err
	}
	metricPacketsReceived().AddWithLabel(1, map[string]string{"contract": "consumer", "kind": m.Tag()})
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}

	resp := runtime.NewResponse().AddAttribute("action", "receive_"+m.Tag())
	switch m := m.(type) {
	case *ibc.ListValidators:
		vals, err := ctx.Querier.AllValidators()
		if err != nil {
			return nil, err
		}
		if err := s.validators.Save(vals); err != nil {
			return nil, err
		}
		ack, err := ibc.AckResponse(ibc.ListValidatorsResponse{Validators: vals})
		if err != nil {
			return nil, err
		}
		return resp.SetData(ack.Bytes()), nil
	case *ibc.Stake:
		return s.delegate(&cfg, resp, request{Delegator: m.Delegator, Validator: m.Validator, Amount: m.Amount})
	case *ibc.Unstake:
		return s.delegate(&cfg, resp, request{Unstake: true, Delegator: m.Delegator, Validator: m.Validator, Amount: m.Amount})
	case *ibc.WithdrawRewards:
		amount, err := s.mirror.WithdrawRewards(m.Delegator, m.Validator)
		if err != nil {
			return resp.SetData(ibc.AckFail(err.Error()).Bytes()), nil
		}
		ack, err := ibc.AckResponse(ibc.WithdrawRewardsResponse{Amount: amount})
		if err != nil {
			return nil, err
		}
		return resp.SetData(ack.Bytes()), nil
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", m.Tag())
}

// delegate asks meta-staking to move the local value of req.
func (s *consumerState) delegate(cfg *Config, resp *runtime.Response, req request) (*runtime.Response, error) {
	local, err := cfg.RemoteToLocalExchangeRate.MulFloor(req.Amount)
	if err != nil {
		return nil, err
	}
	if local.IsZero() {
		return resp.SetData(ibc.AckFail("amount too small to delegate").Bytes()), nil
	}
	var (
		id = runtime.ReplyStake
		op mesh.Tagged
	)
	if req.Unstake {
		id, op = runtime.ReplyUnstake, &meshapi.Undelegate{Validator: req.Validator, Amount: local}
	} else {
		op = &meshapi.Delegate{Validator: req.Validator, Amount: local}
	}
	exec, err := runtime.ExecuteMsg(cfg.MetaStaking, op)
	if err != nil {
		return nil, err
	}
	if err := s.request.Save(req); err != nil {
		return nil, err
	}
	logger.Debug(op.Tag(), "delegator", req.Delegator, "validator", req.Validator, "amount", req.Amount, "local", local)
	return resp.AddSubMessage(id, exec, runtime.ReplyAlways).AddAttribute("local_amount", local.String()), nil
}

func (c *Contract) PacketAck(ctx *runtime.Context, msg ibc.PacketAckMsg) (*runtime.Response, error) {
	m, err := ibc.ParseConsumerMsg(msg.OriginalPacket.Data)
	if err != nil {
		return nil, err
	}
	ack, err := ibc.ParseAck(msg.Ack)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	if !ack.IsSuccess() {
		metricAcks().AddWithLabel(1, map[string]string{"contract": "consumer", "kind": m.Tag(), "result": "error"})
		return s.compensate(m, ack.Error())
	}
	metricAcks().AddWithLabel(1, map[string]string{"contract": "consumer", "kind": m.Tag(), "result": "success"})

	resp := runtime.NewResponse().AddAttribute("action", "ack_"+m.Tag())
	if r, ok := m.(*ibc.Rewards); ok {
		if err := s.forwardRewards(ctx, r, resp); err != nil {
			return nil, err
		}
	}
	return resp, nil
}

func (c *Contract) PacketTimeout(ctx *runtime.Context, msg ibc.PacketTimeoutMsg) (*runtime.Response, error) {
	m, err := ibc.ParseConsumerMsg(msg.Packet.Data)
	if err != nil {
		return nil, err
	}
	metricAcks().AddWithLabel(1, map[string]string{"contract": "consumer", "kind": m.Tag(), "result": "timeout"})
	return stateOf(ctx).compensate(m, "timeout")
}

// forwardRewards transfers the announced rewards to the provider and opens
// the next window of every validator that accrued meanwhile.
func (s *consumerState) forwardRewards(ctx *runtime.Context, r *ibc.Rewards, resp *runtime.Response) error {
	cfg, err := s.config.Load()
	if err != nil {
		return err
	}
	provider, err := s.provider.Load()
	if err != nil {
		return err
	}
	total := bn.ZeroUint128()
	for _, e := range r.RewardsByValidator {
		w, err := s.window(e.Validator)
		if err != nil {
			return err
		}
		if total, err = total.Add(w.InFlight); err != nil {
			return err
		}
		w.InFlight = bn.ZeroUint128()
		if !w.Pending.IsZero() {
			p, err := s.openWindow(ctx, &cfg, e.Validator, w)
			if err != nil {
				return err
			}
			resp.AddMessage(p)
		}
		if err := s.windows.Set(store.StringKey(e.Validator), w); err != nil {
			return err
		}
	}
	if total.IsZero() {
		return nil
	}
	resp.AddMessage(&runtime.IBCTransfer{
		ChannelID: cfg.ICS20Channel,
		ToAddress: provider.String(),
		Amount:    mesh.Coin{Denom: r.Denom, Amount: total},
	}).AddAttribute("forwarded", total.String())
	logger.Debug("rewards forwarded", "provider", provider, "amount", total)
	return nil
}

func (s *consumerState) compensate(m ibc.ConsumerMsg, reason string) (*runtime.Response, error) {
	resp := runtime.NewResponse().AddAttribute("action", "fail_"+m.Tag())
	switch m := m.(type) {
	case *ibc.Rewards:
		if err := s.failRewards(m); err != nil {
			return nil, err
		}
	case *ibc.UpdateValidators:
		if err := s.failUpdateValidators(m); err != nil {
			return nil, err
		}
	}
	logger.Warn("request failed", "kind", m.Tag(), "reason", reason)
	return resp.AddAttribute("reason", reason), nil
}

// failRewards puts the rewards in flight back to pending, to be announced
// with the next rewards of the validator.
func (s *consumerState) failRewards(r *ibc.Rewards) error {
	for _, e := range r.RewardsByValidator {
		w, err := s.window(e.Validator)
		if err != nil {
			return err
		}
		if w.Pending, err = w.Pending.Add(w.InFlight); err != nil {
			return err
		}
		w.InFlight = bn.ZeroUint128()
		if err := s.windows.Set(store.StringKey(e.Validator), w); err != nil {
			return err
		}
	}
	return nil
}

// failUpdateValidators forgets the announced changes so the next sync
// sends them again.
func (s *consumerState) failUpdateValidators(u *ibc.UpdateValidators) error {
	known, err := s.knownValidators()
	if err != nil {
		return err
	}
	added := make(map[string]bool, len(u.Added))
	for _, v := range u.Added {
		added[v] = true
	}
	list := make([]string, 0, len(known)+len(u.Removed))
	for _, v := range known {
		if !added[v] {
			list = append(list, v)
		}
	}
	return s.validators.Save(append(list, u.Removed...))
}
