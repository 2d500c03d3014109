// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package provider

import (
	"encoding/json"
	"strings"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/shares"
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
		ConnectionID:     cfg.Consumer.ConnectionID,
		CounterpartyPort: cfg.Consumer.PortID,
	}); err != nil {
		logger.Warn("channel rejected", "channel", msg.Channel.Endpoint.ChannelID, "err", err)
		return err
	}
	return nil
}

// ChannelConnect binds the channel and asks the consumer for its validators.
func (c *Contract) ChannelConnect(ctx *runtime.Context, msg ibc.ChannelConnectMsg) (*runtime.Response, error) {
	s := stateOf(ctx)
	if err := s.channel.Connect(msg); err != nil {
		return nil, err
	}
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	p, err := s.packet(ctx, &cfg, &ibc.ListValidators{})
	if err != nil {
		return nil, err
	}
	logger.Debug("channel connected", "channel", msg.Channel.Endpoint.ChannelID)
	return runtime.NewResponse().
		AddMessage(p).
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

// PacketReceive handles the consumer's packets. Rejections are returned as
// error acks; malformed packets abort the receive.
func (c *Contract) PacketReceive(ctx *runtime.Context, msg ibc.PacketReceiveMsg) (*runtime.Response, error) {
	s := stateOf(ctx)
	if err := s.channel.CheckReceive(msg.Packet); err != nil {
		return nil, err
	}
	m, err := ibc.ParseConsumerMsg(msg.Packet.Data)
	if err != nil {
		return nil, err
	}
	metricPacketsReceived().AddWithLabel(1, map[string]string{"contract": "provider", "kind": m.Tag()})

	var ack ibc.StdAck
	switch m := m.(type) {
	case *ibc.UpdateValidators:
		ack, err = s.updateValidators(m)
	case *ibc.Rewards:
		ack, err = s.distributeRewards(ctx, m)
	default:
		return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", m.Tag())
	}
	if err != nil {
		return nil, err
	}
	return runtime.NewResponse().SetData(ack.Bytes()).AddAttribute("action", "receive_"+m.Tag()), nil
}

func (s *providerState) updateValidators(m *ibc.UpdateValidators) (ibc.StdAck, error) {
	for _, v := range m.Added {
		if err := s.ledger.ActivateValidator(v); err != nil {
			return ibc.StdAck{}, err
		}
	}
	for _, v := range m.Removed {
		if err := s.ledger.RemoveValidator(v); err != nil {
			return ibc.StdAck{}, err
		}
	}
	logger.Debug("validators updated", "added", len(m.Added), "removed", len(m.Removed))
	return ibc.AckResponse(ibc.UpdateValidatorsResponse{})
}

// distributeRewards accrues the announced rewards. The tokens themselves
// follow over the transfer channel.
func (s *providerState) distributeRewards(ctx *runtime.Context, m *ibc.Rewards) (ibc.StdAck, error) {
	cfg, err := s.config.Load()
	if err != nil {
		return ibc.StdAck{}, err
	}
	if !strings.HasSuffix(cfg.RewardsIBCDenom, "/"+m.Denom) {
		return ibc.AckFail("unexpected rewards denom " + m.Denom), nil
	}
	// validate everything before the first write
	sum := bn.ZeroUint128()
	for _, r := range m.RewardsByValidator {
		v, err := s.ledger.Validator(r.Validator)
		if err != nil {
			return ibc.StdAck{}, err
		}
		if v == nil {
			return ibc.AckFail(errors.Wrapf(shares.ErrUnknownValidator, "%s", r.Validator).Error()), nil
		}
		if sum, err = sum.Add(r.Amount); err != nil {
			return ibc.AckFail(err.Error()), nil
		}
	}
	if sum.Cmp(m.Total) != 0 {
		return ibc.AckFail(errors.Wrapf(ErrRewardsTotal, "sum %s, total %s", sum, m.Total).Error()), nil
	}
	for _, r := range m.RewardsByValidator {
		if err := s.ledger.DistributeRewards(r.Validator, r.Amount); err != nil {
			return ibc.StdAck{}, err
		}
	}
	return ibc.AckResponse(ibc.RewardsResponse{})
}

func (c *Contract) PacketAck(ctx *runtime.Context, msg ibc.PacketAckMsg) (*runtime.Response, error) {
	m, err := ibc.ParseProviderMsg(msg.OriginalPacket.Data)
	if err != nil {
		return nil, err
	}
	ack, err := ibc.ParseAck(msg.Ack)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	if !ack.IsSuccess() {
		metricAcks().AddWithLabel(1, map[string]string{"contract": "provider", "kind": m.Tag(), "result": "error"})
		return s.compensate(m, ack.Error())
	}
	metricAcks().AddWithLabel(1, map[string]string{"contract": "provider", "kind": m.Tag(), "result": "success"})

	resp := runtime.NewResponse().AddAttribute("action", "ack_"+m.Tag())
	switch m := m.(type) {
	case *ibc.Stake:
		s.inflight.Remove(store.Uint64Key(m.Key))
	case *ibc.ListValidators:
		var res ibc.ListValidatorsResponse
		if err := json.Unmarshal(ack.Result(), &res); err != nil {
			return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
		}
		for _, v := range res.Validators {
			if err := s.ledger.ActivateValidator(v); err != nil {
				return nil, err
			}
		}
		logger.Debug("validators listed", "count", len(res.Validators))
	}
	return resp, nil
}

func (c *Contract) PacketTimeout(ctx *runtime.Context, msg ibc.PacketTimeoutMsg) (*runtime.Response, error) {
	m, err := ibc.ParseProviderMsg(msg.Packet.Data)
	if err != nil {
		return nil, err
	}
	metricAcks().AddWithLabel(1, map[string]string{"contract": "provider", "kind": m.Tag(), "result": "timeout"})
	return stateOf(ctx).compensate(m, "timeout")
}

// compensate undoes the local effects of a request the consumer did not apply.
func (s *providerState) compensate(m ibc.ProviderMsg, reason string) (*runtime.Response, error) {
	resp := runtime.NewResponse().AddAttribute("action", "fail_"+m.Tag())
	switch m := m.(type) {
	case *ibc.Stake:
		if err := s.failStake(m, resp); err != nil {
			return nil, err
		}
	case *ibc.Unstake:
		if err := s.failUnstake(m); err != nil {
			return nil, err
		}
	}
	logger.Warn("request failed", "kind", m.Tag(), "reason", reason)
	return resp.AddAttribute("reason", reason), nil
}

// failStake burns the shares minted for the request and releases the
// lockup claim over their tokens.
func (s *providerState) failStake(m *ibc.Stake, resp *runtime.Response) error {
	key := store.Uint64Key(m.Key)
	pending, ok, err := s.inflight.Load(key)
	if err != nil || !ok {
		return err
	}
	s.inflight.Remove(key)

	cfg, err := s.config.Load()
	if err != nil {
		return err
	}
	_, released, err := s.ledger.RevokeStake(m.Delegator, m.Validator, pending.Shares, pending.Amount)
	if err != nil || released.IsZero() {
		return err
	}
	owner, err := mesh.ParseAddress(m.Delegator)
	if err != nil {
		return err
	}
	exec, err := runtime.ExecuteMsg(cfg.Lockup, &meshapi.ReleaseClaim{Owner: owner, Amount: released})
	if err != nil {
		return err
	}
	resp.AddMessage(exec).AddAttribute("released", released.String())
	return nil
}

// failUnstake restakes the tokens and drops the unbonding claim of the request.
func (s *providerState) failUnstake(m *ibc.Unstake) error {
	owner, err := mesh.ParseAddress(m.Delegator)
	if err != nil {
		return err
	}
	key := claimKey(owner, m.Key)
	if ok, err := s.claims.Has(key); err != nil || !ok {
		// already withdrawn, the tokens left the lockup claim
		return err
	}
	s.claims.Remove(key)
	_, err = s.ledger.RestoreStake(m.Delegator, m.Validator, m.Amount)
	return err
}
