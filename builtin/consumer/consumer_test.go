// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package consumer

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/metastaking"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/lvldb"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

const denom = "ujuno"

func u(x uint64) bn.Uint128 { return bn.NewUint128(x) }

// home stands in for the provider. Its execute msg is sent as a packet, and
// it acks consumer packets unless told to "reject" them.
type home struct{}

func (home) Instantiate(*runtime.Context, runtime.MessageInfo, []byte) (*runtime.Response, error) {
	return runtime.NewResponse(), nil
}

func (home) Execute(ctx *runtime.Context, _ runtime.MessageInfo, msg []byte) (*runtime.Response, error) {
	switch string(msg) {
	case "reject", "accept":
		ctx.Store.Set([]byte("mode"), msg)
		return runtime.NewResponse(), nil
	}
	ch, err := ctx.Store.Get([]byte("channel"))
	if err != nil {
		return nil, err
	}
	return runtime.NewResponse().AddMessage(&runtime.IBCSendPacket{ChannelID: string(ch), Data: msg}), nil
}

func (home) Query(ctx *runtime.Context, msg []byte) ([]byte, error) { return ctx.Store.Get(msg) }

func (home) ChannelOpen(_ *runtime.Context, msg ibc.ChannelOpenMsg) error {
	return ibc.CheckVersion(msg.Channel.Version)
}

func (home) ChannelConnect(ctx *runtime.Context, msg ibc.ChannelConnectMsg) (*runtime.Response, error) {
	ctx.Store.Set([]byte("channel"), []byte(msg.Channel.Endpoint.ChannelID))
	return runtime.NewResponse(), nil
}

func (home) ChannelClose(*runtime.Context, ibc.ChannelCloseMsg) (*runtime.Response, error) {
	return runtime.NewResponse(), nil
}

func (home) PacketReceive(ctx *runtime.Context, msg ibc.PacketReceiveMsg) (*runtime.Response, error) {
	if _, err := ibc.ParseConsumerMsg(msg.Packet.Data); err != nil {
		return nil, err
	}
	ctx.Store.Set([]byte("received"), msg.Packet.Data)
	if mode, _ := ctx.Store.Get([]byte("mode")); string(mode) == "reject" {
		return runtime.NewResponse().SetData(ibc.AckFail("rejected").Bytes()), nil
	}
	return runtime.NewResponse().SetData(ibc.AckSuccess([]byte("{}")).Bytes()), nil
}

func (home) PacketAck(ctx *runtime.Context, msg ibc.PacketAckMsg) (*runtime.Response, error) {
	ctx.Store.Set([]byte("ack"), msg.Ack)
	return runtime.NewResponse(), nil
}

func (home) PacketTimeout(*runtime.Context, ibc.PacketTimeoutMsg) (*runtime.Response, error) {
	return runtime.NewResponse(), nil
}

type suite struct {
	t        *testing.T
	osmo     *runtime.App
	juno     *runtime.App
	home     mesh.Address
	meta     mesh.Address
	consumer mesh.Address
	transfer runtime.ChannelPair
}

func newChain(t *testing.T, id, bonded string) *runtime.App {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	app, err := runtime.New(db, runtime.Options{ChainID: id, AddressPrefix: id, BondedDenom: bonded, GenesisTime: 1_700_000_000})
	require.NoError(t, err)
	return app
}

func newSuite(t *testing.T) *suite {
	s := &suite{t: t, osmo: newChain(t, "osmo", "uosmo"), juno: newChain(t, "juno", denom)}
	require.NoError(t, s.juno.AddValidator("val1"))
	require.NoError(t, s.juno.AddValidator("val2"))

	var err error
	s.home, err = s.osmo.Instantiate("admin", s.osmo.StoreCode(home{}), nil, nil, "provider")
	require.NoError(t, err)

	init, err := json.Marshal(metastaking.InstantiateMsg{Admin: "admin"})
	require.NoError(t, err)
	s.meta, err = s.juno.Instantiate("gov", s.juno.StoreCode(metastaking.New()), init, nil, "meta-staking")
	require.NoError(t, err)
	require.NoError(t, s.juno.Mint(s.meta, mesh.NewCoin(1000, denom)))

	s.transfer, err = runtime.Connect(s.juno, s.osmo, ibc.TransferPort, ibc.TransferPort, "connection-0", "connection-0", runtime.TransferVersion)
	require.NoError(t, err)

	init, err = json.Marshal(InstantiateMsg{
		Provider:                  ProviderInfo{PortID: runtime.PortID(s.home), ConnectionID: "connection-0"},
		MetaStaking:               s.meta,
		RemoteToLocalExchangeRate: bn.MustParseDecimal("0.5"),
		ICS20Channel:              s.transfer.A,
	})
	require.NoError(t, err)
	s.consumer, err = s.juno.Instantiate("gov", s.juno.StoreCode(New()), init, nil, "consumer")
	require.NoError(t, err)
	_, err = s.juno.Sudo(s.meta, mesh.MustMarshalTagged(&meshapi.AddConsumer{ConsumerAddress: s.consumer, FundsAvailableForStaking: mesh.NewCoin(500, denom)}))
	require.NoError(t, err)

	_, err = runtime.Connect(s.osmo, s.juno, runtime.PortID(s.home), runtime.PortID(s.consumer), "connection-0", "connection-0", ibc.AppVersion)
	require.NoError(t, err)
	return s
}

func (s *suite) relay() runtime.RelayResult {
	res, err := runtime.RelayAll(s.osmo, s.juno, "relayer")
	require.NoError(s.t, err)
	return res
}

// send makes the provider side send msg and relays it.
func (s *suite) send(msg mesh.Tagged) ibc.StdAck {
	_, err := s.osmo.Execute("admin", s.home, mesh.MustMarshalTagged(msg), nil)
	require.NoError(s.t, err)
	s.relay()
	raw, err := s.osmo.Query(s.home, []byte("ack"))
	require.NoError(s.t, err)
	ack, err := ibc.ParseAck(raw)
	require.NoError(s.t, err)
	return ack
}

func (s *suite) setMode(mode string) {
	_, err := s.osmo.Execute("admin", s.home, []byte(mode), nil)
	require.NoError(s.t, err)
}

func (s *suite) query(msg mesh.Tagged, out any) {
	raw, err := s.juno.Query(s.consumer, mesh.MustMarshalTagged(msg))
	require.NoError(s.t, err)
	require.NoError(s.t, json.Unmarshal(raw, out))
}

func (s *suite) window(validator string) RewardsResponse {
	var res RewardsResponse
	s.query(&RewardsQuery{Validator: validator}, &res)
	return res
}

func (s *suite) metaDelegation(validator string) string {
	raw, err := s.juno.Query(s.meta, mesh.MustMarshalTagged(&metastaking.DelegationQuery{Consumer: s.consumer, Validator: validator}))
	require.NoError(s.t, err)
	var res metastaking.DelegationResponse
	require.NoError(s.t, json.Unmarshal(raw, &res))
	return res.Amount.String()
}

// earn makes meta-staking collect amount of staking rewards at validator and
// pay the consumer's share.
func (s *suite) earn(validator string, amount uint64) {
	require.NoError(s.t, s.juno.AllocateRewards(validator, u(amount)))
	_, err := s.juno.Execute("admin", s.meta, mesh.MustMarshalTagged(&meshapi.WithdrawDelegatorReward{Validator: validator}), nil)
	require.NoError(s.t, err)
	_, err = s.juno.Execute("admin", s.meta, mesh.MustMarshalTagged(&meshapi.WithdrawToConsumer{Consumer: s.consumer, Validator: validator}), nil)
	require.NoError(s.t, err)
}

func TestHandshake(t *testing.T) {
	s := newSuite(t)
	var ch ChannelResponse
	s.query(&ChannelQuery{}, &ch)
	assert.Equal(t, "connected", ch.State)
	assert.Equal(t, s.home, ch.Provider)

	other, err := s.osmo.Instantiate("admin", s.osmo.StoreCode(home{}), nil, nil, "other")
	require.NoError(t, err)
	_, err = runtime.Connect(s.osmo, s.juno, runtime.PortID(other), runtime.PortID(s.consumer), "connection-0", "connection-0", ibc.AppVersion)
	assert.True(t, errors.Is(err, ibc.ErrChannelExists))
}

func TestInstantiateRejectsZeroRate(t *testing.T) {
	s := newSuite(t)
	init, err := json.Marshal(InstantiateMsg{
		Provider:     ProviderInfo{PortID: runtime.PortID(s.home), ConnectionID: "connection-0"},
		MetaStaking:  s.meta,
		ICS20Channel: s.transfer.A,
	})
	require.NoError(t, err)
	_, err = s.juno.Instantiate("gov", s.juno.StoreCode(New()), init, nil, "consumer")
	assert.True(t, errors.Is(err, ErrInvalidRate))
}

func TestListAndSyncValidators(t *testing.T) {
	s := newSuite(t)
	ack := s.send(&ibc.ListValidators{})
	require.True(t, ack.IsSuccess())
	assert.JSONEq(t, `{"validators":["val1","val2"]}`, string(ack.Result()))

	_, err := s.juno.Execute("anyone", s.consumer, mesh.MustMarshalTagged(&SyncValidators{}), nil)
	assert.True(t, errors.Is(err, ErrNoChanges))

	require.NoError(t, s.juno.AddValidator("val3"))
	_, err = s.juno.Execute("anyone", s.consumer, mesh.MustMarshalTagged(&SyncValidators{}), nil)
	require.NoError(t, err)
	s.relay()
	raw, err := s.osmo.Query(s.home, []byte("received"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"update_validators":{"added":["val3"],"removed":null}}`, string(raw))

	// a rejected update is sent again by the next sync
	s.setMode("reject")
	require.NoError(t, s.juno.AddValidator("val4"))
	_, err = s.juno.Execute("anyone", s.consumer, mesh.MustMarshalTagged(&SyncValidators{}), nil)
	require.NoError(t, err)
	s.relay()
	var vals ValidatorsResponse
	s.query(&ValidatorsQuery{}, &vals)
	assert.Equal(t, []string{"val1", "val2", "val3"}, vals.Validators)

	s.setMode("accept")
	_, err = s.juno.Execute("anyone", s.consumer, mesh.MustMarshalTagged(&SyncValidators{}), nil)
	require.NoError(t, err)
	s.relay()
	raw, err = s.osmo.Query(s.home, []byte("received"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"update_validators":{"added":["val4"],"removed":null}}`, string(raw))
}

func TestStakeUnstake(t *testing.T) {
	s := newSuite(t)

	ack := s.send(&ibc.Stake{Validator: "val1", Amount: u(100), Delegator: "alice", Key: 1})
	require.True(t, ack.IsSuccess(), ack.Error())
	assert.Equal(t, "50", s.metaDelegation("val1"))

	var d DelegatorResponse
	s.query(&DelegatorQuery{Delegator: "alice", Validator: "val1"}, &d)
	assert.Equal(t, "100", d.Shares.String())

	ack = s.send(&ibc.Unstake{Validator: "val1", Amount: u(40), Delegator: "alice", Key: 2})
	require.True(t, ack.IsSuccess(), ack.Error())
	assert.Equal(t, "30", s.metaDelegation("val1"))
	s.query(&DelegatorQuery{Delegator: "alice", Validator: "val1"}, &d)
	assert.Equal(t, "60", d.Shares.String())

	// over the budget: error ack, nothing changes
	ack = s.send(&ibc.Stake{Validator: "val1", Amount: u(2000), Delegator: "alice", Key: 3})
	assert.False(t, ack.IsSuccess())
	assert.Contains(t, ack.Error(), "no funds to delegate")
	assert.Equal(t, "30", s.metaDelegation("val1"))
	s.query(&DelegatorQuery{Delegator: "alice", Validator: "val1"}, &d)
	assert.Equal(t, "60", d.Shares.String())

	ack = s.send(&ibc.Stake{Validator: "val1", Amount: u(1), Delegator: "alice", Key: 4})
	assert.False(t, ack.IsSuccess())
	ack = s.send(&ibc.Unstake{Validator: "val2", Amount: u(10), Delegator: "alice", Key: 5})
	assert.False(t, ack.IsSuccess())
}

func TestRewardsForwarding(t *testing.T) {
	s := newSuite(t)
	require.True(t, s.send(&ibc.Stake{Validator: "val1", Amount: u(100), Delegator: "alice", Key: 1}).IsSuccess())

	_, err := s.juno.Execute("admin", s.consumer, mesh.MustMarshalTagged(&meshapi.MeshConsumerReceiveRewards{Validator: "val1"}), nil)
	assert.True(t, errors.Is(err, ErrUnauthorized))

	s.earn("val1", 10)
	assert.Equal(t, RewardsResponse{Validator: "val1", Pending: u(0), InFlight: u(10)}, s.window("val1"))
	// a second payment waits for the open window
	s.earn("val1", 4)
	assert.Equal(t, RewardsResponse{Validator: "val1", Pending: u(4), InFlight: u(10)}, s.window("val1"))

	var d DelegatorResponse
	s.query(&DelegatorQuery{Delegator: "alice", Validator: "val1"}, &d)
	assert.Equal(t, "14", d.Rewards.String())

	s.relay()
	voucher := ibc.VoucherDenom(ibc.TransferPort, s.transfer.B, denom)
	bal, err := s.osmo.Balance(s.home, voucher)
	require.NoError(t, err)
	assert.Equal(t, "14", bal.String())
	assert.Equal(t, RewardsResponse{Validator: "val1", Pending: u(0), InFlight: u(0)}, s.window("val1"))

	ack := s.send(&ibc.WithdrawRewards{Validator: "val1", Delegator: "alice"})
	require.True(t, ack.IsSuccess())
	assert.JSONEq(t, `{"amount":"14"}`, string(ack.Result()))
}

func TestRewardsRejected(t *testing.T) {
	s := newSuite(t)
	require.True(t, s.send(&ibc.Stake{Validator: "val1", Amount: u(100), Delegator: "alice", Key: 1}).IsSuccess())
	s.setMode("reject")

	s.earn("val1", 10)
	s.relay()
	assert.Equal(t, RewardsResponse{Validator: "val1", Pending: u(10), InFlight: u(0)}, s.window("val1"))
	bal, err := s.juno.Balance(s.consumer, denom)
	require.NoError(t, err)
	assert.Equal(t, "10", bal.String())

	s.setMode("accept")
	s.earn("val1", 6)
	assert.Equal(t, RewardsResponse{Validator: "val1", Pending: u(0), InFlight: u(16)}, s.window("val1"))
	s.relay()
	bal, err = s.osmo.Balance(s.home, ibc.VoucherDenom(ibc.TransferPort, s.transfer.B, denom))
	require.NoError(t, err)
	assert.Equal(t, "16", bal.String())
}
