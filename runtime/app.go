// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package runtime is the host chain the mesh contracts run on: contract
// registry, bank, staking, ibc and the transaction boundary.
package runtime

import (
	"encoding/json"
	"time"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/kv"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/metrics"
	"github.com/vechain/mesh-security/state"
)

var (
	logger = log.WithContext("pkg", "runtime")

	metricTxCount    = metrics.LazyLoadCounterVec("tx_executed_count", []string{"entry", "result"})
	metricTxDuration = metrics.LazyLoadHistogramVec("tx_duration_us", []string{"entry"}, metrics.BucketExecution)
)

// Options configure a new chain.
type Options struct {
	ChainID       string
	AddressPrefix string
	BondedDenom   string
	GenesisTime   uint64
}

// ContractInfo is the registry entry of a contract instance.
type ContractInfo struct {
	CodeID  uint64
	Creator mesh.Address
	Label   string
}

// TxResult is the outcome of a committed transaction.
type TxResult struct {
	Data   []byte  `json:"data,omitempty"`
	Events []Event `json:"events,omitempty"`
}

// App is one chain. Every exported mutating method is a transaction: it
// commits on success and leaves no trace on error.
// App is not safe for concurrent use.
type App struct {
	opts  Options
	state *state.State
	codes []Contract

	block     *store.Item[BlockInfo]
	contracts *store.Mapping[store.StringKey, *ContractInfo]
	instances *store.Sequence

	bank    *Bank
	staking *Staking
	ibc     *ibcModule

	events []Event
}

// New opens the chain stored in db, writing the genesis block on first use.
func New(db kv.Store, opts Options) (*App, error) {
	st := state.New(db)
	module := func(name string) state.Storage {
		return state.NewPrefixStorage(st, []byte(name+"/"))
	}
	a := &App{
		opts:      opts,
		state:     st,
		block:     store.NewItem[BlockInfo](module("chain"), "block"),
		contracts: store.NewMapping[store.StringKey, *ContractInfo](module("wasm"), "contracts"),
		instances: store.NewSequence(module("wasm"), "instances"),
	}
	a.bank = NewBank(module("bank"))
	a.staking = NewStaking(module("staking"), a.bank)
	a.ibc = newIBCModule(module("ibc"))

	block, ok, err := a.block.MayLoad()
	if err != nil {
		return nil, err
	}
	if ok {
		if block.ChainID != opts.ChainID {
			return nil, errors.Errorf("chain id mismatch: stored %s, configured %s", block.ChainID, opts.ChainID)
		}
		return a, nil
	}
	if err := a.block.Save(BlockInfo{Height: 1, Time: opts.GenesisTime, ChainID: opts.ChainID}); err != nil {
		return nil, err
	}
	if err := a.staking.SetBondedDenom(opts.BondedDenom); err != nil {
		return nil, err
	}
	if err := a.state.Commit(); err != nil {
		return nil, err
	}
	logger.Info("genesis written", "chain", opts.ChainID, "denom", opts.BondedDenom)
	return a, nil
}

func (a *App) ChainID() string { return a.opts.ChainID }

// StoreCode registers contract code and returns its code id. Codes are not
// persisted and must be stored in the same order on every start.
func (a *App) StoreCode(c Contract) uint64 {
	a.codes = append(a.codes, c)
	return uint64(len(a.codes))
}

func (a *App) Block() (BlockInfo, error) {
	return a.block.Load()
}

// AdvanceBlock moves to the next block, seconds later.
func (a *App) AdvanceBlock(seconds uint64) error {
	_, err := a.transact("advance_block", func() ([]byte, error) {
		b, err := a.Block()
		if err != nil {
			return nil, err
		}
		b.Height++
		b.Time += seconds
		return nil, a.block.Save(b)
	})
	return err
}

// transact runs fn as one transaction.
func (a *App) transact(entry string, fn func() ([]byte, error)) (*TxResult, error) {
	a.events = nil
	start := time.Now()
	checkpoint := a.state.NewCheckpoint()

	data, err := fn()
	if err != nil {
		a.state.RevertTo(checkpoint)
		a.events = nil
		metricTxCount().AddWithLabel(1, map[string]string{"entry": entry, "result": "reverted"})
		logger.Debug("transaction reverted", "chain", a.opts.ChainID, "entry", entry, "err", err)
		return nil, err
	}
	if err := a.state.Commit(); err != nil {
		return nil, err
	}
	metricTxCount().AddWithLabel(1, map[string]string{"entry": entry, "result": "committed"})
	metricTxDuration().ObserveWithLabels(time.Since(start).Microseconds(), map[string]string{"entry": entry})

	res := &TxResult{Data: data, Events: a.events}
	a.events = nil
	return res, nil
}

func (a *App) contractStorage(addr mesh.Address) state.Storage {
	return state.NewPrefixStorage(a.state, []byte("contracts/"+addr.String()+"/"))
}

func (a *App) context(addr mesh.Address) (*Context, error) {
	block, err := a.Block()
	if err != nil {
		return nil, err
	}
	return &Context{
		Env:     Env{Block: block, Contract: addr},
		Store:   a.contractStorage(addr),
		Querier: a,
	}, nil
}

// Contract returns the registry entry of addr.
func (a *App) Contract(addr mesh.Address) (*ContractInfo, error) {
	info, ok, err := a.contracts.Load(store.StringKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.Wrapf(ErrUnknownContract, "%s", addr)
	}
	return info, nil
}

func (a *App) code(addr mesh.Address) (Contract, *Context, error) {
	info, err := a.Contract(addr)
	if err != nil {
		return nil, nil, err
	}
	if info.CodeID == 0 || info.CodeID > uint64(len(a.codes)) {
		return nil, nil, errors.Wrapf(ErrUnknownCode, "%d", info.CodeID)
	}
	ctx, err := a.context(addr)
	if err != nil {
		return nil, nil, err
	}
	return a.codes[info.CodeID-1], ctx, nil
}

// Mint creates coins out of thin air, used at genesis and by operators.
func (a *App) Mint(to mesh.Address, coins ...mesh.Coin) error {
	_, err := a.transact("mint", func() ([]byte, error) {
		return nil, a.bank.Mint(to, coins...)
	})
	return err
}

func (a *App) AddValidator(validator string) error {
	_, err := a.transact("add_validator", func() ([]byte, error) {
		return nil, a.staking.AddValidator(validator)
	})
	return err
}

// AllocateRewards mints staking rewards for the delegators of validator.
func (a *App) AllocateRewards(validator string, amount bn.Uint128) error {
	_, err := a.transact("allocate_rewards", func() ([]byte, error) {
		return nil, a.staking.AllocateRewards(validator, amount)
	})
	return err
}

func (a *App) Instantiate(sender mesh.Address, codeID uint64, msg []byte, funds mesh.Coins, label string) (mesh.Address, error) {
	var addr mesh.Address
	_, err := a.transact("instantiate", func() (data []byte, err error) {
		addr, err = a.instantiate(sender, codeID, msg, funds, label)
		return nil, err
	})
	return addr, err
}

func (a *App) Execute(sender, contract mesh.Address, msg []byte, funds mesh.Coins) (*TxResult, error) {
	return a.transact("execute", func() ([]byte, error) {
		return a.execute(sender, contract, msg, funds)
	})
}

// Sudo calls the privileged entry point of a contract, as governance would.
func (a *App) Sudo(contract mesh.Address, msg []byte) (*TxResult, error) {
	return a.transact("sudo", func() ([]byte, error) {
		c, ctx, err := a.code(contract)
		if err != nil {
			return nil, err
		}
		s, ok := c.(Sudoer)
		if !ok {
			return nil, errors.Wrapf(ErrNoSudo, "%s", contract)
		}
		resp, err := s.Sudo(ctx, msg)
		if err != nil {
			return nil, err
		}
		return a.handleResponse(contract, resp)
	})
}

// Query runs a read-only query against a contract.
func (a *App) Query(contract mesh.Address, msg []byte) ([]byte, error) {
	return a.QueryContract(contract, msg)
}

// NextContractAddress returns the address the next instantiate of codeID by
// sender will get.
func (a *App) NextContractAddress(sender mesh.Address, codeID uint64) (mesh.Address, error) {
	n, err := a.instances.Current()
	if err != nil {
		return "", err
	}
	return mesh.CreateContractAddress(a.opts.AddressPrefix, codeID, sender, n+1), nil
}

func (a *App) instantiate(sender mesh.Address, codeID uint64, msg []byte, funds mesh.Coins, label string) (mesh.Address, error) {
	if codeID == 0 || codeID > uint64(len(a.codes)) {
		return "", errors.Wrapf(ErrUnknownCode, "%d", codeID)
	}
	n, err := a.instances.Next()
	if err != nil {
		return "", err
	}
	addr := mesh.CreateContractAddress(a.opts.AddressPrefix, codeID, sender, n)
	if err := a.contracts.Set(store.StringKey(addr), &ContractInfo{CodeID: codeID, Creator: sender, Label: label}); err != nil {
		return "", err
	}
	if err := a.bank.Send(sender, addr, funds...); err != nil {
		return "", err
	}
	c, ctx, err := a.code(addr)
	if err != nil {
		return "", err
	}
	resp, err := c.Instantiate(ctx, MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return "", err
	}
	if _, err := a.handleResponse(addr, resp); err != nil {
		return "", err
	}
	logger.Debug("contract instantiated", "chain", a.opts.ChainID, "code", codeID, "addr", addr, "label", label)
	return addr, nil
}

func (a *App) execute(sender, contract mesh.Address, msg []byte, funds mesh.Coins) ([]byte, error) {
	c, ctx, err := a.code(contract)
	if err != nil {
		return nil, err
	}
	if err := a.bank.Send(sender, contract, funds...); err != nil {
		return nil, err
	}
	resp, err := c.Execute(ctx, MessageInfo{Sender: sender, Funds: funds}, msg)
	if err != nil {
		return nil, err
	}
	return a.handleResponse(contract, resp)
}

// handleResponse records the response attributes and runs its messages in
// order. The returned data is the response data, unless a reply set its own.
func (a *App) handleResponse(contract mesh.Address, resp *Response) ([]byte, error) {
	if resp == nil {
		return nil, nil
	}
	if len(resp.Attributes) > 0 {
		a.events = append(a.events, Event{Contract: contract, Attributes: resp.Attributes})
	}
	data := resp.Data
	for _, sub := range resp.Messages {
		override, err := a.dispatchSubMsg(contract, sub)
		if err != nil {
			return nil, err
		}
		if override != nil {
			data = override
		}
	}
	return data, nil
}

func (a *App) dispatchSubMsg(sender mesh.Address, sub SubMsg) ([]byte, error) {
	checkpoint := a.state.NewCheckpoint()
	nEvents := len(a.events)

	data, err := a.dispatch(sender, sub.Msg)
	if err != nil {
		a.state.RevertTo(checkpoint)
		a.events = a.events[:nEvents]
		if !sub.ReplyOn.onError() {
			return nil, err
		}
		logger.Debug("sub message failed", "sender", sender, "msg", sub.Msg.Tag(), "reply", sub.ID, "err", err)
		return a.reply(sender, Reply{ID: sub.ID, Result: SubMsgResult{Err: err.Error()}})
	}
	if !sub.ReplyOn.onSuccess() {
		return nil, nil
	}
	return a.reply(sender, Reply{ID: sub.ID, Result: SubMsgResult{Data: data}})
}

func (a *App) reply(contract mesh.Address, r Reply) ([]byte, error) {
	c, ctx, err := a.code(contract)
	if err != nil {
		return nil, err
	}
	replier, ok := c.(Replier)
	if !ok {
		return nil, errors.Wrapf(ErrNoReply, "%s", contract)
	}
	resp, err := replier.Reply(ctx, r)
	if err != nil {
		return nil, err
	}
	return a.handleResponse(contract, resp)
}

func (a *App) dispatch(sender mesh.Address, msg Msg) ([]byte, error) {
	switch m := msg.(type) {
	case *BankSend:
		return nil, a.bank.Send(sender, m.ToAddress, m.Amount...)
	case *StakingDelegate:
		return nil, a.staking.Delegate(sender, m.Validator, m.Amount)
	case *StakingUndelegate:
		return nil, a.staking.Undelegate(sender, m.Validator, m.Amount)
	case *DistributionWithdraw:
		_, err := a.staking.WithdrawRewards(sender, m.Validator)
		return nil, err
	case *WasmExecute:
		return a.execute(sender, m.Contract, m.Msg, m.Funds)
	case *WasmInstantiate:
		addr, err := a.instantiate(sender, m.CodeID, m.Msg, m.Funds, m.Label)
		if err != nil {
			return nil, err
		}
		return json.Marshal(InstantiateResult{Address: addr})
	case *IBCSendPacket:
		_, err := a.sendPacket(PortID(sender), m.ChannelID, m.Data, m.Timeout)
		return nil, err
	case *IBCTransfer:
		return nil, a.sendTransfer(sender, m)
	default:
		return nil, errors.Errorf("unsupported message %s", msg.Tag())
	}
}

// Balance implements Querier.
func (a *App) Balance(addr mesh.Address, denom string) (bn.Uint128, error) {
	return a.bank.Balance(addr, denom)
}

func (a *App) AllBalances(addr mesh.Address) (mesh.Coins, error) {
	return a.bank.AllBalances(addr)
}

// BondedDenom implements Querier.
func (a *App) BondedDenom() string {
	d, err := a.staking.BondedDenom()
	if err != nil {
		logger.Warn("failed to load bonded denom", "err", err)
	}
	return d
}

// AllValidators implements Querier.
func (a *App) AllValidators() ([]string, error) {
	return a.staking.Validators()
}

// Delegation implements Querier.
func (a *App) Delegation(delegator mesh.Address, validator string) (bn.Uint128, error) {
	return a.staking.Delegation(delegator, validator)
}

// QueryContract implements Querier. Writes made by the query are dropped.
func (a *App) QueryContract(addr mesh.Address, msg []byte) ([]byte, error) {
	checkpoint := a.state.NewCheckpoint()
	defer a.state.RevertTo(checkpoint)

	c, ctx, err := a.code(addr)
	if err != nil {
		return nil, err
	}
	return c.Query(ctx, msg)
}
