// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package runtime

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/kv"
	"github.com/vechain/mesh-security/lvldb"
	"github.com/vechain/mesh-security/mesh"
)

const genesisTime = 1_700_000_000

var errBoom = errors.New("boom")

// testContract is a contract whose entry points are plain functions. Its
// query returns the raw value stored under the query key.
type testContract struct {
	execute func(ctx *Context, info MessageInfo, msg []byte) (*Response, error)
	reply   func(ctx *Context, r Reply) (*Response, error)
}

func (c *testContract) Instantiate(*Context, MessageInfo, []byte) (*Response, error) {
	return NewResponse(), nil
}

func (c *testContract) Execute(ctx *Context, info MessageInfo, msg []byte) (*Response, error) {
	return c.execute(ctx, info, msg)
}

func (c *testContract) Query(ctx *Context, msg []byte) ([]byte, error) {
	return ctx.Store.Get(msg)
}

func (c *testContract) Reply(ctx *Context, r Reply) (*Response, error) {
	return c.reply(ctx, r)
}

func newDB(t *testing.T) kv.Store {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func newApp(t *testing.T, chainID string) *App {
	a, err := New(newDB(t), Options{ChainID: chainID, AddressPrefix: chainID, BondedDenom: "ustake", GenesisTime: genesisTime})
	require.NoError(t, err)
	return a
}

func balance(t *testing.T, a *App, addr mesh.Address, denom string) uint64 {
	b, err := a.Balance(addr, denom)
	require.NoError(t, err)
	v, ok := b.Uint64()
	require.True(t, ok)
	return v
}

func stored(t *testing.T, a *App, contract mesh.Address, key string) string {
	v, err := a.Query(contract, []byte(key))
	require.NoError(t, err)
	return string(v)
}

func TestGenesis(t *testing.T) {
	db := newDB(t)
	a, err := New(db, Options{ChainID: "provider", BondedDenom: "ustake", GenesisTime: genesisTime})
	require.NoError(t, err)

	block, err := a.Block()
	require.NoError(t, err)
	assert.Equal(t, BlockInfo{Height: 1, Time: genesisTime, ChainID: "provider"}, block)
	assert.Equal(t, "ustake", a.BondedDenom())

	require.NoError(t, a.AdvanceBlock(5))
	a, err = New(db, Options{ChainID: "provider", BondedDenom: "ustake", GenesisTime: genesisTime})
	require.NoError(t, err)
	block, err = a.Block()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), block.Height)
	assert.Equal(t, uint64(genesisTime+5), block.Time)

	_, err = New(db, Options{ChainID: "consumer"})
	assert.Error(t, err)
}

func TestBank(t *testing.T) {
	a := newApp(t, "provider")
	require.NoError(t, a.Mint("alice", mesh.NewCoin(100, "ustake"), mesh.NewCoin(7, "uatom")))

	coins, err := a.AllBalances("alice")
	require.NoError(t, err)
	assert.Equal(t, mesh.Coins{mesh.NewCoin(7, "uatom"), mesh.NewCoin(100, "ustake")}, coins)

	require.NoError(t, a.testTx(func() error { return a.bank.Send("alice", "bob", mesh.NewCoin(40, "ustake")) }))
	assert.Equal(t, uint64(60), balance(t, a, "alice", "ustake"))
	assert.Equal(t, uint64(40), balance(t, a, "bob", "ustake"))

	// a failed send leaves both balances untouched
	err = a.testTx(func() error {
		return a.bank.Send("alice", "bob", mesh.NewCoin(1, "uatom"), mesh.NewCoin(61, "ustake"))
	})
	assert.True(t, errors.Is(err, ErrInsufficientFunds))
	assert.Equal(t, uint64(7), balance(t, a, "alice", "uatom"))
	assert.Equal(t, uint64(0), balance(t, a, "bob", "uatom"))

	// zero balances are dropped
	require.NoError(t, a.testTx(func() error { return a.bank.Send("alice", "bob", mesh.NewCoin(7, "uatom")) }))
	coins, err = a.AllBalances("alice")
	require.NoError(t, err)
	assert.Equal(t, mesh.Coins{mesh.NewCoin(60, "ustake")}, coins)
}

// testTx runs fn as a transaction.
func (a *App) testTx(fn func() error) error {
	_, err := a.transact("test", func() ([]byte, error) { return nil, fn() })
	return err
}

func TestStaking(t *testing.T) {
	a := newApp(t, "provider")
	require.NoError(t, a.AddValidator("val1"))
	require.NoError(t, a.AddValidator("val1"))
	require.NoError(t, a.Mint("alice", mesh.NewCoin(300, "ustake")))
	require.NoError(t, a.Mint("bob", mesh.NewCoin(100, "ustake")))

	vals, err := a.AllValidators()
	require.NoError(t, err)
	assert.Equal(t, []string{"val1"}, vals)

	err = a.testTx(func() error { return a.staking.Delegate("alice", "val1", mesh.NewCoin(10, "uatom")) })
	assert.True(t, errors.Is(err, ErrInvalidDenom))
	err = a.testTx(func() error { return a.staking.Delegate("alice", "val2", mesh.NewCoin(10, "ustake")) })
	assert.True(t, errors.Is(err, ErrUnknownValidator))

	require.NoError(t, a.testTx(func() error { return a.staking.Delegate("alice", "val1", mesh.NewCoin(300, "ustake")) }))
	require.NoError(t, a.testTx(func() error { return a.staking.Delegate("bob", "val1", mesh.NewCoin(100, "ustake")) }))
	assert.Equal(t, uint64(400), balance(t, a, bondedPool, "ustake"))

	require.NoError(t, a.AllocateRewards("val1", bn.NewUint128(41)))

	var paid bn.Uint128
	require.NoError(t, a.testTx(func() (err error) {
		paid, err = a.staking.WithdrawRewards("alice", "val1")
		return
	}))
	assert.Equal(t, "30", paid.String())
	require.NoError(t, a.testTx(func() (err error) {
		paid, err = a.staking.WithdrawRewards("bob", "val1")
		return
	}))
	assert.Equal(t, "10", paid.String())
	assert.Equal(t, uint64(10), balance(t, a, "bob", "ustake"))

	err = a.testTx(func() error { return a.staking.Undelegate("bob", "val1", mesh.NewCoin(101, "ustake")) })
	assert.True(t, errors.Is(err, ErrInsufficientDelegation))
	require.NoError(t, a.testTx(func() error { return a.staking.Undelegate("bob", "val1", mesh.NewCoin(60, "ustake")) }))
	assert.Equal(t, uint64(70), balance(t, a, "bob", "ustake"))
	d, err := a.Delegation("bob", "val1")
	require.NoError(t, err)
	assert.Equal(t, "40", d.String())
}

type writeMsg struct {
	Key   string `json:"key"`
	Value string `json:"value"`
	Fail  bool   `json:"fail,omitempty"`
	// Call is executed on the given contract as a sub message.
	Call    mesh.Address `json:"call,omitempty"`
	ReplyOn ReplyOn      `json:"reply_on,omitempty"`
}

func (*writeMsg) Tag() string { return "write" }

// writer stores key/value, then optionally calls another writer, then
// optionally fails. Replies record their outcome under "reply".
func writer() *testContract {
	return &testContract{
		execute: func(ctx *Context, info MessageInfo, raw []byte) (*Response, error) {
			var m writeMsg
			if err := json.Unmarshal(raw, &m); err != nil {
				return nil, err
			}
			ctx.Store.Set([]byte(m.Key), []byte(m.Value))
			if m.Fail {
				return nil, errBoom
			}
			resp := NewResponse().AddAttribute("wrote", m.Key).SetData([]byte(m.Value))
			if m.Call != "" {
				inner, err := json.Marshal(&writeMsg{Key: m.Key, Value: m.Value, Fail: m.Value == "fail"})
				if err != nil {
					return nil, err
				}
				resp.AddSubMessage(ReplyStake, &WasmExecute{Contract: m.Call, Msg: inner}, m.ReplyOn)
			}
			return resp, nil
		},
		reply: func(ctx *Context, r Reply) (*Response, error) {
			if r.ID != ReplyStake {
				return nil, InvalidReply(r.ID)
			}
			if r.Result.IsOk() {
				ctx.Store.Set([]byte("reply"), []byte("ok:"+string(r.Result.Data)))
				return NewResponse().SetData([]byte("replied")), nil
			}
			ctx.Store.Set([]byte("reply"), []byte("err:"+r.Result.Err))
			return NewResponse(), nil
		},
	}
}

func TestSubMessages(t *testing.T) {
	a := newApp(t, "provider")
	code := a.StoreCode(writer())
	parent, err := a.Instantiate("admin", code, nil, nil, "parent")
	require.NoError(t, err)
	next, err := a.NextContractAddress("admin", code)
	require.NoError(t, err)
	child, err := a.Instantiate("admin", code, nil, nil, "child")
	require.NoError(t, err)
	assert.NotEqual(t, parent, child)
	assert.Equal(t, next, child)

	exec := func(m *writeMsg) (*TxResult, error) {
		raw, err := json.Marshal(m)
		require.NoError(t, err)
		return a.Execute("alice", parent, raw, nil)
	}

	t.Run("success with reply overrides data", func(t *testing.T) {
		res, err := exec(&writeMsg{Key: "k1", Value: "v1", Call: child, ReplyOn: ReplyAlways})
		require.NoError(t, err)
		assert.Equal(t, []byte("replied"), res.Data)
		assert.Len(t, res.Events, 2)
		assert.Equal(t, "v1", stored(t, a, child, "k1"))
		assert.Equal(t, "ok:v1", stored(t, a, parent, "reply"))
	})

	t.Run("success without reply keeps data", func(t *testing.T) {
		res, err := exec(&writeMsg{Key: "k2", Value: "v2", Call: child, ReplyOn: ReplyError})
		require.NoError(t, err)
		assert.Equal(t, []byte("v2"), res.Data)
	})

	t.Run("failure caught by reply", func(t *testing.T) {
		res, err := exec(&writeMsg{Key: "k3", Value: "fail", Call: child, ReplyOn: ReplyError})
		require.NoError(t, err)
		assert.Equal(t, "fail", stored(t, a, parent, "k3"))
		assert.Equal(t, "", stored(t, a, child, "k3"))
		assert.Equal(t, "err:boom", stored(t, a, parent, "reply"))
		// the failed call's events are dropped
		assert.Len(t, res.Events, 1)
	})

	t.Run("failure without reply reverts everything", func(t *testing.T) {
		_, err := exec(&writeMsg{Key: "k4", Value: "fail", Call: child, ReplyOn: ReplySuccess})
		assert.True(t, errors.Is(err, errBoom))
		assert.Equal(t, "", stored(t, a, parent, "k4"))
		assert.Equal(t, "", stored(t, a, child, "k4"))
	})

	t.Run("unknown contract", func(t *testing.T) {
		_, err := a.Execute("alice", "nobody", []byte("{}"), nil)
		assert.True(t, errors.Is(err, ErrUnknownContract))
	})
}

func TestExecuteFunds(t *testing.T) {
	a := newApp(t, "provider")
	code := a.StoreCode(&testContract{
		execute: func(ctx *Context, info MessageInfo, _ []byte) (*Response, error) {
			amount, err := MustPay(info, "ustake")
			if err != nil {
				return nil, err
			}
			// half goes back
			half, _ := amount.Div(bn.NewUint128(2))
			return NewResponse().AddMessage(&BankSend{ToAddress: info.Sender, Amount: mesh.Coins{{Denom: "ustake", Amount: half}}}), nil
		},
	})
	c, err := a.Instantiate("admin", code, nil, nil, "payable")
	require.NoError(t, err)
	require.NoError(t, a.Mint("alice", mesh.NewCoin(100, "ustake"), mesh.NewCoin(5, "uatom")))

	_, err = a.Execute("alice", c, nil, mesh.Coins{mesh.NewCoin(40, "ustake")})
	require.NoError(t, err)
	assert.Equal(t, uint64(80), balance(t, a, "alice", "ustake"))
	assert.Equal(t, uint64(20), balance(t, a, c, "ustake"))

	_, err = a.Execute("alice", c, nil, mesh.Coins{mesh.NewCoin(5, "uatom")})
	assert.True(t, errors.Is(err, ErrPaymentDenom))
	assert.Equal(t, uint64(5), balance(t, a, "alice", "uatom"))

	_, err = a.Execute("alice", c, nil, nil)
	assert.True(t, errors.Is(err, ErrPaymentMissing))
}

func TestQueryDropsWrites(t *testing.T) {
	a := newApp(t, "provider")
	code := a.StoreCode(&queryWriter{})
	c, err := a.Instantiate("admin", code, nil, nil, "qw")
	require.NoError(t, err)

	out, err := a.Query(c, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "", string(out))
	out, err = a.Query(c, []byte("k"))
	require.NoError(t, err)
	assert.Equal(t, "", string(out))
}

// queryWriter writes during queries, returning what was there before.
type queryWriter struct{ testContract }

func (q *queryWriter) Query(ctx *Context, msg []byte) ([]byte, error) {
	prev, err := ctx.Store.Get(msg)
	ctx.Store.Set(msg, []byte("x"))
	return prev, err
}
