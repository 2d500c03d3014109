// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package lockup

import (
	"encoding/json"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/lvldb"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

const denom = "uosmo"

// grantee accepts claims, remembering the last one, and forwards any other
// message to the lockup stored at instantiation.
type grantee struct{}

func (grantee) Instantiate(ctx *runtime.Context, _ runtime.MessageInfo, msg []byte) (*runtime.Response, error) {
	ctx.Store.Set([]byte("lockup"), msg)
	return runtime.NewResponse(), nil
}

func (grantee) Execute(ctx *runtime.Context, _ runtime.MessageInfo, msg []byte) (*runtime.Response, error) {
	if _, err := mesh.UnmarshalTagged[mesh.Tagged](msg, (*meshapi.ReceiveClaim)(nil)); err == nil {
		ctx.Store.Set([]byte("claim"), msg)
		return runtime.NewResponse(), nil
	}
	lockup, err := ctx.Store.Get([]byte("lockup"))
	if err != nil {
		return nil, err
	}
	return runtime.NewResponse().AddMessage(&runtime.WasmExecute{Contract: mesh.Address(lockup), Msg: msg}), nil
}

func (grantee) Query(ctx *runtime.Context, msg []byte) ([]byte, error) { return ctx.Store.Get(msg) }

type suite struct {
	t       *testing.T
	app     *runtime.App
	lockup  mesh.Address
	grantee mesh.Address
}

func newSuite(t *testing.T) *suite {
	db, err := lvldb.NewMem()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	app, err := runtime.New(db, runtime.Options{ChainID: "provider", AddressPrefix: "osmo", BondedDenom: denom})
	require.NoError(t, err)

	init, err := json.Marshal(InstantiateMsg{Denom: denom})
	require.NoError(t, err)
	lockup, err := app.Instantiate("admin", app.StoreCode(New()), init, nil, "lockup")
	require.NoError(t, err)
	g, err := app.Instantiate("admin", app.StoreCode(grantee{}), []byte(lockup), nil, "grantee")
	require.NoError(t, err)
	require.NoError(t, app.Mint("alice", mesh.NewCoin(1000, denom), mesh.NewCoin(10, "uatom")))
	return &suite{t: t, app: app, lockup: lockup, grantee: g}
}

func (s *suite) exec(sender, contract mesh.Address, msg mesh.Tagged, funds ...mesh.Coin) error {
	_, err := s.app.Execute(sender, contract, mesh.MustMarshalTagged(msg), funds)
	return err
}

func (s *suite) balance(account mesh.Address) BalanceResponse {
	out, err := s.app.Query(s.lockup, mesh.MustMarshalTagged(&BalanceQuery{Account: account}))
	require.NoError(s.t, err)
	var res BalanceResponse
	require.NoError(s.t, json.Unmarshal(out, &res))
	return res
}

func TestBondUnbond(t *testing.T) {
	s := newSuite(t)

	assert.True(t, errors.Is(s.exec("alice", s.lockup, &Bond{}), runtime.ErrPaymentMissing))
	assert.True(t, errors.Is(s.exec("alice", s.lockup, &Bond{}, mesh.NewCoin(5, "uatom")), runtime.ErrPaymentDenom))

	require.NoError(t, s.exec("alice", s.lockup, &Bond{}, mesh.NewCoin(600, denom)))
	res := s.balance("alice")
	assert.Equal(t, "600", res.Bonded.String())
	assert.Equal(t, "600", res.Free.String())

	require.NoError(t, s.exec("alice", s.lockup, &Unbond{Amount: u(100)}))
	bal, err := s.app.Balance("alice", denom)
	require.NoError(t, err)
	assert.Equal(t, "500", bal.String())

	err = s.exec("alice", s.lockup, &Unbond{Amount: u(501)})
	assert.True(t, errors.Is(err, ErrClaimsLocked))
	err = s.exec("alice", s.lockup, &Unbond{Amount: u(1)}, mesh.NewCoin(1, denom))
	assert.True(t, errors.Is(err, runtime.ErrNonPayable))
}

func TestGrantAndReleaseClaim(t *testing.T) {
	s := newSuite(t)
	require.NoError(t, s.exec("alice", s.lockup, &Bond{}, mesh.NewCoin(500, denom)))

	require.NoError(t, s.exec("alice", s.lockup, &GrantClaim{Leinholder: s.grantee, Amount: u(300), Validator: "val1"}))
	claim, err := s.app.Query(s.grantee, []byte("claim"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"receive_claim":{"owner":"alice","amount":"300","validator":"val1"}}`, string(claim))

	res := s.balance("alice")
	assert.Equal(t, "200", res.Free.String())
	assert.Equal(t, []Lein{{Leinholder: s.grantee, Amount: u(300)}}, res.Claims)
	assert.True(t, errors.Is(s.exec("alice", s.lockup, &Unbond{Amount: u(201)}), ErrClaimsLocked))

	err = s.exec("alice", s.lockup, &GrantClaim{Leinholder: s.grantee, Amount: u(201), Validator: "val1"})
	assert.True(t, errors.Is(err, ErrInsufficientBalance))

	// only the leinholder can release
	err = s.exec("mallory", s.lockup, &meshapi.ReleaseClaim{Owner: "alice", Amount: u(300)})
	assert.True(t, errors.Is(err, ErrUnknownLeinholder))

	require.NoError(t, s.exec("alice", s.grantee, &meshapi.ReleaseClaim{Owner: "alice", Amount: u(300)}))
	res = s.balance("alice")
	assert.Equal(t, "500", res.Free.String())
	assert.Empty(t, res.Claims)
}

func TestSlashClaim(t *testing.T) {
	s := newSuite(t)
	require.NoError(t, s.exec("alice", s.lockup, &Bond{}, mesh.NewCoin(500, denom)))
	require.NoError(t, s.exec("alice", s.lockup, &GrantClaim{Leinholder: s.grantee, Amount: u(500), Validator: "val1"}))

	require.NoError(t, s.exec("alice", s.grantee, &meshapi.SlashClaim{Owner: "alice", Amount: u(50)}))
	res := s.balance("alice")
	assert.Equal(t, "450", res.Bonded.String())
	assert.Equal(t, "0", res.Free.String())

	err := s.exec("alice", s.grantee, &meshapi.SlashClaim{Owner: "alice", Amount: u(451)})
	assert.True(t, errors.Is(err, ErrInsufficientLein))
}
