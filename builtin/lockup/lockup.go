// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package lockup is the contract holding the tokens a provider stakes
// remotely. Bonded tokens back claims granted to leinholders and cannot be
// unbonded while claimed.
package lockup

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/store"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

var logger = log.WithContext("pkg", "lockup")

type InstantiateMsg struct {
	Denom string `json:"denom"`
}

type Config struct {
	Denom string `json:"denom"`
}

// Bond locks the funds sent with the message.
type Bond struct{}

// Unbond returns free bonded tokens to the sender.
type Unbond struct {
	Amount bn.Uint128 `json:"amount"`
}

// GrantClaim gives Leinholder a claim over the sender's bonded tokens and
// tells it with a ReceiveClaim.
type GrantClaim struct {
	Leinholder mesh.Address `json:"leinholder"`
	Amount     bn.Uint128   `json:"amount"`
	Validator  string       `json:"validator"`
}

type BalanceQuery struct {
	Account mesh.Address `json:"account"`
}

type ConfigQuery struct{}

type BalanceResponse struct {
	Bonded bn.Uint128 `json:"bonded"`
	Free   bn.Uint128 `json:"free"`
	Claims []Lein     `json:"claims"`
}

func (*Bond) Tag() string         { return "bond" }
func (*Unbond) Tag() string       { return "unbond" }
func (*GrantClaim) Tag() string   { return "grant_claim" }
func (*BalanceQuery) Tag() string { return "balance" }
func (*ConfigQuery) Tag() string  { return "config" }

// Contract is the lockup code.
type Contract struct{}

func New() *Contract { return &Contract{} }

type lockupState struct {
	config   *store.Item[Config]
	balances *store.Mapping[store.StringKey, *Balance]
}

func stateOf(ctx *runtime.Context) *lockupState {
	return &lockupState{
		config:   store.NewItem[Config](ctx.Store, "config"),
		balances: store.NewMapping[store.StringKey, *Balance](ctx.Store, "balances"),
	}
}

func (s *lockupState) balance(addr mesh.Address) (*Balance, error) {
	b, ok, err := s.balances.Load(store.StringKey(addr))
	if err != nil {
		return nil, err
	}
	if !ok {
		return &Balance{Bonded: bn.ZeroUint128()}, nil
	}
	return b, nil
}

func (s *lockupState) setBalance(addr mesh.Address, b *Balance) error {
	return s.balances.Set(store.StringKey(addr), b)
}

func (c *Contract) Instantiate(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
	}
	if msg.Denom == "" {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, "empty denom")
	}
	if err := stateOf(ctx).config.Save(Config{Denom: msg.Denom}); err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddAttribute("method", "instantiate").
		AddAttribute("owner", info.Sender.String()), nil
}

func (c *Contract) Execute(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw,
		(*Bond)(nil),
		(*Unbond)(nil),
		(*GrantClaim)(nil),
		(*meshapi.ReleaseClaim)(nil),
		(*meshapi.SlashClaim)(nil),
	)
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	switch m := msg.(type) {
	case *Bond:
		return s.bond(info)
	case *Unbond:
		return s.unbond(info, m.Amount)
	case *GrantClaim:
		return s.grantClaim(info, m)
	case *meshapi.ReleaseClaim:
		return s.updateClaims(info, m.Owner, "release_claim", func(b *Balance) error {
			return b.ReleaseClaim(info.Sender, m.Amount)
		})
	case *meshapi.SlashClaim:
		return s.updateClaims(info, m.Owner, "slash_claim", func(b *Balance) error {
			return b.SlashClaim(info.Sender, m.Amount)
		})
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}

func (s *lockupState) bond(info runtime.MessageInfo) (*runtime.Response, error) {
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	amount, err := runtime.MustPay(info, cfg.Denom)
	if err != nil {
		return nil, err
	}
	b, err := s.balance(info.Sender)
	if err != nil {
		return nil, err
	}
	if b.Bonded, err = b.Bonded.Add(amount); err != nil {
		return nil, err
	}
	if err := s.setBalance(info.Sender, b); err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddAttribute("action", "bond").
		AddAttribute("amount", amount.String()), nil
}

func (s *lockupState) unbond(info runtime.MessageInfo, amount bn.Uint128) (*runtime.Response, error) {
	if err := runtime.NonPayable(info); err != nil {
		return nil, err
	}
	b, err := s.balance(info.Sender)
	if err != nil {
		return nil, err
	}
	if free := b.Free(); free.Lt(amount) {
		return nil, errors.Wrapf(ErrClaimsLocked, "only %s can be unbonded", free)
	}
	b.Bonded = b.Bonded.SaturatingSub(amount)
	if err := s.setBalance(info.Sender, b); err != nil {
		return nil, err
	}
	cfg, err := s.config.Load()
	if err != nil {
		return nil, err
	}
	return runtime.NewResponse().
		AddMessage(&runtime.BankSend{ToAddress: info.Sender, Amount: mesh.Coins{{Denom: cfg.Denom, Amount: amount}}}).
		AddAttribute("action", "unbond").
		AddAttribute("amount", amount.String()), nil
}

func (s *lockupState) grantClaim(info runtime.MessageInfo, m *GrantClaim) (*runtime.Response, error) {
	if err := runtime.NonPayable(info); err != nil {
		return nil, err
	}
	leinholder, err := mesh.ParseAddress(m.Leinholder.String())
	if err != nil {
		return nil, err
	}
	b, err := s.balance(info.Sender)
	if err != nil {
		return nil, err
	}
	if err := b.AddClaim(leinholder, m.Amount); err != nil {
		return nil, err
	}
	if err := s.setBalance(info.Sender, b); err != nil {
		return nil, err
	}
	exec, err := runtime.ExecuteMsg(leinholder, &meshapi.ReceiveClaim{Owner: info.Sender, Amount: m.Amount, Validator: m.Validator})
	if err != nil {
		return nil, err
	}
	logger.Debug("claim granted", "owner", info.Sender, "leinholder", leinholder, "amount", m.Amount, "validator", m.Validator)
	return runtime.NewResponse().
		AddMessage(exec).
		AddAttribute("action", "grant_claim").
		AddAttribute("leinholder", leinholder.String()).
		AddAttribute("amount", m.Amount.String()), nil
}

// updateClaims runs a leinholder action on the claims over owner's balance.
func (s *lockupState) updateClaims(info runtime.MessageInfo, owner mesh.Address, action string, fn func(*Balance) error) (*runtime.Response, error) {
	if err := runtime.NonPayable(info); err != nil {
		return nil, err
	}
	b, err := s.balance(owner)
	if err != nil {
		return nil, err
	}
	if err := fn(b); err != nil {
		return nil, err
	}
	if err := s.setBalance(owner, b); err != nil {
		return nil, err
	}
	logger.Debug("claim updated", "action", action, "owner", owner, "leinholder", info.Sender)
	return runtime.NewResponse().
		AddAttribute("action", action).
		AddAttribute("owner", owner.String()), nil
}

func (c *Contract) Query(ctx *runtime.Context, raw []byte) ([]byte, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw, (*BalanceQuery)(nil), (*ConfigQuery)(nil))
	if err != nil {
		return nil, err
	}
	s := stateOf(ctx)
	switch m := msg.(type) {
	case *BalanceQuery:
		b, err := s.balance(m.Account)
		if err != nil {
			return nil, err
		}
		return json.Marshal(BalanceResponse{Bonded: b.Bonded, Free: b.Free(), Claims: b.Claims})
	case *ConfigQuery:
		cfg, err := s.config.Load()
		if err != nil {
			return nil, err
		}
		return json.Marshal(cfg)
	}
	return nil, errors.Wrapf(mesh.ErrUnknownVariant, "%s", msg.Tag())
}
