// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package slasher is the contract allowed to slash validators on the
// provider. The provider instantiates it and its owner submits evidence.
package slasher

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

var (
	logger = log.WithContext("pkg", "slasher")

	ErrUnauthorized = reverts.New("unauthorized")
)

type InstantiateMsg struct {
	Owner mesh.Address `json:"owner"`
}

type Config struct {
	Owner    mesh.Address `json:"owner"`
	Provider mesh.Address `json:"provider"`
}

// SubmitEvidence slashes Validator by Percentage on the provider.
type SubmitEvidence struct {
	Validator   string     `json:"validator"`
	Percentage  bn.Decimal `json:"percentage"`
	ForceUnbond bool       `json:"force_unbond"`
}

type ConfigQuery struct{}

func (*SubmitEvidence) Tag() string { return "submit_evidence" }
func (*ConfigQuery) Tag() string    { return "config" }

type Contract struct{}

func New() *Contract { return &Contract{} }

func config(ctx *runtime.Context) *store.Item[Config] {
	return store.NewItem[Config](ctx.Store, "config")
}

// Instantiate binds the slasher to its creator, the provider.
func (c *Contract) Instantiate(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	var msg InstantiateMsg
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, errors.Wrap(mesh.ErrMalformedMsg, err.Error())
	}
	owner, err := mesh.ParseAddress(msg.Owner.String())
	if err != nil {
		return nil, err
	}
	if err := config(ctx).Save(Config{Owner: owner, Provider: info.Sender}); err != nil {
		return nil, err
	}
	return runtime.NewResponse().AddAttribute("method", "instantiate"), nil
}

func (c *Contract) Execute(ctx *runtime.Context, info runtime.MessageInfo, raw []byte) (*runtime.Response, error) {
	msg, err := mesh.UnmarshalTagged[mesh.Tagged](raw, (*SubmitEvidence)(nil))
	if err != nil {
		return nil, err
	}
	m := msg.(*SubmitEvidence)
	cfg, err := config(ctx).Load()
	if err != nil {
		return nil, err
	}
	if info.Sender != cfg.Owner {
		return nil, errors.Wrapf(ErrUnauthorized, "%s is not the owner", info.Sender)
	}
	exec, err := runtime.ExecuteMsg(cfg.Provider, &meshapi.Slash{
		Validator:   m.Validator,
		Percentage:  m.Percentage,
		ForceUnbond: m.ForceUnbond,
	})
	if err != nil {
		return nil, err
	}
	logger.Debug("evidence submitted", "validator", m.Validator, "percentage", m.Percentage, "force_unbond", m.ForceUnbond)
	return runtime.NewResponse().
		AddMessage(exec).
		AddAttribute("action", "submit_evidence").
		AddAttribute("validator", m.Validator), nil
}

func (c *Contract) Query(ctx *runtime.Context, raw []byte) ([]byte, error) {
	if _, err := mesh.UnmarshalTagged[mesh.Tagged](raw, (*ConfigQuery)(nil)); err != nil {
		return nil, err
	}
	cfg, err := config(ctx).Load()
	if err != nil {
		return nil, err
	}
	return json.Marshal(cfg)
}
