// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package chains

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/api/utils"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

type Chain struct {
	ChainID     string `json:"chainId"`
	Height      uint64 `json:"height"`
	Time        uint64 `json:"time"`
	BondedDenom string `json:"bondedDenom"`
}

type Account struct {
	Address  mesh.Address `json:"address"`
	Balances mesh.Coins   `json:"balances"`
}

type Chains struct {
	chains *utils.Chains
}

func New(chains *utils.Chains) *Chains {
	return &Chains{chains}
}

func convertChain(app *runtime.App) (*Chain, error) {
	b, err := app.Block()
	if err != nil {
		return nil, err
	}
	return &Chain{
		ChainID:     b.ChainID,
		Height:      b.Height,
		Time:        b.Time,
		BondedDenom: app.BondedDenom(),
	}, nil
}

func (c *Chains) handleGetChains(w http.ResponseWriter, _ *http.Request) error {
	c.chains.Lock()
	defer c.chains.Unlock()

	list := make([]*Chain, 0, len(c.chains.Apps()))
	for _, app := range c.chains.Apps() {
		ch, err := convertChain(app)
		if err != nil {
			return err
		}
		list = append(list, ch)
	}
	return utils.WriteJSON(w, list)
}

func (c *Chains) handleGetChain(w http.ResponseWriter, req *http.Request) error {
	c.chains.Lock()
	defer c.chains.Unlock()

	app, err := c.chains.ByID(mux.Vars(req)["chain"])
	if err != nil {
		return err
	}
	ch, err := convertChain(app)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, ch)
}

func (c *Chains) handleGetAccount(w http.ResponseWriter, req *http.Request) error {
	addr, err := mesh.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "address"))
	}
	c.chains.Lock()
	defer c.chains.Unlock()

	app, err := c.chains.ByID(mux.Vars(req)["chain"])
	if err != nil {
		return err
	}
	balances, err := app.AllBalances(addr)
	if err != nil {
		return err
	}
	if balances == nil {
		balances = mesh.Coins{}
	}
	return utils.WriteJSON(w, &Account{Address: addr, Balances: balances})
}

func (c *Chains) handleGetValidators(w http.ResponseWriter, req *http.Request) error {
	c.chains.Lock()
	defer c.chains.Unlock()

	app, err := c.chains.ByID(mux.Vars(req)["chain"])
	if err != nil {
		return err
	}
	validators, err := app.AllValidators()
	if err != nil {
		return err
	}
	if validators == nil {
		validators = []string{}
	}
	return utils.WriteJSON(w, validators)
}

func (c *Chains) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("").
		Methods(http.MethodGet).
		Name("chains_get_chains").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetChains))
	sub.Path("/{chain}").
		Methods(http.MethodGet).
		Name("chains_get_chain").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetChain))
	sub.Path("/{chain}/accounts/{address}").
		Methods(http.MethodGet).
		Name("chains_get_account").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetAccount))
	sub.Path("/{chain}/validators").
		Methods(http.MethodGet).
		Name("chains_get_validators").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetValidators))
}
