// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contracts

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/api/utils"
	"github.com/vechain/mesh-security/mesh"
)

type Contracts struct {
	chains *utils.Chains
}

func New(chains *utils.Chains) *Contracts {
	return &Contracts{chains}
}

func parseAddress(req *http.Request) (mesh.Address, error) {
	addr, err := mesh.ParseAddress(mux.Vars(req)["address"])
	if err != nil {
		return "", utils.BadRequest(errors.WithMessage(err, "address"))
	}
	return addr, nil
}

func (c *Contracts) handleGetContract(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	c.chains.Lock()
	defer c.chains.Unlock()

	app, info, err := c.chains.ByContract(addr)
	if err != nil {
		return err
	}
	return utils.WriteJSON(w, &Contract{
		Address: addr,
		ChainID: app.ChainID(),
		CodeID:  info.CodeID,
		Creator: info.Creator,
		Label:   info.Label,
	})
}

func (c *Contracts) handleQuery(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	msg := req.URL.Query().Get("msg")
	if msg == "" || !json.Valid([]byte(msg)) {
		return utils.BadRequest(errors.New("msg: a JSON query is required"))
	}
	c.chains.Lock()
	defer c.chains.Unlock()

	app, _, err := c.chains.ByContract(addr)
	if err != nil {
		return err
	}
	res, err := app.Query(addr, []byte(msg))
	if err != nil {
		return utils.CallError(err)
	}
	return utils.WriteRawJSON(w, res)
}

func (c *Contracts) handleExecute(w http.ResponseWriter, req *http.Request) error {
	addr, err := parseAddress(req)
	if err != nil {
		return err
	}
	var body ExecuteRequest
	if err := utils.ParseJSON(req.Body, &body); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "body"))
	}
	if _, err := mesh.ParseAddress(body.Sender.String()); err != nil {
		return utils.BadRequest(errors.WithMessage(err, "sender"))
	}
	if len(body.Msg) == 0 {
		return utils.BadRequest(errors.New("msg: required"))
	}
	funds, err := mesh.ParseCoins(body.Funds)
	if err != nil {
		return utils.BadRequest(errors.WithMessage(err, "funds"))
	}
	c.chains.Lock()
	defer c.chains.Unlock()

	app, _, err := c.chains.ByContract(addr)
	if err != nil {
		return err
	}
	res, err := app.Execute(body.Sender, addr, body.Msg, funds)
	if err != nil {
		return utils.CallError(err)
	}
	out := &ExecuteResult{Events: res.Events}
	if json.Valid(res.Data) {
		out.Data = res.Data
	}
	return utils.WriteJSON(w, out)
}

func (c *Contracts) Mount(root *mux.Router, pathPrefix string) {
	sub := root.PathPrefix(pathPrefix).Subrouter()

	sub.Path("/{address}").
		Methods(http.MethodGet).
		Name("contracts_get_contract").
		HandlerFunc(utils.WrapHandlerFunc(c.handleGetContract))
	sub.Path("/{address}/query").
		Methods(http.MethodGet).
		Name("contracts_query").
		HandlerFunc(utils.WrapHandlerFunc(c.handleQuery))
	sub.Path("/{address}/execute").
		Methods(http.MethodPost).
		Name("contracts_execute").
		HandlerFunc(utils.WrapHandlerFunc(c.handleExecute))
}
