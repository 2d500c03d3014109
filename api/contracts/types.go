// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package contracts

import (
	"encoding/json"

	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

type Contract struct {
	Address mesh.Address `json:"address"`
	ChainID string       `json:"chainId"`
	CodeID  uint64       `json:"codeId"`
	Creator mesh.Address `json:"creator"`
	Label   string       `json:"label"`
}

// ExecuteRequest is the body of an execute call. Funds is a comma separated
// list of coins sent along, e.g. "100ustake".
type ExecuteRequest struct {
	Sender mesh.Address    `json:"sender"`
	Msg    json.RawMessage `json:"msg"`
	Funds  string          `json:"funds,omitempty"`
}

type ExecuteResult struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Events []runtime.Event `json:"events"`
}
