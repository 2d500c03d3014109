// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package utils

import (
	"sync"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

// Chains are the chains served by the api. Every request holds the lock for
// its whole duration, and so does anything else driving the apps.
type Chains struct {
	sync.Mutex
	apps []*runtime.App
}

func NewChains(apps ...*runtime.App) *Chains {
	return &Chains{apps: apps}
}

// Apps returns the served chains in registration order.
func (c *Chains) Apps() []*runtime.App {
	return c.apps
}

// ByID finds a chain by its chain id.
func (c *Chains) ByID(id string) (*runtime.App, error) {
	for _, app := range c.apps {
		if app.ChainID() == id {
			return app, nil
		}
	}
	return nil, NotFound(errors.Errorf("chain %s not served", id))
}

// ByContract finds the chain hosting a contract.
func (c *Chains) ByContract(addr mesh.Address) (*runtime.App, *runtime.ContractInfo, error) {
	for _, app := range c.apps {
		info, err := app.Contract(addr)
		if err == nil {
			return app, info, nil
		}
		if !errors.Is(err, runtime.ErrUnknownContract) {
			return nil, nil, err
		}
	}
	return nil, nil, NotFound(errors.Errorf("contract %s not found", addr))
}
