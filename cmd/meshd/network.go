// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/mesh-security/api/utils"
	"github.com/vechain/mesh-security/api/utils/fpath"
	"github.com/vechain/mesh-security/genesis"
	"github.com/vechain/mesh-security/health"
	"github.com/vechain/mesh-security/kv"
	"github.com/vechain/mesh-security/lvldb"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/metrics"
	"github.com/vechain/mesh-security/runtime"
)

var (
	metricBlockHeight    = metrics.LazyLoadGaugeVec("block_height", []string{"chain"})
	metricPendingPackets = metrics.LazyLoadGaugeVec("ibc_packets_pending", []string{"chain"})
	metricRelayed        = metrics.LazyLoadCounterVec("relay_packets_count", []string{"result"})
)

const (
	genesisFile    = "genesis.yaml"
	deploymentFile = "deployment.json"
	mainDBDir      = "main.db"

	providerBucket = kv.Bucket("provider/")
	consumerBucket = kv.Bucket("consumer/")
)

// network is a provider and consumer chain pair sharing one database.
type network struct {
	db         *lvldb.LevelDB
	cfg        *genesis.Config
	provider   *runtime.App
	consumer   *runtime.App
	deployment *genesis.Deployment
}

func openApps(dataDir string, cfg *genesis.Config, opts lvldb.Options) (*lvldb.LevelDB, *runtime.App, *runtime.App, error) {
	dir := filepath.Join(dataDir, mainDBDir)
	db, err := lvldb.New(dir, opts)
	if err != nil {
		return nil, nil, nil, errors.Wrapf(err, "open main database [%v]", dir)
	}
	providerChain, err := runtime.New(providerBucket.NewStore(db), cfg.Provider.Options())
	if err != nil {
		db.Close()
		return nil, nil, nil, errors.Wrap(err, "open provider chain")
	}
	consumerChain, err := runtime.New(consumerBucket.NewStore(db), cfg.Consumer.Options())
	if err != nil {
		db.Close()
		return nil, nil, nil, errors.Wrap(err, "open consumer chain")
	}
	return db, providerChain, consumerChain, nil
}

// initNetwork writes the genesis of both chains into dataDir and deploys the
// contracts.
func initNetwork(dataDir string, cfg *genesis.Config, opts lvldb.Options) (*network, error) {
	for _, name := range []string{deploymentFile, mainDBDir} {
		exists, err := fpath.PathExists(filepath.Join(dataDir, name))
		if err != nil {
			return nil, err
		}
		if exists {
			return nil, errors.Errorf("%s already initialized", dataDir)
		}
	}

	db, providerChain, consumerChain, err := openApps(dataDir, cfg, opts)
	if err != nil {
		return nil, err
	}
	d, err := genesis.NewBuilder(cfg, providerChain, consumerChain).Build()
	if err != nil {
		db.Close()
		if rmErr := os.RemoveAll(filepath.Join(dataDir, mainDBDir)); rmErr != nil {
			logger.Warn("failed to remove main database", "err", rmErr)
		}
		return nil, errors.Wrap(err, "build genesis")
	}

	gene, err := yaml.Marshal(cfg)
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dataDir, genesisFile), gene, 0o600); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "write genesis")
	}
	deployment, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		db.Close()
		return nil, err
	}
	if err := os.WriteFile(filepath.Join(dataDir, deploymentFile), deployment, 0o600); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "write deployment")
	}

	return &network{db: db, cfg: cfg, provider: providerChain, consumer: consumerChain, deployment: d}, nil
}

// openNetwork opens a network written by initNetwork.
func openNetwork(dataDir string, opts lvldb.Options) (*network, error) {
	gene, err := os.ReadFile(filepath.Join(dataDir, genesisFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.Errorf("%s is not initialized, run init first", dataDir)
		}
		return nil, errors.Wrap(err, "read genesis")
	}
	cfg, err := genesis.ParseConfig(gene)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(filepath.Join(dataDir, deploymentFile))
	if err != nil {
		return nil, errors.Wrap(err, "read deployment")
	}
	var d genesis.Deployment
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, errors.Wrap(err, "decode deployment")
	}

	db, providerChain, consumerChain, err := openApps(dataDir, cfg, opts)
	if err != nil {
		return nil, err
	}
	genesis.RegisterCodes(providerChain, consumerChain)

	return &network{db: db, cfg: cfg, provider: providerChain, consumer: consumerChain, deployment: &d}, nil
}

func (n *network) Close() error {
	return n.db.Close()
}

func (n *network) chains() *utils.Chains {
	return utils.NewChains(n.provider, n.consumer)
}

// appOf returns the chain hosting contract.
func (n *network) appOf(contract mesh.Address) (*runtime.App, error) {
	for _, app := range []*runtime.App{n.provider, n.consumer} {
		if _, err := app.Contract(contract); err == nil {
			return app, nil
		} else if !errors.Is(err, runtime.ErrUnknownContract) {
			return nil, err
		}
	}
	return nil, errors.Errorf("contract %s not found on %s or %s", contract, n.provider.ChainID(), n.consumer.ChainID())
}

// tick advances both chains by seconds, then relays until no packet moves.
func (n *network) tick(seconds uint64, relayer string) (runtime.RelayResult, error) {
	if seconds > 0 {
		if err := n.provider.AdvanceBlock(seconds); err != nil {
			return runtime.RelayResult{}, err
		}
		if err := n.consumer.AdvanceBlock(seconds); err != nil {
			return runtime.RelayResult{}, err
		}
	}
	return runtime.RelayAll(n.provider, n.consumer, relayer)
}

// run produces a block on both chains every interval until ctx is done.
// Calls into the chains are serialized with the api through chains.
func (n *network) run(ctx context.Context, chains *utils.Chains, h *health.Health, interval time.Duration, relayer string) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	seconds := uint64(interval / time.Second)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			chains.Lock()
			res, err := n.tick(seconds, relayer)
			if err == nil {
				n.observe(res)
			}
			chains.Unlock()
			if err != nil {
				h.Fail(err)
				return errors.Wrap(err, "relay")
			}
			h.Tick(res.Delivered, res.TimedOut, res.Failed)
			if res.Total()+res.Failed > 0 {
				logger.Info("packets relayed", "delivered", res.Delivered, "timedOut", res.TimedOut, "failed", res.Failed)
			}
		}
	}
}

func (n *network) observe(res runtime.RelayResult) {
	metricRelayed().AddWithLabel(int64(res.Delivered), map[string]string{"result": "delivered"})
	metricRelayed().AddWithLabel(int64(res.TimedOut), map[string]string{"result": "timed_out"})
	metricRelayed().AddWithLabel(int64(res.Failed), map[string]string{"result": "failed"})

	for _, app := range []*runtime.App{n.provider, n.consumer} {
		labels := map[string]string{"chain": app.ChainID()}
		if b, err := app.Block(); err == nil {
			metricBlockHeight().SetWithLabel(int64(b.Height), labels)
		}
		if pending, err := app.PendingPackets(); err == nil {
			metricPendingPackets().SetWithLabel(int64(len(pending)), labels)
		}
	}
}
