// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// Package genesis lays out a provider chain and a consumer chain with the
// mesh security contracts deployed and connected.
package genesis

import (
	"bytes"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/consumer"
	"github.com/vechain/mesh-security/builtin/lockup"
	"github.com/vechain/mesh-security/builtin/metastaking"
	"github.com/vechain/mesh-security/builtin/provider"
	"github.com/vechain/mesh-security/builtin/slasher"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

var logger = log.WithContext("pkg", "genesis")

// Chain is the genesis of one side of the mesh.
type Chain struct {
	ChainID       string    `yaml:"chain_id"`
	AddressPrefix string    `yaml:"address_prefix"`
	BondedDenom   string    `yaml:"bonded_denom"`
	GenesisTime   uint64    `yaml:"genesis_time"`
	ConnectionID  string    `yaml:"connection_id"`
	Validators    []string  `yaml:"validators"`
	Accounts      []Account `yaml:"accounts"`
}

// Account is a pre-funded account. Balance is a list of coins, e.g. "100ustake,5uatom".
type Account struct {
	Address mesh.Address `yaml:"address"`
	Balance string       `yaml:"balance"`
}

// Params configure the contracts.
type Params struct {
	Admin        mesh.Address `yaml:"admin"`
	SlasherOwner mesh.Address `yaml:"slasher_owner"`
	// UnbondingPeriod in seconds.
	UnbondingPeriod uint64 `yaml:"unbonding_period"`
	PacketLifetime  uint64 `yaml:"packet_lifetime"`
	// ExchangeRate converts provider tokens into consumer tokens.
	ExchangeRate string `yaml:"exchange_rate"`
	// MetaStakingFunds is minted to the meta staking contract, in the
	// consumer's bonded denom.
	MetaStakingFunds string `yaml:"meta_staking_funds"`
	// ConsumerBudget is the part of those funds the consumer may delegate.
	ConsumerBudget string `yaml:"consumer_budget"`
}

// Config is the genesis of a provider and consumer pair.
type Config struct {
	Provider Chain  `yaml:"provider"`
	Consumer Chain  `yaml:"consumer"`
	Params   Params `yaml:"params"`
}

// ParseConfig decodes a yaml genesis config and validates it.
func ParseConfig(data []byte) (*Config, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, errors.Wrap(err, "decode genesis config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Chain) validate() error {
	if c.ChainID == "" {
		return errors.New("empty chain id")
	}
	if c.AddressPrefix == "" || c.BondedDenom == "" || c.ConnectionID == "" {
		return errors.Errorf("%s: address prefix, bonded denom and connection id are required", c.ChainID)
	}
	for _, acc := range c.Accounts {
		if _, err := mesh.ParseAddress(acc.Address.String()); err != nil {
			return errors.Wrapf(err, "%s: account", c.ChainID)
		}
		if _, err := mesh.ParseCoins(acc.Balance); err != nil {
			return errors.Wrapf(err, "%s: balance of %s", c.ChainID, acc.Address)
		}
	}
	return nil
}

// Validate checks the config without building anything.
func (c *Config) Validate() error {
	if err := c.Provider.validate(); err != nil {
		return errors.Wrap(err, "provider")
	}
	if err := c.Consumer.validate(); err != nil {
		return errors.Wrap(err, "consumer")
	}
	if c.Provider.ChainID == c.Consumer.ChainID {
		return errors.New("provider and consumer share a chain id")
	}
	if c.Params.Admin.IsEmpty() || c.Params.SlasherOwner.IsEmpty() {
		return errors.New("admin and slasher owner are required")
	}
	rate, err := bn.ParseDecimal(c.Params.ExchangeRate)
	if err != nil {
		return errors.Wrap(err, "exchange rate")
	}
	if rate.IsZero() {
		return errors.New("exchange rate must be positive")
	}
	funds, err := bn.ParseUint128(c.Params.MetaStakingFunds)
	if err != nil {
		return errors.Wrap(err, "meta staking funds")
	}
	budget, err := bn.ParseUint128(c.Params.ConsumerBudget)
	if err != nil {
		return errors.Wrap(err, "consumer budget")
	}
	if budget.Gt(funds) {
		return errors.Errorf("consumer budget %s exceeds meta staking funds %s", budget, funds)
	}
	return nil
}

// Options returns the runtime options of the chain.
func (c *Chain) Options() runtime.Options {
	return runtime.Options{
		ChainID:       c.ChainID,
		AddressPrefix: c.AddressPrefix,
		BondedDenom:   c.BondedDenom,
		GenesisTime:   c.GenesisTime,
	}
}

// Codes are the code ids of the mesh contracts.
type Codes struct {
	Lockup      uint64
	Provider    uint64
	Slasher     uint64
	MetaStaking uint64
	Consumer    uint64
}

// RegisterCodes stores the contract codes on both chains. Code ids are not
// persisted, so it must run on every start before any contract is called.
func RegisterCodes(providerChain, consumerChain *runtime.App) Codes {
	return Codes{
		Lockup:      providerChain.StoreCode(lockup.New()),
		Provider:    providerChain.StoreCode(provider.New()),
		Slasher:     providerChain.StoreCode(slasher.New()),
		MetaStaking: consumerChain.StoreCode(metastaking.New()),
		Consumer:    consumerChain.StoreCode(consumer.New()),
	}
}

// Deployment records where the contracts and channels of a pair live.
type Deployment struct {
	Lockup      mesh.Address `json:"lockup" yaml:"lockup"`
	Provider    mesh.Address `json:"provider" yaml:"provider"`
	Slasher     mesh.Address `json:"slasher" yaml:"slasher"`
	MetaStaking mesh.Address `json:"meta_staking" yaml:"meta_staking"`
	Consumer    mesh.Address `json:"consumer" yaml:"consumer"`
	// channel ends, on the provider and on the consumer chain
	ProviderChannel         string `json:"provider_channel" yaml:"provider_channel"`
	ConsumerChannel         string `json:"consumer_channel" yaml:"consumer_channel"`
	ProviderTransferChannel string `json:"provider_transfer_channel" yaml:"provider_transfer_channel"`
	ConsumerTransferChannel string `json:"consumer_transfer_channel" yaml:"consumer_transfer_channel"`
}
