// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package genesis

import (
	"encoding/json"

	"github.com/pkg/errors"

	"github.com/vechain/mesh-security/bn"
	"github.com/vechain/mesh-security/builtin/consumer"
	"github.com/vechain/mesh-security/builtin/lockup"
	"github.com/vechain/mesh-security/builtin/meshapi"
	"github.com/vechain/mesh-security/builtin/metastaking"
	"github.com/vechain/mesh-security/builtin/provider"
	"github.com/vechain/mesh-security/builtin/slasher"
	"github.com/vechain/mesh-security/ibc"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/runtime"
)

// Builder deploys a Config onto two fresh chains.
type Builder struct {
	cfg      *Config
	provider *runtime.App
	consumer *runtime.App
	codes    Codes
}

// NewBuilder registers the contract codes on both chains.
func NewBuilder(cfg *Config, providerChain, consumerChain *runtime.App) *Builder {
	return &Builder{
		cfg:      cfg,
		provider: providerChain,
		consumer: consumerChain,
		codes:    RegisterCodes(providerChain, consumerChain),
	}
}

// Codes returns the registered code ids.
func (b *Builder) Codes() Codes { return b.codes }

// Build funds the accounts, deploys the contracts, opens the transfer and
// mesh channels and relays the initial validator listing.
func (b *Builder) Build() (*Deployment, error) {
	if err := b.fund(b.provider, &b.cfg.Provider); err != nil {
		return nil, errors.Wrap(err, "fund provider chain")
	}
	if err := b.fund(b.consumer, &b.cfg.Consumer); err != nil {
		return nil, errors.Wrap(err, "fund consumer chain")
	}

	transfer, err := runtime.Connect(b.consumer, b.provider, ibc.TransferPort, ibc.TransferPort,
		b.cfg.Consumer.ConnectionID, b.cfg.Provider.ConnectionID, runtime.TransferVersion)
	if err != nil {
		return nil, errors.Wrap(err, "transfer channel")
	}
	d := &Deployment{
		ConsumerTransferChannel: transfer.A,
		ProviderTransferChannel: transfer.B,
	}

	if err := b.deployMetaStaking(d); err != nil {
		return nil, errors.Wrap(err, "deploy meta staking")
	}
	// the provider only accepts a channel from the consumer port, so it is
	// configured with the address the consumer is about to get
	consumerAddr, err := b.consumer.NextContractAddress(b.cfg.Params.Admin, b.codes.Consumer)
	if err != nil {
		return nil, err
	}
	if err := b.deployProvider(d, runtime.PortID(consumerAddr)); err != nil {
		return nil, errors.Wrap(err, "deploy provider")
	}
	if err := b.deployConsumer(d); err != nil {
		return nil, errors.Wrap(err, "deploy consumer")
	}
	if d.Consumer != consumerAddr {
		return nil, errors.Errorf("consumer deployed at %s, expected %s", d.Consumer, consumerAddr)
	}

	ch, err := runtime.Connect(b.provider, b.consumer, runtime.PortID(d.Provider), runtime.PortID(d.Consumer),
		b.cfg.Provider.ConnectionID, b.cfg.Consumer.ConnectionID, ibc.AppVersion)
	if err != nil {
		return nil, errors.Wrap(err, "mesh channel")
	}
	d.ProviderChannel, d.ConsumerChannel = ch.A, ch.B

	if _, err := runtime.RelayAll(b.provider, b.consumer, b.cfg.Params.Admin.String()); err != nil {
		return nil, errors.Wrap(err, "relay")
	}
	logger.Info("mesh deployed",
		"provider", d.Provider, "consumer", d.Consumer,
		"channel", d.ProviderChannel, "transfer", d.ProviderTransferChannel)
	return d, nil
}

func (b *Builder) fund(app *runtime.App, chain *Chain) error {
	for _, v := range chain.Validators {
		if err := app.AddValidator(v); err != nil {
			return errors.Wrapf(err, "validator %s", v)
		}
	}
	for _, acc := range chain.Accounts {
		coins, err := mesh.ParseCoins(acc.Balance)
		if err != nil {
			return err
		}
		if err := app.Mint(acc.Address, coins...); err != nil {
			return errors.Wrapf(err, "mint to %s", acc.Address)
		}
	}
	return nil
}

func (b *Builder) instantiate(app *runtime.App, code uint64, msg any, label string) (mesh.Address, error) {
	raw, err := json.Marshal(msg)
	if err != nil {
		return "", err
	}
	addr, err := app.Instantiate(b.cfg.Params.Admin, code, raw, nil, label)
	if err != nil {
		return "", errors.Wrap(err, label)
	}
	return addr, nil
}

func (b *Builder) deployProvider(d *Deployment, consumerPort string) (err error) {
	params := &b.cfg.Params
	if d.Lockup, err = b.instantiate(b.provider, b.codes.Lockup,
		lockup.InstantiateMsg{Denom: b.cfg.Provider.BondedDenom}, "lockup"); err != nil {
		return err
	}

	slasherMsg, err := json.Marshal(slasher.InstantiateMsg{Owner: params.SlasherOwner})
	if err != nil {
		return err
	}
	if d.Provider, err = b.instantiate(b.provider, b.codes.Provider, provider.InstantiateMsg{
		Consumer:        provider.ConsumerInfo{ConnectionID: b.cfg.Provider.ConnectionID, PortID: consumerPort},
		Slasher:         &provider.SlasherInfo{CodeID: b.codes.Slasher, Msg: slasherMsg},
		Lockup:          d.Lockup,
		UnbondingPeriod: params.UnbondingPeriod,
		RewardsIBCDenom: ibc.TransferPort + "/" + d.ProviderTransferChannel + "/" + b.cfg.Consumer.BondedDenom,
		PacketLifetime:  params.PacketLifetime,
	}, "provider"); err != nil {
		return err
	}

	raw, err := b.provider.Query(d.Provider, mesh.MustMarshalTagged(&provider.ConfigQuery{}))
	if err != nil {
		return err
	}
	var cfg provider.Config
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return err
	}
	d.Slasher = cfg.Slasher
	return nil
}

func (b *Builder) deployMetaStaking(d *Deployment) (err error) {
	if d.MetaStaking, err = b.instantiate(b.consumer, b.codes.MetaStaking,
		metastaking.InstantiateMsg{Admin: b.cfg.Params.Admin}, "meta-staking"); err != nil {
		return err
	}
	funds, err := bn.ParseUint128(b.cfg.Params.MetaStakingFunds)
	if err != nil {
		return err
	}
	return b.consumer.Mint(d.MetaStaking, mesh.Coin{Denom: b.cfg.Consumer.BondedDenom, Amount: funds})
}

func (b *Builder) deployConsumer(d *Deployment) (err error) {
	params := &b.cfg.Params
	denom := b.cfg.Consumer.BondedDenom

	rate, err := bn.ParseDecimal(params.ExchangeRate)
	if err != nil {
		return err
	}
	if d.Consumer, err = b.instantiate(b.consumer, b.codes.Consumer, consumer.InstantiateMsg{
		Provider:                  consumer.ProviderInfo{PortID: runtime.PortID(d.Provider), ConnectionID: b.cfg.Consumer.ConnectionID},
		MetaStaking:               d.MetaStaking,
		RemoteToLocalExchangeRate: rate,
		ICS20Channel:              d.ConsumerTransferChannel,
		PacketLifetime:            params.PacketLifetime,
	}, "consumer"); err != nil {
		return err
	}

	budget, err := bn.ParseUint128(params.ConsumerBudget)
	if err != nil {
		return err
	}
	_, err = b.consumer.Sudo(d.MetaStaking, mesh.MustMarshalTagged(&meshapi.AddConsumer{
		ConsumerAddress:          d.Consumer,
		FundsAvailableForStaking: mesh.Coin{Denom: denom, Amount: budget},
	}))
	return errors.Wrap(err, "add consumer")
}
