// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

// meshd runs a provider chain and a consumer chain secured by mesh security,
// relaying packets between them.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/mesh-security/api"
	"github.com/vechain/mesh-security/cmd/meshd/httpserver"
	"github.com/vechain/mesh-security/health"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/mesh"
	"github.com/vechain/mesh-security/metrics"
	"github.com/vechain/mesh-security/runtime"
)

var (
	version       string
	gitCommit     string
	gitTag        string
	copyrightYear string

	logger = log.WithContext("pkg", "meshd")

	commonFlags = []cli.Flag{dataDirFlag, cacheFlag, verbosityFlag, jsonLogsFlag}
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func withCommon(flags ...cli.Flag) []cli.Flag {
	return append(append([]cli.Flag(nil), commonFlags...), flags...)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "meshd",
		Usage:     "Provider and consumer chains secured by mesh security",
		Copyright: fmt.Sprintf("2025-%s VeChain Foundation <https://vechain.org/>", copyrightYear),
		Commands: []cli.Command{
			{
				Name:   "init",
				Usage:  "write the genesis of both chains and deploy the mesh contracts",
				Flags:  withCommon(genesisFlag, launchTimeFlag),
				Action: initAction,
			},
			{
				Name:  "serve",
				Usage: "produce blocks, relay packets and serve the API",
				Flags: withCommon(
					apiAddrFlag,
					apiCorsFlag,
					apiSlowQueriesThresholdFlag,
					apiLog5xxErrorsFlag,
					enableAPILogsFlag,
					pprofFlag,
					enableMetricsFlag,
					metricsAddrFlag,
					enableAdminFlag,
					adminAddrFlag,
					blockIntervalFlag,
					relayerFlag,
				),
				Action: serveAction,
			},
			{
				Name:      "execute",
				Usage:     "execute a contract",
				ArgsUsage: "<contract> <msg>",
				Flags:     withCommon(senderFlag, fundsFlag),
				Action:    executeAction,
			},
			{
				Name:      "query",
				Usage:     "query a contract",
				ArgsUsage: "<contract> <msg>",
				Flags:     commonFlags,
				Action:    queryAction,
			},
			{
				Name:      "sudo",
				Usage:     "call the privileged entry point of a contract",
				ArgsUsage: "<contract> <msg>",
				Flags:     commonFlags,
				Action:    sudoAction,
			},
			{
				Name:   "relay",
				Usage:  "relay pending packets in both directions",
				Flags:  withCommon(relayerFlag, advanceFlag),
				Action: relayAction,
			},
			{
				Name:   "info",
				Usage:  "print the chains and the deployment",
				Flags:  commonFlags,
				Action: infoAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// open sets up logging and opens the initialized network.
func open(ctx *cli.Context) (*network, error) {
	if _, err := initLogger(ctx); err != nil {
		return nil, err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return nil, err
	}
	return openNetwork(dataDir, dbOptions(ctx))
}

func initAction(ctx *cli.Context) error {
	if _, err := initLogger(ctx); err != nil {
		return err
	}
	cfg, err := loadGenesis(ctx)
	if err != nil {
		return err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	n, err := initNetwork(dataDir, cfg, dbOptions(ctx))
	if err != nil {
		return err
	}
	defer n.Close()

	logger.Info("network initialized", "dir", dataDir, "provider", cfg.Provider.ChainID, "consumer", cfg.Consumer.ChainID)
	return printJSON(n.deployment)
}

func serveAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	logLevel, err := initLogger(ctx)
	if err != nil {
		return err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	interval := time.Duration(ctx.Uint64(blockIntervalFlag.Name)) * time.Second
	if interval == 0 {
		return errors.Errorf("-%s must be positive", blockIntervalFlag.Name)
	}

	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	n, err := openNetwork(dataDir, dbOptions(ctx))
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); n.Close() }()

	h := health.New(interval)
	apiLogs := &atomic.Bool{}
	apiLogs.Store(ctx.Bool(enableAPILogsFlag.Name))

	chains := n.chains()
	handler := api.New(chains, api.Options{
		AllowedOrigins:       ctx.String(apiCorsFlag.Name),
		PprofOn:              ctx.Bool(pprofFlag.Name),
		EnableMetrics:        ctx.Bool(enableMetricsFlag.Name),
		EnableReqLogger:      apiLogs,
		SlowQueriesThreshold: time.Duration(ctx.Uint64(apiSlowQueriesThresholdFlag.Name)) * time.Millisecond,
		Log5xxErrors:         ctx.Bool(apiLog5xxErrorsFlag.Name),
	})
	apiURL, closeAPI, err := httpserver.StartAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); closeAPI() }()
	logger.Info("API server started", "url", apiURL)

	if ctx.Bool(enableMetricsFlag.Name) {
		url, closeMetrics, err := httpserver.StartMetricsServer(ctx.String(metricsAddrFlag.Name))
		if err != nil {
			return errors.Wrap(err, "start metrics server")
		}
		defer func() { logger.Info("stopping metrics server..."); closeMetrics() }()
		logger.Info("metrics server started", "url", url)
	}

	if ctx.Bool(enableAdminFlag.Name) {
		url, closeAdmin, err := httpserver.StartAdminServer(ctx.String(adminAddrFlag.Name), logLevel, h, apiLogs)
		if err != nil {
			return errors.Wrap(err, "start admin server")
		}
		defer func() { logger.Info("stopping admin server..."); closeAdmin() }()
		logger.Info("admin server started", "url", url)
	}

	g, gctx := errgroup.WithContext(handleExitSignal())
	g.Go(func() error {
		return n.run(gctx, chains, h, interval, ctx.String(relayerFlag.Name))
	})
	return g.Wait()
}

// contractCall parses the <contract> <msg> arguments.
func contractCall(ctx *cli.Context) (mesh.Address, []byte, error) {
	if ctx.NArg() != 2 {
		return "", nil, errors.New("expected <contract> <msg>")
	}
	contract, err := mesh.ParseAddress(ctx.Args().Get(0))
	if err != nil {
		return "", nil, errors.Wrap(err, "contract")
	}
	msg := []byte(ctx.Args().Get(1))
	if !json.Valid(msg) {
		return "", nil, errors.New("msg is not valid json")
	}
	return contract, msg, nil
}

type txOutput struct {
	Data   json.RawMessage `json:"data,omitempty"`
	Events []runtime.Event `json:"events"`
}

func printTx(res *runtime.TxResult) error {
	events := res.Events
	if events == nil {
		events = []runtime.Event{}
	}
	return printJSON(txOutput{Data: rawOrString(res.Data), Events: events})
}

func executeAction(ctx *cli.Context) error {
	contract, msg, err := contractCall(ctx)
	if err != nil {
		return err
	}
	sender, err := mesh.ParseAddress(ctx.String(senderFlag.Name))
	if err != nil {
		return errors.Wrapf(err, "-%s", senderFlag.Name)
	}
	funds, err := mesh.ParseCoins(ctx.String(fundsFlag.Name))
	if err != nil {
		return errors.Wrapf(err, "-%s", fundsFlag.Name)
	}

	n, err := open(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	app, err := n.appOf(contract)
	if err != nil {
		return err
	}
	res, err := app.Execute(sender, contract, msg, funds)
	if err != nil {
		return err
	}
	return printTx(res)
}

func sudoAction(ctx *cli.Context) error {
	contract, msg, err := contractCall(ctx)
	if err != nil {
		return err
	}
	n, err := open(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	app, err := n.appOf(contract)
	if err != nil {
		return err
	}
	res, err := app.Sudo(contract, msg)
	if err != nil {
		return err
	}
	return printTx(res)
}

func queryAction(ctx *cli.Context) error {
	contract, msg, err := contractCall(ctx)
	if err != nil {
		return err
	}
	n, err := open(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	app, err := n.appOf(contract)
	if err != nil {
		return err
	}
	data, err := app.Query(contract, msg)
	if err != nil {
		return err
	}
	return printJSON(rawOrString(data))
}

func relayAction(ctx *cli.Context) error {
	n, err := open(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	res, err := n.tick(ctx.Uint64(advanceFlag.Name), ctx.String(relayerFlag.Name))
	if err != nil {
		return err
	}
	return printJSON(map[string]int{"delivered": res.Delivered, "timedOut": res.TimedOut, "failed": res.Failed})
}

type chainInfo struct {
	ChainID     string `json:"chainId"`
	Height      uint64 `json:"height"`
	Time        uint64 `json:"time"`
	BondedDenom string `json:"bondedDenom"`
}

func infoAction(ctx *cli.Context) error {
	n, err := open(ctx)
	if err != nil {
		return err
	}
	defer n.Close()

	var infos []chainInfo
	for _, app := range []*runtime.App{n.provider, n.consumer} {
		b, err := app.Block()
		if err != nil {
			return err
		}
		infos = append(infos, chainInfo{ChainID: app.ChainID(), Height: b.Height, Time: b.Time, BondedDenom: app.BondedDenom()})
	}
	return printJSON(struct {
		Chains     []chainInfo `json:"chains"`
		Deployment any         `json:"deployment"`
	}{infos, n.deployment})
}
