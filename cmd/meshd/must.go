// Copyright (c) 2025 The VeChainThor developers
//
// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/vechain/mesh-security/api/utils/fpath"
	"github.com/vechain/mesh-security/genesis"
	"github.com/vechain/mesh-security/log"
	"github.com/vechain/mesh-security/lvldb"
)

func defaultDataDir() string {
	if home, err := fpath.HomeDir(); err == nil {
		return filepath.Join(home, ".org.vechain.mesh")
	}
	return ""
}

func initLogger(ctx *cli.Context) (*slog.LevelVar, error) {
	verbosity := ctx.Int(verbosityFlag.Name)
	if verbosity < 0 || verbosity > 5 {
		return nil, errors.Errorf("invalid verbosity %d, expected 0-5", verbosity)
	}
	level := new(slog.LevelVar)
	level.Set(log.FromLegacyLevel(verbosity))

	if ctx.Bool(jsonLogsFlag.Name) {
		log.SetJSON(os.Stderr, level)
	} else {
		fd := os.Stderr.Fd()
		useColor := (isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)) && os.Getenv("TERM") != "dumb"
		log.SetTerminal(os.Stderr, level, useColor)
	}
	return level, nil
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", errors.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

func dbOptions(ctx *cli.Context) lvldb.Options {
	return lvldb.Options{
		CacheSize:              ctx.Int(cacheFlag.Name),
		OpenFilesCacheCapacity: 64,
	}
}

func loadGenesis(ctx *cli.Context) (*genesis.Config, error) {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		launchTime := ctx.Uint64(launchTimeFlag.Name)
		if launchTime == 0 {
			launchTime = uint64(time.Now().Unix())
		}
		return genesis.DevConfig(launchTime), nil
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, errors.Wrap(err, "read genesis")
	}
	return genesis.ParseConfig(data)
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// rawOrString keeps data as json when it is, or quotes it.
func rawOrString(data []byte) json.RawMessage {
	if len(data) == 0 {
		return nil
	}
	if json.Valid(data) {
		return data
	}
	quoted, _ := json.Marshal(string(data))
	return quoted
}
