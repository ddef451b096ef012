// Copyright 2014 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"reflect"

	"github.com/naoina/toml"
	"github.com/urfave/cli/v2"

	"github.com/bcos-go/txpool/txpool"
)

// tomlSettings makes TOML keys match Go struct field names verbatim, the
// same convention cmd/geth's config file uses.
var tomlSettings = toml.Config{
	NormFieldName: func(rt reflect.Type, key string) string { return key },
	FieldToKey:    func(rt reflect.Type, field string) string { return field },
	MissingField: func(rt reflect.Type, field string) error {
		return fmt.Errorf("field '%s' is not defined in %s", field, rt.String())
	},
}

// daemonConfig is the full shape of a txpoold config file.
type daemonConfig struct {
	NodeID      string
	MetricsAddr string
	Pool        txpool.Config
}

func defaultDaemonConfig() daemonConfig {
	return daemonConfig{
		MetricsAddr: ":6061",
		Pool:        txpool.DefaultConfig(),
	}
}

func loadConfigFile(file string, cfg *daemonConfig) error {
	f, err := os.Open(file)
	if err != nil {
		return err
	}
	defer f.Close()

	err = tomlSettings.NewDecoder(bufio.NewReader(f)).Decode(cfg)
	if _, ok := err.(*toml.LineError); ok {
		err = errors.New(file + ", " + err.Error())
	}
	return err
}

// loadBaseConfig builds the config the daemon runs with: defaults, then a
// config file if one was given, then individual flag overrides, in that
// order, mirroring cmd/geth's loadBaseConfig/applyFlags split.
func loadBaseConfig(ctx *cli.Context) (daemonConfig, error) {
	cfg := defaultDaemonConfig()

	if file := ctx.String(configFileFlag.Name); file != "" {
		if err := loadConfigFile(file, &cfg); err != nil {
			return cfg, err
		}
	}

	if ctx.IsSet(nodeIDFlag.Name) {
		cfg.NodeID = ctx.String(nodeIDFlag.Name)
	}
	if ctx.IsSet(metricsAddrFlag.Name) {
		cfg.MetricsAddr = ctx.String(metricsAddrFlag.Name)
	}
	if ctx.IsSet(chainIDFlag.Name) {
		cfg.Pool.ChainID = ctx.Uint64(chainIDFlag.Name)
	}
	if ctx.IsSet(groupIDFlag.Name) {
		cfg.Pool.GroupID = ctx.Uint64(groupIDFlag.Name)
	}
	if ctx.IsSet(poolLimitFlag.Name) {
		cfg.Pool.PoolLimit = ctx.Int(poolLimitFlag.Name)
	}
	if ctx.IsSet(blockLimitFlag.Name) {
		cfg.Pool.BlockLimit = ctx.Uint64(blockLimitFlag.Name)
	}
	if ctx.IsSet(verifyWorkersFlag.Name) {
		cfg.Pool.VerifyWorkers = ctx.Int(verifyWorkersFlag.Name)
	}
	if ctx.IsSet(notifierWorkersFlag.Name) {
		cfg.Pool.NotifierWorkers = ctx.Int(notifierWorkersFlag.Name)
	}
	if ctx.IsSet(serializedVerifierFlag.Name) {
		cfg.Pool.SerializedVerifier = ctx.Bool(serializedVerifierFlag.Name)
	}
	return cfg, nil
}
