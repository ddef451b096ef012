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

import "github.com/urfave/cli/v2"

// Flags mirror a small slice of cmd/geth's flag set: a config file plus a
// handful of direct overrides for the settings an operator is most likely
// to tune without editing the file.
var (
	configFileFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "TOML configuration file",
	}
	nodeIDFlag = &cli.StringFlag{
		Name:  "node-id",
		Usage: "This node's identifier on the front-service transport",
	}
	chainIDFlag = &cli.Uint64Flag{
		Name:  "chain-id",
		Usage: "Chain id transactions must carry to be admitted",
	}
	groupIDFlag = &cli.Uint64Flag{
		Name:  "group-id",
		Usage: "Group id transactions must carry to be admitted",
	}
	poolLimitFlag = &cli.IntFlag{
		Name:  "pool-limit",
		Usage: "Maximum number of resident transactions",
	}
	blockLimitFlag = &cli.Uint64Flag{
		Name:  "block-limit",
		Usage: "Ledger nonce checker window size",
	}
	verifyWorkersFlag = &cli.IntFlag{
		Name:  "verify-workers",
		Usage: "Worker pool size for validation and block verification",
	}
	notifierWorkersFlag = &cli.IntFlag{
		Name:  "notifier-workers",
		Usage: "Worker pool size for submit callbacks and sealer notifications",
	}
	serializedVerifierFlag = &cli.BoolFlag{
		Name:  "serialized-verify-block",
		Usage: "Run verify_block on a single dedicated goroutine instead of the verify worker pool",
	}
	metricsAddrFlag = &cli.StringFlag{
		Name:  "metrics.addr",
		Usage: "Prometheus /metrics listen address; empty disables the metrics server",
		Value: ":6061",
	}
)

var appFlags = []cli.Flag{
	configFileFlag,
	nodeIDFlag,
	chainIDFlag,
	groupIDFlag,
	poolLimitFlag,
	blockLimitFlag,
	verifyWorkersFlag,
	notifierWorkersFlag,
	serializedVerifierFlag,
	metricsAddrFlag,
}
