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

// txpoold is a minimal wiring example for package txpool: it loads a
// config file and flags the way cmd/geth does, plugs in a ledger/front
// service/sealer (here, the in-memory mock package, standing in for
// whatever a real deployment would supply) and runs the pool until
// interrupted. Production embedders link package txpool directly and
// supply their own collaborators; this binary exists so the wiring has a
// runnable reference.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/urfave/cli/v2"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/crypto"
	"github.com/bcos-go/txpool/log"
	"github.com/bcos-go/txpool/txpool"
	"github.com/bcos-go/txpool/txpool/metrics"
	"github.com/bcos-go/txpool/txpool/mock"
)

var app = &cli.App{
	Name:   "txpoold",
	Usage:  "run a standalone transaction pool",
	Flags:  appFlags,
	Action: run,
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx *cli.Context) error {
	cfg, err := loadBaseConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "txpoold-1"
	}
	logger := log.New("module", "txpoold")

	m := metrics.New("txpool")
	if cfg.MetricsAddr != "" {
		go serveMetrics(cfg.MetricsAddr, logger)
	}

	net := mock.NewNetwork()
	front := mock.NewFrontService(net, common.NodeID(cfg.NodeID))
	ledger := mock.NewLedger()
	sealer := mock.NewSealer()

	pool, err := txpool.New(cfg.Pool, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledger, front, sealer, txpool.WithMetrics(m))
	if err != nil {
		return fmt.Errorf("construct pool: %w", err)
	}
	front.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		if err := pool.NotifyTxsSyncMessage(from, requestID, payload); err != nil {
			logger.Debug("inbound sync message rejected", "from", from, "err", err)
		}
	})

	if err := pool.Init(); err != nil {
		return fmt.Errorf("init pool: %w", err)
	}
	pool.Start()
	logger.Info("txpool started", "node", cfg.NodeID, "pool_limit", cfg.Pool.PoolLimit, "chain_id", cfg.Pool.ChainID, "group_id", cfg.Pool.GroupID)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Info("shutting down")
	pool.Stop()
	return nil
}

func serveMetrics(addr string, logger log.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("metrics server listening", "addr", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Error("metrics server exited", "err", err)
	}
}
