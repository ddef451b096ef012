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

package txsync

import "time"

// Config bounds the reactor's own behavior; the façade derives it from
// txpool.Config when it constructs an Engine.
type Config struct {
	// SyncInterval is the fallback tick driving propagateNewTxs when no
	// on_ready signal has arrived, per spec.md §4.5.1.
	SyncInterval time.Duration
	// PeerRequestTimeout bounds RequestMissedTxs' wait on a peer response
	// before falling back to the ledger, per spec.md §4.5.3/§9.
	PeerRequestTimeout time.Duration
	// FanoutSize is select_peers' expected_size.
	FanoutSize int
	// FetchLimit bounds how many newly admitted txs a single
	// propagateNewTxs pass drains from fetch_new.
	FetchLimit int
}

func (c Config) sanitize() Config {
	if c.SyncInterval <= 0 {
		c.SyncInterval = 200 * time.Millisecond
	}
	if c.PeerRequestTimeout <= 0 {
		c.PeerRequestTimeout = 3 * time.Second
	}
	if c.FanoutSize <= 0 {
		c.FanoutSize = 4
	}
	if c.FetchLimit <= 0 {
		c.FetchLimit = 256
	}
	return c
}
