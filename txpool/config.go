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

package txpool

import "time"

// Config holds the pool's tunables. PoolLimit, NotifierWorkers,
// VerifyWorkers, BlockLimit, ChainID and GroupID are the configuration
// block named in spec.md §6; SealBatchTimeout, SyncInterval and
// PeerRequestTimeout are the ambient knobs a production deployment needs
// and that spec.md leaves to the implementer.
type Config struct {
	// PoolLimit is the maximum number of resident transactions.
	PoolLimit int
	// NotifierWorkers sizes the worker pool that runs submit callbacks and
	// sealer notifications.
	NotifierWorkers int
	// VerifyWorkers sizes the worker pool that runs validation, decoding
	// and block verification.
	VerifyWorkers int
	// BlockLimit is the ledger nonce checker's window size, supplied by the
	// ledger as a system parameter.
	BlockLimit uint64
	// ChainID and GroupID gate admission in the validator.
	ChainID uint64
	GroupID uint64

	// SealBatchTimeout bounds the validator re-check work batch_fetch
	// performs while scanning for sealable transactions.
	SealBatchTimeout time.Duration
	// SyncInterval is the sync reactor's wakeup timer, used when the
	// storage on_ready feed doesn't fire (no new local transactions to
	// propagate but peers may still need servicing).
	SyncInterval time.Duration
	// PeerRequestTimeout bounds how long VerifyBlock's missed-transaction
	// request waits for the origin peer before falling back to the ledger.
	// Every such request uses this value; callers cannot pass a timeout of
	// their own, and FillBlock does not query peers.
	PeerRequestTimeout time.Duration

	// SerializedVerifier sizes the verify worker pool to a single worker
	// instead of VerifyWorkers. That one pool runs Submit, FillBlock and
	// VerifyBlock alike, so all three are serialized; there is no verifier
	// separate from it.
	SerializedVerifier bool

	// MissedSetSize bounds the LRU used to remember hashes peers have
	// announced that this node does not yet hold (spec.md §9's Missed-set
	// reset policy, resolved here with an LRU rather than a full clear).
	MissedSetSize int
}

// DefaultConfig mirrors spec.md §6's defaults plus the ambient additions.
func DefaultConfig() Config {
	return Config{
		PoolLimit:          15000,
		NotifierWorkers:    1,
		VerifyWorkers:      1,
		BlockLimit:         1000,
		SealBatchTimeout:   2 * time.Second,
		SyncInterval:       200 * time.Millisecond,
		PeerRequestTimeout: 3 * time.Second,
		SerializedVerifier: true,
		MissedSetSize:      15000,
	}
}

// sanitize fills in zero-valued fields with defaults, mirroring the
// teacher's config pattern of defending against a caller-constructed
// Config with unset fields (core/txpool/legacypool.Config.sanitize).
func (c Config) sanitize() Config {
	conf := c
	if conf.PoolLimit <= 0 {
		conf.PoolLimit = DefaultConfig().PoolLimit
	}
	if conf.NotifierWorkers <= 0 {
		conf.NotifierWorkers = DefaultConfig().NotifierWorkers
	}
	if conf.VerifyWorkers <= 0 {
		conf.VerifyWorkers = DefaultConfig().VerifyWorkers
	}
	if conf.SealBatchTimeout <= 0 {
		conf.SealBatchTimeout = DefaultConfig().SealBatchTimeout
	}
	if conf.SyncInterval <= 0 {
		conf.SyncInterval = DefaultConfig().SyncInterval
	}
	if conf.PeerRequestTimeout <= 0 {
		conf.PeerRequestTimeout = DefaultConfig().PeerRequestTimeout
	}
	if conf.MissedSetSize <= 0 {
		conf.MissedSetSize = DefaultConfig().MissedSetSize
	}
	return conf
}
