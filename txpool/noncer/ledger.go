// Copyright 2019 The go-ethereum Authors
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

package noncer

import (
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/exp/maps"

	"github.com/bcos-go/txpool/log"
)

// ErrNonceCheckFail is returned by CheckNonce when the nonce is already
// present in the committed-nonce window (replay).
var ErrNonceCheckFail = errors.New("noncer: nonce check failed")

// ErrBlockLimitCheckFail is returned by CheckNonce when the transaction's
// block_limit is stale (at or before the current head) or too far in the
// future (beyond the window).
var ErrBlockLimitCheckFail = errors.New("noncer: block limit check failed")

// LedgerNoncer is the windowed, per-block cache of historical nonces. It
// wraps a PoolNoncer for the membership test it needs and adds block-limit
// arithmetic and eviction on top.
//
// Init seeds the blockLimit most-recent blocks [latest-blockLimit+1, latest].
// Each BatchInsert that advances the head evicts one block only, the one
// blockLimit behind the new head; when the head jumps forward by more than
// one block, older cached blocks stay in the cache.
type LedgerNoncer struct {
	blockLimit uint64
	latest     atomic.Uint64

	mu     sync.Mutex
	blocks map[uint64][]uint64 // block number -> nonces committed in that block

	member *PoolNoncer // union of all cached nonces, for O(1) membership

	log log.Logger
}

// NewLedgerNoncer creates an empty windowed cache with the given window size.
func NewLedgerNoncer(blockLimit uint64) *LedgerNoncer {
	return &LedgerNoncer{
		blockLimit: blockLimit,
		blocks:     make(map[uint64][]uint64),
		member:     NewPoolNoncer(),
		log:        log.New("module", "txpool.noncer.ledger"),
	}
}

// Init seeds the cache from the ledger at startup. initialNonces maps block
// number to that block's committed nonces, for up to blockLimit most-recent
// blocks; latest is the ledger's current head.
func (c *LedgerNoncer) Init(latest uint64, initialNonces map[uint64][]uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.latest.Store(latest)
	for block, nonces := range initialNonces {
		c.blocks[block] = nonces
		for _, nonce := range nonces {
			c.member.Insert(nonce)
		}
	}
	// Guarantee every block in the window has an entry, even an empty one,
	// so a future BatchInsert's eviction never misses a block the ledger
	// simply had nothing to report for. The window is exactly blockLimit
	// blocks wide: [latest-blockLimit+1, latest].
	var floor uint64
	if latest+1 > c.blockLimit {
		floor = latest + 1 - c.blockLimit
	}
	for b := floor; b <= latest; b++ {
		if _, ok := c.blocks[b]; !ok {
			c.blocks[b] = nil
		}
	}
}

// LatestBlockNumber returns the cache's current head.
func (c *LedgerNoncer) LatestBlockNumber() uint64 {
	return c.latest.Load()
}

// CheckNonce implements the duplicate_tx re-check of spec.md §4.1: it
// reports NonceCheckFail if nonce is already present in the committed
// ledger window (some other transaction with the same nonce landed in a
// block meanwhile), or BlockLimitCheckFail if blockLimit has been
// crossed. It never mutates the cache — membership only changes through
// Init and BatchInsert, both driven by actual ledger commits.
func (c *LedgerNoncer) CheckNonce(nonce, blockLimit uint64) error {
	if c.member.Contains(nonce) {
		return ErrNonceCheckFail
	}
	return c.CheckBlockLimit(blockLimit)
}

// CheckBlockLimit reports whether blockLimit still falls inside the
// window around the ledger's current head, without consulting the
// committed-nonce membership set. CheckNonce runs it after its own
// membership test.
func (c *LedgerNoncer) CheckBlockLimit(blockLimit uint64) error {
	b := c.latest.Load()
	if b >= blockLimit || b+c.blockLimit < blockLimit {
		return ErrBlockLimitCheckFail
	}
	return nil
}

// BatchInsert advances the window head to blockID and records its nonces.
// It is a no-op if blockID has already been observed (or superseded). Only
// the one block exactly blockLimit behind the new head is evicted; blocks
// older than that which are still cached after a jump of more than one
// block are not. A miss on the
// expired entry is a fatal internal invariant violation — it means a
// ledger block was lost from the window without this cache ever seeing
// it, so the node cannot continue operating safely.
func (c *LedgerNoncer) BatchInsert(blockID uint64, nonces []uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	prev := c.latest.Load()
	if blockID <= prev {
		return
	}
	c.latest.Store(blockID)
	for b := prev + 1; b < blockID; b++ {
		if _, ok := c.blocks[b]; !ok {
			c.blocks[b] = nil
		}
	}
	c.blocks[blockID] = nonces
	for _, nonce := range nonces {
		c.member.Insert(nonce)
	}

	// The window is [blockID-blockLimit+1, blockID], inclusive on both
	// ends, so stepping the head forward to blockID must evict exactly
	// blockID-blockLimit.
	var expired uint64
	if blockID > c.blockLimit {
		expired = blockID - c.blockLimit
	}
	expiredNonces, ok := c.blocks[expired]
	if !ok {
		c.log.Crit("ledger nonce cache missing expired window entry",
			"block", blockID, "expired", expired, "window", c.blockLimit)
		return
	}
	delete(c.blocks, expired)
	c.member.BatchRemove(expiredNonces)
}

// Contains reports whether nonce is currently within the cached window.
func (c *LedgerNoncer) Contains(nonce uint64) bool {
	return c.member.Contains(nonce)
}

// Window returns a snapshot of the cached block numbers, for tests and
// metrics.
func (c *LedgerNoncer) Window() []uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return maps.Keys(c.blocks)
}
