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

// Package noncer implements the pool's two nonce-tracking structures: a
// flat in-flight nonce set and, layered on top of it, a windowed ledger
// nonce cache.
package noncer

import "sync"

// PoolNoncer is a concurrent set of nonces currently represented by a pool
// entry. It exists to give the validator an O(1) duplicate-nonce check
// without scanning the storage queue.
type PoolNoncer struct {
	mu     sync.RWMutex
	nonces map[uint64]struct{}
}

// NewPoolNoncer creates an empty nonce set.
func NewPoolNoncer() *PoolNoncer {
	return &PoolNoncer{nonces: make(map[uint64]struct{})}
}

// Insert records nonce as in-flight. Returns false if it was already present.
func (n *PoolNoncer) Insert(nonce uint64) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if _, ok := n.nonces[nonce]; ok {
		return false
	}
	n.nonces[nonce] = struct{}{}
	return true
}

// Remove drops nonce from the set.
func (n *PoolNoncer) Remove(nonce uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	delete(n.nonces, nonce)
}

// Contains reports whether nonce is currently tracked.
func (n *PoolNoncer) Contains(nonce uint64) bool {
	n.mu.RLock()
	defer n.mu.RUnlock()
	_, ok := n.nonces[nonce]
	return ok
}

// BatchInsert records the nonces of a sealed proposal so double-sealing of
// the same nonce is blocked. blockID is accepted for symmetry with
// LedgerNoncer.BatchInsert and is otherwise unused here.
func (n *PoolNoncer) BatchInsert(blockID uint64, nonces []uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, nonce := range nonces {
		n.nonces[nonce] = struct{}{}
	}
}

// BatchRemove drops a batch of nonces in one locked pass, used by
// storage.batch_remove once a block commits.
func (n *PoolNoncer) BatchRemove(nonces []uint64) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, nonce := range nonces {
		delete(n.nonces, nonce)
	}
}

// Len reports the number of tracked nonces, used by tests and metrics.
func (n *PoolNoncer) Len() int {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.nonces)
}
