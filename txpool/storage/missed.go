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

package storage

import (
	"sync"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/common/lru"
)

// missedSet tracks hashes a peer has announced that this node does not
// hold. spec.md §9 flags the source's reset policy (clear the whole set
// once it reaches pool_limit) as inferior to an LRU; this is the LRU.
type missedSet struct {
	mu    sync.Mutex
	cache lru.BasicLRU[common.Hash, struct{}]
}

func newMissedSet(size int) *missedSet {
	return &missedSet{cache: lru.NewCache[common.Hash, struct{}](size)}
}

// add records hash as missed. Returns false if it was already tracked.
func (m *missedSet) add(hash common.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cache.Contains(hash) {
		return false
	}
	m.cache.Add(hash, struct{}{})
	return true
}

// remove drops hash, used when it is later admitted via submit.
func (m *missedSet) remove(hash common.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cache.Remove(hash)
}

// contains reports whether hash is currently tracked as missed.
func (m *missedSet) contains(hash common.Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Contains(hash)
}

func (m *missedSet) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cache.Len()
}
