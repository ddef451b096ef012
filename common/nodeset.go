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

package common

import "sync"

// NodeSet is a concurrency-safe set of NodeIDs. It backs a transaction's
// known_nodes membership (spec.md §3) and peer/consensus-list bookkeeping
// in the sync engine; both txpool and txpool/txsync need the same shape
// without importing each other, so it lives here.
type NodeSet struct {
	mu  sync.RWMutex
	set map[NodeID]struct{}
}

// NewNodeSet creates an empty NodeSet.
func NewNodeSet() *NodeSet {
	return &NodeSet{set: make(map[NodeID]struct{})}
}

// Add records id as known. Returns true if id was newly added.
func (s *NodeSet) Add(id NodeID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.set[id]; ok {
		return false
	}
	s.set[id] = struct{}{}
	return true
}

// Contains reports whether id has already been recorded.
func (s *NodeSet) Contains(id NodeID) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.set[id]
	return ok
}

// Remove drops id from the set, used on peer disconnect.
func (s *NodeSet) Remove(id NodeID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.set, id)
}

// Len reports the set's size.
func (s *NodeSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.set)
}

// Slice returns a snapshot of the set's members.
func (s *NodeSet) Slice() []NodeID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]NodeID, 0, len(s.set))
	for id := range s.set {
		out = append(out, id)
	}
	return out
}
