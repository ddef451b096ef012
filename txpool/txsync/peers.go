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

import (
	"sort"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/storage"
)

// peerBook tracks the three peer-membership facts the reactor needs:
// who is currently connected, who is a consensus sealer, and who is a
// consensus observer. All three are maintained as mapset sets so
// selectPeers can use set intersection directly, mirroring the teacher's
// knownCache shape (eth/protocols/eth/peer.go) generalized from a single
// per-peer known-hash cache to pool-wide membership bookkeeping.
type peerBook struct {
	mu        sync.RWMutex
	connected mapset.Set[common.NodeID]
	consensus mapset.Set[common.NodeID]
	observers mapset.Set[common.NodeID]
}

func newPeerBook() *peerBook {
	return &peerBook{
		connected: mapset.NewThreadUnsafeSet[common.NodeID](),
		consensus: mapset.NewThreadUnsafeSet[common.NodeID](),
		observers: mapset.NewThreadUnsafeSet[common.NodeID](),
	}
}

// setConnected replaces the connected-peer set, per notify_connected_nodes.
func (p *peerBook) setConnected(nodes []common.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected = mapset.NewThreadUnsafeSet[common.NodeID](nodes...)
}

// setConsensus replaces the consensus sealer set, per notify_consensus_node_list.
func (p *peerBook) setConsensus(nodes []common.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.consensus = mapset.NewThreadUnsafeSet[common.NodeID](nodes...)
}

// setObservers replaces the consensus observer set, per notify_observer_node_list.
func (p *peerBook) setObservers(nodes []common.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = mapset.NewThreadUnsafeSet[common.NodeID](nodes...)
}

// inGroup reports whether the local node is itself a member of the
// group, used by the façade's RequestNotBelongToTheGroup check. Group
// membership is the union of the consensus sealer and observer sets, not
// consensus alone, mirroring existsInGroup's definition of "the group" in
// the original.
func (p *peerBook) inGroup(self common.NodeID) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.consensus.Contains(self) || p.observers.Contains(self)
}

// dropPeer untracks a disconnected peer by removing it from the connected
// set; its consensus and observer memberships are left as they are.
func (p *peerBook) dropPeer(id common.NodeID) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.connected.Remove(id)
}

// selectPeers implements spec.md §4.5.1's select_peers: the intersection
// of connected and consensus members, excluding the tx's known_nodes and
// the local node, taking the first expectedSize in deterministic order.
func (p *peerBook) selectPeers(tx storage.Tx, self common.NodeID, expectedSize int) []common.NodeID {
	p.mu.RLock()
	candidates := p.connected.Intersect(p.consensus)
	p.mu.RUnlock()

	known := tx.KnownNodes()
	out := make([]common.NodeID, 0, candidates.Cardinality())
	candidates.Each(func(id common.NodeID) bool {
		if id == self || known.Contains(id) {
			return false
		}
		out = append(out, id)
		return false
	})
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	if len(out) > expectedSize {
		out = out[:expectedSize]
	}
	return out
}
