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

package mock

import (
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/bcos-go/txpool/common"
)

// ErrPeerNotFound is returned by AsyncSendMessageByNodeID/AsyncSendResponse
// when the addressed peer is not registered on the Network.
var ErrPeerNotFound = errors.New("mock: peer not found")

// Network wires a group of FrontService instances together, standing in
// for the real P2P transport: a send to node B is delivered straight to
// B's inbound handler, and a correlated AsyncSendResponse is routed back
// to the original caller's callback by request id.
type Network struct {
	mu       sync.Mutex
	services map[common.NodeID]*FrontService
}

// NewNetwork returns an empty Network.
func NewNetwork() *Network {
	return &Network{services: make(map[common.NodeID]*FrontService)}
}

func (n *Network) register(fs *FrontService) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.services[fs.id] = fs
}

func (n *Network) lookup(id common.NodeID) *FrontService {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.services[id]
}

// peersExcept returns every registered node id except self.
func (n *Network) peersExcept(self common.NodeID) []common.NodeID {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]common.NodeID, 0, len(n.services))
	for id := range n.services {
		if id != self {
			out = append(out, id)
		}
	}
	return out
}

// FrontService is the mock's txpool.FrontService, a node's transport
// endpoint on a Network.
type FrontService struct {
	id  common.NodeID
	net *Network

	mu      sync.Mutex
	pending map[string]func(err error, resp []byte)
	inbound func(from common.NodeID, requestID string, payload []byte)
}

// NewFrontService creates a FrontService for id and registers it on net.
func NewFrontService(net *Network, id common.NodeID) *FrontService {
	fs := &FrontService{id: id, net: net, pending: make(map[string]func(err error, resp []byte))}
	net.register(fs)
	return fs
}

// SetInbound wires the handler invoked for every message addressed to this
// node, typically a Pool's NotifyTxsSyncMessage.
func (fs *FrontService) SetInbound(h func(from common.NodeID, requestID string, payload []byte)) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.inbound = h
}

func (fs *FrontService) LocalNodeID() common.NodeID { return fs.id }

func (fs *FrontService) AsyncGetNodeIDs(cb func(err error, ids []common.NodeID)) {
	go cb(nil, fs.net.peersExcept(fs.id))
}

// AsyncSendMessageByNodeID delivers payload to peer's inbound handler and
// registers cb to fire once peer correlates a reply through
// AsyncSendResponse. If peer never replies (e.g. a StatusAnnounce that
// doesn't expect one), cb simply never fires, matching the real
// transport's fire-and-forget case.
func (fs *FrontService) AsyncSendMessageByNodeID(module string, peer common.NodeID, payload []byte, cb func(err error, resp []byte)) {
	peerFS := fs.net.lookup(peer)
	if peerFS == nil {
		go cb(ErrPeerNotFound, nil)
		return
	}
	requestID := uuid.NewString()
	fs.mu.Lock()
	fs.pending[requestID] = cb
	fs.mu.Unlock()

	go func() {
		peerFS.mu.Lock()
		h := peerFS.inbound
		peerFS.mu.Unlock()
		if h != nil {
			h(fs.id, requestID, payload)
		}
	}()
}

// AsyncSendResponse routes payload back to the peer's pending callback for
// requestID, mirroring a real transport correlating a TxsResponse to the
// TxsRequest that solicited it.
func (fs *FrontService) AsyncSendResponse(requestID, module string, peer common.NodeID, payload []byte, cb func(err error)) {
	peerFS := fs.net.lookup(peer)
	if peerFS == nil {
		go cb(ErrPeerNotFound)
		return
	}
	peerFS.mu.Lock()
	ackCb, ok := peerFS.pending[requestID]
	if ok {
		delete(peerFS.pending, requestID)
	}
	peerFS.mu.Unlock()
	if ok {
		go ackCb(nil, payload)
	}
	go cb(nil)
}
