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
	"errors"
	"sync"
	"time"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/log"
	"github.com/bcos-go/txpool/txpool/storage"
)

// Engine is the long-running reactor described in spec.md §4.5: it
// propagates newly admitted transactions to peers, answers inbound
// StatusAnnounce/TxsRequest/TxsResponse traffic, and resolves the
// missed-tx fetch that drives verify_block. It mirrors the teacher-grade
// reactor shape of a single goroutine woken by either a ready signal or a
// fallback ticker (consensus-study-pbft-formatting-cosmos-sdk's
// mempool/reactor.go), generalized to this pool's three message kinds.
type Engine struct {
	cfg Config

	storage      Storage
	front        FrontService
	txFactory    TxFactory
	blockFactory BlockFactory
	ledger       Ledger
	validator    Validator

	peers *peerBook
	self  common.NodeID

	readyCh chan struct{}
	stopCh  chan struct{}
	sub     interface{ Unsubscribe() }
	wg      sync.WaitGroup

	log log.Logger
}

// NewEngine wires an Engine over the given capabilities. self is the
// local node id, excluded from every select_peers result.
func NewEngine(cfg Config, st Storage, front FrontService, txFactory TxFactory, blockFactory BlockFactory, ledger Ledger, validator Validator, self common.NodeID) *Engine {
	return &Engine{
		cfg:          cfg.sanitize(),
		storage:      st,
		front:        front,
		txFactory:    txFactory,
		blockFactory: blockFactory,
		ledger:       ledger,
		validator:    validator,
		peers:        newPeerBook(),
		self:         self,
		readyCh:      make(chan struct{}, 1),
		stopCh:       make(chan struct{}),
		log:          log.New("module", "txpool.txsync"),
	}
}

// Start subscribes to storage's on_ready signal and launches the reactor
// goroutine.
func (e *Engine) Start() {
	e.sub = e.storage.SubscribeReady(e.readyCh)
	e.wg.Add(1)
	go e.loop()
}

// Stop unsubscribes and waits for the reactor goroutine to exit.
func (e *Engine) Stop() {
	close(e.stopCh)
	if e.sub != nil {
		e.sub.Unsubscribe()
	}
	e.wg.Wait()
}

// SetConnectedNodes implements notify_connected_nodes.
func (e *Engine) SetConnectedNodes(nodes []common.NodeID) { e.peers.setConnected(nodes) }

// SetConsensusNodes implements notify_consensus_node_list.
func (e *Engine) SetConsensusNodes(nodes []common.NodeID) { e.peers.setConsensus(nodes) }

// SetObserverNodes implements notify_observer_node_list.
func (e *Engine) SetObserverNodes(nodes []common.NodeID) { e.peers.setObservers(nodes) }

// InGroup reports whether the local node is itself a consensus or observer member,
// backing the façade's RequestNotBelongToTheGroup check.
func (e *Engine) InGroup() bool { return e.peers.inGroup(e.self) }

// DropPeer untracks a disconnected peer.
func (e *Engine) DropPeer(id common.NodeID) { e.peers.dropPeer(id) }

func (e *Engine) loop() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.cfg.SyncInterval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-e.readyCh:
			e.propagateNewTxs()
		case <-ticker.C:
			e.propagateNewTxs()
		}
	}
}

// propagateNewTxs implements spec.md §4.5.1. Both RPC-originated and
// P2P-forwarded transactions resolve to the same select_peers call: its
// exclusion of tx.known_nodes already guarantees a forwarded tx is only
// re-sent to peers that have not seen it, which is exactly what the
// forwarded-from-P2P case requires; the distinction in the spec text is
// about why a tx is being announced, not how the target peers are chosen.
func (e *Engine) propagateNewTxs() {
	txs := e.storage.FetchNew(e.cfg.FetchLimit)
	if len(txs) == 0 {
		return
	}

	announcements := make(map[common.NodeID][]common.Hash)
	for _, tx := range txs {
		for _, peer := range e.peers.selectPeers(tx, e.self, e.cfg.FanoutSize) {
			tx.KnownNodes().Add(peer)
			announcements[peer] = append(announcements[peer], tx.Hash())
		}
	}
	for peer, hashes := range announcements {
		e.announce(peer, hashes)
	}
}

func (e *Engine) announce(peer common.NodeID, hashes []common.Hash) {
	payload, err := EncodeStatusAnnounce(&StatusAnnounce{Hashes: hashes})
	if err != nil {
		e.log.Error("encode status announce failed", "err", err)
		return
	}
	e.front.AsyncSendMessageByNodeID(Module, peer, payload, func(err error, resp []byte) {
		if err != nil {
			e.log.Debug("status announce delivery failed", "peer", peer, "err", err)
		}
	})
}

// HandleMessage dispatches an inbound TxsSync message, per spec.md
// §4.5.2. uuid is the transport-level request id, echoed back by
// AsyncSendResponse when replying to a TxsRequest; StatusAnnounce and
// TxsResponse ignore it, since neither expects a correlated reply.
func (e *Engine) HandleMessage(from common.NodeID, uuid string, payload []byte) error {
	kind, status, req, resp, err := Decode(payload)
	if err != nil {
		return err
	}
	switch kind {
	case KindStatusAnnounce:
		e.handleStatusAnnounce(from, status)
	case KindTxsRequest:
		e.handleTxsRequest(from, uuid, req)
	case KindTxsResponse:
		e.handleTxsResponse(resp)
	}
	return nil
}

func (e *Engine) handleStatusAnnounce(from common.NodeID, msg *StatusAnnounce) {
	unknown := e.storage.FilterUnknown(msg.Hashes, from)
	if len(unknown) == 0 {
		return
	}
	payload, err := EncodeTxsRequest(&TxsRequest{Hashes: unknown})
	if err != nil {
		e.log.Error("encode txs request failed", "err", err)
		return
	}
	e.front.AsyncSendMessageByNodeID(Module, from, payload, func(err error, resp []byte) {
		if err != nil {
			e.log.Debug("txs request delivery failed", "peer", from, "err", err)
		}
	})
}

func (e *Engine) handleTxsRequest(from common.NodeID, uuid string, req *TxsRequest) {
	present, _ := e.storage.Fetch(req.Hashes)
	block := e.blockFactory.CreateBlockWithTxs(present)
	payload, err := EncodeTxsResponse(&TxsResponse{BlockPayload: block.Encode()})
	if err != nil {
		e.log.Error("encode txs response failed", "err", err)
		return
	}
	e.front.AsyncSendResponse(uuid, Module, from, payload, func(err error) {
		if err != nil {
			e.log.Debug("txs response delivery failed", "peer", from, "err", err)
		}
	})
}

func (e *Engine) handleTxsResponse(resp *TxsResponse) {
	block, err := e.blockFactory.CreateBlockFromBytes(resp.BlockPayload)
	if err != nil {
		e.log.Debug("decode txs response failed", "err", err)
		return
	}
	for _, raw := range block.Txs() {
		tx, err := e.txFactory.CreateTransaction(raw, true)
		if err != nil {
			e.log.Debug("decode forwarded tx failed", "err", err)
			continue
		}
		if err := e.validator.Verify(tx); err != nil {
			e.log.Debug("forwarded tx rejected by validator", "hash", tx.Hash(), "err", err)
			continue
		}
		// P2P-forwarded path: no submit callback, per spec.md §4.5.2.
		if err := e.storage.Submit(tx); err != nil && !errors.Is(err, storage.ErrAlreadyKnown) {
			e.log.Debug("forwarded tx rejected on submit", "hash", tx.Hash(), "err", err)
		}
	}
}

// RequestMissedTxs implements spec.md §4.5.3: request missedHashes from
// origin with a bounded wait, falling back to the ledger when the peer
// does not answer in time, answers with an error, or supplies an
// incomplete set. onVerifyDone is invoked exactly once: with a nil error
// (the missed set was fully recovered, from the peer or the ledger), with
// ErrTransactionsMissing, or with the encoding error if the request could
// not be encoded.
func (e *Engine) RequestMissedTxs(origin common.NodeID, missedHashes []common.Hash, onVerifyDone func(err error)) {
	payload, err := EncodeTxsRequest(&TxsRequest{Hashes: missedHashes})
	if err != nil {
		onVerifyDone(err)
		return
	}

	var once sync.Once
	timer := time.AfterFunc(e.cfg.PeerRequestTimeout, func() {
		once.Do(func() { e.fallbackToLedger(missedHashes, onVerifyDone) })
	})

	e.front.AsyncSendMessageByNodeID(Module, origin, payload, func(err error, resp []byte) {
		timer.Stop()
		once.Do(func() {
			if err == nil && e.recoverFromPeerResponse(resp, missedHashes) {
				onVerifyDone(nil)
				return
			}
			e.fallbackToLedger(missedHashes, onVerifyDone)
		})
	})
}

// recoverFromPeerResponse decodes a TxsResponse and submits every tx it
// carries, reporting whether the full missedHashes set was recovered.
func (e *Engine) recoverFromPeerResponse(raw []byte, missedHashes []common.Hash) bool {
	_, _, _, resp, err := Decode(raw)
	if err != nil || resp == nil {
		return false
	}
	block, err := e.blockFactory.CreateBlockFromBytes(resp.BlockPayload)
	if err != nil {
		return false
	}

	recovered := make(map[common.Hash]bool, len(missedHashes))
	for _, txRaw := range block.Txs() {
		tx, err := e.txFactory.CreateTransaction(txRaw, true)
		if err != nil {
			continue
		}
		if err := e.validator.Verify(tx); err != nil {
			continue
		}
		if err := e.storage.Submit(tx); err != nil && !errors.Is(err, storage.ErrAlreadyKnown) {
			continue
		}
		recovered[tx.Hash()] = true
	}
	for _, h := range missedHashes {
		if !recovered[h] {
			return false
		}
	}
	return true
}

func (e *Engine) fallbackToLedger(missedHashes []common.Hash, onVerifyDone func(err error)) {
	e.ledger.AsyncGetBatchTxs(missedHashes, false, func(err error, txs []storage.Tx) {
		if err != nil || len(txs) != len(missedHashes) {
			onVerifyDone(ErrTransactionsMissing)
			return
		}
		for _, tx := range txs {
			if err := e.storage.Submit(tx); err != nil && !errors.Is(err, storage.ErrAlreadyKnown) {
				e.log.Debug("ledger-recovered tx rejected on submit", "hash", tx.Hash(), "err", err)
			}
		}
		onVerifyDone(nil)
	})
}
