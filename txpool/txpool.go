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

// Package txpool is the façade described in spec.md §4.6: it binds the
// validator, the nonce checkers, storage and the sync engine behind a
// single asynchronous API, and owns the two worker pools that keep every
// consumer-facing call non-blocking.
package txpool

import (
	"sync"
	"sync/atomic"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/event"
	"github.com/bcos-go/txpool/internal/workerpool"
	"github.com/bcos-go/txpool/log"
	"github.com/bcos-go/txpool/txpool/metrics"
	"github.com/bcos-go/txpool/txpool/noncer"
	"github.com/bcos-go/txpool/txpool/storage"
	"github.com/bcos-go/txpool/txpool/txsync"
)

// metricsRecorder is the method set both *metrics.Metrics and
// metrics.Null satisfy; declared here (rather than imported from package
// metrics) so a caller-supplied recorder never has to import that
// package's Prometheus dependency just to implement the interface.
type metricsRecorder interface {
	SetPoolSize(int)
	SetUnsealedSize(int)
	SetSealedCount(int)
	IncSubmit(status string)
	AddSealed(n int)
	AddCommitted(n int)
	ObservePrecommit(d time.Duration)
	IncSyncRequest(kind string)
	AddMissedTxs(n int)
}

// sealedBatch is the bookkeeping mark_txs keeps for a sealed proposal, so
// InvalidateBatch can later find and unseal exactly those hashes (spec.md
// §9 Open Question 2's richer mark_txs form).
type sealedBatch struct {
	hash   common.Hash
	hashes []common.Hash
}

// Pool is the transaction pool façade. It is safe for concurrent use by
// RPC, consensus, the sealer and the block verifier.
type Pool struct {
	cfg Config

	crypto        CryptoSuite
	blockFactory  BlockFactory
	txFactory     TxFactory
	resultFactory TxResultFactory
	ledger        Ledger
	front         FrontService
	sealer        Sealer

	poolNonces   *noncer.PoolNoncer
	ledgerNonces *noncer.LedgerNoncer
	validator    *validator
	storage      *storage.Storage
	engine       *txsync.Engine

	verifyPool *workerpool.Pool
	metrics    metricsRecorder
	events     event.Feed

	batchMu sync.Mutex
	batches map[uint64]sealedBatch

	running atomic.Bool
	log     log.Logger
}

// Option customizes a Pool at construction time.
type Option func(*Pool)

// WithSerializedVerifier sets Config.SerializedVerifier: the verify worker
// pool gets a single worker, so Submit, FillBlock and VerifyBlock run one
// at a time on it. There is no verifier separate from that pool.
func WithSerializedVerifier() Option {
	return func(p *Pool) { p.cfg.SerializedVerifier = true }
}

// WithPooledVerifier clears Config.SerializedVerifier, so the verify
// worker pool is sized to Config.VerifyWorkers.
func WithPooledVerifier() Option {
	return func(p *Pool) { p.cfg.SerializedVerifier = false }
}

// WithMetrics installs a metrics recorder. Without this option the pool
// records to metrics.Null, so New never needs a namespace to avoid
// double-registering Prometheus collectors across tests.
func WithMetrics(m metricsRecorder) Option {
	return func(p *Pool) { p.metrics = m }
}

// New wires a Pool over the given injected capabilities, per spec.md §6.
func New(cfg Config, crypto CryptoSuite, blockFactory BlockFactory, txFactory TxFactory, resultFactory TxResultFactory, ledger Ledger, front FrontService, sealer Sealer, opts ...Option) (*Pool, error) {
	if crypto == nil {
		return nil, ErrNoCryptoSuite
	}
	if blockFactory == nil || txFactory == nil || resultFactory == nil || ledger == nil || front == nil || sealer == nil {
		return nil, ErrMissingCollaborator
	}

	p := &Pool{
		cfg:           cfg.sanitize(),
		crypto:        crypto,
		blockFactory:  blockFactory,
		txFactory:     txFactory,
		resultFactory: resultFactory,
		ledger:        ledger,
		front:         front,
		sealer:        sealer,
		poolNonces:    noncer.NewPoolNoncer(),
		metrics:       metrics.Null{},
		batches:       make(map[uint64]sealedBatch),
		log:           log.New("module", "txpool"),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.ledgerNonces = noncer.NewLedgerNoncer(p.cfg.BlockLimit)

	// The validator needs storage's HasHash for its duplicate-hash check,
	// and storage.New needs a Validator for its in-selection re-check —
	// neither can be built fully-formed before the other, so the
	// validator's index is filled in once storage exists.
	p.validator = newValidator(p.cfg.ChainID, p.cfg.GroupID, crypto, p.poolNonces, p.ledgerNonces, nil)

	storageCfg := storage.Config{
		PoolLimit:        p.cfg.PoolLimit,
		NotifierWorkers:  p.cfg.NotifierWorkers,
		MissedSetSize:    p.cfg.MissedSetSize,
		SealBatchTimeout: p.cfg.SealBatchTimeout,
	}
	p.storage = storage.New(storageCfg, p.validator, p.poolNonces, p.ledgerNonces, ledger, sealer, p.metrics)
	p.validator.setIndex(p.storage)

	verifySize := p.cfg.VerifyWorkers
	if p.cfg.SerializedVerifier {
		verifySize = 1
	}
	p.verifyPool = workerpool.New(verifySize)

	syncCfg := txsync.Config{
		SyncInterval:       p.cfg.SyncInterval,
		PeerRequestTimeout: p.cfg.PeerRequestTimeout,
	}
	p.engine = txsync.NewEngine(syncCfg, p.storage, front, txFactoryAdapter{txFactory}, blockFactoryAdapter{blockFactory}, ledgerAdapter{ledger}, p.validator, front.LocalNodeID())

	return p, nil
}

// Start launches the sync engine's reactor goroutine.
func (p *Pool) Start() {
	if !p.running.CompareAndSwap(false, true) {
		return
	}
	p.engine.Start()
}

// Stop drains both worker pools and the sync engine, per spec.md §5's
// stop() sequencing.
func (p *Pool) Stop() {
	if !p.running.CompareAndSwap(true, false) {
		return
	}
	p.engine.Stop()
	p.storage.Close()
	p.verifyPool.Close()
}

// Init seeds the ledger nonce checker and the sync engine's peer lists
// from the ledger at startup, per spec.md §6's persisted-state contract.
// The three independent ledger fetches run concurrently; the nonce list
// fetch depends on the block number one of them returns.
func (p *Pool) Init() error {
	var (
		number                        uint64
		consensusNodes, observerNodes []common.NodeID
	)

	var g errgroup.Group
	g.Go(func() (err error) {
		number, err = p.fetchBlockNumber()
		return err
	})
	g.Go(func() (err error) {
		consensusNodes, err = p.fetchNodeList(ConsensusSealer)
		return err
	})
	g.Go(func() (err error) {
		observerNodes, err = p.fetchNodeList(ConsensusObserver)
		return err
	})
	if err := g.Wait(); err != nil {
		return err
	}
	p.engine.SetConsensusNodes(consensusNodes)
	p.engine.SetObserverNodes(observerNodes)

	var start uint64
	if number+1 > p.cfg.BlockLimit {
		start = number + 1 - p.cfg.BlockLimit
	}
	nonces, err := p.fetchNonceList(start, number)
	if err != nil {
		return err
	}
	p.ledgerNonces.Init(number, nonces)
	return nil
}

func (p *Pool) fetchBlockNumber() (uint64, error) {
	type result struct {
		number uint64
		err    error
	}
	ch := make(chan result, 1)
	p.ledger.AsyncGetBlockNumber(func(err error, number uint64) { ch <- result{number, err} })
	r := <-ch
	return r.number, r.err
}

func (p *Pool) fetchNodeList(typ NodeType) ([]common.NodeID, error) {
	type result struct {
		nodes []common.NodeID
		err   error
	}
	ch := make(chan result, 1)
	p.ledger.AsyncGetNodeListByType(typ, func(err error, nodes []common.NodeID) { ch <- result{nodes, err} })
	r := <-ch
	return r.nodes, r.err
}

func (p *Pool) fetchNonceList(start, offset uint64) (NonceMap, error) {
	type result struct {
		nonces NonceMap
		err    error
	}
	ch := make(chan result, 1)
	p.ledger.AsyncGetNonceList(start, offset, func(err error, nonces NonceMap) { ch <- result{nonces, err} })
	r := <-ch
	return r.nonces, r.err
}

// Submit implements spec.md §4.6's submit: decoding, the
// RequestNotBelongToTheGroup group-membership gate and the validator
// pipeline all run on the verify worker pool, so the caller never blocks.
// onResult may be nil for a fire-and-forget submission.
func (p *Pool) Submit(raw []byte, onResult func(SubmitResult)) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if !p.verifyPool.Submit(func() { p.submitSync(raw, onResult) }) {
		return ErrPoolClosed
	}
	return nil
}

func (p *Pool) submitSync(raw []byte, onResult func(SubmitResult)) {
	// The worker consults the running flag at entry, per spec.md's
	// weak-handle-at-entry cancellation note: if Stop has already fired by
	// the time this closure runs, it exits without touching storage.
	if !p.running.Load() {
		p.deliverSubmit(common.Hash{}, LockFailed, onResult)
		return
	}
	tx, err := p.txFactory.CreateTransaction(raw, true)
	if err != nil {
		p.deliverSubmit(common.Hash{}, Malform, onResult)
		return
	}
	if !p.engine.InGroup() {
		p.deliverSubmit(tx.Hash(), RequestNotBelongToTheGroup, onResult)
		return
	}
	if status := p.validator.verify(tx); !status.OK() {
		p.deliverSubmit(tx.Hash(), status, onResult)
		return
	}
	// Only an RPC-originated tx that the caller wants to hear back about
	// gets a callback attached; storage.Submit fires it exactly once once
	// the admission outcome (pool-full / already-known / success) is
	// known, per spec.md §4.4.3.
	if onResult != nil {
		tx.SetCallback(func(status Status) { p.deliverSubmit(tx.Hash(), status, onResult) })
	}
	if err := p.storage.Submit(tx); err != nil {
		p.log.Debug("submit rejected", "hash", tx.Hash(), "err", err)
		return
	}
	p.events.Send(NewTxsEvent{Txs: []Tx{tx}})
}

func (p *Pool) deliverSubmit(hash common.Hash, status Status, onResult func(SubmitResult)) {
	p.metrics.IncSubmit(status.Error())
	if onResult != nil {
		onResult(p.resultFactory.CreateResult(hash, status))
	}
}

// SealTxs implements spec.md §4.4.1's batch_fetch, exposed under the
// façade's own name for sealer callers. avoidDuplicate is forwarded
// straight to storage: true for an ordinary sealing pass, which never
// reconsiders a tx that is already part of an in-flight proposal; false
// for a reconciliation pass that re-validates even sealed transactions,
// the only way a proposal that was never explicitly unsealed gets its
// stale entries discovered and tombstoned (spec.md §8 scenario 5's
// "remaining txs all become BlockLimitCheckFail on next seal").
func (p *Pool) SealTxs(limit int, avoidSet mapset.Set[common.Hash], avoidDuplicate bool) ([]common.Hash, []Tx) {
	hashes, items := p.storage.BatchFetch(limit, avoidSet, avoidDuplicate)
	p.metrics.AddSealed(len(hashes))
	p.metrics.SetSealedCount(p.storage.SealedCount())
	return hashes, toTxs(items)
}

// FillBlock looks up hashes in storage, falling back to the ledger for
// anything missing, per the fill_block row of spec.md §4.6's failure
// table. onDone's err is TransactionsMissing if the ledger fallback also
// came up short.
func (p *Pool) FillBlock(hashes []common.Hash, onDone func(txs []Tx, err error)) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if !p.verifyPool.Submit(func() { p.fillBlockSync(hashes, onDone) }) {
		return ErrPoolClosed
	}
	return nil
}

func (p *Pool) fillBlockSync(hashes []common.Hash, onDone func(txs []Tx, err error)) {
	if !p.running.Load() {
		onDone(nil, ErrLockFailed)
		return
	}
	present, missed := p.storage.Fetch(hashes)
	if len(missed) == 0 {
		onDone(toTxs(present), nil)
		return
	}
	p.ledger.AsyncGetBatchTxs(missed, false, func(err error, recovered []Tx) {
		if err != nil || len(recovered) != len(missed) {
			onDone(nil, TransactionsMissing)
			return
		}
		onDone(append(toTxs(present), recovered...), nil)
	})
}

// NotifyBlockResult implements notify_block_result: removes a committed
// block's transactions and advances both nonce checkers.
func (p *Pool) NotifyBlockResult(blockNumber uint64, results []storage.Result) {
	p.storage.BatchRemove(blockNumber, results)
	p.metrics.AddCommitted(len(results))
	p.metrics.SetPoolSize(p.storage.Size())
	p.metrics.SetUnsealedSize(p.storage.UnsealedSize())
}

// VerifyBlock implements async_verify_block (spec.md §4.5.4): it decodes
// block, computes the missed set against storage, and — if non-empty —
// delegates to the sync engine's peer-then-ledger recovery. onDone
// receives nil on success or TransactionsMissing/Malform on failure.
func (p *Pool) VerifyBlock(origin common.NodeID, blockBytes []byte, onDone func(err error)) error {
	if !p.running.Load() {
		return ErrPoolClosed
	}
	if !p.verifyPool.Submit(func() { p.verifyBlockSync(origin, blockBytes, onDone) }) {
		return ErrPoolClosed
	}
	return nil
}

func (p *Pool) verifyBlockSync(origin common.NodeID, blockBytes []byte, onDone func(err error)) {
	if !p.running.Load() {
		onDone(ErrLockFailed)
		return
	}
	requestID := uuid.NewString()

	block, err := p.blockFactory.CreateBlockFromBytes(blockBytes)
	if err != nil {
		p.log.Debug("verify_block decode failed", "request", requestID, "err", err)
		onDone(Malform)
		return
	}
	hashes := block.TxHashes()
	if len(hashes) == 0 {
		onDone(nil)
		return
	}

	var missed []common.Hash
	for _, h := range hashes {
		if !p.storage.Contains(h) {
			missed = append(missed, h)
		}
	}
	if len(missed) == 0 {
		onDone(nil)
		return
	}

	p.metrics.AddMissedTxs(len(missed))
	p.metrics.IncSyncRequest("verify_block")
	p.log.Debug("verify_block requesting missed txs", "request", requestID, "origin", origin, "missed", len(missed))

	p.engine.RequestMissedTxs(origin, missed, func(err error) {
		if err != nil {
			onDone(TransactionsMissing)
			return
		}
		onDone(nil)
	})
}

// NotifyTxsSyncMessage dispatches an inbound sync-protocol message to the
// engine, per notify_txs_sync_message.
func (p *Pool) NotifyTxsSyncMessage(from common.NodeID, requestID string, payload []byte) error {
	return p.engine.HandleMessage(from, requestID, payload)
}

// NotifyConnectedNodes implements notify_connected_nodes.
func (p *Pool) NotifyConnectedNodes(nodes []common.NodeID) { p.engine.SetConnectedNodes(nodes) }

// NotifyConsensusNodeList implements notify_consensus_node_list.
func (p *Pool) NotifyConsensusNodeList(nodes []common.NodeID) { p.engine.SetConsensusNodes(nodes) }

// NotifyObserverNodeList implements notify_observer_node_list.
func (p *Pool) NotifyObserverNodeList(nodes []common.NodeID) { p.engine.SetObserverNodes(nodes) }

// NotifyPeerDropped untracks a disconnected peer, a supplement spec.md
// itself never names but that any long-running deployment needs (see
// SPEC_FULL.md §4).
func (p *Pool) NotifyPeerDropped(id common.NodeID) { p.engine.DropPeer(id) }

// MarkTxs implements mark_txs in the richer (batch_id, batch_hash,
// sealed) form spec.md §9 recommends. Sealing a batch records it so a
// later InvalidateBatch can find exactly those hashes again.
func (p *Pool) MarkTxs(batchID uint64, batchHash common.Hash, hashes []common.Hash, sealed bool) {
	p.storage.BatchMark(hashes, sealed)
	p.metrics.SetSealedCount(p.storage.SealedCount())

	p.batchMu.Lock()
	defer p.batchMu.Unlock()
	if !sealed {
		return
	}
	p.batches[batchID] = sealedBatch{hash: batchHash, hashes: append([]common.Hash(nil), hashes...)}
}

// InvalidateBatch unseals a previously mark_txs-sealed batch, supplying
// the invalidation path spec.md §9 flags as missing from the mark_txs
// richer form.
func (p *Pool) InvalidateBatch(batchID uint64) error {
	p.batchMu.Lock()
	batch, ok := p.batches[batchID]
	if ok {
		delete(p.batches, batchID)
	}
	p.batchMu.Unlock()
	if !ok {
		return ErrUnknownBatch
	}
	p.storage.BatchMark(batch.hashes, false)
	p.metrics.SetSealedCount(p.storage.SealedCount())
	return nil
}

// ResetPool implements reset_pool: clears sealed across the whole pool
// (spec.md §4.4.1's mark_all) without evicting any transaction, and drops
// batch-invalidation bookkeeping for batches that no longer exist.
func (p *Pool) ResetPool() {
	p.storage.MarkAll(false)
	p.metrics.SetSealedCount(0)

	p.batchMu.Lock()
	p.batches = make(map[uint64]sealedBatch)
	p.batchMu.Unlock()
}

// GetPendingSize implements get_pending_size.
func (p *Pool) GetPendingSize() int { return p.storage.UnsealedSize() }

// Stats is a supplemented introspection call (see SPEC_FULL.md §4).
func (p *Pool) Stats() (pending, sealed int) {
	return p.storage.Size(), p.storage.SealedCount()
}

// Content is a supplemented introspection call returning a lightweight
// snapshot of every pooled transaction (see SPEC_FULL.md §4).
func (p *Pool) Content() []TxSummary {
	snap := p.storage.Snapshot()
	out := make([]TxSummary, 0, len(snap))
	for _, tx := range snap {
		full, ok := tx.(Tx)
		if !ok {
			continue
		}
		out = append(out, TxSummary{
			Hash:       full.Hash(),
			Nonce:      full.Nonce(),
			ImportTime: time.Unix(0, full.ImportTime()),
			Sealed:     full.Sealed(),
			Synced:     full.Synced(),
		})
	}
	return out
}

// SubscribeNewTxsEvent is a supplemented API (see SPEC_FULL.md §4),
// mirroring core/txpool's subscription model for admitted transactions.
func (p *Pool) SubscribeNewTxsEvent(ch chan<- NewTxsEvent) event.Subscription {
	return p.events.Subscribe(ch)
}

// toTxs re-asserts a slice of storage.Tx back to the full façade-level Tx
// interface; every element was produced by this pool's own TxFactory, so
// the assertion only fails for a hand-rolled test double.
func toTxs(items []storage.Tx) []Tx {
	out := make([]Tx, 0, len(items))
	for _, it := range items {
		if t, ok := it.(Tx); ok {
			out = append(out, t)
		}
	}
	return out
}
