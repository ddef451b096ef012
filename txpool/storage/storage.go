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
	"errors"
	"sync"
	"time"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/event"
	"github.com/bcos-go/txpool/internal/workerpool"
	"github.com/bcos-go/txpool/log"
	"github.com/bcos-go/txpool/txpool/noncer"
)

// ErrPoolFull is returned by Insert when size has reached the configured
// PoolLimit.
var ErrPoolFull = errors.New("storage: pool is full")

// ErrAlreadyKnown is returned by Insert when the hash is already indexed.
var ErrAlreadyKnown = errors.New("storage: already known")

// ErrClosed is passed to a tx's FireCallback when Close has already
// drained the notifier pool, so the callback can no longer be delivered
// on its own goroutine the way Submit normally delivers it. The caller
// still observes an outcome rather than a callback that never fires.
var ErrClosed = errors.New("storage: closed")

// metricsRecorder is the one metric schedulePrecommit reports, declared
// narrowly here the way the façade declares its own local
// metricsRecorder, so this package doesn't need to import
// txpool/metrics just for an interface type. *metrics.Metrics and
// metrics.Null both already satisfy it.
type metricsRecorder interface {
	ObservePrecommit(d time.Duration)
}

// noopMetrics is the zero-value metricsRecorder used when New is called
// without one, so schedulePrecommit never needs a nil check.
type noopMetrics struct{}

func (noopMetrics) ObservePrecommit(time.Duration) {}

// Config bounds storage's own behavior; the façade's txpool.Config carries
// these values through.
type Config struct {
	PoolLimit       int
	NotifierWorkers int
	MissedSetSize   int
	// SealBatchTimeout bounds the total wall-clock time BatchFetch spends
	// running the validator's per-entry DuplicateTx re-check while
	// scanning for sealable transactions. Zero disables the bound.
	SealBatchTimeout time.Duration
}

// Storage is the in-memory transaction pool: an ordered queue, a hash
// index, the sealed/synced/invalid state machine, pre-commit durability
// and sealer notification (spec.md §4.4).
type Storage struct {
	cfg Config

	mu    sync.RWMutex // guards q and sealedCount
	q     *queue
	sealedCount int

	invalid    mapset.Set[common.Hash] // tombstone set, drained asynchronously
	invalidNon *noncer.PoolNoncer      // nonces paired with invalid hashes, for pool-set cleanup
	missed     *missedSet

	poolNonces   *noncer.PoolNoncer
	ledgerNonces *noncer.LedgerNoncer
	validator    Validator

	ledger Ledger
	sealer Sealer

	precommit *workerpool.Pool
	notifier  *workerpool.Pool

	metrics metricsRecorder

	ready event.Feed // fires on every successful insert; consumed by the sync reactor
	log   log.Logger
}

// New creates a Storage bound to the given nonce checkers and injected
// Ledger/Sealer capabilities. validator is used only for the cheaper
// duplicate/block-limit re-check batch_fetch performs during selection.
// metrics may be nil, in which case precommit timings go unrecorded.
func New(cfg Config, validator Validator, poolNonces *noncer.PoolNoncer, ledgerNonces *noncer.LedgerNoncer, ledger Ledger, sealer Sealer, metrics metricsRecorder) *Storage {
	if cfg.PoolLimit <= 0 {
		cfg.PoolLimit = 15000
	}
	if cfg.NotifierWorkers <= 0 {
		cfg.NotifierWorkers = 1
	}
	if cfg.MissedSetSize <= 0 {
		cfg.MissedSetSize = cfg.PoolLimit
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	return &Storage{
		cfg:          cfg,
		q:            newQueue(),
		invalid:      mapset.NewThreadUnsafeSet[common.Hash](),
		invalidNon:   noncer.NewPoolNoncer(),
		missed:       newMissedSet(cfg.MissedSetSize),
		poolNonces:   poolNonces,
		ledgerNonces: ledgerNonces,
		validator:    validator,
		metrics:      metrics,
		ledger:       ledger,
		sealer:       sealer,
		precommit:    workerpool.New(1),
		notifier:     workerpool.New(cfg.NotifierWorkers),
		log:          log.New("module", "txpool.storage"),
	}
}

// SubscribeReady registers ch to receive a signal whenever a new
// transaction is inserted, mirroring spec.md §4.5.1's on_ready wakeup.
func (s *Storage) SubscribeReady(ch chan struct{}) event.Subscription {
	return s.ready.Subscribe(ch)
}

// HasHash reports whether hash is currently indexed, satisfying the
// validator's hashIndex interface (spec.md §4.1 step 4).
func (s *Storage) HasHash(hash common.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.has(hash)
}

// Insert atomically admits tx, per spec.md §4.4.1.
func (s *Storage) Insert(tx Tx) error {
	s.mu.Lock()
	if s.q.len() >= s.cfg.PoolLimit {
		s.mu.Unlock()
		return ErrPoolFull
	}
	if s.q.has(tx.Hash()) {
		s.mu.Unlock()
		return ErrAlreadyKnown
	}
	tx.SetImportTime(time.Now().UnixNano())
	s.q.push(tx)
	s.mu.Unlock()

	s.missed.remove(tx.Hash())
	s.schedulePrecommit(tx)
	s.ready.Send(struct{}{})
	s.notifySealerUnsealedSize()
	return nil
}

// Submit is the full admission path used by RPC/P2P-originated
// submissions: it is given an already-decoded, already-validated tx (the
// façade runs TxFactory+Validator before calling Submit). tx's own
// FireCallback, if it carries one, is invoked on the notifier pool so the
// caller's code never runs under the storage lock (spec.md §4.4.3): once
// with ok=false and the failure reason on rejection, or ok=true on a
// successful insert.
func (s *Storage) Submit(tx Tx) error {
	if err := s.Insert(tx); err != nil {
		if tx.HasCallback() {
			if !s.notifier.Submit(func() { tx.FireCallback(false, err) }) {
				tx.FireCallback(false, ErrClosed)
			}
		}
		return err
	}
	if tx.HasCallback() {
		if !s.notifier.Submit(func() { tx.FireCallback(true, nil) }) {
			tx.FireCallback(false, ErrClosed)
		}
	}
	return nil
}

// schedulePrecommit fires the fire-and-forget async persist to the ledger
// described in spec.md §4.4.2. On failure it retries by re-scheduling
// itself; the spec's own design notes call this a known avalanche risk
// this implementation inherits rather than silently "fixes". Each attempt,
// successful or not, is timed and reported through ObservePrecommit so the
// retry storm this describes shows up as a latency metric rather than only
// a log line.
func (s *Storage) schedulePrecommit(tx Tx) {
	s.precommit.Submit(func() {
		start := time.Now()
		s.ledger.AsyncStoreTransactions([][]byte{tx.Encode()}, []common.Hash{tx.Hash()}, func(err error) {
			s.metrics.ObservePrecommit(time.Since(start))
			if err != nil {
				s.log.Warn("pre-commit failed, retrying", "hash", tx.Hash(), "err", err)
				s.schedulePrecommit(tx)
			}
		})
	})
}

// notifySealerUnsealedSize implements spec.md §4.4.4's at-least-once
// sealer notification, retrying on any non-nil error.
func (s *Storage) notifySealerUnsealedSize() {
	size := s.UnsealedSize()
	s.notifier.Submit(func() {
		s.sealer.AsyncNoteUnsealedSize(size, func(err error) {
			if err != nil {
				s.log.Warn("sealer notify failed, retrying", "size", size, "err", err)
				s.notifySealerUnsealedSize()
			}
		})
	})
}

// BatchFetch selects up to limit transactions for sealing, per spec.md
// §4.4.1. avoidSet is consulted via its Contains method.
func (s *Storage) BatchFetch(limit int, avoidSet mapset.Set[common.Hash], avoidDuplicate bool) ([]common.Hash, []Tx) {
	var (
		hashes  []common.Hash
		txs     []Tx
		invalid []common.Hash
	)

	var deadline time.Time
	if s.cfg.SealBatchTimeout > 0 {
		deadline = time.Now().Add(s.cfg.SealBatchTimeout)
	}

	s.mu.RLock()
	s.q.ascend(func(tx Tx) bool {
		if len(hashes) >= limit {
			return false
		}
		if !deadline.IsZero() && time.Now().After(deadline) {
			s.log.Warn("batch fetch re-check deadline exceeded, stopping scan early", "timeout", s.cfg.SealBatchTimeout)
			return false
		}
		hash := tx.Hash()
		if avoidDuplicate && tx.Sealed() {
			return true
		}
		if s.invalid.Contains(hash) {
			return true
		}
		if avoidSet != nil && avoidSet.Contains(hash) {
			return true
		}
		switch err := s.validator.DuplicateTx(tx); {
		case errors.Is(err, noncer.ErrNonceCheckFail):
			return true
		case errors.Is(err, noncer.ErrBlockLimitCheckFail):
			invalid = append(invalid, hash)
			return true
		}
		tx.SetSealed(true)
		hashes = append(hashes, hash)
		txs = append(txs, tx)
		return true
	})
	s.mu.RUnlock()

	if len(hashes) > 0 {
		s.mu.Lock()
		s.sealedCount += len(hashes)
		s.mu.Unlock()
	}
	if len(invalid) > 0 {
		s.mu.Lock()
		for _, h := range invalid {
			s.invalid.Add(h)
			if tx, ok := s.q.get(h); ok {
				s.invalidNon.Insert(tx.Nonce())
			}
		}
		s.mu.Unlock()
		s.scheduleRemoveInvalid()
	}
	s.notifySealerUnsealedSize()
	return hashes, txs
}

// scheduleRemoveInvalid asynchronously drains the invalid tombstone set,
// per spec.md §4.4.1's "schedule asynchronous remove_invalid pass".
func (s *Storage) scheduleRemoveInvalid() {
	s.precommit.Submit(func() {
		s.mu.Lock()
		hashes := s.invalid.ToSlice()
		for _, h := range hashes {
			s.q.remove(h)
			s.invalid.Remove(h)
		}
		s.mu.Unlock()
	})
}

// Fetch looks up request_hashes one by one under a read lock, preserving
// the requested order, per spec.md §4.4.1.
func (s *Storage) Fetch(hashes []common.Hash) (present []Tx, missed []common.Hash) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, h := range hashes {
		if tx, ok := s.q.get(h); ok {
			present = append(present, tx)
		} else {
			missed = append(missed, h)
		}
	}
	return present, missed
}

// Contains reports whether the given hash is present, used by
// verify_block's missed-set computation (spec.md §4.5.4).
func (s *Storage) Contains(hash common.Hash) bool {
	return s.HasHash(hash)
}

// FetchNew scans the queue in import-time order and returns up to limit
// transactions whose Synced flag is false, marking each Synced=true, per
// spec.md §4.4.1.
func (s *Storage) FetchNew(limit int) []Tx {
	var out []Tx
	s.mu.RLock()
	s.q.ascend(func(tx Tx) bool {
		if len(out) >= limit {
			return false
		}
		if !tx.Synced() {
			out = append(out, tx)
		}
		return true
	})
	s.mu.RUnlock()
	for _, tx := range out {
		tx.SetSynced(true)
	}
	return out
}

// BatchRemove removes the hashes in results (a committed block's outcome),
// then advances the ledger nonce checker's window and untracks the pool
// nonce set, per spec.md §4.4.1.
func (s *Storage) BatchRemove(blockNumber uint64, results []Result) {
	var nonces []uint64

	s.mu.Lock()
	for _, r := range results {
		tx := s.q.remove(r.Hash)
		if tx != nil {
			nonces = append(nonces, tx.Nonce())
			if tx.Sealed() {
				s.sealedCount--
				if s.sealedCount < 0 {
					s.sealedCount = 0
				}
			}
		} else {
			nonces = append(nonces, r.Nonce)
		}
		s.invalid.Remove(r.Hash)
	}
	s.mu.Unlock()

	s.ledgerNonces.BatchInsert(blockNumber, nonces)
	s.poolNonces.BatchRemove(nonces)
	s.invalidNon.BatchRemove(nonces)
	s.notifySealerUnsealedSize()
}

// BatchMark updates Sealed on every present hash, adjusting sealedCount by
// the number of actual transitions only, per spec.md §4.4.1.
func (s *Storage) BatchMark(hashes []common.Hash, sealed bool) {
	delta := 0
	s.mu.Lock()
	for _, h := range hashes {
		tx, ok := s.q.get(h)
		if !ok || tx.Sealed() == sealed {
			continue
		}
		tx.SetSealed(sealed)
		if sealed {
			delta++
		} else {
			delta--
		}
	}
	s.sealedCount += delta
	if s.sealedCount < 0 {
		s.sealedCount = 0
	}
	s.mu.Unlock()
	s.notifySealerUnsealedSize()
}

// MarkAll resets Sealed across the whole pool, used on pool reset.
func (s *Storage) MarkAll(flag bool) {
	s.mu.Lock()
	s.q.ascend(func(tx Tx) bool {
		tx.SetSealed(flag)
		return true
	})
	if flag {
		s.sealedCount = s.q.len()
	} else {
		s.sealedCount = 0
	}
	s.mu.Unlock()
	s.notifySealerUnsealedSize()
}

// FilterUnknown implements spec.md §4.4.1: for each hash, if present,
// append peer to its known_nodes; otherwise, if not already tracked as
// missed, add it to both the result and the missed set.
func (s *Storage) FilterUnknown(hashes []common.Hash, peer common.NodeID) []common.Hash {
	var unknown []common.Hash
	s.mu.RLock()
	for _, h := range hashes {
		if tx, ok := s.q.get(h); ok {
			tx.KnownNodes().Add(peer)
			continue
		}
		if s.missed.add(h) {
			unknown = append(unknown, h)
		}
	}
	s.mu.RUnlock()
	return unknown
}

// Size returns the number of resident transactions.
func (s *Storage) Size() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.q.len()
}

// UnsealedSize returns size - sealed_count, clamped to 0.
func (s *Storage) UnsealedSize() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u := s.q.len() - s.sealedCount
	if u < 0 {
		return 0
	}
	return u
}

// SealedCount returns the current sealed_count, for introspection.
func (s *Storage) SealedCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.sealedCount
}

// Clear empties the pool, used by reset_pool.
func (s *Storage) Clear() {
	s.mu.Lock()
	s.q = newQueue()
	s.sealedCount = 0
	s.invalid.Clear()
	s.mu.Unlock()
}

// Snapshot returns a lightweight read-only view of every resident
// transaction, for the façade's Content() introspection call.
func (s *Storage) Snapshot() []Tx {
	var out []Tx
	s.mu.RLock()
	s.q.ascend(func(tx Tx) bool {
		out = append(out, tx)
		return true
	})
	s.mu.RUnlock()
	return out
}

// Close drains the notifier and pre-commit pools, per spec.md §5's stop()
// sequencing ("stops the storage (final drain of notifier)").
func (s *Storage) Close() {
	s.notifier.Close()
	s.precommit.Close()
}

// missedLen reports the number of hashes currently tracked as missed, for
// tests and metrics.
func (s *Storage) missedLen() int {
	return s.missed.len()
}
