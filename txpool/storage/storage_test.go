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

package storage_test

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/noncer"
	"github.com/bcos-go/txpool/txpool/storage"
)

type fakeTx struct {
	hash       common.Hash
	nonce      uint64
	blockLimit uint64

	importTime int64
	sealed     atomic.Bool
	synced     atomic.Bool
	known      *common.NodeSet

	cbOnce sync.Once
	cb     func(ok bool, err error)
}

func newFakeTx(hash byte, nonce uint64) *fakeTx {
	var h common.Hash
	h[common.HashLength-1] = hash
	return &fakeTx{hash: h, nonce: nonce, blockLimit: 1000, known: common.NewNodeSet()}
}

func (t *fakeTx) Hash() common.Hash      { return t.hash }
func (t *fakeTx) Nonce() uint64          { return t.nonce }
func (t *fakeTx) BlockLimit() uint64     { return t.blockLimit }
func (t *fakeTx) Encode() []byte         { return t.hash.Bytes() }
func (t *fakeTx) ImportTime() int64      { return atomic.LoadInt64(&t.importTime) }
func (t *fakeTx) SetImportTime(ts int64) { atomic.StoreInt64(&t.importTime, ts) }
func (t *fakeTx) Sealed() bool           { return t.sealed.Load() }
func (t *fakeTx) SetSealed(v bool)       { t.sealed.Store(v) }
func (t *fakeTx) Synced() bool           { return t.synced.Load() }
func (t *fakeTx) SetSynced(v bool)       { t.synced.Store(v) }
func (t *fakeTx) KnownNodes() *common.NodeSet { return t.known }
func (t *fakeTx) HasCallback() bool      { return t.cb != nil }
func (t *fakeTx) FireCallback(ok bool, err error) {
	if t.cb == nil {
		return
	}
	t.cbOnce.Do(func() { t.cb(ok, err) })
}

// fakeValidator lets a test force a specific DuplicateTx outcome per hash,
// and optionally a per-call delay to exercise SealBatchTimeout.
type fakeValidator struct {
	mu    sync.Mutex
	err   map[common.Hash]error
	delay time.Duration
}

func newFakeValidator() *fakeValidator { return &fakeValidator{err: make(map[common.Hash]error)} }

func (v *fakeValidator) setErr(hash common.Hash, err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.err[hash] = err
}

func (v *fakeValidator) setDelay(d time.Duration) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.delay = d
}

func (v *fakeValidator) DuplicateTx(tx storage.Tx) error {
	v.mu.Lock()
	delay := v.delay
	err := v.err[tx.Hash()]
	v.mu.Unlock()
	if delay > 0 {
		time.Sleep(delay)
	}
	return err
}

type fakeLedger struct {
	mu    sync.Mutex
	calls int
}

func (l *fakeLedger) AsyncStoreTransactions(raw [][]byte, hashes []common.Hash, cb func(err error)) {
	l.mu.Lock()
	l.calls++
	l.mu.Unlock()
	cb(nil)
}

func (l *fakeLedger) callCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.calls
}

type fakeSealer struct {
	last atomic.Int64
	seen atomic.Int64
}

func (s *fakeSealer) AsyncNoteUnsealedSize(size int, cb func(err error)) {
	s.last.Store(int64(size))
	s.seen.Add(1)
	cb(nil)
}

// fakeMetrics satisfies storage's local metricsRecorder interface, letting
// tests observe whether schedulePrecommit actually reports a duration
// rather than silently dropping it the way a nil/noop recorder would.
type fakeMetrics struct {
	calls atomic.Int64
}

func (m *fakeMetrics) ObservePrecommit(time.Duration) { m.calls.Add(1) }

func (m *fakeMetrics) callCount() int64 { return m.calls.Load() }

func newStorage(t *testing.T, poolLimit int) (*storage.Storage, *fakeValidator, *fakeLedger, *fakeSealer) {
	t.Helper()
	s, validator, ledger, sealer, _ := newStorageWithTimeoutAndMetrics(t, poolLimit, 0)
	return s, validator, ledger, sealer
}

func newStorageWithTimeout(t *testing.T, poolLimit int, sealBatchTimeout time.Duration) (*storage.Storage, *fakeValidator, *fakeLedger, *fakeSealer) {
	t.Helper()
	s, validator, ledger, sealer, _ := newStorageWithTimeoutAndMetrics(t, poolLimit, sealBatchTimeout)
	return s, validator, ledger, sealer
}

func newStorageWithTimeoutAndMetrics(t *testing.T, poolLimit int, sealBatchTimeout time.Duration) (*storage.Storage, *fakeValidator, *fakeLedger, *fakeSealer, *fakeMetrics) {
	t.Helper()
	validator := newFakeValidator()
	ledger := &fakeLedger{}
	sealer := &fakeSealer{}
	metrics := &fakeMetrics{}
	cfg := storage.Config{PoolLimit: poolLimit, NotifierWorkers: 1, MissedSetSize: 100, SealBatchTimeout: sealBatchTimeout}
	ledgerNonces := noncer.NewLedgerNoncer(1000)
	ledgerNonces.Init(0, nil)
	s := storage.New(cfg, validator, noncer.NewPoolNoncer(), ledgerNonces, ledger, sealer, metrics)
	t.Cleanup(s.Close)
	return s, validator, ledger, sealer, metrics
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func TestStorageInsertAndHasHash(t *testing.T) {
	s, _, ledger, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)

	require.NoError(t, s.Insert(tx))
	assert.True(t, s.HasHash(tx.Hash()))
	assert.Equal(t, 1, s.Size())
	waitFor(t, time.Second, func() bool { return ledger.callCount() == 1 })
}

func TestStorageInsertRejectsDuplicate(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	err := s.Insert(newFakeTx(1, 2))
	assert.ErrorIs(t, err, storage.ErrAlreadyKnown)
}

func TestStorageInsertRejectsWhenFull(t *testing.T) {
	s, _, _, _ := newStorage(t, 1)
	require.NoError(t, s.Insert(newFakeTx(1, 1)))

	err := s.Insert(newFakeTx(2, 2))
	assert.ErrorIs(t, err, storage.ErrPoolFull)
}

func TestStorageSubmitFiresCallbackOnSuccessAndFailure(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)

	okTx := newFakeTx(1, 1)
	var okResult, okErr atomic.Bool
	var done sync.WaitGroup
	done.Add(1)
	okTx.cb = func(ok bool, err error) {
		okResult.Store(ok)
		okErr.Store(err != nil)
		done.Done()
	}
	require.NoError(t, s.Submit(okTx))
	done.Wait()
	assert.True(t, okResult.Load())
	assert.False(t, okErr.Load())

	dup := newFakeTx(1, 99)
	done.Add(1)
	var dupOK atomic.Bool
	dup.cb = func(ok bool, err error) {
		dupOK.Store(ok)
		done.Done()
	}
	err := s.Submit(dup)
	require.Error(t, err)
	done.Wait()
	assert.False(t, dupOK.Load())
}

func TestStorageBatchFetchSealsAndSkipsAlreadySealed(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	for i := byte(1); i <= byte(3); i++ {
		require.NoError(t, s.Insert(newFakeTx(i, uint64(i))))
	}

	hashes, txs := s.BatchFetch(2, nil, true)
	assert.Len(t, hashes, 2)
	assert.Len(t, txs, 2)
	assert.Equal(t, 2, s.SealedCount())

	// A second fetch must skip the already-sealed two and pick up the third.
	hashes2, _ := s.BatchFetch(10, nil, true)
	assert.Len(t, hashes2, 1)
	assert.Equal(t, 3, s.SealedCount())
}

func TestStorageBatchFetchHonorsAvoidSet(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	avoid := mapset.NewThreadUnsafeSet[common.Hash](tx.Hash())
	hashes, _ := s.BatchFetch(10, avoid, true)
	assert.Empty(t, hashes)
}

func TestStorageBatchFetchDropsBlockLimitExpired(t *testing.T) {
	s, validator, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))
	validator.setErr(tx.Hash(), noncer.ErrBlockLimitCheckFail)

	hashes, _ := s.BatchFetch(10, nil, true)
	assert.Empty(t, hashes)
	waitFor(t, time.Second, func() bool { return !s.HasHash(tx.Hash()) })
}

// TestStorageBatchFetchStopsEarlyOnSealBatchTimeout bounds the re-check
// work BatchFetch does per call: with a validator slow enough that
// checking every entry would blow past SealBatchTimeout, the scan must
// stop before reaching the last transactions rather than running
// unbounded.
func TestStorageBatchFetchStopsEarlyOnSealBatchTimeout(t *testing.T) {
	s, validator, _, _ := newStorageWithTimeout(t, 10, 20*time.Millisecond)
	validator.setDelay(15 * time.Millisecond)
	for i := byte(1); i <= byte(5); i++ {
		require.NoError(t, s.Insert(newFakeTx(i, uint64(i))))
	}

	hashes, _ := s.BatchFetch(5, nil, true)
	assert.Less(t, len(hashes), 5, "the timeout must cut the scan short before every entry is re-checked")
}

// TestStorageInsertReportsPrecommitDuration covers schedulePrecommit's
// metrics wiring: every Insert schedules an async persist to the ledger,
// and each completed attempt must be observed through ObservePrecommit.
func TestStorageInsertReportsPrecommitDuration(t *testing.T) {
	s, _, ledger, _, metrics := newStorageWithTimeoutAndMetrics(t, 10, 0)

	require.NoError(t, s.Insert(newFakeTx(1, 1)))
	waitFor(t, time.Second, func() bool { return ledger.callCount() > 0 })
	waitFor(t, time.Second, func() bool { return metrics.callCount() > 0 })
	assert.EqualValues(t, 1, metrics.callCount())
}

func TestStorageFetchReturnsPresentAndMissed(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	present, missed := s.Fetch([]common.Hash{tx.Hash(), newFakeTx(2, 2).Hash()})
	assert.Len(t, present, 1)
	assert.Len(t, missed, 1)
}

func TestStorageFetchNewMarksSynced(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	out := s.FetchNew(10)
	require.Len(t, out, 1)
	assert.True(t, out[0].Synced())

	// A second call must not return the same, now-synced tx again.
	out2 := s.FetchNew(10)
	assert.Empty(t, out2)
}

func TestStorageBatchRemoveUpdatesSealedCount(t *testing.T) {
	s, _, _, sealer := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))
	s.BatchFetch(10, nil, true)
	require.Equal(t, 1, s.SealedCount())

	s.BatchRemove(100, []storage.Result{{Hash: tx.Hash(), Nonce: tx.Nonce(), OK: true}})
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 0, s.SealedCount())
	waitFor(t, time.Second, func() bool { return sealer.seen.Load() > 0 })
}

func TestStorageBatchMarkTogglesSealed(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	s.BatchMark([]common.Hash{tx.Hash()}, true)
	assert.Equal(t, 1, s.SealedCount())

	s.BatchMark([]common.Hash{tx.Hash()}, false)
	assert.Equal(t, 0, s.SealedCount())
}

func TestStorageMarkAllResetsSealedWithoutEvicting(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	for i := byte(1); i <= byte(3); i++ {
		require.NoError(t, s.Insert(newFakeTx(i, uint64(i))))
	}
	s.BatchFetch(10, nil, true)
	require.Equal(t, 3, s.SealedCount())

	s.MarkAll(false)
	assert.Equal(t, 0, s.SealedCount())
	assert.Equal(t, 3, s.Size())
	assert.Equal(t, 3, s.UnsealedSize())
}

func TestStorageFilterUnknownTracksMissedAndKnownNodes(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	tx := newFakeTx(1, 1)
	require.NoError(t, s.Insert(tx))

	missingHash := newFakeTx(2, 2).Hash()
	unknown := s.FilterUnknown([]common.Hash{tx.Hash(), missingHash}, common.NodeID("peer-a"))
	assert.Equal(t, []common.Hash{missingHash}, unknown)
	assert.True(t, tx.KnownNodes().Contains(common.NodeID("peer-a")))

	// A repeat request for the same missing hash must not be reported
	// again while it's still tracked as missed.
	unknown2 := s.FilterUnknown([]common.Hash{missingHash}, common.NodeID("peer-b"))
	assert.Empty(t, unknown2)
}

func TestStorageClearEmptiesPool(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	require.NoError(t, s.Insert(newFakeTx(1, 1)))

	s.Clear()
	assert.Equal(t, 0, s.Size())
	assert.Equal(t, 0, s.SealedCount())
}

func TestStorageSnapshotReturnsResidentTxs(t *testing.T) {
	s, _, _, _ := newStorage(t, 10)
	require.NoError(t, s.Insert(newFakeTx(1, 1)))
	require.NoError(t, s.Insert(newFakeTx(2, 2)))

	snap := s.Snapshot()
	assert.Len(t, snap, 2)
}
