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

package txpool_test

import (
	"crypto/ecdsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/crypto"
	"github.com/bcos-go/txpool/txpool"
	"github.com/bcos-go/txpool/txpool/mock"
	"github.com/bcos-go/txpool/txpool/storage"
)

const (
	testChainID = uint64(1)
	testGroupID = uint64(1)
)

// harness bundles a single node's Pool together with its injected fakes,
// so a test can drive submissions and inspect the ledger/sealer side
// effects without repeating the wiring.
type harness struct {
	pool   *txpool.Pool
	ledger *mock.Ledger
	sealer *mock.Sealer
	front  *mock.FrontService
	net    *mock.Network
}

// newHarness wires a Pool on its own Network with a single node, a
// ledger head of 100 and the given block limit. It is in the consensus
// group by default; pass inGroup=false for the rejection scenario.
func newHarness(t *testing.T, blockLimit uint64, inGroup bool) *harness {
	t.Helper()

	net := mock.NewNetwork()
	front := mock.NewFrontService(net, common.NodeID("node-a"))
	ledger := mock.NewLedger()
	ledger.SetBlockNumber(100)
	sealer := mock.NewSealer()

	cfg := txpool.DefaultConfig()
	cfg.ChainID = testChainID
	cfg.GroupID = testGroupID
	cfg.BlockLimit = blockLimit
	cfg.PeerRequestTimeout = 200 * time.Millisecond
	cfg.SyncInterval = 20 * time.Millisecond

	pool, err := txpool.New(cfg, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledger, front, sealer)
	require.NoError(t, err)

	front.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		pool.NotifyTxsSyncMessage(from, requestID, payload)
	})

	if inGroup {
		ledger.SetNodeList(txpool.ConsensusSealer, []common.NodeID{front.LocalNodeID()})
	}
	require.NoError(t, pool.Init())
	pool.Start()
	t.Cleanup(pool.Stop)

	return &harness{pool: pool, ledger: ledger, sealer: sealer, front: front, net: net}
}

func genKey(t *testing.T) *ecdsa.PrivateKey {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	return key
}

func signedTx(t *testing.T, key *ecdsa.PrivateKey, nonce, chainID, groupID, blockLimit uint64) *mock.Tx {
	t.Helper()
	tx, err := mock.NewSignedTx(key, nonce, chainID, groupID, blockLimit, nil)
	require.NoError(t, err)
	return tx
}

// submitAndWait submits raw through the façade and blocks for the
// completion callback, with a generous timeout since the verify worker
// pool runs the actual work on its own goroutine.
func submitAndWait(t *testing.T, p *txpool.Pool, raw []byte) txpool.SubmitResult {
	t.Helper()
	done := make(chan txpool.SubmitResult, 1)
	require.NoError(t, p.Submit(raw, func(r txpool.SubmitResult) { done <- r }))
	select {
	case r := <-done:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("submit did not complete in time")
		return nil
	}
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

// 1. Out-of-group rejection: the local node was never added to the
// consensus node list, so submit must short-circuit before the
// validator ever runs.
func TestPoolSubmitRejectsWhenNotInGroup(t *testing.T) {
	h := newHarness(t, 1000, false)
	key := genKey(t)
	tx := signedTx(t, key, 1, testChainID, testGroupID, 105)

	result := submitAndWait(t, h.pool, tx.Encode())
	require.NotNil(t, result)
	assert.Equal(t, txpool.RequestNotBelongToTheGroup, result.Status())
}

// Group membership is the union of the consensus sealer and observer
// lists, not consensus alone: a node that is only a consensus observer
// must still be admitted, not rejected with RequestNotBelongToTheGroup.
func TestPoolSubmitAdmitsObserverOnlyNode(t *testing.T) {
	net := mock.NewNetwork()
	front := mock.NewFrontService(net, common.NodeID("node-a"))
	ledger := mock.NewLedger()
	ledger.SetBlockNumber(100)
	ledger.SetNodeList(txpool.ConsensusObserver, []common.NodeID{front.LocalNodeID()})

	cfg := txpool.DefaultConfig()
	cfg.ChainID = testChainID
	cfg.GroupID = testGroupID
	cfg.BlockLimit = 1000
	cfg.PeerRequestTimeout = 200 * time.Millisecond
	cfg.SyncInterval = 20 * time.Millisecond

	pool, err := txpool.New(cfg, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledger, front, mock.NewSealer())
	require.NoError(t, err)
	front.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		pool.NotifyTxsSyncMessage(from, requestID, payload)
	})
	require.NoError(t, pool.Init())
	pool.Start()
	t.Cleanup(pool.Stop)

	key := genKey(t)
	tx := signedTx(t, key, 1, testChainID, testGroupID, 105)
	result := submitAndWait(t, pool, tx.Encode())
	require.NotNil(t, result)
	assert.Equal(t, txpool.None, result.Status())
}

// 2. Admission success: a well-formed, correctly-signed, in-window
// transaction from a node that is in the consensus group is admitted.
func TestPoolSubmitAdmitsValidTx(t *testing.T) {
	h := newHarness(t, 1000, true)
	key := genKey(t)
	tx := signedTx(t, key, 1, testChainID, testGroupID, 105)

	result := submitAndWait(t, h.pool, tx.Encode())
	require.NotNil(t, result)
	assert.Equal(t, txpool.None, result.Status())
	assert.True(t, result.Status().OK())

	waitFor(t, time.Second, func() bool { return h.pool.GetPendingSize() == 1 })
}

// 3. Block-limit reject: the ledger head (100) is already at or past the
// submitted block_limit.
func TestPoolSubmitRejectsStaleBlockLimit(t *testing.T) {
	h := newHarness(t, 1000, true)
	key := genKey(t)
	tx := signedTx(t, key, 1, testChainID, testGroupID, 100)

	result := submitAndWait(t, h.pool, tx.Encode())
	require.NotNil(t, result)
	assert.Equal(t, txpool.BlockLimitCheckFail, result.Status())
}

// Supplemental nonce-reject coverage: a second submission reusing a
// nonce that is still in-flight (not yet committed) is rejected by the
// pool-level nonce checker, distinct from spec.md §8 scenario 4's
// ledger-window rejection exercised by
// TestPoolSubmitRejectsNonceAtWindowBoundary below.
func TestPoolSubmitRejectsInFlightNonceReplay(t *testing.T) {
	h := newHarness(t, 1000, true)
	key := genKey(t)

	first := signedTx(t, key, 7, testChainID, testGroupID, 105)
	result := submitAndWait(t, h.pool, first.Encode())
	require.Equal(t, txpool.None, result.Status())

	replay := signedTx(t, key, 7, testChainID, testGroupID, 106)
	result = submitAndWait(t, h.pool, replay.Encode())
	assert.Equal(t, txpool.NonceCheckFail, result.Status())
}

// 4. Nonce reject, spec.md §8 scenario 4: a nonce equal to a nonce of
// block latest-block_limit+1 (the oldest block still inside the
// committed-nonce window) is rejected at admission, even though it was
// never itself submitted through this pool. A nonce committed one block
// further back (latest-block_limit) has already fallen outside the
// window and is accepted. This exercises both Pool.Init's seeding range
// and LedgerNoncer's window boundary end to end.
func TestPoolSubmitRejectsNonceAtWindowBoundary(t *testing.T) {
	net := mock.NewNetwork()
	front := mock.NewFrontService(net, common.NodeID("node-a"))
	ledger := mock.NewLedger()
	ledger.SetBlockNumber(100)
	ledger.SetNodeList(txpool.ConsensusSealer, []common.NodeID{front.LocalNodeID()})
	ledger.SetNonces(txpool.NonceMap{
		91: {42}, // latest - block_limit + 1: the oldest block still in window.
		90: {43}, // latest - block_limit: one block outside the window.
	})

	cfg := txpool.DefaultConfig()
	cfg.ChainID = testChainID
	cfg.GroupID = testGroupID
	cfg.BlockLimit = 10
	cfg.PeerRequestTimeout = 200 * time.Millisecond
	cfg.SyncInterval = 20 * time.Millisecond

	pool, err := txpool.New(cfg, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledger, front, mock.NewSealer())
	require.NoError(t, err)
	front.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		pool.NotifyTxsSyncMessage(from, requestID, payload)
	})
	require.NoError(t, pool.Init())
	pool.Start()
	t.Cleanup(pool.Stop)

	key := genKey(t)

	inWindow := signedTx(t, key, 42, testChainID, testGroupID, 105)
	result := submitAndWait(t, pool, inWindow.Encode())
	assert.Equal(t, txpool.NonceCheckFail, result.Status())

	outsideWindow := signedTx(t, key, 43, testChainID, testGroupID, 105)
	result = submitAndWait(t, pool, outsideWindow.Encode())
	assert.Equal(t, txpool.None, result.Status())
}

// 5. Seal then commit, spec.md §8 scenario 5: submit 20 txs, seal them
// in two batches, unseal the first batch and commit it, then force a
// reconciliation seal that discovers the second batch has fallen outside
// the nonce window and drains it to zero.
func TestPoolSealThenCommit(t *testing.T) {
	h := newHarness(t, 1000, true)
	key := genKey(t)

	hashes := make([]common.Hash, 0, 20)
	nonces := make([]uint64, 0, 20)
	for i := uint64(1); i <= 20; i++ {
		tx := signedTx(t, key, i, testChainID, testGroupID, 105)
		result := submitAndWait(t, h.pool, tx.Encode())
		require.Equal(t, txpool.None, result.Status(), "nonce %d", i)
		hashes = append(hashes, tx.Hash())
		nonces = append(nonces, i)
	}
	waitFor(t, time.Second, func() bool { return h.pool.GetPendingSize() == 20 })

	firstBatch, firstTxs := h.pool.SealTxs(10, nil, true)
	require.Len(t, firstBatch, 10)
	require.Len(t, firstTxs, 10)
	assertDistinct(t, firstBatch)
	assert.Equal(t, 10, h.pool.GetPendingSize())

	secondBatch, secondTxs := h.pool.SealTxs(1000, nil, true)
	require.Len(t, secondBatch, 10)
	require.Len(t, secondTxs, 10)
	assertDistinct(t, secondBatch)
	assert.Equal(t, 0, h.pool.GetPendingSize())

	h.pool.MarkTxs(1, common.Hash{}, firstBatch, false)
	assert.Equal(t, 10, h.pool.GetPendingSize())

	firstResults := make([]storage.Result, len(firstBatch))
	for i, hash := range firstBatch {
		idx := indexOfHash(hashes, hash)
		require.GreaterOrEqual(t, idx, 0)
		firstResults[i] = storage.Result{Hash: hash, Nonce: nonces[idx], OK: true}
	}

	h.pool.NotifyBlockResult(100+1000, firstResults)
	pending, _ := h.pool.Stats()
	assert.Equal(t, 10, pending)

	// The second batch is still sealed and was never explicitly unsealed;
	// a reconciliation pass (avoid_duplicate=false) re-checks it anyway
	// against the now-advanced window.
	thirdBatch, thirdTxs := h.pool.SealTxs(1000, nil, false)
	assert.Empty(t, thirdBatch)
	assert.Empty(t, thirdTxs)

	waitFor(t, 2*time.Second, func() bool {
		pending, _ := h.pool.Stats()
		return pending == 0
	})
}

func indexOfHash(hashes []common.Hash, h common.Hash) int {
	for i, hh := range hashes {
		if hh == h {
			return i
		}
	}
	return -1
}

func assertDistinct(t *testing.T, hashes []common.Hash) {
	t.Helper()
	seen := make(map[common.Hash]bool, len(hashes))
	for _, h := range hashes {
		assert.False(t, seen[h], "duplicate hash %s in selection", h.Hex())
		seen[h] = true
	}
}

// 6. Verify block with missing txs recovered from peer: node A submits
// 10 transactions; node B is handed a block referencing those hashes and
// has none of them, so verify_block must fetch the missing set from A
// over the mock transport and recover fully.
func TestPoolVerifyBlockRecoversMissingTxsFromPeer(t *testing.T) {
	net := mock.NewNetwork()

	frontA := mock.NewFrontService(net, common.NodeID("node-a"))
	ledgerA := mock.NewLedger()
	ledgerA.SetBlockNumber(100)
	ledgerA.SetNodeList(txpool.ConsensusSealer, []common.NodeID{frontA.LocalNodeID(), common.NodeID("node-b")})

	frontB := mock.NewFrontService(net, common.NodeID("node-b"))
	ledgerB := mock.NewLedger()
	ledgerB.SetBlockNumber(100)
	ledgerB.SetNodeList(txpool.ConsensusSealer, []common.NodeID{frontA.LocalNodeID(), common.NodeID("node-b")})

	cfg := txpool.DefaultConfig()
	cfg.ChainID = testChainID
	cfg.GroupID = testGroupID
	cfg.BlockLimit = 1000
	cfg.PeerRequestTimeout = 500 * time.Millisecond
	cfg.SyncInterval = 20 * time.Millisecond

	poolA, err := txpool.New(cfg, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledgerA, frontA, mock.NewSealer())
	require.NoError(t, err)
	frontA.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		poolA.NotifyTxsSyncMessage(from, requestID, payload)
	})
	require.NoError(t, poolA.Init())
	poolA.Start()
	t.Cleanup(poolA.Stop)

	poolB, err := txpool.New(cfg, crypto.DefaultSuite, mock.BlockFactory{}, mock.TxFactory{}, mock.ResultFactory{}, ledgerB, frontB, mock.NewSealer())
	require.NoError(t, err)
	frontB.SetInbound(func(from common.NodeID, requestID string, payload []byte) {
		poolB.NotifyTxsSyncMessage(from, requestID, payload)
	})
	require.NoError(t, poolB.Init())
	poolB.Start()
	t.Cleanup(poolB.Stop)

	key := genKey(t)
	txs := make([]*mock.Tx, 0, 10)
	for i := uint64(1); i <= 10; i++ {
		tx := signedTx(t, key, i, testChainID, testGroupID, 105)
		result := submitAndWait(t, poolA, tx.Encode())
		require.Equal(t, txpool.None, result.Status())
		txs = append(txs, tx)
	}

	fullTxs := make([]txpool.Tx, len(txs))
	for i, tx := range txs {
		fullTxs[i] = tx
	}
	block := mock.NewBlock(101, fullTxs)

	done := make(chan error, 1)
	require.NoError(t, poolB.VerifyBlock(frontA.LocalNodeID(), block.Encode(), func(err error) { done <- err }))

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("verify_block did not complete in time")
	}

	waitFor(t, time.Second, func() bool { return poolB.GetPendingSize() == 10 })
}
