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

package txpool

import (
	"crypto/ecdsa"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/crypto"
	"github.com/bcos-go/txpool/txpool/noncer"
)

// fakeIndex is a hashIndex a test can pre-populate without a real Storage.
type fakeIndex struct {
	known map[common.Hash]bool
}

func newFakeIndex() *fakeIndex { return &fakeIndex{known: make(map[common.Hash]bool)} }

func (f *fakeIndex) HasHash(hash common.Hash) bool { return f.known[hash] }

// fakeValidatorTx is a minimal Tx a validator test can sign and mutate
// without going through a TxFactory.
type fakeValidatorTx struct {
	hash       common.Hash
	nonce      uint64
	chainID    uint64
	groupID    uint64
	blockLimit uint64
	sig        []byte
	pub        []byte
	known      *common.NodeSet
}

func signTx(t *testing.T, key *ecdsa.PrivateKey, nonce, chainID, groupID, blockLimit uint64) *fakeValidatorTx {
	t.Helper()
	pub := crypto.FromECDSAPub(&key.PublicKey)
	hash := crypto.DefaultSuite.Hash([]byte{byte(nonce), byte(chainID), byte(groupID), byte(blockLimit)})
	sig, err := crypto.Sign(hash.Bytes(), key)
	require.NoError(t, err)
	return &fakeValidatorTx{
		hash: hash, nonce: nonce, chainID: chainID, groupID: groupID, blockLimit: blockLimit,
		sig: sig, pub: pub, known: common.NewNodeSet(),
	}
}

func (t *fakeValidatorTx) Hash() common.Hash          { return t.hash }
func (t *fakeValidatorTx) Nonce() uint64              { return t.nonce }
func (t *fakeValidatorTx) ChainID() uint64            { return t.chainID }
func (t *fakeValidatorTx) GroupID() uint64            { return t.groupID }
func (t *fakeValidatorTx) BlockLimit() uint64         { return t.blockLimit }
func (t *fakeValidatorTx) Signature() []byte          { return t.sig }
func (t *fakeValidatorTx) PublicKey() []byte          { return t.pub }
func (t *fakeValidatorTx) Payload() []byte            { return nil }
func (t *fakeValidatorTx) Encode() []byte             { return t.hash.Bytes() }
func (t *fakeValidatorTx) ImportTime() int64          { return 0 }
func (t *fakeValidatorTx) SetImportTime(int64)        {}
func (t *fakeValidatorTx) Sealed() bool               { return false }
func (t *fakeValidatorTx) SetSealed(bool)             {}
func (t *fakeValidatorTx) Synced() bool               { return false }
func (t *fakeValidatorTx) SetSynced(bool)             {}
func (t *fakeValidatorTx) KnownNodes() *common.NodeSet { return t.known }
func (t *fakeValidatorTx) SetCallback(func(Status))   {}
func (t *fakeValidatorTx) HasCallback() bool           { return false }
func (t *fakeValidatorTx) FireCallback(bool, error)    {}

func newTestValidator(t *testing.T, index hashIndex) (*validator, *ecdsa.PrivateKey) {
	t.Helper()
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	pool := noncer.NewPoolNoncer()
	ledger := noncer.NewLedgerNoncer(10)
	ledger.Init(100, nil)
	return newValidator(1, 1, crypto.DefaultSuite, pool, ledger, index), key
}

func TestValidatorVerifyAdmitsValidTx(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)

	status := v.verify(tx)
	assert.Equal(t, None, status)
	assert.True(t, status.OK())
}

func TestValidatorVerifyRejectsWrongChainID(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 99, 1, 105)

	assert.Equal(t, InvalidChainId, v.verify(tx))
}

func TestValidatorVerifyRejectsWrongGroupID(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 99, 105)

	assert.Equal(t, InvalidGroupId, v.verify(tx))
}

func TestValidatorVerifyRejectsBadSignature(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)
	tx.sig[0] ^= 0xff // corrupt the signature

	assert.Equal(t, InvalidSignature, v.verify(tx))
}

func TestValidatorVerifyRejectsAlreadyKnownHash(t *testing.T) {
	index := newFakeIndex()
	v, key := newTestValidator(t, index)
	tx := signTx(t, key, 1, 1, 1, 105)
	index.known[tx.Hash()] = true

	assert.Equal(t, AlreadyInTxPool, v.verify(tx))
}

func TestValidatorVerifyRejectsNonceReplay(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)
	require.Equal(t, None, v.verify(tx))

	replay := signTx(t, key, 1, 1, 1, 106)
	assert.Equal(t, NonceCheckFail, v.verify(replay))
}

// TestValidatorCheckNonceRejectsLedgerCommittedNonce exercises the
// second, read-only step of checkNonce: a nonce that some earlier block
// already committed is rejected at admission even though it was never
// itself submitted through this validator's pool set.
func TestValidatorCheckNonceRejectsLedgerCommittedNonce(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	v.ledger.BatchInsert(101, []uint64{7})

	tx := signTx(t, key, 7, 1, 1, 105)
	assert.Equal(t, NonceCheckFail, v.verify(tx))
	assert.False(t, v.pool.Contains(tx.Nonce()), "the ledger-window rejection must not fall through to a pool reservation")
}

func TestValidatorVerifyRejectsStaleBlockLimit(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 100)

	assert.Equal(t, BlockLimitCheckFail, v.verify(tx))
}

func TestValidatorCheckNonceWithoutUpdateDoesNotMutateState(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)

	status := v.checkNonce(tx, false)
	assert.Equal(t, None, status)
	assert.False(t, v.pool.Contains(tx.Nonce()))
}

// TestValidatorDuplicateTxUsesNoncerSentinels exercises the duplicate_tx
// re-check against the ledger's committed-nonce window, not admission's
// own pool-level reservation: a tx's own nonce must not look like a
// duplicate to itself until some block actually commits it.
func TestValidatorDuplicateTxUsesNoncerSentinels(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)
	require.Equal(t, None, v.verify(tx))

	require.NoError(t, v.DuplicateTx(tx), "a pending, not-yet-committed tx is not a duplicate of itself")

	v.ledger.BatchInsert(101, []uint64{tx.Nonce()})
	err := v.DuplicateTx(tx)
	assert.ErrorIs(t, err, noncer.ErrNonceCheckFail)
}

func TestValidatorVerifySatisfiesTxsyncValidator(t *testing.T) {
	v, key := newTestValidator(t, newFakeIndex())
	tx := signTx(t, key, 1, 1, 1, 105)

	err := v.Verify(tx)
	assert.NoError(t, err)
}

func TestValidatorVerifyRejectsNonTxType(t *testing.T) {
	v, _ := newTestValidator(t, newFakeIndex())

	err := v.Verify(&minimalStorageTx{})
	assert.ErrorIs(t, err, Malform)
}

// minimalStorageTx satisfies storage.Tx but not the full txpool.Tx method
// set, exercising Verify's type-assertion guard.
type minimalStorageTx struct {
	sealed atomic.Bool
	synced atomic.Bool
}

func (t *minimalStorageTx) Hash() common.Hash          { return common.Hash{} }
func (t *minimalStorageTx) Nonce() uint64              { return 0 }
func (t *minimalStorageTx) BlockLimit() uint64         { return 0 }
func (t *minimalStorageTx) Encode() []byte             { return nil }
func (t *minimalStorageTx) ImportTime() int64          { return 0 }
func (t *minimalStorageTx) SetImportTime(int64)        {}
func (t *minimalStorageTx) Sealed() bool               { return t.sealed.Load() }
func (t *minimalStorageTx) SetSealed(v bool)           { t.sealed.Store(v) }
func (t *minimalStorageTx) Synced() bool               { return t.synced.Load() }
func (t *minimalStorageTx) SetSynced(v bool)           { t.synced.Store(v) }
func (t *minimalStorageTx) KnownNodes() *common.NodeSet { return nil }
func (t *minimalStorageTx) HasCallback() bool           { return false }
func (t *minimalStorageTx) FireCallback(bool, error)    {}
