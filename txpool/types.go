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
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/storage"
)

// NodeType enumerates the ledger's node roles, used by
// Ledger.GetNodeListByType.
type NodeType int

const (
	ConsensusSealer NodeType = iota
	ConsensusObserver
)

// Tx is the pool's view of a transaction. The factory that created it owns
// encoding/decoding; the pool only ever touches the fields below plus the
// three mutable flags it is responsible for.
type Tx interface {
	Hash() common.Hash
	Nonce() uint64
	ChainID() uint64
	GroupID() uint64
	// BlockLimit is the highest block number at which this tx may still be
	// sealed into a block.
	BlockLimit() uint64
	Signature() []byte
	PublicKey() []byte
	Payload() []byte
	// Encode returns the wire representation, as produced by the factory
	// that created this Tx.
	Encode() []byte

	// ImportTime is the monotonic admission timestamp assigned by the pool
	// on insert; it is the queue's ordering key.
	ImportTime() int64
	SetImportTime(t int64)

	// Sealed reports whether the tx is currently included in an in-flight
	// proposal. Synced reports whether it has already been announced to at
	// least one peer.
	Sealed() bool
	SetSealed(bool)
	Synced() bool
	SetSynced(bool)

	// KnownNodes is the set of peers already informed of this tx, used by
	// the sync engine to suppress redundant broadcast.
	KnownNodes() *common.NodeSet

	// SetCallback attaches the RPC-originated submit callback, per
	// spec.md §3. P2P-forwarded transactions never call this, so
	// HasCallback distinguishes the two origins downstream.
	SetCallback(cb func(Status))
	HasCallback() bool
	FireCallback(ok bool, err error)
}

// baseTx is a plain Tx implementation built by newBaseTx; no TxFactory in
// this package constructs it. Implementations backed by another wire
// format may supply their own Tx instead.
type baseTx struct {
	hash       common.Hash
	nonce      uint64
	chainID    uint64
	groupID    uint64
	blockLimit uint64
	signature  []byte
	publicKey  []byte
	payload    []byte
	raw        []byte

	importTime int64 // ns, set once by storage.insert

	sealed atomic.Bool
	synced atomic.Bool
	known  *common.NodeSet

	cbOnce sync.Once
	cb     func(Status)
}

func newBaseTx(raw []byte, hash common.Hash, nonce, chainID, groupID, blockLimit uint64, sig, pub, payload []byte) *baseTx {
	return &baseTx{
		hash:       hash,
		nonce:      nonce,
		chainID:    chainID,
		groupID:    groupID,
		blockLimit: blockLimit,
		signature:  sig,
		publicKey:  pub,
		payload:    payload,
		raw:        raw,
		known:      common.NewNodeSet(),
	}
}

func (t *baseTx) Hash() common.Hash          { return t.hash }
func (t *baseTx) Nonce() uint64              { return t.nonce }
func (t *baseTx) ChainID() uint64            { return t.chainID }
func (t *baseTx) GroupID() uint64            { return t.groupID }
func (t *baseTx) BlockLimit() uint64         { return t.blockLimit }
func (t *baseTx) Signature() []byte          { return t.signature }
func (t *baseTx) PublicKey() []byte          { return t.publicKey }
func (t *baseTx) Payload() []byte            { return t.payload }
func (t *baseTx) Encode() []byte             { return t.raw }
func (t *baseTx) ImportTime() int64          { return atomic.LoadInt64(&t.importTime) }
func (t *baseTx) SetImportTime(ts int64)     { atomic.StoreInt64(&t.importTime, ts) }
func (t *baseTx) Sealed() bool               { return t.sealed.Load() }
func (t *baseTx) SetSealed(v bool)           { t.sealed.Store(v) }
func (t *baseTx) Synced() bool               { return t.synced.Load() }
func (t *baseTx) SetSynced(v bool)           { t.synced.Store(v) }
func (t *baseTx) KnownNodes() *common.NodeSet { return t.known }

func (t *baseTx) SetCallback(cb func(Status)) { t.cb = cb }
func (t *baseTx) HasCallback() bool           { return t.cb != nil }

// FireCallback translates a storage-level outcome into a Status and
// invokes the attached callback exactly once. It is a no-op when no
// callback was attached.
func (t *baseTx) FireCallback(ok bool, err error) {
	if t.cb == nil {
		return
	}
	t.cbOnce.Do(func() {
		status := None
		switch {
		case ok:
			status = None
		case errors.Is(err, storage.ErrPoolFull):
			status = TxPoolIsFull
		case errors.Is(err, storage.ErrAlreadyKnown):
			status = AlreadyInTxPool
		case errors.Is(err, storage.ErrClosed):
			status = LockFailed
		default:
			status = NonceCheckFail
		}
		t.cb(status)
	})
}

// Block is the pool's view of a block, as produced by a BlockFactory.
type Block interface {
	TxHashes() []common.Hash
	Number() uint64
	Encode() []byte
	// Txs returns the raw wire bytes of each transaction, in the same
	// order as TxHashes, so a TxsResponse recipient can decode them
	// through TxFactory without a second round trip.
	Txs() [][]byte
}

// SubmitResult is the outcome of admitting (or rejecting) a single
// transaction, delivered to the submit callback and carried through
// notify_block_result.
type SubmitResult interface {
	Hash() common.Hash
	Status() Status
	Nonce() uint64
}

type baseResult struct {
	hash   common.Hash
	status Status
	nonce  uint64
}

func (r *baseResult) Hash() common.Hash { return r.hash }
func (r *baseResult) Status() Status    { return r.status }
func (r *baseResult) Nonce() uint64     { return r.nonce }

// CryptoSuite is the injected signature implementation. The default,
// backed by secp256k1 + keccak256, lives in the crypto package.
type CryptoSuite interface {
	Hash(data []byte) common.Hash
	Verify(signature, hash, publicKey []byte) bool
	GenerateKeyPair() (*ecdsa.PrivateKey, error)
}

// BlockFactory decodes/encodes the block container used by TxsResponse and
// by verify_block/fill_block.
type BlockFactory interface {
	CreateBlock() Block
	CreateBlockFromBytes(data []byte) (Block, error)
	// CreateBlockWithTxs packages txs into a block payload suitable for a
	// TxsResponse, used by the sync engine to answer a TxsRequest.
	CreateBlockWithTxs(txs []Tx) Block
}

// TxFactory decodes wire bytes into a Tx. checkSig lets callers skip
// signature verification when it has already been performed (e.g. by the
// validator immediately after decode).
type TxFactory interface {
	CreateTransaction(data []byte, checkSig bool) (Tx, error)
}

// TxResultFactory builds the SubmitResult delivered to submit callbacks.
type TxResultFactory interface {
	CreateResult(hash common.Hash, status Status) SubmitResult
}

// NonceMap is a block number to nonce-list mapping, as returned by
// Ledger.AsyncGetNonceList and consumed by the ledger nonce checker's Init.
type NonceMap map[uint64][]uint64

// Ledger is the injected persistent-storage capability. All methods are
// asynchronous and report through a callback, mirroring the front-service
// style calling convention used throughout this pool.
type Ledger interface {
	AsyncStoreTransactions(raw [][]byte, hashes []common.Hash, cb func(err error))
	AsyncGetBatchTxs(hashes []common.Hash, withProofs bool, cb func(err error, txs []Tx))
	AsyncGetBlockNumber(cb func(err error, number uint64))
	AsyncGetBlockHashByNumber(number uint64, cb func(err error, hash common.Hash))
	AsyncGetNonceList(start, offset uint64, cb func(err error, nonces NonceMap))
	AsyncGetNodeListByType(typ NodeType, cb func(err error, nodes []common.NodeID))
}

// FrontService is the injected P2P transport.
type FrontService interface {
	AsyncSendMessageByNodeID(module string, peer common.NodeID, payload []byte, cb func(err error, resp []byte))
	AsyncSendResponse(uuid string, module string, peer common.NodeID, payload []byte, cb func(err error))
	AsyncGetNodeIDs(cb func(err error, ids []common.NodeID))
	LocalNodeID() common.NodeID
}

// Sealer is the injected block-assembly capability that the storage layer
// notifies whenever unsealed_size changes.
type Sealer interface {
	AsyncNoteUnsealedSize(size int, cb func(err error))
}

// NewTxsEvent is published on the pool-level event feed whenever a
// transaction submitted through Pool.Submit is admitted, mirroring
// core/txpool's NewTxsEvent. Transactions admitted from peers or
// recovered for VerifyBlock publish no event.
type NewTxsEvent struct {
	Txs []Tx
}

// TxSummary is a lightweight, read-only snapshot of a pooled transaction
// for Content().
type TxSummary struct {
	Hash       common.Hash
	Nonce      uint64
	ImportTime time.Time
	Sealed     bool
	Synced     bool
}
