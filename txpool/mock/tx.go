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
	"crypto/ecdsa"
	"sync"
	"sync/atomic"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/crypto"
	"github.com/bcos-go/txpool/rlp"
	"github.com/bcos-go/txpool/txpool"
)

// wireTx is the RLP envelope a Tx is carried in over Encode/decode, mirroring
// how the real TxFactory this stands in for would serialize a transaction.
type wireTx struct {
	Nonce      uint64
	ChainID    uint64
	GroupID    uint64
	BlockLimit uint64
	PublicKey  []byte
	Payload    []byte
	Signature  []byte
}

// unsignedTx is the portion of wireTx the hash and signature are computed
// over; Signature is deliberately excluded.
type unsignedTx struct {
	Nonce      uint64
	ChainID    uint64
	GroupID    uint64
	BlockLimit uint64
	PublicKey  []byte
	Payload    []byte
}

// Tx is the mock's txpool.Tx implementation, a stand-in for a real
// wire-format transaction.
type Tx struct {
	wire wireTx
	hash common.Hash
	raw  []byte

	importTime int64
	sealed     atomic.Bool
	synced     atomic.Bool
	known      *common.NodeSet

	cbOnce sync.Once
	cb     func(txpool.Status)
}

// NewSignedTx builds and signs a transaction with key, the way a real
// client-side TxFactory would before handing the wire bytes to submit.
func NewSignedTx(key *ecdsa.PrivateKey, nonce, chainID, groupID, blockLimit uint64, payload []byte) (*Tx, error) {
	pub := crypto.FromECDSAPub(&key.PublicKey)
	unsigned := unsignedTx{Nonce: nonce, ChainID: chainID, GroupID: groupID, BlockLimit: blockLimit, PublicKey: pub, Payload: payload}
	unsignedBytes, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return nil, err
	}
	hash := crypto.DefaultSuite.Hash(unsignedBytes)
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, err
	}
	wire := wireTx{Nonce: nonce, ChainID: chainID, GroupID: groupID, BlockLimit: blockLimit, PublicKey: pub, Payload: payload, Signature: sig}
	raw, err := rlp.EncodeToBytes(&wire)
	if err != nil {
		return nil, err
	}
	return newTx(wire, hash, raw), nil
}

func newTx(wire wireTx, hash common.Hash, raw []byte) *Tx {
	return &Tx{wire: wire, hash: hash, raw: raw, known: common.NewNodeSet()}
}

// DecodeTx parses wire bytes produced by NewSignedTx or Encode, recomputing
// the hash from the unsigned fields the way a real TxFactory.CreateTransaction
// would. checkSig is accepted for interface compatibility but unused: this
// mock always leaves signature verification to the pool's validator.
func DecodeTx(data []byte, checkSig bool) (*Tx, error) {
	var wire wireTx
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, err
	}
	unsigned := unsignedTx{Nonce: wire.Nonce, ChainID: wire.ChainID, GroupID: wire.GroupID, BlockLimit: wire.BlockLimit, PublicKey: wire.PublicKey, Payload: wire.Payload}
	unsignedBytes, err := rlp.EncodeToBytes(&unsigned)
	if err != nil {
		return nil, err
	}
	hash := crypto.DefaultSuite.Hash(unsignedBytes)
	return newTx(wire, hash, data), nil
}

func (t *Tx) Hash() common.Hash  { return t.hash }
func (t *Tx) Nonce() uint64      { return t.wire.Nonce }
func (t *Tx) ChainID() uint64    { return t.wire.ChainID }
func (t *Tx) GroupID() uint64    { return t.wire.GroupID }
func (t *Tx) BlockLimit() uint64 { return t.wire.BlockLimit }
func (t *Tx) Signature() []byte  { return t.wire.Signature }
func (t *Tx) PublicKey() []byte  { return t.wire.PublicKey }
func (t *Tx) Payload() []byte    { return t.wire.Payload }
func (t *Tx) Encode() []byte     { return t.raw }

func (t *Tx) ImportTime() int64      { return atomic.LoadInt64(&t.importTime) }
func (t *Tx) SetImportTime(ts int64) { atomic.StoreInt64(&t.importTime, ts) }
func (t *Tx) Sealed() bool           { return t.sealed.Load() }
func (t *Tx) SetSealed(v bool)       { t.sealed.Store(v) }
func (t *Tx) Synced() bool           { return t.synced.Load() }
func (t *Tx) SetSynced(v bool)       { t.synced.Store(v) }
func (t *Tx) KnownNodes() *common.NodeSet { return t.known }

func (t *Tx) SetCallback(cb func(txpool.Status)) { t.cb = cb }
func (t *Tx) HasCallback() bool                  { return t.cb != nil }

func (t *Tx) FireCallback(ok bool, err error) {
	if t.cb == nil {
		return
	}
	t.cbOnce.Do(func() {
		status := txpool.None
		if !ok {
			status = txpool.NonceCheckFail
		}
		t.cb(status)
	})
}

// TxFactory is the mock's txpool.TxFactory, delegating to DecodeTx.
type TxFactory struct{}

func (TxFactory) CreateTransaction(data []byte, checkSig bool) (txpool.Tx, error) {
	return DecodeTx(data, checkSig)
}
