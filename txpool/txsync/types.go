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
	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/event"
	"github.com/bcos-go/txpool/txpool/storage"
)

// Block is the narrow view of a decoded block the sync engine needs:
// enough to compute the missed-tx set and to re-package txs into a
// TxsResponse. The concrete type is produced by the injected BlockFactory.
type Block interface {
	TxHashes() []common.Hash
	Number() uint64
	Encode() []byte
	// Txs returns the raw wire bytes of each transaction carried by this
	// block-like container, in the same order as TxHashes. A TxsResponse
	// decodes these through TxFactory.CreateTransaction.
	Txs() [][]byte
}

// TxFactory decodes the transactions carried in a TxsResponse. Its
// signature intentionally returns storage.Tx rather than a façade-level
// Tx type, so this package never imports package txpool (which imports
// this package) — the façade supplies a thin adapter over its own
// TxFactory when it constructs an Engine.
type TxFactory interface {
	CreateTransaction(data []byte, checkSig bool) (storage.Tx, error)
}

// BlockFactory decodes inbound block bytes and packages outbound responses.
type BlockFactory interface {
	CreateBlockFromBytes(data []byte) (Block, error)
	CreateBlockWithTxs(txs []storage.Tx) Block
}

// Ledger is the narrow slice of the injected Ledger the fallback path in
// RequestMissedTxs needs.
type Ledger interface {
	AsyncGetBatchTxs(hashes []common.Hash, withProofs bool, cb func(err error, txs []storage.Tx))
}

// FrontService is the injected P2P transport.
type FrontService interface {
	AsyncSendMessageByNodeID(module string, peer common.NodeID, payload []byte, cb func(err error, resp []byte))
	AsyncSendResponse(uuid string, module string, peer common.NodeID, payload []byte, cb func(err error))
}

// Validator re-verifies a decoded transaction before it is handed to
// storage, mirroring the façade's own admission gate for P2P-sourced txs.
type Validator interface {
	Verify(tx storage.Tx) error
}

// Storage is the exact method set *storage.Storage exposes that the sync
// engine drives. Declared as an interface purely for test doubles; the
// façade always wires in the concrete *storage.Storage.
type Storage interface {
	SubscribeReady(ch chan struct{}) event.Subscription
	FilterUnknown(hashes []common.Hash, peer common.NodeID) []common.Hash
	Fetch(hashes []common.Hash) (present []storage.Tx, missed []common.Hash)
	FetchNew(limit int) []storage.Tx
	Contains(hash common.Hash) bool
	Submit(tx storage.Tx) error
}
