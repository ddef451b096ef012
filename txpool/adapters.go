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
	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/storage"
	"github.com/bcos-go/txpool/txpool/txsync"
)

// This file bridges the façade's own capability types into txsync's
// narrower interfaces. Tx, Block and FrontService need no adapter here —
// their method sets already satisfy the txsync equivalents directly — but
// TxFactory, BlockFactory and Ledger each carry one method whose exact
// signature (return type or callback shape) differs from its txsync
// counterpart, so a small wrapper is required in each case.

// txFactoryAdapter narrows TxFactory.CreateTransaction's (Tx, error)
// result to the (storage.Tx, error) shape txsync.TxFactory expects.
type txFactoryAdapter struct {
	f TxFactory
}

func (a txFactoryAdapter) CreateTransaction(data []byte, checkSig bool) (storage.Tx, error) {
	return a.f.CreateTransaction(data, checkSig)
}

// blockFactoryAdapter wraps BlockFactory. CreateBlockFromBytes's result
// already satisfies txsync.Block, but CreateBlockWithTxs takes a
// []storage.Tx on the txsync side; each element is re-asserted back to
// the full Tx interface before delegating.
type blockFactoryAdapter struct {
	f BlockFactory
}

func (a blockFactoryAdapter) CreateBlockFromBytes(data []byte) (txsync.Block, error) {
	return a.f.CreateBlockFromBytes(data)
}

func (a blockFactoryAdapter) CreateBlockWithTxs(txs []storage.Tx) txsync.Block {
	full := make([]Tx, 0, len(txs))
	for _, tx := range txs {
		if t, ok := tx.(Tx); ok {
			full = append(full, t)
		}
	}
	return a.f.CreateBlockWithTxs(full)
}

// ledgerAdapter narrows Ledger to the single method the sync engine's
// missed-tx fallback needs, re-typing the callback's tx slice.
type ledgerAdapter struct {
	l Ledger
}

func (a ledgerAdapter) AsyncGetBatchTxs(hashes []common.Hash, withProofs bool, cb func(err error, txs []storage.Tx)) {
	a.l.AsyncGetBatchTxs(hashes, withProofs, func(err error, txs []Tx) {
		out := make([]storage.Tx, len(txs))
		for i, tx := range txs {
			out[i] = tx
		}
		cb(err, out)
	})
}
