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

// Package storage is the in-memory transaction store described in
// spec.md §4.4: an ordered queue plus a hash index, the sealed/synced/
// invalid state machine, pre-commit durability and sealer notification.
package storage

import "github.com/bcos-go/txpool/common"

// Tx is the narrow view of a pooled transaction storage needs. Any type
// satisfying this (in particular txpool.Tx) can be stored without this
// package importing txpool, which would otherwise cycle back to here.
type Tx interface {
	Hash() common.Hash
	Nonce() uint64
	BlockLimit() uint64
	Encode() []byte

	ImportTime() int64
	SetImportTime(int64)

	Sealed() bool
	SetSealed(bool)
	Synced() bool
	SetSynced(bool)

	KnownNodes() *common.NodeSet

	// HasCallback reports whether this tx carries an RPC-originated submit
	// callback, per spec.md §3. FireCallback invokes it at most once; it is
	// a no-op when HasCallback is false.
	HasCallback() bool
	FireCallback(ok bool, err error)
}

// Validator is the narrow view of the admission pipeline storage needs for
// its in-selection re-check (spec.md §4.4.1 batch_fetch). The concrete
// implementation lives in package txpool and wraps the ledger nonce
// checker; its error is one of noncer.ErrNonceCheckFail /
// noncer.ErrBlockLimitCheckFail / nil.
type Validator interface {
	DuplicateTx(tx Tx) error
}

// Ledger is the narrow slice of the injected Ledger capability storage's
// pre-commit worker needs.
type Ledger interface {
	AsyncStoreTransactions(raw [][]byte, hashes []common.Hash, cb func(err error))
}

// Sealer is the injected block-assembly capability storage notifies
// whenever unsealed_size changes.
type Sealer interface {
	AsyncNoteUnsealedSize(size int, cb func(err error))
}

// Result pairs a hash with the submit outcome delivered through its
// callback, and is also the shape batch_remove consumes from a committed
// block (spec.md §4.4.1's notify_tx_result / batch_remove).
type Result struct {
	Hash  common.Hash
	Nonce uint64
	OK    bool
}
