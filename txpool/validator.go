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
	"errors"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/noncer"
	"github.com/bcos-go/txpool/txpool/storage"
)

// hashIndex is the narrow view of storage the validator needs for its
// duplicate-hash check, satisfied by *storage.Storage;
// kept separate from storage to avoid an import cycle (storage re-checks
// via the validator during batch_fetch).
type hashIndex interface {
	HasHash(hash common.Hash) bool
}

// validator composes the structural checks, the pool-level nonce set and
// the ledger nonce checker into the single admission gate described in
// spec.md §4.1.
type validator struct {
	chainID uint64
	groupID uint64
	crypto  CryptoSuite
	pool    *noncer.PoolNoncer
	ledger  *noncer.LedgerNoncer
	index   hashIndex
}

func newValidator(chainID, groupID uint64, crypto CryptoSuite, pool *noncer.PoolNoncer, ledger *noncer.LedgerNoncer, index hashIndex) *validator {
	return &validator{chainID: chainID, groupID: groupID, crypto: crypto, pool: pool, ledger: ledger, index: index}
}

// setIndex fills in the hash index after storage has been constructed.
// The façade builds the validator and the storage in two steps precisely
// because of this: storage.New needs a Validator, and the validator needs
// storage's HasHash, so neither can come fully-formed before the other.
func (v *validator) setIndex(index hashIndex) { v.index = index }

// verify runs the full admission pipeline, short-circuiting on first
// failure, per spec.md §4.1.
func (v *validator) verify(tx Tx) Status {
	if tx.ChainID() != v.chainID {
		return InvalidChainId
	}
	if tx.GroupID() != v.groupID {
		return InvalidGroupId
	}
	if !v.crypto.Verify(tx.Signature(), tx.Hash().Bytes(), tx.PublicKey()) {
		return InvalidSignature
	}
	if v.index.HasHash(tx.Hash()) {
		return AlreadyInTxPool
	}
	return v.checkNonce(tx, true)
}

// checkNonce implements spec.md §4.2's check_nonce, run in the two steps
// the original TxValidator::duplicateTx does: first the in-flight pool
// set (noncer.PoolNoncer), reserved with shouldUpdate so a second
// submission with the same nonce in the same admission wave is caught;
// then a read-only check against the ledger nonce checker's own
// committed-nonce window, which rejects a nonce that some earlier block
// already committed. That second check never mutates the ledger
// checker's membership set — only batch_insert does, driven by an actual
// commit — so a transaction's own admission-time reservation can never
// be mistaken for a later duplicate commit when storage re-checks it
// during selection (duplicate_tx, below).
func (v *validator) checkNonce(tx Tx, shouldUpdate bool) Status {
	nonce := tx.Nonce()
	if v.pool.Contains(nonce) {
		return NonceCheckFail
	}
	switch err := v.ledger.CheckNonce(nonce, tx.BlockLimit()); {
	case errors.Is(err, noncer.ErrNonceCheckFail):
		return NonceCheckFail
	case errors.Is(err, noncer.ErrBlockLimitCheckFail):
		return BlockLimitCheckFail
	}
	if shouldUpdate {
		v.pool.Insert(nonce)
	}
	return None
}

// DuplicateTx is the cheaper re-check storage.BatchFetch runs during
// selection (spec.md §4.1's duplicate_tx): it never mutates any nonce
// set, it only asks whether the tx's nonce has since landed in a
// committed block, or its block_limit has expired. Declared to satisfy
// storage.Validator directly — storage.Tx already carries
// Nonce/BlockLimit, so no adaptation is needed here. Returns the noncer
// package's own sentinel errors rather than a Status, since
// storage.BatchFetch switches on those directly (errors.Is against
// noncer.ErrNonceCheckFail / noncer.ErrBlockLimitCheckFail).
func (v *validator) DuplicateTx(tx storage.Tx) error {
	return v.ledger.CheckNonce(tx.Nonce(), tx.BlockLimit())
}

// Verify satisfies txsync.Validator, re-running the full admission
// pipeline against a peer-forwarded transaction (spec.md §4.5.2:
// "Signature verification and nonce checks run in the validator as
// usual"). tx always carries the full Tx method set in practice — it was
// produced by the same TxFactory submit uses — so the type assertion
// only fails for a hand-rolled test double that doesn't implement Tx.
func (v *validator) Verify(tx storage.Tx) error {
	full, ok := tx.(Tx)
	if !ok {
		return Malform
	}
	if status := v.verify(full); !status.OK() {
		return status
	}
	return nil
}
