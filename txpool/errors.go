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

import "errors"

// Status is the transaction submission / block-verify outcome taxonomy.
// It implements error so it composes with errors.Is and fmt.Errorf("%w", ...)
// the way a wrapped sentinel error would.
type Status int

const (
	// None means the transaction was admitted.
	None Status = iota
	// Malform means decoding the wire bytes failed.
	Malform
	// InvalidSignature means CryptoSuite.Verify rejected the signature.
	InvalidSignature
	// InvalidChainId means the tx's chain id doesn't match the pool's.
	InvalidChainId
	// InvalidGroupId means the tx's group id doesn't match the pool's.
	InvalidGroupId
	// NonceCheckFail means the nonce is a replay or already in-flight.
	NonceCheckFail
	// BlockLimitCheckFail means the tx's block_limit is stale or too far
	// in the future.
	BlockLimitCheckFail
	// AlreadyInTxPool means a tx with this hash is already indexed.
	AlreadyInTxPool
	// TxPoolIsFull means the pool is at its configured capacity.
	TxPoolIsFull
	// RequestNotBelongToTheGroup means the local node was not a member of
	// the consensus group at submission time.
	RequestNotBelongToTheGroup
	// TransactionsMissing means a missed-tx fetch could not be resolved
	// after both the peer and ledger fallback.
	TransactionsMissing
	// LockFailed mirrors spec.md's "-1: lock_failed": the callback fired
	// after Stop had already closed the notifier pool that would have
	// delivered it.
	LockFailed Status = -1
)

var statusNames = map[Status]string{
	None:                        "none",
	Malform:                     "malform",
	InvalidSignature:            "invalid signature",
	InvalidChainId:              "invalid chain id",
	InvalidGroupId:              "invalid group id",
	NonceCheckFail:              "nonce check failed",
	BlockLimitCheckFail:         "block limit check failed",
	AlreadyInTxPool:             "already in tx pool",
	TxPoolIsFull:                "tx pool is full",
	RequestNotBelongToTheGroup:  "request does not belong to the group",
	TransactionsMissing:         "transactions missing",
	LockFailed:                  "lock failed",
}

// Error implements the error interface so a Status can be returned or
// wrapped anywhere an error is expected.
func (s Status) Error() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return "unknown status"
}

// OK reports whether the status represents successful admission/verification.
func (s Status) OK() bool {
	return s == None
}

// Sentinel errors for programmer-facing, non-Status conditions: failures in
// how the pool itself is used or wired, as opposed to a particular
// transaction's outcome.
var (
	// ErrPoolClosed is returned by façade entry points once Stop has been
	// called and drained.
	ErrPoolClosed = errors.New("txpool: pool is closed")

	// ErrNoCryptoSuite is returned by New when no CryptoSuite was supplied;
	// New does not construct a default one.
	ErrNoCryptoSuite = errors.New("txpool: no crypto suite configured")

	// ErrMissingCollaborator is returned by New when a required injected
	// capability (Ledger, FrontService, Sealer, BlockFactory, TxFactory,
	// TxResultFactory) was not supplied.
	ErrMissingCollaborator = errors.New("txpool: missing required collaborator")

	// ErrLockFailed is delivered to FillBlock/VerifyBlock's onDone when
	// the worker consults the running flag at entry and finds Stop has
	// already fired, mirroring the "-1: lock_failed" condition spec.md's
	// cancellation section describes. Submit's own callback path carries
	// the same condition as the LockFailed Status instead, since its
	// callback signature takes a Status rather than an error; both are
	// produced when a worker closure's weak handle on the pool can no
	// longer be upgraded.
	ErrLockFailed = errors.New("txpool: operation raced pool shutdown")

	// ErrUnknownBatch is returned by InvalidateBatch for a batch id that
	// was never recorded by mark_txs.
	ErrUnknownBatch = errors.New("txpool: unknown batch id")
)
