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
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool/metrics"
)

// fakeResultFactory builds a baseResult directly, standing in for the
// façade's real TxResultFactory without pulling in txpool/mock, which
// would import this package back and create a cycle from an internal
// test file.
type fakeResultFactory struct{}

func (fakeResultFactory) CreateResult(hash common.Hash, status Status) SubmitResult {
	return &baseResult{hash: hash, status: status}
}

// newLockFailedPool builds the bare minimum *Pool the worker closures'
// entry checks touch: the running flag, metrics and the result factory.
// It starts "running" and the caller flips it off to simulate Stop()
// having fired while a task was already in flight.
func newLockFailedPool() *Pool {
	p := &Pool{metrics: metrics.Null{}, resultFactory: fakeResultFactory{}}
	p.running.Store(true)
	return p
}

// TestPoolSubmitSyncReturnsLockFailedAfterStop exercises the entry check
// spec.md's weak-handle-at-entry cancellation note describes: a submit
// worker that starts running after Stop has already flipped the running
// flag must report LockFailed instead of touching storage.
func TestPoolSubmitSyncReturnsLockFailedAfterStop(t *testing.T) {
	p := newLockFailedPool()
	p.running.Store(false)

	var got SubmitResult
	p.submitSync([]byte("irrelevant"), func(r SubmitResult) { got = r })

	assert.NotNil(t, got)
	assert.Equal(t, LockFailed, got.Status())
}

// TestPoolFillBlockSyncReturnsLockFailedAfterStop mirrors the same
// entry check on the fill_block worker closure.
func TestPoolFillBlockSyncReturnsLockFailedAfterStop(t *testing.T) {
	p := newLockFailedPool()
	p.running.Store(false)

	var gotErr error
	p.fillBlockSync(nil, func(txs []Tx, err error) { gotErr = err })

	assert.ErrorIs(t, gotErr, ErrLockFailed)
}

// TestPoolVerifyBlockSyncReturnsLockFailedAfterStop mirrors the same
// entry check on the async_verify_block worker closure.
func TestPoolVerifyBlockSyncReturnsLockFailedAfterStop(t *testing.T) {
	p := newLockFailedPool()
	p.running.Store(false)

	var gotErr error
	p.verifyBlockSync("peer", nil, func(err error) { gotErr = err })

	assert.ErrorIs(t, gotErr, ErrLockFailed)
}
