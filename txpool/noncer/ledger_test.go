// Copyright 2019 The go-ethereum Authors
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

package noncer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerNoncerCheckNonceOK(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, nil)

	err := c.CheckNonce(1, 105)
	assert.NoError(t, err)
}

func TestLedgerNoncerCheckNonceCommittedIsDuplicate(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, nil)
	c.BatchInsert(101, []uint64{1})

	err := c.CheckNonce(1, 105)
	assert.ErrorIs(t, err, ErrNonceCheckFail)
}

func TestLedgerNoncerCheckNonceBlockLimitStale(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, nil)

	// block_limit at or before the current head is stale.
	err := c.CheckNonce(1, 100)
	assert.ErrorIs(t, err, ErrBlockLimitCheckFail)
}

func TestLedgerNoncerCheckNonceBlockLimitTooFar(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, nil)

	err := c.CheckNonce(1, 111)
	assert.ErrorIs(t, err, ErrBlockLimitCheckFail)
}

func TestLedgerNoncerCheckNonceNeverMutatesCache(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, nil)

	require.NoError(t, c.CheckNonce(1, 105))
	assert.False(t, c.Contains(1), "CheckNonce must never record the nonce; only Init/BatchInsert do")
}

func TestLedgerNoncerCheckBlockLimitIgnoresMembership(t *testing.T) {
	c := NewLedgerNoncer(10)
	c.Init(100, map[uint64][]uint64{100: {1}})

	// CheckBlockLimit never consults the committed-nonce set, even for a
	// nonce that is already committed.
	assert.NoError(t, c.CheckBlockLimit(105))
	assert.ErrorIs(t, c.CheckBlockLimit(100), ErrBlockLimitCheckFail)
}

func TestLedgerNoncerInitSeedsWindow(t *testing.T) {
	c := NewLedgerNoncer(5)
	c.Init(10, map[uint64][]uint64{9: {1, 2}, 10: {3}})

	assert.True(t, c.Contains(1))
	assert.True(t, c.Contains(2))
	assert.True(t, c.Contains(3))

	window := c.Window()
	assert.Len(t, window, 5) // blocks 6..10 inclusive
}

func TestLedgerNoncerBatchInsertEvicts(t *testing.T) {
	c := NewLedgerNoncer(2)
	c.Init(10, map[uint64][]uint64{9: {200}, 10: {300}})
	require.True(t, c.Contains(200))

	c.BatchInsert(11, []uint64{400})
	assert.Equal(t, uint64(11), c.LatestBlockNumber())
	assert.False(t, c.Contains(200), "block 9 must have been evicted once the window advanced past it")
	assert.True(t, c.Contains(300))
	assert.True(t, c.Contains(400))
}

func TestLedgerNoncerBatchInsertIgnoresStaleBlock(t *testing.T) {
	c := NewLedgerNoncer(5)
	c.Init(10, nil)

	c.BatchInsert(5, []uint64{1})
	assert.Equal(t, uint64(10), c.LatestBlockNumber())
	assert.False(t, c.Contains(1))
}

func TestLedgerNoncerCheckNonceSentinelsAreDistinct(t *testing.T) {
	// Guards against a refactor collapsing the two failure modes into one
	// sentinel, which would silently break validator.checkNonce's switch.
	assert.False(t, errors.Is(ErrNonceCheckFail, ErrBlockLimitCheckFail))
}
