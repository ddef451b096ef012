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
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolNoncerInsert(t *testing.T) {
	n := NewPoolNoncer()

	require.True(t, n.Insert(1))
	require.False(t, n.Insert(1), "re-inserting a tracked nonce must fail")
	assert.True(t, n.Contains(1))
	assert.Equal(t, 1, n.Len())
}

func TestPoolNoncerRemove(t *testing.T) {
	n := NewPoolNoncer()
	n.Insert(7)

	n.Remove(7)
	assert.False(t, n.Contains(7))
	assert.Equal(t, 0, n.Len())

	// Removing an absent nonce is a no-op, not an error.
	n.Remove(7)
}

func TestPoolNoncerBatchInsertAndRemove(t *testing.T) {
	n := NewPoolNoncer()

	n.BatchInsert(10, []uint64{1, 2, 3})
	assert.Equal(t, 3, n.Len())
	for _, nonce := range []uint64{1, 2, 3} {
		assert.True(t, n.Contains(nonce))
	}

	n.BatchRemove([]uint64{2, 3})
	assert.True(t, n.Contains(1))
	assert.False(t, n.Contains(2))
	assert.False(t, n.Contains(3))
}

func TestPoolNoncerConcurrentAccess(t *testing.T) {
	n := NewPoolNoncer()
	var wg sync.WaitGroup
	for i := uint64(0); i < 200; i++ {
		wg.Add(1)
		go func(nonce uint64) {
			defer wg.Done()
			n.Insert(nonce)
		}(i)
	}
	wg.Wait()
	assert.Equal(t, 200, n.Len())
}
