// Copyright 2022 The go-ethereum Authors
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

// Package lru implements generically-typed LRU caches.
package lru

// BasicLRU is a simple LRU cache.
//
// This type is not safe for concurrent use.
// The zero value is not valid, instances must be created using NewCache.
type BasicLRU[K comparable, V any] struct {
	list  *list[K]
	items map[K]cacheItem[K, V]
	cap   int
}

type cacheItem[K any, V any] struct {
	elem  *listElem[K]
	value V
}

// NewCache creates a new BasicLRU with the given capacity.
func NewCache[K comparable, V any](capacity int) BasicLRU[K, V] {
	if capacity <= 0 {
		capacity = 1
	}
	return BasicLRU[K, V]{
		list:  newList[K](),
		items: make(map[K]cacheItem[K, V]),
		cap:   capacity,
	}
}

// Add adds a value to the cache. Returns true if an item was evicted to
// store the new item.
func (c *BasicLRU[K, V]) Add(key K, value V) (evicted bool) {
	item, ok := c.items[key]
	if ok {
		item.value = value
		c.items[key] = item
		c.list.moveToFront(item.elem)
		return false
	}

	var elem *listElem[K]
	if c.cap == len(c.items) {
		elem = c.list.removeLast()
		delete(c.items, elem.v)
		evicted = true
	} else {
		elem = new(listElem[K])
	}

	elem.v = key
	c.list.pushElem(elem)
	c.items[key] = cacheItem[K, V]{elem, value}
	return evicted
}

// Contains reports whether the given key exists in the cache, without
// updating recency.
func (c *BasicLRU[K, V]) Contains(key K) bool {
	_, ok := c.items[key]
	return ok
}

// Get retrieves a value from the cache. This marks the key as recently used.
func (c *BasicLRU[K, V]) Get(key K) (value V, ok bool) {
	item, ok := c.items[key]
	if !ok {
		return value, false
	}
	c.list.moveToFront(item.elem)
	return item.value, true
}

// Peek retrieves a value from the cache, but does not mark the key as
// recently used.
func (c *BasicLRU[K, V]) Peek(key K) (value V, ok bool) {
	item, ok := c.items[key]
	if !ok {
		return value, false
	}
	return item.value, true
}

// Remove drops an item from the cache. Returns true if the key was present.
func (c *BasicLRU[K, V]) Remove(key K) bool {
	item, ok := c.items[key]
	if ok {
		c.list.remove(item.elem)
		delete(c.items, key)
	}
	return ok
}

// Len returns the current number of items in the cache.
func (c *BasicLRU[K, V]) Len() int {
	return len(c.items)
}

// Cap returns the cache's configured capacity.
func (c *BasicLRU[K, V]) Cap() int {
	return c.cap
}

// Purge empties the cache.
func (c *BasicLRU[K, V]) Purge() {
	c.list = newList[K]()
	c.items = make(map[K]cacheItem[K, V])
}

// Keys returns all keys in the cache, oldest first.
func (c *BasicLRU[K, V]) Keys() []K {
	keys := make([]K, 0, len(c.items))
	c.list.forEach(func(k K) bool {
		keys = append(keys, k)
		return true
	})
	// forEach walks from newest to oldest; reverse to report oldest first.
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

// list is a doubly-linked list holding items of type T, used as the
// recency ordering for BasicLRU.
// The zero value is not valid, use newList to create lists.
type list[T any] struct {
	root listElem[T]
}

type listElem[T any] struct {
	next *listElem[T]
	prev *listElem[T]
	v    T
}

func newList[T any]() *list[T] {
	l := new(list[T])
	l.root.next = &l.root
	l.root.prev = &l.root
	return l
}

// pushElem inserts e at the front of the list (most-recently-used end).
func (l *list[T]) pushElem(e *listElem[T]) {
	e.prev = &l.root
	e.next = l.root.next
	e.prev.next = e
	e.next.prev = e
}

func (l *list[T]) moveToFront(e *listElem[T]) {
	l.remove(e)
	l.pushElem(e)
}

func (l *list[T]) remove(e *listElem[T]) {
	e.prev.next = e.next
	e.next.prev = e.prev
	e.next = nil
	e.prev = nil
}

// removeLast removes and returns the least-recently-used element.
func (l *list[T]) removeLast() *listElem[T] {
	last := l.root.prev
	l.remove(last)
	return last
}

// forEach walks the list from most- to least-recently-used, calling fn for
// each element until fn returns false.
func (l *list[T]) forEach(fn func(T) bool) {
	for e := l.root.next; e != &l.root; e = e.next {
		if !fn(e.v) {
			return
		}
	}
}
