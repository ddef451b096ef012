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

// Package workerpool is the small bounded-concurrency primitive shared by
// the storage pre-commit/notifier workers and the façade's verify pool
// (spec.md §5). It lives under internal/ because both txpool and
// txpool/storage need the same shape without importing one another.
package workerpool

import (
	"context"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Pool bounds how many submitted functions run concurrently. A size-1 pool
// is the spec's default for both the verify and notifier pools.
type Pool struct {
	sem    *semaphore.Weighted
	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a pool that runs at most size functions concurrently.
func New(size int) *Pool {
	if size <= 0 {
		size = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		sem:    semaphore.NewWeighted(int64(size)),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Submit blocks until a slot is free (spec.md §5's "bounded queues"), then
// runs fn on its own goroutine. It returns false without running fn if the
// pool has been closed in the meantime.
func (p *Pool) Submit(fn func()) bool {
	if err := p.sem.Acquire(p.ctx, 1); err != nil {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return true
}

// TrySubmit runs fn only if a slot is immediately free, without blocking
// the caller. Used on paths that must never block the storage lock holder.
func (p *Pool) TrySubmit(fn func()) bool {
	if p.ctx.Err() != nil {
		return false
	}
	if !p.sem.TryAcquire(1) {
		return false
	}
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		defer p.sem.Release(1)
		fn()
	}()
	return true
}

// Close stops accepting new work and waits for in-flight functions to
// finish, matching spec.md §5's stop() sequencing ("drains worker pools").
func (p *Pool) Close() {
	p.cancel()
	p.wg.Wait()
}
