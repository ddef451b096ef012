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

package mock

import "sync/atomic"

// Sealer is the mock's txpool.Sealer, recording the most recently
// reported unsealed_size so a test can assert storage notifies it on
// every change.
type Sealer struct {
	size  atomic.Int64
	calls atomic.Int64
}

func NewSealer() *Sealer { return &Sealer{} }

func (s *Sealer) AsyncNoteUnsealedSize(size int, cb func(err error)) {
	s.size.Store(int64(size))
	s.calls.Add(1)
	go cb(nil)
}

// LastSize returns the most recently reported unsealed size.
func (s *Sealer) LastSize() int { return int(s.size.Load()) }

// Calls returns how many times AsyncNoteUnsealedSize has fired.
func (s *Sealer) Calls() int { return int(s.calls.Load()) }
