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

import (
	"sync"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/txpool"
)

// Ledger is the mock's txpool.Ledger, an in-memory stand-in for the
// persistent chain/state backend the facade treats as an opaque injected
// collaborator.
type Ledger struct {
	mu sync.Mutex

	stored map[common.Hash][]byte
	number uint64
	hashes map[uint64]common.Hash
	nonces txpool.NonceMap
	nodes  map[txpool.NodeType][]common.NodeID
}

// NewLedger returns an empty Ledger at block number 0.
func NewLedger() *Ledger {
	return &Ledger{
		stored: make(map[common.Hash][]byte),
		hashes: make(map[uint64]common.Hash),
		nonces: make(txpool.NonceMap),
		nodes:  make(map[txpool.NodeType][]common.NodeID),
	}
}

// SetBlockNumber fixes the value AsyncGetBlockNumber reports.
func (l *Ledger) SetBlockNumber(n uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.number = n
}

// SetBlockHash records the hash a given block number resolves to.
func (l *Ledger) SetBlockHash(number uint64, hash common.Hash) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hashes[number] = hash
}

// SetNonces replaces the full start-block-to-nonce-list mapping
// AsyncGetNonceList serves from.
func (l *Ledger) SetNonces(nonces txpool.NonceMap) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nonces = nonces
}

// SetNodeList fixes the node set AsyncGetNodeListByType reports for typ.
func (l *Ledger) SetNodeList(typ txpool.NodeType, nodes []common.NodeID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nodes[typ] = append([]common.NodeID(nil), nodes...)
}

// Stored reports whether raw bytes for hash were ever committed via
// AsyncStoreTransactions, letting a test assert on pre-commit behavior.
func (l *Ledger) Stored(hash common.Hash) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.stored[hash]
	return ok
}

func (l *Ledger) AsyncStoreTransactions(raw [][]byte, hashes []common.Hash, cb func(err error)) {
	l.mu.Lock()
	for i, h := range hashes {
		l.stored[h] = raw[i]
	}
	l.mu.Unlock()
	go cb(nil)
}

func (l *Ledger) AsyncGetBatchTxs(hashes []common.Hash, withProofs bool, cb func(err error, txs []txpool.Tx)) {
	l.mu.Lock()
	out := make([]txpool.Tx, 0, len(hashes))
	for _, h := range hashes {
		raw, ok := l.stored[h]
		if !ok {
			continue
		}
		tx, err := DecodeTx(raw, false)
		if err != nil {
			continue
		}
		out = append(out, tx)
	}
	l.mu.Unlock()
	go cb(nil, out)
}

func (l *Ledger) AsyncGetBlockNumber(cb func(err error, number uint64)) {
	l.mu.Lock()
	n := l.number
	l.mu.Unlock()
	go cb(nil, n)
}

func (l *Ledger) AsyncGetBlockHashByNumber(number uint64, cb func(err error, hash common.Hash)) {
	l.mu.Lock()
	h := l.hashes[number]
	l.mu.Unlock()
	go cb(nil, h)
}

func (l *Ledger) AsyncGetNonceList(start, offset uint64, cb func(err error, nonces txpool.NonceMap)) {
	l.mu.Lock()
	out := make(txpool.NonceMap)
	for block, nonces := range l.nonces {
		if block >= start && block <= offset {
			out[block] = nonces
		}
	}
	l.mu.Unlock()
	go cb(nil, out)
}

func (l *Ledger) AsyncGetNodeListByType(typ txpool.NodeType, cb func(err error, nodes []common.NodeID)) {
	l.mu.Lock()
	nodes := append([]common.NodeID(nil), l.nodes[typ]...)
	l.mu.Unlock()
	go cb(nil, nodes)
}
