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
	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/rlp"
	"github.com/bcos-go/txpool/txpool"
)

// wireBlock is the RLP envelope Block is carried in, standing in for
// whatever consensus block container a real BlockFactory would wrap.
type wireBlock struct {
	Number uint64
	Hashes []common.Hash
	TxsRaw [][]byte
}

// Block is the mock's txpool.Block implementation.
type Block struct {
	wire wireBlock
	raw  []byte
}

func (b *Block) TxHashes() []common.Hash { return b.wire.Hashes }
func (b *Block) Number() uint64          { return b.wire.Number }
func (b *Block) Encode() []byte          { return b.raw }
func (b *Block) Txs() [][]byte           { return b.wire.TxsRaw }

// BlockFactory is the mock's txpool.BlockFactory.
type BlockFactory struct{}

func (BlockFactory) CreateBlock() txpool.Block {
	return &Block{}
}

func (BlockFactory) CreateBlockFromBytes(data []byte) (txpool.Block, error) {
	var wire wireBlock
	if err := rlp.DecodeBytes(data, &wire); err != nil {
		return nil, err
	}
	return &Block{wire: wire, raw: data}, nil
}

func (BlockFactory) CreateBlockWithTxs(txs []txpool.Tx) txpool.Block {
	wire := wireBlock{Hashes: make([]common.Hash, len(txs)), TxsRaw: make([][]byte, len(txs))}
	for i, tx := range txs {
		wire.Hashes[i] = tx.Hash()
		wire.TxsRaw[i] = tx.Encode()
	}
	raw, err := rlp.EncodeToBytes(&wire)
	if err != nil {
		// Encoding a list of byte slices cannot fail; a real BlockFactory
		// would propagate the error through a fallible constructor instead.
		raw = nil
	}
	return &Block{wire: wire, raw: raw}
}

// NewBlock builds a Block with an explicit block number, used by tests that
// exercise fill_block/verify_block against a specific height.
func NewBlock(number uint64, txs []txpool.Tx) *Block {
	b := BlockFactory{}.CreateBlockWithTxs(txs).(*Block)
	b.wire.Number = number
	raw, err := rlp.EncodeToBytes(&b.wire)
	if err == nil {
		b.raw = raw
	}
	return b
}

// ResultFactory is the mock's txpool.TxResultFactory.
type ResultFactory struct{}

type result struct {
	hash   common.Hash
	status txpool.Status
	nonce  uint64
}

func (r *result) Hash() common.Hash   { return r.hash }
func (r *result) Status() txpool.Status { return r.status }
func (r *result) Nonce() uint64       { return r.nonce }

func (ResultFactory) CreateResult(hash common.Hash, status txpool.Status) txpool.SubmitResult {
	return &result{hash: hash, status: status}
}
