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

// Package txsync is the peer protocol described in spec.md §4.5: a
// reactor that forwards newly admitted transactions and fetches missed
// ones on demand during block verification.
package txsync

import (
	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/rlp"
)

// Kind identifies one of the three wire messages carried over the
// FrontService module id "TxsSync".
type Kind uint8

const (
	KindStatusAnnounce Kind = iota
	KindTxsRequest
	KindTxsResponse
)

// Module is the FrontService module id this package registers its
// messages under.
const Module = "TxsSync"

// StatusAnnounce tells the receiver "I hold these hashes".
type StatusAnnounce struct {
	Hashes []common.Hash
}

// TxsRequest asks the receiver to send back the listed hashes.
type TxsRequest struct {
	Hashes []common.Hash
}

// TxsResponse carries a block-like container serialized by the injected
// BlockFactory, holding the requested transactions.
type TxsResponse struct {
	BlockPayload []byte
}

// envelope wraps a message with its Kind for wire transport; RLP has no
// native sum type, so this is the pool's equivalent of a protobuf oneof.
type envelope struct {
	Kind    Kind
	Payload []byte
}

// EncodeStatusAnnounce serializes a StatusAnnounce into a wire envelope.
func EncodeStatusAnnounce(msg *StatusAnnounce) ([]byte, error) {
	return encode(KindStatusAnnounce, msg)
}

// EncodeTxsRequest serializes a TxsRequest into a wire envelope.
func EncodeTxsRequest(msg *TxsRequest) ([]byte, error) {
	return encode(KindTxsRequest, msg)
}

// EncodeTxsResponse serializes a TxsResponse into a wire envelope.
func EncodeTxsResponse(msg *TxsResponse) ([]byte, error) {
	return encode(KindTxsResponse, msg)
}

func encode(kind Kind, payload interface{}) ([]byte, error) {
	body, err := rlp.EncodeToBytes(payload)
	if err != nil {
		return nil, err
	}
	return rlp.EncodeToBytes(&envelope{Kind: kind, Payload: body})
}

// Decode inspects the envelope and returns exactly one of the three
// message types populated, matching its Kind. Unknown kinds are reported
// as an error; spec.md §7's propagation policy has callers log and drop
// rather than retry on a decode failure.
func Decode(data []byte) (kind Kind, status *StatusAnnounce, req *TxsRequest, resp *TxsResponse, err error) {
	var env envelope
	if err = rlp.DecodeBytes(data, &env); err != nil {
		return 0, nil, nil, nil, err
	}
	switch env.Kind {
	case KindStatusAnnounce:
		status = new(StatusAnnounce)
		err = rlp.DecodeBytes(env.Payload, status)
	case KindTxsRequest:
		req = new(TxsRequest)
		err = rlp.DecodeBytes(env.Payload, req)
	case KindTxsResponse:
		resp = new(TxsResponse)
		err = rlp.DecodeBytes(env.Payload, resp)
	default:
		return env.Kind, nil, nil, nil, errUnknownKind
	}
	return env.Kind, status, req, resp, err
}
