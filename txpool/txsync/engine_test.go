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

package txsync

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bcos-go/txpool/common"
	"github.com/bcos-go/txpool/event"
	"github.com/bcos-go/txpool/txpool/storage"
)

type fakeTx struct {
	hash  common.Hash
	known *common.NodeSet
}

func newFakeTx(tag byte) *fakeTx {
	var h common.Hash
	h[common.HashLength-1] = tag
	return &fakeTx{hash: h, known: common.NewNodeSet()}
}

func (t *fakeTx) Hash() common.Hash           { return t.hash }
func (t *fakeTx) Nonce() uint64               { return 0 }
func (t *fakeTx) BlockLimit() uint64          { return 0 }
func (t *fakeTx) Encode() []byte              { return t.hash.Bytes() }
func (t *fakeTx) ImportTime() int64           { return 0 }
func (t *fakeTx) SetImportTime(int64)         {}
func (t *fakeTx) Sealed() bool                { return false }
func (t *fakeTx) SetSealed(bool)              {}
func (t *fakeTx) Synced() bool                { return false }
func (t *fakeTx) SetSynced(bool)              {}
func (t *fakeTx) KnownNodes() *common.NodeSet { return t.known }
func (t *fakeTx) HasCallback() bool           { return false }
func (t *fakeTx) FireCallback(bool, error)    {}

// fakeBlock implements Block over a plain slice of raw tx bytes.
type fakeBlock struct {
	hashes []common.Hash
	raws   [][]byte
}

func (b *fakeBlock) TxHashes() []common.Hash { return b.hashes }
func (b *fakeBlock) Number() uint64          { return 0 }
func (b *fakeBlock) Encode() []byte          { return encodeFakeBlock(b.raws) }
func (b *fakeBlock) Txs() [][]byte           { return b.raws }

// encodeFakeBlock/decodeFakeBlock give the fake BlockFactory a trivial
// length-prefixed wire format so CreateBlockFromBytes can round-trip what
// CreateBlockWithTxs produced, without pulling in the real rlp codec.
func encodeFakeBlock(raws [][]byte) []byte {
	var out []byte
	for _, r := range raws {
		out = append(out, byte(len(r)))
		out = append(out, r...)
	}
	return out
}

func decodeFakeBlock(data []byte) [][]byte {
	var out [][]byte
	for len(data) > 0 {
		n := int(data[0])
		data = data[1:]
		out = append(out, data[:n])
		data = data[n:]
	}
	return out
}

type fakeBlockFactory struct{}

func (fakeBlockFactory) CreateBlockFromBytes(data []byte) (Block, error) {
	return &fakeBlock{raws: decodeFakeBlock(data)}, nil
}

func (fakeBlockFactory) CreateBlockWithTxs(txs []storage.Tx) Block {
	b := &fakeBlock{}
	for _, tx := range txs {
		b.hashes = append(b.hashes, tx.Hash())
		b.raws = append(b.raws, tx.Encode())
	}
	return b
}

// fakeTxFactory decodes raw bytes produced by fakeTx.Encode, i.e. a bare
// common.Hash, back into a fakeTx carrying that hash.
type fakeTxFactory struct {
	rejectTag byte // if non-zero, CreateTransaction errors for this tag
}

func (f fakeTxFactory) CreateTransaction(data []byte, checkSig bool) (storage.Tx, error) {
	if len(data) != common.HashLength {
		return nil, errors.New("fakeTxFactory: malformed tx bytes")
	}
	if f.rejectTag != 0 && data[common.HashLength-1] == f.rejectTag {
		return nil, errors.New("fakeTxFactory: rejected tag")
	}
	var h common.Hash
	copy(h[:], data)
	return &fakeTx{hash: h, known: common.NewNodeSet()}, nil
}

type sentMessage struct {
	module  string
	peer    common.NodeID
	payload []byte
}

type fakeFront struct {
	mu   sync.Mutex
	sent []sentMessage
	resp []sentMessage // AsyncSendResponse calls

	// onSend, if set, is invoked synchronously by AsyncSendMessageByNodeID
	// and its result handed straight to the callback, so RequestMissedTxs
	// tests stay deterministic. If unset, the callback is never invoked,
	// as if the peer never answered.
	onSend func(payload []byte) (err error, resp []byte)
}

func (f *fakeFront) AsyncSendMessageByNodeID(module string, peer common.NodeID, payload []byte, cb func(err error, resp []byte)) {
	f.mu.Lock()
	f.sent = append(f.sent, sentMessage{module, peer, payload})
	onSend := f.onSend
	f.mu.Unlock()
	if onSend != nil {
		err, resp := onSend(payload)
		cb(err, resp)
	}
}

func (f *fakeFront) AsyncSendResponse(uuid string, module string, peer common.NodeID, payload []byte, cb func(err error)) {
	f.mu.Lock()
	f.resp = append(f.resp, sentMessage{module, peer, payload})
	f.mu.Unlock()
	cb(nil)
}

func (f *fakeFront) lastSent() (sentMessage, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return sentMessage{}, false
	}
	return f.sent[len(f.sent)-1], true
}

func (f *fakeFront) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

type fakeLedger struct {
	txs []storage.Tx
	err error
}

func (l *fakeLedger) AsyncGetBatchTxs(hashes []common.Hash, withProofs bool, cb func(err error, txs []storage.Tx)) {
	cb(l.err, l.txs)
}

type fakeValidator struct {
	rejectHash map[common.Hash]bool
}

func newFakeValidator() *fakeValidator { return &fakeValidator{rejectHash: make(map[common.Hash]bool)} }

func (v *fakeValidator) Verify(tx storage.Tx) error {
	if v.rejectHash[tx.Hash()] {
		return errors.New("fakeValidator: rejected")
	}
	return nil
}

type fakeStorage struct {
	feed event.Feed

	mu         sync.Mutex
	submitted  []common.Hash
	submitErr  error
	fetchNewTx []storage.Tx
	present    map[common.Hash]storage.Tx
	unknown    map[common.Hash]bool
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{present: make(map[common.Hash]storage.Tx), unknown: make(map[common.Hash]bool)}
}

func (s *fakeStorage) SubscribeReady(ch chan struct{}) event.Subscription { return s.feed.Subscribe(ch) }

func (s *fakeStorage) FilterUnknown(hashes []common.Hash, peer common.NodeID) []common.Hash {
	var out []common.Hash
	for _, h := range hashes {
		if s.unknown[h] {
			out = append(out, h)
		}
	}
	return out
}

func (s *fakeStorage) Fetch(hashes []common.Hash) (present []storage.Tx, missed []common.Hash) {
	for _, h := range hashes {
		if tx, ok := s.present[h]; ok {
			present = append(present, tx)
		} else {
			missed = append(missed, h)
		}
	}
	return present, missed
}

func (s *fakeStorage) FetchNew(limit int) []storage.Tx { return s.fetchNewTx }

func (s *fakeStorage) Contains(hash common.Hash) bool {
	_, ok := s.present[hash]
	return ok
}

func (s *fakeStorage) Submit(tx storage.Tx) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.submitErr != nil {
		return s.submitErr
	}
	s.submitted = append(s.submitted, tx.Hash())
	return nil
}

func (s *fakeStorage) submittedHashes() []common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]common.Hash, len(s.submitted))
	copy(out, s.submitted)
	return out
}

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition not met within %s", timeout)
}

func newTestEngine(cfg Config, st Storage, front FrontService, txFactory TxFactory, blockFactory BlockFactory, ledger Ledger, validator Validator, self common.NodeID) *Engine {
	return NewEngine(cfg, st, front, txFactory, blockFactory, ledger, validator, self)
}

func TestEnginePropagateNewTxsAnnouncesToSelectedPeers(t *testing.T) {
	st := newFakeStorage()
	tx := newFakeTx(1)
	st.fetchNewTx = []storage.Tx{tx}

	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")
	e.SetConnectedNodes([]common.NodeID{"peerA"})
	e.SetConsensusNodes([]common.NodeID{"peerA", "self"})

	e.propagateNewTxs()

	sent, ok := front.lastSent()
	require.True(t, ok)
	assert.Equal(t, common.NodeID("peerA"), sent.peer)
	assert.Equal(t, Module, sent.module)
	assert.True(t, tx.KnownNodes().Contains("peerA"))

	_, status, _, _, err := Decode(sent.payload)
	require.NoError(t, err)
	require.NotNil(t, status)
	assert.Equal(t, []common.Hash{tx.Hash()}, status.Hashes)
}

func TestEnginePropagateNewTxsSkipsAlreadyKnownPeers(t *testing.T) {
	st := newFakeStorage()
	tx := newFakeTx(1)
	tx.known.Add("peerA")
	st.fetchNewTx = []storage.Tx{tx}

	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")
	e.SetConnectedNodes([]common.NodeID{"peerA"})
	e.SetConsensusNodes([]common.NodeID{"peerA", "self"})

	e.propagateNewTxs()

	assert.Equal(t, 0, front.sentCount())
}

func TestEngineHandleStatusAnnounceRequestsUnknownHashes(t *testing.T) {
	st := newFakeStorage()
	missing := newFakeTx(9).Hash()
	st.unknown[missing] = true

	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	payload, err := EncodeStatusAnnounce(&StatusAnnounce{Hashes: []common.Hash{missing}})
	require.NoError(t, err)
	require.NoError(t, e.HandleMessage("peerA", "req-1", payload))

	sent, ok := front.lastSent()
	require.True(t, ok)
	_, _, req, _, err := Decode(sent.payload)
	require.NoError(t, err)
	require.NotNil(t, req)
	assert.Equal(t, []common.Hash{missing}, req.Hashes)
}

func TestEngineHandleStatusAnnounceNoopWhenAllKnown(t *testing.T) {
	st := newFakeStorage()
	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	payload, err := EncodeStatusAnnounce(&StatusAnnounce{Hashes: []common.Hash{newFakeTx(1).Hash()}})
	require.NoError(t, err)
	require.NoError(t, e.HandleMessage("peerA", "req-1", payload))

	assert.Equal(t, 0, front.sentCount())
}

func TestEngineHandleTxsRequestRespondsWithPresentTxs(t *testing.T) {
	st := newFakeStorage()
	tx := newFakeTx(1)
	st.present[tx.Hash()] = tx

	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	payload, err := EncodeTxsRequest(&TxsRequest{Hashes: []common.Hash{tx.Hash()}})
	require.NoError(t, err)
	require.NoError(t, e.HandleMessage("peerA", "req-7", payload))

	require.Len(t, front.resp, 1)
	assert.Equal(t, common.NodeID("peerA"), front.resp[0].peer)
	_, _, _, resp, err := Decode(front.resp[0].payload)
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, [][]byte{tx.Encode()}, decodeFakeBlock(resp.BlockPayload))
}

func TestEngineHandleTxsResponseSubmitsVerifiedTxs(t *testing.T) {
	st := newFakeStorage()
	front := &fakeFront{}
	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	tx := newFakeTx(3)
	blockPayload := encodeFakeBlock([][]byte{tx.Encode()})
	payload, err := EncodeTxsResponse(&TxsResponse{BlockPayload: blockPayload})
	require.NoError(t, err)
	require.NoError(t, e.HandleMessage("peerA", "", payload))

	assert.Equal(t, []common.Hash{tx.Hash()}, st.submittedHashes())
}

func TestEngineHandleTxsResponseSkipsRejectedTxs(t *testing.T) {
	st := newFakeStorage()
	front := &fakeFront{}
	validator := newFakeValidator()
	rejected := newFakeTx(4)
	validator.rejectHash[rejected.Hash()] = true

	e := newTestEngine(Config{}, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, validator, "self")

	blockPayload := encodeFakeBlock([][]byte{rejected.Encode()})
	payload, err := EncodeTxsResponse(&TxsResponse{BlockPayload: blockPayload})
	require.NoError(t, err)
	require.NoError(t, e.HandleMessage("peerA", "", payload))

	assert.Empty(t, st.submittedHashes())
}

func TestEngineRequestMissedTxsRecoversFromPeer(t *testing.T) {
	st := newFakeStorage()
	tx := newFakeTx(5)
	blockPayload := encodeFakeBlock([][]byte{tx.Encode()})
	txsResp, err := EncodeTxsResponse(&TxsResponse{BlockPayload: blockPayload})
	require.NoError(t, err)

	front := &fakeFront{onSend: func(payload []byte) (error, []byte) { return nil, txsResp }}
	ledger := &fakeLedger{}
	cfg := Config{PeerRequestTimeout: 50 * time.Millisecond}
	e := newTestEngine(cfg, st, front, fakeTxFactory{}, fakeBlockFactory{}, ledger, newFakeValidator(), "self")

	done := make(chan error, 1)
	e.RequestMissedTxs("peerA", []common.Hash{tx.Hash()}, func(err error) { done <- err })

	assert.NoError(t, <-done)
	assert.Equal(t, []common.Hash{tx.Hash()}, st.submittedHashes())
}

func TestEngineRequestMissedTxsPeerErrorFallsBackToLedger(t *testing.T) {
	st := newFakeStorage()
	missed := newFakeTx(6)
	front := &fakeFront{onSend: func(payload []byte) (error, []byte) { return errors.New("peer unreachable"), nil }}
	ledger := &fakeLedger{txs: []storage.Tx{missed}}
	cfg := Config{PeerRequestTimeout: 50 * time.Millisecond}
	e := newTestEngine(cfg, st, front, fakeTxFactory{}, fakeBlockFactory{}, ledger, newFakeValidator(), "self")

	done := make(chan error, 1)
	e.RequestMissedTxs("peerA", []common.Hash{missed.Hash()}, func(err error) { done <- err })

	assert.NoError(t, <-done)
	assert.Equal(t, []common.Hash{missed.Hash()}, st.submittedHashes())
}

func TestEngineRequestMissedTxsFallbackIncompleteFails(t *testing.T) {
	st := newFakeStorage()
	missed := newFakeTx(7)
	front := &fakeFront{onSend: func(payload []byte) (error, []byte) { return errors.New("peer unreachable"), nil }}
	ledger := &fakeLedger{txs: nil} // ledger can't supply the missing tx either
	cfg := Config{PeerRequestTimeout: 50 * time.Millisecond}
	e := newTestEngine(cfg, st, front, fakeTxFactory{}, fakeBlockFactory{}, ledger, newFakeValidator(), "self")

	done := make(chan error, 1)
	e.RequestMissedTxs("peerA", []common.Hash{missed.Hash()}, func(err error) { done <- err })

	assert.ErrorIs(t, <-done, ErrTransactionsMissing)
}

func TestEngineRequestMissedTxsTimeoutFallsBackToLedger(t *testing.T) {
	st := newFakeStorage()
	missed := newFakeTx(8)
	front := &fakeFront{} // never invokes cb: simulates a peer that never answers
	ledger := &fakeLedger{txs: []storage.Tx{missed}}
	cfg := Config{PeerRequestTimeout: 20 * time.Millisecond}
	e := newTestEngine(cfg, st, front, fakeTxFactory{}, fakeBlockFactory{}, ledger, newFakeValidator(), "self")

	done := make(chan error, 1)
	e.RequestMissedTxs("peerA", []common.Hash{missed.Hash()}, func(err error) { done <- err })

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("RequestMissedTxs did not time out and fall back to the ledger in time")
	}
	assert.Equal(t, []common.Hash{missed.Hash()}, st.submittedHashes())
}

func TestEngineInGroupReflectsConsensusMembership(t *testing.T) {
	st := newFakeStorage()
	e := newTestEngine(Config{}, st, &fakeFront{}, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	assert.False(t, e.InGroup())
	e.SetConsensusNodes([]common.NodeID{"self", "peerA"})
	assert.True(t, e.InGroup())
}

// TestEngineInGroupReflectsObserverMembership covers the other half of
// group membership: a node that is only an observer, never a consensus
// sealer, is still in the group.
func TestEngineInGroupReflectsObserverMembership(t *testing.T) {
	st := newFakeStorage()
	e := newTestEngine(Config{}, st, &fakeFront{}, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")

	assert.False(t, e.InGroup())
	e.SetObserverNodes([]common.NodeID{"self", "peerB"})
	assert.True(t, e.InGroup())
}

func TestEngineStartStopDrivesLoopFromReadySignal(t *testing.T) {
	st := newFakeStorage()
	tx := newFakeTx(2)
	st.fetchNewTx = []storage.Tx{tx}

	front := &fakeFront{}
	cfg := Config{SyncInterval: time.Hour} // large enough that only the ready signal can trigger a pass
	e := newTestEngine(cfg, st, front, fakeTxFactory{}, fakeBlockFactory{}, &fakeLedger{}, newFakeValidator(), "self")
	e.SetConnectedNodes([]common.NodeID{"peerA"})
	e.SetConsensusNodes([]common.NodeID{"peerA", "self"})

	e.Start()
	defer e.Stop()

	st.feed.Send(struct{}{})
	waitFor(t, time.Second, func() bool { return front.sentCount() > 0 })
}
