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

package common

import (
	"database/sql/driver"
	"encoding/hex"
	"fmt"
)

// HashLength is the expected length of a transaction or block hash.
const HashLength = 32

// Hash represents the 32 byte hash of arbitrary data, as produced by the
// CryptoSuite injected into the pool. Hash never parses or carries wire
// bytes itself; it is an opaque, comparable key used by the index, the
// nonce checkers and the sync protocol.
type Hash [HashLength]byte

// BytesToHash sets the hash to the value of b, left-padding if b is short.
func BytesToHash(b []byte) Hash {
	var h Hash
	if len(b) > HashLength {
		b = b[len(b)-HashLength:]
	}
	copy(h[HashLength-len(b):], b)
	return h
}

// HexToHash sets the hash to the value of s, which may be 0x-prefixed.
func HexToHash(s string) Hash {
	if len(s) >= 2 && s[0] == '0' && (s[1] == 'x' || s[1] == 'X') {
		s = s[2:]
	}
	b, _ := hex.DecodeString(s)
	return BytesToHash(b)
}

// Bytes returns the byte representation of the hash.
func (h Hash) Bytes() []byte { return h[:] }

// Hex returns the 0x-prefixed hex string representation of the hash.
func (h Hash) Hex() string { return "0x" + hex.EncodeToString(h[:]) }

// String implements fmt.Stringer.
func (h Hash) String() string { return h.Hex() }

// IsZero reports whether the hash is the zero value.
func (h Hash) IsZero() bool { return h == Hash{} }

// TerminalString implements log.TerminalStringer, shortening the hash for
// console output.
func (h Hash) TerminalString() string {
	return fmt.Sprintf("%x…%x", h[:3], h[29:])
}

// MarshalText implements encoding.TextMarshaler.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.Hex()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(input []byte) error {
	*h = HexToHash(string(input))
	return nil
}

// Scan implements database/sql.Scanner, present for symmetry with the
// teacher's Address/Hash types though the pool itself never touches SQL.
func (h *Hash) Scan(src interface{}) error {
	b, ok := src.([]byte)
	if !ok {
		return fmt.Errorf("common: can't scan %T into Hash", src)
	}
	if len(b) != HashLength {
		return fmt.Errorf("common: can't scan []byte of len %d into Hash, want %d", len(b), HashLength)
	}
	copy(h[:], b)
	return nil
}

// Value implements database/sql/driver.Valuer.
func (h Hash) Value() (driver.Value, error) {
	return h[:], nil
}

// NodeID identifies a peer on the front-service transport. It is treated
// as an opaque string by the pool; the concrete FrontService decides what
// it means (a libp2p peer id, an enode, a group member certificate, etc).
type NodeID string
