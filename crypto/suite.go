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

package crypto

import (
	"crypto/ecdsa"

	"github.com/bcos-go/txpool/common"
)

// Suite is the default CryptoSuite: secp256k1 signatures over a
// keccak256 digest, backing the pool's injected CryptoSuite contract
// (spec.md §6). It holds no state and is safe for concurrent use.
type Suite struct{}

// DefaultSuite is the package-level Suite instance; most callers never
// need more than one.
var DefaultSuite = Suite{}

// Hash implements CryptoSuite.hash.
func (Suite) Hash(data []byte) common.Hash {
	return Keccak256Hash(data)
}

// Verify implements CryptoSuite.verify. signature may carry a trailing
// recovery byte (as produced by Sign) or not; VerifySignature only wants
// the 64-byte [R || S] form.
func (Suite) Verify(signature, hash, publicKey []byte) bool {
	if len(signature) == SignatureLength {
		signature = signature[:SignatureLength-1]
	}
	return VerifySignature(publicKey, hash, signature)
}

// GenerateKeyPair implements CryptoSuite.generate_key_pair.
func (Suite) GenerateKeyPair() (*ecdsa.PrivateKey, error) {
	return GenerateKey()
}
