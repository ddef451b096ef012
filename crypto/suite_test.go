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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSuiteHashMatchesKeccak256(t *testing.T) {
	data := []byte("duplicate_tx")
	assert.Equal(t, Keccak256Hash(data), DefaultSuite.Hash(data))
}

func TestSuiteVerifyAcceptsSignatureWithOrWithoutRecoveryByte(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub := FromECDSAPub(&key.PublicKey)
	digest := Keccak256Hash([]byte("check_nonce")).Bytes()

	sig, err := Sign(digest, key)
	require.NoError(t, err)
	require.Len(t, sig, SignatureLength)

	assert.True(t, DefaultSuite.Verify(sig, digest, pub), "full signature with recovery byte")
	assert.True(t, DefaultSuite.Verify(sig[:SignatureLength-1], digest, pub), "trimmed 64-byte signature")
}

func TestSuiteVerifyRejectsWrongKey(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	other, err := GenerateKey()
	require.NoError(t, err)
	digest := Keccak256Hash([]byte("batch_fetch")).Bytes()

	sig, err := Sign(digest, key)
	require.NoError(t, err)

	assert.False(t, DefaultSuite.Verify(sig, digest, FromECDSAPub(&other.PublicKey)))
}

func TestSuiteVerifyRejectsTamperedDigest(t *testing.T) {
	key, err := GenerateKey()
	require.NoError(t, err)
	pub := FromECDSAPub(&key.PublicKey)
	digest := Keccak256Hash([]byte("notify_block_result")).Bytes()

	sig, err := Sign(digest, key)
	require.NoError(t, err)

	tampered := Keccak256Hash([]byte("something_else")).Bytes()
	assert.False(t, DefaultSuite.Verify(sig, tampered, pub))
}

func TestSuiteGenerateKeyPairProducesDistinctUsableKeys(t *testing.T) {
	k1, err := DefaultSuite.GenerateKeyPair()
	require.NoError(t, err)
	k2, err := DefaultSuite.GenerateKeyPair()
	require.NoError(t, err)
	assert.NotEqual(t, k1.D, k2.D)

	digest := Keccak256Hash([]byte("payload")).Bytes()
	sig, err := Sign(digest, k1)
	require.NoError(t, err)
	assert.True(t, DefaultSuite.Verify(sig, digest, FromECDSAPub(&k1.PublicKey)))
}
