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

// Package mock provides in-memory fakes of every capability the facade
// package txpool injects (Ledger, FrontService, Sealer, BlockFactory,
// TxFactory, TxResultFactory), generalized from the teacher's
// legacypool_test.go fake-backend shape to this pool's
// injected-capability boundary. Tests build a Pool against these fakes
// instead of a real ledger, transport or block assembler.
package mock
