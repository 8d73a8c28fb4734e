/*
 * Copyright 2017-2022 Provide Technologies Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package tree

import (
	"hash"
	"math/big"
	"sync"
)

// NewMiMCHasher adapts a byte-oriented gnark-crypto MiMC hash.Hash into
// the two-to-one Hasher the global state tree compresses sibling pairs
// with: each operand is written as a fixed 32-byte big-endian field
// element, consistent with the encoding store.Store persists roots and
// leaves under (common.EncodeField is decimal at rest; this is the
// in-memory wire width MiMC itself expects).
func NewMiMCHasher(h hash.Hash) Hasher {
	var mutex sync.Mutex
	return func(left, right *big.Int) *big.Int {
		mutex.Lock()
		defer mutex.Unlock()

		h.Reset()
		h.Write(left.FillBytes(make([]byte, 32)))
		h.Write(right.FillBytes(make([]byte, 32)))
		return new(big.Int).SetBytes(h.Sum(nil))
	}
}
