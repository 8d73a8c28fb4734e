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

import "math/big"

// Hasher is the two-to-one compression function the global state tree
// hashes sibling pairs with. Implementations are expected to be a
// SNARK-friendly permutation (MiMC, Poseidon) keyed to the configured
// curve, not a general-purpose digest.
type Hasher func(left, right *big.Int) *big.Int

// IncrementalProof is the sibling path and path-direction bits needed to
// recompute a global state tree root from a leaf, or to assemble the
// corresponding circuit witness (spec.md §4.2, §6).
type IncrementalProof struct {
	Leaf        *big.Int
	Index       int
	Siblings    []*big.Int
	PathIndices []int
	Root        *big.Int
}
