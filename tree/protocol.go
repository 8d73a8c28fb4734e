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
)

// EmptyUserStateTreeRoot returns the root of an all-zeroes user-state
// tree of the given depth -- the emptyUSTRoot input to defaultGSTLeaf
// (spec.md §4.2). h is used for this computation only; callers should
// pass a freshly constructed hash.Hash, not one shared with a live tree.
func EmptyUserStateTreeRoot(h hash.Hash, depth uint) (*big.Int, error) {
	t := NewSparseTree(h, depth)
	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(root), nil
}

// DefaultGSTLeaf computes H(0, emptyUSTRoot), the value every unfilled
// global state tree slot resolves to (spec.md §4.2) so an unsigned-up
// identity is distinguishable from a signed-up one with a genuinely
// empty reputation tree.
func DefaultGSTLeaf(hasher Hasher, emptyUSTRoot *big.Int) *big.Int {
	return hasher(big.NewInt(0), emptyUSTRoot)
}

// HashReputation folds one attester's reputation record into the
// single field element a user-state tree leaf stores at that
// attester's key: H(H(H(posRep, negRep), graffiti), signUp).
func HashReputation(hasher Hasher, posRep, negRep, graffiti, signUp *big.Int) *big.Int {
	h := hasher(posRep, negRep)
	h = hasher(h, graffiti)
	return hasher(h, signUp)
}

// InitUserStateTreeRoot computes computeInitUSTRoot(depth, attesterID,
// airdropAmount) (spec.md §4.4, UserSignedUp): an all-zeroes UST of the
// given depth, with a signup-reward reputation record written at
// attesterID's key when airdropAmount is positive. digest is a freshly
// constructed hash.Hash, not one shared with a live tree.
func InitUserStateTreeRoot(digest hash.Hash, hasher Hasher, depth uint, attesterID, airdropAmount *big.Int) (*big.Int, error) {
	t := NewSparseTree(digest, depth)

	if airdropAmount.Sign() > 0 {
		leaf := HashReputation(hasher, airdropAmount, big.NewInt(0), big.NewInt(0), big.NewInt(1))
		if _, err := t.Update(attesterID, leaf.FillBytes(make([]byte, 32))); err != nil {
			return nil, err
		}
	}

	root, err := t.Root()
	if err != nil {
		return nil, err
	}
	return new(big.Int).SetBytes(root), nil
}
