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
	"fmt"
	"math/big"
	"sync"
)

// GlobalStateTree is the fixed-depth incremental binary Merkle tree
// described in spec.md §4.2: leaves are appended left to right starting
// at index 0, never removed or reordered, and every empty slot resolves
// to the configured default leaf so the root is always well-defined for
// the full 2^depth capacity even before it is filled.
//
// Unlike the teacher's MemoryMerkleTree this never grows vertically --
// depth is fixed up front and insertion cost is O(depth), following the
// standard incremental/zero-hash construction (Semaphore, MACI) rather
// than the teacher's resize-and-recompute approach, because the GST's
// depth is a protocol constant (spec.md Non-goals: no tree resizing).
type GlobalStateTree struct {
	mutex sync.Mutex

	depth  uint
	hash   Hasher
	leaves []*big.Int

	zeroes         []*big.Int // zeroes[i] is the root of an empty subtree of height i
	filledSubtrees []*big.Int // filledSubtrees[i] is the last-computed hash at level i along the rightmost insertion path
	root           *big.Int
}

// NewGlobalStateTree constructs an empty tree of the given depth. Every
// unfilled leaf resolves to defaultLeaf, which per spec.md §4.2 is
// H(0, emptyUserStateTreeRoot) so an unsigned-up slot is distinguishable
// from a signed-up identity with a genuinely empty reputation tree.
func NewGlobalStateTree(depth uint, h Hasher, defaultLeaf *big.Int) *GlobalStateTree {
	zeroes := make([]*big.Int, depth+1)
	zeroes[0] = defaultLeaf
	for i := uint(1); i <= depth; i++ {
		zeroes[i] = h(zeroes[i-1], zeroes[i-1])
	}

	filled := make([]*big.Int, depth)
	for i := range filled {
		filled[i] = zeroes[i]
	}

	return &GlobalStateTree{
		depth:          depth,
		hash:           h,
		leaves:         make([]*big.Int, 0),
		zeroes:         zeroes,
		filledSubtrees: filled,
		root:           zeroes[depth],
	}
}

// Depth returns the tree's fixed depth.
func (t *GlobalStateTree) Depth() uint {
	return t.depth
}

// NumLeaves returns the count of leaves inserted so far.
func (t *GlobalStateTree) NumLeaves() int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return len(t.leaves)
}

// Capacity returns 2^depth, the maximum number of leaves this tree can hold.
func (t *GlobalStateTree) Capacity() *big.Int {
	return new(big.Int).Lsh(big.NewInt(1), t.depth)
}

// Root returns the current root.
func (t *GlobalStateTree) Root() *big.Int {
	t.mutex.Lock()
	defer t.mutex.Unlock()
	return new(big.Int).Set(t.root)
}

// Leaf returns the leaf at index, or the default leaf if it hasn't been
// inserted yet.
func (t *GlobalStateTree) Leaf(index int) (*big.Int, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if index < 0 || uint(index) >= uint(1)<<t.depth {
		return nil, fmt.Errorf("leaf index %d out of bounds for tree of depth %d", index, t.depth)
	}
	if index >= len(t.leaves) {
		return t.zeroes[0], nil
	}
	return new(big.Int).Set(t.leaves[index]), nil
}

// Insert appends leaf at the next available index and returns the new
// root. It is the caller's responsibility to serialize inserts through
// the store's single-writer transaction (spec.md §4.3) -- this mutex
// only protects concurrent readers of Root/Leaf/Path from a concurrent
// Insert, not the ordering of inserts themselves.
func (t *GlobalStateTree) Insert(leaf *big.Int) (index int, root *big.Int, err error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	index = len(t.leaves)
	if uint(index) >= uint(1)<<t.depth {
		return 0, nil, fmt.Errorf("global state tree of depth %d is at capacity", t.depth)
	}

	t.leaves = append(t.leaves, new(big.Int).Set(leaf))

	current := new(big.Int).Set(leaf)
	idx := index
	for level := uint(0); level < t.depth; level++ {
		if idx%2 == 0 {
			t.filledSubtrees[level] = current
			current = t.hash(current, t.zeroes[level])
		} else {
			current = t.hash(t.filledSubtrees[level], current)
		}
		idx /= 2
	}

	t.root = current
	return index, new(big.Int).Set(t.root), nil
}

// Path returns the sibling path and path-direction bits for index, the
// inputs a userstate circuit-witness assembler needs to prove membership
// without exposing the whole tree (spec.md §6).
func (t *GlobalStateTree) Path(index int) (*IncrementalProof, error) {
	t.mutex.Lock()
	defer t.mutex.Unlock()

	if index < 0 || uint(index) >= uint(1)<<t.depth {
		return nil, fmt.Errorf("leaf index %d out of bounds for tree of depth %d", index, t.depth)
	}

	leaf := t.zeroes[0]
	if index < len(t.leaves) {
		leaf = t.leaves[index]
	}

	siblings := make([]*big.Int, t.depth)
	pathIndices := make([]int, t.depth)

	idx := index
	for level := uint(0); level < t.depth; level++ {
		pathIndices[level] = idx % 2
		siblings[level] = t.siblingAt(level, idx)
		idx /= 2
	}

	return &IncrementalProof{
		Leaf:        new(big.Int).Set(leaf),
		Index:       index,
		Siblings:    siblings,
		PathIndices: pathIndices,
		Root:        new(big.Int).Set(t.root),
	}, nil
}

// siblingAt computes the hash of the subtree rooted at the sibling of
// idx at the given level, recomputing from stored leaves where the
// sibling subtree has filled leaves and falling back to the
// precomputed zero hash otherwise.
func (t *GlobalStateTree) siblingAt(level uint, idx int) *big.Int {
	siblingIdx := idx ^ 1

	subtreeWidth := 1 << level
	subtreeStart := siblingIdx * subtreeWidth
	subtreeEnd := subtreeStart + subtreeWidth

	if subtreeStart >= len(t.leaves) {
		return t.zeroes[level]
	}

	return t.subtreeRoot(level, subtreeStart, subtreeEnd)
}

// subtreeRoot recomputes the root of the subtree of the given level
// spanning leaf range [start, end), treating any index beyond the
// filled leaves as the default leaf.
func (t *GlobalStateTree) subtreeRoot(level uint, start, end int) *big.Int {
	if level == 0 {
		if start >= len(t.leaves) {
			return t.zeroes[0]
		}
		return t.leaves[start]
	}

	mid := start + (end-start)/2
	left := t.subtreeRoot(level-1, start, mid)
	right := t.subtreeRoot(level-1, mid, end)
	return t.hash(left, right)
}

// VerifyPath checks that a proof's leaf, siblings and path indices
// recompute to root.
func VerifyPath(h Hasher, proof *IncrementalProof, root *big.Int) bool {
	current := proof.Leaf
	for i, sibling := range proof.Siblings {
		if proof.PathIndices[i] == 0 {
			current = h(current, sibling)
		} else {
			current = h(sibling, current)
		}
	}
	return current.Cmp(root) == 0
}
