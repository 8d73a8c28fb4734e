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

// Package tree is the in-memory Merkle tree engine (spec.md §4.2): a
// fixed-depth incremental binary tree for the active-epoch GST, and
// sparse Merkle trees for epoch trees and user-state trees. Neither
// tree type touches the database directly -- ownership and durability
// belong to store.Store, which persists GSTLeaf and attestation rows;
// trees are rebuilt by replaying those rows, not from stored snapshots.
package tree

import (
	"errors"
	"fmt"
	"hash"
	"math/big"
	"sync"

	"github.com/providenetwork/smt"
)

// SMTOneLeaf is the protocol-constant one-leaf value for sparse Merkle
// trees (epoch trees, user-state trees). NewSparseTree does not use it:
// unset slots carry the smt library's all-zero placeholder.
var SMTOneLeaf = []byte{0x01}

// SparseTree wraps providenetwork/smt with the key/value conventions
// the epoch tree and user-state tree both need: big.Int keys written as
// 32-byte big-endian words, raw byte values. depth is recorded but does
// not bound or truncate keys.
type SparseTree struct {
	mutex *sync.Mutex
	hash  hash.Hash
	tree  *smt.SparseMerkleTree
	depth uint
}

// NewSparseTree constructs an empty sparse Merkle tree of the given
// depth using h as the underlying hash function.
func NewSparseTree(h hash.Hash, depth uint) *SparseTree {
	return &SparseTree{
		mutex: &sync.Mutex{},
		hash:  h,
		tree:  smt.NewSparseMerkleTree(smt.NewSimpleMap(), smt.NewSimpleMap(), h),
		depth: depth,
	}
}

// ImportSparseTree rebuilds a sparse Merkle tree from its exported node
// and value maps, the inverse of Export. store.Store does not call it;
// stores rebuild trees by replaying persisted rows.
func ImportSparseTree(h hash.Hash, depth uint, nodes, values smt.MapStore, root []byte) *SparseTree {
	return &SparseTree{
		mutex: &sync.Mutex{},
		hash:  h,
		tree:  smt.ImportSparseMerkleTree(nodes, values, h, root),
		depth: depth,
	}
}

// Export returns the node and value maps needed to reconstruct this
// tree later via ImportSparseTree.
func (s *SparseTree) Export() (nodes, values smt.MapStore, root []byte) {
	return s.tree.Nodes(), s.tree.Values(), s.tree.Root()
}

func keyBytes(key *big.Int) []byte {
	return key.FillBytes(make([]byte, 32))
}

// Update sets key -> value, returning the new root. Update itself does
// not check key against the tree's depth; handleAttestationSubmitted
// rejects an epochKey >= 2^D_epoch before it is recorded.
func (s *SparseTree) Update(key *big.Int, value []byte) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	root, err := s.tree.Update(keyBytes(key), value)
	if err != nil {
		return nil, fmt.Errorf("failed to update sparse tree at key %s: %s", key.String(), err.Error())
	}
	return root, nil
}

// Root returns the current tree root.
func (s *SparseTree) Root() ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	root := s.tree.Root()
	if len(root) == 0 {
		return nil, errors.New("sparse tree does not yet contain a valid root")
	}
	return root, nil
}

// Get returns the raw value stored at key, or smt's not-found error.
func (s *SparseTree) Get(key *big.Int) ([]byte, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.tree.Get(keyBytes(key))
}

// MerkleProof is the sibling path plus claimed leaf needed to verify
// or assemble a circuit witness for a sparse tree key.
type MerkleProof struct {
	SideNodes [][]byte
	Key       []byte
	Value     []byte
}

// Prove returns a Merkle proof of inclusion (or non-inclusion) for key.
func (s *SparseTree) Prove(key *big.Int) (*MerkleProof, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	kb := keyBytes(key)
	proof, err := s.tree.Prove(kb)
	if err != nil {
		return nil, fmt.Errorf("failed to generate sparse tree merkle proof: %s", err.Error())
	}

	val, _ := s.tree.Get(kb)

	return &MerkleProof{
		SideNodes: proof.SideNodes,
		Key:       kb,
		Value:     val,
	}, nil
}

// VerifyProof checks that key -> value is consistent with root.
func (s *SparseTree) VerifyProof(proof *MerkleProof, root []byte, value []byte) bool {
	sp := smt.SparseMerkleProof{SideNodes: proof.SideNodes}
	return smt.VerifyProof(sp, root, proof.Key, value, s.hash)
}
