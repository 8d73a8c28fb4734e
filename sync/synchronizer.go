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

// Package sync drives the ingestor loop described in spec.md §4: it
// polls chain.Client for UniRep logs, totally orders them, and folds
// each one into store.Store through a dispatch table of per-topic
// handlers. The in-memory global state tree for the active epoch is
// owned exclusively by this package's Synchronizer -- it is never
// shared outside the ingestor goroutine, and is always reconstructible
// from store.Store by replay (spec.md §5, §9).
package sync

import (
	"fmt"
	"hash"
	"math/big"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/prover"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// Synchronizer owns the ingestor's collaborators and the current
// epoch's in-memory global state tree.
type Synchronizer struct {
	chain    chain.Client
	store    *store.Store
	verifier prover.Verifier
	notifier Notifier

	hasher       tree.Hasher
	newDigest    func() hash.Hash
	defaultLeaf  *big.Int
	emptyUSTRoot *big.Int

	gst      *tree.GlobalStateTree
	gstEpoch uint64

	stop chan struct{}
}

// NewSynchronizer resolves the protocol-constant default leaf and
// empty user-state tree root for common.Conf.Curve, ensures epoch 1
// exists on first boot, and rebuilds the current unsealed epoch's
// global state tree by replaying its persisted leaves.
func NewSynchronizer(chainClient chain.Client, db *store.Store, verifier prover.Verifier, notifier Notifier) (*Synchronizer, error) {
	newDigest := func() hash.Hash {
		return common.HashFactory(&common.Conf.Curve)
	}
	digest := newDigest()
	if digest == nil {
		return nil, fmt.Errorf("failed to resolve hash function for curve %s", common.Conf.Curve)
	}
	hasher := tree.NewMiMCHasher(digest)

	emptyUSTRoot, err := tree.EmptyUserStateTreeRoot(newDigest(), common.Conf.USTDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute empty user state tree root: %s", err.Error())
	}
	defaultLeaf := tree.DefaultGSTLeaf(hasher, emptyUSTRoot)

	s := &Synchronizer{
		chain:        chainClient,
		store:        db,
		verifier:     verifier,
		notifier:     notifier,
		hasher:       hasher,
		newDigest:    newDigest,
		defaultLeaf:  defaultLeaf,
		emptyUSTRoot: emptyUSTRoot,
		stop:         make(chan struct{}),
	}

	if err := db.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CurrentEpoch(); err == store.ErrNotFound {
			if _, err := tx.CreateEpoch(1); err != nil {
				return err
			}
		} else if err != nil {
			return err
		}
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to bootstrap genesis epoch: %s", err.Error())
	}

	if err := db.View(func(tx *store.Tx) error {
		return s.loadGST(tx)
	}); err != nil {
		return nil, err
	}

	return s, nil
}

// loadGST rebuilds the in-memory global state tree for the current
// unsealed epoch by replaying its persisted leaves in index order
// (spec.md §5: "rebuild-from-log is always available").
func (s *Synchronizer) loadGST(tx *store.Tx) error {
	epoch, err := tx.UnsealedEpoch()
	if err != nil {
		return fmt.Errorf("failed to resolve unsealed epoch: %s", err.Error())
	}

	gst := tree.NewGlobalStateTree(common.Conf.GSTDepth, s.hasher, s.defaultLeaf)

	leaves, err := tx.GSTLeaves(epoch.Number)
	if err != nil {
		return fmt.Errorf("failed to load global state tree leaves: %s", err.Error())
	}

	for _, l := range leaves {
		leaf, err := common.DecodeField(l.Hash)
		if err != nil {
			return fmt.Errorf("failed to decode persisted gst leaf %d: %s", l.Index, err.Error())
		}
		if _, _, err := gst.Insert(leaf); err != nil {
			return fmt.Errorf("failed to replay gst leaf %d: %s", l.Index, err.Error())
		}
	}

	s.gst = gst
	s.gstEpoch = epoch.Number
	return nil
}

// resetGST drops the in-memory tree and replaces it with a fresh empty
// one for the epoch that follows a seal (spec.md §4.4, EpochEnded).
func (s *Synchronizer) resetGST(epoch uint64) {
	s.gst = tree.NewGlobalStateTree(common.Conf.GSTDepth, s.hasher, s.defaultLeaf)
	s.gstEpoch = epoch
}
