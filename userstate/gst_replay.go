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

package userstate

import (
	"fmt"
	"math/big"

	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// rebuildGST replays epoch's persisted GSTLeaf rows into a fresh global
// state tree. This is userstate's own copy of the replay sync.Synchronizer
// performs at startup -- spec.md §5 calls rebuild-from-log "always
// available", and this package deliberately keeps its own
// implementation rather than importing sync's, so a reader process
// never needs the ingestor's write-path dependencies (chain.Client,
// prover.Verifier) just to answer a read.
func (r *Reader) rebuildGST(tx *store.Tx, epoch uint64) (*tree.GlobalStateTree, error) {
	gst := tree.NewGlobalStateTree(common.Conf.GSTDepth, r.hasher, r.defaultLeaf)

	leaves, err := tx.GSTLeaves(epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to load global state tree leaves for epoch %d: %s", epoch, err.Error())
	}

	for _, l := range leaves {
		leaf, err := common.DecodeField(l.Hash)
		if err != nil {
			return nil, fmt.Errorf("failed to decode persisted gst leaf %d: %s", l.Index, err.Error())
		}
		if _, _, err := gst.Insert(leaf); err != nil {
			return nil, fmt.Errorf("failed to replay gst leaf %d: %s", l.Index, err.Error())
		}
	}

	return gst, nil
}

// rebuildEpochTree replays epoch's persisted attestations into a fresh
// sparse epoch tree, sealing each key's hash chain the same way
// handleEpochEnded did when the epoch actually sealed -- needed to
// reproduce a fromEpochTree path for a UST transition proof input.
func (r *Reader) rebuildEpochTree(tx *store.Tx, epoch uint64) (*tree.SparseTree, error) {
	epochTree := tree.NewSparseTree(r.newDigest(), common.Conf.EpochTreeDepth)

	keys, err := tx.EpochKeysForEpoch(epoch)
	if err != nil {
		return nil, fmt.Errorf("failed to load epoch keys for epoch %d: %s", epoch, err.Error())
	}

	for _, k := range keys {
		epochKey, err := common.DecodeField(k.Key)
		if err != nil {
			return nil, err
		}

		attestations, err := tx.AttestationsForKey(epoch, k.Key)
		if err != nil {
			return nil, err
		}

		hashChain := big.NewInt(0)
		for _, a := range attestations {
			attHash, err := common.DecodeField(a.Hash)
			if err != nil {
				return nil, err
			}
			hashChain = r.hasher(attHash, hashChain)
		}
		sealed := r.hasher(big.NewInt(1), hashChain)

		if _, err := epochTree.Update(epochKey, sealed.FillBytes(make([]byte, 32))); err != nil {
			return nil, err
		}
	}

	return epochTree, nil
}
