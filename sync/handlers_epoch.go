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

package sync

import (
	"fmt"
	"math/big"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// EpochEnded(epoch indexed)
//
// handleEpochEnded implements spec.md §4.4's EpochEnded path: it builds
// the ending epoch's sparse epoch tree by folding every epoch key's
// valid attestations into a hash chain, seals each leaf with H(1,
// hashChain), persists the tree's root, seals the Epoch row, creates
// the successor epoch, and resets the in-memory GST.
func handleEpochEnded(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	endingEpoch, err := topicBigInt(l, 1)
	if err != nil {
		return err
	}
	number := endingEpoch.Uint64()

	epoch, err := tx.EpochByNumber(number)
	if err != nil {
		if err == store.ErrNotFound {
			return &ProtocolViolation{Reason: fmt.Sprintf("EpochEnded references unknown epoch %d", number)}
		}
		return &StoreError{Cause: err}
	}
	if epoch.Sealed {
		return &ProtocolViolation{Reason: fmt.Sprintf("epoch %d is already sealed", number)}
	}

	keys, err := tx.EpochKeysForEpoch(number)
	if err != nil {
		return &StoreError{Cause: err}
	}

	epochTree := tree.NewSparseTree(s.newDigest(), common.Conf.EpochTreeDepth)

	for _, k := range keys {
		epochKey, err := common.DecodeField(k.Key)
		if err != nil {
			return fmt.Errorf("failed to decode persisted epoch key %s: %s", k.Key, err.Error())
		}

		attestations, err := tx.AttestationsForKey(number, k.Key)
		if err != nil {
			return &StoreError{Cause: err}
		}

		hashChain := big.NewInt(0)
		for _, a := range attestations {
			attHash, err := common.DecodeField(a.Hash)
			if err != nil {
				return fmt.Errorf("failed to decode persisted attestation hash %s: %s", a.Hash, err.Error())
			}
			hashChain = s.hasher(attHash, hashChain)
		}

		sealed := s.hasher(big.NewInt(1), hashChain)
		if _, err := epochTree.Update(epochKey, sealed.FillBytes(make([]byte, 32))); err != nil {
			return fmt.Errorf("failed to insert sealed epoch key %s: %s", k.Key, err.Error())
		}
	}

	root, err := epochTree.Root()
	if err != nil {
		return fmt.Errorf("failed to compute epoch tree root: %s", err.Error())
	}

	if err := tx.SealEpoch(number, common.EncodeField(new(big.Int).SetBytes(root))); err != nil {
		return &StoreError{Cause: err}
	}

	if _, err := tx.CreateEpoch(number + 1); err != nil {
		return &StoreError{Cause: err}
	}

	s.resetGST(number + 1)

	return nil
}
