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

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// UserSignedUp(epoch indexed, identityCommitment, attesterID, airdropAmount)
var userSignedUpArgs = abi.Arguments{
	{Type: uint256Type}, // identityCommitment
	{Type: uint256Type}, // attesterID
	{Type: uint256Type}, // airdropAmount
}

// handleUserSignedUp implements spec.md §4.4's UserSignedUp path: a
// fresh identity's initial user-state tree root is computed (the airdrop
// attester's reputation record when one is granted, all-zeroes
// otherwise), folded into a new global state tree leaf, and inserted
// into the current epoch's tree.
func handleUserSignedUp(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	epoch, err := topicBigInt(l, 1)
	if err != nil {
		return err
	}

	values, err := unpack(l.Data, userSignedUpArgs)
	if err != nil {
		return err
	}
	identityCommitment, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	attesterID, err := asBigInt(values[1])
	if err != nil {
		return err
	}
	airdropAmount, err := asBigInt(values[2])
	if err != nil {
		return err
	}

	current, err := tx.UnsealedEpoch()
	if err != nil {
		return &StoreError{Cause: err}
	}
	if epoch.Uint64() != current.Number {
		return &ProtocolViolation{Reason: fmt.Sprintf("UserSignedUp epoch %s does not match current unsealed epoch %d", epoch.String(), current.Number)}
	}

	initUSTRoot, err := tree.InitUserStateTreeRoot(s.newDigest(), s.hasher, common.Conf.USTDepth, attesterID, airdropAmount)
	if err != nil {
		return fmt.Errorf("failed to compute initial user state tree root: %s", err.Error())
	}

	leaf := s.hasher(identityCommitment, initUSTRoot)

	index, root, err := s.gst.Insert(leaf)
	if err != nil {
		return fmt.Errorf("failed to insert global state tree leaf: %s", err.Error())
	}

	if _, err := tx.CreateGSTLeaf(current.Number, uint64(index), common.EncodeField(leaf), l.TransactionHash.Hex()); err != nil {
		return &StoreError{Cause: err}
	}
	if err := tx.CreateGSTRoot(current.Number, common.EncodeField(root)); err != nil {
		return &StoreError{Cause: err}
	}

	return nil
}
