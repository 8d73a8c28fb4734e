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

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
)

// handleUserStateTransitioned implements spec.md §4.4's six-step
// validation chain. Every failure in steps 1-6 is a ProtocolViolation
// (no-op, cursor still advances) -- the taxonomy in errors.go already
// names "missing predecessor row" and "mismatched root" as
// ProtocolViolation examples, so this handler never distinguishes a
// missing row from any other chain-integrity failure.
func handleUserStateTransitioned(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	proofIndex, err := topicBigInt(l, 1)
	if err != nil {
		return err
	}

	// Step 1.
	ustProof, err := tx.ProofByIndex(proofIndex.Uint64())
	if err == store.ErrNotFound {
		return &ProtocolViolation{Reason: fmt.Sprintf("UserStateTransitioned references missing proof %d", proofIndex.Uint64())}
	} else if err != nil {
		return &StoreError{Cause: err}
	}
	if ustProof.Event != chain.TopicIndexedUserStateTransitionProof || !ustProof.Valid {
		return &ProtocolViolation{Reason: fmt.Sprintf("proof %d is not a valid IndexedUserStateTransitionProof", proofIndex.Uint64())}
	}

	signalStrs := ustProof.PublicSignals
	signalVals, err := common.DecodeFields(signalStrs)
	if err != nil {
		return fmt.Errorf("failed to decode persisted user state transition public signals: %s", err.Error())
	}
	signals, err := DecodeUserStateTransitionSignals(signalVals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	committedHashChains := map[string]bool{}

	// Step 2: the open question (spec.md §9) on whether
	// startTransitionProof.proofIndexRecords[0] is meaningful is
	// resolved by never reading the start-transition proof's own
	// proofIndexRecords -- start-transition proofs are never persisted
	// with them. The predecessor reference is read from the UST
	// proof's proofIndexRecords instead, and a UST proof without any
	// is rejected.
	if len(ustProof.ProofIndexRecords) == 0 {
		return &ProtocolViolation{Reason: fmt.Sprintf("proof %d has no proofIndexRecords", proofIndex.Uint64())}
	}

	startProof, err := tx.ProofByIndex(ustProof.ProofIndexRecords[0])
	if err == store.ErrNotFound {
		return &ProtocolViolation{Reason: fmt.Sprintf("proof %d references missing start-transition proof %d", proofIndex.Uint64(), ustProof.ProofIndexRecords[0])}
	} else if err != nil {
		return &StoreError{Cause: err}
	}
	if !startProof.Valid {
		return &ProtocolViolation{Reason: fmt.Sprintf("start-transition proof %d is invalid", ustProof.ProofIndexRecords[0])}
	}
	if startProof.BlindedUserState == nil || *startProof.BlindedUserState != common.EncodeField(signals.BlindedUserStates[0]) {
		return &ProtocolViolation{Reason: "start-transition proof blindedUserState does not match UST proof"}
	}
	if startProof.GlobalStateTree == nil || ustProof.GlobalStateTree == nil || *startProof.GlobalStateTree != *ustProof.GlobalStateTree {
		return &ProtocolViolation{Reason: "start-transition proof globalStateTree does not match UST proof"}
	}
	if startProof.BlindedHashChain != nil {
		committedHashChains[*startProof.BlindedHashChain] = true
	}

	// Step 3.
	currentBlindedUserState := common.EncodeField(signals.BlindedUserStates[0])
	for _, idx := range ustProof.ProofIndexRecords[1:] {
		attProof, err := tx.ProofByIndex(idx)
		if err == store.ErrNotFound {
			return &ProtocolViolation{Reason: fmt.Sprintf("proof %d references missing processed-attestations proof %d", proofIndex.Uint64(), idx)}
		} else if err != nil {
			return &StoreError{Cause: err}
		}
		if !attProof.Valid {
			return &ProtocolViolation{Reason: fmt.Sprintf("processed-attestations proof %d is invalid", idx)}
		}
		if attProof.InputBlindedUserState == nil || *attProof.InputBlindedUserState != currentBlindedUserState {
			return &ProtocolViolation{Reason: fmt.Sprintf("processed-attestations proof %d breaks the blinded user state chain", idx)}
		}
		if attProof.OutputBlindedUserState == nil {
			return &ProtocolViolation{Reason: fmt.Sprintf("processed-attestations proof %d missing outputBlindedUserState", idx)}
		}
		currentBlindedUserState = *attProof.OutputBlindedUserState
		if attProof.OutputBlindedHashChain != nil {
			committedHashChains[*attProof.OutputBlindedHashChain] = true
		}
	}

	// Step 4: conjunctive match (spec.md §9 open question resolution --
	// every declared blindedHashChain must be covered by a referenced
	// proof's committed chain value, not merely some subset).
	for _, chainValue := range signals.BlindedHashChains {
		if !committedHashChains[common.EncodeField(chainValue)] {
			return &ProtocolViolation{Reason: fmt.Sprintf("blinded hash chain %s has no matching referenced proof", common.EncodeField(chainValue))}
		}
	}

	// Step 5.
	fromEpoch := signals.TransitionFromEpoch.Uint64()
	rootExists, err := tx.GSTRootExists(fromEpoch, common.EncodeField(signals.FromGlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}
	if !rootExists {
		return &ProtocolViolation{Reason: fmt.Sprintf("fromGlobalStateTree root does not exist for epoch %d", fromEpoch)}
	}

	sourceEpoch, err := tx.EpochByNumber(fromEpoch)
	if err == store.ErrNotFound {
		return &ProtocolViolation{Reason: fmt.Sprintf("transitionFromEpoch %d does not exist", fromEpoch)}
	} else if err != nil {
		return &StoreError{Cause: err}
	}
	if sourceEpoch.EpochRoot == nil || *sourceEpoch.EpochRoot != common.EncodeField(signals.FromEpochTree) {
		return &ProtocolViolation{Reason: fmt.Sprintf("fromEpochTree does not match sealed epoch tree for epoch %d", fromEpoch)}
	}

	// Step 6.
	nullifierStrs := make([]string, 0, len(signals.EpkNullifiers))
	for _, n := range signals.NonZeroNullifiers() {
		value := common.EncodeField(n)
		confirmed, err := tx.NullifierConfirmed(value)
		if err != nil {
			return &StoreError{Cause: err}
		}
		if confirmed {
			return &DuplicateNullifier{Nullifier: value}
		}
		nullifierStrs = append(nullifierStrs, value)
	}

	// Step 7.
	current, err := tx.UnsealedEpoch()
	if err != nil {
		return &StoreError{Cause: err}
	}

	if err := tx.ConfirmNullifiers(current.Number, nullifierStrs); err != nil {
		return &StoreError{Cause: err}
	}

	index, root, err := s.gst.Insert(signals.NewGlobalStateTreeLeaf)
	if err != nil {
		return fmt.Errorf("failed to insert global state tree leaf: %s", err.Error())
	}

	if _, err := tx.CreateGSTLeaf(current.Number, uint64(index), common.EncodeField(signals.NewGlobalStateTreeLeaf), l.TransactionHash.Hex()); err != nil {
		return &StoreError{Cause: err}
	}
	if err := tx.CreateGSTRoot(current.Number, common.EncodeField(root)); err != nil {
		return &StoreError{Cause: err}
	}

	return nil
}
