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

	"github.com/ethereum/go-ethereum/accounts/abi"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/prover"
	"github.com/provideplatform/unirep/store"
)

// Indexed*Proof(proofIndex indexed, epoch indexed, publicSignals[], proof[])
var indexedProofArgs = abi.Arguments{
	{Type: uint256ArrayType}, // publicSignals
	{Type: uint256ArrayType}, // proof
}

// IndexedUserStateTransitionProof additionally carries the dependent
// proof indices the UserStateTransitioned handler chains through
// (spec.md §4.4 step 2-4).
var indexedUserStateTransitionProofArgs = abi.Arguments{
	{Type: uint256ArrayType}, // publicSignals
	{Type: uint256ArrayType}, // proof
	{Type: uint256ArrayType}, // proofIndexRecords
}

// decodedProofEvent is the common shape every Indexed*Proof log decodes
// to before its circuit-specific signal layout is parsed.
type decodedProofEvent struct {
	proofIndex        uint64
	epoch             uint64
	publicSignals     []*big.Int
	proof             []*big.Int
	proofIndexRecords []uint64
}

func decodeProofEvent(l *chain.Log, withRecords bool) (*decodedProofEvent, error) {
	proofIndex, err := topicBigInt(l, 1)
	if err != nil {
		return nil, err
	}
	epoch, err := topicBigInt(l, 2)
	if err != nil {
		return nil, err
	}

	args := indexedProofArgs
	if withRecords {
		args = indexedUserStateTransitionProofArgs
	}
	values, err := unpack(l.Data, args)
	if err != nil {
		return nil, err
	}

	publicSignals, err := asBigIntSlice(values[0])
	if err != nil {
		return nil, err
	}
	proof, err := asBigIntSlice(values[1])
	if err != nil {
		return nil, err
	}

	var records []uint64
	if withRecords {
		recordBigints, err := asBigIntSlice(values[2])
		if err != nil {
			return nil, err
		}
		records = make([]uint64, len(recordBigints))
		for i, r := range recordBigints {
			records[i] = r.Uint64()
		}
	}

	return &decodedProofEvent{
		proofIndex:        proofIndex.Uint64(),
		epoch:             epoch.Uint64(),
		publicSignals:     publicSignals,
		proof:             proof,
		proofIndexRecords: records,
	}, nil
}

// verifyProof calls the verifier collaborator, translating a hard
// verifier failure (prover down, timeout) into a retryable error
// distinct from a clean "proof is invalid" result.
func verifyProof(s *Synchronizer, circuit string, signals, proof []*big.Int) (bool, error) {
	ok, err := s.verifier.Verify(circuit, signals, proof)
	if err != nil {
		return false, fmt.Errorf("verifier error for circuit %s: %s", circuit, err.Error())
	}
	return ok, nil
}

func handleIndexedUserSignUpProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, false)
	if err != nil {
		return err
	}

	signals, err := DecodeProveUserSignUpSignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitProveUserSignUp, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	rootExists, err := tx.GSTRootExists(evt.epoch, common.EncodeField(signals.GlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}

	p := &store.Proof{
		Index:           evt.proofIndex,
		Event:           chain.TopicIndexedUserSignUpProof,
		Epoch:           &evt.epoch,
		PublicSignals:   common.EncodeFields(evt.publicSignals),
		ProofBytes:      common.EncodeFields(evt.proof),
		Valid:           valid && rootExists,
		GlobalStateTree: strPtr(common.EncodeField(signals.GlobalStateTree)),
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func handleIndexedEpochKeyProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, false)
	if err != nil {
		return err
	}

	signals, err := DecodeVerifyEpochKeySignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitVerifyEpochKey, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	rootExists, err := tx.GSTRootExists(evt.epoch, common.EncodeField(signals.GlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}

	p := &store.Proof{
		Index:           evt.proofIndex,
		Event:           chain.TopicIndexedEpochKeyProof,
		Epoch:           &evt.epoch,
		PublicSignals:   common.EncodeFields(evt.publicSignals),
		ProofBytes:      common.EncodeFields(evt.proof),
		Valid:           valid && rootExists,
		GlobalStateTree: strPtr(common.EncodeField(signals.GlobalStateTree)),
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func handleIndexedReputationProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, false)
	if err != nil {
		return err
	}

	signals, err := DecodeProveReputationSignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitProveReputation, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	rootExists, err := tx.GSTRootExists(evt.epoch, common.EncodeField(signals.GlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}

	duplicate := false
	for _, n := range signals.RepNullifiers {
		if n.Sign() == 0 {
			continue
		}
		confirmed, err := tx.NullifierConfirmed(common.EncodeField(n))
		if err != nil {
			return &StoreError{Cause: err}
		}
		if confirmed {
			duplicate = true
			break
		}
	}

	p := &store.Proof{
		Index:           evt.proofIndex,
		Event:           chain.TopicIndexedReputationProof,
		Epoch:           &evt.epoch,
		PublicSignals:   common.EncodeFields(evt.publicSignals),
		ProofBytes:      common.EncodeFields(evt.proof),
		Valid:           valid && rootExists && !duplicate,
		GlobalStateTree: strPtr(common.EncodeField(signals.GlobalStateTree)),
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func handleIndexedStartedTransitionProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, false)
	if err != nil {
		return err
	}

	signals, err := DecodeStartTransitionSignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitStartTransition, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	rootExists, err := tx.GSTRootExists(evt.epoch, common.EncodeField(signals.GlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}

	p := &store.Proof{
		Index:            evt.proofIndex,
		Event:            chain.TopicIndexedStartedTransitionProof,
		Epoch:            &evt.epoch,
		PublicSignals:    common.EncodeFields(evt.publicSignals),
		ProofBytes:       common.EncodeFields(evt.proof),
		Valid:            valid && rootExists,
		BlindedUserState: strPtr(common.EncodeField(signals.BlindedUserState)),
		BlindedHashChain: strPtr(common.EncodeField(signals.BlindedHashChain)),
		GlobalStateTree:  strPtr(common.EncodeField(signals.GlobalStateTree)),
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func handleIndexedProcessedAttestationsProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, false)
	if err != nil {
		return err
	}

	signals, err := DecodeProcessAttestationsSignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitProcessAttestations, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	p := &store.Proof{
		Index:                  evt.proofIndex,
		Event:                  chain.TopicIndexedProcessedAttestationsProof,
		Epoch:                  &evt.epoch,
		PublicSignals:          common.EncodeFields(evt.publicSignals),
		ProofBytes:             common.EncodeFields(evt.proof),
		Valid:                  valid,
		OutputBlindedUserState: strPtr(common.EncodeField(signals.OutputBlindedUserState)),
		OutputBlindedHashChain: strPtr(common.EncodeField(signals.OutputBlindedHashChain)),
		InputBlindedUserState:  strPtr(common.EncodeField(signals.InputBlindedUserState)),
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func handleIndexedUserStateTransitionProof(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	evt, err := decodeProofEvent(l, true)
	if err != nil {
		return err
	}

	signals, err := DecodeUserStateTransitionSignals(evt.publicSignals)
	if err != nil {
		return &ProtocolViolation{Reason: err.Error()}
	}

	valid, err := verifyProof(s, prover.CircuitUserStateTransition, evt.publicSignals, evt.proof)
	if err != nil {
		return err
	}

	rootExists, err := tx.GSTRootExists(signals.TransitionFromEpoch.Uint64(), common.EncodeField(signals.FromGlobalStateTree))
	if err != nil {
		return &StoreError{Cause: err}
	}

	p := &store.Proof{
		Index:             evt.proofIndex,
		Event:             chain.TopicIndexedUserStateTransitionProof,
		Epoch:             &evt.epoch,
		PublicSignals:     common.EncodeFields(evt.publicSignals),
		ProofBytes:        common.EncodeFields(evt.proof),
		Valid:             valid && rootExists,
		GlobalStateTree:   strPtr(common.EncodeField(signals.FromGlobalStateTree)),
		ProofIndexRecords: evt.proofIndexRecords,
	}
	if err := tx.CreateProof(p); err != nil {
		return &StoreError{Cause: err}
	}
	return nil
}

func strPtr(s string) *string {
	return &s
}
