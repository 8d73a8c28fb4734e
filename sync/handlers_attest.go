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
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// AttestationSubmitted(epoch indexed, epochKey indexed, attester indexed,
// proofIndex, attesterId, posRep, negRep, graffiti, signUp, fromProofIndex)
var attestationSubmittedArgs = abi.Arguments{
	{Type: uint256Type}, // proofIndex
	{Type: uint256Type}, // attesterId
	{Type: uint256Type}, // posRep
	{Type: uint256Type}, // negRep
	{Type: uint256Type}, // graffiti
	{Type: boolType},    // signUp
	{Type: uint256Type}, // fromProofIndex
}

// handleAttestationSubmitted is registered under both the current and
// legacy attestation topics (chain.TopicAttestationSubmitted,
// chain.LegacyAttestationTopic aliased to the same name at registration
// time in cmd/synchronizer) -- this function never branches on which
// signature fired it (spec.md §9).
func handleAttestationSubmitted(s *Synchronizer, tx *store.Tx, l *chain.Log) error {
	epoch, err := topicBigInt(l, 1)
	if err != nil {
		return err
	}
	epochKey, err := topicBigInt(l, 2)
	if err != nil {
		return err
	}
	if epochKey.BitLen() > int(common.Conf.EpochTreeDepth) {
		return &ProtocolViolation{Reason: fmt.Sprintf("epoch key %s exceeds the epoch tree depth", epochKey.String())}
	}
	attester, err := topicAddress(l, 3)
	if err != nil {
		return err
	}

	values, err := unpack(l.Data, attestationSubmittedArgs)
	if err != nil {
		return err
	}
	proofIndex, err := asBigInt(values[0])
	if err != nil {
		return err
	}
	attesterID, err := asBigInt(values[1])
	if err != nil {
		return err
	}
	posRep, err := asBigInt(values[2])
	if err != nil {
		return err
	}
	negRep, err := asBigInt(values[3])
	if err != nil {
		return err
	}
	graffiti, err := asBigInt(values[4])
	if err != nil {
		return err
	}
	signUp, err := asBool(values[5])
	if err != nil {
		return err
	}
	fromProofIndex, err := asBigInt(values[6])
	if err != nil {
		return err
	}

	block, txIndex, logIndex := l.Position()
	index := eventIndex(block, txIndex, logIndex)

	hash := attestationHash(s.hasher, epochKey, attesterID, posRep, negRep, graffiti, signUp)

	a := &store.Attestation{
		Epoch:          epoch.Uint64(),
		EpochKey:       common.EncodeField(epochKey),
		Index:          index,
		Attester:       attester.Hex(),
		ProofIndex:     proofIndex.Uint64(),
		AttesterID:     common.EncodeField(attesterID),
		PosRep:         common.EncodeField(posRep),
		NegRep:         common.EncodeField(negRep),
		Graffiti:       common.EncodeField(graffiti),
		SignUp:         signUp,
		Hash:           common.EncodeField(hash),
		FromProofIndex: fromProofIndex.Uint64(),
	}
	if err := tx.CreateAttestation(a); err != nil {
		return &StoreError{Cause: err}
	}

	toProof, err := tx.ProofByIndex(proofIndex.Uint64())
	if err == store.ErrNotFound {
		return &ProtocolViolation{Reason: fmt.Sprintf("attestation %d references missing proof %d", index, proofIndex.Uint64())}
	} else if err != nil {
		return &StoreError{Cause: err}
	}

	if !toProof.Valid {
		return tx.SetAttestationValid(index, false)
	}

	if fromProofIndex.Sign() != 0 {
		fromProof, err := tx.ProofByIndex(fromProofIndex.Uint64())
		if err == store.ErrNotFound {
			return &ProtocolViolation{Reason: fmt.Sprintf("attestation %d references missing from-proof %d", index, fromProofIndex.Uint64())}
		} else if err != nil {
			return &StoreError{Cause: err}
		}

		if !fromProof.Valid || fromProof.Spent {
			return tx.SetAttestationValid(index, false)
		}

		if err := tx.MarkProofSpent(fromProofIndex.Uint64()); err != nil {
			return &StoreError{Cause: err}
		}
	}

	if err := tx.SetAttestationValid(index, true); err != nil {
		return &StoreError{Cause: err}
	}
	if _, err := tx.UpsertEpochKey(epoch.Uint64(), common.EncodeField(epochKey)); err != nil {
		return &StoreError{Cause: err}
	}

	return nil
}

// attestationHash folds one attestation's mutable fields into the
// single value chained into an epoch key's hash chain at seal time
// (spec.md §4.4, EpochEnded): H(H(H(H(H(epochKey, attesterID), posRep),
// negRep), graffiti), signUp).
func attestationHash(hasher tree.Hasher, epochKey, attesterID, posRep, negRep, graffiti *big.Int, signUp bool) *big.Int {
	signUpInt := big.NewInt(0)
	if signUp {
		signUpInt = big.NewInt(1)
	}
	h := hasher(epochKey, attesterID)
	h = hasher(h, posRep)
	h = hasher(h, negRep)
	h = hasher(h, graffiti)
	h = hasher(h, signUpInt)
	return h
}

// eventIndex encodes a log's total order position as the single dense
// integer the Attestation.index column sorts by.
func eventIndex(block uint64, txIndex, logIndex uint) uint64 {
	return block<<32 | uint64(txIndex)<<16 | uint64(logIndex)
}
