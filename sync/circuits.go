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

	"github.com/provideplatform/unirep/common"
)

// The six structs below are this package's named view of the public
// signal layouts declared bit-exact in spec.md §6. They exist
// independently of prover.witnessFactory's gnark witness shapes --
// handlers here never touch frontend.Variable, only named big.Int
// fields they can cross-reference against other Proof rows.

// ProveUserSignUpSignals is proveUserSignUp's public signal layout.
type ProveUserSignUpSignals struct {
	Epoch           *big.Int
	EpochKey        *big.Int
	GlobalStateTree *big.Int
	AttesterID      *big.Int
	UserHasSignedUp *big.Int
}

// DecodeProveUserSignUpSignals parses the ordered public signal vector.
func DecodeProveUserSignUpSignals(signals []*big.Int) (*ProveUserSignUpSignals, error) {
	if len(signals) != 5 {
		return nil, fmt.Errorf("proveUserSignUp expects 5 public signals, got %d", len(signals))
	}
	return &ProveUserSignUpSignals{
		Epoch:           signals[0],
		EpochKey:        signals[1],
		GlobalStateTree: signals[2],
		AttesterID:      signals[3],
		UserHasSignedUp: signals[4],
	}, nil
}

// Flatten restores declaration order.
func (s *ProveUserSignUpSignals) Flatten() []*big.Int {
	return []*big.Int{s.Epoch, s.EpochKey, s.GlobalStateTree, s.AttesterID, s.UserHasSignedUp}
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *ProveUserSignUpSignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// VerifyEpochKeySignals is verifyEpochKey's public signal layout.
type VerifyEpochKeySignals struct {
	GlobalStateTree *big.Int
	Epoch           *big.Int
	EpochKey        *big.Int
}

// DecodeVerifyEpochKeySignals parses the ordered public signal vector.
func DecodeVerifyEpochKeySignals(signals []*big.Int) (*VerifyEpochKeySignals, error) {
	if len(signals) != 3 {
		return nil, fmt.Errorf("verifyEpochKey expects 3 public signals, got %d", len(signals))
	}
	return &VerifyEpochKeySignals{
		GlobalStateTree: signals[0],
		Epoch:           signals[1],
		EpochKey:        signals[2],
	}, nil
}

// Flatten restores declaration order.
func (s *VerifyEpochKeySignals) Flatten() []*big.Int {
	return []*big.Int{s.GlobalStateTree, s.Epoch, s.EpochKey}
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *VerifyEpochKeySignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// ProveReputationSignals is proveReputation's public signal layout.
// RepNullifiers is sized to the proof's declared nullifier count.
type ProveReputationSignals struct {
	RepNullifiers         []*big.Int
	Epoch                 *big.Int
	EpochKey              *big.Int
	GlobalStateTree       *big.Int
	AttesterID            *big.Int
	ProveReputationAmount *big.Int
	MinRep                *big.Int
	ProveGraffiti         *big.Int
	GraffitiPreImage      *big.Int
}

const proveReputationFixedFieldCount = 8

// DecodeProveReputationSignals parses the ordered public signal vector,
// recovering repNullifiers[N] positionally (N = len(signals) - 8).
func DecodeProveReputationSignals(signals []*big.Int) (*ProveReputationSignals, error) {
	if len(signals) < proveReputationFixedFieldCount {
		return nil, fmt.Errorf("proveReputation expects at least %d public signals, got %d", proveReputationFixedFieldCount, len(signals))
	}

	n := len(signals) - proveReputationFixedFieldCount
	nullifiers := make([]*big.Int, n)
	copy(nullifiers, signals[:n])
	rest := signals[n:]

	return &ProveReputationSignals{
		RepNullifiers:         nullifiers,
		Epoch:                 rest[0],
		EpochKey:              rest[1],
		GlobalStateTree:       rest[2],
		AttesterID:            rest[3],
		ProveReputationAmount: rest[4],
		MinRep:                rest[5],
		ProveGraffiti:         rest[6],
		GraffitiPreImage:      rest[7],
	}, nil
}

// Flatten restores declaration order.
func (s *ProveReputationSignals) Flatten() []*big.Int {
	out := make([]*big.Int, 0, len(s.RepNullifiers)+proveReputationFixedFieldCount)
	out = append(out, s.RepNullifiers...)
	out = append(out, s.Epoch, s.EpochKey, s.GlobalStateTree, s.AttesterID, s.ProveReputationAmount, s.MinRep, s.ProveGraffiti, s.GraffitiPreImage)
	return out
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *ProveReputationSignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// StartTransitionSignals is startTransition's public signal layout.
type StartTransitionSignals struct {
	BlindedUserState *big.Int
	BlindedHashChain *big.Int
	GlobalStateTree  *big.Int
}

// DecodeStartTransitionSignals parses the ordered public signal vector.
func DecodeStartTransitionSignals(signals []*big.Int) (*StartTransitionSignals, error) {
	if len(signals) != 3 {
		return nil, fmt.Errorf("startTransition expects 3 public signals, got %d", len(signals))
	}
	return &StartTransitionSignals{
		BlindedUserState: signals[0],
		BlindedHashChain: signals[1],
		GlobalStateTree:  signals[2],
	}, nil
}

// Flatten restores declaration order.
func (s *StartTransitionSignals) Flatten() []*big.Int {
	return []*big.Int{s.BlindedUserState, s.BlindedHashChain, s.GlobalStateTree}
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *StartTransitionSignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// ProcessAttestationsSignals is processAttestations's public signal layout.
type ProcessAttestationsSignals struct {
	OutputBlindedUserState *big.Int
	OutputBlindedHashChain *big.Int
	InputBlindedUserState  *big.Int
}

// DecodeProcessAttestationsSignals parses the ordered public signal vector.
func DecodeProcessAttestationsSignals(signals []*big.Int) (*ProcessAttestationsSignals, error) {
	if len(signals) != 3 {
		return nil, fmt.Errorf("processAttestations expects 3 public signals, got %d", len(signals))
	}
	return &ProcessAttestationsSignals{
		OutputBlindedUserState: signals[0],
		OutputBlindedHashChain: signals[1],
		InputBlindedUserState:  signals[2],
	}, nil
}

// Flatten restores declaration order.
func (s *ProcessAttestationsSignals) Flatten() []*big.Int {
	return []*big.Int{s.OutputBlindedUserState, s.OutputBlindedHashChain, s.InputBlindedUserState}
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *ProcessAttestationsSignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// UserStateTransitionSignals is userStateTransition's public signal
// layout. EpkNullifiers is fixed-length at
// common.Conf.NumEpochKeyNoncePerEpoch (spec.md §4.5); BlindedHashChains
// is recovered positionally from the remaining signal length, which is
// the only genuinely free-length field once the nullifier count is
// pinned to that protocol constant.
type UserStateTransitionSignals struct {
	NewGlobalStateTreeLeaf *big.Int
	EpkNullifiers          []*big.Int
	TransitionFromEpoch    *big.Int
	BlindedUserStates      [2]*big.Int
	FromGlobalStateTree    *big.Int
	BlindedHashChains      []*big.Int
	FromEpochTree          *big.Int
}

// DecodeUserStateTransitionSignals parses the ordered public signal vector.
func DecodeUserStateTransitionSignals(signals []*big.Int) (*UserStateTransitionSignals, error) {
	k := int(common.Conf.NumEpochKeyNoncePerEpoch)
	fixed := 1 + k + 1 + 2 + 1 + 1 // leaf, nullifiers, epoch, blindedUserStates, fromGST, fromEpochTree
	if len(signals) < fixed {
		return nil, fmt.Errorf("userStateTransition expects at least %d public signals, got %d", fixed, len(signals))
	}

	i := 0
	newLeaf := signals[i]
	i++

	nullifiers := make([]*big.Int, k)
	copy(nullifiers, signals[i:i+k])
	i += k

	transitionFromEpoch := signals[i]
	i++

	blindedUserStates := [2]*big.Int{signals[i], signals[i+1]}
	i += 2

	fromGlobalStateTree := signals[i]
	i++

	m := len(signals) - i - 1
	chains := make([]*big.Int, m)
	copy(chains, signals[i:i+m])
	i += m

	fromEpochTree := signals[i]

	return &UserStateTransitionSignals{
		NewGlobalStateTreeLeaf: newLeaf,
		EpkNullifiers:          nullifiers,
		TransitionFromEpoch:    transitionFromEpoch,
		BlindedUserStates:      blindedUserStates,
		FromGlobalStateTree:    fromGlobalStateTree,
		BlindedHashChains:      chains,
		FromEpochTree:          fromEpochTree,
	}, nil
}

// Flatten restores declaration order.
func (s *UserStateTransitionSignals) Flatten() []*big.Int {
	out := make([]*big.Int, 0, 1+len(s.EpkNullifiers)+1+2+1+len(s.BlindedHashChains)+1)
	out = append(out, s.NewGlobalStateTreeLeaf)
	out = append(out, s.EpkNullifiers...)
	out = append(out, s.TransitionFromEpoch, s.BlindedUserStates[0], s.BlindedUserStates[1], s.FromGlobalStateTree)
	out = append(out, s.BlindedHashChains...)
	out = append(out, s.FromEpochTree)
	return out
}

// EncodePublicSignals canonicalizes the signals for persistence.
func (s *UserStateTransitionSignals) EncodePublicSignals() []string {
	return common.EncodeFields(s.Flatten())
}

// NonZeroNullifiers returns the subset of EpkNullifiers the caller must
// check for double-spends; a zero nullifier means that nonce slot was
// never used within the transition (spec.md §4.4 step 6).
func (s *UserStateTransitionSignals) NonZeroNullifiers() []*big.Int {
	out := make([]*big.Int, 0, len(s.EpkNullifiers))
	for _, n := range s.EpkNullifiers {
		if n.Sign() != 0 {
			out = append(out, n)
		}
	}
	return out
}
