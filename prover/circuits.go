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

package prover

import (
	"fmt"
	"math/big"

	"github.com/consensys/gnark/frontend"

	"github.com/provideplatform/unirep/common"
)

// The six witness shapes below exist only to carry the declared
// public-signal layouts of spec.md §6 into a gnark frontend.Circuit
// value for groth16/plonk Verify; the circuits themselves -- their
// constraint systems -- are provisioned externally and are out of
// scope here (§1 Non-goals: no circuit compilation or trusted setup
// in this repository), so Define never runs in this codepath.

// ProveUserSignUpCircuit is the public witness for proveUserSignUp.
type ProveUserSignUpCircuit struct {
	Epoch           frontend.Variable
	EpochKey        frontend.Variable
	GlobalStateTree frontend.Variable
	AttesterID      frontend.Variable
	UserHasSignedUp frontend.Variable
}

func (c *ProveUserSignUpCircuit) Define(api frontend.API) error { return nil }

// VerifyEpochKeyCircuit is the public witness for verifyEpochKey.
type VerifyEpochKeyCircuit struct {
	GlobalStateTree frontend.Variable
	Epoch           frontend.Variable
	EpochKey        frontend.Variable
}

func (c *VerifyEpochKeyCircuit) Define(api frontend.API) error { return nil }

// ProveReputationCircuit is the public witness for proveReputation.
// RepNullifiers is sized to match the proof's declared nullifier
// count at witness-construction time.
type ProveReputationCircuit struct {
	RepNullifiers         []frontend.Variable
	Epoch                 frontend.Variable
	EpochKey              frontend.Variable
	GlobalStateTree       frontend.Variable
	AttesterID            frontend.Variable
	ProveReputationAmount frontend.Variable
	MinRep                frontend.Variable
	ProveGraffiti         frontend.Variable
	GraffitiPreImage      frontend.Variable
}

func (c *ProveReputationCircuit) Define(api frontend.API) error { return nil }

// StartTransitionCircuit is the public witness for startTransition.
type StartTransitionCircuit struct {
	BlindedUserState frontend.Variable
	BlindedHashChain frontend.Variable
	GlobalStateTree  frontend.Variable
}

func (c *StartTransitionCircuit) Define(api frontend.API) error { return nil }

// ProcessAttestationsCircuit is the public witness for processAttestations.
type ProcessAttestationsCircuit struct {
	OutputBlindedUserState frontend.Variable
	OutputBlindedHashChain frontend.Variable
	InputBlindedUserState  frontend.Variable
}

func (c *ProcessAttestationsCircuit) Define(api frontend.API) error { return nil }

// UserStateTransitionCircuit is the public witness for
// userStateTransition. EpkNullifiers is fixed-length at the protocol's
// configured numEpochKeyNoncePerEpoch; BlindedHashChains is sized to
// the number of sub-proofs the transition references.
type UserStateTransitionCircuit struct {
	NewGlobalStateTreeLeaf frontend.Variable
	EpkNullifiers          []frontend.Variable
	TransitionFromEpoch    frontend.Variable
	BlindedUserStates      [2]frontend.Variable
	FromGlobalStateTree    frontend.Variable
	BlindedHashChains      []frontend.Variable
	FromEpochTree          frontend.Variable
}

func (c *UserStateTransitionCircuit) Define(api frontend.API) error { return nil }

// witnessFactory builds the typed public witness for circuit from its
// ordered public signals, matching the field order of spec.md §6
// exactly. Variable-length fields are recovered positionally from the
// fixed field count declared by the table; userStateTransition's
// nullifier count is additionally pinned to the configured
// numEpochKeyNoncePerEpoch (spec.md §4.5), which resolves the one
// ambiguity a flat signal vector alone couldn't.
func witnessFactory(circuit string, signals []*big.Int) (frontend.Circuit, error) {
	switch circuit {
	case CircuitProveUserSignUp:
		if len(signals) != 5 {
			return nil, fmt.Errorf("proveUserSignUp expects 5 public signals, got %d", len(signals))
		}
		return &ProveUserSignUpCircuit{
			Epoch:           signals[0],
			EpochKey:        signals[1],
			GlobalStateTree: signals[2],
			AttesterID:      signals[3],
			UserHasSignedUp: signals[4],
		}, nil

	case CircuitVerifyEpochKey:
		if len(signals) != 3 {
			return nil, fmt.Errorf("verifyEpochKey expects 3 public signals, got %d", len(signals))
		}
		return &VerifyEpochKeyCircuit{
			GlobalStateTree: signals[0],
			Epoch:           signals[1],
			EpochKey:        signals[2],
		}, nil

	case CircuitProveReputation:
		const fixed = 8
		if len(signals) < fixed {
			return nil, fmt.Errorf("proveReputation expects at least %d public signals, got %d", fixed, len(signals))
		}
		n := len(signals) - fixed
		nullifiers := make([]frontend.Variable, n)
		for i := 0; i < n; i++ {
			nullifiers[i] = signals[i]
		}
		rest := signals[n:]
		return &ProveReputationCircuit{
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

	case CircuitStartTransition:
		if len(signals) != 3 {
			return nil, fmt.Errorf("startTransition expects 3 public signals, got %d", len(signals))
		}
		return &StartTransitionCircuit{
			BlindedUserState: signals[0],
			BlindedHashChain: signals[1],
			GlobalStateTree:  signals[2],
		}, nil

	case CircuitProcessAttestations:
		if len(signals) != 3 {
			return nil, fmt.Errorf("processAttestations expects 3 public signals, got %d", len(signals))
		}
		return &ProcessAttestationsCircuit{
			OutputBlindedUserState: signals[0],
			OutputBlindedHashChain: signals[1],
			InputBlindedUserState:  signals[2],
		}, nil

	case CircuitUserStateTransition:
		return witnessForUserStateTransition(signals)
	}

	return nil, fmt.Errorf("unrecognized circuit: %s", circuit)
}

func witnessForUserStateTransition(signals []*big.Int) (frontend.Circuit, error) {
	k := int(common.Conf.NumEpochKeyNoncePerEpoch)
	fixed := 1 + k + 1 + 2 + 1 + 1 // leaf, nullifiers, epoch, blindedUserStates, fromGST, fromEpochTree
	if len(signals) < fixed {
		return nil, fmt.Errorf("userStateTransition expects at least %d public signals, got %d", fixed, len(signals))
	}

	i := 0
	newLeaf := signals[i]
	i++

	nullifiers := make([]frontend.Variable, k)
	for j := 0; j < k; j++ {
		nullifiers[j] = signals[i]
		i++
	}

	transitionFromEpoch := signals[i]
	i++

	blindedUserStates := [2]frontend.Variable{signals[i], signals[i+1]}
	i += 2

	fromGlobalStateTree := signals[i]
	i++

	m := len(signals) - i - 1
	chains := make([]frontend.Variable, m)
	for j := 0; j < m; j++ {
		chains[j] = signals[i]
		i++
	}

	fromEpochTree := signals[i]

	return &UserStateTransitionCircuit{
		NewGlobalStateTreeLeaf: newLeaf,
		EpkNullifiers:          nullifiers,
		TransitionFromEpoch:    transitionFromEpoch,
		BlindedUserStates:      blindedUserStates,
		FromGlobalStateTree:    fromGlobalStateTree,
		BlindedHashChains:      chains,
		FromEpochTree:          fromEpochTree,
	}, nil
}
