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

// Package prover is the narrow zk verifier collaborator boundary
// (spec.md §6): it verifies a named circuit's proof against an
// ordered public-signal vector using a previously-provisioned
// verifying key. Circuit compilation, trusted setup, and proving are
// all out of scope -- this package only ever calls Verify.
package prover

import "math/big"

// Circuit names understood by Verify, matching spec.md §6 exactly.
const (
	CircuitProveUserSignUp     = "proveUserSignUp"
	CircuitVerifyEpochKey      = "verifyEpochKey"
	CircuitProveReputation     = "proveReputation"
	CircuitStartTransition     = "startTransition"
	CircuitProcessAttestations = "processAttestations"
	CircuitUserStateTransition = "userStateTransition"
)

// Verifier is the opaque zk proof verification collaborator.
// Implementations never see the witness generation or proving side
// of a circuit -- only its provisioned verifying key.
type Verifier interface {
	// Verify reports whether proof is valid for circuit against the
	// given ordered public signals.
	Verify(circuit string, publicSignals []*big.Int, proof []*big.Int) (bool, error)
}
