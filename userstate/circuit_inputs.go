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

// nullifierDomainReputation and nullifierDomainTransition separate the
// two nullifier families this package derives from the same epoch key
// so a reputation nullifier and a transition nullifier for the same
// (identity, epoch, nonce) can never collide (spec.md is silent on the
// exact derivation; this mirrors the epoch key's own
// H(identityNullifier, epoch, nonce) construction with a trailing
// domain-separation element, documented here rather than guessed
// silently).
var (
	nullifierDomainReputation = big.NewInt(1)
	nullifierDomainTransition = big.NewInt(2)
)

func (r *Reader) deriveNullifier(identityNullifier *big.Int, epoch uint64, nonce uint, domain *big.Int) *big.Int {
	h := r.hasher(identityNullifier, big.NewInt(int64(epoch)))
	h = r.hasher(h, big.NewInt(int64(nonce)))
	return r.hasher(h, domain)
}

// UserSignUpProofInputs is the witness-assembly record for
// proveUserSignUp: the caller already knows their own identity
// commitment and GST leaf; this only supplies the membership path.
type UserSignUpProofInputs struct {
	Epoch           uint64
	EpochKey        *big.Int
	GlobalStateTree *tree.IncrementalProof
	AttesterID      *big.Int
}

// GenUserSignUpProofInputs assembles proveUserSignUp's witness inputs:
// the GST membership path for identityLeaf within epoch (spec.md §4.5).
func (r *Reader) GenUserSignUpProofInputs(identityNullifier, identityLeaf, attesterID *big.Int, epoch uint64, nonce uint) (*UserSignUpProofInputs, error) {
	var path *tree.IncrementalProof
	err := r.store.View(func(tx *store.Tx) error {
		gst, err := r.rebuildGST(tx, epoch)
		if err != nil {
			return err
		}
		index, err := findGSTLeafIndex(gst, identityLeaf)
		if err != nil {
			return err
		}
		path, err = gst.Path(index)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &UserSignUpProofInputs{
		Epoch:           epoch,
		EpochKey:        r.deriveEpochKey(identityNullifier, epoch, nonce),
		GlobalStateTree: path,
		AttesterID:      attesterID,
	}, nil
}

// EpochKeyProofInputs is the witness-assembly record for verifyEpochKey.
type EpochKeyProofInputs struct {
	Epoch           uint64
	EpochKey        *big.Int
	GlobalStateTree *tree.IncrementalProof
}

// GenEpochKeyProofInputs assembles verifyEpochKey's witness inputs.
func (r *Reader) GenEpochKeyProofInputs(identityNullifier, identityLeaf *big.Int, epoch uint64, nonce uint) (*EpochKeyProofInputs, error) {
	var path *tree.IncrementalProof
	err := r.store.View(func(tx *store.Tx) error {
		gst, err := r.rebuildGST(tx, epoch)
		if err != nil {
			return err
		}
		index, err := findGSTLeafIndex(gst, identityLeaf)
		if err != nil {
			return err
		}
		path, err = gst.Path(index)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &EpochKeyProofInputs{
		Epoch:           epoch,
		EpochKey:        r.deriveEpochKey(identityNullifier, epoch, nonce),
		GlobalStateTree: path,
	}, nil
}

// ReputationProofInputs is the witness-assembly record for
// proveReputation: the UST membership path for the attester whose
// reputation is being asserted, plus the epoch-key nullifiers the
// circuit must bind to avoid reuse.
type ReputationProofInputs struct {
	Epoch           uint64
	EpochKey        *big.Int
	GlobalStateTree *tree.IncrementalProof
	UserState       *tree.MerkleProof
	Reputation      *Reputation
	RepNullifiers   []*big.Int
}

// GenReputationProofInputs assembles proveReputation's witness inputs
// for identityNullifier asserting attesterID's reputation within
// epoch, across the first n nonces' epoch keys (spec.md §4.5, §6).
func (r *Reader) GenReputationProofInputs(identityNullifier, identityLeaf, attesterID *big.Int, epoch uint64, nonce uint, n uint) (*ReputationProofInputs, error) {
	var (
		gstPath *tree.IncrementalProof
		ustPath *tree.MerkleProof
		rep     *Reputation
	)

	err := r.store.View(func(tx *store.Tx) error {
		gst, err := r.rebuildGST(tx, epoch)
		if err != nil {
			return err
		}
		index, err := findGSTLeafIndex(gst, identityLeaf)
		if err != nil {
			return err
		}
		gstPath, err = gst.Path(index)
		if err != nil {
			return err
		}

		ust, err := r.userStateTree(tx, identityNullifier)
		if err != nil {
			return err
		}
		ustPath, err = ust.Prove(attesterID)
		if err != nil {
			return err
		}

		rep, err = r.foldReputation(tx, identityNullifier, attesterID)
		return err
	})
	if err != nil {
		return nil, err
	}

	nullifiers := make([]*big.Int, n)
	for i := uint(0); i < n; i++ {
		nullifiers[i] = r.deriveNullifier(identityNullifier, epoch, i, nullifierDomainReputation)
	}

	return &ReputationProofInputs{
		Epoch:           epoch,
		EpochKey:        r.deriveEpochKey(identityNullifier, epoch, nonce),
		GlobalStateTree: gstPath,
		UserState:       ustPath,
		Reputation:      rep,
		RepNullifiers:   nullifiers,
	}, nil
}

// StartTransitionProofInputs is the witness-assembly record for
// startTransition.
type StartTransitionProofInputs struct {
	GlobalStateTree  *tree.IncrementalProof
	BlindedUserState *big.Int
	BlindedHashChain *big.Int
}

// GenStartTransitionProofInputs assembles startTransition's witness
// inputs: the blinded user state is H(identityNullifier, ustRoot), the
// blinded hash chain seeds the attestation fold the first
// processAttestations proof will extend (spec.md §4.4 UserStateTransitioned).
func (r *Reader) GenStartTransitionProofInputs(identityNullifier, identityLeaf *big.Int, epoch uint64) (*StartTransitionProofInputs, error) {
	var (
		gstPath *tree.IncrementalProof
		ustRoot []byte
	)

	err := r.store.View(func(tx *store.Tx) error {
		gst, err := r.rebuildGST(tx, epoch)
		if err != nil {
			return err
		}
		index, err := findGSTLeafIndex(gst, identityLeaf)
		if err != nil {
			return err
		}
		gstPath, err = gst.Path(index)
		if err != nil {
			return err
		}

		ust, err := r.userStateTree(tx, identityNullifier)
		if err != nil {
			return err
		}
		ustRoot, err = ust.Root()
		return err
	})
	if err != nil {
		return nil, err
	}

	ustRootInt := new(big.Int).SetBytes(ustRoot)
	blindedUserState := r.hasher(identityNullifier, ustRootInt)

	return &StartTransitionProofInputs{
		GlobalStateTree:  gstPath,
		BlindedUserState: blindedUserState,
		BlindedHashChain: r.hasher(big.NewInt(0), ustRootInt),
	}, nil
}

// UserStateTransitionProofInputs is the witness-assembly record for
// userStateTransition.
type UserStateTransitionProofInputs struct {
	NewGlobalStateTreeLeaf *big.Int
	EpkNullifiers          []*big.Int
	FromEpochTree          *tree.MerkleProof
}

// GenUserStateTransitionProofInputs assembles userStateTransition's
// witness inputs: the sealed epoch tree path for identityNullifier's
// nonce-0 epoch key in fromEpoch (no path is produced for its other
// epoch keys), the epoch-key
// nullifiers that prevent replay, and the new GST leaf the transition
// will insert (spec.md §4.4 step 7). identityCommitment is the
// caller's own secret identity commitment -- distinct from
// identityNullifier -- and is hashed with the rebuilt UST root the
// same way UserSignedUp seeds a GST leaf.
func (r *Reader) GenUserStateTransitionProofInputs(identityNullifier, identityCommitment *big.Int, fromEpoch uint64) (*UserStateTransitionProofInputs, error) {
	var (
		epochTreePath *tree.MerkleProof
		newLeaf       *big.Int
	)

	err := r.store.View(func(tx *store.Tx) error {
		epochTree, err := r.rebuildEpochTree(tx, fromEpoch)
		if err != nil {
			return err
		}

		keys, err := r.EpochKeys(identityNullifier, fromEpoch)
		if err != nil {
			return err
		}
		if len(keys) == 0 {
			return fmt.Errorf("identity has no epoch keys for epoch %d", fromEpoch)
		}

		epochTreePath, err = epochTree.Prove(keys[0])
		if err != nil {
			return err
		}

		ust, err := r.userStateTree(tx, identityNullifier)
		if err != nil {
			return err
		}
		ustRoot, err := ust.Root()
		if err != nil {
			return err
		}
		newLeaf = r.hasher(identityCommitment, new(big.Int).SetBytes(ustRoot))
		return nil
	})
	if err != nil {
		return nil, err
	}

	n := common.Conf.NumEpochKeyNoncePerEpoch
	nullifiers := make([]*big.Int, n)
	for i := uint(0); i < n; i++ {
		nullifiers[i] = r.deriveNullifier(identityNullifier, fromEpoch, i, nullifierDomainTransition)
	}

	return &UserStateTransitionProofInputs{
		NewGlobalStateTreeLeaf: newLeaf,
		EpkNullifiers:          nullifiers,
		FromEpochTree:          epochTreePath,
	}, nil
}

// findGSTLeafIndex scans a rebuilt tree for the index holding leaf --
// GST leaves are few enough per epoch that a linear scan over the
// replayed tree is simpler than a dedicated index, and this is a read
// path, not the ingestor's hot loop.
func findGSTLeafIndex(gst *tree.GlobalStateTree, leaf *big.Int) (int, error) {
	for i := 0; i < gst.NumLeaves(); i++ {
		candidate, err := gst.Leaf(i)
		if err != nil {
			return 0, err
		}
		if candidate.Cmp(leaf) == 0 {
			return i, nil
		}
	}
	return 0, &NotFound{Resource: "global state tree leaf"}
}
