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
	"math/big"

	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// Reputation is the in-memory fold spec.md §3 describes: one
// attester's standing with one identity, as of the most recently
// sealed epoch. It is never persisted -- it is always rebuilt from
// Attestation rows.
type Reputation struct {
	PosRep   *big.Int
	NegRep   *big.Int
	Graffiti *big.Int
	SignUp   bool
}

// Hash folds the reputation record into the single field element its
// user-state tree leaf stores, using the same H(H(H(posRep,negRep),
// graffiti),signUp) construction UserSignedUp seeds at signup.
func (r *Reputation) Hash(hasher tree.Hasher) *big.Int {
	return tree.HashReputation(hasher, r.PosRep, r.NegRep, r.Graffiti, r.SignUp_())
}

// SignUp_ returns SignUp as the 0/1 field element HashReputation expects.
func (r *Reputation) SignUp_() *big.Int {
	if r.SignUp {
		return big.NewInt(1)
	}
	return big.NewInt(0)
}

// Reputation folds identityNullifier's attestations from attester
// across every sealed epoch up to (but not including) the current
// unsealed one into {posRep, negRep, graffiti, signUp} (spec.md §4.5).
// graffiti follows overwriteGraffiti semantics: it only changes on an
// attestation that actually sets a nonzero graffiti value, and the
// latest such attestation wins.
func (r *Reader) Reputation(identityNullifier, attesterID *big.Int) (*Reputation, error) {
	var rep *Reputation
	err := r.store.View(func(tx *store.Tx) error {
		folded, err := r.foldReputation(tx, identityNullifier, attesterID)
		if err != nil {
			return err
		}
		rep = folded
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rep, nil
}

// foldReputation does the actual fold, reusable by both Reputation and
// the user-state tree builder so both see a consistent attester set.
func (r *Reader) foldReputation(tx *store.Tx, identityNullifier, attesterID *big.Int) (*Reputation, error) {
	rep := &Reputation{PosRep: big.NewInt(0), NegRep: big.NewInt(0), Graffiti: big.NewInt(0)}

	current, err := tx.UnsealedEpoch()
	if err != nil {
		return nil, err
	}

	for epoch := uint64(1); epoch < current.Number; epoch++ {
		keys, err := r.EpochKeys(identityNullifier, epoch)
		if err != nil {
			return nil, err
		}

		keyStrs := make([]string, len(keys))
		for i, k := range keys {
			keyStrs[i] = common.EncodeField(k)
		}

		attestations, err := tx.AttestationsByKeysAndAttester(keyStrs, common.EncodeField(attesterID))
		if err != nil {
			return nil, err
		}

		for _, a := range attestations {
			posRep, err := common.DecodeField(a.PosRep)
			if err != nil {
				return nil, err
			}
			negRep, err := common.DecodeField(a.NegRep)
			if err != nil {
				return nil, err
			}

			rep.PosRep.Add(rep.PosRep, posRep)
			rep.NegRep.Add(rep.NegRep, negRep)
			if a.SignUp {
				rep.SignUp = true
			}
			if a.Graffiti != "" && a.Graffiti != "0" {
				graffiti, err := common.DecodeField(a.Graffiti)
				if err != nil {
					return nil, err
				}
				rep.Graffiti = graffiti
			}
		}
	}

	return rep, nil
}

// attestersForIdentity collects the distinct attester IDs that have
// ever attested to any of identityNullifier's epoch keys across every
// sealed epoch -- the set userStateTree needs a leaf for.
func (r *Reader) attestersForIdentity(tx *store.Tx, identityNullifier *big.Int) ([]*big.Int, error) {
	current, err := tx.UnsealedEpoch()
	if err != nil {
		return nil, err
	}

	seen := map[string]*big.Int{}
	for epoch := uint64(1); epoch < current.Number; epoch++ {
		keys, err := r.EpochKeys(identityNullifier, epoch)
		if err != nil {
			return nil, err
		}

		for _, key := range keys {
			attestations, err := tx.AttestationsForKey(epoch, common.EncodeField(key))
			if err != nil {
				return nil, err
			}
			for _, a := range attestations {
				if _, ok := seen[a.AttesterID]; !ok {
					attesterID, err := common.DecodeField(a.AttesterID)
					if err != nil {
						return nil, err
					}
					seen[a.AttesterID] = attesterID
				}
			}
		}
	}

	out := make([]*big.Int, 0, len(seen))
	for _, v := range seen {
		out = append(out, v)
	}
	return out, nil
}

// userStateTree rebuilds identityNullifier's user-state tree by
// folding reputation for every attester it has ever received an
// attestation from and writing each fold's hash at that attester's
// key -- the off-chain counterpart to the on-chain UST root no party
// but the identity holder ever reveals in full (spec.md §4.2, §4.5).
func (r *Reader) userStateTree(tx *store.Tx, identityNullifier *big.Int) (*tree.SparseTree, error) {
	t := tree.NewSparseTree(r.newDigest(), common.Conf.USTDepth)

	attesters, err := r.attestersForIdentity(tx, identityNullifier)
	if err != nil {
		return nil, err
	}

	for _, attesterID := range attesters {
		rep, err := r.foldReputation(tx, identityNullifier, attesterID)
		if err != nil {
			return nil, err
		}
		leaf := rep.Hash(r.hasher)
		if _, err := t.Update(attesterID, leaf.FillBytes(make([]byte, 32))); err != nil {
			return nil, err
		}
	}

	return t, nil
}
