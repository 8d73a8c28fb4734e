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

// Package userstate is the read-model of spec.md §4.5: current epoch,
// an identity's epoch keys, attestations against a key, and the folded
// per-attester Reputation view, all read exclusively through
// store.Store. It never touches the ingestor's live in-memory tree --
// every tree it needs (global state, epoch, user state) is rebuilt by
// replaying persisted rows, independently of sync's own replay helpers,
// so this package has no import-time dependency on sync.
package userstate

import (
	"fmt"
	"hash"
	"math/big"

	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// Reader is the stateless view layered on store.Store. It holds no
// identity secrets and no mutable tree state of its own -- every
// method re-derives what it needs from persisted rows and the caller's
// arguments.
type Reader struct {
	store *store.Store

	hasher       tree.Hasher
	newDigest    func() hash.Hash
	defaultLeaf  *big.Int
	emptyUSTRoot *big.Int

	cache *cache
}

// NewReader resolves the protocol-constant hash primitives for
// common.Conf.Curve and wraps db in a read-only view. It performs no
// writes and does not require the genesis epoch to already exist.
func NewReader(db *store.Store) (*Reader, error) {
	newDigest := func() hash.Hash {
		return common.HashFactory(&common.Conf.Curve)
	}
	digest := newDigest()
	if digest == nil {
		return nil, fmt.Errorf("failed to resolve hash function for curve %s", common.Conf.Curve)
	}
	hasher := tree.NewMiMCHasher(digest)

	emptyUSTRoot, err := tree.EmptyUserStateTreeRoot(newDigest(), common.Conf.USTDepth)
	if err != nil {
		return nil, fmt.Errorf("failed to compute empty user state tree root: %s", err.Error())
	}
	defaultLeaf := tree.DefaultGSTLeaf(hasher, emptyUSTRoot)

	return &Reader{
		store:        db,
		hasher:       hasher,
		newDigest:    newDigest,
		defaultLeaf:  defaultLeaf,
		emptyUSTRoot: emptyUSTRoot,
		cache:        newCache(),
	}, nil
}

// CurrentEpoch returns the highest-numbered epoch's number (spec.md
// §4.5: current_epoch()).
func (r *Reader) CurrentEpoch() (uint64, error) {
	if n, ok := r.cache.getCurrentEpoch(); ok {
		return n, nil
	}

	var number uint64
	err := r.store.View(func(tx *store.Tx) error {
		epoch, err := tx.CurrentEpoch()
		if err == store.ErrNotFound {
			return &NotFound{Resource: "epoch"}
		} else if err != nil {
			return err
		}
		number = epoch.Number
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.cache.setCurrentEpoch(number)
	return number, nil
}

// EpochKeys derives every epoch key an identity may use within epoch:
// up to common.Conf.NumEpochKeyNoncePerEpoch values of
// H(identityNullifier, epoch, nonce) truncated to D_epoch bits, so
// every key passes the epoch-key range check the attestation handler
// applies (spec.md §4.5).
func (r *Reader) EpochKeys(identityNullifier *big.Int, epoch uint64) ([]*big.Int, error) {
	if keys, ok := r.cache.getEpochKeys(identityNullifier, epoch); ok {
		return keys, nil
	}

	n := common.Conf.NumEpochKeyNoncePerEpoch
	keys := make([]*big.Int, n)
	for nonce := uint(0); nonce < n; nonce++ {
		keys[nonce] = r.deriveEpochKey(identityNullifier, epoch, nonce)
	}

	r.cache.setEpochKeys(identityNullifier, epoch, keys)
	return keys, nil
}

// deriveEpochKey computes H(identityNullifier, epoch, nonce) and
// truncates the result to common.Conf.EpochTreeDepth bits so it always
// resolves to a valid sparse-tree key.
func (r *Reader) deriveEpochKey(identityNullifier *big.Int, epoch uint64, nonce uint) *big.Int {
	h := r.hasher(identityNullifier, big.NewInt(int64(epoch)))
	h = r.hasher(h, big.NewInt(int64(nonce)))

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), common.Conf.EpochTreeDepth), big.NewInt(1))
	return new(big.Int).And(h, mask)
}

// AttestationsForKey returns the valid attestations made against key
// within epoch, ordered by event index (spec.md §4.5).
func (r *Reader) AttestationsForKey(epoch uint64, key *big.Int) ([]*store.Attestation, error) {
	var rows []*store.Attestation
	err := r.store.View(func(tx *store.Tx) error {
		var err error
		rows, err = tx.AttestationsForKey(epoch, common.EncodeField(key))
		return err
	})
	if err != nil {
		return nil, err
	}
	return rows, nil
}
