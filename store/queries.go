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

package store

import (
	"fmt"
)

// --- Epoch ---

// CurrentEpoch returns the highest-numbered Epoch row.
func (tx *Tx) CurrentEpoch() (*Epoch, error) {
	var epochs []Epoch
	if err := tx.db.Order("number desc").Limit(1).Find(&epochs).Error; err != nil {
		return nil, err
	}
	if len(epochs) == 0 {
		return nil, ErrNotFound
	}
	return &epochs[0], nil
}

// UnsealedEpoch returns the single unsealed Epoch row (spec.md §3, §8
// invariant: at most one exists).
func (tx *Tx) UnsealedEpoch() (*Epoch, error) {
	var epoch Epoch
	if err := tx.findOne(&epoch, "sealed = ?", false); err != nil {
		return nil, err
	}
	return &epoch, nil
}

// EpochByNumber looks up a single epoch by its number.
func (tx *Tx) EpochByNumber(number uint64) (*Epoch, error) {
	var epoch Epoch
	if err := tx.findOne(&epoch, "number = ?", number); err != nil {
		return nil, err
	}
	return &epoch, nil
}

// CreateEpoch creates a new unsealed epoch row for number.
func (tx *Tx) CreateEpoch(number uint64) (*Epoch, error) {
	epoch := &Epoch{Number: number, Sealed: false}
	if err := tx.create(epoch); err != nil {
		return nil, err
	}
	return epoch, nil
}

// SealEpoch marks number sealed with its final epoch root.
func (tx *Tx) SealEpoch(number uint64, root string) error {
	epoch, err := tx.EpochByNumber(number)
	if err != nil {
		return err
	}
	return tx.update(epoch, map[string]interface{}{
		"sealed":     true,
		"epoch_root": root,
	})
}

// --- GSTLeaf ---

// CountGSTLeaves returns the count of leaves inserted in epoch.
func (tx *Tx) CountGSTLeaves(epoch uint64) (int, error) {
	return tx.count(&GSTLeaf{}, "epoch = ?", epoch)
}

// CreateGSTLeaf persists a new leaf. Callers are responsible for
// computing index as CountGSTLeaves(epoch) beforehand, inside the
// same transaction, so indices stay dense (spec.md §3, §8).
func (tx *Tx) CreateGSTLeaf(epoch, index uint64, hash, txHash string) (*GSTLeaf, error) {
	leaf := &GSTLeaf{Epoch: epoch, Index: index, Hash: hash, TxHash: txHash}
	if err := tx.create(leaf); err != nil {
		return nil, err
	}
	return leaf, nil
}

// GSTLeaves returns every leaf of epoch ordered by index -- the
// sequence gen_gst_tree(epoch) replays to rebuild a tree.
func (tx *Tx) GSTLeaves(epoch uint64) ([]*GSTLeaf, error) {
	var leaves []*GSTLeaf
	if err := tx.findMany(&leaves, "index asc", "epoch = ?", epoch); err != nil {
		return nil, err
	}
	return leaves, nil
}

// --- GSTRoot ---

// CreateGSTRoot persists root as a member of epoch's history.
func (tx *Tx) CreateGSTRoot(epoch uint64, root string) error {
	row := &GSTRoot{Epoch: epoch, Root: root}
	return tx.create(row)
}

// GSTRootExists reports whether root was ever a GST root of epoch.
func (tx *Tx) GSTRootExists(epoch uint64, root string) (bool, error) {
	n, err := tx.count(&GSTRoot{}, "epoch = ? AND root = ?", epoch, root)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestGSTRoot returns the most recently persisted GST root of epoch.
func (tx *Tx) LatestGSTRoot(epoch uint64) (*GSTRoot, error) {
	var roots []GSTRoot
	if err := tx.db.Where("epoch = ?", epoch).Order("created_at desc").Limit(1).Find(&roots).Error; err != nil {
		return nil, err
	}
	if len(roots) == 0 {
		return nil, ErrNotFound
	}
	return &roots[0], nil
}

// --- EpochKey ---

// FindEpochKey looks up an existing epoch key row.
func (tx *Tx) FindEpochKey(epoch uint64, key string) (*EpochKey, error) {
	var row EpochKey
	if err := tx.findOne(&row, "epoch = ? AND key = ?", epoch, key); err != nil {
		return nil, err
	}
	return &row, nil
}

// UpsertEpochKey creates the epoch key row if it doesn't already
// exist; epoch keys are immutable once created so there is nothing to
// update on the existing-row path.
func (tx *Tx) UpsertEpochKey(epoch uint64, key string) (*EpochKey, error) {
	existing, err := tx.FindEpochKey(epoch, key)
	if err == nil {
		return existing, nil
	}
	if err != ErrNotFound {
		return nil, err
	}

	row := &EpochKey{Epoch: epoch, Key: key}
	if err := tx.create(row); err != nil {
		return nil, err
	}
	return row, nil
}

// EpochKeysForEpoch returns every epoch key created within epoch.
func (tx *Tx) EpochKeysForEpoch(epoch uint64) ([]*EpochKey, error) {
	var rows []*EpochKey
	if err := tx.findMany(&rows, "key asc", "epoch = ?", epoch); err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Attestation ---

// CreateAttestation persists a new attestation row.
func (tx *Tx) CreateAttestation(a *Attestation) error {
	return tx.create(a)
}

// SetAttestationValid records the validity verdict for an attestation.
func (tx *Tx) SetAttestationValid(index uint64, valid bool) error {
	var a Attestation
	if err := tx.findOne(&a, "index = ?", index); err != nil {
		return err
	}
	return tx.update(&a, map[string]interface{}{"valid": valid})
}

// AttestationsForKey returns the valid attestations against epochKey
// within epoch, ordered by event index (spec.md §4.5).
func (tx *Tx) AttestationsForKey(epoch uint64, epochKey string) ([]*Attestation, error) {
	var rows []*Attestation
	if err := tx.findMany(&rows, "index asc", "epoch = ? AND epoch_key = ? AND valid = ?", epoch, epochKey, true); err != nil {
		return nil, err
	}
	return rows, nil
}

// AttestationsByKeysAndAttester returns every valid attestation
// against any of keys whose attester_id is attester (the decimal
// attester ID, not the attester address), ordered by event index --
// the fold Reputation(identity, attester) consumes.
func (tx *Tx) AttestationsByKeysAndAttester(keys []string, attester string) ([]*Attestation, error) {
	if len(keys) == 0 {
		return nil, nil
	}
	var rows []*Attestation
	if err := tx.findMany(&rows, "index asc", "epoch_key IN (?) AND attester_id = ? AND valid = ?", keys, attester, true); err != nil {
		return nil, err
	}
	return rows, nil
}

// --- Nullifier ---

// NullifierConfirmed reports whether a confirmed row already exists
// for nullifier (spec.md §3, §8: confirmed uniqueness is the central
// invariant).
func (tx *Tx) NullifierConfirmed(nullifier string) (bool, error) {
	n, err := tx.count(&Nullifier{}, "nullifier = ? AND confirmed = ?", nullifier, true)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ConfirmNullifiers deletes any unconfirmed rows for the given values
// and inserts them as confirmed, within the caller's transaction
// (spec.md §4.4 step 7).
func (tx *Tx) ConfirmNullifiers(epoch uint64, nullifiers []string) error {
	if len(nullifiers) == 0 {
		return nil
	}

	if err := tx.db.Where("nullifier IN (?) AND confirmed = ?", nullifiers, false).Delete(&Nullifier{}).Error; err != nil {
		return fmt.Errorf("failed to delete unconfirmed nullifier rows: %s", err.Error())
	}

	for _, value := range nullifiers {
		row := &Nullifier{Epoch: epoch, Nullifier: value, Confirmed: true}
		if err := tx.create(row); err != nil {
			return err
		}
	}

	return nil
}

// --- Proof ---

// CreateProof persists a new proof row.
func (tx *Tx) CreateProof(p *Proof) error {
	return tx.create(p)
}

// ProofByIndex looks up a proof by its event index.
func (tx *Tx) ProofByIndex(index uint64) (*Proof, error) {
	var p Proof
	if err := tx.findOne(&p, "index = ?", index); err != nil {
		return nil, err
	}
	return &p, nil
}

// MarkProofSpent marks the proof at index as spent (consumed by a
// reputation attestation, spec.md §4.4).
func (tx *Tx) MarkProofSpent(index uint64) error {
	p, err := tx.ProofByIndex(index)
	if err != nil {
		return err
	}
	return tx.update(p, map[string]interface{}{"spent": true})
}

// --- SynchronizerState ---

// Cursor returns the singleton synchronizer cursor row.
func (tx *Tx) Cursor() (*SynchronizerState, error) {
	var state SynchronizerState
	if err := tx.findOne(&state, "1 = 1"); err != nil {
		return nil, err
	}
	return &state, nil
}

// AdvanceCursor moves the persisted cursor to the given log position.
// It must be called inside the same transaction as the handler that
// processed the log (spec.md §4.3 step 4).
func (tx *Tx) AdvanceCursor(block, txIndex, eventIndex uint64) error {
	state, err := tx.Cursor()
	if err != nil {
		return err
	}
	return tx.update(state, map[string]interface{}{
		"latest_processed_block":             block,
		"latest_processed_transaction_index": txIndex,
		"latest_processed_event_index":       eventIndex,
	})
}

// SetLatestCompleteBlock records the batch high-water mark once the
// ingestor has drained every log it fetched (spec.md §4.3 step 5).
func (tx *Tx) SetLatestCompleteBlock(block uint64) error {
	state, err := tx.Cursor()
	if err != nil {
		return err
	}
	return tx.update(state, map[string]interface{}{"latest_complete_block": block})
}
