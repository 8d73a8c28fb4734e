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
	"github.com/provideplatform/unirep/common"
	provide "github.com/provideplatform/provide-go/api"
)

// Epoch is the protocol's monotonic epoch counter. At most one row
// with sealed=false exists at any time (spec.md §3, §8).
type Epoch struct {
	provide.Model

	Number    uint64  `sql:"not null;unique_index" json:"number"`
	Sealed    bool    `sql:"not null;default:false" json:"sealed"`
	EpochRoot *string `json:"epoch_root"`
}

func (e *Epoch) validate() bool {
	e.Errors = make([]*provide.Error, 0)
	if e.Sealed && e.EpochRoot == nil {
		e.Errors = append(e.Errors, &provide.Error{
			Message: common.StringOrNil("sealed epoch requires an epoch root"),
		})
	}
	return len(e.Errors) == 0
}

// GSTLeaf is a single insert into an epoch's global state tree.
// Indices are dense and strictly increasing from 0 within an epoch.
type GSTLeaf struct {
	provide.Model

	Epoch   uint64 `sql:"not null;index:idx_gst_leaves_epoch" json:"epoch"`
	Index   uint64 `sql:"not null" json:"index"`
	Hash    string `sql:"not null" json:"hash"`
	TxHash  string `sql:"not null" json:"tx_hash"`
}

func (l *GSTLeaf) validate() bool {
	l.Errors = make([]*provide.Error, 0)
	if l.Hash == "" {
		l.Errors = append(l.Errors, &provide.Error{
			Message: common.StringOrNil("gst leaf hash required"),
		})
	}
	return len(l.Errors) == 0
}

// GSTRoot is persisted after every GST insert so handlers can test
// membership of any historic root a proof references.
type GSTRoot struct {
	provide.Model

	Epoch uint64 `sql:"not null;index:idx_gst_roots_epoch" json:"epoch"`
	Root  string `sql:"not null;index:idx_gst_roots_root" json:"root"`
}

func (r *GSTRoot) validate() bool {
	r.Errors = make([]*provide.Error, 0)
	if r.Root == "" {
		r.Errors = append(r.Errors, &provide.Error{
			Message: common.StringOrNil("gst root value required"),
		})
	}
	return len(r.Errors) == 0
}

// EpochKey is created lazily the first time it is attested to.
type EpochKey struct {
	provide.Model

	Epoch uint64 `sql:"not null;index:idx_epoch_keys_epoch" json:"epoch"`
	Key   string `sql:"not null" json:"key"`
}

func (k *EpochKey) validate() bool {
	k.Errors = make([]*provide.Error, 0)
	if k.Key == "" {
		k.Errors = append(k.Errors, &provide.Error{
			Message: common.StringOrNil("epoch key value required"),
		})
	}
	return len(k.Errors) == 0
}

// Attestation is one AttestationSubmitted log, decoded and validated.
type Attestation struct {
	provide.Model

	Epoch          uint64  `sql:"not null;index:idx_attestations_epoch" json:"epoch"`
	EpochKey       string  `sql:"not null;index:idx_attestations_epoch_key" json:"epoch_key"`
	Index          uint64  `sql:"not null;unique_index" json:"index"`
	Attester       string  `sql:"not null" json:"attester"`
	ProofIndex     uint64  `sql:"not null" json:"proof_index"`
	AttesterID     string  `sql:"not null" json:"attester_id"`
	PosRep         string  `sql:"not null" json:"pos_rep"`
	NegRep         string  `sql:"not null" json:"neg_rep"`
	Graffiti       string  `json:"graffiti"`
	SignUp         bool    `sql:"not null;default:false" json:"sign_up"`
	Hash           string  `sql:"not null" json:"hash"`
	FromProofIndex uint64  `sql:"not null;default:0" json:"from_proof_index"`
	Valid          *bool   `json:"valid"`
}

func (a *Attestation) validate() bool {
	a.Errors = make([]*provide.Error, 0)
	if a.Hash == "" {
		a.Errors = append(a.Errors, &provide.Error{
			Message: common.StringOrNil("attestation hash required"),
		})
	}
	return len(a.Errors) == 0
}

// Nullifier tracks spend status of every epoch-key nullifier ever
// observed. Uniqueness across confirmed=true rows is the central
// invariant (spec.md §3, §8).
type Nullifier struct {
	provide.Model

	Epoch     uint64 `sql:"not null;index:idx_nullifiers_epoch" json:"epoch"`
	Nullifier string `sql:"not null;index:idx_nullifiers_value" json:"nullifier"`
	Confirmed bool   `sql:"not null;default:false" json:"confirmed"`
}

func (n *Nullifier) validate() bool {
	n.Errors = make([]*provide.Error, 0)
	if n.Nullifier == "" {
		n.Errors = append(n.Errors, &provide.Error{
			Message: common.StringOrNil("nullifier value required"),
		})
	}
	return len(n.Errors) == 0
}

// Proof is written once per Indexed*Proof event; valid is the
// conjunction of zk-verify success, root existence, and (for
// reputation proofs) nullifier freshness.
type Proof struct {
	provide.Model

	Index  uint64  `sql:"not null;unique_index:idx_proofs_index" json:"index"`
	Event  string  `sql:"not null" json:"event"`
	Epoch  *uint64 `json:"epoch"`

	PublicSignals []string `sql:"type:jsonb" json:"public_signals"`
	ProofBytes    []string `sql:"type:jsonb;column:proof" json:"proof"`

	Valid bool `sql:"not null;default:false" json:"valid"`
	Spent bool `sql:"not null;default:false" json:"spent"`

	// circuit-specific auxiliary fields chained on by later handlers
	BlindedUserState       *string  `json:"blinded_user_state"`
	BlindedHashChain       *string  `json:"blinded_hash_chain"`
	OutputBlindedUserState *string  `json:"output_blinded_user_state"`
	InputBlindedUserState  *string  `json:"input_blinded_user_state"`
	OutputBlindedHashChain *string  `json:"output_blinded_hash_chain"`
	GlobalStateTree        *string  `json:"global_state_tree"`
	ProofIndexRecords      []uint64 `sql:"type:jsonb" json:"proof_index_records"`
}

func (p *Proof) validate() bool {
	p.Errors = make([]*provide.Error, 0)
	if p.Event == "" {
		p.Errors = append(p.Errors, &provide.Error{
			Message: common.StringOrNil("proof event name required"),
		})
	}
	return len(p.Errors) == 0
}

// SynchronizerState is the singleton durable cursor; exactly one row
// ever exists.
type SynchronizerState struct {
	provide.Model

	LatestProcessedBlock            uint64 `sql:"not null;default:0" json:"latest_processed_block"`
	LatestProcessedTransactionIndex uint64 `sql:"not null;default:0" json:"latest_processed_transaction_index"`
	LatestProcessedEventIndex       uint64 `sql:"not null;default:0" json:"latest_processed_event_index"`
	LatestCompleteBlock             uint64 `sql:"not null;default:0" json:"latest_complete_block"`
}

func (s *SynchronizerState) validate() bool {
	s.Errors = make([]*provide.Error, 0)
	return true
}
