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

// Package chain is the narrow collaborator boundary between the
// synchronizer and the blockchain: it provides a filtered log stream
// and a few read-only RPC calls. It never submits transactions.
package chain

import (
	"context"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// Legacy attestation topic retained on-chain for backward compatibility;
// dispatches to the same handler as AttestationSubmitted (spec.md §9).
const LegacyAttestationTopic = "0xdbd3d665b66623ec43f3e80f497dd2cd479538c04eca5c15de014b1fd449376"

// Topic names for the ten UniRep log topics this synchronizer understands;
// LegacyAttestationTopic is registered under TopicAttestationSubmitted.
const (
	TopicUserSignedUp                         = "UserSignedUp"
	TopicAttestationSubmitted                 = "AttestationSubmitted"
	TopicEpochEnded                            = "EpochEnded"
	TopicUserStateTransitioned                = "UserStateTransitioned"
	TopicIndexedUserSignUpProof                = "IndexedUserSignUpProof"
	TopicIndexedReputationProof                = "IndexedReputationProof"
	TopicIndexedEpochKeyProof                  = "IndexedEpochKeyProof"
	TopicIndexedStartedTransitionProof         = "IndexedStartedTransitionProof"
	TopicIndexedProcessedAttestationsProof     = "IndexedProcessedAttestationsProof"
	TopicIndexedUserStateTransitionProof       = "IndexedUserStateTransitionProof"
)

// TopicHashes is the fixed set of topic0 hashes the ingestor's filter
// matches against, keyed by human-readable topic name. Values are
// populated by the concrete contract binding at startup (cmd/synchronizer);
// kept here as a package-level registry so decoding code never hardcodes
// a hash literal outside of this table.
var TopicHashes = map[ethcommon.Hash]string{}

// RegisterTopic records the on-chain keccak256 signature hash for a
// named UniRep event so the ingestor's filter and dispatcher agree.
func RegisterTopic(hash ethcommon.Hash, name string) {
	TopicHashes[hash] = name
}

// Log is the minimal, chain-agnostic shape the ingestor and handlers
// operate on. It is populated from a go-ethereum types.Log by Client.
type Log struct {
	BlockNumber     uint64
	TransactionIndex uint
	LogIndex        uint
	TransactionHash ethcommon.Hash
	Topics          []ethcommon.Hash
	Data            []byte
}

// Position returns the (block, txIndex, logIndex) tuple the ingestor
// totally orders logs by.
func (l *Log) Position() (uint64, uint, uint) {
	return l.BlockNumber, l.TransactionIndex, l.LogIndex
}

// Less implements the strict total order required by spec.md §4.3.
func (l *Log) Less(other *Log) bool {
	if l.BlockNumber != other.BlockNumber {
		return l.BlockNumber < other.BlockNumber
	}
	if l.TransactionIndex != other.TransactionIndex {
		return l.TransactionIndex < other.TransactionIndex
	}
	return l.LogIndex < other.LogIndex
}

// Client is the chain collaborator interface described in spec.md §6.
// It never submits a transaction; every method is a read.
type Client interface {
	// BlockNumber returns the latest block number known to the node.
	BlockNumber(ctx context.Context) (uint64, error)

	// FilterLogs returns every log matching the configured UniRep
	// filter within the half-open block range (from, to].
	FilterLogs(ctx context.Context, from, to uint64) ([]*Log, error)

	// SubscribeNewHead delivers a notification for every new block
	// header; it never mutates chain state and callers must treat the
	// delivered block number as advisory only (the next poll still
	// re-derives latestBlock from BlockNumber).
	SubscribeNewHead(ctx context.Context, cb func(blockNumber uint64)) (unsubscribe func(), err error)
}

func fromGethLog(l types.Log) *Log {
	return &Log{
		BlockNumber:      l.BlockNumber,
		TransactionIndex: uint(l.TxIndex),
		LogIndex:         uint(l.Index),
		TransactionHash:  l.TxHash,
		Topics:           l.Topics,
		Data:             l.Data,
	}
}
