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
	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/store"
)

// HandlerFunc folds one decoded log into the open transaction.
type HandlerFunc func(s *Synchronizer, tx *store.Tx, l *chain.Log) error

// dispatchTable is keyed by topic *name*, resolved once via
// chain.TopicHashes[l.Topics[0]] -- not by raw hash -- so the legacy
// attestation topic registered under the same name as the current one
// (cmd/synchronizer's RegisterTopic call) reaches handleAttestationSubmitted
// without that handler ever branching on which signature fired it
// (spec.md §9).
var dispatchTable = map[string]HandlerFunc{
	chain.TopicUserSignedUp:                     handleUserSignedUp,
	chain.TopicAttestationSubmitted:              handleAttestationSubmitted,
	chain.TopicEpochEnded:                        handleEpochEnded,
	chain.TopicUserStateTransitioned:             handleUserStateTransitioned,
	chain.TopicIndexedUserSignUpProof:            handleIndexedUserSignUpProof,
	chain.TopicIndexedEpochKeyProof:              handleIndexedEpochKeyProof,
	chain.TopicIndexedReputationProof:            handleIndexedReputationProof,
	chain.TopicIndexedStartedTransitionProof:     handleIndexedStartedTransitionProof,
	chain.TopicIndexedProcessedAttestationsProof: handleIndexedProcessedAttestationsProof,
	chain.TopicIndexedUserStateTransitionProof:   handleIndexedUserStateTransitionProof,
}

// dispatch resolves l's topic0 to a registered event name and its
// handler. An unresolvable topic0 is a fatal UnknownEventTopic
// (spec.md §7).
func dispatch(l *chain.Log) (string, HandlerFunc, error) {
	if len(l.Topics) == 0 {
		return "", nil, &UnknownEventTopic{Topic: "<no topics>"}
	}

	name, ok := chain.TopicHashes[l.Topics[0]]
	if !ok {
		return "", nil, &UnknownEventTopic{Topic: l.Topics[0].Hex()}
	}

	handler, ok := dispatchTable[name]
	if !ok {
		return name, nil, &UnknownEventTopic{Topic: name}
	}

	return name, handler, nil
}
