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
	"encoding/json"

	natsutil "github.com/kthomas/go-natsutil"

	"github.com/provideplatform/unirep/common"
)

func init() {
	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("sync package consumer configured to skip NATS streaming subscription setup")
		return
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(common.NatsStream, []string{
		common.NatsCommittedSubject,
	})
}

// Notifier is the narrow side-channel the ingestor publishes committed
// log positions through. It never gates commit success -- a failed
// notify is logged and swallowed, since the durable cursor in
// store.Store is what actually defines progress (spec.md §4.3).
type Notifier interface {
	NotifyCommitted(topicName string, block, txIndex, logIndex uint64)
}

type committedNotification struct {
	Topic            string `json:"topic"`
	BlockNumber      uint64 `json:"block_number"`
	TransactionIndex uint64 `json:"transaction_index"`
	LogIndex         uint64 `json:"log_index"`
}

// natsNotifier publishes a committedNotification to common.NatsCommittedSubject
// for every processed log, mirroring the teacher's setup-complete
// publish idiom (prover/consumer.go).
type natsNotifier struct{}

// NewNatsNotifier constructs the NATS-backed Notifier.
func NewNatsNotifier() Notifier {
	return &natsNotifier{}
}

func (n *natsNotifier) NotifyCommitted(topicName string, block, txIndex, logIndex uint64) {
	payload, err := json.Marshal(&committedNotification{
		Topic:            topicName,
		BlockNumber:      block,
		TransactionIndex: txIndex,
		LogIndex:         logIndex,
	})
	if err != nil {
		common.Log.Warningf("failed to marshal sync commit notification; %s", err.Error())
		return
	}

	if _, err := natsutil.NatsJetstreamPublish(common.NatsCommittedSubject, payload); err != nil {
		common.Log.Warningf("failed to publish sync commit notification; %s", err.Error())
	}
}

// noopNotifier discards every notification; used by tests and any
// one-shot binary that never enables NATS.
type noopNotifier struct{}

// NewNoopNotifier constructs a Notifier that does nothing.
func NewNoopNotifier() Notifier {
	return &noopNotifier{}
}

func (n *noopNotifier) NotifyCommitted(topicName string, block, txIndex, logIndex uint64) {}
