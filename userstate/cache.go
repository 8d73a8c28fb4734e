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
	"encoding/json"
	"fmt"
	"math/big"
	"sync"
	"time"

	natsutil "github.com/kthomas/go-natsutil"
	redisutil "github.com/kthomas/go-redisutil"
	"github.com/nats-io/nats.go"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
)

const cacheAckWait = time.Second * 30
const cacheMaxInFlight = 32
const cacheMaxDeliveries = 5

// cache fronts Reader's two hottest read paths -- current epoch and an
// identity's derived epoch keys -- with go-redisutil, invalidated the
// moment the ingestor commits an EpochEnded log (spec.md §4.5: "a
// redis-backed cache ... invalidated on EpochEnded"). Every method
// degrades to a cache miss on any redis error; correctness never
// depends on the cache being warm or even reachable.
type cache struct {
	mutex sync.Mutex
}

func newCache() *cache {
	c := &cache{}

	if !common.ConsumeNATSStreamingSubscriptions {
		common.Log.Debug("userstate package cache invalidation subscription skipped")
		return c
	}

	natsutil.EstablishSharedNatsConnection(nil)
	natsutil.NatsCreateStream(common.NatsStream, []string{common.NatsCommittedSubject})

	var wg sync.WaitGroup
	for i := uint64(0); i < natsutil.GetNatsConsumerConcurrency(); i++ {
		natsutil.RequireNatsJetstreamSubscription(&wg,
			cacheAckWait,
			common.NatsCommittedSubject,
			common.NatsCommittedSubject,
			common.NatsCommittedSubject,
			c.consumeCommittedMsg,
			cacheAckWait,
			cacheMaxInFlight,
			cacheMaxDeliveries,
			nil,
		)
	}

	return c
}

type committedNotification struct {
	Topic            string `json:"topic"`
	BlockNumber      uint64 `json:"block_number"`
	TransactionIndex uint64 `json:"transaction_index"`
	LogIndex         uint64 `json:"log_index"`
}

// consumeCommittedMsg invalidates the current-epoch cache entry
// whenever an EpochEnded log commits -- it never tries to invalidate
// individual identities' epoch-key entries, since those are keyed by
// (identity, epoch) and an already-cached epoch's keys never change.
func (c *cache) consumeCommittedMsg(msg *nats.Msg) {
	defer func() {
		if r := recover(); r != nil {
			common.Log.Warningf("recovered during userstate cache invalidation; %s", r)
			msg.Nak()
		}
	}()

	var notification committedNotification
	if err := json.Unmarshal(msg.Data, &notification); err != nil {
		common.Log.Warningf("failed to unmarshal userstate cache invalidation message; %s", err.Error())
		msg.Nak()
		return
	}

	if notification.Topic == chain.TopicEpochEnded {
		c.invalidateCurrentEpoch()
	}

	msg.Ack()
}

func (c *cache) currentEpochKey() string {
	return "unirep.userstate.current_epoch"
}

func (c *cache) epochKeysKey(identityNullifier *big.Int, epoch uint64) string {
	return fmt.Sprintf("unirep.userstate.epoch_keys.%s.%d", identityNullifier.String(), epoch)
}

func (c *cache) getCurrentEpoch() (uint64, bool) {
	val, err := redisutil.Get(c.currentEpochKey())
	if err != nil || val == nil {
		return 0, false
	}

	var number uint64
	if _, err := fmt.Sscanf(*val, "%d", &number); err != nil {
		return 0, false
	}
	return number, true
}

func (c *cache) setCurrentEpoch(number uint64) {
	_ = redisutil.Set(c.currentEpochKey(), fmt.Sprintf("%d", number), nil)
}

func (c *cache) invalidateCurrentEpoch() {
	key := c.currentEpochKey()
	if redisutil.RedisClusterClient != nil {
		_ = redisutil.RedisClusterClient.Del(key).Err()
	} else if redisutil.RedisClient != nil {
		_ = redisutil.RedisClient.Del(key).Err()
	}
}

func (c *cache) getEpochKeys(identityNullifier *big.Int, epoch uint64) ([]*big.Int, bool) {
	val, err := redisutil.Get(c.epochKeysKey(identityNullifier, epoch))
	if err != nil || val == nil {
		return nil, false
	}

	var encoded []string
	if err := json.Unmarshal([]byte(*val), &encoded); err != nil {
		return nil, false
	}

	keys := make([]*big.Int, len(encoded))
	for i, e := range encoded {
		key, err := common.DecodeField(e)
		if err != nil {
			return nil, false
		}
		keys[i] = key
	}
	return keys, true
}

func (c *cache) setEpochKeys(identityNullifier *big.Int, epoch uint64, keys []*big.Int) {
	encoded := make([]string, len(keys))
	for i, k := range keys {
		encoded[i] = common.EncodeField(k)
	}

	payload, err := json.Marshal(encoded)
	if err != nil {
		return
	}

	_ = redisutil.Set(c.epochKeysKey(identityNullifier, epoch), string(payload), nil)
}
