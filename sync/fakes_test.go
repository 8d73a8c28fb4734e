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
	"context"
	"math/big"
	"sort"
	"sync"

	"github.com/provideplatform/unirep/chain"
)

// fakeChainClient answers BlockNumber/FilterLogs purely from an
// in-memory log set the test appends to with addLog -- there is no
// real RPC behind it, so replay_test.go can drive the ingestor through
// deterministic scenarios without a live node (spec.md §8's literal
// end-to-end scenarios).
type fakeChainClient struct {
	mutex sync.Mutex
	logs  []*chain.Log
	head  uint64
}

func newFakeChainClient() *fakeChainClient {
	return &fakeChainClient{}
}

func (c *fakeChainClient) addLog(l *chain.Log) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	c.logs = append(c.logs, l)
	if l.BlockNumber > c.head {
		c.head = l.BlockNumber
	}
}

func (c *fakeChainClient) BlockNumber(ctx context.Context) (uint64, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	return c.head, nil
}

func (c *fakeChainClient) FilterLogs(ctx context.Context, from, to uint64) ([]*chain.Log, error) {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	out := make([]*chain.Log, 0)
	for _, l := range c.logs {
		if l.BlockNumber > from && l.BlockNumber <= to {
			out = append(out, l)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out, nil
}

func (c *fakeChainClient) SubscribeNewHead(ctx context.Context, cb func(blockNumber uint64)) (func(), error) {
	return func() {}, nil
}

// fakeVerifier always returns the same verdict, optionally keyed per
// circuit, so tests can exercise both the valid- and invalid-proof
// paths (spec.md §8 scenario 3) without a real gnark verifying key.
type fakeVerifier struct {
	mutex   sync.Mutex
	results map[string]bool
	def     bool
}

func newFakeVerifier(defaultResult bool) *fakeVerifier {
	return &fakeVerifier{results: map[string]bool{}, def: defaultResult}
}

func (v *fakeVerifier) setResult(circuit string, ok bool) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	v.results[circuit] = ok
}

func (v *fakeVerifier) Verify(circuit string, publicSignals []*big.Int, proof []*big.Int) (bool, error) {
	v.mutex.Lock()
	defer v.mutex.Unlock()
	if ok, set := v.results[circuit]; set {
		return ok, nil
	}
	return v.def, nil
}
