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

package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// GethClient is a Client backed by a go-ethereum JSON-RPC connection.
// It satisfies the narrow read-only collaborator interface: it never
// calls SendTransaction.
type GethClient struct {
	rpc             *ethclient.Client
	contractAddress ethcommon.Address
	topics          []ethcommon.Hash
}

// DialGethClient connects to the given JSON-RPC endpoint and scopes
// every subsequent call to logs emitted by contractAddress matching
// one of the UniRep topic hashes registered via RegisterTopic.
func DialGethClient(ctx context.Context, rpcURL string, contractAddress ethcommon.Address) (*GethClient, error) {
	rpc, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial chain RPC endpoint: %s", err.Error())
	}

	topics := make([]ethcommon.Hash, 0, len(TopicHashes))
	for hash := range TopicHashes {
		topics = append(topics, hash)
	}

	return &GethClient{
		rpc:             rpc,
		contractAddress: contractAddress,
		topics:          topics,
	}, nil
}

// BlockNumber returns the latest block number known to the node.
func (c *GethClient) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, &TransientError{Cause: err}
	}
	return n, nil
}

// FilterLogs returns every log matching the UniRep filter within (from, to].
func (c *GethClient) FilterLogs(ctx context.Context, from, to uint64) ([]*Log, error) {
	if from >= to {
		return nil, nil
	}

	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from + 1),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []ethcommon.Address{c.contractAddress},
		Topics:    [][]ethcommon.Hash{c.topics},
	}

	logs, err := c.rpc.FilterLogs(ctx, query)
	if err != nil {
		return nil, &TransientError{Cause: err}
	}

	out := make([]*Log, len(logs))
	for i := range logs {
		out[i] = fromGethLog(logs[i])
	}
	return out, nil
}

// SubscribeNewHead delivers a notification for every new block header.
func (c *GethClient) SubscribeNewHead(ctx context.Context, cb func(blockNumber uint64)) (func(), error) {
	headers := make(chan *types.Header)
	sub, err := c.rpc.SubscribeNewHead(ctx, headers)
	if err != nil {
		return nil, &TransientError{Cause: err}
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case err := <-sub.Err():
				if err != nil {
					return
				}
			case header := <-headers:
				cb(header.Number.Uint64())
			}
		}
	}()

	return sub.Unsubscribe, nil
}

// TransientError wraps an RPC-layer failure (timeout, disconnect) that
// the ingestor should retry on its next poll rather than treat as fatal.
type TransientError struct {
	Cause error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient chain error: %s", e.Cause.Error())
}

func (e *TransientError) Unwrap() error {
	return e.Cause
}
