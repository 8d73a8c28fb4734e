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
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/provideplatform/unirep/chain"
)

// The UniRep contract's indexed event parameters (epoch, epochKey,
// attester, proofIndex) arrive as raw topic words; everything else is
// ABI-packed into the log's data blob. These minimal per-topic
// argument lists decode just the non-indexed fields each handler
// needs (spec.md §6: "accounts/abi decodes non-indexed log data
// against a minimal ABI fragment per topic").
var (
	uint256Type, _      = abi.NewType("uint256", "", nil)
	uint256ArrayType, _ = abi.NewType("uint256[]", "", nil)
	addressType, _      = abi.NewType("address", "", nil)
	boolType, _         = abi.NewType("bool", "", nil)
)

func unpack(data []byte, args abi.Arguments) ([]interface{}, error) {
	values, err := args.Unpack(data)
	if err != nil {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("failed to decode log data: %s", err.Error())}
	}
	return values, nil
}

func asBigInt(v interface{}) (*big.Int, error) {
	n, ok := v.(*big.Int)
	if !ok {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("expected uint256 log field, got %T", v)}
	}
	return n, nil
}

func asBigIntSlice(v interface{}) ([]*big.Int, error) {
	n, ok := v.([]*big.Int)
	if !ok {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("expected uint256[] log field, got %T", v)}
	}
	return n, nil
}

func asAddress(v interface{}) (ethcommon.Address, error) {
	a, ok := v.(ethcommon.Address)
	if !ok {
		return ethcommon.Address{}, &ProtocolViolation{Reason: fmt.Sprintf("expected address log field, got %T", v)}
	}
	return a, nil
}

func asBool(v interface{}) (bool, error) {
	b, ok := v.(bool)
	if !ok {
		return false, &ProtocolViolation{Reason: fmt.Sprintf("expected bool log field, got %T", v)}
	}
	return b, nil
}

// topicBigInt reads topics[i] as an indexed uint256 event parameter.
func topicBigInt(l *chain.Log, i int) (*big.Int, error) {
	if i >= len(l.Topics) {
		return nil, &ProtocolViolation{Reason: fmt.Sprintf("log missing indexed topic at position %d", i)}
	}
	return new(big.Int).SetBytes(l.Topics[i].Bytes()), nil
}

// topicAddress reads topics[i] as an indexed address event parameter.
func topicAddress(l *chain.Log, i int) (ethcommon.Address, error) {
	if i >= len(l.Topics) {
		return ethcommon.Address{}, &ProtocolViolation{Reason: fmt.Sprintf("log missing indexed topic at position %d", i)}
	}
	return ethcommon.BytesToAddress(l.Topics[i].Bytes()), nil
}
