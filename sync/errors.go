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

import "fmt"

// TransientChainError wraps an RPC-layer failure the ingestor retries
// on its next poll rather than treating as fatal (spec.md §7). The
// chain package's own *chain.TransientError already satisfies this
// shape; this wrapper lets ingestor code recognize the category
// without importing chain into every handler.
type TransientChainError struct {
	Cause error
}

func (e *TransientChainError) Error() string {
	return fmt.Sprintf("transient chain error: %s", e.Cause.Error())
}

func (e *TransientChainError) Unwrap() error {
	return e.Cause
}

// UnknownEventTopic is a fatal programming error: a log's topic0 does
// not resolve to any registered UniRep event name. The ingestor logs
// the log record and aborts (spec.md §7).
type UnknownEventTopic struct {
	Topic string
}

func (e *UnknownEventTopic) Error() string {
	return fmt.Sprintf("unknown event topic: %s", e.Topic)
}

// ProtocolViolation covers an inconsistent proof chain, a missing
// predecessor row, or a mismatched root -- a handler-internal
// rejection that the contract already indexed as a bad submission.
// The handler logs and no-ops the event; the cursor still advances
// past it (spec.md §7).
type ProtocolViolation struct {
	Reason string
}

func (e *ProtocolViolation) Error() string {
	return fmt.Sprintf("protocol violation: %s", e.Reason)
}

// DuplicateNullifier is the same disposition as ProtocolViolation: the
// bad event is rejected and recorded, existing confirmed state is left
// untouched (spec.md §7).
type DuplicateNullifier struct {
	Nullifier string
}

func (e *DuplicateNullifier) Error() string {
	return fmt.Sprintf("duplicate nullifier: %s", e.Nullifier)
}

// StoreError wraps a storage/infrastructure failure. The wrapping
// transaction is aborted and the ingestor re-runs the event at once,
// within the same poll; repeated failure past
// common.Conf.StoreRetryLimit is surfaced as fatal (spec.md §7).
type StoreError struct {
	Cause error
}

func (e *StoreError) Error() string {
	return fmt.Sprintf("store error: %s", e.Cause.Error())
}

func (e *StoreError) Unwrap() error {
	return e.Cause
}

// isNoOp reports whether err is one of the categories a handler
// resolves by logging and letting the cursor advance past the event,
// rather than aborting the enclosing transaction (spec.md §7:
// ProtocolViolation and DuplicateNullifier are "processed", not
// retried).
func isNoOp(err error) bool {
	switch err.(type) {
	case *ProtocolViolation, *DuplicateNullifier:
		return true
	}
	return false
}
