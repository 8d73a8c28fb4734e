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
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
)

// Run drives the poll loop until ctx is cancelled or Stop is called
// (spec.md §4.3). Each iteration: resolve the safe block height,
// filter logs since the persisted cursor, totally order them, and
// fold each into store.Store through its dispatch handler.
func (s *Synchronizer) Run(ctx context.Context) error {
	woke := make(chan uint64, 1)
	unsubscribe, err := s.chain.SubscribeNewHead(ctx, func(blockNumber uint64) {
		select {
		case woke <- blockNumber:
		default:
		}
	})
	if err != nil {
		common.Log.Warningf("failed to subscribe to new chain heads; falling back to pure polling: %s", err.Error())
	} else {
		defer unsubscribe()
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		default:
		}

		advanced, err := s.poll(ctx)
		if err != nil {
			if _, transient := err.(*TransientChainError); !transient {
				return err
			}
			common.Log.Warningf("transient chain error; retrying on next poll: %s", err.Error())
		}

		if advanced {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.stop:
			return nil
		case <-woke:
		case <-time.After(common.Conf.PollInterval):
		}
	}
}

// Stop signals Run to return at its next opportunity.
func (s *Synchronizer) Stop() {
	close(s.stop)
}

// poll fetches and processes one batch of logs. It returns true if at
// least one log was processed, so Run can skip its backoff sleep and
// immediately check for more.
func (s *Synchronizer) poll(ctx context.Context) (bool, error) {
	rpcCtx, cancel := context.WithTimeout(ctx, common.Conf.ChainRPCTimeout)
	defer cancel()

	latestBlock, err := s.chain.BlockNumber(rpcCtx)
	if err != nil {
		return false, &TransientChainError{Cause: err}
	}

	if latestBlock < common.Conf.ConfirmationWindow {
		return false, nil
	}
	safeBlock := latestBlock - common.Conf.ConfirmationWindow

	var cursor *store.SynchronizerState
	if err := s.store.View(func(tx *store.Tx) error {
		c, err := tx.Cursor()
		cursor = c
		return err
	}); err != nil {
		return false, &StoreError{Cause: err}
	}

	if safeBlock <= cursor.LatestCompleteBlock {
		return false, nil
	}

	logs, err := s.chain.FilterLogs(rpcCtx, cursor.LatestCompleteBlock, safeBlock)
	if err != nil {
		return false, &TransientChainError{Cause: err}
	}

	logs = retainAfterCursor(logs, cursor)
	sort.Slice(logs, func(i, j int) bool { return logs[i].Less(logs[j]) })

	for _, l := range logs {
		select {
		case <-ctx.Done():
			return true, ctx.Err()
		default:
		}

		if err := s.processLogWithRetry(l); err != nil {
			return true, err
		}
	}

	if err := s.store.Transaction(func(tx *store.Tx) error {
		return tx.SetLatestCompleteBlock(safeBlock)
	}); err != nil {
		return true, &StoreError{Cause: err}
	}

	return len(logs) > 0, nil
}

// retainAfterCursor drops any log at or before the persisted cursor
// position -- FilterLogs' range is block-granular, so the boundary
// block can resurface logs already processed (spec.md §4.3).
func retainAfterCursor(logs []*chain.Log, cursor *store.SynchronizerState) []*chain.Log {
	out := make([]*chain.Log, 0, len(logs))
	for _, l := range logs {
		block, txIndex, logIndex := l.Position()
		if block < cursor.LatestProcessedBlock {
			continue
		}
		if block == cursor.LatestProcessedBlock {
			if uint64(txIndex) < cursor.LatestProcessedTransactionIndex {
				continue
			}
			if uint64(txIndex) == cursor.LatestProcessedTransactionIndex && uint64(logIndex) <= cursor.LatestProcessedEventIndex {
				continue
			}
		}
		out = append(out, l)
	}
	return out
}

// processLogWithRetry retries a StoreError up to common.Conf.StoreRetryLimit
// times before escalating it as fatal (spec.md §7).
func (s *Synchronizer) processLogWithRetry(l *chain.Log) error {
	var lastErr error
	for attempt := uint(0); attempt <= common.Conf.StoreRetryLimit; attempt++ {
		err := s.processLog(l)
		if err == nil {
			return nil
		}

		var storeErr *StoreError
		if !errors.As(err, &storeErr) {
			return err
		}

		lastErr = err
		common.Log.Warningf("store error processing log at block %d tx %d log %d (attempt %d/%d): %s",
			l.BlockNumber, l.TransactionIndex, l.LogIndex, attempt+1, common.Conf.StoreRetryLimit+1, err.Error())
	}

	return fmt.Errorf("exhausted store retry budget processing log at block %d tx %d log %d: %s",
		l.BlockNumber, l.TransactionIndex, l.LogIndex, lastErr.Error())
}

// processLog resolves l's handler, runs it inside a single store
// transaction, advances the cursor, and notifies. A no-op disposition
// (ProtocolViolation, DuplicateNullifier) still advances the cursor --
// only a StoreError leaves it unmoved for the caller to retry
// (spec.md §7).
func (s *Synchronizer) processLog(l *chain.Log) error {
	name, handler, err := dispatch(l)
	if err != nil {
		return err
	}

	txErr := s.store.Transaction(func(tx *store.Tx) error {
		if err := handler(s, tx, l); err != nil {
			if isNoOp(err) {
				common.Log.Warningf("no-op disposition for %s at block %d tx %d log %d: %s",
					name, l.BlockNumber, l.TransactionIndex, l.LogIndex, err.Error())
			} else {
				return err
			}
		}

		block, txIndex, logIndex := l.Position()
		return tx.AdvanceCursor(block, uint64(txIndex), uint64(logIndex))
	})

	if txErr != nil {
		if isNoOp(txErr) {
			return nil
		}
		var storeErr *StoreError
		if errors.As(txErr, &storeErr) {
			return txErr
		}
		return &StoreError{Cause: txErr}
	}

	block, txIndex, logIndex := l.Position()
	s.notifier.NotifyCommitted(name, block, uint64(txIndex), uint64(logIndex))
	return nil
}
