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

// cmd/synchronizer is the long-running ingestor process: it registers
// the eleven UniRep log topics against their keccak256 signature
// hashes, dials the configured chain RPC endpoint, opens the store,
// and runs the synchronizer's poll loop until signaled to stop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/prover"
	"github.com/provideplatform/unirep/store"
	syncer "github.com/provideplatform/unirep/sync"
)

// topicSignature is the canonical Solidity event signature registered
// against a topic name; the contract binding that actually ships with
// the deployed UniRep contract is out of this pack's retrieval scope,
// so each signature below is derived straight from the non-indexed
// argument lists decoded in sync/abi.go and the indexed topics assumed
// throughout sync/handlers_*.go.
type topicSignature struct {
	name      string
	signature string
}

var topicSignatures = []topicSignature{
	{chain.TopicUserSignedUp, "UserSignedUp(uint256,uint256,uint256,uint256)"},
	{chain.TopicAttestationSubmitted, "AttestationSubmitted(uint256,uint256,address,uint256,uint256,uint256,uint256,uint256,bool,uint256)"},
	{chain.TopicEpochEnded, "EpochEnded(uint256)"},
	{chain.TopicUserStateTransitioned, "UserStateTransitioned(uint256)"},
	{chain.TopicIndexedUserSignUpProof, "IndexedUserSignUpProof(uint256,uint256,uint256[],uint256[])"},
	{chain.TopicIndexedEpochKeyProof, "IndexedEpochKeyProof(uint256,uint256,uint256[],uint256[])"},
	{chain.TopicIndexedReputationProof, "IndexedReputationProof(uint256,uint256,uint256[],uint256[])"},
	{chain.TopicIndexedStartedTransitionProof, "IndexedStartedTransitionProof(uint256,uint256,uint256[],uint256[])"},
	{chain.TopicIndexedProcessedAttestationsProof, "IndexedProcessedAttestationsProof(uint256,uint256,uint256[],uint256[])"},
	{chain.TopicIndexedUserStateTransitionProof, "IndexedUserStateTransitionProof(uint256,uint256,uint256[],uint256[],uint256[])"},
}

// registerTopics computes topic0 for every canonical UniRep event and
// aliases the legacy attestation topic onto the current handler name
// (spec.md §9).
func registerTopics() {
	for _, t := range topicSignatures {
		hash := crypto.Keccak256Hash([]byte(t.signature))
		chain.RegisterTopic(hash, t.name)
	}
	chain.RegisterTopic(ethcommon.HexToHash(chain.LegacyAttestationTopic), chain.TopicAttestationSubmitted)
}

func main() {
	registerTopics()

	db, err := store.Open()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to open store: %s\n", err.Error())
		os.Exit(1)
	}
	if err := db.Migrate(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to migrate store: %s\n", err.Error())
		os.Exit(1)
	}

	rpcURL := os.Getenv("UNIREP_CHAIN_RPC_URL")
	if rpcURL == "" {
		fmt.Fprintln(os.Stderr, "UNIREP_CHAIN_RPC_URL is required")
		os.Exit(1)
	}

	contractAddressStr := os.Getenv("UNIREP_CONTRACT_ADDRESS")
	if contractAddressStr == "" {
		fmt.Fprintln(os.Stderr, "UNIREP_CONTRACT_ADDRESS is required")
		os.Exit(1)
	}
	contractAddress := ethcommon.HexToAddress(contractAddressStr)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	chainClient, err := chain.DialGethClient(ctx, rpcURL, contractAddress)
	if err != nil {
		common.Log.Panicf("failed to dial chain rpc: %s", err.Error())
	}

	keyDir := os.Getenv("UNIREP_VERIFYING_KEY_DIR")
	if keyDir == "" {
		keyDir = "./keys"
	}
	curve := common.Conf.Curve
	provingScheme := os.Getenv("UNIREP_PROVING_SCHEME")
	if provingScheme == "" {
		provingScheme = "groth16"
	}
	verifier := prover.NewGnarkVerifier(&curve, &provingScheme, keyDir, nil)

	var notifier syncer.Notifier
	if common.ConsumeNATSStreamingSubscriptions {
		notifier = syncer.NewNatsNotifier()
	} else {
		notifier = syncer.NewNoopNotifier()
	}

	s, err := syncer.NewSynchronizer(chainClient, db, verifier, notifier)
	if err != nil {
		common.Log.Panicf("failed to initialize synchronizer: %s", err.Error())
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		common.Log.Info("received shutdown signal; stopping synchronizer")
		s.Stop()
		cancel()
	}()

	common.Log.Infof("starting unirep synchronizer against curve %s", curve)
	if err := s.Run(ctx); err != nil && err != context.Canceled {
		common.Log.Panicf("synchronizer exited with error: %s", err.Error())
	}
}
