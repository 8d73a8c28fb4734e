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

package common

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	logger "github.com/kthomas/go-logger"
)

var (
	// Log is the configured logger
	Log *logger.Logger

	// ConsumeNATSStreamingSubscriptions controls whether this process
	// registers NATS subscriptions on import; disabled for one-shot
	// binaries (migrate) and enabled for the long-running synchronizer
	ConsumeNATSStreamingSubscriptions bool

	// Conf is the resolved set of synchronizer tunables
	Conf *Config
)

// Config holds the environment-driven tunables for the synchronizer
type Config struct {
	// GSTDepth is the fixed depth of the incremental global state tree
	GSTDepth uint

	// EpochTreeDepth is the fixed depth of the sparse epoch tree; also
	// bounds the valid range of an epoch key: key < 2^EpochTreeDepth
	EpochTreeDepth uint

	// USTDepth is the fixed depth of the sparse user-state tree
	USTDepth uint

	// NumEpochKeyNoncePerEpoch bounds how many epoch keys an identity
	// may derive within a single epoch
	NumEpochKeyNoncePerEpoch uint

	// PollInterval is how long the ingestor sleeps after an empty poll
	PollInterval time.Duration

	// ConfirmationWindow is the number of trailing blocks treated as
	// unsafe to read; the ingestor never requests logs newer than
	// latestBlock - ConfirmationWindow
	ConfirmationWindow uint64

	// ChainRPCTimeout bounds every chain collaborator call
	ChainRPCTimeout time.Duration

	// ProverTimeout is read from UNIREP_PROVER_TIMEOUT; no verifier call
	// is bounded by it
	ProverTimeout time.Duration

	// StoreRetryLimit bounds repeated StoreError retries before the
	// ingestor treats the failure as fatal
	StoreRetryLimit uint

	// Curve names the gnark-crypto curve used for the MiMC hash
	// family backing the tree engine
	Curve string
}

func init() {
	godotenv.Load()

	requireLogger()
	requireConfig()
}

func requireLogger() {
	lvl := os.Getenv("LOG_LEVEL")
	if lvl == "" {
		lvl = "INFO"
	}

	var endpoint *string
	if os.Getenv("SYSLOG_ENDPOINT") != "" {
		endpt := os.Getenv("SYSLOG_ENDPOINT")
		endpoint = &endpt
	}

	Log = logger.NewLogger("unirep", lvl, endpoint)
}

func requireConfig() {
	Conf = &Config{
		GSTDepth:                 envUint("UNIREP_GST_DEPTH", 32),
		EpochTreeDepth:           envUint("UNIREP_EPOCH_TREE_DEPTH", 64),
		USTDepth:                 envUint("UNIREP_UST_DEPTH", 8),
		NumEpochKeyNoncePerEpoch: envUint("UNIREP_EPOCH_KEY_NONCES", 3),
		PollInterval:             envDuration("UNIREP_POLL_INTERVAL", time.Second),
		ConfirmationWindow:       uint64(envUint("UNIREP_CONFIRMATION_WINDOW", 12)),
		ChainRPCTimeout:          envDuration("UNIREP_CHAIN_RPC_TIMEOUT", 15*time.Second),
		ProverTimeout:            envDuration("UNIREP_PROVER_TIMEOUT", 30*time.Second),
		StoreRetryLimit:          envUint("UNIREP_STORE_RETRY_LIMIT", 5),
		Curve:                    envString("UNIREP_CURVE", "bn254"),
	}

	ConsumeNATSStreamingSubscriptions = os.Getenv("UNIREP_CONSUME_NATS_SUBSCRIPTIONS") == "true"
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envUint(key string, def uint) uint {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err == nil {
			return uint(n)
		}
		Log.Warningf("failed to parse %s as uint; using default %d", key, def)
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
		Log.Warningf("failed to parse %s as duration; using default %s", key, def)
	}
	return def
}
