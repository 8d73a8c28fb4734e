// +build integration

package sync

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideplatform/unirep/chain"
	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
)

var (
	testUserSignedUpTopic           = ethcommon.HexToHash("0x01")
	testAttestationSubmittedTopic   = ethcommon.HexToHash("0x02")
	testEpochEndedTopic             = ethcommon.HexToHash("0x03")
	testUserStateTransitionedTopic  = ethcommon.HexToHash("0x04")
	testIndexedUserSignUpProofTopic = ethcommon.HexToHash("0x05")
)

func registerTestTopics() {
	chain.RegisterTopic(testUserSignedUpTopic, chain.TopicUserSignedUp)
	chain.RegisterTopic(testAttestationSubmittedTopic, chain.TopicAttestationSubmitted)
	chain.RegisterTopic(testEpochEndedTopic, chain.TopicEpochEnded)
	chain.RegisterTopic(testUserStateTransitionedTopic, chain.TopicUserStateTransitioned)
	chain.RegisterTopic(testIndexedUserSignUpProofTopic, chain.TopicIndexedUserSignUpProof)
}

// requireSyncStore opens a Store against the database configured by the
// standard go-db-config environment variables, migrates it, and relaxes
// the confirmation window so a single-block fake chain isn't starved.
func requireSyncStore(t *testing.T) *store.Store {
	s, err := store.Open()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	common.Conf.ConfirmationWindow = 0
	return s
}

func drainPolls(t *testing.T, s *Synchronizer) {
	ctx := context.Background()
	for {
		advanced, err := s.poll(ctx)
		require.NoError(t, err)
		if !advanced {
			return
		}
	}
}

func signUpLog(blockNumber uint64, epoch, identityCommitment, attesterID, airdropAmount *big.Int) *chain.Log {
	data, _ := userSignedUpArgs.Pack(identityCommitment, attesterID, airdropAmount)
	return &chain.Log{
		BlockNumber:      blockNumber,
		TransactionIndex: 0,
		LogIndex:         0,
		TransactionHash:  ethcommon.HexToHash(fmt.Sprintf("0x%x", blockNumber)),
		Topics:           []ethcommon.Hash{testUserSignedUpTopic, ethcommon.BigToHash(epoch)},
		Data:             data,
	}
}

// TestSignupOnlyScenario is spec.md §8 scenario 1: five users sign up
// with a positive airdrop, five with none; all ten leaves are inserted
// into the epoch-1 GST. The signUp bit is not checked here.
func TestSignupOnlyScenario(t *testing.T) {
	registerTestTopics()
	db := requireSyncStore(t)

	chainClient := newFakeChainClient()
	verifier := newFakeVerifier(true)
	s, err := NewSynchronizer(chainClient, db, verifier, NewNoopNotifier())
	require.NoError(t, err)

	attesterID := big.NewInt(1)
	for i := 0; i < 10; i++ {
		airdrop := big.NewInt(0)
		if i < 5 {
			airdrop = big.NewInt(10)
		}
		identity := big.NewInt(int64(1000 + i))
		chainClient.addLog(signUpLog(uint64(i+1), big.NewInt(1), identity, attesterID, airdrop))
	}

	drainPolls(t, s)

	err = db.View(func(tx *store.Tx) error {
		count, err := tx.CountGSTLeaves(1)
		require.NoError(t, err)
		assert.Equal(t, 10, count)
		return nil
	})
	require.NoError(t, err)
}

// TestWrongEpochSignUpIsProtocolViolation covers the no-op disposition
// path: a UserSignedUp log whose epoch doesn't match the current
// unsealed epoch is rejected without aborting the ingestor, and the
// cursor still advances past it (spec.md §7, §8 scenario 4's shape --
// here reached via a malformed rather than chain-rejected log, since
// a wrong-epoch submission never reaches the synchronizer on a real
// chain).
func TestWrongEpochSignUpIsProtocolViolation(t *testing.T) {
	registerTestTopics()
	db := requireSyncStore(t)

	chainClient := newFakeChainClient()
	verifier := newFakeVerifier(true)
	s, err := NewSynchronizer(chainClient, db, verifier, NewNoopNotifier())
	require.NoError(t, err)

	chainClient.addLog(signUpLog(1, big.NewInt(2), big.NewInt(1), big.NewInt(1), big.NewInt(0)))

	drainPolls(t, s)

	err = db.View(func(tx *store.Tx) error {
		count, err := tx.CountGSTLeaves(1)
		require.NoError(t, err)
		assert.Equal(t, 0, count)

		cursor, err := tx.Cursor()
		require.NoError(t, err)
		assert.Equal(t, uint64(1), cursor.LatestProcessedBlock)
		return nil
	})
	require.NoError(t, err)
}

// TestReplayFromGenesisReproducesGST is spec.md §8's invariant 5, cut
// down to the GST root: a second Synchronizer opened against the same
// store, which only ever rebuilds its tree by replaying persisted
// GSTLeaf rows, must agree with the live tree's root.
func TestReplayFromGenesisReproducesGST(t *testing.T) {
	registerTestTopics()
	db := requireSyncStore(t)

	chainClient := newFakeChainClient()
	verifier := newFakeVerifier(true)
	s, err := NewSynchronizer(chainClient, db, verifier, NewNoopNotifier())
	require.NoError(t, err)

	attesterID := big.NewInt(1)
	for i := 0; i < 3; i++ {
		identity := big.NewInt(int64(2000 + i))
		chainClient.addLog(signUpLog(uint64(i+1), big.NewInt(1), identity, attesterID, big.NewInt(0)))
	}
	drainPolls(t, s)

	replayed, err := NewSynchronizer(newFakeChainClient(), db, verifier, NewNoopNotifier())
	require.NoError(t, err)

	assert.Equal(t, s.gst.Root(), replayed.gst.Root())
}

// TestNullifierDoubleSpendIsNoOp is spec.md §8 scenario 5: a
// user-state-transition event whose epkNullifiers contains a
// previously confirmed value inserts no GSTLeaf and leaves the
// confirmed nullifier row untouched.
func TestNullifierDoubleSpendIsNoOp(t *testing.T) {
	registerTestTopics()
	db := requireSyncStore(t)

	chainClient := newFakeChainClient()
	verifier := newFakeVerifier(true)
	s, err := NewSynchronizer(chainClient, db, verifier, NewNoopNotifier())
	require.NoError(t, err)

	spentNullifier := "777"
	require.NoError(t, db.Transaction(func(tx *store.Tx) error {
		return tx.ConfirmNullifiers(1, []string{spentNullifier})
	}))

	leavesBefore := 0
	require.NoError(t, db.View(func(tx *store.Tx) error {
		n, err := tx.CountGSTLeaves(1)
		leavesBefore = n
		return err
	}))

	err = db.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CreateEpoch(0); err != nil {
			return err
		}
		if err := tx.SealEpoch(0, "4"); err != nil {
			return err
		}
		if err := tx.CreateGSTRoot(0, "3"); err != nil {
			return err
		}

		startProof := &store.Proof{
			Index:            2,
			Event:            chain.TopicIndexedStartedTransitionProof,
			Valid:            true,
			BlindedUserState: strPtr("1"),
			GlobalStateTree:  strPtr("3"),
		}
		if err := tx.CreateProof(startProof); err != nil {
			return err
		}

		signals := &UserStateTransitionSignals{
			NewGlobalStateTreeLeaf: big.NewInt(42),
			EpkNullifiers:          []*big.Int{big.NewInt(777), big.NewInt(0), big.NewInt(0)},
			TransitionFromEpoch:    big.NewInt(0),
			BlindedUserStates:      [2]*big.Int{big.NewInt(1), big.NewInt(2)},
			FromGlobalStateTree:    big.NewInt(3),
			BlindedHashChains:      []*big.Int{},
			FromEpochTree:          big.NewInt(4),
		}

		ustProof := &store.Proof{
			Index:             1,
			Event:             chain.TopicIndexedUserStateTransitionProof,
			Valid:             true,
			PublicSignals:     common.EncodeFields(signals.Flatten()),
			GlobalStateTree:   strPtr("3"),
			ProofIndexRecords: []uint64{2},
		}
		if err := tx.CreateProof(ustProof); err != nil {
			return err
		}

		l := &chain.Log{
			BlockNumber: 1,
			Topics:      []ethcommon.Hash{testUserStateTransitionedTopic, ethcommon.BigToHash(big.NewInt(1))},
		}
		err := handleUserStateTransitioned(s, tx, l)
		if !isNoOp(err) {
			return err
		}
		return nil
	})
	require.NoError(t, err)

	err = db.View(func(tx *store.Tx) error {
		n, err := tx.CountGSTLeaves(1)
		require.NoError(t, err)
		assert.Equal(t, leavesBefore, n)

		confirmed, err := tx.NullifierConfirmed(spentNullifier)
		require.NoError(t, err)
		assert.True(t, confirmed)
		return nil
	})
	require.NoError(t, err)
}
