// +build integration

package userstate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideplatform/unirep/common"
	"github.com/provideplatform/unirep/store"
	"github.com/provideplatform/unirep/tree"
)

// requireUserstateStore mirrors sync's requireSyncStore: it opens and
// migrates a Store against the standard go-db-config environment
// variables. Run with `go test -tags integration` against a
// disposable Postgres instance.
func requireUserstateStore(t *testing.T) *store.Store {
	s, err := store.Open()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	return s
}

func TestCurrentEpochReflectsLatestEpochRow(t *testing.T) {
	s := requireUserstateStore(t)
	r, err := NewReader(s)
	require.NoError(t, err)

	err = s.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CreateEpoch(1); err != nil {
			return err
		}
		_, err := tx.CreateEpoch(2)
		return err
	})
	require.NoError(t, err)

	number, err := r.CurrentEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), number)

	// cached value should still answer without touching the store again.
	number, err = r.CurrentEpoch()
	require.NoError(t, err)
	assert.Equal(t, uint64(2), number)
}

func TestReputationFoldsSealedEpochsOnlyWithGraffitiOverwrite(t *testing.T) {
	s := requireUserstateStore(t)
	r, err := NewReader(s)
	require.NoError(t, err)

	identityNullifier := big.NewInt(1001)
	attesterID := big.NewInt(5)

	err = s.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CreateEpoch(1); err != nil {
			return err
		}
		if _, err := tx.CreateEpoch(2); err != nil {
			return err
		}

		keys, err := r.EpochKeys(identityNullifier, 1)
		if err != nil {
			return err
		}
		key := common.EncodeField(keys[0])

		if _, err := tx.UpsertEpochKey(1, key); err != nil {
			return err
		}

		valid := true
		if err := tx.CreateAttestation(&store.Attestation{
			Epoch:      1,
			EpochKey:   key,
			Index:      0,
			Attester:   "0xattester",
			AttesterID: common.EncodeField(attesterID),
			PosRep:     "3",
			NegRep:     "0",
			Graffiti:   "0",
			SignUp:     true,
			Hash:       "1",
			Valid:      &valid,
		}); err != nil {
			return err
		}

		if err := tx.CreateAttestation(&store.Attestation{
			Epoch:      1,
			EpochKey:   key,
			Index:      1,
			Attester:   "0xattester",
			AttesterID: common.EncodeField(attesterID),
			PosRep:     "0",
			NegRep:     "1",
			Graffiti:   "777",
			SignUp:     false,
			Hash:       "2",
			Valid:      &valid,
		}); err != nil {
			return err
		}

		return tx.SealEpoch(1, "0xsealedroot")
	})
	require.NoError(t, err)

	rep, err := r.Reputation(identityNullifier, attesterID)
	require.NoError(t, err)

	assert.Equal(t, big.NewInt(3), rep.PosRep)
	assert.Equal(t, big.NewInt(1), rep.NegRep)
	assert.Equal(t, big.NewInt(777), rep.Graffiti)
	assert.True(t, rep.SignUp)
}

func TestGenEpochKeyProofInputsProducesAVerifiablePath(t *testing.T) {
	s := requireUserstateStore(t)
	r, err := NewReader(s)
	require.NoError(t, err)

	identityNullifier := big.NewInt(2002)

	var identityLeaf *big.Int
	err = s.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CreateEpoch(1); err != nil {
			return err
		}

		ustRootInt := r.emptyUSTRoot
		identityLeaf = r.hasher(identityNullifier, ustRootInt)

		_, err := tx.CreateGSTLeaf(1, 0, common.EncodeField(identityLeaf), "0xdead")
		return err
	})
	require.NoError(t, err)

	inputs, err := r.GenEpochKeyProofInputs(identityNullifier, identityLeaf, 1, 0)
	require.NoError(t, err)
	require.NotNil(t, inputs.GlobalStateTree)

	var root *big.Int
	err = s.View(func(tx *store.Tx) error {
		built, err := r.rebuildGST(tx, 1)
		if err != nil {
			return err
		}
		root = built.Root()
		return nil
	})
	require.NoError(t, err)

	assert.True(t, tree.VerifyPath(r.hasher, inputs.GlobalStateTree, root))
}

func TestGenUserStateTransitionProofInputsProducesAVerifiableEpochTreePath(t *testing.T) {
	s := requireUserstateStore(t)
	r, err := NewReader(s)
	require.NoError(t, err)

	identityNullifier := big.NewInt(3003)
	identityCommitment := big.NewInt(3004)
	attesterID := big.NewInt(9)

	var key *big.Int
	err = s.Transaction(func(tx *store.Tx) error {
		if _, err := tx.CreateEpoch(1); err != nil {
			return err
		}
		if _, err := tx.CreateEpoch(2); err != nil {
			return err
		}

		keys, err := r.EpochKeys(identityNullifier, 1)
		if err != nil {
			return err
		}
		key = keys[0]
		keyStr := common.EncodeField(key)

		if _, err := tx.UpsertEpochKey(1, keyStr); err != nil {
			return err
		}

		if err := tx.CreateAttestation(&store.Attestation{
			Epoch:      1,
			EpochKey:   keyStr,
			Index:      0,
			Attester:   "0xattester",
			AttesterID: common.EncodeField(attesterID),
			PosRep:     "2",
			NegRep:     "0",
			Graffiti:   "0",
			SignUp:     true,
			Hash:       "1",
		}); err != nil {
			return err
		}

		return tx.SealEpoch(1, "0xsealedroot")
	})
	require.NoError(t, err)

	inputs, err := r.GenUserStateTransitionProofInputs(identityNullifier, identityCommitment, 1)
	require.NoError(t, err)
	require.NotNil(t, inputs.FromEpochTree)
	require.Len(t, inputs.EpkNullifiers, int(common.Conf.NumEpochKeyNoncePerEpoch))
	require.NotNil(t, inputs.NewGlobalStateTreeLeaf)

	var (
		root  []byte
		value []byte
	)
	err = s.View(func(tx *store.Tx) error {
		epochTree, err := r.rebuildEpochTree(tx, 1)
		if err != nil {
			return err
		}
		root, err = epochTree.Root()
		if err != nil {
			return err
		}
		value, err = epochTree.Get(key)
		return err
	})
	require.NoError(t, err)

	ust, err := newUserStateTreeForTest(s, r, identityNullifier)
	require.NoError(t, err)
	ustRoot, err := ust.Root()
	require.NoError(t, err)

	expectedLeaf := r.hasher(identityCommitment, new(big.Int).SetBytes(ustRoot))
	assert.Equal(t, expectedLeaf, inputs.NewGlobalStateTreeLeaf)

	sparseTree := tree.NewSparseTree(r.newDigest(), common.Conf.EpochTreeDepth)
	assert.True(t, sparseTree.VerifyProof(inputs.FromEpochTree, root, value))
}

func newUserStateTreeForTest(s *store.Store, r *Reader, identityNullifier *big.Int) (*tree.SparseTree, error) {
	var ust *tree.SparseTree
	err := s.View(func(tx *store.Tx) error {
		t, err := r.userStateTree(tx, identityNullifier)
		if err != nil {
			return err
		}
		ust = t
		return nil
	})
	return ust, err
}
