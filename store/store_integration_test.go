// +build integration

package store

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireStore opens a Store against the database configured by the
// standard go-db-config environment variables (DATABASE_URL et al.)
// and migrates it. Run with `go test -tags integration` against a
// disposable Postgres instance.
func requireStore(t *testing.T) *Store {
	s, err := Open()
	require.NoError(t, err)
	require.NoError(t, s.Migrate())
	return s
}

func TestGSTLeafIndicesAreContiguous(t *testing.T) {
	s := requireStore(t)

	err := s.Transaction(func(tx *Tx) error {
		epoch, err := tx.CreateEpoch(1)
		if err != nil {
			return err
		}

		for i := 0; i < 5; i++ {
			count, err := tx.CountGSTLeaves(epoch.Number)
			if err != nil {
				return err
			}
			if _, err := tx.CreateGSTLeaf(epoch.Number, uint64(count), fmt.Sprintf("leaf-%d", i), "0xdead"); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)

	err = s.View(func(tx *Tx) error {
		leaves, err := tx.GSTLeaves(1)
		require.NoError(t, err)
		assert.Len(t, leaves, 5)
		for i, leaf := range leaves {
			assert.Equal(t, uint64(i), leaf.Index)
		}
		return nil
	})
	require.NoError(t, err)
}

func TestAtMostOneUnsealedEpoch(t *testing.T) {
	s := requireStore(t)

	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.CreateEpoch(2); err != nil {
			return err
		}
		return tx.SealEpoch(2, "root-2")
	})
	require.NoError(t, err)

	err = s.Transaction(func(tx *Tx) error {
		_, err := tx.CreateEpoch(3)
		return err
	})
	require.NoError(t, err)

	err = s.View(func(tx *Tx) error {
		_, err := tx.UnsealedEpoch()
		return err
	})
	require.NoError(t, err)
}

func TestNoTwoConfirmedNullifiersShareValue(t *testing.T) {
	s := requireStore(t)

	err := s.Transaction(func(tx *Tx) error {
		return tx.ConfirmNullifiers(1, []string{"dup-nullifier"})
	})
	require.NoError(t, err)

	err = s.Transaction(func(tx *Tx) error {
		confirmed, err := tx.NullifierConfirmed("dup-nullifier")
		if err != nil {
			return err
		}
		if confirmed {
			return fmt.Errorf("refusing re-confirmation of an already-confirmed nullifier")
		}
		return nil
	})
	assert.Error(t, err)
}

func TestTransactionRollsBackOnError(t *testing.T) {
	s := requireStore(t)

	err := s.Transaction(func(tx *Tx) error {
		if _, err := tx.CreateEpoch(999); err != nil {
			return err
		}
		return fmt.Errorf("force rollback")
	})
	assert.Error(t, err)

	err = s.View(func(tx *Tx) error {
		_, err := tx.EpochByNumber(999)
		return err
	})
	assert.Equal(t, ErrNotFound, err)
}
