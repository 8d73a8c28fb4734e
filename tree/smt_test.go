package tree

import (
	"crypto/sha256"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparseTreeUpdateAndGet(t *testing.T) {
	st := NewSparseTree(sha256.New(), 32)

	key := big.NewInt(7)
	val := []byte("sealed-hash-chain")

	root, err := st.Update(key, val)
	assert.NoError(t, err)
	assert.NotEmpty(t, root)

	got, err := st.Get(key)
	assert.NoError(t, err)
	assert.Equal(t, val, got)
}

func TestSparseTreeRootChangesOnUpdate(t *testing.T) {
	st := NewSparseTree(sha256.New(), 32)

	_, err := st.Root()
	assert.Error(t, err, "empty tree has no root yet")

	root1, err := st.Update(big.NewInt(1), []byte("a"))
	assert.NoError(t, err)

	root2, err := st.Update(big.NewInt(2), []byte("b"))
	assert.NoError(t, err)

	assert.NotEqual(t, root1, root2)

	current, err := st.Root()
	assert.NoError(t, err)
	assert.Equal(t, root2, current)
}

func TestSparseTreeProofVerifies(t *testing.T) {
	st := NewSparseTree(sha256.New(), 32)

	key := big.NewInt(123456789)
	val := []byte("reputation-root")

	root, err := st.Update(key, val)
	assert.NoError(t, err)

	proof, err := st.Prove(key)
	assert.NoError(t, err)

	assert.True(t, st.VerifyProof(proof, root, val))
	assert.False(t, st.VerifyProof(proof, root, []byte("wrong-value")))
}

func TestSparseTreeExportImportRoundTrip(t *testing.T) {
	st := NewSparseTree(sha256.New(), 32)

	_, err := st.Update(big.NewInt(1), []byte("a"))
	assert.NoError(t, err)
	root, err := st.Update(big.NewInt(2), []byte("b"))
	assert.NoError(t, err)

	nodes, values, exportedRoot := st.Export()
	assert.Equal(t, root, exportedRoot)

	reopened := ImportSparseTree(sha256.New(), 32, nodes, values, exportedRoot)
	got, err := reopened.Get(big.NewInt(2))
	assert.NoError(t, err)
	assert.Equal(t, []byte("b"), got)
}
