package tree

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
)

// sumHasher is a cheap stand-in for the MiMC hasher used in production;
// deterministic and collision-free enough for exercising tree mechanics
// without pulling gnark-crypto into a unit test.
func sumHasher(left, right *big.Int) *big.Int {
	out := new(big.Int).Lsh(left, 256)
	out.Add(out, right)
	return out
}

func TestNewGlobalStateTreeEmptyRoot(t *testing.T) {
	defaultLeaf := big.NewInt(0)
	gst := NewGlobalStateTree(3, sumHasher, defaultLeaf)

	assert.Equal(t, uint(3), gst.Depth())
	assert.Equal(t, 0, gst.NumLeaves())
	assert.Equal(t, big.NewInt(8), gst.Capacity())

	leaf, err := gst.Leaf(5)
	assert.NoError(t, err)
	assert.Equal(t, defaultLeaf, leaf)
}

func TestGlobalStateTreeInsertAdvancesRoot(t *testing.T) {
	gst := NewGlobalStateTree(3, sumHasher, big.NewInt(0))

	emptyRoot := gst.Root()

	index, root, err := gst.Insert(big.NewInt(42))
	assert.NoError(t, err)
	assert.Equal(t, 0, index)
	assert.NotEqual(t, emptyRoot, root)
	assert.Equal(t, root, gst.Root())
	assert.Equal(t, 1, gst.NumLeaves())
}

func TestGlobalStateTreeSequentialIndices(t *testing.T) {
	gst := NewGlobalStateTree(4, sumHasher, big.NewInt(0))

	for i := 0; i < 5; i++ {
		index, _, err := gst.Insert(big.NewInt(int64(100 + i)))
		assert.NoError(t, err)
		assert.Equal(t, i, index)
	}

	assert.Equal(t, 5, gst.NumLeaves())
}

func TestGlobalStateTreeCapacityExceeded(t *testing.T) {
	gst := NewGlobalStateTree(1, sumHasher, big.NewInt(0))

	_, _, err := gst.Insert(big.NewInt(1))
	assert.NoError(t, err)
	_, _, err = gst.Insert(big.NewInt(2))
	assert.NoError(t, err)

	_, _, err = gst.Insert(big.NewInt(3))
	assert.Error(t, err)
}

func TestGlobalStateTreePathVerifies(t *testing.T) {
	gst := NewGlobalStateTree(3, sumHasher, big.NewInt(0))

	for i := 0; i < 4; i++ {
		_, _, err := gst.Insert(big.NewInt(int64(10 + i)))
		assert.NoError(t, err)
	}

	for i := 0; i < 4; i++ {
		proof, err := gst.Path(i)
		assert.NoError(t, err)
		assert.True(t, VerifyPath(sumHasher, proof, gst.Root()))
	}
}

func TestGlobalStateTreePathForUnfilledLeafUsesDefault(t *testing.T) {
	defaultLeaf := big.NewInt(0)
	gst := NewGlobalStateTree(3, sumHasher, defaultLeaf)

	_, _, err := gst.Insert(big.NewInt(99))
	assert.NoError(t, err)

	proof, err := gst.Path(6)
	assert.NoError(t, err)
	assert.Equal(t, defaultLeaf, proof.Leaf)
	assert.True(t, VerifyPath(sumHasher, proof, gst.Root()))
}

func TestGlobalStateTreePathOutOfBounds(t *testing.T) {
	gst := NewGlobalStateTree(2, sumHasher, big.NewInt(0))

	_, err := gst.Path(-1)
	assert.Error(t, err)

	_, err = gst.Path(4)
	assert.Error(t, err)
}
