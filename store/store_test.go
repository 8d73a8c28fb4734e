// +build unit

package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEpochValidateRequiresRootWhenSealed(t *testing.T) {
	epoch := &Epoch{Number: 1, Sealed: true}
	assert.False(t, epoch.validate())
	assert.NotEmpty(t, epoch.Errors)

	root := "123"
	epoch.EpochRoot = &root
	assert.True(t, epoch.validate())
}

func TestGSTLeafValidateRequiresHash(t *testing.T) {
	leaf := &GSTLeaf{Epoch: 1, Index: 0}
	assert.False(t, leaf.validate())

	leaf.Hash = "456"
	assert.True(t, leaf.validate())
}

func TestNullifierValidateRequiresValue(t *testing.T) {
	n := &Nullifier{Epoch: 1}
	assert.False(t, n.validate())

	n.Nullifier = "789"
	assert.True(t, n.validate())
}

func TestProofValidateRequiresEvent(t *testing.T) {
	p := &Proof{Index: 1}
	assert.False(t, p.validate())

	p.Event = "IndexedUserSignUpProof"
	assert.True(t, p.validate())
}

func TestAttestationValidateRequiresHash(t *testing.T) {
	a := &Attestation{Epoch: 1, EpochKey: "1"}
	assert.False(t, a.validate())

	a.Hash = "abc"
	assert.True(t, a.validate())
}
