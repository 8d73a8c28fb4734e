// +build unit

package userstate

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/provideplatform/unirep/tree"
)

func testReader(t *testing.T) *Reader {
	r, err := NewReader(nil)
	if err != nil {
		t.Fatalf("failed to construct reader: %s", err.Error())
	}
	return r
}

func TestDeriveEpochKeyIsDeterministic(t *testing.T) {
	r := testReader(t)

	identityNullifier := big.NewInt(42)
	a := r.deriveEpochKey(identityNullifier, 1, 0)
	b := r.deriveEpochKey(identityNullifier, 1, 0)
	assert.Equal(t, a, b)
}

func TestDeriveEpochKeyVariesByNonceAndEpoch(t *testing.T) {
	r := testReader(t)

	identityNullifier := big.NewInt(42)
	k0 := r.deriveEpochKey(identityNullifier, 1, 0)
	k1 := r.deriveEpochKey(identityNullifier, 1, 1)
	k2 := r.deriveEpochKey(identityNullifier, 2, 0)

	assert.NotEqual(t, k0, k1)
	assert.NotEqual(t, k0, k2)
}

func TestDeriveEpochKeyIsMaskedToEpochTreeDepth(t *testing.T) {
	r := testReader(t)

	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 64), big.NewInt(1))
	key := r.deriveEpochKey(big.NewInt(1), 1, 0)
	assert.True(t, key.Cmp(mask) <= 0)
	assert.True(t, key.Sign() >= 0)
}

func TestReputationHashMatchesProtocolHashReputation(t *testing.T) {
	r := testReader(t)

	rep := &Reputation{
		PosRep:   big.NewInt(3),
		NegRep:   big.NewInt(1),
		Graffiti: big.NewInt(0),
		SignUp:   true,
	}

	expected := tree.HashReputation(r.hasher, rep.PosRep, rep.NegRep, rep.Graffiti, big.NewInt(1))
	assert.Equal(t, expected, rep.Hash(r.hasher))
}

func TestReputationSignUpField(t *testing.T) {
	yes := &Reputation{SignUp: true}
	no := &Reputation{SignUp: false}

	assert.Equal(t, big.NewInt(1), yes.SignUp_())
	assert.Equal(t, big.NewInt(0), no.SignUp_())
}

func TestDeriveNullifierDomainsDoNotCollide(t *testing.T) {
	r := testReader(t)

	identityNullifier := big.NewInt(7)
	repNullifier := r.deriveNullifier(identityNullifier, 1, 0, nullifierDomainReputation)
	transNullifier := r.deriveNullifier(identityNullifier, 1, 0, nullifierDomainTransition)

	assert.NotEqual(t, repNullifier, transNullifier)
}
