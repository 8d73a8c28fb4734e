// +build unit

package prover

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/provideplatform/unirep/common"
)

func bigInts(vals ...int64) []*big.Int {
	out := make([]*big.Int, len(vals))
	for i, v := range vals {
		out[i] = big.NewInt(v)
	}
	return out
}

func TestWitnessFactoryProveUserSignUp(t *testing.T) {
	w, err := witnessFactory(CircuitProveUserSignUp, bigInts(1, 2, 3, 4, 1))
	require.NoError(t, err)
	circuit, ok := w.(*ProveUserSignUpCircuit)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(1), circuit.Epoch)
	assert.Equal(t, big.NewInt(4), circuit.AttesterID)
}

func TestWitnessFactoryProveUserSignUpWrongLength(t *testing.T) {
	_, err := witnessFactory(CircuitProveUserSignUp, bigInts(1, 2))
	assert.Error(t, err)
}

func TestWitnessFactoryVerifyEpochKey(t *testing.T) {
	w, err := witnessFactory(CircuitVerifyEpochKey, bigInts(1, 2, 3))
	require.NoError(t, err)
	circuit, ok := w.(*VerifyEpochKeyCircuit)
	require.True(t, ok)
	assert.Equal(t, big.NewInt(3), circuit.EpochKey)
}

func TestWitnessFactoryProveReputationRecoversNullifierCount(t *testing.T) {
	// 3 repNullifiers followed by the 8 fixed fields
	signals := bigInts(10, 11, 12, 1, 2, 3, 4, 5, 6, 0, 0)
	w, err := witnessFactory(CircuitProveReputation, signals)
	require.NoError(t, err)
	circuit, ok := w.(*ProveReputationCircuit)
	require.True(t, ok)
	assert.Len(t, circuit.RepNullifiers, 3)
	assert.Equal(t, big.NewInt(1), circuit.Epoch)
	assert.Equal(t, big.NewInt(0), circuit.GraffitiPreImage)
}

func TestWitnessFactoryProveReputationTooShort(t *testing.T) {
	_, err := witnessFactory(CircuitProveReputation, bigInts(1, 2, 3))
	assert.Error(t, err)
}

func TestWitnessFactoryStartTransition(t *testing.T) {
	w, err := witnessFactory(CircuitStartTransition, bigInts(1, 2, 3))
	require.NoError(t, err)
	_, ok := w.(*StartTransitionCircuit)
	assert.True(t, ok)
}

func TestWitnessFactoryProcessAttestations(t *testing.T) {
	w, err := witnessFactory(CircuitProcessAttestations, bigInts(1, 2, 3))
	require.NoError(t, err)
	_, ok := w.(*ProcessAttestationsCircuit)
	assert.True(t, ok)
}

func TestWitnessFactoryUserStateTransitionPinsNullifierCountToConfig(t *testing.T) {
	k := int(common.Conf.NumEpochKeyNoncePerEpoch)

	signals := make([]*big.Int, 0)
	signals = append(signals, big.NewInt(1)) // newLeaf
	for i := 0; i < k; i++ {                 // epkNullifiers[k]
		signals = append(signals, big.NewInt(int64(100+i)))
	}
	signals = append(signals, big.NewInt(2))                // transitionFromEpoch
	signals = append(signals, big.NewInt(3), big.NewInt(4)) // blindedUserStates[2]
	signals = append(signals, big.NewInt(5))                // fromGlobalStateTree
	signals = append(signals, big.NewInt(6), big.NewInt(7)) // blindedHashChains[2]
	signals = append(signals, big.NewInt(8))                // fromEpochTree

	w, err := witnessFactory(CircuitUserStateTransition, signals)
	require.NoError(t, err)
	circuit, ok := w.(*UserStateTransitionCircuit)
	require.True(t, ok)
	assert.Len(t, circuit.EpkNullifiers, k)
	assert.Len(t, circuit.BlindedHashChains, 2)
	assert.Equal(t, big.NewInt(8), circuit.FromEpochTree)
}

func TestWitnessFactoryUserStateTransitionTooShort(t *testing.T) {
	_, err := witnessFactory(CircuitUserStateTransition, bigInts(1, 2))
	assert.Error(t, err)
}

func TestWitnessFactoryUnrecognizedCircuit(t *testing.T) {
	_, err := witnessFactory("notACircuit", bigInts(1))
	assert.Error(t, err)
}
