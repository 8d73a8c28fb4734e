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

package prover

import (
	"bytes"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark-crypto/kzg"
	"github.com/consensys/gnark/backend"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/backend/plonk"
	"github.com/consensys/gnark/frontend"

	"github.com/provideplatform/unirep/common"
)

// GnarkVerifier verifies UniRep circuit proofs against verifying keys
// provisioned ahead of time on disk, one file per circuit named after
// the lower-cased circuit name plus ".vk" under keyDir. It never compiles a circuit or runs a
// trusted setup -- those are out of scope (spec.md §1 Non-goals).
type GnarkVerifier struct {
	curveID         ecc.ID
	provingSchemeID backend.ID
	srs             []byte // KZG SRS, only required for PLONK

	keyDir string

	mutex         sync.RWMutex
	verifyingKeys map[string]interface{}
}

// NewGnarkVerifier constructs a verifier for the configured curve and
// proving scheme, lazily loading verifying keys from keyDir as they
// are requested.
func NewGnarkVerifier(curve, provingScheme *string, keyDir string, srs []byte) *GnarkVerifier {
	return &GnarkVerifier{
		curveID:         common.GnarkCurveIDFactory(curve),
		provingSchemeID: common.GnarkProvingSchemeFactory(provingScheme),
		srs:             srs,
		keyDir:          keyDir,
		verifyingKeys:   map[string]interface{}{},
	}
}

// Verify implements Verifier.
func (v *GnarkVerifier) Verify(circuit string, publicSignals []*big.Int, proof []*big.Int) (bool, error) {
	assignment, err := witnessFactory(circuit, publicSignals)
	if err != nil {
		return false, fmt.Errorf("failed to build witness for circuit %s: %s", circuit, err.Error())
	}

	witness, err := frontend.NewWitness(assignment, v.curveID, frontend.PublicOnly())
	if err != nil {
		return false, fmt.Errorf("failed to build public witness for circuit %s: %s", circuit, err.Error())
	}

	vk, err := v.verifyingKey(circuit)
	if err != nil {
		return false, err
	}

	prf, err := v.decodeProof(proof)
	if err != nil {
		return false, err
	}

	switch v.provingSchemeID {
	case backend.GROTH16:
		err = groth16.Verify(prf.(groth16.Proof), vk.(groth16.VerifyingKey), witness)
	case backend.PLONK:
		kzgSRS := kzg.NewSRS(v.curveID)
		if _, err := kzgSRS.ReadFrom(bytes.NewReader(v.srs)); err != nil {
			return false, fmt.Errorf("failed to decode plonk kzg srs: %s", err.Error())
		}
		if err := vk.(plonk.VerifyingKey).InitKZG(kzgSRS); err != nil {
			return false, fmt.Errorf("failed to initialize plonk verifying key with kzg srs: %s", err.Error())
		}
		err = plonk.Verify(prf.(plonk.Proof), vk.(plonk.VerifyingKey), witness)
	default:
		return false, fmt.Errorf("invalid proving scheme for Verify")
	}

	if err != nil {
		common.Log.Debugf("proof verification failed for circuit %s: %s", circuit, err.Error())
		return false, nil
	}

	return true, nil
}

func (v *GnarkVerifier) verifyingKey(circuit string) (interface{}, error) {
	v.mutex.RLock()
	vk, ok := v.verifyingKeys[circuit]
	v.mutex.RUnlock()
	if ok {
		return vk, nil
	}

	v.mutex.Lock()
	defer v.mutex.Unlock()

	if vk, ok := v.verifyingKeys[circuit]; ok {
		return vk, nil
	}

	raw, err := os.ReadFile(filepath.Join(v.keyDir, strings.ToLower(circuit)+".vk"))
	if err != nil {
		return nil, fmt.Errorf("failed to read verifying key for circuit %s: %s", circuit, err.Error())
	}

	decoded, err := v.decodeVerifyingKey(raw)
	if err != nil {
		return nil, err
	}

	v.verifyingKeys[circuit] = decoded
	return decoded, nil
}

func (v *GnarkVerifier) decodeVerifyingKey(raw []byte) (interface{}, error) {
	var n int64
	var err error
	var vk interface{}

	switch v.provingSchemeID {
	case backend.GROTH16:
		vk = groth16.NewVerifyingKey(v.curveID)
		n, err = vk.(groth16.VerifyingKey).ReadFrom(bytes.NewReader(raw))
	case backend.PLONK:
		vk = plonk.NewVerifyingKey(v.curveID)
		n, err = vk.(plonk.VerifyingKey).ReadFrom(bytes.NewReader(raw))
	default:
		return nil, fmt.Errorf("invalid proving scheme in decodeVerifyingKey")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode verifying key: %s", err.Error())
	}

	common.Log.Debugf("read %d bytes during verifying key deserialization", n)
	return vk, nil
}

func (v *GnarkVerifier) decodeProof(elements []*big.Int) (interface{}, error) {
	buf := new(bytes.Buffer)
	for _, e := range elements {
		buf.Write(e.FillBytes(make([]byte, 32)))
	}

	var err error
	var prf interface{}

	switch v.provingSchemeID {
	case backend.GROTH16:
		prf = groth16.NewProof(v.curveID)
		_, err = prf.(groth16.Proof).ReadFrom(buf)
	case backend.PLONK:
		if v.curveID != ecc.BN254 {
			return nil, fmt.Errorf("unsupported plonk curve")
		}
		prf = plonk.NewProof(v.curveID)
		_, err = prf.(plonk.Proof).ReadFrom(buf)
	default:
		return nil, fmt.Errorf("invalid proving scheme in decodeProof")
	}

	if err != nil {
		return nil, fmt.Errorf("failed to decode proof: %s", err.Error())
	}

	return prf, nil
}
