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
	"hash"
	"strings"

	"github.com/consensys/gnark-crypto/ecc"
	gnarkhash "github.com/consensys/gnark-crypto/hash"
)

// HashFactory resolves the SNARK-friendly MiMC hash for curve, the same
// curve-keyed switch the teacher's store/providers/merkletree and
// store/providers/smt packages use. It is the sole selection point for
// the tree engine's hash primitive (tree.NewMiMCHasher, tree.NewSparseTree).
func HashFactory(curve *string) hash.Hash {
	if curve == nil {
		return nil
	}

	switch strings.ToLower(*curve) {
	case ecc.BLS12_377.String():
		return gnarkhash.MIMC_BLS12_377.New()
	case ecc.BLS12_381.String():
		return gnarkhash.MIMC_BLS12_381.New()
	case ecc.BN254.String():
		return gnarkhash.MIMC_BN254.New()
	case ecc.BW6_761.String():
		return gnarkhash.MIMC_BW6_761.New()
	case ecc.BLS24_315.String():
		return gnarkhash.MIMC_BLS24_315.New()
	default:
		Log.Warningf("failed to resolve hash type string; unknown or unsupported curve: %s", *curve)
	}

	return nil
}
