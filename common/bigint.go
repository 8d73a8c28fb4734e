package common

import (
	"fmt"
	"math/big"
)

// EncodeField canonicalizes a field element as a base-10 decimal string,
// the wire/storage format for every publicSignal, proof element, and
// tree root or leaf that crosses the persistence boundary.
func EncodeField(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.Text(10)
}

// DecodeField parses a canonical decimal-string field element. It rejects
// any non-decimal encoding so a stray hex string never silently becomes
// the wrong integer.
func DecodeField(s string) (*big.Int, error) {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("failed to decode field element as base-10 decimal: %s", s)
	}
	return v, nil
}

// EncodeFields encodes an ordered slice of field elements.
func EncodeFields(vals []*big.Int) []string {
	out := make([]string, len(vals))
	for i, v := range vals {
		out[i] = EncodeField(v)
	}
	return out
}

// DecodeFields decodes an ordered slice of canonical field element strings.
func DecodeFields(strs []string) ([]*big.Int, error) {
	out := make([]*big.Int, len(strs))
	for i, s := range strs {
		v, err := DecodeField(s)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
