// Copyright 2025 Astria Sequencer Contributors
//
// Canonical encoding helpers standing in for the generated protobuf layer
// that §1 excludes ("generated protobuf encode/decode (assumed correct)").
// Every action, deposit, and transaction is serialized through here so
// that two independent peers producing the same value always produce the
// same bytes, the property the rollup-data commitment and transaction IDs
// rely on.

package codec

import (
	"crypto/sha256"
	"encoding/json"
	"sort"
)

// Canonicalize re-marshals arbitrary JSON bytes with map keys sorted and
// array order preserved, the deterministic encoding every wire value in
// this package is built on.
func Canonicalize(raw []byte) ([]byte, error) {
	var v interface{}
	if err := json.Unmarshal(raw, &v); err != nil {
		return nil, err
	}
	return json.Marshal(canonicalizeValue(v))
}

func canonicalizeValue(v interface{}) interface{} {
	switch vv := v.(type) {
	case map[string]interface{}:
		keys := make([]string, 0, len(vv))
		for k := range vv {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ordered := make(map[string]interface{}, len(vv))
		for _, k := range keys {
			ordered[k] = canonicalizeValue(vv[k])
		}
		return ordered
	case []interface{}:
		out := make([]interface{}, len(vv))
		for i, e := range vv {
			out[i] = canonicalizeValue(e)
		}
		return out
	default:
		return vv
	}
}

// Marshal encodes v as canonical JSON: the deterministic serialized form
// whose bytes are what is hashed into the rollup-data commitment leaves.
func Marshal(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return Canonicalize(raw)
}

// Hash returns the SHA-256 digest of v's canonical encoding.
func Hash(v interface{}) ([32]byte, error) {
	b, err := Marshal(v)
	if err != nil {
		return [32]byte{}, err
	}
	return sha256.Sum256(b), nil
}

// HashBytes returns the SHA-256 digest of raw bytes directly, used for
// deriving a transaction ID from its already-canonical wire encoding.
func HashBytes(raw []byte) [32]byte {
	return sha256.Sum256(raw)
}
