// Copyright 2025 Astria Sequencer Contributors
//
// Address codec (C2): 20-byte identifiers rendered via Bech32m with a
// chain-wide base prefix and a secondary IBC-compatible prefix (§3, §6).

package address

import (
	"errors"
	"fmt"

	"github.com/btcsuite/btcutil/bech32"
)

// Length is the fixed byte length of a sequencer address.
const Length = 20

var (
	ErrWrongLength    = errors.New("address: must be exactly 20 bytes")
	ErrUnknownPrefix  = errors.New("address: does not decode under either configured prefix")
	ErrPrefixMismatch = errors.New("address: decoded under a prefix other than requested")
)

// Address is a 20-byte chain identifier.
type Address [Length]byte

// Prefixes names the two Bech32m human-readable parts a chain accepts on
// the wire. Every address persisted in state is re-encoded under Base
// before storage (§6).
type Prefixes struct {
	Base string // e.g. "astria"
	IBC  string // e.g. "astriacompat"
}

// FromBytes builds an Address from a 20-byte slice.
func FromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != Length {
		return a, fmt.Errorf("%w: got %d", ErrWrongLength, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Bytes returns the address as a byte slice.
func (a Address) Bytes() []byte {
	out := make([]byte, Length)
	copy(out, a[:])
	return out
}

// Encode renders the address as Bech32m under the given human-readable
// prefix.
func Encode(hrp string, a Address) (string, error) {
	conv, err := bech32.ConvertBits(a[:], 8, 5, true)
	if err != nil {
		return "", fmt.Errorf("address: convert bits: %w", err)
	}
	enc, err := bech32.EncodeM(hrp, conv)
	if err != nil {
		return "", fmt.Errorf("address: encode: %w", err)
	}
	return enc, nil
}

// Decode parses a Bech32m string under one of the two configured prefixes
// (base or IBC-compatible) and returns the decoded address plus which
// prefix it matched. Wire ingress is the only place the IBC prefix is
// accepted; state always stores the base-prefix form (§6).
func Decode(prefixes Prefixes, s string) (Address, string, error) {
	hrp, data, err := bech32.DecodeNoLimit(s)
	if err != nil {
		return Address{}, "", fmt.Errorf("address: decode: %w", err)
	}
	if hrp != prefixes.Base && hrp != prefixes.IBC {
		return Address{}, "", fmt.Errorf("%w: got hrp %q", ErrUnknownPrefix, hrp)
	}
	conv, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return Address{}, "", fmt.Errorf("address: convert bits: %w", err)
	}
	addr, err := FromBytes(conv)
	if err != nil {
		return Address{}, "", err
	}
	return addr, hrp, nil
}

// MustDecodeBase decodes a Bech32m string that must match the base prefix
// exactly; used for anything that is re-storing a previously encoded
// address rather than ingesting wire input.
func MustDecodeBase(prefixes Prefixes, s string) (Address, error) {
	addr, hrp, err := Decode(prefixes, s)
	if err != nil {
		return Address{}, err
	}
	if hrp != prefixes.Base {
		return Address{}, ErrPrefixMismatch
	}
	return addr, nil
}

// String renders the raw address bytes as lowercase hex; callers that need
// a Bech32m rendering (base or IBC-compatible) must call Encode directly,
// since an Address in isolation does not know which prefix set it belongs
// to.
func (a Address) String() string {
	return fmt.Sprintf("%x", a[:])
}
