// Copyright 2025 Astria Sequencer Contributors
//
// Deterministic order-ID derivation (§4.5, §9). OS randomness is
// forbidden inside checked-action execution; IDs are derived from
// HMAC(key=chain_secret, msg=tx_id‖action_index‖sub_index) instead,
// formatted as a UUIDv4 via google/uuid so the result is wire-compatible
// with anything expecting a standard UUID string.

package market

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"

	"github.com/google/uuid"
)

// DeriveOrderID computes a deterministic UUIDv4-shaped identifier for the
// subIndex-th order created within action actionIndex of transaction
// txID, keyed by the chain's configured secret.
func DeriveOrderID(chainSecret []byte, txID [32]byte, actionIndex uint64, subIndex uint64) uuid.UUID {
	mac := hmac.New(sha256.New, chainSecret)
	mac.Write(txID[:])
	var idxBuf [16]byte
	binary.BigEndian.PutUint64(idxBuf[0:8], actionIndex)
	binary.BigEndian.PutUint64(idxBuf[8:16], subIndex)
	mac.Write(idxBuf[:])
	digest := mac.Sum(nil)

	var raw [16]byte
	copy(raw[:], digest[:16])
	// Set the version (4) and variant (RFC 4122) bits so the identifier
	// is indistinguishable on the wire from a randomly generated UUIDv4,
	// even though its bytes are a deterministic PRF output.
	raw[6] = (raw[6] & 0x0f) | 0x40
	raw[8] = (raw[8] & 0x3f) | 0x80
	id, _ := uuid.FromBytes(raw[:])
	return id
}
