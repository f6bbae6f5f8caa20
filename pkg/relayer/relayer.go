// Copyright 2025 Astria Sequencer Contributors
//
// Sequencer-to-DA blob conversion boundary. The original
// astria-sequencer-relayer submits finalized blocks to Celestia as
// namespaced blobs (crates/astria-sequencer-relayer/src/sequencer_block.rs,
// crates/astria-sequencer-relayer/src/data_availability.rs); per §2 the DA
// client itself is out of scope. This package implements only the
// conversion from a finalized block into the blob shape a DA submitter
// would consume, grounded on the original's Namespace/get_namespace
// scheme.

package relayer

import (
	"crypto/sha256"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/block"
)

// Namespace is an 8-byte Celestia namespace identifier.
type Namespace [8]byte

// DefaultNamespace is the namespace finalized block metadata (the
// pointer blob listing each rollup's namespace at this height) is
// written to, matching the original's DEFAULT_NAMESPACE = *b"astriasq".
var DefaultNamespace = Namespace{'a', 's', 't', 'r', 'i', 'a', 's', 'q'}

// NamespaceFromRollupID derives a rollup's blob namespace the way the
// original's get_namespace does: the first 8 bytes of SHA-256(rollupID).
func NamespaceFromRollupID(rollupID []byte) Namespace {
	sum := sha256.Sum256(rollupID)
	var ns Namespace
	copy(ns[:], sum[:8])
	return ns
}

func (n Namespace) String() string {
	return fmt.Sprintf("%x", n[:])
}

// Blob is one namespaced submission unit: either the pointer blob (at
// DefaultNamespace) or a rollup's own data blob.
type Blob struct {
	Namespace Namespace
	Data      []byte
}

// SubmissionSet is everything one finalized height converts into: the
// pointer blob plus one data blob per rollup that had a deposit or
// sequenced action this block.
type SubmissionSet struct {
	Height int64
	Blobs  []Blob
}

// pointerEntry is one rollup's namespace recorded in the height's
// pointer blob, so a conductor reading only DefaultNamespace can find
// every other namespace to fetch.
type pointerEntry struct {
	RollupID  []byte
	Namespace Namespace
}

// ToSubmission converts a finalized block's rollup-data commitments into
// a DA submission set: a pointer blob naming every rollup namespace
// touched this height, and one data blob per rollup carrying its
// concatenated deposit bytes (built.Txs already separates the two
// commitment roots from the actual tx bytes; the pointer blob here
// reuses the commitments as the blob's deterministic header).
func ToSubmission(height int64, built *block.Built, rollupIDs [][32]byte, rollupData map[[32]byte][]byte) (SubmissionSet, error) {
	set := SubmissionSet{Height: height}

	header := append(append([]byte{}, built.RollupDatasRoot...), built.RollupIDsRoot...)
	var pointers []pointerEntry
	for _, id := range rollupIDs {
		idCopy := id
		ns := NamespaceFromRollupID(idCopy[:])
		pointers = append(pointers, pointerEntry{RollupID: idCopy[:], Namespace: ns})
		set.Blobs = append(set.Blobs, Blob{Namespace: ns, Data: rollupData[id]})
	}

	pointerBlob, err := encodePointerBlob(header, pointers)
	if err != nil {
		return SubmissionSet{}, err
	}
	set.Blobs = append([]Blob{{Namespace: DefaultNamespace, Data: pointerBlob}}, set.Blobs...)
	return set, nil
}

func encodePointerBlob(header []byte, pointers []pointerEntry) ([]byte, error) {
	out := append([]byte{}, header...)
	for _, p := range pointers {
		out = append(out, p.RollupID...)
		out = append(out, p.Namespace[:]...)
	}
	return out, nil
}
