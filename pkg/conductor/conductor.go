// Copyright 2025 Astria Sequencer Contributors
//
// DA blob-to-block reconstruction boundary, the consumer side of
// pkg/relayer. The original astria-conductor reads a height's pointer
// blob from Celestia, then fetches each referenced rollup namespace's
// data blob and reassembles a rollup's view of the sequencer block
// (crates/astria-conductor/src/celestia/mod.rs, block_verifier.rs); per
// §2 the Celestia client is out of scope, so this package only
// implements the parse/verify step once a submission set is already in
// hand.

package conductor

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/astriaorg/astria-go-sequencer/pkg/merkle"
	"github.com/astriaorg/astria-go-sequencer/pkg/relayer"
)

// ErrShortPointerBlob is returned when the pointer blob is smaller than
// the fixed 64-byte commitment header it must begin with.
var ErrShortPointerBlob = errors.New("conductor: pointer blob shorter than commitment header")

// ErrTruncatedEntry is returned when the pointer blob's entry list does
// not divide evenly into (rollup_id, namespace) pairs.
var ErrTruncatedEntry = errors.New("conductor: pointer blob entry list truncated")

const (
	rollupIDLen   = 32
	namespaceLen  = 8
	pointerHeader = 64 // RollupDatasRoot || RollupIDsRoot
	pointerEntry  = rollupIDLen + namespaceLen
)

// PointerInfo is one rollup's namespace as recorded in a height's
// pointer blob.
type PointerInfo struct {
	RollupID  [32]byte
	Namespace relayer.Namespace
}

// Pointer is the decoded form of the DefaultNamespace blob: the two
// rollup-data commitment roots the sequencer committed to this height,
// plus every rollup namespace a conductor must separately fetch.
type Pointer struct {
	RollupDatasRoot []byte
	RollupIDsRoot   []byte
	Entries         []PointerInfo
}

// DecodePointer parses the DefaultNamespace blob produced by
// relayer.ToSubmission.
func DecodePointer(data []byte) (Pointer, error) {
	if len(data) < pointerHeader {
		return Pointer{}, ErrShortPointerBlob
	}
	p := Pointer{
		RollupDatasRoot: append([]byte{}, data[:32]...),
		RollupIDsRoot:   append([]byte{}, data[32:64]...),
	}
	rest := data[pointerHeader:]
	if len(rest)%pointerEntry != 0 {
		return Pointer{}, ErrTruncatedEntry
	}
	for i := 0; i < len(rest); i += pointerEntry {
		var id [32]byte
		copy(id[:], rest[i:i+rollupIDLen])
		var ns relayer.Namespace
		copy(ns[:], rest[i+rollupIDLen:i+pointerEntry])
		p.Entries = append(p.Entries, PointerInfo{RollupID: id, Namespace: ns})
	}
	return p, nil
}

// RollupView is one rollup's reconstructed slice of a sequencer height:
// its rollup ID and the raw data blob fetched from its namespace. It
// carries no inclusion proof against RollupDatasRoot.
type RollupView struct {
	RollupID [32]byte
	Data     []byte
}

// Reconstruct matches each pointer entry to its fetched data blob (keyed
// by namespace) and verifies the set of rollup IDs against RollupIDsRoot,
// the check a conductor must make before trusting any rollup's data as
// belonging to this sequencer height.
func Reconstruct(p Pointer, blobsByNamespace map[relayer.Namespace][]byte) ([]RollupView, error) {
	ids := make([][]byte, 0, len(p.Entries))
	views := make([]RollupView, 0, len(p.Entries))
	for _, e := range p.Entries {
		idCopy := e.RollupID
		ids = append(ids, idCopy[:])
		views = append(views, RollupView{RollupID: e.RollupID, Data: blobsByNamespace[e.Namespace]})
	}

	root, err := merkle.RollupIDsRoot(ids)
	if err != nil {
		return nil, err
	}
	if !bytes.Equal(root, p.RollupIDsRoot) {
		return nil, fmt.Errorf("conductor: rollup ids root mismatch: got %x want %x", root, p.RollupIDsRoot)
	}
	return views, nil
}
