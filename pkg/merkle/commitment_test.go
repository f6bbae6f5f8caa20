package merkle

import (
	"bytes"
	"testing"
)

func TestRollupDatasRootOrderIndependent(t *testing.T) {
	a := RollupData{RollupID: []byte("rollup-a"), Data: []byte("tx-a")}
	b := RollupData{RollupID: []byte("rollup-b"), Data: []byte("tx-b")}

	r1, err := RollupDatasRoot([]RollupData{a, b})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	r2, err := RollupDatasRoot([]RollupData{b, a})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if !bytes.Equal(r1, r2) {
		t.Fatalf("root depends on input order: %x != %x", r1, r2)
	}
}

func TestRollupIDsRootDedupsAndSorts(t *testing.T) {
	ids := [][]byte{[]byte("b"), []byte("a"), []byte("b")}
	r1, err := RollupIDsRoot(ids)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	r2, err := RollupIDsRoot([][]byte{[]byte("a"), []byte("b")})
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if !bytes.Equal(r1, r2) {
		t.Fatalf("dedup mismatch: %x != %x", r1, r2)
	}
}

func TestEmptyBlockHasDeterministicRoots(t *testing.T) {
	r1, err := RollupDatasRoot(nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	r2, err := RollupIDsRoot(nil)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	if len(r1) != 32 || len(r2) != 32 {
		t.Fatalf("expected 32-byte roots for empty input")
	}
}
