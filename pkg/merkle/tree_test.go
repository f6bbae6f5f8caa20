package merkle

import (
	"crypto/sha256"
	"testing"
)

func TestEmptyTreeRootIsHashOfEmptyString(t *testing.T) {
	tree := NewTree()
	want := sha256.Sum256(nil)
	if tree.Root() != want {
		t.Fatalf("empty tree root = %x, want %x", tree.Root(), want)
	}
}

func TestSingleLeafRootIsDomainSeparatedHash(t *testing.T) {
	tree := NewTree()
	tree.Push([]byte("rollup-a||tx-bytes"))

	want := hashLeaf([]byte("rollup-a||tx-bytes"))
	if tree.Root() != want {
		t.Fatalf("single-leaf root = %x, want hash_leaf(leaf) = %x", tree.Root(), want)
	}

	leaf, ok := tree.Leaf(0)
	if !ok || leaf != want {
		t.Fatalf("Leaf(0) = %x, %v; want %x, true", leaf, ok, want)
	}
}

func TestTwoLeavesRootIsDomainSeparatedCombine(t *testing.T) {
	tree := NewTree()
	tree.Push([]byte("leaf-1"))
	tree.Push([]byte("leaf-2"))

	want := combine(hashLeaf([]byte("leaf-1")), hashLeaf([]byte("leaf-2")))
	if tree.Root() != want {
		t.Fatalf("two-leaf root = %x, want combine(hash_leaf(l1), hash_leaf(l2)) = %x", tree.Root(), want)
	}
}

func TestLeafHashNeverCollidesWithBranchHash(t *testing.T) {
	// A single leaf's root and the combination of two leaves must land in
	// disjoint hash spaces: the 0x00/0x01 domain-separation prefixes mean
	// no leaf is ever reinterpretable as an internal node and vice versa.
	leafRoot := hashLeaf([]byte("x"))
	branchRoot := combine(hashLeaf([]byte("a")), hashLeaf([]byte("b")))
	if leafRoot == branchRoot {
		t.Fatalf("leaf hash collided with branch hash: %x", leafRoot)
	}
}

func TestRootIsOrderSensitive(t *testing.T) {
	t1 := BuildTree([][]byte{[]byte("rollup-a"), []byte("rollup-b")})
	t2 := BuildTree([][]byte{[]byte("rollup-b"), []byte("rollup-a")})
	if t1.Root() == t2.Root() {
		t.Fatalf("tree root must depend on leaf order, both trees produced %x", t1.Root())
	}
}

func TestBuildTreeMatchesIncrementalPush(t *testing.T) {
	leaves := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d"), []byte("e")}

	bulk := BuildTree(leaves)

	incremental := NewTree()
	for _, l := range leaves {
		incremental.Push(l)
	}

	if bulk.Root() != incremental.Root() {
		t.Fatalf("BuildTree root %x != incremental Push root %x", bulk.Root(), incremental.Root())
	}
	if bulk.Len() != incremental.Len() {
		t.Fatalf("BuildTree len %d != incremental Push len %d", bulk.Len(), incremental.Len())
	}
}

func TestOddLeafCountDoesNotDuplicateLastLeaf(t *testing.T) {
	// A correct flat in-order tree of 3 leaves has 5 nodes (3 leaves + 2
	// branches), not the 4 leaves a duplicate-last-leaf padding scheme
	// would produce.
	tree := BuildTree([][]byte{[]byte("a"), []byte("b"), []byte("c")})
	if tree.Len() != 5 {
		t.Fatalf("tree of 3 leaves has %d nodes, want 5", tree.Len())
	}
}

func TestLeafOutOfRangeReturnsFalse(t *testing.T) {
	tree := BuildTree([][]byte{[]byte("a"), []byte("b")})
	if _, ok := tree.Leaf(2); ok {
		t.Fatalf("expected Leaf(2) to report false for an out-of-range index")
	}
}

func TestRollupCommitmentRootsAreDeterministicAcrossRuns(t *testing.T) {
	// Mirrors how pkg/merkle composes rollup_datas_root leaves: rollup ID
	// concatenated with the rollup's serialized data, so that two peers
	// computing the same block's commitments independently must land on
	// the same byte-identical root.
	leaf := func(rollupID, data string) []byte {
		return append([]byte(rollupID), []byte(data)...)
	}

	a := BuildTree([][]byte{leaf("rollup-a", "tx-a"), leaf("rollup-b", "tx-b")})
	b := BuildTree([][]byte{leaf("rollup-a", "tx-a"), leaf("rollup-b", "tx-b")})
	if a.Root() != b.Root() {
		t.Fatalf("independent builds over identical leaves diverged")
	}
}
