// Copyright 2025 Astria Sequencer Contributors
//
// A RFC 6962 compliant Merkle tree with a flat, in-order representation,
// used to bind rollup data and rollup IDs into the consensus header (§4.7,
// §6). Leaves are domain-separated from internal nodes
// (hash_leaf = SHA256(0x00 || leaf), combine = SHA256(0x01 || left ||
// right)) so that a leaf hash can never be replayed as an internal node
// hash or vice versa.
//
// The tree stores only node hashes, alternating leaves at even indices
// with branches at odd indices:
//
//	0
//	  1
//	2
//	   3
//	4
//	  5
//	6
//
// See https://mmapped.blog/posts/22-flat-in-order-trees for the indexing
// scheme this is built on, and RFC 6962 (https://datatracker.ietf.org/doc/html/rfc6962)
// for the hashing scheme.

package merkle

import "crypto/sha256"

// Tree is an append-only Merkle tree with a flat binary representation.
type Tree struct {
	nodes []byte // 32-byte hashes, flat-indexed; leaves at even indices
}

// NewTree creates a new, empty Merkle tree.
func NewTree() *Tree {
	return &Tree{}
}

// BuildTree constructs a Merkle tree by pushing each leaf in order.
func BuildTree(leaves [][]byte) *Tree {
	t := NewTree()
	for _, leaf := range leaves {
		t.Push(leaf)
	}
	return t
}

// Push appends a new leaf to the tree, updating every ancestor hash on the
// path to the root.
func (t *Tree) Push(leaf []byte) {
	leafHash := hashLeaf(leaf)
	if len(t.nodes) == 0 {
		t.nodes = append(t.nodes, leafHash[:]...)
		return
	}
	t.nodes = append(t.nodes, make([]byte, 64)...)
	size := t.Len()
	t.setNode(size-1, leafHash)

	idx := size - 1
	root := completeRoot(size)
	for {
		idx = completeParent(idx, size)
		left := completeLeftChild(idx)
		right := completeRightChild(idx, size)
		t.setNode(idx, combine(t.getNode(left), t.getNode(right)))
		if idx == root {
			break
		}
	}
}

// Root returns the root hash of the tree. The root of an empty tree is
// defined as SHA256 of the empty string.
func (t *Tree) Root() [32]byte {
	if t.IsEmpty() {
		return sha256.Sum256(nil)
	}
	return t.getNode(completeRoot(t.Len()))
}

// Leaf returns the hash of the i-th leaf pushed into the tree, or false if
// i falls outside the tree.
func (t *Tree) Leaf(i int) ([32]byte, bool) {
	idx := leafIndexToTreeIndex(i)
	if !t.isInTree(idx) {
		return [32]byte{}, false
	}
	return t.getNode(idx), true
}

// Len returns the number of nodes (leaves and branches) in the tree.
func (t *Tree) Len() int {
	return len(t.nodes) / 32
}

// IsEmpty reports whether the tree has no leaves.
func (t *Tree) IsEmpty() bool {
	return len(t.nodes) == 0
}

func (t *Tree) getNode(i int) [32]byte {
	var out [32]byte
	copy(out[:], t.nodes[i*32:(i+1)*32])
	return out
}

func (t *Tree) setNode(i int, val [32]byte) {
	copy(t.nodes[i*32:(i+1)*32], val[:])
}

func (t *Tree) isInTree(i int) bool {
	return i < t.Len()
}

// hashLeaf calculates SHA256(0x00 || leaf).
func hashLeaf(leaf []byte) [32]byte {
	buf := make([]byte, 0, 1+len(leaf))
	buf = append(buf, 0x00)
	buf = append(buf, leaf...)
	return sha256.Sum256(buf)
}

// combine calculates SHA256(0x01 || left || right).
func combine(left, right [32]byte) [32]byte {
	buf := make([]byte, 0, 1+32+32)
	buf = append(buf, 0x01)
	buf = append(buf, left[:]...)
	buf = append(buf, right[:]...)
	return sha256.Sum256(buf)
}

// leafIndexToTreeIndex returns the flat-tree index of the j-th leaf.
// Leaves are always even-indexed, branches odd-indexed, so this is just
// i = 2*j.
func leafIndexToTreeIndex(j int) int {
	return j * 2
}

// lastSetBit isolates the last set bit of x as a mask.
func lastSetBit(x int) int {
	return x - ((x - 1) & x)
}

// lastZeroBit isolates the last unset bit of x as a mask.
func lastZeroBit(x int) int {
	return lastSetBit(x + 1)
}

// nextPowerOfTwo returns the smallest power of two >= n, treating 0 as 1.
func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	n--
	n |= n >> 1
	n |= n >> 2
	n |= n >> 4
	n |= n >> 8
	n |= n >> 16
	n |= n >> 32
	return n + 1
}

// perfectParent returns the parent index of a node at index i in a
// perfect binary tree: set the last unset bit of i to 1, and the bit to
// its left to 0.
func perfectParent(i int) int {
	zero := lastZeroBit(i)
	return (zero | i) &^ (zero << 1)
}

// perfectLeftChild returns the left child index of branch p in a perfect
// binary tree.
func perfectLeftChild(p int) int {
	return p &^ (lastZeroBit(p) >> 1)
}

// perfectRightChild returns the right child index of branch p in a
// perfect binary tree.
func perfectRightChild(p int) int {
	return (p | lastZeroBit(p)) &^ (lastZeroBit(p) >> 1)
}

// perfectRoot returns the root index of a perfect binary tree of n nodes.
func perfectRoot(n int) int {
	return n >> 1
}

// completeRoot returns the root index of a complete binary tree of n
// nodes: the same as for the smallest perfect binary tree with at least n
// nodes.
func completeRoot(n int) int {
	return perfectRoot(nextPowerOfTwo(n+1) - 1)
}

// completeParent returns the parent index of node i in a complete binary
// tree of size n, by walking the virtual perfect tree until it finds an
// index that actually falls within the tree.
func completeParent(i, n int) int {
	for {
		i = perfectParent(i)
		if i < n {
			return i
		}
	}
}

// completeLeftChild returns the left child of branch p in a complete
// binary tree: the same as the perfect-tree case, since left subtrees of
// a complete tree are always perfect.
func completeLeftChild(p int) int {
	return perfectLeftChild(p)
}

// completeRightChild returns the right child of branch i in a complete
// binary tree of size n.
func completeRightChild(i, n int) int {
	right := perfectRightChild(i)
	if right < n {
		return right
	}
	return i + 1 + completeRoot(n-i-1)
}
