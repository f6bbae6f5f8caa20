package merkle

import (
	"bytes"
	"sort"
)

// RollupData is the per-rollup leaf input to the rollup_datas_root tree:
// the concatenation of a rollup's transaction bytes and its deposit bytes
// for one block (§4.7 step 4).
type RollupData struct {
	RollupID []byte
	Data     []byte // concat(tx-bytes) ‖ concat(deposit-bytes)
}

// RollupDatasRoot computes the 32-byte MHT root over the sorted-by-rollup-id
// list of (rollup_id, data) leaves. Each leaf is the concatenation
// rollup_id || data, domain-separated from internal nodes by the tree
// itself, so that two rollups with identical data but different IDs
// produce different leaves.
func RollupDatasRoot(entries []RollupData) ([]byte, error) {
	sorted := make([]RollupData, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].RollupID, sorted[j].RollupID) < 0
	})

	tree := NewTree()
	for _, e := range sorted {
		leaf := make([]byte, 0, len(e.RollupID)+len(e.Data))
		leaf = append(leaf, e.RollupID...)
		leaf = append(leaf, e.Data...)
		tree.Push(leaf)
	}
	root := tree.Root()
	return root[:], nil
}

// RollupIDsRoot computes the 32-byte MHT root over the sorted-unique list
// of rollup IDs that appeared in a block (§4.7 step 4).
func RollupIDsRoot(rollupIDs [][]byte) ([]byte, error) {
	unique := uniqueSortedIDs(rollupIDs)
	tree := NewTree()
	for _, id := range unique {
		tree.Push(id)
	}
	root := tree.Root()
	return root[:], nil
}

func uniqueSortedIDs(ids [][]byte) [][]byte {
	sorted := make([][]byte, len(ids))
	copy(sorted, ids)
	sort.Slice(sorted, func(i, j int) bool { return bytes.Compare(sorted[i], sorted[j]) < 0 })

	out := sorted[:0:0]
	for i, id := range sorted {
		if i > 0 && bytes.Equal(id, sorted[i-1]) {
			continue
		}
		out = append(out, id)
	}
	return out
}
