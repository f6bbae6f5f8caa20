package storage

import (
	"bytes"
	"testing"

	dbm "github.com/cometbft/cometbft-db"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return New(dbm.NewMemDB())
}

func TestOverlayReadYourWrites(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	ov := snap.BeginTx()

	ov.Put(Verifiable, []byte("accounts/a/nonce"), []byte{0, 0, 0, 1})
	v, err := ov.Get(Verifiable, []byte("accounts/a/nonce"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(v, []byte{0, 0, 0, 1}) {
		t.Fatalf("got %v", v)
	}
}

func TestCommitAdvancesVersionAndAppHash(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	ov := snap.BeginTx()
	ov.Put(Verifiable, []byte("x"), []byte("1"))

	batch := s.Apply(ov)
	h1, err := s.Commit(batch)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if s.Version() != 1 {
		t.Fatalf("version = %d, want 1", s.Version())
	}
	if len(h1) != 32 {
		t.Fatalf("app hash length = %d, want 32", len(h1))
	}

	snap2 := s.Snapshot()
	v, err := snap2.Get(Verifiable, []byte("x"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !bytes.Equal(v, []byte("1")) {
		t.Fatalf("got %v", v)
	}

	// A second, empty commit must still change the app hash (height is
	// folded in) even though no keys were written.
	ov2 := snap2.BeginTx()
	batch2 := s.Apply(ov2)
	h2, err := s.Commit(batch2)
	if err != nil {
		t.Fatalf("commit: %v", err)
	}
	if bytes.Equal(h1, h2) {
		t.Fatalf("app hash did not change across commits")
	}
}

func TestPrefixScanOrderingAndOverlayMerge(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	ov := snap.BeginTx()
	ov.Put(Verifiable, []byte("book/0003"), []byte("c"))
	ov.Put(Verifiable, []byte("book/0001"), []byte("a"))
	batch := s.Apply(ov)
	if _, err := s.Commit(batch); err != nil {
		t.Fatalf("commit: %v", err)
	}

	snap2 := s.Snapshot()
	ov2 := snap2.BeginTx()
	ov2.Put(Verifiable, []byte("book/0002"), []byte("b"))

	pairs, err := ov2.Prefix(Verifiable, []byte("book/"))
	if err != nil {
		t.Fatalf("prefix: %v", err)
	}
	if len(pairs) != 3 {
		t.Fatalf("len = %d, want 3", len(pairs))
	}
	for i, want := range []string{"book/0001", "book/0002", "book/0003"} {
		if string(pairs[i].Key) != want {
			t.Fatalf("pairs[%d] = %s, want %s", i, pairs[i].Key, want)
		}
	}
}

func TestMissingKeyReturnsNilNotError(t *testing.T) {
	s := newTestStore(t)
	snap := s.Snapshot()
	v, err := snap.Get(Verifiable, []byte("does-not-exist"))
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if v != nil {
		t.Fatalf("got %v, want nil", v)
	}
}
