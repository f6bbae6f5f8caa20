package codec

import (
	"bytes"
	"testing"
)

type pair struct {
	B string `json:"b"`
	A string `json:"a"`
}

func TestMarshalIsDeterministicAcrossFieldOrder(t *testing.T) {
	got1, err := Marshal(pair{B: "2", A: "1"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	got2, err := Marshal(struct {
		A string `json:"a"`
		B string `json:"b"`
	}{A: "1", B: "2"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !bytes.Equal(got1, got2) {
		t.Fatalf("canonical encodings differ by struct field order: %s vs %s", got1, got2)
	}
}

func TestHashMatchesHashBytesOfMarshal(t *testing.T) {
	v := pair{A: "x", B: "y"}
	raw, err := Marshal(v)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	want := HashBytes(raw)
	got, err := Hash(v)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if got != want {
		t.Fatalf("Hash(v) != HashBytes(Marshal(v))")
	}
}

func TestCanonicalizePreservesArrayOrderButSortsMapKeys(t *testing.T) {
	raw := []byte(`{"z":1,"a":[3,1,2]}`)
	got, err := Canonicalize(raw)
	if err != nil {
		t.Fatalf("Canonicalize: %v", err)
	}
	want := []byte(`{"a":[3,1,2],"z":1}`)
	if !bytes.Equal(got, want) {
		t.Fatalf("Canonicalize(%s) = %s, want %s", raw, got, want)
	}
}
