package address

import "testing"

var testPrefixes = Prefixes{Base: "astria", IBC: "astriacompat"}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var raw [Length]byte
	for i := range raw {
		raw[i] = byte(i)
	}
	addr, err := FromBytes(raw[:])
	if err != nil {
		t.Fatalf("from bytes: %v", err)
	}

	enc, err := Encode(testPrefixes.Base, addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	decoded, hrp, err := Decode(testPrefixes, enc)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if hrp != testPrefixes.Base {
		t.Fatalf("hrp = %s, want %s", hrp, testPrefixes.Base)
	}
	if decoded != addr {
		t.Fatalf("round trip mismatch: got %x, want %x", decoded, addr)
	}
}

func TestDecodeAcceptsIBCPrefixOnIngress(t *testing.T) {
	var raw [Length]byte
	addr, _ := FromBytes(raw[:])
	enc, err := Encode(testPrefixes.IBC, addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, hrp, err := Decode(testPrefixes, enc); err != nil {
		t.Fatalf("decode: %v", err)
	} else if hrp != testPrefixes.IBC {
		t.Fatalf("hrp = %s, want %s", hrp, testPrefixes.IBC)
	}
}

func TestDecodeRejectsUnknownPrefix(t *testing.T) {
	var raw [Length]byte
	addr, _ := FromBytes(raw[:])
	enc, err := Encode("other", addr)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, _, err := Decode(testPrefixes, enc); err == nil {
		t.Fatalf("expected error decoding unknown prefix")
	}
}

func TestFromBytesRejectsWrongLength(t *testing.T) {
	if _, err := FromBytes(make([]byte, 19)); err == nil {
		t.Fatalf("expected error for wrong length")
	}
}
