package asset

import "testing"

func TestValidateAcceptsBaseDenom(t *testing.T) {
	if err := Denom("nria").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateAcceptsTracePrefixed(t *testing.T) {
	if err := Denom("transfer/channel-0/utia").Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRejectsEmpty(t *testing.T) {
	if err := Denom("").Validate(); err == nil {
		t.Fatalf("expected error for empty denom")
	}
}

func TestIBCDenomRoundTripsThroughHex(t *testing.T) {
	d := Denom("transfer/channel-0/utia")
	ibc := d.ToIBC()
	parsed, err := IBCDenomFromHex(ibc.String())
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if parsed != ibc {
		t.Fatalf("round trip mismatch")
	}
}

func TestToIBCIsAFunctionOfTheTraceForm(t *testing.T) {
	a := Denom("transfer/channel-0/utia").ToIBC()
	b := Denom("transfer/channel-0/utia").ToIBC()
	if a != b {
		t.Fatalf("ToIBC is not deterministic")
	}
	c := Denom("utia").ToIBC()
	if a == c {
		t.Fatalf("different trace forms collided")
	}
}

func TestIsSourceChain(t *testing.T) {
	if !Denom("nria").IsSourceChain() {
		t.Fatalf("expected nria to be source-chain")
	}
	if Denom("transfer/channel-0/utia").IsSourceChain() {
		t.Fatalf("expected trace-prefixed denom to not be source-chain")
	}
}
