package tx

import (
	"crypto/ed25519"
	"testing"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
)

func TestSignThenVerifyRecoversSignerAddress(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	txn := &Transaction{
		UnsignedTransaction: UnsignedTransaction{
			ChainID: "test-chain",
			Nonce:   3,
			Actions: []Action{&Transfer{To: address.Address{9}, Asset: "nria", Amount: "100", FeeAsset: "nria"}},
		},
	}
	if err := txn.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	gotAddr, err := txn.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	wantAddr, err := address.FromBytes(pubKeyToAddress(pub))
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	if gotAddr != wantAddr {
		t.Fatalf("recovered address %x, want %x", gotAddr, wantAddr)
	}
}

func TestVerifyRejectsTamperedSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	txn := &Transaction{
		UnsignedTransaction: UnsignedTransaction{
			ChainID: "test-chain",
			Nonce:   0,
			Actions: []Action{&Transfer{To: address.Address{1}, Asset: "nria", Amount: "1", FeeAsset: "nria"}},
		},
	}
	if err := txn.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	txn.Signature[0] ^= 0xff

	if _, err := txn.Verify(); err != ErrBadSignature {
		t.Fatalf("expected ErrBadSignature, got %v", err)
	}
}

func TestMarshalUnmarshalRoundTripsActionsAndSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	original := &Transaction{
		UnsignedTransaction: UnsignedTransaction{
			ChainID: "test-chain",
			Nonce:   7,
			Actions: []Action{
				&Transfer{To: address.Address{2}, Asset: "nria", Amount: "42", FeeAsset: "nria"},
				&FeeChange{ForAction: ActionTransfer, Base: "10", Multiplier: "1"},
			},
		},
	}
	if err := original.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}

	raw, err := original.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	decoded, err := Unmarshal(raw)
	if err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.ChainID != original.ChainID || decoded.Nonce != original.Nonce {
		t.Fatalf("envelope mismatch: got %+v", decoded.UnsignedTransaction)
	}
	if len(decoded.Actions) != 2 {
		t.Fatalf("expected 2 actions, got %d", len(decoded.Actions))
	}
	if decoded.Actions[0].ActionName() != ActionTransfer || decoded.Actions[1].ActionName() != ActionFeeChange {
		t.Fatalf("action order/types not preserved: %+v", decoded.Actions)
	}
	if _, err := decoded.Verify(); err != nil {
		t.Fatalf("decoded transaction failed to verify: %v", err)
	}
}

func TestIDIsDeterministicAndChangesWithNonce(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	base := func(nonce uint32) *Transaction {
		t := &Transaction{UnsignedTransaction: UnsignedTransaction{
			ChainID: "c",
			Nonce:   nonce,
			Actions: []Action{&Transfer{To: address.Address{1}, Asset: "nria", Amount: "1", FeeAsset: "nria"}},
		}}
		t.Sign(priv)
		return t
	}

	a := base(1)
	idA1, err := a.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	idA2, err := a.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if idA1 != idA2 {
		t.Fatalf("ID is not deterministic across repeated calls")
	}

	b := base(2)
	idB, err := b.ID()
	if err != nil {
		t.Fatalf("ID: %v", err)
	}
	if idA1 == idB {
		t.Fatalf("expected different nonces to produce different transaction IDs")
	}
}
