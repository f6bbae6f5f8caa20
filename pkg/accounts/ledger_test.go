package accounts

import (
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

func newTestLedger(t *testing.T) *Ledger {
	t.Helper()
	ov := storage.New(dbm.NewMemDB()).Snapshot().BeginTx()
	return New(ov)
}

func testDenom() asset.IBCDenom {
	return asset.Denom("nria").ToIBC()
}

func TestNonceDefaultsToZeroAndIncrements(t *testing.T) {
	l := newTestLedger(t)
	var addr address.Address
	addr[0] = 1

	n, err := l.Nonce(addr)
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected default nonce 0, got %d", n)
	}

	if err := l.CheckAndIncrementNonce(addr, 0); err != nil {
		t.Fatalf("CheckAndIncrementNonce: %v", err)
	}
	n, err = l.Nonce(addr)
	if err != nil {
		t.Fatalf("Nonce: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected nonce 1 after one transaction, got %d", n)
	}
}

func TestCheckAndIncrementNonceRejectsMismatch(t *testing.T) {
	l := newTestLedger(t)
	var addr address.Address
	addr[0] = 2

	if err := l.CheckAndIncrementNonce(addr, 5); err == nil {
		t.Fatalf("expected nonce mismatch error for a fresh account")
	}
}

func TestCreditDebitAndTransfer(t *testing.T) {
	l := newTestLedger(t)
	denom := testDenom()
	var alice, bob address.Address
	alice[0], bob[0] = 1, 2

	if err := l.Credit(alice, denom, big.NewInt(100)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
	if err := l.Transfer(alice, bob, denom, big.NewInt(40)); err != nil {
		t.Fatalf("Transfer: %v", err)
	}

	aliceBal, err := l.Balance(alice, denom)
	if err != nil {
		t.Fatalf("Balance(alice): %v", err)
	}
	if aliceBal.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance = %s, want 60", aliceBal)
	}
	bobBal, err := l.Balance(bob, denom)
	if err != nil {
		t.Fatalf("Balance(bob): %v", err)
	}
	if bobBal.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance = %s, want 40", bobBal)
	}
}

func TestDebitRejectsInsufficientFunds(t *testing.T) {
	l := newTestLedger(t)
	denom := testDenom()
	var addr address.Address
	addr[0] = 3

	if err := l.Debit(addr, denom, big.NewInt(1)); err == nil {
		t.Fatalf("expected insufficient-funds error debiting a zero balance")
	}
}

func TestAllBalancesReflectsCredits(t *testing.T) {
	l := newTestLedger(t)
	var addr address.Address
	addr[0] = 4
	denom := testDenom()

	if err := l.Credit(addr, denom, big.NewInt(7)); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	balances, err := l.AllBalances(addr)
	if err != nil {
		t.Fatalf("AllBalances: %v", err)
	}
	if len(balances) != 1 {
		t.Fatalf("expected exactly one balance entry, got %d", len(balances))
	}
}
