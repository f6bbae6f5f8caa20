package fees

import (
	"errors"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

func newTestState(t *testing.T) (*Engine, *accounts.Ledger) {
	t.Helper()
	ov := storage.New(dbm.NewMemDB()).Snapshot().BeginTx()
	return New(ov), accounts.New(ov)
}

func TestHandleFeesRejectsUnrecordedAction(t *testing.T) {
	e, ledger := newTestState(t)
	var signer address.Address
	signer[0] = 1

	_, err := e.HandleFees(ledger, signer, tx.ActionTransfer, asset.Denom("nria"), big.NewInt(0), 0, [32]byte{})
	if !errors.Is(err, ErrActionDisabled) {
		t.Fatalf("expected ErrActionDisabled, got %v", err)
	}
}

func TestHandleFeesRejectsDisallowedAsset(t *testing.T) {
	e, ledger := newTestState(t)
	if err := e.SetComponents(tx.ActionTransfer, Components{Base: big.NewInt(1), Multiplier: big.NewInt(0)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	var signer address.Address
	signer[0] = 1

	_, err := e.HandleFees(ledger, signer, tx.ActionTransfer, asset.Denom("nria"), big.NewInt(0), 0, [32]byte{})
	if !errors.Is(err, ErrAssetNotAllowed) {
		t.Fatalf("expected ErrAssetNotAllowed, got %v", err)
	}
}

func TestHandleFeesDebitsSignerAndCreditsAccumulator(t *testing.T) {
	e, ledger := newTestState(t)
	denom := asset.Denom("nria")
	if err := e.SetComponents(tx.ActionTransfer, Components{Base: big.NewInt(10), Multiplier: big.NewInt(2)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	e.SetAssetAllowed(denom.ToIBC(), true)

	var signer address.Address
	signer[0] = 1
	if err := ledger.Credit(signer, denom.ToIBC(), big.NewInt(1000)); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	ev, err := e.HandleFees(ledger, signer, tx.ActionTransfer, denom, big.NewInt(5), 0, [32]byte{0xaa})
	if err != nil {
		t.Fatalf("HandleFees: %v", err)
	}
	// total = base(10) + multiplier(2)*costBase(5) = 20
	if ev.Amount != "20" {
		t.Fatalf("fee event amount = %s, want 20", ev.Amount)
	}

	bal, err := ledger.Balance(signer, denom.ToIBC())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if bal.Cmp(big.NewInt(980)) != 0 {
		t.Fatalf("signer balance = %s, want 980", bal)
	}

	accum, err := e.BlockAccumulator(denom.ToIBC())
	if err != nil {
		t.Fatalf("BlockAccumulator: %v", err)
	}
	if accum.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("block accumulator = %s, want 20", accum)
	}
}

func TestHandleFeesFailsOnInsufficientBalance(t *testing.T) {
	e, ledger := newTestState(t)
	denom := asset.Denom("nria")
	if err := e.SetComponents(tx.ActionTransfer, Components{Base: big.NewInt(100), Multiplier: big.NewInt(0)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	e.SetAssetAllowed(denom.ToIBC(), true)

	var signer address.Address
	signer[0] = 1
	if _, err := e.HandleFees(ledger, signer, tx.ActionTransfer, denom, big.NewInt(0), 0, [32]byte{}); err == nil {
		t.Fatalf("expected an error debiting a zero balance")
	}
}

func TestSetAssetAllowedTogglesBothWays(t *testing.T) {
	e, _ := newTestState(t)
	denom := asset.Denom("nria").ToIBC()

	allowed, err := e.IsAssetAllowed(denom)
	if err != nil {
		t.Fatalf("IsAssetAllowed: %v", err)
	}
	if allowed {
		t.Fatalf("expected a fresh asset to not be allowed")
	}

	e.SetAssetAllowed(denom, true)
	if allowed, err = e.IsAssetAllowed(denom); err != nil || !allowed {
		t.Fatalf("expected asset allowed after SetAssetAllowed(true): allowed=%v err=%v", allowed, err)
	}

	e.SetAssetAllowed(denom, false)
	if allowed, err = e.IsAssetAllowed(denom); err != nil || allowed {
		t.Fatalf("expected asset disallowed after SetAssetAllowed(false): allowed=%v err=%v", allowed, err)
	}
}
