package bridge

import (
	"errors"
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

func TestInitBridgeAccountRejectsDuplicate(t *testing.T) {
	l := newTestLedger(t)
	var bridgeAddr, sudo, withdrawer address.Address
	bridgeAddr[0], sudo[0], withdrawer[0] = 1, 2, 3
	ibc := asset.Denom("nria").ToIBC()

	if err := l.InitBridgeAccount(bridgeAddr, [32]byte{9}, ibc, sudo, withdrawer); err != nil {
		t.Fatalf("first InitBridgeAccount: %v", err)
	}
	if err := l.InitBridgeAccount(bridgeAddr, [32]byte{9}, ibc, sudo, withdrawer); !errors.Is(err, ErrAlreadyBridgeAccount) {
		t.Fatalf("expected ErrAlreadyBridgeAccount, got %v", err)
	}
}

func TestGetRejectsNonBridgeAccount(t *testing.T) {
	l := newTestLedger(t)
	var addr address.Address
	addr[0] = 1
	if _, err := l.Get(addr); err == nil {
		t.Fatalf("expected ErrNotBridgeAccount for an unregistered address")
	}
}

func TestSudoChangeRequiresCurrentSudoAddress(t *testing.T) {
	l := newTestLedger(t)
	var bridgeAddr, sudo, withdrawer, other address.Address
	bridgeAddr[0], sudo[0], withdrawer[0], other[0] = 1, 2, 3, 4
	ibc := asset.Denom("nria").ToIBC()
	if err := l.InitBridgeAccount(bridgeAddr, [32]byte{9}, ibc, sudo, withdrawer); err != nil {
		t.Fatalf("InitBridgeAccount: %v", err)
	}

	if err := l.SudoChange(bridgeAddr, other, nil, nil, nil); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("expected ErrNotAuthorized, got %v", err)
	}

	newSudo := address.Address{5}
	if err := l.SudoChange(bridgeAddr, sudo, &newSudo, nil, nil); err != nil {
		t.Fatalf("SudoChange by current sudo: %v", err)
	}
	acc, err := l.Get(bridgeAddr)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if acc.SudoAddress != newSudo {
		t.Fatalf("sudo address not updated: got %x", acc.SudoAddress)
	}
}

func TestRecordWithdrawalEventRejectsDuplicate(t *testing.T) {
	l := newTestLedger(t)
	var bridgeAddr address.Address
	bridgeAddr[0] = 1

	if err := l.RecordWithdrawalEvent(bridgeAddr, "evt-1", 10); err != nil {
		t.Fatalf("first RecordWithdrawalEvent: %v", err)
	}
	if err := l.RecordWithdrawalEvent(bridgeAddr, "evt-1", 11); !errors.Is(err, ErrWithdrawalAlreadyExecuted) {
		t.Fatalf("expected ErrWithdrawalAlreadyExecuted, got %v", err)
	}
	if err := l.RecordWithdrawalEvent(bridgeAddr, "evt-2", 11); err != nil {
		t.Fatalf("a distinct event id should not collide: %v", err)
	}
}

func TestRecordDepositThenDrainDepositsReturnsAll(t *testing.T) {
	l := newTestLedger(t)
	rollupID := [32]byte{7}
	d1 := Deposit{BridgeAddress: address.Address{1}, RollupID: rollupID, Amount: "10", Asset: "nria"}
	d2 := Deposit{BridgeAddress: address.Address{2}, RollupID: rollupID, Amount: "20", Asset: "nria"}

	if err := l.RecordDeposit(1, d1); err != nil {
		t.Fatalf("RecordDeposit d1: %v", err)
	}
	if err := l.RecordDeposit(2, d2); err != nil {
		t.Fatalf("RecordDeposit d2: %v", err)
	}

	drained, err := l.DrainDeposits()
	if err != nil {
		t.Fatalf("DrainDeposits: %v", err)
	}
	if len(drained) != 2 {
		t.Fatalf("expected 2 drained deposits, got %d", len(drained))
	}
}
