package actions

import (
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/bridge"
	"github.com/astriaorg/astria-go-sequencer/pkg/fees"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

func newTestOverlay(t *testing.T) *storage.Overlay {
	t.Helper()
	return storage.New(dbm.NewMemDB()).Snapshot().BeginTx()
}

func fundTransferable(t *testing.T, ov *storage.Overlay, signer address.Address) {
	t.Helper()
	fe := fees.New(ov)
	if err := fe.SetComponents(tx.ActionTransfer, fees.Components{Base: big.NewInt(0), Multiplier: big.NewInt(0)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	fe.SetAssetAllowed(asset.Denom("nria").ToIBC(), true)
	if err := accounts.New(ov).Credit(signer, asset.Denom("nria").ToIBC(), big.NewInt(1000)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}

func TestDispatchTransferMovesBalance(t *testing.T) {
	ov := newTestOverlay(t)
	var signer, to address.Address
	signer[0], to[0] = 1, 2
	fundTransferable(t, ov, signer)

	ctx := Context{Signer: signer}
	_, err := Dispatch(ov, ctx, &tx.Transfer{To: to, Asset: "nria", Amount: "100", FeeAsset: "nria"})
	if err != nil {
		t.Fatalf("Dispatch(Transfer): %v", err)
	}

	toBal, err := accounts.New(ov).Balance(to, asset.Denom("nria").ToIBC())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	if toBal.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("recipient balance = %s, want 100", toBal)
	}
}

func TestDispatchTransferRejectsZeroAmount(t *testing.T) {
	ov := newTestOverlay(t)
	var signer address.Address
	signer[0] = 1
	fundTransferable(t, ov, signer)

	_, err := Dispatch(ov, Context{Signer: signer}, &tx.Transfer{To: address.Address{2}, Asset: "nria", Amount: "0", FeeAsset: "nria"})
	if err == nil {
		t.Fatalf("expected an error for a zero-amount transfer")
	}
}

func TestDispatchSudoAddressChangeRequiresCurrentSudo(t *testing.T) {
	ov := newTestOverlay(t)
	var sudo, impostor, newSudo address.Address
	sudo[0], impostor[0], newSudo[0] = 1, 2, 3
	SetSudoAddress(ov, sudo)

	if _, err := Dispatch(ov, Context{Signer: impostor}, &tx.SudoAddressChange{NewAddress: newSudo}); err != ErrNotSudo {
		t.Fatalf("expected ErrNotSudo, got %v", err)
	}

	if _, err := Dispatch(ov, Context{Signer: sudo}, &tx.SudoAddressChange{NewAddress: newSudo}); err != nil {
		t.Fatalf("Dispatch(SudoAddressChange) by current sudo: %v", err)
	}
	got, err := GetSudoAddress(ov)
	if err != nil {
		t.Fatalf("GetSudoAddress: %v", err)
	}
	if got != newSudo {
		t.Fatalf("sudo address not rotated: got %x", got)
	}
}

func TestDispatchFeeChangeInstallsComponents(t *testing.T) {
	ov := newTestOverlay(t)
	var sudo address.Address
	sudo[0] = 1
	SetSudoAddress(ov, sudo)

	_, err := Dispatch(ov, Context{Signer: sudo}, &tx.FeeChange{ForAction: tx.ActionTransfer, Base: "5", Multiplier: "2"})
	if err != nil {
		t.Fatalf("Dispatch(FeeChange): %v", err)
	}

	components, err := fees.New(ov).GetComponents(tx.ActionTransfer)
	if err != nil {
		t.Fatalf("GetComponents: %v", err)
	}
	if components.Base.Cmp(big.NewInt(5)) != 0 || components.Multiplier.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected fee components: %+v", components)
	}
}

func TestDispatchBridgeLockFeeScalesWithAssetAndDestinationLength(t *testing.T) {
	ov := newTestOverlay(t)
	var bridgeAddr, signer address.Address
	bridgeAddr[0], signer[0] = 1, 2
	denom := asset.Denom("nria")

	if err := bridge.New(ov).InitBridgeAccount(bridgeAddr, [32]byte{9}, denom.ToIBC(), signer, signer); err != nil {
		t.Fatalf("InitBridgeAccount: %v", err)
	}
	fe := fees.New(ov)
	if err := fe.SetComponents(tx.ActionBridgeLock, fees.Components{Base: big.NewInt(12), Multiplier: big.NewInt(2)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	fe.SetAssetAllowed(denom.ToIBC(), true)
	const lockAmount = int64(1000)
	if err := accounts.New(ov).Credit(signer, denom.ToIBC(), big.NewInt(10000)); err != nil {
		t.Fatalf("Credit: %v", err)
	}

	ctx := Context{Signer: signer}
	_, err := Dispatch(ov, ctx, &tx.BridgeLock{
		To: bridgeAddr, Asset: "nria", Amount: "1000",
		FeeAsset: "nria", DestinationChainAddress: "somebech32address",
	})
	if err != nil {
		t.Fatalf("Dispatch(BridgeLock): %v", err)
	}

	// fee = base(12) + multiplier(2) * (DEPOSIT_BASE_FEE(16) + len(asset) + len(destination))
	//     = 12 + 2*(16 + 4 + 17) = 86
	wantFee := int64(12 + 2*(16+len("nria")+len("somebech32address")))
	signerBal, err := accounts.New(ov).Balance(signer, denom.ToIBC())
	if err != nil {
		t.Fatalf("Balance: %v", err)
	}
	wantBal := big.NewInt(10000 - lockAmount - wantFee)
	if signerBal.Cmp(wantBal) != 0 {
		t.Fatalf("signer balance after bridge lock = %s, want %s (implies fee != %d)", signerBal, wantBal, wantFee)
	}
}

func TestDispatchRejectsUnknownActionType(t *testing.T) {
	ov := newTestOverlay(t)
	if _, err := Dispatch(ov, Context{}, unknownAction{}); err == nil {
		t.Fatalf("expected an error dispatching an unhandled action type")
	}
}

type unknownAction struct{}

func (unknownAction) ActionName() string { return "Unknown" }
