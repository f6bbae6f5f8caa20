package block

import (
	"crypto/ed25519"
	"errors"
	"math/big"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/fees"
	"github.com/astriaorg/astria-go-sequencer/pkg/mempool"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/tx"
)

func signerAddress(t *testing.T, priv ed25519.PrivateKey) address.Address {
	t.Helper()
	signed := &tx.Transaction{UnsignedTransaction: tx.UnsignedTransaction{
		ChainID: "addr-probe",
		Actions: []tx.Action{&tx.Transfer{To: address.Address{1}, Asset: "nria", Amount: "1", FeeAsset: "nria"}},
	}}
	if err := signed.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	addr, err := signed.Verify()
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	return addr
}

func setupFundedOverlay(t *testing.T, ov *storage.Overlay, signer address.Address) {
	t.Helper()
	denom := asset.Denom("nria")
	fe := fees.New(ov)
	if err := fe.SetComponents(tx.ActionTransfer, fees.Components{Base: big.NewInt(0), Multiplier: big.NewInt(0)}); err != nil {
		t.Fatalf("SetComponents: %v", err)
	}
	fe.SetAssetAllowed(denom.ToIBC(), true)
	if err := accounts.New(ov).Credit(signer, denom.ToIBC(), big.NewInt(1000)); err != nil {
		t.Fatalf("Credit: %v", err)
	}
}

func TestBuildDrainsMempoolAndPrependsCommitments(t *testing.T) {
	store := storage.New(dbm.NewMemDB())
	ov := store.Snapshot().BeginTx()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	signerAddr := signerAddress(t, priv)
	setupFundedOverlay(t, ov, signerAddr)

	mp := mempool.New(10)
	txn := &tx.Transaction{UnsignedTransaction: tx.UnsignedTransaction{
		ChainID: "test-chain",
		Nonce:   0,
		Actions: []tx.Action{&tx.Transfer{To: address.Address{9}, Asset: "nria", Amount: "10", FeeAsset: "nria"}},
	}}
	if err := txn.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	if err := mp.Insert(txn, signerAddr, 0, big.NewInt(1000), big.NewInt(0)); err != nil {
		t.Fatalf("Insert: %v", err)
	}

	built, err := Build(ov, mp, Params{ChainID: "test-chain"}, Constraints{MaxBytes: 1 << 20, MaxGas: 1 << 20})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(built.Txs) != 3 {
		t.Fatalf("expected 2 commitment entries + 1 tx, got %d", len(built.Txs))
	}
	if len(built.Results) != 1 || built.Results[0].Code != 0 {
		t.Fatalf("expected the transfer to execute successfully, got %+v", built.Results)
	}
}

func TestReplayRejectsTransactionForWrongChainID(t *testing.T) {
	store := storage.New(dbm.NewMemDB())
	ov := store.Snapshot().BeginTx()

	_, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("keygen: %v", err)
	}
	txn := &tx.Transaction{UnsignedTransaction: tx.UnsignedTransaction{
		ChainID: "other-chain",
		Nonce:   0,
		Actions: []tx.Action{&tx.Transfer{To: address.Address{9}, Asset: "nria", Amount: "10", FeeAsset: "nria"}},
	}}
	if err := txn.Sign(priv); err != nil {
		t.Fatalf("Sign: %v", err)
	}
	raw, err := txn.Marshal()
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if _, err := Replay(ov, Params{ChainID: "test-chain"}, [][]byte{raw}); err == nil {
		t.Fatalf("expected Replay to reject a transaction signed for a different chain")
	}
}

func TestVerifyCommitmentsRejectsMissingPrefix(t *testing.T) {
	built := &Built{RollupDatasRoot: []byte("a"), RollupIDsRoot: []byte("b")}
	if err := VerifyCommitments([][]byte{[]byte("only-one")}, built); !errors.Is(err, ErrCommitmentMismatch) {
		t.Fatalf("expected ErrCommitmentMismatch, got %v", err)
	}
}

func TestVerifyCommitmentsAcceptsMatchingPrefix(t *testing.T) {
	built := &Built{RollupDatasRoot: []byte("a"), RollupIDsRoot: []byte("b")}
	if err := VerifyCommitments([][]byte{[]byte("a"), []byte("b"), []byte("tx1")}, built); err != nil {
		t.Fatalf("VerifyCommitments: %v", err)
	}
}
