package abci

import (
	"context"
	"testing"

	abcitypes "github.com/cometbft/cometbft/abci/types"
	dbm "github.com/cometbft/cometbft-db"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/asset"
	"github.com/astriaorg/astria-go-sequencer/pkg/grpcserver"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	store := storage.New(dbm.NewMemDB())
	metrics := NewMetrics(prometheus.NewRegistry())
	cfg := Config{
		ChainID:          "test-chain",
		Prefixes:         address.Prefixes{Base: "astria", IBC: "astriacompat"},
		ChainSecret:      make([]byte, 32),
		DefaultFeeAsset:  asset.Denom("nria"),
		MempoolCapacity:  100,
		MaxProposalBytes: 1 << 20,
		MaxProposalGas:   1 << 20,
	}
	return New(store, cfg, nil, metrics)
}

func TestMempoolAccessorReturnsSameInstance(t *testing.T) {
	app := newTestApp(t)
	if app.Mempool() == nil {
		t.Fatalf("expected non-nil mempool")
	}
	if app.Mempool() != app.mempool {
		t.Fatalf("Mempool() returned a different instance than the driver's own mempool")
	}
}

type fakeRecorder struct {
	calls []*grpcserver.SequencerBlock
}

func (f *fakeRecorder) RecordBlock(ctx context.Context, blk *grpcserver.SequencerBlock) error {
	f.calls = append(f.calls, blk)
	return nil
}

func TestFinalizeBlockRecordsEmptyBlockAndAdvancesHeight(t *testing.T) {
	app := newTestApp(t)
	rec := &fakeRecorder{}
	app.SetRecorder(rec)

	resp, err := app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{
		Height: 1,
		Hash:   []byte("block-1-hash"),
	})
	if err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
	if len(resp.AppHash) == 0 {
		t.Fatalf("expected non-empty app hash")
	}
	if _, err := app.Commit(context.Background(), &abcitypes.RequestCommit{}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	info, err := app.Info(context.Background(), &abcitypes.RequestInfo{})
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.LastBlockHeight != 1 {
		t.Fatalf("last block height = %d, want 1", info.LastBlockHeight)
	}

	if len(rec.calls) != 1 {
		t.Fatalf("expected exactly one archive record, got %d", len(rec.calls))
	}
	if rec.calls[0].Height != 1 {
		t.Fatalf("recorded height = %d, want 1", rec.calls[0].Height)
	}
}

func TestFinalizeBlockWithoutRecorderDoesNotPanic(t *testing.T) {
	app := newTestApp(t)
	if _, err := app.FinalizeBlock(context.Background(), &abcitypes.RequestFinalizeBlock{Height: 1, Hash: []byte("h")}); err != nil {
		t.Fatalf("FinalizeBlock: %v", err)
	}
}

func TestProcessProposalRejectsShortTxList(t *testing.T) {
	app := newTestApp(t)
	resp, err := app.ProcessProposal(context.Background(), &abcitypes.RequestProcessProposal{Txs: [][]byte{[]byte("only-one")}})
	if err != nil {
		t.Fatalf("ProcessProposal: %v", err)
	}
	if resp.Status != abcitypes.ResponseProcessProposal_REJECT {
		t.Fatalf("expected REJECT for a proposal missing the commitment prefix")
	}
}
