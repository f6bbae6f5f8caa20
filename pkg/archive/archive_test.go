// Unit tests for the archive store. Requires a live Postgres instance;
// skipped when ARCHIVE_TEST_DB is unset, the same gate the teacher's
// pkg/database tests use for CERTEN_TEST_DB.

package archive

import (
	"context"
	"os"
	"testing"

	"github.com/astriaorg/astria-go-sequencer/pkg/grpcserver"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("ARCHIVE_TEST_DB")
	if dsn == "" {
		t.Skip("ARCHIVE_TEST_DB not configured")
	}
	s, err := Open(Config{DatabaseURL: dsn})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.Migrate(context.Background()); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestRecordBlockThenGetBlockRoundTrips(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	blk := &grpcserver.SequencerBlock{
		Height:          42,
		BlockHash:       []byte("blockhash"),
		RollupDatasRoot: []byte("datasroot"),
		RollupIDsRoot:   []byte("idsroot"),
		RollupTransactions: []grpcserver.RollupTransactions{
			{RollupID: [32]byte{1}, Data: []byte("payload")},
		},
	}
	if err := s.RecordBlock(ctx, blk); err != nil {
		t.Fatalf("RecordBlock: %v", err)
	}

	got, err := s.GetBlock(ctx, 42)
	if err != nil {
		t.Fatalf("GetBlock: %v", err)
	}
	if got.Height != blk.Height || string(got.BlockHash) != string(blk.BlockHash) {
		t.Fatalf("round trip mismatch: got %+v", got)
	}
	if len(got.RollupTransactions) != 1 || got.RollupTransactions[0].RollupID != blk.RollupTransactions[0].RollupID {
		t.Fatalf("rollup transactions not preserved: %+v", got.RollupTransactions)
	}
}

func TestGetBlockNotFound(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.GetBlock(context.Background(), 999999); err != grpcserver.ErrBlockNotFound {
		t.Fatalf("expected ErrBlockNotFound, got %v", err)
	}
}
