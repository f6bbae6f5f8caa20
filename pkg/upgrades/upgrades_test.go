package upgrades

import (
	"errors"
	"testing"

	dbm "github.com/cometbft/cometbft-db"

	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
)

func newOverlay(t *testing.T) *storage.Overlay {
	t.Helper()
	s := storage.New(dbm.NewMemDB())
	return s.Snapshot().BeginTx()
}

func TestApplyActivatedRunsInstallerAtExactHeight(t *testing.T) {
	ov := newOverlay(t)
	var ran bool
	registry := NewRegistry()
	registry.Register("add-market", func(ov *storage.Overlay) error {
		ran = true
		return nil
	})
	s := New(ScheduleFile{Changes: []Change{{Name: "add-market", ActivationHeight: 10}}}, registry)

	applied, err := s.ApplyActivated(ov, 9, []byte("blockhash"))
	if err != nil {
		t.Fatalf("ApplyActivated: %v", err)
	}
	if len(applied) != 0 || ran {
		t.Fatalf("installer ran before activation height")
	}

	applied, err = s.ApplyActivated(ov, 10, []byte("blockhash"))
	if err != nil {
		t.Fatalf("ApplyActivated: %v", err)
	}
	if !ran || len(applied) != 1 {
		t.Fatalf("expected installer to run once at activation height, ran=%v applied=%d", ran, len(applied))
	}
}

func TestApplyActivatedFailsClosedOnUnknownChange(t *testing.T) {
	ov := newOverlay(t)
	s := New(ScheduleFile{Changes: []Change{{Name: "mystery-upgrade", ActivationHeight: 1}}}, NewRegistry())

	_, err := s.ApplyActivated(ov, 1, []byte("blockhash"))
	var unknown ErrUnknownChange
	if !errors.As(err, &unknown) {
		t.Fatalf("expected ErrUnknownChange, got %v", err)
	}
}

func TestAppliedAndScheduledPartitionByHeight(t *testing.T) {
	s := New(ScheduleFile{Changes: []Change{
		{Name: "past", ActivationHeight: 5},
		{Name: "future", ActivationHeight: 100},
	}}, NewRegistry())

	applied := s.Applied(10)
	if len(applied) != 1 || applied[0].Name != "past" {
		t.Fatalf("unexpected applied set: %+v", applied)
	}
	scheduled := s.Scheduled(10)
	if len(scheduled) != 1 || scheduled[0].Name != "future" {
		t.Fatalf("unexpected scheduled set: %+v", scheduled)
	}
}

func TestChangeHashRecordedUnderBlockHash(t *testing.T) {
	ov := newOverlay(t)
	registry := NewRegistry()
	registry.Register("bump-fee", func(ov *storage.Overlay) error { return nil })
	s := New(ScheduleFile{Changes: []Change{{Name: "bump-fee", ActivationHeight: 1}}}, registry)

	blockHash := []byte("block-1")
	applied, err := s.ApplyActivated(ov, 1, blockHash)
	if err != nil {
		t.Fatalf("ApplyActivated: %v", err)
	}

	stored, err := ChangeHash(ov, blockHash, "bump-fee")
	if err != nil {
		t.Fatalf("ChangeHash: %v", err)
	}
	if string(stored) != string(applied[0].ChangeHash[:]) {
		t.Fatalf("stored hash does not match reported hash")
	}
}
