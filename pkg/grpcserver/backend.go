// Copyright 2025 Astria Sequencer Contributors
//
// Backend wires SequencerServiceServer against the node's live state: the
// versioned store for account/validator lookups, the mempool for
// pending-nonce resolution, the upgrade scheduler for GetUpgradesInfo,
// and an optional BlockArchive for historical block lookups. Mirrors the
// teacher's pattern of a thin RPC-facing struct delegating to the same
// ledger/state packages the ABCI driver uses.

package grpcserver

import (
	"context"
	"encoding/hex"
	"errors"

	"github.com/astriaorg/astria-go-sequencer/pkg/accounts"
	"github.com/astriaorg/astria-go-sequencer/pkg/actions"
	"github.com/astriaorg/astria-go-sequencer/pkg/address"
	"github.com/astriaorg/astria-go-sequencer/pkg/mempool"
	"github.com/astriaorg/astria-go-sequencer/pkg/storage"
	"github.com/astriaorg/astria-go-sequencer/pkg/upgrades"
)

// ErrNotAValidator distinguishes a pubkey with no recorded name from a
// lookup failure (§6: "distinct error codes for not a validator vs.
// pre-upgrade, names unsupported").
var ErrNotAValidator = errors.New("grpcserver: address is not a validator")

// ErrNamesUnsupported is returned when no upgrade scheduler is wired at
// all, meaning this chain predates the validator-name registry change.
var ErrNamesUnsupported = errors.New("grpcserver: validator names are not supported pre-upgrade")

// ErrBlockNotFound is returned by a BlockArchive when a height has no
// archived record.
var ErrBlockNotFound = errors.New("grpcserver: block not found")

// BlockArchive is the historical-block lookup boundary GetSequencerBlock
// and GetFilteredSequencerBlock delegate to; pkg/archive implements it
// when a DATABASE_URL is configured, otherwise NewBackend is wired with
// a nil archive and both calls return ErrBlockNotFound.
type BlockArchive interface {
	GetBlock(ctx context.Context, height int64) (*SequencerBlock, error)
}

// Backend implements SequencerServiceServer.
type Backend struct {
	store    *storage.Store
	mempool  *mempool.Mempool
	prefixes address.Prefixes
	schedule *upgrades.Scheduler
	archive  BlockArchive
}

// NewBackend wires a Backend. schedule and archive may be nil when
// upgrades or archival storage are not configured for this node.
func NewBackend(store *storage.Store, mp *mempool.Mempool, prefixes address.Prefixes, schedule *upgrades.Scheduler, archive BlockArchive) *Backend {
	return &Backend{store: store, mempool: mp, prefixes: prefixes, schedule: schedule, archive: archive}
}

func (b *Backend) GetSequencerBlock(ctx context.Context, req *GetSequencerBlockRequest) (*GetSequencerBlockResponse, error) {
	if b.archive == nil {
		return nil, ErrBlockNotFound
	}
	blk, err := b.archive.GetBlock(ctx, req.Height)
	if err != nil {
		return nil, err
	}
	return &GetSequencerBlockResponse{Block: blk}, nil
}

func (b *Backend) GetFilteredSequencerBlock(ctx context.Context, req *GetFilteredSequencerBlockRequest) (*GetFilteredSequencerBlockResponse, error) {
	if b.archive == nil {
		return nil, ErrBlockNotFound
	}
	blk, err := b.archive.GetBlock(ctx, req.Height)
	if err != nil {
		return nil, err
	}
	wanted := make(map[[32]byte]bool, len(req.RollupIDs))
	for _, id := range req.RollupIDs {
		wanted[id] = true
	}
	filtered := blk.RollupTransactions[:0]
	for _, rt := range blk.RollupTransactions {
		if wanted[rt.RollupID] {
			filtered = append(filtered, rt)
		}
	}
	blk.RollupTransactions = filtered
	return &GetFilteredSequencerBlockResponse{Block: blk}, nil
}

func (b *Backend) GetPendingNonce(ctx context.Context, req *GetPendingNonceRequest) (*GetPendingNonceResponse, error) {
	addr, err := address.MustDecodeBase(b.prefixes, req.Address)
	if err != nil {
		return nil, err
	}
	sn := b.store.Snapshot()
	current, err := accounts.New(sn.BeginTx()).Nonce(addr)
	if err != nil {
		return nil, err
	}
	if pending, ok := b.mempool.PendingNonce(addr, current); ok {
		return &GetPendingNonceResponse{Nonce: pending}, nil
	}
	return &GetPendingNonceResponse{Nonce: current}, nil
}

func (b *Backend) GetUpgradesInfo(ctx context.Context, req *GetUpgradesInfoRequest) (*GetUpgradesInfoResponse, error) {
	if b.schedule == nil {
		return &GetUpgradesInfoResponse{}, nil
	}
	height := uint64(b.store.Version())
	return &GetUpgradesInfoResponse{
		Applied:   b.schedule.Applied(height),
		Scheduled: b.schedule.Scheduled(height),
	}, nil
}

func (b *Backend) GetValidatorName(ctx context.Context, req *GetValidatorNameRequest) (*GetValidatorNameResponse, error) {
	if b.schedule == nil {
		return nil, ErrNamesUnsupported
	}
	pubKey, err := hex.DecodeString(req.Address)
	if err != nil {
		return nil, err
	}
	sn := b.store.Snapshot()
	name, err := actions.GetValidatorName(sn.BeginTx(), pubKey)
	if err != nil {
		return nil, err
	}
	if name == "" {
		return nil, ErrNotAValidator
	}
	return &GetValidatorNameResponse{Name: name}, nil
}
